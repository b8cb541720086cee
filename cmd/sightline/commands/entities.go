package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/sightline-io/sightline-go/internal/constants"
	"github.com/sightline-io/sightline-go/pkg/sightline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// NewEntitiesCommand creates the entities command group
func NewEntitiesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "entities",
		Aliases: []string{"entity"},
		Short:   "Manage observable entities",
		Long:    "Register observable entities and query forecasts about them",
	}

	cmd.AddCommand(newEntitiesRegisterCommand())
	cmd.AddCommand(newEntitiesGetCommand())
	cmd.AddCommand(newEntitiesForecastCommand())
	cmd.AddCommand(newEntitiesLinksCommand())

	return cmd
}

func newEntitiesRegisterCommand() *cobra.Command {
	var (
		entityType string
		keys       []string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an entity",
		Long:  "Register an observable entity so forecasts can be queried for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedType, err := sightline.ParseEntityType(entityType)
			if err != nil {
				return fmt.Errorf("invalid entity type '%s': %w", entityType, err)
			}

			if len(keys) == 0 {
				return ErrEntityKeyRequired
			}

			entity := sightline.NewEntity(parsedType)

			for _, raw := range keys {
				keyType, keyValue, found := strings.Cut(raw, "=")
				if !found {
					return fmt.Errorf("%w: '%s'", ErrInvalidKeyFormat, raw)
				}

				parsedKeyType, err := sightline.ParseEntityKeyType(keyType)
				if err != nil {
					return fmt.Errorf("invalid entity key type '%s': %w", keyType, err)
				}

				if err := entity.AddKey(parsedKeyType, keyValue); err != nil {
					return fmt.Errorf("failed to add key '%s': %w", raw, err)
				}
			}

			apiClient, err := CreateClient()
			if err != nil {
				return err
			}

			ctx := context.Background()

			ref, err := apiClient.Entities().Register(ctx, entity)
			if err != nil {
				return fmt.Errorf("failed to register entity: %w", err)
			}

			return renderEntityRef(ref)
		},
	}

	cmd.Flags().StringVar(&entityType, "type", "", "entity type (for example DomainName or IPAddress)")
	cmd.Flags().StringArrayVar(&keys, "key", nil, "entity key as TYPE=VALUE, repeatable")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func newEntitiesGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get ENTITY_UUID",
		Short: "Get entity details",
		Long:  "Display a registered entity by UUID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid entity UUID '%s': %w", args[0], err)
			}

			apiClient, err := CreateClient()
			if err != nil {
				return err
			}

			ctx := context.Background()

			entity, err := apiClient.Entities().Get(ctx, entityID)
			if err != nil {
				return fmt.Errorf("failed to get entity '%s': %w", args[0], err)
			}

			return renderEntity(entity)
		},
	}
}

func newEntitiesForecastCommand() *cobra.Command {
	var (
		forecastAt   string
		includeFacts bool
	)

	cmd := &cobra.Command{
		Use:   "forecast ENTITY_UUID ATTRIBUTE",
		Short: "Forecast an entity attribute",
		Long:  "Display the merged verdict on a single entity attribute",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid entity UUID '%s': %w", args[0], err)
			}

			attribute, err := sightline.ParseAttributeName(args[1])
			if err != nil {
				return fmt.Errorf("invalid attribute name '%s': %w", args[1], err)
			}

			query := sightline.NewListQuery()

			if forecastAt != "" {
				atTime, err := time.Parse(time.RFC3339, forecastAt)
				if err != nil {
					return fmt.Errorf("invalid --at time '%s': %w", forecastAt, err)
				}

				query = query.WithForecastAt(atTime)
			}

			if includeFacts {
				query = query.WithValuableFacts(true)
			}

			apiClient, err := CreateClient()
			if err != nil {
				return err
			}

			ctx := context.Background()

			forecast, err := apiClient.Entities().ForecastAttribute(ctx, entityID, attribute, query)
			if err != nil {
				return fmt.Errorf("failed to forecast attribute '%s': %w", args[1], err)
			}

			return renderAttributeForecast(forecast)
		},
	}

	cmd.Flags().StringVar(&forecastAt, "at", "", "evaluate the forecast as of this RFC3339 time")
	cmd.Flags().BoolVar(&includeFacts, "facts", false, "include the contributing facts")

	return cmd
}

func newEntitiesLinksCommand() *cobra.Command {
	var (
		limit         int
		cursor        string
		kinds         []string
		minConfidence float64
	)

	cmd := &cobra.Command{
		Use:   "links ENTITY_UUID",
		Short: "List forecasted links",
		Long:  "List the forecasted relationships of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid entity UUID '%s': %w", args[0], err)
			}

			query := sightline.NewListQuery().WithLimit(limit)

			if cursor != "" {
				query = query.WithCursor(cursor)
			}

			if len(kinds) > 0 {
				parsed := make([]sightline.RelationshipKind, 0, len(kinds))

				for _, raw := range kinds {
					kind, err := sightline.ParseRelationshipKind(raw)
					if err != nil {
						return fmt.Errorf("invalid relationship kind '%s': %w", raw, err)
					}

					parsed = append(parsed, kind)
				}

				query = query.WithRelationKinds(parsed...)
			}

			if minConfidence > 0 {
				query = query.WithConfidenceThreshold(minConfidence)
			}

			apiClient, err := CreateClient()
			if err != nil {
				return err
			}

			ctx := context.Background()

			page, err := apiClient.Entities().ForecastLinks(ctx, entityID, query)
			if err != nil {
				return fmt.Errorf("failed to forecast links for entity '%s': %w", args[0], err)
			}

			return renderLinkPage(page)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", constants.DefaultPageLimit, "maximum number of links per page")
	cmd.Flags().StringVar(&cursor, "cursor", "", "pagination cursor from a previous page")
	cmd.Flags().StringArrayVar(&kinds, "kind", nil, "filter by relationship kind, repeatable")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "only links at or above this confidence")

	return cmd
}

func renderEntityRef(ref *sightline.RefView) error {
	output := viper.GetString("output")
	switch output {
	case OutputFormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		return encoder.Encode(ref)
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		return encoder.Encode(ref)
	default:
		fmt.Printf("%s entity %s\n", successColor("Registered"), ref.UUID)

		if ref.URL != "" {
			fmt.Printf("URL: %s\n", ref.URL)
		}

		return nil
	}
}

func renderEntity(entity *sightline.EntityView) error {
	output := viper.GetString("output")
	switch output {
	case OutputFormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		return encoder.Encode(entity)
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		return encoder.Encode(entity)
	default:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Property", "Value")

		_ = table.Append("UUID", entity.UUID.String())
		_ = table.Append("Type", string(entity.Type))

		keys := make([]string, 0, len(entity.Keys))
		for _, key := range entity.Keys {
			keys = append(keys, fmt.Sprintf("%s=%s", key.Type, key.Value))
		}

		_ = table.Append("Keys", joinOrNA(keys))

		if entity.URL != "" {
			_ = table.Append("URL", entity.URL)
		}

		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		return nil
	}
}

func renderAttributeForecast(forecast *sightline.AttributeForecastView) error {
	output := viper.GetString("output")
	switch output {
	case OutputFormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		return encoder.Encode(forecast)
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		return encoder.Encode(forecast)
	default:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Value", "Confidence", "Contributing Facts")

		for _, value := range forecast.Values {
			_ = table.Append(
				truncateValue(fmt.Sprintf("%v", value.Value), constants.ValueDisplayLength),
				formatConfidence(value.Confidence),
				strconv.Itoa(len(value.ValuableFacts)),
			)
		}

		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		if forecast.HasConflicts {
			fmt.Println(warningColor("Contributing data sources disagree on this attribute"))
		}

		return renderAttributeForecastFacts(forecast)
	}
}

// renderAttributeForecastFacts prints the contributing facts per candidate
// value, when the forecast was requested with them.
func renderAttributeForecastFacts(forecast *sightline.AttributeForecastView) error {
	for _, value := range forecast.Values {
		if len(value.ValuableFacts) == 0 {
			continue
		}

		fmt.Printf("\nFacts for value %v:\n", value.Value)

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Data Source", "Share Level", "Seen At", "Confidence", "Final")

		for _, fact := range value.ValuableFacts {
			_ = table.Append(
				fact.DataSource.UUID.String(),
				string(fact.ShareLevel),
				formatTime(fact.SeenAt),
				formatConfidence(fact.Confidence),
				formatConfidence(fact.FinalConfidence),
			)
		}

		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}
	}

	return nil
}

func renderLinkPage(page *sightline.Page[sightline.LinkForecastView]) error {
	output := viper.GetString("output")
	switch output {
	case OutputFormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		return encoder.Encode(page)
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		return encoder.Encode(page)
	default:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Direction", "Kind", "Related Entity", "Confidence")

		for _, link := range page.Items {
			_ = table.Append(
				string(link.Link.Direction),
				string(link.Link.RelationKind),
				formatEntity(&link.Link.RelatedEntity),
				formatConfidence(link.Confidence),
			)
		}

		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		if page.HasMore() {
			fmt.Printf("\nMore results available, rerun with --cursor %s\n", page.NextCursor)
		}

		return nil
	}
}
