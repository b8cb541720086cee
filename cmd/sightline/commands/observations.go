package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/sightline-io/sightline-go/internal/constants"
	"github.com/sightline-io/sightline-go/pkg/sightline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// NewObservationsCommand creates the observations command group
func NewObservationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "observations",
		Aliases: []string{"observation", "obs"},
		Short:   "Manage observations",
		Long:    "Register, view, and list generic observations",
	}

	cmd.AddCommand(newObservationsRegisterCommand())
	cmd.AddCommand(newObservationsGetCommand())
	cmd.AddCommand(newObservationsListCommand())

	return cmd
}

func newObservationsRegisterCommand() *cobra.Command {
	var bundleFile string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register observations from a bundle",
		Long:  "Parse a YAML observation bundle and register each observation it declares",
		RunE: func(cmd *cobra.Command, args []string) error {
			if bundleFile == "" {
				return ErrBundleFileRequired
			}

			// #nosec G304 -- the path is chosen by the operator
			data, err := os.ReadFile(bundleFile)
			if err != nil {
				return fmt.Errorf("failed to read bundle file '%s': %w", bundleFile, err)
			}

			bundle, err := sightline.ParseObservationBundle(data)
			if err != nil {
				return fmt.Errorf("failed to parse bundle file '%s': %w", bundleFile, err)
			}

			forms, err := bundle.Forms()
			if err != nil {
				return fmt.Errorf("failed to build observations from bundle: %w", err)
			}

			apiClient, err := CreateClient()
			if err != nil {
				return err
			}

			ctx := context.Background()

			refs := make([]*sightline.ObservationRef, 0, len(forms))

			for index, form := range forms {
				ref, err := apiClient.Observations().Register(ctx, form)
				if err != nil {
					return fmt.Errorf("failed to register observation %d of %d: %w", index+1, len(forms), err)
				}

				refs = append(refs, ref)
			}

			return renderObservationRefs(refs)
		},
	}

	cmd.Flags().StringVarP(&bundleFile, "file", "f", "", "YAML bundle file with observations to register")

	return cmd
}

func newObservationsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get OBSERVATION_UUID",
		Short: "Get observation details",
		Long:  "Display a registered observation by UUID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			observationID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid observation UUID '%s': %w", args[0], err)
			}

			apiClient, err := CreateClient()
			if err != nil {
				return err
			}

			ctx := context.Background()

			observation, err := apiClient.Observations().Get(ctx, observationID)
			if err != nil {
				return fmt.Errorf("failed to get observation '%s': %w", args[0], err)
			}

			return renderObservation(observation)
		},
	}
}

func newObservationsListCommand() *cobra.Command {
	var (
		limit      int
		cursor     string
		entityID   string
		sourceID   string
		reporterID string
		seenAfter  string
		seenBefore string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List observations",
		Long:  "List registered observations with optional filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := sightline.NewListQuery().WithLimit(limit)

			if cursor != "" {
				query = query.WithCursor(cursor)
			}

			if entityID != "" {
				id, err := uuid.Parse(entityID)
				if err != nil {
					return fmt.Errorf("invalid entity UUID '%s': %w", entityID, err)
				}

				query = query.WithEntity(id)
			}

			if sourceID != "" {
				id, err := uuid.Parse(sourceID)
				if err != nil {
					return fmt.Errorf("invalid data source UUID '%s': %w", sourceID, err)
				}

				query = query.WithDataSource(id)
			}

			if reporterID != "" {
				id, err := uuid.Parse(reporterID)
				if err != nil {
					return fmt.Errorf("invalid reporter UUID '%s': %w", reporterID, err)
				}

				query = query.WithReporter(id)
			}

			if seenAfter != "" {
				seenTime, err := time.Parse(time.RFC3339, seenAfter)
				if err != nil {
					return fmt.Errorf("invalid --seen-after time '%s': %w", seenAfter, err)
				}

				query = query.WithSeenAfter(seenTime)
			}

			if seenBefore != "" {
				seenTime, err := time.Parse(time.RFC3339, seenBefore)
				if err != nil {
					return fmt.Errorf("invalid --seen-before time '%s': %w", seenBefore, err)
				}

				query = query.WithSeenBefore(seenTime)
			}

			apiClient, err := CreateClient()
			if err != nil {
				return err
			}

			ctx := context.Background()

			page, err := apiClient.Observations().List(ctx, query)
			if err != nil {
				return fmt.Errorf("failed to list observations: %w", err)
			}

			return renderObservationPage(page)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", constants.DefaultPageLimit, "maximum number of observations per page")
	cmd.Flags().StringVar(&cursor, "cursor", "", "pagination cursor from a previous page")
	cmd.Flags().StringVar(&entityID, "entity", "", "filter by entity UUID")
	cmd.Flags().StringVar(&sourceID, "data-source", "", "filter by data source UUID")
	cmd.Flags().StringVar(&reporterID, "reporter", "", "filter by reporter UUID")
	cmd.Flags().StringVar(&seenAfter, "seen-after", "", "only observations seen after this RFC3339 time")
	cmd.Flags().StringVar(&seenBefore, "seen-before", "", "only observations seen before this RFC3339 time")

	return cmd
}

func renderObservationRefs(refs []*sightline.ObservationRef) error {
	output := viper.GetString("output")
	switch output {
	case OutputFormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		return encoder.Encode(refs)
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		return encoder.Encode(refs)
	default:
		fmt.Printf("%s %d observation(s)\n", successColor("Registered"), len(refs))

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("UUID", "Registered At")

		for _, ref := range refs {
			_ = table.Append(ref.UUID.String(), formatTime(ref.RegisteredAt))
		}

		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		return nil
	}
}

func renderObservation(observation *sightline.GenericObservationView) error {
	output := viper.GetString("output")
	switch output {
	case OutputFormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		return encoder.Encode(observation)
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		return encoder.Encode(observation)
	default:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Property", "Value")

		_ = table.Append("UUID", observation.UUID.String())
		_ = table.Append("Share Level", string(observation.ShareLevel))
		_ = table.Append("Seen At", formatTime(observation.SeenAt))
		_ = table.Append("Registered At", formatTime(observation.RegisteredAt))
		_ = table.Append("Data Source", observation.DataSource.UUID.String())
		_ = table.Append("Reporter", observation.Reporter.UUID.String())
		_ = table.Append("Attribute Facts", strconv.Itoa(len(observation.Content.EntityAttributeValues)))
		_ = table.Append("Relationship Facts", strconv.Itoa(len(observation.Content.EntityRelationships)))

		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		return renderObservationFacts(observation)
	}
}

// renderObservationFacts prints the decoded facts below the summary table.
func renderObservationFacts(observation *sightline.GenericObservationView) error {
	if len(observation.Content.EntityAttributeValues) > 0 {
		fmt.Println("\nAttribute facts:")

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Entity", "Attribute", "Value", "Confidence")

		for _, fact := range observation.Content.EntityAttributeValues {
			_ = table.Append(
				formatEntity(&fact.Entity),
				string(fact.Attribute),
				truncateValue(fmt.Sprintf("%v", fact.Value), constants.ValueDisplayLength),
				formatConfidence(fact.Confidence),
			)
		}

		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}
	}

	if len(observation.Content.EntityRelationships) > 0 {
		fmt.Println("\nRelationship facts:")

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Source", "Kind", "Target", "Confidence")

		for _, fact := range observation.Content.EntityRelationships {
			_ = table.Append(
				formatEntity(&fact.Source),
				string(fact.Kind),
				formatEntity(&fact.Target),
				formatConfidence(fact.Confidence),
			)
		}

		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}
	}

	return nil
}

func renderObservationPage(page *sightline.Page[sightline.GenericObservationView]) error {
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
		table.Header("UUID", "Share Level", "Seen At", "Data Source", "Facts")

		for _, observation := range page.Items {
			factCount := len(observation.Content.EntityAttributeValues) + len(observation.Content.EntityRelationships)
			_ = table.Append(
				observation.UUID.String(),
				string(observation.ShareLevel),
				formatTime(observation.SeenAt),
				observation.DataSource.UUID.String(),
				strconv.Itoa(factCount),
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
