package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/sightline-io/sightline-go/pkg/sightline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// NewRelationshipsCommand creates the relationships command group
func NewRelationshipsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "relationships",
		Aliases: []string{"relationship", "rels"},
		Short:   "Query relationship forecasts",
		Long:    "Query the merged verdict on relationships between registered entities",
	}

	cmd.AddCommand(newRelationshipsForecastCommand())

	return cmd
}

func newRelationshipsForecastCommand() *cobra.Command {
	var (
		forecastAt   string
		includeFacts bool
	)

	cmd := &cobra.Command{
		Use:   "forecast SOURCE_UUID KIND TARGET_UUID",
		Short: "Forecast a relationship",
		Long:  "Display the merged verdict on a single relationship between two entities",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid source entity UUID '%s': %w", args[0], err)
			}

			kind, err := sightline.ParseRelationshipKind(args[1])
			if err != nil {
				return fmt.Errorf("invalid relationship kind '%s': %w", args[1], err)
			}

			targetID, err := uuid.Parse(args[2])
			if err != nil {
				return fmt.Errorf("invalid target entity UUID '%s': %w", args[2], err)
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

			forecast, err := apiClient.Relationships().Forecast(ctx, sourceID, kind, targetID, query)
			if err != nil {
				return fmt.Errorf("failed to forecast relationship '%s': %w", args[1], err)
			}

			return renderRelationshipForecast(forecast)
		},
	}

	cmd.Flags().StringVar(&forecastAt, "at", "", "evaluate the forecast as of this RFC3339 time")
	cmd.Flags().BoolVar(&includeFacts, "facts", false, "include the contributing facts")

	return cmd
}

func renderRelationshipForecast(forecast *sightline.RelationshipForecastView) error {
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
		table.Header("Property", "Value")

		_ = table.Append("Source", formatEntity(&forecast.Relationship.SourceEntity))
		_ = table.Append("Kind", string(forecast.Relationship.RelationKind))
		_ = table.Append("Target", formatEntity(&forecast.Relationship.TargetEntity))
		_ = table.Append("Confidence", formatConfidence(forecast.Confidence))

		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		return renderRelationshipFacts(forecast)
	}
}

func renderRelationshipFacts(forecast *sightline.RelationshipForecastView) error {
	if len(forecast.ValuableFacts) == 0 {
		return nil
	}

	fmt.Println("\nContributing facts:")

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Data Source", "Share Level", "Seen At", "Confidence", "Final")

	for _, fact := range forecast.ValuableFacts {
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

	return nil
}
