package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/sightline-io/sightline-go/internal/constants"
	"github.com/sightline-io/sightline-go/pkg/sightline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// NewDataSourcesCommand creates the data-sources command group
func NewDataSourcesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "data-sources",
		Aliases: []string{"data-source", "ds"},
		Short:   "Inspect data sources",
		Long:    "List and inspect the data sources registered on the platform",
	}

	cmd.AddCommand(newDataSourcesListCommand())
	cmd.AddCommand(newDataSourcesGetCommand())

	return cmd
}

func newDataSourcesListCommand() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List data sources",
		Long:  "List the data sources registered on the platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := sightline.NewListQuery().WithLimit(limit)

			if cursor != "" {
				query = query.WithCursor(cursor)
			}

			apiClient, err := CreateClient()
			if err != nil {
				return err
			}

			ctx := context.Background()

			page, err := apiClient.DataSources().List(ctx, query)
			if err != nil {
				return fmt.Errorf("failed to list data sources: %w", err)
			}

			return renderDataSourcePage(page)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", constants.DefaultPageLimit, "maximum number of data sources per page")
	cmd.Flags().StringVar(&cursor, "cursor", "", "pagination cursor from a previous page")

	return cmd
}

func newDataSourcesGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get DATA_SOURCE_UUID",
		Short: "Get data source details",
		Long:  "Display a single data source by UUID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid data source UUID '%s': %w", args[0], err)
			}

			apiClient, err := CreateClient()
			if err != nil {
				return err
			}

			ctx := context.Background()

			source, err := apiClient.DataSources().Get(ctx, sourceID)
			if err != nil {
				return fmt.Errorf("failed to get data source '%s': %w", args[0], err)
			}

			return renderDataSource(source)
		},
	}
}

func renderDataSourcePage(page *sightline.Page[sightline.DataSourceView]) error {
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
		table.Header("UUID", "Name", "Long Name", "Confidence")

		for _, source := range page.Items {
			longName := source.LongName
			if longName == "" {
				longName = NotAvailable
			}

			_ = table.Append(
				source.UUID.String(),
				source.Name,
				longName,
				formatConfidence(source.Confidence),
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

func renderDataSource(source *sightline.DataSourceView) error {
	output := viper.GetString("output")
	switch output {
	case OutputFormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		return encoder.Encode(source)
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		return encoder.Encode(source)
	default:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Property", "Value")

		_ = table.Append("UUID", source.UUID.String())
		_ = table.Append("Name", source.Name)

		if source.LongName != "" {
			_ = table.Append("Long Name", source.LongName)
		}

		if source.Type != nil {
			_ = table.Append("Type", source.Type.UUID.String())
		}

		_ = table.Append("Confidence", formatConfidence(source.Confidence))

		if source.URL != "" {
			_ = table.Append("URL", source.URL)
		}

		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		return nil
	}
}
