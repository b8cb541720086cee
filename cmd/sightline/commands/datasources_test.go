package commands_test

import (
	"testing"

	"github.com/sightline-io/sightline-go/cmd/sightline/commands"
	"github.com/stretchr/testify/assert"
)

func TestNewDataSourcesCommand(t *testing.T) {
	t.Parallel()

	cmd := commands.NewDataSourcesCommand()
	assert.Equal(t, "data-sources", cmd.Use)
	assert.Equal(t, []string{"data-source", "ds"}, cmd.Aliases)
	assert.Equal(t, "Inspect data sources", cmd.Short)

	// Check subcommands are added
	subcommands := cmd.Commands()
	assert.Len(t, subcommands, 2)

	commandNames := make([]string, 0, len(subcommands))
	for _, subcmd := range subcommands {
		commandNames = append(commandNames, subcmd.Name())
	}

	assert.Contains(t, commandNames, "list")
	assert.Contains(t, commandNames, "get")
}

func TestDataSourcesListCommand(t *testing.T) {
	t.Parallel()

	root := commands.NewDataSourcesCommand()
	cmd := findSubcommand(root, "list")

	assert.NotNil(t, cmd)
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("limit"))
	assert.NotNil(t, cmd.Flags().Lookup("cursor"))
}

func TestDataSourcesGetCommand(t *testing.T) {
	t.Parallel()

	root := commands.NewDataSourcesCommand()
	cmd := findSubcommand(root, "get")

	assert.NotNil(t, cmd)
	assert.Equal(t, "get DATA_SOURCE_UUID", cmd.Use)
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Args)
}
