package commands_test

import (
	"testing"

	"github.com/sightline-io/sightline-go/cmd/sightline/commands"
	"github.com/stretchr/testify/assert"
)

func TestNewRelationshipsCommand(t *testing.T) {
	t.Parallel()

	cmd := commands.NewRelationshipsCommand()
	assert.Equal(t, "relationships", cmd.Use)
	assert.Equal(t, []string{"relationship", "rels"}, cmd.Aliases)
	assert.Equal(t, "Query relationship forecasts", cmd.Short)

	// Check subcommands are added
	subcommands := cmd.Commands()
	assert.Len(t, subcommands, 1)
	assert.Equal(t, "forecast", subcommands[0].Name())
}

func TestRelationshipsForecastCommand(t *testing.T) {
	t.Parallel()

	root := commands.NewRelationshipsCommand()
	cmd := findSubcommand(root, "forecast")

	assert.NotNil(t, cmd)
	assert.Equal(t, "forecast SOURCE_UUID KIND TARGET_UUID", cmd.Use)
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Args)

	assert.NotNil(t, cmd.Flags().Lookup("at"))
	assert.NotNil(t, cmd.Flags().Lookup("facts"))
}
