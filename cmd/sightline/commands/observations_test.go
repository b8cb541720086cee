package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewObservationsCommand(t *testing.T) {
	cmd := NewObservationsCommand()
	assert.Equal(t, "observations", cmd.Use)
	assert.Equal(t, []string{"observation", "obs"}, cmd.Aliases)
	assert.Equal(t, "Manage observations", cmd.Short)
	assert.Equal(t, "Register, view, and list generic observations", cmd.Long)

	// Check subcommands are added
	subcommands := cmd.Commands()
	assert.Len(t, subcommands, 3)

	var commandNames []string
	for _, subcmd := range subcommands {
		commandNames = append(commandNames, subcmd.Name())
	}

	assert.Contains(t, commandNames, "register")
	assert.Contains(t, commandNames, "get")
	assert.Contains(t, commandNames, "list")
}

func TestObservationsRegisterCommand(t *testing.T) {
	cmd := newObservationsRegisterCommand()
	assert.Equal(t, "register", cmd.Use)
	assert.Equal(t, "Register observations from a bundle", cmd.Short)
	assert.NotNil(t, cmd.RunE)

	fileFlag := cmd.Flags().Lookup("file")
	assert.NotNil(t, fileFlag)
	assert.Equal(t, "f", fileFlag.Shorthand)
}

func TestObservationsGetCommand(t *testing.T) {
	cmd := newObservationsGetCommand()
	assert.Equal(t, "get OBSERVATION_UUID", cmd.Use)
	assert.Equal(t, "Get observation details", cmd.Short)
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Args)
}

func TestObservationsListCommand(t *testing.T) {
	cmd := newObservationsListCommand()
	assert.Equal(t, "list", cmd.Use)
	assert.Equal(t, "List observations", cmd.Short)
	assert.NotNil(t, cmd.RunE)

	for _, flagName := range []string{"limit", "cursor", "entity", "data-source", "reporter", "seen-after", "seen-before"} {
		flag := cmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "expected flag %s", flagName)
	}

	limitFlag := cmd.Flags().Lookup("limit")
	assert.Equal(t, "30", limitFlag.DefValue)
}
