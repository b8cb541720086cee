// Package commands implements the subcommands of the sightline CLI.
package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sightline-io/sightline-go/pkg/sightline"
	"github.com/spf13/viper"
)

// Common string constants used throughout the commands package.
const (
	NotAvailable = "N/A"

	// Output formats.
	OutputFormatJSON = "json"
	OutputFormatYAML = "yaml"

	// Redacted stands in for secrets in human-readable output.
	Redacted = "[REDACTED]"
)

// Common static errors used throughout the commands package.
var (
	ErrAPIEndpointRequired = errors.New("API endpoint is required")
	ErrAPIKeyRequired      = errors.New("API key is required")
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrBundleFileRequired  = errors.New("bundle file is required (--file)")
	ErrEntityKeyRequired   = errors.New("at least one entity key is required (--key)")
	ErrInvalidKeyFormat    = errors.New("invalid key format, expected TYPE=VALUE")
	ErrUnknownConfigKey    = errors.New("unknown configuration key")
	ErrReservedConfigKey   = errors.New("configuration key is managed by login")
	ErrUnknownAPIDomain    = errors.New("no configured API endpoint matches domain")
)

// Color helpers for human-readable output. These respect the global
// no_color preference applied by ApplyColorPreference.
var (
	successColor = color.New(color.FgGreen).SprintFunc()
	warningColor = color.New(color.FgYellow).SprintFunc()
)

// ApplyColorPreference disables colored output when requested via the
// --no-color flag, the no_color config key, or SIGHTLINE_NO_COLOR.
func ApplyColorPreference() {
	if viper.GetBool("no_color") {
		color.NoColor = true
	}
}

// formatTime renders a timestamp for table output.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return NotAvailable
	}

	return t.Format(time.RFC3339)
}

// truncateValue shortens long attribute values for table output.
func truncateValue(value string, maxLen int) string {
	if len(value) <= maxLen {
		return value
	}

	return value[:maxLen-3] + "..."
}

// joinOrNA joins a list for table output, or N/A when empty.
func joinOrNA(items []string) string {
	if len(items) == 0 {
		return NotAvailable
	}

	return strings.Join(items, ", ")
}

// formatEntity renders an entity view compactly for table output. Reference
// views without a type render as the bare UUID.
func formatEntity(entity *sightline.EntityView) string {
	if entity.Type == "" {
		return entity.UUID.String()
	}

	keys := make([]string, 0, len(entity.Keys))
	for _, key := range entity.Keys {
		keys = append(keys, fmt.Sprintf("%s=%s", key.Type, key.Value))
	}

	return fmt.Sprintf("%s[%s]", entity.Type, strings.Join(keys, " "))
}

// formatConfidence renders a confidence value for table output.
func formatConfidence(confidence float64) string {
	return strconv.FormatFloat(confidence, 'f', 2, 64)
}
