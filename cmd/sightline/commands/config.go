package commands

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/sightline-io/sightline-go/internal/auth"
	"github.com/sightline-io/sightline-go/internal/client"
	"github.com/sightline-io/sightline-go/internal/constants"
	"github.com/sightline-io/sightline-go/pkg/sightline"
	"github.com/sightline-io/sightline-go/pkg/slclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the persisted CLI configuration.
type Config struct {
	APIEndpoint       string     `json:"api,omitempty"              yaml:"api,omitempty"`
	APIKey            string     `json:"api_key,omitempty"          yaml:"api_key,omitempty"`
	Token             string     `json:"token,omitempty"            yaml:"token,omitempty"`
	TokenExpiresAt    *time.Time `json:"token_expires_at,omitempty" yaml:"token_expires_at,omitempty"`
	LastRefreshed     *time.Time `json:"last_refreshed,omitempty"   yaml:"last_refreshed,omitempty"`
	Output            string     `json:"output,omitempty"           yaml:"output,omitempty"`
	NoColor           bool       `json:"no_color"                   yaml:"no_color"`
	SkipSSLValidation bool       `json:"skip_ssl_validation"        yaml:"skip_ssl_validation"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Manage Sightline CLI configuration including the API endpoint and output settings",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigGetCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())
	cmd.AddCommand(newConfigClearCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current CLI configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			output := viper.GetString("output")
			switch output {
			case OutputFormatJSON:
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")

				return encoder.Encode(config)
			case OutputFormatYAML:
				encoder := yaml.NewEncoder(os.Stdout)

				return encoder.Encode(config)
			default:
				return displayConfigTable(config)
			}
		},
	}
}

func newConfigGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Get a configuration value",
		Long:  "Display a single configuration value. Secret values are redacted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := configValueForKey(loadConfig(), args[0])
			if err != nil {
				return err
			}

			fmt.Println(value)

			return nil
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a specific configuration value and persist it to the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setConfigValue(loadConfig(), args[0], args[1])
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Long:  "Remove a specific configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return unsetConfigValue(loadConfig(), args[0])
		},
	}
}

func newConfigClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear configuration",
		Long:  "Remove all configuration settings including stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile := viper.ConfigFileUsed()
			if configFile == "" {
				home, _ := os.UserHomeDir()
				configFile = filepath.Join(home, ".sightline", "config.yml")
			}

			err := os.Remove(configFile)
			if err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove config file: %w", err)
			}

			return outputConfigUpdateResult("Cleared", "all configuration", "")
		},
	}
}

func loadConfig() *Config {
	config := &Config{
		APIEndpoint:       viper.GetString("api"),
		APIKey:            viper.GetString("api_key"),
		Token:             viper.GetString("token"),
		Output:            viper.GetString("output"),
		NoColor:           viper.GetBool("no_color"),
		SkipSSLValidation: viper.GetBool("skip_ssl_validation"),
	}

	if expiry := viper.GetTime("token_expires_at"); !expiry.IsZero() {
		config.TokenExpiresAt = &expiry
	}

	if refreshed := viper.GetTime("last_refreshed"); !refreshed.IsZero() {
		config.LastRefreshed = &refreshed
	}

	return config
}

func saveConfigStruct(config *Config) error {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}

		configDir := filepath.Join(home, ".sightline")

		err = os.MkdirAll(configDir, constants.ConfigDirPerm)
		if err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}

		configFile = filepath.Join(configDir, "config.yml")
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	syncViperConfig(config)

	return nil
}

// syncViperConfig keeps the in-process view consistent with what was just
// written, so later loads in the same invocation see the saved values.
func syncViperConfig(config *Config) {
	viper.Set("api", config.APIEndpoint)
	viper.Set("api_key", config.APIKey)
	viper.Set("token", config.Token)
	viper.Set("output", config.Output)
	viper.Set("no_color", config.NoColor)
	viper.Set("skip_ssl_validation", config.SkipSSLValidation)

	if config.TokenExpiresAt != nil {
		viper.Set("token_expires_at", config.TokenExpiresAt.Format(time.RFC3339))
	} else {
		viper.Set("token_expires_at", "")
	}

	if config.LastRefreshed != nil {
		viper.Set("last_refreshed", config.LastRefreshed.Format(time.RFC3339))
	} else {
		viper.Set("last_refreshed", "")
	}
}

// extractDomainFromEndpoint reduces an endpoint URL to its bare domain. The
// domain identifies the API when refreshed tokens are persisted.
func extractDomainFromEndpoint(endpoint string) string {
	domain := endpoint
	if strings.HasPrefix(domain, "https://") {
		domain = strings.TrimPrefix(domain, "https://")
	} else if strings.HasPrefix(domain, "http://") {
		domain = strings.TrimPrefix(domain, "http://")
	}

	// Remove path if present
	if idx := strings.Index(domain, "/"); idx != -1 {
		domain = domain[:idx]
	}

	// Remove port if present
	if idx := strings.Index(domain, ":"); idx != -1 {
		domain = domain[:idx]
	}

	return domain
}

// normalizeEndpoint validates and normalizes a Sightline API endpoint URL.
func normalizeEndpoint(endpoint string) (string, error) {
	// Add https:// if no protocol is specified
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	parsedURL, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}

	if parsedURL.Host == "" {
		return "", fmt.Errorf("no host specified in URL")
	}

	// Remove trailing slash and path for consistency
	normalizedURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)

	return normalizedURL, nil
}

// CreateClient creates a Sightline client from the CLI configuration. When an
// API key is configured the client refreshes session tokens automatically and
// persists them back to the config file.
func CreateClient() (sightline.Client, error) {
	config, err := prepareClientConfig()
	if err != nil {
		return nil, err
	}

	tokenManager, err := createTokenManager(config)
	if err != nil {
		return nil, err
	}

	return createFinalClient(config, tokenManager)
}

func prepareClientConfig() (*Config, error) {
	config := loadConfig()

	if config.APIEndpoint == "" {
		return nil, fmt.Errorf("%w, use 'sightline login' first", ErrAPIEndpointRequired)
	}

	return config, nil
}

func createTokenManager(config *Config) (auth.TokenManager, error) {
	if config.APIKey == "" {
		return nil, nil
	}

	httpClient, err := tokenExchangeHTTPClient(config.SkipSSLValidation)
	if err != nil {
		return nil, err
	}

	apiKeyConfig := &auth.APIKeyConfig{
		TokenURL:   strings.TrimSuffix(config.APIEndpoint, "/") + "/auth/token",
		APIKey:     config.APIKey,
		HTTPClient: httpClient,
	}

	tokenManager := auth.NewConfigTokenManager(apiKeyConfig, NewConfigPersister(),
		extractDomainFromEndpoint(config.APIEndpoint), config.Token, initialTokenExpiry(config))

	return tokenManager, nil
}

func initialTokenExpiry(config *Config) time.Time {
	if config.TokenExpiresAt != nil {
		return *config.TokenExpiresAt
	}

	return time.Time{}
}

func createFinalClient(config *Config, tokenManager auth.TokenManager) (sightline.Client, error) {
	clientConfig := &sightline.Config{
		APIEndpoint:   config.APIEndpoint,
		SkipTLSVerify: config.SkipSSLValidation,
	}

	if tokenManager != nil {
		return createClientWithTokenManager(clientConfig, tokenManager)
	}

	if config.Token != "" {
		clientConfig.AccessToken = config.Token

		ctx := context.Background()

		apiClient, err := slclient.New(ctx, clientConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create client: %w", err)
		}

		return apiClient, nil
	}

	return nil, fmt.Errorf("%w, use 'sightline login' first", ErrNotAuthenticated)
}

// createClientWithTokenManager creates a client with a custom token manager.
func createClientWithTokenManager(config *sightline.Config, tokenManager auth.TokenManager) (sightline.Client, error) {
	apiClient, err := client.NewWithTokenManager(config, tokenManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create client with token manager: %w", err)
	}

	transport, err := developmentTransport(config.SkipTLSVerify)
	if err != nil {
		return nil, err
	}

	if transport != nil {
		apiClient.HTTPClient().SetTransport(transport)
	}

	return apiClient, nil
}

// developmentTransport returns a TLS-skipping transport when requested. The
// skip is only honored when SIGHTLINE_DEV_MODE is set, the same check
// performed by slclient for static-token clients.
func developmentTransport(skipTLS bool) (*http.Transport, error) {
	if !skipTLS {
		return nil, nil
	}

	if !isDevelopmentEnvironment() {
		return nil, fmt.Errorf("%w (set SIGHTLINE_DEV_MODE=true)", sightline.ErrSkipTLSOnlyInDev)
	}

	return &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, // #nosec G402 -- Protected by development environment check above
		},
	}, nil
}

// tokenExchangeHTTPClient returns the HTTP client used for API key exchanges,
// or nil to use the default.
func tokenExchangeHTTPClient(skipTLS bool) (*http.Client, error) {
	transport, err := developmentTransport(skipTLS)
	if err != nil {
		return nil, err
	}

	if transport == nil {
		return nil, nil
	}

	return &http.Client{
		Timeout:   constants.ShortHTTPTimeout,
		Transport: transport,
	}, nil
}

func isDevelopmentEnvironment() bool {
	devMode := os.Getenv("SIGHTLINE_DEV_MODE")

	return devMode == "true" || devMode == "1"
}

func configValueForKey(config *Config, key string) (string, error) {
	switch key {
	case "api":
		return config.APIEndpoint, nil
	case "api_key":
		if config.APIKey == "" {
			return "", nil
		}

		return Redacted, nil
	case "token":
		if config.Token == "" {
			return "", nil
		}

		return Redacted, nil
	case "output":
		return config.Output, nil
	case "no_color":
		return strconv.FormatBool(config.NoColor), nil
	case "skip_ssl_validation":
		return strconv.FormatBool(config.SkipSSLValidation), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownConfigKey, key)
	}
}

func setConfigValue(config *Config, key, value string) error {
	switch key {
	case "api":
		config.APIEndpoint = value
	case "output":
		config.Output = value
	case "no_color":
		config.NoColor = parseBoolValue(value)
	case "skip_ssl_validation":
		config.SkipSSLValidation = parseBoolValue(value)
	case "api_key", "token", "token_expires_at", "last_refreshed":
		return fmt.Errorf("%w: %s. Use 'sightline login' or 'sightline logout' instead", ErrReservedConfigKey, key)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownConfigKey, key)
	}

	err := saveConfigStruct(config)
	if err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	return outputConfigUpdateResult("Set", key, value)
}

func unsetConfigValue(config *Config, key string) error {
	switch key {
	case "api":
		config.APIEndpoint = ""
	case "output":
		config.Output = ""
	case "no_color":
		config.NoColor = false
	case "skip_ssl_validation":
		config.SkipSSLValidation = false
	case "api_key", "token", "token_expires_at", "last_refreshed":
		return fmt.Errorf("%w: %s. Use 'sightline logout' instead", ErrReservedConfigKey, key)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownConfigKey, key)
	}

	err := saveConfigStruct(config)
	if err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	return outputConfigUpdateResult("Unset", key, "")
}

func parseBoolValue(value string) bool {
	return value == "true" || value == "1"
}

func displayConfigTable(config *Config) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Property", "Value")

	err := addEndpointConfigRows(table, config)
	if err != nil {
		return err
	}

	err = addCredentialConfigRows(table, config)
	if err != nil {
		return err
	}

	addOutputConfigRows(table, config)

	err = table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func addEndpointConfigRows(table *tablewriter.Table, config *Config) error {
	endpoint := config.APIEndpoint
	if endpoint == "" {
		endpoint = NotAvailable
	}

	err := table.Append([]string{"API Endpoint", endpoint})
	if err != nil {
		return fmt.Errorf("failed to append API endpoint to config table: %w", err)
	}

	err = table.Append([]string{"Skip SSL Validation", strconv.FormatBool(config.SkipSSLValidation)})
	if err != nil {
		return fmt.Errorf("failed to append SSL skip setting to config table: %w", err)
	}

	return nil
}

func addCredentialConfigRows(table *tablewriter.Table, config *Config) error {
	secretRows := map[string]string{
		"API Key": config.APIKey,
		"Token":   config.Token,
	}

	for label, value := range secretRows {
		if value != "" {
			err := table.Append([]string{label, Redacted})
			if err != nil {
				return fmt.Errorf("failed to append %s to config table: %w", label, err)
			}
		}
	}

	if config.TokenExpiresAt != nil {
		err := table.Append([]string{"Token Expires At", config.TokenExpiresAt.Format(time.RFC3339)})
		if err != nil {
			return fmt.Errorf("failed to append token expiry to config table: %w", err)
		}
	}

	if config.LastRefreshed != nil {
		err := table.Append([]string{"Last Refreshed", config.LastRefreshed.Format(time.RFC3339)})
		if err != nil {
			return fmt.Errorf("failed to append last refreshed to config table: %w", err)
		}
	}

	return nil
}

func addOutputConfigRows(table *tablewriter.Table, config *Config) {
	_ = table.Append([]string{"Output", config.Output})
	_ = table.Append([]string{"No Color", strconv.FormatBool(config.NoColor)})
}

// outputConfigUpdateResult outputs configuration update results in the
// requested format.
func outputConfigUpdateResult(action, key, value string) error {
	output := viper.GetString("output")

	switch output {
	case OutputFormatJSON:
		return outputConfigAsJSON(buildConfigResult(action, key, value))
	case OutputFormatYAML:
		return outputConfigAsYAML(buildConfigResult(action, key, value))
	default:
		return outputConfigAsTable(action, key, value)
	}
}

func buildConfigResult(action, key, value string) map[string]string {
	result := map[string]string{
		"action": action,
		"key":    key,
	}

	if value != "" {
		result["value"] = value
	}

	return result
}

func outputConfigAsJSON(result map[string]string) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(result)
	if err != nil {
		return fmt.Errorf("failed to encode config result as JSON: %w", err)
	}

	return nil
}

func outputConfigAsYAML(result map[string]string) error {
	encoder := yaml.NewEncoder(os.Stdout)

	err := encoder.Encode(result)
	if err != nil {
		return fmt.Errorf("failed to encode config result as YAML: %w", err)
	}

	return nil
}

func outputConfigAsTable(action, key, value string) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Property", "Value")

	err := table.Append([]string{"Action", action})
	if err != nil {
		return fmt.Errorf("failed to append action to table: %w", err)
	}

	err = table.Append([]string{"Key", key})
	if err != nil {
		return fmt.Errorf("failed to append key to table: %w", err)
	}

	if value != "" {
		err := table.Append([]string{"Value", value})
		if err != nil {
			return fmt.Errorf("failed to append value to table: %w", err)
		}
	}

	err = table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}
