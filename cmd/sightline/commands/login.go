package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/sightline-io/sightline-go/internal/auth"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// NewLoginCommand creates the login command
func NewLoginCommand() *cobra.Command {
	var (
		apiEndpoint string
		apiKey      string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to Sightline",
		Long:  "Authenticate with a Sightline API endpoint using an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Get API endpoint
			if apiEndpoint == "" {
				apiEndpoint = viper.GetString("api")
			}

			if apiEndpoint == "" {
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("API endpoint: ")
				apiEndpoint, _ = reader.ReadString('\n')
				apiEndpoint = strings.TrimSpace(apiEndpoint)
			}

			if apiEndpoint == "" {
				return ErrAPIEndpointRequired
			}

			normalizedEndpoint, err := normalizeEndpoint(apiEndpoint)
			if err != nil {
				return fmt.Errorf("invalid API endpoint: %w", err)
			}

			// Get API key
			if apiKey == "" {
				apiKey = viper.GetString("api_key")
			}

			if apiKey == "" {
				fmt.Print("API key: ")
				byteKey, err := term.ReadPassword(int(syscall.Stdin))
				if err != nil {
					return fmt.Errorf("failed to read API key: %w", err)
				}
				apiKey = strings.TrimSpace(string(byteKey))
				fmt.Println()
			}

			if apiKey == "" {
				return ErrAPIKeyRequired
			}

			// Store the endpoint and key first so the token persister can
			// match this API when the exchanged token is written back.
			config := loadConfig()
			config.APIEndpoint = normalizedEndpoint
			config.APIKey = apiKey
			config.SkipSSLValidation = viper.GetBool("skip_ssl_validation")
			config.Token = ""
			config.TokenExpiresAt = nil

			if err := saveConfigStruct(config); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			// Exchange the key for a session token to verify the
			// credentials. The refresh persists the token through the
			// config persister.
			tokenManager, err := createTokenManager(config)
			if err != nil {
				return err
			}

			ctx := context.Background()
			if err := tokenManager.RefreshToken(ctx); err != nil {
				return fmt.Errorf("failed to authenticate with API key: %w", err)
			}

			fmt.Printf("Successfully logged in to %s\n", successColor(normalizedEndpoint))

			if configManager, ok := tokenManager.(*auth.ConfigTokenManager); ok {
				fmt.Printf("Session token expires at %s\n", configManager.GetTokenExpiry().Format(time.RFC3339))
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&apiEndpoint, "api", "a", "", "API endpoint URL")
	cmd.Flags().StringVarP(&apiKey, "api-key", "k", "", "API key used to obtain session tokens")

	return cmd
}

// NewLogoutCommand creates the logout command
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout from Sightline",
		Long:  "Clear the stored API key and session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			config.APIKey = ""
			config.Token = ""
			config.TokenExpiresAt = nil
			config.LastRefreshed = nil

			if err := saveConfigStruct(config); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			fmt.Println("Successfully logged out")

			return nil
		},
	}
}
