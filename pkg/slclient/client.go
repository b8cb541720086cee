// Package slclient provides the main entry point for creating Sightline API clients
package slclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/sightline-io/sightline-go/internal/client"
	"github.com/sightline-io/sightline-go/pkg/sightline"
)

// New creates a new Sightline API client from the given configuration.
func New(ctx context.Context, config *sightline.Config) (sightline.Client, error) {
	if config == nil {
		return nil, sightline.ErrConfigRequired
	}

	if config.APIEndpoint == "" {
		return nil, sightline.ErrAPIEndpointRequired
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	endpoint, err := normalizeEndpoint(config.APIEndpoint)
	if err != nil {
		return nil, err
	}

	config.APIEndpoint = endpoint

	transport, err := developmentTransport(config)
	if err != nil {
		return nil, err
	}

	// Use the internal client implementation
	apiClient, err := client.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	if transport != nil {
		apiClient.HTTPClient().SetTransport(transport)
	}

	return apiClient, nil
}

// normalizeEndpoint trims a trailing slash and defaults the scheme to https.
func normalizeEndpoint(endpoint string) (string, error) {
	normalized := strings.TrimSuffix(endpoint, "/")
	if !strings.HasPrefix(normalized, "http://") && !strings.HasPrefix(normalized, "https://") {
		normalized = "https://" + normalized
	}

	parsed, err := url.Parse(normalized)
	if err != nil {
		return "", &sightline.ConfigurationError{Field: "APIEndpoint", Message: err.Error()}
	}

	if parsed.Host == "" {
		return "", fmt.Errorf("%w: %q", sightline.ErrNoHostInURL, endpoint)
	}

	return normalized, nil
}

// isDevelopmentEnvironment checks if we're in a development environment.
func isDevelopmentEnvironment() bool {
	devMode := os.Getenv("SIGHTLINE_DEV_MODE")

	return devMode == "true" || devMode == "1"
}

// developmentTransport builds the TLS-skipping transport when the config asks
// for it. Insecure TLS is only honored in explicit development environments.
func developmentTransport(config *sightline.Config) (*http.Transport, error) {
	if !config.SkipTLSVerify {
		return nil, nil
	}

	if !isDevelopmentEnvironment() {
		return nil, fmt.Errorf("%w (set SIGHTLINE_DEV_MODE=true)", sightline.ErrSkipTLSOnlyInDev)
	}

	return &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 -- Protected by development environment check above
	}, nil
}

// NewWithEndpoint creates a new client with just an API endpoint (no auth).
func NewWithEndpoint(ctx context.Context, endpoint string) (sightline.Client, error) {
	return New(ctx, &sightline.Config{
		APIEndpoint: endpoint,
	})
}

// NewWithToken creates a new client with an API endpoint and access token.
func NewWithToken(ctx context.Context, endpoint, token string) (sightline.Client, error) {
	if token == "" {
		return nil, sightline.ErrCredentialsRequired
	}

	return New(ctx, &sightline.Config{
		APIEndpoint: endpoint,
		AccessToken: token,
	})
}

// NewWithAPIKey creates a new client that exchanges the API key for session
// tokens on demand.
func NewWithAPIKey(ctx context.Context, endpoint, apiKey string) (sightline.Client, error) {
	if apiKey == "" {
		return nil, sightline.ErrCredentialsRequired
	}

	return New(ctx, &sightline.Config{
		APIEndpoint: endpoint,
		APIKey:      apiKey,
	})
}
