package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sightline-io/sightline-go/internal/auth"
	"github.com/sightline-io/sightline-go/internal/constants"
	"github.com/sightline-io/sightline-go/internal/http"
	"github.com/sightline-io/sightline-go/pkg/sightline"
)

// Static errors for err113 compliance.
var (
	ErrAPIEndpointRequired      = errors.New("API endpoint is required")
	ErrNoTokenManagerConfigured = errors.New("no token manager configured")
	ErrStaticTokenCannotRefresh = errors.New("static token cannot be refreshed")
)

// Client implements the sightline.Client interface.
type Client struct {
	httpClient   *http.Client
	tokenManager auth.TokenManager
	baseURL      string
	logger       sightline.Logger

	// Resource clients
	observations  sightline.ObservationsClient
	entities      sightline.EntitiesClient
	relationships sightline.RelationshipsClient
	dataSources   sightline.DataSourcesClient
}

// createTokenManager creates appropriate token manager based on config.
func createTokenManager(config *sightline.Config) auth.TokenManager {
	if config.TokenProvider != nil {
		return &providerTokenManager{provider: config.TokenProvider}
	}

	if config.AccessToken != "" && config.APIKey != "" {
		return createFallbackTokenManager(config)
	}

	if config.AccessToken != "" {
		return &staticTokenManager{token: config.AccessToken}
	}

	if config.APIKey != "" {
		return createAPIKeyTokenManager(config)
	}

	return nil // No authentication
}

// createFallbackTokenManager creates a fallback token manager that tries the
// static token first.
func createFallbackTokenManager(config *sightline.Config) auth.TokenManager {
	return &fallbackTokenManager{
		staticToken: config.AccessToken,
		keyManager:  createAPIKeyTokenManager(config),
	}
}

// createAPIKeyTokenManager creates a token manager that exchanges the API
// key for short-lived session tokens.
func createAPIKeyTokenManager(config *sightline.Config) auth.TokenManager {
	return auth.NewAPIKeyTokenManager(&auth.APIKeyConfig{
		TokenURL: tokenURL(config),
		APIKey:   config.APIKey,
	})
}

// tokenURL returns the token exchange URL for the configured endpoint.
func tokenURL(config *sightline.Config) string {
	return config.APIEndpoint + "/auth/token"
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *sightline.Config) ([]http.Option, error) {
	var httpOpts []http.Option

	if config.Logger != nil {
		httpOpts = append(httpOpts, http.WithLogger(&loggerAdapter{logger: config.Logger}))
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, http.WithTimeout(config.HTTPTimeout))
	}

	if config.RetryMax > 0 {
		retryWaitMin := 1 * time.Second
		retryWaitMax := constants.ExtendedRetryWaitMax

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		httpOpts = append(httpOpts, http.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	if config.RetryPOST {
		httpOpts = append(httpOpts, http.WithRetryPOST(true))
	}

	if config.Cache != nil && config.Cache.Type != sightline.CacheTypeNone {
		cache, err := sightline.NewCacheFromConfig(config.Cache)
		if err != nil {
			return nil, fmt.Errorf("creating response cache: %w", err)
		}

		httpOpts = append(httpOpts, http.WithResponseCache(sightline.NewCacheManager(cache, config.Cache.Options)))
	}

	return httpOpts, nil
}

// New builds a client from the configuration. No network traffic happens
// here; credentials are exercised lazily on the first request.
func New(_ context.Context, config *sightline.Config) (*Client, error) {
	if config.APIEndpoint == "" {
		return nil, ErrAPIEndpointRequired
	}

	// Create token manager based on available credentials
	tokenManager := createTokenManager(config)

	// Create HTTP client options
	httpOpts, err := createHTTPClientOptions(config)
	if err != nil {
		return nil, err
	}

	// Create HTTP client
	httpClient := http.NewClient(config.APIEndpoint, tokenManager, httpOpts...)

	client := &Client{
		httpClient:   httpClient,
		tokenManager: tokenManager,
		baseURL:      config.APIEndpoint,
		logger:       config.Logger,
	}

	// Initialize resource clients
	client.initializeResourceClients()

	return client, nil
}

// NewWithTokenManager creates a client with a custom token manager.
func NewWithTokenManager(config *sightline.Config, tokenManager auth.TokenManager) (*Client, error) {
	if config.APIEndpoint == "" {
		return nil, ErrAPIEndpointRequired
	}

	httpOpts, err := createHTTPClientOptions(config)
	if err != nil {
		return nil, err
	}

	// Create HTTP client with the provided token manager
	httpClient := http.NewClient(config.APIEndpoint, tokenManager, httpOpts...)

	client := &Client{
		httpClient:   httpClient,
		tokenManager: tokenManager,
		baseURL:      config.APIEndpoint,
		logger:       config.Logger,
	}

	// Initialize resource clients
	client.initializeResourceClients()

	return client, nil
}

// GetTokenManager returns the token manager for this client.
func (c *Client) GetTokenManager() auth.TokenManager {
	return c.tokenManager
}

// HTTPClient returns the underlying transport, for TLS configuration.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// GetToken returns the current access token from the token manager.
func (c *Client) GetToken(ctx context.Context) (string, error) {
	if c.tokenManager == nil {
		return "", ErrNoTokenManagerConfigured
	}

	token, err := c.tokenManager.GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}

	return token, nil
}

// Resource client accessors

// Observations implements sightline.Client.Observations.
func (c *Client) Observations() sightline.ObservationsClient {
	return c.observations
}

// Entities implements sightline.Client.Entities.
func (c *Client) Entities() sightline.EntitiesClient {
	return c.entities
}

// Relationships implements sightline.Client.Relationships.
func (c *Client) Relationships() sightline.RelationshipsClient {
	return c.relationships
}

// DataSources implements sightline.Client.DataSources.
func (c *Client) DataSources() sightline.DataSourcesClient {
	return c.dataSources
}

// initializeResourceClients initializes all resource-specific clients.
func (c *Client) initializeResourceClients() {
	c.observations = NewObservationsClient(c.httpClient)
	c.entities = NewEntitiesClient(c.httpClient)
	c.relationships = NewRelationshipsClient(c.httpClient)
	c.dataSources = NewDataSourcesClient(c.httpClient)
}

// annotateNotFound records which lookup failed on a 404 error.
func annotateNotFound(err error, resource string, id uuid.UUID) error {
	var notFound *sightline.NotFoundError
	if errors.As(err, &notFound) {
		notFound.Resource = resource
		notFound.UUID = id
	}

	return err
}

// staticTokenManager provides a static token.
type staticTokenManager struct {
	token string
}

func (m *staticTokenManager) GetToken(ctx context.Context) (string, error) {
	return m.token, nil
}

func (m *staticTokenManager) RefreshToken(ctx context.Context) error {
	return ErrStaticTokenCannotRefresh
}

func (m *staticTokenManager) SetToken(token string, expiresAt time.Time) {
	m.token = token
}

// providerTokenManager asks a caller-supplied TokenProvider on every
// request.
type providerTokenManager struct {
	provider sightline.TokenProvider
}

func (m *providerTokenManager) GetToken(ctx context.Context) (string, error) {
	token, err := m.provider.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get token from provider: %w", err)
	}

	return token, nil
}

func (m *providerTokenManager) RefreshToken(ctx context.Context) error {
	// The provider is consulted on every request; there is nothing cached
	// to invalidate.
	return nil
}

func (m *providerTokenManager) SetToken(token string, expiresAt time.Time) {}

// loggerAdapter adapts sightline.Logger to http.Logger.
type loggerAdapter struct {
	logger sightline.Logger
}

func (l *loggerAdapter) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug(msg, fields)
}

func (l *loggerAdapter) Info(msg string, fields map[string]interface{}) {
	l.logger.Info(msg, fields)
}

func (l *loggerAdapter) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn(msg, fields)
}

func (l *loggerAdapter) Error(msg string, fields map[string]interface{}) {
	l.logger.Error(msg, fields)
}

// fallbackTokenManager serves the static token until it is rejected, then
// switches to the API key exchange for good.
type fallbackTokenManager struct {
	staticToken   string
	keyManager    auth.TokenManager
	mutex         sync.Mutex
	usingExchange bool
}

func (m *fallbackTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mutex.Lock()
	usingExchange := m.usingExchange
	staticToken := m.staticToken
	m.mutex.Unlock()

	if !usingExchange && staticToken != "" {
		return staticToken, nil
	}

	token, err := m.keyManager.GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get session token: %w", err)
	}

	return token, nil
}

func (m *fallbackTokenManager) RefreshToken(ctx context.Context) error {
	m.mutex.Lock()
	firstSwitch := !m.usingExchange
	m.usingExchange = true
	m.mutex.Unlock()

	// On the first refresh the static token was rejected. Get a fresh
	// session token instead of trying to refresh the static one.
	if firstSwitch {
		if _, err := m.keyManager.GetToken(ctx); err != nil {
			return fmt.Errorf("failed to get session token during refresh: %w", err)
		}

		return nil
	}

	if err := m.keyManager.RefreshToken(ctx); err != nil {
		return fmt.Errorf("failed to refresh session token: %w", err)
	}

	return nil
}

func (m *fallbackTokenManager) SetToken(token string, expiresAt time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.usingExchange {
		m.keyManager.SetToken(token, expiresAt)
	} else {
		m.staticToken = token
	}
}
