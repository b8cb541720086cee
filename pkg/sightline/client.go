package sightline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Static errors for err113 compliance.
var (
	ErrDeprecatedClientConstructor = errors.New("use github.com/sightline-io/sightline-go/pkg/slclient.New to create a client")
)

// ObservationsClient registers and reads generic observations.
type ObservationsClient interface {
	// Register finalizes the form and submits it. Validation errors are
	// returned before any request is made.
	Register(ctx context.Context, form *GenericObservationForm) (*ObservationRef, error)
	// Get fetches a registered observation by UUID.
	Get(ctx context.Context, id uuid.UUID) (*GenericObservationView, error)
	// List fetches one page of observations matching the query.
	List(ctx context.Context, query *ListQuery) (*Page[GenericObservationView], error)
	// ListWithPath fetches one page from an explicit path, for pagination
	// helpers.
	ListWithPath(ctx context.Context, path string, query *ListQuery) (*Page[GenericObservationView], error)
}

// EntitiesClient registers entities and reads forecasts about them.
type EntitiesClient interface {
	// Register makes the entity known to the platform and returns its
	// canonical reference.
	Register(ctx context.Context, entity *Entity) (*RefView, error)
	// Get fetches a registered entity by UUID.
	Get(ctx context.Context, id uuid.UUID) (*EntityView, error)
	// ForecastAttribute fetches the merged verdict on one attribute.
	ForecastAttribute(ctx context.Context, id uuid.UUID, attribute AttributeName, query *ListQuery) (*AttributeForecastView, error)
	// ForecastLinks fetches one page of the entity's forecasted links.
	ForecastLinks(ctx context.Context, id uuid.UUID, query *ListQuery) (*Page[LinkForecastView], error)
}

// RelationshipsClient reads relationship forecasts.
type RelationshipsClient interface {
	// Forecast fetches the merged verdict on a single relationship.
	Forecast(ctx context.Context, source uuid.UUID, kind RelationshipKind, target uuid.UUID, query *ListQuery) (*RelationshipForecastView, error)
}

// DataSourcesClient reads registered data sources.
type DataSourcesClient interface {
	// Get fetches a data source by UUID.
	Get(ctx context.Context, id uuid.UUID) (*DataSourceView, error)
	// List fetches one page of data sources.
	List(ctx context.Context, query *ListQuery) (*Page[DataSourceView], error)
}

// Client is the top-level API client. Implementations are safe for
// concurrent use.
type Client interface {
	Observations() ObservationsClient
	Entities() EntitiesClient
	Relationships() RelationshipsClient
	DataSources() DataSourcesClient
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// TokenProvider supplies access tokens for a custom authentication
// strategy.
type TokenProvider interface {
	// AccessToken returns a token to send as the Bearer credential.
	AccessToken(ctx context.Context) (string, error)
}

// Config represents client configuration for building a sightline.Client.
//
// # Authentication precedence
//
// The following precedence is applied by the concrete client implementation
// (see pkg/slclient and internal/client):
//  1. TokenProvider: if set, every request asks it for the Bearer token.
//  2. AccessToken: used directly as a static Bearer token. When combined
//     with an APIKey, the token is tried first and the client falls back to
//     the key exchange once it expires or fails with 401.
//  3. APIKey: exchanged at /auth/token for a short-lived session token,
//     which is cached and renewed before expiry.
//  4. No credentials: requests are sent without authentication and fail on
//     protected endpoints.
//
// # Timeouts, retries, and TLS
//
// Per-request timeouts should generally be controlled via context passed to
// client methods. Retry behavior can be tuned via RetryMax/RetryWaitMin/
// RetryWaitMax; only idempotent requests are retried unless RetryPOST is
// set. SkipTLSVerify is only honored when the environment variable
// SIGHTLINE_DEV_MODE is set to "true" or "1"; do not use it in production.
type Config struct {
	// Required fields
	// APIEndpoint: base URL for the API (e.g., "https://api.sightline.example").
	// slclient.New normalizes this value by trimming a trailing slash and
	// adding "https://" if no scheme is present.
	APIEndpoint string `validate:"required"`

	// Authentication options (provide one)
	// APIKey: long-lived key exchanged for short-lived session tokens.
	APIKey string
	// AccessToken: if set, used directly as a Bearer token. When combined
	// with APIKey, the token is tried first, then the client falls back to
	// the key exchange if a 401 is encountered.
	AccessToken string
	// TokenProvider: custom token source that overrides the built-in
	// strategies.
	TokenProvider TokenProvider

	// Optional configurations
	// HTTPTimeout: optional default HTTP timeout where supported. Most client
	// calls should rely on context timeouts; this may be used by helpers.
	HTTPTimeout time.Duration `validate:"gte=0"`
	// RetryMax: maximum number of retries for transient failures (>=500, 429,
	// and connection errors). If 0, retries are disabled.
	RetryMax int `validate:"gte=0"`
	// RetryWaitMin: minimum backoff between retries. Applied when RetryMax > 0.
	RetryWaitMin time.Duration `validate:"gte=0"`
	// RetryWaitMax: maximum backoff between retries. Applied when RetryMax > 0.
	RetryWaitMax time.Duration `validate:"gte=0"`
	// RetryPOST: also retry observation registrations. Off unless the caller
	// accepts possible duplicate registration.
	RetryPOST bool
	// Debug: enables verbose HTTP request/response logging when a Logger is provided.
	Debug bool
	// Logger: optional structured logger used by the HTTP layer and helpers.
	Logger Logger
	// SkipTLSVerify: if true, TLS verification is skipped, and only when
	// SIGHTLINE_DEV_MODE is set. Intended for local development.
	SkipTLSVerify bool
	// UserAgent: overrides the default User-Agent header sent by the client.
	UserAgent string
	// Cache: optional response cache configuration for read endpoints.
	Cache *CacheConfig
	// BatchWorkers: worker count for batch registration helpers. If 0, a
	// default is used.
	BatchWorkers int `validate:"gte=0"`
}

// NewClient creates a new API client
// Deprecated: Use github.com/sightline-io/sightline-go/pkg/slclient.New instead.
func NewClient(config *Config) (Client, error) {
	return nil, ErrDeprecatedClientConstructor
}
