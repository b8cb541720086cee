package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations such as token exchange.
	ShortHTTPTimeout = 10 * time.Second
)

// Client identification.
const (
	// DefaultUserAgent is sent when the caller does not override it.
	DefaultUserAgent = "sightline-go/1.0"
)

// Retry limits.
const (
	// DefaultRetryMax is the maximum number of retries when retry is enabled.
	DefaultRetryMax = 3

	// LowRetryMax is used where a single extra attempt is enough.
	LowRetryMax = 2

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second

	// ExtendedRetryWaitMax is used for operations that need longer waits.
	ExtendedRetryWaitMax = 30 * time.Second
)

// Concurrency and batching limits.
const (
	// DefaultBatchWorkers is the default number of workers for bulk registration.
	DefaultBatchWorkers = 4

	// MaxBatchWorkers caps the worker count for bulk registration.
	MaxBatchWorkers = 16

	// BufferSize is the default buffer size for channels.
	BufferSize = 100
)

// Authentication.
const (
	// TokenExpirationBuffer is the buffer time before token expiration.
	TokenExpirationBuffer = 30 * time.Second

	// DefaultSessionTokenTTL is assumed when a session token carries no expiry.
	DefaultSessionTokenTTL = 5 * time.Minute

	// APIKeyHeader carries the API key on token exchange requests.
	APIKeyHeader = "X-Api-Key"
)

// Observation validation.
const (
	// SeenAtSkewTolerance is how far into the future a seen-at time may lie.
	SeenAtSkewTolerance = 5 * time.Minute
)

// Pagination limits.
const (
	// DefaultPageLimit is the default number of items requested per page.
	DefaultPageLimit = 30

	// MaxPageLimit is the largest page size the API accepts.
	MaxPageLimit = 100

	// MaxPages bounds iteration to protect against cursor loops.
	MaxPages = 50
)

// Cache sizes and lifetimes.
const (
	// DefaultCacheSize is the default cache entry limit.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is the default cache time-to-live.
	DefaultCacheTTL = 5 * time.Minute

	// CacheMinTTL is the minimum cache time-to-live.
	CacheMinTTL = 30 * time.Second

	// MaxCacheValueSize is the maximum size for cached values (1MB).
	MaxCacheValueSize = 1024 * 1024

	// ObservationCacheTTL is the TTL for observation views.
	ObservationCacheTTL = 10 * time.Minute

	// ForecastCacheTTL is the TTL for forecast responses, which decay quickly.
	ForecastCacheTTL = 1 * time.Minute
)

// Circuit breaker thresholds.
const (
	// CircuitBreakerThreshold is the failure threshold for the circuit breaker.
	CircuitBreakerThreshold = 5

	// CircuitBreakerSuccessThreshold is the success threshold for recovery.
	CircuitBreakerSuccessThreshold = 2

	// CircuitBreakerTimeout is how long the breaker stays open.
	CircuitBreakerTimeout = 30 * time.Second

	// StatusOpen is the open circuit breaker state.
	StatusOpen = "open"

	// StatusHalfOpen is the half-open circuit breaker state.
	StatusHalfOpen = "half-open"
)

// Output formats.
const (
	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"

	// FormatTable for table output format.
	FormatTable = "table"
)

// Display constants.
const (
	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"

	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"

	// ValueDisplayLength is the length for displaying attribute values.
	ValueDisplayLength = 60

	// JSONIndentSize is the number of spaces for JSON indentation.
	JSONIndentSize = 2
)
