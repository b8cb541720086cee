package constants

import "errors"

// API and configuration errors.
var (
	ErrNoEndpointConfigured = errors.New("no API endpoint configured, use 'sightline config set api <url>' or --api")
	ErrNotAuthenticated     = errors.New("not authenticated, run 'sightline login' first")
	ErrInvalidJWTFormat     = errors.New("invalid JWT format")
	ErrNoExpirationClaim    = errors.New("no expiration claim found")
	ErrAPIConfigNotFound    = errors.New("API configuration not found")
	ErrSSLOnlyInDev         = errors.New("skipping TLS verification is only allowed in development environments (set SIGHTLINE_DEV_MODE=true)")
)

// CLI argument errors.
var (
	ErrUUIDArgRequired     = errors.New("a UUID argument is required")
	ErrBundleFileRequired  = errors.New("a bundle file argument is required")
	ErrUnknownOutputFormat = errors.New("unknown output format")
)

// File system errors.
var (
	ErrNotRegularFile             = errors.New("path is not a regular file")
	ErrDirectoryTraversalDetected = errors.New("directory traversal detected in file path")
)
