package sightline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrorView is the error document returned by the API.
type ErrorView struct {
	Code    string         `json:"code"    yaml:"code"`
	Message string         `json:"message" yaml:"message"`
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

// Error implements the error interface.
func (e *ErrorView) Error() string {
	if e.Code == "" {
		return e.Message
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ParseErrorView parses an API error document from JSON.
func ParseErrorView(data []byte) (*ErrorView, error) {
	var view ErrorView

	err := json.Unmarshal(data, &view)
	if err != nil {
		return nil, fmt.Errorf("unmarshaling error response: %w", err)
	}

	return &view, nil
}

// validationKind marks errors caused by caller data violating a local
// invariant. They are raised before any network I/O and are always
// recoverable by fixing the input.
type validationKind interface {
	validationError()
}

// ValidationError reports caller data that violates a local invariant.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) validationError() {}

// InvalidKeyTypeError reports a key type outside the allowed set for the
// entity's type.
type InvalidKeyTypeError struct {
	EntityType EntityType
	KeyType    EntityKeyType
}

func (e *InvalidKeyTypeError) Error() string {
	return fmt.Sprintf("key type %s is not allowed for %s entities (allowed: %v)",
		e.KeyType, e.EntityType, e.EntityType.AllowedKeyTypes())
}

func (e *InvalidKeyTypeError) validationError() {}

// EmptyValueError reports an empty or whitespace-only value where content is
// required.
type EmptyValueError struct {
	Field string
}

func (e *EmptyValueError) Error() string {
	return fmt.Sprintf("%s must not be empty", e.Field)
}

func (e *EmptyValueError) validationError() {}

// IncompleteEntityError reports an entity used in a fact before it was given
// at least one key.
type IncompleteEntityError struct {
	EntityType EntityType
}

func (e *IncompleteEntityError) Error() string {
	return fmt.Sprintf("%s entity has no keys", e.EntityType)
}

func (e *IncompleteEntityError) validationError() {}

// InvalidConfidenceError reports a confidence outside [0, 1].
type InvalidConfidenceError struct {
	Confidence float64
}

func (e *InvalidConfidenceError) Error() string {
	return fmt.Sprintf("confidence %v is outside [0, 1]", e.Confidence)
}

func (e *InvalidConfidenceError) validationError() {}

// TypeMismatchError reports a fact value whose shape does not match the
// attribute's expected value kind.
type TypeMismatchError struct {
	Attribute AttributeName
	Expected  AttributeValueKind
	Value     any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("attribute %s expects a %s value, got %T",
		e.Attribute, e.Expected, e.Value)
}

func (e *TypeMismatchError) validationError() {}

// InvalidTimestampError reports a seen-at time the builder rejects.
type InvalidTimestampError struct {
	Value  time.Time
	Reason string
}

func (e *InvalidTimestampError) Error() string {
	if e.Value.IsZero() {
		return "invalid timestamp: " + e.Reason
	}

	return fmt.Sprintf("invalid timestamp %s: %s", e.Value.Format(time.RFC3339), e.Reason)
}

func (e *InvalidTimestampError) validationError() {}

// IncompleteObservationError reports every required field still missing when
// a form is finalized. All violations are collected so callers can fix them
// in one pass.
type IncompleteObservationError struct {
	Missing []string
}

func (e *IncompleteObservationError) Error() string {
	return fmt.Sprintf("incomplete observation: missing %s", strings.Join(e.Missing, ", "))
}

func (e *IncompleteObservationError) validationError() {}

// ConfigurationError reports invalid client configuration. It is raised at
// construction, never at request time.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Message)
	}

	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// TransportError reports a network-level failure: connection, DNS, TLS, or
// timeout. The failed operation was not necessarily received by the server.
type TransportError struct {
	Op      string
	URL     string
	Err     error
	Timeout bool
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s %s: request timed out: %v", e.Op, e.URL, e.Err)
	}

	return fmt.Sprintf("%s %s: transport failure: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ClientRequestError reports a 4xx response. The server-supplied detail is
// carried, never swallowed.
type ClientRequestError struct {
	StatusCode int
	Detail     *ErrorView
}

func (e *ClientRequestError) Error() string {
	if e.Detail != nil {
		return fmt.Sprintf("request rejected (HTTP %d): %s", e.StatusCode, e.Detail.Error())
	}

	return fmt.Sprintf("request rejected (HTTP %d)", e.StatusCode)
}

// NotFoundError reports a 404 response, carrying the reference that was
// requested.
type NotFoundError struct {
	Resource string
	UUID     uuid.UUID
	Detail   *ErrorView
}

func (e *NotFoundError) Error() string {
	if e.Resource == "" {
		return "resource not found"
	}

	return fmt.Sprintf("%s %s not found", e.Resource, e.UUID)
}

// ServiceUnavailableError reports a 5xx response. Retrying is left to the
// caller or an explicit opt-in policy.
type ServiceUnavailableError struct {
	StatusCode int
	Detail     *ErrorView
}

func (e *ServiceUnavailableError) Error() string {
	if e.Detail != nil {
		return fmt.Sprintf("service unavailable (HTTP %d): %s", e.StatusCode, e.Detail.Error())
	}

	return fmt.Sprintf("service unavailable (HTTP %d)", e.StatusCode)
}

// MalformedResponseError reports a server response the decoder cannot
// interpret.
type MalformedResponseError struct {
	Field  string
	Reason string
}

func (e *MalformedResponseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed response: %s", e.Reason)
	}

	return fmt.Sprintf("malformed response: field %s: %s", e.Field, e.Reason)
}

// IsValidation checks if the error was caused by caller data violating a
// local invariant.
func IsValidation(err error) bool {
	var v validationKind

	return errors.As(err, &v)
}

// IsConfiguration checks if the error reports invalid client configuration.
func IsConfiguration(err error) bool {
	target := &ConfigurationError{}

	return errors.As(err, &target)
}

// IsTransport checks if the error is a network-level failure.
func IsTransport(err error) bool {
	target := &TransportError{}

	return errors.As(err, &target)
}

// IsTimeout checks if the error is a transport timeout.
func IsTimeout(err error) bool {
	target := &TransportError{}
	if errors.As(err, &target) {
		return target.Timeout
	}

	return false
}

// IsClientRequest checks if the error is a 4xx response.
func IsClientRequest(err error) bool {
	target := &ClientRequestError{}

	return errors.As(err, &target)
}

// IsNotFound checks if the error is a 404 response.
func IsNotFound(err error) bool {
	target := &NotFoundError{}

	return errors.As(err, &target)
}

// IsServiceUnavailable checks if the error is a 5xx response.
func IsServiceUnavailable(err error) bool {
	target := &ServiceUnavailableError{}

	return errors.As(err, &target)
}

// IsMalformedResponse checks if the error reports an uninterpretable server
// response.
func IsMalformedResponse(err error) bool {
	target := &MalformedResponseError{}

	return errors.As(err, &target)
}

// Common static errors that can be wrapped with context.
var (
	ErrConfigRequired      = errors.New("config is required")
	ErrAPIEndpointRequired = errors.New("API endpoint is required")
	ErrCredentialsRequired = errors.New("an API key, access token, or token provider is required")
	ErrNoHostInURL         = errors.New("no host specified in URL")
	ErrSkipTLSOnlyInDev    = errors.New("skipping TLS verification is only allowed in development environments")
	ErrNoMoreItems         = errors.New("no more items")
	ErrCircuitBreakerOpen  = errors.New("circuit breaker is open")
)
