package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sightline-io/sightline-go/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrNoCredentials      = errors.New("no valid credentials available")
	ErrTokenRequestFailed = errors.New("token request failed")
	ErrMissingAccessToken = errors.New("token response missing accessToken")
)

// APIKeyConfig configures the API key exchange.
type APIKeyConfig struct {
	// TokenURL is the full URL of the token exchange endpoint.
	TokenURL string
	// APIKey is presented on every exchange.
	APIKey string
	// HTTPClient overrides the client used for the exchange.
	HTTPClient *http.Client
}

// APIKeyTokenManager exchanges a long-lived API key for short-lived session
// tokens and re-exchanges as they expire. It is safe for concurrent use.
type APIKeyTokenManager struct {
	config     *APIKeyConfig
	store      *TokenStore
	httpClient *http.Client
	mutex      sync.Mutex
}

// NewAPIKeyTokenManager creates a token manager for the given exchange
// endpoint and key.
func NewAPIKeyTokenManager(config *APIKeyConfig) *APIKeyTokenManager {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.ShortHTTPTimeout}
	}

	return &APIKeyTokenManager{
		config:     config,
		store:      NewTokenStore(),
		httpClient: httpClient,
	}
}

// GetToken returns a valid session token, exchanging the API key for a
// fresh one when the stored token is missing or expired.
func (m *APIKeyTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if token := m.store.Get(); token.Valid() {
		return token.AccessToken, nil
	}

	token, err := m.exchangeKey(ctx)
	if err != nil {
		return "", err
	}

	m.store.Set(token)

	return token.AccessToken, nil
}

// RefreshToken discards the stored token and performs a fresh exchange.
func (m *APIKeyTokenManager) RefreshToken(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	token, err := m.exchangeKey(ctx)
	if err != nil {
		return err
	}

	m.store.Set(token)

	return nil
}

// SetToken manually sets the session token.
func (m *APIKeyTokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	})
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

type tokenErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// exchangeKey calls the token endpoint with the API key and parses the
// issued session token.
func (m *APIKeyTokenManager) exchangeKey(ctx context.Context) (*Token, error) {
	if m.config.APIKey == "" {
		return nil, ErrNoCredentials
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.config.TokenURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}

	req.Header.Set(constants.APIKeyHeader, m.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, exchangeError(resp.StatusCode, body)
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}

	if payload.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}

	return &Token{
		AccessToken: payload.AccessToken,
		TokenType:   "bearer",
		ExpiresAt:   tokenExpiry(payload.AccessToken),
	}, nil
}

// exchangeError maps an error response body to a descriptive error.
func exchangeError(statusCode int, body []byte) error {
	var payload tokenErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		if payload.Code != "" {
			return fmt.Errorf("%w: %s: %s", ErrTokenRequestFailed, payload.Code, payload.Message)
		}

		return fmt.Errorf("%w: %s", ErrTokenRequestFailed, payload.Message)
	}

	return fmt.Errorf("%w: HTTP %d", ErrTokenRequestFailed, statusCode)
}

// tokenExpiry reads the exp claim without verifying the signature; the
// client only schedules re-exchanges with it. Tokens without a readable exp
// claim get a short assumed lifetime.
func tokenExpiry(raw string) time.Time {
	claims := jwt.MapClaims{}

	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Now().Add(constants.DefaultSessionTokenTTL)
	}

	expiresAt, err := claims.GetExpirationTime()
	if err != nil || expiresAt == nil {
		return time.Now().Add(constants.DefaultSessionTokenTTL)
	}

	return expiresAt.Time
}
