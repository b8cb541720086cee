package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrNoConfigPersister = errors.New("no config persister configured")
)

// ConfigPersister writes refreshed session tokens back to the CLI config so
// later invocations reuse them.
type ConfigPersister interface {
	UpdateSessionToken(apiDomain, token string, expiresAt time.Time) error
}

// ConfigTokenManager wraps APIKeyTokenManager and persists tokens to config
// whenever they change.
type ConfigTokenManager struct {
	apiKeyManager   *APIKeyTokenManager
	configPersister ConfigPersister
	apiDomain       string
	mutex           sync.Mutex
	lastToken       string
	lastExpiry      time.Time
}

// NewConfigTokenManager creates a config-persisting token manager. A
// non-empty initialToken seeds the manager so no exchange happens until it
// expires.
func NewConfigTokenManager(config *APIKeyConfig, configPersister ConfigPersister, apiDomain string, initialToken string, initialExpiry time.Time) *ConfigTokenManager {
	apiKeyManager := NewAPIKeyTokenManager(config)

	if initialToken != "" {
		apiKeyManager.SetToken(initialToken, initialExpiry)
	}

	return &ConfigTokenManager{
		apiKeyManager:   apiKeyManager,
		configPersister: configPersister,
		apiDomain:       apiDomain,
		lastToken:       initialToken,
		lastExpiry:      initialExpiry,
	}
}

// GetToken returns a valid access token, refreshing if necessary.
func (m *ConfigTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	token, err := m.apiKeyManager.GetToken(ctx)
	if err != nil {
		return "", err
	}

	// Persist when the exchange produced a different token.
	currentToken := m.apiKeyManager.store.Get()
	if currentToken != nil && (currentToken.AccessToken != m.lastToken || !currentToken.ExpiresAt.Equal(m.lastExpiry)) {
		go func() {
			persistErr := m.persistToken(currentToken)
			if persistErr != nil {
				// Log error but don't fail the request
				_, _ = fmt.Fprintf(os.Stderr, "Warning: failed to persist refreshed token: %v\n", persistErr)
			}
		}()

		m.lastToken = currentToken.AccessToken
		m.lastExpiry = currentToken.ExpiresAt
	}

	return token, nil
}

// RefreshToken forces a token refresh.
func (m *ConfigTokenManager) RefreshToken(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	err := m.apiKeyManager.RefreshToken(ctx)
	if err != nil {
		return err
	}

	currentToken := m.apiKeyManager.store.Get()
	if currentToken != nil {
		persistErr := m.persistToken(currentToken)
		if persistErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: failed to persist refreshed token: %v\n", persistErr)
		}

		m.lastToken = currentToken.AccessToken
		m.lastExpiry = currentToken.ExpiresAt
	}

	return nil
}

// SetToken manually sets the access token.
func (m *ConfigTokenManager) SetToken(token string, expiresAt time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.apiKeyManager.SetToken(token, expiresAt)
	m.lastToken = token
	m.lastExpiry = expiresAt
}

// IsTokenExpiringSoon returns true if the token expires within the given duration.
func (m *ConfigTokenManager) IsTokenExpiringSoon(within time.Duration) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	token := m.apiKeyManager.store.Get()
	if token == nil {
		return true
	}

	return time.Now().Add(within).After(token.ExpiresAt)
}

// GetTokenExpiry returns the current token's expiration time.
func (m *ConfigTokenManager) GetTokenExpiry() time.Time {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	token := m.apiKeyManager.store.Get()
	if token == nil {
		return time.Time{}
	}

	return token.ExpiresAt
}

// persistToken saves the token to config.
func (m *ConfigTokenManager) persistToken(token *Token) error {
	if m.configPersister == nil {
		return ErrNoConfigPersister
	}

	err := m.configPersister.UpdateSessionToken(m.apiDomain, token.AccessToken, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to update session token: %w", err)
	}

	return nil
}
