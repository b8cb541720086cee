package commands

import (
	"fmt"
	"sync"
	"time"
)

// ConfigPersister saves refreshed session tokens back to the CLI config
// file. It implements the auth.ConfigPersister interface.
type ConfigPersister struct {
	mutex sync.Mutex
}

// NewConfigPersister creates a new config persister.
func NewConfigPersister() *ConfigPersister {
	return &ConfigPersister{}
}

// UpdateSessionToken updates the stored session token for an API domain.
func (p *ConfigPersister) UpdateSessionToken(apiDomain, token string, expiresAt time.Time) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	config := loadConfig()

	if config.APIEndpoint == "" || extractDomainFromEndpoint(config.APIEndpoint) != apiDomain {
		return fmt.Errorf("%w: %s", ErrUnknownAPIDomain, apiDomain)
	}

	config.Token = token

	if !expiresAt.IsZero() {
		config.TokenExpiresAt = &expiresAt
	}

	now := time.Now()
	config.LastRefreshed = &now

	err := saveConfigStruct(config)
	if err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	return nil
}
