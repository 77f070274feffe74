package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Static errors for err113 compliance.
var (
	ErrNoConfigPersister = errors.New("no config persister configured")
	ErrNoToken           = errors.New("no token stored for this API")
)

// ConfigPersister defines the interface for persisting config changes.
type ConfigPersister interface {
	UpdateAPIToken(apiKey, endpoint, token string) error
}

// ConfigTokenManager hands out the token stored in the CLI configuration and
// writes tokens issued by a login back through its ConfigPersister.
type ConfigTokenManager struct {
	configPersister ConfigPersister
	apiKey          string
	mutex           sync.RWMutex
	endpoint        string
	token           string
}

// NewConfigTokenManager creates a manager for the API stored under apiKey.
func NewConfigTokenManager(configPersister ConfigPersister, apiKey, endpoint, initialToken string) *ConfigTokenManager {
	return &ConfigTokenManager{
		configPersister: configPersister,
		apiKey:          apiKey,
		endpoint:        endpoint,
		token:           initialToken,
	}
}

// GetToken returns the stored token.
func (m *ConfigTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.token == "" {
		return "", fmt.Errorf("%w: %s", ErrNoToken, m.apiKey)
	}

	return m.token, nil
}

// Endpoint returns the endpoint the token belongs to.
func (m *ConfigTokenManager) Endpoint() string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.endpoint
}

// SetToken stores a newly issued token and persists it.
func (m *ConfigTokenManager) SetToken(endpoint, token string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.endpoint = endpoint
	m.token = token

	return m.persistToken()
}

// persistToken saves the token to config.
func (m *ConfigTokenManager) persistToken() error {
	if m.configPersister == nil {
		return ErrNoConfigPersister
	}

	err := m.configPersister.UpdateAPIToken(m.apiKey, m.endpoint, m.token)
	if err != nil {
		return fmt.Errorf("failed to update API token: %w", err)
	}

	return nil
}
