package commands

import (
	"sync"
	"time"
)

// ConfigPersister implements the auth.ConfigPersister interface on top of the
// CLI config file.
type ConfigPersister struct {
	mutex    sync.Mutex
	path     string
	username string
	infoURL  string
}

// NewConfigPersister creates a persister writing to the config file at path.
// username and serviceInfoURL are recorded alongside tokens it saves.
func NewConfigPersister(path, username, serviceInfoURL string) *ConfigPersister {
	return &ConfigPersister{
		path:     path,
		username: username,
		infoURL:  serviceInfoURL,
	}
}

// UpdateAPIToken saves the endpoint and token under apiKey and makes it the
// current API.
func (p *ConfigPersister) UpdateAPIToken(apiKey, endpoint, token string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	config, err := loadConfigFrom(p.path)
	if err != nil {
		return err
	}

	apiConfig, exists := config.APIs[apiKey]
	if !exists {
		apiConfig = &APIConfig{}
		config.APIs[apiKey] = apiConfig
	}

	apiConfig.Endpoint = endpoint
	apiConfig.Token = token

	if p.username != "" {
		apiConfig.Username = p.username
	}

	if p.infoURL != "" {
		apiConfig.ServiceInfoURL = p.infoURL
	}

	now := time.Now().UTC()
	apiConfig.LastLogin = &now

	config.CurrentAPI = apiKey

	return saveConfigTo(p.path, config)
}
