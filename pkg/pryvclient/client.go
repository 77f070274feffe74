package pryvclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/pryv-client/internal/client"
	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
)

// New creates a connection for config.APIEndpoint. An endpoint given without
// scheme is assumed to be https.
func New(config *pryv.Config) (pryv.Connection, error) {
	if config == nil {
		return nil, pryv.ErrConfigRequired
	}

	if config.APIEndpoint == "" {
		return nil, pryv.ErrAPIEndpointRequired
	}

	normalized := *config
	normalized.APIEndpoint = withScheme(config.APIEndpoint)

	conn, err := client.NewConnection(&normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}

	return conn, nil
}

// NewWithEndpoint creates a connection from a single endpoint string, token
// included ("https://token@user.pryv.me/").
func NewWithEndpoint(endpoint string) (pryv.Connection, error) {
	return New(&pryv.Config{
		APIEndpoint: endpoint,
	})
}

// NewWithToken creates a connection from an endpoint and a separate token.
func NewWithToken(endpoint, token string) (pryv.Connection, error) {
	return New(&pryv.Config{
		APIEndpoint: endpoint,
		Token:       token,
	})
}

// NewService creates a service. Nothing is fetched until the first call
// that needs the discovery document.
func NewService(config *pryv.ServiceConfig) (pryv.Service, error) {
	if config == nil {
		return nil, pryv.ErrConfigRequired
	}

	normalized := *config
	if normalized.ServiceInfoURL != "" {
		normalized.ServiceInfoURL = withScheme(normalized.ServiceInfoURL)
	}

	service, err := client.NewService(&normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	return service, nil
}

// NewServiceWithURL creates a service for a discovery URL with default settings.
func NewServiceWithURL(serviceInfoURL string) (pryv.Service, error) {
	return NewService(&pryv.ServiceConfig{
		ServiceInfoURL: serviceInfoURL,
	})
}

// Login resolves serviceInfoURL and exchanges the credentials for a connection.
func Login(ctx context.Context, serviceInfoURL, username, password, appID string) (pryv.Connection, error) {
	service, err := NewServiceWithURL(serviceInfoURL)
	if err != nil {
		return nil, err
	}

	return service.Login(ctx, username, password, appID, "")
}

func withScheme(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.Contains(trimmed, "://") {
		return trimmed
	}

	return "https://" + trimmed
}
