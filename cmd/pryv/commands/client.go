package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/fivetwenty-io/pryv-client/internal/auth"
	"github.com/fivetwenty-io/pryv-client/internal/constants"
	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
	"github.com/fivetwenty-io/pryv-client/pkg/pryvclient"
)

// transportConfig tags every request with an id and, in verbose mode, logs
// requests and responses to stderr.
func transportConfig(settings *Settings) pryv.TransportConfig {
	interceptors := pryv.NewInterceptorChain()
	interceptors.AddRequestInterceptor(pryv.RequestIDInterceptor())

	config := pryv.TransportConfig{
		HTTPTimeout:  constants.DefaultHTTPTimeout,
		EnableHTTP2:  true,
		Interceptors: interceptors,
		Calls:        settings.Calls,
	}

	if settings.Verbose {
		logger := newStderrLogger()

		interceptors.AddRequestInterceptor(pryv.LoggingInterceptor(logger))
		interceptors.AddResponseInterceptor(pryv.LoggingResponseInterceptor(logger))

		config.Logger = logger
		config.Debug = true
	}

	return config
}

// reportCalls prints the per-route call statistics gathered in verbose mode.
func reportCalls(out io.Writer, settings *Settings) {
	if settings.Calls == nil {
		return
	}

	routes := settings.Calls.Routes()
	if len(routes) == 0 {
		return
	}

	table := tablewriter.NewWriter(out)
	table.Header("Route", "Calls", "Failures", "Average", "Slowest")

	for _, route := range routes {
		stats, _ := settings.Calls.Stats(route)

		_ = table.Append(route,
			strconv.FormatInt(stats.Calls, 10),
			strconv.FormatInt(stats.Failures, 10),
			stats.Average().Round(time.Millisecond).String(),
			stats.Slowest.Round(time.Millisecond).String())
	}

	_ = table.Render()
}

// buildCache returns the discovery document cache and a function releasing it.
// A NATS cache sits behind a memory cache so repeated lookups in one process
// stay local.
func buildCache(settings *Settings) (pryv.Cache, func(), error) {
	config := &pryv.CacheConfig{Type: pryv.CacheType(settings.Cache.Type)}

	if config.Type == pryv.CacheTypeNATS {
		config.NATS = &pryv.NATSKVConfig{
			URL:    settings.Cache.NATSURL,
			Bucket: settings.Cache.Bucket,
		}
	}

	cache, err := pryv.OpenCache(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cache: %w", err)
	}

	return cache, func() { pryv.CloseCache(cache) }, nil
}

// newService creates a service for the configured service info URL.
func newService(settings *Settings) (pryv.Service, func(), error) {
	if settings.ServiceInfoURL == "" {
		return nil, nil, constants.ErrNoServiceInfoURL
	}

	cache, release, err := buildCache(settings)
	if err != nil {
		return nil, nil, err
	}

	transport := transportConfig(settings)
	transport.HTTPTimeout = constants.ShortHTTPTimeout

	service, err := pryvclient.NewService(&pryv.ServiceConfig{
		ServiceInfoURL:  settings.ServiceInfoURL,
		Cache:           cache,
		TransportConfig: transport,
	})
	if err != nil {
		release()

		return nil, nil, err
	}

	return service, release, nil
}

// newConnection resolves --api (a saved API name or an endpoint URL) or the
// current API and opens a connection on it.
func newConnection(ctx context.Context, settings *Settings, chunkSize int) (pryv.Connection, error) {
	config, err := loadConfigFrom(settings.ConfigFile)
	if err != nil {
		return nil, err
	}

	apiKey := settings.API
	if apiKey == "" {
		apiKey = config.CurrentAPI
	}

	if apiKey == "" {
		return nil, constants.ErrNoAPIEndpoint
	}

	connConfig := &pryv.Config{
		ChunkSize:       chunkSize,
		TransportConfig: transportConfig(settings),
	}

	apiConfig, saved := config.APIs[apiKey]

	switch {
	case saved:
		tokenManager := auth.NewConfigTokenManager(
			NewConfigPersister(settings.ConfigFile, apiConfig.Username, apiConfig.ServiceInfoURL),
			apiKey, apiConfig.Endpoint, apiConfig.Token)

		token, err := tokenManager.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", constants.ErrNotAuthenticated, err)
		}

		connConfig.APIEndpoint = tokenManager.Endpoint()
		connConfig.Token = token
	case strings.Contains(apiKey, "://") || strings.Contains(apiKey, "."):
		connConfig.APIEndpoint = apiKey
	default:
		return nil, fmt.Errorf("'%s': %w", apiKey, constants.ErrAPIConfigNotFound)
	}

	conn, err := pryvclient.New(connConfig)
	if err != nil {
		return nil, err
	}

	return conn, nil
}
