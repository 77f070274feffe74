package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/pryv-client/internal/constants"
	"github.com/fivetwenty-io/pryv-client/internal/http"
	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
)

type cacheState int

const (
	stateEmpty cacheState = iota
	stateReady
)

// cached holds a lazily fetched value. It is invalidated only by a forced
// refresh overwriting it; concurrent refreshes race and the last one wins.
type cached[T any] struct {
	mutex sync.RWMutex
	state cacheState
	value T
}

func (c *cached[T]) load() (T, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.value, c.state == stateReady
}

func (c *cached[T]) store(value T) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.value = value
	c.state = stateReady
}

// Service implements pryv.Service.
type Service struct {
	serviceInfoURL string
	customizations *pryv.ServiceInfo
	httpClient     *http.Client
	store          pryv.Cache
	cacheTTL       time.Duration
	assetsLoader   pryv.AssetsLoader
	logger         pryv.Logger
	connConfig     pryv.Config

	info   cached[*pryv.ServiceInfo]
	assets cached[pryv.Assets]
	// document is the last discovery document received, kept with its ETag
	// so refreshes can be conditional.
	document cached[*pryv.CacheEntry]
}

// NewService creates a service for config.ServiceInfoURL. Nothing is fetched
// until Info is called.
func NewService(config *pryv.ServiceConfig) (*Service, error) {
	if config == nil {
		return nil, pryv.ErrConfigRequired
	}

	if config.ServiceInfoURL == "" && config.Customizations == nil {
		return nil, pryv.ErrNoServiceInfoSource
	}

	if config.ChunkSize < 0 {
		return nil, fmt.Errorf("%w: %d", pryv.ErrInvalidChunkSize, config.ChunkSize)
	}

	cacheTTL := config.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = constants.DefaultServiceInfoTTL
	}

	var customizations *pryv.ServiceInfo
	if config.Customizations != nil {
		customizations = config.Customizations.Clone()
	}

	httpClient := http.NewClient(config.ServiceInfoURL, nil, createHTTPClientOptions(&config.TransportConfig)...)

	service := &Service{
		serviceInfoURL: config.ServiceInfoURL,
		customizations: customizations,
		httpClient:     httpClient,
		store:          config.Cache,
		cacheTTL:       cacheTTL,
		assetsLoader:   config.AssetsLoader,
		logger:         loggerOrNop(config.Logger),
		connConfig: pryv.Config{
			ChunkSize:       config.ChunkSize,
			TransportConfig: config.TransportConfig,
		},
	}

	if service.assetsLoader == nil {
		service.assetsLoader = &jsonAssetsLoader{httpClient: httpClient}
	}

	return service, nil
}

// Info implements pryv.Service.Info.
func (s *Service) Info(ctx context.Context, forceFetch bool) (*pryv.ServiceInfo, error) {
	if !forceFetch {
		if info, ok := s.info.load(); ok {
			return info.Clone(), nil
		}
	}

	base, err := s.fetchInfo(ctx, forceFetch)
	if err != nil {
		return nil, err
	}

	info := base.Merge(s.customizations)

	err = info.Validate()
	if err != nil {
		return nil, err
	}

	info.Normalize()
	s.info.store(info)

	return info.Clone(), nil
}

// InfoSync implements pryv.Service.InfoSync.
func (s *Service) InfoSync() *pryv.ServiceInfo {
	info, ok := s.info.load()
	if !ok {
		return nil
	}

	return info.Clone()
}

// APIEndpointFor implements pryv.Service.APIEndpointFor.
func (s *Service) APIEndpointFor(ctx context.Context, username, token string) (*pryv.APIEndpoint, error) {
	info, err := s.Info(ctx, false)
	if err != nil {
		return nil, err
	}

	return info.APIEndpointFor(username, token)
}

// fetchInfo returns the raw discovery document, before customizations. A
// service configured with customizations only starts from an empty document.
func (s *Service) fetchInfo(ctx context.Context, forceFetch bool) (*pryv.ServiceInfo, error) {
	if s.serviceInfoURL == "" {
		return &pryv.ServiceInfo{}, nil
	}

	key := pryv.ServiceInfoCacheKey(s.serviceInfoURL)

	if !forceFetch && s.store != nil {
		if entry, err := s.store.Get(ctx, key); err == nil {
			var info pryv.ServiceInfo

			if err = json.Unmarshal(entry.Data, &info); err == nil {
				s.logger.Debug("Service info loaded from cache", map[string]interface{}{
					"url": s.serviceInfoURL,
				})
				s.document.store(entry)

				return &info, nil
			}

			s.logger.Warn("Ignoring unreadable cached service info", map[string]interface{}{
				"url":   s.serviceInfoURL,
				"error": err.Error(),
			})
		}
	}

	document, err := s.download(ctx)
	if err != nil {
		return nil, err
	}

	var info pryv.ServiceInfo

	err = json.Unmarshal(document.Data, &info)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pryv.ErrInvalidServiceInfo, err)
	}

	s.document.store(document)

	if s.store != nil {
		err = s.store.Set(ctx, key, document)
		if err != nil {
			s.logger.Warn("Failed to cache service info", map[string]interface{}{
				"url":   s.serviceInfoURL,
				"error": err.Error(),
			})
		}
	}

	return &info, nil
}

// download GETs the discovery document. When a previous document carried an
// ETag the request is conditional, and a 304 renews that document.
func (s *Service) download(ctx context.Context) (*pryv.CacheEntry, error) {
	headers := map[string]string{
		constants.HeaderAllowOrigin: constants.AllowAnyOrigin,
	}

	previous, known := s.document.load()
	if known && previous.ETag != "" {
		headers[constants.HeaderIfNoneMatch] = previous.ETag
	}

	resp, err := s.httpClient.Do(ctx, &http.Request{
		Method:  "GET",
		Path:    s.serviceInfoURL,
		Headers: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching service info: %w", err)
	}

	expiresAt := time.Now().Add(s.cacheTTL)

	if resp.NotModified() && known {
		s.logger.Debug("Service info not modified", map[string]interface{}{
			"url":  s.serviceInfoURL,
			"etag": previous.ETag,
		})

		return &pryv.CacheEntry{Data: previous.Data, ExpiresAt: expiresAt, ETag: previous.ETag}, nil
	}

	return &pryv.CacheEntry{
		Data:      resp.Body,
		ExpiresAt: expiresAt,
		ETag:      resp.Headers.Get(constants.HeaderETag),
	}, nil
}
