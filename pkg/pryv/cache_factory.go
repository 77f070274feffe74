package pryv

import (
	"context"
	"errors"
	"fmt"

	"github.com/fivetwenty-io/pryv-client/internal/constants"
)

// CacheType names a discovery cache backend.
type CacheType string

const (
	// CacheTypeMemory keeps documents in the process.
	CacheTypeMemory CacheType = "memory"
	// CacheTypeNATS shares documents through a JetStream key-value bucket,
	// behind an in-process tier.
	CacheTypeNATS CacheType = "nats"
	// CacheTypeNone disables the discovery cache.
	CacheTypeNone CacheType = "none"
)

// Static errors for err113 compliance.
var (
	ErrNATSConfigRequired   = errors.New("nats cache needs a server URL")
	ErrUnsupportedCacheType = errors.New("unsupported cache type")
)

// CacheConfig selects the discovery cache a Service shares with others.
type CacheConfig struct {
	Type CacheType
	// MaxSize bounds the in-process tier (default 100 entries).
	MaxSize int
	// NATS locates the shared bucket for CacheTypeNATS.
	NATS *NATSKVConfig
}

// OpenCache builds the cache described by config, an in-process one when
// config is nil. CacheTypeNone yields a nil Cache, which a Service reads as
// "always fetch". Release the result with CloseCache.
func OpenCache(config *CacheConfig) (Cache, error) {
	if config == nil {
		config = &CacheConfig{Type: CacheTypeMemory}
	}

	maxSize := config.MaxSize
	if maxSize <= 0 {
		maxSize = constants.DefaultCacheSize
	}

	switch config.Type {
	case CacheTypeMemory, "":
		return NewMemoryCache(maxSize), nil
	case CacheTypeNone:
		return nil, nil
	case CacheTypeNATS:
		if config.NATS == nil || (config.NATS.URL == "" && config.NATS.Conn == nil) {
			return nil, ErrNATSConfigRequired
		}

		shared, err := NewNATSKVCache(config.NATS)
		if err != nil {
			return nil, err
		}

		return NewTieredCache(NewMemoryCache(maxSize), shared), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCacheType, config.Type)
	}
}

// closer is implemented by caches holding a connection.
type closer interface {
	Close()
}

// CloseCache releases whatever connection cache holds. It accepts nil.
func CloseCache(cache Cache) {
	if c, ok := cache.(closer); ok {
		c.Close()
	}
}

// TieredCache looks documents up nearest tier first. A hit in a farther tier
// is copied into the nearer ones with its original expiry, so a document never
// outlives the TTL it was fetched with.
type TieredCache struct {
	tiers []Cache
}

// NewTieredCache orders tiers from nearest to farthest.
func NewTieredCache(tiers ...Cache) *TieredCache {
	return &TieredCache{tiers: tiers}
}

// Get returns the first live entry found for key.
func (c *TieredCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	for i, tier := range c.tiers {
		entry, err := tier.Get(ctx, key)
		if err != nil || entry.Expired() {
			continue
		}

		for _, nearer := range c.tiers[:i] {
			_ = nearer.Set(ctx, key, entry)
		}

		return entry, nil
	}

	return nil, ErrCacheMiss
}

// Set writes entry to every tier.
func (c *TieredCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	return c.each(func(tier Cache) error { return tier.Set(ctx, key, entry) })
}

// Delete removes key from every tier.
func (c *TieredCache) Delete(ctx context.Context, key string) error {
	return c.each(func(tier Cache) error { return tier.Delete(ctx, key) })
}

// Clear empties every tier.
func (c *TieredCache) Clear(ctx context.Context) error {
	return c.each(func(tier Cache) error { return tier.Clear(ctx) })
}

// Has reports whether any tier holds a live entry for key.
func (c *TieredCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// Close releases the tiers holding connections.
func (c *TieredCache) Close() {
	for _, tier := range c.tiers {
		CloseCache(tier)
	}
}

// each applies fn to every tier and reports all failures.
func (c *TieredCache) each(fn func(Cache) error) error {
	var errs []error

	for i, tier := range c.tiers {
		err := fn(tier)
		if err != nil {
			errs = append(errs, fmt.Errorf("cache tier %d: %w", i, err))
		}
	}

	return errors.Join(errs...)
}
