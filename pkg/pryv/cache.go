package pryv

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync/atomic"
	"time"

	"github.com/go4org/hashtriemap"

	"github.com/fivetwenty-io/pryv-client/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrCacheMiss    = errors.New("key not found")
	ErrCacheExpired = errors.New("entry expired")
)

// CacheEntry is a cached discovery document.
type CacheEntry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
	ETag      string    `json:"etag,omitempty"`
}

// Expired reports whether the entry is past its expiry. A zero ExpiresAt never expires.
func (e *CacheEntry) Expired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// Cache stores discovery documents so several services, or processes, can
// share one fetch.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) bool
}

// ServiceInfoCacheKey derives a backend-safe key from a discovery URL.
func ServiceInfoCacheKey(serviceInfoURL string) string {
	sum := sha256.Sum256([]byte(serviceInfoURL))

	return constants.ServiceInfoKeyPrefix + hex.EncodeToString(sum[:])
}

// MemoryCache is an in-process Cache bounded to maxSize entries.
type MemoryCache struct {
	entries hashtriemap.HashTrieMap[string, *CacheEntry]
	size    atomic.Int64
	maxSize int64
}

// NewMemoryCache creates a memory cache holding at most maxSize entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = constants.DefaultCacheSize
	}

	return &MemoryCache{maxSize: int64(maxSize)}
}

// Get returns the entry stored under key.
func (c *MemoryCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	entry, ok := c.entries.Load(key)
	if !ok {
		return nil, ErrCacheMiss
	}

	if entry.Expired() {
		_ = c.Delete(ctx, key)

		return nil, ErrCacheExpired
	}

	return entry, nil
}

// Set stores entry under key, evicting another entry when the cache is full.
func (c *MemoryCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	if _, loaded := c.entries.Load(key); !loaded && c.size.Load() >= c.maxSize {
		c.evict()
	}

	if _, loaded := c.entries.LoadOrStore(key, entry); loaded {
		c.entries.Store(key, entry)

		return nil
	}

	c.size.Add(1)

	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	if _, loaded := c.entries.LoadAndDelete(key); loaded {
		c.size.Add(-1)
	}

	return nil
}

// Clear removes all entries.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.entries.Range(func(key string, _ *CacheEntry) bool {
		_ = c.Delete(ctx, key)

		return true
	})

	return nil
}

// Has reports whether a live entry exists for key.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	return int(c.size.Load())
}

// evict drops expired entries, or a single arbitrary one when none expired.
func (c *MemoryCache) evict() {
	var (
		victim  string
		removed bool
	)

	c.entries.Range(func(key string, entry *CacheEntry) bool {
		if entry.Expired() {
			if _, loaded := c.entries.LoadAndDelete(key); loaded {
				c.size.Add(-1)

				removed = true
			}
		} else if victim == "" {
			victim = key
		}

		return true
	})

	if !removed && victim != "" {
		if _, loaded := c.entries.LoadAndDelete(victim); loaded {
			c.size.Add(-1)
		}
	}
}
