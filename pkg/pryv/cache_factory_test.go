package pryv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
)

var errTierDown = errors.New("tier down")

// failingCache rejects every write.
type failingCache struct {
	*pryv.MemoryCache
}

func (c failingCache) Set(ctx context.Context, key string, entry *pryv.CacheEntry) error {
	return errTierDown
}

// closingCache counts Close calls.
type closingCache struct {
	*pryv.MemoryCache
	closed int
}

func (c *closingCache) Close() {
	c.closed++
}

func TestOpenCache(t *testing.T) {
	t.Parallel()

	t.Run("memory by default", func(t *testing.T) {
		t.Parallel()

		cache, err := pryv.OpenCache(nil)
		require.NoError(t, err)
		assert.IsType(t, &pryv.MemoryCache{}, cache)

		ctx := context.Background()
		key := pryv.ServiceInfoCacheKey("https://reg.pryv.me/service/info")

		require.NoError(t, cache.Set(ctx, key, &pryv.CacheEntry{Data: []byte(`{"name":"Pryv Lab"}`), ETag: "v1"}))

		entry, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "v1", entry.ETag)
	})

	t.Run("none disables caching", func(t *testing.T) {
		t.Parallel()

		cache, err := pryv.OpenCache(&pryv.CacheConfig{Type: pryv.CacheTypeNone})
		require.NoError(t, err)
		assert.Nil(t, cache)

		pryv.CloseCache(cache)
	})

	t.Run("nats needs a server", func(t *testing.T) {
		t.Parallel()

		_, err := pryv.OpenCache(&pryv.CacheConfig{Type: pryv.CacheTypeNATS})
		require.ErrorIs(t, err, pryv.ErrNATSConfigRequired)

		_, err = pryv.OpenCache(&pryv.CacheConfig{Type: pryv.CacheTypeNATS, NATS: &pryv.NATSKVConfig{Bucket: "b"}})
		require.ErrorIs(t, err, pryv.ErrNATSConfigRequired)
	})

	t.Run("unknown type", func(t *testing.T) {
		t.Parallel()

		_, err := pryv.OpenCache(&pryv.CacheConfig{Type: "redis"})
		require.ErrorIs(t, err, pryv.ErrUnsupportedCacheType)
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestTieredCache(t *testing.T) {
	t.Parallel()

	key := pryv.ServiceInfoCacheKey("https://reg.pryv.me/service/info")

	t.Run("farther hit fills nearer tiers with its expiry", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		near := pryv.NewMemoryCache(10)
		far := pryv.NewMemoryCache(10)
		tiers := pryv.NewTieredCache(near, far)

		expiresAt := time.Now().Add(time.Minute)
		require.NoError(t, far.Set(ctx, key, &pryv.CacheEntry{Data: []byte("doc"), ExpiresAt: expiresAt, ETag: "v2"}))

		entry, err := tiers.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("doc"), entry.Data)

		copied, err := near.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, expiresAt.Equal(copied.ExpiresAt))
		assert.Equal(t, "v2", copied.ETag)
	})

	t.Run("expired entries are skipped", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		near := pryv.NewMemoryCache(10)
		far := pryv.NewMemoryCache(10)
		tiers := pryv.NewTieredCache(near, far)

		require.NoError(t, far.Set(ctx, key, &pryv.CacheEntry{Data: []byte("old"), ExpiresAt: time.Now().Add(-time.Second)}))

		_, err := tiers.Get(ctx, key)
		require.ErrorIs(t, err, pryv.ErrCacheMiss)
		assert.False(t, tiers.Has(ctx, key))
		assert.Equal(t, 0, near.Len())
	})

	t.Run("writes reach every tier", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		near := pryv.NewMemoryCache(10)
		far := pryv.NewMemoryCache(10)
		tiers := pryv.NewTieredCache(near, far)

		require.NoError(t, tiers.Set(ctx, key, &pryv.CacheEntry{Data: []byte("x")}))
		assert.True(t, near.Has(ctx, key))
		assert.True(t, far.Has(ctx, key))

		require.NoError(t, tiers.Delete(ctx, key))
		assert.False(t, tiers.Has(ctx, key))

		require.NoError(t, tiers.Set(ctx, "other", &pryv.CacheEntry{Data: []byte("y")}))
		require.NoError(t, tiers.Clear(ctx))
		assert.Equal(t, 0, near.Len())
		assert.Equal(t, 0, far.Len())
	})

	t.Run("failing tier is reported but others are written", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		near := pryv.NewMemoryCache(10)
		tiers := pryv.NewTieredCache(near, failingCache{pryv.NewMemoryCache(10)})

		err := tiers.Set(ctx, key, &pryv.CacheEntry{Data: []byte("x")})
		require.ErrorIs(t, err, errTierDown)
		assert.Contains(t, err.Error(), "cache tier 1")
		assert.True(t, near.Has(ctx, key))
	})

	t.Run("close releases tiers holding connections", func(t *testing.T) {
		t.Parallel()

		shared := &closingCache{MemoryCache: pryv.NewMemoryCache(10)}
		tiers := pryv.NewTieredCache(pryv.NewMemoryCache(10), shared)

		pryv.CloseCache(tiers)
		assert.Equal(t, 1, shared.closed)
	})
}
