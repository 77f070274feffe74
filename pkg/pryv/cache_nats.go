package pryv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fivetwenty-io/pryv-client/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrNATSURLRequired = errors.New("NATS URL or connection is required")
)

// NATSKVConfig configures a NATS JetStream key-value cache.
type NATSKVConfig struct {
	// URL of the NATS server. Ignored when Conn is set.
	URL string
	// Conn reuses an existing connection; the cache then never closes it.
	Conn *nats.Conn
	// Bucket name, created on first use (default "pryv_service_info").
	Bucket string
	// TTL applied by the bucket to every key. Zero keeps keys until deleted.
	TTL time.Duration
}

// NATSKVCache stores discovery documents in a JetStream key-value bucket so
// several processes can share one fetch.
type NATSKVCache struct {
	conn     *nats.Conn
	kv       nats.KeyValue
	ownsConn bool
}

// NewNATSKVCache connects to NATS and opens, or creates, the bucket.
func NewNATSKVCache(config *NATSKVConfig) (*NATSKVCache, error) {
	if config == nil || (config.Conn == nil && config.URL == "") {
		return nil, ErrNATSURLRequired
	}

	conn := config.Conn
	ownsConn := false

	if conn == nil {
		var err error

		conn, err = nats.Connect(config.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}

		ownsConn = true
	}

	kv, err := openBucket(conn, config)
	if err != nil {
		if ownsConn {
			conn.Close()
		}

		return nil, err
	}

	return &NATSKVCache{conn: conn, kv: kv, ownsConn: ownsConn}, nil
}

func openBucket(conn *nats.Conn, config *NATSKVConfig) (nats.KeyValue, error) {
	bucket := config.Bucket
	if bucket == "" {
		bucket = constants.DefaultNATSBucket
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("opening JetStream context: %w", err)
	}

	kv, err := js.KeyValue(bucket)
	if err == nil {
		return kv, nil
	}

	if !errors.Is(err, nats.ErrBucketNotFound) {
		return nil, fmt.Errorf("opening bucket %s: %w", bucket, err)
	}

	kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:      bucket,
		Description: "platform discovery documents",
		TTL:         config.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating bucket %s: %w", bucket, err)
	}

	return kv, nil
}

// Get returns the entry stored under key.
func (c *NATSKVCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	kvEntry, err := c.kv.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, ErrCacheMiss
		}

		return nil, fmt.Errorf("reading %s: %w", key, err)
	}

	var entry CacheEntry

	err = json.Unmarshal(kvEntry.Value(), &entry)
	if err != nil {
		return nil, fmt.Errorf("decoding cache entry %s: %w", key, err)
	}

	if entry.Expired() {
		_ = c.Delete(ctx, key)

		return nil, ErrCacheExpired
	}

	return &entry, nil
}

// Set stores entry under key.
func (c *NATSKVCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", key, err)
	}

	_, err = c.kv.Put(key, data)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}

	return nil
}

// Delete removes key.
func (c *NATSKVCache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(key)
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("deleting %s: %w", key, err)
	}

	return nil
}

// Clear removes every key of the bucket.
func (c *NATSKVCache) Clear(ctx context.Context) error {
	keys, err := c.kv.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil
		}

		return fmt.Errorf("listing keys: %w", err)
	}

	for _, key := range keys {
		err = c.Delete(ctx, key)
		if err != nil {
			return err
		}
	}

	return nil
}

// Has reports whether a live entry exists for key.
func (c *NATSKVCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// Close releases the connection when the cache opened it.
func (c *NATSKVCache) Close() {
	if c.ownsConn {
		c.conn.Close()
	}
}
