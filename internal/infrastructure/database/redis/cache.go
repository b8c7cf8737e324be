package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

// ErrCacheMiss is returned by Get when the key is absent.
var ErrCacheMiss = errors.New(errors.ErrCodeNotFound, "cache miss")

// Cache is a typed read-through cache over Redis. Values are JSON-encoded.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
}

// CacheOption configures a redisCache.
type CacheOption func(*redisCache)

// WithPrefix overrides the key prefix prepended to every cache key.
func WithPrefix(prefix string) CacheOption {
	return func(c *redisCache) { c.prefix = prefix }
}

// WithDefaultTTL overrides the TTL used when Set is called with ttl <= 0.
func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *redisCache) { c.defaultTTL = ttl }
}

type redisCache struct {
	client     *Client
	logger     logging.Logger
	prefix     string
	defaultTTL time.Duration
	group      singleflight.Group
}

// NewRedisCache builds a Cache on top of client. The default prefix is
// "mofrac:" and the default TTL is 24 hours.
func NewRedisCache(client *Client, logger logging.Logger, opts ...CacheOption) Cache {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	c := &redisCache{
		client:     client,
		logger:     logger,
		prefix:     "mofrac:",
		defaultTTL: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *redisCache) buildKey(key string) string {
	return c.prefix + key
}

// jitterTTL spreads expirations by ±10% so cached vectors written in a
// batch do not all expire in the same instant.
func jitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	jitter := time.Duration(rand.Int63n(int64(ttl)/5+1)) - ttl/10
	return ttl + jitter
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, err := c.client.Get(ctx, c.buildKey(key)).Result()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache get failed")
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode cached value")
	}
	return nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode cache value")
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.Set(ctx, c.buildKey(key), data, jitterTTL(ttl)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache set failed")
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.buildKey(k)
	}
	if err := c.client.Del(ctx, prefixed...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache delete failed")
	}
	return nil
}

func (c *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.buildKey(key)).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "cache exists failed")
	}
	return n > 0, nil
}

// GetOrSet returns the cached value for key, or runs loader exactly once
// per process for concurrent callers and caches its result.
func (c *redisCache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error {
	if err := c.Get(ctx, key, dest); err == nil {
		return nil
	} else if err != ErrCacheMiss {
		c.logger.Warn("cache read failed, falling through to loader",
			logging.String("key", key), logging.Err(err))
	}

	raw, err, _ := c.group.Do(key, func() (interface{}, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, key, value, ttl); err != nil {
			c.logger.Warn("failed to populate cache",
				logging.String("key", key), logging.Err(err))
		}
		return json.Marshal(value)
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw.([]byte), dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode loaded value")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Descriptor vector cache
// ─────────────────────────────────────────────────────────────────────────────

type descriptorEntry struct {
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`
}

// DescriptorCache stores computed descriptor vectors keyed by structure
// name and depth. It satisfies the featurization service's cache port.
type DescriptorCache struct {
	cache Cache
	ttl   time.Duration
}

// NewDescriptorCache builds a DescriptorCache with the given TTL. A ttl of
// zero falls back to the underlying cache default.
func NewDescriptorCache(client *Client, logger logging.Logger, ttl time.Duration) *DescriptorCache {
	return &DescriptorCache{
		cache: NewRedisCache(client, logger),
		ttl:   ttl,
	}
}

// Get returns the cached descriptor vector for key, with ok reporting
// whether the key was present.
func (d *DescriptorCache) Get(ctx context.Context, key string) ([]string, []float64, bool, error) {
	var entry descriptorEntry
	err := d.cache.Get(ctx, key, &entry)
	if err == ErrCacheMiss {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}
	return entry.Names, entry.Values, true, nil
}

// Set stores a descriptor vector under key.
func (d *DescriptorCache) Set(ctx context.Context, key string, names []string, values []float64) error {
	return d.cache.Set(ctx, key, descriptorEntry{Names: names, Values: values}, d.ttl)
}
