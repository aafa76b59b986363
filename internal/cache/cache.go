// Package cache provides the key-value cache used in front of movie reads.
// Values are stored as JSON so the Redis and in-process backends behave the
// same way.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Cache is a TTL key-value store. Get reports false on a miss.
//
// Counters live beside the values and never expire. Counter reports 0 for a
// counter that was never incremented.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
	Counter(ctx context.Context, key string) (int64, error)
}

// RedisCache stores JSON values in Redis with a fixed TTL.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisCache parses a redis:// URL and returns a cache bound to it.
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	return &RedisCache{Client: client, TTL: ttl}, nil
}

// Get decodes the JSON value at key into dest.
func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value as JSON with the cache TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key, b, c.TTL).Err()
}

// Delete removes key. Missing keys are not an error.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// Incr atomically bumps the counter at key with INCR.
func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.Client.Incr(ctx, key).Result()
}

// Counter reads the counter at key.
func (c *RedisCache) Counter(ctx context.Context, key string) (int64, error) {
	n, err := c.Client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Ping checks connectivity, used at startup.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// Close releases the client's connections.
func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// MemoryCache is the in-process backend used when no Redis is configured.
type MemoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache returns a cache whose entries expire after ttl and are
// swept every 2*ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{store: gocache.New(ttl, 2*ttl)}
}

// Get decodes the JSON value at key into dest.
func (c *MemoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	raw, ok := c.store.Get(key)
	if !ok {
		return false, nil
	}
	b, ok := raw.([]byte)
	if !ok {
		return false, fmt.Errorf("cache: key %q holds %T, not a value", key, raw)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value as JSON with the default expiration.
func (c *MemoryCache) Set(_ context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.store.SetDefault(key, b)
	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.store.Delete(key)
	return nil
}

// Incr bumps the counter at key, creating it without expiration.
func (c *MemoryCache) Incr(_ context.Context, key string) (int64, error) {
	// Add fails when the counter already exists, which is fine.
	_ = c.store.Add(key, int64(0), gocache.NoExpiration)
	return c.store.IncrementInt64(key, 1)
}

// Counter reads the counter at key.
func (c *MemoryCache) Counter(_ context.Context, key string) (int64, error) {
	raw, ok := c.store.Get(key)
	if !ok {
		return 0, nil
	}
	n, ok := raw.(int64)
	if !ok {
		return 0, fmt.Errorf("cache: key %q holds %T, not a counter", key, raw)
	}
	return n, nil
}
