// Package cache memoizes results in Redis
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// Options configures the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// Cache is a Redis-backed result cache. A nil *Cache is valid and caches nothing.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// New connects to Redis; an empty Addr disables caching and returns nil
func New(opts Options) *Cache {
	if opts.Addr == "" {
		return nil
	}
	return &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:        opts.Addr,
			Password:    opts.Password,
			DB:          opts.DB,
			DialTimeout: 2 * time.Second,
			MaxRetries:  1,
		}),
		ttl:    opts.TTL,
		prefix: opts.Prefix,
	}
}

// Ping checks the connection
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the connection pool
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// Invalidate drops a cached key
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if c == nil {
		return nil
	}
	return c.client.Del(ctx, c.prefix+key).Err()
}

// Memoize returns the cached value of key or calls fn and caches its result.
// Redis errors are logged and fall back to fn; errors from fn are never cached.
func Memoize[T any](ctx context.Context, c *Cache, key string, fn func() (T, error)) (T, error) {
	var result T
	if c == nil {
		return fn()
	}

	// Try fetching from cache
	cached, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == nil {
		if jsonErr := json.Unmarshal(cached, &result); jsonErr == nil {
			return result, nil
		}
	} else if err != redis.Nil {
		slog.Debug("cache read failed", "key", key, "error", err)
	}

	result, err = fn()
	if err != nil {
		return result, err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return result, nil
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		slog.Debug("cache write failed", "key", key, "error", err)
	}

	return result, nil
}
