// Package cache provides a typed key-value cache. Values are serialized only at the
// cache boundary so callers always work with domain types.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// Cache is a typed get/set/expire store.
type Cache[T any] interface {
	// Get returns the cached value and true, or the zero value and false on a miss.
	Get(ctx context.Context, key string) (T, bool, error)
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisCache stores JSON-encoded values in Redis under a common key prefix.
type RedisCache[T any] struct {
	client redis.Cmdable
	prefix string
}

// NewRedisCache creates a RedisCache. Keys are stored as prefix+key.
func NewRedisCache[T any](client redis.Cmdable, prefix string) *RedisCache[T] {
	return &RedisCache[T]{client: client, prefix: prefix}
}

// Get implements Cache. An entry that fails to decode is dropped and reported as a miss.
func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var value T
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return value, false, nil
	}
	if err != nil {
		return value, false, err
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		log.Warn().Err(err).Str("key", c.prefix+key).Msg("Dropping undecodable cache entry")
		_ = c.client.Del(ctx, c.prefix+key).Err()
		var zero T
		return zero, false, nil
	}
	return value, true, nil
}

// Set implements Cache.
func (c *RedisCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, raw, ttl).Err()
}

// Delete implements Cache.
func (c *RedisCache[T]) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}
