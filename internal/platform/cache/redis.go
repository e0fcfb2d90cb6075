// Package cache provides a small redis-backed JSON cache. The service uses it
// for partition count estimates, which the storage engine can only compute by
// a full scan.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisCache{Client: redis.NewClient(opt), TTL: ttl}, nil
}

// Get unmarshals the cached value into dest. The second return is false on a
// miss. A nil receiver is a permanent miss, so callers need no nil checks.
func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil || c.Client == nil {
		return false, nil
	}
	val, err := c.Client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any) error {
	if c == nil || c.Client == nil {
		return nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key, b, c.TTL).Err()
}
