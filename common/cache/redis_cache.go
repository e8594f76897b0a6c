package cache

import (
	"context"
	"time"

	"github.com/lyzr/registry/common/logger"
	"github.com/lyzr/registry/common/redis"
)

// RedisCache stores entries in Redis under a key prefix so several
// registries can share one instance
type RedisCache struct {
	client *redis.Client
	prefix string
	log    *logger.Logger
}

// NewRedisCache creates a cache over an existing client. The client is not
// closed by Close; its owner releases it.
func NewRedisCache(client *redis.Client, prefix string, log *logger.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: prefix,
		log:    log,
	}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

// Get retrieves a value from Redis
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.client.Get(ctx, c.key(key))
}

// Set stores a value with TTL
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.SetWithExpiry(ctx, c.key(key), value, ttl)
}

// Delete removes a value
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Delete(ctx, c.key(key))
}

// Close is a no-op; see NewRedisCache
func (c *RedisCache) Close() error {
	c.log.Info("redis cache closed", "prefix", c.prefix)
	return nil
}
