package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCache backs Cache with Redis. TTL-based eviction is delegated to
// Redis; pattern invalidation walks SCAN so it stays safe on large keyspaces.
type redisCache struct {
	rdb       *redis.Client
	keyPrefix string
}

// NewRedis returns a Redis-backed cache. Connectivity problems surface as
// logged cache misses rather than request failures.
func NewRedis(addr, keyPrefix string) Cache {
	return &redisCache{
		rdb:       redis.NewClient(&redis.Options{Addr: addr}),
		keyPrefix: keyPrefix,
	}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.rdb.Get(ctx, c.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("cache get %s: %v", key, err)
		return nil, false
	}
	return val, true
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.rdb.Set(ctx, c.keyPrefix+key, value, ttl).Err(); err != nil {
		log.Printf("cache set %s: %v", key, err)
	}
}

func (c *redisCache) InvalidatePattern(ctx context.Context, pattern string) {
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, c.keyPrefix+pattern, 100).Result()
		if err != nil {
			log.Printf("cache scan %s: %v", pattern, err)
			return
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				log.Printf("cache del %s: %v", pattern, err)
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
