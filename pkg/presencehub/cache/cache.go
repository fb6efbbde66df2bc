package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is a TTL'd byte cache with pattern invalidation. It fronts the
// resource read endpoints; entries are invalidated whenever a sync or a
// disconnect changes a tenant's data.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	InvalidatePattern(ctx context.Context, pattern string)
}

// LocationsKey is the cache key for one tenant's location list on one
// connection, split by the archived filter.
func LocationsKey(userID, connectionID uint, archivedFilter string) string {
	return fmt.Sprintf("locations:%d:%d:archived=%s", userID, connectionID, archivedFilter)
}

// TenantLocationsPattern matches every cached location list for a tenant.
func TenantLocationsPattern(userID uint) string {
	return fmt.Sprintf("locations:%d:*", userID)
}

// nopCache is used when no Redis address is configured: every read misses
// and writes are dropped.
type nopCache struct{}

// NewNop returns a cache that stores nothing.
func NewNop() Cache {
	return nopCache{}
}

func (nopCache) Get(context.Context, string) ([]byte, bool)           { return nil, false }
func (nopCache) Set(context.Context, string, []byte, time.Duration)  {}
func (nopCache) InvalidatePattern(context.Context, string)           {}
