package analytics

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix = "analytics:"
	staleKeyPrefix = "analytics:stale:"
)

// Cache holds serialized analytics snapshots in redis. Every write lands
// under two keys: a short-lived fresh copy that bounds dashboard query load,
// and a longer-lived stale copy served when the database is unavailable.
type Cache struct {
	redis    *redis.Client
	ttl      time.Duration
	staleTTL time.Duration
}

func NewCache(client *redis.Client, ttl, staleTTL time.Duration) *Cache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if staleTTL < ttl {
		staleTTL = 5 * time.Minute
	}
	return &Cache{redis: client, ttl: ttl, staleTTL: staleTTL}
}

// Get returns the fresh snapshot for the key, or a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	return c.fetch(ctx, cacheKeyPrefix+key)
}

// GetStale returns the longer-lived fallback snapshot for the key.
func (c *Cache) GetStale(ctx context.Context, key string) ([]byte, bool) {
	return c.fetch(ctx, staleKeyPrefix+key)
}

func (c *Cache) fetch(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// Store writes the snapshot under both the fresh and the stale key. Errors
// are swallowed: a cache outage degrades to direct queries, nothing more.
func (c *Cache) Store(ctx context.Context, key string, data []byte) {
	if c == nil || c.redis == nil {
		return
	}
	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, cacheKeyPrefix+key, data, c.ttl)
	pipe.Set(ctx, staleKeyPrefix+key, data, c.staleTTL)
	_, _ = pipe.Exec(ctx)
}
