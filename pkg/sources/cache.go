package sources

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// PayloadCache caches raw provider payloads keyed by request URL. It is an
// optimization only: a miss, error or nil cache always falls back to a
// live fetch.
type PayloadCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, body []byte)
}

// RedisCache backs PayloadCache with Redis. Sportsbook feeds in particular
// meter requests per month, so repeated batch runs within the TTL reuse
// the raw payload instead of spending quota.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache creates a payload cache with the given TTL.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "edgeintel:feed:"}
}

func (c *RedisCache) key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return c.prefix + hex.EncodeToString(sum[:16])
}

// Get returns the cached payload for the URL, if present.
func (c *RedisCache) Get(ctx context.Context, url string) ([]byte, bool) {
	body, err := c.rdb.Get(ctx, c.key(url)).Bytes()
	if err != nil {
		return nil, false
	}
	return body, true
}

// Set stores the payload. Write failures are ignored; the cache is
// best-effort.
func (c *RedisCache) Set(ctx context.Context, url string, body []byte) {
	c.rdb.Set(ctx, c.key(url), body, c.ttl)
}
