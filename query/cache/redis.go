package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/satishbabariya/sqlmapper-go/internal/debug"
)

// RedisCache shares a statement cache between processes. Values are
// msgpack snapshots; decoded rows come back as generic maps, the
// caching executor re-shapes them. Operational failures degrade to
// misses and are reported through the debug logger, a broken cache
// node must not fail queries.
type RedisCache struct {
	id     string
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache returns a cache backed by the given client. Entries
// expire after ttl; zero keeps them until invalidated.
func NewRedisCache(id string, client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		id:     id,
		client: client,
		prefix: "sqlmapper:" + id + ":",
		ttl:    ttl,
	}
}

// ID implements Cache.
func (c *RedisCache) ID() string {
	return c.id
}

// Put implements Cache.
func (c *RedisCache) Put(key *Key, value any) {
	blob, err := msgpack.Marshal(value)
	if err != nil {
		debug.Warn("redis cache: marshal failed", "cache", c.id, "error", err)
		return
	}
	if err := c.client.Set(context.Background(), c.prefix+key.String(), blob, c.ttl).Err(); err != nil {
		debug.Warn("redis cache: put failed", "cache", c.id, "error", err)
	}
}

// Get implements Cache.
func (c *RedisCache) Get(key *Key) (any, bool) {
	blob, err := c.client.Get(context.Background(), c.prefix+key.String()).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		debug.Warn("redis cache: get failed", "cache", c.id, "error", err)
		return nil, false
	}
	var value any
	if err := msgpack.Unmarshal(blob, &value); err != nil {
		debug.Warn("redis cache: unmarshal failed", "cache", c.id, "error", err)
		return nil, false
	}
	return value, true
}

// Remove implements Cache.
func (c *RedisCache) Remove(key *Key) {
	if err := c.client.Del(context.Background(), c.prefix+key.String()).Err(); err != nil {
		debug.Warn("redis cache: remove failed", "cache", c.id, "error", err)
	}
}

// Clear implements Cache.
func (c *RedisCache) Clear() {
	ctx := context.Background()
	keys, err := c.client.Keys(ctx, c.prefix+"*").Result()
	if err != nil {
		debug.Warn("redis cache: clear scan failed", "cache", c.id, "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		debug.Warn("redis cache: clear failed", "cache", c.id, "error", err)
	}
}

// Size implements Cache.
func (c *RedisCache) Size() int {
	keys, err := c.client.Keys(context.Background(), c.prefix+"*").Result()
	if err != nil {
		debug.Warn("redis cache: size scan failed", "cache", c.id, "error", err)
		return 0
	}
	return len(keys)
}

var _ Cache = (*RedisCache)(nil)
