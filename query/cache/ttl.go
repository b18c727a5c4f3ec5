package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TTLCache expires entries a fixed duration after they were stored.
type TTLCache struct {
	id    string
	inner *gocache.Cache
}

// NewTTLCache returns a cache whose entries expire after ttl. Expired
// entries are swept every sweep interval; a sweep of zero disables the
// background janitor and expired entries are dropped lazily on access.
func NewTTLCache(id string, ttl, sweep time.Duration) *TTLCache {
	return &TTLCache{
		id:    id,
		inner: gocache.New(ttl, sweep),
	}
}

// ID implements Cache.
func (c *TTLCache) ID() string {
	return c.id
}

// Put implements Cache.
func (c *TTLCache) Put(key *Key, value any) {
	c.inner.Set(key.String(), entry{key: key.Clone(), value: value}, gocache.DefaultExpiration)
}

// Get implements Cache.
func (c *TTLCache) Get(key *Key) (any, bool) {
	stored, ok := c.inner.Get(key.String())
	if !ok {
		return nil, false
	}
	e, ok := stored.(entry)
	if !ok || !e.key.Equal(key) {
		return nil, false
	}
	return e.value, true
}

// Remove implements Cache.
func (c *TTLCache) Remove(key *Key) {
	c.inner.Delete(key.String())
}

// Clear implements Cache.
func (c *TTLCache) Clear() {
	c.inner.Flush()
}

// Size implements Cache.
func (c *TTLCache) Size() int {
	return c.inner.ItemCount()
}

var _ Cache = (*TTLCache)(nil)
