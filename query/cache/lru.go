package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUCache bounds a statement cache to a fixed number of keys, evicting
// the least recently used entry. Hash collisions share an eviction slot
// and are disambiguated by full key verification.
type LRUCache struct {
	id    string
	inner *lru.Cache[uint64, []entry]
}

// NewLRUCache returns a bounded cache holding at most size keys.
func NewLRUCache(id string, size int) (*LRUCache, error) {
	inner, err := lru.New[uint64, []entry](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{id: id, inner: inner}, nil
}

// ID implements Cache.
func (c *LRUCache) ID() string {
	return c.id
}

// Put implements Cache.
func (c *LRUCache) Put(key *Key, value any) {
	bucket, _ := c.inner.Get(key.Hash())
	bucket, _ = putEntry(bucket, key, value)
	c.inner.Add(key.Hash(), bucket)
}

// Get implements Cache.
func (c *LRUCache) Get(key *Key) (any, bool) {
	bucket, ok := c.inner.Get(key.Hash())
	if !ok {
		return nil, false
	}
	return getEntry(bucket, key)
}

// Remove implements Cache.
func (c *LRUCache) Remove(key *Key) {
	bucket, ok := c.inner.Get(key.Hash())
	if !ok {
		return
	}
	bucket, removed := dropEntry(bucket, key)
	if !removed {
		return
	}
	if len(bucket) == 0 {
		c.inner.Remove(key.Hash())
	} else {
		c.inner.Add(key.Hash(), bucket)
	}
}

// Clear implements Cache.
func (c *LRUCache) Clear() {
	c.inner.Purge()
}

// Size implements Cache.
func (c *LRUCache) Size() int {
	return c.inner.Len()
}

var _ Cache = (*LRUCache)(nil)
