// Package cache provides the statement-scoped result caches: the
// composite cache key, the shared per-statement stores and their
// decorators, and the per-transaction overlay that defers visibility
// of staged results until commit.
package cache

import "sync"

// Cache stores query results under composite keys. Implementations
// must be safe for concurrent use; a Put that fails for operational
// reasons may drop the entry, a later Get then simply misses.
type Cache interface {
	// ID returns the cache's stable identifier, usually the statement
	// namespace it serves.
	ID() string
	// Put stores a value under the key, replacing any previous value.
	Put(key *Key, value any)
	// Get retrieves the value stored under the key.
	Get(key *Key) (any, bool)
	// Remove drops the key's entry.
	Remove(key *Key)
	// Clear drops all entries.
	Clear()
	// Size returns the number of stored entries.
	Size() int
}

// Stats describes the observed behavior of a cache.
type Stats struct {
	Hits    int64
	Misses  int64
	Size    int
	HitRate float64
}

type entry struct {
	key   *Key
	value any
}

// putEntry replaces a matching entry in a bucket or appends a new one.
// It reports whether the bucket grew.
func putEntry(bucket []entry, key *Key, value any) ([]entry, bool) {
	for i := range bucket {
		if bucket[i].key.Equal(key) {
			bucket[i].value = value
			return bucket, false
		}
	}
	return append(bucket, entry{key: key.Clone(), value: value}), true
}

// getEntry scans a bucket for the exact key.
func getEntry(bucket []entry, key *Key) (any, bool) {
	for i := range bucket {
		if bucket[i].key.Equal(key) {
			return bucket[i].value, true
		}
	}
	return nil, false
}

// dropEntry removes a matching entry from a bucket. It reports whether
// an entry was removed.
func dropEntry(bucket []entry, key *Key) ([]entry, bool) {
	for i := range bucket {
		if bucket[i].key.Equal(key) {
			return append(bucket[:i:i], bucket[i+1:]...), true
		}
	}
	return bucket, false
}

// SyncCache is the default in-process store: a mutex-guarded hash map
// bucketed by key hash, with full key verification on every hit.
type SyncCache struct {
	id string

	mu      sync.RWMutex
	buckets map[uint64][]entry
	size    int
}

// NewSyncCache returns an empty in-process cache.
func NewSyncCache(id string) *SyncCache {
	return &SyncCache{
		id:      id,
		buckets: make(map[uint64][]entry),
	}
}

// ID implements Cache.
func (c *SyncCache) ID() string {
	return c.id
}

// Put implements Cache.
func (c *SyncCache) Put(key *Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, grew := putEntry(c.buckets[key.Hash()], key, value)
	c.buckets[key.Hash()] = bucket
	if grew {
		c.size++
	}
}

// Get implements Cache.
func (c *SyncCache) Get(key *Key) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return getEntry(c.buckets[key.Hash()], key)
}

// Remove implements Cache.
func (c *SyncCache) Remove(key *Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, removed := dropEntry(c.buckets[key.Hash()], key)
	if !removed {
		return
	}
	if len(bucket) == 0 {
		delete(c.buckets, key.Hash())
	} else {
		c.buckets[key.Hash()] = bucket
	}
	c.size--
}

// Clear implements Cache.
func (c *SyncCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buckets = make(map[uint64][]entry)
	c.size = 0
}

// Size implements Cache.
func (c *SyncCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.size
}

var _ Cache = (*SyncCache)(nil)
