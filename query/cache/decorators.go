package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/satishbabariya/sqlmapper-go/internal/debug"
)

// SerializedCache stores msgpack snapshots instead of live values, so
// callers can mutate returned results without corrupting the cache.
// A value that cannot be serialized is a caller bug and panics with a
// ProtocolError.
type SerializedCache struct {
	delegate Cache
}

// NewSerializedCache wraps a cache with snapshot semantics.
func NewSerializedCache(delegate Cache) *SerializedCache {
	return &SerializedCache{delegate: delegate}
}

// ID implements Cache.
func (c *SerializedCache) ID() string {
	return c.delegate.ID()
}

// Put implements Cache.
func (c *SerializedCache) Put(key *Key, value any) {
	if value == nil {
		c.delegate.Put(key, nil)
		return
	}
	blob, err := msgpack.Marshal(value)
	if err != nil {
		panic(&ProtocolError{Cache: c.ID(), Op: "put", Msg: "value is not serializable", Err: err})
	}
	c.delegate.Put(key, blob)
}

// Get implements Cache.
func (c *SerializedCache) Get(key *Key) (any, bool) {
	stored, ok := c.delegate.Get(key)
	if !ok {
		return nil, false
	}
	if stored == nil {
		return nil, true
	}
	blob, ok := stored.([]byte)
	if !ok {
		panic(&ProtocolError{Cache: c.ID(), Op: "get", Msg: fmt.Sprintf("stored value is %T, not a snapshot", stored)})
	}
	var value any
	if err := msgpack.Unmarshal(blob, &value); err != nil {
		panic(&ProtocolError{Cache: c.ID(), Op: "get", Msg: "snapshot is corrupt", Err: err})
	}
	return value, true
}

// Remove implements Cache.
func (c *SerializedCache) Remove(key *Key) {
	c.delegate.Remove(key)
}

// Clear implements Cache.
func (c *SerializedCache) Clear() {
	c.delegate.Clear()
}

// Size implements Cache.
func (c *SerializedCache) Size() int {
	return c.delegate.Size()
}

// BlockingCache lets exactly one caller per key run the underlying
// query on a miss; everyone else blocks until that caller publishes the
// result with Put or gives the key up with Remove. A Get that hits
// releases the key immediately.
type BlockingCache struct {
	delegate Cache

	// Timeout bounds how long a Get waits for another caller's Put.
	// Zero waits forever. Exceeding it panics with a ProtocolError.
	Timeout time.Duration

	mu      sync.Mutex
	latches map[string]chan struct{}
}

// NewBlockingCache wraps a cache with per-key miss locking.
func NewBlockingCache(delegate Cache) *BlockingCache {
	return &BlockingCache{
		delegate: delegate,
		latches:  make(map[string]chan struct{}),
	}
}

// ID implements Cache.
func (c *BlockingCache) ID() string {
	return c.delegate.ID()
}

// Put implements Cache.
func (c *BlockingCache) Put(key *Key, value any) {
	c.delegate.Put(key, value)
	c.release(key)
}

// Get implements Cache.
func (c *BlockingCache) Get(key *Key) (any, bool) {
	c.acquire(key)
	value, ok := c.delegate.Get(key)
	if ok && value != nil {
		c.release(key)
	}
	return value, ok
}

// Remove implements Cache. It only releases the key's latch; dropping
// entries is left to the underlying cache's own invalidation.
func (c *BlockingCache) Remove(key *Key) {
	c.release(key)
}

// Clear implements Cache.
func (c *BlockingCache) Clear() {
	c.delegate.Clear()
}

// Size implements Cache.
func (c *BlockingCache) Size() int {
	return c.delegate.Size()
}

func (c *BlockingCache) acquire(key *Key) {
	id := key.String()
	var deadline <-chan time.Time
	if c.Timeout > 0 {
		timer := time.NewTimer(c.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		c.mu.Lock()
		latch, held := c.latches[id]
		if !held {
			c.latches[id] = make(chan struct{})
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		if deadline == nil {
			<-latch
			continue
		}
		select {
		case <-latch:
		case <-deadline:
			panic(&ProtocolError{Cache: c.ID(), Op: "get", Msg: fmt.Sprintf("timed out after %s waiting for key %s", c.Timeout, id)})
		}
	}
}

func (c *BlockingCache) release(key *Key) {
	id := key.String()
	c.mu.Lock()
	latch, held := c.latches[id]
	if held {
		delete(c.latches, id)
	}
	c.mu.Unlock()
	if !held {
		debug.Warn("blocking cache: release of a key that was not held", "cache", c.ID(), "key", id)
		return
	}
	close(latch)
}

// LoggedCache counts hits and misses and reports the running hit ratio
// through the debug logger.
type LoggedCache struct {
	delegate Cache

	hits     atomic.Int64
	requests atomic.Int64
}

// NewLoggedCache wraps a cache with hit-ratio accounting.
func NewLoggedCache(delegate Cache) *LoggedCache {
	return &LoggedCache{delegate: delegate}
}

// ID implements Cache.
func (c *LoggedCache) ID() string {
	return c.delegate.ID()
}

// Put implements Cache.
func (c *LoggedCache) Put(key *Key, value any) {
	c.delegate.Put(key, value)
}

// Get implements Cache.
func (c *LoggedCache) Get(key *Key) (any, bool) {
	requests := c.requests.Add(1)
	value, ok := c.delegate.Get(key)
	hits := c.hits.Load()
	if ok {
		hits = c.hits.Add(1)
	}
	if debug.Enabled() {
		debug.Debug("cache ratio",
			"cache", c.ID(),
			"ratio", float64(hits)/float64(requests),
		)
	}
	return value, ok
}

// Remove implements Cache.
func (c *LoggedCache) Remove(key *Key) {
	c.delegate.Remove(key)
}

// Clear implements Cache.
func (c *LoggedCache) Clear() {
	c.delegate.Clear()
}

// Size implements Cache.
func (c *LoggedCache) Size() int {
	return c.delegate.Size()
}

// Stats returns the accumulated counters.
func (c *LoggedCache) Stats() Stats {
	hits := c.hits.Load()
	requests := c.requests.Load()
	stats := Stats{
		Hits:   hits,
		Misses: requests - hits,
		Size:   c.delegate.Size(),
	}
	if requests > 0 {
		stats.HitRate = float64(hits) / float64(requests)
	}
	return stats
}

var (
	_ Cache = (*SerializedCache)(nil)
	_ Cache = (*BlockingCache)(nil)
	_ Cache = (*LoggedCache)(nil)
)
