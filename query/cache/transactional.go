package cache

import (
	"github.com/satishbabariya/sqlmapper-go/internal/debug"
)

// TransactionalCache overlays a shared statement cache for the duration
// of one transaction. Writes are staged and reach the shared cache only
// on commit; a clear during the transaction hides shared entries from
// this session without touching them until commit. Misses are recorded
// so that caches which lock keys on miss can be unlocked on either
// outcome.
//
// A nil stored value counts as a miss: the shared cache uses nil
// entries as placeholders for misses that were never satisfied.
type TransactionalCache struct {
	delegate      Cache
	clearOnCommit bool
	staged        map[string]entry
	missed        map[string]*Key
}

// NewTransactionalCache returns an overlay for the given shared cache.
func NewTransactionalCache(delegate Cache) *TransactionalCache {
	return &TransactionalCache{
		delegate: delegate,
		staged:   make(map[string]entry),
		missed:   make(map[string]*Key),
	}
}

// ID implements Cache.
func (c *TransactionalCache) ID() string {
	return c.delegate.ID()
}

// Get implements Cache. Hits come from the shared cache; staged writes
// of this transaction are not visible before commit.
func (c *TransactionalCache) Get(key *Key) (any, bool) {
	value, ok := c.delegate.Get(key)
	if value == nil {
		c.missed[key.String()] = key.Clone()
	}
	if c.clearOnCommit {
		return nil, false
	}
	return value, ok
}

// Put implements Cache. The value is staged until commit.
func (c *TransactionalCache) Put(key *Key, value any) {
	c.staged[key.String()] = entry{key: key.Clone(), value: value}
}

// Remove implements Cache. Removal inside a transaction is a no-op, the
// shared cache must not observe the transaction before commit.
func (c *TransactionalCache) Remove(key *Key) {}

// Clear implements Cache. The shared cache is cleared on commit; until
// then its entries are hidden from this session and staged writes are
// dropped.
func (c *TransactionalCache) Clear() {
	c.clearOnCommit = true
	c.staged = make(map[string]entry)
}

// Size implements Cache.
func (c *TransactionalCache) Size() int {
	return c.delegate.Size()
}

// Commit applies the deferred clear, publishes staged entries to the
// shared cache, settles unsatisfied misses with nil placeholders and
// resets the overlay.
func (c *TransactionalCache) Commit() {
	if c.clearOnCommit {
		c.delegate.Clear()
	}
	c.flushStaged()
	c.reset()
}

// Rollback discards staged entries and unlocks recorded misses in the
// shared cache.
func (c *TransactionalCache) Rollback() {
	c.unlockMissed()
	c.reset()
}

func (c *TransactionalCache) flushStaged() {
	for id, e := range c.staged {
		c.delegate.Put(e.key, e.value)
		delete(c.missed, id)
	}
	for _, key := range c.missed {
		c.delegate.Put(key, nil)
	}
}

func (c *TransactionalCache) unlockMissed() {
	for _, key := range c.missed {
		func() {
			defer func() {
				if r := recover(); r != nil {
					debug.Warn("unexpected panic while notifying a rollback to the cache adapter",
						"cache", c.delegate.ID(),
						"panic", r,
					)
				}
			}()
			c.delegate.Remove(key)
		}()
	}
}

func (c *TransactionalCache) reset() {
	c.clearOnCommit = false
	c.staged = make(map[string]entry)
	c.missed = make(map[string]*Key)
}

var _ Cache = (*TransactionalCache)(nil)

// TxCacheManager tracks one transactional overlay per shared cache
// touched during a session, and commits or rolls all of them back
// together. It is confined to a single session and is not safe for
// concurrent use, sessions themselves are not either.
type TxCacheManager struct {
	caches map[Cache]*TransactionalCache
}

// NewTxCacheManager returns an empty manager.
func NewTxCacheManager() *TxCacheManager {
	return &TxCacheManager{caches: make(map[Cache]*TransactionalCache)}
}

// Clear defers a clear of the given cache to commit time.
func (m *TxCacheManager) Clear(c Cache) {
	m.overlay(c).Clear()
}

// Get reads through the overlay for the given cache.
func (m *TxCacheManager) Get(c Cache, key *Key) (any, bool) {
	return m.overlay(c).Get(key)
}

// Put stages a value in the overlay for the given cache.
func (m *TxCacheManager) Put(c Cache, key *Key, value any) {
	m.overlay(c).Put(key, value)
}

// Commit commits every touched overlay.
func (m *TxCacheManager) Commit() {
	for _, tc := range m.caches {
		tc.Commit()
	}
}

// Rollback rolls every touched overlay back.
func (m *TxCacheManager) Rollback() {
	for _, tc := range m.caches {
		tc.Rollback()
	}
}

func (m *TxCacheManager) overlay(c Cache) *TransactionalCache {
	tc, ok := m.caches[c]
	if !ok {
		tc = NewTransactionalCache(c)
		m.caches[c] = tc
	}
	return tc
}
