// Package cache provides the bounded, approximate-LRU read cache used by
// the persistence store to avoid round-tripping to the embedded
// key-value engine on every read.
//
// It wraps ristretto, the same admission-and-eviction policy Badger
// itself uses internally, instead of hand-rolling LRU bookkeeping: a
// cache sitting in front of Badger gets more value from sharing Badger's
// own battle-tested cost model than from a bespoke container/list LRU.
package cache

import (
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache is a thread-safe, bounded, approximate-LRU cache keyed by the
// persistence store's string key encoding. Entries are not authoritative:
// a miss always falls through to the underlying engine.
type Cache struct {
	store *ristretto.Cache[string, []byte]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New builds a cache holding up to maxEntries items. A cost of 1 is
// charged per entry, so maxEntries is an entry count, not a byte budget.
func New(maxEntries int) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = 100_000
	}
	rc, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: int64(maxEntries) * 10,
		MaxCost:     int64(maxEntries),
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{store: rc}, nil
}

// Get returns the cached value for key, recording a hit or a miss.
func (c *Cache) Get(key string) ([]byte, bool) {
	v, ok := c.store.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Put inserts or refreshes the cached value for key.
func (c *Cache) Put(key string, value []byte) {
	c.store.Set(key, value, 1)
}

// Remove invalidates key, used on writes and deletes so the cache never
// serves a value that no longer matches the store.
func (c *Cache) Remove(key string) {
	c.store.Del(key)
}

// Clear evicts every entry, used by restore() since the underlying
// dataset is being replaced wholesale.
func (c *Cache) Clear() {
	c.store.Clear()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Stats reports cumulative hit/miss counts and the derived hit rate.
type Stats struct {
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// Stats returns the cache's cumulative hit-rate statistics.
func (c *Cache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses
	s := Stats{Hits: hits, Misses: misses}
	if total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() {
	c.store.Close()
}
