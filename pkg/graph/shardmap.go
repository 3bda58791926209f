package graph

import (
	"hash/fnv"
	"sync"
)

// shardCount is the number of locking buckets each table is split across.
// It mirrors the default shard count used by sharded concurrent-map
// implementations in the wider Go ecosystem (orcaman/concurrent-map and
// similar): enough parallelism for typical multi-core contention without
// the memory overhead of one mutex per entry.
const shardCount = 32

// shardMap is a fixed-shard concurrent map keyed by string, giving the
// graph store per-bucket locking instead of one coarse mutex over an
// entire table. Readers and writers only contend when they hash to the
// same shard.
type shardMap[V any] struct {
	shards [shardCount]*shard[V]
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

func newShardMap[V any]() *shardMap[V] {
	sm := &shardMap[V]{}
	for i := range sm.shards {
		sm.shards[i] = &shard[V]{items: make(map[string]V)}
	}
	return sm
}

func (sm *shardMap[V]) shardFor(key string) *shard[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return sm.shards[h.Sum32()%shardCount]
}

// Get returns the value for key and whether it was present.
func (sm *shardMap[V]) Get(key string) (V, bool) {
	s := sm.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

// Set inserts or replaces the value for key.
func (sm *shardMap[V]) Set(key string, value V) {
	s := sm.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}

// Delete removes key, a no-op if it is already absent.
func (sm *shardMap[V]) Delete(key string) {
	s := sm.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

// Update atomically reads, mutates, and writes back the value for key.
// fn receives the current value (zero value if absent) and whether it was
// present, and returns the new value and whether it should be stored
// (false deletes the key instead). This is the primitive every table
// mutation in the graph store is built from, so a read-modify-write is
// never split across two lock acquisitions.
func (sm *shardMap[V]) Update(key string, fn func(v V, ok bool) (V, bool)) {
	s := sm.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[key]
	next, keep := fn(cur, ok)
	if keep {
		s.items[key] = next
	} else {
		delete(s.items, key)
	}
}

// Len returns the total number of entries across all shards.
func (sm *shardMap[V]) Len() int {
	n := 0
	for _, s := range sm.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

// Keys returns a snapshot of all keys at the time of the call. Callers
// iterating alongside concurrent writers must re-check each key with Get
// before acting on it, since an entry may disappear between Keys and the
// follow-up access.
func (sm *shardMap[V]) Keys() []string {
	keys := make([]string, 0, sm.Len())
	for _, s := range sm.shards {
		s.mu.RLock()
		for k := range s.items {
			keys = append(keys, k)
		}
		s.mu.RUnlock()
	}
	return keys
}

// Range calls fn for a snapshot of (key, value) pairs, one shard at a
// time. fn is called without holding any lock, so it may safely call back
// into the shardMap. Returning false from fn stops the iteration early.
func (sm *shardMap[V]) Range(fn func(key string, value V) bool) {
	for _, s := range sm.shards {
		s.mu.RLock()
		pairs := make([]struct {
			k string
			v V
		}, 0, len(s.items))
		for k, v := range s.items {
			pairs = append(pairs, struct {
				k string
				v V
			}{k, v})
		}
		s.mu.RUnlock()

		for _, p := range pairs {
			if !fn(p.k, p.v) {
				return
			}
		}
	}
}
