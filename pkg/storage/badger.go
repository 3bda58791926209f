// Package storage implements the embedded persistence engine: a Badger-
// backed key-value mirror of the graph store with batched writes, an
// approximate-LRU read cache, and snapshot backup/restore.
package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/arborix/synapse/pkg/cache"
	"github.com/arborix/synapse/pkg/engram"
	"github.com/arborix/synapse/pkg/graph"
)

// Key prefixes, matching the opaque key encoding in the data model:
// concept:{id}, st_edge:{from}:{to}, lt_edge:{from}:{to}, working:{id},
// meta:{name}, config.
const (
	prefixConcept  = "concept:"
	prefixSTEdge   = "st_edge:"
	prefixLTEdge   = "lt_edge:"
	prefixWorking  = "working:"
	prefixMeta     = "meta:"
	keyConfig      = "config"
	metaLastCons   = "meta:last_consolidation"
	schemaVersion  = 1
)

func conceptKey(id engram.ID) string { return prefixConcept + id.String() }
func edgeKey(prefix string, k engram.EdgeKey) string { return prefix + k.From.String() + ":" + k.To.String() }
func workingKey(id engram.ID) string { return prefixWorking + id.String() }

// PersistenceConfig tunes the persistence store.
type PersistenceConfig struct {
	DBPath                  string
	AutoSaveIntervalSeconds int
	BatchSize               int
	EnableCompression       bool
	MaxCacheSize            int
	EnableWAL               bool
}

// DefaultPersistenceConfig returns the documented defaults.
func DefaultPersistenceConfig(dbPath string) PersistenceConfig {
	return PersistenceConfig{
		DBPath:                  dbPath,
		AutoSaveIntervalSeconds: 300,
		BatchSize:               1000,
		EnableCompression:       true,
		MaxCacheSize:            100_000,
		EnableWAL:               true,
	}
}

// Store is the embedded key-value mirror of the graph store: every
// concept, edge, working-memory entry, and piece of metadata the facade
// mirrors to disk goes through here.
type Store struct {
	db    *badger.DB
	cache *cache.Cache
	cfg   PersistenceConfig

	mu sync.Mutex // serializes backup-vs-compact, not ordinary reads/writes
}

// Open creates or reopens a persistence store at cfg.DBPath.
func Open(cfg PersistenceConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.DBPath)
	opts = opts.WithLogger(nil)
	if !cfg.EnableWAL {
		// Badger has no WAL-disable knob directly comparable to a
		// classical WAL toggle; the closest analogue is SyncWrites,
		// which is set to the same value as this flag. A future
		// value-log-only mode would live here.
		opts = opts.WithSyncWrites(false)
	} else {
		opts = opts.WithSyncWrites(true)
	}
	if cfg.EnableCompression {
		opts = opts.WithCompression(1) // options.Snappy
	} else {
		opts = opts.WithCompression(0) // options.None
	}
	opts = opts.
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(16 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening badger at %q: %v", engram.ErrPersistenceFailure, cfg.DBPath, err)
	}

	c, err := cache.New(cfg.MaxCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: building read cache: %v", engram.ErrPersistenceFailure, err)
	}

	return &Store{db: db, cache: c, cfg: cfg}, nil
}

// Close releases the underlying database and cache.
func (s *Store) Close() error {
	s.cache.Close()
	return s.db.Close()
}

// envelope version-prefixes every value gob-encodes, so a future
// serialization change can be detected on read instead of silently
// misinterpreted.
type envelope struct {
	Version int
	Payload []byte
}

func encode(v any) ([]byte, error) {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %v", engram.ErrSerializationFailed, err)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(envelope{Version: schemaVersion, Payload: payload.Bytes()}); err != nil {
		return nil, fmt.Errorf("%w: %v", engram.ErrSerializationFailed, err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v any) error {
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return fmt.Errorf("%w: %v", engram.ErrSerializationFailed, err)
	}
	if env.Version != schemaVersion {
		return fmt.Errorf("%w: unsupported schema version %d", engram.ErrSerializationFailed, env.Version)
	}
	if err := gob.NewDecoder(bytes.NewReader(env.Payload)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", engram.ErrSerializationFailed, err)
	}
	return nil
}

// Put writes a single key-value pair through the cache.
func (s *Store) Put(key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("%w: put %q: %v", engram.ErrPersistenceFailure, key, err)
	}
	s.cache.Put(key, value)
	return nil
}

// Delete removes key, invalidating the cache entry.
func (s *Store) Delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("%w: delete %q: %v", engram.ErrPersistenceFailure, key, err)
	}
	s.cache.Remove(key)
	return nil
}

// Get returns the raw value for key, preferring the cache.
func (s *Store) Get(key string) ([]byte, bool, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, true, nil
	}
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = append([]byte(nil), val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %q: %v", engram.ErrPersistenceFailure, key, err)
	}
	s.cache.Put(key, value)
	return value, true, nil
}

// Op is one put or delete in a Batch call.
type Op struct {
	Key    string
	Value  []byte // ignored when Delete is set
	Delete bool
}

// Batch applies ops atomically: all-or-nothing.
func (s *Store) Batch(ops []Op) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, op := range ops {
		var err error
		if op.Delete {
			err = wb.Delete([]byte(op.Key))
		} else {
			err = wb.Set([]byte(op.Key), op.Value)
		}
		if err != nil {
			return fmt.Errorf("%w: batching %q: %v", engram.ErrPersistenceFailure, op.Key, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("%w: flushing batch: %v", engram.ErrPersistenceFailure, err)
	}

	for _, op := range ops {
		if op.Delete {
			s.cache.Remove(op.Key)
		} else {
			s.cache.Put(op.Key, op.Value)
		}
	}
	return nil
}

// Scan performs an ordered iteration over every key with the given
// prefix, invoking fn with each key/value pair. Iteration stops early if
// fn returns false.
func (s *Store) Scan(prefix string, fn func(key string, value []byte) bool) error {
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			var cont bool
			err := item.Value(func(val []byte) error {
				cont = fn(key, append([]byte(nil), val...))
				return nil
			})
			if err != nil {
				return err
			}
			if !cont {
				break
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: scanning prefix %q: %v", engram.ErrPersistenceFailure, prefix, err)
	}
	return nil
}

// SnapshotBackup writes a full, consistent copy of the database to path.
// The store continues to accept writes while the backup streams; Badger's
// Backup reads from a single versioned snapshot rather than locking out
// writers.
func (s *Store) SnapshotBackup(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := createFile(path)
	if err != nil {
		return fmt.Errorf("%w: opening backup file %q: %v", engram.ErrBackupFailed, path, err)
	}
	defer f.Close()

	if _, err := s.db.Backup(f, 0); err != nil {
		return fmt.Errorf("%w: %v", engram.ErrBackupFailed, err)
	}
	return nil
}

// Restore replaces the database's contents with the snapshot at path.
func (s *Store) Restore(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := openFile(path)
	if err != nil {
		return fmt.Errorf("%w: opening backup file %q: %v", engram.ErrRestoreFailed, path, err)
	}
	defer f.Close()

	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("%w: clearing database before load: %v", engram.ErrRestoreFailed, err)
	}
	if err := s.db.Load(f, 16); err != nil {
		return fmt.Errorf("%w: %v", engram.ErrRestoreFailed, err)
	}
	s.cache.Clear()
	return nil
}

// Compact reclaims space by running Badger's value-log garbage collector
// until it reports there is nothing left to reclaim.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		err := s.db.RunValueLogGC(0.5)
		if err == badger.ErrNoRewrite {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: compacting: %v", engram.ErrPersistenceFailure, err)
		}
	}
}

// Stats reports total size, approximate key count, and cache hit rate.
type Stats struct {
	Keys          int64
	LSMSizeBytes  int64
	VLogSizeBytes int64
	Cache         cache.Stats
}

// Stats returns the store's aggregate size and cache statistics.
func (s *Store) Stats() Stats {
	lsm, vlog := s.db.Size()
	var keys int64
	_ = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys++
		}
		return nil
	})
	return Stats{
		Keys:          keys,
		LSMSizeBytes:  lsm,
		VLogSizeBytes: vlog,
		Cache:         s.cache.Stats(),
	}
}

// --- typed helpers over the byte-level operations above ---

// BatchSize returns the configured batch size the facade should chunk
// drains into.
func (s *Store) BatchSize() int {
	if s.cfg.BatchSize <= 0 {
		return 1000
	}
	return s.cfg.BatchSize
}

// EncodeConcept exposes the store's versioned binary codec so callers
// that build their own batch Ops (the facade's drain loop) don't have to
// duplicate the envelope format.
func EncodeConcept(c graph.Concept) ([]byte, error) { return encode(c) }

// EncodeEdge mirrors EncodeConcept for edges.
func EncodeEdge(e graph.Edge) ([]byte, error) { return encode(e) }

// PutConcept serializes and stores a concept.
func (s *Store) PutConcept(c graph.Concept) error {
	v, err := encode(c)
	if err != nil {
		return err
	}
	return s.Put(conceptKey(c.ID), v)
}

// GetConcept loads and deserializes a concept.
func (s *Store) GetConcept(id engram.ID) (graph.Concept, bool, error) {
	v, ok, err := s.Get(conceptKey(id))
	if err != nil || !ok {
		return graph.Concept{}, ok, err
	}
	var c graph.Concept
	if err := decode(v, &c); err != nil {
		return graph.Concept{}, false, err
	}
	return c, true, nil
}

// DeleteConcept removes a concept's persisted record.
func (s *Store) DeleteConcept(id engram.ID) error {
	return s.Delete(conceptKey(id))
}

// PutEdge serializes and stores an edge in the named zone.
func (s *Store) PutEdge(zone graph.Zone, e graph.Edge) error {
	v, err := encode(e)
	if err != nil {
		return err
	}
	return s.Put(edgeKey(zonePrefix(zone), e.Key()), v)
}

// DeleteEdge removes a persisted edge from the named zone.
func (s *Store) DeleteEdge(zone graph.Zone, key engram.EdgeKey) error {
	return s.Delete(edgeKey(zonePrefix(zone), key))
}

func zonePrefix(z graph.Zone) string {
	if z == graph.LongTerm {
		return prefixLTEdge
	}
	return prefixSTEdge
}

// ScanConcepts iterates every persisted concept.
func (s *Store) ScanConcepts(fn func(graph.Concept) bool) error {
	return s.Scan(prefixConcept, func(_ string, v []byte) bool {
		var c graph.Concept
		if decode(v, &c) != nil {
			return true
		}
		return fn(c)
	})
}

// ScanEdges iterates every persisted edge in the named zone.
func (s *Store) ScanEdges(zone graph.Zone, fn func(graph.Edge) bool) error {
	return s.Scan(zonePrefix(zone), func(_ string, v []byte) bool {
		var e graph.Edge
		if decode(v, &e) != nil {
			return true
		}
		return fn(e)
	})
}

// PutConfig persists the active memory configuration.
func (s *Store) PutConfig(cfg engram.MemoryConfig) error {
	v, err := encode(cfg)
	if err != nil {
		return err
	}
	return s.Put(keyConfig, v)
}

// GetConfig loads the persisted memory configuration, if any.
func (s *Store) GetConfig() (engram.MemoryConfig, bool, error) {
	v, ok, err := s.Get(keyConfig)
	if err != nil || !ok {
		return engram.MemoryConfig{}, ok, err
	}
	var cfg engram.MemoryConfig
	if err := decode(v, &cfg); err != nil {
		return engram.MemoryConfig{}, false, err
	}
	return cfg, true, nil
}

// PutLastConsolidation persists the last-consolidation timestamp.
func (s *Store) PutLastConsolidation(t time.Time) error {
	v, err := encode(t)
	if err != nil {
		return err
	}
	return s.Put(metaLastCons, v)
}

// GetLastConsolidation loads the last-consolidation timestamp.
func (s *Store) GetLastConsolidation() (time.Time, bool, error) {
	v, ok, err := s.Get(metaLastCons)
	if err != nil || !ok {
		return time.Time{}, ok, err
	}
	var t time.Time
	if err := decode(v, &t); err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}
