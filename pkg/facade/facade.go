// Package facade implements the persistent facade (component H): it
// wraps a graph store (B) and a persistence store (G) behind a single
// object exposing B's operations in write-through-but-asynchronous form,
// plus save/backup/restore.
//
// The dirty-tracking and autosave-ticker shape is grounded on the
// teacher's write-behind AsyncEngine: a concurrent set of dirty keys
// drained by a dedicated background goroutine on a ticker, with a final
// synchronous drain on shutdown. Unlike that engine, reads here are
// never stale with respect to the in-memory graph — B is always the
// read-of-record; only G's mirror lags.
package facade

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arborix/synapse/pkg/consolidation"
	"github.com/arborix/synapse/pkg/engram"
	"github.com/arborix/synapse/pkg/forgetting"
	"github.com/arborix/synapse/pkg/graph"
	"github.com/arborix/synapse/pkg/plasticity"
	"github.com/arborix/synapse/pkg/recall"
	"github.com/arborix/synapse/pkg/storage"
)

// Facade wraps the in-memory graph store and the persistence store.
type Facade struct {
	store   *graph.Store
	persist *storage.Store
	cfg     engram.MemoryConfig

	dirtyMu      sync.Mutex
	dirtyEdges   map[engram.EdgeKey]struct{}
	dirtyConcept map[engram.ID]struct{}

	degraded atomic.Bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Open constructs a Facade, loading any existing persisted dataset back
// into the graph store. The working-memory ledger is deliberately not
// restored — working memory is transient.
func Open(pcfg storage.PersistenceConfig, cfg engram.MemoryConfig) (*Facade, error) {
	persist, err := storage.Open(pcfg)
	if err != nil {
		return nil, err
	}

	f := &Facade{
		store:        graph.NewStore(),
		persist:      persist,
		cfg:          cfg,
		dirtyEdges:   make(map[engram.EdgeKey]struct{}),
		dirtyConcept: make(map[engram.ID]struct{}),
		stopCh:       make(chan struct{}),
	}

	if err := f.load(); err != nil {
		_ = persist.Close()
		return nil, err
	}

	if pcfg.AutoSaveIntervalSeconds > 0 {
		f.wg.Add(1)
		go f.autosaveLoop(time.Duration(pcfg.AutoSaveIntervalSeconds) * time.Second)
	}

	return f, nil
}

func (f *Facade) load() error {
	if err := f.persist.ScanConcepts(func(c graph.Concept) bool {
		f.store.AddConcept(c)
		return true
	}); err != nil {
		f.markDegraded()
		return err
	}
	if err := f.persist.ScanEdges(graph.ShortTerm, func(e graph.Edge) bool {
		f.store.ShortTermTable().Set(e.Key().String(), e)
		return true
	}); err != nil {
		f.markDegraded()
		return err
	}
	if err := f.persist.ScanEdges(graph.LongTerm, func(e graph.Edge) bool {
		f.store.LongTermTable().Set(e.Key().String(), e)
		return true
	}); err != nil {
		f.markDegraded()
		return err
	}
	if t, ok, err := f.persist.GetLastConsolidation(); err == nil && ok {
		f.store.SetLastConsolidation(t)
	}
	return nil
}

func (f *Facade) markDegraded() {
	f.degraded.Store(true)
}

func (f *Facade) markConceptDirty(id engram.ID) {
	f.dirtyMu.Lock()
	f.dirtyConcept[id] = struct{}{}
	f.dirtyMu.Unlock()
}

func (f *Facade) markEdgeDirty(key engram.EdgeKey) {
	f.dirtyMu.Lock()
	f.dirtyEdges[key] = struct{}{}
	f.dirtyMu.Unlock()
}

func (f *Facade) markAllDirty() {
	f.dirtyMu.Lock()
	defer f.dirtyMu.Unlock()
	for _, key := range f.store.ConceptsTable().Keys() {
		if id, err := engram.ParseID(key); err == nil {
			f.dirtyConcept[id] = struct{}{}
		}
	}
	f.store.ShortTermTable().Range(func(_ string, e graph.Edge) bool {
		f.dirtyEdges[e.Key()] = struct{}{}
		return true
	})
	f.store.LongTermTable().Range(func(_ string, e graph.Edge) bool {
		f.dirtyEdges[e.Key()] = struct{}{}
		return true
	})
}

// --- read-through graph operations ---

// Learn allocates a new concept and marks it dirty.
func (f *Facade) Learn(content string, metadata map[string]string) (engram.ID, error) {
	id, err := f.store.Learn(content, metadata)
	if err != nil {
		return engram.ID{}, err
	}
	f.markConceptDirty(id)
	return id, nil
}

// GetConcept serves from B, falling through to G and repopulating B on a
// miss.
func (f *Facade) GetConcept(id engram.ID) (graph.Concept, error) {
	c, err := f.store.GetConcept(id)
	if err == nil {
		return c, nil
	}
	persisted, ok, perr := f.persist.GetConcept(id)
	if perr != nil {
		f.markDegraded()
		return graph.Concept{}, perr
	}
	if !ok {
		return graph.Concept{}, engram.ErrNotFound
	}
	f.store.AddConcept(persisted)
	return persisted, nil
}

// ListConcepts delegates to B; the full dataset is always resident in
// memory once Open has loaded it.
func (f *Facade) ListConcepts(page, pageSize int) ([]engram.ID, int, bool) {
	return f.store.ListConcepts(page, pageSize)
}

// Access updates B and marks the concept (and its incident edges) dirty.
func (f *Facade) Access(id engram.ID) (graph.Concept, error) {
	c, err := f.store.Access(id, f.cfg.LearningRate)
	if err != nil {
		return graph.Concept{}, err
	}
	f.markConceptDirty(id)
	short, long := f.store.IncidentEdges(id)
	for _, e := range short {
		f.markEdgeDirty(e.Key())
	}
	for _, e := range long {
		f.markEdgeDirty(e.Key())
	}
	return c, nil
}

// DeleteConcept removes the concept from B and queues its removal (and
// that of every edge it touched) from G.
func (f *Facade) DeleteConcept(id engram.ID) error {
	short, long := f.store.IncidentEdges(id)
	if err := f.store.DeleteConcept(id); err != nil {
		return err
	}
	f.markConceptDirty(id)
	for _, e := range short {
		f.markEdgeDirty(e.Key())
	}
	for _, e := range long {
		f.markEdgeDirty(e.Key())
	}
	return nil
}

// Associate creates or strengthens an edge in B and marks it dirty. If the
// short-term table is over its configured cap afterward, an immediate
// forced consolidation is attempted to make room; ErrCapacityExceeded is
// returned only if the table is still over cap once that attempt
// completes, per the CapacityExceeded propagation policy. The edge itself
// is still created/strengthened and returned even in that case — memory
// stays consistent, only the caller is told the table is over budget.
func (f *Facade) Associate(from, to engram.ID) (graph.Edge, error) {
	e, err := f.store.Associate(from, to, f.cfg.LearningRate)
	if err != nil {
		return graph.Edge{}, err
	}
	f.markEdgeDirty(e.Key())
	if f.store.ShortTermTable().Len() > f.cfg.MaxShortTermConnections {
		f.RunConsolidation(true)
		if f.store.ShortTermTable().Len() > f.cfg.MaxShortTermConnections {
			return e, engram.ErrCapacityExceeded
		}
	}
	return e, nil
}

// AssociateBidirectional creates/strengthens both directed edges.
func (f *Facade) AssociateBidirectional(a, b engram.ID) (graph.Edge, graph.Edge, error) {
	ab, ba, err := f.store.AssociateBidirectional(a, b, f.cfg.LearningRate)
	if err != nil {
		return graph.Edge{}, graph.Edge{}, err
	}
	f.markEdgeDirty(ab.Key())
	f.markEdgeDirty(ba.Key())
	return ab, ba, nil
}

// RemoveAssociation deletes an edge from B and queues its removal from G.
func (f *Facade) RemoveAssociation(from, to engram.ID) error {
	key := engram.EdgeKey{From: from, To: to}
	if err := f.store.RemoveAssociation(from, to); err != nil {
		return err
	}
	f.markEdgeDirty(key)
	return nil
}

// Stats reports B's snapshot, flagged degraded once any persistence
// failure has been observed; later successful operations do not clear
// the flag.
func (f *Facade) Stats() graph.Snapshot {
	snap := f.store.Stats()
	snap.Degraded = f.degraded.Load()
	return snap
}

// FacadeStats extends a graph snapshot with the persistence-side sizing
// and cache hit-rate figures spec.md's stats([include persistence]) asks
// for, plus the derived long-term/short-term consolidation ratio.
type FacadeStats struct {
	graph.Snapshot
	ConsolidationRatio float64
	Persistence        *storage.Stats
}

// StatsWithPersistence reports the same snapshot as Stats, plus the
// consolidation ratio and, when includePersistence is set, G's size and
// cache hit-rate statistics.
func (f *Facade) StatsWithPersistence(includePersistence bool) FacadeStats {
	snap := f.Stats()
	out := FacadeStats{Snapshot: snap}
	if total := snap.ShortTermEdges + snap.LongTermEdges; total > 0 {
		out.ConsolidationRatio = float64(snap.LongTermEdges) / float64(total)
	}
	if includePersistence {
		s := f.persist.Stats()
		out.Persistence = &s
	}
	return out
}

// Store exposes the underlying graph store for the read-only algorithm
// packages (recall) and for background passes (plasticity,
// consolidation, forgetting) that this facade schedules.
func (f *Facade) Store() *graph.Store { return f.store }

// Watch subscribes to change events for a single concept id, delegating
// to B's event bus directly — the facade introduces no additional
// buffering of its own.
func (f *Facade) Watch(id engram.ID) (<-chan graph.ChangeEvent, func()) {
	return f.store.Watch(id)
}

// Config returns the active memory configuration.
func (f *Facade) Config() engram.MemoryConfig { return f.cfg }

// --- background algorithm passes ---

// RunSleepCycle runs the combined LTP/LTD/working-memory-eviction pass
// and marks every touched table dirty, since the pass does not report a
// precise per-key diff.
func (f *Facade) RunSleepCycle() plasticity.Result {
	res := plasticity.SleepCycle(f.store, f.cfg)
	f.markAllDirty()
	return res
}

// RunConsolidation runs one consolidation pass.
func (f *Facade) RunConsolidation(force bool) consolidation.Result {
	if !force && !consolidation.ShouldConsolidate(f.store, f.cfg) {
		return consolidation.Result{}
	}
	res := consolidation.ConsolidateMemory(f.store, f.cfg)
	f.markAllDirty()
	return res
}

// RunForgetting runs one forget cycle.
func (f *Facade) RunForgetting(fcfg forgetting.Config) forgetting.Result {
	res := forgetting.Forget(f.store, fcfg)
	f.markAllDirty()
	return res
}

// --- recall (component E operates on B directly; these wrappers are the
// §6 operation-surface entry points a transport would call) ---

// Recall dispatches to associative recall when source is non-nil, or to
// content-similarity recall when query is non-empty. At least one of the
// two must be supplied, otherwise ErrInvalidArgument is returned; when
// both are supplied, source is used. Recall is read-only: it never touches a weight, counter, or
// timestamp.
func (f *Facade) Recall(source *engram.ID, query string, q recall.Query) ([]recall.Result, error) {
	switch {
	case source != nil:
		return recall.AssociativeRecall(f.store, *source, q, f.cfg)
	case query != "":
		return recall.ContentRecall(f.store, query, q, f.cfg), nil
	default:
		return nil, engram.ErrInvalidArgument
	}
}

// StreamingRecall computes the same ordered results as Recall but
// delivers them one at a time over a channel, which the caller must
// drain to completion. The channel is closed once every result (or the
// error, if any) has been sent.
func (f *Facade) StreamingRecall(source *engram.ID, query string, q recall.Query) (<-chan recall.Result, <-chan error) {
	out := make(chan recall.Result)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		results, err := f.Recall(source, query, q)
		if err != nil {
			errc <- err
			return
		}
		for _, r := range results {
			out <- r
		}
	}()
	return out, errc
}

// SpreadingActivationRecall propagates activation from seeds across both
// edge zones and returns the concepts that end above threshold.
func (f *Facade) SpreadingActivationRecall(seeds []engram.ID, threshold float64, maxIterations int, retention float64) []recall.Result {
	return recall.SpreadingActivation(f.store, seeds, threshold, maxIterations, retention)
}

// --- batch operations ---

// BatchOutcome pairs one batch-call input's result with any error it
// produced, so a single bad item doesn't abort the rest of the batch.
type BatchOutcome[T any] struct {
	Value T
	Err   error
}

// BatchLearnInput is one item of a BatchLearn call.
type BatchLearnInput struct {
	Content  string
	Metadata map[string]string
}

// BatchLearn runs Learn over every input, collecting one outcome per item
// in the same order as the inputs; a failure on one item does not abort
// the rest.
func (f *Facade) BatchLearn(inputs []BatchLearnInput) []BatchOutcome[engram.ID] {
	out := make([]BatchOutcome[engram.ID], len(inputs))
	for i, in := range inputs {
		id, err := f.Learn(in.Content, in.Metadata)
		out[i] = BatchOutcome[engram.ID]{Value: id, Err: err}
	}
	return out
}

// BatchAssociateInput is one item of a BatchAssociate call.
type BatchAssociateInput struct {
	From, To      engram.ID
	Bidirectional bool
}

// BatchAssociate runs Associate (or AssociateBidirectional) over every
// input, collecting one outcome per item in the same order as the inputs.
func (f *Facade) BatchAssociate(inputs []BatchAssociateInput) []BatchOutcome[graph.Edge] {
	out := make([]BatchOutcome[graph.Edge], len(inputs))
	for i, in := range inputs {
		if in.Bidirectional {
			ab, _, err := f.AssociateBidirectional(in.From, in.To)
			out[i] = BatchOutcome[graph.Edge]{Value: ab, Err: err}
			continue
		}
		e, err := f.Associate(in.From, in.To)
		out[i] = BatchOutcome[graph.Edge]{Value: e, Err: err}
	}
	return out
}

// --- persistence lifecycle ---

func (f *Facade) autosaveLoop(interval time.Duration) {
	defer f.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	backoff := interval
	for {
		select {
		case <-f.stopCh:
			_ = f.drain()
			return
		case <-ticker.C:
			if err := f.drain(); err != nil {
				f.markDegraded()
				backoff = minDuration(backoff*2, time.Hour)
				time.Sleep(backoff)
				continue
			}
			backoff = interval
		}
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// drain flushes every dirty key to G in batches of Facade's configured
// batch size, resolving each edge's current zone at flush time.
func (f *Facade) drain() error {
	f.dirtyMu.Lock()
	concepts := make([]engram.ID, 0, len(f.dirtyConcept))
	for id := range f.dirtyConcept {
		concepts = append(concepts, id)
	}
	edges := make([]engram.EdgeKey, 0, len(f.dirtyEdges))
	for key := range f.dirtyEdges {
		edges = append(edges, key)
	}
	f.dirtyConcept = make(map[engram.ID]struct{})
	f.dirtyEdges = make(map[engram.EdgeKey]struct{})
	f.dirtyMu.Unlock()

	batchSize := f.persist.BatchSize()
	var ops []storage.Op

	flush := func() error {
		if len(ops) == 0 {
			return nil
		}
		err := f.persist.Batch(ops)
		ops = ops[:0]
		return err
	}

	for _, id := range concepts {
		c, err := f.store.GetConcept(id)
		if err != nil {
			ops = append(ops, storage.Op{Key: "concept:" + id.String(), Delete: true})
		} else {
			v, err := storage.EncodeConcept(c)
			if err != nil {
				return err
			}
			ops = append(ops, storage.Op{Key: "concept:" + id.String(), Value: v})
		}
		if len(ops) >= batchSize {
			if err := flush(); err != nil {
				f.requeueConcepts(concepts)
				return err
			}
		}
	}
	if err := flush(); err != nil {
		f.requeueConcepts(concepts)
		return err
	}

	for _, key := range edges {
		if e, ok := f.store.ShortTermTable().Get(key.String()); ok {
			v, err := storage.EncodeEdge(e)
			if err != nil {
				return err
			}
			ops = append(ops, storage.Op{Key: "st_edge:" + key.String(), Value: v})
			ops = append(ops, storage.Op{Key: "lt_edge:" + key.String(), Delete: true})
		} else if e, ok := f.store.LongTermTable().Get(key.String()); ok {
			v, err := storage.EncodeEdge(e)
			if err != nil {
				return err
			}
			ops = append(ops, storage.Op{Key: "lt_edge:" + key.String(), Value: v})
			ops = append(ops, storage.Op{Key: "st_edge:" + key.String(), Delete: true})
		} else {
			ops = append(ops, storage.Op{Key: "st_edge:" + key.String(), Delete: true})
			ops = append(ops, storage.Op{Key: "lt_edge:" + key.String(), Delete: true})
		}
		if len(ops) >= batchSize {
			if err := flush(); err != nil {
				f.requeueEdges(edges)
				return err
			}
		}
	}
	if err := flush(); err != nil {
		f.requeueEdges(edges)
		return err
	}

	if t := f.store.LastConsolidation(); !t.IsZero() {
		_ = f.persist.PutLastConsolidation(t)
	}
	return nil
}

func (f *Facade) requeueConcepts(ids []engram.ID) {
	f.dirtyMu.Lock()
	defer f.dirtyMu.Unlock()
	for _, id := range ids {
		f.dirtyConcept[id] = struct{}{}
	}
}

func (f *Facade) requeueEdges(keys []engram.EdgeKey) {
	f.dirtyMu.Lock()
	defer f.dirtyMu.Unlock()
	for _, key := range keys {
		f.dirtyEdges[key] = struct{}{}
	}
}

// ForceSave drains every pending dirty key synchronously.
func (f *Facade) ForceSave(_ context.Context) error {
	if err := f.drain(); err != nil {
		f.markDegraded()
		return err
	}
	return nil
}

// Backup serializes pending dirty keys first, then delegates to G.
func (f *Facade) Backup(path string) error {
	if err := f.drain(); err != nil {
		return err
	}
	return f.persist.SnapshotBackup(path)
}

// Restore invokes G's restore and, once that succeeds, replaces B with an
// empty store and reloads it from G; if G's restore fails, B is left as
// it was. The working-memory ledger is not restored.
func (f *Facade) Restore(path string) error {
	if err := f.persist.Restore(path); err != nil {
		return err
	}
	f.store = graph.NewStore()
	f.dirtyMu.Lock()
	f.dirtyConcept = make(map[engram.ID]struct{})
	f.dirtyEdges = make(map[engram.EdgeKey]struct{})
	f.dirtyMu.Unlock()
	return f.load()
}

// Compact reclaims space in G.
func (f *Facade) Compact() error {
	return f.persist.Compact()
}

// Close drains pending dirty keys synchronously, stops the autosave
// worker, and closes the persistence store. The synchronous drain runs
// unconditionally: when auto-save is disabled (AutoSaveIntervalSeconds
// == 0) no background worker is ever started to service stopCh, so this
// is the only drain shutdown gets in that configuration.
func (f *Facade) Close() error {
	close(f.stopCh)
	f.wg.Wait()
	if err := f.drain(); err != nil {
		f.markDegraded()
		_ = f.persist.Close()
		return err
	}
	return f.persist.Close()
}
