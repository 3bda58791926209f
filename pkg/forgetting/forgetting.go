// Package forgetting implements the four-rule forgetting policy: weak
// connection decay, isolation pruning, age-based removal, and an
// optional aggressive pass. It is grounded on the same
// Config-plus-free-function shape the rest of the algorithm packages
// use, in place of a resident ticker-driven manager — the facade, not
// this package, owns when a forget cycle runs.
package forgetting

import (
	"math"
	"time"

	"github.com/arborix/synapse/pkg/engram"
	"github.com/arborix/synapse/pkg/graph"
)

// Config tunes one forget cycle.
type Config struct {
	ConceptIsolationThreshold int
	UnusedConceptDays         int
	WeakConnectionThreshold   float64
	AggressiveForgetting      bool

	// DecayTimeConstantTau is the τ in the weak-connection decay formula
	// w ← w · exp(−days_since_access / (w·τ)); left as a tunable since the
	// base specification names it without pinning a default.
	DecayTimeConstantTau float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		ConceptIsolationThreshold: 1,
		UnusedConceptDays:         30,
		WeakConnectionThreshold:   0.05,
		AggressiveForgetting:      false,
		DecayTimeConstantTau:      30,
	}
}

// Result reports the outcome of one forget cycle.
type Result struct {
	ConceptsForgotten  int
	ConnectionsPruned  int
	ConnectionsDecayed int
	IsolatedRemoved    int
	Duration           time.Duration
}

// Forget runs the four-rule policy over store once.
func Forget(store *graph.Store, cfg Config) Result {
	start := time.Now()
	var res Result

	decayed, pruned := decayWeakConnections(store, cfg)
	res.ConnectionsDecayed += decayed
	res.ConnectionsPruned += pruned

	res.IsolatedRemoved += pruneIsolated(store, cfg)
	res.ConceptsForgotten += removeAged(store, cfg)

	if cfg.AggressiveForgetting {
		_, aggressivePruned := halveRecentShortTerm(store)
		res.ConnectionsPruned += aggressivePruned
	}

	res.Duration = time.Since(start)
	return res
}

func decayWeakConnections(store *graph.Store, cfg Config) (decayed, pruned int) {
	now := time.Now()
	for _, table := range []interface {
		Keys() []string
		Get(key string) (graph.Edge, bool)
		Update(key string, fn func(v graph.Edge, ok bool) (graph.Edge, bool))
	}{store.ShortTermTable(), store.LongTermTable()} {
		for _, key := range table.Keys() {
			e, ok := table.Get(key)
			if !ok {
				continue
			}
			days := now.Sub(e.LastAccessed).Hours() / 24
			w := e.Weight.Float64()
			if w <= 0 || cfg.DecayTimeConstantTau <= 0 {
				continue
			}
			decayedWeight := w * math.Exp(-days/(w*cfg.DecayTimeConstantTau))

			removed := false
			table.Update(key, func(cur graph.Edge, ok bool) (graph.Edge, bool) {
				if !ok {
					return cur, false
				}
				cur.Weight = engram.NewWeight(decayedWeight)
				if cur.Weight.Float64() < cfg.WeakConnectionThreshold {
					removed = true
					return cur, false
				}
				return cur, true
			})
			if removed {
				pruned++
			} else {
				decayed++
			}
		}
	}
	return decayed, pruned
}

func incidentCount(store *graph.Store, id engram.ID) int {
	short, long := store.IncidentEdges(id)
	return len(short) + len(long)
}

func pruneIsolated(store *graph.Store, cfg Config) int {
	removed := 0
	for _, key := range store.ConceptsTable().Keys() {
		c, ok := store.ConceptsTable().Get(key)
		if !ok {
			continue
		}
		if incidentCount(store, c.ID) < cfg.ConceptIsolationThreshold {
			if store.DeleteConcept(c.ID) == nil {
				removed++
			}
		}
	}
	return removed
}

func removeAged(store *graph.Store, cfg Config) int {
	cutoff := time.Duration(cfg.UnusedConceptDays) * 24 * time.Hour
	now := time.Now()
	removed := 0
	for _, key := range store.ConceptsTable().Keys() {
		c, ok := store.ConceptsTable().Get(key)
		if !ok {
			continue
		}
		if now.Sub(c.LastAccessed) < cutoff {
			continue
		}
		if incidentCount(store, c.ID) > 0 {
			continue
		}
		if store.DeleteConcept(c.ID) == nil {
			removed++
		}
	}
	return removed
}

func halveRecentShortTerm(store *graph.Store) (touched, pruned int) {
	cutoff := time.Now().Add(-time.Hour)
	table := store.ShortTermTable()
	for _, key := range table.Keys() {
		e, ok := table.Get(key)
		if !ok || e.LastAccessed.After(cutoff) {
			continue
		}
		removed := false
		table.Update(key, func(cur graph.Edge, ok bool) (graph.Edge, bool) {
			if !ok {
				return cur, false
			}
			cur.Weight = engram.NewWeight(cur.Weight.Float64() / 2)
			if !cur.Weight.IsActive() {
				removed = true
				return cur, false
			}
			return cur, true
		})
		touched++
		if removed {
			pruned++
		}
	}
	return touched, pruned
}
