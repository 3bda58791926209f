// Package plasticity implements the three synaptic update passes —
// long-term potentiation, long-term depression, and Hebbian co-activation
// — as free functions over a *graph.Store. None of them own state: like
// the rest of the algorithm packages, a pass is configured by an
// engram.MemoryConfig and run on demand, the same "free-standing
// algorithm over a mutable reference" shape the decay manager used for
// its tiered recalculation passes, minus the ticker — here the facade
// owns scheduling (see pkg/facade).
package plasticity

import (
	"time"

	"github.com/arborix/synapse/pkg/engram"
	"github.com/arborix/synapse/pkg/graph"
)

// Result reports how many edges a pass touched.
type Result struct {
	Potentiated int
	Depressed   int
	Removed     int
	Duration    time.Duration
}

// LTP applies one long-term-potentiation step to every edge in the given
// table whose last_accessed falls within cfg.LTPRecencyWindow, in either
// the full-rate (Short-Term) or dampened-rate (Long-Term) mode.
func LTP(table edgeTable, cfg engram.MemoryConfig, dampened bool) Result {
	start := time.Now()
	rate := cfg.LearningRate
	if dampened {
		rate *= cfg.HebbianDampenedRateFactor
	}
	now := time.Now()
	var res Result
	for _, key := range table.Keys() {
		e, ok := table.Get(key)
		if !ok {
			continue
		}
		if now.Sub(e.LastAccessed) > cfg.LTPRecencyWindow {
			continue
		}
		table.Update(key, func(cur graph.Edge, ok bool) (graph.Edge, bool) {
			if !ok {
				return cur, false
			}
			cur.Weight = cur.Weight.Potentiate(rate)
			return cur, true
		})
		res.Potentiated++
	}
	res.Duration = time.Since(start)
	return res
}

// LTD applies one long-term-depression step to every edge in the table
// whose last_accessed falls outside cfg.LTPRecencyWindow, removing any
// edge whose resulting weight falls below engram.ActiveThreshold.
func LTD(table edgeTable, cfg engram.MemoryConfig) Result {
	start := time.Now()
	now := time.Now()
	var res Result
	for _, key := range table.Keys() {
		e, ok := table.Get(key)
		if !ok || now.Sub(e.LastAccessed) <= cfg.LTPRecencyWindow {
			continue
		}
		removed := false
		table.Update(key, func(cur graph.Edge, ok bool) (graph.Edge, bool) {
			if !ok {
				return cur, false
			}
			cur.Weight = cur.Weight.Depress(cfg.DecayRate)
			if !cur.Weight.IsActive() {
				removed = true
				return cur, false
			}
			return cur, true
		})
		if removed {
			res.Removed++
		} else {
			res.Depressed++
		}
	}
	res.Duration = time.Since(start)
	return res
}

// Hebbian strengthens, but never creates, an edge between every ordered
// pair of distinct ids in the co-activated set. Edges are looked up in
// both zones; whichever table already holds the key is the one updated.
func Hebbian(store *graph.Store, ids []engram.ID, cfg engram.MemoryConfig) Result {
	start := time.Now()
	var res Result
	for _, i := range ids {
		for _, j := range ids {
			if i == j {
				continue
			}
			key := engram.EdgeKey{From: i, To: j}.String()
			if strengthenIfPresent(store.ShortTermTable(), key, cfg.LearningRate) {
				res.Potentiated++
				continue
			}
			if strengthenIfPresent(store.LongTermTable(), key, cfg.LearningRate*cfg.HebbianDampenedRateFactor) {
				res.Potentiated++
			}
		}
	}
	res.Duration = time.Since(start)
	return res
}

func strengthenIfPresent(table edgeTable, key string, rate float64) bool {
	found := false
	table.Update(key, func(cur graph.Edge, ok bool) (graph.Edge, bool) {
		if !ok {
			return cur, false
		}
		cur.Weight = cur.Weight.Potentiate(rate)
		cur.ActivationCount++
		cur.LastAccessed = time.Now()
		found = true
		return cur, true
	})
	return found
}

// SleepCycle runs LTP then LTD over the Short-Term zone, LTP at a
// dampened rate over Long-Term, and evicts working-memory entries older
// than engram.WorkingMemoryWindow. It is the combined pass the glossary
// calls a sleep cycle. Its Removed count adds the evicted working-memory
// entries to the edges LTD removed.
func SleepCycle(store *graph.Store, cfg engram.MemoryConfig) Result {
	start := time.Now()
	ltp := LTP(store.ShortTermTable(), cfg, false)
	ltd := LTD(store.ShortTermTable(), cfg)
	ltpLong := LTP(store.LongTermTable(), cfg, true)

	evicted := 0
	cutoff := time.Now().Add(-engram.WorkingMemoryWindow)
	wm := store.WorkingMemoryTable()
	for _, key := range wm.Keys() {
		t, ok := wm.Get(key)
		if ok && t.Before(cutoff) {
			wm.Delete(key)
			evicted++
		}
	}

	return Result{
		Potentiated: ltp.Potentiated + ltpLong.Potentiated,
		Depressed:   ltd.Depressed,
		Removed:     ltd.Removed + evicted,
		Duration:    time.Since(start),
	}
}

// edgeTable is the subset of shardMap[graph.Edge]'s behavior the passes
// need; graph.Store exposes its two edge tables through this shape via
// ShortTermTable/LongTermTable.
type edgeTable interface {
	Keys() []string
	Get(key string) (graph.Edge, bool)
	Update(key string, fn func(v graph.Edge, ok bool) (graph.Edge, bool))
}
