// Package consolidation implements the short-to-long-term promotion
// policy, interference between competing long-term edges, and
// reconsolidation of recalled long-term edges back to short-term. Like
// plasticity, it operates on a *graph.Store via free functions rather
// than methods on the store itself.
package consolidation

import (
	"time"

	"github.com/arborix/synapse/pkg/engram"
	"github.com/arborix/synapse/pkg/graph"
	"github.com/arborix/synapse/pkg/recall"
)

// Result reports the outcome of one consolidation pass.
type Result struct {
	Promoted         int
	Pruned           int
	Reactivated      int
	ShortTermBefore  int
	LongTermAfter    int
	Duration         time.Duration
}

// ShouldConsolidate reports whether consolidation is due, either because
// the configured interval has elapsed since the last run or because the
// short-term table has grown past its cap.
func ShouldConsolidate(store *graph.Store, cfg engram.MemoryConfig) bool {
	interval := time.Duration(cfg.ConsolidationIntervalHours) * time.Hour
	last := store.LastConsolidation()
	if last.IsZero() || time.Since(last) >= interval {
		return true
	}
	return store.ShortTermTable().Len() > cfg.MaxShortTermConnections
}

// ConsolidateMemory runs one unconditional consolidation pass: promotion
// followed by interference.
func ConsolidateMemory(store *graph.Store, cfg engram.MemoryConfig) Result {
	start := time.Now()
	res := Result{ShortTermBefore: store.ShortTermTable().Len()}

	for _, key := range store.ShortTermTable().Keys() {
		e, ok := store.ShortTermTable().Get(key)
		if !ok {
			continue
		}
		switch evaluate(store, e, cfg) {
		case outcomePromote:
			promote(store, e)
			res.Promoted++
		case outcomePrune:
			store.ShortTermTable().Delete(key)
			res.Pruned++
		case outcomeKeep:
		}
	}

	res.Pruned += applyInterference(store, cfg)

	store.SetLastConsolidation(time.Now())
	res.LongTermAfter = store.LongTermTable().Len()
	res.Duration = time.Since(start)
	return res
}

// ForceConsolidation behaves identically to ConsolidateMemory but ignores
// the interval portion of ShouldConsolidate (there is no interval check
// inside ConsolidateMemory itself, so this is a direct alias retained for
// callers that want to express intent explicitly).
func ForceConsolidation(store *graph.Store, cfg engram.MemoryConfig) Result {
	return ConsolidateMemory(store, cfg)
}

type outcome int

const (
	outcomeKeep outcome = iota
	outcomePromote
	outcomePrune
)

func evaluate(store *graph.Store, e graph.Edge, cfg engram.MemoryConfig) outcome {
	now := time.Now()
	criteria := 0

	if e.Weight.Float64() >= cfg.ConsolidationThreshold {
		criteria++
	}
	if e.ActivationCount >= cfg.PromotionMinActivationCount {
		criteria++
	}
	if now.Sub(e.LastAccessed) <= time.Duration(cfg.PromotionRecentWindowHours)*time.Hour {
		criteria++
	}
	if now.Sub(e.CreatedAt) >= time.Duration(cfg.PromotionMaturityHours)*time.Hour {
		criteria++
	}
	from, fromErr := store.GetConcept(e.From)
	to, toErr := store.GetConcept(e.To)
	if fromErr == nil && toErr == nil &&
		from.AccessCount >= cfg.PromotionMinConceptAccess &&
		to.AccessCount >= cfg.PromotionMinConceptAccess {
		criteria++
	}

	if criteria >= 3 {
		return outcomePromote
	}
	if !e.Weight.IsActive() {
		return outcomePrune
	}
	return outcomeKeep
}

func promote(store *graph.Store, e graph.Edge) {
	key := e.Key().String()
	store.LongTermTable().Set(key, e)
	store.ShortTermTable().Delete(key)
}

// applyInterference walks pairs of long-term edges that share a source
// concept and whose targets have similar content, applying a small LTD
// step to the weaker of the two. It returns the number of edges pruned
// as a result (a depressed edge that falls inactive is removed).
func applyInterference(store *graph.Store, cfg engram.MemoryConfig) int {
	const interferenceStep = 0.05
	pruned := 0

	bySource := make(map[engram.ID][]graph.Edge)
	store.LongTermTable().Range(func(_ string, e graph.Edge) bool {
		bySource[e.From] = append(bySource[e.From], e)
		return true
	})

	for _, edges := range bySource {
		for i := 0; i < len(edges); i++ {
			for j := i + 1; j < len(edges); j++ {
				a, b := edges[i], edges[j]
				ca, errA := store.GetConcept(a.To)
				cb, errB := store.GetConcept(b.To)
				if errA != nil || errB != nil {
					continue
				}
				if recall.ContentSimilarity(ca.Content, cb.Content) < cfg.ConsolidationThreshold {
					continue
				}
				weaker := a
				if b.Weight.Compare(a.Weight) < 0 {
					weaker = b
				}
				key := weaker.Key().String()
				removed := false
				store.LongTermTable().Update(key, func(cur graph.Edge, ok bool) (graph.Edge, bool) {
					if !ok {
						return cur, false
					}
					cur.Weight = cur.Weight.Depress(interferenceStep)
					if !cur.Weight.IsActive() {
						removed = true
						return cur, false
					}
					return cur, true
				})
				if removed {
					pruned++
				}
			}
		}
	}
	return pruned
}

// Reconsolidate copies every long-term edge incident on one of the given
// concepts back to short-term with a bounded weight reduction, removing
// the long-term entry.
func Reconsolidate(store *graph.Store, ids []engram.ID, cfg engram.MemoryConfig) int {
	set := make(map[engram.ID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	var moved int
	store.LongTermTable().Range(func(key string, e graph.Edge) bool {
		if _, ok := set[e.From]; !ok {
			if _, ok := set[e.To]; !ok {
				return true
			}
		}
		reduced := e.Weight.Float64() * (1 - cfg.ReconsolidationPenalty)
		if reduced < engram.ActiveThreshold {
			reduced = engram.ActiveThreshold
		}
		e.Weight = engram.NewWeight(reduced)
		store.ShortTermTable().Set(key, e)
		store.LongTermTable().Delete(key)
		moved++
		return true
	})
	return moved
}
