// Package recall implements the three read-only query algorithms:
// associative breadth-first recall, spreading activation, and content
// similarity. None of them mutate the store they are given — recall
// never touches a weight, a counter, or a timestamp.
package recall

import (
	"sort"
	"strings"
	"time"

	"github.com/arborix/synapse/pkg/engram"
	"github.com/arborix/synapse/pkg/graph"
)

// Query configures a recall call. Zero values for MaxResults fall back to
// the memory config's default.
type Query struct {
	MaxResults                int
	MinRelevance              float64
	MaxPathLength             int
	IncludeSemanticSimilarity bool
	BoostRecentMemories       bool
	ExplorationBreadth        int
	RecencyWindow             time.Duration
	RecencyBoostGamma         float64
}

// Result is one recalled concept plus the evidence behind its ranking.
type Result struct {
	Concept           graph.Concept
	Relevance         float64
	PathLength        int
	ConnectionStrength float64
}

func defaultBreadth(n int) int {
	if n <= 0 {
		return 5
	}
	return n
}

// AssociativeRecall performs a breadth-first expansion from source,
// treating both edge zones as one directed multigraph, truncating the
// frontier at each depth to the top ExplorationBreadth neighbors by edge
// weight, and scoring each reached concept by the product of edge
// weights along the discovered path (keeping the maximum when a concept
// is reached more than once), optionally boosted by recency.
func AssociativeRecall(store *graph.Store, source engram.ID, q Query, cfg engram.MemoryConfig) ([]Result, error) {
	root, err := store.GetConcept(source)
	if err != nil {
		return nil, err
	}
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = cfg.MaxRecallResults
	}
	breadth := defaultBreadth(q.ExplorationBreadth)

	if q.MaxPathLength <= 0 {
		return []Result{{Concept: root, Relevance: 1, PathLength: 0, ConnectionStrength: 1}}, nil
	}

	type frontierEntry struct {
		id         engram.ID
		relevance  float64
		pathLength int
	}

	best := make(map[engram.ID]Result)
	visited := map[engram.ID]bool{source: true}
	frontier := []frontierEntry{{id: source, relevance: 1, pathLength: 0}}

	for depth := 0; depth < q.MaxPathLength && len(frontier) > 0; depth++ {
		var next []frontierEntry
		for _, f := range frontier {
			neighbors := outgoing(store, f.id)
			sort.Slice(neighbors, func(i, j int) bool {
				return neighbors[i].Weight.Compare(neighbors[j].Weight) > 0
			})
			if len(neighbors) > breadth {
				neighbors = neighbors[:breadth]
			}
			for _, e := range neighbors {
				rel := f.relevance * e.Weight.Float64()
				c, err := store.GetConcept(e.To)
				if err != nil {
					continue
				}
				if q.BoostRecentMemories {
					rel *= 1 + q.RecencyBoostGamma*recency(c.LastAccessed, q.RecencyWindow)
				}
				pl := f.pathLength + 1
				if existing, ok := best[e.To]; (!ok && !visited[e.To]) || (ok && rel > existing.Relevance) {
					best[e.To] = Result{Concept: c, Relevance: rel, PathLength: pl, ConnectionStrength: rel}
				}
				if visited[e.To] {
					continue
				}
				visited[e.To] = true
				next = append(next, frontierEntry{id: e.To, relevance: rel, pathLength: pl})
			}
		}
		frontier = next
	}

	return rankAndTruncate(best, q.MinRelevance, maxResults), nil
}

func outgoing(store *graph.Store, id engram.ID) []graph.Edge {
	short, long := store.IncidentEdges(id)
	out := make([]graph.Edge, 0, len(short)+len(long))
	for _, e := range short {
		if e.From == id {
			out = append(out, e)
		}
	}
	for _, e := range long {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

func recency(t time.Time, window time.Duration) float64 {
	if window <= 0 {
		window = time.Hour
	}
	age := time.Since(t)
	if age <= 0 {
		return 1
	}
	if age >= window {
		return 0
	}
	return 1 - float64(age)/float64(window)
}

func rankAndTruncate(best map[engram.ID]Result, minRelevance float64, maxResults int) []Result {
	out := make([]Result, 0, len(best))
	for _, r := range best {
		if r.Relevance >= minRelevance {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Relevance != out[j].Relevance {
			return out[i].Relevance > out[j].Relevance
		}
		return out[i].Concept.ID.String() < out[j].Concept.ID.String()
	})
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

// SpreadingActivation propagates activation from a set of seeds for up to
// maxIterations rounds; each active concept distributes
// activation*edge_weight to its neighbors and retains activation*retention
// itself. Activation below threshold is clamped to zero.
func SpreadingActivation(store *graph.Store, seeds []engram.ID, threshold float64, maxIterations int, retention float64) []Result {
	activation := make(map[engram.ID]float64, len(seeds))
	for _, id := range seeds {
		activation[id] = 1.0
	}

	for iter := 0; iter < maxIterations; iter++ {
		next := make(map[engram.ID]float64, len(activation))
		for id, a := range activation {
			if a < threshold {
				continue
			}
			next[id] += a * retention
			for _, e := range outgoing(store, id) {
				next[e.To] += a * e.Weight.Float64()
			}
		}
		for id, a := range next {
			if a < threshold {
				delete(next, id)
			}
		}
		activation = next
	}

	out := make([]Result, 0, len(activation))
	for id, a := range activation {
		if a < threshold {
			continue
		}
		c, err := store.GetConcept(id)
		if err != nil {
			continue
		}
		out = append(out, Result{Concept: c, Relevance: a, ConnectionStrength: a})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Relevance != out[j].Relevance {
			return out[i].Relevance > out[j].Relevance
		}
		return out[i].Concept.ID.String() < out[j].Concept.ID.String()
	})
	return out
}

// ContentRecall ranks every concept in the store by ContentSimilarity to
// query, returning those at or above MinRelevance.
func ContentRecall(store *graph.Store, query string, q Query, cfg engram.MemoryConfig) []Result {
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = cfg.MaxRecallResults
	}

	best := make(map[engram.ID]Result)
	store.ConceptsTable().Range(func(_ string, c graph.Concept) bool {
		sim := ContentSimilarity(query, c.Content)
		if sim < q.MinRelevance {
			return true
		}
		if q.BoostRecentMemories {
			sim *= 1 + q.RecencyBoostGamma*recency(c.LastAccessed, q.RecencyWindow)
		}
		best[c.ID] = Result{Concept: c, Relevance: sim, ConnectionStrength: sim}
		return true
	})
	return rankAndTruncate(best, q.MinRelevance, maxResults)
}

// ContentSimilarity is the content-similarity contract shared by recall
// and consolidation's interference pass: symmetric, 1 for identical
// strings, 0 for disjoint strings, monotone in lexical overlap. This
// implementation is Jaccard over the set of lowercased tokens of length
// at least 3, a stand-in the specification explicitly leaves
// implementation-defined.
func ContentSimilarity(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,;:!?\"'()[]{}")
		if len(tok) >= 3 {
			out[tok] = struct{}{}
		}
	}
	return out
}
