package graph

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/arborix/synapse/pkg/engram"
)

// Store holds the four concurrent tables described in the data model:
// concepts, the short-term and long-term edge zones, and the
// working-memory ledger. All public methods are safe for concurrent use;
// contention is limited to the shard a given key hashes to.
type Store struct {
	concepts      *shardMap[Concept]
	shortTerm     *shardMap[Edge]
	longTerm      *shardMap[Edge]
	workingMemory *shardMap[time.Time]

	lastConsolidation atomic.Int64 // UnixNano; 0 means "never"

	events *bus
}

// NewStore constructs an empty graph store.
func NewStore() *Store {
	return &Store{
		concepts:      newShardMap[Concept](),
		shortTerm:     newShardMap[Edge](),
		longTerm:      newShardMap[Edge](),
		workingMemory: newShardMap[time.Time](),
		events:        newBus(),
	}
}

// Watch subscribes to change events for a single concept id. See bus.Watch.
func (s *Store) Watch(id engram.ID) (<-chan ChangeEvent, func()) {
	return s.events.Watch(id)
}

func (s *Store) publish(ev ChangeEvent) {
	ev.Timestamp = time.Now()
	s.events.Publish(ev)
}

// Learn allocates a fresh concept (or, for a caller-supplied stable id via
// AddConcept, reuses one) and returns its identifier. Learn itself never
// creates an association.
func (s *Store) Learn(content string, metadata map[string]string) (engram.ID, error) {
	if content == "" {
		return engram.ID{}, engram.ErrInvalidArgument
	}
	id := engram.NewID()
	now := time.Now()
	c := Concept{
		ID:           id,
		Content:      content,
		Metadata:     metadata,
		CreatedAt:    now,
		LastAccessed: now,
		AccessCount:  0,
	}
	s.concepts.Set(id.String(), c)
	s.publish(ChangeEvent{Type: Created, ConceptID: id, UpdatedConcept: &c})
	return id, nil
}

// AddConcept inserts or replaces a concept, preserving its id. Payload and
// metadata are overwritten; any existing incident edges are left alone,
// which is what makes AddConcept safe to use for idempotent re-learning
// under a caller-supplied id (e.g. engram.DeriveID(seed)).
func (s *Store) AddConcept(c Concept) engram.ID {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.LastAccessed.IsZero() {
		c.LastAccessed = c.CreatedAt
	}
	stored := c.clone()
	s.concepts.Set(c.ID.String(), stored)
	s.publish(ChangeEvent{Type: Updated, ConceptID: c.ID, UpdatedConcept: &stored})
	return c.ID
}

// GetConcept returns a copy of the concept, or ErrNotFound.
func (s *Store) GetConcept(id engram.ID) (Concept, error) {
	c, ok := s.concepts.Get(id.String())
	if !ok {
		return Concept{}, engram.ErrNotFound
	}
	return c.clone(), nil
}

// ListConcepts returns one page of concept ids in a stable (sorted hex)
// order, the total concept count, and whether more pages follow.
func (s *Store) ListConcepts(page, pageSize int) (ids []engram.ID, total int, hasMore bool) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page < 0 {
		page = 0
	}
	keys := s.concepts.Keys()
	sort.Strings(keys)
	total = len(keys)

	start := page * pageSize
	if start >= total {
		return nil, total, false
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	ids = make([]engram.ID, 0, end-start)
	for _, k := range keys[start:end] {
		id, err := engram.ParseID(k)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, total, end < total
}

// DeleteConcept removes a concept along with every incident edge in both
// zones and its working-memory entry.
func (s *Store) DeleteConcept(id engram.ID) error {
	if _, ok := s.concepts.Get(id.String()); !ok {
		return engram.ErrNotFound
	}
	s.removeIncidentEdges(id)
	s.workingMemory.Delete(id.String())
	s.concepts.Delete(id.String())
	s.publish(ChangeEvent{Type: Removed, ConceptID: id})
	return nil
}

func (s *Store) removeIncidentEdges(id engram.ID) {
	for _, table := range []*shardMap[Edge]{s.shortTerm, s.longTerm} {
		for _, key := range table.Keys() {
			e, ok := table.Get(key)
			if !ok {
				continue
			}
			if e.From == id || e.To == id {
				table.Delete(key)
			}
		}
	}
}

// Associate creates or strengthens a directed synaptic edge from "from" to
// "to". If an edge already exists in either zone, it is strengthened in
// place (one potentiation step, activation_count advanced, last_accessed
// refreshed); otherwise a fresh Short-Term edge is inserted at
// engram.InitialWeight.
func (s *Store) Associate(from, to engram.ID, learningRate float64) (Edge, error) {
	if _, ok := s.concepts.Get(from.String()); !ok {
		return Edge{}, engram.ErrNotFound
	}
	if _, ok := s.concepts.Get(to.String()); !ok {
		return Edge{}, engram.ErrNotFound
	}

	key := engram.EdgeKey{From: from, To: to}.String()
	now := time.Now()

	if updated, ok := s.strengthenIfPresent(s.longTerm, key, learningRate, now); ok {
		s.publish(ChangeEvent{Type: EdgeAdded, ConceptID: from, UpdatedAssociation: &updated})
		return updated, nil
	}
	var result Edge
	s.shortTerm.Update(key, func(cur Edge, ok bool) (Edge, bool) {
		if ok {
			cur.Weight = cur.Weight.Potentiate(learningRate)
			cur.ActivationCount++
			cur.LastAccessed = now
			result = cur
			return cur, true
		}
		result = Edge{
			From:            from,
			To:              to,
			Weight:          engram.InitialWeight,
			CreatedAt:       now,
			LastAccessed:    now,
			ActivationCount: 1,
		}
		return result, true
	})
	s.publish(ChangeEvent{Type: EdgeAdded, ConceptID: from, UpdatedAssociation: &result})
	return result, nil
}

func (s *Store) strengthenIfPresent(table *shardMap[Edge], key string, rate float64, now time.Time) (Edge, bool) {
	var updated Edge
	var found bool
	table.Update(key, func(cur Edge, ok bool) (Edge, bool) {
		if !ok {
			return cur, false
		}
		cur.Weight = cur.Weight.Potentiate(rate)
		cur.ActivationCount++
		cur.LastAccessed = now
		updated = cur
		found = true
		return cur, true
	})
	return updated, found
}

// AssociateBidirectional is shorthand for Associate(a,b) then Associate(b,a).
func (s *Store) AssociateBidirectional(a, b engram.ID, learningRate float64) (Edge, Edge, error) {
	ab, err := s.Associate(a, b, learningRate)
	if err != nil {
		return Edge{}, Edge{}, err
	}
	ba, err := s.Associate(b, a, learningRate)
	if err != nil {
		return Edge{}, Edge{}, err
	}
	return ab, ba, nil
}

// RemoveAssociation deletes the edge (from,to) from whichever zone holds
// it, returning ErrNotFound if it is in neither.
func (s *Store) RemoveAssociation(from, to engram.ID) error {
	key := engram.EdgeKey{From: from, To: to}.String()
	if _, ok := s.shortTerm.Get(key); ok {
		s.shortTerm.Delete(key)
		s.publish(ChangeEvent{Type: EdgeRemoved, ConceptID: from})
		return nil
	}
	if _, ok := s.longTerm.Get(key); ok {
		s.longTerm.Delete(key)
		s.publish(ChangeEvent{Type: EdgeRemoved, ConceptID: from})
		return nil
	}
	return engram.ErrNotFound
}

// Access marks id as just activated: it advances last_accessed and
// access_count on the concept, refreshes its working-memory entry, and
// applies one potentiation step to every edge incident on it in either
// zone.
func (s *Store) Access(id engram.ID, learningRate float64) (Concept, error) {
	now := time.Now()
	var updated Concept
	var found bool
	s.concepts.Update(id.String(), func(c Concept, ok bool) (Concept, bool) {
		if !ok {
			return c, false
		}
		c.LastAccessed = now
		c.AccessCount++
		updated = c.clone()
		found = true
		return c, true
	})
	if !found {
		return Concept{}, engram.ErrNotFound
	}

	s.workingMemory.Set(id.String(), now)

	for _, table := range []*shardMap[Edge]{s.shortTerm, s.longTerm} {
		for _, key := range table.Keys() {
			e, ok := table.Get(key)
			if !ok || (e.From != id && e.To != id) {
				continue
			}
			table.Update(key, func(cur Edge, ok bool) (Edge, bool) {
				if !ok {
					return cur, false
				}
				cur.Weight = cur.Weight.Potentiate(learningRate)
				cur.LastAccessed = now
				return cur, true
			})
		}
	}

	s.publish(ChangeEvent{Type: Accessed, ConceptID: id, UpdatedConcept: &updated})
	return updated, nil
}

// IncidentEdges returns every edge, from either zone, with "id" as an
// endpoint.
func (s *Store) IncidentEdges(id engram.ID) (short []Edge, long []Edge) {
	collect := func(table *shardMap[Edge]) []Edge {
		var out []Edge
		table.Range(func(_ string, e Edge) bool {
			if e.From == id || e.To == id {
				out = append(out, e)
			}
			return true
		})
		return out
	}
	return collect(s.shortTerm), collect(s.longTerm)
}

// LastConsolidation returns the last time consolidation ran, or the zero
// time if it never has.
func (s *Store) LastConsolidation() time.Time {
	ns := s.lastConsolidation.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// SetLastConsolidation records when consolidation last ran.
func (s *Store) SetLastConsolidation(t time.Time) {
	s.lastConsolidation.Store(t.UnixNano())
}

// Stats returns aggregate counts over the store.
func (s *Store) Stats() Snapshot {
	return Snapshot{
		Concepts:         s.concepts.Len(),
		ShortTermEdges:   s.shortTerm.Len(),
		LongTermEdges:    s.longTerm.Len(),
		WorkingMemory:    s.workingMemory.Len(),
		LastConsolidated: s.LastConsolidation(),
	}
}

// ShortTermTable and LongTermTable give the algorithm packages
// (plasticity, consolidation, forgetting, recall) direct access to the
// edge tables; they live in the same module and are expected to operate
// on the store's internals rather than going through a narrower interface,
// matching the "free-standing algorithms over a mutable reference" design
// note.
func (s *Store) ShortTermTable() *shardMap[Edge] { return s.shortTerm }
func (s *Store) LongTermTable() *shardMap[Edge]  { return s.longTerm }
func (s *Store) ConceptsTable() *shardMap[Concept] {
	return s.concepts
}
func (s *Store) WorkingMemoryTable() *shardMap[time.Time] {
	return s.workingMemory
}
