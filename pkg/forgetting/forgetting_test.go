package forgetting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborix/synapse/pkg/engram"
	"github.com/arborix/synapse/pkg/graph"
)

func TestDecayWeakConnectionsRemovesEdgeBelowThreshold(t *testing.T) {
	s := graph.NewStore()
	a, _ := s.Learn("a", nil)
	b, _ := s.Learn("b", nil)
	_, err := s.Associate(a, b, 0.1)
	require.NoError(t, err)

	key := engram.EdgeKey{From: a, To: b}.String()
	s.ShortTermTable().Update(key, func(e graph.Edge, ok bool) (graph.Edge, bool) {
		e.Weight = engram.Weight(0.05)
		e.LastAccessed = time.Now().Add(-365 * 24 * time.Hour)
		return e, true
	})

	cfg := DefaultConfig()
	res := Forget(s, cfg)
	assert.GreaterOrEqual(t, res.ConnectionsPruned, 1)
	_, ok := s.ShortTermTable().Get(key)
	assert.False(t, ok)
}

func TestPruneIsolatedRemovesConceptsWithNoEdges(t *testing.T) {
	s := graph.NewStore()
	lonely, _ := s.Learn("lonely", nil)

	cfg := DefaultConfig()
	cfg.UnusedConceptDays = 100000 // avoid interacting with age-based removal
	res := Forget(s, cfg)
	assert.Equal(t, 1, res.IsolatedRemoved)
	_, err := s.GetConcept(lonely)
	assert.ErrorIs(t, err, engram.ErrNotFound)
}

func TestRemoveAgedRemovesLongUnusedIsolatedConcepts(t *testing.T) {
	s := graph.NewStore()
	old, _ := s.Learn("old", nil)
	s.ConceptsTable().Update(old.String(), func(c graph.Concept, ok bool) (graph.Concept, bool) {
		c.LastAccessed = time.Now().Add(-60 * 24 * time.Hour)
		return c, true
	})

	cfg := DefaultConfig()
	cfg.ConceptIsolationThreshold = 0 // disable isolation pruning for this test
	res := Forget(s, cfg)
	assert.Equal(t, 1, res.ConceptsForgotten)
	_, err := s.GetConcept(old)
	assert.ErrorIs(t, err, engram.ErrNotFound)
}

func TestAggressiveForgettingHalvesOldShortTermEdges(t *testing.T) {
	s := graph.NewStore()
	a, _ := s.Learn("a", nil)
	b, _ := s.Learn("b", nil)
	_, err := s.Associate(a, b, 0.1)
	require.NoError(t, err)

	key := engram.EdgeKey{From: a, To: b}.String()
	s.ShortTermTable().Update(key, func(e graph.Edge, ok bool) (graph.Edge, bool) {
		e.Weight = engram.Weight(0.5)
		e.LastAccessed = time.Now().Add(-2 * time.Hour)
		return e, true
	})

	cfg := DefaultConfig()
	cfg.WeakConnectionThreshold = 0 // isolate the aggressive-halving effect
	cfg.ConceptIsolationThreshold = 0
	cfg.UnusedConceptDays = 100000
	cfg.AggressiveForgetting = true
	cfg.DecayTimeConstantTau = 1e9 // make exponential decay negligible

	_ = Forget(s, cfg)
	e, ok := s.ShortTermTable().Get(key)
	require.True(t, ok)
	assert.Less(t, float64(e.Weight), 0.5)
}
