package graph

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborix/synapse/pkg/engram"
)

// TestInvariantWeightsStayInUnitInterval drives a random sequence of
// associate/access calls and checks that every observed edge weight stays
// within [0.0, 1.0] throughout (global invariant 1, spec §8.1).
func TestInvariantWeightsStayInUnitInterval(t *testing.T) {
	s := NewStore()
	ids := make([]engram.ID, 8)
	for i := range ids {
		id, err := s.Learn("c", nil)
		require.NoError(t, err)
		ids[i] = id
	}

	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		a := ids[rnd.Intn(len(ids))]
		b := ids[rnd.Intn(len(ids))]
		if a == b {
			continue
		}
		if rnd.Intn(2) == 0 {
			_, _ = s.Associate(a, b, 0.3)
		} else {
			_, _ = s.Access(a, 0.3)
		}

		short, long := s.IncidentEdges(a)
		for _, e := range append(short, long...) {
			assert.GreaterOrEqual(t, float64(e.Weight), 0.0)
			assert.LessOrEqual(t, float64(e.Weight), 1.0)
		}
	}
}

// TestInvariantEdgeKeyInAtMostOneZone checks global invariant 2: an edge
// key never appears in both Short-Term and Long-Term simultaneously.
func TestInvariantEdgeKeyInAtMostOneZone(t *testing.T) {
	s := NewStore()
	a, _ := s.Learn("a", nil)
	b, _ := s.Learn("b", nil)
	_, err := s.Associate(a, b, 0.1)
	require.NoError(t, err)

	key := engram.EdgeKey{From: a, To: b}.String()
	_, inShort := s.ShortTermTable().Get(key)
	_, inLong := s.LongTermTable().Get(key)
	assert.True(t, inShort)
	assert.False(t, inLong)

	// Simulate promotion directly as consolidation would.
	e, _ := s.ShortTermTable().Get(key)
	s.LongTermTable().Set(key, e)
	s.ShortTermTable().Delete(key)

	_, inShort = s.ShortTermTable().Get(key)
	_, inLong = s.LongTermTable().Get(key)
	assert.False(t, inShort)
	assert.True(t, inLong)
}

// TestInvariantEdgeEndpointsExist checks global invariant 3: every edge
// created through the store's public contract references existing
// concepts, and removing a concept removes every edge that referenced it.
func TestInvariantEdgeEndpointsExist(t *testing.T) {
	s := NewStore()
	a, _ := s.Learn("a", nil)
	b, _ := s.Learn("b", nil)
	_, err := s.Associate(a, b, 0.1)
	require.NoError(t, err)

	require.NoError(t, s.DeleteConcept(b))

	short, long := s.IncidentEdges(a)
	for _, e := range append(short, long...) {
		_, err := s.GetConcept(e.From)
		assert.NoError(t, err)
		_, err = s.GetConcept(e.To)
		assert.NoError(t, err)
	}
}

// TestInvariantCountersNonDecreasing checks global invariant 4:
// access_count and activation_count never decrease across a trace.
func TestInvariantCountersNonDecreasing(t *testing.T) {
	s := NewStore()
	a, _ := s.Learn("a", nil)
	b, _ := s.Learn("b", nil)
	_, err := s.Associate(a, b, 0.1)
	require.NoError(t, err)

	var lastAccess, lastActivation uint64
	for i := 0; i < 20; i++ {
		c, err := s.Access(a, 0.1)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, c.AccessCount, lastAccess)
		lastAccess = c.AccessCount

		e, err := s.Associate(a, b, 0.1)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, e.ActivationCount, lastActivation)
		lastActivation = e.ActivationCount
	}
}
