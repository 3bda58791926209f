package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborix/synapse/pkg/engram"
)

func TestLearnThenGetConceptReturnsLearnedContent(t *testing.T) {
	s := NewStore()
	id, err := s.Learn("hello world", nil)
	require.NoError(t, err)

	c, err := s.GetConcept(id)
	require.NoError(t, err)
	assert.Equal(t, "hello world", c.Content)
	assert.Equal(t, uint64(0), c.AccessCount)
}

func TestLearnRejectsEmptyContent(t *testing.T) {
	s := NewStore()
	_, err := s.Learn("", nil)
	assert.ErrorIs(t, err, engram.ErrInvalidArgument)
}

func TestAssociateCreatesShortTermEdge(t *testing.T) {
	s := NewStore()
	a, _ := s.Learn("a", nil)
	b, _ := s.Learn("b", nil)

	e, err := s.Associate(a, b, 0.1)
	require.NoError(t, err)
	assert.Equal(t, engram.Weight(engram.InitialWeight), e.Weight)

	short, long := s.IncidentEdges(a)
	assert.Len(t, short, 1)
	assert.Len(t, long, 0)
}

func TestAssociateTwiceStrengthensSameEdge(t *testing.T) {
	s := NewStore()
	a, _ := s.Learn("a", nil)
	b, _ := s.Learn("b", nil)

	first, err := s.Associate(a, b, 0.2)
	require.NoError(t, err)
	second, err := s.Associate(a, b, 0.2)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), second.ActivationCount)
	assert.Greater(t, float64(second.Weight), float64(first.Weight))

	short, _ := s.IncidentEdges(a)
	assert.Len(t, short, 1, "edge key must appear once in short-term")
}

func TestAssociateFailsNotFoundForMissingConcepts(t *testing.T) {
	s := NewStore()
	a, _ := s.Learn("a", nil)
	_, err := s.Associate(a, engram.NewID(), 0.1)
	assert.ErrorIs(t, err, engram.ErrNotFound)
}

func TestAccessAdvancesCountersAndPotentiatesIncidentEdges(t *testing.T) {
	s := NewStore()
	a, _ := s.Learn("a", nil)
	b, _ := s.Learn("b", nil)
	e1, _ := s.Associate(a, b, 0.1)

	_, err := s.Access(a, 0.2)
	require.NoError(t, err)
	c, err := s.Access(a, 0.2)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), c.AccessCount)

	short, _ := s.IncidentEdges(a)
	require.Len(t, short, 1)
	assert.Greater(t, float64(short[0].Weight), float64(e1.Weight))
}

func TestDeleteConceptRemovesIncidentEdges(t *testing.T) {
	s := NewStore()
	a, _ := s.Learn("a", nil)
	b, _ := s.Learn("b", nil)
	_, _ = s.Associate(a, b, 0.1)

	require.NoError(t, s.DeleteConcept(a))
	_, err := s.GetConcept(a)
	assert.ErrorIs(t, err, engram.ErrNotFound)

	short, long := s.IncidentEdges(b)
	assert.Empty(t, short)
	assert.Empty(t, long)
}

func TestRemoveAssociation(t *testing.T) {
	s := NewStore()
	a, _ := s.Learn("a", nil)
	b, _ := s.Learn("b", nil)
	_, _ = s.Associate(a, b, 0.1)

	require.NoError(t, s.RemoveAssociation(a, b))
	assert.ErrorIs(t, s.RemoveAssociation(a, b), engram.ErrNotFound)
}

func TestListConceptsPaginates(t *testing.T) {
	s := NewStore()
	for i := 0; i < 25; i++ {
		_, _ = s.Learn("c", nil)
	}
	ids, total, hasMore := s.ListConcepts(0, 10)
	assert.Len(t, ids, 10)
	assert.Equal(t, 25, total)
	assert.True(t, hasMore)

	_, _, hasMore = s.ListConcepts(2, 10)
	assert.False(t, hasMore)
}

func TestStatsReportsCounts(t *testing.T) {
	s := NewStore()
	a, _ := s.Learn("a", nil)
	b, _ := s.Learn("b", nil)
	_, _ = s.Associate(a, b, 0.1)

	snap := s.Stats()
	assert.Equal(t, 2, snap.Concepts)
	assert.Equal(t, 1, snap.ShortTermEdges)
	assert.Equal(t, 0, snap.LongTermEdges)
}

func TestWatchReceivesChangeEvents(t *testing.T) {
	s := NewStore()
	a, _ := s.Learn("a", nil)
	ch, cancel := s.Watch(a)
	defer cancel()

	_, err := s.Access(a, 0.1)
	require.NoError(t, err)

	ev := <-ch
	assert.Equal(t, Accessed, ev.Type)
	assert.Equal(t, a, ev.ConceptID)
}
