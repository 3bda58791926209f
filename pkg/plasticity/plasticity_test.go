package plasticity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborix/synapse/pkg/engram"
	"github.com/arborix/synapse/pkg/graph"
)

func makeStaleEdge(s *graph.Store, from, to engram.ID, staleBy time.Duration) {
	table := s.ShortTermTable()
	key := engram.EdgeKey{From: from, To: to}.String()
	table.Update(key, func(cur graph.Edge, ok bool) (graph.Edge, bool) {
		cur.From = from
		cur.To = to
		cur.Weight = engram.Weight(0.5)
		cur.LastAccessed = time.Now().Add(-staleBy)
		return cur, true
	})
}

func TestLTPPotentiatesRecentEdgesOnly(t *testing.T) {
	s := graph.NewStore()
	a, _ := s.Learn("a", nil)
	b, _ := s.Learn("b", nil)
	c, _ := s.Learn("c", nil)
	d, _ := s.Learn("d", nil)

	recent, err := s.Associate(a, b, 0.1)
	require.NoError(t, err)
	_, err = s.Associate(c, d, 0.1)
	require.NoError(t, err)
	makeStaleEdge(s, c, d, 2*time.Hour)

	cfg := engram.NewMemoryConfig()
	res := LTP(s.ShortTermTable(), cfg, false)
	assert.Equal(t, 1, res.Potentiated)

	key := engram.EdgeKey{From: a, To: b}.String()
	updated, ok := s.ShortTermTable().Get(key)
	require.True(t, ok)
	assert.Greater(t, float64(updated.Weight), float64(recent.Weight))
}

func TestLTDDepressesStaleEdgesAndRemovesWeakOnes(t *testing.T) {
	s := graph.NewStore()
	a, _ := s.Learn("a", nil)
	b, _ := s.Learn("b", nil)
	_, err := s.Associate(a, b, 0.1)
	require.NoError(t, err)

	table := s.ShortTermTable()
	key := engram.EdgeKey{From: a, To: b}.String()
	table.Update(key, func(cur graph.Edge, ok bool) (graph.Edge, bool) {
		cur.Weight = engram.Weight(0.02)
		cur.LastAccessed = time.Now().Add(-2 * time.Hour)
		return cur, true
	})

	cfg := engram.NewMemoryConfig(engram.WithDecayRate(0.9))
	res := LTD(table, cfg)
	assert.Equal(t, 1, res.Removed)
	_, ok := table.Get(key)
	assert.False(t, ok)
}

func TestHebbianStrengthensExistingPairsOnlyNeverCreates(t *testing.T) {
	s := graph.NewStore()
	a, _ := s.Learn("a", nil)
	b, _ := s.Learn("b", nil)
	c, _ := s.Learn("c", nil)
	_, err := s.Associate(a, b, 0.1)
	require.NoError(t, err)

	cfg := engram.NewMemoryConfig()
	res := Hebbian(s, []engram.ID{a, b, c}, cfg)
	assert.Equal(t, 1, res.Potentiated)

	key := engram.EdgeKey{From: a, To: c}.String()
	_, ok := s.ShortTermTable().Get(key)
	assert.False(t, ok, "Hebbian must never create new edges")
}

func TestSleepCycleEvictsStaleWorkingMemory(t *testing.T) {
	s := graph.NewStore()
	a, _ := s.Learn("a", nil)
	_, err := s.Access(a, 0.1)
	require.NoError(t, err)

	wm := s.WorkingMemoryTable()
	wm.Set(a.String(), time.Now().Add(-2*engram.WorkingMemoryWindow))

	cfg := engram.NewMemoryConfig()
	res := SleepCycle(s, cfg)
	assert.GreaterOrEqual(t, res.Removed, 1)

	_, ok := wm.Get(a.String())
	assert.False(t, ok)
}
