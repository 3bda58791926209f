package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborix/synapse/pkg/engram"
	"github.com/arborix/synapse/pkg/graph"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultPersistenceConfig(t.TempDir())
	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetDeleteRoundTrip(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("k1", []byte("v1")))
	v, ok, err := s.Get("k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)

	require.NoError(t, s.Delete("k1"))
	_, ok, err = s.Get("k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutConceptGetConceptRoundTrip(t *testing.T) {
	s := openTestStore(t)
	c := graph.Concept{ID: engram.NewID(), Content: "hello", CreatedAt: time.Now(), LastAccessed: time.Now()}

	require.NoError(t, s.PutConcept(c))
	loaded, ok, err := s.GetConcept(c.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, c.Content, loaded.Content)
	assert.Equal(t, c.ID, loaded.ID)
}

func TestPutEdgeScanEdgesByZone(t *testing.T) {
	s := openTestStore(t)
	a, b := engram.NewID(), engram.NewID()
	e := graph.Edge{From: a, To: b, Weight: engram.Weight(0.4), CreatedAt: time.Now(), LastAccessed: time.Now()}

	require.NoError(t, s.PutEdge(graph.ShortTerm, e))

	var found []graph.Edge
	require.NoError(t, s.ScanEdges(graph.ShortTerm, func(edge graph.Edge) bool {
		found = append(found, edge)
		return true
	}))
	require.Len(t, found, 1)
	assert.Equal(t, a, found[0].From)

	var longFound []graph.Edge
	require.NoError(t, s.ScanEdges(graph.LongTerm, func(edge graph.Edge) bool {
		longFound = append(longFound, edge)
		return true
	}))
	assert.Empty(t, longFound)
}

func TestBatchAppliesAllOpsAtomically(t *testing.T) {
	s := openTestStore(t)
	ops := []Op{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
	}
	require.NoError(t, s.Batch(ops))

	va, ok, err := s.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), va)

	vb, ok, err := s.Get("b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("2"), vb)
}

func TestSnapshotBackupAndRestoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	c := graph.Concept{ID: engram.NewID(), Content: "persisted", CreatedAt: time.Now(), LastAccessed: time.Now()}
	require.NoError(t, s.PutConcept(c))

	backupPath := t.TempDir() + "/backup.bak"
	require.NoError(t, s.SnapshotBackup(backupPath))

	require.NoError(t, s.PutConcept(graph.Concept{ID: engram.NewID(), Content: "other"}))
	require.NoError(t, s.Restore(backupPath))

	loaded, ok, err := s.GetConcept(c.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "persisted", loaded.Content)
}

func TestGetLastConsolidationRoundTrip(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().Truncate(time.Second)
	require.NoError(t, s.PutLastConsolidation(now))

	loaded, ok, err := s.GetLastConsolidation()
	require.NoError(t, err)
	require.True(t, ok)
	assert.WithinDuration(t, now, loaded, time.Second)
}

func TestStatsReportsKeyCount(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put("a", []byte("1")))
	require.NoError(t, s.Put("b", []byte("2")))

	stats := s.Stats()
	assert.GreaterOrEqual(t, stats.Keys, int64(2))
}
