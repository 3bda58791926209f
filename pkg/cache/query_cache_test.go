package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutThenGetReturnsValue(t *testing.T) {
	c, err := New(100)
	require.NoError(t, err)
	defer c.Close()

	c.Put("k1", []byte("v1"))
	c.store.Wait()

	v, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)
}

func TestGetMissingKeyIsAMiss(t *testing.T) {
	c, err := New(100)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get("absent")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, uint64(0), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestRemoveInvalidatesEntry(t *testing.T) {
	c, err := New(100)
	require.NoError(t, err)
	defer c.Close()

	c.Put("k1", []byte("v1"))
	c.store.Wait()
	c.Remove("k1")
	c.store.Wait()

	_, ok := c.Get("k1")
	assert.False(t, ok)
}

func TestClearResetsEntriesAndStats(t *testing.T) {
	c, err := New(100)
	require.NoError(t, err)
	defer c.Close()

	c.Put("k1", []byte("v1"))
	c.store.Wait()
	_, _ = c.Get("k1")

	c.Clear()
	c.store.Wait()

	_, ok := c.Get("k1")
	assert.False(t, ok)
	stats := c.Stats()
	assert.Equal(t, uint64(0), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestStatsComputesHitRate(t *testing.T) {
	c, err := New(100)
	require.NoError(t, err)
	defer c.Close()

	c.Put("k1", []byte("v1"))
	c.store.Wait()
	_, _ = c.Get("k1")
	_, _ = c.Get("k1")
	_, _ = c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 0.0001)
}
