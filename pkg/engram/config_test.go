package engram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMemoryConfigDefaults(t *testing.T) {
	cfg := NewMemoryConfig()
	assert.Equal(t, 0.1, cfg.LearningRate)
	assert.Equal(t, 0.01, cfg.DecayRate)
	assert.Equal(t, 0.5, cfg.ConsolidationThreshold)
	assert.Equal(t, 10_000, cfg.MaxShortTermConnections)
	assert.Equal(t, 24, cfg.ConsolidationIntervalHours)
	assert.Equal(t, 20, cfg.MaxRecallResults)
}

func TestNewMemoryConfigOptionsOverride(t *testing.T) {
	cfg := NewMemoryConfig(
		WithLearningRate(0.3),
		WithMaxRecallResults(5),
	)
	assert.Equal(t, 0.3, cfg.LearningRate)
	assert.Equal(t, 5, cfg.MaxRecallResults)
}

func TestNewMemoryConfigClampsOutOfRangeRates(t *testing.T) {
	cfg := NewMemoryConfig(WithLearningRate(5), WithDecayRate(-1))
	assert.Equal(t, 1.0, cfg.LearningRate)
	assert.Equal(t, 0.0, cfg.DecayRate)
}

func TestNewMemoryConfigRejectsNonPositiveCaps(t *testing.T) {
	cfg := NewMemoryConfig(WithMaxShortTermConnections(-1), WithMaxRecallResults(0))
	assert.Equal(t, 10_000, cfg.MaxShortTermConnections)
	assert.Equal(t, 20, cfg.MaxRecallResults)
}
