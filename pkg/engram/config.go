package engram

import "time"

// WorkingMemoryWindow is how old a working-memory entry may get before a
// sleep cycle evicts it.
const WorkingMemoryWindow = time.Hour

// MemoryConfig tunes the plasticity, consolidation, and recall passes. It
// is immutable once constructed; to change a setting, build a new one with
// NewMemoryConfig and an updated MemoryConfigOption.
type MemoryConfig struct {
	LearningRate               float64
	DecayRate                  float64
	ConsolidationThreshold     float64
	MaxShortTermConnections    int
	ConsolidationIntervalHours int
	MaxRecallResults           int

	// Tunables the base specification leaves implementation-defined.
	LTPRecencyWindow            time.Duration
	PromotionMinActivationCount uint64
	PromotionRecentWindowHours  int
	PromotionMaturityHours      int
	PromotionMinConceptAccess   uint64
	ReconsolidationPenalty      float64
	HebbianDampenedRateFactor   float64
}

// MemoryConfigOption mutates a MemoryConfig under construction.
type MemoryConfigOption func(*MemoryConfig)

// NewMemoryConfig builds a MemoryConfig starting from the documented
// defaults (§3) and applying the given options, then clamps rates into
// sane ranges so a bad option can't produce a config that breaks the
// clamping invariants of Weight.
func NewMemoryConfig(opts ...MemoryConfigOption) MemoryConfig {
	c := MemoryConfig{
		LearningRate:               0.1,
		DecayRate:                  0.01,
		ConsolidationThreshold:     0.5,
		MaxShortTermConnections:    10_000,
		ConsolidationIntervalHours: 24,
		MaxRecallResults:           20,

		LTPRecencyWindow:            time.Hour,
		PromotionMinActivationCount: 3,
		PromotionRecentWindowHours:  72,
		PromotionMaturityHours:      1,
		PromotionMinConceptAccess:   2,
		ReconsolidationPenalty:      0.3,
		HebbianDampenedRateFactor:   0.25,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c.clamped()
}

func (c MemoryConfig) clamped() MemoryConfig {
	c.LearningRate = clampRate(c.LearningRate)
	c.DecayRate = clampRate(c.DecayRate)
	c.ConsolidationThreshold = float64(clamp(c.ConsolidationThreshold))
	c.ReconsolidationPenalty = clampRate(c.ReconsolidationPenalty)
	c.HebbianDampenedRateFactor = clampRate(c.HebbianDampenedRateFactor)
	if c.MaxShortTermConnections <= 0 {
		c.MaxShortTermConnections = 10_000
	}
	if c.MaxRecallResults <= 0 {
		c.MaxRecallResults = 20
	}
	return c
}

func clampRate(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// WithLearningRate overrides the Hebbian/LTP learning rate.
func WithLearningRate(r float64) MemoryConfigOption {
	return func(c *MemoryConfig) { c.LearningRate = r }
}

// WithDecayRate overrides the LTD decay rate.
func WithDecayRate(r float64) MemoryConfigOption {
	return func(c *MemoryConfig) { c.DecayRate = r }
}

// WithConsolidationThreshold overrides the minimum weight considered for
// promotion to the long-term zone.
func WithConsolidationThreshold(t float64) MemoryConfigOption {
	return func(c *MemoryConfig) { c.ConsolidationThreshold = t }
}

// WithMaxShortTermConnections overrides the short-term edge table cap that
// triggers should-consolidate.
func WithMaxShortTermConnections(n int) MemoryConfigOption {
	return func(c *MemoryConfig) { c.MaxShortTermConnections = n }
}

// WithConsolidationIntervalHours overrides the time-based consolidation
// trigger.
func WithConsolidationIntervalHours(h int) MemoryConfigOption {
	return func(c *MemoryConfig) { c.ConsolidationIntervalHours = h }
}

// WithMaxRecallResults overrides the default result cap applied when a
// recall query omits one.
func WithMaxRecallResults(n int) MemoryConfigOption {
	return func(c *MemoryConfig) { c.MaxRecallResults = n }
}
