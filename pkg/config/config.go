// Package config loads the engine's four configuration records —
// memory, persistence, recall, and forgetting — from the process
// environment, the same getEnv/getEnvInt/getEnvBool idiom the teacher
// repo used for its Neo4j-compatible configuration surface, trimmed down
// to this engine's settings. LoadFromEnv reads every field of the four
// records, plus the database path and an optional API key, from NORNIC_*
// variables, falling back to the defaults for anything unset.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/arborix/synapse/pkg/engram"
	"github.com/arborix/synapse/pkg/forgetting"
	"github.com/arborix/synapse/pkg/recall"
	"github.com/arborix/synapse/pkg/storage"
)

// Config bundles the four immutable configuration records plus the
// handful of process-level settings the core reads directly from the
// environment.
type Config struct {
	Memory      engram.MemoryConfig
	Persistence storage.PersistenceConfig
	DefaultRecall recall.Query
	Forgetting  forgetting.Config

	// APIKey, if set, is the only credential the core itself is aware
	// of; it is meaningful only to the serving layer (out of scope
	// here) and is carried through so an embedder doesn't need a
	// second config-loading path for it.
	APIKey string
}

// LoadFromEnv builds a Config from NORNIC_* environment variables,
// falling back to the documented defaults for anything unset.
func LoadFromEnv() *Config {
	dbPath := getEnv("NORNIC_DB_PATH", "./data/synapse")

	return &Config{
		Memory: engram.NewMemoryConfig(
			engram.WithLearningRate(getEnvFloat("NORNIC_LEARNING_RATE", 0.1)),
			engram.WithDecayRate(getEnvFloat("NORNIC_DECAY_RATE", 0.01)),
			engram.WithConsolidationThreshold(getEnvFloat("NORNIC_CONSOLIDATION_THRESHOLD", 0.5)),
			engram.WithMaxShortTermConnections(getEnvInt("NORNIC_MAX_SHORT_TERM_CONNECTIONS", 10_000)),
			engram.WithConsolidationIntervalHours(getEnvInt("NORNIC_CONSOLIDATION_INTERVAL_HOURS", 24)),
			engram.WithMaxRecallResults(getEnvInt("NORNIC_MAX_RECALL_RESULTS", 20)),
		),
		Persistence: storage.PersistenceConfig{
			DBPath:                  dbPath,
			AutoSaveIntervalSeconds: getEnvInt("NORNIC_AUTO_SAVE_INTERVAL_SECONDS", 300),
			BatchSize:               getEnvInt("NORNIC_BATCH_SIZE", 1000),
			EnableCompression:       getEnvBool("NORNIC_ENABLE_COMPRESSION", true),
			MaxCacheSize:            getEnvInt("NORNIC_MAX_CACHE_SIZE", 100_000),
			EnableWAL:               getEnvBool("NORNIC_ENABLE_WAL", true),
		},
		DefaultRecall: recall.Query{
			MaxResults:                getEnvInt("NORNIC_MAX_RECALL_RESULTS", 20),
			MinRelevance:              getEnvFloat("NORNIC_MIN_RELEVANCE", 0.0),
			MaxPathLength:             getEnvInt("NORNIC_MAX_PATH_LENGTH", 3),
			IncludeSemanticSimilarity: getEnvBool("NORNIC_INCLUDE_SEMANTIC_SIMILARITY", false),
			BoostRecentMemories:       getEnvBool("NORNIC_BOOST_RECENT_MEMORIES", false),
			ExplorationBreadth:        getEnvInt("NORNIC_EXPLORATION_BREADTH", 5),
			RecencyWindow:             getEnvDuration("NORNIC_RECENCY_WINDOW", time.Hour),
			RecencyBoostGamma:         getEnvFloat("NORNIC_RECENCY_BOOST_GAMMA", 0.5),
		},
		Forgetting: forgetting.Config{
			ConceptIsolationThreshold: getEnvInt("NORNIC_CONCEPT_ISOLATION_THRESHOLD", 1),
			UnusedConceptDays:         getEnvInt("NORNIC_UNUSED_CONCEPT_DAYS", 30),
			WeakConnectionThreshold:   getEnvFloat("NORNIC_WEAK_CONNECTION_THRESHOLD", 0.05),
			AggressiveForgetting:      getEnvBool("NORNIC_AGGRESSIVE_FORGETTING", false),
			DecayTimeConstantTau:      getEnvFloat("NORNIC_DECAY_TIME_CONSTANT_TAU", 30),
		},
		APIKey: getEnv("NORNIC_API_KEY", ""),
	}
}

// Validate checks the configuration for logically invalid values.
func (c *Config) Validate() error {
	if c.Persistence.DBPath == "" {
		return fmt.Errorf("config: database path must not be empty")
	}
	if c.Persistence.AutoSaveIntervalSeconds < 0 {
		return fmt.Errorf("config: auto save interval must not be negative")
	}
	if c.Persistence.BatchSize <= 0 {
		return fmt.Errorf("config: batch size must be positive")
	}
	if c.Memory.LearningRate < 0 || c.Memory.LearningRate > 1 {
		return fmt.Errorf("config: learning rate must be in [0,1]")
	}
	if c.Memory.DecayRate < 0 || c.Memory.DecayRate > 1 {
		return fmt.Errorf("config: decay rate must be in [0,1]")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
