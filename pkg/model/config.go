package model

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// EmbeddingTier is a named embedding model configuration. The quality tier
// trades cost and latency for fidelity.
type EmbeddingTier struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// EngineConfig holds process-wide memory engine settings. It is constructed
// once at startup and passed to every component by reference; nothing reads
// these values from ambient state.
type EngineConfig struct {
	CollectionPrefix string        `yaml:"collection_prefix"`
	DefaultTier      EmbeddingTier `yaml:"default_tier"`
	QualityTier      EmbeddingTier `yaml:"quality_tier"`
	QualityThreshold float64       `yaml:"quality_threshold"`

	BatchSize    int `yaml:"batch_size"`
	MinBatchSize int `yaml:"min_batch_size"`

	MinMigrationMessages int           `yaml:"min_migration_messages"`
	BatchInterval        time.Duration `yaml:"batch_interval"`

	CallTimeout time.Duration `yaml:"call_timeout"`
}

// DefaultEngineConfig returns the engine settings used when no config file is
// given. Both tiers emit vectors at the same dimensionality so that one
// collection per AEI can hold both and cosine similarity stays comparable.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		CollectionPrefix: "aei_mem",
		DefaultTier:      EmbeddingTier{Model: "text-embedding-005", Dimensions: 768},
		QualityTier:      EmbeddingTier{Model: "gemini-embedding-001", Dimensions: 768},
		QualityThreshold: 0.7,

		BatchSize:    10,
		MinBatchSize: 3,

		MinMigrationMessages: 30,
		BatchInterval:        500 * time.Millisecond,

		CallTimeout: 30 * time.Second,
	}
}

// LoadEngineConfig reads an EngineConfig from a YAML file, applying defaults
// for omitted fields
func LoadEngineConfig(path string) (*EngineConfig, error) {
	cfg := DefaultEngineConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read engine config", goerr.V("path", path))
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse engine config", goerr.V("path", path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks internal consistency of the configuration
func (c *EngineConfig) Validate() error {
	if c.CollectionPrefix == "" {
		return goerr.New("collection_prefix is empty")
	}
	if c.DefaultTier.Model == "" || c.QualityTier.Model == "" {
		return goerr.New("embedding tier model is empty")
	}
	if c.DefaultTier.Dimensions <= 0 {
		return goerr.New("default tier dimensions must be positive",
			goerr.V("dimensions", c.DefaultTier.Dimensions))
	}

	// All tiers share one dimensionality: vectors from different tiers live in
	// the same per-AEI collection and must be comparable under one metric.
	if c.DefaultTier.Dimensions != c.QualityTier.Dimensions {
		return goerr.New("embedding tiers must share dimensionality",
			goerr.V("default", c.DefaultTier.Dimensions),
			goerr.V("quality", c.QualityTier.Dimensions))
	}

	if c.QualityThreshold < 0 || c.QualityThreshold > 1 {
		return goerr.New("quality_threshold out of range", goerr.V("threshold", c.QualityThreshold))
	}
	if c.MinBatchSize <= 0 || c.BatchSize < c.MinBatchSize {
		return goerr.New("invalid batch sizing",
			goerr.V("batch_size", c.BatchSize), goerr.V("min_batch_size", c.MinBatchSize))
	}
	return nil
}

// CollectionName derives the vector index namespace for one AEI. A pure
// function of (prefix, aei_id): memories of different AEIs can never share a
// collection.
func (c *EngineConfig) CollectionName(aeiID AEIID) string {
	return c.CollectionPrefix + "_" + string(aeiID)
}
