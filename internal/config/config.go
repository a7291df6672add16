package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "ORDERS_PIPELINE_CONFIG"
	storePathEnv  = "ORDERS_PIPELINE_STORE"
	sourcePathEnv = "ORDERS_PIPELINE_SOURCE"
)

// Config holds everything the pipeline reads once at process start. No stage
// reads ambient process-wide state; the value is passed into each constructor.
type Config struct {
	Store       StoreConfig       `yaml:"store"`
	Collections CollectionsConfig `yaml:"collections"`
	Source      SourceConfig      `yaml:"source"`
	Processing  ProcessingConfig  `yaml:"processing"`
	Retry       RetryConfig       `yaml:"retry"`
	API         APIConfig         `yaml:"api"`
}

// StoreConfig describes the document store destination.
type StoreConfig struct {
	Path     string `yaml:"path"`     // sqlite database file
	ShardKey string `yaml:"shardKey"` // partition key for raw data
}

// CollectionsConfig names the store collections. Aggregate collections derive
// from Aggregated with a per-rollup suffix.
type CollectionsConfig struct {
	Raw        string `yaml:"raw"`
	Clean      string `yaml:"clean"`
	Aggregated string `yaml:"aggregated"`
}

// SourceConfig points at the tabular input feed.
type SourceConfig struct {
	Path string `yaml:"path"`
}

// ProcessingConfig holds the transport sizes. Chunk bounds ingestion bulk
// loads, batch bounds the cleaning rewrite; neither affects output semantics.
type ProcessingConfig struct {
	ChunkSize int `yaml:"chunkSize"`
	BatchSize int `yaml:"batchSize"`
}

// RetryConfig parametrizes the driver-level retry policy.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	InitialDelay time.Duration `yaml:"initialDelay"`
	Backoff      float64       `yaml:"backoff"`
}

// APIConfig describes the HTTP surface.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

func defaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Path:     "pipeline.db",
			ShardKey: "user_id",
		},
		Collections: CollectionsConfig{
			Raw:        "raw_data",
			Clean:      "clean_data",
			Aggregated: "aggregated_data",
		},
		Source: SourceConfig{
			Path: "data/raw_data.csv",
		},
		Processing: ProcessingConfig{
			ChunkSize: 100000,
			BatchSize: 10000,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			Backoff:      2.0,
		},
		API: APIConfig{
			Addr: ":8080",
		},
	}
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			cfg = defaultConfig()
		}
	}

	cfg.applyEnvOverrides()
	cfg.fillZeroes()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(storePathEnv); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv(sourcePathEnv); v != "" {
		c.Source.Path = v
	}
}

// fillZeroes restores defaults for values a partial YAML file left unset.
func (c *Config) fillZeroes() {
	def := defaultConfig()
	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}
	if c.Store.ShardKey == "" {
		c.Store.ShardKey = def.Store.ShardKey
	}
	if c.Collections.Raw == "" {
		c.Collections.Raw = def.Collections.Raw
	}
	if c.Collections.Clean == "" {
		c.Collections.Clean = def.Collections.Clean
	}
	if c.Collections.Aggregated == "" {
		c.Collections.Aggregated = def.Collections.Aggregated
	}
	if c.Source.Path == "" {
		c.Source.Path = def.Source.Path
	}
	if c.Processing.ChunkSize <= 0 {
		c.Processing.ChunkSize = def.Processing.ChunkSize
	}
	if c.Processing.BatchSize <= 0 {
		c.Processing.BatchSize = def.Processing.BatchSize
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = def.Retry.InitialDelay
	}
	if c.Retry.Backoff <= 0 {
		c.Retry.Backoff = def.Retry.Backoff
	}
	if c.API.Addr == "" {
		c.API.Addr = def.API.Addr
	}
}
