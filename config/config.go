// Package config provides configuration loading and management for docuplan.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete docuplan pipeline configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Planner   PlannerConfig   `yaml:"planner"`
	Retriever RetrieverConfig `yaml:"retriever"`
	Writer    WriterConfig    `yaml:"writer"`
}

// LLMConfig configures the model endpoint used by every stage.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	Endpoint    string        `yaml:"endpoint"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// RateLimitConfig configures the shared LLM call rate limiter.
type RateLimitConfig struct {
	// MinSpacingS is the minimum number of seconds between successive LLM
	// calls, enforced process-wide across all stages.
	MinSpacingS float64 `yaml:"min_spacing_s"`
}

// RetrievalConfig configures the external retrieval service client.
type RetrievalConfig struct {
	Endpoint   string `yaml:"endpoint"`
	ResultPath string `yaml:"result_path"`
}

// PlannerConfig configures the Planner agent.
type PlannerConfig struct {
	// MaxFormatRetries bounds the structure-phase JSON-repair retry loop.
	MaxFormatRetries int `yaml:"max_format_retries"`

	// GuidanceWorkers bounds the per-part guidance-call worker pool.
	GuidanceWorkers int `yaml:"guidance_workers"`
}

// RetrieverConfig configures the Retriever agent.
type RetrieverConfig struct {
	// MaxIterations (I_max) bounds the reason/act/observe/reflect loop per leaf.
	MaxIterations int `yaml:"max_iterations"`

	// QualityThreshold is the score at which retrieval for a leaf stops early.
	QualityThreshold float64 `yaml:"quality_threshold"`

	// NoProgressScore is the score below which two consecutive iterations
	// trip the no-progress guard.
	NoProgressScore float64 `yaml:"no_progress_score"`

	// DedupStrategy selects how gathered snippets are deduplicated.
	// Only "exact" is implemented today.
	DedupStrategy string `yaml:"dedup_strategy"`

	// Workers bounds the per-leaf worker pool.
	Workers int `yaml:"workers"`
}

// WriterConfig configures the Writer agent.
type WriterConfig struct {
	// MaxAttempts (A_max) bounds the draft/evaluate loop per leaf.
	MaxAttempts int `yaml:"max_attempts"`

	// QualityThreshold is the score at which a draft is accepted.
	QualityThreshold float64 `yaml:"quality_threshold"`

	// Workers bounds the per-leaf worker pool.
	Workers int `yaml:"workers"`
}

// DefaultConfig returns a Config with the defaults named throughout the
// design: 4s LLM call spacing, I_max=3, A_max=3, quality threshold 0.7,
// worker pools of 1/5/3 for planner/retriever/writer.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Endpoint:    "http://localhost:11434/v1",
			Temperature: 0.2,
			MaxTokens:   2048,
			Timeout:     180 * time.Second,
			MaxAttempts: 3,
		},
		RateLimit: RateLimitConfig{
			MinSpacingS: 4.0,
		},
		Retrieval: RetrievalConfig{
			Endpoint:   "http://localhost:8080/search",
			ResultPath: "results",
		},
		Planner: PlannerConfig{
			MaxFormatRetries: 3,
			GuidanceWorkers:  1,
		},
		Retriever: RetrieverConfig{
			MaxIterations:    3,
			QualityThreshold: 0.7,
			NoProgressScore:  0.3,
			DedupStrategy:    "exact",
			Workers:          5,
		},
		Writer: WriterConfig{
			MaxAttempts:      3,
			QualityThreshold: 0.7,
			Workers:          3,
		},
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.Endpoint == "" {
		return fmt.Errorf("llm.endpoint is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		return fmt.Errorf("llm.temperature must be between 0 and 1")
	}
	if c.RateLimit.MinSpacingS < 0 {
		return fmt.Errorf("rate_limit.min_spacing_s must not be negative")
	}
	if c.Retrieval.Endpoint == "" {
		return fmt.Errorf("retrieval.endpoint is required")
	}
	if c.Planner.GuidanceWorkers < 1 {
		return fmt.Errorf("planner.guidance_workers must be at least 1")
	}
	if c.Retriever.MaxIterations < 1 {
		return fmt.Errorf("retriever.max_iterations must be at least 1")
	}
	if c.Retriever.QualityThreshold < 0 || c.Retriever.QualityThreshold > 1 {
		return fmt.Errorf("retriever.quality_threshold must be between 0 and 1")
	}
	if c.Retriever.Workers < 1 {
		return fmt.Errorf("retriever.workers must be at least 1")
	}
	if c.Writer.MaxAttempts < 1 {
		return fmt.Errorf("writer.max_attempts must be at least 1")
	}
	if c.Writer.QualityThreshold < 0 || c.Writer.QualityThreshold > 1 {
		return fmt.Errorf("writer.quality_threshold must be between 0 and 1")
	}
	if c.Writer.Workers < 1 {
		return fmt.Errorf("writer.workers must be at least 1")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file, overlaid on defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes configuration to a YAML file, creating parent
// directories as needed.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Merge overlays non-zero-value fields from other onto c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.LLM.Provider != "" {
		c.LLM.Provider = other.LLM.Provider
	}
	if other.LLM.Model != "" {
		c.LLM.Model = other.LLM.Model
	}
	if other.LLM.Endpoint != "" {
		c.LLM.Endpoint = other.LLM.Endpoint
	}
	if other.LLM.Temperature != 0 {
		c.LLM.Temperature = other.LLM.Temperature
	}
	if other.LLM.MaxTokens != 0 {
		c.LLM.MaxTokens = other.LLM.MaxTokens
	}
	if other.LLM.Timeout != 0 {
		c.LLM.Timeout = other.LLM.Timeout
	}
	if other.LLM.MaxAttempts != 0 {
		c.LLM.MaxAttempts = other.LLM.MaxAttempts
	}

	if other.RateLimit.MinSpacingS != 0 {
		c.RateLimit.MinSpacingS = other.RateLimit.MinSpacingS
	}

	if other.Retrieval.Endpoint != "" {
		c.Retrieval.Endpoint = other.Retrieval.Endpoint
	}
	if other.Retrieval.ResultPath != "" {
		c.Retrieval.ResultPath = other.Retrieval.ResultPath
	}

	if other.Planner.MaxFormatRetries != 0 {
		c.Planner.MaxFormatRetries = other.Planner.MaxFormatRetries
	}
	if other.Planner.GuidanceWorkers != 0 {
		c.Planner.GuidanceWorkers = other.Planner.GuidanceWorkers
	}

	if other.Retriever.MaxIterations != 0 {
		c.Retriever.MaxIterations = other.Retriever.MaxIterations
	}
	if other.Retriever.QualityThreshold != 0 {
		c.Retriever.QualityThreshold = other.Retriever.QualityThreshold
	}
	if other.Retriever.NoProgressScore != 0 {
		c.Retriever.NoProgressScore = other.Retriever.NoProgressScore
	}
	if other.Retriever.DedupStrategy != "" {
		c.Retriever.DedupStrategy = other.Retriever.DedupStrategy
	}
	if other.Retriever.Workers != 0 {
		c.Retriever.Workers = other.Retriever.Workers
	}

	if other.Writer.MaxAttempts != 0 {
		c.Writer.MaxAttempts = other.Writer.MaxAttempts
	}
	if other.Writer.QualityThreshold != 0 {
		c.Writer.QualityThreshold = other.Writer.QualityThreshold
	}
	if other.Writer.Workers != 0 {
		c.Writer.Workers = other.Writer.Workers
	}
}
