// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"github.com/jonathan/cv-ranker/internal/types"
)

// Environment variables read by FillFromEnv
const (
	EnvAPIKey      = "GEMINI_API_KEY"
	EnvDatabaseURL = "DATABASE_URL"
	EnvCacheDir    = "CV_RANKER_CACHE_DIR"
)

// Embedder types
const (
	EmbedderHashing = "hashing"
	EmbedderGemini  = "gemini"
)

// Cache backends
const (
	CacheNone     = "none"
	CacheMemory   = "memory"
	CacheFile     = "file"
	CachePostgres = "postgres"
)

// Duration is a time.Duration read from a JSON string such as "24h"
type Duration time.Duration

// UnmarshalJSON accepts a Go duration string or a number of seconds
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration must be a string or a number of seconds")
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// MarshalJSON writes the duration as a Go duration string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// EmbedderConfig selects the embedding capability of the vector index
type EmbedderConfig struct {
	Type          string `json:"type,omitempty" validate:"omitempty,oneof=hashing gemini"`
	Dimension     int    `json:"dimension,omitempty" validate:"gte=0"`      // Hashing embedder vector size
	FragmentChars int    `json:"fragment_chars,omitempty" validate:"gte=0"` // Max chunk length before splitting
}

// CacheConfig selects the cache backend
type CacheConfig struct {
	Backend string   `json:"backend,omitempty" validate:"omitempty,oneof=none memory file postgres"`
	Dir     string   `json:"dir,omitempty"` // Directory for the file backend
	TTL     Duration `json:"ttl,omitempty" validate:"gte=0"`
}

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Ranking
	Weights     *types.Weights `json:"weights,omitempty"`
	Vocabulary  string         `json:"vocabulary,omitempty"` // Path to a YAML/JSON skill list
	Language    string         `json:"language,omitempty" validate:"omitempty,oneof=auto fr en"`
	TopK        int            `json:"top_k,omitempty" validate:"gte=0"` // Justification passages per candidate
	Concurrency int            `json:"concurrency,omitempty" validate:"gte=0"`
	Direction   string         `json:"direction,omitempty" validate:"omitempty,oneof=requirement candidate"`
	UseNER      bool           `json:"use_ner,omitempty"` // Enrich entities with the Gemini recognizer

	Embedder EmbedderConfig `json:"embedder"`
	Cache    CacheConfig    `json:"cache"`

	// Behavior
	APIKey       string `json:"api_key,omitempty"`       // Gemini API key
	DatabaseURL  string `json:"database_url,omitempty"`  // PostgreSQL connection URL
	RecordRuns   bool   `json:"record_runs,omitempty"`   // Persist runs in PostgreSQL
	PersistIndex bool   `json:"persist_index,omitempty"` // Reuse embedded indexes stored in PostgreSQL
	Verbose      bool   `json:"verbose,omitempty"`       // Print detailed debug information
	JSONLogs     bool   `json:"json_logs,omitempty"`
}

// NeedsDatabase reports whether any enabled feature uses PostgreSQL
func (c *Config) NeedsDatabase() bool {
	return c.Cache.Backend == CachePostgres || c.RecordRuns || c.PersistIndex
}

// NeedsLLM reports whether any enabled feature calls Gemini
func (c *Config) NeedsLLM() bool {
	return c.Embedder.Type == EmbedderGemini || c.UseNER
}

// Defaults returns the built-in configuration
func Defaults() Config {
	w := types.DefaultWeights()
	return Config{
		Weights:   &w,
		Language:  "auto",
		TopK:      3,
		Direction: "requirement",
		Embedder: EmbedderConfig{
			Type:          EmbedderHashing,
			Dimension:     256,
			FragmentChars: 500,
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			TTL:     Duration(24 * time.Hour),
		},
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// envSettings are the configuration values read from the environment
type envSettings struct {
	APIKey      string `envconfig:"GEMINI_API_KEY"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	CacheDir    string `envconfig:"CV_RANKER_CACHE_DIR"`
}

// FillFromEnv sets the API key, database URL and cache directory from the
// environment when they are empty
func (c *Config) FillFromEnv() error {
	var env envSettings
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	if c.APIKey == "" {
		c.APIKey = env.APIKey
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = env.DatabaseURL
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = env.CacheDir
	}
	return nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("config error: invalid value for '%s' (%s)", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}

	if c.Weights != nil {
		if err := c.Weights.Validate(); err != nil {
			return fmt.Errorf("config error: 'weights': %w", err)
		}
	}

	// Backends with external requirements
	switch c.Cache.Backend {
	case CacheFile:
		if c.Cache.Dir == "" {
			return fmt.Errorf("config error: cache backend 'file' requires 'cache.dir'")
		}
	case CachePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config error: cache backend 'postgres' requires 'database_url' or %s", EnvDatabaseURL)
		}
	}
	if c.RecordRuns && c.DatabaseURL == "" {
		return fmt.Errorf("config error: 'record_runs' requires 'database_url' or %s", EnvDatabaseURL)
	}
	if c.PersistIndex && c.DatabaseURL == "" {
		return fmt.Errorf("config error: 'persist_index' requires 'database_url' or %s", EnvDatabaseURL)
	}
	if c.NeedsLLM() && c.APIKey == "" {
		return fmt.Errorf("config error: Gemini features require 'api_key' or %s", EnvAPIKey)
	}

	if c.Vocabulary != "" {
		if _, err := os.Stat(c.Vocabulary); os.IsNotExist(err) {
			return fmt.Errorf("config error: vocabulary file not found: %s", c.Vocabulary)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Weights == nil && defaults.Weights != nil {
		w := *defaults.Weights
		result.Weights = &w
	}

	// String fields: use default if empty
	if result.Vocabulary == "" {
		result.Vocabulary = defaults.Vocabulary
	}
	if result.Language == "" {
		result.Language = defaults.Language
	}
	if result.Direction == "" {
		result.Direction = defaults.Direction
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.Embedder.Type == "" {
		result.Embedder.Type = defaults.Embedder.Type
	}
	if result.Cache.Backend == "" {
		result.Cache.Backend = defaults.Cache.Backend
	}
	if result.Cache.Dir == "" {
		result.Cache.Dir = defaults.Cache.Dir
	}

	// Numeric fields: use default if zero
	if result.TopK == 0 {
		result.TopK = defaults.TopK
	}
	if result.Concurrency == 0 {
		result.Concurrency = defaults.Concurrency
	}
	if result.Embedder.Dimension == 0 {
		result.Embedder.Dimension = defaults.Embedder.Dimension
	}
	if result.Embedder.FragmentChars == 0 {
		result.Embedder.FragmentChars = defaults.Embedder.FragmentChars
	}
	if result.Cache.TTL == 0 {
		result.Cache.TTL = defaults.Cache.TTL
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// ResolvedWeights returns the configured weights or the defaults
func (c *Config) ResolvedWeights() types.Weights {
	if c.Weights == nil {
		return types.DefaultWeights()
	}
	return *c.Weights
}
