package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/cv-ranker/internal/cache"
	"github.com/jonathan/cv-ranker/internal/chunking"
	"github.com/jonathan/cv-ranker/internal/config"
	"github.com/jonathan/cv-ranker/internal/db"
	"github.com/jonathan/cv-ranker/internal/extraction"
	"github.com/jonathan/cv-ranker/internal/llm"
	"github.com/jonathan/cv-ranker/internal/logger"
	"github.com/jonathan/cv-ranker/internal/observability"
	"github.com/jonathan/cv-ranker/internal/vectorindex"
)

// loadConfig reads the --config file if given, fills defaults and the environment
// and applies the global flags. Validation is left to the caller so command
// flags can override values first.
func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	merged := cfg.MergeWithDefaults(config.Defaults())
	if err := merged.FillFromEnv(); err != nil {
		return nil, err
	}
	if verbose {
		merged.Verbose = true
	}
	if jsonLogs {
		merged.JSONLogs = true
	}
	return &merged, nil
}

// app holds the services shared by the subcommands
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *db.DB
	cache   *cache.Service
	llm     llm.Client
	printer *observability.Printer
}

// newApp connects the services the configuration asks for. A database that
// cannot be reached is reported and the run continues without persistence.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log, err := logger.New(cfg.JSONLogs, cfg.Verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	a := &app{cfg: cfg, log: log}

	if cfg.NeedsDatabase() {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err == nil {
			err = database.EnsureSchema(ctx)
			if err != nil {
				database.Close()
			}
		}
		if err != nil {
			log.Warn("database unavailable, continuing without persistence", zap.Error(err))
		} else {
			a.db = database
		}
	}

	a.cache, err = a.openCache()
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.NeedsLLM() {
		client, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.APIKey)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		a.llm = client
	}

	if cfg.Verbose {
		a.printer = observability.NewPrinter(os.Stderr)
	}
	return a, nil
}

// openCache builds the configured cache backend; nil means caching is off
func (a *app) openCache() (*cache.Service, error) {
	ttl := time.Duration(a.cfg.Cache.TTL)
	opts := []cache.Option{cache.WithLogger(a.log)}

	switch a.cfg.Cache.Backend {
	case config.CacheNone:
		return nil, nil
	case config.CacheFile:
		store, err := cache.NewFileStore(a.cfg.Cache.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache directory: %w", err)
		}
		return cache.New(store, ttl, opts...), nil
	case config.CachePostgres:
		if a.db != nil {
			return cache.New(cache.NewPostgresStore(a.db), ttl, opts...), nil
		}
		a.log.Warn("postgres cache unavailable, using memory cache")
		return cache.New(cache.NewMemoryStore(), ttl, opts...), nil
	default:
		return cache.New(cache.NewMemoryStore(), ttl, opts...), nil
	}
}

// embedder returns the configured embedding capability
func (a *app) embedder() vectorindex.Embedder {
	if a.cfg.Embedder.Type == config.EmbedderGemini && a.llm != nil {
		return vectorindex.NewGeminiEmbedder(a.llm)
	}
	return vectorindex.NewHashingEmbedder(a.cfg.Embedder.Dimension)
}

// extractor builds the entity extractor from the configured vocabulary
func (a *app) extractor() (*extraction.Extractor, error) {
	vocab := extraction.DefaultVocabulary()
	if a.cfg.Vocabulary != "" {
		loaded, err := extraction.LoadVocabulary(a.cfg.Vocabulary)
		if err != nil {
			return nil, err
		}
		vocab = loaded
	}

	opts := []extraction.Option{extraction.WithLogger(a.log)}
	if a.cfg.UseNER && a.llm != nil {
		opts = append(opts, extraction.WithRecognizer(extraction.NewLLMRecognizer(a.llm)))
	}
	return extraction.NewExtractor(vocab, opts...), nil
}

// splitConfig returns the fragment settings with the configured max length
func (a *app) splitConfig() chunking.SplitConfig {
	split := chunking.DefaultSplitConfig()
	if a.cfg.Embedder.FragmentChars > 0 {
		split.MaxChars = a.cfg.Embedder.FragmentChars
		if split.MinChars > split.MaxChars {
			split.MinChars = split.MaxChars
		}
	}
	return split
}

// indexStore returns the PostgreSQL index store when index persistence is on
func (a *app) indexStore() vectorindex.Store {
	if !a.cfg.PersistIndex || a.db == nil {
		return nil
	}
	return vectorindex.NewPostgresStore(a.db)
}

// Close releases every service in reverse order of creation
func (a *app) Close() {
	if a.llm != nil {
		_ = a.llm.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	_ = a.log.Sync()
}

// writeJSON writes v as indented JSON to path, or to w when path is empty or "-"
func writeJSON(w io.Writer, path string, v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	jsonBytes = append(jsonBytes, '\n')

	if path == "" || path == "-" {
		if _, err := w.Write(jsonBytes); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(path, jsonBytes, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
