package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-ranker/internal/config"
	"github.com/jonathan/cv-ranker/internal/observability"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the score and embedding cache",
}

var cacheBackend string

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache entry counts and size",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCache(cmd, func(ctx context.Context, a *app) error {
			observability.NewPrinter(os.Stdout).PrintCacheStats(a.cache.Stats(ctx))
			return nil
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cache entry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCache(cmd, func(ctx context.Context, a *app) error {
			_, _ = fmt.Fprintf(os.Stdout, "Removed %d cache entries\n", a.cache.Clear(ctx))
			return nil
		})
	},
}

var cacheClearExpiredCmd = &cobra.Command{
	Use:   "clear-expired",
	Short: "Remove cache entries past their TTL",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCache(cmd, func(ctx context.Context, a *app) error {
			_, _ = fmt.Fprintf(os.Stdout, "Removed %d expired cache entries\n", a.cache.ClearExpired(ctx))
			return nil
		})
	},
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheBackend, "cache", "", "Cache backend: memory, file or postgres")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheClearExpiredCmd)
	rootCmd.AddCommand(cacheCmd)
}

// withCache opens the configured cache store and runs fn against it
func withCache(cmd *cobra.Command, fn func(context.Context, *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("cache") {
		cfg.Cache.Backend = cacheBackend
	}
	if cfg.Cache.Backend == config.CacheNone {
		return fmt.Errorf("cache is disabled (backend %q)", config.CacheNone)
	}
	// Only the cache store is needed here
	cfg.RecordRuns = false
	cfg.PersistIndex = false
	cfg.UseNER = false
	cfg.Embedder.Type = config.EmbedderHashing
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
