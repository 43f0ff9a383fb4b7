package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/cv-ranker/internal/config"
	"github.com/jonathan/cv-ranker/internal/extraction"
	"github.com/jonathan/cv-ranker/internal/fetch"
	"github.com/jonathan/cv-ranker/internal/ingestion"
	"github.com/jonathan/cv-ranker/internal/pipeline"
	"github.com/jonathan/cv-ranker/internal/ranking"
	"github.com/jonathan/cv-ranker/internal/schemas"
	"github.com/jonathan/cv-ranker/internal/types"
	embedded "github.com/jonathan/cv-ranker/schemas"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank candidate CVs against a job requirement",
	Long: "Rank candidate CVs against a job requirement and write the explainable results as JSON.\n\n" +
		"The requirement is a JSON document (requirement.schema.json), a text/markdown/HTML file or a job posting URL. " +
		"Candidates are a JSON array (candidates.schema.json) or a directory of CV files.",
	RunE: runRank,
}

var (
	rankRequirementFile string
	rankJobURL          string
	rankSkills          []string
	rankYears           float64
	rankCandidates      string
	rankOutputFile      string
	rankTopK            int
	rankNoJustification bool
	rankDirection       string
	rankLanguage        string
	rankVocabulary      string
	rankEmbedder        string
	rankCacheBackend    string
	rankRecord          bool
	rankPersistIndex    bool
	rankUseNER          bool
	rankWeightText      float64
	rankWeightSkill     float64
	rankWeightExp       float64
)

func init() {
	rankCmd.Flags().StringVarP(&rankRequirementFile, "requirement", "r", "", "Path to requirement JSON or text/markdown/HTML file")
	rankCmd.Flags().StringVar(&rankJobURL, "job-url", "", "URL of a job posting to use as the requirement")
	rankCmd.Flags().StringSliceVar(&rankSkills, "skills", nil, "Required skills (comma-separated, overrides extraction)")
	rankCmd.Flags().Float64Var(&rankYears, "years", 0, "Required years of experience")
	rankCmd.Flags().StringVar(&rankCandidates, "candidates", "", "Path to candidates JSON file or directory of CV files")
	rankCmd.Flags().StringVarP(&rankOutputFile, "out", "o", "", "Path to output JSON file (default: stdout)")
	rankCmd.Flags().IntVar(&rankTopK, "top-k", 0, "Justification passages per candidate")
	rankCmd.Flags().BoolVar(&rankNoJustification, "no-justification", false, "Skip passage retrieval")
	rankCmd.Flags().StringVar(&rankDirection, "direction", "", "Justification direction: requirement or candidate")
	rankCmd.Flags().StringVar(&rankLanguage, "lang", "", "Language hint: auto, fr or en")
	rankCmd.Flags().StringVar(&rankVocabulary, "vocabulary", "", "Path to a YAML/JSON skill vocabulary")
	rankCmd.Flags().StringVar(&rankEmbedder, "embedder", "", "Embedder: hashing or gemini")
	rankCmd.Flags().StringVar(&rankCacheBackend, "cache", "", "Cache backend: none, memory, file or postgres")
	rankCmd.Flags().BoolVar(&rankRecord, "record", false, "Persist the run in PostgreSQL")
	rankCmd.Flags().BoolVar(&rankPersistIndex, "persist-index", false, "Reuse embedded indexes stored in PostgreSQL")
	rankCmd.Flags().BoolVar(&rankUseNER, "ner", false, "Enrich entities with the Gemini recognizer")
	rankCmd.Flags().Float64Var(&rankWeightText, "w-text", 0, "Weight of text similarity")
	rankCmd.Flags().Float64Var(&rankWeightSkill, "w-skill", 0, "Weight of skill overlap")
	rankCmd.Flags().Float64Var(&rankWeightExp, "w-experience", 0, "Weight of experience")

	_ = rankCmd.MarkFlagRequired("candidates")
	rankCmd.MarkFlagsOneRequired("requirement", "job-url")
	rankCmd.MarkFlagsMutuallyExclusive("requirement", "job-url")

	rootCmd.AddCommand(rankCmd)
}

func runRank(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRankFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	direction, err := rankDirectionFor(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var req pipeline.RequirementDoc
	if rankJobURL != "" {
		req, err = loadRequirementURL(ctx, a, rankJobURL)
	} else {
		req, err = loadRequirement(rankRequirementFile)
	}
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("skills") {
		req.RequiredSkills = rankSkills
	}
	if cmd.Flags().Changed("years") {
		req.RequiredYears = rankYears
	}

	candidates, err := loadCandidates(rankCandidates)
	if err != nil {
		return err
	}

	extractor, err := a.extractor()
	if err != nil {
		return err
	}

	opts := pipeline.RunOptions{
		Requirement: req,
		Candidates:  candidates,
		Weights:     cfg.ResolvedWeights(),
		Language:    extraction.ParseLanguageHint(cfg.Language),
		Extractor:   extractor,
		Embedder:    a.embedder(),
		Split:       a.splitConfig(),
		Cache:       a.cache,
		IndexStore:  a.indexStore(),
		TopK:        cfg.TopK,
		Concurrency: cfg.Concurrency,
		Direction:   direction,
		Printer:     a.printer,
		Logger:      a.log,
		OnProgress: func(e pipeline.ProgressEvent) {
			a.log.Debug(e.Message, zap.String("step", e.Step))
		},
	}
	if cfg.RecordRuns && a.db != nil {
		opts.Recorder = a.db
	}

	a.log.Info("ranking candidates",
		zap.Int("candidates", len(candidates)),
		zap.String("weights", weightsString(opts.Weights)),
		zap.String("embedder", opts.Embedder.Name()),
	)
	results, runErr := pipeline.Run(ctx, opts)
	if results == nil {
		return fmt.Errorf("ranking failed: %w", runErr)
	}

	if err := writeJSON(os.Stdout, rankOutputFile, results); err != nil {
		return err
	}
	if a.printer != nil && a.cache != nil {
		a.printer.PrintCacheStats(a.cache.Stats(ctx))
	}

	if runErr != nil {
		return fmt.Errorf("ranking interrupted after %d results: %w", len(results.Results), runErr)
	}
	if rankOutputFile != "" && rankOutputFile != "-" {
		_, _ = fmt.Fprintf(os.Stderr, "Ranked %d candidates\nOutput: %s\n", len(results.Results), rankOutputFile)
	}
	return nil
}

// applyRankFlags overrides configuration values with explicitly set flags
func applyRankFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("top-k") {
		cfg.TopK = rankTopK
	}
	if rankNoJustification {
		cfg.TopK = 0
	}
	if flags.Changed("direction") {
		cfg.Direction = rankDirection
	}
	if flags.Changed("lang") {
		cfg.Language = rankLanguage
	}
	if flags.Changed("vocabulary") {
		cfg.Vocabulary = rankVocabulary
	}
	if flags.Changed("embedder") {
		cfg.Embedder.Type = rankEmbedder
	}
	if flags.Changed("cache") {
		cfg.Cache.Backend = rankCacheBackend
	}
	if rankRecord {
		cfg.RecordRuns = true
	}
	if rankPersistIndex {
		cfg.PersistIndex = true
	}
	if rankUseNER {
		cfg.UseNER = true
	}

	if flags.Changed("w-text") || flags.Changed("w-skill") || flags.Changed("w-experience") {
		w := cfg.ResolvedWeights()
		if flags.Changed("w-text") {
			w.Text = rankWeightText
		}
		if flags.Changed("w-skill") {
			w.Skill = rankWeightSkill
		}
		if flags.Changed("w-experience") {
			w.Experience = rankWeightExp
		}
		cfg.Weights = &w
	}
}

// rankDirectionFor resolves the justification direction from the configuration
func rankDirectionFor(cfg *config.Config) (ranking.Direction, error) {
	direction, err := ranking.ParseDirection(cfg.Direction)
	if err != nil {
		return "", fmt.Errorf("invalid direction: %w", err)
	}
	return direction, nil
}

// loadRequirement reads a requirement document. JSON files must validate
// against requirement.schema.json; other files become the requirement text.
func loadRequirement(path string) (pipeline.RequirementDoc, error) {
	var req pipeline.RequirementDoc

	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return req, fmt.Errorf("failed to read requirement file: %w", err)
		}
		if err := schemas.ValidateDocument(embedded.Requirement, data); err != nil {
			return req, fmt.Errorf("invalid requirement %s: %w", path, err)
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("failed to parse requirement JSON: %w", err)
		}
		return req, nil
	}

	text, _, err := ingestion.IngestFromFile(path)
	if err != nil {
		return req, fmt.Errorf("failed to ingest requirement: %w", err)
	}
	req.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	req.Text = text
	return req, nil
}

// loadRequirementURL fetches a job posting and uses its main text as the requirement
func loadRequirementURL(ctx context.Context, a *app, url string) (pipeline.RequirementDoc, error) {
	fetcher := fetch.NewCachedFetcher(a.cache, nil)
	text, metadata, err := ingestion.IngestFromURL(ctx, fetcher, url, a.log)
	if err != nil {
		return pipeline.RequirementDoc{}, fmt.Errorf("failed to ingest job posting: %w", err)
	}
	a.log.Info("ingested job posting",
		zap.String("url", url),
		zap.String("platform", metadata.Platform),
		zap.String("hash", metadata.Hash),
	)
	return pipeline.RequirementDoc{Text: text}, nil
}

// loadCandidates reads candidates from a JSON array file validated against
// candidates.schema.json, or from every supported file in a directory.
func loadCandidates(path string) ([]pipeline.CandidateDoc, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidates: %w", err)
	}

	if info.IsDir() {
		docs, err := ingestion.IngestDirectory(path)
		if err != nil {
			return nil, fmt.Errorf("failed to ingest candidates: %w", err)
		}
		candidates := make([]pipeline.CandidateDoc, len(docs))
		for i, d := range docs {
			candidates[i] = pipeline.CandidateDoc{ID: d.ID, Text: d.Text}
		}
		return candidates, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidates file: %w", err)
	}
	if err := schemas.ValidateDocument(embedded.Candidates, data); err != nil {
		return nil, fmt.Errorf("invalid candidates %s: %w", path, err)
	}

	var candidates []pipeline.CandidateDoc
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil, fmt.Errorf("failed to parse candidates JSON: %w", err)
	}
	return candidates, nil
}

// weightsString formats weights for log output
func weightsString(w types.Weights) string {
	return fmt.Sprintf("text=%.2f skill=%.2f experience=%.2f", w.Text, w.Skill, w.Experience)
}
