package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-ranker/internal/config"
	"github.com/jonathan/cv-ranker/internal/extraction"
	"github.com/jonathan/cv-ranker/internal/ingestion"
	"github.com/jonathan/cv-ranker/internal/parsing"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract skills, experience and degrees from a document",
	Long:  "Normalize a CV or job description file and print the extracted entity set as JSON.",
	RunE:  runExtract,
}

var (
	extractInputFile  string
	extractOutputFile string
	extractLanguage   string
	extractVocabulary string
	extractUseNER     bool
)

func init() {
	extractCmd.Flags().StringVarP(&extractInputFile, "in", "i", "", "Path to a text, markdown or HTML document")
	extractCmd.Flags().StringVarP(&extractOutputFile, "out", "o", "", "Path to output JSON file (default: stdout)")
	extractCmd.Flags().StringVar(&extractLanguage, "lang", "", "Language hint: auto, fr or en")
	extractCmd.Flags().StringVar(&extractVocabulary, "vocabulary", "", "Path to a YAML/JSON skill vocabulary")
	extractCmd.Flags().BoolVar(&extractUseNER, "ner", false, "Enrich entities with the Gemini recognizer")

	_ = extractCmd.MarkFlagRequired("in")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("lang") {
		cfg.Language = extractLanguage
	}
	if cmd.Flags().Changed("vocabulary") {
		cfg.Vocabulary = extractVocabulary
	}
	if extractUseNER {
		cfg.UseNER = true
	}
	// Extraction never touches the cache or the database
	cfg.Cache.Backend = config.CacheNone
	cfg.RecordRuns = false
	cfg.PersistIndex = false
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	text, _, err := ingestion.IngestFromFile(extractInputFile)
	if err != nil {
		return fmt.Errorf("failed to ingest document: %w", err)
	}

	extractor, err := a.extractor()
	if err != nil {
		return err
	}
	entities := extractor.Extract(ctx, parsing.Normalize(text), extraction.ParseLanguageHint(cfg.Language))

	return writeJSON(os.Stdout, extractOutputFile, entities)
}
