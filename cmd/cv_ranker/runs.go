package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/cv-ranker/internal/db"
	"github.com/jonathan/cv-ranker/internal/types"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect ranking runs recorded in PostgreSQL",
}

var runsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a recorded run and its ranked results",
	RunE:  runRunsShow,
}

var (
	runsShowID      string
	runsShowOutFile string
)

func init() {
	runsShowCmd.Flags().StringVar(&runsShowID, "run-id", "", "Run ID to show")
	runsShowCmd.Flags().StringVarP(&runsShowOutFile, "out", "o", "", "Path to output JSON file (default: stdout)")
	_ = runsShowCmd.MarkFlagRequired("run-id")

	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// recordedRun is a run record together with its stored results
type recordedRun struct {
	*db.Run
	Results *types.RankedResults `json:"results,omitempty"`
}

func runRunsShow(_ *cobra.Command, _ []string) error {
	runID, err := uuid.Parse(runsShowID)
	if err != nil {
		return fmt.Errorf("invalid run-id: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL required to show runs")
	}

	ctx := context.Background()
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	run, err := database.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run not found: %s", runID)
	}

	out := recordedRun{Run: run}
	content, err := database.GetRunResults(ctx, runID)
	if err != nil {
		return err
	}
	if len(content) > 0 {
		var results types.RankedResults
		if err := json.Unmarshal(content, &results); err != nil {
			return fmt.Errorf("failed to parse stored results: %w", err)
		}
		out.Results = &results
	}

	return writeJSON(os.Stdout, runsShowOutFile, out)
}
