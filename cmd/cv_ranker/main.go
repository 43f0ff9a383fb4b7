// Package main provides the cv_ranker CLI: explainable ranking of CVs against a job requirement.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cv_ranker",
	Short: "Hybrid CV ranking engine",
	Long: "cv_ranker ranks candidate CVs against a job requirement by fusing text similarity, " +
		"skill overlap and experience into an explainable composite score, with retrieved passages justifying each result.",
	SilenceUsage: true,
}

var (
	configPath string
	verbose    bool
	jsonLogs   bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed debug information")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit logs as JSON")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
