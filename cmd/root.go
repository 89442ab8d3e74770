// Package cmd implements the simplechat command line interface.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pokhrel-dev/simplechat-sub001/internal/config"
	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "simplechat",
	Short: "RAG chat server with document ingestion",
	Long: `simplechat runs a retrieval-augmented chat service: an HTTP API with
streaming chat, a pgvector-backed knowledge base, and an ingestion
pipeline for files, URLs, and raw text.

Run "simplechat serve" to start the API server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads and validates the application configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. The serve command logs JSON;
// interactive commands log text.
func newLogger(json bool) log.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: json})
}
