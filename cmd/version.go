package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, injected at build time via ldflags.
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "simplechat %s\n", AppVersion)
		fmt.Fprintf(out, "Build Time: %s\n", BuildTime)
		fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)

		cfg, err := loadConfig()
		if err != nil {
			// Version must work even with a broken config.
			fmt.Fprintf(out, "\nConfiguration: unavailable (%v)\n", err)
			return nil
		}

		fmt.Fprintln(out, "\nConfiguration:")
		fmt.Fprintf(out, "  Provider: %s\n", cfg.Provider)
		fmt.Fprintf(out, "  Model: %s\n", cfg.ModelName)
		fmt.Fprintf(out, "  Embedder: %s (%d dims)\n", cfg.EmbedderModel, cfg.EmbedderDimensions)
		fmt.Fprintf(out, "  Image model: %s\n", cfg.ImageModel)
		fmt.Fprintf(out, "  Database: %s:%d/%s\n", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDBName)
		fmt.Fprintf(out, "  Record sizing: ceiling %d, threshold %d\n", cfg.RecordCeiling, cfg.RecordThreshold)

		if key := os.Getenv("GEMINI_API_KEY"); key != "" && len(key) >= 8 {
			fmt.Fprintf(out, "  GEMINI_API_KEY: %s...%s (configured)\n", key[:4], key[len(key)-4:])
		} else {
			fmt.Fprintln(out, "  GEMINI_API_KEY: not set")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
