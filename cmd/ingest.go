package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pokhrel-dev/simplechat-sub001/internal/app"
	"github.com/pokhrel-dev/simplechat-sub001/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Add documents to the knowledge base",
}

var ingestFileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Index a local file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, func(ctx context.Context, p *ingest.Pipeline) (*ingest.Result, error) {
			return p.IndexPath(ctx, args[0])
		})
	},
}

var ingestURLCmd = &cobra.Command{
	Use:   "url <url>",
	Short: "Fetch and index a web page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, func(ctx context.Context, p *ingest.Pipeline) (*ingest.Result, error) {
			return p.IndexURL(ctx, args[0])
		})
	},
}

var ingestTextTitle string

var ingestTextCmd = &cobra.Command{
	Use:   "text <content>...",
	Short: "Index raw text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		return runIngest(cmd, func(ctx context.Context, p *ingest.Pipeline) (*ingest.Result, error) {
			return p.IndexText(ctx, ingestTextTitle, text)
		})
	},
}

func init() {
	ingestTextCmd.Flags().StringVar(&ingestTextTitle, "title", "", "source title (defaults to a text prefix)")
	ingestCmd.AddCommand(ingestFileCmd, ingestURLCmd, ingestTextCmd)
	rootCmd.AddCommand(ingestCmd)
}

// runIngest sets up the application, runs one indexing operation, and
// prints the outcome.
func runIngest(cmd *cobra.Command, index func(context.Context, *ingest.Pipeline) (*ingest.Result, error)) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		res, err := index(ctx, a.Ingest)
		if err != nil {
			return fmt.Errorf("indexing: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Indexed %q (source %s)\n", res.Source.Title, res.Source.ID)
		fmt.Fprintf(out, "  chunks: %d indexed", res.ChunksIndexed)
		if res.ChunksSkipped > 0 {
			fmt.Fprintf(out, ", %d unchanged", res.ChunksSkipped)
		}
		if res.ChunksFailed > 0 {
			fmt.Fprintf(out, ", %d failed", res.ChunksFailed)
		}
		fmt.Fprintf(out, "\n  bytes: %d, took %s\n", res.Bytes, res.Duration.Round(time.Millisecond))
		return nil
	})
}
