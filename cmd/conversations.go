package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pokhrel-dev/simplechat-sub001/internal/app"
	"github.com/pokhrel-dev/simplechat-sub001/internal/conversation"
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Manage stored conversations",
}

var conversationsLimit int32

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			conversations, err := a.Conversations.List(ctx, conversationsLimit, 0)
			if err != nil {
				return fmt.Errorf("listing conversations: %w", err)
			}

			current, _ := currentConversationID()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tUPDATED")
			for _, c := range conversations {
				marker := ""
				if current != nil && *current == c.ID {
					marker = " *"
				}
				fmt.Fprintf(w, "%s\t%s%s\t%s\n",
					c.ID, c.Title, marker, c.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		})
	},
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation and all its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid conversation id %q: %w", args[0], err)
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Conversations.Delete(ctx, id); err != nil {
				return fmt.Errorf("deleting conversation: %w", err)
			}
			// Clear the local pointer if it referenced the deleted one.
			if current, _ := currentConversationID(); current != nil && *current == id {
				if dir, dirErr := conversation.DefaultStateDir(); dirErr == nil {
					_ = conversation.ClearCurrent(ctx, dir)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			return nil
		})
	},
}

var conversationsCurrentCmd = &cobra.Command{
	Use:   "current [id]",
	Short: "Show or set the active conversation for CLI chats",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := conversation.DefaultStateDir()
		if err != nil {
			return err
		}

		if len(args) == 0 {
			id, err := conversation.LoadCurrent(dir)
			if err != nil {
				return fmt.Errorf("reading current conversation: %w", err)
			}
			if id == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no current conversation")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid conversation id %q: %w", args[0], err)
		}
		if err := conversation.SaveCurrent(cmd.Context(), dir, id); err != nil {
			return fmt.Errorf("saving current conversation: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "current conversation set to %s\n", id)
		return nil
	},
}

func init() {
	conversationsListCmd.Flags().Int32Var(&conversationsLimit, "limit", 20, "maximum conversations to list")
	conversationsCmd.AddCommand(conversationsListCmd, conversationsDeleteCmd, conversationsCurrentCmd)
	rootCmd.AddCommand(conversationsCmd)
}

// withApp runs fn against a fully initialized application, releasing it
// afterwards.
func withApp(cmd *cobra.Command, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(false)
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	return fn(ctx, a)
}

// currentConversationID reads the locally persisted conversation pointer.
// Absence is not an error.
func currentConversationID() (*uuid.UUID, error) {
	dir, err := conversation.DefaultStateDir()
	if err != nil {
		return nil, err
	}
	return conversation.LoadCurrent(dir)
}
