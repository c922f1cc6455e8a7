package commands

import (
	"log/slog"
	"time"

	"courtcase-backend/internal/components/serviceutil"

	"github.com/spf13/cobra"
)

var pruneOlderThan *time.Duration

func init() {
	pruneOlderThan = pruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "Delete searches recorded longer ago than this.")
	rootCmd.AddCommand(pruneCmd)
}

var pruneCmd = &cobra.Command{
	Use:   "prune [--older-than 720h]",
	Short: "Deletes old searches from the query log.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := newApp()
		store, database := a.openStore(ctx)
		defer database.Close()

		deleted, err := store.Prune(ctx, a.time.Now().Add(-*pruneOlderThan))
		if err != nil {
			serviceutil.Fatal("failed to prune query log", err)
		}
		slog.Info("pruned query log", "deleted", deleted)
	},
}
