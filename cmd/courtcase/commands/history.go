package commands

import (
	"os"

	"courtcase-backend/internal/components/serviceutil"
	"courtcase-backend/internal/querylog"

	"github.com/spf13/cobra"
)

var (
	historyPage  *int
	historyLimit *int
	historyJson  *bool
)

func init() {
	historyPage = historyCmd.Flags().Int("page", 1, "Page to show, starting at 1.")
	historyLimit = historyCmd.Flags().Int("limit", querylog.DefaultLimit, "Searches per page.")
	historyJson = historyCmd.Flags().Bool("json", false, "Print the page as json.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [--page N] [--limit N] [--json]",
	Short: "Lists past searches, newest first.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := newApp()
		store, database := a.openStore(ctx)
		defer database.Close()

		page, err := store.History(ctx, *historyPage, *historyLimit)
		if err != nil {
			serviceutil.Fatal("failed to read history", err)
		}
		if *historyJson {
			err = writeJson(os.Stdout, page)
			if err != nil {
				serviceutil.Fatal("failed to write json", err)
			}
			return
		}
		renderHistory(os.Stdout, page)
	},
}
