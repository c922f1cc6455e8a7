package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"courtcase-backend/internal/components/serviceutil"
	"courtcase-backend/internal/querylog"

	"github.com/spf13/cobra"
)

var (
	showJson *bool
	showRaw  *bool
)

func init() {
	showJson = showCmd.Flags().Bool("json", false, "Print the entry as json.")
	showRaw = showCmd.Flags().Bool("raw", false, "Print only the captured page markup.")
	rootCmd.AddCommand(showCmd)
}

// lookupEntry accepts either the numeric log id or the search id.
func lookupEntry(ctx context.Context, store querylog.Store, key string) (querylog.Entry, error) {
	id, err := strconv.ParseInt(key, 10, 64)
	if err == nil {
		return store.Get(ctx, id)
	}
	return store.GetBySearchId(ctx, key)
}

var showCmd = &cobra.Command{
	Use:   "show <id | search id> [--json | --raw]",
	Short: "Shows one past search with everything it found.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := newApp()
		store, database := a.openStore(ctx)
		defer database.Close()

		entry, err := lookupEntry(ctx, store, args[0])
		if errors.Is(err, querylog.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "no search %q in the query log\n", args[0])
			exitStatus = 2
			return
		}
		if err != nil {
			serviceutil.Fatal("failed to read query log", err)
		}

		switch {
		case *showRaw:
			fmt.Println(entry.RawHtml)
		case *showJson:
			err = writeJson(os.Stdout, entry)
			if err != nil {
				serviceutil.Fatal("failed to write json", err)
			}
		default:
			renderEntry(os.Stdout, entry)
		}
	},
}
