package commands

import (
	"context"
	"log/slog"
	"os"
	"time"

	"courtcase-backend/internal/components/browser"
	"courtcase-backend/internal/components/serviceutil"
	"courtcase-backend/internal/components/telemetry"
	"courtcase-backend/internal/scrapers/court"

	"github.com/spf13/cobra"
)

var (
	searchType     *string
	searchNumber   *string
	searchYear     *int
	searchDownload *bool
	downloadDir    *string
	searchJson     *bool
)

func init() {
	searchType = searchCmd.Flags().String("type", "", "Case type, for example FAO or W.P.(C).")
	searchNumber = searchCmd.Flags().String("number", "", "Case number.")
	searchYear = searchCmd.Flags().Int("year", 0, "Filing year.")
	searchDownload = searchCmd.Flags().Bool("download", false, "Download every found order.")
	downloadDir = searchCmd.Flags().String("download-dir", "", "Directory to download into, defaults to downloads.dir of the config.")
	searchJson = searchCmd.Flags().Bool("json", false, "Print the outcome as json.")
	searchCmd.MarkFlagRequired("type")
	searchCmd.MarkFlagRequired("number")
	searchCmd.MarkFlagRequired("year")

	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search --type <type> --number <number> --year <year> [--download [--download-dir <dir>]] [--json]",
	Short: "Looks up a single case and records the lookup in the query log.",
	Long: `Looks up a single case and records the lookup in the query log.

The exit code is 0 on success, 2 when the case was not found, 3 when the
CAPTCHA could not be solved and 1 for any other error.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := newApp()

		perfCtx, stopPerf := context.WithCancel(ctx)
		telemetry.InstrumentPerfStats(perfCtx, a.tel, 5*time.Second)

		store, database := a.openStore(ctx)

		solver := a.captchaClient()
		sessions := browser.NewRodSessionFactory(a.cfg.browserOptions(), a.time, a.tel)
		engine, err := court.NewEngine(a.cfg.engineOptions(), sessions, solver, a.time, a.tel)
		if err != nil {
			serviceutil.Fatal("failed to create search engine", err)
		}

		query := court.CaseQuery{
			CaseType:   *searchType,
			CaseNumber: *searchNumber,
			FilingYear: *searchYear,
		}
		outcome, err := engine.Search(ctx, query)
		if err != nil {
			slog.Error("search failed", "err", err)
		}

		// the log entry is written even when the caller has gone away
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		id, err := store.Record(recordCtx, query.Normalize(), outcome)
		cancel()
		if err != nil {
			slog.Error("failed to record search", "err", err)
		} else {
			slog.Info("search recorded", "id", id, "search_id", outcome.SearchID)
		}

		if *searchDownload && outcome.Status == court.StatusSuccess {
			dir := *downloadDir
			if dir == "" {
				dir = a.cfg.Downloads.Dir
			}
			written, err := a.downloader().DownloadAll(ctx, outcome.Orders, dir)
			for _, path := range written {
				slog.Info("downloaded", "path", path)
			}
			if err != nil {
				slog.Warn("some documents could not be downloaded", "err", err)
			}
		}

		if *searchJson {
			err = writeJson(os.Stdout, outcome)
			if err != nil {
				slog.Error("failed to write json", "err", err)
			}
		} else {
			renderOutcome(os.Stdout, query.Normalize(), outcome)
		}

		stopPerf()
		database.Close()
		exitStatus = exitCode(outcome.Status)
	},
}
