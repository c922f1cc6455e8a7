package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"courtcase-backend/internal/components/captcha"
	"courtcase-backend/internal/components/chrono"
	"courtcase-backend/internal/components/restyutil"
	"courtcase-backend/internal/components/serviceutil"
	"courtcase-backend/internal/components/telemetry"
	"courtcase-backend/internal/documents"
	"courtcase-backend/internal/querylog"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	debug      *bool
	dumpHttp   *string
	// exitStatus is set by commands that finish normally but should still
	// exit non-zero.
	exitStatus int
)

var rootCmd = &cobra.Command{
	Use:   "courtcase",
	Short: "courtcase looks up court cases and keeps a log of every lookup.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*debug)
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "", "Path to a config file, defaults to the nearest config.json5.")
	debug = rootCmd.PersistentFlags().Bool("debug", false, "Print debug reports.")
	dumpHttp = rootCmd.PersistentFlags().String("dump-http", "", "Write every http exchange with the solving service and document hosts into this directory.")
}

// ExecuteContext runs the cli and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitStatus
}

// app holds what every subcommand needs, built once per invocation.
type app struct {
	cfg  Config
	tel  telemetry.API
	time chrono.API
	// dump is nil unless --dump-http was given.
	dump restyutil.Output
}

func newApp() app {
	cfg, err := loadConfig(*configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	var tel telemetry.API = telemetry.SlogAPI{}
	otelApi, err := telemetry.NewOtelAPI(tel)
	if err != nil {
		tel.ReportWarning("cli.otel", err)
	} else {
		tel = otelApi
	}

	a := app{
		cfg:  cfg,
		tel:  tel,
		time: chrono.NewStandardImpl(),
	}
	if *dumpHttp != "" {
		out, err := restyutil.NewFilesystemOutput(*dumpHttp)
		if err != nil {
			serviceutil.Fatal("failed to prepare http dump directory", err)
		}
		a.dump = out
	}
	return a
}

func (a app) captchaClient() *captcha.Client {
	opts := a.cfg.captchaOptions()
	opts.HttpDump = a.dump
	return captcha.NewClient(opts, a.tel)
}

func (a app) downloader() *documents.Downloader {
	opts := a.cfg.downloadOptions()
	opts.HttpDump = a.dump
	return documents.NewDownloader(opts, a.tel)
}

func (a app) openStore(ctx context.Context) (querylog.Store, *sql.DB) {
	database, err := a.cfg.Database.OpenDB(ctx)
	if err != nil {
		serviceutil.Fatal("failed to open query log", err)
	}
	return querylog.NewStore(database, a.time, a.tel), database
}
