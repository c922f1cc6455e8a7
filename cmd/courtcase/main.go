package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"courtcase-backend/cmd/courtcase/commands"
	"courtcase-backend/internal/components/serviceutil"
	"courtcase-backend/internal/components/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	tel, err := telemetry.SetupFromEnv(ctx, "courtcase")
	if err != nil {
		slog.Warn("failed to setup telemetry", "err", err)
	}

	code := commands.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = tel.Shutdown(shutdownCtx)
	cancel()
	if err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}
	os.Exit(code)
}
