package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Guizzs26/go-sync-sheets/internal/app"
	"github.com/Guizzs26/go-sync-sheets/internal/config"
	"github.com/Guizzs26/go-sync-sheets/internal/db"
	"github.com/Guizzs26/go-sync-sheets/internal/service"
	"github.com/Guizzs26/go-sync-sheets/pkg/infra"
)

const (
	janitorInterval = 5 * time.Minute
	staleAfterMin   = 10
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	slog.SetDefault(logger)
	defer infra.CloseLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		slog.Error("CRITICAL: DATABASE_URL is required by the relay")
		os.Exit(1)
	}

	postgres, err := db.NewPostgresRepository(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		slog.Error("Fatal error connecting to Postgres", "error", err)
		os.Exit(1)
	}
	defer postgres.Close()

	core, err := app.OpenCore(ctx, cfg, logger)
	if err != nil {
		slog.Error("CRITICAL: startup failed", "error", err)
		os.Exit(1)
	}
	defer core.Close()

	relay := service.NewRelay(postgres, core.Sync.Run, cfg.RelayMaxAttempts, logger)

	janitorDone := make(chan struct{})
	go runMaintenance(ctx, postgres, janitorDone)

	slog.Info("Dead letter relay started", "pid", os.Getpid(), "batch_size", cfg.RelayBatchSize)

	runMainLoop(ctx, relay, cfg)
	<-janitorDone
	slog.Info("Shutdown complete")
}

func runMainLoop(ctx context.Context, relay *service.Relay, cfg *config.Config) {
	backoff := infra.NewBackoff(1*time.Second, 60*time.Second, 2.0)

	for {
		if err := relay.ProcessNextBatch(ctx, cfg.RelayBatchSize); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("Batch processing error", "attempt", backoff.Attempts()+1, "error", err)
			if !backoff.Wait(ctx) {
				return
			}
			continue
		}

		backoff.Reset()

		select {
		case <-time.After(cfg.PollInterval):
		case <-ctx.Done():
			slog.Info("Shutting down main loop...")
			return
		}
	}
}

func runMaintenance(ctx context.Context, repo *db.PostgresRepository, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			affected, err := repo.ResetStale(ctx, staleAfterMin)
			if err != nil {
				slog.Error("Janitor: failed to reset stale dead letters", "error", err)
			} else if affected > 0 {
				slog.Warn("Janitor: rescued stuck dead letters", "count", affected)
			}

		case <-ctx.Done():
			slog.Info("Janitor: stopping maintenance goroutine")
			return
		}
	}
}
