package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Guizzs26/go-sync-sheets/internal/api"
	"github.com/Guizzs26/go-sync-sheets/internal/app"
	"github.com/Guizzs26/go-sync-sheets/internal/broker"
	"github.com/Guizzs26/go-sync-sheets/internal/config"
	"github.com/Guizzs26/go-sync-sheets/internal/db"
	"github.com/Guizzs26/go-sync-sheets/internal/service"
	"github.com/Guizzs26/go-sync-sheets/pkg/infra"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	slog.SetDefault(logger)
	defer infra.CloseLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Ledger admin API initializing", "sync_mode", cfg.SyncMode, "pid", os.Getpid())

	core, err := app.OpenCore(ctx, cfg, logger)
	if err != nil {
		logger.Error("CRITICAL: startup failed", "error", err)
		os.Exit(1)
	}
	defer core.Close()

	deps := api.Deps{}

	// Dead letters are optional; without Postgres failed syncs are only logged
	var sink service.DeadLetterSink
	if cfg.DatabaseURL != "" {
		pg, err := db.NewPostgresRepository(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("CRITICAL: Postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		sink = pg
		deps.DeadLetters = pg
	} else {
		logger.Warn("DATABASE_URL not set, failed syncs will not be replayed")
	}

	run := service.RunFunc(core.Sync.Run)
	if cfg.SyncMode == config.SyncModeBroker {
		link := broker.NewLink(cfg.RabbitMQURL, logger)
		defer link.Close()
		run = link.Publish
	}

	dispatcher := service.NewDispatcher(ctx, run, sink, cfg.SyncTimeout, logger)

	deps.Syncer = core.Sync
	deps.Puller = service.NewPullService(core.Store, core.Sheets, logger)
	deps.Reconciler = service.NewReconcileService(core.Store, dispatcher, logger)
	deps.Due = service.NewDueService(core.Store, core.Sheets, logger)
	deps.Records = service.NewRecordService(core.Store, dispatcher, logger)

	scheduler := service.NewScheduler(core.Sync, cfg.FullSyncInterval, cfg.FullSyncCollection, logger)
	go scheduler.Run(ctx)

	server := api.NewServer(cfg.HTTPAddr, cfg.CORSOrigins, deps, logger)
	serveErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		logger.Error("Admin API stopped unexpectedly", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Admin API shutdown failed", "error", err)
	}

	logger.Info("Waiting for detached syncs to finish")
	dispatcher.Wait()
	logger.Info("Shutdown complete")
}
