package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Guizzs26/go-sync-sheets/internal/app"
	"github.com/Guizzs26/go-sync-sheets/internal/cli"
	"github.com/Guizzs26/go-sync-sheets/internal/config"
	"github.com/Guizzs26/go-sync-sheets/internal/service"
	"github.com/Guizzs26/go-sync-sheets/pkg/infra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(func(ctx context.Context) (*cli.Backend, error) {
		cfg := config.Load()
		logger := infra.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		slog.SetDefault(logger)

		core, err := app.OpenCore(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}

		// Reconcile dispatches user pushes; they run in-process and are drained on Close
		dispatcher := service.NewDispatcher(ctx, core.Sync.Run, nil, cfg.SyncTimeout, logger)

		return &cli.Backend{
			Syncer:     core.Sync,
			Puller:     service.NewPullService(core.Store, core.Sheets, logger),
			Reconciler: service.NewReconcileService(core.Store, dispatcher, logger),
			Due:        service.NewDueService(core.Store, core.Sheets, logger),
			Close: func() {
				dispatcher.Wait()
				core.Close()
			},
		}, nil
	})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
