package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Guizzs26/go-sync-sheets/internal/config"
	"github.com/Guizzs26/go-sync-sheets/internal/db"
	"github.com/Guizzs26/go-sync-sheets/internal/sheets"
	"github.com/Guizzs26/go-sync-sheets/internal/service"
)

// Core is the store, ledger client and sync engine every binary needs
type Core struct {
	Store  *db.MongoStore
	Sheets *sheets.Client
	Sync   *service.SyncService
	logger *slog.Logger
}

// OpenCore connects to Mongo and prepares the Sheets client. Missing sheet
// credentials are tolerated; every push then fails with ErrNotConfigured
func OpenCore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Core, error) {
	store, err := db.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	if err != nil {
		return nil, fmt.Errorf("mongo: %w", err)
	}

	client, err := sheets.NewClient(ctx, sheets.Config{
		SpreadsheetID: cfg.SpreadsheetID,
		ClientEmail:   cfg.SheetsClientEmail,
		PrivateKey:    cfg.SheetsPrivateKey,
	}, logger)
	if err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("sheets: %w", err)
	}

	return &Core{
		Store:  store,
		Sheets: client,
		Sync:   service.NewSyncService(store, client, logger),
		logger: logger,
	}, nil
}

func (c *Core) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Store.Close(ctx); err != nil {
		c.logger.Warn("Mongo disconnect failed", "error", err)
	}
}
