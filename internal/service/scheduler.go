package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
)

// FullSyncer is the part of SyncService the scheduler drives
type FullSyncer interface {
	FullSync(ctx context.Context, collection, sheetName string) (models.FullSyncResult, error)
}

// Scheduler periodically rewrites whole ledger tabs so rows missed by the
// incremental path converge. It stops when the context passed to Run ends
type Scheduler struct {
	syncer      FullSyncer
	interval    time.Duration
	collections []string
	logger      *slog.Logger
}

func NewScheduler(syncer FullSyncer, interval time.Duration, collections []string, l *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer:      syncer,
		interval:    interval,
		collections: collections,
		logger:      l,
	}
}

// Run blocks until ctx is done. A non-positive interval disables the loop
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 || len(s.collections) == 0 {
		s.logger.Info("Full sync scheduler disabled")
		return
	}

	s.logger.Info("Full sync scheduler started", "interval", s.interval.String(), "collections", s.collections)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Full sync scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	for _, collection := range s.collections {
		if ctx.Err() != nil {
			return
		}
		res, err := s.syncer.FullSync(ctx, collection, "")
		if err != nil {
			s.logger.Error("Scheduled full sync failed", "collection", collection, "error", err)
			continue
		}
		s.logger.Info("Scheduled full sync complete", "collection", collection, "sheet", res.Sheet, "rows", res.Count)
	}
}
