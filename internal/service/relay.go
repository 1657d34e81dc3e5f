package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/Guizzs26/go-sync-sheets/pkg/metrics"
)

// DeadLetterQueue is the claimable side of the dead-letter store
type DeadLetterQueue interface {
	FetchAndClaim(ctx context.Context, limit int) ([]models.DeadLetter, error)
	MarkResolved(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errLog string, maxAttempts int) (string, error)
	CountPending(ctx context.Context) (int64, error)
}

// Relay replays failed detached syncs until they succeed or run out of attempts
type Relay struct {
	queue       DeadLetterQueue
	run         RunFunc
	maxAttempts int
	logger      *slog.Logger
}

func NewRelay(queue DeadLetterQueue, run RunFunc, maxAttempts int, l *slog.Logger) *Relay {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Relay{queue: queue, run: run, maxAttempts: maxAttempts, logger: l}
}

// ProcessNextBatch claims up to batchSize dead letters and replays each one.
// It returns an error only when the queue itself is unreachable
func (r *Relay) ProcessNextBatch(ctx context.Context, batchSize int) error {
	letters, err := r.queue.FetchAndClaim(ctx, batchSize)
	if err != nil {
		return err
	}

	for _, dl := range letters {
		if ctx.Err() != nil {
			// Claimed rows left in processing are rescued by the janitor
			return ctx.Err()
		}
		if err := r.replay(ctx, dl); err != nil {
			return err
		}
	}

	if n, err := r.queue.CountPending(ctx); err == nil {
		metrics.DLQSize.Set(float64(n))
	}
	if len(letters) > 0 {
		r.logger.Info("Dead letter batch replayed", "count", len(letters))
	}
	return nil
}

func (r *Relay) replay(ctx context.Context, dl models.DeadLetter) error {
	l := r.logger.With(
		"correlation_id", dl.CorrelationID,
		"collection", dl.Collection,
		"record_id", dl.RecordID,
		"attempt", dl.Attempts+1,
	)

	runErr := r.run(ctx, dl.Request())
	if runErr == nil {
		if err := r.queue.MarkResolved(ctx, dl.ID); err != nil {
			return fmt.Errorf("mark dead letter %d resolved: %w", dl.ID, err)
		}
		metrics.RelayReplays.WithLabelValues(models.DeadLetterResolved).Inc()
		l.Info("Dead letter resolved")
		return nil
	}

	limit := r.maxAttempts
	if IsPermanent(runErr) {
		limit = 1
	}
	status, err := r.queue.MarkFailed(ctx, dl.ID, runErr.Error(), limit)
	if err != nil {
		return err
	}

	if status == models.DeadLetterDead {
		metrics.RelayReplays.WithLabelValues(models.DeadLetterDead).Inc()
		l.Error("Dead letter buried after final attempt", "error", runErr)
		return nil
	}
	metrics.RelayReplays.WithLabelValues("retry").Inc()
	l.Warn("Dead letter replay failed, will retry", "error", runErr)
	return nil
}
