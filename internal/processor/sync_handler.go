package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/Guizzs26/go-sync-sheets/internal/service"
	"github.com/Guizzs26/go-sync-sheets/pkg/metrics"
)

// Runner executes one sync request; service.SyncService satisfies it
type Runner interface {
	Run(ctx context.Context, req models.SyncRequest) error
}

// ErrFatal marks requests that must be dropped instead of requeued
var ErrFatal = errors.New("fatal sync request")

// SyncHandler processes sync requests taken from the queue
type SyncHandler struct {
	runner     Runner
	logger     *slog.Logger
	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration
}

func NewSyncHandler(runner Runner, timeout time.Duration, logger *slog.Logger) *SyncHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SyncHandler{
		runner:     runner,
		logger:     logger,
		maxRetries: 3,
		retryDelay: 500 * time.Millisecond,
		timeout:    timeout,
	}
}

// ProcessMessage pushes one record, retrying in place while the sheet API
// throttles. Errors wrapping ErrFatal will never succeed on redelivery
func (h *SyncHandler) ProcessMessage(ctx context.Context, req models.SyncRequest) (err error) {
	start := time.Now()

	defer func() {
		status := "success"
		if err != nil {
			if errors.Is(err, ErrFatal) {
				status = "fatal"
			} else {
				status = "failed"
			}
		}
		metrics.ConsumerDuration.WithLabelValues(status, req.Collection).Observe(time.Since(start).Seconds())
		metrics.ConsumerMessages.WithLabelValues(status).Inc()
	}()

	l := h.logger.With(
		"correlation_id", req.ID,
		"collection", req.Collection,
		"record_id", req.RecordID,
	)

	if !models.KnownCollection(req.Collection) {
		l.Error("Fatal: collection is not mirrored")
		return fmt.Errorf("%w: collection %q is not mirrored", ErrFatal, req.Collection)
	}
	if !models.IsValidID(req.RecordID) {
		l.Error("Fatal: malformed record id")
		return fmt.Errorf("%w: malformed record id %q", ErrFatal, req.RecordID)
	}

	var lastErr error
	for attempt := 1; attempt <= h.maxRetries; attempt++ {
		runCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err = h.runner.Run(runCtx, req)
		cancel()

		if err == nil {
			l.Info("Sync request processed", "attempt", attempt)
			return nil
		}
		if service.IsPermanent(err) {
			l.Warn("Sync request cannot succeed, dropping", "error", err)
			return fmt.Errorf("%w: %v", ErrFatal, err)
		}
		if !isThrottled(err) {
			return err
		}

		lastErr = err
		metrics.ConsumerRetries.WithLabelValues(req.Collection).Inc()

		// Linear backoff: 500ms, 1s, 1.5s
		backoff := time.Duration(attempt) * h.retryDelay
		l.Warn("Sheet API throttled, retrying", "attempt", attempt, "backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("failed after %d attempts (last error: %v)", h.maxRetries, lastErr)
}

// isThrottled detects Sheets API quota and rate limit responses
func isThrottled(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "ratelimitexceeded") ||
		strings.Contains(msg, "quota")
}
