package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/Guizzs26/go-sync-sheets/pkg/metrics"
)

// RunFunc executes one sync request. SyncService.Run pushes in-process,
// broker.SyncPublisher.Publish hands the request to the queue
type RunFunc func(ctx context.Context, req models.SyncRequest) error

// Dispatcher runs sync requests detached from the request that caused them.
// Tasks inherit values from the process context but not its request-scoped
// cancellation, each one is bounded by its own timeout, and failures go to the
// dead-letter sink instead of back to the caller
type Dispatcher struct {
	base    context.Context
	run     RunFunc
	sink    DeadLetterSink
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher builds a dispatcher. sink may be nil, in which case failures
// are only logged
func NewDispatcher(base context.Context, run RunFunc, sink DeadLetterSink, timeout time.Duration, l *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		base:    base,
		run:     run,
		sink:    sink,
		timeout: timeout,
		logger:  l,
	}
}

// Dispatch schedules req and returns immediately
func (d *Dispatcher) Dispatch(req models.SyncRequest) {
	d.wg.Add(1)
	metrics.TasksInFlight.Inc()

	go func() {
		defer d.wg.Done()
		defer metrics.TasksInFlight.Dec()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(d.base), d.timeout)
		defer cancel()

		l := d.logger.With(
			"correlation_id", req.ID,
			"collection", req.Collection,
			"record_id", req.RecordID,
		)

		err := d.safeRun(ctx, req)
		if err == nil {
			l.Debug("Detached sync finished")
			return
		}

		if IsPermanent(err) {
			l.Warn("Detached sync dropped", "error", err)
			return
		}

		l.Error("Detached sync failed", "error", err)
		d.deadLetter(ctx, l, req, err)
	}()
}

func (d *Dispatcher) safeRun(ctx context.Context, req models.SyncRequest) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in detached sync: %v", r)
		}
	}()
	return d.run(ctx, req)
}

func (d *Dispatcher) deadLetter(ctx context.Context, l *slog.Logger, req models.SyncRequest, cause error) {
	if d.sink == nil {
		return
	}
	// The task context may already be past its deadline
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := d.sink.Record(ctx, models.DeadLetter{
		CorrelationID: req.ID,
		Collection:    req.Collection,
		RecordID:      req.RecordID,
		Sheet:         req.Sheet,
		Error:         cause.Error(),
		Status:        models.DeadLetterPending,
	})
	if err != nil {
		l.Error("Failed to record dead letter", "error", err)
		return
	}
	metrics.DeadLetters.WithLabelValues(req.Collection).Inc()
}

// Wait blocks until every dispatched task has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
