package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncOperations tracks incremental pushes by outcome
	// action: updated, appended, failed
	SyncOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_sync_operations_total",
		Help: "Total number of single-record pushes to the ledger sheet",
	}, []string{"collection", "action"})

	// SyncDuration measures a single push including the key-column read
	SyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_sync_duration_seconds",
		Help:    "Duration of a single-record push to the ledger sheet",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"collection"})

	// PullRows counts rows visited by the pull reconciler
	// result: updated, not_found, skipped, error
	PullRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_pull_rows_total",
		Help: "Rows processed while pulling sheet edits into the store",
	}, []string{"collection", "result"})

	// FullSyncRows reports how many rows the last full sync wrote per sheet
	FullSyncRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ledger_full_sync_rows",
		Help: "Number of data rows written by the last full sync",
	}, []string{"sheet"})

	// ReconcileRuns counts admin reconciliation passes by kind and status
	ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_reconcile_runs_total",
		Help: "Reconciliation passes executed",
	}, []string{"kind", "status"})

	// DuePayments tracks the size of the last due-payments report by status
	DuePayments = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ledger_due_payments",
		Help: "Due payment records produced by the last aggregation",
	}, []string{"status"})

	// TasksInFlight is the number of detached sync tasks still running
	TasksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_detached_tasks_in_flight",
		Help: "Detached sync tasks currently executing",
	})

	// DeadLetters counts failed detached syncs handed to the dead-letter sink
	DeadLetters = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_dead_letters_total",
		Help: "Failed syncs recorded for replay",
	}, []string{"collection"})

	// DLQSize tracks pending dead letters; growth means the sheet is rejecting writes
	DLQSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_dlq_size",
		Help: "Current number of pending dead letters",
	})

	// HealthStatus is 1 while the broker link is up (broker mode only)
	HealthStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_broker_healthy",
		Help: "Current health status of the broker link (1 healthy, 0 unhealthy)",
	})
)
