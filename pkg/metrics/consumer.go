package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConsumerDuration tracks the latency of a sync request taken from the queue
	ConsumerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_consumer_processing_duration_seconds",
		Help:    "Time taken to process a queued sync request",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"status", "collection"}) // status: success, failed, fatal

	// ConsumerMessages tracks the throughput and result of queue consumption
	ConsumerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_consumer_messages_total",
		Help: "Total number of sync requests consumed",
	}, []string{"status"})

	// ConsumerRetries counts in-handler retries after sheet throttling
	ConsumerRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_consumer_retries_total",
		Help: "Retries performed after the sheet API throttled a push",
	}, []string{"collection"})

	// RelayReplays counts dead-letter replays by outcome
	RelayReplays = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_relay_replays_total",
		Help: "Dead letters replayed by the relay",
	}, []string{"status"}) // status: resolved, retry, dead
)
