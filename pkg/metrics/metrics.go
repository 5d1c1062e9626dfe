package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync runs by trigger (schedule, on_demand, push)
	SyncRunCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finos_sync_runs_total",
			Help: "Total number of ingestion runs started",
		},
		[]string{"trigger"},
	)

	UserSyncCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finos_user_syncs_total",
			Help: "Total number of per-user syncs by outcome",
		},
		[]string{"status"}, // status: success, failed
	)

	UserSyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finos_user_sync_duration_seconds",
			Help:    "Duration of a single user's sync in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~200s
		},
		[]string{"status"},
	)

	MessageProcessedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finos_messages_processed_total",
			Help: "Total number of messages run through the pipeline",
		},
		[]string{"outcome"}, // outcome: extracted, filtered, failed
	)

	ReceiptExtractedCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finos_receipts_extracted_total",
			Help: "Total number of receipts produced by the extraction model",
		},
	)

	ModelCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finos_model_call_latency_ms",
			Help:    "Extraction model call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"provider", "status"},
	)
)

func IncrementSyncRun(trigger string) {
	SyncRunCount.WithLabelValues(trigger).Inc()
}

// RecordUserSync counts a finished user sync and observes its duration
func RecordUserSync(status string, duration time.Duration) {
	UserSyncCount.WithLabelValues(status).Inc()
	UserSyncDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func IncrementMessageProcessed(outcome string) {
	MessageProcessedCount.WithLabelValues(outcome).Inc()
}

func AddReceiptsExtracted(n int) {
	ReceiptExtractedCount.Add(float64(n))
}

// RecordModelCallLatency observes one extraction model call
func RecordModelCallLatency(provider, status string, duration time.Duration) {
	ModelCallLatency.WithLabelValues(provider, status).Observe(float64(duration.Milliseconds()))
}
