package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Batch pipeline metrics
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenderflow_ingest_batches_total",
			Help: "Total number of batches received, by terminal status",
		},
		[]string{"status"},
	)

	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenderflow_ingest_records_total",
			Help: "Total number of records reconciled, by outcome",
		},
		[]string{"outcome"},
	)

	BatchBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tenderflow_ingest_batch_bytes_total",
			Help: "Total bytes of record payloads received",
		},
	)

	// Validation metrics
	ChecksumFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tenderflow_ingest_checksum_failures_total",
			Help: "Total number of integrity check failures",
		},
	)

	// Reconciliation metrics
	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tenderflow_ingest_reconcile_duration_seconds",
			Help:    "Duration of batch reconciliation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StorageErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tenderflow_ingest_storage_errors_total",
			Help: "Total number of storage errors during reconciliation",
		},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenderflow_ingest_rate_limit_hits_total",
			Help: "Total number of rate limit denials",
		},
		[]string{"scraper"},
	)

	// Audit log metrics
	StuckPendingBatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenderflow_ingest_stuck_pending_batches",
			Help: "Audit entries pending longer than the alert threshold",
		},
	)
)
