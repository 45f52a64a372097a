package ingest

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors for the ingestion pipeline.
// All fields are optional from the pipeline's point of view: a nil
// *Metrics disables instrumentation entirely.
type Metrics struct {
	RowsAccepted     prometheus.Counter
	RowsRejected     *prometheus.CounterVec
	BatchesCommitted prometheus.Counter
	CommitDuration   prometheus.Histogram
	RunsActive       prometheus.Gauge
	RunsFinished     *prometheus.CounterVec
}

// NewMetrics creates and registers the pipeline collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RowsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pricing_ingest_rows_accepted_total",
			Help: "Rows that passed validation and were buffered for commit.",
		}),
		RowsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_ingest_rows_rejected_total",
			Help: "Rows rejected by validation, partitioned by reason.",
		}, []string{"reason"}),
		BatchesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pricing_ingest_batches_committed_total",
			Help: "Batches successfully committed to the bulk sink.",
		}),
		CommitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricing_ingest_commit_duration_seconds",
			Help:    "Wall time of bulk sink commits.",
			Buckets: prometheus.DefBuckets,
		}),
		RunsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pricing_ingest_runs_active",
			Help: "Ingestion runs currently executing.",
		}),
		RunsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_ingest_runs_finished_total",
			Help: "Ingestion runs by terminal state.",
		}, []string{"state"}),
	}

	reg.MustRegister(
		m.RowsAccepted,
		m.RowsRejected,
		m.BatchesCommitted,
		m.CommitDuration,
		m.RunsActive,
		m.RunsFinished,
	)
	return m
}
