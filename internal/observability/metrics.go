package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wh2900"

// Metrics holds the Prometheus counters and histograms for one relay run.
// Each Metrics owns its registry; the relay exits after a run, so the values
// are exported explicitly rather than scraped.
type Metrics struct {
	Registry *prometheus.Registry

	CapturesIngested prometheus.Counter
	CaptureErrors    prometheus.Counter
	UnknownVariants  prometheus.Counter
	RainCorrections  *prometheus.CounterVec   // labels: result={valid,invalid,error}
	SinkOutcomes     *prometheus.CounterVec   // labels: sink, result={success,failure,skipped}
	SinkDuration     *prometheus.HistogramVec // labels: sink
	FilesDeleted     prometheus.Counter
	RunDuration      prometheus.Histogram
	LastRunTimestamp prometheus.Gauge
}

// NewMetrics creates all relay metrics registered with a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CapturesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_ingested_total",
			Help:      "Capture files turned into readings.",
		}),
		CaptureErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_errors_total",
			Help:      "Capture files skipped because they could not be parsed or decoded.",
		}),
		UnknownVariants: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_variant_total",
			Help:      "Raw packets carrying an unrecognised variant tag.",
		}),
		RainCorrections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rain_corrections_total",
			Help:      "Rain accumulator corrections by result.",
		}, []string{"result"}),
		SinkOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_outcomes_total",
			Help:      "Dispatch outcomes by sink and result.",
		}, []string{"sink", "result"}),
		SinkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sink_duration_seconds",
			Help:      "Time spent in a sink's send operation.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"sink"}),
		FilesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_deleted_total",
			Help:      "Capture files removed after dispatch.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete ingest-dispatch-retention run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the last run finished.",
		}),
	}

	m.Registry.MustRegister(
		m.CapturesIngested,
		m.CaptureErrors,
		m.UnknownVariants,
		m.RainCorrections,
		m.SinkOutcomes,
		m.SinkDuration,
		m.FilesDeleted,
		m.RunDuration,
		m.LastRunTimestamp,
	)

	return m
}
