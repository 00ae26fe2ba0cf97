package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// comfort evaluation service.
type Metrics struct {
	EvaluationRuns  prometheus.Counter
	Evaluations     *prometheus.CounterVec // labels: outcome={success,error}
	RunDuration     prometheus.Histogram
	PipelineRunning prometheus.Gauge

	// Ingest and publish metrics.
	ReadingsIngested    prometheus.Counter
	ReportsPublished    prometheus.Counter
	TelemetryErrors     prometheus.Counter
	IngestBatchSize     prometheus.Histogram
	IngestBatchDuration prometheus.Histogram

	// Mortar client and metadata resolver metrics.
	MortarRequests  *prometheus.CounterVec   // labels: endpoint={data,sparql}, outcome={success,error,not_found}
	MortarDuration  *prometheus.HistogramVec // labels: endpoint={data,sparql}
	ResolverCache   *prometheus.CounterVec   // labels: result={hit,miss}
	PointsResolved  prometheus.Counter
	ReadingsFetched prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		EvaluationRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "comfort",
			Name:      "evaluation_runs_total",
			Help:      "Total portfolio evaluation runs completed.",
		}),
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "comfort",
			Name:      "evaluations_total",
			Help:      "Building evaluations by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "comfort",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete portfolio evaluation run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "comfort",
			Name:      "pipeline_running",
			Help:      "Number of active processing loops.",
		}),
		ReadingsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "comfort",
			Name:      "readings_ingested_total",
			Help:      "Total telemetry readings stored from the ingest topic.",
		}),
		TelemetryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "comfort",
			Name:      "telemetry_errors_total",
			Help:      "Total telemetry messages dropped as unparseable.",
		}),
		ReportsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "comfort",
			Name:      "reports_published_total",
			Help:      "Total building reports written to the report topic.",
		}),
		IngestBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "comfort",
			Name:      "ingest_batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		IngestBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "comfort",
			Name:      "ingest_batch_duration_seconds",
			Help:      "Duration of a complete ingest extract-store cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		MortarRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "comfort",
			Name:      "mortar_requests_total",
			Help:      "Mortar API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		MortarDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "comfort",
			Name:      "mortar_request_duration_seconds",
			Help:      "Mortar API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		ResolverCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "comfort",
			Name:      "resolver_cache_total",
			Help:      "Metadata resolver cache lookups by result.",
		}, []string{"result"}),
		PointsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "comfort",
			Name:      "points_resolved_total",
			Help:      "Total sensor points returned by metadata queries.",
		}),
		ReadingsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "comfort",
			Name:      "readings_fetched_total",
			Help:      "Total readings fetched from the data source.",
		}),
	}

	prometheus.MustRegister(
		m.EvaluationRuns,
		m.Evaluations,
		m.RunDuration,
		m.PipelineRunning,
		m.ReadingsIngested,
		m.ReportsPublished,
		m.TelemetryErrors,
		m.IngestBatchSize,
		m.IngestBatchDuration,
		m.MortarRequests,
		m.MortarDuration,
		m.ResolverCache,
		m.PointsResolved,
		m.ReadingsFetched,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		EvaluationRuns:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "comfort", Name: "evaluation_runs_total"}),
		Evaluations:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "comfort", Name: "evaluations_total"}, []string{"outcome"}),
		RunDuration:         prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "comfort", Name: "run_duration_seconds"}),
		PipelineRunning:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "comfort", Name: "pipeline_running"}),
		ReadingsIngested:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "comfort", Name: "readings_ingested_total"}),
		ReportsPublished:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "comfort", Name: "reports_published_total"}),
		TelemetryErrors:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "comfort", Name: "telemetry_errors_total"}),
		IngestBatchSize:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "comfort", Name: "ingest_batch_size"}),
		IngestBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "comfort", Name: "ingest_batch_duration_seconds"}),
		MortarRequests:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "comfort", Name: "mortar_requests_total"}, []string{"endpoint", "outcome"}),
		MortarDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "comfort", Name: "mortar_request_duration_seconds"}, []string{"endpoint"}),
		ResolverCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "comfort", Name: "resolver_cache_total"}, []string{"result"}),
		PointsResolved:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "comfort", Name: "points_resolved_total"}),
		ReadingsFetched:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "comfort", Name: "readings_fetched_total"}),
	}
}
