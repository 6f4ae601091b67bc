package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds all Prometheus metrics for the benchmark service.
type PrometheusMetrics struct {
	// Run lifecycle
	RunsTotal  *prometheus.CounterVec
	ActiveRuns prometheus.Gauge

	// Per-attempt counters and distributions
	AttemptsTotal  *prometheus.CounterVec
	AttemptLatency *prometheus.HistogramVec
	FeeLamports    prometheus.Histogram
	TipRefunded    prometheus.Counter

	// Gateway call errors by method
	GatewayErrors *prometheus.CounterVec
}

// NewPrometheusMetrics creates and registers all Prometheus metrics.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &PrometheusMetrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gwbench_runs_total",
				Help: "Total benchmark runs by terminal status",
			},
			[]string{"status"},
		),

		ActiveRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gwbench_active_runs",
				Help: "Benchmark runs currently executing",
			},
		),

		AttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gwbench_attempts_total",
				Help: "Total transaction attempts by status and scenario",
			},
			[]string{"status", "scenario"},
		),

		AttemptLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gwbench_attempt_latency_seconds",
				Help:    "End-to-end attempt latency from build to submit response",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"scenario"},
		),

		FeeLamports: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gwbench_attempt_fee_lamports",
				Help:    "Fee paid per successful attempt in lamports",
				Buckets: prometheus.ExponentialBuckets(1000, 2, 12),
			},
		),

		TipRefunded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gwbench_tip_refunded_lamports_total",
				Help: "Total tip lamports refunded by the Gateway",
			},
		),

		GatewayErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gwbench_gateway_errors_total",
				Help: "Gateway call failures by method",
			},
			[]string{"method"},
		),
	}
}
