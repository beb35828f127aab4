// Package middleware provides cross-cutting concerns for the matcher: metrics
// and structured logging.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-matcher/internal/ports"
)

// labelOrDefault returns labels[key], or def when it is missing or empty.
func labelOrDefault(labels map[string]string, key, def string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return def
}

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It tracks record outcomes, omitted candidates, scorer model
// size and the latency of fits, document aggregation and whole runs.
type PrometheusMetrics struct {
	records           *prometheus.CounterVec
	candidatesOmitted *prometheus.CounterVec
	operationLatency  *prometheus.HistogramVec
	operationCounter  *prometheus.CounterVec
	modelState        *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance and registers
// its collectors with reg. A nil reg uses the global Prometheus registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		records: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matcher_records_total",
				Help: "Metadata records produced, by outcome (created or updated).",
			},
			[]string{"namespace", "outcome"},
		),
		candidatesOmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matcher_candidates_omitted_total",
				Help: "Group members left out of a record because no feature scored above zero.",
			},
			[]string{"namespace"},
		),
		operationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "matcher_operation_duration_seconds",
				Help:    "Duration of matcher operations such as fit, aggregate_document and run.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "scorer"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matcher_operations_total",
				Help: "Matcher operations by status.",
			},
			[]string{"operation", "status", "scorer"},
		),
		modelState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "matcher_model_state",
				Help: "Size of the fitted scorer models, such as dictionary and corpus size.",
			},
			[]string{"metric", "scorer"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	scorer := labelOrDefault(labels, "scorer", "all")
	pm.operationLatency.WithLabelValues(operation, scorer).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	namespace := labelOrDefault(labels, "namespace", "unknown")

	switch metric {
	case ports.MetricRecordsCreated:
		pm.records.WithLabelValues(namespace, "created").Add(value)
	case ports.MetricRecordsUpdated:
		pm.records.WithLabelValues(namespace, "updated").Add(value)
	case ports.MetricCandidatesOmitted:
		pm.candidatesOmitted.WithLabelValues(namespace).Add(value)
	default:
		pm.operationCounter.WithLabelValues(
			metric,
			labelOrDefault(labels, "status", "success"),
			labelOrDefault(labels, "scorer", "all"),
		).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	pm.modelState.WithLabelValues(metric, labelOrDefault(labels, "scorer", "all")).Set(value)
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
