package middleware

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-matcher/internal/ports"
)

// globalPrometheusMetrics is registered once with the default registry;
// registering the same collectors twice panics.
var globalPrometheusMetrics *PrometheusMetrics

func init() {
	globalPrometheusMetrics = NewPrometheusMetrics(nil)
}

func newTestMetrics(t *testing.T) (*PrometheusMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusMetrics(reg), reg
}

// sample finds the metric of family name whose labels include want.
func sample(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			got := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if got[k] != v {
					continue metrics
				}
			}
			return m
		}
	}
	t.Fatalf("no %s sample with labels %v", name, want)
	return nil
}

func TestNewPrometheusMetrics(t *testing.T) {
	pm := globalPrometheusMetrics
	require.NotNil(t, pm)
	assert.NotNil(t, pm.records)
	assert.NotNil(t, pm.candidatesOmitted)
	assert.NotNil(t, pm.operationLatency)
	assert.NotNil(t, pm.operationCounter)
	assert.NotNil(t, pm.modelState)

	var _ ports.MetricsCollector = pm
	assert.NotPanics(t, func() {
		pm.RecordCounter(ports.MetricRecordsCreated, 1, map[string]string{"namespace": "ns"})
	})
}

func TestPrometheusMetrics_RecordLatency(t *testing.T) {
	pm, reg := newTestMetrics(t)

	pm.RecordLatency("fit", 100*time.Millisecond, map[string]string{"scorer": "tfidf"})
	pm.RecordLatency("fit", 300*time.Millisecond, map[string]string{"scorer": "tfidf"})
	pm.RecordLatency("run", time.Second, map[string]string{"namespace": "ns"})
	pm.RecordLatency("aggregate_document", time.Millisecond, map[string]string{"scorer": ""})

	fit := sample(t, reg, "matcher_operation_duration_seconds", map[string]string{"operation": "fit", "scorer": "tfidf"})
	assert.Equal(t, uint64(2), fit.GetHistogram().GetSampleCount())
	assert.InDelta(t, 0.4, fit.GetHistogram().GetSampleSum(), 1e-9)

	run := sample(t, reg, "matcher_operation_duration_seconds", map[string]string{"operation": "run", "scorer": "all"})
	assert.Equal(t, uint64(1), run.GetHistogram().GetSampleCount())

	agg := sample(t, reg, "matcher_operation_duration_seconds", map[string]string{"operation": "aggregate_document"})
	assert.Equal(t, "all", labelValue(agg, "scorer"), "empty scorer label falls back")
}

func TestPrometheusMetrics_RecordCounter(t *testing.T) {
	tests := []struct {
		name   string
		metric string
		value  float64
		labels map[string]string
		family string
		want   map[string]string
	}{
		{
			name:   "records created",
			metric: ports.MetricRecordsCreated,
			value:  3,
			labels: map[string]string{"namespace": "Venue.org/2026"},
			family: "matcher_records_total",
			want:   map[string]string{"namespace": "Venue.org/2026", "outcome": "created"},
		},
		{
			name:   "records updated",
			metric: ports.MetricRecordsUpdated,
			value:  2,
			labels: map[string]string{"namespace": "Venue.org/2026"},
			family: "matcher_records_total",
			want:   map[string]string{"namespace": "Venue.org/2026", "outcome": "updated"},
		},
		{
			name:   "candidates omitted without namespace",
			metric: ports.MetricCandidatesOmitted,
			value:  5,
			labels: nil,
			family: "matcher_candidates_omitted_total",
			want:   map[string]string{"namespace": "unknown"},
		},
		{
			name:   "fit failure",
			metric: "fit",
			value:  1,
			labels: map[string]string{"scorer": "tfidf", "status": "error"},
			family: "matcher_operations_total",
			want:   map[string]string{"operation": "fit", "status": "error", "scorer": "tfidf"},
		},
		{
			name:   "generic counter defaults",
			metric: "custom",
			value:  42,
			labels: map[string]string{},
			family: "matcher_operations_total",
			want:   map[string]string{"operation": "custom", "status": "success", "scorer": "all"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm, reg := newTestMetrics(t)
			pm.RecordCounter(tt.metric, tt.value, tt.labels)
			m := sample(t, reg, tt.family, tt.want)
			assert.Equal(t, tt.value, m.GetCounter().GetValue())
		})
	}
}

func TestPrometheusMetrics_RecordGauge(t *testing.T) {
	pm, reg := newTestMetrics(t)

	pm.RecordGauge(ports.MetricDictionarySize, 120, map[string]string{"scorer": "tfidf"})
	pm.RecordGauge(ports.MetricDictionarySize, 150, map[string]string{"scorer": "tfidf"})
	pm.RecordGauge(ports.MetricCorpusSize, 9, map[string]string{"scorer": "tfidf"})
	pm.RecordGauge("queue_depth", 4, nil)

	dict := sample(t, reg, "matcher_model_state", map[string]string{"metric": "dictionary_size", "scorer": "tfidf"})
	assert.Equal(t, 150.0, dict.GetGauge().GetValue(), "gauges keep the latest value")

	corpus := sample(t, reg, "matcher_model_state", map[string]string{"metric": "corpus_size"})
	assert.Equal(t, 9.0, corpus.GetGauge().GetValue())

	other := sample(t, reg, "matcher_model_state", map[string]string{"metric": "queue_depth", "scorer": "all"})
	assert.Equal(t, 4.0, other.GetGauge().GetValue())
}

func TestLabelOrDefault(t *testing.T) {
	assert.Equal(t, "x", labelOrDefault(map[string]string{"k": "x"}, "k", "d"))
	assert.Equal(t, "d", labelOrDefault(map[string]string{"k": ""}, "k", "d"))
	assert.Equal(t, "d", labelOrDefault(nil, "k", "d"))
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
