package application

import (
	"sync"
	"time"
)

// recordingMetrics sums counters and counts latency observations.
type recordingMetrics struct {
	mu        sync.Mutex
	counters  map[string]float64
	gauges    map[string]float64
	latencies int
}

func (r *recordingMetrics) RecordLatency(string, time.Duration, map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latencies++
}

func (r *recordingMetrics) RecordCounter(metric string, value float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[metric] += value
}

func (r *recordingMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gauges == nil {
		r.gauges = map[string]float64{}
	}
	r.gauges[metric] = value
}
