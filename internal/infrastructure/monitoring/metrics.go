// Package monitoring collects Prometheus metrics for the aggregation
// engine and keeps a cheap snapshot for the JSON stats endpoint.
package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. Each Metrics value owns its
// registry so tests and embedded uses never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	// Ingestion metrics
	FramesSubmitted  *prometheus.CounterVec
	FramesProcessed  *prometheus.CounterVec
	ProducerFailures *prometheus.CounterVec
	ProcessDuration  *prometheus.HistogramVec

	// Bundle metrics
	BundlesCompleted  prometheus.Counter
	BundlesEvicted    prometheus.Counter
	DuplicateFrames   *prometheus.CounterVec
	CompletionLatency prometheus.Histogram
	PendingDepth      prometheus.Gauge
	CompletedDepth    prometheus.Gauge

	// Snapshot for the JSON stats API
	mu       sync.RWMutex
	snapshot Snapshot
}

// Snapshot holds current counter values for the JSON stats API.
type Snapshot struct {
	FramesSubmitted  int64 `json:"frames_submitted"`
	FramesProcessed  int64 `json:"frames_processed"`
	ProducerFailures int64 `json:"producer_failures"`
	BundlesCompleted int64 `json:"bundles_completed"`
	BundlesEvicted   int64 `json:"bundles_evicted"`
	DuplicateFrames  int64 `json:"duplicate_frames"`
	PendingDepth     int64 `json:"pending_depth"`
	CompletedDepth   int64 `json:"completed_depth"`
}

// New creates a metrics collector backed by its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		FramesSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multicam_frames_submitted_total",
				Help: "Total number of images submitted for processing",
			},
			[]string{"camera"},
		),
		FramesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multicam_frames_processed_total",
				Help: "Total number of frames produced and inserted",
			},
			[]string{"camera"},
		),
		ProducerFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multicam_producer_failures_total",
				Help: "Total number of dropped frames by failure reason",
			},
			[]string{"camera", "reason"},
		),
		ProcessDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "multicam_process_duration_seconds",
				Help:    "Frame producer processing duration in seconds",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
			},
			[]string{"camera"},
		),

		BundlesCompleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "multicam_bundles_completed_total",
				Help: "Total number of bundles that reached completion",
			},
		),
		BundlesEvicted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "multicam_bundles_evicted_total",
				Help: "Total number of stale in-progress bundles evicted",
			},
		),
		DuplicateFrames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multicam_duplicate_frames_total",
				Help: "Total number of duplicate same-camera frames overwritten",
			},
			[]string{"camera"},
		),
		CompletionLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "multicam_bundle_completion_latency_seconds",
				Help:    "Wall time from bundle creation to completion",
				Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),
		PendingDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "multicam_bundles_pending",
				Help: "Number of in-progress bundles",
			},
		),
		CompletedDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "multicam_bundles_ready",
				Help: "Number of completed bundles awaiting retrieval",
			},
		),
	}
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordSubmit records one submitted image.
func (m *Metrics) RecordSubmit(camera string) {
	m.FramesSubmitted.WithLabelValues(camera).Inc()

	m.mu.Lock()
	m.snapshot.FramesSubmitted++
	m.mu.Unlock()
}

// RecordProcess records a successful producer call.
func (m *Metrics) RecordProcess(camera string, duration time.Duration) {
	m.FramesProcessed.WithLabelValues(camera).Inc()
	m.ProcessDuration.WithLabelValues(camera).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.FramesProcessed++
	m.mu.Unlock()
}

// RecordFailure records a dropped frame.
func (m *Metrics) RecordFailure(camera, reason string) {
	m.ProducerFailures.WithLabelValues(camera, reason).Inc()

	m.mu.Lock()
	m.snapshot.ProducerFailures++
	m.mu.Unlock()
}

// RecordDuplicate records a duplicate-slot overwrite.
func (m *Metrics) RecordDuplicate(camera string) {
	m.DuplicateFrames.WithLabelValues(camera).Inc()

	m.mu.Lock()
	m.snapshot.DuplicateFrames++
	m.mu.Unlock()
}

// RecordCompletion records a bundle completion and its latency.
func (m *Metrics) RecordCompletion(latency time.Duration) {
	m.BundlesCompleted.Inc()
	m.CompletionLatency.Observe(latency.Seconds())

	m.mu.Lock()
	m.snapshot.BundlesCompleted++
	m.mu.Unlock()
}

// RecordEvictions records n stale bundles dropped.
func (m *Metrics) RecordEvictions(n int) {
	if n <= 0 {
		return
	}
	m.BundlesEvicted.Add(float64(n))

	m.mu.Lock()
	m.snapshot.BundlesEvicted += int64(n)
	m.mu.Unlock()
}

// SetDepths updates the table depth gauges.
func (m *Metrics) SetDepths(pending, completed int) {
	m.PendingDepth.Set(float64(pending))
	m.CompletedDepth.Set(float64(completed))

	m.mu.Lock()
	m.snapshot.PendingDepth = int64(pending)
	m.snapshot.CompletedDepth = int64(completed)
	m.mu.Unlock()
}

// GetSnapshot returns the current counter values.
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
