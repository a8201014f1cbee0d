// Package metrics exposes processing counters for the detection service.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// Job counters
	JobsProcessed atomic.Uint64
	JobsFailed    atomic.Uint64

	// Frame counters
	FramesProcessed atomic.Uint64
	Detections      atomic.Uint64

	// Jobs waiting in the queue
	QueueDepth atomic.Int64

	jobDuration prometheus.Histogram

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "brick_job_duration_seconds",
			Help:    "Wall time spent processing one video",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}

	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "brick_jobs_processed_total",
			Help: "Total videos processed successfully",
		},
		func() float64 { return float64(m.JobsProcessed.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "brick_jobs_failed_total",
			Help: "Total videos whose processing failed",
		},
		func() float64 { return float64(m.JobsFailed.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "brick_frames_processed_total",
			Help: "Total frames run through the detector",
		},
		func() float64 { return float64(m.FramesProcessed.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "brick_detections_total",
			Help: "Total bricks detected across all frames",
		},
		func() float64 { return float64(m.Detections.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "brick_queue_depth",
			Help: "Videos waiting to be processed",
		},
		func() float64 { return float64(m.QueueDepth.Load()) },
	))

	m.registry.MustRegister(m.jobDuration)
}

// ObserveJob records the outcome and duration of one video job.
func (m *Metrics) ObserveJob(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.JobsFailed.Add(1)
	} else {
		m.JobsProcessed.Add(1)
	}
	m.jobDuration.Observe(elapsed.Seconds())
}

// ObserveFrame records one processed frame and its detection count.
func (m *Metrics) ObserveFrame(detections int) {
	if m == nil {
		return
	}
	m.FramesProcessed.Add(1)
	m.Detections.Add(uint64(detections))
}

// SetQueueDepth records the number of waiting jobs.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Store(int64(n))
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
