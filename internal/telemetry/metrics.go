// Package telemetry exposes Prometheus metrics for the delivery engine.
// Every method is safe on a nil *Metrics so callers can run without them.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery outcomes used as the outcome label.
const (
	OutcomeCompleted = "completed"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
)

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	deliveries    *prometheus.CounterVec
	retries       prometheus.Counter
	bytesSent     prometheus.Counter
	filesDeleted  prometheus.Counter
	rowsPurged    prometheus.Counter
	queueDepth    prometheus.Gauge
	workersActive prometheus.Gauge
	duration      prometheus.Histogram
}

// New registers the courier collectors plus Go runtime and process metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_deliveries_total",
			Help: "Delivery attempts by outcome.",
		}, []string{"outcome", "transport"}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Name: "courier_retries_total",
			Help: "Jobs re-queued after a failed attempt.",
		}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "courier_bytes_sent_total",
			Help: "Bytes of successfully delivered files.",
		}),
		filesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "courier_files_deleted_total",
			Help: "Local files removed by retention.",
		}),
		rowsPurged: factory.NewCounter(prometheus.CounterOpts{
			Name: "courier_rows_purged_total",
			Help: "Job rows hard-deleted by purge.",
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "courier_queue_depth",
			Help: "Entries waiting in the scheduler.",
		}),
		workersActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "courier_workers_active",
			Help: "Workers currently delivering a file.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "courier_delivery_duration_seconds",
			Help:    "Wall time of delivery attempts.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveDelivery records one attempt. Bytes count only for completed ones.
func (m *Metrics) ObserveDelivery(outcome, transport string, bytes int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome, transport).Inc()
	m.duration.Observe(elapsed.Seconds())
	if outcome == OutcomeCompleted && bytes > 0 {
		m.bytesSent.Add(float64(bytes))
	}
	if outcome == OutcomeRetried {
		m.retries.Inc()
	}
}

func (m *Metrics) AddFilesDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.filesDeleted.Add(float64(n))
}

func (m *Metrics) AddRowsPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsPurged.Add(float64(n))
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// WorkerBusy marks a worker active and returns the func that marks it idle.
func (m *Metrics) WorkerBusy() func() {
	if m == nil {
		return func() {}
	}
	m.workersActive.Inc()
	return m.workersActive.Dec
}
