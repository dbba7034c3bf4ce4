package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec
	InFlight        prometheus.Gauge

	// Bundle metrics
	BundleLoads        *prometheus.CounterVec
	BundleLoadDuration *prometheus.HistogramVec
	BundleBytes        *prometheus.CounterVec
	BundlesLoaded      *prometheus.GaugeVec
	BundleUnloads      *prometheus.CounterVec

	// Service metrics
	ServiceCalls    *prometheus.CounterVec
	ServiceDuration *prometheus.HistogramVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests int64   `json:"total_requests"`
	TotalErrors   int64   `json:"total_errors"`
	BundleLoads   int64   `json:"bundle_loads"`
	LoadFailures  int64   `json:"load_failures"`
	Unloads       int64   `json:"unloads"`
	LoadedBundles int64   `json:"loaded_bundles"`
	TotalDuration float64 `json:"total_duration_seconds"` // sum of all request durations
	RequestCount  int64   `json:"request_count"`          // count for averaging
}

// NewMetrics creates a metrics collector registered with reg. A nil reg
// uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bundles_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bundles_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bundles_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bundles_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bundles_http_requests_in_flight",
				Help: "HTTP requests currently being served",
			},
		),

		// Bundle metrics
		BundleLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bundles_loads_total",
				Help: "Total number of physical bundle loads",
			},
			[]string{"package", "mode", "status"},
		),
		BundleLoadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bundles_load_duration_seconds",
				Help:    "Physical bundle load duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"package", "mode"},
		),
		BundleBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bundles_loaded_bytes_total",
				Help: "Total on-disk bytes of bundles loaded",
			},
			[]string{"package"},
		),
		BundlesLoaded: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bundles_resident",
				Help: "Number of resident bundles",
			},
			[]string{"package"},
		),
		BundleUnloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bundles_unloads_total",
				Help: "Total number of bundle unloads",
			},
			[]string{"package", "forced"},
		),

		// Service metrics
		ServiceCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bundles_service_calls_total",
				Help: "Total number of service calls",
			},
			[]string{"service", "method", "status"},
		),
		ServiceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bundles_service_duration_seconds",
				Help:    "Service call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"service", "method"},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bundles_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}
}

// Run updates the uptime metric until ctx is done.
func (m *Metrics) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Uptime.Set(time.Since(m.startTime).Seconds())
		}
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordServiceCall records a service call
func (m *Metrics) RecordServiceCall(service, method, status string, duration time.Duration) {
	m.ServiceCalls.WithLabelValues(service, method, status).Inc()
	m.ServiceDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// Snapshot returns the current JSON view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
