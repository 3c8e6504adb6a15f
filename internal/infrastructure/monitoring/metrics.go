package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "netsandbox"

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Debug server HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Computer metrics
	ComputersActive prometheus.Gauge
	ComputersTotal  prometheus.Counter

	// Sandbox network metrics
	NetworkBytes  *prometheus.CounterVec
	Events        *prometheus.CounterVec
	EventsDropped prometheus.Counter
	Rejections    *prometheus.CounterVec

	// Operation metrics
	OperationCalls    *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Event stream metrics
	StreamConnections prometheus.Gauge
	StreamMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
	stop      chan struct{}
	stopOnce  sync.Once

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	ActiveComputers int64   `json:"active_computers"`
	ActiveStreams   int64   `json:"active_streams"`
	BytesUploaded   int64   `json:"bytes_uploaded"`
	BytesDownloaded int64   `json:"bytes_downloaded"`
	EventsQueued    int64   `json:"events_queued"`
	EventsDropped   int64   `json:"events_dropped"`
	TotalDuration   float64 `json:"total_duration_seconds"`
	RequestCount    int64   `json:"request_count"`
}

// NewMetrics creates a metrics collector on its own registry, so several
// collectors can coexist in one process.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

// NewMetricsWithRegistry creates a metrics collector registered on reg.
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),
		stop:      make(chan struct{}),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of debug server HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Debug server HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_size_bytes",
				Help:      "Debug server HTTP request size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "Debug server HTTP response size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		ComputersActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "computers_active",
				Help:      "Number of live computers",
			},
		),
		ComputersTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "computers_total",
				Help:      "Total number of computers created",
			},
		),

		NetworkBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "network_bytes_total",
				Help:      "Bytes moved by sandboxed connections",
			},
			[]string{"direction"},
		),
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Events queued to computers",
			},
			[]string{"name"},
		),
		EventsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_dropped_total",
				Help:      "Events overwritten before a waiting cursor read them",
			},
		),
		Rejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejections_total",
				Help:      "Network calls rejected before any I/O",
			},
			[]string{"operation", "kind"},
		),

		OperationCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operation_calls_total",
				Help:      "Total number of sandbox operations",
			},
			[]string{"component", "operation", "status"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Sandbox operation duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"component", "operation"},
		),

		StreamConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "event_stream_connections",
				Help:      "Number of open event stream connections",
			},
		),
		StreamMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_stream_messages_total",
				Help:      "Total number of event stream messages",
			},
			[]string{"direction", "type"},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "uptime_seconds",
				Help:      "Server uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Close stops the uptime updater.
func (m *Metrics) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Uptime.Set(time.Since(m.startTime).Seconds())
		}
	}
}

// RecordHTTPRequest records a debug server HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordUpload counts bytes written by sandboxed connections
func (m *Metrics) RecordUpload(n int) {
	m.NetworkBytes.WithLabelValues("upload").Add(float64(n))
	m.mu.Lock()
	m.snapshot.BytesUploaded += int64(n)
	m.mu.Unlock()
}

// RecordDownload counts bytes read by sandboxed connections
func (m *Metrics) RecordDownload(n int) {
	m.NetworkBytes.WithLabelValues("download").Add(float64(n))
	m.mu.Lock()
	m.snapshot.BytesDownloaded += int64(n)
	m.mu.Unlock()
}

// RecordEvent records an event queued to a computer
func (m *Metrics) RecordEvent(name string) {
	m.Events.WithLabelValues(name).Inc()
	m.mu.Lock()
	m.snapshot.EventsQueued++
	m.mu.Unlock()
}

// RecordEventsDropped records events a lagging cursor skipped
func (m *Metrics) RecordEventsDropped(n uint64) {
	m.EventsDropped.Add(float64(n))
	m.mu.Lock()
	m.snapshot.EventsDropped += int64(n)
	m.mu.Unlock()
}

// RecordRejection records a call refused synchronously
func (m *Metrics) RecordRejection(operation, kind string) {
	m.Rejections.WithLabelValues(operation, kind).Inc()
}

// RecordOperation records a sandbox operation
func (m *Metrics) RecordOperation(component, operation, status string, duration time.Duration) {
	m.OperationCalls.WithLabelValues(component, operation, status).Inc()
	m.OperationDuration.WithLabelValues(component, operation).Observe(duration.Seconds())
}

// RecordStreamMessage records an event stream message
func (m *Metrics) RecordStreamMessage(direction, msgType string) {
	m.StreamMessages.WithLabelValues(direction, msgType).Inc()
}

// SetComputersActive sets the number of live computers
func (m *Metrics) SetComputersActive(count int) {
	m.ComputersActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveComputers = int64(count)
	m.mu.Unlock()
}

// IncComputersTotal increments the total computers counter
func (m *Metrics) IncComputersTotal() {
	m.ComputersTotal.Inc()
}

// IncStreamConnections increments event stream connections
func (m *Metrics) IncStreamConnections() {
	m.StreamConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveStreams++
	m.mu.Unlock()
}

// DecStreamConnections decrements event stream connections
func (m *Metrics) DecStreamConnections() {
	m.StreamConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveStreams--
	m.mu.Unlock()
}

// UptimeSeconds returns the seconds since the collector was created
func (m *Metrics) UptimeSeconds() float64 {
	return time.Since(m.startTime).Seconds()
}

// Snapshot returns the current values for the JSON API
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
