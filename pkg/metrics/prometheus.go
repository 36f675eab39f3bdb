// Package metrics provides Prometheus metrics for the facepace service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every metric of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Workflow metrics
	sessionsCreated  prometheus.Counter
	sessionsActive   prometheus.Gauge
	uploads          *prometheus.CounterVec
	uploadBytes      *prometheus.CounterVec
	uploadLatency    *prometheus.HistogramVec
	analysisRequests *prometheus.CounterVec
	analysisLatency  prometheus.Histogram
	analysisInFlight prometheus.Gauge

	// Leaderboard metrics
	leaderboardEntries      prometheus.Gauge
	leaderboardInserts      prometheus.Counter
	leaderboardQueryLatency prometheus.Histogram

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRateLimited     prometheus.Counter

	// Queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker metrics
	workerActiveCount       prometheus.Gauge
	workerBusyCount         prometheus.Gauge
	workerJobs              *prometheus.CounterVec
	workerProcessingLatency prometheus.Histogram

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its metrics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "facepace",
		subsystem:        "",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000, 300000},
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place to declare every metric
	auto := promauto.With(m.registry)
	b := m.histogramBuckets

	m.sessionsCreated = auto.NewCounter(m.counterOpts("sessions_created_total", "Capture sessions created"))
	m.sessionsActive = auto.NewGauge(m.gaugeOpts("sessions_active", "Sessions currently tracked in memory"))
	m.uploads = auto.NewCounterVec(m.counterOpts("uploads_total", "Asset uploads by kind and outcome"), []string{"kind", "outcome"})
	m.uploadBytes = auto.NewCounterVec(m.counterOpts("upload_bytes_total", "Bytes uploaded by kind"), []string{"kind"})
	m.uploadLatency = auto.NewHistogramVec(m.histOpts("upload_latency_milliseconds", "Upload latency in milliseconds", b), []string{"kind"})
	m.analysisRequests = auto.NewCounterVec(m.counterOpts("analysis_requests_total", "Analysis requests by outcome"), []string{"outcome"})
	m.analysisLatency = auto.NewHistogram(m.histOpts("analysis_latency_milliseconds", "Analysis round trip in milliseconds", b))
	m.analysisInFlight = auto.NewGauge(m.gaugeOpts("analysis_in_flight", "Analysis requests currently in flight"))

	m.leaderboardEntries = auto.NewGauge(m.gaugeOpts("leaderboard_entries", "Entries on the leaderboard"))
	m.leaderboardInserts = auto.NewCounter(m.counterOpts("leaderboard_inserts_total", "Entries published to the leaderboard"))
	m.leaderboardQueryLatency = auto.NewHistogram(m.histOpts("leaderboard_query_latency_milliseconds", "Leaderboard query latency in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250}))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", b),
		[]string{"endpoint", "method", "status_code"})
	m.httpRateLimited = auto.NewCounter(m.counterOpts("http_rate_limited_total", "Requests rejected by the rate limiter"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Jobs waiting in the upload queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Upload queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Upload queue size over capacity"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Jobs enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Jobs rejected by the queue"))

	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Workers in the pool"))
	m.workerBusyCount = auto.NewGauge(m.gaugeOpts("worker_busy_count", "Workers currently running a job"))
	m.workerJobs = auto.NewCounterVec(m.counterOpts("worker_jobs_total", "Jobs run by kind and outcome"), []string{"kind", "outcome"})
	m.workerProcessingLatency = auto.NewHistogram(m.histOpts("worker_processing_latency_milliseconds", "Job run time in milliseconds", b))

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "Errors by endpoint, method and type"),
		[]string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap memory in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Session metrics.

// RecordSessionCreated counts a new session.
func RecordSessionCreated() {
	if globalManager.enabled {
		globalManager.sessionsCreated.Inc()
	}
}

// UpdateSessionsActive sets the number of tracked sessions.
func UpdateSessionsActive(n int) {
	if globalManager.enabled {
		globalManager.sessionsActive.Set(float64(n))
	}
}

// Upload metrics.

// RecordUpload records one upload attempt.
func RecordUpload(kind, outcome string, bytes int64, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.uploads.WithLabelValues(kind, outcome).Inc()
	globalManager.uploadLatency.WithLabelValues(kind).Observe(latencyMs)
	if outcome == "ok" {
		globalManager.uploadBytes.WithLabelValues(kind).Add(float64(bytes))
	}
}

// Analysis metrics.

// RecordAnalysis records one analysis round trip.
func RecordAnalysis(outcome string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.analysisRequests.WithLabelValues(outcome).Inc()
	globalManager.analysisLatency.Observe(latencyMs)
}

// AddAnalysisInFlight adjusts the in-flight gauge by delta.
func AddAnalysisInFlight(delta int) {
	if globalManager.enabled {
		globalManager.analysisInFlight.Add(float64(delta))
	}
}

// Leaderboard metrics.

// UpdateLeaderboardEntries sets the entry count.
func UpdateLeaderboardEntries(n int) {
	if globalManager.enabled {
		globalManager.leaderboardEntries.Set(float64(n))
	}
}

// RecordLeaderboardInsert counts a published entry.
func RecordLeaderboardInsert() {
	if globalManager.enabled {
		globalManager.leaderboardInserts.Inc()
	}
}

// RecordLeaderboardQueryLatency records a read.
func RecordLeaderboardQueryLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.leaderboardQueryLatency.Observe(latencyMs)
	}
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// RecordRateLimited counts a rejected request.
func RecordRateLimited() {
	if globalManager.enabled {
		globalManager.httpRateLimited.Inc()
	}
}

// Queue metrics.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if globalManager.enabled {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	if globalManager.enabled {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	if globalManager.enabled {
		globalManager.queueUtilization.Set(utilization)
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if globalManager.enabled {
		globalManager.queueEnqueueRate.Inc()
	}
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if globalManager.enabled {
		globalManager.queueDequeueRate.Inc()
	}
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	if globalManager.enabled {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// Worker metrics.

// UpdateWorkerActiveCount sets the number of workers.
func UpdateWorkerActiveCount(count int) {
	if globalManager.enabled {
		globalManager.workerActiveCount.Set(float64(count))
	}
}

// AddWorkerBusy adjusts the busy gauge by delta.
func AddWorkerBusy(delta int) {
	if globalManager.enabled {
		globalManager.workerBusyCount.Add(float64(delta))
	}
}

// RecordWorkerJob records one job run.
func RecordWorkerJob(kind, outcome string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.workerJobs.WithLabelValues(kind, outcome).Inc()
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if globalManager.enabled {
		globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if globalManager.enabled {
		globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// System metrics.

// UpdateSystemMemoryUsage sets the heap memory in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager.enabled {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	if globalManager.enabled {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	if globalManager.enabled {
		globalManager.systemGCPauseTime.Observe(pauseMs)
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
