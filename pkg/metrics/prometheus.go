// Package metrics provides Prometheus metrics for the btcguess service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Game
	guessesCreated    prometheus.Counter
	guessesResolved   *prometheus.CounterVec
	resolutionLatency prometheus.Histogram
	resolutionErrors  *prometheus.CounterVec
	activeSessions    prometheus.Gauge
	countdownsRunning prometheus.Gauge

	// Price feed
	priceFetches     *prometheus.CounterVec
	priceFetchTiming *prometheus.HistogramVec
	lastPrice        prometheus.Gauge

	// Identity
	authEvents *prometheus.CounterVec

	// Resolution queue and workers
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueEnqueued           prometheus.Counter
	queueDequeued           prometheus.Counter
	queueEnqueueErrors      *prometheus.CounterVec
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP and streaming
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	websocketClients    prometheus.Gauge

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // avoids default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "btcguess",
		subsystem:        "game",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.guessesCreated = auto.NewCounter(m.counterOpts("guesses_created_total", "Guesses placed"))
	m.guessesResolved = auto.NewCounterVec(m.counterOpts("guesses_resolved_total", "Guesses resolved by outcome"), []string{"outcome"})
	m.resolutionLatency = auto.NewHistogram(m.histogramOpts("resolution_latency_milliseconds", "Time from resolve call to persisted outcome"))
	m.resolutionErrors = auto.NewCounterVec(m.counterOpts("resolution_errors_total", "Failed resolutions by reason"), []string{"reason"})
	m.activeSessions = auto.NewGauge(m.gaugeOpts("active_sessions", "Player sessions held in memory"))
	m.countdownsRunning = auto.NewGauge(m.gaugeOpts("countdowns_running", "Countdown loops currently running"))

	m.priceFetches = auto.NewCounterVec(m.counterOpts("price_fetches_total", "Price quote attempts by provider and result"), []string{"provider", "result"})
	m.priceFetchTiming = auto.NewHistogramVec(m.histogramOpts("price_fetch_milliseconds", "Price quote latency by provider"), []string{"provider"})
	m.lastPrice = auto.NewGauge(m.gaugeOpts("btc_usd_price", "Last observed BTC/USD price"))

	m.authEvents = auto.NewCounterVec(m.counterOpts("auth_events_total", "Identity operations by operation and result"), []string{"operation", "result"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("resolve_queue_size", "Pending resolution jobs"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("resolve_queue_capacity", "Resolution queue capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("resolve_queue_enqueued_total", "Resolution jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("resolve_queue_dequeued_total", "Resolution jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounterVec(m.counterOpts("resolve_queue_enqueue_errors_total", "Rejected resolution jobs by reason"), []string{"reason"})
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Resolution workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_milliseconds", "Resolution job processing latency"))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Resolution jobs that failed"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration"), []string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counterOpts("http_errors_total", "HTTP error responses by endpoint and error type"), []string{"endpoint", "method", "error_type"})
	m.websocketClients = auto.NewGauge(m.gaugeOpts("websocket_clients", "Connected websocket clients"))

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_time_milliseconds",
		Help:        "Average GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: m.constLabels,
	})
}

// RecordGuessCreated counts a placed guess.
func RecordGuessCreated() {
	globalManager.guessesCreated.Inc()
}

// RecordGuessResolved counts a resolved guess by outcome (win, loss, tie).
func RecordGuessResolved(outcome string) {
	globalManager.guessesResolved.WithLabelValues(outcome).Inc()
}

// RecordResolutionLatency observes resolution latency in milliseconds.
func RecordResolutionLatency(latencyMs float64) {
	globalManager.resolutionLatency.Observe(latencyMs)
}

// RecordResolutionError counts a failed resolution.
func RecordResolutionError(reason string) {
	globalManager.resolutionErrors.WithLabelValues(reason).Inc()
}

// UpdateActiveSessions sets the number of in-memory sessions.
func UpdateActiveSessions(count int) {
	globalManager.activeSessions.Set(float64(count))
}

// CountdownStarted increments the running countdown gauge.
func CountdownStarted() {
	globalManager.countdownsRunning.Inc()
}

// CountdownStopped decrements the running countdown gauge.
func CountdownStopped() {
	globalManager.countdownsRunning.Dec()
}

// RecordPriceFetch records one provider attempt.
func RecordPriceFetch(provider, result string, latencyMs float64) {
	globalManager.priceFetches.WithLabelValues(provider, result).Inc()
	globalManager.priceFetchTiming.WithLabelValues(provider).Observe(latencyMs)
}

// UpdateLastPrice sets the last observed BTC/USD price.
func UpdateLastPrice(price float64) {
	globalManager.lastPrice.Set(price)
}

// RecordAuthEvent counts an identity operation.
func RecordAuthEvent(operation, result string) {
	globalManager.authEvents.WithLabelValues(operation, result).Inc()
}

// UpdateQueueSize sets the current resolution queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the resolution queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted job.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts a delivered job.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a rejected job.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of resolution workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency observes job processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed job.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint counts an HTTP error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// WebsocketConnected increments the websocket client gauge.
func WebsocketConnected() {
	globalManager.websocketClients.Inc()
}

// WebsocketDisconnected decrements the websocket client gauge.
func WebsocketDisconnected() {
	globalManager.websocketClients.Dec()
}

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime observes GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry holding the service metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
