// Package metrics provides Prometheus metrics for the rollcall attendance service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	distanceBuckets  []float64
	registry         prometheus.Registerer

	// Pipeline
	framesProcessed   prometheus.Counter
	framesDuplicate   prometheus.Counter
	framesFailed      *prometheus.CounterVec
	facesDetected     prometheus.Counter
	detectionLatency  prometheus.Histogram
	matchResults      *prometheus.CounterVec
	matchDistance     prometheus.Histogram
	marks             *prometheus.CounterVec
	ledgerErrors      *prometheus.CounterVec
	reportsGenerated  prometheus.Counter
	reconcileLatency  prometheus.Histogram
	pipelineLatency   prometheus.Histogram
	feedClients       prometheus.Gauge
	feedBroadcasts    prometheus.Counter

	// Gallery
	gallerySize            prometheus.Gauge
	galleryVersion         prometheus.Gauge
	gallerySkipped         prometheus.Gauge
	galleryRefreshDuration prometheus.Histogram
	galleryRefreshes       *prometheus.CounterVec
	galleryCacheHits       prometheus.Counter
	galleryCacheMisses     prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Workers
	workerCount   prometheus.Gauge
	workerLatency prometheus.Histogram
	workerErrors  prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // dedicated registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rollcall",
		subsystem:        "attendance",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		distanceBuckets:  []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 1.0, 1.5},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.framesProcessed = m.counter("frames_processed_total", "Frames run through detection and matching")
	m.framesDuplicate = m.counter("frames_duplicate_total", "Frames rejected because their frame id was already seen")
	m.framesFailed = m.counterVec("frames_failed_total", "Frames that failed, by reason", "reason")
	m.facesDetected = m.counter("faces_detected_total", "Faces returned by the detector")
	m.detectionLatency = m.histogram("detection_latency_milliseconds", "Detector call latency in milliseconds", m.histogramBuckets)
	m.matchResults = m.counterVec("match_results_total", "Matcher outcomes", "result")
	m.matchDistance = m.histogram("match_distance", "Distance of the best gallery candidate", m.distanceBuckets)
	m.marks = m.counterVec("marks_total", "Attendance mark outcomes, by status", "status")
	m.ledgerErrors = m.counterVec("ledger_errors_total", "Ledger storage failures, by operation", "op")
	m.reportsGenerated = m.counter("reports_generated_total", "Reconciled attendance reports")
	m.reconcileLatency = m.histogram("reconcile_latency_milliseconds", "Reconciliation latency in milliseconds", m.histogramBuckets)
	m.pipelineLatency = m.histogram("pipeline_latency_milliseconds", "End to end frame latency in milliseconds", m.histogramBuckets)
	m.feedClients = m.gauge("feed_clients", "Connected live feed subscribers")
	m.feedBroadcasts = m.counter("feed_broadcasts_total", "Mark notifications pushed to the live feed")

	m.gallerySize = m.gauge("gallery_size", "Identities in the published gallery snapshot")
	m.galleryVersion = m.gauge("gallery_version", "Version of the published gallery snapshot")
	m.gallerySkipped = m.gauge("gallery_skipped", "Identities left out of the last refresh")
	m.galleryRefreshDuration = m.histogram("gallery_refresh_duration_milliseconds", "Gallery refresh duration in milliseconds", m.histogramBuckets)
	m.galleryRefreshes = m.counterVec("gallery_refreshes_total", "Gallery refresh attempts, by result", "result")
	m.galleryCacheHits = m.counter("gallery_cache_hits_total", "Reference embeddings served from the cache")
	m.galleryCacheMisses = m.counter("gallery_cache_misses_total", "Reference embeddings computed by the detector")

	m.queueSize = m.gauge("queue_size", "Frames waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Frame queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Frame queue utilization (0-1)")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Frames enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Frames dequeued")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Rejected enqueues, by reason", "reason")

	m.workerCount = m.gauge("worker_count", "Frame workers running")
	m.workerLatency = m.histogram("worker_latency_milliseconds", "Worker frame processing latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Frames a worker failed to process")

	auto := promauto.With(m.registry)
	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system", Name: "memory_bytes", Help: "Allocated heap bytes",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system", Name: "goroutines", Help: "Running goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "system", Name: "gc_pause_milliseconds", Help: "Average GC pause in milliseconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	})
}

// Pipeline

func RecordFrameProcessed()             { globalManager.framesProcessed.Inc() }
func RecordFrameDuplicate()             { globalManager.framesDuplicate.Inc() }
func RecordFrameFailed(reason string)   { globalManager.framesFailed.WithLabelValues(reason).Inc() }
func RecordFacesDetected(n int)         { globalManager.facesDetected.Add(float64(n)) }
func RecordDetectionLatency(ms float64) { globalManager.detectionLatency.Observe(ms) }
func RecordPipelineLatency(ms float64)  { globalManager.pipelineLatency.Observe(ms) }

// RecordMatch records one matcher outcome and, when a candidate existed, its distance.
func RecordMatch(matched bool, distance float64, hadCandidate bool) {
	result := "no_match"
	if matched {
		result = "matched"
	}
	globalManager.matchResults.WithLabelValues(result).Inc()
	if hadCandidate {
		globalManager.matchDistance.Observe(distance)
	}
}

func RecordMark(status string)          { globalManager.marks.WithLabelValues(status).Inc() }
func RecordLedgerError(op string)       { globalManager.ledgerErrors.WithLabelValues(op).Inc() }
func RecordReport()                     { globalManager.reportsGenerated.Inc() }
func RecordReconcileLatency(ms float64) { globalManager.reconcileLatency.Observe(ms) }
func UpdateFeedClients(n int)           { globalManager.feedClients.Set(float64(n)) }
func RecordFeedBroadcast()              { globalManager.feedBroadcasts.Inc() }

// Gallery

func UpdateGallery(size int, version uint64, skipped int) {
	globalManager.gallerySize.Set(float64(size))
	globalManager.galleryVersion.Set(float64(version))
	globalManager.gallerySkipped.Set(float64(skipped))
}

// RecordGalleryRefresh records a refresh attempt; result is "ok" or "failed".
func RecordGalleryRefresh(result string, ms float64) {
	globalManager.galleryRefreshes.WithLabelValues(result).Inc()
	globalManager.galleryRefreshDuration.Observe(ms)
}

func RecordGalleryCacheHit()  { globalManager.galleryCacheHits.Inc() }
func RecordGalleryCacheMiss() { globalManager.galleryCacheMisses.Inc() }

// Queue

func UpdateQueueSize(size int)            { globalManager.queueSize.Set(float64(size)) }
func UpdateQueueCapacity(capacity int)    { globalManager.queueCapacity.Set(float64(capacity)) }
func UpdateQueueUtilization(u float64)    { globalManager.queueUtilization.Set(u) }
func RecordQueueEnqueue()                 { globalManager.queueEnqueued.Inc() }
func RecordQueueDequeue()                 { globalManager.queueDequeued.Inc() }
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// Workers

func UpdateWorkerCount(count int)            { globalManager.workerCount.Set(float64(count)) }
func RecordWorkerProcessingLatency(ms float64) { globalManager.workerLatency.Observe(ms) }
func RecordWorkerError()                     { globalManager.workerErrors.Inc() }

// HTTP

// RecordHTTPRequest counts a finished request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes a finished request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// RecordErrorByComponent counts an error attributed to a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System

func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(n int)     { globalManager.systemGoroutineCount.Set(float64(n)) }
func RecordSystemGCPauseTime(ms float64)   { globalManager.systemGCPauseTime.Observe(ms) }

// GetRegistry returns the registry served at /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
