// Package metrics provides Prometheus metrics for the CampusSync service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Latency and job buckets are in milliseconds.
//
//nolint:gochecknoglobals // default bucket layouts
var (
	defaultLatencyBuckets = []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}
	defaultJobBuckets     = []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 300000}
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	jobBuckets       []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Prediction and ML serving
	predictionsTotal    *prometheus.CounterVec
	predictionLatency   prometheus.Histogram
	predictionErrors    *prometheus.CounterVec
	similarityQueries   *prometheus.CounterVec
	similarityLatency   prometheus.Histogram
	clusterRecomputes   prometheus.Counter
	sentimentLabels     *prometheus.CounterVec
	artifactLoadLatency *prometheus.HistogramVec

	// Event lifecycle
	eventsCreated       prometheus.Counter
	registrations       *prometheus.CounterVec
	feedbackSubmitted   prometheus.Counter
	backfillsFinalized  prometheus.Counter
	backfillFieldWrites *prometheus.CounterVec

	// Jobs
	jobQueueSize      prometheus.Gauge
	jobQueueCapacity  prometheus.Gauge
	jobEnqueueErrors  *prometheus.CounterVec
	jobRuns           *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	jobWorkers        prometheus.Gauge
	jobsInFlight      prometheus.Gauge
	trainingRows      *prometheus.GaugeVec
	silhouetteScores  *prometheus.GaugeVec
	modelLastTrainedS *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec

	// Repository
	repositoryQueryLatency *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "campussync",
		subsystem:        "api",
		histogramBuckets: defaultLatencyBuckets,
		jobBuckets:       defaultJobBuckets,
		customLabels:     make(map[string]string),
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.predictionsTotal = m.counterVec("predictions_total", "Success-rate predictions served by sentiment label", "sentiment")
	m.predictionLatency = m.histogram("prediction_latency_milliseconds", "Latency of a success-rate prediction including artifact load", m.histogramBuckets)
	m.predictionErrors = m.counterVec("prediction_errors_total", "Failed predictions by reason", "reason")
	m.similarityQueries = m.counterVec("similarity_queries_total", "Similar-student queries by outcome", "outcome")
	m.similarityLatency = m.histogram("similarity_latency_milliseconds", "Latency of a similar-student query", m.histogramBuckets)
	m.clusterRecomputes = m.counter("cluster_recomputes_total", "Full-population cluster assignments computed")
	m.sentimentLabels = m.counterVec("sentiment_labels_total", "Feedback comments tagged by label", "label")
	m.artifactLoadLatency = m.histogramVec("artifact_load_latency_milliseconds", "Model artifact load latency", m.histogramBuckets, "artifact")

	m.eventsCreated = m.counter("events_created_total", "Events created")
	m.registrations = m.counterVec("registrations_total", "Registration changes by action", "action")
	m.feedbackSubmitted = m.counter("feedback_submitted_total", "Feedback entries stored")
	m.backfillsFinalized = m.counter("backfills_finalized_total", "Events whose actual results became complete")
	m.backfillFieldWrites = m.counterVec("backfill_field_writes_total", "Actual-result fields written by the backfill", "field")

	m.jobQueueSize = m.gauge("job_queue_size", "Jobs waiting in the queue")
	m.jobQueueCapacity = m.gauge("job_queue_capacity", "Capacity of the job queue")
	m.jobEnqueueErrors = m.counterVec("job_enqueue_errors_total", "Rejected job submissions by reason", "reason")
	m.jobRuns = m.counterVec("job_runs_total", "Finished job runs by kind and status", "kind", "status")
	m.jobDuration = m.histogramVec("job_duration_milliseconds", "Job run duration", m.jobBuckets, "kind")
	m.jobWorkers = m.gauge("job_workers", "Job workers running")
	m.jobsInFlight = m.gauge("jobs_in_flight", "Jobs queued or running")
	m.trainingRows = m.gaugeVec("training_rows", "Rows used by the last training run", "model")
	m.silhouetteScores = m.gaugeVec("silhouette_score", "Silhouette score of the last clustering run", "algorithm")
	m.modelLastTrainedS = m.gaugeVec("model_last_trained_unix", "Unix time of the last successful training run", "model")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets, "endpoint", "method", "status_code")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")

	m.repositoryQueryLatency = m.histogramVec("repository_query_latency_milliseconds", "Repository operation latency", m.histogramBuckets, "operation")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordPrediction records a served prediction.
func RecordPrediction(sentiment string, latencyMs float64) {
	globalManager.predictionsTotal.WithLabelValues(sentiment).Inc()
	globalManager.predictionLatency.Observe(latencyMs)
}

// RecordPredictionError records a failed prediction.
func RecordPredictionError(reason string) {
	globalManager.predictionErrors.WithLabelValues(reason).Inc()
}

// RecordSimilarityQuery records a similar-student query; outcome is "ok", "empty" or "error".
func RecordSimilarityQuery(outcome string, latencyMs float64) {
	globalManager.similarityQueries.WithLabelValues(outcome).Inc()
	globalManager.similarityLatency.Observe(latencyMs)
}

// RecordClusterRecompute counts a full-population cluster assignment.
func RecordClusterRecompute() {
	globalManager.clusterRecomputes.Inc()
}

// RecordSentiment counts a tagged feedback comment.
func RecordSentiment(label string) {
	globalManager.sentimentLabels.WithLabelValues(label).Inc()
}

// RecordArtifactLoad records how long loading a model artifact took.
func RecordArtifactLoad(artifact string, latencyMs float64) {
	globalManager.artifactLoadLatency.WithLabelValues(artifact).Observe(latencyMs)
}

// RecordEventCreated increments the created events counter.
func RecordEventCreated() {
	globalManager.eventsCreated.Inc()
}

// RecordRegistration records a registration change; action is "register" or "unregister".
func RecordRegistration(action string) {
	globalManager.registrations.WithLabelValues(action).Inc()
}

// RecordFeedback increments the stored feedback counter.
func RecordFeedback() {
	globalManager.feedbackSubmitted.Inc()
}

// RecordBackfill records the fields written by one backfill pass.
func RecordBackfill(fields []string, finalized bool) {
	for _, f := range fields {
		globalManager.backfillFieldWrites.WithLabelValues(f).Inc()
	}
	if finalized {
		globalManager.backfillsFinalized.Inc()
	}
}

// UpdateJobQueueSize sets the number of queued jobs.
func UpdateJobQueueSize(size int) {
	globalManager.jobQueueSize.Set(float64(size))
}

// UpdateJobQueueCapacity sets the job queue capacity.
func UpdateJobQueueCapacity(capacity int) {
	globalManager.jobQueueCapacity.Set(float64(capacity))
}

// RecordJobEnqueueError counts a rejected job submission.
func RecordJobEnqueueError(reason string) {
	globalManager.jobEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordJobRun records a finished job run.
func RecordJobRun(kind string, ok bool, durationMs float64) {
	status := "success"
	if !ok {
		status = "failure"
	}
	globalManager.jobRuns.WithLabelValues(kind, status).Inc()
	globalManager.jobDuration.WithLabelValues(kind).Observe(durationMs)
}

// UpdateJobWorkers sets the number of running job workers.
func UpdateJobWorkers(count int) {
	globalManager.jobWorkers.Set(float64(count))
}

// UpdateJobsInFlight sets the number of jobs queued or running.
func UpdateJobsInFlight(count int64) {
	globalManager.jobsInFlight.Set(float64(count))
}

// RecordTraining records a successful training run for model ("events" or "clusters").
func RecordTraining(model string, rows int, at time.Time) {
	globalManager.trainingRows.WithLabelValues(model).Set(float64(rows))
	globalManager.modelLastTrainedS.WithLabelValues(model).Set(float64(at.Unix()))
}

// RecordSilhouette records the silhouette score computed for an algorithm.
func RecordSilhouette(algorithm string, score float64) {
	globalManager.silhouetteScores.WithLabelValues(algorithm).Set(score)
}

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an HTTP error for an endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordRepositoryQuery records the latency of a repository operation.
func RecordRepositoryQuery(operation string, latencyMs float64) {
	globalManager.repositoryQueryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records an average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry all service metrics are registered on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// SinceMs returns the milliseconds elapsed since start.
func SinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
