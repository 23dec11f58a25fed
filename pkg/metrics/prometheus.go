// Package metrics provides Prometheus metrics for the rollcall service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the rollcall service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Attendance workflow
	submissions       *prometheus.CounterVec
	submissionErrors  *prometheus.CounterVec
	createConflicts   prometheus.Counter
	staleResults      prometheus.Counter
	markRejections    *prometheus.CounterVec
	activeSessions    prometheus.Gauge
	rosterSize        prometheus.Gauge
	dailyAttendance   prometheus.Gauge
	reportsGenerated  *prometheus.CounterVec
	sessionsExpired   prometheus.Counter
	scheduledJobRuns  *prometheus.CounterVec
	scheduledJobError *prometheus.CounterVec

	// Attendance store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rollcall",
		subsystem:        "attendance",
		histogramBuckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one block per metric family
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.submissions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("submissions_total"),
		Help: "Committed attendance submissions by mode (created, updated, recovered)",
	}, []string{"mode"})

	m.submissionErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("submission_errors_total"),
		Help: "Rejected or failed submissions by reason",
	}, []string{"reason"})

	m.createConflicts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("create_conflicts_total"),
		Help: "Create attempts that found an existing record set and were retried as updates",
	})

	m.staleResults = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("stale_results_discarded_total"),
		Help: "Record fetches discarded because a later date was selected first",
	})

	m.markRejections = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("mark_rejections_total"),
		Help: "Mark changes ignored by reason (locked, unknown_student, invalid_status)",
	}, []string{"reason"})

	m.activeSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("active_sessions"),
		Help: "Attendance sessions currently open",
	})

	m.rosterSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("roster_size"),
		Help: "Students in the roster at the last read",
	})

	m.dailyAttendance = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("daily_attendance_percentage"),
		Help: "Attendance percentage of the most recently digested date",
	})

	m.reportsGenerated = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("reports_generated_total"),
		Help: "Reports produced by kind (daily, monthly, monthly_xlsx)",
	}, []string{"kind"})

	m.sessionsExpired = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("sessions_expired_total"),
		Help: "Sessions closed by the idle janitor",
	})

	m.scheduledJobRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("scheduled_job_runs_total"),
		Help: "Scheduled job executions by job",
	}, []string{"job"})

	m.scheduledJobError = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("scheduled_job_errors_total"),
		Help: "Scheduled job failures by job",
	}, []string{"job"})

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("store_operation_duration_milliseconds"),
		Help:    "Attendance store operation latency in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"backend", "operation"})

	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("store_operation_errors_total"),
		Help: "Attendance store operation failures",
	}, []string{"backend", "operation"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("http_requests_total"),
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("http_request_duration_milliseconds"),
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("errors_by_endpoint_total"),
		Help: "Total number of errors by endpoint",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("system_memory_usage_bytes"),
		Help: "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("system_goroutine_count"),
		Help: "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("system_gc_pause_time_milliseconds"),
		Help:    "GC pause time in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// Enabled reports whether the manager records observations.
func (m *Manager) Enabled() bool { return m.enabled }

// RecordSubmission increments the submissions counter for a mode.
func RecordSubmission(mode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.submissions.WithLabelValues(mode).Inc()
}

// RecordSubmissionError increments the submission error counter for a reason.
func RecordSubmissionError(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.submissionErrors.WithLabelValues(reason).Inc()
}

// RecordCreateConflict counts a create that was retried as an update.
func RecordCreateConflict() {
	if !globalManager.enabled {
		return
	}
	globalManager.createConflicts.Inc()
}

// RecordStaleResult counts a discarded out-of-date fetch.
func RecordStaleResult() {
	if !globalManager.enabled {
		return
	}
	globalManager.staleResults.Inc()
}

// RecordMarkRejected counts a mark change that was ignored.
func RecordMarkRejected(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.markRejections.WithLabelValues(reason).Inc()
}

// UpdateActiveSessions sets the open session gauge.
func UpdateActiveSessions(count int) {
	globalManager.activeSessions.Set(float64(count))
}

// RecordSessionExpired counts a session removed by the janitor.
func RecordSessionExpired() {
	if !globalManager.enabled {
		return
	}
	globalManager.sessionsExpired.Inc()
}

// UpdateRosterSize sets the roster size gauge.
func UpdateRosterSize(count int) {
	globalManager.rosterSize.Set(float64(count))
}

// UpdateDailyAttendance sets the last digested attendance percentage.
func UpdateDailyAttendance(percentage int) {
	globalManager.dailyAttendance.Set(float64(percentage))
}

// RecordReport counts a generated report.
func RecordReport(kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.reportsGenerated.WithLabelValues(kind).Inc()
}

// RecordScheduledJob counts a scheduled job run and its failure, if any.
func RecordScheduledJob(job string, err error) {
	if !globalManager.enabled {
		return
	}
	globalManager.scheduledJobRuns.WithLabelValues(job).Inc()
	if err != nil {
		globalManager.scheduledJobError.WithLabelValues(job).Inc()
	}
}

// ObserveStoreOperation records latency and failure of a store call.
func ObserveStoreOperation(backend, operation string, started time.Time, err error) {
	if !globalManager.enabled {
		return
	}
	ms := float64(time.Since(started).Microseconds()) / 1000
	globalManager.storeLatency.WithLabelValues(backend, operation).Observe(ms)
	if err != nil {
		globalManager.storeErrors.WithLabelValues(backend, operation).Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error for a specific endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the current memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the current goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// RefreshInterval is how often system gauges should be refreshed.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Default returns the global metrics manager.
func Default() *Manager { return globalManager }
