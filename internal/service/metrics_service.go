package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/syllabus-portal/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for the admin dashboard.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	workflowActions *prometheus.CounterVec
	pollOutcomes    *prometheus.CounterVec
	notifyRefreshes prometheus.Counter

	requestCount         uint64
	requestDurationTotal uint64
	backendCount         uint64
	backendFailures      uint64
	backendDurationTotal uint64
	actionCount          uint64
	pollTimeouts         uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	backendDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backend_call_duration_seconds",
		Help:    "Duration of calls to backend services",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "operation", "status"})

	workflowActions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_actions_total",
		Help: "Workflow actions dispatched, by outcome",
	}, []string{"action", "outcome"})

	pollOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "poll_outcomes_total",
		Help: "Bounded polling loops, by target and outcome",
	}, []string{"target", "outcome"})

	notifyRefreshes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_refreshes_total",
		Help: "Full notification refetches triggered",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, backendDuration, workflowActions, pollOutcomes, notifyRefreshes, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		backendDuration: backendDuration,
		workflowActions: workflowActions,
		pollOutcomes:    pollOutcomes,
		notifyRefreshes: notifyRefreshes,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveBackendCall records one backend round trip. Status 0 means the
// request never got a response.
func (m *MetricsService) ObserveBackendCall(backend, operation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.backendDuration.WithLabelValues(backend, operation, strconv.Itoa(status)).Observe(duration.Seconds())
	atomic.AddUint64(&m.backendCount, 1)
	atomic.AddUint64(&m.backendDurationTotal, uint64(duration.Nanoseconds()))
	if status == 0 || status >= http.StatusInternalServerError {
		atomic.AddUint64(&m.backendFailures, 1)
	}
}

// RecordWorkflowAction counts a dispatched action by outcome code.
func (m *MetricsService) RecordWorkflowAction(action models.WorkflowAction, outcome string) {
	if m == nil {
		return
	}
	m.workflowActions.WithLabelValues(string(action), outcome).Inc()
	atomic.AddUint64(&m.actionCount, 1)
}

// RecordPoll counts a finished polling loop.
func (m *MetricsService) RecordPoll(target, outcome string) {
	if m == nil {
		return
	}
	m.pollOutcomes.WithLabelValues(target, outcome).Inc()
	if outcome == "POLL_TIMEOUT" {
		atomic.AddUint64(&m.pollTimeouts, 1)
	}
}

// RecordNotificationRefresh counts a full notification refetch.
func (m *MetricsService) RecordNotificationRefresh() {
	if m == nil {
		return
	}
	m.notifyRefreshes.Inc()
}

// Snapshot returns aggregated metrics suitable for the admin dashboard.
func (m *MetricsService) Snapshot() models.GatewayMetrics {
	if m == nil {
		return models.GatewayMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	backend := atomic.LoadUint64(&m.backendCount)
	backendDuration := atomic.LoadUint64(&m.backendDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	var avgBackendMs float64
	if backend > 0 {
		avgBackendMs = float64(backendDuration) / float64(backend) / float64(time.Millisecond)
	}

	return models.GatewayMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		BackendCallsTotal:        backend,
		BackendFailuresTotal:     atomic.LoadUint64(&m.backendFailures),
		AverageBackendDurationMs: avgBackendMs,
		WorkflowActionsTotal:     atomic.LoadUint64(&m.actionCount),
		PollTimeoutsTotal:        atomic.LoadUint64(&m.pollTimeouts),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
