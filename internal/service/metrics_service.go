package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
)

// Notification outcomes recorded by RecordNotification.
const (
	NotificationOutcomeSent       = "sent"
	NotificationOutcomeSuppressed = "suppressed"
	NotificationOutcomeFailed     = "failed"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	stampDuration   prometheus.Histogram
	sweepDuration   *prometheus.HistogramVec

	requestCount         uint64
	requestDurationTotal uint64
	sentCount            uint64
	suppressedCount      uint64
	failedCount          uint64
}

// NewMetricsService registers the workflow collectors.
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

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "approval_document_transitions_total",
		Help: "Document state transitions by target state",
	}, []string{"state"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "approval_notifications_total",
		Help: "Notifications by kind and outcome",
	}, []string{"kind", "outcome"})

	stampDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "approval_pdf_stamp_seconds",
		Help:    "Time spent stamping signatures into PDFs",
		Buckets: prometheus.DefBuckets,
	})

	sweepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "approval_sweep_duration_seconds",
		Help:    "Duration of background sweeper rounds",
		Buckets: prometheus.DefBuckets,
	}, []string{"sweeper"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, transitions, notifications, stampDuration, sweepDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		transitions:     transitions,
		notifications:   notifications,
		stampDuration:   stampDuration,
		sweepDuration:   sweepDuration,
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
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordTransition counts a document reaching state.
func (m *MetricsService) RecordTransition(state models.DocumentState) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(state)).Inc()
}

// RecordNotification counts a notification outcome.
func (m *MetricsService) RecordNotification(kind models.NotificationKind, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(string(kind), outcome).Inc()
	switch outcome {
	case NotificationOutcomeSent:
		atomic.AddUint64(&m.sentCount, 1)
	case NotificationOutcomeSuppressed:
		atomic.AddUint64(&m.suppressedCount, 1)
	case NotificationOutcomeFailed:
		atomic.AddUint64(&m.failedCount, 1)
	}
}

// ObserveStamp records how long a stamping pass took.
func (m *MetricsService) ObserveStamp(duration time.Duration) {
	if m == nil {
		return
	}
	m.stampDuration.Observe(duration.Seconds())
}

// ObserveSweep records a sweeper round.
func (m *MetricsService) ObserveSweep(name string, duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		NotificationsSent:        atomic.LoadUint64(&m.sentCount),
		NotificationsSuppressed:  atomic.LoadUint64(&m.suppressedCount),
		NotificationsFailed:      atomic.LoadUint64(&m.failedCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
