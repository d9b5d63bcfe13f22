package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	storeDuration   *prometheus.HistogramVec
	runDuration     *prometheus.HistogramVec
	runTotal        *prometheus.CounterVec
	sessionTotal    *prometheus.CounterVec

	requestCount       uint64
	requestDurationSum uint64
	storeCount         uint64
	storeErrorCount    uint64
	storeDurationSum   uint64
	runCount           uint64
	runFailedCount     uint64
	placedCount        uint64
	failedCount        uint64
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

	storeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timetable_store_operation_seconds",
		Help:    "Latency of blob store operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "result"})

	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timetable_generation_seconds",
		Help:    "Duration of timetable generation runs",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"scope"})

	runTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_generation_runs_total",
		Help: "Total number of timetable generation runs",
	}, []string{"scope", "result"})

	sessionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_sessions_total",
		Help: "Sessions processed by the scheduler",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, storeDuration, runDuration, runTotal, sessionTotal, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		storeDuration:   storeDuration,
		runDuration:     runDuration,
		runTotal:        runTotal,
		sessionTotal:    sessionTotal,
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
	atomic.AddUint64(&m.requestDurationSum, uint64(duration.Nanoseconds()))
}

// ObserveStoreOperation records blob store timing.
func (m *MetricsService) ObserveStoreOperation(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		atomic.AddUint64(&m.storeErrorCount, 1)
	}
	m.storeDuration.WithLabelValues(operation, result).Observe(duration.Seconds())
	atomic.AddUint64(&m.storeCount, 1)
	atomic.AddUint64(&m.storeDurationSum, uint64(duration.Nanoseconds()))
}

// RecordGeneration records one finished generation run.
func (m *MetricsService) RecordGeneration(scope string, duration time.Duration, placed, failed, skipped int, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		atomic.AddUint64(&m.runFailedCount, 1)
	}
	m.runDuration.WithLabelValues(scope).Observe(duration.Seconds())
	m.runTotal.WithLabelValues(scope, result).Inc()
	m.sessionTotal.WithLabelValues("placed").Add(float64(placed))
	m.sessionTotal.WithLabelValues("failed").Add(float64(failed))
	m.sessionTotal.WithLabelValues("skipped").Add(float64(skipped))
	atomic.AddUint64(&m.runCount, 1)
	atomic.AddUint64(&m.placedCount, uint64(placed))
	atomic.AddUint64(&m.failedCount, uint64(failed))
}

// Snapshot returns aggregated metrics suitable for the summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationSum)
	storeOps := atomic.LoadUint64(&m.storeCount)
	storeDuration := atomic.LoadUint64(&m.storeDurationSum)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgStoreMs float64
	if storeOps > 0 {
		avgStoreMs = float64(storeDuration) / float64(storeOps) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		StoreOperations:          storeOps,
		StoreErrors:              atomic.LoadUint64(&m.storeErrorCount),
		AverageStoreDurationMs:   avgStoreMs,
		RunsTotal:                atomic.LoadUint64(&m.runCount),
		RunsFailed:               atomic.LoadUint64(&m.runFailedCount),
		SessionsPlaced:           atomic.LoadUint64(&m.placedCount),
		SessionsFailed:           atomic.LoadUint64(&m.failedCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
