package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	evaluations     prometheus.Counter
	finalizations   *prometheus.CounterVec
	gradeDuration   prometheus.Observer
}

// NewMetricsService registers the core collectors.
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

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "report_cache_hits_total",
		Help: "Total cohort report cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "report_cache_misses_total",
		Help: "Total cohort report cache misses",
	})

	evaluations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evaluations_recorded_total",
		Help: "Total evaluation answers recorded",
	})

	finalizations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finalizations_total",
		Help: "Total finalize and reopen transitions",
	}, []string{"transition"})

	gradeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "grade_calculation_seconds",
		Help:    "Duration of level calculations",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses, evaluations, finalizations, gradeDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		evaluations:     evaluations,
		finalizations:   finalizations,
		gradeDuration:   gradeDuration,
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

// ObserveHTTPRequest records per-request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheLookup counts a report cache hit or miss.
func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordEvaluation counts one recorded answer.
func (m *MetricsService) RecordEvaluation() {
	if m == nil {
		return
	}
	m.evaluations.Inc()
}

// RecordFinalization counts a finalize or reopen transition.
func (m *MetricsService) RecordFinalization(transition string) {
	if m == nil {
		return
	}
	m.finalizations.WithLabelValues(transition).Inc()
}

// ObserveGradeCalculation records how long one level calculation took.
func (m *MetricsService) ObserveGradeCalculation(duration time.Duration) {
	if m == nil {
		return
	}
	m.gradeDuration.Observe(duration.Seconds())
}
