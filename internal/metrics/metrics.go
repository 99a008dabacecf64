// Package metrics exposes Prometheus collectors for the fussball.de API service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cacheRequestsTotal         *prometheus.CounterVec
	cacheEvictionsTotal        prometheus.Counter
	prewarmCyclesTotal         *prometheus.CounterVec
	prewarmTaskFailuresTotal   prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		cacheRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fussball_cache_requests_total",
				Help: "Total number of cache-mediated fetches, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		cacheEvictionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fussball_cache_evictions_total",
				Help: "Total number of cache entries evicted by the size bound.",
			},
		)

		prewarmCyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fussball_prewarm_cycles_total",
				Help: "Total number of prewarm cycles, labeled by result.",
			},
			[]string{"result"},
		)

		prewarmTaskFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fussball_prewarm_task_failures_total",
				Help: "Total number of failed fetch tasks inside prewarm cycles.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCacheRequest increments the cache request counter for an outcome
// (hit, miss, revalidated, negative, error).
func ObserveCacheRequest(outcome string) {
	if cacheRequestsTotal != nil {
		cacheRequestsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveCacheEviction increments the eviction counter.
func ObserveCacheEviction() {
	if cacheEvictionsTotal != nil {
		cacheEvictionsTotal.Inc()
	}
}

// ObservePrewarmCycle increments the prewarm cycle counter for a result
// (ok, empty, failed).
func ObservePrewarmCycle(result string) {
	if prewarmCyclesTotal != nil {
		prewarmCyclesTotal.WithLabelValues(result).Inc()
	}
}

// ObservePrewarmTaskFailure increments the per-task failure counter.
func ObservePrewarmTaskFailure() {
	if prewarmTaskFailuresTotal != nil {
		prewarmTaskFailuresTotal.Inc()
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
