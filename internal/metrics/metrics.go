// Package metrics exposes Prometheus collectors for the collector service.
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
	ingestEventsTotal          *prometheus.CounterVec
	ingestRejectionsTotal      *prometheus.CounterVec
	insertDurationSeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitedTotal           prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		ingestEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_ingest_events_total",
				Help: "Total number of accepted telemetry payloads, labeled by type.",
			},
			[]string{"type"},
		)

		ingestRejectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_ingest_rejections_total",
				Help: "Total number of rejected telemetry payloads, labeled by reason class.",
			},
			[]string{"reason"},
		)

		insertDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collector_insert_duration_seconds",
				Help:    "Histogram of database insert latencies, labeled by operation.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"operation"},
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

		rateLimitedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "collector_rate_limited_total",
				Help: "Total number of ingestion requests rejected by the rate limiter.",
			},
		)
	})
}

// ObserveIngest records an accepted payload by type.
func ObserveIngest(eventType string) {
	Init()
	ingestEventsTotal.WithLabelValues(eventType).Inc()
}

// ObserveRejection records a rejected payload by reason class.
func ObserveRejection(reason string) {
	Init()
	ingestRejectionsTotal.WithLabelValues(reason).Inc()
}

// ObserveInsert records the latency of a database insert.
func ObserveInsert(operation string, d time.Duration) {
	Init()
	insertDurationSeconds.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveHTTPRequest records one finished HTTP request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveRateLimited counts a request turned away by the limiter.
func ObserveRateLimited() {
	Init()
	rateLimitedTotal.Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}
