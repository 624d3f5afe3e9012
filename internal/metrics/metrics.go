// Package metrics exposes Prometheus collectors for the crawl service.
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
	crawlRunsTotal             *prometheus.CounterVec
	crawlRunDurationSeconds    prometheus.Histogram
	crawlKeywordsTotal         *prometheus.CounterVec
	crawlPagesTotal            prometheus.Counter
	crawlItemsTotal            *prometheus.CounterVec
	crawlDetailsTotal          *prometheus.CounterVec
	crawlPhaseDurationSeconds  *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_runs_total",
				Help: "Total number of crawl runs, labeled by status.",
			},
			[]string{"status"},
		)

		crawlRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawl_run_duration_seconds",
				Help:    "Histogram of end-to-end crawl run durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		crawlKeywordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_keywords_total",
				Help: "Total number of keyword searches, labeled by status.",
			},
			[]string{"status"},
		)

		crawlPagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_pages_total",
				Help: "Total number of search result pages fetched.",
			},
		)

		crawlItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_items_total",
				Help: "Total number of items collected, labeled by kind (raw or unique).",
			},
			[]string{"kind"},
		)

		crawlDetailsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_details_total",
				Help: "Total number of detail fetches, labeled by status.",
			},
			[]string{"status"},
		)

		crawlPhaseDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawl_phase_duration_seconds",
				Help:    "Histogram of per-phase durations, labeled by phase.",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"phase"},
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

// ObserveRun records the outcome and duration of a completed run.
func ObserveRun(status string, duration time.Duration) {
	crawlRunsTotal.WithLabelValues(status).Inc()
	crawlRunDurationSeconds.Observe(duration.Seconds())
}

// ObserveKeyword increments the keyword counter for the given status.
func ObserveKeyword(status string) {
	crawlKeywordsTotal.WithLabelValues(status).Inc()
}

// AddPages adds to the fetched page counter.
func AddPages(n int64) {
	if n > 0 {
		crawlPagesTotal.Add(float64(n))
	}
}

// AddItems adds to the item counter for the given kind.
func AddItems(kind string, n int64) {
	if n > 0 {
		crawlItemsTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// AddDetails adds to the detail fetch counter for the given status.
func AddDetails(status string, n int64) {
	if n > 0 {
		crawlDetailsTotal.WithLabelValues(status).Add(float64(n))
	}
}

// ObservePhase records the duration of a pipeline phase.
func ObservePhase(phase string, duration time.Duration) {
	crawlPhaseDurationSeconds.WithLabelValues(phase).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
