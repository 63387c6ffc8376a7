// Package telemetry exposes Prometheus metrics for the resolution pipeline
// and an optional HTTP endpoint to scrape them from.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// --- CUSTOM METRIC DEFINITIONS ---

var (
	catalogPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taxforms_catalog_pages_total",
			Help: "Total number of catalog pages fetched, labeled by status.",
		},
		[]string{"status"},
	)

	fetchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taxforms_fetch_retries_total",
			Help: "Total number of retried network attempts.",
		},
	)

	rowsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taxforms_rows_dropped_total",
			Help: "Total number of listing rows dropped as unparseable.",
		},
	)

	outcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taxforms_outcomes_total",
			Help: "Total number of per-identifier outcomes, labeled by kind.",
		},
		[]string{"kind"},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taxforms_downloads_total",
			Help: "Total number of document downloads, labeled by status.",
		},
		[]string{"status"},
	)

	downloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taxforms_download_bytes_total",
			Help: "Total number of document bytes downloaded.",
		},
	)

	requestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taxforms_request_duration_seconds",
			Help:    "Histogram of catalog request latencies, labeled by kind.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"kind"},
	)

	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taxforms_rate_limit_delay_seconds",
			Help:    "Histogram of rate limit wait durations.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"host"},
	)

	inFlightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taxforms_inflight_requests",
			Help: "Number of network operations currently holding an admission slot.",
		},
	)
)

// --- HELPER FUNCTIONS ---

// ObserveCatalogPage records one fetched catalog page.
func ObserveCatalogPage(status string, duration time.Duration) {
	catalogPagesTotal.WithLabelValues(status).Inc()
	requestDurationSeconds.WithLabelValues("page").Observe(duration.Seconds())
}

// ObserveDownload records one document download attempt.
func ObserveDownload(status string, bytes int64, duration time.Duration) {
	downloadsTotal.WithLabelValues(status).Inc()
	if bytes > 0 {
		downloadBytesTotal.Add(float64(bytes))
	}
	requestDurationSeconds.WithLabelValues("binary").Observe(duration.Seconds())
}

// ObserveRetry records one retried network attempt.
func ObserveRetry() {
	fetchRetriesTotal.Inc()
}

// ObserveDroppedRows records listing rows dropped during parsing.
func ObserveDroppedRows(n int) {
	if n > 0 {
		rowsDroppedTotal.Add(float64(n))
	}
}

// ObserveOutcome records the outcome kind for one resolved identifier.
func ObserveOutcome(kind string) {
	outcomesTotal.WithLabelValues(kind).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// IncInFlight increments the in-flight request gauge.
func IncInFlight() {
	inFlightRequests.Inc()
}

// DecInFlight decrements the in-flight request gauge.
func DecInFlight() {
	inFlightRequests.Dec()
}
