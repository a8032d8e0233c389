// Package metrics exposes Prometheus metrics for the service.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_searches_total",
			Help: "Granule searches by product and outcome.",
		},
		[]string{"product", "outcome"},
	)

	searchCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_results_total",
			Help: "Search result cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_downloads_total",
			Help: "Granule asset downloads by outcome.",
		},
		[]string{"outcome"},
	)

	downloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_download_bytes_total",
			Help: "Total bytes downloaded for granule assets.",
		},
	)

	updateChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "update_checks_total",
			Help: "Release update checks by outcome.",
		},
		[]string{"outcome"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

// ObserveHTTP records a completed HTTP request.
func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

// ObserveUpstreamLatency records the latency of an upstream call.
func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

// IncSearch records a catalog search outcome for a product.
func IncSearch(product, outcome string) {
	searchesTotal.WithLabelValues(product, outcome).Inc()
}

// IncSearchCacheHit records a search cache hit.
func IncSearchCacheHit() {
	searchCacheResults.WithLabelValues("hit").Inc()
}

// IncSearchCacheMiss records a search cache miss.
func IncSearchCacheMiss() {
	searchCacheResults.WithLabelValues("miss").Inc()
}

// IncDownload records an asset download outcome ("fetched", "cached", "error").
func IncDownload(outcome string) {
	downloadsTotal.WithLabelValues(outcome).Inc()
}

// AddDownloadBytes records bytes transferred for asset downloads.
func AddDownloadBytes(n int64) {
	if n > 0 {
		downloadBytesTotal.Add(float64(n))
	}
}

// IncUpdateCheck records a release update check outcome.
func IncUpdateCheck(outcome string) {
	updateChecksTotal.WithLabelValues(outcome).Inc()
}

// ExposeBuildInfo publishes the binary version as a gauge.
func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

// Handler returns the Prometheus scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
