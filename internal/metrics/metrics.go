// Package metrics exposes Prometheus collectors for the watcher service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchPagesTotal               *prometheus.CounterVec
	fetchBytesTotal               *prometheus.CounterVec
	fetchDurationSeconds          *prometheus.HistogramVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec
	checksTotal                   *prometheus.CounterVec
	newItemsTotal                 *prometheus.CounterVec
	enrichTotal                   *prometheus.CounterVec
	deliveriesTotal               *prometheus.CounterVec
	activeHandlers                prometheus.Gauge
	rateLimitDelaysSeconds        *prometheus.HistogramVec
	promotionExtractionPathsTotal *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freebie_fetch_pages_total",
				Help: "Total number of pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freebie_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "freebie_fetch_duration_seconds",
				Help:    "Histogram of upstream fetch latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"site"},
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

		checksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freebie_checks_total",
				Help: "Total number of checks run, labeled by kind and status.",
			},
			[]string{"kind", "status"},
		)

		newItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freebie_new_items_total",
				Help: "Total number of newly detected items, labeled by kind.",
			},
			[]string{"kind"},
		)

		enrichTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freebie_enrich_total",
				Help: "Total number of detail enrichments, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		deliveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freebie_deliveries_total",
				Help: "Total number of chat deliveries, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		activeHandlers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "freebie_active_handlers",
				Help: "Number of handlers currently processing a chat update.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "freebie_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		promotionExtractionPathsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freebie_promotion_extraction_paths_total",
				Help: "Total number of promotion extractions, labeled by the path that produced the result.",
			},
			[]string{"path"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one upstream fetch.
func ObserveFetch(site string, status string, bytesFetched int, duration time.Duration) {
	Init()
	sanitizedSite := SanitizeSite(site)
	fetchPagesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
	fetchDurationSeconds.WithLabelValues(sanitizedSite).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveCheck records a finished check and the number of new items it found.
func ObserveCheck(kind, status string, newItems int) {
	Init()
	checksTotal.WithLabelValues(kind, status).Inc()
	if newItems > 0 {
		newItemsTotal.WithLabelValues(kind).Add(float64(newItems))
	}
}

// ObserveEnrich records a single detail enrichment outcome.
func ObserveEnrich(outcome string) {
	Init()
	enrichTotal.WithLabelValues(outcome).Inc()
}

// ObserveDelivery records the final outcome of a chat delivery.
func ObserveDelivery(outcome string) {
	Init()
	deliveriesTotal.WithLabelValues(outcome).Inc()
}

// ObservePromotionPath records which extraction path produced promotions.
func ObservePromotionPath(path string) {
	Init()
	promotionExtractionPathsTotal.WithLabelValues(path).Inc()
}

// IncActiveHandlers increments the active handlers gauge.
func IncActiveHandlers() {
	Init()
	activeHandlers.Inc()
}

// DecActiveHandlers decrements the active handlers gauge.
func DecActiveHandlers() {
	Init()
	activeHandlers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
