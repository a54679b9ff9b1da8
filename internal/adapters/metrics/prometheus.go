// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the MetricsCollector port using Prometheus.
type Collector struct {
	fetchCounter        *prometheus.CounterVec
	fetchDuration       *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	membersComposed     prometheus.Gauge
	harvestPages        *prometheus.CounterVec
	compositionErrors   *prometheus.CounterVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a new Prometheus metrics collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "catena"
	}

	return &Collector{
		fetchCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Total number of remote service fetches",
			},
			[]string{"protocol", "status"},
		),

		fetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Remote fetch duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"protocol"},
		),

		cacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of capabilities cache hits",
			},
		),

		cacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of capabilities cache misses",
			},
		),

		membersComposed: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "members_composed",
				Help:      "Number of composed catalog members",
			},
		),

		harvestPages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "harvest_pages_total",
				Help:      "Total number of pages fetched during paginated discovery",
			},
			[]string{"endpoint"},
		),

		compositionErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "composition_errors_total",
				Help:      "Total number of member composition failures",
			},
			[]string{"member_type"},
		),

		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// IncFetch increments the remote fetch counter.
func (c *Collector) IncFetch(protocol string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.fetchCounter.WithLabelValues(protocol, status).Inc()
}

// ObserveFetchDuration records a remote fetch duration.
func (c *Collector) ObserveFetchDuration(protocol string, duration time.Duration) {
	c.fetchDuration.WithLabelValues(protocol).Observe(duration.Seconds())
}

// IncCacheHit increments the capabilities cache hit counter.
func (c *Collector) IncCacheHit() {
	c.cacheHits.Inc()
}

// IncCacheMiss increments the capabilities cache miss counter.
func (c *Collector) IncCacheMiss() {
	c.cacheMisses.Inc()
}

// SetMembersComposed sets the number of composed catalog members.
func (c *Collector) SetMembersComposed(count int) {
	c.membersComposed.Set(float64(count))
}

// IncHarvestPages increments the paginated-discovery page counter.
func (c *Collector) IncHarvestPages(endpoint string) {
	c.harvestPages.WithLabelValues(endpoint).Inc()
}

// IncCompositionErrors increments the composition error counter.
func (c *Collector) IncCompositionErrors(memberType string) {
	c.compositionErrors.WithLabelValues(memberType).Inc()
}

// IncHTTPRequests increments the HTTP request counter.
func (c *Collector) IncHTTPRequests(method, path, status string) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveHTTPDuration records HTTP request duration.
func (c *Collector) ObserveHTTPDuration(method, path string, duration time.Duration) {
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns HTTP middleware for metrics collection.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		path := normalizePath(r.URL.Path)
		status := statusToString(wrapped.statusCode)

		c.IncHTTPRequests(r.Method, path, status)
		c.ObserveHTTPDuration(r.Method, path, duration)
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes the URL path for metrics.
func normalizePath(path string) string {
	// Replace dynamic segments with placeholders
	// This prevents high cardinality metrics
	switch {
	case len(path) > 20:
		return path[:20] + "..."
	default:
		return path
	}
}

// statusToString converts HTTP status code to string category.
func statusToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
