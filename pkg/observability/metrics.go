package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Guard metrics
	GuardDecisionsTotal *prometheus.CounterVec

	// Auth metrics
	AdminLoginsTotal     *prometheus.CounterVec
	TokenVerifyTotal     *prometheus.CounterVec
	TokenCacheClearTotal prometheus.Counter

	// Upstream client metrics
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec
	UpstreamErrorsTotal     *prometheus.CounterVec

	// Profile cache metrics
	ProfileCacheHitsTotal   *prometheus.CounterVec
	ProfileCacheMissesTotal *prometheus.CounterVec

	// Rate limit metrics
	RateLimitedTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frameio_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "frameio_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		GuardDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frameio_guard_decisions_total",
				Help: "Route guard decisions by guard type and outcome",
			},
			[]string{"guard", "decision"},
		),
		AdminLoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frameio_admin_logins_total",
				Help: "Admin login attempts by outcome",
			},
			[]string{"outcome"},
		),
		TokenVerifyTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frameio_token_verifications_total",
				Help: "Product IdP token verifications by outcome",
			},
			[]string{"outcome"},
		),
		TokenCacheClearTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "frameio_token_cache_clears_total",
				Help: "Times the cached upstream token was cleared after a 401",
			},
		),
		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frameio_upstream_requests_total",
				Help: "Requests issued to the resource backend",
			},
			[]string{"endpoint", "status"},
		),
		UpstreamRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "frameio_upstream_request_duration_seconds",
				Help:    "Resource backend request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		UpstreamErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frameio_upstream_errors_total",
				Help: "Upstream failures by taxonomy type",
			},
			[]string{"type"},
		),
		ProfileCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frameio_profile_cache_hits_total",
				Help: "Profile cache hits by tier",
			},
			[]string{"tier"},
		),
		ProfileCacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frameio_profile_cache_misses_total",
				Help: "Profile cache misses by tier",
			},
			[]string{"tier"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frameio_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"scope"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GuardDecisionsTotal,
		m.AdminLoginsTotal,
		m.TokenVerifyTotal,
		m.TokenCacheClearTotal,
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
		m.UpstreamErrorsTotal,
		m.ProfileCacheHitsTotal,
		m.ProfileCacheMissesTotal,
		m.RateLimitedTotal,
	)

	return m
}

// Handler returns the Prometheus scrape handler for the registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the response status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMiddleware records request count and duration for every request
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
