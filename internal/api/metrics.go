package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry          *prometheus.Registry
	requestTotal      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	rateLimitRejected *prometheus.CounterVec
	renders           prometheus.Counter
	exports           *prometheus.CounterVec
	exportBytes       prometheus.Counter
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixeldesk_api_requests_total",
			Help: "Total HTTP requests handled by the API.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixeldesk_api_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixeldesk_api_rate_limit_rejections_total",
			Help: "Total API requests rejected by rate limiting.",
		}, []string{"route"}),
		renders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixeldesk_renders_total",
			Help: "Total preview renders produced.",
		}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixeldesk_exports_total",
			Help: "Total image exports by output format.",
		}, []string{"format"}),
		exportBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixeldesk_export_bytes_total",
			Help: "Total bytes written across all exports.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixeldesk_decode_cache_hits_total",
			Help: "Decode cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixeldesk_decode_cache_misses_total",
			Help: "Decode cache misses.",
		}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.rateLimitRejected,
		m.renders,
		m.exports,
		m.exportBytes,
		m.cacheHits,
		m.cacheMisses,
	)
	return m
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		status := strconv.Itoa(recorder.status)

		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/images/") && strings.HasSuffix(path, "/render"):
		return "/v1/images/{id}/render"
	case strings.HasPrefix(path, "/v1/images/") && strings.HasSuffix(path, "/export"):
		return "/v1/images/{id}/export"
	case strings.HasPrefix(path, "/v1/images/"):
		return "/v1/images/{id}"
	case strings.HasPrefix(path, "/v1/images"):
		return "/v1/images"
	case strings.HasPrefix(path, "/healthz"):
		return "/healthz"
	case strings.HasPrefix(path, "/metrics"):
		return "/metrics"
	default:
		return path
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
