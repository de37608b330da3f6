package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var latencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000}

// Metrics holds the HTTP and assessment collectors for one server.
type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	assessments *prometheus.CounterVec
	rejected    prometheus.Counter
}

// NewMetrics registers collectors on a fresh registry so several servers
// can coexist in one process.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aquaharvest",
			Name:      "http_requests_total",
			Help:      "Number of HTTP requests partitioned by status code, method and route.",
		}, []string{"code", "method", "path"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aquaharvest",
			Name:      "http_request_duration_milliseconds",
			Help:      "Time spent on the request partitioned by status code, method and route.",
			Buckets:   latencyBuckets,
		}, []string{"code", "method", "path"}),
		assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aquaharvest",
			Name:      "assessments_total",
			Help:      "Completed assessments partitioned by feasibility grade.",
		}, []string{"grade"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aquaharvest",
			Name:      "assessments_rejected_total",
			Help:      "Assessment requests rejected by intake validation.",
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.latency,
		m.assessments,
		m.rejected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Middleware records request counts and latency by route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		rctx := chi.RouteContext(r.Context())
		if rctx == nil {
			return
		}
		path := rctx.RoutePattern()
		if path == "" {
			path = "unmatched"
		}
		code := strconv.Itoa(ww.Status())
		m.requests.WithLabelValues(code, r.Method, path).Inc()
		m.latency.WithLabelValues(code, r.Method, path).Observe(float64(time.Since(start).Milliseconds()))
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) observeAssessment(grade string) {
	m.assessments.WithLabelValues(grade).Inc()
}

func (m *Metrics) observeRejected() {
	m.rejected.Inc()
}
