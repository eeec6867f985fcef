package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// Metrics owns its registry so several instances can coexist in tests.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	authOperations      *prometheus.CounterVec
	refreshTokensPurged prometheus.Counter
	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		authOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_operations_total",
				Help: "Session protocol invocations by operation and result.",
			},
			[]string{"operation", "result"},
		),
		refreshTokensPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refresh_tokens_purged_total",
			Help: "Revoked and expired refresh token rows deleted by the collector.",
		}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.authOperations,
		m.refreshTokensPurged,
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AuthOperation(operation, result string) {
	if m == nil {
		return
	}
	m.authOperations.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) TokensPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.refreshTokensPurged.Add(float64(n))
}

// Instrument records request count and latency labelled by the route
// template, so path parameters do not blow up cardinality.
func (m *Metrics) Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method

		m.httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	}
}
