package observability

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	scansTotal       *prometheus.CounterVec
	recordsCreated   prometheus.Counter
	artifactFailures *prometheus.CounterVec
}

func MetricsEnabled() bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv("METRICS_ENABLED")))
	switch v {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		apiRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emp_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "emp_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"method", "route"}),
		apiInflight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "emp_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		scansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emp_scans_total",
			Help: "Public verification scans by lookup kind.",
		}, []string{"kind"}),
		recordsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "emp_records_created_total",
			Help: "Pass records created.",
		}),
		artifactFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emp_artifact_failures_total",
			Help: "QR/PDF generation failures by artifact.",
		}, []string{"artifact"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts, latency and in-flight gauge per
// templated route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		m.apiInflight.Inc()
		c.Next()
		m.apiInflight.Dec()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.apiRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.apiLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) IncScan(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.scansTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncRecordCreated() {
	if m == nil {
		return
	}
	m.recordsCreated.Inc()
}

func (m *Metrics) IncArtifactFailure(artifact string) {
	if m == nil {
		return
	}
	if artifact == "" {
		artifact = "unknown"
	}
	m.artifactFailures.WithLabelValues(artifact).Inc()
}
