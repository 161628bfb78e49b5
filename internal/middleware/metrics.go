package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects HTTP metrics in its own registry.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	denials  *prometheus.CounterVec
}

// NewMetrics registers the HTTP collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kalm",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests by route and status.",
	}, []string{"method", "route", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kalm",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests by route.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "route"})
	denials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kalm",
		Subsystem: "auth",
		Name:      "denials_total",
		Help:      "Requests rejected with 401 or 403, by route.",
	}, []string{"route", "status"})
	registry.MustRegister(requests, duration, denials)

	return &Metrics{
		registry: registry,
		requests: requests,
		duration: duration,
		denials:  denials,
	}
}

// Middleware records every request. The route label is the matched pattern,
// not the raw path, to keep cardinality bounded.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := statusOf(c, err)
		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
			route = r.Path
		}
		code := strconv.Itoa(status)
		m.requests.WithLabelValues(c.Method(), route, code).Inc()
		m.duration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		if status == fiber.StatusUnauthorized || status == fiber.StatusForbidden {
			m.denials.WithLabelValues(route, code).Inc()
		}
		return err
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Registerer allows other packages to add collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	return m.registry
}
