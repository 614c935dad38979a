// Package metrics exposes Prometheus collectors for HTTP traffic and the visit
// workflow.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so tests can build as many as they need.
type Collector struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	beds          *prometheus.GaugeVec
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "his_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "his_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "his_visit_transitions_total",
			Help: "Visit status transitions committed, by source and target status.",
		}, []string{"from", "to"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "his_notifications_total",
			Help: "Patient notifications by template and outcome.",
		}, []string{"template", "outcome"}),
		beds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "his_beds",
			Help: "Beds per ward and status at the last census.",
		}, []string{"ward", "status"}),
	}
	c.registry.MustRegister(
		c.httpRequests, c.httpDuration, c.transitions, c.notifications, c.beds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// VisitTransition counts one committed status change.
func (c *Collector) VisitTransition(from, to string) {
	c.transitions.WithLabelValues(from, to).Inc()
}

// Notification counts one notification attempt.
func (c *Collector) Notification(template string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	c.notifications.WithLabelValues(template, outcome).Inc()
}

// BedCount records a census figure.
func (c *Collector) BedCount(ward, status string, n int) {
	c.beds.WithLabelValues(ward, status).Set(float64(n))
}

// Middleware records request counts and latency keyed by the route pattern.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			status := ctx.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			method := ctx.Request().Method
			c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			c.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
}
