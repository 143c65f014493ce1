// Package metrics exposes Prometheus metrics for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registry and every collector. Each instance owns its
// registry so tests can build as many as they like.
//
// Metrics:
//   - buildea_http_requests_total{method,route,status}
//   - buildea_http_request_duration_seconds{method,route}
//   - buildea_ideas_created_total{mode}
//   - buildea_idea_status_changes_total{status}
//   - buildea_likes_total{result}
//   - buildea_comments_total
//   - buildea_notifications_total{type}
//   - buildea_reports_exported_total{format}
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	IdeasCreated       *prometheus.CounterVec
	StatusChanges      *prometheus.CounterVec
	Likes              *prometheus.CounterVec
	Comments           prometheus.Counter
	NotificationsTotal *prometheus.CounterVec
	ReportsExported    *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buildea_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "buildea_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		IdeasCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buildea_ideas_created_total",
			Help: "Ideas created by mode",
		}, []string{"mode"}),
		StatusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buildea_idea_status_changes_total",
			Help: "Idea status updates by target status",
		}, []string{"status"}),
		Likes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buildea_likes_total",
			Help: "Like attempts by result (liked, duplicate, unliked)",
		}, []string{"result"}),
		Comments: factory.NewCounter(prometheus.CounterOpts{
			Name: "buildea_comments_total",
			Help: "Comments posted",
		}),
		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buildea_notifications_total",
			Help: "Notifications created by type",
		}, []string{"type"}),
		ReportsExported: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buildea_reports_exported_total",
			Help: "Event reports exported by format",
		}, []string{"format"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency keyed by the matched route
// pattern. Errors are rendered here so the final status is known.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
