package middleware

import (
	"errors"
	"strconv"
	"time"

	applogger "ExecGuard/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "execguard_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "method", "class"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "execguard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route", "method"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "execguard_http_in_flight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
	}
	m.requests = register(reg, m.requests).(*prometheus.CounterVec)
	m.duration = register(reg, m.duration).(*prometheus.HistogramVec)
	m.inFlight = register(reg, m.inFlight).(prometheus.Gauge)
	return m
}

// register returns the already-registered collector when c is a duplicate.
func register(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
	}
	return c
}

// Metrics records request counts and latency keyed by the route template, so label cardinality stays bounded.
func Metrics(reg prometheus.Registerer, log *applogger.Logger, slow time.Duration) echo.MiddlewareFunc {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := newHTTPMetrics(reg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.inFlight.Inc()
			start := time.Now()

			err := next(c)
			if err != nil {
				// let echo render the error so the status is final
				c.Error(err)
			}

			m.inFlight.Dec()
			route := routeOf(c)
			method := c.Request().Method
			status := c.Response().Status
			elapsed := time.Since(start)

			m.requests.WithLabelValues(route, method, statusClass(status)).Inc()
			m.duration.WithLabelValues(route, method).Observe(elapsed.Seconds())

			if log != nil {
				switch {
				case status >= 500:
					log.Error("http request failed",
						applogger.String("route", route),
						applogger.String("method", method),
						applogger.String("status", strconv.Itoa(status)),
						applogger.Duration("duration", elapsed),
					)
				case slow > 0 && elapsed >= slow:
					log.Warn("http request slow",
						applogger.String("route", route),
						applogger.String("method", method),
						applogger.Duration("duration", elapsed),
					)
				}
			}
			return nil
		}
	}
}

func statusClass(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
