package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// httpRequestsTotal counts requests by method, route, and status.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "changenotify",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests processed.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "changenotify",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// rateLimitExceeded counts 429 responses. endpoint is the policy name
	// ("customers:profile_put"), source is "user" or "ip".
	rateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "changenotify",
			Subsystem: "http",
			Name:      "rate_limit_exceeded_total",
			Help:      "Number of requests rejected due to rate limiting (HTTP 429)",
		},
		[]string{"endpoint", "source"},
	)
)

// HTTPMiddleware instruments each request. Requests to skip paths (the
// scrape endpoint, health checks) are not counted. The status of a handler
// error is the one the error handler will write.
func HTTPMiddleware(skip ...string) echo.MiddlewareFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := skipped[c.Request().URL.Path]; ok {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := strconv.Itoa(responseStatus(c, err))
			method := c.Request().Method

			httpRequestsTotal.WithLabelValues(method, route, status).Inc()
			httpRequestDurationSeconds.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

// IncRateLimitExceeded increments the 429 counter for the given endpoint and source.
func IncRateLimitExceeded(endpoint, source string) {
	if endpoint == "" {
		endpoint = "unknown"
	}
	if source == "" {
		source = "unknown"
	}
	rateLimitExceeded.WithLabelValues(endpoint, source).Inc()
}
