package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	metrics "github.com/corvusHold/changenotify/internal/metrics"
)

// Policy defines a request limit per derived key.
// Limit requests within Window per derived key.
type Policy struct {
	// Name is a short identifier for the limited endpoint, used for logging/metrics (e.g. "admin:notify_config").
	Name   string
	Window time.Duration
	Limit  int
	// Optional dynamic resolvers (if provided, override Window/Limit per request)
	WindowFunc func(echo.Context) time.Duration
	LimitFunc  func(echo.Context) int
	// Key builds the bucket key for this request.
	// Example: func(c echo.Context) string { return "login:ip:" + c.RealIP() }
	Key func(echo.Context) string
}

// Store abstracts a counter store (in-process or Redis).
type Store interface {
	// Allow counts the request for key and returns whether it is allowed.
	// If not allowed, retryAfterSec indicates seconds until a request would pass.
	Allow(ctx echo.Context, key string, limit int, window time.Duration) (allowed bool, retryAfterSec int, err error)
}

// Middleware enforces p with a process-local store. For multi-instance
// deployments use MiddlewareWithStore and a Redis store.
func Middleware(p Policy) echo.MiddlewareFunc {
	return MiddlewareWithStore(p, NewMemoryStore())
}

// MiddlewareWithStore enforces p against s. Store errors fail open.
func MiddlewareWithStore(p Policy, s Store) echo.MiddlewareFunc {
	if p.Window <= 0 {
		p.Window = time.Minute
	}
	if p.Limit <= 0 {
		p.Limit = 60
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "global"
			if p.Key != nil {
				key = p.Key(c)
			}
			win := p.Window
			lim := p.Limit
			if p.WindowFunc != nil {
				if w := p.WindowFunc(c); w > 0 {
					win = w
				}
			}
			if p.LimitFunc != nil {
				if l := p.LimitFunc(c); l > 0 {
					lim = l
				}
			}
			allowed, retryAfter, err := s.Allow(c, key, lim, win)
			if err != nil {
				c.Logger().Warnf("rate limit store error: endpoint=%s err=%v", p.Name, err)
				return next(c)
			}
			if allowed {
				return next(c)
			}
			metrics.IncRateLimitExceeded(p.Name, source(key))
			c.Logger().Warnf("rate limit exceeded: endpoint=%s key=%s limit=%d window=%s retry_after=%ds", p.Name, key, lim, win.String(), retryAfter)
			if retryAfter > 0 {
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
			}
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		}
	}
}

// KeyUserOrIP keys on the authenticated subject when subject returns one,
// else on the client IP. Prefix separates endpoints.
func KeyUserOrIP(prefix string, subject func(echo.Context) (string, bool)) func(echo.Context) string {
	return func(c echo.Context) string {
		if subject != nil {
			if s, ok := subject(c); ok {
				return prefix + ":user:" + s
			}
		}
		return prefix + ":ip:" + c.RealIP()
	}
}

func source(key string) string {
	if strings.Contains(key, ":user:") {
		return "user"
	}
	return "ip"
}
