package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	lim    *rate.Limiter
	limit  int
	window time.Duration
	seen   time.Time
}

// memoryStore keeps one token bucket per key: limit tokens refilled evenly
// over window.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	now     func() time.Time
}

// NewMemoryStore returns a process-local Store.
func NewMemoryStore() Store {
	return &memoryStore{entries: make(map[string]*limiterEntry), now: time.Now}
}

func (s *memoryStore) Allow(_ echo.Context, key string, limit int, window time.Duration) (bool, int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.limit != limit || e.window != window {
		e = &limiterEntry{
			lim:    rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
			limit:  limit,
			window: window,
		}
		s.entries[key] = e
	}
	e.seen = now
	s.evict(now)

	if e.lim.AllowN(now, 1) {
		return true, 0, nil
	}
	r := e.lim.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return false, int(math.Ceil(delay.Seconds())), nil
}

// evict drops buckets idle for longer than their window. Such a bucket has
// fully refilled, so recreating it later is equivalent.
func (s *memoryStore) evict(now time.Time) {
	if len(s.entries) < 1024 {
		return
	}
	for k, e := range s.entries {
		if now.Sub(e.seen) > e.window {
			delete(s.entries, k)
		}
	}
}
