package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// dependencyUp is 1 when the last probe of a dependency succeeded, else 0.
	dependencyUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "changenotify",
		Subsystem: "dependency",
		Name:      "up",
		Help:      "Dependency availability (1=up, 0=down).",
	}, []string{"dependency"})

	dependencyProbeSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "changenotify",
		Subsystem: "dependency",
		Name:      "probe_seconds",
		Help:      "Dependency probe latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"dependency"})
)

// Probe runs ping against a dependency ("postgres", "redis"), records its
// availability and latency, and returns "ok" or "down".
func Probe(ctx context.Context, dependency string, ping func(context.Context) error) string {
	start := time.Now()
	err := ping(ctx)
	dependencyProbeSeconds.WithLabelValues(dependency).Observe(time.Since(start).Seconds())
	if err != nil {
		dependencyUp.WithLabelValues(dependency).Set(0)
		return "down"
	}
	dependencyUp.WithLabelValues(dependency).Set(1)
	return "ok"
}
