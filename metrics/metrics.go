// Package metrics exports cache and stampede guard activity to Prometheus.
package metrics

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goforj/newscache"
	"github.com/goforj/newscache/cachecore"
	"github.com/goforj/newscache/keyschema"
)

// Outcomes recorded for cache operations.
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

// Collector implements newscache.Observer and newscache.GuardEvents.
type Collector struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
	events   *prometheus.CounterVec
}

var (
	_ newscache.Observer    = (*Collector)(nil)
	_ newscache.GuardEvents = (*Collector)(nil)
)

// New registers the collector's metrics with reg. A nil reg creates the
// metrics without registering them.
func New(reg prometheus.Registerer) *Collector {
	return &Collector{
		ops: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "newscache",
			Name:      "cache_operations_total",
			Help:      "Cache operations by operation, driver and outcome.",
		}, []string{"op", "driver", "outcome"}),
		duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "newscache",
			Name:      "cache_operation_duration_seconds",
			Help:      "Cache operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"op", "driver"}),
		events: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "newscache",
			Name:      "guard_events_total",
			Help:      "Read path events by event and key kind.",
		}, []string{"event", "kind"}),
	}
}

// OnCacheOp implements newscache.Observer.
func (c *Collector) OnCacheOp(_ context.Context, op string, _ string, hit bool, err error, dur time.Duration, driver cachecore.Driver) {
	outcome := OutcomeMiss
	switch {
	case err != nil:
		outcome = OutcomeError
	case hit:
		outcome = OutcomeHit
	}
	c.ops.WithLabelValues(op, string(driver), outcome).Inc()
	c.duration.WithLabelValues(op, string(driver)).Observe(dur.Seconds())
}

// OnGuardEvent implements newscache.GuardEvents. Keys are reduced to their
// kind to keep label cardinality bounded.
func (c *Collector) OnGuardEvent(_ context.Context, event string, key string) {
	c.events.WithLabelValues(event, kindOf(key)).Inc()
}

func kindOf(key string) string {
	if k, ok := keyschema.FromLockKey(key); ok {
		key = k
	}
	prefix, _, _ := strings.Cut(key, ":")
	if kind, ok := keyschema.ParseKind(prefix); ok {
		return kind.String()
	}
	return "unknown"
}
