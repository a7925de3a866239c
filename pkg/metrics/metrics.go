package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveSessions is the number of slots currently Active (held by a
	// live, non-stale lock), as last observed by a Collector scan.
	ActiveSessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "packhouse_active_sessions",
			Help: "Number of packing slots currently locked by a live worker",
		},
		[]string{"client_id"},
	)

	// StaleLocksTotal is the number of slots currently holding a lock past
	// the stale threshold, as last observed by a Collector scan. Despite
	// the _total suffix this is a gauge, not a counter — it is a point-in-
	// time count, re-set on every scan.
	StaleLocksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "packhouse_stale_locks_total",
			Help: "Number of packing slots whose lock heartbeat has exceeded the stale threshold",
		},
		[]string{"client_id"},
	)

	// ScansTotal counts accepted, wrong-SKU and over-scan barcode scans,
	// by outcome.
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packhouse_scans_total",
			Help: "Total barcode scans processed, by outcome",
		},
		[]string{"outcome"},
	)

	// OrdersCompletedTotal counts orders whose required quantities were
	// all packed.
	OrdersCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packhouse_orders_completed_total",
			Help: "Total orders marked complete within a packing session",
		},
		[]string{"client_id"},
	)

	// HeartbeatFailuresTotal counts heartbeat cycles where the Session
	// Manager discovered it no longer owns its lock.
	HeartbeatFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packhouse_heartbeat_failures_total",
			Help: "Total heartbeat cycles where the lock was lost or reclaimed by another host",
		},
		[]string{"client_id"},
	)
)

func init() {
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(StaleLocksTotal)
	prometheus.MustRegister(ScansTotal)
	prometheus.MustRegister(OrdersCompletedTotal)
	prometheus.MustRegister(HeartbeatFailuresTotal)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small helper for timing an operation and observing its
// duration into a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
