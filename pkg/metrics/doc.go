// Package metrics exposes Prometheus gauges and counters for the
// coordinator daemon mode (cmd/packctl serve): package-level vars
// registered via init()'s MustRegister, a Timer helper, and
// promhttp.Handler() wiring for active sessions, stale locks, scans,
// completed orders, and heartbeat failures. Collector runs a ticker-driven
// background loop polling pkg/discovery for the gauge values.
//
// The package also carries a process-health aggregator (health.go) built
// on top of pkg/health's per-probe Checker results: Monitor runs a
// Checker on its own ticker and folds its Result into a named component's
// status, so cmd/packctl serve can expose a combined /health, /ready and
// /live HTTP surface over every probe it registers.
package metrics
