// Package types defines the core data structures shared across the
// packhouse coordinator: client profiles, sessions, packing-list slots,
// orders, lock artifacts, session summaries, stats records, and the
// tagged Error type that crosses every component boundary.
//
// Types here carry no behavior beyond small, obviously-correct helpers
// (NormalizeSKU, Order.IsComplete, Lock.HeartbeatAge); the state machines
// that mutate them live in pkg/packing, pkg/lockmgr, and pkg/session.
package types
