// Package health implements a generic liveness-checker shape (Checker,
// Result, Config, Status, hysteresis via consecutive failure/success
// counting, a StartPeriod grace window) over this domain's two things
// worth probing periodically: whether the shared filesystem is still
// reachable (ShareChecker), and whether a held slot lock is still being
// heartbeat (LockChecker).
package health
