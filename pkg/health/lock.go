package health

import (
	"context"
	"fmt"
	"time"

	"github.com/packhouse/coordinator/pkg/lockmgr"
)

// LockChecker probes whether a slot's lock is still held by this host and
// still being heartbeat: a lightweight read with no side effects.
type LockChecker struct {
	locks *lockmgr.Manager
	dir   string
	host  string
	pid   int
}

// NewLockChecker builds a LockChecker for the slot directory this host
// believes it currently owns.
func NewLockChecker(locks *lockmgr.Manager, dir, host string, pid int) *LockChecker {
	return &LockChecker{locks: locks, dir: dir, host: host, pid: pid}
}

// Check inspects the lock artifact without taking the sentinel lock.
func (c *LockChecker) Check(ctx context.Context) Result {
	start := time.Now()

	state, lock, err := c.locks.Inspect(c.dir)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("lock inspect failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	switch state {
	case lockmgr.InspectNone:
		return Result{
			Healthy:   false,
			Message:   "lock artifact missing",
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	case lockmgr.InspectStale:
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("lock stale, last heartbeat %s ago", lock.HeartbeatAge(start)),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	if !lock.SameHolder(c.host, c.pid) {
		return Result{
			Healthy:   false,
			Message:   "lock held by a different host",
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	return Result{
		Healthy:   true,
		Message:   "lock active and held by this host",
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns CheckTypeLock.
func (c *LockChecker) Type() CheckType { return CheckTypeLock }
