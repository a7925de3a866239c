package health

import (
	"context"
	"fmt"
	"time"

	"github.com/packhouse/coordinator/pkg/profile"
)

// ShareChecker probes whether the shared filesystem backing every client's
// sessions is still reachable, by delegating to profile.Service's
// write-and-remove probe.
type ShareChecker struct {
	profiles *profile.Service
}

// NewShareChecker builds a ShareChecker over an existing profile.Service.
func NewShareChecker(profiles *profile.Service) *ShareChecker {
	return &ShareChecker{profiles: profiles}
}

// Check runs the probe, respecting ctx's deadline even though
// profile.Service.TestConnectivity itself is not context-aware.
func (c *ShareChecker) Check(ctx context.Context) Result {
	start := time.Now()

	done := make(chan error, 1)
	go func() { done <- c.profiles.TestConnectivity() }()

	select {
	case err := <-done:
		if err != nil {
			return Result{
				Healthy:   false,
				Message:   fmt.Sprintf("share unreachable: %v", err),
				CheckedAt: start,
				Duration:  time.Since(start),
			}
		}
		return Result{
			Healthy:   true,
			Message:   "share reachable",
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	case <-ctx.Done():
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("share probe timed out: %v", ctx.Err()),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
}

// Type returns CheckTypeShare.
func (c *ShareChecker) Type() CheckType { return CheckTypeShare }
