package health

import (
	"context"
	"testing"
	"time"

	"github.com/packhouse/coordinator/pkg/lockmgr"
	"github.com/packhouse/coordinator/pkg/profile"
)

func TestStatusHysteresisRequiresConsecutiveFailures(t *testing.T) {
	status := NewStatus()
	config := Config{Retries: 3}

	for i := 0; i < 2; i++ {
		status.Update(Result{Healthy: false, CheckedAt: time.Now()}, config)
		if !status.Healthy {
			t.Fatalf("expected still healthy after %d failures", i+1)
		}
	}

	status.Update(Result{Healthy: false, CheckedAt: time.Now()}, config)
	if status.Healthy {
		t.Fatal("expected unhealthy after reaching retry threshold")
	}

	status.Update(Result{Healthy: true, CheckedAt: time.Now()}, config)
	if !status.Healthy {
		t.Fatal("expected a single success to restore healthy")
	}
}

func TestStatusInStartPeriod(t *testing.T) {
	status := NewStatus()
	config := Config{StartPeriod: time.Hour}
	if !status.InStartPeriod(config) {
		t.Fatal("expected to be in the startup grace period immediately after NewStatus")
	}

	config.StartPeriod = 0
	if status.InStartPeriod(config) {
		t.Fatal("expected no grace period when StartPeriod is zero")
	}
}

func TestShareCheckerHealthyWhenShareReachable(t *testing.T) {
	dir := t.TempDir()
	profiles := profile.NewService(dir)
	checker := NewShareChecker(profiles)

	result := checker.Check(context.Background())
	if !result.Healthy {
		t.Fatalf("expected share checker healthy, got %+v", result)
	}
	if checker.Type() != CheckTypeShare {
		t.Fatalf("expected CheckTypeShare, got %v", checker.Type())
	}
}

func TestLockCheckerHealthyForOwnedActiveLock(t *testing.T) {
	dir := t.TempDir()
	identity := lockmgr.Identity{Host: "host-a", PID: 1}
	locks := lockmgr.New(identity, 120*time.Second)

	slotDir := dir + "/slot"
	if res, _, err := locks.Acquire(slotDir); err != nil || res != lockmgr.AcquireOk {
		t.Fatalf("expected clean acquire, got res=%v err=%v", res, err)
	}

	checker := NewLockChecker(locks, slotDir, "host-a", 1)
	result := checker.Check(context.Background())
	if !result.Healthy {
		t.Fatalf("expected lock checker healthy, got %+v", result)
	}
}

func TestLockCheckerUnhealthyWhenHeldByAnotherHost(t *testing.T) {
	dir := t.TempDir()
	owner := lockmgr.Identity{Host: "host-a", PID: 1}
	locks := lockmgr.New(owner, 120*time.Second)

	slotDir := dir + "/slot"
	if _, _, err := locks.Acquire(slotDir); err != nil {
		t.Fatal(err)
	}

	checker := NewLockChecker(locks, slotDir, "host-b", 2)
	result := checker.Check(context.Background())
	if result.Healthy {
		t.Fatal("expected unhealthy when checking from a non-owning host")
	}
}

func TestLockCheckerUnhealthyWhenMissing(t *testing.T) {
	dir := t.TempDir()
	locks := lockmgr.New(lockmgr.Identity{Host: "host-a", PID: 1}, 120*time.Second)

	checker := NewLockChecker(locks, dir+"/slot", "host-a", 1)
	result := checker.Check(context.Background())
	if result.Healthy {
		t.Fatal("expected unhealthy when no lock artifact exists")
	}
}
