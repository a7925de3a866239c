package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/packhouse/coordinator/pkg/lockmgr"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Inspect and force-release slot locks",
}

var (
	lockClientID  string
	lockSessionID string
	lockListName  string
)

func addSlotFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&lockClientID, "client", "", "Client id (required)")
	cmd.Flags().StringVar(&lockSessionID, "session", "", "Session id (required)")
	cmd.Flags().StringVar(&lockListName, "list", "", "Packing list name (required)")
	cmd.MarkFlagRequired("client")
	cmd.MarkFlagRequired("session")
	cmd.MarkFlagRequired("list")
}

var lockInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Report whether a slot's lock is absent, active or stale",
	RunE:  runLockInspect,
}

var lockForceReleaseCmd = &cobra.Command{
	Use:   "force-release",
	Short: "Remove a slot's lock artifact unconditionally, after a stale conflict has been confirmed with the operator",
	RunE:  runLockForceRelease,
}

func init() {
	addSlotFlags(lockInspectCmd)
	addSlotFlags(lockForceReleaseCmd)
	lockCmd.AddCommand(lockInspectCmd, lockForceReleaseCmd)
}

func slotDir() string {
	return paths.SlotWorkDir(lockClientID, lockSessionID, lockListName)
}

func runLockInspect(cmd *cobra.Command, args []string) error {
	result, lock, err := locks.Inspect(slotDir())
	if err != nil {
		return err
	}

	out := struct {
		Status string        `json:"status"`
		Lock   *lockSnapshot `json:"lock,omitempty"`
	}{}

	switch result {
	case lockmgr.InspectNone:
		out.Status = "none"
	case lockmgr.InspectActive:
		out.Status = "active"
	case lockmgr.InspectStale:
		out.Status = "stale"
	default:
		return errors.New("unexpected inspect result")
	}
	if lock != nil {
		out.Lock = &lockSnapshot{
			HolderHost:  lock.HolderHost,
			WorkerName:  lock.WorkerName,
			PID:         lock.HolderPID,
			AcquiredAt:  lock.AcquiredAt.Format("2006-01-02T15:04:05Z07:00"),
			HeartbeatAt: lock.HeartbeatAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

type lockSnapshot struct {
	HolderHost  string `json:"holder_host"`
	WorkerName  string `json:"worker_name"`
	PID         int    `json:"pid"`
	AcquiredAt  string `json:"acquired_at"`
	HeartbeatAt string `json:"heartbeat_at"`
}

func runLockForceRelease(cmd *cobra.Command, args []string) error {
	dir := slotDir()
	result, lock, err := locks.Inspect(dir)
	if err != nil {
		return err
	}
	if result == lockmgr.InspectNone {
		return errors.New("no lock held on this slot")
	}
	if result == lockmgr.InspectActive {
		return fmt.Errorf("refusing to force-release an active lock held by %s (worker %s); wait for it to go stale or confirm the holder is actually dead", lock.HolderHost, lock.WorkerName)
	}
	if err := locks.ForceRelease(dir); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "lock force-released (was held by %s, worker %s)\n", lock.HolderHost, lock.WorkerName)
	return nil
}
