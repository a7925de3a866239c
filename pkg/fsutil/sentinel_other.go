//go:build !unix

package fsutil

import (
	"fmt"
	"os"
)

// SentinelLock is the non-unix fallback: an exclusive-create sentinel file
// stands in for flock. It is weaker (no automatic release on crash without
// a liveness check) but keeps the package compiling on every GOOS; the
// real deployment target for a network-share warehouse coordinator is
// unix-family hosts, where sentinel_unix.go's flock is used instead.
type SentinelLock struct {
	path string
}

const sentinelName = ".lock.sentinel"

func LockDir(dir string) (*SentinelLock, error) {
	path := dir + string(os.PathSeparator) + sentinelName
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create sentinel: %w", err)
	}
	f.Close()
	return &SentinelLock{path: path}, nil
}

func (s *SentinelLock) Unlock() error {
	return os.Remove(s.path)
}
