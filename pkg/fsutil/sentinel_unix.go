//go:build unix

package fsutil

import (
	"fmt"
	"os"
	"syscall"
)

// SentinelLock holds an OS advisory lock (flock) on a sentinel file inside
// a directory. It linearizes the read-modify-rename sequence used by
// acquire/release/heartbeat: a short-lived OS advisory lock on a sentinel
// file in the same directory, held across the read, the mutation, the
// rename, and released before any caller resumes.
//
// Grounded in other_examples/22a0994a_umputun-ralphex__pkg-web-
// session_manager.go.go, which tests liveness with
// syscall.Flock(fd, syscall.LOCK_EX|syscall.LOCK_NB).
type SentinelLock struct {
	file *os.File
}

// sentinelName is the fixed file name flock'd within a directory before
// any read-modify-rename sequence on that directory's lock artifact.
const sentinelName = ".lock.sentinel"

// LockDir takes a blocking flock on dir's sentinel file, creating it if
// necessary. The returned SentinelLock must be released with Unlock.
func LockDir(dir string) (*SentinelLock, error) {
	path := dir + string(os.PathSeparator) + sentinelName
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open sentinel: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock sentinel: %w", err)
	}
	return &SentinelLock{file: f}, nil
}

// Unlock releases the flock and closes the sentinel file descriptor.
func (s *SentinelLock) Unlock() error {
	if err := syscall.Flock(int(s.file.Fd()), syscall.LOCK_UN); err != nil {
		s.file.Close()
		return fmt.Errorf("unflock sentinel: %w", err)
	}
	return s.file.Close()
}
