package lockmgr

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/packhouse/coordinator/pkg/fsutil"
	"github.com/packhouse/coordinator/pkg/log"
	"github.com/packhouse/coordinator/pkg/types"
)

// lockFileName is the per-slot lock artifact written inside a locked
// directory.
const lockFileName = ".session.lock"

// Clock abstracts time.Now so staleness classification is testable
// without sleeping for the stale threshold.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Identity is this host's holder record, written into every lock artifact
// this Manager acquires.
type Identity struct {
	Host       string
	User       string
	PID        int
	WorkerID   string
	WorkerName string
	AppVersion string
}

func (id Identity) toLock(now time.Time) *types.Lock {
	return &types.Lock{
		HolderHost:  id.Host,
		HolderUser:  id.User,
		HolderPID:   id.PID,
		WorkerID:    id.WorkerID,
		WorkerName:  id.WorkerName,
		AppVersion:  id.AppVersion,
		AcquiredAt:  now,
		HeartbeatAt: now,
	}
}

// Manager implements acquire/release/heartbeat/inspect/force_release for
// one host's identity against any slot directory.
type Manager struct {
	identity       Identity
	staleThreshold time.Duration
	clock          Clock
}

// New builds a Manager. staleThreshold should be config.DefaultStaleThreshold
// unless a caller has an explicit reason to override it.
func New(identity Identity, staleThreshold time.Duration) *Manager {
	return &Manager{identity: identity, staleThreshold: staleThreshold, clock: realClock{}}
}

// NewWithClock lets tests inject a fake Clock to exercise the
// stale-threshold boundary without sleeping.
func NewWithClock(identity Identity, staleThreshold time.Duration, clock Clock) *Manager {
	return &Manager{identity: identity, staleThreshold: staleThreshold, clock: clock}
}

// AcquireResult tags the outcome of Acquire.
type AcquireResult int

const (
	AcquireOk AcquireResult = iota
	AcquireConflict
	AcquireStaleConflict
)

// Acquire takes the lock on dir for this Manager's identity. It never
// steals a stale lock — that requires an explicit ForceRelease after user
// confirmation.
func (m *Manager) Acquire(dir string) (AcquireResult, *types.Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return AcquireConflict, nil, types.NewNetworkError("create slot directory", err)
	}

	sentinel, err := fsutil.LockDir(dir)
	if err != nil {
		return AcquireConflict, nil, types.NewNetworkError("acquire sentinel", err)
	}
	defer sentinel.Unlock()

	path := filepath.Join(dir, lockFileName)
	existing, found, err := readLock(path)
	if err != nil {
		return AcquireConflict, nil, types.NewNetworkError("read lock artifact", err)
	}

	now := m.clock.Now()
	if found {
		if existing.HeartbeatAge(now) < m.staleThreshold {
			return AcquireConflict, existing, nil
		}
		return AcquireStaleConflict, existing, nil
	}

	newLock := m.identity.toLock(now)
	if err := writeLock(path, newLock); err != nil {
		return AcquireConflict, nil, types.NewNetworkError("write lock artifact", err)
	}
	log.WithComponent("lockmgr").Info().Str("dir", dir).Msg("lock acquired")
	return AcquireOk, newLock, nil
}

// ForceRelease removes an existing lock artifact unconditionally. Callers
// must have obtained user confirmation of a prior StaleConflict.
func (m *Manager) ForceRelease(dir string) error {
	sentinel, err := fsutil.LockDir(dir)
	if err != nil {
		return types.NewNetworkError("acquire sentinel", err)
	}
	defer sentinel.Unlock()

	path := filepath.Join(dir, lockFileName)
	if _, found, err := readLock(path); err != nil {
		return types.NewNetworkError("read lock artifact", err)
	} else if !found {
		return types.NewInvalidStateError("force_release: no lock held")
	}
	if err := os.Remove(path); err != nil {
		return types.NewNetworkError("remove lock artifact", err)
	}
	log.WithComponent("lockmgr").Warn().Str("dir", dir).Msg("lock force-released")
	return nil
}

// Release removes the lock artifact only if its holder matches this host's
// identity, preventing accidental cross-host releases.
func (m *Manager) Release(dir string) error {
	sentinel, err := fsutil.LockDir(dir)
	if err != nil {
		return types.NewNetworkError("acquire sentinel", err)
	}
	defer sentinel.Unlock()

	path := filepath.Join(dir, lockFileName)
	existing, found, err := readLock(path)
	if err != nil {
		return types.NewNetworkError("read lock artifact", err)
	}
	if !found || !existing.SameHolder(m.identity.Host, m.identity.PID) {
		return types.NewNotOwnerError("release: lock not held by this host")
	}
	if err := os.Remove(path); err != nil {
		return types.NewNetworkError("remove lock artifact", err)
	}
	log.WithComponent("lockmgr").Info().Str("dir", dir).Msg("lock released")
	return nil
}

// Heartbeat rewrites the heartbeat timestamp if this host still owns the
// lock. It returns NotOwner if the artifact is gone or has been re-held by
// someone else — the caller (Session Manager) must then emit
// heartbeat_failed and end the session without attempting release.
func (m *Manager) Heartbeat(dir string) error {
	sentinel, err := fsutil.LockDir(dir)
	if err != nil {
		return types.NewNetworkError("acquire sentinel", err)
	}
	defer sentinel.Unlock()

	path := filepath.Join(dir, lockFileName)
	existing, found, err := readLock(path)
	if err != nil {
		return types.NewNetworkError("read lock artifact", err)
	}
	if !found || !existing.SameHolder(m.identity.Host, m.identity.PID) {
		return types.NewNotOwnerError("heartbeat: lock lost")
	}

	existing.HeartbeatAt = m.clock.Now()
	if err := writeLock(path, existing); err != nil {
		return types.NewNetworkError("write lock artifact", err)
	}
	return nil
}

// InspectResult tags what Inspect observed.
type InspectResult int

const (
	InspectNone InspectResult = iota
	InspectActive
	InspectStale
)

// Inspect classifies a directory's lock without acquiring the sentinel —
// it is a pure read used by polling callers (Session Discovery) that must
// not contend with a live owner's heartbeat writes. A torn read (mid
// atomic-publish rename) is impossible by construction; a read racing a
// rename either sees the old complete file or the new complete file,
// never a partial one.
func (m *Manager) Inspect(dir string) (InspectResult, *types.Lock, error) {
	path := filepath.Join(dir, lockFileName)
	lock, found, err := readLock(path)
	if err != nil {
		return InspectNone, nil, types.NewNetworkError("read lock artifact", err)
	}
	if !found {
		return InspectNone, nil, nil
	}
	if lock.HeartbeatAge(m.clock.Now()) >= m.staleThreshold {
		return InspectStale, lock, nil
	}
	return InspectActive, lock, nil
}

// ActiveSession pairs a session/slot directory with its lock record, for
// AllActiveSessions.
type ActiveSession struct {
	Dir  string
	Lock *types.Lock
}

// AllActiveSessions performs a purely observational scan across every
// client's session root, returning active (non-stale) locks grouped by
// client id. sessionsRoot is profile.Paths.SessionsRoot(); listing the
// slot directories under each client directory (client -> session -> ...
// -> slot) is left to the caller's slotDirsForClient callback. pkg/discovery
// does not use this helper — it walks the full tree and classifies every
// slot itself; this helper is for callers that only care about "who's
// actively locked right now" without the rest of the classification.
func (m *Manager) AllActiveSessions(sessionsRoot string, slotDirsForClient func(clientDir string) ([]string, error)) (map[string][]ActiveSession, error) {
	clients, err := os.ReadDir(sessionsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]ActiveSession{}, nil
		}
		return nil, types.NewNetworkError("list clients", err)
	}

	result := make(map[string][]ActiveSession)
	for _, c := range clients {
		if !c.IsDir() {
			continue
		}
		clientID := c.Name()
		clientDir := filepath.Join(sessionsRoot, clientID)
		slots, err := slotDirsForClient(clientDir)
		if err != nil {
			return nil, err
		}
		for _, slotDir := range slots {
			state, lock, err := m.Inspect(slotDir)
			if err != nil {
				return nil, err
			}
			if state == InspectActive {
				result[clientID] = append(result[clientID], ActiveSession{Dir: slotDir, Lock: lock})
			}
		}
	}
	return result, nil
}

func readLock(path string) (*types.Lock, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var lock types.Lock
	if err := fsutil.ReadJSONWithRetry(path, &lock); err != nil {
		return nil, false, fmt.Errorf("parse lock artifact: %w", err)
	}
	return &lock, true, nil
}

func writeLock(path string, lock *types.Lock) error {
	return fsutil.WriteJSONAtomic(path, lock, 0o644)
}
