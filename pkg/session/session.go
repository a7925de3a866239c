package session

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/packhouse/coordinator/pkg/events"
	"github.com/packhouse/coordinator/pkg/fsutil"
	"github.com/packhouse/coordinator/pkg/lockmgr"
	"github.com/packhouse/coordinator/pkg/log"
	"github.com/packhouse/coordinator/pkg/metrics"
	"github.com/packhouse/coordinator/pkg/packing"
	"github.com/packhouse/coordinator/pkg/profile"
	"github.com/packhouse/coordinator/pkg/stats"
	"github.com/packhouse/coordinator/pkg/types"
)

// State is one node of the Session Manager's state machine.
type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateActive    State = "active"
	StateRestoring State = "restoring"
	StateEnding    State = "ending"
	// StateCrashed is never set by the owning host; it is an observer-only
	// tag a peer applies in its own view of a slot it does not own.
	StateCrashed State = "crashed"
)

// Session is one bound (operator, host, slot) tuple.
type Session struct {
	ClientID  types.ClientID
	SessionID string
	ListName  string
	WorkDir   string

	mu     sync.Mutex
	state  State
	lock   *types.Lock
	engine *packing.Engine

	startedAt time.Time
	stopHeartbeat chan struct{}
}

// State returns the session's current state machine node.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Engine exposes the bound Packing State Engine so callers can drive
// scan_sku/start_order/skip_order.
func (s *Session) Engine() *packing.Engine {
	return s.engine
}

// Manager is the Session Manager: the sole source of truth for slot
// work-directory creation and the only component that schedules
// heartbeats against a held lock.
type Manager struct {
	paths    *profile.Paths
	profiles *profile.Service
	locks    *lockmgr.Manager
	broker   *events.Broker
	stats    *stats.Aggregator

	identity          lockmgr.Identity
	heartbeatInterval time.Duration
}

// New builds a Manager. identity and heartbeatInterval come from
// pkg/config; broker is shared with whatever layer subscribes to session
// events. statsAgg receives one StatRecord per ended session (graceful
// end_session or an end forced by a lost heartbeat) and
// may be nil in callers that don't care about aggregate stats (tests).
func New(paths *profile.Paths, profiles *profile.Service, locks *lockmgr.Manager, broker *events.Broker, statsAgg *stats.Aggregator, identity lockmgr.Identity, heartbeatInterval time.Duration) *Manager {
	return &Manager{
		paths:             paths,
		profiles:          profiles,
		locks:             locks,
		broker:            broker,
		stats:             statsAgg,
		identity:          identity,
		heartbeatInterval: heartbeatInterval,
	}
}

// ClientProfile delegates to the bound Profile & Path Service so callers
// driving a Session's scans don't need to thread a second service
// reference through the CLI layer.
func (m *Manager) ClientProfile(clientID types.ClientID) (*types.ClientProfile, error) {
	return m.profiles.ClientProfile(string(clientID))
}

// workDirs creates and returns the canonical subdirectories for one slot.
// No other package is permitted to build these paths itself.
func (m *Manager) workDirs(clientID types.ClientID, sessionID, listName string) (workDir string, err error) {
	workDir = m.paths.SlotWorkDir(string(clientID), sessionID, listName)
	for _, dir := range []string{
		workDir,
		m.paths.SlotBarcodesDir(string(clientID), sessionID, listName),
		m.paths.SlotReportsDir(string(clientID), sessionID, listName),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", types.NewNetworkError("create slot work directory", err)
		}
	}
	return workDir, nil
}

// newSessionID produces a timestamped session directory name, appending a
// numeric suffix if that timestamp is already taken.
func (m *Manager) newSessionID(clientID types.ClientID) string {
	base := time.Now().UTC().Format("20060102-150405")
	candidate := base
	for suffix := 1; ; suffix++ {
		dir := m.paths.SessionDir(string(clientID), candidate)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", base, suffix)
	}
}

// Start binds this host to a packing-list slot. If sessionID is empty a
// new session directory is created; otherwise the given session is
// resumed and its marker's original StartedAt is preserved rather than
// reset. On a lock Conflict this returns a *types.Error with Kind
// KindSessionLocked; on StaleConflict, Kind KindStaleLock carrying the
// stale record so the caller can confirm a force_release and retry.
func (m *Manager) Start(clientID types.ClientID, listName string, sessionID string, sourceBundle []byte) (*Session, error) {
	resuming := sessionID != ""
	if !resuming {
		sessionID = m.newSessionID(clientID)
	}

	workDir, err := m.workDirs(clientID, sessionID, listName)
	if err != nil {
		return nil, err
	}

	result, lock, err := m.locks.Acquire(workDir)
	if err != nil {
		return nil, err
	}
	switch result {
	case lockmgr.AcquireConflict:
		return nil, types.NewLockedError(lock)
	case lockmgr.AcquireStaleConflict:
		return nil, types.NewStaleLockError(lock)
	}

	markerPath := m.paths.SessionMarkerPath(string(clientID), sessionID)
	initialState := StateStarting
	startedAt := time.Now()
	if resuming {
		initialState = StateRestoring
		var existing types.SessionMarker
		if err := fsutil.ReadJSONWithRetry(markerPath, &existing); err == nil {
			startedAt = existing.StartedAt
		}
	}

	statePath := m.paths.SlotStatePath(string(clientID), sessionID, listName)
	engine, err := packing.NewEngine(clientID, statePath)
	if err != nil {
		_ = m.locks.Release(workDir)
		return nil, err
	}
	if len(sourceBundle) > 0 {
		if _, err := engine.LoadOrders(sourceBundle); err != nil {
			_ = m.locks.Release(workDir)
			return nil, err
		}
	}

	marker := types.SessionMarker{
		ClientID:  clientID,
		StartedAt: startedAt,
		PCName:    m.identity.Host,
		Worker:    types.WorkerIdentity{ID: m.identity.WorkerID, Name: m.identity.WorkerName},
	}
	if err := fsutil.WriteJSONAtomic(markerPath, &marker, 0o644); err != nil {
		_ = m.locks.Release(workDir)
		return nil, types.NewNetworkError("write session marker", err)
	}

	sess := &Session{
		ClientID:      clientID,
		SessionID:     sessionID,
		ListName:      listName,
		WorkDir:       workDir,
		state:         initialState,
		lock:          lock,
		engine:        engine,
		startedAt:     marker.StartedAt,
		stopHeartbeat: make(chan struct{}),
	}

	go m.heartbeatLoop(sess)

	sess.mu.Lock()
	sess.state = StateActive
	sess.mu.Unlock()

	if m.broker != nil {
		m.broker.Publish(events.New(events.EventSessionStarted, sessionID, listName))
	}
	log.WithSlot(sessionID, listName).Info().Msg("session started")

	return sess, nil
}

// heartbeatLoop runs for the lifetime of an Active session. On a lost
// heartbeat it emits heartbeat_failed and ends the session without
// attempting to release a lock it no longer holds.
func (m *Manager) heartbeatLoop(sess *Session) {
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.stopHeartbeat:
			return
		case <-ticker.C:
			if err := m.locks.Heartbeat(sess.WorkDir); err != nil {
				var terr *types.Error
				if !errors.As(err, &terr) || terr.Kind != types.KindNotOwner {
					log.WithSlot(sess.SessionID, sess.ListName).Warn().Err(err).Msg("heartbeat failed, retrying next tick")
					continue
				}
				log.WithSlot(sess.SessionID, sess.ListName).Warn().Err(err).Msg("heartbeat lost")
				metrics.HeartbeatFailuresTotal.WithLabelValues(string(sess.ClientID)).Inc()
				if m.broker != nil {
					m.broker.Publish(events.New(events.EventHeartbeatFailed, sess.SessionID, sess.ListName))
				}
				m.endLocked(sess, false)
				return
			}
		}
	}
}

// End emits the summary, releases the lock, and removes the session
// marker so discovery sees the slot as completed.
func (m *Manager) End(sess *Session) (types.SessionSummary, error) {
	return m.endLocked(sess, true)
}

func (m *Manager) endLocked(sess *Session, release bool) (types.SessionSummary, error) {
	sess.mu.Lock()
	if sess.state == StateEnding || sess.state == StateIdle {
		sess.mu.Unlock()
		return types.SessionSummary{}, nil
	}
	sess.state = StateEnding
	sess.mu.Unlock()

	close(sess.stopHeartbeat)

	worker := types.WorkerIdentity{ID: m.identity.WorkerID, Name: m.identity.WorkerName}
	summary := sess.engine.GenerateSummary(sess.SessionID, sess.ListName, worker, sess.startedAt, time.Now())
	summaryPath := m.paths.SlotSummaryPath(string(sess.ClientID), sess.SessionID, sess.ListName)
	if err := fsutil.WriteJSONAtomic(summaryPath, &summary, 0o644); err != nil {
		return summary, types.NewNetworkError("write session summary", err)
	}

	if m.stats != nil {
		record := types.StatRecord{
			SessionID:       summary.SessionID,
			ClientID:        summary.ClientID,
			Worker:          summary.Worker,
			ListName:        summary.ListName,
			OrderCount:      summary.CompletedOrders,
			ItemCount:       summary.TotalItems,
			DurationSeconds: summary.DurationSeconds,
			StartedAt:       summary.StartedAt,
			EndedAt:         summary.EndedAt,
		}
		if err := m.stats.Append(record); err != nil {
			log.WithSlot(sess.SessionID, sess.ListName).Warn().Err(err).Msg("stats append failed")
		}
	}

	if release {
		if err := m.locks.Release(sess.WorkDir); err != nil {
			log.WithSlot(sess.SessionID, sess.ListName).Warn().Err(err).Msg("release on end_session failed")
		}
	}

	markerPath := m.paths.SessionMarkerPath(string(sess.ClientID), sess.SessionID)
	if err := os.Remove(markerPath); err != nil && !os.IsNotExist(err) {
		log.WithSlot(sess.SessionID, sess.ListName).Warn().Err(err).Msg("remove session marker failed")
	}

	if m.broker != nil {
		m.broker.Publish(events.New(events.EventSessionEnded, sess.SessionID, sess.ListName))
	}

	sess.mu.Lock()
	sess.state = StateIdle
	sess.mu.Unlock()

	log.WithSlot(sess.SessionID, sess.ListName).Info().Msg("session ended")
	return summary, nil
}
