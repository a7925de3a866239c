package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/packhouse/coordinator/pkg/fsutil"
	"github.com/packhouse/coordinator/pkg/types"
)

// Clock abstracts time.Now so the profile cache's TTL is testable without
// sleeping.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// DefaultCacheTTL is the profile cache's time-to-live absent an override.
const DefaultCacheTTL = 60 * time.Second

type cacheEntry struct {
	profile   *types.ClientProfile
	expiresAt time.Time
}

// Service is the Profile & Path Service.
type Service struct {
	Paths *Paths
	ttl   time.Duration
	clock Clock

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewService builds a Service rooted at root using the real wall clock and
// the default TTL.
func NewService(root string) *Service {
	return &Service{
		Paths: NewPaths(root),
		ttl:   DefaultCacheTTL,
		clock: realClock{},
		cache: make(map[string]cacheEntry),
	}
}

// NewServiceWithClock lets tests inject a fake Clock and a short TTL.
func NewServiceWithClock(root string, ttl time.Duration, clock Clock) *Service {
	return &Service{
		Paths: NewPaths(root),
		ttl:   ttl,
		clock: clock,
		cache: make(map[string]cacheEntry),
	}
}

// ClientProfile returns the cached profile for clientID, loading and
// caching it on a miss or expiry. A parse failure is surfaced as a
// ProfileError.
func (s *Service) ClientProfile(clientID string) (*types.ClientProfile, error) {
	now := s.clock.Now()

	s.mu.Lock()
	if entry, ok := s.cache[clientID]; ok && now.Before(entry.expiresAt) {
		s.mu.Unlock()
		return entry.profile, nil
	}
	s.mu.Unlock()

	path := s.Paths.ClientProfilePath(clientID)
	var p types.ClientProfile
	if err := fsutil.ReadJSONWithRetry(path, &p); err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewProfileError(fmt.Sprintf("client profile not found: %s", clientID), err)
		}
		return nil, types.NewProfileError(fmt.Sprintf("parse client profile: %s", clientID), err)
	}

	s.mu.Lock()
	s.cache[clientID] = cacheEntry{profile: &p, expiresAt: now.Add(s.ttl)}
	s.mu.Unlock()

	return &p, nil
}

// InvalidateClientProfile forces the next ClientProfile call to re-read
// from disk, bypassing the TTL.
func (s *Service) InvalidateClientProfile(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, clientID)
}

// SaveClientProfile publishes a profile via atomic publish and invalidates
// the cache entry so the next read observes it.
func (s *Service) SaveClientProfile(p *types.ClientProfile) error {
	if err := os.MkdirAll(s.Paths.ClientDir(string(p.ClientID)), 0o755); err != nil {
		return types.NewNetworkError("create client directory", err)
	}
	if err := fsutil.WriteJSONAtomic(s.Paths.ClientProfilePath(string(p.ClientID)), p, 0o644); err != nil {
		return types.NewNetworkError("write client profile", err)
	}
	s.InvalidateClientProfile(string(p.ClientID))
	return nil
}

// SessionsForClient lists every session directory under
// SESSIONS/<client_id>/.
func (s *Service) SessionsForClient(clientID string) ([]string, error) {
	dir := s.Paths.ClientSessionsDir(clientID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, types.NewNetworkError("list sessions", err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(dir, e.Name()))
		}
	}
	return dirs, nil
}

// IncompleteSessions returns session directories where session_info.json
// is still present — i.e. the session was never gracefully ended. A
// marker's absence is what marks a slot completed to Session Discovery.
func (s *Service) IncompleteSessions(clientID string) ([]string, error) {
	all, err := s.SessionsForClient(clientID)
	if err != nil {
		return nil, err
	}
	var incomplete []string
	for _, dir := range all {
		sessionID := filepath.Base(dir)
		if _, err := os.Stat(s.Paths.SessionMarkerPath(clientID, sessionID)); err == nil {
			incomplete = append(incomplete, dir)
		}
	}
	return incomplete, nil
}

// TestConnectivity verifies the share root is reachable by writing and
// removing a small probe file under it.
func (s *Service) TestConnectivity() error {
	probe := filepath.Join(s.Paths.Root, fmt.Sprintf(".connectivity-probe-%d", s.clock.Now().UnixNano()))
	if err := fsutil.WriteAtomic(probe, []byte("ok"), 0o644); err != nil {
		return types.NewNetworkError("shared filesystem unreachable", err)
	}
	defer os.Remove(probe)
	return nil
}
