package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/packhouse/coordinator/pkg/fsutil"
	"github.com/packhouse/coordinator/pkg/lockmgr"
	"github.com/packhouse/coordinator/pkg/profile"
	"github.com/packhouse/coordinator/pkg/types"
)

// Progress holds a slot's packed/required item counts.
type Progress struct {
	Packed   int
	Required int
}

// Record is one classified slot. Scan emits one Record per slot even when
// several slots share a session directory.
type Record struct {
	ClientID  types.ClientID
	SessionID string
	ListName  string
	State     types.SlotState
	Worker    types.WorkerIdentity
	Progress  Progress
	WorkDir   string
}

// Scanner implements Scan. It never writes to the shared filesystem.
type Scanner struct {
	paths *profile.Paths
	locks *lockmgr.Manager
}

// New builds a Scanner. locks is used only for its read-only Inspect
// operation.
func New(paths *profile.Paths, locks *lockmgr.Manager) *Scanner {
	return &Scanner{paths: paths, locks: locks}
}

// ScanClient classifies every slot under one client's session tree.
func (s *Scanner) ScanClient(clientID string) ([]Record, error) {
	sessionsDir := s.paths.ClientSessionsDir(clientID)
	entries, err := os.ReadDir(sessionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions for %s: %w", clientID, err)
	}

	var records []Record
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sessionID := e.Name()
		recs, err := s.scanSession(clientID, sessionID)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

// ScanAll classifies every slot for every client under the sessions root.
func (s *Scanner) ScanAll() (map[string][]Record, error) {
	entries, err := os.ReadDir(s.paths.SessionsRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]Record{}, nil
		}
		return nil, fmt.Errorf("list clients: %w", err)
	}

	result := make(map[string][]Record)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		recs, err := s.ScanClient(e.Name())
		if err != nil {
			return nil, err
		}
		result[e.Name()] = recs
	}
	return result, nil
}

// ScanAllCached classifies every slot for every client, routing each
// client's walk through ScanClientCached so repeated polls within the
// cache's TTL refresh the host-local cache instead of silently bypassing
// it.
func (s *Scanner) ScanAllCached(cache *Cache, now time.Time) (map[string][]Record, error) {
	entries, err := os.ReadDir(s.paths.SessionsRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]Record{}, nil
		}
		return nil, fmt.Errorf("list clients: %w", err)
	}

	result := make(map[string][]Record)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		recs, err := s.ScanClientCached(e.Name(), cache, now)
		if err != nil {
			return nil, err
		}
		result[e.Name()] = recs
	}
	return result, nil
}

func (s *Scanner) scanSession(clientID, sessionID string) ([]Record, error) {
	listNames, err := s.candidateListNames(clientID, sessionID)
	if err != nil {
		return nil, err
	}

	markerPath := s.paths.SessionMarkerPath(clientID, sessionID)
	marker, markerPresent := readMarker(markerPath)

	records := make([]Record, 0, len(listNames))
	for _, name := range listNames {
		rec, err := s.classifySlot(clientID, sessionID, name, marker, markerPresent)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// candidateListNames is the union of packing-list source names and
// packing work-directory names inside a session directory, sorted for
// deterministic output.
func (s *Scanner) candidateListNames(clientID, sessionID string) ([]string, error) {
	names := make(map[string]bool)

	sourceEntries, err := os.ReadDir(s.paths.PackingListsDir(clientID, sessionID))
	if err == nil {
		for _, e := range sourceEntries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
				names[strings.TrimSuffix(e.Name(), ".json")] = true
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("list packing list sources: %w", err)
	}

	packingDir := filepath.Join(s.paths.SessionDir(clientID, sessionID), "packing")
	workEntries, err := os.ReadDir(packingDir)
	if err == nil {
		for _, e := range workEntries {
			if e.IsDir() {
				names[e.Name()] = true
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("list packing work directories: %w", err)
	}

	result := make([]string, 0, len(names))
	for name := range names {
		result = append(result, name)
	}
	sort.Strings(result)
	return result, nil
}

func (s *Scanner) classifySlot(clientID, sessionID, listName string, marker *types.SessionMarker, markerPresent bool) (Record, error) {
	workDir := s.paths.SlotWorkDir(clientID, sessionID, listName)
	sourcePath := s.paths.PackingListSourcePath(clientID, sessionID, listName)
	summaryPath := s.paths.SlotSummaryPath(clientID, sessionID, listName)

	_, workDirErr := os.Stat(workDir)
	workDirExists := workDirErr == nil
	_, sourceErr := os.Stat(sourcePath)
	sourceExists := sourceErr == nil
	var summary *types.SessionSummary
	if _, err := os.Stat(summaryPath); err == nil {
		summary = readSummary(summaryPath)
	}

	rec := Record{
		ClientID:  types.ClientID(clientID),
		SessionID: sessionID,
		ListName:  listName,
		WorkDir:   workDir,
	}

	if !workDirExists {
		if sourceExists {
			rec.State = types.SlotAvailable
		} else {
			rec.State = types.SlotUnknown
		}
		return rec, nil
	}

	lockState, lock, err := s.locks.Inspect(workDir)
	if err != nil {
		return Record{}, err
	}

	switch {
	case markerPresent && lockState == lockmgr.InspectActive:
		rec.State = types.SlotActive
		rec.Worker = lock.Worker()
	case markerPresent && lockState == lockmgr.InspectStale:
		rec.State = types.SlotStale
		rec.Worker = lock.Worker()
	case markerPresent && lockState == lockmgr.InspectNone:
		rec.State = types.SlotPaused
		rec.Worker = marker.Worker
	case !markerPresent && lockState == lockmgr.InspectNone && summary != nil:
		rec.State = types.SlotCompleted
		rec.Worker = summary.Worker
	default:
		rec.State = types.SlotUnknown
	}

	rec.Progress = slotProgress(clientID, sessionID, listName, s.paths)
	return rec, nil
}

func slotProgress(clientID, sessionID, listName string, paths *profile.Paths) Progress {
	var state types.PackingState
	statePath := paths.SlotStatePath(clientID, sessionID, listName)
	if err := fsutil.ReadJSONWithRetry(statePath, &state); err != nil {
		return Progress{}
	}

	var packed, required int
	for _, rec := range state.CompletedOrdersMetadata {
		packed += rec.ItemsCount
		required += rec.ItemsCount
	}
	for _, o := range state.InProgress {
		packed += o.TotalPacked()
		required += o.TotalRequired()
	}
	for _, o := range state.Loaded {
		required += o.TotalRequired()
	}
	return Progress{Packed: packed, Required: required}
}

func readMarker(path string) (*types.SessionMarker, bool) {
	var marker types.SessionMarker
	if err := fsutil.ReadJSONWithRetry(path, &marker); err != nil {
		return nil, false
	}
	return &marker, true
}

func readSummary(path string) *types.SessionSummary {
	var summary types.SessionSummary
	if err := fsutil.ReadJSONWithRetry(path, &summary); err != nil {
		return nil
	}
	return &summary
}
