package profile

import "path/filepath"

// Paths resolves every canonical directory under the shared filesystem
// root. It is the single place that knows the on-disk layout; every other
// package asks Paths for a location instead of joining strings itself.
type Paths struct {
	Root string
}

func NewPaths(root string) *Paths {
	return &Paths{Root: root}
}

func (p *Paths) ClientsRoot() string { return filepath.Join(p.Root, "CLIENTS") }
func (p *Paths) SessionsRoot() string { return filepath.Join(p.Root, "SESSIONS") }
func (p *Paths) StatsRoot() string    { return filepath.Join(p.Root, "STATS") }

// ClientDir is CLIENTS/<client_id>.
func (p *Paths) ClientDir(clientID string) string {
	return filepath.Join(p.ClientsRoot(), clientID)
}

// ClientProfilePath is CLIENTS/<client_id>/packer_config.json.
func (p *Paths) ClientProfilePath(clientID string) string {
	return filepath.Join(p.ClientDir(clientID), "packer_config.json")
}

// ClientBackupsDir is CLIENTS/<client_id>/backups.
func (p *Paths) ClientBackupsDir(clientID string) string {
	return filepath.Join(p.ClientDir(clientID), "backups")
}

// ClientSessionsDir is SESSIONS/<client_id>.
func (p *Paths) ClientSessionsDir(clientID string) string {
	return filepath.Join(p.SessionsRoot(), clientID)
}

// SessionDir is SESSIONS/<client_id>/<session_id>.
func (p *Paths) SessionDir(clientID, sessionID string) string {
	return filepath.Join(p.ClientSessionsDir(clientID), sessionID)
}

// SessionMarkerPath is SESSIONS/<client_id>/<session_id>/session_info.json.
func (p *Paths) SessionMarkerPath(clientID, sessionID string) string {
	return filepath.Join(p.SessionDir(clientID, sessionID), "session_info.json")
}

// PackingListSourcePath is
// SESSIONS/<client_id>/<session_id>/packing_lists/<list_name>.json.
func (p *Paths) PackingListSourcePath(clientID, sessionID, listName string) string {
	return filepath.Join(p.SessionDir(clientID, sessionID), "packing_lists", listName+".json")
}

// PackingListsDir is SESSIONS/<client_id>/<session_id>/packing_lists.
func (p *Paths) PackingListsDir(clientID, sessionID string) string {
	return filepath.Join(p.SessionDir(clientID, sessionID), "packing_lists")
}

// AnalysisDataPath is
// SESSIONS/<client_id>/<session_id>/analysis/analysis_data.json.
func (p *Paths) AnalysisDataPath(clientID, sessionID string) string {
	return filepath.Join(p.SessionDir(clientID, sessionID), "analysis", "analysis_data.json")
}

// SlotWorkDir is SESSIONS/<client_id>/<session_id>/packing/<list_name> —
// the lockable unit. Created exclusively by the Session Manager.
func (p *Paths) SlotWorkDir(clientID, sessionID, listName string) string {
	return filepath.Join(p.SessionDir(clientID, sessionID), "packing", listName)
}

func (p *Paths) SlotLockPath(clientID, sessionID, listName string) string {
	return filepath.Join(p.SlotWorkDir(clientID, sessionID, listName), ".session.lock")
}

func (p *Paths) SlotStatePath(clientID, sessionID, listName string) string {
	return filepath.Join(p.SlotWorkDir(clientID, sessionID, listName), "packing_state.json")
}

func (p *Paths) SlotSummaryPath(clientID, sessionID, listName string) string {
	return filepath.Join(p.SlotWorkDir(clientID, sessionID, listName), "session_summary.json")
}

func (p *Paths) SlotBarcodesDir(clientID, sessionID, listName string) string {
	return filepath.Join(p.SlotWorkDir(clientID, sessionID, listName), "barcodes")
}

func (p *Paths) SlotReportsDir(clientID, sessionID, listName string) string {
	return filepath.Join(p.SlotWorkDir(clientID, sessionID, listName), "reports")
}

// StatsFilePath is STATS/stats.json.
func (p *Paths) StatsFilePath() string {
	return filepath.Join(p.StatsRoot(), "stats.json")
}

// HealthCheckDir is SESSIONS/.health/<host> — a reserved per-host slot a
// daemon process locks and heartbeats purely to give LockChecker a real
// target: confirming the daemon's own read/write path to the shared lock
// subsystem works, independent of any operator-owned session.
func (p *Paths) HealthCheckDir(host string) string {
	return filepath.Join(p.SessionsRoot(), ".health", host)
}
