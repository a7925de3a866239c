package stats

import (
	"os"
	"path/filepath"

	"github.com/packhouse/coordinator/pkg/fsutil"
	"github.com/packhouse/coordinator/pkg/types"
)

// Aggregator appends per-slot completion records to the shared stats file.
type Aggregator struct {
	path string
}

// New builds an Aggregator writing to path (profile.Paths.StatsFilePath()).
func New(path string) *Aggregator {
	return &Aggregator{path: path}
}

// Append adds one record under a short-lived advisory lock on a sentinel
// file in the stats directory, read-modify-writing the stats document via
// atomic publish. One call corresponds to one completed slot — callers
// must not pre-aggregate across slots before calling this.
func (a *Aggregator) Append(record types.StatRecord) error {
	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.NewNetworkError("create stats directory", err)
	}

	sentinel, err := fsutil.LockDir(dir)
	if err != nil {
		return types.NewNetworkError("acquire stats sentinel", err)
	}
	defer sentinel.Unlock()

	var file types.StatsFile
	if _, err := os.Stat(a.path); err == nil {
		if err := fsutil.ReadJSONWithRetry(a.path, &file); err != nil {
			return types.NewNetworkError("read stats file", err)
		}
	} else if !os.IsNotExist(err) {
		return types.NewNetworkError("stat stats file", err)
	}

	file.Records = append(file.Records, record)

	if err := fsutil.WriteJSONAtomic(a.path, &file, 0o644); err != nil {
		return types.NewNetworkError("write stats file", err)
	}
	return nil
}

// All returns every record in the stats file.
func (a *Aggregator) All() ([]types.StatRecord, error) {
	var file types.StatsFile
	if _, err := os.Stat(a.path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, types.NewNetworkError("stat stats file", err)
	}
	if err := fsutil.ReadJSONWithRetry(a.path, &file); err != nil {
		return nil, types.NewNetworkError("read stats file", err)
	}
	return file.Records, nil
}
