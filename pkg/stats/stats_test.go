package stats

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/packhouse/coordinator/pkg/types"
)

func TestAppendAccumulates(t *testing.T) {
	dir := t.TempDir()
	a := New(filepath.Join(dir, "stats.json"))

	if err := a.Append(types.StatRecord{SessionID: "sess-1", ListName: "list-a", OrderCount: 45, ItemCount: 90}); err != nil {
		t.Fatal(err)
	}
	if err := a.Append(types.StatRecord{SessionID: "sess-1", ListName: "list-b", OrderCount: 32, ItemCount: 60}); err != nil {
		t.Fatal(err)
	}
	if err := a.Append(types.StatRecord{SessionID: "sess-1", ListName: "list-c", OrderCount: 18, ItemCount: 40}); err != nil {
		t.Fatal(err)
	}

	records, err := a.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected three distinct per-list records, got %d: %+v", len(records), records)
	}

	seen := map[string]int{}
	for _, r := range records {
		seen[r.ListName] = r.OrderCount
	}
	if seen["list-a"] != 45 || seen["list-b"] != 32 || seen["list-c"] != 18 {
		t.Fatalf("expected distinct order counts per list, got %+v", seen)
	}
}

func TestAppendConcurrentFromMultipleSlots(t *testing.T) {
	dir := t.TempDir()
	a := New(filepath.Join(dir, "stats.json"))

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			if err := a.Append(types.StatRecord{SessionID: "sess-1", ListName: "list", OrderCount: i}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	records, err := a.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != n {
		t.Fatalf("expected %d appended records with no lost updates, got %d", n, len(records))
	}
}
