package packing

import (
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packhouse/coordinator/pkg/types"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }
func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func singleOrderBundle() []byte {
	b, _ := json.Marshal(sourceBundle{Orders: []sourceOrder{
		{OrderNumber: "ORD-1", Courier: "UPS", Items: []sourceItem{{SKU: "SKU-001", Quantity: 2}}},
	}})
	return b
}

func newEngine(t *testing.T, clock *fakeClock) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "packing_state.json")
	e, err := NewEngineWithClock("acme", path, clock)
	require.NoError(t, err)
	return e, path
}

func TestHappyPathSingleOrder(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	e, _ := newEngine(t, clock)
	profile := &types.ClientProfile{ClientID: "acme"}

	if _, err := e.LoadOrders(singleOrderBundle()); err != nil {
		t.Fatal(err)
	}
	if outcome, _, err := e.StartOrder("ord-1"); err != nil || outcome != StartResumed {
		t.Fatalf("start: outcome=%v err=%v", outcome, err)
	}

	res, err := e.ScanSKU(profile, "ORD-1", "SKU-001")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != ScanAccepted || res.Packed != 1 || res.Required != 2 || res.OrderComplete {
		t.Fatalf("unexpected first scan result: %+v", res)
	}

	res, err = e.ScanSKU(profile, "ORD-1", "SKU-001")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != ScanAccepted || res.Packed != 2 || !res.OrderComplete {
		t.Fatalf("unexpected second scan result: %+v", res)
	}

	if len(e.state.Completed) != 1 || e.state.Completed[0] != "ORD-1" {
		t.Fatalf("expected order completed, got %+v", e.state.Completed)
	}

	summary := e.GenerateSummary("sess-1", "list-a", types.WorkerIdentity{ID: "w1", Name: "Alice"}, clock.now.Add(-time.Hour), clock.now)
	if summary.CompletedOrders != 1 || summary.TotalItems != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestAliasSubstitution(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	e, _ := newEngine(t, clock)
	profile := &types.ClientProfile{
		ClientID:   "acme",
		SKUAliases: map[string]string{"8594123456789": "SKU-001"},
	}

	bundle, _ := json.Marshal(sourceBundle{Orders: []sourceOrder{
		{OrderNumber: "ORD-2", Courier: "UPS", Items: []sourceItem{{SKU: "SKU-001", Quantity: 1}}},
	}})
	if _, err := e.LoadOrders(bundle); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.StartOrder("ORD-2"); err != nil {
		t.Fatal(err)
	}

	res, err := e.ScanSKU(profile, "ORD-2", "  8594123456789 ")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != ScanAccepted || !res.OrderComplete || res.SKU != "SKU-001" {
		t.Fatalf("unexpected alias scan result: %+v", res)
	}
}

func TestOverScan(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	e, _ := newEngine(t, clock)
	profile := &types.ClientProfile{ClientID: "acme"}

	bundle, _ := json.Marshal(sourceBundle{Orders: []sourceOrder{
		{OrderNumber: "ORD-3", Courier: "UPS", Items: []sourceItem{{SKU: "SKU-001", Quantity: 1}}},
	}})
	if _, err := e.LoadOrders(bundle); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.StartOrder("ORD-3"); err != nil {
		t.Fatal(err)
	}
	if res, err := e.ScanSKU(profile, "ORD-3", "SKU-001"); err != nil || !res.OrderComplete {
		t.Fatalf("expected first scan to complete order: %+v, err=%v", res, err)
	}

	res, err := e.ScanSKU(profile, "ORD-3", "SKU-001")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != ScanOverScan {
		t.Fatalf("expected over_scan, got %v", res.Outcome)
	}
	if e.state.CompletedOrdersMetadata[0].ItemsCount != 1 {
		t.Fatal("over-scan must not mutate the completed record")
	}
}

func TestRescanCompletedOrderIsAlreadyCompleted(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	e, _ := newEngine(t, clock)
	profile := &types.ClientProfile{ClientID: "acme"}

	if _, err := e.LoadOrders(singleOrderBundle()); err != nil {
		t.Fatal(err)
	}
	e.StartOrder("ORD-1")
	e.ScanSKU(profile, "ORD-1", "SKU-001")
	e.ScanSKU(profile, "ORD-1", "SKU-001")

	outcome, order, err := e.StartOrder("ORD-1")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != StartAlreadyCompleted || order != nil {
		t.Fatalf("expected already_completed, got %v %+v", outcome, order)
	}
	if len(e.state.Completed) != 1 {
		t.Fatal("rescanning a completed order must not duplicate it")
	}
}

func TestLoadOrdersRejectsMissingFields(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	e, _ := newEngine(t, clock)

	bundle, _ := json.Marshal(sourceBundle{Orders: []sourceOrder{
		{OrderNumber: "", Courier: "UPS", Items: []sourceItem{{SKU: "SKU-001", Quantity: 1}}},
	}})
	if _, err := e.LoadOrders(bundle); err == nil {
		t.Fatal("expected error for missing order_number")
	}

	bundle2, _ := json.Marshal(sourceBundle{Orders: []sourceOrder{
		{OrderNumber: "ORD-1", Courier: "", Items: []sourceItem{{SKU: "SKU-001", Quantity: 1}}},
	}})
	if _, err := e.LoadOrders(bundle2); err == nil {
		t.Fatal("expected error for missing courier; silent defaulting to Unknown must not happen")
	}
}

func TestMultiDayResume(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	dir := t.TempDir()
	statePath := filepath.Join(dir, "packing_state.json")
	profile := &types.ClientProfile{ClientID: "acme"}

	var orders []sourceOrder
	for i := 0; i < 25; i++ {
		orders = append(orders, sourceOrder{
			OrderNumber: "DAY1-" + strconv.Itoa(i),
			Courier:     "UPS",
			Items:       []sourceItem{{SKU: "SKU-001", Quantity: 1}},
		})
	}
	bundle, _ := json.Marshal(sourceBundle{Orders: orders})

	e1, err := NewEngineWithClock("acme", statePath, clock)
	require.NoError(t, err)
	_, err = e1.LoadOrders(bundle)
	require.NoError(t, err)
	for i := 0; i < 25; i++ {
		num := "DAY1-" + strconv.Itoa(i)
		e1.StartOrder(num)
		e1.ScanSKU(profile, num, "SKU-001")
	}
	require.Len(t, e1.state.CompletedOrdersMetadata, 25, "expected 25 completed records day 1")

	// Simulate a crash/restart: reconstruct a fresh Engine against the same
	// state file.
	clock.advance(24 * time.Hour)
	e2, err := NewEngineWithClock("acme", statePath, clock)
	require.NoError(t, err)
	require.Len(t, e2.state.CompletedOrdersMetadata, 25, "expected reload to preserve 25 completed records")

	var day2 []sourceOrder
	for i := 0; i < 25; i++ {
		day2 = append(day2, sourceOrder{
			OrderNumber: "DAY2-" + strconv.Itoa(i),
			Courier:     "UPS",
			Items:       []sourceItem{{SKU: "SKU-001", Quantity: 1}},
		})
	}
	bundle2, _ := json.Marshal(sourceBundle{Orders: day2})
	_, err = e2.LoadOrders(bundle2)
	require.NoError(t, err)
	for i := 0; i < 25; i++ {
		num := "DAY2-" + strconv.Itoa(i)
		e2.StartOrder(num)
		e2.ScanSKU(profile, num, "SKU-001")
	}

	assert.Len(t, e2.state.CompletedOrdersMetadata, 50, "expected 50 completed records after day 2")
	assert.Equal(t, len(e2.state.CompletedOrdersMetadata), len(e2.state.Completed), "P4 violated: completed and completed_orders_metadata lengths diverged")
}

func TestSkipOrderDoesNotCountTowardCompletion(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	e, _ := newEngine(t, clock)

	if _, err := e.LoadOrders(singleOrderBundle()); err != nil {
		t.Fatal(err)
	}
	if err := e.SkipOrder("ORD-1"); err != nil {
		t.Fatal(err)
	}
	if len(e.state.Skipped) != 1 || len(e.state.Completed) != 0 {
		t.Fatalf("unexpected state after skip: %+v", e.state)
	}
}

func TestInvariantsPairwiseDisjointAndBounded(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	e, _ := newEngine(t, clock)
	profile := &types.ClientProfile{ClientID: "acme"}

	bundle, _ := json.Marshal(sourceBundle{Orders: []sourceOrder{
		{OrderNumber: "A", Courier: "UPS", Items: []sourceItem{{SKU: "S1", Quantity: 1}}},
		{OrderNumber: "B", Courier: "UPS", Items: []sourceItem{{SKU: "S1", Quantity: 1}}},
		{OrderNumber: "C", Courier: "UPS", Items: []sourceItem{{SKU: "S1", Quantity: 1}}},
	}})
	_, err := e.LoadOrders(bundle)
	require.NoError(t, err)

	e.StartOrder("A")
	e.ScanSKU(profile, "A", "S1")
	e.StartOrder("B")
	e.SkipOrder("C")

	inProgress := map[string]bool{}
	for k := range e.state.InProgress {
		inProgress[k] = true
	}
	for _, c := range e.state.Completed {
		assert.Falsef(t, inProgress[normalizeOrderKey(c)], "P2 violated: order %q present in both in_progress and completed", c)
	}
	for _, o := range e.state.InProgress {
		for _, it := range o.Items {
			assert.GreaterOrEqualf(t, it.Packed, 0, "P1 violated: %+v", it)
			assert.LessOrEqualf(t, it.Packed, it.Required, "P1 violated: %+v", it)
			assert.GreaterOrEqualf(t, it.Required, 1, "P1 violated: %+v", it)
		}
	}
}

