package packing

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/packhouse/coordinator/pkg/fsutil"
	"github.com/packhouse/coordinator/pkg/metrics"
	"github.com/packhouse/coordinator/pkg/types"
)

// Clock abstracts time.Now so per-order timing is testable without
// sleeping through real seconds.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// sourceItem and sourceOrder model a structured packing-list bundle with
// an `orders` array. Tabular spreadsheets mapped via column mapping are
// not accepted here; upstream tooling is responsible for producing this
// JSON shape.
type sourceItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type sourceOrder struct {
	OrderNumber string       `json:"order_number"`
	Courier     string       `json:"courier"`
	Items       []sourceItem `json:"items"`
}

type sourceBundle struct {
	Orders []sourceOrder `json:"orders"`
}

// StartOutcome tags what start_order observed.
type StartOutcome int

const (
	StartUnknown StartOutcome = iota
	StartAlreadyCompleted
	StartResumed
)

// ScanOutcome tags what scan_sku observed.
type ScanOutcome int

const (
	ScanAccepted ScanOutcome = iota
	ScanWrongSKU
	ScanOverScan
	ScanNoOrderSelected
)

// ScanResult carries scan_sku's accepted-path fields.
type ScanResult struct {
	Outcome       ScanOutcome
	SKU           types.SKU
	Packed        int
	Required      int
	OrderComplete bool
}

// Engine is the Packing State Engine. It is not safe for concurrent use —
// the Session Manager serializes access to one Engine per slot behind the
// slot's lock.
type Engine struct {
	statePath string
	clock     Clock
	state     *types.PackingState

	current *types.Order
}

// NewEngine constructs an Engine for a slot whose durable state lives at
// statePath. It always initializes state to NewPackingState's empty
// defaults first, then — if a state file already exists — loads it over
// those defaults last, so a resumed engine never silently drops a field
// the loaded file doesn't carry.
func NewEngine(clientID types.ClientID, statePath string) (*Engine, error) {
	return newEngineWithClock(clientID, statePath, realClock{})
}

// NewEngineWithClock lets tests inject a fake Clock for per-order timing
// assertions.
func NewEngineWithClock(clientID types.ClientID, statePath string, clock Clock) (*Engine, error) {
	return newEngineWithClock(clientID, statePath, clock)
}

func newEngineWithClock(clientID types.ClientID, statePath string, clock Clock) (*Engine, error) {
	e := &Engine{
		statePath: statePath,
		clock:     clock,
		state:     types.NewPackingState(clientID),
	}

	if _, err := os.Stat(statePath); err == nil {
		if err := fsutil.ReadJSONWithRetry(statePath, e.state); err != nil {
			return nil, fmt.Errorf("load packing state: %w", err)
		}
		if e.state.InProgress == nil {
			e.state.InProgress = make(map[string]*types.Order)
		}
		if e.state.Loaded == nil {
			e.state.Loaded = make(map[string]*types.Order)
		}
		if e.state.Completed == nil {
			e.state.Completed = make([]string, 0)
		}
		if e.state.Skipped == nil {
			e.state.Skipped = make([]string, 0)
		}
		if e.state.CompletedOrdersMetadata == nil {
			e.state.CompletedOrdersMetadata = make([]types.CompletedRecord, 0)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat packing state: %w", err)
	}

	return e, nil
}

// State returns the engine's current in-memory state. Callers must treat
// it as read-only; Engine methods are the only sanctioned mutators.
func (e *Engine) State() *types.PackingState {
	return e.state
}

// LoadOrders parses the structured JSON bundle schema. Enforcement is
// strict: a missing order number, courier, SKU, or quantity fails the
// whole load with no partial application and no synthesized defaults —
// there is no silent "Unknown" courier fallback.
func (e *Engine) LoadOrders(source []byte) (int, error) {
	var bundle sourceBundle
	if err := json.Unmarshal(source, &bundle); err != nil {
		return 0, types.NewValidationError(fmt.Sprintf("invalid source bundle: %v", err))
	}
	if len(bundle.Orders) == 0 {
		return 0, types.NewValidationError("source bundle has no orders")
	}

	loaded := make(map[string]*types.Order, len(bundle.Orders))
	for _, so := range bundle.Orders {
		if so.OrderNumber == "" {
			return 0, types.NewValidationError("missing field: order_number")
		}
		if so.Courier == "" {
			return 0, types.NewValidationError("missing field: courier")
		}
		if len(so.Items) == 0 {
			return 0, types.NewValidationError(fmt.Sprintf("order %s: no items", so.OrderNumber))
		}

		items := make([]*types.Item, 0, len(so.Items))
		for _, si := range so.Items {
			if si.SKU == "" {
				return 0, types.NewValidationError(fmt.Sprintf("order %s: missing field: sku", so.OrderNumber))
			}
			if si.Quantity < 1 {
				return 0, types.NewValidationError(fmt.Sprintf("order %s: missing field: quantity", so.OrderNumber))
			}
			items = append(items, &types.Item{
				SKU:           types.SKU(si.SKU),
				NormalizedSKU: types.NormalizeSKU(si.SKU),
				Required:      si.Quantity,
			})
		}

		loaded[normalizeOrderKey(so.OrderNumber)] = &types.Order{
			Number:  so.OrderNumber,
			Courier: so.Courier,
			Items:   items,
		}
	}

	for k, v := range loaded {
		e.state.Loaded[k] = v
	}
	return len(loaded), nil
}

func normalizeOrderKey(orderNumber string) string {
	return types.NormalizeSKU(orderNumber)
}

// StartOrder selects an order for scanning. barcode may be either a raw
// scanned barcode or a typed order number; both are normalized identically
// before lookup.
func (e *Engine) StartOrder(barcode string) (StartOutcome, *types.Order, error) {
	key := normalizeOrderKey(barcode)

	for _, num := range e.state.Completed {
		if normalizeOrderKey(num) == key {
			return StartAlreadyCompleted, nil, nil
		}
	}

	if order, ok := e.state.InProgress[key]; ok {
		e.current = order
		return StartResumed, order, nil
	}

	order, ok := e.state.Loaded[key]
	if !ok {
		return StartUnknown, nil, nil
	}

	order.StartedAt = e.clock.Now()
	delete(e.state.Loaded, key)
	e.state.InProgress[key] = order
	e.current = order

	return StartResumed, order, nil
}

// ScanSKU matches a scanned barcode in order: normalize, resolve through
// the alias table, find the matching item in the currently started order,
// then accept/reject. Every accepted scan triggers a durable write before
// return. An order stays selected after it completes, so a further scan of
// one of its SKUs reports over_scan.
func (e *Engine) ScanSKU(profile *types.ClientProfile, orderNumber, rawBarcode string) (ScanResult, error) {
	key := normalizeOrderKey(orderNumber)
	order, ok := e.state.InProgress[key]
	if !ok && e.current != nil && normalizeOrderKey(e.current.Number) == key && e.current.IsComplete() {
		order, ok = e.current, true
	}
	if !ok || e.current == nil || normalizeOrderKey(e.current.Number) != key {
		return ScanResult{Outcome: ScanNoOrderSelected}, nil
	}

	canonical := profile.CanonicalSKU(rawBarcode)
	item := order.FindItem(canonical)
	if item == nil {
		metrics.ScansTotal.WithLabelValues("wrong_sku").Inc()
		return ScanResult{Outcome: ScanWrongSKU, SKU: types.SKU(rawBarcode)}, nil
	}
	if item.Packed >= item.Required {
		metrics.ScansTotal.WithLabelValues("over_scan").Inc()
		return ScanResult{Outcome: ScanOverScan, SKU: item.SKU, Packed: item.Packed, Required: item.Required}, nil
	}

	now := e.clock.Now()
	item.Packed++
	order.Events = append(order.Events, types.ScanEvent{
		SKU:                       item.SKU,
		Quantity:                  1,
		ScannedAt:                 now,
		TimeFromOrderStartSeconds: now.Sub(order.StartedAt).Seconds(),
	})

	metrics.ScansTotal.WithLabelValues("accepted").Inc()
	result := ScanResult{
		Outcome:  ScanAccepted,
		SKU:      item.SKU,
		Packed:   item.Packed,
		Required: item.Required,
	}

	if order.IsComplete() {
		order.CompletedAt = now
		delete(e.state.InProgress, key)
		e.state.Completed = append(e.state.Completed, order.Number)
		e.state.CompletedOrdersMetadata = append(e.state.CompletedOrdersMetadata, types.CompletedRecord{
			OrderNumber:     order.Number,
			StartedAt:       order.StartedAt,
			CompletedAt:     order.CompletedAt,
			DurationSeconds: order.CompletedAt.Sub(order.StartedAt).Seconds(),
			ItemsCount:      len(order.Events),
			Items:           order.Events,
		})
		result.OrderComplete = true
		metrics.OrdersCompletedTotal.WithLabelValues(string(e.state.ClientID)).Inc()
	}

	if err := e.persist(); err != nil {
		return ScanResult{}, err
	}
	return result, nil
}

// SkipOrder removes an order from further consideration without marking it
// complete.
func (e *Engine) SkipOrder(orderNumber string) error {
	key := normalizeOrderKey(orderNumber)

	if order, ok := e.state.InProgress[key]; ok {
		delete(e.state.InProgress, key)
		e.state.Skipped = append(e.state.Skipped, order.Number)
		if e.current == order {
			e.current = nil
		}
		return e.persist()
	}
	if order, ok := e.state.Loaded[key]; ok {
		delete(e.state.Loaded, key)
		e.state.Skipped = append(e.state.Skipped, order.Number)
		return e.persist()
	}
	return types.NewInvalidStateError(fmt.Sprintf("skip_order: order not found: %s", orderNumber))
}

// GenerateSummary produces the final session summary. sessionID, listName,
// worker, startedAt and endedAt come from the Session Manager, which owns
// session-level timing and identity; the engine only knows order-level
// timing. worker is carried into the summary so Session Discovery can
// resolve a completed slot's operator without a lock or marker to read.
func (e *Engine) GenerateSummary(sessionID, listName string, worker types.WorkerIdentity, startedAt, endedAt time.Time) types.SessionSummary {
	duration := endedAt.Sub(startedAt).Seconds()

	summary := types.SessionSummary{
		ClientID:        e.state.ClientID,
		SessionID:       sessionID,
		ListName:        listName,
		Worker:          worker,
		StartedAt:       startedAt,
		EndedAt:         endedAt,
		DurationSeconds: duration,
		TotalOrders:     len(e.state.Completed) + len(e.state.Skipped) + len(e.state.InProgress) + len(e.state.Loaded),
		CompletedOrders: len(e.state.Completed),
		SkippedOrders:   len(e.state.Skipped),
	}

	if len(e.state.CompletedOrdersMetadata) > 0 {
		summary.Orders = e.state.CompletedOrdersMetadata
	} else if len(e.state.Completed) > 0 {
		// Legacy/incomplete metadata: derive per-order placeholders with no
		// per-order timing, since there is no data to attribute it to a
		// single order.
		summary.Orders = make([]types.CompletedRecord, len(e.state.Completed))
		for i, num := range e.state.Completed {
			summary.Orders[i] = types.CompletedRecord{OrderNumber: num}
		}
	}

	totalItems := 0
	var totalOrderSeconds, fastest, slowest float64
	fastest = -1
	for _, rec := range summary.Orders {
		totalItems += rec.ItemsCount
		if rec.DurationSeconds == 0 {
			continue
		}
		totalOrderSeconds += rec.DurationSeconds
		if fastest < 0 || rec.DurationSeconds < fastest {
			fastest = rec.DurationSeconds
		}
		if rec.DurationSeconds > slowest {
			slowest = rec.DurationSeconds
		}
	}
	summary.TotalItems = totalItems
	if fastest < 0 {
		fastest = 0
	}

	metrics := types.OrderMetrics{
		FastestOrderSeconds: fastest,
		SlowestOrderSeconds: slowest,
	}
	if duration > 0 {
		metrics.OrdersPerHour = float64(summary.CompletedOrders) / duration * 3600
		metrics.ItemsPerHour = float64(totalItems) / duration * 3600
	}
	if summary.CompletedOrders > 0 {
		metrics.AvgItemsPerOrder = float64(totalItems) / float64(summary.CompletedOrders)
	}
	withTiming := 0
	for _, rec := range summary.Orders {
		if rec.DurationSeconds > 0 {
			withTiming++
		}
	}
	if withTiming > 0 {
		metrics.AvgOrderDurationSeconds = totalOrderSeconds / float64(withTiming)
	} else if summary.CompletedOrders > 0 && duration > 0 {
		metrics.AvgOrderDurationSeconds = duration / float64(summary.CompletedOrders)
	}
	summary.Metrics = metrics

	return summary
}

// persist writes the packing state via atomic publish after every accepted
// scan, so a crash mid-scan never loses more than the in-flight request.
func (e *Engine) persist() error {
	e.state.Timestamp = e.clock.Now()
	if err := fsutil.WriteJSONAtomic(e.statePath, e.state, 0o644); err != nil {
		return types.NewNetworkError("write packing state", err)
	}
	return nil
}
