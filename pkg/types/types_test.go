package types

import "testing"

func TestNormalizeSKU(t *testing.T) {
	cases := map[string]string{
		"  8594123456789 ": "8594123456789",
		"SKU-001":          "sku-001",
		"Sku 001":          "sku001",
		"":                 "",
	}
	for in, want := range cases {
		if got := NormalizeSKU(in); got != want {
			t.Errorf("NormalizeSKU(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClientProfileCanonicalSKU(t *testing.T) {
	p := &ClientProfile{
		SKUAliases: map[string]string{
			"8594123456789": "SKU-001",
		},
	}
	if got := p.CanonicalSKU("  8594123456789 "); got != "sku-001" {
		t.Errorf("CanonicalSKU alias = %q, want sku-001", got)
	}
	if got := p.CanonicalSKU("SKU-002"); got != "sku-002" {
		t.Errorf("CanonicalSKU passthrough = %q, want sku-002", got)
	}
}

func TestOrderIsComplete(t *testing.T) {
	o := &Order{Items: []*Item{
		{SKU: "A", NormalizedSKU: "a", Required: 2, Packed: 2},
		{SKU: "B", NormalizedSKU: "b", Required: 1, Packed: 0},
	}}
	if o.IsComplete() {
		t.Fatal("expected incomplete order")
	}
	o.Items[1].Packed = 1
	if !o.IsComplete() {
		t.Fatal("expected complete order")
	}
}

func TestNewPackingStateInitializesAllFields(t *testing.T) {
	s := NewPackingState("client-1")
	if s.InProgress == nil || s.Completed == nil || s.Skipped == nil ||
		s.CompletedOrdersMetadata == nil || s.Loaded == nil {
		t.Fatal("NewPackingState must initialize every field to a non-nil empty default")
	}
}

func TestErrorIsMatchesOnKind(t *testing.T) {
	err := NewLockedError(&Lock{HolderHost: "host-a"})
	if !errorIs(err, &Error{Kind: KindSessionLocked}) {
		t.Fatal("expected Kind match")
	}
	if errorIs(err, &Error{Kind: KindStaleLock}) {
		t.Fatal("expected Kind mismatch to not match")
	}
}

func errorIs(err *Error, target *Error) bool {
	return err.Is(target)
}
