package floatcatalog

import (
	"context"
	"testing"
)

func TestLookup_KnownBaseName(t *testing.T) {
	c := New("")
	r, ok := c.Lookup(context.Background(), "AK-47 | Redline")
	if !ok {
		t.Fatal("expected AK-47 | Redline to resolve from the known table")
	}
	if r.Min != 0.10 || r.Max != 0.70 {
		t.Errorf("range = %+v, want {0.10 0.70}", r)
	}
}

func TestLookup_UnknownWithNoRemoteSourceReturnsFalse(t *testing.T) {
	c := New("")
	_, ok := c.Lookup(context.Background(), "Totally Unknown Skin")
	if ok {
		t.Fatal("expected unknown base name with no remote source to return false")
	}
}

func TestLookup_IsCaseAndWhitespaceInsensitive(t *testing.T) {
	c := New("")
	_, ok := c.Lookup(context.Background(), "  ak-47 | redline  ")
	if !ok {
		t.Fatal("expected normalized lookup to still resolve")
	}
}

func TestMergeWidest(t *testing.T) {
	a := Range{Min: 0.10, Max: 0.50}
	b := Range{Min: 0.05, Max: 0.60}
	got := mergeWidest(a, b)
	if got.Min != 0.05 || got.Max != 0.60 {
		t.Errorf("mergeWidest = %+v, want {0.05 0.60}", got)
	}
}
