package catalogsync

import (
	"testing"
	"time"

	"github.com/stadam23/tradeup-ev/internal/market"
)

func TestDedupeTags_CollapsesDuplicates(t *testing.T) {
	in := []market.CollectionTag{
		{Tag: "set_dust", Name: "Dust", Count: 10},
		{Tag: "set_dust", Name: "Dust", Count: 10},
		{Tag: "set_italy", Name: "Italy", Count: 5},
	}
	out := dedupeTags(in)
	if len(out) != 2 {
		t.Fatalf("want 2 deduped tags, got %d", len(out))
	}
}

func TestClampDuration_WithinBounds(t *testing.T) {
	got := clampDuration(3000)
	if got != 3*time.Second {
		t.Errorf("clampDuration(3000) = %v, want 3s", got)
	}
}

func TestClampDuration_ClampsBelowFloor(t *testing.T) {
	got := clampDuration(10)
	if got != 1*time.Second {
		t.Errorf("clampDuration(10) = %v, want 1s floor", got)
	}
}

func TestClampDuration_ClampsAboveCeiling(t *testing.T) {
	got := clampDuration(10*60*1000)
	if got != 5*time.Minute {
		t.Errorf("clampDuration(600000) = %v, want 5m ceiling", got)
	}
}

func TestNormalize_LowercasesAndDashesSpaces(t *testing.T) {
	if got := normalize("The Dust Collection"); got != "the-dust-collection" {
		t.Errorf("normalize = %q, want %q", got, "the-dust-collection")
	}
}
