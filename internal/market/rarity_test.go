package market

import "testing"

func TestRarity_BelowWalksTheLadderDown(t *testing.T) {
	below, ok := Covert.Below()
	if !ok || below != Classified {
		t.Fatalf("Covert.Below() = (%v, %v), want (Classified, true)", below, ok)
	}
}

func TestRarity_BelowFloorIsFalse(t *testing.T) {
	_, ok := Consumer.Below()
	if ok {
		t.Fatal("expected Consumer.Below() to report false at the floor of the ladder")
	}
}

func TestRarity_TagIsStable(t *testing.T) {
	if Covert.Tag() == "" {
		t.Fatal("expected Covert to have a non-empty vendor tag")
	}
}
