package tradeup

import (
	"context"
	"math"
	"testing"

	"github.com/stadam23/tradeup-ev/internal/apperr"
	"github.com/stadam23/tradeup-ev/internal/floatcatalog"
)

type fixedCollections map[string][]CollectionEntry

func (f fixedCollections) Entries(_ context.Context, collectionID string) ([]CollectionEntry, error) {
	return f[collectionID], nil
}

type fixedPrices map[string]float64

func (f fixedPrices) PriceUSD(_ context.Context, marketHashName string) (*float64, error) {
	v, ok := f[marketHashName]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestCalculate_HappyPath(t *testing.T) {
	inputs := make([]InputSlot, 10)
	minF, maxF := 0.0, 1.0
	for i := range inputs {
		inputs[i] = InputSlot{
			MarketHashName: "Input Item (Field-Tested)",
			Float:          0.20,
			CollectionID:   "X",
			MinFloat:       &minF,
			MaxFloat:       &maxF,
		}
	}

	collections := fixedCollections{
		"X": {{BaseName: "AK", MinFloat: 0.0, MaxFloat: 0.5}},
	}
	prices := fixedPrices{
		"Input Item (Field-Tested)": 1.15, // net 1.00 at rate 1.15
		"AK (Minimal Wear)":         15.00,
	}

	e := New(collections, prices, floatcatalog.New(""))
	res, err := e.Calculate(context.Background(), Request{
		Inputs:              inputs,
		TargetCollectionIDs: []string{"X"},
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if !almostEqual(res.NormalizedAverageFloat, 0.20) {
		t.Errorf("normalizedAverageFloat = %v, want 0.20", res.NormalizedAverageFloat)
	}
	if len(res.Outcomes) != 1 {
		t.Fatalf("want 1 outcome, got %d", len(res.Outcomes))
	}
	o := res.Outcomes[0]
	if !almostEqual(o.RollFloat, 0.10) {
		t.Errorf("rollFloat = %v, want 0.10", o.RollFloat)
	}
	if o.Exterior != "Minimal Wear" {
		t.Errorf("exterior = %v, want Minimal Wear", o.Exterior)
	}
	if o.NetPrice == nil || !almostEqual(*o.NetPrice, 15.0/1.15) {
		t.Fatalf("netPrice = %v, want ~13.043", o.NetPrice)
	}
	if !almostEqual(o.Probability, 1.0) {
		t.Errorf("probability = %v, want 1", o.Probability)
	}
	wantEV := 15.0/1.15 - 10.0
	if !almostEqual(res.ExpectedValue, wantEV) {
		t.Errorf("expectedValue = %v, want %v", res.ExpectedValue, wantEV)
	}
}

func TestCalculate_MixedCollections(t *testing.T) {
	minF, maxF := 0.0, 1.0
	var inputs []InputSlot
	for i := 0; i < 5; i++ {
		inputs = append(inputs, InputSlot{MarketHashName: "A Item (Field-Tested)", Float: 0.2, CollectionID: "A", MinFloat: &minF, MaxFloat: &maxF})
	}
	for i := 0; i < 5; i++ {
		inputs = append(inputs, InputSlot{MarketHashName: "B Item (Field-Tested)", Float: 0.2, CollectionID: "B", MinFloat: &minF, MaxFloat: &maxF})
	}

	collections := fixedCollections{
		"A": {{BaseName: "AK", MinFloat: 0, MaxFloat: 0.5}},
		"B": {{BaseName: "M4", MinFloat: 0, MaxFloat: 0.5}},
	}
	prices := fixedPrices{
		"A Item (Field-Tested)": 1.15,
		"B Item (Field-Tested)": 1.15,
		"AK (Minimal Wear)":     10,
		"M4 (Minimal Wear)":     10,
	}

	e := New(collections, prices, floatcatalog.New(""))
	res, err := e.Calculate(context.Background(), Request{
		Inputs:              inputs,
		TargetCollectionIDs: []string{"A", "B"},
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if len(res.Outcomes) != 2 {
		t.Fatalf("want 2 outcomes, got %d", len(res.Outcomes))
	}
	for _, o := range res.Outcomes {
		if !almostEqual(o.Probability, 0.5) {
			t.Errorf("probability for %s = %v, want 0.5", o.CollectionID, o.Probability)
		}
	}
}

func TestCalculate_UnknownFloatRangeFallsBackToSimpleMean(t *testing.T) {
	inputs := []InputSlot{
		{MarketHashName: "Unknown Base Item (Field-Tested)", Float: 0.3, CollectionID: "X"},
	}
	collections := fixedCollections{"X": {{BaseName: "AK", MinFloat: 0, MaxFloat: 0.5}}}
	prices := fixedPrices{"AK (Field-Tested)": 5}

	e := New(collections, prices, floatcatalog.New(""))
	res, err := e.Calculate(context.Background(), Request{
		Inputs:              inputs,
		TargetCollectionIDs: []string{"X"},
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.NormalizationMode != "simple" {
		t.Errorf("normalizationMode = %q, want simple", res.NormalizationMode)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a warning for the unresolved float range")
	}
}

func TestCalculate_OutcomeOutOfRangeClampsAndWarns(t *testing.T) {
	minF, maxF := 0.0, 1.0
	inputs := []InputSlot{
		{MarketHashName: "Item (Battle-Scarred)", Float: 0.9, CollectionID: "X", MinFloat: &minF, MaxFloat: &maxF},
	}
	collections := fixedCollections{"X": {{BaseName: "AK", MinFloat: 0.0, MaxFloat: 0.3}}}
	prices := fixedPrices{"AK (Battle-Scarred)": 5}

	e := New(collections, prices, floatcatalog.New(""))
	res, err := e.Calculate(context.Background(), Request{
		Inputs:              inputs,
		TargetCollectionIDs: []string{"X"},
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	o := res.Outcomes[0]
	if o.WithinRange {
		t.Error("expected withinRange = false")
	}
	if o.RollFloat != o.MaxFloat {
		t.Errorf("rollFloat = %v, want clamped to maxFloat %v", o.RollFloat, o.MaxFloat)
	}
}

func TestCalculate_NoInputsIsFatal(t *testing.T) {
	e := New(fixedCollections{}, fixedPrices{}, floatcatalog.New(""))
	_, err := e.Calculate(context.Background(), Request{
		Inputs:              nil,
		TargetCollectionIDs: []string{"X"},
	})
	if err == nil {
		t.Fatal("expected an error for empty inputs")
	}
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.KindFatal {
		t.Fatalf("expected a KindFatal error per spec.md §7, got %v", err)
	}
}

func TestCalculate_NoValidTargetIsFatal(t *testing.T) {
	minF, maxF := 0.0, 1.0
	inputs := []InputSlot{{MarketHashName: "Item (Field-Tested)", Float: 0.2, CollectionID: "X", MinFloat: &minF, MaxFloat: &maxF}}
	e := New(fixedCollections{}, fixedPrices{}, floatcatalog.New(""))
	_, err := e.Calculate(context.Background(), Request{
		Inputs:              inputs,
		TargetCollectionIDs: []string{"nonexistent"},
	})
	if err == nil {
		t.Fatal("expected an error when no target collection resolves entries")
	}
}
