package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stadam23/tradeup-ev/internal/floatcatalog"
	"github.com/stadam23/tradeup-ev/internal/tradeup"
)

// POST /api/tradeups/calculate is tested here by leaving read and queue
// nil — handleCalculate only ever touches s.engine, which is pure and
// collaborator-injected, so the HTTP surface can be exercised without a
// database or Redis connection, the same technique the teacher uses for
// its own config-only route test.

type fixedCollections map[string][]tradeup.CollectionEntry

func (f fixedCollections) Entries(_ context.Context, collectionID string) ([]tradeup.CollectionEntry, error) {
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

func TestHandleCalculate_ReturnsExpectedValue(t *testing.T) {
	inputs := make([]tradeup.InputSlot, 10)
	minF, maxF := 0.0, 1.0
	for i := range inputs {
		inputs[i] = tradeup.InputSlot{
			MarketHashName: "Input Item (Field-Tested)",
			Float:          0.20,
			CollectionID:   "X",
			MinFloat:       &minF,
			MaxFloat:       &maxF,
		}
	}

	collections := fixedCollections{"X": {{BaseName: "AK", MinFloat: 0.0, MaxFloat: 0.5}}}
	prices := fixedPrices{
		"Input Item (Field-Tested)": 1.15,
		"AK (Minimal Wear)":         15.00,
	}
	engine := tradeup.New(collections, prices, floatcatalog.New(""))
	srv := New(nil, engine, nil)

	body, err := json.Marshal(tradeup.Request{Inputs: inputs, TargetCollectionIDs: []string{"X"}})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/tradeups/calculate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", rec.Code, rec.Body.String())
	}

	var result tradeup.Result
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Outcomes) != 1 {
		t.Fatalf("want 1 outcome, got %d", len(result.Outcomes))
	}
	if result.ExpectedValue <= 0 {
		t.Errorf("expected a positive expected value, got %v", result.ExpectedValue)
	}
}

func TestHandleCalculate_EmptyInputsIsBadRequest(t *testing.T) {
	engine := tradeup.New(fixedCollections{}, fixedPrices{}, floatcatalog.New(""))
	srv := New(nil, engine, nil)

	body, err := json.Marshal(tradeup.Request{TargetCollectionIDs: []string{"X"}})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/tradeups/calculate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCalculate_MalformedBodyIsBadRequest(t *testing.T) {
	engine := tradeup.New(fixedCollections{}, fixedPrices{}, floatcatalog.New(""))
	srv := New(nil, engine, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/tradeups/calculate", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
}
