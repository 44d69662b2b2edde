package tradeup

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/stadam23/tradeup-ev/internal/apperr"
	"github.com/stadam23/tradeup-ev/internal/floatcatalog"
	"github.com/stadam23/tradeup-ev/internal/market"
)

// PriceLookup resolves the current buyer price for a marketHashName. It is
// injected so the engine itself never performs I/O; production callers
// back it with the Persistent Read Layer, tests with a fixed map.
type PriceLookup interface {
	PriceUSD(ctx context.Context, marketHashName string) (*float64, error)
}

// CollectionSource resolves the candidate output entries belonging to a
// target collection. Production callers back it with the Persistent Read
// Layer, which reads the store; tests with a fixed table.
type CollectionSource interface {
	Entries(ctx context.Context, collectionID string) ([]CollectionEntry, error)
}

const defaultBuyerToNetRate = 1.15

var validate = validator.New(validator.WithRequiredStructEnabled())

// Engine computes trade-up expected value. It holds no mutable state of
// its own; all lookups go through the injected collaborators.
type Engine struct {
	Collections CollectionSource
	Prices      PriceLookup
	Floats      *floatcatalog.Catalog
}

// New builds an Engine over the given collaborators.
func New(collections CollectionSource, prices PriceLookup, floats *floatcatalog.Catalog) *Engine {
	return &Engine{Collections: collections, Prices: prices, Floats: floats}
}

// Calculate runs the full trade-up EV algorithm for req.
func (e *Engine) Calculate(ctx context.Context, req Request) (*Result, error) {
	if err := validate.Struct(req); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if len(req.Inputs) == 0 {
		return nil, apperr.Fatal("no input items supplied")
	}

	buyerToNetRate := defaultBuyerToNetRate
	if req.Options != nil && req.Options.BuyerToNetRate > 1 {
		buyerToNetRate = req.Options.BuyerToNetRate
	}

	result := &Result{CollectionCounts: map[string]int{}}

	n := len(req.Inputs)
	normalized, mode, warnings := e.normalizeFloats(ctx, req.Inputs)
	result.NormalizedAverageFloat = normalized
	result.NormalizationMode = mode
	result.Warnings = append(result.Warnings, warnings...)

	for _, in := range req.Inputs {
		result.CollectionCounts[in.CollectionID]++
	}

	overrideIndex := indexOverrides(req.TargetOverrides)

	var outcomes []Outcome
	for _, targetID := range req.TargetCollectionIDs {
		entries, err := e.Collections.Entries(ctx, targetID)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			continue
		}
		pC := float64(result.CollectionCounts[targetID]) / float64(n)
		perEntryProb := pC / float64(len(entries))

		for _, entry := range entries {
			outcomes = append(outcomes, e.buildOutcome(targetID, entry, normalized, perEntryProb, overrideIndex))
		}
	}

	if len(outcomes) == 0 {
		return nil, apperr.Fatal("no valid target collection entries")
	}
	for _, o := range outcomes {
		if !o.WithinRange {
			result.Warnings = append(result.Warnings, "roll float for "+o.BaseName+" fell outside its float range and was clamped")
		}
	}

	if err := e.priceOutcomes(ctx, outcomes, buyerToNetRate); err != nil {
		return nil, err
	}
	result.Outcomes = outcomes

	pricedInputs, totalInputNet, err := e.priceInputs(ctx, req.Inputs, buyerToNetRate)
	if err != nil {
		return nil, err
	}
	result.Inputs = pricedInputs
	result.TotalInputNet = totalInputNet

	var totalOutcomeNet, positiveProb float64
	for _, o := range outcomes {
		if o.NetPrice != nil {
			totalOutcomeNet += o.Probability * *o.NetPrice
			if *o.NetPrice > totalInputNet {
				positiveProb += o.Probability
			}
		}
	}
	result.TotalOutcomeNet = totalOutcomeNet
	result.ExpectedValue = totalOutcomeNet - totalInputNet
	result.MaxBudgetPerSlot = totalOutcomeNet / float64(n)
	result.PositiveOutcomeProb = positiveProb

	return result, nil
}

// normalizeFloats computes the [0,1] normalised average float across every
// input slot. If any slot's range cannot be resolved or is zero-width, the
// whole calculation falls back to the plain mean.
func (e *Engine) normalizeFloats(ctx context.Context, inputs []InputSlot) (float64, string, []string) {
	var sum float64
	for _, in := range inputs {
		sum += clamp01(in.Float)
	}
	avg := sum / float64(len(inputs))

	var normSum float64
	for _, in := range inputs {
		minF, maxF, ok := e.resolveRange(ctx, in)
		if !ok || maxF <= minF {
			return avg, "simple", []string{"falling back to simple mean: missing or zero-width float range for an input"}
		}
		n := clamp01((clamp01(in.Float) - minF) / (maxF - minF))
		normSum += n
	}
	return normSum / float64(len(inputs)), "normalized", nil
}

func (e *Engine) resolveRange(ctx context.Context, in InputSlot) (float64, float64, bool) {
	if in.MinFloat != nil && in.MaxFloat != nil {
		return *in.MinFloat, *in.MaxFloat, true
	}
	baseName := market.BaseFromMarketHash(in.MarketHashName)
	r, ok := e.Floats.Lookup(ctx, baseName)
	if !ok {
		return 0, 0, false
	}
	return r.Min, r.Max, true
}

func (e *Engine) buildOutcome(collectionID string, entry CollectionEntry, normalizedAvg, probability float64, overrides map[string]TargetOverride) Outcome {
	minF, maxF := entry.MinFloat, entry.MaxFloat
	baseName := entry.BaseName

	var overrideExterior *market.Exterior
	var overrideName *string
	var overridePrice *float64
	if ov, ok := overrides[overrideKey(collectionID, baseName)]; ok {
		if ov.MinFloat != nil {
			minF = *ov.MinFloat
		}
		if ov.MaxFloat != nil {
			maxF = *ov.MaxFloat
		}
		overrideExterior = ov.Exterior
		overrideName = ov.MarketHashName
		overridePrice = ov.Price
	}

	rollFloat := normalizedAvg*(maxF-minF) + minF
	withinRange := rollFloat >= minF && rollFloat <= maxF
	clamped := clampRange(rollFloat, minF, maxF)

	exterior := market.Bucket(clamped)
	if overrideExterior != nil {
		exterior = *overrideExterior
	}
	wearMin, wearMax := market.WearRange(exterior)

	name := market.ToMarketHashName(baseName, exterior)
	if overrideName != nil {
		name = *overrideName
	}

	o := Outcome{
		CollectionID:   collectionID,
		BaseName:       baseName,
		MinFloat:       minF,
		MaxFloat:       maxF,
		RollFloat:      clamped,
		Exterior:       exterior,
		WearRangeMin:   wearMin,
		WearRangeMax:   wearMax,
		MarketHashName: name,
		Probability:    probability,
		WithinRange:    withinRange,
	}
	if overridePrice != nil {
		o.BuyerPrice = overridePrice
	}
	return o
}

func (e *Engine) priceOutcomes(ctx context.Context, outcomes []Outcome, buyerToNetRate float64) error {
	for i := range outcomes {
		o := &outcomes[i]
		if o.BuyerPrice == nil {
			price, err := e.Prices.PriceUSD(ctx, o.MarketHashName)
			if err != nil {
				o.PriceError = err.Error()
				continue
			}
			o.BuyerPrice = price
		}
		if o.BuyerPrice == nil {
			o.PriceError = "no price available"
			continue
		}
		net := *o.BuyerPrice / buyerToNetRate
		o.NetPrice = &net
	}
	return nil
}

func (e *Engine) priceInputs(ctx context.Context, inputs []InputSlot, buyerToNetRate float64) ([]PricedInput, float64, error) {
	priced := make([]PricedInput, len(inputs))
	var total float64
	for i, in := range inputs {
		p := PricedInput{InputSlot: in}
		if in.PriceOverrideNet != nil {
			p.NetPrice = in.PriceOverrideNet
		} else {
			price, err := e.Prices.PriceUSD(ctx, in.MarketHashName)
			if err != nil {
				p.PriceError = err.Error()
			} else if price != nil {
				net := *price / buyerToNetRate
				p.NetPrice = &net
			} else {
				p.PriceError = "no price available"
			}
		}
		if p.NetPrice != nil {
			total += *p.NetPrice
		}
		priced[i] = p
	}
	return priced, total, nil
}

func indexOverrides(overrides []TargetOverride) map[string]TargetOverride {
	idx := make(map[string]TargetOverride, len(overrides))
	for _, ov := range overrides {
		idx[overrideKey(ov.CollectionID, ov.BaseName)] = ov
	}
	return idx
}

func overrideKey(collectionID, baseName string) string {
	return strings.ToLower(collectionID) + "|" + strings.ToLower(baseName)
}

func clamp01(v float64) float64 { return clampRange(v, 0, 1) }

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
