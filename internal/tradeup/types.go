// Package tradeup is the pure expected-value computation engine: given ten
// owned input items and a set of candidate output collections, it derives
// the normalised average float, projects it onto each candidate output,
// and reports the resulting probability distribution and expected value.
// Nothing in this package performs I/O; price and collection-entry lookups
// are injected so the algorithm itself stays deterministic and testable.
package tradeup

import "github.com/stadam23/tradeup-ev/internal/market"

// InputSlot is one of the ten owned items fed into a trade-up calculation.
type InputSlot struct {
	MarketHashName   string   `validate:"required"`
	Float            float64  `validate:"gte=0,lte=1"`
	CollectionID     string   `validate:"required"`
	MinFloat         *float64
	MaxFloat         *float64
	PriceOverrideNet *float64
}

// Options tunes the commission conversion; BuyerToNetRate must exceed 1
// when supplied explicitly.
type Options struct {
	BuyerToNetRate float64 `validate:"omitempty,gt=1"`
}

// TargetOverride substitutes an output entry's range, name, price, or
// exterior for a specific (collectionID, baseName) pair. Resolution is
// case-insensitive on both keys.
type TargetOverride struct {
	CollectionID   string
	BaseName       string
	MinFloat       *float64
	MaxFloat       *float64
	MarketHashName *string
	Price          *float64
	Exterior       *market.Exterior
}

// Request is the full input to a single calculation. Inputs has no
// required/min validator tag: an empty slice must reach Calculate's own
// check so it surfaces as the KindFatal "empty inputs" error spec.md §7
// assigns it, not a KindValidation one.
type Request struct {
	Inputs              []InputSlot `validate:"max=10,dive"`
	TargetCollectionIDs []string    `validate:"required,min=1"`
	Options             *Options
	TargetOverrides     []TargetOverride
}

// PricedInput is an input slot after net-price resolution.
type PricedInput struct {
	InputSlot
	NetPrice   *float64
	PriceError string
}

// Outcome is one possible output entry of a candidate target collection,
// fully priced and probability-weighted.
type Outcome struct {
	CollectionID   string
	BaseName       string
	MinFloat       float64
	MaxFloat       float64
	RollFloat      float64
	Exterior       market.Exterior
	WearRangeMin   float64
	WearRangeMax   float64
	MarketHashName string
	Probability    float64
	BuyerPrice     *float64
	NetPrice       *float64
	PriceError     string
	WithinRange    bool
}

// Result is the full report of a calculation.
type Result struct {
	NormalizedAverageFloat float64
	NormalizationMode      string // "normalized" | "simple"
	CollectionCounts       map[string]int
	Inputs                 []PricedInput
	Outcomes               []Outcome
	TotalInputNet          float64
	TotalOutcomeNet        float64
	ExpectedValue          float64
	MaxBudgetPerSlot       float64
	PositiveOutcomeProb    float64
	Warnings               []string
}

// CollectionEntry is one output candidate belonging to a target collection:
// a base name together with its known float range.
type CollectionEntry struct {
	BaseName string
	MinFloat float64
	MaxFloat float64
}
