// Package store declares the façade the Persistent Read Layer and Sync
// Worker depend on. The concrete implementation lives in store/sqlite;
// this package exists so callers can depend on an interface rather than a
// specific engine.
package store

import (
	"context"

	"github.com/stadam23/tradeup-ev/internal/market"
)

// Collection is a row of the collection table.
type Collection struct {
	ID             string
	DisplayName    string
	SteamTag       string
	NormalizedName string
}

// Skin is a row of the skin table.
type Skin struct {
	MarketHashName string
	CollectionID   string
	BaseName       string
	Exterior       market.Exterior
	Rarity         market.Rarity
	IsStatTrak     bool
	IsSouvenir     bool
	SellListings   int
	LastKnownPrice *float64
	FloatMin       *float64
	FloatMax       *float64
}

// SkinFilter narrows a skin query to a rarity and, when normalOnly is set,
// to items that are neither StatTrak nor Souvenir.
type SkinFilter struct {
	CollectionID string
	Rarity       *market.Rarity
	NormalOnly   bool
}

// Store is the persistence façade consumed by the rest of the service.
type Store interface {
	// CollectionFindMany lists every collection, ordered by name ascending.
	CollectionFindMany(ctx context.Context) ([]Collection, error)

	// CollectionFindUnique returns a collection and its skins filtered by
	// filter, or nil when the steamTag is unknown.
	CollectionFindUnique(ctx context.Context, steamTag string, filter SkinFilter) (*Collection, []Skin, error)

	// SkinGroupByRarity counts skins per rarity under filter.
	SkinGroupByRarity(ctx context.Context, filter SkinFilter) (map[market.Rarity]int, error)

	// SkinCount counts skins matching filter.
	SkinCount(ctx context.Context, filter SkinFilter) (int, error)

	// SkinFindMany pages through skins matching filter, ordered by name
	// ascending, skipping skip rows and returning at most take.
	SkinFindMany(ctx context.Context, filter SkinFilter, skip, take int) ([]Skin, error)

	// UpsertCollection upserts collection's row and every skin in skins,
	// then deletes any skin of that collection absent from skins — all in
	// one transaction, per the sync worker's per-collection reconciliation.
	UpsertCollection(ctx context.Context, collection Collection, skins []Skin) error

	// CatalogReady reports whether at least one collection exists.
	CatalogReady(ctx context.Context) (bool, error)
}
