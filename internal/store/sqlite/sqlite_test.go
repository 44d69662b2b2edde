package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stadam23/tradeup-ev/internal/market"
	"github.com/stadam23/tradeup-ev/internal/store"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCatalogReady_FalseUntilFirstUpsert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ready, err := db.CatalogReady(ctx)
	if err != nil {
		t.Fatalf("CatalogReady: %v", err)
	}
	if ready {
		t.Fatal("expected catalog-ready to be false before any collection exists")
	}

	err = db.UpsertCollection(ctx, store.Collection{ID: "set_dust", DisplayName: "Dust", SteamTag: "set_dust"}, nil)
	if err != nil {
		t.Fatalf("UpsertCollection: %v", err)
	}

	ready, err = db.CatalogReady(ctx)
	if err != nil {
		t.Fatalf("CatalogReady: %v", err)
	}
	if !ready {
		t.Fatal("expected catalog-ready to be true after a collection exists")
	}
}

func TestUpsertCollection_ReconcilesExactSet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	collection := store.Collection{ID: "set_dust", DisplayName: "Dust", SteamTag: "set_dust"}
	initial := []store.Skin{
		{MarketHashName: "AK-47 | Redline (Field-Tested)", CollectionID: "set_dust", BaseName: "AK-47 | Redline", Exterior: market.FieldTested, Rarity: market.Classified},
		{MarketHashName: "M4A4 | Howl (Minimal Wear)", CollectionID: "set_dust", BaseName: "M4A4 | Howl", Exterior: market.MinimalWear, Rarity: market.Covert},
	}
	if err := db.UpsertCollection(ctx, collection, initial); err != nil {
		t.Fatalf("UpsertCollection (initial): %v", err)
	}

	rarity := market.Classified
	skins, err := db.SkinFindMany(ctx, store.SkinFilter{CollectionID: "set_dust"}, 0, 0)
	if err != nil {
		t.Fatalf("SkinFindMany: %v", err)
	}
	if len(skins) != 2 {
		t.Fatalf("want 2 skins after initial upsert, got %d", len(skins))
	}

	// Second sync run observes only one of the two items: reconciliation
	// must delete the one that disappeared.
	second := []store.Skin{initial[0]}
	if err := db.UpsertCollection(ctx, collection, second); err != nil {
		t.Fatalf("UpsertCollection (second): %v", err)
	}

	skins, err = db.SkinFindMany(ctx, store.SkinFilter{CollectionID: "set_dust"}, 0, 0)
	if err != nil {
		t.Fatalf("SkinFindMany: %v", err)
	}
	if len(skins) != 1 {
		t.Fatalf("want 1 skin after reconciliation, got %d", len(skins))
	}
	if skins[0].MarketHashName != initial[0].MarketHashName {
		t.Fatalf("wrong skin survived reconciliation: %s", skins[0].MarketHashName)
	}

	_, err = db.SkinGroupByRarity(ctx, store.SkinFilter{CollectionID: "set_dust", Rarity: &rarity})
	if err != nil {
		t.Fatalf("SkinGroupByRarity: %v", err)
	}
}

func TestCollectionFindMany_OrdersByDisplayName(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_ = db.UpsertCollection(ctx, store.Collection{ID: "set_b", DisplayName: "Bravo", SteamTag: "set_b"}, nil)
	_ = db.UpsertCollection(ctx, store.Collection{ID: "set_a", DisplayName: "Alpha", SteamTag: "set_a"}, nil)

	cols, err := db.CollectionFindMany(ctx)
	if err != nil {
		t.Fatalf("CollectionFindMany: %v", err)
	}
	if len(cols) != 2 || cols[0].DisplayName != "Alpha" || cols[1].DisplayName != "Bravo" {
		t.Fatalf("expected [Alpha, Bravo], got %+v", cols)
	}
}
