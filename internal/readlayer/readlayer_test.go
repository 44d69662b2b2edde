package readlayer

import (
	"context"
	"testing"

	"github.com/stadam23/tradeup-ev/internal/fetcher"
	"github.com/stadam23/tradeup-ev/internal/market"
	"github.com/stadam23/tradeup-ev/internal/store"
)

type countingStore struct {
	ready       bool
	skinCount   int
	calls       int
	collections []store.Collection
	rarityCount map[market.Rarity]int
}

func (s *countingStore) CollectionFindMany(ctx context.Context) ([]store.Collection, error) {
	return s.collections, nil
}

func (s *countingStore) CollectionFindUnique(ctx context.Context, steamTag string, filter store.SkinFilter) (*store.Collection, []store.Skin, error) {
	return nil, nil, nil
}

func (s *countingStore) SkinGroupByRarity(ctx context.Context, filter store.SkinFilter) (map[market.Rarity]int, error) {
	return s.rarityCount, nil
}

func (s *countingStore) SkinCount(ctx context.Context, filter store.SkinFilter) (int, error) {
	s.calls++
	return s.skinCount, nil
}

func (s *countingStore) SkinFindMany(ctx context.Context, filter store.SkinFilter, skip, take int) ([]store.Skin, error) {
	return nil, nil
}

func (s *countingStore) UpsertCollection(ctx context.Context, collection store.Collection, skins []store.Skin) error {
	return nil
}

func (s *countingStore) CatalogReady(ctx context.Context) (bool, error) {
	return s.ready, nil
}

func TestRarityTotals_ServesFromCacheOnRepeatedCall(t *testing.T) {
	st := &countingStore{ready: true, skinCount: 7}
	rl := New(st, market.New(fetcher.New(), "http://unused.invalid"))

	ctx := context.Background()
	rarities := []market.Rarity{market.Covert}

	first, err := rl.RarityTotals(ctx, rarities, true)
	if err != nil {
		t.Fatalf("RarityTotals: %v", err)
	}
	if first[market.Covert] != 7 {
		t.Fatalf("got %d, want 7", first[market.Covert])
	}

	second, err := rl.RarityTotals(ctx, rarities, true)
	if err != nil {
		t.Fatalf("RarityTotals (cached): %v", err)
	}
	if second[market.Covert] != 7 {
		t.Fatalf("got %d, want 7", second[market.Covert])
	}

	if st.calls != 1 {
		t.Errorf("expected exactly 1 store call due to the totals cache, got %d", st.calls)
	}
}

func TestRarityTotals_DistinctKeysDoNotShareCacheEntries(t *testing.T) {
	st := &countingStore{ready: true, skinCount: 3}
	rl := New(st, market.New(fetcher.New(), "http://unused.invalid"))

	ctx := context.Background()
	if _, err := rl.RarityTotals(ctx, []market.Rarity{market.Covert}, true); err != nil {
		t.Fatalf("RarityTotals: %v", err)
	}
	if _, err := rl.RarityTotals(ctx, []market.Rarity{market.Covert}, false); err != nil {
		t.Fatalf("RarityTotals: %v", err)
	}

	if st.calls != 2 {
		t.Errorf("expected one store call per distinct (rarities, normalOnly) key, got %d", st.calls)
	}
}

func TestCollectionSummaries_ServesFromStoreWhenReady(t *testing.T) {
	st := &countingStore{
		ready: true,
		collections: []store.Collection{
			{ID: "set_a", DisplayName: "The A Collection", SteamTag: "set_a", NormalizedName: "the-a-collection"},
		},
		rarityCount: map[market.Rarity]int{market.Covert: 2, market.Classified: 5},
	}
	rl := New(st, market.New(fetcher.New(), "http://unused.invalid"))

	out, err := rl.CollectionSummaries(context.Background())
	if err != nil {
		t.Fatalf("CollectionSummaries: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d summaries, want 1", len(out))
	}
	if out[0].SteamTag != "set_a" || out[0].SkinCounts[market.Covert] != 2 {
		t.Fatalf("unexpected summary: %+v", out[0])
	}
}

func TestCatalogReady_FalseWhenStoreNotReady(t *testing.T) {
	st := &countingStore{ready: false}
	rl := New(st, market.New(fetcher.New(), "http://unused.invalid"))

	if rl.catalogReady(context.Background()) {
		t.Fatal("expected catalogReady to report false when the store has no collections yet")
	}
}
