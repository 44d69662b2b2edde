// Package readlayer is the Persistent Read Layer: a façade for read-only
// endpoints that prefers the store once the catalog is ready, memoising
// that readiness check for 30 seconds, and falls back transparently to the
// live Market Adapter on any store error or before the catalog is ready.
package readlayer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/stadam23/tradeup-ev/internal/logger"
	"github.com/stadam23/tradeup-ev/internal/market"
	"github.com/stadam23/tradeup-ev/internal/store"
	"github.com/stadam23/tradeup-ev/internal/tradeup"
)

const (
	readyMemoTTL    = 30 * time.Second
	totalsCacheSize = 100
	totalsCacheTTL  = 5 * time.Minute
)

// ReadLayer serves rarity totals, pages, names, and collection target/input
// views, preferring the store and falling back to the live API.
type ReadLayer struct {
	store   store.Store
	adapter *market.Adapter

	mu       sync.Mutex
	readyAt  time.Time
	readyVal bool

	totals *lru.LRU[string, map[market.Rarity]int]
}

// New builds a ReadLayer over store s and Market Adapter a.
func New(s store.Store, a *market.Adapter) *ReadLayer {
	return &ReadLayer{
		store:   s,
		adapter: a,
		totals:  lru.NewLRU[string, map[market.Rarity]int](totalsCacheSize, nil, totalsCacheTTL),
	}
}

// catalogReady returns the memoised readiness flag, querying the store at
// most once per 30-second window across concurrent callers.
func (rl *ReadLayer) catalogReady(ctx context.Context) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if time.Since(rl.readyAt) < readyMemoTTL {
		return rl.readyVal
	}

	ready, err := rl.store.CatalogReady(ctx)
	if err != nil {
		logger.Warn("READLAYER", "catalog-ready probe failed: "+err.Error())
		ready = false
	}

	rl.readyVal = ready
	rl.readyAt = time.Now()
	return ready
}

// RarityTotals returns the count of skins per rarity, honoring normalOnly.
// Results are served from a small, short-lived cache since totals are
// requested repeatedly (dashboards, target-list headers) but change only
// as often as a sync completes.
func (rl *ReadLayer) RarityTotals(ctx context.Context, rarities []market.Rarity, normalOnly bool) (map[market.Rarity]int, error) {
	key := totalsCacheKey(rarities, normalOnly)
	if cached, ok := rl.totals.Get(key); ok {
		return cached, nil
	}

	var totals map[market.Rarity]int
	var err error
	if rl.catalogReady(ctx) {
		totals, err = rl.storeRarityTotals(ctx, rarities, normalOnly)
		if err != nil {
			logger.Warn("READLAYER", "store RarityTotals failed, falling back to API: "+err.Error())
			totals, err = rl.liveRarityTotals(ctx, rarities, normalOnly)
		}
	} else {
		totals, err = rl.liveRarityTotals(ctx, rarities, normalOnly)
	}
	if err != nil {
		return nil, err
	}
	rl.totals.Add(key, totals)
	return totals, nil
}

func totalsCacheKey(rarities []market.Rarity, normalOnly bool) string {
	tags := make([]string, len(rarities))
	for i, r := range rarities {
		tags[i] = string(r)
	}
	return fmt.Sprintf("%s|%v", strings.Join(tags, ","), normalOnly)
}

func (rl *ReadLayer) storeRarityTotals(ctx context.Context, rarities []market.Rarity, normalOnly bool) (map[market.Rarity]int, error) {
	out := map[market.Rarity]int{}
	for _, r := range rarities {
		r := r
		n, err := rl.store.SkinCount(ctx, store.SkinFilter{Rarity: &r, NormalOnly: normalOnly})
		if err != nil {
			return nil, err
		}
		out[r] = n
	}
	return out, nil
}

func (rl *ReadLayer) liveRarityTotals(ctx context.Context, rarities []market.Rarity, normalOnly bool) (map[market.Rarity]int, error) {
	out := map[market.Rarity]int{}
	for _, r := range rarities {
		res, err := rl.adapter.SearchByRarity(ctx, r, 0, 1, normalOnly)
		if err != nil {
			return nil, err
		}
		out[r] = res.Total
	}
	return out, nil
}

// Page returns one page of items of a rarity.
type Page struct {
	Rarity market.Rarity
	Start  int
	Count  int
	Total  int
	Items  []market.PricedItem
}

// RarityPage returns a single page of items for a rarity.
func (rl *ReadLayer) RarityPage(ctx context.Context, rarity market.Rarity, start, count int, normalOnly bool) (*Page, error) {
	if rl.catalogReady(ctx) {
		skins, err := rl.store.SkinFindMany(ctx, store.SkinFilter{Rarity: &rarity, NormalOnly: normalOnly}, start, count)
		if err == nil {
			total, err := rl.store.SkinCount(ctx, store.SkinFilter{Rarity: &rarity, NormalOnly: normalOnly})
			if err == nil {
				return &Page{Rarity: rarity, Start: start, Count: count, Total: total, Items: skinsToItems(skins)}, nil
			}
		}
		logger.Warn("READLAYER", "store RarityPage failed, falling back to API")
	}

	res, err := rl.adapter.SearchByRarity(ctx, rarity, start, count, normalOnly)
	if err != nil {
		return nil, err
	}
	return &Page{Rarity: rarity, Start: start, Count: count, Total: res.Total, Items: res.Items}, nil
}

func skinsToItems(skins []store.Skin) []market.PricedItem {
	out := make([]market.PricedItem, 0, len(skins))
	for _, s := range skins {
		out = append(out, market.PricedItem{
			MarketHashName: s.MarketHashName,
			SellListings:   s.SellListings,
			Price:          s.LastKnownPrice,
		})
	}
	return out
}

// AllNames returns every marketHashName of a rarity.
func (rl *ReadLayer) AllNames(ctx context.Context, rarity market.Rarity, normalOnly bool) ([]string, error) {
	page, err := rl.Page1000(ctx, rarity, normalOnly)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(page))
	for _, it := range page {
		names = append(names, it.MarketHashName)
	}
	return names, nil
}

// Page1000 is an internal helper that builds the full item list for a
// rarity: one unpaged store query when the catalog is ready, otherwise a
// walk of the API a page at a time.
func (rl *ReadLayer) Page1000(ctx context.Context, rarity market.Rarity, normalOnly bool) ([]market.PricedItem, error) {
	if rl.catalogReady(ctx) {
		skins, err := rl.store.SkinFindMany(ctx, store.SkinFilter{Rarity: &rarity, NormalOnly: normalOnly}, 0, 0)
		if err == nil {
			return skinsToItems(skins), nil
		}
		logger.Warn("READLAYER", "store Page1000 failed, falling back to API")
	}

	var items []market.PricedItem
	start := 0
	for {
		res, err := rl.adapter.SearchByRarity(ctx, rarity, start, 30, normalOnly)
		if err != nil {
			return nil, err
		}
		items = append(items, res.Items...)
		start += len(res.Items)
		if len(res.Items) == 0 || start >= res.Total {
			break
		}
	}
	return items, nil
}

// CollectionTarget is one grouped output row for a collection's targets view.
type CollectionTarget struct {
	BaseName  string
	Exteriors []string
}

// CollectionTargets returns the grouped output entries of a collection at a
// given rarity, exteriors sorted within each base name.
func (rl *ReadLayer) CollectionTargets(ctx context.Context, steamTag string, rarity market.Rarity) ([]CollectionTarget, error) {
	var skins []store.Skin
	if rl.catalogReady(ctx) {
		_, s, err := rl.store.CollectionFindUnique(ctx, steamTag, store.SkinFilter{Rarity: &rarity})
		if err == nil {
			skins = s
		} else {
			logger.Warn("READLAYER", "store CollectionTargets failed, falling back to API")
		}
	}
	if skins == nil {
		res, err := rl.adapter.SearchByCollection(ctx, steamTag, &rarity, 0, 30, false)
		if err != nil {
			return nil, err
		}
		for _, it := range res.Items {
			skins = append(skins, store.Skin{MarketHashName: it.MarketHashName, BaseName: market.BaseFromMarketHash(it.MarketHashName)})
		}
	}

	grouped := map[string][]string{}
	for _, s := range skins {
		exterior := string(s.Exterior)
		if exterior == "" {
			exterior = string(market.ParseExterior(s.MarketHashName))
		}
		grouped[s.BaseName] = append(grouped[s.BaseName], exterior)
	}

	var out []CollectionTarget
	for base, exteriors := range grouped {
		sort.Strings(exteriors)
		out = append(out, CollectionTarget{BaseName: base, Exteriors: exteriors})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BaseName < out[j].BaseName })
	return out, nil
}

// CollectionInputs returns candidate input items of the rarity exactly one
// below target, for use populating a trade-up's input slots.
func (rl *ReadLayer) CollectionInputs(ctx context.Context, steamTag string, targetRarity market.Rarity) ([]market.PricedItem, error) {
	inputRarity, ok := targetRarity.Below()
	if !ok {
		return nil, nil
	}
	if rl.catalogReady(ctx) {
		_, skins, err := rl.store.CollectionFindUnique(ctx, steamTag, store.SkinFilter{Rarity: &inputRarity, NormalOnly: true})
		if err == nil {
			return skinsToItems(skins), nil
		}
		logger.Warn("READLAYER", "store CollectionInputs failed, falling back to API")
	}
	res, err := rl.adapter.SearchByCollection(ctx, steamTag, &inputRarity, 0, 30, true)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// Entries implements tradeup.CollectionSource by translating a stable
// collection id into its stored Covert-tier output entries.
func (rl *ReadLayer) Entries(ctx context.Context, collectionID string) ([]tradeup.CollectionEntry, error) {
	_, skins, err := rl.store.CollectionFindUnique(ctx, collectionID, store.SkinFilter{Rarity: ratPtr(market.Covert), NormalOnly: true})
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []tradeup.CollectionEntry
	for _, s := range skins {
		if seen[s.BaseName] {
			continue
		}
		seen[s.BaseName] = true
		minF, maxF := 0.0, 1.0
		if s.FloatMin != nil {
			minF = *s.FloatMin
		}
		if s.FloatMax != nil {
			maxF = *s.FloatMax
		}
		out = append(out, tradeup.CollectionEntry{BaseName: s.BaseName, MinFloat: minF, MaxFloat: maxF})
	}
	return out, nil
}

// PriceUSD implements tradeup.PriceLookup with a live lookup through the
// adapter (served from the Fetcher's cache when fresh); the store's
// last-known price is not consulted.
func (rl *ReadLayer) PriceUSD(ctx context.Context, marketHashName string) (*float64, error) {
	return rl.adapter.GetPriceUSD(ctx, marketHashName)
}

// CollectionTags lists every known collection tag via the Market Adapter's
// app-filter facet; this view has no store-backed fast path since it is
// the very table the sync worker enumerates from.
func (rl *ReadLayer) CollectionTags(ctx context.Context) ([]market.CollectionTag, error) {
	return rl.adapter.FetchCollectionTags(ctx)
}

// ListingTotalCount proxies the Market Adapter's listing-count lookup;
// listing counts are never persisted to the store, so there is no
// read-through fast path here either.
func (rl *ReadLayer) ListingTotalCount(ctx context.Context, marketHashName string) (*int, error) {
	return rl.adapter.FetchListingTotalCount(ctx, marketHashName)
}

// CollectionSummary is one row of the cross-rarity list of known
// collections, with a skin count per rarity.
type CollectionSummary struct {
	ID             string
	DisplayName    string
	SteamTag       string
	NormalizedName string
	SkinCounts     map[market.Rarity]int
}

// CollectionSummaries lists every known collection with its skin count per
// rarity, preferring the store and falling back to the live app-filter
// facet (which carries only an undifferentiated per-tag count, so
// SkinCounts is left nil for a live-API result) before the catalog is
// ready or on any store error.
func (rl *ReadLayer) CollectionSummaries(ctx context.Context) ([]CollectionSummary, error) {
	if rl.catalogReady(ctx) {
		out, err := rl.storeCollectionSummaries(ctx)
		if err == nil {
			return out, nil
		}
		logger.Warn("READLAYER", "store CollectionSummaries failed, falling back to API: "+err.Error())
	}

	tags, err := rl.adapter.FetchCollectionTags(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CollectionSummary, 0, len(tags))
	for _, t := range tags {
		out = append(out, CollectionSummary{ID: t.Tag, DisplayName: t.Name, SteamTag: t.Tag, NormalizedName: strings.ToLower(t.Name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

func (rl *ReadLayer) storeCollectionSummaries(ctx context.Context) ([]CollectionSummary, error) {
	cols, err := rl.store.CollectionFindMany(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CollectionSummary, 0, len(cols))
	for _, c := range cols {
		counts, err := rl.store.SkinGroupByRarity(ctx, store.SkinFilter{CollectionID: c.ID})
		if err != nil {
			return nil, err
		}
		out = append(out, CollectionSummary{
			ID:             c.ID,
			DisplayName:    c.DisplayName,
			SteamTag:       c.SteamTag,
			NormalizedName: c.NormalizedName,
			SkinCounts:     counts,
		})
	}
	return out, nil
}

func ratPtr(r market.Rarity) *market.Rarity { return &r }
