package market

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/stadam23/tradeup-ev/internal/apperr"
	"github.com/stadam23/tradeup-ev/internal/fetcher"
)

const defaultOrigin = "https://steamcommunity.com/market"

// Adapter is the typed view over the Fetcher: every method here is
// idempotent and benefits from the Fetcher's cache and pacing.
type Adapter struct {
	f      *fetcher.Fetcher
	origin string
}

// New builds an Adapter against the given Fetcher. origin defaults to the
// vendor's public market origin when empty, letting tests point it at a
// local stub.
func New(f *fetcher.Fetcher, origin string) *Adapter {
	if origin == "" {
		origin = defaultOrigin
	}
	return &Adapter{f: f, origin: origin}
}

// PricedItem is one row of a search or listing result.
type PricedItem struct {
	MarketHashName string   `json:"marketHashName"`
	SellListings   int      `json:"sellListings"`
	Price          *float64 `json:"price"`
}

// SearchResult is the shared shape returned by rarity and collection search.
type SearchResult struct {
	Total int          `json:"total"`
	Items []PricedItem `json:"items"`
}

// searchResponse is the vendor's raw search/render payload shape.
type searchResponse struct {
	TotalCount int `json:"total_count"`
	Results    []struct {
		Name         string `json:"hash_name"`
		SellListings int    `json:"sell_listings"`
		SellPrice    string `json:"sell_price_text"`
	} `json:"results"`
}

// priceOverviewResponse is the vendor's price-overview payload shape.
type priceOverviewResponse struct {
	Success     bool   `json:"success"`
	LowestPrice string `json:"lowest_price"`
	MedianPrice string `json:"median_price"`
}

// GetPriceUSD fetches and parses the current sell price for marketHashName.
// Returns (nil, nil) when the vendor reports success=false, the response
// can't be decoded, or the price string is unparseable, per the Parse error
// kind's "never propagated" policy.
func (a *Adapter) GetPriceUSD(ctx context.Context, marketHashName string) (*float64, error) {
	u := fmt.Sprintf("%s/priceoverview/?appid=730&currency=1&market_hash_name=%s",
		a.origin, url.QueryEscape(marketHashName))
	resp, err := fetcher.GetJSON[priceOverviewResponse](ctx, a.f, "price:"+u)
	if err != nil {
		if ae, ok := apperr.As(err); ok && ae.Kind == apperr.KindParse {
			return nil, nil
		}
		return nil, err
	}
	if !resp.Success {
		return nil, nil
	}
	raw := resp.LowestPrice
	if raw == "" {
		raw = resp.MedianPrice
	}
	price, ok := ParsePrice(raw)
	if !ok {
		return nil, nil
	}
	return &price, nil
}

// SearchByRarity lists items of a given rarity, sorted name ascending.
func (a *Adapter) SearchByRarity(ctx context.Context, rarity Rarity, start, count int, normalOnly bool) (*SearchResult, error) {
	return a.search(ctx, "search:", rarity.Tag(), "", start, clampCount(count), normalOnly)
}

// SearchByCollection lists items within a collection, optionally narrowed by
// rarity, internally paginating at a hard cap of 10 upstream pages.
func (a *Adapter) SearchByCollection(ctx context.Context, collectionTag string, rarity *Rarity, start, count int, normalOnly bool) (*SearchResult, error) {
	rarityTag := ""
	if rarity != nil {
		rarityTag = rarity.Tag()
	}
	const hardPageCap = 10
	count = clampCount(count)

	merged := &SearchResult{}
	page := start
	for i := 0; i < hardPageCap; i++ {
		res, err := a.search(ctx, "collection:", rarityTag, collectionTag, page, count, normalOnly)
		if err != nil {
			return nil, err
		}
		merged.Total = res.Total
		merged.Items = append(merged.Items, res.Items...)
		if len(res.Items) < count || len(merged.Items) >= res.Total {
			break
		}
		page += count
	}
	return merged, nil
}

func clampCount(count int) int {
	if count < 1 {
		return 1
	}
	if count > 30 {
		return 30
	}
	return count
}

func (a *Adapter) search(ctx context.Context, cachePrefix, rarityTag, collectionTag string, start, count int, normalOnly bool) (*SearchResult, error) {
	q := url.Values{}
	q.Set("appid", "730")
	q.Set("start", fmt.Sprintf("%d", start))
	q.Set("count", fmt.Sprintf("%d", count))
	q.Set("norender", "1")
	q.Set("sort_column", "name")
	q.Set("sort_dir", "asc")
	if rarityTag != "" {
		q.Set("category_730_Rarity[]", rarityTag)
	}
	if collectionTag != "" {
		q.Set("category_730_ItemSet[]", collectionTag)
	}
	if normalOnly {
		q.Set("category_730_Quality[]", "tag_normal")
	}
	u := fmt.Sprintf("%s/search/render/?%s", a.origin, q.Encode())

	resp, err := fetcher.GetJSON[searchResponse](ctx, a.f, cachePrefix+u)
	if err != nil {
		return nil, err
	}

	out := &SearchResult{Total: resp.TotalCount}
	for _, r := range resp.Results {
		var price *float64
		if p, ok := ParsePrice(r.SellPrice); ok {
			price = &p
		}
		out.Items = append(out.Items, PricedItem{
			MarketHashName: r.Name,
			SellListings:   r.SellListings,
			Price:          price,
		})
	}
	return out, nil
}

// CollectionTag is one entry of the app-filter facet describing a known
// item-set collection.
type CollectionTag struct {
	Tag   string `json:"tag"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// appFiltersResponse is the vendor's raw app-filter facet payload shape.
type appFiltersResponse struct {
	Success bool `json:"success"`
	Facets  struct {
		ItemSet struct {
			Tags map[string]struct {
				LocalizedName string `json:"localized_name"`
				MatchCount    int    `json:"matches"`
			} `json:"tags"`
		} `json:"730_ItemSet"`
	} `json:"facets"`
}

// FetchCollectionTags lists every collection tag the vendor's app-filter
// facet for CS:GO/CS2 (appid 730) advertises under the ItemSet category.
func (a *Adapter) FetchCollectionTags(ctx context.Context) ([]CollectionTag, error) {
	u := fmt.Sprintf("%s/appfilters/730", a.origin)
	resp, err := fetcher.GetJSON[appFiltersResponse](ctx, a.f, "appfilters:"+u)
	if err != nil {
		return nil, err
	}

	out := make([]CollectionTag, 0, len(resp.Facets.ItemSet.Tags))
	for tag, v := range resp.Facets.ItemSet.Tags {
		out = append(out, CollectionTag{Tag: tag, Name: v.LocalizedName, Count: v.MatchCount})
	}
	return out, nil
}

// FetchListingTotalCount returns the number of active sell listings for
// marketHashName, making up to 3 attempts with a 16-second pause after each
// 429.
func (a *Adapter) FetchListingTotalCount(ctx context.Context, marketHashName string) (*int, error) {
	u := fmt.Sprintf("%s/listings/730/%s", a.origin, url.PathEscape(marketHashName))

	const attempts = 3
	const pause = 16 * time.Second
	var lastErr error
	for i := 0; i < attempts; i++ {
		resp, err := fetcher.GetJSON[listingTotalResponse](ctx, a.f, "listingTotal:"+u)
		if err == nil {
			total := resp.TotalCount
			return &total, nil
		}
		if ae, ok := apperr.As(err); ok && ae.Kind == apperr.KindParse {
			return nil, nil
		}
		lastErr = err
		if ae, ok := apperr.As(err); !ok || ae.Kind != apperr.KindRateLimited {
			return nil, err
		}
		if i < attempts-1 {
			select {
			case <-time.After(pause):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

// listingTotalResponse is the vendor's raw listings payload shape, trimmed
// to the one field this endpoint needs.
type listingTotalResponse struct {
	TotalCount int `json:"total_count"`
}

// InspectLink is one populated inspect-in-game link for a listed item.
type InspectLink struct {
	ListingID   string `json:"listingId"`
	AssetID     string `json:"assetId"`
	InspectLink string `json:"inspectLink"`
}

// listingRenderResponse is the vendor's raw listings/render payload shape.
type listingRenderResponse struct {
	ListingInfo map[string]struct {
		ListingID string `json:"listingid"`
		Asset     struct {
			ID     string `json:"id"`
			Market struct {
				InspectLink string `json:"market_actions_inspect_link"`
			} `json:"market_actions"`
		} `json:"asset"`
	} `json:"listinginfo"`
}

// FetchListingInspectLinks populates the vendor's inspect-link template for
// every listing of marketHashName in [start, start+count), fixing owner/
// amount placeholders to 0/1 as the template requires.
func (a *Adapter) FetchListingInspectLinks(ctx context.Context, marketHashName string, start, count int) ([]InspectLink, error) {
	u := fmt.Sprintf("%s/listings/730/%s/render/?start=%d&count=%d",
		a.origin, url.PathEscape(marketHashName), start, count)
	resp, err := fetcher.GetJSON[listingRenderResponse](ctx, a.f, "inspect:"+u)
	if err != nil {
		return nil, err
	}

	out := make([]InspectLink, 0, len(resp.ListingInfo))
	for _, li := range resp.ListingInfo {
		link := li.Asset.Market.InspectLink
		link = strings.ReplaceAll(link, "%listingid%", li.ListingID)
		link = strings.ReplaceAll(link, "%assetid%", li.Asset.ID)
		link = strings.ReplaceAll(link, "%owner%", "0")
		link = strings.ReplaceAll(link, "%amount%", "1")
		out = append(out, InspectLink{ListingID: li.ListingID, AssetID: li.Asset.ID, InspectLink: link})
	}
	return out, nil
}
