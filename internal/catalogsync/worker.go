// Package catalogsync is the Sync Worker: a durable background job that
// enumerates every known collection tag, paginates each rarity through the
// Market Adapter, maps items onto local float-range catalog entries, and
// upserts a reconciled snapshot into the store, pausing and resuming
// automatically on rate-limit failures rather than failing the job.
package catalogsync

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/stadam23/tradeup-ev/internal/apperr"
	"github.com/stadam23/tradeup-ev/internal/floatcatalog"
	"github.com/stadam23/tradeup-ev/internal/logger"
	"github.com/stadam23/tradeup-ev/internal/market"
	"github.com/stadam23/tradeup-ev/internal/queue"
	"github.com/stadam23/tradeup-ev/internal/store"
)

const (
	hardCapPerCollection = 600
	pageCount            = 30
)

// Worker runs sync jobs dequeued from a Queue against the store.
type Worker struct {
	queue     *queue.Queue
	adapter   *market.Adapter
	floats    *floatcatalog.Catalog
	st        store.Store
	maxPerRun int
}

// New builds a Worker. maxAutoLimit bounds the total items fetched per run
// across all collections (STEAM_MAX_AUTO_LIMIT).
func New(q *queue.Queue, adapter *market.Adapter, floats *floatcatalog.Catalog, st store.Store, maxAutoLimit int) *Worker {
	return &Worker{queue: q, adapter: adapter, floats: floats, st: st, maxPerRun: maxAutoLimit}
}

// Run blocks, dequeuing and processing jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("SYNC", "worker shutting down")
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			logger.Error("SYNC", "dequeue failed: "+err.Error())
			continue
		}
		if job == nil {
			continue
		}

		w.runJob(ctx, job.ID)
	}
}

func (w *Worker) runJob(ctx context.Context, jobID string) {
	logger.Section("catalog sync " + jobID)

	job, err := w.queue.Get(ctx, jobID)
	if err != nil {
		w.handleFailure(ctx, jobID, err)
		return
	}

	tags, err := w.adapter.FetchCollectionTags(ctx)
	if err != nil {
		w.handleFailure(ctx, jobID, err)
		return
	}
	tags = dedupeTags(tags)

	alreadySynced := map[string]bool{}
	progress := queue.Progress{TotalCollections: len(tags)}
	if job != nil {
		for _, tag := range job.Progress.SyncedTags {
			alreadySynced[tag] = true
		}
		progress = job.Progress
		progress.TotalCollections = len(tags)
	}
	budget := w.maxPerRun

	for _, tag := range tags {
		if alreadySynced[tag.Tag] {
			// A broker-level retry re-delivers the same job; collections
			// already committed in a prior attempt are not redone so
			// syncedCollections cannot double-count across retries.
			continue
		}

		progress.CurrentCollectionTag = tag.Tag
		progress.CurrentCollectionName = tag.Name
		_ = w.queue.UpdateProgress(ctx, jobID, progress)

		spent, err := w.syncCollection(ctx, jobID, tag, &progress, budget)
		if err != nil {
			w.handleFailure(ctx, jobID, err)
			return
		}
		budget -= spent
		if budget <= 0 {
			logger.Warn("SYNC", fmt.Sprintf("STEAM_MAX_AUTO_LIMIT reached after %s collections", humanize.Comma(int64(progress.SyncedCollections))))
			break
		}

		progress.SyncedCollections++
		progress.SyncedTags = append(progress.SyncedTags, tag.Tag)
		progress.CurrentRarity = ""
		_ = w.queue.UpdateProgress(ctx, jobID, progress)
	}

	if err := w.queue.Complete(ctx, jobID); err != nil {
		logger.Error("SYNC", "marking job complete: "+err.Error())
		return
	}
	logger.Success("SYNC", fmt.Sprintf("catalog sync complete: %s collections synced", humanize.Comma(int64(progress.SyncedCollections))))
}

// syncCollection paginates every rarity of one collection, reconciles the
// store in a single transaction, and returns how many items were fetched.
func (w *Worker) syncCollection(ctx context.Context, jobID string, tag market.CollectionTag, progress *queue.Progress, budget int) (int, error) {
	var skins []store.Skin
	fetched := 0

	for _, rarity := range market.Ladder {
		progress.CurrentRarity = string(rarity)
		_ = w.queue.UpdateProgress(ctx, jobID, *progress)

		rarityCap := hardCapPerCollection
		if remaining := budget - fetched; remaining < rarityCap {
			rarityCap = remaining
		}
		if rarityCap <= 0 {
			break
		}

		start := 0
		r := rarity
		for fetched < rarityCap {
			count := pageCount
			if remaining := rarityCap - fetched; remaining < count {
				count = remaining
			}
			res, err := w.adapter.SearchByCollection(ctx, tag.Tag, &r, start, count, false)
			if err != nil {
				return fetched, err
			}
			if len(res.Items) == 0 {
				break
			}
			for _, item := range res.Items {
				skins = append(skins, w.toSkin(ctx, item, tag, rarity))
			}
			fetched += len(res.Items)
			start += len(res.Items)
			if start >= res.Total {
				break
			}
		}
	}

	collection := store.Collection{
		ID:             tag.Tag,
		DisplayName:    tag.Name,
		SteamTag:       tag.Tag,
		NormalizedName: normalize(tag.Name),
	}
	if err := w.st.UpsertCollection(ctx, collection, skins); err != nil {
		return fetched, apperr.New(apperr.KindTransport, "upserting collection "+tag.Tag, err)
	}
	return fetched, nil
}

func (w *Worker) toSkin(ctx context.Context, item market.PricedItem, tag market.CollectionTag, rarity market.Rarity) store.Skin {
	parsed := market.ParseItemName(item.MarketHashName)

	var floatMin, floatMax *float64
	if r, ok := w.floats.Lookup(ctx, parsed.BaseName); ok {
		floatMin, floatMax = &r.Min, &r.Max
	}

	return store.Skin{
		MarketHashName: item.MarketHashName,
		CollectionID:   tag.Tag,
		BaseName:       parsed.BaseName,
		Exterior:       parsed.Exterior,
		Rarity:         rarity,
		IsStatTrak:     parsed.IsStatTrak,
		IsSouvenir:     parsed.IsSouvenir,
		SellListings:   item.SellListings,
		LastKnownPrice: item.Price,
		FloatMin:       floatMin,
		FloatMax:       floatMax,
	}
}

// handleFailure inspects err for a retry-after delay: RateLimited errors
// pause the job and re-enqueue it rather than failing it outright;
// everything else fails the job permanently.
func (w *Worker) handleFailure(ctx context.Context, jobID string, err error) {
	if retryAfterMs, ok := apperr.RetryAfterMs(err); ok {
		delay := clampDuration(retryAfterMs)
		logger.Warn("SYNC", fmt.Sprintf("rate limited, pausing job %s for %s", jobID, delay))
		if rerr := w.queue.RetryAfter(ctx, jobID, delay); rerr != nil {
			logger.Error("SYNC", "scheduling retry: "+rerr.Error())
		}
		return
	}

	logger.Error("SYNC", fmt.Sprintf("job %s failed: %v", jobID, err))
	if ferr := w.queue.Fail(ctx, jobID, err); ferr != nil {
		logger.Error("SYNC", "marking job failed: "+ferr.Error())
	}
}

func clampDuration(retryAfterMs int64) time.Duration {
	const lo = 1 * time.Second
	const hi = 5 * time.Minute
	d := time.Duration(retryAfterMs) * time.Millisecond
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

// dedupeTags collapses collection tags that more than one app-filter facet
// bucket reported, keeping the first occurrence.
func dedupeTags(tags []market.CollectionTag) []market.CollectionTag {
	seen := map[string]bool{}
	out := make([]market.CollectionTag, 0, len(tags))
	for _, t := range tags {
		if seen[t.Tag] {
			continue
		}
		seen[t.Tag] = true
		out = append(out, t)
	}
	return out
}

func normalize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		if r == ' ' {
			r = '-'
		}
		out = append(out, r)
	}
	return string(out)
}
