// Package floatcatalog provides the reference table of known collections
// and per-base-name float ranges the Trade-up Engine and Sync Worker
// consult to resolve a skin's wear range. A compile-time table is
// supplemented, on first use, by a lazily loaded remote JSON catalog.
package floatcatalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/stadam23/tradeup-ev/internal/logger"
)

// Range is a known [min, max] float range for a base item name.
type Range struct {
	Min float64
	Max float64
}

// Catalog resolves baseName -> Range, merging a compile-time known table
// with a lazily fetched remote supplement.
type Catalog struct {
	sourceURL string
	known     map[string]Range

	once        sync.Once
	remote      map[string]Range
	unavailable bool

	httpClient *http.Client
}

// New builds a Catalog seeded with the compile-time known table. sourceURL,
// when non-empty, is consulted at most once per process for entries the
// known table lacks.
func New(sourceURL string) *Catalog {
	return &Catalog{
		sourceURL:  sourceURL,
		known:      knownRanges(),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Lookup returns the float range for baseName, or false when it appears in
// neither the known table nor the remote supplement.
func (c *Catalog) Lookup(ctx context.Context, baseName string) (Range, bool) {
	if r, ok := c.known[normalize(baseName)]; ok {
		return r, true
	}
	c.ensureRemote(ctx)
	if c.remote == nil {
		return Range{}, false
	}
	r, ok := c.remote[normalize(baseName)]
	return r, ok
}

// ensureRemote performs the at-most-once remote fetch; a failure sets a
// sticky unavailable flag so later lookups return false without retrying.
func (c *Catalog) ensureRemote(ctx context.Context) {
	c.once.Do(func() {
		if c.sourceURL == "" {
			c.unavailable = true
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sourceURL, nil)
		if err != nil {
			c.unavailable = true
			return
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			logger.Warn("FLOATCATALOG", "remote fetch failed: "+err.Error())
			c.unavailable = true
			return
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil || resp.StatusCode != http.StatusOK {
			logger.Warn("FLOATCATALOG", "remote fetch returned non-OK")
			c.unavailable = true
			return
		}

		var entries []struct {
			BaseName string  `json:"baseName"`
			MinFloat float64 `json:"minFloat"`
			MaxFloat float64 `json:"maxFloat"`
		}
		if err := json.Unmarshal(body, &entries); err != nil {
			logger.Warn("FLOATCATALOG", "remote catalog malformed: "+err.Error())
			c.unavailable = true
			return
		}

		merged := make(map[string]Range, len(entries))
		for _, e := range entries {
			key := normalize(e.BaseName)
			r := Range{Min: e.MinFloat, Max: e.MaxFloat}
			if existing, ok := merged[key]; ok {
				r = mergeWidest(existing, r)
			}
			merged[key] = r
		}
		c.remote = merged
		logger.Success("FLOATCATALOG", "loaded remote float supplement")
	})
	_ = c.unavailable // sticky: once set, c.remote stays nil forever
}

// mergeWidest combines two known ranges for the same base name by taking
// the min of mins and the max of maxes.
func mergeWidest(a, b Range) Range {
	r := Range{Min: a.Min, Max: a.Max}
	if b.Min < r.Min {
		r.Min = b.Min
	}
	if b.Max > r.Max {
		r.Max = b.Max
	}
	return r
}

func normalize(baseName string) string {
	return strings.ToLower(strings.TrimSpace(baseName))
}
