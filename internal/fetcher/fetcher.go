// Package fetcher implements the rate-paced HTTP client shared by every
// outbound call to the market API: a single adaptive scheduler governs
// how fast the whole process is allowed to issue requests, backed by a
// short-lived response cache and request coalescing so concurrent callers
// asking for the same resource share one round trip.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/stadam23/tradeup-ev/internal/apperr"
	"github.com/stadam23/tradeup-ev/internal/logger"
)

const (
	maxParallel   = 5
	startRateMs   = 3000
	minRateMs     = 1200
	maxRateMs     = 12000
	callTimeout   = 20 * time.Second
	maxAttempts   = 7
	backoffBaseMs = 900
	cacheTTL      = 20 * time.Minute
	cacheSize     = 5000
)

// Fetcher issues rate-paced, retried, cached, coalesced GET requests against
// a market API origin.
type Fetcher struct {
	httpClient *http.Client
	sem        chan struct{}

	mu            sync.Mutex
	pauseMs       int
	cooldownUntil time.Time

	cache *lru.LRU[string, []byte]
	group singleflight.Group
}

// New builds a Fetcher with pacing bounds and cache/coalescing wired in per
// the rate-limited client shape used throughout the corpus for bursty,
// 429-prone public market APIs.
func New() *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: callTimeout},
		sem:        make(chan struct{}, maxParallel),
		pauseMs:    startRateMs,
		cache:      lru.NewLRU[string, []byte](cacheSize, nil, cacheTTL),
	}
}

// Get fetches url, serving from cache when fresh, coalescing concurrent
// identical requests, and obeying the shared adaptive pacing/backoff policy.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	if body, ok := f.cache.Get(url); ok {
		return body, nil
	}

	// url may carry an endpoint cache-key prefix ("price:https://...");
	// only the part after it is requested.
	reqURL := url
	if i := strings.Index(url, ":"); i >= 0 && !strings.HasPrefix(url[i:], "://") {
		reqURL = url[i+1:]
	}

	v, err, _ := f.group.Do(url, func() (any, error) {
		body, err := f.fetchWithRetry(ctx, reqURL)
		if err != nil {
			return nil, err
		}
		f.cache.Add(url, body)
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// GetJSON is the getData<T> convenience wrapper from the Public contract:
// it fetches url through f and decodes the body into a T, so callers never
// hand-roll their own json.Unmarshal over a Fetcher response. A decode
// failure is reported as a KindParse error rather than propagated as a
// transport failure.
func GetJSON[T any](ctx context.Context, f *Fetcher, url string) (T, error) {
	var out T
	body, err := f.Get(ctx, url)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, apperr.New(apperr.KindParse, "decoding response from "+url, err)
	}
	return out, nil
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		f.awaitTurn(ctx)

		body, retryAfterMs, retryable, err := f.doOnce(ctx, url)
		if err == nil {
			f.onSuccess()
			return body, nil
		}

		if !retryable {
			return nil, err
		}

		lastErr = err
		if retryAfterMs > 0 {
			f.onRateLimited(retryAfterMs)
		}

		if attempt == maxAttempts {
			break
		}

		wait := backoffBaseMs*(1<<(attempt-1)) + rand.Intn(backoffBaseMs)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(wait) * time.Millisecond):
		}
	}
	if ae, ok := apperr.As(lastErr); ok {
		return nil, ae
	}
	return nil, apperr.Transport(fmt.Sprintf("giving up on %s after %d attempts", url, maxAttempts), lastErr)
}

// awaitTurn blocks until a concurrency slot is free, then sleeps the longer
// of the current pace and the time left in any active cooldown before
// releasing the caller.
func (f *Fetcher) awaitTurn(ctx context.Context) {
	select {
	case f.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}

	f.mu.Lock()
	wait := time.Until(f.cooldownUntil)
	pace := time.Duration(f.pauseMs) * time.Millisecond
	if wait > pace {
		pace = wait
	}
	f.mu.Unlock()

	if pace > 0 {
		select {
		case <-time.After(pace):
		case <-ctx.Done():
		}
	}
}

func (f *Fetcher) release() { <-f.sem }

// doOnce issues a single HTTP attempt. The returned retryable flag tells
// fetchWithRetry whether the failure is one spec.md §4.1 allows another
// attempt for (429, 5xx, connection reset, timeout) or must fail immediately
// (any other 4xx).
func (f *Fetcher) doOnce(ctx context.Context, url string) (body []byte, retryAfterMs int64, retryable bool, err error) {
	defer f.release()

	req, buildErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if buildErr != nil {
		return nil, 0, false, apperr.Transport("building request", buildErr)
	}

	resp, doErr := f.httpClient.Do(req)
	if doErr != nil {
		return nil, 0, true, apperr.Transport("request failed", doErr)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, 0, true, apperr.Transport("reading response body", readErr)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		ra := parseRetryAfterMs(resp.Header.Get("Retry-After"))
		return nil, ra, true, apperr.RateLimited(ra, fmt.Errorf("429 from %s", url))
	case resp.StatusCode >= 500:
		return nil, 0, true, apperr.Transport(fmt.Sprintf("%d from %s", resp.StatusCode, url), nil)
	case resp.StatusCode >= 400:
		return nil, 0, false, apperr.Transport(fmt.Sprintf("%d from %s", resp.StatusCode, url), nil)
	}

	return respBody, 0, false, nil
}

func parseRetryAfterMs(header string) int64 {
	if header == "" {
		return int64(startRateMs)
	}
	if secs, err := time.ParseDuration(header + "s"); err == nil {
		return secs.Milliseconds()
	}
	return int64(startRateMs)
}

// onSuccess eases the pace back down toward minRateMs after a clean response.
func (f *Fetcher) onSuccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauseMs = maxInt(minRateMs, f.pauseMs-100)
}

// onRateLimited raises the pace and opens a fixed 15-second cooldown window.
func (f *Fetcher) onRateLimited(retryAfterMs int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauseMs = minInt(maxRateMs, int(float64(f.pauseMs)*1.35)+250)
	until := time.Now().Add(15 * time.Second)
	if until.After(f.cooldownUntil) {
		f.cooldownUntil = until
	}
	logger.Warn("FETCHER", fmt.Sprintf("rate limited (retry-after %dms), cooling down 15s (pace now %dms)", retryAfterMs, f.pauseMs))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
