package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"agenda/internal/kv"
	appLog "agenda/internal/log"
)

// Source is one ICS subscription feeding the agenda.
type Source struct {
	// ID tags every item imported from this feed.
	ID string
	// Name is only used in logs.
	Name string
	// URL is the ICS endpoint.
	URL string
	// Category is the category key imported items are filed under.
	Category string
}

// FetchResult contains the outcome of fetching a single ICS source.
type FetchResult struct {
	Source    Source
	Body      []byte // ICS payload (either freshly fetched or from cache)
	FromCache bool   // true if we reused the cached body
}

// cachedFeed is the last good copy of a feed plus its validators, stored
// as one JSON snapshot so the body and its ETag are always written together.
type cachedFeed struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
	Body         []byte    `json:"body"`
}

// Fetcher downloads ICS feeds with conditional requests and keeps the last
// good body in a kv backend so a flaky upstream does not empty the agenda.
type Fetcher struct {
	client *http.Client
	cache  kv.Backend
}

// NewFetcher returns a Fetcher caching into cache. A nil cache keeps
// copies in memory only; a nil client gets a 15s-timeout default.
func NewFetcher(cache kv.Backend, client *http.Client) *Fetcher {
	if cache == nil {
		cache = kv.NewMemory()
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, cache: cache}
}

// FetchOne downloads src, revalidating against the cached copy. Network
// errors and unexpected statuses fall back to the cached body if there is one.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("ics: subscription URL is empty")
	}
	key := cacheKey(src.URL)
	prev, hasPrev := f.lookup(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if hasPrev {
		if prev.ETag != "" {
			req.Header.Set("If-None-Match", prev.ETag)
		}
		if prev.LastModified != "" {
			req.Header.Set("If-Modified-Since", prev.LastModified)
		}
	}

	log := []any{"id", src.ID, "url", redactURL(src.URL)}
	appLog.Debug("ics fetch start", log...)
	fallback := func(cause error) (FetchResult, error) {
		if !hasPrev {
			return FetchResult{}, cause
		}
		appLog.Warn("ics fetch failed; serving cached copy", append(log, "err", cause)...)
		return FetchResult{Source: src, Body: prev.Body, FromCache: true}, nil
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		if !hasPrev {
			return FetchResult{}, errors.New("ics: 304 Not Modified without a cached copy")
		}
		appLog.Debug("ics feed not modified", log...)
		return FetchResult{Source: src, Body: prev.Body, FromCache: true}, nil
	case http.StatusOK:
	default:
		return fallback(fmt.Errorf("ics: unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fallback(err)
	}
	feed := cachedFeed{
		URL:          src.URL,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		FetchedAt:    time.Now().UTC(),
		Body:         body,
	}
	if err := f.store(key, feed); err != nil {
		appLog.Error("ics cache write failed", err, log...)
	}
	appLog.Info("ics feed fetched", append(log, "bytes", len(body))...)
	return FetchResult{Source: src, Body: body}, nil
}

// cacheKey derives a kv-safe key from the feed URL.
func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "ics-" + hex.EncodeToString(sum[:8])
}

func (f *Fetcher) lookup(key string) (cachedFeed, bool) {
	data, err := f.cache.Get(key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			appLog.Warn("ics cache read failed", "key", key, "err", err)
		}
		return cachedFeed{}, false
	}
	var feed cachedFeed
	if err := json.Unmarshal(data, &feed); err != nil || len(feed.Body) == 0 {
		return cachedFeed{}, false
	}
	return feed, true
}

func (f *Fetcher) store(key string, feed cachedFeed) error {
	data, err := json.Marshal(&feed)
	if err != nil {
		return err
	}
	return f.cache.Set(key, data)
}

// redactURL hides the path and query of a subscription URL, which often
// carry private tokens.
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "ics://...(redacted)"
	}
	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}
	return u[:j] + redactedSuffix
}
