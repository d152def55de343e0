// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/modfed/modfed/internal/observability"
)

// DefaultFreshness is the window within which a cached listing is served
// without a refetch.
const DefaultFreshness = 5 * time.Minute

// Fetcher retrieves a raw document by URL.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// record is the cached listing plus its fetch time. Replaced wholesale on
// refresh, never partially mutated.
type record struct {
	listing   *Listing
	fetchedAt time.Time
}

// Cache is a time-bounded cache of the registry listing. It is an explicit
// state object: create one per host (or per test) rather than sharing an
// ambient global.
type Cache struct {
	url       string
	fetcher   Fetcher
	freshness time.Duration
	now       func() time.Time

	mu  sync.Mutex
	rec *record
}

// CacheOption configures the Cache.
type CacheOption func(*Cache)

// WithFreshness overrides the freshness window.
func WithFreshness(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.freshness = d
		}
	}
}

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates a registry cache for the given registry URL.
// Panics if fetcher is nil.
func NewCache(url string, fetcher Fetcher, opts ...CacheOption) *Cache {
	if fetcher == nil {
		panic("registry: fetcher cannot be nil")
	}
	c := &Cache{
		url:       url,
		fetcher:   fetcher,
		freshness: DefaultFreshness,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Listing returns the cached listing while it is fresh, refetching otherwise.
//
// A stale record is never served: it is discarded and a fresh fetch happens
// synchronously before returning. A fetch failure propagates to the caller
// even when a stale record existed; the engine always prefers fresh data over
// a stale fallback.
func (c *Cache) Listing(ctx context.Context) (*Listing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rec != nil && c.now().Sub(c.rec.fetchedAt) < c.freshness {
		return c.rec.listing, nil
	}

	// Discard any stale record before fetching so a failure below cannot
	// accidentally fall back to it.
	c.rec = nil

	data, err := c.fetcher.Get(ctx, c.url)
	if err != nil {
		observability.RecordRegistryRefresh("error")
		return nil, err
	}

	listing, err := ParseListing(data)
	if err != nil {
		observability.RecordRegistryRefresh("error")
		return nil, err
	}

	c.rec = &record{listing: listing, fetchedAt: c.now()}
	observability.RecordRegistryRefresh("success")

	slog.Debug("registry listing refreshed",
		"url", c.url,
		"plugins", len(listing.Plugins))

	return listing, nil
}

// Invalidate drops the cached record, forcing the next Listing call to refetch.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec = nil
}
