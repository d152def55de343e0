// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

package manifest

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/modfed/modfed/internal/observability"
	"github.com/modfed/modfed/internal/registry"
	"github.com/modfed/modfed/pkg/errutil"
)

// Fetcher retrieves a raw document by URL.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Loader fetches the individual plugin manifests named by a registry listing.
type Loader struct {
	fetcher Fetcher
}

// NewLoader creates a manifest loader. Panics if fetcher is nil.
func NewLoader(fetcher Fetcher) *Loader {
	if fetcher == nil {
		panic("manifest: fetcher cannot be nil")
	}
	return &Loader{fetcher: fetcher}
}

// result pairs an entry with its fetch outcome. Failures are filtered out
// before LoadAll returns; keeping them explicit here makes the
// degrade-gracefully contract testable.
type result struct {
	entry    registry.Entry
	manifest *Manifest
	err      error
}

// LoadAll fetches one manifest per entry, concurrently, each fetch
// independent of the others' outcome.
//
// Design: discovery degrades gracefully. A failing entry (network error,
// non-2xx, malformed body, invalid manifest) is logged and omitted from the
// result; it never fails the batch. The returned slice carries one element
// per successfully fetched entry, in no particular order.
//
// Duplicate entries for the same plugin id are collapsed before fetching,
// later entries shadowing earlier ones.
func (l *Loader) LoadAll(ctx context.Context, entries []registry.Entry) []*Manifest {
	deduped := dedupe(entries)

	ch := make(chan result, len(deduped))
	var wg sync.WaitGroup
	for _, e := range deduped {
		wg.Add(1)
		go func(e registry.Entry) {
			defer wg.Done()
			m, err := l.loadOne(ctx, e)
			ch <- result{entry: e, manifest: m, err: err}
		}(e)
	}
	wg.Wait()
	close(ch)

	manifests := make([]*Manifest, 0, len(deduped))
	for r := range ch {
		if r.err != nil {
			observability.RecordManifestFetchFailure()
			errutil.LogWarn(slog.Default().With("plugin", r.entry.ID), "skipping plugin manifest", r.err)
			continue
		}
		manifests = append(manifests, r.manifest)
	}

	return manifests
}

// loadOne fetches and validates a single entry's manifest.
func (l *Loader) loadOne(ctx context.Context, e registry.Entry) (*Manifest, error) {
	data, err := l.fetcher.Get(ctx, e.ManifestURL)
	if err != nil {
		return nil, err
	}

	m, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if m.ID != e.ID {
		return nil, oops.In("manifest").
			Code(errutil.CodeFetchFailed).
			With("entry_id", e.ID).
			With("manifest_id", m.ID).
			New("manifest id does not match registry entry")
	}

	return m, nil
}

// dedupe collapses entries by plugin id, later entries shadowing earlier ones,
// while keeping first-seen order for deterministic fan-out.
func dedupe(entries []registry.Entry) []registry.Entry {
	index := make(map[string]int, len(entries))
	out := make([]registry.Entry, 0, len(entries))
	for _, e := range entries {
		if i, ok := index[e.ID]; ok {
			out[i] = e
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}
