// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

// Package discovery composes the registry cache and manifest loader into the
// host-facing plugin discovery surface.
package discovery

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/modfed/modfed/internal/manifest"
	"github.com/modfed/modfed/internal/observability"
	"github.com/modfed/modfed/internal/registry"
)

// ListingSource yields the current registry listing.
type ListingSource interface {
	Listing(ctx context.Context) (*registry.Listing, error)
}

// ManifestSource fetches manifests for a set of registry entries.
type ManifestSource interface {
	LoadAll(ctx context.Context, entries []registry.Entry) []*manifest.Manifest
}

// Service discovers the set of currently loadable plugins.
type Service struct {
	listings  ListingSource
	manifests ManifestSource
	allow     []glob.Glob
	ready     atomic.Bool
}

// Option configures the Service.
type Option func(*Service)

// WithAllow restricts discovery to plugin ids matching at least one of the
// given patterns. An empty list allows everything.
func WithAllow(patterns []glob.Glob) Option {
	return func(s *Service) {
		s.allow = patterns
	}
}

// CompileAllow compiles plugin id allow-list patterns.
func CompileAllow(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, oops.In("discovery").
				With("pattern", p).
				Hint("allow patterns use glob syntax, e.g. 'com.acme.*'").
				Wrap(err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// NewService creates a discovery service. Panics if either source is nil.
func NewService(listings ListingSource, manifests ManifestSource, opts ...Option) *Service {
	if listings == nil {
		panic("discovery: listing source cannot be nil")
	}
	if manifests == nil {
		panic("discovery: manifest source cannot be nil")
	}
	s := &Service{listings: listings, manifests: manifests}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Discover returns the manifests of all currently discoverable plugins.
//
// A registry failure fails the whole call and no manifest fetches are
// attempted. Individual manifest failures degrade gracefully: the failing
// plugin is omitted and the rest are returned. An empty result is valid.
func (s *Service) Discover(ctx context.Context) ([]*manifest.Manifest, error) {
	listing, err := s.listings.Listing(ctx)
	if err != nil {
		observability.RecordDiscovery("error")
		return nil, err
	}

	entries := s.filter(listing.Plugins)
	manifests := s.manifests.LoadAll(ctx, entries)

	observability.RecordDiscovery("success")
	s.ready.Store(true)

	slog.Debug("plugin discovery complete",
		"listed", len(listing.Plugins),
		"allowed", len(entries),
		"discovered", len(manifests))

	return manifests, nil
}

// Ready reports whether at least one discovery pass has succeeded.
func (s *Service) Ready() bool {
	return s.ready.Load()
}

func (s *Service) filter(entries []registry.Entry) []registry.Entry {
	if len(s.allow) == 0 {
		return entries
	}
	out := make([]registry.Entry, 0, len(entries))
	for _, e := range entries {
		for _, g := range s.allow {
			if g.Match(e.ID) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
