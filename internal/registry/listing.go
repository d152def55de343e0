// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

// Package registry models the plugin registry document and caches it.
package registry

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"

	"github.com/modfed/modfed/pkg/errutil"
)

// Entry points at one plugin's full manifest. Immutable once fetched.
type Entry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	ManifestURL string `json:"manifestUrl"`
}

// Listing is the top-level registry document.
type Listing struct {
	Version     string    `json:"version"`
	LastUpdated time.Time `json:"lastUpdated"`
	Plugins     []Entry   `json:"plugins"`
}

// maxIDLength is the maximum allowed length for plugin ids.
const maxIDLength = 64

// idPattern validates plugin ids: lowercase alphanumeric start, then
// lowercase letters, digits, dots, hyphens, or underscores.
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// ValidID reports whether id is an acceptable plugin identity.
func ValidID(id string) bool {
	return id != "" && len(id) <= maxIDLength && idPattern.MatchString(id)
}

// ParseListing parses and validates a registry document.
func ParseListing(data []byte) (*Listing, error) {
	if len(data) == 0 {
		return nil, oops.In("registry").Code(errutil.CodeFetchFailed).New("listing document is empty")
	}

	var l Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, oops.In("registry").Code(errutil.CodeFetchFailed).Hint("invalid JSON").Wrap(err)
	}

	if err := l.Validate(); err != nil {
		return nil, err
	}

	return &l, nil
}

// Validate checks listing constraints. Duplicate plugin ids are tolerated:
// the publishing side is responsible for de-duplication, and EntryMap applies
// last-wins shadowing when a mapping is needed.
func (l *Listing) Validate() error {
	for i, e := range l.Plugins {
		if !ValidID(e.ID) {
			return oops.In("registry").
				Code(errutil.CodeFetchFailed).
				With("index", i).
				With("id", e.ID).
				New("entry has invalid plugin id")
		}
		if e.ManifestURL == "" {
			return oops.In("registry").
				Code(errutil.CodeFetchFailed).
				With("id", e.ID).
				New("entry is missing manifestUrl")
		}
		if e.Version != "" {
			if _, err := semver.NewVersion(e.Version); err != nil {
				return oops.In("registry").
					Code(errutil.CodeFetchFailed).
					With("id", e.ID).
					With("version", e.Version).
					Hint("entry version must be semver").
					Wrap(err)
			}
		}
	}
	return nil
}

// EntryMap materializes the entries into a map keyed by plugin id.
// Later entries shadow earlier ones with the same id.
func (l *Listing) EntryMap() map[string]Entry {
	m := make(map[string]Entry, len(l.Plugins))
	for _, e := range l.Plugins {
		m[e.ID] = e
	}
	return m
}
