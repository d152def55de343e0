// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modfed/modfed/internal/registry"
	"github.com/modfed/modfed/pkg/errutil"
)

func TestParseListing(t *testing.T) {
	doc := `{
		"version": "3",
		"lastUpdated": "2026-08-20T12:00:00Z",
		"plugins": [
			{"id": "calendar", "name": "Calendar", "version": "1.2.0", "manifestUrl": "https://cdn.example.com/calendar/manifest.json"},
			{"id": "weather", "name": "Weather", "version": "0.9.1", "manifestUrl": "https://cdn.example.com/weather/manifest.json"}
		]
	}`

	l, err := registry.ParseListing([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "3", l.Version)
	require.Len(t, l.Plugins, 2)
	assert.Equal(t, "calendar", l.Plugins[0].ID)
	assert.Equal(t, "https://cdn.example.com/weather/manifest.json", l.Plugins[1].ManifestURL)
}

func TestParseListing_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "empty document",
			doc:  "",
		},
		{
			name: "malformed JSON",
			doc:  `{"plugins": [`,
		},
		{
			name: "entry without id",
			doc:  `{"plugins": [{"name": "x", "manifestUrl": "https://example.com/m.json"}]}`,
		},
		{
			name: "entry with invalid id",
			doc:  `{"plugins": [{"id": "Not Valid!", "manifestUrl": "https://example.com/m.json"}]}`,
		},
		{
			name: "entry without manifestUrl",
			doc:  `{"plugins": [{"id": "calendar"}]}`,
		},
		{
			name: "entry with non-semver version",
			doc:  `{"plugins": [{"id": "calendar", "version": "latest-and-greatest!", "manifestUrl": "https://example.com/m.json"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.ParseListing([]byte(tt.doc))
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, errutil.CodeFetchFailed)
		})
	}
}

func TestParseListing_DuplicateIDsTolerated(t *testing.T) {
	doc := `{
		"plugins": [
			{"id": "calendar", "version": "1.0.0", "manifestUrl": "https://example.com/old.json"},
			{"id": "calendar", "version": "2.0.0", "manifestUrl": "https://example.com/new.json"}
		]
	}`

	l, err := registry.ParseListing([]byte(doc))
	require.NoError(t, err)
	assert.Len(t, l.Plugins, 2)
}

func TestEntryMap_LaterEntriesShadowEarlier(t *testing.T) {
	l := &registry.Listing{
		Plugins: []registry.Entry{
			{ID: "calendar", Version: "1.0.0", ManifestURL: "https://example.com/old.json"},
			{ID: "weather", Version: "1.0.0", ManifestURL: "https://example.com/weather.json"},
			{ID: "calendar", Version: "2.0.0", ManifestURL: "https://example.com/new.json"},
		},
	}

	m := l.EntryMap()
	require.Len(t, m, 2)
	assert.Equal(t, "2.0.0", m["calendar"].Version)
	assert.Equal(t, "https://example.com/new.json", m["calendar"].ManifestURL)
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{id: "calendar", want: true},
		{id: "weather-widget", want: true},
		{id: "com.acme.calendar", want: true},
		{id: "plugin_2", want: true},
		{id: "7zip", want: true},
		{id: "", want: false},
		{id: "Calendar", want: false},
		{id: "has space", want: false},
		{id: ".leading-dot", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, registry.ValidID(tt.id))
		})
	}
}
