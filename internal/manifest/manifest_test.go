// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

package manifest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modfed/modfed/internal/manifest"
	"github.com/modfed/modfed/pkg/errutil"
)

const calendarManifest = `{
	"id": "com.acme.calendar",
	"name": "Calendar",
	"version": "1.2.0",
	"ui": {
		"remoteEntry": "https://cdn.example.com/calendar/remoteEntry.lua",
		"expose": "./PluginApp"
	},
	"server": {
		"routeBase": "/api/calendar",
		"deploymentUrl": "https://calendar.internal.example.com",
		"healthCheck": "/healthz"
	},
	"manifestUrl": "https://cdn.example.com/calendar/manifest.json",
	"lastUpdated": "2026-08-19T08:30:00Z"
}`

func TestParse(t *testing.T) {
	m, err := manifest.Parse([]byte(calendarManifest))
	require.NoError(t, err)

	assert.Equal(t, "com.acme.calendar", m.ID)
	assert.Equal(t, "Calendar", m.Name)
	assert.Equal(t, "1.2.0", m.Version)
	assert.Equal(t, "https://cdn.example.com/calendar/remoteEntry.lua", m.UI.RemoteEntry)
	assert.Equal(t, "./PluginApp", m.UI.Expose)
	assert.Equal(t, "/api/calendar", m.Server.RouteBase)
	assert.Equal(t, manifest.RuntimeLua, m.RuntimeKind(), "runtime defaults to lua")
}

func TestParse_Invalid(t *testing.T) {
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
			doc:  `{"id": "x"`,
		},
		{
			name: "missing id",
			doc:  `{"version": "1.0.0", "ui": {"remoteEntry": "https://x/e.lua", "expose": "./App"}}`,
		},
		{
			name: "uppercase id",
			doc:  `{"id": "Calendar", "version": "1.0.0", "ui": {"remoteEntry": "https://x/e.lua", "expose": "./App"}}`,
		},
		{
			name: "missing version",
			doc:  `{"id": "calendar", "ui": {"remoteEntry": "https://x/e.lua", "expose": "./App"}}`,
		},
		{
			name: "non-semver version",
			doc:  `{"id": "calendar", "version": "one point two", "ui": {"remoteEntry": "https://x/e.lua", "expose": "./App"}}`,
		},
		{
			name: "missing remoteEntry",
			doc:  `{"id": "calendar", "version": "1.0.0", "ui": {"expose": "./App"}}`,
		},
		{
			name: "missing expose",
			doc:  `{"id": "calendar", "version": "1.0.0", "ui": {"remoteEntry": "https://x/e.lua"}}`,
		},
		{
			name: "unknown runtime",
			doc:  `{"id": "calendar", "version": "1.0.0", "ui": {"remoteEntry": "https://x/e.lua", "expose": "./App", "runtime": "wasm"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manifest.Parse([]byte(tt.doc))
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, errutil.CodeFetchFailed)
		})
	}
}

func TestParseFile_YAML(t *testing.T) {
	doc := `
id: weather
name: Weather
version: 0.9.1
ui:
  remoteEntry: https://cdn.example.com/weather/remoteEntry.lua
  expose: ./WeatherApp
  runtime: lua
`
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	m, err := manifest.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "weather", m.ID)
	assert.Equal(t, "WeatherApp", m.ExposedName())
}

func TestParseFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(calendarManifest), 0o600))

	m, err := manifest.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "com.acme.calendar", m.ID)
}

func TestParseFile_Missing(t *testing.T) {
	_, err := manifest.ParseFile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, errutil.CodeFetchFailed)
}

func TestExposedName_StripsRelativePrefix(t *testing.T) {
	tests := []struct {
		expose string
		want   string
	}{
		{expose: "./PluginApp", want: "PluginApp"},
		{expose: "PluginApp", want: "PluginApp"},
		{expose: "./widgets/Panel", want: "widgets/Panel"},
	}

	for _, tt := range tests {
		t.Run(tt.expose, func(t *testing.T) {
			m := &manifest.Manifest{UI: manifest.UI{Expose: tt.expose}}
			assert.Equal(t, tt.want, m.ExposedName())
		})
	}
}

func TestContainerName_StripsNonAlphanumerics(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{id: "calendar", want: "calendar"},
		{id: "com.acme.calendar", want: "comacmecalendar"},
		{id: "weather-widget_2", want: "weatherwidget2"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, manifest.ContainerName(tt.id))
		})
	}
}
