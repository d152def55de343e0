// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const testBundle = `
calendar = {
	init = function(shared)
		greeting = shared.greeting or "hello"
	end,
	get = function(exposed)
		return function()
			return {
				render = function(payload)
					return greeting .. " " .. payload
				end,
			}
		end
	end,
}
`

// startRegistry serves a one-plugin registry: a listing, the plugin's
// manifest, and its Lua bundle.
func startRegistry(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/plugins.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{
			"version": "1",
			"plugins": [
				{"id": "calendar", "name": "Calendar", "version": "1.0.0", "manifestUrl": "%s/calendar.json"}
			]
		}`, srv.URL)
	})
	mux.HandleFunc("/calendar.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{
			"id": "calendar",
			"name": "Calendar",
			"version": "1.0.0",
			"ui": {"remoteEntry": "%s/calendar.lua", "expose": "./PluginApp", "runtime": "lua"}
		}`, srv.URL)
	})
	mux.HandleFunc("/calendar.lua", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, testBundle)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// isolateXDG points the XDG directories at temp dirs so tests never touch
// the user's real config or cache.
func isolateXDG(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
}
