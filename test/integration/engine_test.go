// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/modfed/modfed/internal/discovery"
	"github.com/modfed/modfed/internal/fetch"
	"github.com/modfed/modfed/internal/manifest"
	"github.com/modfed/modfed/internal/module"
	"github.com/modfed/modfed/internal/module/luart"
	"github.com/modfed/modfed/internal/registry"
)

const calendarBundle = `
calendar = {
	init = function(shared)
		host = shared.hostVersion
	end,
	get = function(exposed)
		return function()
			return {
				describe = function(payload)
					return "calendar@" .. host .. ":" .. payload
				end,
			}
		end
	end,
}
`

// registryFixture serves a two-plugin registry where the weather plugin's
// manifest endpoint always fails.
type registryFixture struct {
	srv            *httptest.Server
	listingFetches atomic.Int64
	weatherDown    atomic.Bool
}

func newRegistryFixture() *registryFixture {
	f := &registryFixture{}
	mux := http.NewServeMux()

	mux.HandleFunc("/plugins.json", func(w http.ResponseWriter, _ *http.Request) {
		f.listingFetches.Add(1)
		fmt.Fprintf(w, `{
			"version": "1",
			"plugins": [
				{"id": "calendar", "name": "Calendar", "version": "1.0.0", "manifestUrl": "%s/calendar.json"},
				{"id": "weather", "name": "Weather", "version": "2.0.0", "manifestUrl": "%s/weather.json"}
			]
		}`, f.srv.URL, f.srv.URL)
	})
	mux.HandleFunc("/calendar.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{
			"id": "calendar",
			"name": "Calendar",
			"version": "1.0.0",
			"ui": {"remoteEntry": "%s/calendar.lua", "expose": "./PluginApp", "runtime": "lua"}
		}`, f.srv.URL)
	})
	mux.HandleFunc("/weather.json", func(w http.ResponseWriter, _ *http.Request) {
		if f.weatherDown.Load() {
			http.Error(w, "deploy in progress", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{
			"id": "weather",
			"name": "Weather",
			"version": "2.0.0",
			"ui": {"remoteEntry": "%s/calendar.lua", "expose": "./PluginApp", "runtime": "lua"}
		}`, f.srv.URL)
	})
	mux.HandleFunc("/calendar.lua", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, calendarBundle)
	})

	f.srv = httptest.NewServer(mux)
	return f
}

var _ = Describe("Plugin discovery and loading", func() {
	var (
		ctx     context.Context
		fixture *registryFixture
		cache   *registry.Cache
		svc     *discovery.Service
		loader  *module.Loader
	)

	BeforeEach(func() {
		ctx = context.Background()
		fixture = newRegistryFixture()
		DeferCleanup(fixture.srv.Close)

		client := fetch.NewClient(5 * time.Second)
		cache = registry.NewCache(fixture.srv.URL+"/plugins.json", client)
		svc = discovery.NewService(cache, manifest.NewLoader(client))
		loader = module.NewLoader(client,
			module.WithRuntime(manifest.RuntimeLua, luart.New()),
			module.WithShared(map[string]string{"hostVersion": "1.0.0"}),
			module.WithCacheDir(GinkgoT().TempDir()))
		DeferCleanup(func() { _ = loader.ClearCache() })
	})

	Describe("discovery", func() {
		It("returns every plugin whose manifest is reachable", func() {
			manifests, err := svc.Discover(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(manifests).To(HaveLen(2))
		})

		It("skips plugins whose manifest fetch fails", func() {
			fixture.weatherDown.Store(true)

			manifests, err := svc.Discover(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(manifests).To(HaveLen(1))
			Expect(manifests[0].ID).To(Equal("calendar"))
		})

		It("serves the cached listing within the freshness window", func() {
			_, err := svc.Discover(ctx)
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.Discover(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(fixture.listingFetches.Load()).To(Equal(int64(1)))
		})

		It("fails the whole discovery when the registry is unreachable", func() {
			client := fetch.NewClient(1 * time.Second)
			downCache := registry.NewCache("http://127.0.0.1:1/plugins.json", client)
			downSvc := discovery.NewService(downCache, manifest.NewLoader(client))

			_, err := downSvc.Discover(ctx)
			Expect(err).To(HaveOccurred())
			Expect(downSvc.Ready()).To(BeFalse())
		})
	})

	Describe("module loading", func() {
		var calendar *manifest.Manifest

		BeforeEach(func() {
			manifests, err := svc.Discover(ctx)
			Expect(err).NotTo(HaveOccurred())
			for _, m := range manifests {
				if m.ID == "calendar" {
					calendar = m
				}
			}
			Expect(calendar).NotTo(BeNil())
		})

		It("loads the remote module and invokes it", func() {
			h, err := loader.Load(ctx, calendar)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.PluginID()).To(Equal("calendar"))

			out, err := h.Invoke(ctx, "describe", []byte("today"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(out)).To(Equal("calendar@1.0.0:today"))
		})

		It("memoizes the handle across loads", func() {
			first, err := loader.Load(ctx, calendar)
			Expect(err).NotTo(HaveOccurred())

			second, err := loader.Load(ctx, calendar)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(BeIdenticalTo(first))
		})
	})
})
