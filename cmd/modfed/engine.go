// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modfed/modfed/internal/config"
	"github.com/modfed/modfed/internal/discovery"
	"github.com/modfed/modfed/internal/fetch"
	"github.com/modfed/modfed/internal/logging"
	"github.com/modfed/modfed/internal/manifest"
	"github.com/modfed/modfed/internal/module"
	"github.com/modfed/modfed/internal/module/binrt"
	"github.com/modfed/modfed/internal/module/luart"
	"github.com/modfed/modfed/internal/registry"
)

// engine bundles the wired discovery and loading components.
type engine struct {
	cfg       config.Config
	cache     *registry.Cache
	discovery *discovery.Service
	loader    *module.Loader
}

// loadConfig resolves the configuration from the command's flags and the
// config file, then sets up logging.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	logging.SetDefault("modfed", version, cfg.Log.Format)
	return cfg, nil
}

// newEngine wires the registry cache, manifest loader, discovery service,
// and module loader from a validated configuration.
func newEngine(cfg config.Config) (*engine, error) {
	client := fetch.NewClient(cfg.Registry.FetchTimeout)

	cache := registry.NewCache(cfg.Registry.URL, client,
		registry.WithFreshness(cfg.Registry.Freshness))

	allow, err := discovery.CompileAllow(cfg.Discovery.Allow)
	if err != nil {
		return nil, err
	}

	svc := discovery.NewService(cache, manifest.NewLoader(client),
		discovery.WithAllow(allow))

	loader := module.NewLoader(client,
		module.WithRuntime(manifest.RuntimeLua, luart.New()),
		module.WithRuntime(manifest.RuntimeBinary, binrt.New()),
		module.WithShared(cfg.Modules.Shared),
		module.WithCacheDir(cfg.Modules.CacheDir))

	return &engine{
		cfg:       cfg,
		cache:     cache,
		discovery: svc,
		loader:    loader,
	}, nil
}

// Close releases all loaded modules.
func (e *engine) Close() error {
	return e.loader.ClearCache()
}
