// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modfed/modfed/internal/manifest"
)

// loadCmdConfig holds configuration for the load command.
type loadCmdConfig struct {
	manifestPath string
	call         string
	payload      string
}

// NewLoadCmd creates the load subcommand.
func NewLoadCmd() *cobra.Command {
	lcfg := &loadCmdConfig{}

	cmd := &cobra.Command{
		Use:   "load <plugin-id>",
		Short: "Load a plugin's remote module",
		Long: `Fetch a plugin's remote bundle, instantiate its container, and
resolve its exposed module. By default the plugin's manifest is found via
registry discovery; --manifest loads it from a local file instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd.Context(), cmd, lcfg, args[0])
		},
	}

	addEngineFlags(cmd)
	cmd.Flags().StringVar(&lcfg.manifestPath, "manifest", "", "load the manifest from a local file instead of the registry")
	cmd.Flags().StringVar(&lcfg.call, "call", "", "invoke this module function after loading")
	cmd.Flags().StringVar(&lcfg.payload, "payload", "", "payload passed to --call")

	return cmd
}

func runLoad(ctx context.Context, cmd *cobra.Command, lcfg *loadCmdConfig, pluginID string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	m, err := resolveManifest(ctx, eng, lcfg.manifestPath, pluginID)
	if err != nil {
		return err
	}

	h, err := eng.loader.Load(ctx, m)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}

	cmd.Printf("Loaded %s %s (%s)\n", m.ID, m.Version, m.RuntimeKind())

	if lcfg.call != "" {
		out, err := h.Invoke(ctx, lcfg.call, []byte(lcfg.payload))
		if err != nil {
			return fmt.Errorf("invoke failed: %w", err)
		}
		cmd.Println(string(out))
	}

	return nil
}

// resolveManifest finds the plugin's manifest, either from a local file or
// through registry discovery.
func resolveManifest(ctx context.Context, eng *engine, path, pluginID string) (*manifest.Manifest, error) {
	if path != "" {
		m, err := manifest.ParseFile(path)
		if err != nil {
			return nil, err
		}
		if m.ID != pluginID {
			return nil, fmt.Errorf("manifest %s describes plugin %q, not %q", path, m.ID, pluginID)
		}
		return m, nil
	}

	manifests, err := eng.discovery.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}
	for _, m := range manifests {
		if m.ID == pluginID {
			return m, nil
		}
	}
	return nil, fmt.Errorf("plugin %q not found in registry", pluginID)
}
