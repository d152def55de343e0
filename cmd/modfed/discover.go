// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/modfed/modfed/internal/manifest"
)

// discoverConfig holds configuration for the discover command.
type discoverConfig struct {
	wait        bool
	waitTimeout time.Duration
}

// NewDiscoverCmd creates the discover subcommand.
func NewDiscoverCmd() *cobra.Command {
	dcfg := &discoverConfig{}

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List plugins discoverable from the registry",
		Long: `Fetch the registry listing and each listed plugin's manifest,
printing the plugins that are currently loadable. Plugins whose manifest
cannot be fetched are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiscover(cmd.Context(), cmd, dcfg)
		},
	}

	addEngineFlags(cmd)
	cmd.Flags().BoolVar(&dcfg.wait, "wait", false, "retry until the registry is reachable")
	cmd.Flags().DurationVar(&dcfg.waitTimeout, "wait-timeout", 2*time.Minute, "give up waiting after this duration")

	return cmd
}

func runDiscover(ctx context.Context, cmd *cobra.Command, dcfg *discoverConfig) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	var manifests []*manifest.Manifest
	if dcfg.wait {
		waitCtx, cancel := context.WithTimeout(ctx, dcfg.waitTimeout)
		defer cancel()

		backoff := retry.WithJitter(500*time.Millisecond,
			retry.NewExponential(1*time.Second))
		err = retry.Do(waitCtx, backoff, func(ctx context.Context) error {
			var derr error
			manifests, derr = eng.discovery.Discover(ctx)
			if derr != nil {
				return retry.RetryableError(derr)
			}
			return nil
		})
	} else {
		manifests, err = eng.discovery.Discover(ctx)
	}
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	if len(manifests) == 0 {
		cmd.Println("No plugins discovered")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVERSION\tRUNTIME\tNAME")
	for _, m := range manifests {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.Version, m.RuntimeKind(), m.Name)
	}
	return w.Flush()
}
