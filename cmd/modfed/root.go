package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the ModFed CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modfed",
		Short: "ModFed - dynamic plugin discovery and loading",
		Long: `ModFed discovers plugins from a remote registry, fetches their
manifests, and loads their remote modules on demand.`,
	}

	cmd.AddCommand(NewDiscoverCmd())
	cmd.AddCommand(NewLoadCmd())
	cmd.AddCommand(NewServeCmd())

	return cmd
}

// addEngineFlags registers the flags shared by every command that builds
// the discovery engine. Flag names map onto config keys: --registry-url
// overrides registry.url.
func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "config file path (default: XDG_CONFIG_HOME/modfed/config.yaml)")
	cmd.Flags().String("registry-url", "", "registry listing URL")
	cmd.Flags().String("log-format", "", "log format (json or text)")
}
