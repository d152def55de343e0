// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

// Package config loads ModFed configuration from YAML files and flags.
package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/modfed/modfed/internal/discovery"
	"github.com/modfed/modfed/internal/fetch"
	"github.com/modfed/modfed/internal/registry"
	"github.com/modfed/modfed/internal/xdg"
)

// Registry configures the registry cache.
type Registry struct {
	URL          string        `koanf:"url"`
	Freshness    time.Duration `koanf:"freshness"`
	FetchTimeout time.Duration `koanf:"fetch_timeout"`
}

// Discovery configures the discovery service.
type Discovery struct {
	// Allow restricts discovery to plugin ids matching these glob
	// patterns. Empty means allow everything.
	Allow []string `koanf:"allow"`
}

// Modules configures the module loader.
type Modules struct {
	CacheDir string            `koanf:"cache_dir"`
	Shared   map[string]string `koanf:"shared"`
}

// Log configures logging.
type Log struct {
	Format string `koanf:"format"`
}

// Metrics configures the observability server.
type Metrics struct {
	// Addr is the metrics/health HTTP address. Empty disables the server.
	Addr string `koanf:"addr"`
}

// Server configures the host's admin HTTP API.
type Server struct {
	Addr string `koanf:"addr"`
}

// Config is the full ModFed configuration.
type Config struct {
	Registry  Registry  `koanf:"registry"`
	Discovery Discovery `koanf:"discovery"`
	Modules   Modules   `koanf:"modules"`
	Log       Log       `koanf:"log"`
	Metrics   Metrics   `koanf:"metrics"`
	Server    Server    `koanf:"server"`
}

// Defaults for configuration values.
const (
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultServerAddr  = "127.0.0.1:8180"
	DefaultLogFormat   = "json"
)

// Default returns the configuration defaults applied before any file or
// flag values.
func Default() Config {
	return Config{
		Registry: Registry{
			Freshness:    registry.DefaultFreshness,
			FetchTimeout: fetch.DefaultTimeout,
		},
		Modules: Modules{
			CacheDir: xdg.BundleCacheDir(),
		},
		Log: Log{
			Format: DefaultLogFormat,
		},
		Metrics: Metrics{
			Addr: DefaultMetricsAddr,
		},
		Server: Server{
			Addr: DefaultServerAddr,
		},
	}
}

// DefaultPath returns the default config file location under the XDG config
// directory.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigDir(), "config.yaml")
}

// Load builds the configuration from defaults, an optional YAML file, and
// command-line flags, in increasing precedence.
//
// A missing file at the default path is not an error; a missing file at an
// explicitly given path is. Flags map to config keys by replacing dashes
// with dots, so --registry-url overrides registry.url.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !os.IsNotExist(err) || path != DefaultPath() {
				return Config{}, oops.In("config").
					With("path", path).
					Hint("config file must be valid YAML").
					Wrap(err)
			}
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			// Only explicitly set flags override file values.
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", ".")
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.In("config").Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.In("config").Hint("config values have wrong types").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Registry.URL == "" {
		return oops.In("config").Hint("set registry.url or pass --registry-url").New("registry.url is required")
	}
	u, err := url.Parse(c.Registry.URL)
	if err != nil || !u.IsAbs() {
		return oops.In("config").With("url", c.Registry.URL).New("registry.url must be an absolute URL")
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.In("config").With("format", c.Log.Format).New("log.format must be 'json' or 'text'")
	}

	if _, err := discovery.CompileAllow(c.Discovery.Allow); err != nil {
		return err
	}

	return nil
}
