// Package xdg provides XDG Base Directory paths for ModFed.
package xdg

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "modfed"

// ConfigDir returns the XDG config directory for modfed.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// CacheDir returns the XDG cache directory for modfed.
// Checks XDG_CACHE_HOME first, falls back to ~/.cache.
func CacheDir() string {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".cache")
	}
	return filepath.Join(base, appName)
}

// BundleCacheDir returns the directory where fetched module bundles are written.
func BundleCacheDir() string {
	return filepath.Join(CacheDir(), "bundles")
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}
