// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

// Package manifest models per-plugin manifest documents and fetches them.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/modfed/modfed/internal/registry"
	"github.com/modfed/modfed/pkg/errutil"
)

// RuntimeKind identifies the runtime a plugin's UI bundle targets.
type RuntimeKind string

// Bundle runtimes supported by the host.
const (
	RuntimeLua    RuntimeKind = "lua"
	RuntimeBinary RuntimeKind = "binary"
)

// UI describes how to load a plugin's UI module.
type UI struct {
	RemoteEntry string      `json:"remoteEntry" yaml:"remoteEntry"`
	Expose      string      `json:"expose" yaml:"expose"`
	Runtime     RuntimeKind `json:"runtime,omitempty" yaml:"runtime,omitempty"`
}

// Server describes a plugin's backend deployment. The loading engine never
// consumes these fields; they are carried for non-UI integration.
type Server struct {
	RouteBase     string `json:"routeBase,omitempty" yaml:"routeBase,omitempty"`
	DeploymentURL string `json:"deploymentUrl,omitempty" yaml:"deploymentUrl,omitempty"`
	HealthCheck   string `json:"healthCheck,omitempty" yaml:"healthCheck,omitempty"`
}

// Manifest represents one plugin's manifest document. Immutable once fetched.
type Manifest struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Version     string    `json:"version" yaml:"version"`
	UI          UI        `json:"ui" yaml:"ui"`
	Server      Server    `json:"server,omitempty" yaml:"server,omitempty"`
	ManifestURL string    `json:"manifestUrl,omitempty" yaml:"manifestUrl,omitempty"`
	LastUpdated time.Time `json:"lastUpdated,omitempty" yaml:"lastUpdated,omitempty"`
}

// Parse parses and validates a manifest document (JSON).
func Parse(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, oops.In("manifest").Code(errutil.CodeFetchFailed).New("manifest document is empty")
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, oops.In("manifest").Code(errutil.CodeFetchFailed).Hint("invalid JSON").Wrap(err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// ParseFile reads a manifest from disk. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON. Intended for local development
// workflows; fetched manifests are always JSON.
func ParseFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, oops.In("manifest").Code(errutil.CodeFetchFailed).With("path", path).Wrap(err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, oops.In("manifest").Code(errutil.CodeFetchFailed).With("path", path).Hint("invalid YAML").Wrap(err)
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		return &m, nil
	default:
		return Parse(data)
	}
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if !registry.ValidID(m.ID) {
		return oops.In("manifest").
			Code(errutil.CodeFetchFailed).
			With("id", m.ID).
			New("invalid plugin id")
	}

	if m.Version == "" {
		return oops.In("manifest").Code(errutil.CodeFetchFailed).With("id", m.ID).New("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return oops.In("manifest").
			Code(errutil.CodeFetchFailed).
			With("id", m.ID).
			With("version", m.Version).
			Hint("version must be semver").
			Wrap(err)
	}

	if m.UI.RemoteEntry == "" {
		return oops.In("manifest").Code(errutil.CodeFetchFailed).With("id", m.ID).New("ui.remoteEntry is required")
	}
	if m.UI.Expose == "" {
		return oops.In("manifest").Code(errutil.CodeFetchFailed).With("id", m.ID).New("ui.expose is required")
	}

	switch m.UI.Runtime {
	case "", RuntimeLua, RuntimeBinary:
	default:
		return oops.In("manifest").
			Code(errutil.CodeFetchFailed).
			With("id", m.ID).
			With("runtime", string(m.UI.Runtime)).
			New("ui.runtime must be 'lua' or 'binary'")
	}

	return nil
}

// RuntimeKind returns the declared runtime, defaulting to Lua when absent.
func (m *Manifest) RuntimeKind() RuntimeKind {
	if m.UI.Runtime == "" {
		return RuntimeLua
	}
	return m.UI.Runtime
}

// ExposedName returns ui.expose with any leading path-relative prefix stripped.
func (m *Manifest) ExposedName() string {
	return strings.TrimPrefix(m.UI.Expose, "./")
}

// ContainerName derives the runtime container name from the plugin id by
// stripping every character that is not alphanumeric.
func (m *Manifest) ContainerName() string {
	return ContainerName(m.ID)
}

// ContainerName strips every non-alphanumeric character from a plugin id.
func ContainerName(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
