// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

// Package module loads remote plugin modules through pluggable runtimes and
// memoizes the resulting handles.
package module

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/modfed/modfed/internal/manifest"
	"github.com/modfed/modfed/internal/observability"
	"github.com/modfed/modfed/internal/xdg"
	"github.com/modfed/modfed/pkg/errutil"
)

// Fetcher retrieves a raw document by URL.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Handle is a loaded, callable plugin module.
type Handle interface {
	// PluginID returns the id of the plugin this module came from.
	PluginID() string
	// Invoke calls a named function exported by the module.
	Invoke(ctx context.Context, fn string, payload []byte) ([]byte, error)
	// Close releases the module's resources.
	Close() error
}

// Factory produces a module instance. Containers hand these out from Get;
// the loader calls the factory exactly once per successful load.
type Factory func(ctx context.Context) (Handle, error)

// Container is an instantiated plugin bundle. Init is optional for the
// bundle author; containers whose bundle exports no initializer treat Init
// as a no-op.
type Container interface {
	Init(ctx context.Context, shared map[string]string) error
	Get(ctx context.Context, exposed string) (Factory, error)
	Close() error
}

// Bundle is a fetched remote entry, in memory and staged on disk.
type Bundle struct {
	PluginID string
	Data     []byte
	// Path is where the bundle was written under the cache directory.
	// Runtimes that execute a subprocess load from here.
	Path string
}

// Runtime instantiates containers from bundles. The container must be
// resolvable under the given name; a bundle that evaluates cleanly but does
// not register that name is a load failure.
type Runtime interface {
	Instantiate(ctx context.Context, bundle Bundle, containerName string) (Container, error)
}

// flight tracks an in-progress load so concurrent requests for the same
// plugin share one outcome instead of racing duplicate loads.
type flight struct {
	done   chan struct{}
	handle Handle
	err    error
}

// Loader fetches, instantiates, and memoizes plugin modules.
//
// Successful loads are cached by plugin id for the loader's lifetime.
// Failed loads are never cached: the next request retries from scratch.
type Loader struct {
	fetcher  Fetcher
	runtimes map[manifest.RuntimeKind]Runtime
	shared   map[string]string
	cacheDir string

	mu       sync.Mutex
	loaded   map[string]Handle
	inflight map[string]*flight
}

// Option configures the Loader.
type Option func(*Loader)

// WithRuntime registers a runtime for a bundle kind.
func WithRuntime(kind manifest.RuntimeKind, rt Runtime) Option {
	return func(l *Loader) {
		l.runtimes[kind] = rt
	}
}

// WithShared sets the shared scope passed to every container's initializer.
func WithShared(shared map[string]string) Option {
	return func(l *Loader) {
		l.shared = shared
	}
}

// WithCacheDir overrides where fetched bundles are staged.
func WithCacheDir(dir string) Option {
	return func(l *Loader) {
		if dir != "" {
			l.cacheDir = dir
		}
	}
}

// NewLoader creates a module loader. Panics if fetcher is nil.
func NewLoader(fetcher Fetcher, opts ...Option) *Loader {
	if fetcher == nil {
		panic("module: fetcher cannot be nil")
	}
	l := &Loader{
		fetcher:  fetcher,
		runtimes: make(map[manifest.RuntimeKind]Runtime),
		cacheDir: xdg.BundleCacheDir(),
		loaded:   make(map[string]Handle),
		inflight: make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the module for a plugin, loading it on first use.
//
// The first call for a plugin id performs the full fetch/instantiate/init/get
// sequence; later calls return the memoized handle with no side effects.
// Concurrent calls for the same id share a single load. A failed load is not
// memoized, so a later call retries.
func (l *Loader) Load(ctx context.Context, m *manifest.Manifest) (Handle, error) {
	l.mu.Lock()
	if h, ok := l.loaded[m.ID]; ok {
		l.mu.Unlock()
		observability.RecordModuleLoad("cached")
		return h, nil
	}
	if f, ok := l.inflight[m.ID]; ok {
		l.mu.Unlock()
		select {
		case <-f.done:
			return f.handle, f.err
		case <-ctx.Done():
			return nil, oops.In("module").
				Code(errutil.CodeLoadFailed).
				With("plugin", m.ID).
				Wrap(ctx.Err())
		}
	}
	f := &flight{done: make(chan struct{})}
	l.inflight[m.ID] = f
	l.mu.Unlock()

	h, err := l.load(ctx, m)

	l.mu.Lock()
	delete(l.inflight, m.ID)
	if err == nil {
		l.loaded[m.ID] = h
	}
	l.mu.Unlock()

	f.handle, f.err = h, err
	close(f.done)

	if err != nil {
		observability.RecordModuleLoad("error")
		errutil.LogError(slog.Default().With("plugin", m.ID), "module load failed", err)
		return nil, err
	}
	observability.RecordModuleLoad("success")
	return h, nil
}

func (l *Loader) load(ctx context.Context, m *manifest.Manifest) (Handle, error) {
	loadID := ulid.Make().String()
	errb := oops.In("module").
		Code(errutil.CodeLoadFailed).
		With("plugin", m.ID).
		With("load_id", loadID)

	rt, ok := l.runtimes[m.RuntimeKind()]
	if !ok {
		return nil, errb.
			With("runtime", string(m.RuntimeKind())).
			New("no runtime registered for bundle kind")
	}

	data, err := l.fetcher.Get(ctx, m.UI.RemoteEntry)
	if err != nil {
		return nil, errb.With("url", m.UI.RemoteEntry).Wrapf(err, "fetch failed")
	}

	name := m.ContainerName()
	path, err := l.stage(name, data)
	if err != nil {
		return nil, errb.Wrap(err)
	}

	container, err := rt.Instantiate(ctx, Bundle{PluginID: m.ID, Data: data, Path: path}, name)
	if err != nil {
		return nil, errb.Wrap(err)
	}

	if err := container.Init(ctx, l.shared); err != nil {
		closeErr := container.Close()
		return nil, errb.Wrap(errors.Join(err, closeErr))
	}

	factory, err := container.Get(ctx, m.ExposedName())
	if err != nil {
		closeErr := container.Close()
		return nil, errb.With("expose", m.ExposedName()).Wrap(errors.Join(err, closeErr))
	}

	h, err := factory(ctx)
	if err != nil {
		closeErr := container.Close()
		return nil, errb.Wrap(errors.Join(err, closeErr))
	}

	slog.Info("module loaded",
		"plugin", m.ID,
		"load_id", loadID,
		"runtime", string(m.RuntimeKind()),
		"container", name)

	return &loadedModule{Handle: h, container: container}, nil
}

// stage writes the fetched bundle under the cache directory so subprocess
// runtimes can execute it.
func (l *Loader) stage(containerName string, data []byte) (string, error) {
	dir := filepath.Join(l.cacheDir, containerName)
	if err := xdg.EnsureDir(dir); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "bundle")
	if err := os.WriteFile(path, data, 0o700); err != nil {
		return "", err
	}
	return path, nil
}

// ClearCache closes and forgets every memoized module.
func (l *Loader) ClearCache() error {
	l.mu.Lock()
	handles := l.loaded
	l.loaded = make(map[string]Handle)
	l.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Loaded reports whether a plugin's module is currently memoized.
func (l *Loader) Loaded(pluginID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.loaded[pluginID]
	return ok
}

// loadedModule pairs a handle with its container so Close tears both down.
type loadedModule struct {
	Handle
	container Container
}

func (m *loadedModule) Close() error {
	return errors.Join(m.Handle.Close(), m.container.Close())
}
