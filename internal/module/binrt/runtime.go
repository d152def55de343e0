// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

// Package binrt loads binary plugin bundles as subprocesses using
// HashiCorp's go-plugin system over net/rpc.
package binrt

import (
	"context"
	"os/exec"

	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/samber/oops"

	"github.com/modfed/modfed/internal/module"
	"github.com/modfed/modfed/pkg/errutil"
	"github.com/modfed/modfed/pkg/pluginsdk"
)

// Compile-time interface check.
var _ module.Runtime = (*Runtime)(nil)

// PluginClient wraps a go-plugin client for testability.
type PluginClient interface {
	// Client returns the RPC client protocol.
	Client() (hashiplug.ClientProtocol, error)
	// Kill terminates the plugin process.
	Kill()
}

// ClientFactory creates plugin clients.
type ClientFactory interface {
	// NewClient creates a client for the given executable path and
	// container name.
	NewClient(execPath, containerName string) PluginClient
}

// DefaultClientFactory creates real go-plugin clients.
type DefaultClientFactory struct{}

// NewClient creates a real go-plugin client.
func (f *DefaultClientFactory) NewClient(execPath, containerName string) PluginClient {
	return hashiplug.NewClient(&hashiplug.ClientConfig{
		HandshakeConfig: pluginsdk.Handshake,
		Plugins: map[string]hashiplug.Plugin{
			containerName: &pluginsdk.ContainerPlugin{},
		},
		Cmd:              exec.Command(execPath), // #nosec G204 -- execPath is staged under the bundle cache from a validated manifest
		AllowedProtocols: []hashiplug.Protocol{hashiplug.ProtocolNetRPC},
	})
}

// Runtime instantiates binary plugin containers. The fetched bundle is the
// plugin executable itself; it is run from its staged path under the bundle
// cache.
type Runtime struct {
	clientFactory ClientFactory
}

// New creates a binary runtime.
func New() *Runtime {
	return &Runtime{clientFactory: &DefaultClientFactory{}}
}

// NewWithFactory creates a binary runtime with a custom client factory
// (for testing). Panics if factory is nil.
func NewWithFactory(factory ClientFactory) *Runtime {
	if factory == nil {
		panic("binrt: factory cannot be nil")
	}
	return &Runtime{clientFactory: factory}
}

// Instantiate starts the bundle executable and dispenses its container.
func (r *Runtime) Instantiate(_ context.Context, bundle module.Bundle, containerName string) (module.Container, error) {
	errb := oops.In("binrt").
		Code(errutil.CodeLoadFailed).
		With("plugin", bundle.PluginID).
		With("container", containerName)

	client := r.clientFactory.NewClient(bundle.Path, containerName)

	protocol, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, errb.Wrapf(err, "fetch failed")
	}

	raw, err := protocol.Dispense(containerName)
	if err != nil {
		client.Kill()
		return nil, errb.Wrapf(err, "container missing")
	}

	cc, ok := raw.(pluginsdk.ContainerClient)
	if !ok {
		client.Kill()
		return nil, errb.New("container missing")
	}

	return &container{
		pluginID: bundle.PluginID,
		name:     containerName,
		client:   client,
		cc:       cc,
	}, nil
}

// container wraps a running plugin subprocess.
type container struct {
	pluginID string
	name     string
	client   PluginClient
	cc       pluginsdk.ContainerClient
}

func (c *container) errb() oops.OopsErrorBuilder {
	return oops.In("binrt").
		Code(errutil.CodeLoadFailed).
		With("plugin", c.pluginID).
		With("container", c.name)
}

// Init passes the shared scope to the container's initializer.
func (c *container) Init(_ context.Context, shared map[string]string) error {
	if err := c.cc.Init(shared); err != nil {
		return c.errb().Hint("container init failed").Wrap(err)
	}
	return nil
}

// Get instantiates the exposed module in the subprocess and returns a
// factory producing handles bound to it.
func (c *container) Get(_ context.Context, exposed string) (module.Factory, error) {
	if err := c.cc.Get(exposed); err != nil {
		return nil, c.errb().With("expose", exposed).Wrap(err)
	}

	return func(context.Context) (module.Handle, error) {
		return &handle{container: c, exposed: exposed}, nil
	}, nil
}

// Close kills the plugin subprocess.
func (c *container) Close() error {
	c.client.Kill()
	return nil
}

// handle is a loaded module living in a plugin subprocess.
type handle struct {
	container *container
	exposed   string
}

func (h *handle) PluginID() string {
	return h.container.pluginID
}

// Invoke calls a named function on the module over RPC.
func (h *handle) Invoke(_ context.Context, fn string, payload []byte) ([]byte, error) {
	out, err := h.container.cc.Invoke(h.exposed, fn, payload)
	if err != nil {
		return nil, h.container.errb().With("fn", fn).Wrap(err)
	}
	return out, nil
}

// Close is a no-op: the subprocess belongs to the container.
func (h *handle) Close() error {
	return nil
}
