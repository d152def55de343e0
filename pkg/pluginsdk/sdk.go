// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

// Package pluginsdk is the SDK for binary plugin containers. Plugin authors
// implement Module, describe their container in a ServeConfig, and call
// Serve from main().
package pluginsdk

import (
	"net/rpc"
	"sync"

	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/samber/oops"
)

// Handshake is the go-plugin handshake configuration.
// Both host and plugins must use the same values.
var Handshake = hashiplug.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "MODFED_PLUGIN",
	MagicCookieValue: "modfed-v1",
}

// Module is the interface plugin modules implement.
type Module interface {
	// Invoke handles a named function call with an opaque payload.
	Invoke(fn string, payload []byte) ([]byte, error)
}

// ModuleFunc adapts a function to the Module interface.
type ModuleFunc func(fn string, payload []byte) ([]byte, error)

// Invoke implements Module.
func (f ModuleFunc) Invoke(fn string, payload []byte) ([]byte, error) {
	return f(fn, payload)
}

// ServeConfig describes the container a plugin binary serves.
type ServeConfig struct {
	// ContainerName is the container's registered name: the plugin id with
	// every non-alphanumeric character stripped. Required.
	ContainerName string
	// Exposes maps exposed module names to their factories. Required,
	// must be non-empty.
	Exposes map[string]func() Module
	// Init receives the host's shared scope before any module is handed
	// out. Optional.
	Init func(shared map[string]string) error
}

// Serve starts the plugin container server. Call from main(); it blocks and
// never returns under normal operation.
//
// Example usage:
//
//	package main
//
//	import "github.com/modfed/modfed/pkg/pluginsdk"
//
//	func main() {
//		pluginsdk.Serve(&pluginsdk.ServeConfig{
//			ContainerName: "comacmecalendar",
//			Exposes: map[string]func() pluginsdk.Module{
//				"PluginApp": func() pluginsdk.Module {
//					return pluginsdk.ModuleFunc(func(fn string, payload []byte) ([]byte, error) {
//						return payload, nil
//					})
//				},
//			},
//		})
//	}
func Serve(config *ServeConfig) {
	if config == nil {
		panic("pluginsdk: config cannot be nil")
	}
	if config.ContainerName == "" {
		panic("pluginsdk: config.ContainerName cannot be empty")
	}
	if len(config.Exposes) == 0 {
		panic("pluginsdk: config.Exposes cannot be empty")
	}
	hashiplug.Serve(&hashiplug.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]hashiplug.Plugin{
			config.ContainerName: &ContainerPlugin{Config: config},
		},
	})
}

// ContainerClient is the host-side view of a served container.
type ContainerClient interface {
	// Init passes the shared scope to the container's initializer.
	Init(shared map[string]string) error
	// Get instantiates the module exposed under the given name.
	Get(exposed string) error
	// Invoke calls a function on a previously instantiated module.
	Invoke(exposed, fn string, payload []byte) ([]byte, error)
}

// ContainerPlugin implements go-plugin's Plugin interface over net/rpc.
// Config is only set on the plugin side; the host side dispenses a
// ContainerClient.
type ContainerPlugin struct {
	Config *ServeConfig
}

// Server returns the RPC receiver for the container (plugin side).
func (p *ContainerPlugin) Server(*hashiplug.MuxBroker) (any, error) {
	if p.Config == nil {
		return nil, oops.In("pluginsdk").New("serve config is nil")
	}
	return &containerServer{
		config:  p.Config,
		modules: make(map[string]Module),
	}, nil
}

// Client returns the RPC client wrapper for the container (host side).
func (p *ContainerPlugin) Client(_ *hashiplug.MuxBroker, c *rpc.Client) (any, error) {
	return &ContainerRPC{client: c}, nil
}

// InvokeArgs carries an Invoke call over the wire.
type InvokeArgs struct {
	Exposed string
	Fn      string
	Payload []byte
}

// InvokeReply carries an Invoke result over the wire.
type InvokeReply struct {
	Result []byte
}

// containerServer is the plugin-side RPC receiver.
type containerServer struct {
	config *ServeConfig

	mu      sync.Mutex
	modules map[string]Module
}

// Init runs the container's optional initializer.
func (s *containerServer) Init(shared map[string]string, _ *struct{}) error {
	if s.config.Init == nil {
		return nil
	}
	return s.config.Init(shared)
}

// Get instantiates the named exposed module. Instantiating the same name
// twice reuses the first instance.
func (s *containerServer) Get(exposed string, _ *struct{}) error {
	factory, ok := s.config.Exposes[exposed]
	if !ok {
		return oops.In("pluginsdk").With("expose", exposed).New("container does not expose module")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.modules[exposed]; !ok {
		s.modules[exposed] = factory()
	}
	return nil
}

// Invoke calls a function on an instantiated module.
func (s *containerServer) Invoke(args InvokeArgs, reply *InvokeReply) error {
	s.mu.Lock()
	m, ok := s.modules[args.Exposed]
	s.mu.Unlock()
	if !ok {
		return oops.In("pluginsdk").With("expose", args.Exposed).New("module not instantiated")
	}

	result, err := m.Invoke(args.Fn, args.Payload)
	if err != nil {
		return err
	}
	reply.Result = result
	return nil
}

// ContainerRPC is the host-side RPC wrapper around a served container.
type ContainerRPC struct {
	client *rpc.Client
}

var _ ContainerClient = (*ContainerRPC)(nil)

// Init implements ContainerClient.
func (c *ContainerRPC) Init(shared map[string]string) error {
	if shared == nil {
		shared = map[string]string{}
	}
	return c.client.Call("Plugin.Init", shared, &struct{}{})
}

// Get implements ContainerClient.
func (c *ContainerRPC) Get(exposed string) error {
	return c.client.Call("Plugin.Get", exposed, &struct{}{})
}

// Invoke implements ContainerClient.
func (c *ContainerRPC) Invoke(exposed, fn string, payload []byte) ([]byte, error) {
	var reply InvokeReply
	if err := c.client.Call("Plugin.Invoke", InvokeArgs{
		Exposed: exposed,
		Fn:      fn,
		Payload: payload,
	}, &reply); err != nil {
		return nil, err
	}
	return reply.Result, nil
}
