// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

package luart

import (
	"context"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/modfed/modfed/internal/module"
	"github.com/modfed/modfed/pkg/errutil"
)

// Compile-time interface check.
var _ module.Runtime = (*Runtime)(nil)

// Runtime executes Lua bundles in-process, one sandboxed state per container.
//
// A bundle is expected to register a global table named after its container
// name. The table exports a required get(exposed) function returning a
// factory, and an optional init(shared) initializer.
type Runtime struct {
	factory *StateFactory
}

// New creates a Lua runtime.
func New() *Runtime {
	return &Runtime{factory: NewStateFactory()}
}

// Instantiate evaluates the bundle and resolves its container table.
func (r *Runtime) Instantiate(ctx context.Context, bundle module.Bundle, containerName string) (module.Container, error) {
	L, err := r.factory.NewState(ctx)
	if err != nil {
		return nil, oops.In("luart").
			Code(errutil.CodeLoadFailed).
			With("plugin", bundle.PluginID).
			Wrap(err)
	}
	L.SetContext(ctx)

	if err := L.DoString(string(bundle.Data)); err != nil {
		L.Close()
		return nil, oops.In("luart").
			Code(errutil.CodeLoadFailed).
			With("plugin", bundle.PluginID).
			With("container", containerName).
			Wrapf(err, "fetch failed")
	}

	tbl, ok := L.GetGlobal(containerName).(*lua.LTable)
	if !ok {
		L.Close()
		return nil, oops.In("luart").
			Code(errutil.CodeLoadFailed).
			With("plugin", bundle.PluginID).
			With("container", containerName).
			New("container missing")
	}

	return &container{
		pluginID: bundle.PluginID,
		name:     containerName,
		state:    L,
		table:    tbl,
	}, nil
}

// container wraps the bundle's global table. All access to the underlying
// Lua state goes through the container's mutex; gopher-lua states are not
// safe for concurrent use.
type container struct {
	pluginID string
	name     string

	mu     sync.Mutex
	state  *lua.LState
	table  *lua.LTable
	closed bool
}

func (c *container) errb() oops.OopsErrorBuilder {
	return oops.In("luart").
		Code(errutil.CodeLoadFailed).
		With("plugin", c.pluginID).
		With("container", c.name)
}

// Init calls the container's init(shared) function when the bundle exports
// one. Containers without an initializer succeed trivially.
func (c *container) Init(ctx context.Context, shared map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return c.errb().New("container is closed")
	}

	initFn := c.state.GetField(c.table, "init")
	if initFn.Type() == lua.LTNil {
		return nil
	}

	c.state.SetContext(ctx)
	sharedTable := c.state.NewTable()
	for k, v := range shared {
		c.state.SetField(sharedTable, k, lua.LString(v))
	}

	if err := c.state.CallByParam(lua.P{
		Fn:      initFn,
		NRet:    0,
		Protect: true,
	}, sharedTable); err != nil {
		return c.errb().Hint("init(shared) raised an error").Wrap(err)
	}

	return nil
}

// Get resolves the exposed module through the container's get function and
// returns a factory producing handles bound to this container's state.
func (c *container) Get(ctx context.Context, exposed string) (module.Factory, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, c.errb().New("container is closed")
	}

	getFn := c.state.GetField(c.table, "get")
	if getFn.Type() == lua.LTNil {
		return nil, c.errb().New("container does not export get")
	}

	c.state.SetContext(ctx)
	if err := c.state.CallByParam(lua.P{
		Fn:      getFn,
		NRet:    1,
		Protect: true,
	}, lua.LString(exposed)); err != nil {
		return nil, c.errb().With("expose", exposed).Hint("get(exposed) raised an error").Wrap(err)
	}

	factoryFn := c.state.Get(-1)
	c.state.Pop(1)
	if factoryFn.Type() != lua.LTFunction {
		return nil, c.errb().
			With("expose", exposed).
			With("got", factoryFn.Type().String()).
			New("get(exposed) did not return a factory function")
	}

	return func(context.Context) (module.Handle, error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.closed {
			return nil, c.errb().New("container is closed")
		}

		if err := c.state.CallByParam(lua.P{
			Fn:      factoryFn,
			NRet:    1,
			Protect: true,
		}); err != nil {
			return nil, c.errb().With("expose", exposed).Hint("factory raised an error").Wrap(err)
		}

		moduleTable, ok := c.state.Get(-1).(*lua.LTable)
		c.state.Pop(1)
		if !ok {
			return nil, c.errb().With("expose", exposed).New("factory did not return a module table")
		}

		return &handle{container: c, module: moduleTable}, nil
	}, nil
}

// Close tears down the Lua state. Idempotent.
func (c *container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.state.Close()
	return nil
}

// handle is a loaded Lua module table. Invocations share the container's
// state under its mutex.
type handle struct {
	container *container
	module    *lua.LTable
}

func (h *handle) PluginID() string {
	return h.container.pluginID
}

// Invoke calls a named function on the module table, passing the payload as
// a string and returning the string result.
func (h *handle) Invoke(ctx context.Context, fn string, payload []byte) ([]byte, error) {
	c := h.container
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, c.errb().New("container is closed")
	}

	fnVal := c.state.GetField(h.module, fn)
	if fnVal.Type() != lua.LTFunction {
		return nil, c.errb().With("fn", fn).New("module does not export function")
	}

	c.state.SetContext(ctx)
	if err := c.state.CallByParam(lua.P{
		Fn:      fnVal,
		NRet:    1,
		Protect: true,
	}, lua.LString(payload)); err != nil {
		return nil, c.errb().With("fn", fn).Wrap(err)
	}

	ret := c.state.Get(-1)
	c.state.Pop(1)
	if ret.Type() == lua.LTNil {
		return nil, nil
	}
	return []byte(ret.String()), nil
}

// Close is a no-op: the module's state belongs to its container.
func (h *handle) Close() error {
	return nil
}
