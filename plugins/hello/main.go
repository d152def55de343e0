// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

// Package main implements a minimal binary plugin container.
//
// Build it and publish the executable as the plugin's remoteEntry:
//
//	go build -o hello ./plugins/hello
//
// The container registers under the name "hello" (the plugin id with
// non-alphanumeric characters stripped) and exposes one module,
// "PluginApp", with a single greet function.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/modfed/modfed/pkg/pluginsdk"
)

// helloModule greets whoever is named in the payload.
type helloModule struct {
	hostVersion string
}

// greetRequest is the JSON payload for the greet function.
type greetRequest struct {
	Name string `json:"name"`
}

// Invoke implements pluginsdk.Module.
func (m *helloModule) Invoke(fn string, payload []byte) ([]byte, error) {
	switch fn {
	case "greet":
		var req greetRequest
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return nil, fmt.Errorf("invalid greet payload: %w", err)
			}
		}
		if req.Name == "" {
			req.Name = "world"
		}
		return fmt.Appendf(nil, "hello, %s (host %s)", req.Name, m.hostVersion), nil
	default:
		return nil, fmt.Errorf("unknown function %q", fn)
	}
}

func main() {
	var hostVersion string

	pluginsdk.Serve(&pluginsdk.ServeConfig{
		ContainerName: "hello",
		Init: func(shared map[string]string) error {
			hostVersion = shared["hostVersion"]
			return nil
		},
		Exposes: map[string]func() pluginsdk.Module{
			"PluginApp": func() pluginsdk.Module {
				return &helloModule{hostVersion: hostVersion}
			},
		},
	})
}
