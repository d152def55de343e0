// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

// Command gen-schema generates the registry and manifest JSON Schema files.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/modfed/modfed/internal/manifest"
	"github.com/modfed/modfed/internal/registry"
)

func main() {
	schemas := []struct {
		name     string
		generate func() ([]byte, error)
	}{
		{"registry.schema.json", registry.GenerateSchema},
		{"manifest.schema.json", manifest.GenerateSchema},
	}

	for _, s := range schemas {
		data, err := s.generate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating %s: %v\n", s.name, err)
			os.Exit(1)
		}

		outPath := filepath.Join("schemas", s.name)
		if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
			os.Exit(1)
		}

		if err := os.WriteFile(outPath, data, 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Generated %s\n", outPath)
	}
}
