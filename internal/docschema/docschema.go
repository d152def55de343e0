// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

// Package docschema generates and validates JSON Schemas for the wire
// documents the loading engine consumes (registry listing, plugin manifest).
package docschema

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Generate reflects a JSON Schema from the given document struct.
func Generate(doc any, id, title, description string) ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(doc)

	schema.ID = jsonschema.ID(id)
	schema.Title = title
	schema.Description = description

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

// Validator validates JSON documents against a lazily compiled schema.
type Validator struct {
	generate func() ([]byte, error)

	mu       sync.Mutex
	compiled *jschema.Schema
}

// NewValidator creates a validator whose schema comes from generate.
// Compilation happens on first use and is cached.
func NewValidator(generate func() ([]byte, error)) *Validator {
	return &Validator{generate: generate}
}

// Validate checks a JSON document against the schema.
func (v *Validator) Validate(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("document is empty")
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	sch, err := v.schema()
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}

// schema returns the cached compiled schema, compiling it on first use.
func (v *Validator) schema() (*jschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.compiled != nil {
		return v.compiled, nil
	}

	schemaBytes, err := v.generate()
	if err != nil {
		return nil, err
	}

	var schemaData any
	if err := json.Unmarshal(schemaBytes, &schemaData); err != nil {
		return nil, fmt.Errorf("failed to parse schema JSON: %w", err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaData); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	sch, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	v.compiled = sch
	return sch, nil
}

// FormatError formats a schema validation error for display.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if strings.Contains(msg, "schema validation failed:") {
		msg = strings.TrimPrefix(msg, "schema validation failed: ")
	}
	return msg
}
