package registry_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modfed/modfed/internal/registry"
)

func TestGenerateSchema(t *testing.T) {
	data, err := registry.GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))

	assert.Equal(t, registry.SchemaID(), schema["$id"])
	assert.Equal(t, "ModFed Plugin Registry", schema["title"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "schema must have properties")
	assert.Contains(t, props, "plugins")
	assert.Contains(t, props, "version")
}

func TestValidateSchema_ValidDocument(t *testing.T) {
	doc := `{
		"version": "1",
		"lastUpdated": "2026-08-20T12:00:00Z",
		"plugins": [
			{"id": "calendar", "name": "Calendar", "version": "1.0.0", "manifestUrl": "https://example.com/m.json"}
		]
	}`
	assert.NoError(t, registry.ValidateSchema([]byte(doc)))
}

func TestValidateSchema_RejectsWrongShape(t *testing.T) {
	doc := `{"plugins": "not-an-array"}`
	assert.Error(t, registry.ValidateSchema([]byte(doc)))
}
