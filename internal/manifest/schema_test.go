package manifest_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modfed/modfed/internal/manifest"
)

func TestGenerateSchema(t *testing.T) {
	data, err := manifest.GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))

	assert.Equal(t, manifest.SchemaID(), schema["$id"])
	assert.Equal(t, "ModFed Plugin Manifest", schema["title"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "schema must have properties")
	assert.Contains(t, props, "id")
	assert.Contains(t, props, "ui")
}

func TestValidateSchema_ValidDocument(t *testing.T) {
	assert.NoError(t, manifest.ValidateSchema([]byte(calendarManifest)))
}

func TestValidateSchema_RejectsWrongShape(t *testing.T) {
	doc := `{"id": "calendar", "ui": "not-an-object"}`
	assert.Error(t, manifest.ValidateSchema([]byte(doc)))
}
