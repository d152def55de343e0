package manifest

import "github.com/modfed/modfed/internal/docschema"

// manifestValidator holds the compiled manifest schema.
var manifestValidator = docschema.NewValidator(GenerateSchema)

// GenerateSchema generates a JSON Schema for plugin manifest documents.
func GenerateSchema() ([]byte, error) {
	return docschema.Generate(&Manifest{},
		SchemaID(),
		"ModFed Plugin Manifest",
		"Schema for per-plugin manifest documents")
}

// ValidateSchema validates a manifest document against the manifest schema.
func ValidateSchema(data []byte) error {
	return manifestValidator.Validate(data)
}

// SchemaID returns the schema $id for manifest documents.
func SchemaID() string {
	return "https://modfed.dev/schemas/manifest.schema.json"
}
