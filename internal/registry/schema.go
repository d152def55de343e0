package registry

import "github.com/modfed/modfed/internal/docschema"

// listingValidator holds the compiled listing schema.
var listingValidator = docschema.NewValidator(GenerateSchema)

// GenerateSchema generates a JSON Schema for the registry listing document.
func GenerateSchema() ([]byte, error) {
	return docschema.Generate(&Listing{},
		SchemaID(),
		"ModFed Plugin Registry",
		"Schema for the top-level plugin registry document")
}

// ValidateSchema validates a registry document against the listing schema.
func ValidateSchema(data []byte) error {
	return listingValidator.Validate(data)
}

// SchemaID returns the schema $id for registry documents.
func SchemaID() string {
	return "https://modfed.dev/schemas/registry.schema.json"
}
