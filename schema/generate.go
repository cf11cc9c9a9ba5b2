package schema

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Generate reflects a JSON schema for v using its yaml field names. Only
// fields tagged `jsonschema:"required"` are required.
func Generate(v interface{}, title, description string) ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		ExpandedStruct:             true,
		FieldNameTag:               "yaml",
		RequiredFromJSONSchemaTags: true,
	}

	s := r.Reflect(v)
	s.Title = title
	s.Description = description

	return json.MarshalIndent(s, "", "  ")
}
