package httpapi

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/relink-labs/relink/record"
)

// Request body schemas, compiled once at startup. The key itself arrives in
// the URL path and is validated separately against record.KeyPattern.
var (
	mutateSchema = jsonschema.MustCompileString("mutate.json", fmt.Sprintf(`{
		"type": "object",
		"properties": {
			"value": {"type": "string", "minLength": 1},
			"ttl": {"type": "integer", "minimum": %d}
		},
		"required": ["value"],
		"additionalProperties": false
	}`, record.MinTTL))

	bulkSchema = jsonschema.MustCompileString("bulk.json", fmt.Sprintf(`{
		"type": "array",
		"minItems": 1,
		"maxItems": 100,
		"items": {
			"type": "object",
			"properties": {
				"key": {"type": "string", "pattern": %q},
				"value": {"type": "string", "minLength": 1},
				"token": {"type": "string", "minLength": 1}
			},
			"required": ["key", "value", "token"],
			"additionalProperties": false
		}
	}`, record.KeyPattern))
)

// decodeValidated unmarshals body against schema and then into out. It
// returns human-readable reasons on failure, suitable for a BadRequest
// envelope.
func decodeValidated(body []byte, schema *jsonschema.Schema, out any) []string {
	if len(body) == 0 {
		return []string{"Missing body"}
	}
	var loose any
	if err := json.Unmarshal(body, &loose); err != nil {
		return []string{"Body is not valid JSON", err.Error()}
	}
	if err := schema.Validate(loose); err != nil {
		return []string{"Invalid request body", err.Error()}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return []string{"Invalid request body", err.Error()}
	}
	return nil
}
