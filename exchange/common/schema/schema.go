// Package schema validates credentials against the JSON schemas they declare
// in credentialSchema.
package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateCredential validates a credential document against every schema
// referenced by its credentialSchema entries.
func ValidateCredential(credential map[string]interface{}) error {
	raw, exists := credential["credentialSchema"]
	if !exists {
		return fmt.Errorf("credentialSchema is required")
	}

	for _, schemaEntry := range asArray(raw) {
		schemaMap, ok := schemaEntry.(map[string]interface{})
		if !ok || schemaMap["id"] == nil {
			return fmt.Errorf("credentialSchema.id is required")
		}

		schemaID, ok := schemaMap["id"].(string)
		if !ok || schemaID == "" {
			return fmt.Errorf("credentialSchema.id must be a non-empty string")
		}

		schemaLoader := gojsonschema.NewReferenceLoader(schemaID)
		credentialLoader := gojsonschema.NewGoLoader(credential)

		result, err := gojsonschema.Validate(schemaLoader, credentialLoader)
		if err != nil {
			return fmt.Errorf("failed to validate schema: %w", err)
		}
		if !result.Valid() {
			return fmt.Errorf("credential validation failed: %v", result.Errors())
		}
	}
	return nil
}

// asArray ensures a value is represented as an array.
func asArray(value interface{}) []interface{} {
	if value == nil {
		return nil
	}
	if arr, ok := value.([]interface{}); ok {
		return arr
	}
	return []interface{}{value}
}
