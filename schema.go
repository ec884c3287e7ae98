package springseq

import (
	"encoding/json"
	"strings"

	"github.com/zoobzio/sentinel"
)

// rowSchema renders the JSON schema of a sequence table (an array of Row).
func rowSchema() string {
	metadata := sentinel.Inspect[Row]()

	schema := map[string]interface{}{
		"type": "array",
		"items": map[string]interface{}{
			"type":                 "object",
			"properties":           buildProperties(metadata.Fields),
			"required":             buildRequiredFields(metadata.Fields),
			"additionalProperties": false,
		},
	}

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(jsonBytes)
}

// buildProperties converts field metadata to JSON Schema properties.
func buildProperties(fields []sentinel.FieldMetadata) map[string]interface{} {
	properties := make(map[string]interface{})

	for _, field := range fields {
		jsonName := getJSONFieldName(field)
		if jsonName == "-" {
			continue
		}

		prop := map[string]interface{}{
			"type": "string",
		}
		if desc, ok := field.Tags["desc"]; ok {
			prop["description"] = desc
		}
		properties[jsonName] = prop
	}

	return properties
}

// buildRequiredFields lists every serialized field; a row always carries all seven.
func buildRequiredFields(fields []sentinel.FieldMetadata) []string {
	var required []string
	for _, field := range fields {
		if jsonName := getJSONFieldName(field); jsonName != "-" {
			required = append(required, jsonName)
		}
	}
	return required
}

// getJSONFieldName extracts the JSON field name from metadata.
func getJSONFieldName(field sentinel.FieldMetadata) string {
	if jsonTag, ok := field.Tags["json"]; ok {
		parts := strings.Split(jsonTag, ",")
		if len(parts) > 0 && parts[0] != "" {
			return parts[0]
		}
	}
	return field.Name
}
