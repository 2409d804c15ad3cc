// Package schemas provides JSON Schema validation for structured model
// output. The chat turn envelope is the only shape the model is ever allowed
// to return; validating it here keeps the strict-parse boundary in one place.
package schemas

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// envelopeSchema is the strict two-field shape every chat turn must match.
// acknowledgement is plain prose for direct display; updatedSection is a
// partial document handed to the patch validator.
const envelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["acknowledgement", "updatedSection"],
  "additionalProperties": false,
  "properties": {
    "acknowledgement": {"type": "string"},
    "updatedSection": {"type": "object"}
  }
}`

// ValidationError represents a schema validation failure with field paths.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field.
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// SchemaLoadError represents errors loading or parsing the schema itself.
type SchemaLoadError struct {
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema: %s", e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// ValidateEnvelope checks a JSON document against the chat envelope schema.
func ValidateEnvelope(jsonContent string) error {
	return ValidateJSONString(envelopeSchema, jsonContent)
}

// ValidateJSONString validates JSON string content against schema string
// content, returning a structured ValidationError on mismatch.
func ValidateJSONString(schemaContent, jsonContent string) error {
	// Malformed document content is the document's fault, not the schema's.
	if !json.Valid([]byte(jsonContent)) {
		return &ValidationError{
			Errors: []FieldError{{Field: "(root)", Message: "invalid JSON"}},
		}
	}

	schemaLoader := gojsonschema.NewStringLoader(schemaContent)
	documentLoader := gojsonschema.NewStringLoader(jsonContent)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaLoadError{
			Message: "schema validation failed during load",
			Cause:   err,
		}
	}

	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
