package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEnvelope_Valid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{
			name: "minimal",
			json: `{"acknowledgement": "Done", "updatedSection": {}}`,
		},
		{
			name: "with document fields",
			json: `{"acknowledgement": "Great!", "updatedSection": {"title": "Backend Developer", "skills": ["Go"]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, ValidateEnvelope(tt.json))
		})
	}
}

func TestValidateEnvelope_Invalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"missing acknowledgement", `{"updatedSection": {}}`},
		{"missing updated section", `{"acknowledgement": "hi"}`},
		{"updated section not object", `{"acknowledgement": "hi", "updatedSection": ["a"]}`},
		{"acknowledgement not string", `{"acknowledgement": 7, "updatedSection": {}}`},
		{"extra top-level field", `{"acknowledgement": "hi", "updatedSection": {}, "extra": 1}`},
		{"top level not object", `["acknowledgement"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEnvelope(tt.json)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.NotEmpty(t, validationErr.Errors)
		})
	}
}

func TestValidateEnvelope_NotJSON(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"prose", "definitely not json"},
		{"truncated object", `{"acknowledgement": "hi", "updatedSect`},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEnvelope(tt.json)

			// Content problems report as validation failures; SchemaLoadError
			// is reserved for a broken schema.
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			var loadErr *SchemaLoadError
			assert.False(t, errors.As(err, &loadErr))
		})
	}
}
