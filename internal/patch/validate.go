package patch

import (
	"fmt"
	"strconv"
)

// Patch is a validated partial document: a subset of top-level document keys,
// each holding a normalized full replacement value. Keys that failed
// validation are absent.
type Patch map[string]any

// The two protocol fields from the model envelope. Models occasionally nest
// the envelope inside the update section; tolerate and skip them.
var protocolFields = map[string]bool{
	"acknowledgement": true,
	"updatedSection":  true,
}

var scalarFields = map[string]bool{
	"name":    true,
	"title":   true,
	"summary": true,
}

var stringListFields = map[string]bool{
	"skills":       true,
	"achievements": true,
}

var contactFields = []string{"email", "phone", "location", "linkedin", "github", "blogs"}

// recordFields maps each record-sequence field to its element keys and the
// keys an element must carry to be kept.
var recordFields = map[string]struct {
	keys     []string
	required []string
}{
	"experience": {
		keys:     []string{"title", "company", "location", "period", "description"},
		required: []string{"title", "company"},
	},
	"education": {
		keys:     []string{"degree", "institution", "year"},
		required: []string{"degree", "institution"},
	},
	"projects": {
		keys:     []string{"name", "description"},
		required: []string{"name"},
	},
}

// Validate normalizes raw model output into a Patch. Field-level problems are
// fail-soft: the offending field or element is dropped and reported as a
// Warning. Only a non-object top level or an unknown top-level key rejects the
// whole patch.
func Validate(raw any) (Patch, []Warning, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, nil, &MalformedPatchError{
			Message: fmt.Sprintf("update section must be an object, got %T", raw),
		}
	}

	known := make(map[string]bool)
	for _, f := range documentFields() {
		known[f] = true
	}
	for key := range obj {
		if !known[key] && !protocolFields[key] {
			return nil, nil, &MalformedPatchError{
				Message: fmt.Sprintf("unknown field %q", key),
			}
		}
	}

	p := make(Patch)
	var warnings []Warning

	for key, value := range obj {
		switch {
		case protocolFields[key]:
			// Envelope field leaked into the update section; not document data.
			continue

		case scalarFields[key]:
			s, ok := coerceString(value)
			if !ok {
				warnings = append(warnings, Warning{Field: key, Message: fmt.Sprintf("expected string, got %T", value)})
				continue
			}
			p[key] = s

		case key == "contact":
			contact, ws := validateContact(value)
			warnings = append(warnings, ws...)
			if contact != nil {
				p[key] = contact
			}

		case stringListFields[key]:
			list, ws, ok := coerceStringList(key, value)
			warnings = append(warnings, ws...)
			if ok {
				p[key] = list
			}

		default: // record sequences
			list, ws, ok := validateRecords(key, value)
			warnings = append(warnings, ws...)
			if ok {
				p[key] = list
			}
		}
	}

	return p, warnings, nil
}

func documentFields() []string {
	return []string{
		"name", "title", "contact", "summary",
		"experience", "education", "skills", "projects", "achievements",
	}
}

// validateContact normalizes the contact object. Unknown or ill-typed
// sub-fields are dropped with warnings. Returns nil when the value is not an
// object at all.
func validateContact(value any) (map[string]any, []Warning) {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, []Warning{{Field: "contact", Message: fmt.Sprintf("expected object, got %T", value)}}
	}

	allowed := make(map[string]bool)
	for _, f := range contactFields {
		allowed[f] = true
	}

	contact := make(map[string]any)
	var warnings []Warning
	for key, v := range obj {
		if !allowed[key] {
			warnings = append(warnings, Warning{Field: "contact." + key, Message: "unknown contact field dropped"})
			continue
		}
		s, ok := coerceString(v)
		if !ok {
			warnings = append(warnings, Warning{Field: "contact." + key, Message: fmt.Sprintf("expected string, got %T", v)})
			continue
		}
		contact[key] = s
	}
	if len(contact) == 0 && len(obj) > 0 {
		return nil, warnings
	}
	return contact, warnings
}

// coerceStringList normalizes a string-sequence field. A bare string is
// wrapped into a one-element sequence rather than rejected; models are known
// to emit a scalar where an array is expected.
func coerceStringList(field string, value any) ([]string, []Warning, bool) {
	if s, ok := coerceString(value); ok {
		return []string{s}, nil, true
	}

	raw, ok := value.([]any)
	if !ok {
		return nil, []Warning{{Field: field, Message: fmt.Sprintf("expected array of strings, got %T", value)}}, false
	}

	list := make([]string, 0, len(raw))
	var warnings []Warning
	for i, v := range raw {
		s, ok := coerceString(v)
		if !ok {
			warnings = append(warnings, Warning{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: fmt.Sprintf("expected string, got %T; element dropped", v),
			})
			continue
		}
		list = append(list, s)
	}
	return list, warnings, true
}

// validateRecords normalizes a record-sequence field (experience, education,
// projects). Elements missing required keys are dropped with a warning; the
// sequence itself still applies.
func validateRecords(field string, value any) ([]map[string]any, []Warning, bool) {
	shape := recordFields[field]

	raw, ok := value.([]any)
	if !ok {
		// A single object where an array was expected gets the same wrap
		// treatment as scalar skills.
		if obj, isObj := value.(map[string]any); isObj {
			raw = []any{obj}
		} else {
			return nil, []Warning{{Field: field, Message: fmt.Sprintf("expected array of objects, got %T", value)}}, false
		}
	}

	list := make([]map[string]any, 0, len(raw))
	var warnings []Warning

elements:
	for i, v := range raw {
		obj, ok := v.(map[string]any)
		if !ok {
			warnings = append(warnings, Warning{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: fmt.Sprintf("expected object, got %T; element dropped", v),
			})
			continue
		}

		entry := make(map[string]any, len(shape.keys)+1)
		for _, key := range shape.keys {
			s, _ := coerceString(obj[key])
			entry[key] = s
		}
		for _, key := range shape.required {
			if entry[key] == "" {
				warnings = append(warnings, Warning{
					Field:   fmt.Sprintf("%s[%d]", field, i),
					Message: fmt.Sprintf("missing required %q; element dropped", key),
				})
				continue elements
			}
		}

		if field == "projects" {
			entry["techStack"] = []string{}
			if obj["techStack"] != nil {
				stack, ws, ok := coerceStringList(fmt.Sprintf("projects[%d].techStack", i), obj["techStack"])
				warnings = append(warnings, ws...)
				if ok {
					entry["techStack"] = stack
				}
			}
		}

		list = append(list, entry)
	}

	return list, warnings, true
}

// coerceString accepts strings directly and stringifies JSON numbers. Any
// other type fails.
func coerceString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case nil:
		return "", false
	default:
		return "", false
	}
}
