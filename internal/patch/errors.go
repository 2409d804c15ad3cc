// Package patch normalizes and type-checks model-produced partial updates
// before they are allowed to touch canonical document state.
package patch

import "fmt"

// MalformedPatchError indicates the raw update could not be accepted at all:
// the top-level value is not an object, or it contains keys outside the
// document schema.
type MalformedPatchError struct {
	Message string
	Cause   error
}

func (e *MalformedPatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed patch: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("malformed patch: %s", e.Message)
}

func (e *MalformedPatchError) Unwrap() error {
	return e.Cause
}

// Warning reports a non-fatal field-level validation problem. The offending
// field or element was dropped; the rest of the patch still applies.
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Field, w.Message)
}
