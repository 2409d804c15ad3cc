package ingestion

import "fmt"

// ExtractionError indicates an uploaded file could not be converted to text.
type ExtractionError struct {
	Filename string
	Message  string
	Cause    error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %v", e.Message, e.Filename, e.Cause)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Filename)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}
