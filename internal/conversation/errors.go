package conversation

import "fmt"

// MalformedOutputError indicates the model's response was not valid JSON or
// did not match the two-field envelope shape, even after the repair retry.
// The turn failed; the document is untouched.
type MalformedOutputError struct {
	Attempts int
	Cause    error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed model output after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Cause
}

// ModelUnavailableError indicates a timeout, network, or quota failure
// talking to the model. The turn is retryable; the document is untouched.
type ModelUnavailableError struct {
	Cause error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model unavailable: %v", e.Cause)
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.Cause
}
