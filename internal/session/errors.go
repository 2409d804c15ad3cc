package session

import (
	"errors"
	"fmt"
)

// ErrGenerationInProgress is returned when a chat turn arrives while a model
// call for the same session is already in flight.
var ErrGenerationInProgress = errors.New("generation already in progress for this session")

// ErrSessionNotFound is returned when a session does not exist or belongs to
// a different user.
var ErrSessionNotFound = errors.New("session not found")

// PersistenceError wraps a storage failure. The in-memory document is never
// rolled back because of one.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}
