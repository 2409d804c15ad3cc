package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionRecord is a persisted chat session: one document plus one turn
// history, owned by exactly one user. Document and history are stored as
// jsonb; decoding into typed values is the caller's concern.
type SessionRecord struct {
	ID        uuid.UUID       `json:"id"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	Kind      string          `json:"kind"`
	Document  json.RawMessage `json:"document"`
	History   json.RawMessage `json:"history"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SessionSummary is a lightweight view of a session for listing.
type SessionSummary struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User represents a user record with password authentication.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash *string   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
