package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetSession retrieves a session by id, scoped to its owner. Returns nil when
// the session does not exist or belongs to another user.
func (db *DB) GetSession(ctx context.Context, id, ownerID uuid.UUID) (*SessionRecord, error) {
	var rec SessionRecord
	err := db.pool.QueryRow(ctx,
		`SELECT id, owner_id, kind, document, history, created_at, updated_at
		 FROM sessions WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	).Scan(&rec.ID, &rec.OwnerID, &rec.Kind, &rec.Document, &rec.History, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &rec, nil
}

// SaveSession stores a session with create-or-update semantics keyed by
// (id, owner). document and history are marshalled to jsonb. An update that
// matches the id but not the owner affects no rows and is reported as an
// error rather than silently dropped.
func (db *DB) SaveSession(ctx context.Context, id, ownerID uuid.UUID, kind string, doc, history any) error {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	result, err := db.pool.Exec(ctx,
		`INSERT INTO sessions (id, owner_id, kind, document, history)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET kind = EXCLUDED.kind, document = EXCLUDED.document,
		     history = EXCLUDED.history, updated_at = NOW()
		 WHERE sessions.owner_id = EXCLUDED.owner_id`,
		id, ownerID, kind, docJSON, historyJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("session %s is owned by another user", id)
	}
	return nil
}

// ListSessions retrieves the sessions of one user, most recently updated
// first.
func (db *DB) ListSessions(ctx context.Context, ownerID uuid.UUID, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, kind, created_at, updated_at
		 FROM sessions WHERE owner_id = $1
		 ORDER BY updated_at DESC LIMIT $2`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionSummary
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(&s.ID, &s.Kind, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// DeleteSession deletes a session, scoped to its owner.
func (db *DB) DeleteSession(ctx context.Context, id, ownerID uuid.UUID) error {
	result, err := db.pool.Exec(ctx,
		`DELETE FROM sessions WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("session not found: %s", id)
	}
	return nil
}
