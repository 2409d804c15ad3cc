package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/resume-chat/internal/conversation"
	"github.com/jonathan/resume-chat/internal/db"
	"github.com/jonathan/resume-chat/internal/document"
	"github.com/jonathan/resume-chat/internal/session"
)

// dbSessionStore adapts the database layer to the session.Store boundary,
// translating between typed session records and jsonb rows.
type dbSessionStore struct {
	db *db.DB
}

func newDBSessionStore(database *db.DB) *dbSessionStore {
	return &dbSessionStore{db: database}
}

func (s *dbSessionStore) GetSession(ctx context.Context, id, ownerID uuid.UUID) (*session.Record, error) {
	row, err := s.db.GetSession(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	var doc document.Document
	if err := json.Unmarshal(row.Document, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode session document: %w", err)
	}

	var history []conversation.Turn
	if len(row.History) > 0 {
		if err := json.Unmarshal(row.History, &history); err != nil {
			return nil, fmt.Errorf("failed to decode session history: %w", err)
		}
	}

	return &session.Record{
		ID:       row.ID,
		OwnerID:  row.OwnerID,
		Kind:     session.Kind(row.Kind),
		Document: doc,
		History:  history,
	}, nil
}

func (s *dbSessionStore) SaveSession(ctx context.Context, rec *session.Record) error {
	return s.db.SaveSession(ctx, rec.ID, rec.OwnerID, string(rec.Kind), rec.Document, rec.History)
}
