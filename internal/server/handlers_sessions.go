package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/resume-chat/internal/session"
)

// createSessionRequest is the body for POST /sessions.
type createSessionRequest struct {
	Kind string `json:"kind,omitempty"`
}

// sessionResponse is the full session view returned by session endpoints.
type sessionResponse struct {
	ID       uuid.UUID `json:"id"`
	Kind     string    `json:"kind"`
	Document any       `json:"document"`
	History  any       `json:"history,omitempty"`
	Saved    bool      `json:"saved,omitempty"`
}

// handleCreateSession creates a new chat session seeded with a zero-value
// document.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	var req createSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	kind := session.KindResume
	switch req.Kind {
	case "", string(session.KindResume):
	case string(session.KindCoverLetter):
		kind = session.KindCoverLetter
	default:
		s.errorResponse(w, http.StatusBadRequest, "kind must be resume or cover_letter")
		return
	}

	id := uuid.New()
	sess, saved, err := s.sessions.Create(r.Context(), id, userID, kind)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	doc, _, err := s.sessions.Snapshot(r.Context(), id, userID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusCreated, sessionResponse{
		ID:       sess.ID(),
		Kind:     string(sess.Kind()),
		Document: doc,
		Saved:    saved,
	})
}

// handleListSessions lists the caller's sessions, most recently updated first.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	summaries, err := s.db.ListSessions(r.Context(), userID, 0)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"sessions": summaries})
}

// handleGetSession returns the session's document and history.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := s.sessions.Lookup(r.Context(), id, userID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	doc, history, err := s.sessions.Snapshot(r.Context(), id, userID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, sessionResponse{
		ID:       sess.ID(),
		Kind:     string(sess.Kind()),
		Document: doc,
		History:  history,
	})
}

// handleDeleteSession removes the session from the store and from memory.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	if err := s.db.DeleteSession(r.Context(), id, userID); err != nil {
		s.errorResponse(w, http.StatusNotFound, "Session not found")
		return
	}
	s.sessions.Evict(id, userID)

	w.WriteHeader(http.StatusNoContent)
}

// sessionID parses the {id} path segment.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid session ID")
		return uuid.Nil, false
	}
	return id, true
}
