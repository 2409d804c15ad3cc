package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/resume-chat/internal/rendering"
)

// handleGetDocument returns the session's current document.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	doc, _, err := s.sessions.Snapshot(r.Context(), id, userID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, doc)
}

// handleEditDocument applies a manual form edit. The body is a partial
// document; it runs through the same validate-then-merge pipeline as chat
// updates, so field coercions and warnings behave identically.
func (s *Server) handleEditDocument(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := s.sessions.Edit(r.Context(), id, userID, raw)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, res)
}

// handleRenderPDF renders the session's document to PDF. The layout is chosen
// with the template query parameter (default "modern").
func (s *Server) handleRenderPDF(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	template := r.URL.Query().Get("template")
	if template != "" && !rendering.ValidTemplate(template) {
		s.errorResponse(w, http.StatusBadRequest, "unknown template")
		return
	}

	doc, _, err := s.sessions.Snapshot(r.Context(), id, userID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	pdf, err := s.renderer.PDF(r.Context(), &doc, template)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to render PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id.String()+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
