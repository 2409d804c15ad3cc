package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/resume-chat/internal/conversation"
	"github.com/jonathan/resume-chat/internal/ingestion"
	"github.com/jonathan/resume-chat/internal/session"
)

// chatRequest is the body for POST /sessions/{id}/chat.
type chatRequest struct {
	Message string `json:"message"`
}

// chatResponse mirrors session.ChatResult plus an error marker for failed
// turns that still deserve a conversational reply.
type chatResponse struct {
	Acknowledgement string `json:"acknowledgement"`
	Document        any    `json:"document"`
	Warnings        any    `json:"warnings,omitempty"`
	Saved           bool   `json:"saved"`
	Error           string `json:"error,omitempty"`
}

const (
	turnErrorMalformed   = "malformed_model_output"
	turnErrorUnavailable = "model_unavailable"

	apologyMalformed   = "Sorry, I could not produce a valid update for that. Your document is unchanged; please try rephrasing."
	apologyUnavailable = "Sorry, the assistant is temporarily unavailable. Your document is unchanged; please try again."
)

// handleChat runs one conversational turn against the session.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	s.runChatTurn(w, r, id, userID, req.Message)
}

// runChatTurn executes the turn and maps failures: concurrent turns get 409,
// model failures get a 200 apology with the document unchanged, everything
// else surfaces as an error status.
func (s *Server) runChatTurn(w http.ResponseWriter, r *http.Request, id, userID uuid.UUID, message string) {
	res, err := s.sessions.Chat(r.Context(), id, userID, message)
	if err == nil {
		s.jsonResponse(w, http.StatusOK, chatResponse{
			Acknowledgement: res.Acknowledgement,
			Document:        res.Document,
			Warnings:        res.Warnings,
			Saved:           res.Saved,
		})
		return
	}

	if marker, apology := turnFailure(err); marker != "" {
		doc, _, snapErr := s.sessions.Snapshot(r.Context(), id, userID)
		if snapErr != nil {
			s.errorResponse(w, HTTPStatus(snapErr), snapErr.Error())
			return
		}
		s.jsonResponse(w, http.StatusOK, chatResponse{
			Acknowledgement: apology,
			Document:        doc,
			Error:           marker,
		})
		return
	}

	s.errorResponse(w, HTTPStatus(err), err.Error())
}

// turnFailure classifies turn errors that keep the conversation alive.
func turnFailure(err error) (marker, apology string) {
	var malformed *conversation.MalformedOutputError
	if errors.As(err, &malformed) {
		return turnErrorMalformed, apologyMalformed
	}
	var unavailable *conversation.ModelUnavailableError
	if errors.As(err, &unavailable) {
		return turnErrorUnavailable, apologyUnavailable
	}
	return "", ""
}

// handleChatStream runs one turn and streams the outcome as Server-Sent
// Events: an "acknowledgement" event with the reply, a "document" event with
// the merged document, then "complete".
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	res, err := s.sessions.Chat(r.Context(), id, userID, req.Message)
	if err != nil {
		if marker, apology := turnFailure(err); marker != "" {
			_ = sse.WriteEvent("acknowledgement", map[string]string{"acknowledgement": apology, "error": marker})
			_ = sse.WriteEvent("complete", map[string]string{"status": "failed"})
			return
		}
		if errors.Is(err, session.ErrGenerationInProgress) {
			sse.WriteError("a turn is already in progress for this session")
			return
		}
		sse.WriteError(err.Error())
		return
	}

	_ = sse.WriteEvent("acknowledgement", map[string]string{"acknowledgement": res.Acknowledgement})
	_ = sse.WriteEvent("document", res.Document)
	if len(res.Warnings) > 0 {
		_ = sse.WriteEvent("warnings", res.Warnings)
	}
	_ = sse.WriteEvent("complete", map[string]any{"status": "ok", "saved": res.Saved})
}

// handleImport accepts a resume file upload, extracts its text and feeds it
// through the regular chat pipeline so the model distributes the content
// across document fields.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(ingestion.MaxUploadBytes); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, ingestion.MaxUploadBytes+1))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Failed to read upload")
		return
	}

	text, err := ingestion.Extract(header.Filename, data)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	message := fmt.Sprintf(
		"Here is the content of my existing resume. Incorporate it into the document:\n\n%s", text)
	s.runChatTurn(w, r, id, userID, message)
}
