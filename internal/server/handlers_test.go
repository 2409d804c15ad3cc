package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-chat/internal/conversation"
	"github.com/jonathan/resume-chat/internal/document"
	"github.com/jonathan/resume-chat/internal/llm"
	"github.com/jonathan/resume-chat/internal/rendering"
	"github.com/jonathan/resume-chat/internal/session"
)

// fakeLLM returns scripted responses in order.
type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (f *fakeLLM) GenerateContent(_ context.Context, _ string, _ llm.ModelTier) (string, error) {
	return f.next()
}

func (f *fakeLLM) GenerateJSON(_ context.Context, _ string, _ llm.ModelTier) (string, error) {
	return f.next()
}

func (f *fakeLLM) next() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls >= len(f.responses) {
		return "", fmt.Errorf("no scripted response for call %d", f.calls)
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func (f *fakeLLM) GetModel(_ llm.ModelTier) string { return "fake-model" }
func (f *fakeLLM) Close() error                    { return nil }

// memStore is an in-memory session.Store.
type memStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*session.Record
}

func newMemStore() *memStore {
	return &memStore{records: make(map[uuid.UUID]*session.Record)}
}

func (s *memStore) GetSession(_ context.Context, id, ownerID uuid.UUID) (*session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.OwnerID != ownerID {
		return nil, nil
	}
	return rec, nil
}

func (s *memStore) SaveSession(_ context.Context, rec *session.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return nil
}

// newTestServer mounts the real routes over fakes: scripted model, in-memory
// store and users, no database.
func newTestServer(t *testing.T, model *fakeLLM) (*Server, http.Handler) {
	t.Helper()

	renderer, err := rendering.NewRenderer()
	require.NoError(t, err)

	authConfig := testAuthConfig("test-secret")
	s := &Server{
		llmClient:  model,
		sessions:   session.NewManager(conversation.NewEngine(model, conversation.Config{}), newMemStore()),
		renderer:   renderer,
		jwtService: NewJWTService(authConfig),
	}
	s.userService = NewUserService(newMockDB(), authConfig)
	s.authHandler = NewAuthHandler(s.userService, s.jwtService)

	return s, s.routes()
}

func authToken(t *testing.T, s *Server, userID uuid.UUID) string {
	t.Helper()
	token, err := s.jwtService.GenerateToken(userID)
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, h http.Handler, token string) uuid.UUID {
	t.Helper()

	rec := doJSON(t, h, http.MethodPost, "/sessions", token, map[string]string{"kind": "resume"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ID
}

func TestRegisterAndLoginFlow(t *testing.T) {
	_, h := newTestServer(t, &fakeLLM{})

	rec := doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Jane", "email": "jane@example.com", "password": "supersecret",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Token string `json:"token"`
		User  struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, "jane@example.com", created.User.Email)

	rec = doJSON(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "jane@example.com", "password": "supersecret",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "jane@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionsRequireAuth(t *testing.T) {
	_, h := newTestServer(t, &fakeLLM{})

	rec := doJSON(t, h, http.MethodPost, "/sessions", "", map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateSessionSeedsZeroValueDocument(t *testing.T) {
	s, h := newTestServer(t, &fakeLLM{})
	token := authToken(t, s, uuid.New())

	rec := doJSON(t, h, http.MethodPost, "/sessions", token, map[string]string{"kind": "cover_letter"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Kind     string            `json:"kind"`
		Document document.Document `json:"document"`
		Saved    bool              `json:"saved"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cover_letter", resp.Kind)
	assert.True(t, resp.Saved)
	assert.Empty(t, resp.Document.Name)
	assert.NotNil(t, resp.Document.Skills)
	assert.NotNil(t, resp.Document.Experience)
}

func TestCreateSessionRejectsUnknownKind(t *testing.T) {
	s, h := newTestServer(t, &fakeLLM{})
	token := authToken(t, s, uuid.New())

	rec := doJSON(t, h, http.MethodPost, "/sessions", token, map[string]string{"kind": "poem"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatTurnUpdatesDocument(t *testing.T) {
	model := &fakeLLM{responses: []string{
		`{"acknowledgement": "Added your name.", "updatedSection": {"name": "Jane Doe", "skills": ["Go"]}}`,
	}}
	s, h := newTestServer(t, model)
	token := authToken(t, s, uuid.New())
	id := createSession(t, h, token)

	rec := doJSON(t, h, http.MethodPost, "/sessions/"+id.String()+"/chat", token,
		map[string]string{"message": "My name is Jane Doe and I know Go"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Acknowledgement string            `json:"acknowledgement"`
		Document        document.Document `json:"document"`
		Saved           bool              `json:"saved"`
		Error           string            `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Added your name.", resp.Acknowledgement)
	assert.Equal(t, "Jane Doe", resp.Document.Name)
	assert.Equal(t, []string{"Go"}, resp.Document.Skills)
	assert.True(t, resp.Saved)
	assert.Empty(t, resp.Error)
}

func TestChatMalformedOutputKeepsConversationAlive(t *testing.T) {
	// Both the initial attempt and the repair retry return garbage.
	model := &fakeLLM{responses: []string{"not json at all", "still not json"}}
	s, h := newTestServer(t, model)
	token := authToken(t, s, uuid.New())
	id := createSession(t, h, token)

	rec := doJSON(t, h, http.MethodPost, "/sessions/"+id.String()+"/chat", token,
		map[string]string{"message": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Acknowledgement string            `json:"acknowledgement"`
		Document        document.Document `json:"document"`
		Error           string            `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "malformed_model_output", resp.Error)
	assert.NotEmpty(t, resp.Acknowledgement)
	assert.Empty(t, resp.Document.Name, "document must be unchanged after a failed turn")
	assert.Equal(t, 2, model.calls)
}

func TestChatMissingMessage(t *testing.T) {
	s, h := newTestServer(t, &fakeLLM{})
	token := authToken(t, s, uuid.New())
	id := createSession(t, h, token)

	rec := doJSON(t, h, http.MethodPost, "/sessions/"+id.String()+"/chat", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatStreamEvents(t *testing.T) {
	model := &fakeLLM{responses: []string{
		`{"acknowledgement": "Done.", "updatedSection": {"title": "Engineer"}}`,
	}}
	s, h := newTestServer(t, model)
	token := authToken(t, s, uuid.New())
	id := createSession(t, h, token)

	rec := doJSON(t, h, http.MethodPost, "/sessions/"+id.String()+"/chat/stream", token,
		map[string]string{"message": "I'm an engineer"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: acknowledgement")
	assert.Contains(t, body, "event: document")
	assert.Contains(t, body, "event: complete")
	assert.Contains(t, body, "Engineer")
}

func TestGetAndEditDocument(t *testing.T) {
	s, h := newTestServer(t, &fakeLLM{})
	token := authToken(t, s, uuid.New())
	id := createSession(t, h, token)

	rec := doJSON(t, h, http.MethodPut, "/sessions/"+id.String()+"/document", token,
		map[string]any{"name": "Jane Doe", "skills": "Go"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var edit struct {
		Document document.Document `json:"document"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &edit))
	assert.Equal(t, "Jane Doe", edit.Document.Name)
	// Scalar skills coerced to a single-element list.
	assert.Equal(t, []string{"Go"}, edit.Document.Skills)

	rec = doJSON(t, h, http.MethodGet, "/sessions/"+id.String()+"/document", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc document.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "Jane Doe", doc.Name)
}

func TestEditDocumentUnknownFieldRejected(t *testing.T) {
	s, h := newTestServer(t, &fakeLLM{})
	token := authToken(t, s, uuid.New())
	id := createSession(t, h, token)

	rec := doJSON(t, h, http.MethodPut, "/sessions/"+id.String()+"/document", token,
		map[string]any{"salary": 100000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownSession(t *testing.T) {
	s, h := newTestServer(t, &fakeLLM{})
	token := authToken(t, s, uuid.New())

	rec := doJSON(t, h, http.MethodGet, "/sessions/"+uuid.NewString(), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHiddenFromOtherUsers(t *testing.T) {
	s, h := newTestServer(t, &fakeLLM{})
	owner := authToken(t, s, uuid.New())
	stranger := authToken(t, s, uuid.New())
	id := createSession(t, h, owner)

	rec := doJSON(t, h, http.MethodGet, "/sessions/"+id.String()+"/document", stranger, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRenderPDFUnknownTemplate(t *testing.T) {
	s, h := newTestServer(t, &fakeLLM{})
	token := authToken(t, s, uuid.New())
	id := createSession(t, h, token)

	rec := doJSON(t, h, http.MethodGet, "/sessions/"+id.String()+"/pdf?template=fancy", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportPlainTextResume(t *testing.T) {
	model := &fakeLLM{responses: []string{
		`{"acknowledgement": "Imported your resume.", "updatedSection": {"name": "Jane Doe", "title": "Engineer"}}`,
	}}
	s, h := newTestServer(t, model)
	token := authToken(t, s, uuid.New())
	id := createSession(t, h, token)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "resume.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("Jane Doe\nEngineer\nGo, SQL"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id.String()+"/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Document document.Document `json:"document"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Jane Doe", resp.Document.Name)
}
