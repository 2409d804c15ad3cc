package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-chat/internal/conversation"
	"github.com/jonathan/resume-chat/internal/document"
	"github.com/jonathan/resume-chat/internal/llm"
	"github.com/jonathan/resume-chat/internal/patch"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record
	failing bool
	saves   int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[uuid.UUID]*Record)}
}

func (s *memStore) GetSession(_ context.Context, id, ownerID uuid.UUID) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.OwnerID != ownerID {
		return nil, nil
	}
	clone := *rec
	return &clone, nil
}

func (s *memStore) SaveSession(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.failing {
		return errors.New("database down")
	}
	clone := *rec
	s.records[rec.ID] = &clone
	return nil
}

// scriptedClient returns canned responses in order; a response may instead
// block until released.
type scriptedClient struct {
	mu        sync.Mutex
	responses []string
	blockOn   int // response index that blocks, -1 for none
	release   chan struct{}
	calls     int
}

func newScriptedClient(responses ...string) *scriptedClient {
	return &scriptedClient{responses: responses, blockOn: -1, release: make(chan struct{})}
}

func (c *scriptedClient) GenerateJSON(ctx context.Context, _ string, _ llm.ModelTier) (string, error) {
	c.mu.Lock()
	i := c.calls
	c.calls++
	c.mu.Unlock()

	if i == c.blockOn {
		select {
		case <-c.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if i >= len(c.responses) {
		return "", errors.New("scripted client exhausted")
	}
	return c.responses[i], nil
}

func (c *scriptedClient) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	return c.GenerateJSON(ctx, prompt, tier)
}

func (c *scriptedClient) GetModel(llm.ModelTier) string { return "scripted" }

func (c *scriptedClient) Close() error { return nil }

func newManager(client llm.Client, store Store) *Manager {
	return NewManager(conversation.NewEngine(client, conversation.DefaultConfig()), store)
}

const ackTitle = `{"acknowledgement": "Set your title.", "updatedSection": {"title": "Backend Developer"}}`

func TestChat_NewSessionStartsFromZeroValue(t *testing.T) {
	store := newMemStore()
	mgr := newManager(newScriptedClient(ackTitle), store)
	id, owner := uuid.New(), uuid.New()

	res, err := mgr.Chat(context.Background(), id, owner, "I'm a backend dev")

	require.NoError(t, err)
	assert.Equal(t, "Set your title.", res.Acknowledgement)
	assert.Equal(t, "Backend Developer", res.Document.Title)
	assert.True(t, res.Saved)

	want := document.New()
	want.Title = "Backend Developer"
	assert.Equal(t, want, res.Document)

	rec, err := store.GetSession(context.Background(), id, owner)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Backend Developer", rec.Document.Title)
	assert.Len(t, rec.History, 2, "user and model turns both persisted")
}

func TestChat_SaveFailureKeepsInMemoryState(t *testing.T) {
	store := newMemStore()
	store.failing = true
	mgr := newManager(newScriptedClient(ackTitle), store)
	id, owner := uuid.New(), uuid.New()

	res, err := mgr.Chat(context.Background(), id, owner, "hi")

	require.NoError(t, err)
	assert.False(t, res.Saved)
	assert.Equal(t, "Backend Developer", res.Document.Title)

	doc, history, err := mgr.Snapshot(context.Background(), id, owner)
	require.NoError(t, err)
	assert.Equal(t, "Backend Developer", doc.Title, "in-memory session is source of truth")
	assert.Len(t, history, 2)
}

func TestChat_FailedTurnLeavesDocumentIdentical(t *testing.T) {
	store := newMemStore()
	mgr := newManager(newScriptedClient(ackTitle, "garbage", "more garbage"), store)
	id, owner := uuid.New(), uuid.New()

	first, err := mgr.Chat(context.Background(), id, owner, "set my title")
	require.NoError(t, err)

	_, err = mgr.Chat(context.Background(), id, owner, "now break")
	var malformed *conversation.MalformedOutputError
	require.ErrorAs(t, err, &malformed)

	doc, history, err := mgr.Snapshot(context.Background(), id, owner)
	require.NoError(t, err)
	assert.Equal(t, first.Document, doc, "document bit-identical after fatal turn failure")
	assert.Len(t, history, 2, "failed turn appends nothing to history")
}

func TestChat_RejectsOverlappingGeneration(t *testing.T) {
	store := newMemStore()
	client := newScriptedClient(ackTitle)
	client.blockOn = 0
	mgr := newManager(client, store)
	id, owner := uuid.New(), uuid.New()

	done := make(chan error, 1)
	go func() {
		_, err := mgr.Chat(context.Background(), id, owner, "first")
		done <- err
	}()

	// Wait for the first call to reach the model.
	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.calls == 1
	}, time.Second, 5*time.Millisecond)

	_, err := mgr.Chat(context.Background(), id, owner, "second")
	assert.ErrorIs(t, err, ErrGenerationInProgress)

	close(client.release)
	require.NoError(t, <-done)
}

func TestEdit_SharesMergeSemanticsWithChat(t *testing.T) {
	store := newMemStore()
	ackSkills := `{"acknowledgement": "Added skills.", "updatedSection": {"skills": ["Go", "Postgres"]}}`
	mgr := newManager(newScriptedClient(ackSkills), store)
	id, owner := uuid.New(), uuid.New()

	_, err := mgr.Chat(context.Background(), id, owner, "I know Go and Postgres")
	require.NoError(t, err)

	// Manual form edit on the same field: last writer wins wholesale.
	res, err := mgr.Edit(context.Background(), id, owner, map[string]any{
		"skills": []any{"Rust"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Rust"}, res.Document.Skills)
	assert.True(t, res.Saved)

	doc, _, err := mgr.Snapshot(context.Background(), id, owner)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rust"}, doc.Skills)
}

func TestEdit_ScalarSkillCoerced(t *testing.T) {
	mgr := newManager(newScriptedClient(), newMemStore())
	id, owner := uuid.New(), uuid.New()

	res, err := mgr.Edit(context.Background(), id, owner, map[string]any{"skills": "React"})

	require.NoError(t, err)
	assert.Equal(t, []string{"React"}, res.Document.Skills)
}

func TestEdit_MalformedRejected(t *testing.T) {
	mgr := newManager(newScriptedClient(), newMemStore())

	_, err := mgr.Edit(context.Background(), uuid.New(), uuid.New(), "not an object")

	var malformed *patch.MalformedPatchError
	require.ErrorAs(t, err, &malformed)
}

func TestLookup_AbsentSession(t *testing.T) {
	mgr := newManager(newScriptedClient(), newMemStore())

	_, err := mgr.Lookup(context.Background(), uuid.New(), uuid.New())

	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLookup_WrongOwnerHidden(t *testing.T) {
	store := newMemStore()
	mgr := newManager(newScriptedClient(ackTitle), store)
	id, owner := uuid.New(), uuid.New()

	_, err := mgr.Chat(context.Background(), id, owner, "hi")
	require.NoError(t, err)

	_, err = mgr.Lookup(context.Background(), id, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestOpen_SameIDDifferentOwnersIsolated(t *testing.T) {
	store := newMemStore()
	id, owner, stranger := uuid.New(), uuid.New(), uuid.New()
	doc := document.New()
	doc.Name = "Ada"
	store.records[id] = &Record{ID: id, OwnerID: owner, Kind: KindResume, Document: doc}

	mgr := newManager(newScriptedClient(), store)

	// A stranger opening the same id gets their own fresh session, not a
	// handle over the owner's document.
	s, err := mgr.Open(context.Background(), id, stranger, KindResume)
	require.NoError(t, err)
	assert.Equal(t, stranger, s.OwnerID())

	strangerDoc, _, err := mgr.Snapshot(context.Background(), id, stranger)
	require.NoError(t, err)
	assert.Empty(t, strangerDoc.Name)

	// The owner's session is still reachable and untouched.
	ownerDoc, _, err := mgr.Snapshot(context.Background(), id, owner)
	require.NoError(t, err)
	assert.Equal(t, "Ada", ownerDoc.Name)
}

func TestOpen_LoadsPersistedSession(t *testing.T) {
	store := newMemStore()
	id, owner := uuid.New(), uuid.New()
	doc := document.New()
	doc.Name = "Ada"
	store.records[id] = &Record{
		ID: id, OwnerID: owner, Kind: KindCoverLetter, Document: doc,
		History: []conversation.Turn{conversation.NewTurn(conversation.RoleUser, "hello")},
	}

	mgr := newManager(newScriptedClient(), store)
	got, history, err := mgr.Snapshot(context.Background(), id, owner)

	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)
	require.Len(t, history, 1)

	s, err := mgr.Open(context.Background(), id, owner, KindResume)
	require.NoError(t, err)
	assert.Equal(t, KindCoverLetter, s.Kind(), "persisted kind wins over the caller's default")
}
