// Package session owns the mutable canonical document for the lifetime of a
// chat session and reconciles its three writers: chat-driven merges, direct
// manual edits, and persistence. Both mutation paths run through the same
// validate-then-merge pipeline so one invariant set covers them all.
package session

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/resume-chat/internal/conversation"
	"github.com/jonathan/resume-chat/internal/document"
	"github.com/jonathan/resume-chat/internal/merge"
	"github.com/jonathan/resume-chat/internal/patch"
)

// Kind tags what the session's document is rendered as. Cover letters share
// the resume schema; only the tag differs.
type Kind string

// Session kinds.
const (
	KindResume      Kind = "resume"
	KindCoverLetter Kind = "cover_letter"
)

// Record is the persisted form of a session: one document plus one turn
// history, keyed by (id, owner).
type Record struct {
	ID       uuid.UUID
	OwnerID  uuid.UUID
	Kind     Kind
	Document document.Document
	History  []conversation.Turn
}

// Store is the persistence boundary consumed by the manager. GetSession
// returns nil (no error) when the session does not exist; SaveSession has
// create-or-update semantics keyed by (id, owner).
type Store interface {
	GetSession(ctx context.Context, id, ownerID uuid.UUID) (*Record, error)
	SaveSession(ctx context.Context, rec *Record) error
}

// Session is the in-memory canonical state for one (id, owner) pair. It is
// mutated only through Manager methods.
type Session struct {
	id      uuid.UUID
	ownerID uuid.UUID
	kind    Kind

	mu      sync.Mutex
	doc     document.Document
	history []conversation.Turn

	// inflight enforces at most one model call per session. While held the
	// session is AwaitingModel; otherwise Idle.
	inflight *semaphore.Weighted
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// OwnerID returns the owning user id.
func (s *Session) OwnerID() uuid.UUID { return s.ownerID }

// Kind returns the session kind.
func (s *Session) Kind() Kind { return s.kind }

// ChatResult is the externally visible outcome of one chat turn.
type ChatResult struct {
	Acknowledgement string            `json:"acknowledgement"`
	Document        document.Document `json:"document"`
	Warnings        []patch.Warning   `json:"warnings,omitempty"`
	Saved           bool              `json:"saved"`
}

// EditResult is the outcome of a manual form edit.
type EditResult struct {
	Document document.Document `json:"document"`
	Warnings []patch.Warning   `json:"warnings,omitempty"`
	Saved    bool              `json:"saved"`
}

// sessionKey scopes the live registry by owner as well as id, so one user's
// session can never shadow another user's session with the same id.
type sessionKey struct {
	id      uuid.UUID
	ownerID uuid.UUID
}

// Manager owns the live sessions of this process and serializes merges per
// session.
type Manager struct {
	engine *conversation.Engine
	store  Store

	mu       sync.Mutex
	sessions map[sessionKey]*Session
}

// NewManager creates a session manager.
func NewManager(engine *conversation.Engine, store Store) *Manager {
	return &Manager{
		engine:   engine,
		store:    store,
		sessions: make(map[sessionKey]*Session),
	}
}

// Open returns the live session for (id, owner), loading it from the store or
// seeding a fresh zero-value document when absent.
func (m *Manager) Open(ctx context.Context, id, ownerID uuid.UUID, kind Kind) (*Session, error) {
	key := sessionKey{id: id, ownerID: ownerID}

	m.mu.Lock()
	if s, ok := m.sessions[key]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	// Load outside the manager lock; a racing Open for the same key resolves
	// below by keeping whichever registered first.
	rec, err := m.store.GetSession(ctx, id, ownerID)
	if err != nil {
		return nil, &PersistenceError{Op: "load session", Cause: err}
	}

	s := &Session{
		id:       id,
		ownerID:  ownerID,
		kind:     kind,
		doc:      document.New(),
		inflight: semaphore.NewWeighted(1),
	}
	if rec != nil {
		s.kind = rec.Kind
		s.doc = rec.Document.Normalize()
		s.history = rec.History
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[key]; ok {
		return existing, nil
	}
	m.sessions[key] = s
	return s, nil
}

// Create opens the session and persists its initial state so it shows up in
// listings before the first turn.
func (m *Manager) Create(ctx context.Context, id, ownerID uuid.UUID, kind Kind) (*Session, bool, error) {
	s, err := m.Open(ctx, id, ownerID, kind)
	if err != nil {
		return nil, false, err
	}
	return s, m.save(ctx, s), nil
}

// Lookup returns the session only if it already exists live or in the store.
func (m *Manager) Lookup(ctx context.Context, id, ownerID uuid.UUID) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionKey{id: id, ownerID: ownerID}]
	m.mu.Unlock()
	if ok {
		return s, nil
	}

	rec, err := m.store.GetSession(ctx, id, ownerID)
	if err != nil {
		return nil, &PersistenceError{Op: "load session", Cause: err}
	}
	if rec == nil {
		return nil, ErrSessionNotFound
	}
	return m.Open(ctx, id, ownerID, rec.Kind)
}

// Chat runs one conversational turn against the session. At most one model
// call may be in flight per session; concurrent calls get
// ErrGenerationInProgress rather than racing on merge order. A failed turn
// leaves document and history untouched.
func (m *Manager) Chat(ctx context.Context, id, ownerID uuid.UUID, message string) (*ChatResult, error) {
	s, err := m.Open(ctx, id, ownerID, KindResume)
	if err != nil {
		return nil, err
	}

	if !s.inflight.TryAcquire(1) {
		return nil, ErrGenerationInProgress
	}
	defer s.inflight.Release(1)

	s.mu.Lock()
	doc := s.doc.Clone()
	history := append([]conversation.Turn{}, s.history...)
	s.mu.Unlock()

	res, err := m.engine.RunTurn(ctx, doc, history, message)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.history = append(s.history, res.UserTurn, res.ModelTurn)
	s.doc = res.Document
	s.mu.Unlock()

	return &ChatResult{
		Acknowledgement: res.Acknowledgement,
		Document:        res.Document,
		Warnings:        res.Warnings,
		Saved:           m.save(ctx, s),
	}, nil
}

// Edit applies a manual form edit as an identity patch through the same
// validate-then-merge path as chat updates. Last writer wins at the field
// level.
func (m *Manager) Edit(ctx context.Context, id, ownerID uuid.UUID, raw any) (*EditResult, error) {
	s, err := m.Open(ctx, id, ownerID, KindResume)
	if err != nil {
		return nil, err
	}

	p, warnings, err := patch.Validate(raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	merged, err := merge.Apply(s.doc, p)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.doc = merged
	s.mu.Unlock()

	return &EditResult{
		Document: merged,
		Warnings: warnings,
		Saved:    m.save(ctx, s),
	}, nil
}

// Snapshot returns copies of the session's document and history.
func (m *Manager) Snapshot(ctx context.Context, id, ownerID uuid.UUID) (document.Document, []conversation.Turn, error) {
	s, err := m.Lookup(ctx, id, ownerID)
	if err != nil {
		return document.Document{}, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone(), append([]conversation.Turn{}, s.history...), nil
}

// Evict drops the owner's live session from memory; persisted state is
// unaffected.
func (m *Manager) Evict(id, ownerID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionKey{id: id, ownerID: ownerID})
}

// save persists the session. Persistence is fire-and-forget relative to the
// in-memory document: a failure is logged and reported via the Saved flag,
// never rolled back. The live session is the source of truth until the next
// successful save.
func (m *Manager) save(ctx context.Context, s *Session) bool {
	s.mu.Lock()
	rec := &Record{
		ID:       s.id,
		OwnerID:  s.ownerID,
		Kind:     s.kind,
		Document: s.doc.Clone(),
		History:  append([]conversation.Turn{}, s.history...),
	}
	s.mu.Unlock()

	if err := m.store.SaveSession(ctx, rec); err != nil {
		log.Printf("[session] save failed for %s: %v", s.id, err)
		return false
	}
	return true
}
