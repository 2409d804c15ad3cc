package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/resume-chat/internal/document"
	"github.com/jonathan/resume-chat/internal/llm"
	"github.com/jonathan/resume-chat/internal/merge"
	"github.com/jonathan/resume-chat/internal/patch"
	"github.com/jonathan/resume-chat/internal/schemas"
)

// Envelope is the strict two-field shape the model must return for every
// turn.
type Envelope struct {
	Acknowledgement string         `json:"acknowledgement"`
	UpdatedSection  map[string]any `json:"updatedSection"`
}

// Config bounds a conversation turn.
type Config struct {
	// HistoryWindow is the number of most recent turns included in the
	// prompt; older turns are dropped.
	HistoryWindow int
	// MaxTurnBytes caps the text of any single turn.
	MaxTurnBytes int
	// ModelTimeout bounds the external model call so a hung call cannot
	// wedge a session.
	ModelTimeout time.Duration
	// Tier selects the model tier used for chat turns.
	Tier llm.ModelTier
}

// DefaultConfig returns the default turn bounds.
func DefaultConfig() Config {
	return Config{
		HistoryWindow: 20,
		MaxTurnBytes:  8 * 1024,
		ModelTimeout:  45 * time.Second,
		Tier:          llm.TierStandard,
	}
}

// TurnResult is the externally visible outcome of a successful turn.
type TurnResult struct {
	// Acknowledgement is the model's conversational reply, for direct display.
	Acknowledgement string
	// Document is the new canonical document after the merge.
	Document document.Document
	// Warnings reports document fields dropped by patch validation.
	Warnings []patch.Warning
	// UserTurn and ModelTurn are the two turns to append to history.
	UserTurn  Turn
	ModelTurn Turn
}

// Engine runs chat turns against an LLM client. It is stateless; callers own
// the document and history.
type Engine struct {
	client llm.Client
	cfg    Config
}

// NewEngine creates a turn engine. Zero fields in cfg fall back to defaults.
func NewEngine(client llm.Client, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = def.HistoryWindow
	}
	if cfg.MaxTurnBytes <= 0 {
		cfg.MaxTurnBytes = def.MaxTurnBytes
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = def.ModelTimeout
	}
	if cfg.Tier == "" {
		cfg.Tier = def.Tier
	}
	return &Engine{client: client, cfg: cfg}
}

// RunTurn executes one chat exchange: prompt → model → validate → merge. On
// error the returned result is nil and the caller's document is untouched;
// the error is a MalformedOutputError or ModelUnavailableError.
//
// Malformed output (invalid JSON, wrong envelope shape, or an update section
// outside the document schema) gets exactly one repair retry with a stricter
// instruction before the turn fails.
func (e *Engine) RunTurn(ctx context.Context, doc document.Document, history []Turn, message string) (*TurnResult, error) {
	message = TruncateText(message, e.cfg.MaxTurnBytes)
	userTurn := NewTurn(RoleUser, message)

	basePrompt, err := buildPrompt(doc, history, message, e.cfg)
	if err != nil {
		return nil, err
	}

	res, err := e.attempt(ctx, basePrompt)
	if err != nil {
		var bad *malformedAttempt
		if !errors.As(err, &bad) {
			return nil, err
		}

		// One bounded repair retry, quoting the rejected output.
		res, err = e.attempt(ctx, buildRepairPrompt(basePrompt, bad.raw, e.cfg))
		if err != nil {
			if errors.As(err, &bad) {
				return nil, &MalformedOutputError{Attempts: 2, Cause: bad.cause}
			}
			return nil, err
		}
	}

	merged, err := merge.Apply(doc, res.patch)
	if err != nil {
		return nil, fmt.Errorf("failed to apply turn update: %w", err)
	}

	return &TurnResult{
		Acknowledgement: res.env.Acknowledgement,
		Document:        merged,
		Warnings:        res.warnings,
		UserTurn:        userTurn,
		ModelTurn:       NewTurn(RoleModel, res.env.Acknowledgement),
	}, nil
}

// attemptResult carries one validated model attempt.
type attemptResult struct {
	env      *Envelope
	patch    patch.Patch
	warnings []patch.Warning
}

// malformedAttempt marks an attempt whose output failed shape validation and
// carries the raw output for the repair prompt.
type malformedAttempt struct {
	raw   string
	cause error
}

func (e *malformedAttempt) Error() string {
	return fmt.Sprintf("malformed attempt: %v", e.cause)
}

func (e *malformedAttempt) Unwrap() error {
	return e.cause
}

// attempt performs one bounded model call and validates its output end to
// end: envelope shape first, then the update section against the document
// schema.
func (e *Engine) attempt(ctx context.Context, prompt string) (*attemptResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.ModelTimeout)
	defer cancel()

	text, err := e.client.GenerateJSON(callCtx, prompt, e.cfg.Tier)
	if err != nil {
		return nil, &ModelUnavailableError{Cause: err}
	}

	env, err := parseEnvelope(text)
	if err != nil {
		return nil, &malformedAttempt{raw: text, cause: err}
	}

	p, warnings, err := patch.Validate(env.UpdatedSection)
	if err != nil {
		return nil, &malformedAttempt{raw: text, cause: err}
	}

	return &attemptResult{env: env, patch: p, warnings: warnings}, nil
}

// parseEnvelope enforces the strict output contract: extract the JSON
// payload, schema-check the two-field shape, then decode.
func parseEnvelope(text string) (*Envelope, error) {
	payload := llm.ExtractJSON(text)

	if err := schemas.ValidateEnvelope(payload); err != nil {
		return nil, err
	}

	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if env.UpdatedSection == nil {
		return nil, errors.New("envelope missing updatedSection object")
	}
	return &env, nil
}
