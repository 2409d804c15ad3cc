// Package conversation implements the request/response protocol with the
// generative model: turn framing, history windowing, strict output-shape
// enforcement, and the bounded retry on malformed output.
package conversation

import (
	"strings"
	"unicode/utf8"
)

// Role attributes a turn to one side of the conversation.
type Role string

// Turn roles.
const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Part is one text fragment of a turn.
type Part struct {
	Text string `json:"text"`
}

// Turn is one message in the chat history. A conversation is an append-only
// ordered sequence of turns.
type Turn struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewTurn builds a single-part turn.
func NewTurn(role Role, text string) Turn {
	return Turn{Role: role, Parts: []Part{{Text: text}}}
}

// Text joins all parts of the turn.
func (t Turn) Text() string {
	if len(t.Parts) == 1 {
		return t.Parts[0].Text
	}
	var sb strings.Builder
	for _, p := range t.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// WindowHistory returns the most recent max turns, dropping the oldest. The
// original slice is not modified.
func WindowHistory(turns []Turn, max int) []Turn {
	if max <= 0 || len(turns) <= max {
		return turns
	}
	return turns[len(turns)-max:]
}

// TruncateText bounds a single turn's text to max bytes, keeping the head.
// A UTF-8 sequence straddling the cut is trimmed off entirely.
func TruncateText(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	cut := text[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
