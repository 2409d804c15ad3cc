package conversation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/resume-chat/internal/document"
	"github.com/jonathan/resume-chat/internal/prompts"
)

// buildPrompt assembles the bounded model request: the fixed system
// instruction, the windowed history transcript, the current canonical
// document as JSON context, and the new user message.
func buildPrompt(doc document.Document, history []Turn, message string, cfg Config) (string, error) {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document for prompt: %w", err)
	}

	system := prompts.MustGet("chat.json", "system_instruction")
	context := prompts.Format(prompts.MustGet("chat.json", "document_context"), map[string]string{
		"Document": string(docJSON),
		"History":  renderTranscript(WindowHistory(history, cfg.HistoryWindow)),
		"Message":  message,
	})

	return system + "\n\n" + context, nil
}

// buildRepairPrompt appends the stricter repair instruction, quoting the
// rejected response so the model can see what it did wrong.
func buildRepairPrompt(basePrompt, rejected string, cfg Config) string {
	repair := prompts.Format(prompts.MustGet("chat.json", "repair_instruction"), map[string]string{
		"Rejected": TruncateText(rejected, cfg.MaxTurnBytes),
	})
	return basePrompt + "\n\n" + repair
}

// renderTranscript flattens turns into a plain "role: text" transcript.
func renderTranscript(turns []Turn) string {
	if len(turns) == 0 {
		return "(no prior turns)"
	}
	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(string(t.Role))
		sb.WriteString(": ")
		sb.WriteString(t.Text())
	}
	return sb.String()
}
