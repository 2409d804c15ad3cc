package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ChatPrompts(t *testing.T) {
	for _, key := range []string{"system_instruction", "repair_instruction", "document_context"} {
		t.Run(key, func(t *testing.T) {
			prompt, err := Get("chat.json", key)
			require.NoError(t, err)
			assert.NotEmpty(t, prompt)
		})
	}
}

func TestGet_MissingKey(t *testing.T) {
	_, err := Get("chat.json", "no_such_prompt")
	assert.Error(t, err)
}

func TestGet_MissingFile(t *testing.T) {
	_, err := Get("missing.json", "system_instruction")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	out := Format("Hello {{.Name}}, doc: {{.Document}}", map[string]string{
		"Name":     "Ada",
		"Document": "{}",
	})
	assert.Equal(t, "Hello Ada, doc: {}", out)
}

func TestFormat_UnknownPlaceholderLeftIntact(t *testing.T) {
	out := Format("{{.Missing}} stays", map[string]string{"Name": "Ada"})
	assert.Equal(t, "{{.Missing}} stays", out)
}
