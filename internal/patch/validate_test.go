package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestValidate_NonObjectTopLevel(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"string", "hello"},
		{"array", []any{"a"}},
		{"nil", nil},
		{"number", 42.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Validate(tt.raw)
			var malformed *MalformedPatchError
			require.ErrorAs(t, err, &malformed)
		})
	}
}

func TestValidate_UnknownTopLevelKey(t *testing.T) {
	_, _, err := Validate(decode(t, `{"title":"Dev","hobbies":["chess"]}`))

	var malformed *MalformedPatchError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Error(), "hobbies")
}

func TestValidate_ProtocolFieldsSkipped(t *testing.T) {
	p, warnings, err := Validate(decode(t, `{"acknowledgement":"Sure!","title":"Backend Developer"}`))

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, Patch{"title": "Backend Developer"}, p)
}

func TestValidate_SkillsScalarCoercion(t *testing.T) {
	p, warnings, err := Validate(decode(t, `{"skills":"React"}`))

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, []string{"React"}, p["skills"])
}

func TestValidate_SkillsDropsNonStringElements(t *testing.T) {
	p, warnings, err := Validate(decode(t, `{"skills":["Go",{"nested":true},"SQL"]}`))

	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "skills[1]", warnings[0].Field)
	assert.Equal(t, []string{"Go", "SQL"}, p["skills"])
}

func TestValidate_ExplicitEmptySequenceKept(t *testing.T) {
	p, _, err := Validate(decode(t, `{"skills":[]}`))

	require.NoError(t, err)
	list, ok := p["skills"].([]string)
	require.True(t, ok, "empty sequence must survive as a clear instruction")
	assert.Len(t, list, 0)
}

func TestValidate_ExperienceDropsIncompleteEntries(t *testing.T) {
	raw := `{"experience":[
		{"title":"Engineer","company":"Acme","period":"2020-2023"},
		{"title":"Mystery Role"},
		"not an object"
	]}`

	p, warnings, err := Validate(decode(t, raw))

	require.NoError(t, err)
	assert.Len(t, warnings, 2)
	entries, ok := p["experience"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, "Engineer", entries[0]["title"])
	assert.Equal(t, "Acme", entries[0]["company"])
	assert.Equal(t, "", entries[0]["description"])
}

func TestValidate_EducationYearNumberCoerced(t *testing.T) {
	p, warnings, err := Validate(decode(t, `{"education":[{"degree":"BSc","institution":"MIT","year":2019}]}`))

	require.NoError(t, err)
	assert.Empty(t, warnings)
	entries := p["education"].([]map[string]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "2019", entries[0]["year"])
}

func TestValidate_ProjectsTechStackCoercion(t *testing.T) {
	raw := `{"projects":[
		{"name":"builder","description":"resume builder","techStack":"Go"},
		{"name":"bare"}
	]}`

	p, warnings, err := Validate(decode(t, raw))

	require.NoError(t, err)
	assert.Empty(t, warnings)
	entries := p["projects"].([]map[string]any)
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"Go"}, entries[0]["techStack"])
	assert.Equal(t, []string{}, entries[1]["techStack"])
}

func TestValidate_ContactPartialObject(t *testing.T) {
	raw := `{"contact":{"email":"ada@example.com","fax":"nope","phone":5551234}}`

	p, warnings, err := Validate(decode(t, raw))

	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "contact.fax", warnings[0].Field)
	contact := p["contact"].(map[string]any)
	assert.Equal(t, "ada@example.com", contact["email"])
	assert.Equal(t, "5551234", contact["phone"])
}

func TestValidate_ContactNotObjectDropped(t *testing.T) {
	p, warnings, err := Validate(decode(t, `{"contact":"ada@example.com","title":"Dev"}`))

	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.NotContains(t, p, "contact")
	assert.Equal(t, "Dev", p["title"])
}

func TestValidate_BadFieldDoesNotBlockRest(t *testing.T) {
	raw := `{"summary":{"oops":true},"skills":["Go"],"title":"Dev"}`

	p, warnings, err := Validate(decode(t, raw))

	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "summary", warnings[0].Field)
	assert.NotContains(t, p, "summary")
	assert.Equal(t, "Dev", p["title"])
	assert.Equal(t, []string{"Go"}, p["skills"])
}

func TestValidate_SingleObjectWrappedAsSequence(t *testing.T) {
	p, warnings, err := Validate(decode(t, `{"experience":{"title":"Dev","company":"Acme"}}`))

	require.NoError(t, err)
	assert.Empty(t, warnings)
	entries := p["experience"].([]map[string]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "Dev", entries[0]["title"])
}
