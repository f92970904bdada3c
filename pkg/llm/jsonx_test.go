package llm_test

import (
	"testing"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_DirectObject(t *testing.T) {
	object, err := llm.ExtractJSON(`{"title": "Feedback", "fields": []}`)
	require.NoError(t, err)
	assert.Equal(t, "Feedback", object["title"])
}

func TestExtractJSON_FencedMatchesUnfenced(t *testing.T) {
	raw := `{"title": "Job Application", "fields": [{"id": "name", "type": "text", "label": "Name"}]}`
	fenced := "```json\n" + raw + "\n```"

	fromRaw, err := llm.ExtractJSON(raw)
	require.NoError(t, err)

	fromFenced, err := llm.ExtractJSON(fenced)
	require.NoError(t, err)

	assert.Equal(t, fromRaw, fromFenced)
}

func TestExtractJSON_SurroundingNoise(t *testing.T) {
	text := "Here is the form you asked for:\n{\"title\": \"Survey\"}\nLet me know if you need changes."

	object, err := llm.ExtractJSON(text)
	require.NoError(t, err)
	assert.Equal(t, "Survey", object["title"])
}

func TestExtractJSON_Malformed(t *testing.T) {
	for name, text := range map[string]string{
		"empty":       "",
		"whitespace":  "   \n  ",
		"bad fenced":  "```json {bad json",
		"prose":       "I could not generate a form for that request.",
		"unbalanced":  `{"title": "Survey"`,
		"only fences": "```\n```",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := llm.ExtractJSON(text)
			assert.ErrorIs(t, err, llm.ErrMalformedOutput)
		})
	}
}

func TestExtractJSON_NonObjectIsMalformed(t *testing.T) {
	for name, text := range map[string]string{
		"array":  `[{"title": "Survey"}]`,
		"string": `"just a string"`,
		"number": `42`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := llm.ExtractJSON(text)
			assert.ErrorIs(t, err, llm.ErrMalformedOutput)
		})
	}
}

func TestCheckSnapshotShape(t *testing.T) {
	clean := map[string]any{
		"title": "Survey",
		"fields": []any{
			map[string]any{"id": "q1", "type": "text", "label": "Question"},
		},
	}
	assert.Empty(t, llm.CheckSnapshotShape(clean))

	loose := map[string]any{
		"fields": []any{
			map[string]any{"id": "q1"},
		},
	}

	warnings := llm.CheckSnapshotShape(loose)
	assert.NotEmpty(t, warnings)
}
