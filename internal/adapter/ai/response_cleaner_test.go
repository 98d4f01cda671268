package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/mainalyze/internal/domain"
)

func TestStripFences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `{"score": 4}`, `{"score": 4}`},
		{"json_fence", "```json\n{\"score\": 4}\n```", `{"score": 4}`},
		{"bare_fence", "```\n{\"score\": 4}\n```", `{"score": 4}`},
		{"single_line", "```json{\"score\": 4}```", `{"score": 4}`},
		{"surrounding_space", "  \n```json\n{}\n```\n ", `{}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StripFences(tt.input))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `{"a": {"b": 1}}`, ExtractJSON(`Here you go: {"a": {"b": 1}} hope it helps`))
	assert.Equal(t, `{"s": "a } inside"}`, ExtractJSON(`x {"s": "a } inside"} y`))
	assert.Equal(t, `{"s": "quote \" }"}`, ExtractJSON(`{"s": "quote \" }"}`))
	assert.Equal(t, "no json", ExtractJSON("no json"))
	assert.Equal(t, `{"open": 1`, ExtractJSON(`{"open": 1`))
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	var out struct {
		Score float64 `json:"score"`
	}
	require.NoError(t, DecodeJSON("```json\n{\"score\": 6.5}\n```", &out))
	assert.Equal(t, 6.5, out.Score)

	require.NoError(t, DecodeJSON(`Sure! {"score": 3} Thanks.`, &out))
	assert.Equal(t, 3.0, out.Score)

	err := DecodeJSON("I cannot evaluate this answer.", &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
	assert.Contains(t, err.Error(), "I cannot evaluate")
}
