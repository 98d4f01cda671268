package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AllEntriesPresent(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	for _, name := range []string{EvaluateMains, GeneratePrelims, ExplainWrongAnswer, MentorGuidance} {
		_, err := c.Get(name)
		assert.NoError(t, err, name)
	}
	_, err = c.Get("nope")
	assert.Error(t, err)
}

func TestRender_EvaluateIncludesOptionalContext(t *testing.T) {
	c := MustLoad()
	out, e, err := c.Render(EvaluateMains, EvaluateData{Question: "Discuss federalism.", AnswerText: ""})
	require.NoError(t, err)
	assert.Contains(t, out, `"Discuss federalism."`)
	assert.NotContains(t, out, "Extra context")
	assert.True(t, e.JSON)
	assert.Equal(t, 8192, e.MaxOutputTokens)
	assert.InDelta(t, 0.4, e.Temperature, 0.0001)
	assert.Equal(t, 32, e.TopK)

	out, _, err = c.Render(EvaluateMains, EvaluateData{})
	require.NoError(t, err)
	assert.NotContains(t, out, "for reference")
}

func TestRender_Generate(t *testing.T) {
	c := MustLoad()
	out, e, err := c.Render(GeneratePrelims, GenerateData{Count: 3, Topic: "Monsoon", Difficulty: "application and analytical level"})
	require.NoError(t, err)
	assert.Contains(t, out, "exactly 3 multiple-choice")
	assert.Contains(t, out, "Monsoon")
	assert.True(t, e.JSON)
}

func TestRender_ExplainUsesExplainModel(t *testing.T) {
	c := MustLoad()
	_, e, err := c.Render(ExplainWrongAnswer, ExplainData{Question: "q", CorrectAnswer: "x", CorrectOption: "a", UserAnswer: "y", UserOption: "b"})
	require.NoError(t, err)
	assert.Equal(t, "explain", e.Model)
	assert.Equal(t, 512, e.MaxOutputTokens)
}

func TestRender_MissingFieldIsAnError(t *testing.T) {
	c := MustLoad()
	_, _, err := c.Render(MentorGuidance, map[string]string{})
	assert.Error(t, err)
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse([]byte("a: [unclosed"))
	assert.Error(t, err)
	_, err = Parse([]byte("a:\n  temperature: 1\n"))
	assert.Error(t, err)
	_, err = Parse([]byte("a:\n  template: \"{{ .X \"\n"))
	assert.Error(t, err)
}
