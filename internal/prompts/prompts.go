// Package prompts holds the model prompt catalogue and renders its templates.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Names of the catalogue entries.
const (
	EvaluateMains      = "evaluate_mains"
	GeneratePrelims    = "generate_prelims"
	ExplainWrongAnswer = "explain_wrong_answer"
	MentorGuidance     = "mentor_guidance"
)

//go:embed prompts.yaml
var catalogueYAML []byte

// Entry is one prompt with its generation settings.
type Entry struct {
	// Model selects the configured model family: "" for the default, "explain" for the explain model.
	Model           string  `yaml:"model"`
	Temperature     float32 `yaml:"temperature"`
	TopK            int     `yaml:"top_k"`
	TopP            float32 `yaml:"top_p"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	JSON            bool    `yaml:"json"`
	Template        string  `yaml:"template"`

	tmpl *template.Template
}

// Catalogue is the parsed set of prompts.
type Catalogue struct {
	entries map[string]*Entry
}

// Load parses the embedded catalogue.
func Load() (*Catalogue, error) {
	return Parse(catalogueYAML)
}

// MustLoad panics when the embedded catalogue is malformed.
func MustLoad() *Catalogue {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse reads a catalogue from YAML and compiles every template.
func Parse(data []byte) (*Catalogue, error) {
	raw := map[string]*Entry{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("op=prompts.Parse: %w", err)
	}
	for name, e := range raw {
		if e == nil || e.Template == "" {
			return nil, fmt.Errorf("op=prompts.Parse: %s has no template", name)
		}
		t, err := template.New(name).Option("missingkey=error").Parse(e.Template)
		if err != nil {
			return nil, fmt.Errorf("op=prompts.Parse: %s: %w", name, err)
		}
		e.tmpl = t
	}
	return &Catalogue{entries: raw}, nil
}

// Get returns the named entry.
func (c *Catalogue) Get(name string) (*Entry, error) {
	e, ok := c.entries[name]
	if !ok {
		return nil, fmt.Errorf("op=prompts.Get: unknown prompt %q", name)
	}
	return e, nil
}

// Render executes the named template with data.
func (c *Catalogue) Render(name string, data any) (string, *Entry, error) {
	e, err := c.Get(name)
	if err != nil {
		return "", nil, err
	}
	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, data); err != nil {
		return "", nil, fmt.Errorf("op=prompts.Render: %s: %w", name, err)
	}
	return buf.String(), e, nil
}

// EvaluateData fills evaluate_mains.
type EvaluateData struct {
	Question   string
	AnswerText string
}

// GenerateData fills generate_prelims.
type GenerateData struct {
	Count      int
	Topic      string
	Difficulty string
}

// ExplainData fills explain_wrong_answer.
type ExplainData struct {
	Question      string
	CorrectAnswer string
	CorrectOption string
	UserAnswer    string
	UserOption    string
}

// MentorData fills mentor_guidance.
type MentorData struct {
	ActionItem string
}
