package hotpath

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"text/template"

	"github.com/google/uuid"
)

// TemplateData is passed to the execution context
type TemplateData struct {
	VU       int
	Iter     int
	Scenario string
}

// TemplateEngine renders per-iteration payload strings such as message
// bodies. A parsed template is safe for concurrent execution.
type TemplateEngine struct {
	funcMap template.FuncMap
}

// NewTemplateEngine initializes the engine and its functions
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{}
	e.funcMap = template.FuncMap{
		"randomInt":    e.randomInt,
		"randomChoice": e.randomChoice,
		"uuid":         e.randomUUID,
	}
	return e
}

// Preprocess converts simple variables {{vu}} to Go template syntax {{.VU}}
func (e *TemplateEngine) Preprocess(input string) string {
	s := input
	s = strings.ReplaceAll(s, "{{vu}}", "{{.VU}}")
	s = strings.ReplaceAll(s, "{{iter}}", "{{.Iter}}")
	s = strings.ReplaceAll(s, "{{scenario}}", "{{.Scenario}}")
	return s
}

// Parse creates a new template with the engine's functions
func (e *TemplateEngine) Parse(name, text string) (*template.Template, error) {
	t, err := template.New(name).Funcs(e.funcMap).Option("missingkey=error").Parse(e.Preprocess(text))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return t, nil
}

// Execute runs the template with data
func (e *TemplateEngine) Execute(t *template.Template, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// --- Functions ---

func (e *TemplateEngine) randomInt(min, max int) int {
	if max <= min {
		return min
	}
	return rand.Intn(max-min) + min
}

func (e *TemplateEngine) randomUUID() string {
	return uuid.New().String()
}

func (e *TemplateEngine) randomChoice(choices ...string) string {
	if len(choices) == 0 {
		return ""
	}
	return choices[rand.Intn(len(choices))]
}
