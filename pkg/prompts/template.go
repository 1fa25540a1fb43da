package prompts

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
)

// PromptRenderCtx is the context available to a prompt template during a
// single render call. Variables holds guardrail-specific values on top of the
// three scalar identity fields.
type PromptRenderCtx struct {
	DriverType  string
	ModelName   string
	RequestType string // e.g. "chat", "completion"
	Variables   map[string]interface{}
}

// PromptTemplate is a compiled prompt template loaded from a string or a
// file. Compilation happens once at construction; a syntax error in the
// template source is a construction-time error. Rendering itself cannot fail.
//
// Templates are safety-prompt text, not user-facing markup, so no escaping is
// applied to interpolated values.
type PromptTemplate struct {
	source string
	path   string
	tmpl   *template.Template
}

// NewFromString compiles a prompt template from a raw string
func NewFromString(source string) (*PromptTemplate, error) {
	tmpl, err := template.New("prompt").Option("missingkey=zero").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	return &PromptTemplate{source: source, tmpl: tmpl}, nil
}

// NewFromFile compiles a prompt template loaded from a file
func NewFromFile(path string) (*PromptTemplate, error) {
	data, err := os.ReadFile(path) // #nosec G304 - template paths are operator-supplied configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt template file: %w", err)
	}

	t, err := NewFromString(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template %s: %w", path, err)
	}

	t.path = path
	return t, nil
}

// Source returns the raw template source
func (t *PromptTemplate) Source() string {
	return t.source
}

// Path returns the file the template was loaded from, or "" for string templates
func (t *PromptTemplate) Path() string {
	return t.path
}

// Render renders the template with the given context. The three scalar
// context fields are exposed as driver_type, model_name and request_type;
// entries in ctx.Variables win on name collision. Missing variables render as
// empty strings.
func (t *PromptTemplate) Render(ctx PromptRenderCtx) string {
	data := map[string]interface{}{
		"driver_type":  ctx.DriverType,
		"model_name":   ctx.ModelName,
		"request_type": ctx.RequestType,
	}
	for k, v := range ctx.Variables {
		data[k] = v
	}

	var buf bytes.Buffer
	// Execute cannot fail on a data-only template; if it ever does, the
	// partial output is still the best available rendering.
	_ = t.tmpl.Execute(&buf, data)

	// missingkey=zero leaves "<no value>" for absent map keys; missing
	// variables must render empty.
	return strings.ReplaceAll(buf.String(), "<no value>", "")
}

func (t *PromptTemplate) String() string {
	if t.path != "" {
		return fmt.Sprintf("PromptTemplate(source=%s)", t.path)
	}
	return fmt.Sprintf("PromptTemplate(string, length=%d)", len(t.source))
}
