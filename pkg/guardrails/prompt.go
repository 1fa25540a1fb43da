package guardrails

import (
	"context"
	"fmt"

	"github.com/run-bigpig/llm-guardrails/pkg/llm"
	"github.com/run-bigpig/llm-guardrails/pkg/prompts"
)

// PromptGuardrail rewrites outgoing requests by rendering a prompt template
// into the request's system channel. It never judges responses; Validate is
// a constant-valid no-op.
type PromptGuardrail struct {
	name      string
	template  *prompts.PromptTemplate
	variables map[string]interface{}
}

// NewPromptGuardrail creates a prompt guardrail from a compiled template.
// The variables map holds static configuration made available to every
// render, on top of the per-call context fields.
func NewPromptGuardrail(name string, template *prompts.PromptTemplate, variables map[string]interface{}) (*PromptGuardrail, error) {
	if name == "" {
		return nil, fmt.Errorf("prompt guardrail requires a name")
	}
	if template == nil {
		return nil, fmt.Errorf("prompt guardrail %q requires a template", name)
	}

	return &PromptGuardrail{name: name, template: template, variables: variables}, nil
}

// NewPromptGuardrailFromString creates a prompt guardrail from a raw template string
func NewPromptGuardrailFromString(name, source string, variables map[string]interface{}) (*PromptGuardrail, error) {
	template, err := prompts.NewFromString(source)
	if err != nil {
		return nil, fmt.Errorf("prompt guardrail %q: %w", name, err)
	}
	return NewPromptGuardrail(name, template, variables)
}

// NewPromptGuardrailFromFile creates a prompt guardrail from a template file
func NewPromptGuardrailFromFile(name, path string, variables map[string]interface{}) (*PromptGuardrail, error) {
	template, err := prompts.NewFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("prompt guardrail %q: %w", name, err)
	}
	return NewPromptGuardrail(name, template, variables)
}

// Name returns the guardrail name
func (g *PromptGuardrail) Name() string {
	return g.name
}

// Apply renders the template and merges the result into the request's system
// channel: appended newline-joined to an existing system message, or inserted
// as a new leading system message. The caller's request is left untouched.
func (g *PromptGuardrail) Apply(ctx context.Context, request *llm.ChatRequest) (*GuardedRequest, error) {
	modelName := request.Model
	if modelName == "" {
		modelName = "unknown"
	}

	rendered := g.template.Render(prompts.PromptRenderCtx{
		DriverType:  "unknown", // no driver is bound at apply time
		ModelName:   modelName,
		RequestType: "chat",
		Variables:   g.variables,
	})

	modified := request.Clone()

	inserted := false
	for i, msg := range modified.Messages {
		if msg.Role == "system" {
			if msg.Content != "" {
				modified.Messages[i].Content = msg.Content + "\n" + rendered
			} else {
				modified.Messages[i].Content = rendered
			}
			inserted = true
			break
		}
	}
	if !inserted {
		modified.Messages = append([]llm.Message{{Role: "system", Content: rendered}}, modified.Messages...)
	}

	templateSource := g.template.Path()
	if templateSource == "" {
		templateSource = "string_template"
	}

	return &GuardedRequest{
		OriginalRequest:   request,
		ModifiedRequest:   modified,
		IsModified:        true,
		AppliedGuardrails: []string{g.name},
		Metadata: map[string]interface{}{
			"guardrail_type":  "prompt",
			"template_source": templateSource,
			"rendered_length": len(rendered),
		},
	}, nil
}

// Validate always reports a valid response; a prompt guardrail only ever
// mutates requests.
func (g *PromptGuardrail) Validate(ctx context.Context, response *llm.ChatResponse) (*ValidationReport, error) {
	report := NewValidReport()
	report.Metadata["guardrail_type"] = "prompt"
	report.Metadata["guardrail_name"] = g.name
	return report, nil
}
