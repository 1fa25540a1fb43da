package guardrails

import (
	"context"
	"fmt"

	"github.com/run-bigpig/llm-guardrails/pkg/llm"
)

// CompositeGuardrail chains an ordered, non-empty list of guardrails. Apply
// threads the request through every member in order; Validate runs every
// member against the same response and folds all reports together.
type CompositeGuardrail struct {
	name       string
	guardrails []Guardrail
}

// NewCompositeGuardrail creates a composite. An empty list or a nil member is
// a construction error, not a use-time one.
func NewCompositeGuardrail(name string, members ...Guardrail) (*CompositeGuardrail, error) {
	if name == "" {
		return nil, fmt.Errorf("composite guardrail requires a name")
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("composite guardrail %q requires at least one member", name)
	}
	for i, g := range members {
		if g == nil {
			return nil, fmt.Errorf("composite guardrail %q: member %d is nil", name, i)
		}
	}

	return &CompositeGuardrail{name: name, guardrails: members}, nil
}

// Name returns the composite's name
func (c *CompositeGuardrail) Name() string {
	return c.name
}

// Members returns the chained guardrails in application order
func (c *CompositeGuardrail) Members() []Guardrail {
	members := make([]Guardrail, len(c.guardrails))
	copy(members, c.guardrails)
	return members
}

// Apply threads the request through every member in order: member i's
// modified request becomes member i+1's input. The returned OriginalRequest
// is always the very first request supplied to the composite, and per-member
// metadata is retained under a keyed slot per step.
func (c *CompositeGuardrail) Apply(ctx context.Context, request *llm.ChatRequest) (*GuardedRequest, error) {
	sequence := make([]string, len(c.guardrails))
	for i, g := range c.guardrails {
		sequence[i] = g.Name()
	}

	current := request
	modified := false
	var applied []string
	metadata := map[string]interface{}{
		"guardrail_type": "composite",
		"sequence":       sequence,
	}

	for i, g := range c.guardrails {
		step, err := g.Apply(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("composite guardrail %q: member %q apply: %w", c.name, g.Name(), err)
		}
		current = step.ModifiedRequest
		modified = modified || step.IsModified
		applied = append(applied, step.AppliedGuardrails...)
		metadata[fmt.Sprintf("step_%d_%s", i, g.Name())] = step.Metadata
	}

	return &GuardedRequest{
		OriginalRequest:   request,
		ModifiedRequest:   current,
		IsModified:        modified,
		AppliedGuardrails: applied,
		Metadata:          metadata,
	}, nil
}

// Validate runs every member's Validate against the same response and merges
// the reports in member order. A member that fails or panics contributes a
// single ERROR-severity violation instead of aborting its siblings.
func (c *CompositeGuardrail) Validate(ctx context.Context, response *llm.ChatResponse) (*ValidationReport, error) {
	final := NewValidReport()

	for _, g := range c.guardrails {
		report, err := validateMember(ctx, g, response)
		switch {
		case err != nil:
			final = final.Merge(NewInvalidReport(Violation{
				Severity: SeverityError,
				Code:     "COMPOSITE_VALIDATION_EXCEPTION",
				Message:  fmt.Sprintf("guardrail %s failed during validation: %v", g.Name(), err),
				Context:  map[string]interface{}{"guardrail_name": g.Name()},
			}))
		case report == nil:
			final = final.Merge(NewInvalidReport(Violation{
				Severity: SeverityError,
				Code:     "COMPOSITE_VALIDATION_EXCEPTION",
				Message:  fmt.Sprintf("guardrail %s returned no report", g.Name()),
				Context:  map[string]interface{}{"guardrail_name": g.Name()},
			}))
		default:
			final = final.Merge(report)
		}
	}

	final.Metadata["guardrail_type"] = "composite"
	final.Metadata["num_guardrails"] = len(c.guardrails)
	return final, nil
}

// validateMember invokes a single member's Validate, converting a panic into
// an error
func validateMember(ctx context.Context, g Guardrail, response *llm.ChatResponse) (report *ValidationReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			report = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return g.Validate(ctx, response)
}
