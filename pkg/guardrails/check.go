package guardrails

import (
	"context"
	"fmt"

	"github.com/run-bigpig/llm-guardrails/pkg/llm"
)

// Validator inspects a model response and reports violations
type Validator func(ctx context.Context, response *llm.ChatResponse) (*ValidationReport, error)

// NamedValidator pairs a validator function with the identity used to
// attribute its violations
type NamedValidator struct {
	Name  string
	Check Validator
}

// CheckGuardrail judges responses by running an ordered list of validators
// and merging their reports. It never rewrites the outgoing request.
type CheckGuardrail struct {
	name       string
	validators []NamedValidator
}

// NewCheckGuardrail creates a check guardrail. Zero validators is allowed and
// yields a valid, annotated report on every Validate call.
func NewCheckGuardrail(name string, validators ...NamedValidator) (*CheckGuardrail, error) {
	if name == "" {
		return nil, fmt.Errorf("check guardrail requires a name")
	}
	for i, v := range validators {
		if v.Check == nil {
			return nil, fmt.Errorf("check guardrail %q: validator %d (%s) has no check function", name, i, v.Name)
		}
	}

	return &CheckGuardrail{name: name, validators: validators}, nil
}

// Name returns the guardrail name
func (g *CheckGuardrail) Name() string {
	return g.name
}

// Apply is a pass-through; check guardrails only validate responses
func (g *CheckGuardrail) Apply(ctx context.Context, request *llm.ChatRequest) (*GuardedRequest, error) {
	return &GuardedRequest{
		OriginalRequest:   request,
		ModifiedRequest:   request,
		IsModified:        false,
		AppliedGuardrails: []string{g.name},
		Metadata: map[string]interface{}{
			"guardrail_type": "check",
			"num_validators": len(g.validators),
		},
	}, nil
}

// Validate runs every validator in order and merges their reports. A
// validator that fails or panics is converted into a single ERROR-severity
// violation attributed to it; one misbehaving validator never aborts its
// siblings.
func (g *CheckGuardrail) Validate(ctx context.Context, response *llm.ChatResponse) (*ValidationReport, error) {
	if len(g.validators) == 0 {
		report := NewValidReport()
		report.Metadata["guardrail_type"] = "check"
		report.Metadata["message"] = "no validators configured"
		report.Metadata["num_validators"] = 0
		return report, nil
	}

	final := NewValidReport()
	for _, v := range g.validators {
		report, err := runValidator(ctx, v, response)
		switch {
		case err != nil:
			final = final.Merge(NewInvalidReport(Violation{
				Severity: SeverityError,
				Code:     "VALIDATOR_EXCEPTION",
				Message:  fmt.Sprintf("validator %s failed: %v", v.Name, err),
				Context:  map[string]interface{}{"validator_name": v.Name},
			}))
		case report == nil:
			final = final.Merge(NewInvalidReport(Violation{
				Severity: SeverityError,
				Code:     "INVALID_VALIDATOR_RETURN",
				Message:  fmt.Sprintf("validator %s returned no report", v.Name),
				Context:  map[string]interface{}{"validator_name": v.Name},
			}))
		default:
			final = final.Merge(report)
		}
	}

	final.Metadata["guardrail_type"] = "check"
	final.Metadata["num_validators"] = len(g.validators)
	return final, nil
}

// runValidator invokes a single validator, converting a panic into an error
func runValidator(ctx context.Context, v NamedValidator, response *llm.ChatResponse) (report *ValidationReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			report = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return v.Check(ctx, response)
}
