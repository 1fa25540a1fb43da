package guardrails

import (
	"context"

	"github.com/run-bigpig/llm-guardrails/pkg/llm"
)

// GuardedRequest pairs the caller's untouched request with the request a
// guardrail produced. A fresh GuardedRequest is created on every Apply call;
// OriginalRequest is never mutated by any guardrail.
type GuardedRequest struct {
	OriginalRequest   *llm.ChatRequest
	ModifiedRequest   *llm.ChatRequest
	IsModified        bool
	AppliedGuardrails []string
	Metadata          map[string]interface{}
}

// Guardrail is the contract implemented by every guardrail variant: a unit
// that can rewrite outgoing requests, judge incoming responses, or both.
type Guardrail interface {
	// Name identifies the guardrail in reports, metadata and the catalog
	Name() string

	// Apply may rewrite the outgoing request. Implementations must not
	// mutate the caller's request.
	Apply(ctx context.Context, request *llm.ChatRequest) (*GuardedRequest, error)

	// Validate inspects a response already obtained from the model.
	// Implementations must not perform I/O.
	Validate(ctx context.Context, response *llm.ChatResponse) (*ValidationReport, error)
}
