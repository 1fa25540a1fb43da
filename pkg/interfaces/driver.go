package interfaces

import (
	"context"

	"github.com/run-bigpig/llm-guardrails/pkg/llm"
)

// ChatDriver represents a chat-completion backend. A driver must implement
// this interface to be bound to a check pipeline; the capability is checked
// once at bind time rather than on every call.
type ChatDriver interface {
	// Send sends a request to the model and returns a single terminal response
	Send(ctx context.Context, request *llm.ChatRequest) (*llm.ChatResponse, error)

	// Metadata describes the model and provider identity, e.g.
	// "driver_type" and "model_name"
	Metadata() map[string]interface{}
}

// StreamingChatDriver is an optional capability for drivers that support
// streamed responses. The guardrail engine itself only ever needs a terminal
// response value.
type StreamingChatDriver interface {
	ChatDriver

	// Stream sends a request and returns a channel of response chunks.
	// The channel is closed when the response is complete.
	Stream(ctx context.Context, request *llm.ChatRequest) (<-chan llm.StreamChunk, error)
}
