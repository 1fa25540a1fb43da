package llm

import "strings"

// Message represents a message in a chat conversation
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// ChatRequest is the request envelope handed to a chat driver
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Metadata    map[string]interface{}
}

// Clone returns a deep copy of the request. Guardrails work on clones so the
// caller's request is never mutated.
func (r *ChatRequest) Clone() *ChatRequest {
	if r == nil {
		return nil
	}

	clone := &ChatRequest{
		Model:       r.Model,
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
	}

	if r.Messages != nil {
		clone.Messages = make([]Message, len(r.Messages))
		copy(clone.Messages, r.Messages)
	}

	if r.Metadata != nil {
		clone.Metadata = make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			clone.Metadata[k] = v
		}
	}

	return clone
}

// Choice is a single candidate in a chat response
type Choice struct {
	Index        int
	Message      Message
	FinishReason string
}

// ChatResponse is the response envelope returned by a chat driver
type ChatResponse struct {
	ID       string
	Model    string
	Choices  []Choice
	Metadata map[string]interface{}
}

// AssistantContent returns the assistant-authored text of the first choice.
// The boolean is false when the response carries no choices at all; an empty
// content string on a present choice still counts as found.
func (r *ChatResponse) AssistantContent() (string, bool) {
	if r == nil || len(r.Choices) == 0 {
		return "", false
	}
	return r.Choices[0].Message.Content, true
}

// Conversation is an ordered list of chat messages, oldest first
type Conversation struct {
	Messages []Message
}

// ContentByRole joins the content of every message whose role matches one of
// the given roles, oldest first, newline-separated. Messages with empty
// content are skipped.
func (c *Conversation) ContentByRole(roles ...string) string {
	if c == nil {
		return ""
	}

	wanted := make(map[string]bool, len(roles))
	for _, role := range roles {
		wanted[role] = true
	}

	var parts []string
	for _, msg := range c.Messages {
		if wanted[msg.Role] && msg.Content != "" {
			parts = append(parts, msg.Content)
		}
	}

	return strings.Join(parts, "\n")
}

// StreamChunk is a single piece of a streamed chat response
type StreamChunk struct {
	Content string
	Err     error
}
