package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/run-bigpig/llm-guardrails/pkg/llm"
	"github.com/run-bigpig/llm-guardrails/pkg/logging"
	"github.com/run-bigpig/llm-guardrails/pkg/retry"
	"github.com/sashabaranov/go-openai"
)

// Client implements the ChatDriver contract for OpenAI chat completion models
type Client struct {
	Client        *openai.Client
	Model         string
	logger        logging.Logger
	retryExecutor *retry.Executor
}

// Option represents an option for configuring the OpenAI client
type Option func(*Client)

// WithModel sets the model for the OpenAI client
func WithModel(model string) Option {
	return func(c *Client) {
		c.Model = model
	}
}

// WithLogger sets the logger for the OpenAI client
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetry configures retry policy for the client
func WithRetry(opts ...retry.Option) Option {
	return func(c *Client) {
		c.retryExecutor = retry.NewExecutor(retry.NewPolicy(opts...))
	}
}

// NewClient creates a new OpenAI client
func NewClient(apiKey string, options ...Option) *Client {
	client := &Client{
		Client: openai.NewClient(apiKey),
		Model:  "gpt-4o-mini",
		logger: logging.New(),
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// Send sends a chat request and returns the terminal response
func (c *Client) Send(ctx context.Context, request *llm.ChatRequest) (*llm.ChatResponse, error) {
	if request == nil {
		return nil, errors.New("request must not be nil")
	}

	req := c.buildRequest(request)

	c.logger.Debug(ctx, "Sending request to OpenAI", map[string]interface{}{
		"model":    req.Model,
		"messages": len(req.Messages),
	})

	var resp openai.ChatCompletionResponse
	operation := func() error {
		var err error
		resp, err = c.Client.CreateChatCompletion(ctx, req)
		if err != nil {
			c.logger.Error(ctx, "Error from OpenAI API", map[string]interface{}{
				"error": err.Error(),
				"model": req.Model,
			})
			return fmt.Errorf("openai chat completion failed: %w", err)
		}
		return nil
	}

	var err error
	if c.retryExecutor != nil {
		err = c.retryExecutor.Execute(ctx, operation)
	} else {
		err = operation()
	}
	if err != nil {
		return nil, err
	}

	response := &llm.ChatResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Choices: make([]llm.Choice, 0, len(resp.Choices)),
	}
	for _, choice := range resp.Choices {
		response.Choices = append(response.Choices, llm.Choice{
			Index: choice.Index,
			Message: llm.Message{
				Role:    choice.Message.Role,
				Content: choice.Message.Content,
			},
			FinishReason: string(choice.FinishReason),
		})
	}

	return response, nil
}

// Stream sends a chat request and returns a channel of response chunks.
// The channel is closed when the stream ends; a terminal failure is delivered
// as the last chunk's Err.
func (c *Client) Stream(ctx context.Context, request *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	if request == nil {
		return nil, errors.New("request must not be nil")
	}

	req := c.buildRequest(request)
	req.Stream = true

	stream, err := c.Client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion stream failed: %w", err)
	}

	chunks := make(chan llm.StreamChunk)
	go func() {
		defer close(chunks)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				chunks <- llm.StreamChunk{Err: fmt.Errorf("openai stream receive failed: %w", err)}
				return
			}
			if len(resp.Choices) > 0 {
				chunks <- llm.StreamChunk{Content: resp.Choices[0].Delta.Content}
			}
		}
	}()

	return chunks, nil
}

// Metadata describes the driver and its configured model
func (c *Client) Metadata() map[string]interface{} {
	return map[string]interface{}{
		"driver_type": "openai",
		"model_name":  c.Model,
	}
}

func (c *Client) buildRequest(request *llm.ChatRequest) openai.ChatCompletionRequest {
	model := request.Model
	if model == "" {
		model = c.Model
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(request.Messages))
	for _, msg := range request.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(request.Temperature),
		MaxTokens:   request.MaxTokens,
	}
}
