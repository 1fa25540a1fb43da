package guardrails

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/llm-guardrails/pkg/llm"
	"github.com/run-bigpig/llm-guardrails/pkg/prompts"
)

// fakeDriver is a canned-response chat driver for pipeline tests
type fakeDriver struct {
	response    *llm.ChatResponse
	err         error
	lastRequest *llm.ChatRequest
}

func (d *fakeDriver) Send(ctx context.Context, request *llm.ChatRequest) (*llm.ChatResponse, error) {
	d.lastRequest = request
	if d.err != nil {
		return nil, d.err
	}
	return d.response, nil
}

func (d *fakeDriver) Metadata() map[string]interface{} {
	return map[string]interface{}{"driver_type": "fake", "model_name": "fake-model"}
}

func assistantResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:    "resp-1",
		Model: "fake-model",
		Choices: []llm.Choice{
			{Message: llm.Message{Role: "assistant", Content: content}, FinishReason: "stop"},
		},
	}
}

func newPipeline(t *testing.T, driver *fakeDriver) *CheckPipeline {
	t.Helper()
	p, err := NewCheckPipeline("risk_check", mustTemplate(t, "Assess the following:\n{{.user_context}}"),
		WithDriver(driver))
	require.NoError(t, err)
	return p
}

func mustTemplate(t *testing.T, source string) *prompts.PromptTemplate {
	t.Helper()
	tmpl, err := prompts.NewFromString(source)
	require.NoError(t, err)
	return tmpl
}

func userConversation(contents ...string) *llm.Conversation {
	conv := &llm.Conversation{}
	for _, c := range contents {
		conv.Messages = append(conv.Messages, llm.Message{Role: "user", Content: c})
	}
	return conv
}

func TestPipelineRequiresDriver(t *testing.T) {
	p, err := NewCheckPipeline("risk_check", mustTemplate(t, "x"))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), userConversation("hello"))
	assert.ErrorIs(t, err, ErrNoDriver)
}

func TestPipelineHappyPath(t *testing.T) {
	driver := &fakeDriver{response: assistantResponse(`{"is_triggered": true, "risk_score": 0.8, "reason": "explicit"}`)}
	p := newPipeline(t, driver)

	out, err := p.Run(context.Background(), userConversation("first", "second"))
	require.NoError(t, err)

	assert.True(t, out.IsTriggered)
	require.NotNil(t, out.RiskScore)
	assert.InDelta(t, 0.8, *out.RiskScore, 1e-9)
	assert.Empty(t, out.Errors)
	assert.NotEmpty(t, out.Metadata["check_id"])
	assert.Equal(t, "risk_check", out.Metadata["guardrail"])

	// The full parsed record is kept for audit
	parsed, ok := out.Details["parsed_llm_output"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "explicit", parsed["reason"])

	// The rendered instruction leads the outgoing messages, conversation after
	require.NotEmpty(t, driver.lastRequest.Messages)
	assert.Equal(t, "system", driver.lastRequest.Messages[0].Role)
	assert.Contains(t, driver.lastRequest.Messages[0].Content, "first\nsecond")
	assert.Len(t, driver.lastRequest.Messages, 3)
	assert.Equal(t, "fake-model", driver.lastRequest.Model)
}

func TestPipelineDriverFailureDegrades(t *testing.T) {
	driver := &fakeDriver{err: errors.New("connection refused")}
	p := newPipeline(t, driver)

	out, err := p.Run(context.Background(), userConversation("hello"))
	require.NoError(t, err)

	assert.False(t, out.IsTriggered)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "connection refused")
}

func TestPipelineExtractFailureDegrades(t *testing.T) {
	driver := &fakeDriver{response: &llm.ChatResponse{ID: "resp-1"}} // no choices
	p := newPipeline(t, driver)

	out, err := p.Run(context.Background(), userConversation("hello"))
	require.NoError(t, err)

	assert.False(t, out.IsTriggered)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "could not extract content")
}

func TestPipelineParseFailureDegrades(t *testing.T) {
	driver := &fakeDriver{response: assistantResponse("I think this is fine.")}
	p := newPipeline(t, driver)

	out, err := p.Run(context.Background(), userConversation("hello"))
	require.NoError(t, err)

	assert.False(t, out.IsTriggered)
	require.Len(t, out.Errors, 1)
	// The offending raw text is preserved for audit
	assert.Equal(t, "I think this is fine.", out.RawLLMResponse)
}

// A trigger field carrying the string "maybe" instead of a boolean defaults
// to false and surfaces exactly one error naming the field.
func TestPipelineCoercesNonBooleanTrigger(t *testing.T) {
	driver := &fakeDriver{response: assistantResponse(`{"is_triggered": "maybe", "risk_score": 0.5}`)}
	p := newPipeline(t, driver)

	out, err := p.Run(context.Background(), userConversation("hello"))
	require.NoError(t, err)

	assert.False(t, out.IsTriggered)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], `"is_triggered"`)
	assert.Contains(t, out.Errors[0], "false")

	// The well-typed sibling field is still coerced normally
	require.NotNil(t, out.RiskScore)
	assert.InDelta(t, 0.5, *out.RiskScore, 1e-9)
}

func TestPipelineMissingRiskScoreIsSilent(t *testing.T) {
	driver := &fakeDriver{response: assistantResponse(`{"is_triggered": false}`)}
	p := newPipeline(t, driver)

	out, err := p.Run(context.Background(), userConversation("hello"))
	require.NoError(t, err)

	assert.False(t, out.IsTriggered)
	assert.Nil(t, out.RiskScore)
	assert.Empty(t, out.Errors)
}

func TestPipelineCustomRendererAndMapper(t *testing.T) {
	driver := &fakeDriver{response: assistantResponse(`{"is_harmful": true}`)}

	p, err := NewCheckPipeline("harm_check", mustTemplate(t, "Assistant said:\n{{.ai_context}}"),
		WithDriver(driver),
		WithRenderer(RoleContextRenderer("ai_context", "assistant")),
		WithMapper(TriggerFieldMapper("is_harmful", "risk_score")),
	)
	require.NoError(t, err)

	conv := &llm.Conversation{Messages: []llm.Message{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "dubious answer"},
	}}

	out, err := p.Run(context.Background(), conv)
	require.NoError(t, err)

	assert.True(t, out.IsTriggered)
	assert.Contains(t, driver.lastRequest.Messages[0].Content, "dubious answer")
}

func TestPipelineConfigFeedsRequestAndTemplate(t *testing.T) {
	driver := &fakeDriver{response: assistantResponse(`{"is_triggered": false}`)}
	config := &CheckConfig{
		Sensitivity:      SensitivityHigh,
		ReasoningEnabled: true,
		Temperature:      0.2,
		MaxTokens:        128,
	}

	p, err := NewCheckPipeline("risk_check",
		mustTemplate(t, "Sensitivity: {{.sensitivity}}\n{{.user_context}}"),
		WithDriver(driver),
		WithConfig(config),
	)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), userConversation("hello"))
	require.NoError(t, err)

	assert.InDelta(t, 0.2, driver.lastRequest.Temperature, 1e-9)
	assert.Equal(t, 128, driver.lastRequest.MaxTokens)
	assert.Contains(t, driver.lastRequest.Messages[0].Content, "Sensitivity: high")
}

func TestPipelineConstructionErrors(t *testing.T) {
	_, err := NewCheckPipeline("", mustTemplate(t, "x"))
	assert.Error(t, err)

	_, err = NewCheckPipeline("nameless", nil)
	assert.Error(t, err)
}
