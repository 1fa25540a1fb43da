package guardrails

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/run-bigpig/llm-guardrails/pkg/interfaces"
	"github.com/run-bigpig/llm-guardrails/pkg/llm"
	"github.com/run-bigpig/llm-guardrails/pkg/logging"
	"github.com/run-bigpig/llm-guardrails/pkg/parsing"
	"github.com/run-bigpig/llm-guardrails/pkg/prompts"
)

// ErrNoDriver is returned from Run when no chat driver has been bound to the
// pipeline. This is the one precondition that fails loud instead of safe:
// without a model call there is no meaningful verdict to degrade to.
var ErrNoDriver = errors.New("no chat driver bound to check pipeline")

// CheckOutput is the structured verdict produced by one check pipeline run.
// It is built exactly once per run and accumulates per-stage errors instead
// of raising them.
type CheckOutput struct {
	IsTriggered    bool
	RiskScore      *float64
	Details        map[string]interface{}
	RawLLMResponse string
	Errors         []string
	Metadata       map[string]interface{}
}

// ConversationRenderer builds the template render context for a conversation.
// driverMeta is whatever the bound driver's Metadata() reported.
type ConversationRenderer func(conv *llm.Conversation, driverMeta map[string]interface{}) *prompts.PromptRenderCtx

// OutputMapper reads the guardrail-specific trigger fields out of the parsed
// record into the output, following the coerce-or-default-and-warn rule
type OutputMapper func(record map[string]interface{}, out *CheckOutput, logger logging.Logger)

// CheckPipeline is the render, invoke, extract, parse, coerce, emit flow
// shared by every content-judging guardrail. Concrete checks supply only a
// prompt template, a conversation renderer and an output mapper; the pipeline
// owns the staging and the fail-safe policy.
//
// A pipeline holds no mutable per-run state, so one instance may be invoked
// concurrently for independent conversations as long as the bound driver is
// itself safe for concurrent use. Retry, if desired, belongs to the caller at
// the whole-run level.
type CheckPipeline struct {
	name     string
	template *prompts.PromptTemplate
	renderer ConversationRenderer
	mapper   OutputMapper
	config   *CheckConfig
	driver   interfaces.ChatDriver
	parser   *parsing.ResponseParser
	logger   logging.Logger
	tracer   trace.Tracer
}

// PipelineOption configures a check pipeline
type PipelineOption func(*CheckPipeline)

// WithDriver binds a chat driver at construction time
func WithDriver(driver interfaces.ChatDriver) PipelineOption {
	return func(p *CheckPipeline) {
		p.driver = driver
	}
}

// WithLogger sets the pipeline logger
func WithLogger(logger logging.Logger) PipelineOption {
	return func(p *CheckPipeline) {
		p.logger = logger
	}
}

// WithRenderer replaces the default conversation renderer
func WithRenderer(renderer ConversationRenderer) PipelineOption {
	return func(p *CheckPipeline) {
		p.renderer = renderer
	}
}

// WithMapper replaces the default output mapper
func WithMapper(mapper OutputMapper) PipelineOption {
	return func(p *CheckPipeline) {
		p.mapper = mapper
	}
}

// WithConfig applies a check configuration. Temperature and max tokens feed
// the model request; the remaining fields are exposed to the prompt template.
func WithConfig(config *CheckConfig) PipelineOption {
	return func(p *CheckPipeline) {
		if config != nil {
			p.config = config
		}
	}
}

// NewCheckPipeline creates a check pipeline around a compiled prompt template
func NewCheckPipeline(name string, template *prompts.PromptTemplate, options ...PipelineOption) (*CheckPipeline, error) {
	if name == "" {
		return nil, fmt.Errorf("check pipeline requires a name")
	}
	if template == nil {
		return nil, fmt.Errorf("check pipeline %q requires a template", name)
	}

	p := &CheckPipeline{
		name:     name,
		template: template,
		renderer: DefaultRenderer("user"),
		mapper:   TriggerFieldMapper("is_triggered", "risk_score"),
		config:   DefaultCheckConfig(),
		logger:   logging.NewNop(),
		tracer:   otel.Tracer("llm-guardrails"),
	}

	for _, option := range options {
		option(p)
	}

	p.parser = parsing.NewResponseParser(p.logger)
	return p, nil
}

// BindDriver sets or replaces the chat driver used by the pipeline
func (p *CheckPipeline) BindDriver(driver interfaces.ChatDriver) {
	p.driver = driver
}

// Name returns the pipeline name
func (p *CheckPipeline) Name() string {
	return p.name
}

// Run executes the full check flow for a conversation. Apart from the
// missing-driver precondition, Run always returns a well-formed CheckOutput:
// stage failures degrade to a not-triggered output with populated Errors.
func (p *CheckPipeline) Run(ctx context.Context, conv *llm.Conversation) (*CheckOutput, error) {
	if p.driver == nil {
		return nil, ErrNoDriver
	}

	out := &CheckOutput{
		Details: map[string]interface{}{},
		Metadata: map[string]interface{}{
			"check_id":  uuid.New().String(),
			"guardrail": p.name,
		},
	}

	// RENDER
	driverMeta := p.driver.Metadata()
	renderCtx := p.renderer(conv, driverMeta)
	for k, v := range p.config.TemplateVariables() {
		if _, exists := renderCtx.Variables[k]; !exists {
			renderCtx.Variables[k] = v
		}
	}
	prompt := p.template.Render(*renderCtx)

	// INVOKE
	ctx, span := p.tracer.Start(ctx, "guardrail.check", trace.WithAttributes(
		attribute.String("guardrail.name", p.name),
		attribute.String("llm.model", renderCtx.ModelName),
	))
	defer span.End()

	var messages []llm.Message
	messages = append(messages, llm.Message{Role: "system", Content: prompt})
	if conv != nil {
		messages = append(messages, conv.Messages...)
	}

	// An empty model lets the driver fall back to its configured default
	requestModel, _ := driverMeta["model_name"].(string)
	response, err := p.driver.Send(ctx, &llm.ChatRequest{
		Model:       requestModel,
		Messages:    messages,
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	})
	if err != nil {
		p.logger.Error(ctx, "LLM call failed", map[string]interface{}{
			"guardrail": p.name,
			"error":     err.Error(),
		})
		out.Errors = append(out.Errors, fmt.Sprintf("llm call failed: %v", err))
		return out, nil
	}

	// EXTRACT
	content, found := response.AssistantContent()
	out.RawLLMResponse = content
	if !found {
		p.logger.Warn(ctx, "Could not extract content from LLM response", map[string]interface{}{
			"guardrail": p.name,
		})
		out.Errors = append(out.Errors, "could not extract content from llm response")
		return out, nil
	}

	// PARSE
	record, err := p.parser.Parse(content)
	if err != nil {
		p.logger.Warn(ctx, "Failed to parse LLM response", map[string]interface{}{
			"guardrail": p.name,
			"error":     err.Error(),
		})
		out.Errors = append(out.Errors, err.Error())
		return out, nil
	}

	// COERCE + EMIT
	out.Details["parsed_llm_output"] = record
	p.mapper(record, out, p.logger)

	span.SetAttributes(attribute.Bool("guardrail.triggered", out.IsTriggered))
	return out, nil
}

// DefaultRenderer builds a renderer that joins all messages of the given
// roles, oldest first, newline-separated, into a user_context template
// variable. With no roles it defaults to user messages.
func DefaultRenderer(roles ...string) ConversationRenderer {
	if len(roles) == 0 {
		roles = []string{"user"}
	}
	return RoleContextRenderer("user_context", roles...)
}

// RoleContextRenderer builds a renderer that exposes the joined content of
// the given roles under the named template variable
func RoleContextRenderer(variable string, roles ...string) ConversationRenderer {
	return func(conv *llm.Conversation, driverMeta map[string]interface{}) *prompts.PromptRenderCtx {
		return &prompts.PromptRenderCtx{
			DriverType:  metaString(driverMeta, "driver_type"),
			ModelName:   metaString(driverMeta, "model_name"),
			RequestType: "chat",
			Variables: map[string]interface{}{
				variable: conv.ContentByRole(roles...),
			},
		}
	}
}

// TriggerFieldMapper builds a mapper that coerces a boolean trigger field and
// an optional numeric risk score out of the parsed record
func TriggerFieldMapper(triggerField, riskField string) OutputMapper {
	return func(record map[string]interface{}, out *CheckOutput, logger logging.Logger) {
		out.IsTriggered = BoolField(record, triggerField, out, logger)
		out.RiskScore = FloatField(record, riskField, out, logger)
	}
}

// BoolField reads a boolean field from the parsed record. A field that is
// missing or not a genuine boolean is defaulted to false, with the anomaly
// recorded in the output's Errors and logged at warn level. The check never
// escalates on malformed model output, but the anomaly is always surfaced.
func BoolField(record map[string]interface{}, field string, out *CheckOutput, logger logging.Logger) bool {
	value, present := record[field]
	if !present {
		msg := fmt.Sprintf("field %q missing from parsed output, defaulting to false", field)
		logger.Warn(context.Background(), "Trigger field missing", map[string]interface{}{"field": field})
		out.Errors = append(out.Errors, msg)
		return false
	}

	b, ok := value.(bool)
	if !ok {
		msg := fmt.Sprintf("field %q has non-boolean value %v (%T), defaulting to false", field, value, value)
		logger.Warn(context.Background(), "Trigger field has wrong type", map[string]interface{}{
			"field": field,
			"value": value,
		})
		out.Errors = append(out.Errors, msg)
		return false
	}

	return b
}

// FloatField reads an optional numeric field from the parsed record. A
// missing field is simply absent; a present non-numeric value is recorded as
// an anomaly and dropped.
func FloatField(record map[string]interface{}, field string, out *CheckOutput, logger logging.Logger) *float64 {
	value, present := record[field]
	if !present {
		return nil
	}

	switch v := value.(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	default:
		msg := fmt.Sprintf("field %q has non-numeric value %v (%T), dropping it", field, value, value)
		logger.Warn(context.Background(), "Numeric field has wrong type", map[string]interface{}{
			"field": field,
			"value": value,
		})
		out.Errors = append(out.Errors, msg)
		return nil
	}
}

func metaString(meta map[string]interface{}, key string) string {
	if meta != nil {
		if s, ok := meta[key].(string); ok && s != "" {
			return s
		}
	}
	return "unknown"
}
