package providers

import (
	"context"
	"errors"
	"strings"

	navierrors "github.com/SankrityaT/Navia-sub000/core/errors"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic has no JSON response mode; the instruction is appended to the
// system prompt and the reply is prefilled with an opening brace.
const anthropicJSONInstruction = "Respond with a single valid JSON object and nothing else."

// AnthropicProvider implements Provider for Anthropic's Claude models
type AnthropicProvider struct {
	client *anthropic.Client
	config AnthropicConfig
}

// NewAnthropicProvider creates a new Anthropic provider with the given configuration
func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	config.fillDefaults(DefaultAnthropicConfig().BaseConfig)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	return &AnthropicProvider{
		client: &client,
		config: config,
	}, nil
}

// Name returns the provider identifier
func (p *AnthropicProvider) Name() string {
	return string(ProviderTypeAnthropic)
}

// Complete performs a non-streaming completion request
func (p *AnthropicProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, ErrNoMessages
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	msg, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, navierrors.FromStatus(apiErr.StatusCode, "anthropic complete", err)
		}
		return nil, navierrors.WrapWithTier(navierrors.Classify(err), "anthropic complete", err)
	}

	return p.convertResponse(msg, req.JSONMode)
}

func (p *AnthropicProvider) buildParams(req *Request) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	system, messages := splitSystem(req)
	if req.JSONMode {
		system = strings.TrimSpace(system + "\n\n" + anthropicJSONInstruction)
	}

	converted := p.convertMessages(messages)
	if req.JSONMode {
		converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock("{")))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  converted,
	}

	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	} else {
		params.Temperature = anthropic.Float(p.config.Temperature)
	}

	return params
}

func (p *AnthropicProvider) convertMessages(messages []Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			result = append(result, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			result = append(result, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	return result
}

func (p *AnthropicProvider) convertResponse(msg *anthropic.Message, prefilled bool) (*Response, error) {
	var content strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content.WriteString(b.Text)
		}
	}

	if content.Len() == 0 {
		return nil, navierrors.WrapWithTier(navierrors.TierTransient, "anthropic complete", ErrEmptyResponse)
	}

	text := content.String()
	if prefilled {
		text = "{" + text
	}

	return &Response{
		Content:    text,
		Model:      string(msg.Model),
		StopReason: convertAnthropicStopReason(msg.StopReason),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}

func convertAnthropicStopReason(reason anthropic.StopReason) StopReason {
	switch reason {
	case anthropic.StopReasonEndTurn:
		return StopReasonEndTurn
	case anthropic.StopReasonMaxTokens:
		return StopReasonMaxTokens
	case anthropic.StopReasonStopSequence:
		return StopReasonStopSequence
	default:
		return StopReason(reason)
	}
}
