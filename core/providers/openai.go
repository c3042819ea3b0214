package providers

import (
	"context"
	"errors"
	"fmt"

	navierrors "github.com/SankrityaT/Navia-sub000/core/errors"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIProvider implements Provider for OpenAI-compatible chat completion
// APIs. The same adapter talks to Groq by pointing BaseURL at it.
type OpenAIProvider struct {
	client *openai.Client
	config OpenAIConfig
	name   ProviderType
}

// NewOpenAIProvider creates a new OpenAI provider with the given configuration
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	config.fillDefaults(DefaultOpenAIConfig().BaseConfig)
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = DefaultOpenAIConfig().EmbeddingModel
	}
	return newOpenAICompatible(ProviderTypeOpenAI, config)
}

// NewGroqProvider creates a provider for Groq's OpenAI-compatible endpoint.
func NewGroqProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	config.fillDefaults(DefaultGroqConfig().BaseConfig)
	if config.BaseURL == "" {
		config.BaseURL = GroqBaseURL
	}
	return newOpenAICompatible(ProviderTypeGroq, config)
}

func newOpenAICompatible(name ProviderType, config OpenAIConfig) (*OpenAIProvider, error) {
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

	if config.Organization != "" {
		opts = append(opts, option.WithHeader("OpenAI-Organization", config.Organization))
	}

	client := openai.NewClient(opts...)

	return &OpenAIProvider{
		client: &client,
		config: config,
		name:   name,
	}, nil
}

// Name returns the provider identifier
func (p *OpenAIProvider) Name() string {
	return string(p.name)
}

// Complete performs a non-streaming chat completion request
func (p *OpenAIProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, ErrNoMessages
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	completion, err := p.client.Chat.Completions.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, p.wrapError(err)
	}

	return p.convertResponse(completion)
}

func (p *OpenAIProvider) buildParams(req *Request) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(model),
		Messages:  p.convertMessages(req),
		MaxTokens: openai.Int(int64(maxTokens)),
	}

	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	} else {
		params.Temperature = openai.Float(p.config.Temperature)
	}

	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	return params
}

func (p *OpenAIProvider) convertMessages(req *Request) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)

	if req.SystemPrompt != "" {
		result = append(result, openai.SystemMessage(req.SystemPrompt))
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}

	return result
}

func (p *OpenAIProvider) convertResponse(completion *openai.ChatCompletion) (*Response, error) {
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return nil, navierrors.WrapWithTier(navierrors.TierTransient, p.Name()+" complete", ErrEmptyResponse)
	}

	choice := completion.Choices[0]
	return &Response{
		Content:    choice.Message.Content,
		Model:      completion.Model,
		StopReason: convertFinishReason(choice.FinishReason),
		Usage: Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:  int(completion.Usage.TotalTokens),
		},
	}, nil
}

func convertFinishReason(reason string) StopReason {
	switch reason {
	case "length":
		return StopReasonMaxTokens
	case "stop":
		return StopReasonEndTurn
	default:
		return StopReason(reason)
	}
}

func (p *OpenAIProvider) wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return navierrors.FromStatus(apiErr.StatusCode, p.Name()+" complete", err)
	}
	return navierrors.WrapWithTier(navierrors.Classify(err), p.Name()+" complete", err)
}

// Embed returns one embedding per input text.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(p.config.EmbeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("%s embed: %w", p.Name(), p.wrapError(err))
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if int(item.Index) >= len(out) {
			continue
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		out[item.Index] = vec
	}
	return out, nil
}
