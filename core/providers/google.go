package providers

import (
	"context"
	"errors"

	navierrors "github.com/SankrityaT/Navia-sub000/core/errors"
	"google.golang.org/genai"
)

// GoogleProvider implements Provider for Gemini models through the Gemini API
type GoogleProvider struct {
	client *genai.Client
	config GoogleConfig
}

// NewGoogleProvider creates a new Gemini provider with the given configuration
func NewGoogleProvider(ctx context.Context, config GoogleConfig) (*GoogleProvider, error) {
	config.fillDefaults(DefaultGoogleConfig().BaseConfig)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, navierrors.WrapWithTier(navierrors.TierUserFixable, "google client", err)
	}

	return &GoogleProvider{
		client: client,
		config: config,
	}, nil
}

// Name returns the provider identifier
func (p *GoogleProvider) Name() string {
	return string(ProviderTypeGoogle)
}

// Complete performs a non-streaming generate content request
func (p *GoogleProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, ErrNoMessages
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	system, messages := splitSystem(req)
	resp, err := p.client.Models.GenerateContent(ctx, model, p.convertMessages(messages), p.buildConfig(req, system))
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, navierrors.FromStatus(apiErr.Code, "google complete", err)
		}
		return nil, navierrors.WrapWithTier(navierrors.Classify(err), "google complete", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, navierrors.WrapWithTier(navierrors.TierTransient, "google complete", ErrEmptyResponse)
	}

	out := &Response{
		Content:    text,
		Model:      model,
		StopReason: StopReasonEndTurn,
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

func (p *GoogleProvider) buildConfig(req *Request, system string) *genai.GenerateContentConfig {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	temperature := p.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
		Temperature:     genai.Ptr(float32(temperature)),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

func (p *GoogleProvider) convertMessages(messages []Message) []*genai.Content {
	result := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := genai.Role(genai.RoleUser)
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		result = append(result, genai.NewContentFromText(msg.Content, role))
	}
	return result
}
