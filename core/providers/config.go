package providers

import (
	"fmt"
	"time"
)

// BaseConfig contains configuration common to all providers
type BaseConfig struct {
	// APIKey is the authentication key for the provider
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model is the default model to use
	Model string `json:"model" yaml:"model"`

	// MaxTokens is the default maximum tokens to generate
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Temperature is the default sampling temperature
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// Timeout for a single API request
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultBaseConfig returns sensible defaults
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		MaxTokens:   2048,
		Temperature: 0.7,
		Timeout:     30 * time.Second,
	}
}

// Validate checks the base configuration
func (c *BaseConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}

func (c *BaseConfig) fillDefaults(defaults BaseConfig) {
	if c.Model == "" {
		c.Model = defaults.Model
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaults.MaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
}

// OpenAIConfig configures any OpenAI-compatible chat completions endpoint.
// Groq is served through this config with its own BaseURL.
type OpenAIConfig struct {
	BaseConfig `json:",inline" yaml:",inline"`

	// BaseURL overrides the default API endpoint
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Organization ID for OpenAI
	Organization string `json:"organization,omitempty" yaml:"organization,omitempty"`

	// EmbeddingModel is used by the Embed call
	EmbeddingModel string `json:"embedding_model,omitempty" yaml:"embedding_model,omitempty"`
}

const GroqBaseURL = "https://api.groq.com/openai/v1"

// DefaultGroqConfig returns Groq defaults
func DefaultGroqConfig() OpenAIConfig {
	base := DefaultBaseConfig()
	base.Model = "llama-3.3-70b-versatile"

	return OpenAIConfig{
		BaseConfig: base,
		BaseURL:    GroqBaseURL,
	}
}

// DefaultOpenAIConfig returns OpenAI defaults
func DefaultOpenAIConfig() OpenAIConfig {
	base := DefaultBaseConfig()
	base.Model = "gpt-4o-mini"

	return OpenAIConfig{
		BaseConfig:     base,
		EmbeddingModel: "text-embedding-3-small",
	}
}

// Validate checks OpenAI-specific configuration
func (c *OpenAIConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return fmt.Errorf("openai config: %w", err)
	}
	return nil
}

// AnthropicConfig contains Anthropic-specific configuration
type AnthropicConfig struct {
	BaseConfig `json:",inline" yaml:",inline"`

	// BaseURL overrides the default API endpoint
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// DefaultAnthropicConfig returns Anthropic defaults
func DefaultAnthropicConfig() AnthropicConfig {
	base := DefaultBaseConfig()
	base.Model = "claude-haiku-4-5-20251001"

	return AnthropicConfig{BaseConfig: base}
}

// Validate checks Anthropic-specific configuration
func (c *AnthropicConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return fmt.Errorf("anthropic config: %w", err)
	}
	return nil
}

// GoogleConfig contains Gemini-specific configuration
type GoogleConfig struct {
	BaseConfig `json:",inline" yaml:",inline"`
}

// DefaultGoogleConfig returns Gemini defaults
func DefaultGoogleConfig() GoogleConfig {
	base := DefaultBaseConfig()
	base.Model = "gemini-2.5-flash"

	return GoogleConfig{BaseConfig: base}
}

// Validate checks Google-specific configuration
func (c *GoogleConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return fmt.Errorf("google config: %w", err)
	}
	return nil
}

// ProviderType identifies the provider
type ProviderType string

const (
	ProviderTypeGroq      ProviderType = "groq"
	ProviderTypeOpenAI    ProviderType = "openai"
	ProviderTypeAnthropic ProviderType = "anthropic"
	ProviderTypeGoogle    ProviderType = "google"
)

// ParseProviderType returns the provider type for a configured name.
func ParseProviderType(name string) (ProviderType, error) {
	switch t := ProviderType(name); t {
	case ProviderTypeGroq, ProviderTypeOpenAI, ProviderTypeAnthropic, ProviderTypeGoogle:
		return t, nil
	default:
		return "", fmt.Errorf("unknown provider: %q", name)
	}
}
