package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/SankrityaT/Navia-sub000/core/providers"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	LLM          LLMConfig          `yaml:"llm"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Knowledge    KnowledgeConfig    `yaml:"knowledge"`
	WebSearch    WebSearchConfig    `yaml:"web_search"`
	Conversation ConversationConfig `yaml:"conversation"`
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
}

type LLMConfig struct {
	Provider    string        `yaml:"provider" validate:"oneof=groq openai anthropic google scripted"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	Temperature float64       `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int           `yaml:"max_tokens" validate:"gt=0"`
	BaseURL     string        `yaml:"base_url" validate:"omitempty,url"`

	GroqAPIKey      string `yaml:"groq_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	GoogleAPIKey    string `yaml:"google_api_key"`

	Breaker providers.BreakerConfig `yaml:"breaker"`
}

// APIKey returns the key configured for the selected provider.
func (c LLMConfig) APIKey() string {
	switch c.Provider {
	case "groq":
		return c.GroqAPIKey
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "google":
		return c.GoogleAPIKey
	default:
		return ""
	}
}

type OrchestratorConfig struct {
	AgentTimeout         time.Duration `yaml:"agent_timeout" validate:"gt=0"`
	ClassifierTimeout    time.Duration `yaml:"classifier_timeout" validate:"gt=0"`
	// ClassifierCacheTTL memoizes intent detections when positive. Off by default.
	ClassifierCacheTTL   time.Duration `yaml:"classifier_cache_ttl" validate:"gte=0"`
	BreakdownTimeout     time.Duration `yaml:"breakdown_timeout" validate:"gt=0"`
	MaxConcurrentAgents  int           `yaml:"max_concurrent_agents" validate:"gt=0"`
	HistoryWindow        int           `yaml:"history_window" validate:"gte=0"`
	MaxClassifierHistory int           `yaml:"max_classifier_history" validate:"gte=0"`
	MaxBreakdownHistory  int           `yaml:"max_breakdown_history" validate:"gte=0"`
	MaxBreakdownSteps    int           `yaml:"max_breakdown_steps" validate:"gte=0"`
	MaxDetectorHistory   int           `yaml:"max_detector_history" validate:"gte=0"`
	MaxResources         int           `yaml:"max_resources" validate:"gt=0"`
	MaxSources           int           `yaml:"max_sources" validate:"gt=0"`
}

type KnowledgeConfig struct {
	Backend      string        `yaml:"backend" validate:"oneof=bleve none"`
	IndexPath    string        `yaml:"index_path"`
	Limit        int           `yaml:"limit" validate:"gt=0"`
	CacheTTL     time.Duration `yaml:"cache_ttl" validate:"gte=0"`
	CacheMaxCost int64         `yaml:"cache_max_cost" validate:"gte=0"`
	Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`
}

type WebSearchConfig struct {
	Provider   string        `yaml:"provider" validate:"oneof=tavily none"`
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url" validate:"omitempty,url"`
	MaxResults int           `yaml:"max_results" validate:"gt=0,lte=20"`
	CacheSize  int           `yaml:"cache_size" validate:"gte=0"`
	CacheTTL   time.Duration `yaml:"cache_ttl" validate:"gte=0"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
}

type ConversationConfig struct {
	Backend           string        `yaml:"backend" validate:"oneof=sqlite supabase memory"`
	DatabasePath      string        `yaml:"database_path"`
	SupabaseURL       string        `yaml:"supabase_url" validate:"omitempty,url"`
	SupabaseKey       string        `yaml:"supabase_key"`
	Table             string        `yaml:"table" validate:"required"`
	MatchFunction     string        `yaml:"match_function"`
	Embedder          string        `yaml:"embedder" validate:"oneof=hash openai"`
	SemanticThreshold float64       `yaml:"semantic_threshold" validate:"gte=0,lte=1"`
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr" validate:"required"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout   time.Duration `yaml:"write_timeout" validate:"gt=0"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "groq",
			Timeout:     30 * time.Second,
			Temperature: 0.7,
			MaxTokens:   2048,
			Breaker:     providers.DefaultBreakerConfig(),
		},
		Orchestrator: OrchestratorConfig{
			AgentTimeout:         45 * time.Second,
			ClassifierTimeout:    15 * time.Second,
			BreakdownTimeout:     30 * time.Second,
			MaxConcurrentAgents:  3,
			HistoryWindow:        10,
			MaxClassifierHistory: 12,
			MaxBreakdownHistory:  4,
			MaxBreakdownSteps:    7,
			MaxDetectorHistory:   10,
			MaxResources:         10,
			MaxSources:           8,
		},
		Knowledge: KnowledgeConfig{
			Backend:      "bleve",
			Limit:        5,
			CacheTTL:     10 * time.Minute,
			CacheMaxCost: 1 << 20,
			Timeout:      5 * time.Second,
		},
		WebSearch: WebSearchConfig{
			Provider:   "tavily",
			BaseURL:    "https://api.tavily.com",
			MaxResults: 3,
			CacheSize:  256,
			CacheTTL:   30 * time.Minute,
			Timeout:    8 * time.Second,
		},
		Conversation: ConversationConfig{
			Backend:           "sqlite",
			Table:             "chat_history",
			MatchFunction:     "match_chat_history",
			Embedder:          "hash",
			SemanticThreshold: 0.7,
			Timeout:           5 * time.Second,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   90 * time.Second,
			RequestTimeout: 75 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

var validate = validator.New()

// Validate checks struct tag constraints and cross-field requirements.
// Credentials are checked separately by CheckCredentials so that a config
// can be loaded and inspected without secrets present.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Conversation.Backend == "supabase" && (c.Conversation.SupabaseURL == "" || c.Conversation.SupabaseKey == "") {
		return fmt.Errorf("invalid config: conversation.supabase_url and conversation.supabase_key are required for the supabase backend")
	}
	return nil
}

var ErrMissingCredentials = errors.New("missing credentials")

// CheckCredentials reports whether the selected LLM provider has an API key.
func (c *Config) CheckCredentials() error {
	if c.LLM.Provider != "scripted" && c.LLM.APIKey() == "" {
		return fmt.Errorf("%w: no API key for llm provider %q", ErrMissingCredentials, c.LLM.Provider)
	}
	return nil
}
