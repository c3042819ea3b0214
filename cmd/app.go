package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/SankrityaT/Navia-sub000/agents/career"
	"github.com/SankrityaT/Navia-sub000/agents/coach"
	"github.com/SankrityaT/Navia-sub000/agents/dailytask"
	"github.com/SankrityaT/Navia-sub000/agents/finance"
	"github.com/SankrityaT/Navia-sub000/core/breakdown"
	"github.com/SankrityaT/Navia-sub000/core/config"
	"github.com/SankrityaT/Navia-sub000/core/conversation"
	"github.com/SankrityaT/Navia-sub000/core/domain/classifier"
	"github.com/SankrityaT/Navia-sub000/core/knowledge"
	"github.com/SankrityaT/Navia-sub000/core/orchestrator"
	"github.com/SankrityaT/Navia-sub000/core/providers"
	"github.com/SankrityaT/Navia-sub000/core/storage"
	"github.com/SankrityaT/Navia-sub000/core/websearch"
)

// =============================================================================
// Constants
// =============================================================================

const metricsNamespace = "navia"

// offlineReply satisfies every component's JSON contract so the scripted
// provider can drive a full request without network access.
const offlineReply = `{
  "domains": ["daily_task"],
  "confidence": 0.5,
  "complexity": 3,
  "needsBreakdown": false,
  "explicitRequest": false,
  "reasoning": "offline mode",
  "summary": "I'm running in offline mode, so I can't give a tailored answer right now. Try picking one small thing you can finish in the next ten minutes."
}`

// =============================================================================
// Application Wiring
// =============================================================================

// app holds every long-lived component built from one configuration.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	provider     providers.Provider
	store        conversation.Store
	knowledge    knowledge.Retriever
	search       websearch.Searcher
	metrics      *orchestrator.Metrics
	orchestrator *orchestrator.Orchestrator
	closers      []func() error
}

func buildApp(ctx context.Context, cfg *config.Config, dirs *storage.Dirs, logger *slog.Logger) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.CheckCredentials(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	fail := func(err error) (*app, error) {
		_ = a.Close()
		return nil, err
	}

	chat, embedder, err := newProviders(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.provider = providers.NewResilient(chat, providers.ResilientConfig{
		Breaker: cfg.LLM.Breaker,
		Logger:  logger,
	})

	if a.store, err = a.openStore(ctx, cfg.Conversation, dirs, embedder); err != nil {
		return fail(err)
	}
	if a.knowledge, err = a.openKnowledge(cfg.Knowledge, dirs); err != nil {
		return fail(err)
	}
	if a.search, err = newSearcher(cfg.WebSearch, logger); err != nil {
		return fail(err)
	}

	cls, err := a.newClassifier()
	if err != nil {
		return fail(err)
	}

	a.metrics = orchestrator.NewMetrics(metricsNamespace)
	a.orchestrator = a.newOrchestrator(cls)
	return a, nil
}

func (a *app) newClassifier() (classifier.Classifier, error) {
	oc := a.cfg.Orchestrator
	llm := classifier.NewLLMClassifier(a.provider, &classifier.Config{
		Timeout:    oc.ClassifierTimeout,
		MaxHistory: oc.MaxClassifierHistory,
		Logger:     a.logger,
	})
	if oc.ClassifierCacheTTL <= 0 {
		return llm, nil
	}

	cached, err := classifier.NewCached(llm, &classifier.CacheConfig{TTL: oc.ClassifierCacheTTL})
	if err != nil {
		return nil, fmt.Errorf("classifier cache: %w", err)
	}
	a.closers = append(a.closers, func() error {
		cached.Close()
		return nil
	})
	return cached, nil
}

func (a *app) newOrchestrator(cls classifier.Classifier) *orchestrator.Orchestrator {
	cfg := a.cfg
	oc := cfg.Orchestrator

	deps := coach.Deps{
		Provider:  a.provider,
		Knowledge: a.knowledge,
		Search:    a.search,
		Store:     a.store,
		Generator: breakdown.NewGenerator(a.provider, &breakdown.GeneratorConfig{
			Timeout:    oc.BreakdownTimeout,
			MaxHistory: oc.MaxBreakdownHistory,
			MaxSteps:   oc.MaxBreakdownSteps,
			Logger:     a.logger,
		}),
		Detector: breakdown.NewDetector(a.provider, &breakdown.DetectorConfig{
			MaxHistory: oc.MaxDetectorHistory,
			Logger:     a.logger,
		}),
		Analyzer: breakdown.NewAnalyzer(a.provider, oc.ClassifierTimeout, a.logger),
	}

	coachConfig := func() *coach.Config {
		return &coach.Config{
			FetchTimeout:   max(cfg.Knowledge.Timeout, cfg.WebSearch.Timeout),
			KnowledgeLimit: cfg.Knowledge.Limit,
			HistoryLimit:   oc.HistoryWindow,
			Logger:         a.logger,
		}
	}

	return orchestrator.New(cls, a.store, &orchestrator.Config{
		AgentTimeout:        oc.AgentTimeout,
		MaxConcurrentAgents: oc.MaxConcurrentAgents,
		HistoryWindow:       oc.HistoryWindow,
		MaxResources:        oc.MaxResources,
		MaxSources:          oc.MaxSources,
		Logger:              a.logger,
		Metrics:             a.metrics,
	},
		finance.New(deps, coachConfig()),
		career.New(deps, coachConfig()),
		dailytask.New(deps, coachConfig()),
	)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// =============================================================================
// Providers
// =============================================================================

// newProviders builds the chat provider and the embedder used for semantic
// conversation lookup. OpenAI embeddings share the registry with the chat
// provider; otherwise the local hash embedder is used.
func newProviders(ctx context.Context, cfg *config.Config) (providers.Provider, providers.Embedder, error) {
	registry := providers.NewRegistry()
	wantEmbeddings := cfg.Conversation.Embedder == "openai"

	var chat providers.Provider
	if cfg.LLM.Provider == "scripted" {
		chat = providers.NewScripted().Fallback(offlineReply, nil)
	} else {
		providerType, err := registerChat(ctx, registry, cfg.LLM)
		if err != nil {
			return nil, nil, err
		}
		if chat, err = registry.Get(providerType); err != nil {
			return nil, nil, err
		}
	}

	if !wantEmbeddings {
		return chat, providers.NewHashEmbedder(0), nil
	}
	if !registry.Has(providers.ProviderTypeOpenAI) {
		pc := providers.DefaultOpenAIConfig()
		pc.APIKey = cfg.LLM.OpenAIAPIKey
		if err := registry.RegisterOpenAI(pc); err != nil {
			return nil, nil, fmt.Errorf("create openai embedder: %w", err)
		}
	}
	embedder, ok := registry.Embedder()
	if !ok {
		return nil, nil, fmt.Errorf("no embedding provider registered")
	}
	return chat, embedder, nil
}

func registerChat(ctx context.Context, registry *providers.Registry, cfg config.LLMConfig) (providers.ProviderType, error) {
	providerType, err := providers.ParseProviderType(cfg.Provider)
	if err != nil {
		return "", err
	}

	base := func(defaults providers.BaseConfig) providers.BaseConfig {
		defaults.APIKey = cfg.APIKey()
		if cfg.Model != "" {
			defaults.Model = cfg.Model
		}
		defaults.MaxTokens = cfg.MaxTokens
		defaults.Temperature = cfg.Temperature
		defaults.Timeout = cfg.Timeout
		return defaults
	}

	switch providerType {
	case providers.ProviderTypeGroq:
		pc := providers.DefaultGroqConfig()
		pc.BaseConfig = base(pc.BaseConfig)
		if cfg.BaseURL != "" {
			pc.BaseURL = cfg.BaseURL
		}
		err = registry.RegisterGroq(pc)
	case providers.ProviderTypeOpenAI:
		pc := providers.DefaultOpenAIConfig()
		pc.BaseConfig = base(pc.BaseConfig)
		if cfg.BaseURL != "" {
			pc.BaseURL = cfg.BaseURL
		}
		err = registry.RegisterOpenAI(pc)
	case providers.ProviderTypeAnthropic:
		pc := providers.DefaultAnthropicConfig()
		pc.BaseConfig = base(pc.BaseConfig)
		pc.BaseURL = cfg.BaseURL
		err = registry.RegisterAnthropic(pc)
	case providers.ProviderTypeGoogle:
		pc := providers.DefaultGoogleConfig()
		pc.BaseConfig = base(pc.BaseConfig)
		err = registry.RegisterGoogle(ctx, pc)
	}
	if err != nil {
		return "", fmt.Errorf("create %s provider: %w", cfg.Provider, err)
	}
	return providerType, registry.SetDefault(providerType)
}

// =============================================================================
// Storage
// =============================================================================

func (a *app) openStore(ctx context.Context, cfg config.ConversationConfig, dirs *storage.Dirs, embedder providers.Embedder) (conversation.Store, error) {
	switch cfg.Backend {
	case "supabase":
		return conversation.NewSupabaseStore(conversation.SupabaseConfig{
			URL:           cfg.SupabaseURL,
			Key:           cfg.SupabaseKey,
			Table:         cfg.Table,
			MatchFunction: cfg.MatchFunction,
			Embedder:      embedder,
			Threshold:     cfg.SemanticThreshold,
			Logger:        a.logger,
		})
	case "memory":
		return conversation.NewMemory(embedder).WithThreshold(cfg.SemanticThreshold), nil
	default:
		path := cfg.DatabasePath
		if path == "" {
			path = dirs.ConversationDB()
		}
		if err := storage.EnsureDir(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create conversation directory: %w", err)
		}
		store, err := conversation.OpenSQLite(ctx, path, conversation.SQLiteConfig{
			Embedder:  embedder,
			Threshold: cfg.SemanticThreshold,
			Logger:    a.logger,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
}

func (a *app) openKnowledge(cfg config.KnowledgeConfig, dirs *storage.Dirs) (knowledge.Retriever, error) {
	if cfg.Backend == "none" {
		return nil, nil
	}

	index, err := openIndex(cfg, dirs)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, index.Close)

	if cfg.CacheMaxCost <= 0 {
		return index, nil
	}
	cached, err := knowledge.NewCached(index, &knowledge.CacheConfig{
		MaxCost: cfg.CacheMaxCost,
		TTL:     cfg.CacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge cache: %w", err)
	}
	a.closers = append(a.closers, func() error {
		cached.Close()
		return nil
	})
	return cached, nil
}

func openIndex(cfg config.KnowledgeConfig, dirs *storage.Dirs) (*knowledge.Index, error) {
	path := cfg.IndexPath
	if path == "" {
		path = dirs.KnowledgeIndex()
	}
	if err := storage.EnsureDir(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create knowledge directory: %w", err)
	}
	index, err := knowledge.OpenIndex(knowledge.IndexConfig{Path: path})
	if err != nil {
		return nil, fmt.Errorf("open knowledge index: %w", err)
	}
	return index, nil
}

func newSearcher(cfg config.WebSearchConfig, logger *slog.Logger) (websearch.Searcher, error) {
	if cfg.Provider == "none" {
		return nil, nil
	}
	if cfg.APIKey == "" {
		logger.Warn("web search disabled: no tavily api key configured")
		return nil, nil
	}

	tavily, err := websearch.NewTavily(websearch.TavilyConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		SearchDepth: "basic",
	})
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize <= 0 {
		return tavily, nil
	}
	return websearch.NewCached(tavily, cfg.CacheSize, cfg.CacheTTL), nil
}
