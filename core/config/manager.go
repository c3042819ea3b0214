// Package config loads Navia's layered YAML configuration: defaults, then
// the user file, then the project file, then the gitignored local file,
// then environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SankrityaT/Navia-sub000/core/storage"
	"gopkg.in/yaml.v3"
)

type Manager struct {
	config      atomic.Pointer[Config]
	dirs        *storage.Dirs
	projectDirs *storage.ProjectDirs
	overrides   *Config
	logger      *slog.Logger
	watchers    []func(*Config)
	watcherMu   sync.RWMutex
	stopWatch   chan struct{}
	watchOnce   sync.Once
}

type ManagerOption func(*Manager)

// WithProjectRoot sets the directory holding .navia/ (default ".").
func WithProjectRoot(root string) ManagerOption {
	return func(m *Manager) { m.projectDirs = storage.ResolveProjectDirs(root) }
}

// WithOverrides layers non-zero fields of cfg over everything else, env
// variables included. The CLI passes its flags through here.
func WithOverrides(cfg *Config) ManagerOption {
	return func(m *Manager) { m.overrides = cfg }
}

func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

func NewManager(dirs *storage.Dirs, opts ...ManagerOption) *Manager {
	m := &Manager{
		dirs:        dirs,
		projectDirs: storage.ResolveProjectDirs("."),
		logger:      slog.Default(),
		stopWatch:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.config.Store(DefaultConfig())
	return m
}

func (m *Manager) Get() *Config {
	return m.config.Load()
}

// Load rebuilds the configuration from scratch. An invalid result leaves
// the previously loaded configuration in place.
func (m *Manager) Load() error {
	cfg := DefaultConfig()

	for _, layer := range m.layers() {
		if err := loadYAMLFile(layer.path, cfg); err != nil {
			return fmt.Errorf("%s config: %w", layer.name, err)
		}
	}

	applyEnvironment(cfg)

	if m.overrides != nil {
		Overlay(cfg, m.overrides)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	m.config.Store(cfg)
	m.notifyWatchers(cfg)

	return nil
}

type layer struct {
	name string
	path string
}

func (m *Manager) layers() []layer {
	return []layer{
		{name: "user", path: m.dirs.UserConfigFile()},
		{name: "project", path: m.projectDirs.Config},
		{name: "local", path: m.projectDirs.LocalConfig()},
	}
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func applyEnvironment(cfg *Config) {
	setString(&cfg.LLM.Provider, "NAVIA_LLM_PROVIDER")
	setString(&cfg.LLM.Model, "NAVIA_LLM_MODEL")
	setString(&cfg.LLM.BaseURL, "NAVIA_LLM_BASE_URL")
	setDuration(&cfg.LLM.Timeout, "NAVIA_LLM_TIMEOUT")
	setString(&cfg.LLM.GroqAPIKey, "GROQ_API_KEY")
	setString(&cfg.LLM.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&cfg.LLM.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.LLM.GoogleAPIKey, "GOOGLE_API_KEY")
	setString(&cfg.LLM.GoogleAPIKey, "GEMINI_API_KEY")

	setDuration(&cfg.Orchestrator.AgentTimeout, "NAVIA_AGENT_TIMEOUT")
	setDuration(&cfg.Orchestrator.ClassifierCacheTTL, "NAVIA_CLASSIFIER_CACHE_TTL")
	setInt(&cfg.Orchestrator.MaxConcurrentAgents, "NAVIA_MAX_CONCURRENT_AGENTS")

	setString(&cfg.Knowledge.Backend, "NAVIA_KNOWLEDGE_BACKEND")
	setString(&cfg.Knowledge.IndexPath, "NAVIA_KNOWLEDGE_INDEX")

	setString(&cfg.WebSearch.Provider, "NAVIA_WEB_SEARCH_PROVIDER")
	setString(&cfg.WebSearch.APIKey, "TAVILY_API_KEY")

	setString(&cfg.Conversation.Backend, "NAVIA_CONVERSATION_BACKEND")
	setString(&cfg.Conversation.DatabasePath, "NAVIA_CONVERSATION_DB")
	setString(&cfg.Conversation.SupabaseURL, "SUPABASE_URL")
	setString(&cfg.Conversation.SupabaseKey, "SUPABASE_KEY")
	setString(&cfg.Conversation.Embedder, "NAVIA_EMBEDDER")

	setString(&cfg.Server.Addr, "NAVIA_SERVER_ADDR")
	if v := os.Getenv("NAVIA_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}

	setString(&cfg.Logging.Level, "NAVIA_LOG_LEVEL")
	setString(&cfg.Logging.Format, "NAVIA_LOG_FORMAT")
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, env string) {
	if v := os.Getenv(env); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (m *Manager) OnChange(fn func(*Config)) {
	m.watcherMu.Lock()
	m.watchers = append(m.watchers, fn)
	m.watcherMu.Unlock()
}

func (m *Manager) notifyWatchers(cfg *Config) {
	m.watcherMu.RLock()
	watchers := m.watchers
	m.watcherMu.RUnlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}

func (m *Manager) Reload() error {
	return m.Load()
}

func (m *Manager) Close() error {
	m.watchOnce.Do(func() {
		close(m.stopWatch)
	})
	return nil
}
