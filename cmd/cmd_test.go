package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SankrityaT/Navia-sub000/core/config"
	"github.com/SankrityaT/Navia-sub000/core/conversation"
	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/SankrityaT/Navia-sub000/core/domain/classifier"
	"github.com/SankrityaT/Navia-sub000/core/knowledge"
	"github.com/SankrityaT/Navia-sub000/core/providers"
	"github.com/SankrityaT/Navia-sub000/core/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Command Definitions
// =============================================================================

func TestRootCmd_Definition(t *testing.T) {
	t.Run("has subcommands", func(t *testing.T) {
		found := make(map[string]bool)
		for _, c := range rootCmd.Commands() {
			found[c.Name()] = true
		}
		for _, name := range []string{"ask", "serve", "index", "history"} {
			assert.True(t, found[name], "%s subcommand should exist", name)
		}
	})

	t.Run("has persistent flags", func(t *testing.T) {
		pflags := rootCmd.PersistentFlags()
		for _, name := range []string{"log-level", "log-format", "project", "provider", "model"} {
			assert.NotNil(t, pflags.Lookup(name), "missing --%s", name)
		}
	})
}

func TestIndexCmd_Definition(t *testing.T) {
	found := make(map[string]bool)
	for _, c := range indexCmd.Commands() {
		found[c.Name()] = true
	}
	assert.True(t, found["status"])
	assert.True(t, found["add"])
	assert.True(t, found["rebuild"])
	assert.True(t, found["query"])

	jsonFlag := indexCmd.PersistentFlags().Lookup("json")
	require.NotNil(t, jsonFlag)
	assert.Equal(t, "false", jsonFlag.DefValue)
}

func TestAskCmd_Flags(t *testing.T) {
	user := askCmd.Flags().Lookup("user")
	require.NotNil(t, user)
	assert.Equal(t, "u", user.Shorthand)
	assert.Equal(t, DefaultCLIUser, user.DefValue)
	assert.NotNil(t, askCmd.Flags().Lookup("energy"))
	assert.Error(t, askCmd.Args(askCmd, nil))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

// =============================================================================
// Wiring
// =============================================================================

func testDirs(t *testing.T) *storage.Dirs {
	t.Helper()
	return &storage.Dirs{
		Config: t.TempDir(),
		Data:   t.TempDir(),
		Cache:  t.TempDir(),
		State:  t.TempDir(),
	}
}

func offlineConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "scripted"
	cfg.Conversation.Backend = "memory"
	cfg.WebSearch.Provider = "none"
	cfg.Knowledge.IndexPath = filepath.Join(t.TempDir(), "knowledge.bleve")
	return cfg
}

func TestNewProviders(t *testing.T) {
	ctx := context.Background()

	t.Run("scripted chat with hash embedder", func(t *testing.T) {
		cfg := offlineConfig(t)
		chat, embedder, err := newProviders(ctx, cfg)
		require.NoError(t, err)

		resp, err := chat.Complete(ctx, &providers.Request{Messages: []providers.Message{providers.User("hi")}})
		require.NoError(t, err)
		assert.Equal(t, offlineReply, resp.Content)
		assert.IsType(t, &providers.HashEmbedder{}, embedder)
	})

	t.Run("openai embeddings beside another chat provider", func(t *testing.T) {
		cfg := offlineConfig(t)
		cfg.Conversation.Embedder = "openai"
		cfg.LLM.OpenAIAPIKey = "sk-test"

		_, embedder, err := newProviders(ctx, cfg)
		require.NoError(t, err)
		assert.IsType(t, &providers.OpenAIProvider{}, embedder)

		cfg.LLM.OpenAIAPIKey = ""
		_, _, err = newProviders(ctx, cfg)
		assert.Error(t, err)
	})

	t.Run("groq chat is never used for embeddings", func(t *testing.T) {
		cfg := offlineConfig(t)
		cfg.LLM.Provider = "groq"
		cfg.LLM.GroqAPIKey = "gsk-test"
		cfg.Conversation.Embedder = "openai"
		cfg.LLM.OpenAIAPIKey = "sk-test"

		chat, embedder, err := newProviders(ctx, cfg)
		require.NoError(t, err)
		assert.Equal(t, "groq", chat.Name())
		assert.NotSame(t, chat, embedder)
	})

	t.Run("bad provider config fails", func(t *testing.T) {
		cfg := offlineConfig(t)
		cfg.LLM.Provider = "pinecone"
		_, _, err := newProviders(ctx, cfg)
		assert.Error(t, err)

		cfg.LLM.Provider = "groq"
		_, _, err = newProviders(ctx, cfg)
		assert.Error(t, err, "groq without a key must fail")
	})
}

func TestBuildApp_RequiresCredentials(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.GroqAPIKey = ""

	_, err := buildApp(context.Background(), cfg, testDirs(t), nil)
	assert.ErrorIs(t, err, config.ErrMissingCredentials)
}

func TestBuildApp_OfflineOrchestration(t *testing.T) {
	a, err := buildApp(context.Background(), offlineConfig(t), testDirs(t), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.search)
	assert.NotNil(t, a.knowledge)
	assert.NotNil(t, a.metrics.Handler())
	assert.Len(t, a.orchestrator.Domains(), 3)

	result := a.orchestrator.Orchestrate(context.Background(), "u1", "how do I start cleaning my room", nil)
	require.True(t, result.Success, result.Metadata.Error)
	assert.Equal(t, []domain.Domain{domain.DomainDailyTask}, result.Metadata.DomainsInvolved)
	assert.Contains(t, result.Summary(), "offline mode")
	assert.Empty(t, result.Breakdown)
}

func TestNewClassifier_CacheIsOptIn(t *testing.T) {
	cfg := offlineConfig(t)
	a := &app{cfg: cfg, logger: slog.Default(), provider: providers.NewScripted()}
	defer a.Close()

	cls, err := a.newClassifier()
	require.NoError(t, err)
	assert.IsType(t, &classifier.LLMClassifier{}, cls)
	assert.Empty(t, a.closers)

	cfg.Orchestrator.ClassifierCacheTTL = time.Minute
	cls, err = a.newClassifier()
	require.NoError(t, err)
	assert.IsType(t, &classifier.Cached{}, cls)
	assert.Len(t, a.closers, 1)
}

func TestBuildApp_SQLiteStoreDefaultsToDataDir(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Conversation.Backend = "sqlite"
	cfg.Knowledge.Backend = "none"
	dirs := testDirs(t)

	a, err := buildApp(context.Background(), cfg, dirs, nil)
	require.NoError(t, err)
	assert.Nil(t, a.knowledge)

	require.NoError(t, a.store.Append(context.Background(), conversation.Record{UserID: "u1", Query: "hello", Response: "hi"}))
	require.NoError(t, a.Close())

	_, err = os.Stat(dirs.ConversationDB())
	assert.NoError(t, err)
}

// =============================================================================
// Ask
// =============================================================================

func TestAskUserContext_CountsSessionHistory(t *testing.T) {
	store := conversation.NewMemory(nil)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, conversation.Record{UserID: "u1", SessionID: "s1", Query: "YNAB or Mint?", Response: "Mint is simpler."}))
	require.NoError(t, store.Append(ctx, conversation.Record{UserID: "u1", SessionID: "s2", Query: "resume help", Response: "Sure."}))

	prevUser, prevSession, prevEnergy := askUser, askSession, askEnergy
	t.Cleanup(func() { askUser, askSession, askEnergy = prevUser, prevSession, prevEnergy })
	askUser, askSession, askEnergy = "u1", "s1", "low"

	uc, err := askUserContext(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "low", uc.EnergyLevel)
	assert.Equal(t, 2, uc.SessionMessageCount)
	require.Len(t, uc.RecentHistory, 2)
	assert.Equal(t, "YNAB or Mint?", uc.RecentHistory[0].Content)

	askSession = ""
	uc, err = askUserContext(ctx, store)
	require.NoError(t, err)
	assert.Zero(t, uc.SessionMessageCount)
	assert.Empty(t, uc.RecentHistory)
}

func TestPrintResult(t *testing.T) {
	result := &domain.OrchestrationResult{
		Success: true,
		Responses: []domain.AgentResponse{{
			Domain:  domain.DomainDailyTask,
			Summary: "Let's start small.",
		}},
		Breakdown: []domain.Step{
			{Title: "Clear the desk", TimeEstimate: "10 min", SubSteps: []string{"Bin the trash"}},
			{Title: "Sort papers", TimeEstimate: "20 min", SubSteps: []string{"Make two piles"}, IsHard: true},
		},
		BreakdownTips: []string{"Set a timer"},
		Resources:     []domain.ResourceLink{{Title: "Body doubling", URL: "https://additudemag.com/body-doubling"}},
		Sources:       []domain.SourceReference{{Title: "ADHD cleaning guide"}},
		Metadata: domain.OrchestrationMetadata{
			DomainsInvolved: []domain.Domain{domain.DomainDailyTask},
			Confidence:      0.85,
		},
	}

	var buf bytes.Buffer
	printResult(&buf, result)
	out := buf.String()

	assert.Contains(t, out, "Let's start small.")
	assert.Contains(t, out, "1. Clear the desk [10 min]")
	assert.Contains(t, out, "2. Sort papers [20 min] (hard)")
	assert.Contains(t, out, "- Bin the trash")
	assert.Contains(t, out, "tip: Set a timer")
	assert.Contains(t, out, "Body doubling <https://additudemag.com/body-doubling>")
	assert.Contains(t, out, "- ADHD cleaning guide\n")
	assert.Contains(t, out, "[Daily Tasks | confidence 0.85")

	buf.Reset()
	printResult(&buf, &domain.OrchestrationResult{})
	assert.Contains(t, buf.String(), "none of the coaches")
}

func TestIsTerminal_Buffer(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
}

// =============================================================================
// Index
// =============================================================================

const financeSeed = `domain: finance
passages:
  - title: Zero-based budgeting
    url: https://www.nerdwallet.com/article/finance/zero-based-budgeting
    content: Give every dollar of your budget a job before the month starts.
  - title: Emergency funds
    content: Keep three months of expenses somewhere boring and easy to reach.
`

func TestIndexAddStatusQuery(t *testing.T) {
	seedDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(seedDir, "finance.yaml"), []byte(financeSeed), 0o644))

	idx, err := knowledge.OpenIndex(knowledge.IndexConfig{Path: filepath.Join(t.TempDir(), "kb.bleve")})
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	var buf bytes.Buffer

	require.NoError(t, indexAdd(ctx, &buf, idx, seedDir))
	assert.Contains(t, buf.String(), "Indexed 2 passages")
	assert.Contains(t, buf.String(), "Finance")

	buf.Reset()
	require.NoError(t, indexStatus(&buf, idx))
	assert.Contains(t, buf.String(), "Documents: 2")

	buf.Reset()
	require.NoError(t, indexQuery(ctx, &buf, idx, "budget", domain.DomainFinance, 5))
	assert.Contains(t, buf.String(), "Zero-based budgeting")

	buf.Reset()
	require.NoError(t, indexQuery(ctx, &buf, idx, "budget", domain.DomainCareer, 5))
	assert.Contains(t, buf.String(), "No matching passages.")
}

func TestIndexAdd_BadSeedDir(t *testing.T) {
	seedDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(seedDir, "bad.yaml"), []byte("domain: astrology\npassages:\n  - content: x\n"), 0o644))

	idx, err := knowledge.OpenIndex(knowledge.IndexConfig{})
	require.NoError(t, err)
	defer idx.Close()

	assert.Error(t, indexAdd(context.Background(), &bytes.Buffer{}, idx, seedDir))
}

// =============================================================================
// History
// =============================================================================

func TestHistoryFilter(t *testing.T) {
	prevDomain, prevLimit := historyDomain, historyLimit
	t.Cleanup(func() { historyDomain, historyLimit = prevDomain, prevLimit })

	historyDomain, historyLimit = "finance", 4
	filter, err := historyFilter()
	require.NoError(t, err)
	assert.Equal(t, "finance", filter.Domain)
	assert.Equal(t, 4, filter.Limit)

	historyDomain = "astrology"
	_, err = historyFilter()
	assert.Error(t, err)
}

func TestPrintTurns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printTurns(&buf, nil))
	assert.Contains(t, buf.String(), "No conversation history.")

	buf.Reset()
	require.NoError(t, printTurns(&buf, []domain.ConversationTurn{
		{Role: domain.RoleUser, Content: "YNAB or Mint?", Domain: "finance"},
		{Role: domain.RoleAssistant, Content: "Mint is simpler.", Domain: "finance"},
	}))
	out := buf.String()
	assert.Contains(t, out, "You [finance]: YNAB or Mint?")
	assert.Contains(t, out, "Navia [finance]: Mint is simpler.")
}
