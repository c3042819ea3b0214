package breakdown

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/SankrityaT/Navia-sub000/core/providers"
)

const (
	DefaultDetectorTimeout    = 10 * time.Second
	DefaultDetectorMaxHistory = 10
	DefaultAnalyzerTimeout    = 10 * time.Second
	DefaultAnalysisComplexity = 5

	detectorMaxTokens = 50
	analyzerMaxTokens = 200
)

type DetectorConfig struct {
	Timeout    time.Duration
	MaxHistory int
	Logger     *slog.Logger
}

func (c *DetectorConfig) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultDetectorTimeout
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = DefaultDetectorMaxHistory
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Detector gates eager breakdown generation on an explicit user request.
type Detector struct {
	provider providers.Provider
	config   DetectorConfig
}

func NewDetector(provider providers.Provider, config *DetectorConfig) *Detector {
	cfg := DetectorConfig{}
	if config != nil {
		cfg = *config
	}
	cfg.applyDefaults()
	return &Detector{provider: provider, config: cfg}
}

// ExplicitlyRequests reports whether query asks for steps or a plan.
// History only resolves referents. Any failure reports false.
func (d *Detector) ExplicitlyRequests(ctx context.Context, query string, history []domain.ConversationTurn) bool {
	if d.provider == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	temperature := 0.0
	resp, err := d.provider.Complete(ctx, &providers.Request{
		SystemPrompt: detectorSystemPrompt,
		Messages:     []providers.Message{providers.User(buildDetectorPrompt(query, lastTurns(history, d.config.MaxHistory)))},
		MaxTokens:    detectorMaxTokens,
		Temperature:  &temperature,
		JSONMode:     true,
	})
	if err != nil {
		d.config.Logger.Warn("explicit breakdown detection failed", "error", err)
		return false
	}

	var parsed struct {
		ExplicitRequest bool `json:"explicitRequest"`
	}
	if err := providers.DecodeJSON(resp.Content, &parsed); err != nil {
		d.config.Logger.Warn("explicit breakdown detection returned malformed output", "error", err)
		return false
	}
	return parsed.ExplicitRequest
}

// Analysis is a cheap complexity estimate kept for logging and metadata.
type Analysis struct {
	Complexity     int    `json:"complexity"`
	NeedsBreakdown bool   `json:"needsBreakdown"`
	Reasoning      string `json:"reasoning"`
}

type Analyzer struct {
	provider providers.Provider
	timeout  time.Duration
	logger   *slog.Logger
}

func NewAnalyzer(provider providers.Provider, timeout time.Duration, logger *slog.Logger) *Analyzer {
	if timeout <= 0 {
		timeout = DefaultAnalyzerTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{provider: provider, timeout: timeout, logger: logger}
}

func (a *Analyzer) Analyze(ctx context.Context, query string) Analysis {
	analysis, err := a.analyze(ctx, query)
	if err != nil {
		a.logger.Debug("complexity analysis failed", "error", err)
		return Analysis{Complexity: DefaultAnalysisComplexity}
	}
	return analysis
}

func (a *Analyzer) analyze(ctx context.Context, query string) (Analysis, error) {
	if a.provider == nil {
		return Analysis{}, fmt.Errorf("no completion provider configured")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	temperature := 0.2
	resp, err := a.provider.Complete(ctx, &providers.Request{
		SystemPrompt: analyzerSystemPrompt,
		Messages:     []providers.Message{providers.User("REQUEST: " + query)},
		MaxTokens:    analyzerMaxTokens,
		Temperature:  &temperature,
		JSONMode:     true,
	})
	if err != nil {
		return Analysis{}, err
	}

	var parsed struct {
		Complexity     float64 `json:"complexity"`
		NeedsBreakdown bool    `json:"needsBreakdown"`
		Reasoning      string  `json:"reasoning"`
	}
	if err := providers.DecodeJSON(resp.Content, &parsed); err != nil {
		return Analysis{}, err
	}
	complexity := int(parsed.Complexity + 0.5)
	if complexity < 0 {
		complexity = 0
	}
	if complexity > 10 {
		complexity = 10
	}
	return Analysis{Complexity: complexity, NeedsBreakdown: parsed.NeedsBreakdown, Reasoning: parsed.Reasoning}, nil
}
