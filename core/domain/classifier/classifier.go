// Package classifier routes a user query to one or more coaching domains.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/SankrityaT/Navia-sub000/core/providers"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultTimeout          = 15 * time.Second
	DefaultMaxHistory       = 12
	DefaultFollowUpMaxWords = 10

	FallbackConfidence = 0.5
	FallbackComplexity = 5
	MaxComplexity      = 10

	classifierTemperature = 0.1
	classifierMaxTokens   = 400
)

// Classifier maps a query plus conversation context to an IntentDetection.
// Implementations never fail; errors degrade to the fallback domain.
type Classifier interface {
	Detect(ctx context.Context, query string, history []domain.ConversationTurn, sessionMessageCount int) domain.IntentDetection
}

type Config struct {
	Timeout          time.Duration
	MaxHistory       int
	FollowUpMaxWords int
	Logger           *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = DefaultMaxHistory
	}
	if c.FollowUpMaxWords <= 0 {
		c.FollowUpMaxWords = DefaultFollowUpMaxWords
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// LLMClassifier asks a completion provider for a JSON routing decision.
type LLMClassifier struct {
	provider providers.Provider
	config   Config
}

func NewLLMClassifier(provider providers.Provider, config *Config) *LLMClassifier {
	cfg := Config{}
	if config != nil {
		cfg = *config
	}
	cfg.applyDefaults()
	return &LLMClassifier{provider: provider, config: cfg}
}

type llmIntent struct {
	Domains        []string `json:"domains"`
	Confidence     float64  `json:"confidence"`
	NeedsBreakdown bool     `json:"needsBreakdown"`
	Complexity     float64  `json:"complexity"`
	Reasoning      string   `json:"reasoning"`
}

func (l *LLMClassifier) Detect(ctx context.Context, query string, history []domain.ConversationTurn, sessionMessageCount int) domain.IntentDetection {
	ctx, span := otel.Tracer("navia/classifier").Start(ctx, "classifier.Detect")
	defer span.End()

	followUp := IsFollowUp(query, sessionMessageCount, l.config.FollowUpMaxWords)
	window := SelectHistory(history, followUp, l.config.MaxHistory)
	span.SetAttributes(
		attribute.Bool("navia.follow_up", followUp),
		attribute.Int("navia.history_turns", len(window)),
	)

	intent, err := l.classify(ctx, query, window, followUp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.config.Logger.Warn("intent classification failed, using fallback", "error", err)
		return Fallback(err)
	}

	l.config.Logger.Debug("intent classified",
		"domains", intent.Domains,
		"confidence", intent.Confidence,
		"complexity", intent.Complexity,
		"follow_up", followUp,
	)
	return intent
}

func (l *LLMClassifier) classify(ctx context.Context, query string, window []domain.ConversationTurn, followUp bool) (domain.IntentDetection, error) {
	if l.provider == nil {
		return domain.IntentDetection{}, fmt.Errorf("no completion provider configured")
	}

	ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	temperature := classifierTemperature
	resp, err := l.provider.Complete(ctx, &providers.Request{
		SystemPrompt: systemPrompt,
		Messages:     []providers.Message{providers.User(buildPrompt(query, window, followUp))},
		MaxTokens:    classifierMaxTokens,
		Temperature:  &temperature,
		JSONMode:     true,
	})
	if err != nil {
		return domain.IntentDetection{}, err
	}

	var parsed llmIntent
	if err := providers.DecodeJSON(resp.Content, &parsed); err != nil {
		return domain.IntentDetection{}, err
	}
	return normalize(parsed), nil
}

func normalize(parsed llmIntent) domain.IntentDetection {
	intent := domain.IntentDetection{
		Domains:        domain.ParseDomains(parsed.Domains),
		Confidence:     clamp(parsed.Confidence, 0, 1),
		Complexity:     int(math.Round(clamp(parsed.Complexity, 0, MaxComplexity))),
		NeedsBreakdown: parsed.NeedsBreakdown,
		Reasoning:      strings.TrimSpace(parsed.Reasoning),
	}
	if len(intent.Domains) == 0 {
		intent.Domains = []domain.Domain{domain.FallbackDomain}
		intent.Confidence = FallbackConfidence
	}
	return intent
}

const fallbackSuffix = "routed to the general domain"

// Fallback is the routing decision used when classification fails.
func Fallback(err error) domain.IntentDetection {
	reasoning := "classification unavailable, " + fallbackSuffix
	if err != nil {
		reasoning = fmt.Sprintf("classification failed (%v), %s", err, fallbackSuffix)
	}
	return domain.IntentDetection{
		Domains:        []domain.Domain{domain.FallbackDomain},
		Confidence:     FallbackConfidence,
		Complexity:     FallbackComplexity,
		NeedsBreakdown: false,
		Reasoning:      reasoning,
	}
}

// IsFallback reports whether intent came from Fallback rather than a model.
func IsFallback(intent domain.IntentDetection) bool {
	return strings.HasSuffix(intent.Reasoning, fallbackSuffix)
}

// IsFollowUp reports whether query is likely a continuation of the active
// session: the session has messages and the query is short.
func IsFollowUp(query string, sessionMessageCount, maxWords int) bool {
	if maxWords <= 0 {
		maxWords = DefaultFollowUpMaxWords
	}
	return sessionMessageCount > 0 && len(strings.Fields(query)) <= maxWords
}

// SelectHistory picks the turns shown to the classifier. Follow-ups only
// see the current session; otherwise the newest limit turns are kept.
func SelectHistory(history []domain.ConversationTurn, followUp bool, limit int) []domain.ConversationTurn {
	var selected []domain.ConversationTurn
	for _, turn := range history {
		if followUp && turn.IsSemanticMatch {
			continue
		}
		selected = append(selected, turn)
	}
	if limit > 0 && len(selected) > limit {
		selected = selected[len(selected)-limit:]
	}
	return selected
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
