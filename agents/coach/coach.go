// Package coach implements the pipeline shared by every domain agent:
// gather context, optionally pre-generate a breakdown, ask the model for a
// JSON answer and resolve it into an AgentResponse.
package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SankrityaT/Navia-sub000/core/breakdown"
	"github.com/SankrityaT/Navia-sub000/core/conversation"
	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/SankrityaT/Navia-sub000/core/knowledge"
	"github.com/SankrityaT/Navia-sub000/core/providers"
	"github.com/SankrityaT/Navia-sub000/core/websearch"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultCompletionTimeout = 40 * time.Second
	DefaultFetchTimeout      = 10 * time.Second
	DefaultKnowledgeLimit    = 5
	DefaultHistoryLimit      = 10
	DefaultConfidence        = 0.85
	FallbackConfidence       = 0.3

	completionTemperature = 0.7
	completionMaxTokens   = 2000
)

var (
	ErrNoProvider   = errors.New("coach: no completion provider configured")
	ErrEmptySummary = errors.New("coach: completion has no summary")
)

// BreakdownGenerator produces a step plan. *breakdown.Generator satisfies it.
type BreakdownGenerator interface {
	Generate(ctx context.Context, req breakdown.Request) breakdown.Result
}

// RequestDetector gates eager breakdown generation.
type RequestDetector interface {
	ExplicitlyRequests(ctx context.Context, query string, history []domain.ConversationTurn) bool
}

// ComplexityAnalyzer feeds the complexity metadata.
type ComplexityAnalyzer interface {
	Analyze(ctx context.Context, query string) breakdown.Analysis
}

// Deps are the collaborators an agent calls. Only Provider is required;
// every other nil collaborator is skipped.
type Deps struct {
	Provider  providers.Provider
	Knowledge knowledge.Retriever
	Search    websearch.Searcher
	Store     conversation.Store
	Generator BreakdownGenerator
	Detector  RequestDetector
	Analyzer  ComplexityAnalyzer
}

type Config struct {
	CompletionTimeout time.Duration
	FetchTimeout      time.Duration
	KnowledgeLimit    int
	HistoryLimit      int
	Logger            *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.CompletionTimeout <= 0 {
		c.CompletionTimeout = DefaultCompletionTimeout
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.KnowledgeLimit <= 0 {
		c.KnowledgeLimit = DefaultKnowledgeLimit
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Agent answers queries for one domain.
type Agent struct {
	profile Profile
	deps    Deps
	config  Config
	logger  *slog.Logger
}

func New(profile Profile, deps Deps, config *Config) *Agent {
	cfg := Config{}
	if config != nil {
		cfg = *config
	}
	cfg.applyDefaults()
	return &Agent{
		profile: profile,
		deps:    deps,
		config:  cfg,
		logger:  cfg.Logger.With("domain", profile.Domain.String()),
	}
}

func (a *Agent) Domain() domain.Domain {
	return a.profile.Domain
}

// Process always returns a response; failures become an apologetic
// fallback carrying the error in its metadata.
func (a *Agent) Process(ctx context.Context, req domain.AgentRequest) domain.AgentResponse {
	resp, err := a.Run(ctx, req)
	if err != nil {
		return a.Fallback(err)
	}
	return resp
}

// Run is Process for callers that need to tell failure apart from an
// answer. On error the returned response is the fallback.
func (a *Agent) Run(ctx context.Context, req domain.AgentRequest) (domain.AgentResponse, error) {
	ctx, span := otel.Tracer("navia/agents").Start(ctx, "agent.Run")
	defer span.End()
	span.SetAttributes(attribute.String("navia.domain", a.profile.Domain.String()))

	start := time.Now()
	resp, err := a.run(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.Warn("agent failed", "user_id", req.UserID, "elapsed", time.Since(start), "error", err)
		return a.Fallback(err), err
	}
	resp.Metadata.ElapsedMs = time.Since(start).Milliseconds()
	a.logger.Debug("agent answered",
		"user_id", req.UserID,
		"elapsed", time.Since(start),
		"breakdown", resp.HasBreakdown(),
		"resources", len(resp.Resources),
	)
	return resp, nil
}

func (a *Agent) run(ctx context.Context, req domain.AgentRequest) (domain.AgentResponse, error) {
	if a.deps.Provider == nil {
		return domain.AgentResponse{}, ErrNoProvider
	}

	gathered := a.gather(ctx, req)
	referents := referentHistory(req)

	var plan *breakdown.Result
	if a.deps.Detector != nil && a.deps.Generator != nil &&
		a.deps.Detector.ExplicitlyRequests(ctx, req.Query, referents) {
		result := a.deps.Generator.Generate(ctx, breakdown.Request{
			Task:      req.Query,
			Context:   a.profile.BreakdownContext,
			EFProfile: efChallenges(req.UserContext),
			History:   referents,
		})
		plan = &result
	}

	analysis := breakdown.Analysis{Complexity: breakdown.DefaultAnalysisComplexity}
	if a.deps.Analyzer != nil {
		analysis = a.deps.Analyzer.Analyze(ctx, req.Query)
	}

	completionCtx, cancel := context.WithTimeout(ctx, a.config.CompletionTimeout)
	defer cancel()

	temperature := completionTemperature
	completion, err := a.deps.Provider.Complete(completionCtx, &providers.Request{
		SystemPrompt: a.profile.SystemPrompt,
		Messages:     []providers.Message{providers.User(a.buildPrompt(req, gathered, plan))},
		MaxTokens:    completionMaxTokens,
		Temperature:  &temperature,
		JSONMode:     true,
	})
	if err != nil {
		return domain.AgentResponse{}, fmt.Errorf("completion: %w", err)
	}

	var out modelOutput
	if err := providers.DecodeJSON(completion.Content, &out); err != nil {
		return domain.AgentResponse{}, err
	}
	if strings.TrimSpace(out.Summary) == "" {
		return domain.AgentResponse{}, ErrEmptySummary
	}

	return a.resolve(out, gathered, plan, analysis), nil
}

type gathered struct {
	passages  []knowledge.Passage
	resources []domain.ResourceLink
	history   conversation.History
}

// gather runs knowledge retrieval, web fetchers and history loading
// concurrently. Each failure is logged and leaves its slot empty.
func (a *Agent) gather(ctx context.Context, req domain.AgentRequest) gathered {
	var out gathered

	fetchCtx, cancel := context.WithTimeout(ctx, a.config.FetchTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(fetchCtx)

	if a.deps.Knowledge != nil {
		g.Go(func() error {
			passages, err := a.deps.Knowledge.Retrieve(gctx, req.Query, a.profile.Domain, a.config.KnowledgeLimit)
			if err != nil {
				a.logger.Warn("knowledge retrieval failed", "error", err)
				return nil
			}
			out.passages = passages
			return nil
		})
	}

	fetchers := a.profile.triggered(req.Query)
	fetched := make([][]domain.ResourceLink, len(fetchers))
	if a.deps.Search != nil {
		for i, f := range fetchers {
			g.Go(func() error {
				links, err := f.Fetch(gctx, a.deps.Search, req.Query)
				if err != nil {
					a.logger.Warn("resource fetch failed", "fetcher", f.Name, "error", err)
					return nil
				}
				fetched[i] = links
				return nil
			})
		}
	}

	g.Go(func() error {
		out.history = a.loadHistory(gctx, req)
		return nil
	})

	_ = g.Wait()

	for _, links := range fetched {
		out.resources = append(out.resources, links...)
	}
	return out
}

func (a *Agent) loadHistory(ctx context.Context, req domain.AgentRequest) conversation.History {
	var sessionID string
	if req.UserContext != nil {
		sessionID = req.UserContext.SessionID
	}
	h := conversation.Load(ctx, a.deps.Store, conversation.LoadRequest{
		UserID:    req.UserID,
		SessionID: sessionID,
		Query:     req.Query,
		Domain:    a.profile.Domain.String(),
		Limit:     a.config.HistoryLimit,
	}, a.logger)

	if len(h.Session) == 0 && req.UserContext != nil {
		h.Session = append(h.Session, req.UserContext.RecentHistory...)
	}
	if len(h.Chronological) == 0 {
		h.Chronological = append(h.Chronological, req.History...)
	}
	return h
}

// referentHistory is what the detector and generator use to resolve
// "that" or "this": the client's session turns, else the fetched window.
func referentHistory(req domain.AgentRequest) []domain.ConversationTurn {
	if req.UserContext != nil && len(req.UserContext.RecentHistory) > 0 {
		return req.UserContext.RecentHistory
	}
	return req.History
}

func efChallenges(uc *domain.UserContext) []string {
	if uc == nil {
		return nil
	}
	return uc.EFChallenges
}

type modelResource struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

type modelSource struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Excerpt string `json:"excerpt"`
}

type modelOutput struct {
	Summary          string          `json:"summary"`
	NeedsBreakdown   bool            `json:"needsBreakdown"`
	ShowResources    *bool           `json:"showResources"`
	Confidence       *float64        `json:"confidence"`
	Resources        []modelResource `json:"resources"`
	Sources          []modelSource   `json:"sources"`
	SuggestedActions []string        `json:"suggestedActions"`
}

// resolve applies the answer rules: a pre-generated plan satisfies the
// breakdown need, resources default to shown, retrieved material comes
// before anything the model proposed.
func (a *Agent) resolve(out modelOutput, g gathered, plan *breakdown.Result, analysis breakdown.Analysis) domain.AgentResponse {
	showResources := true
	if out.ShowResources != nil {
		showResources = *out.ShowResources
	}

	confidence := DefaultConfidence
	if out.Confidence != nil && *out.Confidence > 0 && *out.Confidence <= 1 {
		confidence = *out.Confidence
	}

	resp := domain.AgentResponse{
		Domain:    a.profile.Domain,
		Summary:   strings.TrimSpace(out.Summary),
		Resources: append([]domain.ResourceLink{}, g.resources...),
		Sources:   make([]domain.SourceReference, 0, len(g.passages)+len(out.Sources)),
		Metadata: domain.AgentMetadata{
			Confidence:       confidence,
			Complexity:       analysis.Complexity,
			NeedsBreakdown:   plan == nil && out.NeedsBreakdown,
			ShowResources:    showResources,
			SuggestedActions: trimAll(out.SuggestedActions),
			ExplicitRequest:  plan != nil,
		},
	}

	for _, r := range out.Resources {
		if strings.TrimSpace(r.Title) == "" && strings.TrimSpace(r.URL) == "" {
			continue
		}
		resp.Resources = append(resp.Resources, domain.ResourceLink{
			Title:       strings.TrimSpace(r.Title),
			URL:         strings.TrimSpace(r.URL),
			Description: strings.TrimSpace(r.Description),
			Type:        domain.ParseResourceType(r.Type),
		})
	}

	for _, p := range g.passages {
		resp.Sources = append(resp.Sources, p.Source())
	}
	for _, s := range out.Sources {
		if strings.TrimSpace(s.Title) == "" {
			continue
		}
		resp.Sources = append(resp.Sources, domain.SourceReference{
			Title:   strings.TrimSpace(s.Title),
			URL:     strings.TrimSpace(s.URL),
			Excerpt: strings.TrimSpace(s.Excerpt),
		})
	}

	if plan != nil {
		resp.Breakdown = plan.Breakdown
		resp.BreakdownTips = plan.Tips
	}
	return resp
}

// Fallback is the apologetic response used when the pipeline fails.
func (a *Agent) Fallback(err error) domain.AgentResponse {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return domain.AgentResponse{
		Domain:    a.profile.Domain,
		Summary:   fmt.Sprintf("I'm sorry, I ran into a problem answering your %s question. Could you try again in a moment?", strings.ToLower(a.profile.Domain.Label())),
		Resources: []domain.ResourceLink{},
		Sources:   []domain.SourceReference{},
		Metadata: domain.AgentMetadata{
			Confidence:    FallbackConfidence,
			ShowResources: false,
			Error:         msg,
		},
	}
}

func trimAll(items []string) []string {
	var out []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
