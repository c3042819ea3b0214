// Package orchestrator routes a query to the domain agents the classifier
// picks, runs them concurrently and merges their answers.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SankrityaT/Navia-sub000/core/conversation"
	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/SankrityaT/Navia-sub000/core/domain/classifier"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultAgentTimeout        = 45 * time.Second
	DefaultMaxConcurrentAgents = 3
	DefaultHistoryWindow       = 10
	DefaultMaxResources        = 10
	DefaultMaxSources          = 8
)

var (
	ErrAllAgentsFailed = errors.New("orchestrator: every domain agent failed")
	ErrNoAgent         = errors.New("orchestrator: no agent registered for domain")
)

// Agent answers queries for a single domain. A non-nil error drops the
// domain from the merged result.
type Agent interface {
	Domain() domain.Domain
	Run(ctx context.Context, req domain.AgentRequest) (domain.AgentResponse, error)
}

type Config struct {
	AgentTimeout        time.Duration
	MaxConcurrentAgents int
	HistoryWindow       int
	MaxResources        int
	MaxSources          int
	Logger              *slog.Logger
	Metrics             *Metrics
}

func (c *Config) applyDefaults() {
	if c.AgentTimeout <= 0 {
		c.AgentTimeout = DefaultAgentTimeout
	}
	if c.MaxConcurrentAgents <= 0 {
		c.MaxConcurrentAgents = DefaultMaxConcurrentAgents
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = DefaultHistoryWindow
	}
	if c.MaxResources <= 0 {
		c.MaxResources = DefaultMaxResources
	}
	if c.MaxSources <= 0 {
		c.MaxSources = DefaultMaxSources
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type Orchestrator struct {
	classifier classifier.Classifier
	store      conversation.Store
	agents     map[domain.Domain]Agent
	config     Config
}

// New wires an orchestrator. store may be nil, in which case agents get no
// history window.
func New(cls classifier.Classifier, store conversation.Store, config *Config, agents ...Agent) *Orchestrator {
	cfg := Config{}
	if config != nil {
		cfg = *config
	}
	cfg.applyDefaults()

	o := &Orchestrator{
		classifier: cls,
		store:      store,
		agents:     make(map[domain.Domain]Agent, len(agents)),
		config:     cfg,
	}
	for _, a := range agents {
		o.agents[a.Domain()] = a
	}
	return o
}

// Domains lists the registered agent domains in canonical order.
func (o *Orchestrator) Domains() []domain.Domain {
	var out []domain.Domain
	for _, d := range domain.ValidDomains() {
		if _, ok := o.agents[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

type agentOutcome struct {
	resp *domain.AgentResponse
	err  error
}

// Orchestrate never fails: agent failures drop their domain and total
// failure is reported through Success and Metadata.Error.
func (o *Orchestrator) Orchestrate(ctx context.Context, userID, query string, uc *domain.UserContext) domain.OrchestrationResult {
	start := time.Now()
	requestID := uuid.NewString()
	logger := o.config.Logger.With("request_id", requestID, "user_id", userID)

	ctx, span := otel.Tracer("navia/orchestrator").Start(ctx, "orchestrator.Orchestrate")
	defer span.End()
	span.SetAttributes(attribute.String("navia.request_id", requestID))

	intent := o.detect(ctx, query, uc)
	o.config.Metrics.observeRouting(intent.Domains)
	span.SetAttributes(attribute.StringSlice("navia.domains", domainNames(intent.Domains)))
	logger.Info("query routed",
		"domains", domainNames(intent.Domains),
		"confidence", intent.Confidence,
		"complexity", intent.Complexity,
	)

	req := domain.AgentRequest{
		UserID:      userID,
		Query:       query,
		UserContext: uc,
		History:     o.historyWindow(ctx, userID, logger),
	}

	outcomes := o.fanOut(ctx, intent.Domains, req, logger)

	result := o.merge(intent, outcomes)
	result.Metadata.RequestID = requestID
	result.Metadata.ExecutionTimeMs = time.Since(start).Milliseconds()

	if !result.Success {
		span.SetStatus(codes.Error, result.Metadata.Error)
		logger.Error("orchestration failed", "elapsed", time.Since(start), "error", result.Metadata.Error)
	} else {
		logger.Info("orchestration complete",
			"elapsed", time.Since(start),
			"responses", len(result.Responses),
			"breakdown", result.Metadata.UsedBreakdown,
		)
	}
	o.config.Metrics.observeResult(&result, len(intent.Domains), time.Since(start))
	return result
}

func (o *Orchestrator) detect(ctx context.Context, query string, uc *domain.UserContext) domain.IntentDetection {
	var (
		history []domain.ConversationTurn
		count   int
	)
	if uc != nil {
		history = uc.RecentHistory
		count = uc.SessionMessageCount
	}

	var intent domain.IntentDetection
	if o.classifier == nil {
		intent = classifier.Fallback(errors.New("no classifier configured"))
	} else {
		intent = o.classifier.Detect(ctx, query, history, count)
	}
	intent.Domains = domain.UniqueDomains(intent.Domains)
	if len(intent.Domains) == 0 {
		intent.Domains = []domain.Domain{domain.FallbackDomain}
	}
	return intent
}

// historyWindow fetches the newest turns for per-agent context. Failures
// only cost context.
func (o *Orchestrator) historyWindow(ctx context.Context, userID string, logger *slog.Logger) []domain.ConversationTurn {
	if o.store == nil || userID == "" {
		return nil
	}
	turns, err := o.store.FetchRecent(ctx, userID, conversation.Filter{Limit: o.config.HistoryWindow})
	if err != nil {
		logger.Warn("history window unavailable", "error", err)
		return nil
	}
	return turns
}

// fanOut runs one agent per domain and waits for all of them. Outcomes
// are indexed like domains so merge order follows routing order.
func (o *Orchestrator) fanOut(ctx context.Context, domains []domain.Domain, req domain.AgentRequest, logger *slog.Logger) []agentOutcome {
	outcomes := make([]agentOutcome, len(domains))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.MaxConcurrentAgents)

	for i, d := range domains {
		agent, ok := o.agents[d]
		if !ok {
			outcomes[i] = agentOutcome{err: fmt.Errorf("%w: %s", ErrNoAgent, d)}
			logger.Warn("no agent for routed domain", "domain", d.String())
			continue
		}
		agentReq := req.Clone()
		g.Go(func() error {
			outcomes[i] = o.runAgent(gctx, agent, agentReq, logger)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (o *Orchestrator) runAgent(ctx context.Context, agent Agent, req domain.AgentRequest, logger *slog.Logger) (out agentOutcome) {
	d := agent.Domain()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, o.config.AgentTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			out = agentOutcome{err: fmt.Errorf("agent %s panicked: %v", d, r)}
		}
		o.config.Metrics.observeAgent(d, time.Since(start), out.err)
		if out.err != nil {
			logger.Warn("agent dropped", "domain", d.String(), "elapsed", time.Since(start), "error", out.err)
		}
	}()

	resp, err := agent.Run(ctx, req)
	if err != nil {
		return agentOutcome{err: err}
	}
	resp.Domain = d
	return agentOutcome{resp: &resp}
}

func (o *Orchestrator) merge(intent domain.IntentDetection, outcomes []agentOutcome) domain.OrchestrationResult {
	result := domain.OrchestrationResult{
		Responses: []domain.AgentResponse{},
		Resources: []domain.ResourceLink{},
		Sources:   []domain.SourceReference{},
		Metadata: domain.OrchestrationMetadata{
			DomainsInvolved: []domain.Domain{},
			Confidence:      intent.Confidence,
			Complexity:      intent.Complexity,
		},
	}

	var errs []string
	for _, out := range outcomes {
		if out.err != nil {
			errs = append(errs, out.err.Error())
			continue
		}
		result.Responses = append(result.Responses, *out.resp)
		result.Metadata.DomainsInvolved = append(result.Metadata.DomainsInvolved, out.resp.Domain)
	}

	if len(result.Responses) == 0 {
		result.Metadata.Error = fmt.Sprintf("%v: %s", ErrAllAgentsFailed, strings.Join(errs, "; "))
		return result
	}
	result.Success = true
	result.Metadata.MultiAgent = len(result.Responses) > 1

	if result.Metadata.MultiAgent {
		result.CombinedSummary = CombineSummaries(result.Responses)
	}

	if primary := PrimaryBreakdown(result.Responses); primary != nil {
		result.Breakdown = primary.Breakdown
		result.BreakdownTips = primary.BreakdownTips
		result.Metadata.UsedBreakdown = true
	}

	var resources []domain.ResourceLink
	var sources []domain.SourceReference
	for _, r := range result.Responses {
		resources = append(resources, r.Resources...)
		sources = append(sources, r.Sources...)
	}
	result.Resources = domain.CapResources(domain.DedupeResources(resources), o.config.MaxResources)
	result.Sources = domain.CapSources(domain.DedupeSources(sources), o.config.MaxSources)

	result.Metadata.NeedsBreakdown = NeedsBreakdown(result.Responses)
	return result
}

// PrimaryBreakdown returns the first response carrying a breakdown.
// Breakdowns from different domains are never merged.
func PrimaryBreakdown(responses []domain.AgentResponse) *domain.AgentResponse {
	for i := range responses {
		if responses[i].HasBreakdown() {
			return &responses[i]
		}
	}
	return nil
}

// NeedsBreakdown is true when some domain wants a breakdown that no
// domain has produced yet.
func NeedsBreakdown(responses []domain.AgentResponse) bool {
	for _, r := range responses {
		if r.Metadata.NeedsBreakdown && !r.HasBreakdown() {
			return true
		}
	}
	return false
}

func domainNames(domains []domain.Domain) []string {
	names := make([]string, len(domains))
	for i, d := range domains {
		names[i] = d.String()
	}
	return names
}
