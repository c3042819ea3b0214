package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SankrityaT/Navia-sub000/core/conversation"
	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/SankrityaT/Navia-sub000/core/domain/classifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAgent struct {
	domain domain.Domain
	resp   domain.AgentResponse
	err    error
	panics bool
	block  bool

	mu   sync.Mutex
	reqs []domain.AgentRequest
}

func (s *stubAgent) Domain() domain.Domain { return s.domain }

func (s *stubAgent) Run(ctx context.Context, req domain.AgentRequest) (domain.AgentResponse, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()

	if s.panics {
		panic("boom")
	}
	if s.block {
		<-ctx.Done()
		return domain.AgentResponse{}, ctx.Err()
	}
	return s.resp, s.err
}

func (s *stubAgent) requests() []domain.AgentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AgentRequest(nil), s.reqs...)
}

func answer(d domain.Domain, summary string) *stubAgent {
	return &stubAgent{domain: d, resp: domain.AgentResponse{Domain: d, Summary: summary}}
}

func step(title string) domain.Step {
	return domain.Step{Title: title, TimeEstimate: "10 min", SubSteps: []string{"do " + title}}
}

func TestOrchestrate_SingleAgent(t *testing.T) {
	finance := answer(domain.DomainFinance, "Track every expense for a week.")
	o := New(classifier.Always(domain.DomainFinance), nil, nil, finance)

	result := o.Orchestrate(context.Background(), "u1", "help with budget", nil)

	require.True(t, result.Success)
	require.Len(t, result.Responses, 1)
	assert.Empty(t, result.CombinedSummary)
	assert.Equal(t, "Track every expense for a week.", result.Summary())
	assert.Equal(t, []domain.Domain{domain.DomainFinance}, result.Metadata.DomainsInvolved)
	assert.False(t, result.Metadata.MultiAgent)
	assert.Equal(t, 0.9, result.Metadata.Confidence)
	assert.Equal(t, 3, result.Metadata.Complexity)
	assert.NotEmpty(t, result.Metadata.RequestID)
	assert.GreaterOrEqual(t, result.Metadata.ExecutionTimeMs, int64(0))
}

func TestOrchestrate_RepeatedDomainRunsOnce(t *testing.T) {
	finance := answer(domain.DomainFinance, "Track every expense for a week.")
	career := answer(domain.DomainCareer, "Update your resume.")
	cls := classifier.Always(domain.DomainFinance, domain.DomainFinance, domain.DomainCareer, domain.DomainFinance)
	o := New(cls, nil, nil, finance, career)

	result := o.Orchestrate(context.Background(), "u1", "budget and job", nil)

	require.True(t, result.Success)
	assert.Len(t, finance.requests(), 1)
	assert.Equal(t, []domain.Domain{domain.DomainFinance, domain.DomainCareer}, result.Metadata.DomainsInvolved)
	require.Len(t, result.Responses, 2)
	assert.Equal(t, 1, strings.Count(result.CombinedSummary, "Finance"))
}

func TestOrchestrate_PrimaryBreakdownIsFirstNonEmpty(t *testing.T) {
	finance := answer(domain.DomainFinance, "finance")
	career := answer(domain.DomainCareer, "career")
	career.resp.Breakdown = []domain.Step{step("Update resume"), step("Apply to 3 jobs")}
	career.resp.BreakdownTips = []string{"One application a day"}
	daily := answer(domain.DomainDailyTask, "daily")

	o := New(classifier.Always(domain.DomainFinance, domain.DomainCareer, domain.DomainDailyTask), nil, nil, finance, career, daily)
	result := o.Orchestrate(context.Background(), "u1", "everything", nil)

	require.True(t, result.Success)
	assert.Equal(t, career.resp.Breakdown, result.Breakdown)
	assert.Equal(t, []string{"One application a day"}, result.BreakdownTips)
	assert.True(t, result.Metadata.UsedBreakdown)
	assert.Equal(t, []domain.Domain{domain.DomainFinance, domain.DomainCareer, domain.DomainDailyTask}, result.Metadata.DomainsInvolved)
}

func TestOrchestrate_PrimaryBreakdownNeverMerges(t *testing.T) {
	finance := answer(domain.DomainFinance, "finance")
	finance.resp.Breakdown = []domain.Step{step("List debts")}
	career := answer(domain.DomainCareer, "career")
	career.resp.Breakdown = []domain.Step{step("Update resume")}

	o := New(classifier.Always(domain.DomainFinance, domain.DomainCareer), nil, nil, finance, career)
	result := o.Orchestrate(context.Background(), "u1", "q", nil)

	require.Len(t, result.Breakdown, 1)
	assert.Equal(t, "List debts", result.Breakdown[0].Title)
}

func TestOrchestrate_DedupesAndCaps(t *testing.T) {
	finance := answer(domain.DomainFinance, "finance")
	career := answer(domain.DomainCareer, "career")

	finance.resp.Resources = []domain.ResourceLink{
		{Title: "Shared (finance)", URL: "https://shared.example/guide", Description: "first"},
	}
	career.resp.Resources = []domain.ResourceLink{
		{Title: "Shared (career)", URL: "https://shared.example/guide", Description: "second"},
	}
	for i := 0; i < 12; i++ {
		career.resp.Resources = append(career.resp.Resources, domain.ResourceLink{Title: "r", URL: fmt.Sprintf("https://r.example/%d", i)})
	}
	for i := 0; i < 9; i++ {
		finance.resp.Sources = append(finance.resp.Sources, domain.SourceReference{Title: "s", URL: fmt.Sprintf("https://s.example/%d", i)})
	}
	career.resp.Sources = []domain.SourceReference{{Title: "dup", URL: "https://s.example/0"}}

	o := New(classifier.Always(domain.DomainFinance, domain.DomainCareer), nil, nil, finance, career)
	result := o.Orchestrate(context.Background(), "u1", "q", nil)

	require.Len(t, result.Resources, DefaultMaxResources)
	assert.Equal(t, "Shared (finance)", result.Resources[0].Title)
	assert.Equal(t, "first", result.Resources[0].Description)
	shared := 0
	for _, r := range result.Resources {
		if r.URL == "https://shared.example/guide" {
			shared++
		}
	}
	assert.Equal(t, 1, shared)

	require.Len(t, result.Sources, DefaultMaxSources)
	assert.Equal(t, "s", result.Sources[0].Title)
}

func TestNeedsBreakdown(t *testing.T) {
	withPlan := domain.AgentResponse{Breakdown: []domain.Step{step("x")}, Metadata: domain.AgentMetadata{NeedsBreakdown: true}}
	wants := domain.AgentResponse{Metadata: domain.AgentMetadata{NeedsBreakdown: true}}
	content := domain.AgentResponse{}

	tests := []struct {
		name      string
		responses []domain.AgentResponse
		want      bool
	}{
		{"none", nil, false},
		{"nobody wants one", []domain.AgentResponse{content, content}, false},
		{"wanted and missing", []domain.AgentResponse{content, wants}, true},
		{"wanted but already produced", []domain.AgentResponse{withPlan}, false},
		{"one produced another wants", []domain.AgentResponse{withPlan, wants}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsBreakdown(tt.responses))
		})
	}
}

func TestOrchestrate_NeedsBreakdownAggregate(t *testing.T) {
	finance := answer(domain.DomainFinance, "finance")
	finance.resp.Metadata.NeedsBreakdown = true
	career := answer(domain.DomainCareer, "career")

	o := New(classifier.Always(domain.DomainFinance, domain.DomainCareer), nil, nil, finance, career)
	result := o.Orchestrate(context.Background(), "u1", "q", nil)

	assert.True(t, result.Metadata.NeedsBreakdown)
	assert.False(t, result.Metadata.UsedBreakdown)
}

func TestOrchestrate_DropsFailedAgents(t *testing.T) {
	tests := []struct {
		name   string
		broken *stubAgent
	}{
		{"error", &stubAgent{domain: domain.DomainCareer, err: errors.New("model returned garbage")}},
		{"panic", &stubAgent{domain: domain.DomainCareer, panics: true}},
		{"timeout", &stubAgent{domain: domain.DomainCareer, block: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finance := answer(domain.DomainFinance, "finance answer")
			o := New(classifier.Always(domain.DomainFinance, domain.DomainCareer), nil,
				&Config{AgentTimeout: 20 * time.Millisecond}, finance, tt.broken)

			result := o.Orchestrate(context.Background(), "u1", "q", nil)

			require.True(t, result.Success)
			require.Len(t, result.Responses, 1)
			assert.Equal(t, domain.DomainFinance, result.Responses[0].Domain)
			assert.Equal(t, []domain.Domain{domain.DomainFinance}, result.Metadata.DomainsInvolved)
			assert.Empty(t, result.CombinedSummary)
			assert.Empty(t, result.Metadata.Error)
		})
	}
}

func TestOrchestrate_TotalFailure(t *testing.T) {
	finance := &stubAgent{domain: domain.DomainFinance, err: errors.New("down")}
	o := New(classifier.Always(domain.DomainFinance, domain.DomainCareer), nil, nil, finance)

	result := o.Orchestrate(context.Background(), "u1", "q", nil)

	assert.False(t, result.Success)
	assert.NotNil(t, result.Responses)
	assert.Empty(t, result.Responses)
	assert.Contains(t, result.Metadata.Error, "every domain agent failed")
	assert.Contains(t, result.Metadata.Error, "down")
	assert.Contains(t, result.Metadata.Error, "career", "an unregistered domain counts as failed")
	assert.Empty(t, result.Breakdown)
}

func TestOrchestrate_Totality(t *testing.T) {
	daily := answer(domain.DomainDailyTask, "ok")
	tests := []struct {
		name  string
		cls   classifier.Classifier
		query string
		uc    *domain.UserContext
	}{
		{"nil classifier", nil, "hello", nil},
		{"empty query", classifier.Always(domain.DomainDailyTask), "", nil},
		{"assistant only history", classifier.Always(domain.DomainDailyTask), "hi", &domain.UserContext{
			SessionMessageCount: 1,
			RecentHistory:       []domain.ConversationTurn{{Role: domain.RoleAssistant, Content: "Welcome back"}},
		}},
		{"classifier picks nothing", classifier.NewScripted(), "x", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(tt.cls, nil, nil, daily)
			result := o.Orchestrate(context.Background(), "", tt.query, tt.uc)
			require.True(t, result.Success)
			assert.NotEmpty(t, result.Metadata.DomainsInvolved)
		})
	}
}

func TestOrchestrate_CombinedSummary(t *testing.T) {
	career := answer(domain.DomainCareer, "Start with your resume. I've created a step-by-step plan for you below.")
	finance := answer(domain.DomainFinance, "Here's a simple breakdown below: \nList your fixed bills first.")

	o := New(classifier.Always(domain.DomainCareer, domain.DomainFinance), nil, nil, career, finance)
	result := o.Orchestrate(context.Background(), "u1", "job and budget", nil)

	require.True(t, result.Metadata.MultiAgent)
	assert.Equal(t,
		"## Career\n\nStart with your resume.\n\n## Finance\n\nList your fixed bills first.",
		result.CombinedSummary)
	assert.Equal(t, result.CombinedSummary, result.Summary())
}

func TestStripPlanPhrases(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Good news! I've put together a plan below.", "Good news!"},
		{"See the steps below. You've got this.", "You've got this."},
		{"Check out the breakdown above!", ""},
		{"Here's your plan: rest first.", "rest first."},
		{"No plan talk here.", "No plan talk here."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripPlanPhrases(tt.in), tt.in)
	}
}

func TestOrchestrate_AgentsReceiveHistoryWindowCopies(t *testing.T) {
	ctx := context.Background()
	store := conversation.NewMemory(nil)
	for i := 0; i < 8; i++ {
		require.NoError(t, store.Append(ctx, conversation.Record{
			UserID:    "u1",
			Query:     fmt.Sprintf("question %d", i),
			Response:  fmt.Sprintf("answer %d", i),
			CreatedAt: time.Now().Add(time.Duration(i-10) * time.Minute),
		}))
	}

	finance := answer(domain.DomainFinance, "f")
	career := answer(domain.DomainCareer, "c")
	cls := classifier.Always(domain.DomainFinance, domain.DomainCareer)
	uc := &domain.UserContext{SessionID: "s1", SessionMessageCount: 2, EFChallenges: []string{"focus"}}

	o := New(cls, store, &Config{HistoryWindow: 4}, finance, career)
	result := o.Orchestrate(ctx, "u1", "what about that one?", uc)
	require.True(t, result.Success)

	freqs, creqs := finance.requests(), career.requests()
	require.Len(t, freqs, 1)
	require.Len(t, creqs, 1)

	history := freqs[0].History
	require.Len(t, history, 4)
	assert.Equal(t, "question 6", history[0].Content)
	assert.Equal(t, "answer 7", history[3].Content)

	freqs[0].History[0].Content = "mutated"
	freqs[0].UserContext.EFChallenges[0] = "mutated"
	assert.Equal(t, "question 6", creqs[0].History[0].Content)
	assert.Equal(t, "focus", creqs[0].UserContext.EFChallenges[0])
	assert.Equal(t, "focus", uc.EFChallenges[0])

	calls := cls.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 2, calls[0].SessionMessageCount)
}

func TestOrchestrate_RespectsConcurrencyLimit(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	track := func(d domain.Domain) Agent {
		return agentFunc{d: d, fn: func(ctx context.Context) (domain.AgentResponse, error) {
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			return domain.AgentResponse{Domain: d, Summary: d.String()}, nil
		}}
	}

	o := New(classifier.Always(domain.ValidDomains()...), nil, &Config{MaxConcurrentAgents: 1},
		track(domain.DomainFinance), track(domain.DomainCareer), track(domain.DomainDailyTask))
	result := o.Orchestrate(context.Background(), "u1", "q", nil)

	require.Len(t, result.Responses, 3)
	assert.Equal(t, 1, maxSeen)
}

type agentFunc struct {
	d  domain.Domain
	fn func(ctx context.Context) (domain.AgentResponse, error)
}

func (a agentFunc) Domain() domain.Domain { return a.d }

func (a agentFunc) Run(ctx context.Context, _ domain.AgentRequest) (domain.AgentResponse, error) {
	return a.fn(ctx)
}

func TestMetrics(t *testing.T) {
	metrics := NewMetrics("test")
	finance := answer(domain.DomainFinance, "f")
	broken := &stubAgent{domain: domain.DomainCareer, err: errors.New("x")}

	o := New(classifier.Always(domain.DomainFinance, domain.DomainCareer), nil, &Config{Metrics: metrics}, finance, broken)
	o.Orchestrate(context.Background(), "u1", "q", nil)

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)

	counters := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			counters[mf.GetName()+"{"+strings.Join(labels, ",")+"}"] = m.GetCounter().GetValue()
		}
	}

	assert.Equal(t, 1.0, counters["test_orchestrations_total{outcome=partial}"])
	assert.Equal(t, 1.0, counters["test_agent_runs_total{domain=finance,outcome=success}"])
	assert.Equal(t, 1.0, counters["test_agent_runs_total{domain=career,outcome=failure}"])
	assert.Equal(t, 1.0, counters["test_domains_routed_total{domain=career}"])
}
