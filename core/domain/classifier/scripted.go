package classifier

import (
	"context"
	"strings"
	"sync"

	"github.com/SankrityaT/Navia-sub000/core/domain"
)

// ScriptedRule returns Intent for queries containing Match.
type ScriptedRule struct {
	Match  string
	Intent domain.IntentDetection
}

// Call records one Detect invocation.
type Call struct {
	Query               string
	History             []domain.ConversationTurn
	SessionMessageCount int
}

// Scripted is a deterministic Classifier. The first rule whose Match is a
// case-insensitive substring of the query wins; otherwise Default is
// returned, or the fallback intent when Default has no domains.
type Scripted struct {
	Rules   []ScriptedRule
	Default domain.IntentDetection

	mu    sync.Mutex
	calls []Call
}

func NewScripted(rules ...ScriptedRule) *Scripted {
	return &Scripted{Rules: rules}
}

// Always returns a Scripted classifier that routes every query to domains.
func Always(domains ...domain.Domain) *Scripted {
	return &Scripted{Default: domain.IntentDetection{
		Domains:    domains,
		Confidence: 0.9,
		Complexity: 3,
		Reasoning:  "scripted",
	}}
}

func (s *Scripted) Detect(_ context.Context, query string, history []domain.ConversationTurn, sessionMessageCount int) domain.IntentDetection {
	s.mu.Lock()
	s.calls = append(s.calls, Call{
		Query:               query,
		History:             append([]domain.ConversationTurn(nil), history...),
		SessionMessageCount: sessionMessageCount,
	})
	s.mu.Unlock()

	lower := strings.ToLower(query)
	for _, rule := range s.Rules {
		if rule.Match != "" && strings.Contains(lower, strings.ToLower(rule.Match)) {
			return cloneIntent(rule.Intent)
		}
	}
	if len(s.Default.Domains) == 0 {
		return Fallback(nil)
	}
	return cloneIntent(s.Default)
}

func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

func cloneIntent(in domain.IntentDetection) domain.IntentDetection {
	in.Domains = append([]domain.Domain(nil), in.Domains...)
	return in
}
