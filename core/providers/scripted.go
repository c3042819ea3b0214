package providers

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var ErrScriptExhausted = errors.New("scripted provider has no reply left")

// Rule maps requests whose text contains Match to a canned reply or error.
type Rule struct {
	Match string
	Reply string
	Err   error
}

// Scripted is a deterministic Provider for tests and offline runs. Rules
// are checked in order against the concatenated request text; the first
// match wins. Without a match the queued replies are consumed in order,
// and once those run out Fallback is used.
type Scripted struct {
	mu       sync.Mutex
	rules    []Rule
	queue    []Rule
	fallback *Rule
	calls    []*Request
}

func NewScripted(rules ...Rule) *Scripted {
	return &Scripted{rules: rules}
}

// Enqueue appends replies consumed in order by requests no rule matches.
func (s *Scripted) Enqueue(replies ...string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, reply := range replies {
		s.queue = append(s.queue, Rule{Reply: reply})
	}
	return s
}

// Fallback sets the reply returned when nothing else applies.
func (s *Scripted) Fallback(reply string, err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = &Rule{Reply: reply, Err: err}
	return s
}

// Failing returns a Scripted provider that fails every call with err.
func Failing(err error) *Scripted {
	return NewScripted().Fallback("", err)
}

func (s *Scripted) Name() string {
	return "scripted"
}

func (s *Scripted) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req)
	rule, ok := s.next(requestText(req))
	if !ok {
		return nil, ErrScriptExhausted
	}
	if rule.Err != nil {
		return nil, rule.Err
	}
	return &Response{Content: rule.Reply, Model: "scripted", StopReason: StopReasonEndTurn}, nil
}

func (s *Scripted) next(text string) (Rule, bool) {
	for _, rule := range s.rules {
		if rule.Match != "" && strings.Contains(text, rule.Match) {
			return rule, true
		}
	}
	if len(s.queue) > 0 {
		rule := s.queue[0]
		s.queue = s.queue[1:]
		return rule, true
	}
	if s.fallback != nil {
		return *s.fallback, true
	}
	return Rule{}, false
}

// Calls returns the requests seen so far.
func (s *Scripted) Calls() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Request, len(s.calls))
	copy(out, s.calls)
	return out
}

func requestText(req *Request) string {
	var b strings.Builder
	b.WriteString(req.SystemPrompt)
	for _, msg := range req.Messages {
		b.WriteString("\n")
		b.WriteString(msg.Content)
	}
	return b.String()
}
