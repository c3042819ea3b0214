// Package websearch finds external resource links for agents, restricted to
// per-domain allowlists of trusted sites.
package websearch

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/SankrityaT/Navia-sub000/core/domain"
)

const DefaultMaxResults = 3

var ErrNoAPIKey = errors.New("websearch: api key required")

// Result is one web hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Options narrows a search. DomainAllowlist entries are hostnames such as
// "nerdwallet.com" or glob patterns such as "*.gov".
type Options struct {
	MaxResults      int
	DomainAllowlist []string
}

func (o Options) maxResults() int {
	if o.MaxResults <= 0 {
		return DefaultMaxResults
	}
	return o.MaxResults
}

// Searcher is the web search capability.
type Searcher interface {
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// Resource converts a hit to a resource link of the given type.
func (r Result) Resource(t domain.ResourceType) domain.ResourceLink {
	return domain.ResourceLink{
		Title:       r.Title,
		URL:         r.URL,
		Description: excerpt(r.Content, 200),
		Type:        t,
	}
}

func excerpt(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}

// Static returns canned results filtered by the allowlist. Calls are
// recorded for assertions.
type Static struct {
	Results []Result
	Err     error

	mu      sync.Mutex
	queries []string
}

func (s *Static) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	allow, err := NewAllowlist(opts.DomainAllowlist)
	if err != nil {
		return nil, err
	}
	results := allow.Filter(s.Results)
	if len(results) > opts.maxResults() {
		results = results[:opts.maxResults()]
	}
	return results, nil
}

// Queries returns the queries seen so far.
func (s *Static) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}
