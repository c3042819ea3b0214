package coach

import (
	"context"
	"strings"

	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/SankrityaT/Navia-sub000/core/websearch"
)

// ToneFunc returns an extra instruction shaping the answer's tone for the
// given user, or "" for none.
type ToneFunc func(uc *domain.UserContext) string

// Profile is everything that differs between domain agents.
type Profile struct {
	Domain           domain.Domain
	SystemPrompt     string
	BreakdownContext string
	Fetchers         []Fetcher
	Tone             ToneFunc
}

func (p Profile) triggered(query string) []Fetcher {
	var out []Fetcher
	for _, f := range p.Fetchers {
		if f.Triggered(query) {
			out = append(out, f)
		}
	}
	return out
}

// Fetcher looks up external resources when the query mentions one of its
// keywords. Results are restricted to the allowlisted sites.
type Fetcher struct {
	Name         string
	Keywords     []string
	Allowlist    []string
	QuerySuffix  string
	ResourceType domain.ResourceType
	MaxResults   int
}

// shortKeywordLen is the longest keyword matched only as a whole word, so
// "tax" skips "taxi" and "ira" skips "irate".
const shortKeywordLen = 4

// Triggered reports whether any keyword occurs in query. Phrases match as
// substrings, short keywords as whole words or their plural, and longer
// keywords as word prefixes ("budget" matches "budgeting").
func (f Fetcher) Triggered(query string) bool {
	lower := strings.ToLower(query)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	})
	for _, kw := range f.Keywords {
		kw = strings.ToLower(kw)
		if strings.Contains(kw, " ") {
			if strings.Contains(lower, kw) {
				return true
			}
			continue
		}
		for _, w := range words {
			if keywordMatches(w, kw) {
				return true
			}
		}
	}
	return false
}

func keywordMatches(word, kw string) bool {
	if len(kw) > shortKeywordLen {
		return strings.HasPrefix(word, kw)
	}
	return word == kw || word == kw+"s" || word == kw+"es"
}

func (f Fetcher) Fetch(ctx context.Context, s websearch.Searcher, query string) ([]domain.ResourceLink, error) {
	q := strings.TrimSpace(query)
	if f.QuerySuffix != "" {
		q += " " + f.QuerySuffix
	}
	results, err := s.Search(ctx, q, websearch.Options{
		MaxResults:      f.MaxResults,
		DomainAllowlist: f.Allowlist,
	})
	if err != nil {
		return nil, err
	}
	typ := f.ResourceType
	if typ == "" {
		typ = domain.ResourceArticle
	}
	links := make([]domain.ResourceLink, 0, len(results))
	for _, r := range results {
		links = append(links, r.Resource(typ))
	}
	return links, nil
}
