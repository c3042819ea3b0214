// Package knowledge retrieves domain tagged reference passages that ground
// agent answers.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SankrityaT/Navia-sub000/core/domain"
)

const DefaultLimit = 5

var (
	ErrIndexClosed  = errors.New("knowledge: index is closed")
	ErrEmptyPassage = errors.New("knowledge: passage needs an id and content")
)

// Passage is one retrievable piece of reference material.
type Passage struct {
	ID      string        `json:"id" yaml:"id"`
	Title   string        `json:"title" yaml:"title"`
	URL     string        `json:"url,omitempty" yaml:"url,omitempty"`
	Content string        `json:"content" yaml:"content"`
	Domain  domain.Domain `json:"domain" yaml:"domain"`
	Score   float64       `json:"score,omitempty" yaml:"-"`
}

// Source converts the passage into a citation. Long content is cut to an
// excerpt.
func (p Passage) Source() domain.SourceReference {
	return domain.SourceReference{
		Title:     p.Title,
		URL:       p.URL,
		Excerpt:   Excerpt(p.Content, 280),
		Relevance: p.Score,
	}
}

// Retriever finds passages relevant to a query within one domain.
type Retriever interface {
	Retrieve(ctx context.Context, query string, d domain.Domain, limit int) ([]Passage, error)
}

// Excerpt trims text to at most max runes on a word boundary.
func Excerpt(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	cut := string(runes[:max])
	if i := strings.LastIndex(cut, " "); i > max/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

// Render formats passages as numbered reference material for a prompt.
func Render(passages []Passage) string {
	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n")
		}
		if p.URL != "" {
			fmt.Fprintf(&b, "[%d] %s (%s)\n", i+1, p.Title, p.URL)
		} else {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, p.Title)
		}
		b.WriteString(strings.TrimSpace(p.Content))
		b.WriteString("\n")
	}
	return b.String()
}

// Static serves a fixed set of passages. Matching is by domain and any
// shared lowercase word.
type Static struct {
	Passages []Passage
	Err      error
}

func (s *Static) Retrieve(ctx context.Context, query string, d domain.Domain, limit int) ([]Passage, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(query)) {
		words[w] = struct{}{}
	}

	var out []Passage
	for _, p := range s.Passages {
		if p.Domain != d {
			continue
		}
		for _, w := range strings.Fields(strings.ToLower(p.Title + " " + p.Content)) {
			if _, ok := words[w]; ok {
				out = append(out, p)
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
