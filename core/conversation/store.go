// Package conversation persists chat exchanges and serves them back to the
// agents as recent, session scoped and semantically relevant history.
package conversation

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/google/uuid"
)

// DefaultSemanticThreshold is the minimum cosine similarity for a past
// exchange to count as relevant.
const DefaultSemanticThreshold = 0.7

var (
	ErrMissingUserID = errors.New("conversation: user id is required")
	ErrEmptyRecord   = errors.New("conversation: record has no query")
)

// Record is one stored exchange: the user's query and the reply shown.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id,omitempty"`
	Domain    string    `json:"domain,omitempty"`
	Query     string    `json:"message"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows a fetch. Limit counts turns, not records; zero means the
// store default.
type Filter struct {
	Limit     int
	Domain    string
	SessionID string
}

// Store is the conversation persistence capability.
type Store interface {
	// FetchRecent returns the newest turns in chronological order.
	FetchRecent(ctx context.Context, userID string, filter Filter) ([]domain.ConversationTurn, error)
	// FetchSemantic returns turns from exchanges similar to query, best
	// match first, each marked IsSemanticMatch.
	FetchSemantic(ctx context.Context, userID, query string, filter Filter) ([]domain.ConversationTurn, error)
	Append(ctx context.Context, rec Record) error
}

const defaultLimit = 10

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return defaultLimit
	}
	return f.Limit
}

// recordsFor returns how many exchanges cover limit turns.
func recordsFor(limit int) int {
	return (limit + 1) / 2
}

func (f Filter) matches(rec Record) bool {
	if f.Domain != "" && rec.Domain != f.Domain {
		return false
	}
	if f.SessionID != "" && rec.SessionID != f.SessionID {
		return false
	}
	return true
}

// normalize fills the ID and timestamp and validates the record.
func normalize(rec Record) (Record, error) {
	if rec.UserID == "" {
		return rec, ErrMissingUserID
	}
	if strings.TrimSpace(rec.Query) == "" {
		return rec, ErrEmptyRecord
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec, nil
}

// Turns expands a record into its user turn and, if present, the reply.
func (r Record) Turns(semantic bool) []domain.ConversationTurn {
	turns := []domain.ConversationTurn{{
		Role:            domain.RoleUser,
		Content:         r.Query,
		Timestamp:       r.CreatedAt,
		Domain:          r.Domain,
		SessionID:       r.SessionID,
		IsSemanticMatch: semantic,
	}}
	if r.Response != "" {
		turns = append(turns, domain.ConversationTurn{
			Role:            domain.RoleAssistant,
			Content:         r.Response,
			Timestamp:       r.CreatedAt,
			Domain:          r.Domain,
			SessionID:       r.SessionID,
			IsSemanticMatch: semantic,
		})
	}
	return turns
}

// chronological converts newest-first records into oldest-first turns and
// keeps the newest limit turns.
func chronological(newestFirst []Record, limit int) []domain.ConversationTurn {
	ordered := make([]Record, len(newestFirst))
	copy(ordered, newestFirst)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	var turns []domain.ConversationTurn
	for _, rec := range ordered {
		turns = append(turns, rec.Turns(false)...)
	}
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns
}

type scored struct {
	rec   Record
	score float64
}

// ranked keeps matches at or above threshold, best first, and expands them
// into turns capped at limit.
func ranked(matches []scored, threshold float64, limit int) []domain.ConversationTurn {
	kept := matches[:0]
	for _, m := range matches {
		if m.score >= threshold {
			kept = append(kept, m)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].score > kept[j].score })

	var turns []domain.ConversationTurn
	for _, m := range kept {
		turns = append(turns, m.rec.Turns(true)...)
		if len(turns) >= limit {
			break
		}
	}
	if len(turns) > limit {
		turns = turns[:limit]
	}
	return turns
}

// embeddingText is what gets embedded for semantic lookup. Past queries
// are compared against the incoming query.
func embeddingText(rec Record) string {
	return rec.Query
}
