package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/SankrityaT/Navia-sub000/core/providers"
	postgrest "github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

const (
	DefaultTable         = "chat_history"
	DefaultMatchFunction = "match_chat_history"
)

var ErrRPCFailed = errors.New("conversation: match rpc failed")

type SupabaseConfig struct {
	URL           string
	Key           string
	Table         string
	MatchFunction string
	Embedder      providers.Embedder
	Threshold     float64
	Logger        *slog.Logger
}

// SupabaseStore reads and writes the chat_history table through PostgREST.
// Semantic lookup calls a pgvector match function with the query embedding.
type SupabaseStore struct {
	client    *supabase.Client
	table     string
	matchFn   string
	embedder  providers.Embedder
	threshold float64
	logger    *slog.Logger
}

type supabaseRow struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id,omitempty"`
	Domain    string    `json:"domain,omitempty"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	// Similarity is only set by the match function.
	Similarity float64 `json:"similarity,omitempty"`
}

func (r supabaseRow) record() Record {
	return Record{
		ID:        r.ID,
		UserID:    r.UserID,
		SessionID: r.SessionID,
		Domain:    r.Domain,
		Query:     r.Message,
		Response:  r.Response,
		CreatedAt: r.CreatedAt,
	}
}

func NewSupabaseStore(cfg SupabaseConfig) (*SupabaseStore, error) {
	client, err := supabase.NewClient(strings.TrimRight(cfg.URL, "/"), cfg.Key, nil)
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}

	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.MatchFunction == "" {
		cfg.MatchFunction = DefaultMatchFunction
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultSemanticThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &SupabaseStore{
		client:    client,
		table:     cfg.Table,
		matchFn:   cfg.MatchFunction,
		embedder:  cfg.Embedder,
		threshold: cfg.Threshold,
		logger:    cfg.Logger,
	}, nil
}

func (s *SupabaseStore) Append(ctx context.Context, rec Record) error {
	rec, err := normalize(rec)
	if err != nil {
		return err
	}

	row := supabaseRow{
		ID:        rec.ID,
		UserID:    rec.UserID,
		SessionID: rec.SessionID,
		Domain:    rec.Domain,
		Message:   rec.Query,
		Response:  rec.Response,
		CreatedAt: rec.CreatedAt,
	}
	if s.embedder != nil {
		vecs, err := s.embedder.Embed(ctx, []string{embeddingText(rec)})
		if err != nil {
			s.logger.Warn("storing record without embedding", "user_id", rec.UserID, "error", err)
		} else {
			row.Embedding = vecs[0]
		}
	}

	return blocking(ctx, func() error {
		_, _, err := s.client.From(s.table).Insert(row, false, "", "minimal", "").Execute()
		if err != nil {
			return fmt.Errorf("insert chat history: %w", err)
		}
		return nil
	})
}

func (s *SupabaseStore) FetchRecent(ctx context.Context, userID string, filter Filter) ([]domain.ConversationTurn, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	limit := filter.limit()
	var rows []supabaseRow
	err := blocking(ctx, func() error {
		q := s.client.From(s.table).
			Select("id,user_id,session_id,domain,message,response,created_at", "", false).
			Eq("user_id", userID)
		if filter.Domain != "" {
			q = q.Eq("domain", filter.Domain)
		}
		if filter.SessionID != "" {
			q = q.Eq("session_id", filter.SessionID)
		}
		_, err := q.Order("created_at", &postgrest.OrderOpts{Ascending: false}).
			Limit(recordsFor(limit), "").
			ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch chat history: %w", err)
	}

	records := make([]Record, len(rows))
	for i, row := range rows {
		records[i] = row.record()
	}
	return chronological(records, limit), nil
}

func (s *SupabaseStore) FetchSemantic(ctx context.Context, userID, query string, filter Filter) ([]domain.ConversationTurn, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if s.embedder == nil || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	body := map[string]any{
		"query_embedding": vecs[0],
		"match_threshold": s.threshold,
		"match_count":     recordsFor(filter.limit()),
		"p_user_id":       userID,
	}
	if filter.Domain != "" {
		body["p_domain"] = filter.Domain
	}

	var raw string
	err = blocking(ctx, func() error {
		raw = s.client.Rpc(s.matchFn, "", body)
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows, err := decodeMatches(raw)
	if err != nil {
		return nil, err
	}

	matches := make([]scored, 0, len(rows))
	for _, row := range rows {
		if filter.SessionID != "" && row.SessionID != filter.SessionID {
			continue
		}
		matches = append(matches, scored{rec: row.record(), score: row.Similarity})
	}
	return ranked(matches, s.threshold, filter.limit()), nil
}

// decodeMatches parses the rpc body. PostgREST answers errors with an
// object, so anything that is not an array is a failure.
func decodeMatches(raw string) ([]supabaseRow, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "[") {
		if raw == "" {
			return nil, ErrRPCFailed
		}
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal([]byte(raw), &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrRPCFailed, apiErr.Message)
		}
		return nil, ErrRPCFailed
	}

	var rows []supabaseRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRPCFailed, err)
	}
	return rows, nil
}

// blocking runs fn, which cannot be cancelled, and stops waiting for it
// once ctx is done.
func blocking(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
