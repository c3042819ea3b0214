package conversation

import (
	"context"
	"fmt"
	"sync"

	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/SankrityaT/Navia-sub000/core/providers"
	"github.com/viterin/vek/vek32"
)

// Memory is an in-process Store. Semantic lookup needs an Embedder; without
// one FetchSemantic returns nothing.
type Memory struct {
	mu        sync.RWMutex
	records   []Record
	vectors   [][]float32
	embedder  providers.Embedder
	threshold float64
}

func NewMemory(embedder providers.Embedder) *Memory {
	return &Memory{embedder: embedder, threshold: DefaultSemanticThreshold}
}

// WithThreshold overrides the similarity cutoff.
func (m *Memory) WithThreshold(threshold float64) *Memory {
	m.threshold = threshold
	return m
}

func (m *Memory) Append(ctx context.Context, rec Record) error {
	rec, err := normalize(rec)
	if err != nil {
		return err
	}

	var vec []float32
	if m.embedder != nil {
		vecs, err := m.embedder.Embed(ctx, []string{embeddingText(rec)})
		if err != nil {
			return fmt.Errorf("embed record: %w", err)
		}
		vec = vecs[0]
	}

	m.mu.Lock()
	m.records = append(m.records, rec)
	m.vectors = append(m.vectors, vec)
	m.mu.Unlock()
	return nil
}

func (m *Memory) FetchRecent(ctx context.Context, userID string, filter Filter) ([]domain.ConversationTurn, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := filter.limit()
	want := recordsFor(limit)

	m.mu.RLock()
	var newest []Record
	for i := len(m.records) - 1; i >= 0 && len(newest) < want; i-- {
		rec := m.records[i]
		if rec.UserID == userID && filter.matches(rec) {
			newest = append(newest, rec)
		}
	}
	m.mu.RUnlock()

	return chronological(newest, limit), nil
}

func (m *Memory) FetchSemantic(ctx context.Context, userID, query string, filter Filter) ([]domain.ConversationTurn, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if m.embedder == nil || query == "" {
		return nil, nil
	}

	vecs, err := m.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	target := vecs[0]

	m.mu.RLock()
	var matches []scored
	for i, rec := range m.records {
		if rec.UserID != userID || !filter.matches(rec) || len(m.vectors[i]) != len(target) {
			continue
		}
		score := float64(vek32.CosineSimilarity(target, m.vectors[i]))
		matches = append(matches, scored{rec: rec, score: score})
	}
	m.mu.RUnlock()

	return ranked(matches, m.threshold, filter.limit()), nil
}

// Len reports the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
