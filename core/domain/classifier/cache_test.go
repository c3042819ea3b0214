package classifier

import (
	"context"
	"strings"
	"testing"

	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, inner Classifier) *Cached {
	t.Helper()
	c, err := NewCached(inner, nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestCached_ServesRepeatQueries(t *testing.T) {
	inner := Always(domain.DomainFinance)
	c := newTestCache(t, inner)
	ctx := context.Background()

	first := c.Detect(ctx, "How do I budget?", nil, 0)
	c.Wait()
	second := c.Detect(ctx, "  how do I   BUDGET? ", nil, 0)

	assert.Equal(t, first, second)
	assert.Len(t, inner.Calls(), 1)
	assert.Equal(t, int64(1), c.Stats().Hits())
	assert.Equal(t, int64(1), c.Stats().Sets())
}

func TestCached_HistoryChangesMiss(t *testing.T) {
	inner := Always(domain.DomainFinance)
	c := newTestCache(t, inner)
	ctx := context.Background()

	history := []domain.ConversationTurn{
		{Role: domain.RoleUser, Content: "Should I use YNAB or Mint?"},
		{Role: domain.RoleAssistant, Content: "Mint is simpler to set up."},
	}

	c.Detect(ctx, "which one?", history, 2)
	c.Wait()
	c.Detect(ctx, "which one?", history[:1], 2)
	c.Wait()
	c.Detect(ctx, "which one?", history, 0)

	assert.Len(t, inner.Calls(), 3)
	assert.Zero(t, c.Stats().Hits())
}

func TestCached_DoesNotStoreFallbacks(t *testing.T) {
	inner := NewScripted()
	c := newTestCache(t, inner)
	ctx := context.Background()

	intent := c.Detect(ctx, "hello", nil, 0)
	assert.True(t, IsFallback(intent))
	c.Wait()
	c.Detect(ctx, "hello", nil, 0)

	assert.Len(t, inner.Calls(), 2)
	assert.Zero(t, c.Stats().Sets())
}

func TestCached_LongQueriesWithSharedPrefixMiss(t *testing.T) {
	inner := NewScripted(
		ScriptedRule{Match: "budget", Intent: domain.IntentDetection{Domains: []domain.Domain{domain.DomainFinance}, Confidence: 0.9}},
		ScriptedRule{Match: "resume", Intent: domain.IntentDetection{Domains: []domain.Domain{domain.DomainCareer}, Confidence: 0.9}},
	)
	c := newTestCache(t, inner)
	ctx := context.Background()

	prefix := strings.Repeat("i have been feeling stuck lately and ", 10)
	require.Greater(t, len(prefix), 300)

	first := c.Detect(ctx, prefix+"need help with my budget", nil, 0)
	c.Wait()
	second := c.Detect(ctx, prefix+"need help with my resume", nil, 0)

	assert.Equal(t, []domain.Domain{domain.DomainFinance}, first.Domains)
	assert.Equal(t, []domain.Domain{domain.DomainCareer}, second.Domains)
	assert.Len(t, inner.Calls(), 2)
	assert.NotEqual(t,
		CacheKey(prefix+"need help with my budget", nil, false),
		CacheKey(prefix+"need help with my resume", nil, false))
}

func TestCached_ReturnsCopies(t *testing.T) {
	c := newTestCache(t, Always(domain.DomainCareer))
	ctx := context.Background()

	first := c.Detect(ctx, "resume", nil, 0)
	first.Domains[0] = domain.DomainFinance
	c.Wait()

	second := c.Detect(ctx, "resume", nil, 0)
	assert.Equal(t, []domain.Domain{domain.DomainCareer}, second.Domains)
}

func TestCached_ClosedPassesThrough(t *testing.T) {
	inner := Always(domain.DomainDailyTask)
	c, err := NewCached(inner, nil)
	require.NoError(t, err)
	c.Close()
	c.Close()

	c.Detect(context.Background(), "laundry", nil, 0)
	c.Detect(context.Background(), "laundry", nil, 0)
	assert.Len(t, inner.Calls(), 2)
}

func TestIsFallback(t *testing.T) {
	assert.True(t, IsFallback(Fallback(nil)))
	assert.True(t, IsFallback(Fallback(assert.AnError)))
	assert.False(t, IsFallback(Always(domain.DomainFinance).Default))
}

func TestCacheKey(t *testing.T) {
	turn := domain.ConversationTurn{Role: domain.RoleUser, Content: "hi"}
	semantic := turn
	semantic.IsSemanticMatch = true

	base := CacheKey("Plan my week", []domain.ConversationTurn{turn}, false)
	assert.Equal(t, base, CacheKey("plan  my week", []domain.ConversationTurn{turn}, false))
	assert.NotEqual(t, base, CacheKey("plan my week", []domain.ConversationTurn{turn}, true))
	assert.NotEqual(t, base, CacheKey("plan my week", []domain.ConversationTurn{semantic}, false))

	tagged := turn
	tagged.Domain = "finance"
	assert.NotEqual(t, base, CacheKey("plan my week", []domain.ConversationTurn{tagged}, false))
	assert.Contains(t, base, "intent:1:")
}
