package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPassages() []Passage {
	return []Passage{
		{ID: "f1", Title: "Zero-based budget", URL: "https://www.nerdwallet.com/zero-based", Content: "Give every dollar of your budget a job before the month starts.", Domain: domain.DomainFinance},
		{ID: "f2", Title: "Paying down debt", Content: "The avalanche method pays the highest interest debt first; a budget keeps it going.", Domain: domain.DomainFinance},
		{ID: "d1", Title: "Body doubling", Content: "Work next to someone else to start a boring task like a budget review.", Domain: domain.DomainDailyTask},
		{ID: "c1", Title: "Resume bullet points", Content: "Lead each resume bullet with an action verb and a measurable result.", Domain: domain.DomainCareer},
	}
}

func openTestIndex(t *testing.T, path string) *Index {
	t.Helper()
	idx, err := OpenIndex(IndexConfig{Path: path, BatchSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	require.NoError(t, idx.Add(context.Background(), testPassages()))
	return idx
}

func TestIndex_RetrieveIsDomainFiltered(t *testing.T) {
	idx := openTestIndex(t, "")

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)

	passages, err := idx.Retrieve(context.Background(), "budget", domain.DomainFinance, 5)
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "f1", passages[0].ID, "title match should rank first")
	for _, p := range passages {
		assert.Equal(t, domain.DomainFinance, p.Domain)
		assert.NotEmpty(t, p.Content)
		assert.Greater(t, p.Score, 0.0)
	}
	assert.Equal(t, "https://www.nerdwallet.com/zero-based", passages[0].URL)

	passages, err = idx.Retrieve(context.Background(), "budget", domain.DomainCareer, 5)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestIndex_ToleratesQuerySyntax(t *testing.T) {
	idx := openTestIndex(t, "")

	passages, err := idx.Retrieve(context.Background(), `should I "fix" my resume? +help (asap)`, domain.DomainCareer, 5)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "c1", passages[0].ID)

	passages, err = idx.Retrieve(context.Background(), "   ", domain.DomainCareer, 5)
	require.NoError(t, err)
	assert.Nil(t, passages)
}

func TestIndex_PersistsAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.bleve")
	idx, err := OpenIndex(IndexConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, idx.Add(context.Background(), testPassages()))
	require.NoError(t, idx.Close())

	_, err = idx.Retrieve(context.Background(), "budget", domain.DomainFinance, 5)
	assert.ErrorIs(t, err, ErrIndexClosed)

	reopened, err := OpenIndex(IndexConfig{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)

	require.NoError(t, reopened.Delete("c1"))
	count, err = reopened.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestIndex_RejectsEmptyPassage(t *testing.T) {
	idx, err := OpenIndex(IndexConfig{})
	require.NoError(t, err)
	defer idx.Close()

	err = idx.Add(context.Background(), []Passage{{ID: "x", Title: "no content"}})
	assert.ErrorIs(t, err, ErrEmptyPassage)
}

type countingRetriever struct {
	calls atomic.Int32
	err   error
}

func (c *countingRetriever) Retrieve(_ context.Context, query string, d domain.Domain, _ int) ([]Passage, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []Passage{{ID: "p", Title: query, Content: "c", Domain: d}}, nil
}

func TestCached_ServesRepeatQueriesFromCache(t *testing.T) {
	inner := &countingRetriever{}
	cached, err := NewCached(inner, nil)
	require.NoError(t, err)
	defer cached.Close()

	ctx := context.Background()
	first, err := cached.Retrieve(ctx, "Budget  Tips", domain.DomainFinance, 5)
	require.NoError(t, err)
	cached.Wait()

	second, err := cached.Retrieve(ctx, "budget tips", domain.DomainFinance, 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, int64(1), cached.Stats().Hits())

	_, err = cached.Retrieve(ctx, "budget tips", domain.DomainCareer, 5)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load(), "domain is part of the key")

	second[0].Title = "mutated"
	third, err := cached.Retrieve(ctx, "budget tips", domain.DomainFinance, 5)
	require.NoError(t, err)
	assert.Equal(t, "Budget  Tips", third[0].Title)
}

func TestCached_DoesNotCacheErrors(t *testing.T) {
	inner := &countingRetriever{err: errors.New("index offline")}
	cached, err := NewCached(inner, &CacheConfig{MaxCost: 1024})
	require.NoError(t, err)
	defer cached.Close()

	for i := 0; i < 2; i++ {
		_, err := cached.Retrieve(context.Background(), "q", domain.DomainFinance, 5)
		require.Error(t, err)
		cached.Wait()
	}
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestLoadSeedDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "finance.yaml"), []byte(`
domain: finance
passages:
  - title: Emergency fund
    content: Save three months of expenses.
  - title: Resume gaps
    domain: career
    content: Explain gaps briefly and move on.
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.yml"), []byte(`
passages:
  - id: fixed-id
    title: Two minute rule
    domain: daily-task
    content: If it takes under two minutes, do it now.
`), 0o644))

	passages, err := LoadSeedDir(dir)
	require.NoError(t, err)
	require.Len(t, passages, 3)
	assert.Equal(t, domain.DomainFinance, passages[0].Domain)
	assert.Equal(t, domain.DomainCareer, passages[1].Domain)
	assert.Equal(t, "fixed-id", passages[2].ID)
	assert.Equal(t, domain.DomainDailyTask, passages[2].Domain)

	again, err := LoadSeedDir(dir)
	require.NoError(t, err)
	assert.Equal(t, passages[0].ID, again[0].ID, "generated ids are stable")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("passages:\n  - title: x\n    content: y\n"), 0o644))
	_, err = LoadSeedDir(dir)
	assert.ErrorContains(t, err, "unknown domain")
}

func TestStatic(t *testing.T) {
	s := &Static{Passages: testPassages()}
	passages, err := s.Retrieve(context.Background(), "my budget", domain.DomainFinance, 1)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "f1", passages[0].ID)

	s.Err = errors.New("down")
	_, err = s.Retrieve(context.Background(), "my budget", domain.DomainFinance, 1)
	assert.Error(t, err)
}

func TestExcerptAndRender(t *testing.T) {
	long := strings.Repeat("word ", 100)
	ex := Excerpt(long, 40)
	assert.True(t, strings.HasSuffix(ex, "..."))
	assert.LessOrEqual(t, len(ex), 43)
	assert.Equal(t, "short text", Excerpt("short \n text", 40))

	out := Render(testPassages()[:2])
	assert.Contains(t, out, "[1] Zero-based budget (https://www.nerdwallet.com/zero-based)")
	assert.Contains(t, out, "[2] Paying down debt\n")
	assert.Empty(t, Render(nil))

	src := testPassages()[0].Source()
	assert.Equal(t, "Zero-based budget", src.Title)
	assert.Equal(t, "https://www.nerdwallet.com/zero-based", src.URL)
}
