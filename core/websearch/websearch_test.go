package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SankrityaT/Navia-sub000/core/domain"
	navierrors "github.com/SankrityaT/Navia-sub000/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowlist(t *testing.T) {
	a, err := NewAllowlist([]string{"nerdwallet.com", " Investopedia.com ", "*.gov", ""})
	require.NoError(t, err)

	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.nerdwallet.com/article/budget", true},
		{"https://nerdwallet.com/", true},
		{"https://INVESTOPEDIA.com/terms/b/budget.asp", true},
		{"https://www.consumerfinance.gov/start", true},
		{"https://evilnerdwallet.com/", false},
		{"https://example.com/nerdwallet.com", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, a.Allows(tt.url), tt.url)
	}

	assert.Equal(t, []string{"nerdwallet.com", "investopedia.com", "*.gov"}, a.Hosts())

	empty, err := NewAllowlist(nil)
	require.NoError(t, err)
	assert.True(t, empty.Allows("https://anything.example"))
}

func TestTavily_Search(t *testing.T) {
	var got tavilyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer tvly-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"query":"q","results":[
			{"title":"Budget basics","url":"https://www.nerdwallet.com/budget","content":"How to budget.","score":0.9},
			{"title":"Spam","url":"https://spam.example/budget","content":"buy now","score":0.8},
			{"title":"Debt","url":"https://www.investopedia.com/debt","content":"Debt payoff.","score":0.7},
			{"title":"Extra","url":"https://www.nerdwallet.com/extra","content":"More.","score":0.6}
		]}`))
	}))
	defer srv.Close()

	tv, err := NewTavily(TavilyConfig{APIKey: "tvly-test", BaseURL: srv.URL})
	require.NoError(t, err)

	results, err := tv.Search(context.Background(), "budget help", Options{
		MaxResults:      2,
		DomainAllowlist: []string{"nerdwallet.com", "investopedia.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, "budget help", got.Query)
	assert.Equal(t, 2, got.MaxResults)
	assert.Equal(t, []string{"nerdwallet.com", "investopedia.com"}, got.IncludeDomains)

	require.Len(t, results, 2)
	assert.Equal(t, "https://www.nerdwallet.com/budget", results[0].URL)
	assert.Equal(t, "https://www.investopedia.com/debt", results[1].URL)

	link := results[0].Resource(domain.ResourceArticle)
	assert.Equal(t, "Budget basics", link.Title)
	assert.Equal(t, domain.ResourceArticle, link.Type)
}

func TestTavily_StatusErrorsAreTiered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail":"rate limited"}`))
	}))
	defer srv.Close()

	tv, err := NewTavily(TavilyConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = tv.Search(context.Background(), "q", Options{})
	require.Error(t, err)
	assert.Equal(t, navierrors.TierExternalRateLimit, navierrors.GetTier(err))
	assert.Contains(t, err.Error(), "rate limited")

	var te *navierrors.TieredError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 7*time.Second, te.RetryAfter)
}

func TestTavily_RequiresKey(t *testing.T) {
	_, err := NewTavily(TavilyConfig{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

type countingSearcher struct {
	calls atomic.Int32
	err   error
}

func (c *countingSearcher) Search(_ context.Context, query string, _ Options) ([]Result, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []Result{{Title: query, URL: "https://example.com"}}, nil
}

func TestCached(t *testing.T) {
	inner := &countingSearcher{}
	c := NewCached(inner, 8, time.Minute)
	ctx := context.Background()

	opts := Options{DomainAllowlist: []string{"b.com", "a.com"}}
	_, err := c.Search(ctx, "Resume Tips", opts)
	require.NoError(t, err)
	_, err = c.Search(ctx, "resume   tips", Options{DomainAllowlist: []string{"A.com", "b.com"}})
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, 1, c.Len())

	_, err = c.Search(ctx, "resume tips", Options{MaxResults: 5, DomainAllowlist: opts.DomainAllowlist})
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())

	failing := NewCached(&countingSearcher{err: errors.New("down")}, 8, time.Minute)
	_, err = failing.Search(ctx, "q", Options{})
	require.Error(t, err)
	assert.Equal(t, 0, failing.Len())
}

func TestStatic(t *testing.T) {
	s := &Static{Results: []Result{
		{URL: "https://www.indeed.com/a"},
		{URL: "https://random.example/b"},
		{URL: "https://www.themuse.com/c"},
	}}
	results, err := s.Search(context.Background(), "jobs", Options{MaxResults: 5, DomainAllowlist: []string{"indeed.com", "themuse.com"}})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, []string{"jobs"}, s.Queries())
}
