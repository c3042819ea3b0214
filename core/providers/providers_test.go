package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	navierrors "github.com/SankrityaT/Navia-sub000/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viterin/vek/vek32"
)

func TestScripted_RulesQueueAndFallback(t *testing.T) {
	p := NewScripted(Rule{Match: "budget", Reply: `{"domain":"finance"}`}).
		Enqueue("first", "second").
		Fallback("", errors.New("boom"))

	ctx := context.Background()

	resp, err := p.Complete(ctx, &Request{Messages: []Message{User("my budget is a mess")}})
	require.NoError(t, err)
	assert.Equal(t, `{"domain":"finance"}`, resp.Content)

	resp, err = p.Complete(ctx, &Request{Messages: []Message{User("hello")}})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Content)

	resp, err = p.Complete(ctx, &Request{Messages: []Message{User("hello")}})
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Content)

	_, err = p.Complete(ctx, &Request{Messages: []Message{User("hello")}})
	require.EqualError(t, err, "boom")

	assert.Len(t, p.Calls(), 4)
}

func TestScripted_ExhaustedWithoutFallback(t *testing.T) {
	p := NewScripted()
	_, err := p.Complete(context.Background(), &Request{Messages: []Message{User("x")}})
	assert.ErrorIs(t, err, ErrScriptExhausted)
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem(&Request{
		SystemPrompt: "base",
		Messages:     []Message{System("extra"), User("hi"), Assistant("hello")},
	})
	assert.Equal(t, "base\n\nextra", system)
	require.Len(t, rest, 2)
	assert.Equal(t, RoleUser, rest[0].Role)
}

func fastRetry() map[navierrors.ErrorTier]*navierrors.RetryPolicy {
	return map[navierrors.ErrorTier]*navierrors.RetryPolicy{
		navierrors.TierTransient: {MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}
}

func TestResilient_RetriesTransientFailures(t *testing.T) {
	inner := &Scripted{queue: []Rule{{Err: navierrors.ErrTimeout}, {Reply: "ok"}}}

	r := NewResilient(inner, ResilientConfig{RetryPolicies: fastRetry()})
	resp, err := r.Complete(context.Background(), &Request{Messages: []Message{User("x")}})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Len(t, inner.Calls(), 2)
}

func TestResilient_OpensBreakerOnUpstreamFailures(t *testing.T) {
	inner := Failing(navierrors.ErrServiceUnavailable)
	r := NewResilient(inner, ResilientConfig{
		Breaker: BreakerConfig{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          time.Minute,
			FailureThreshold: 0.5,
			MinRequests:      2,
		},
		RetryPolicies: map[navierrors.ErrorTier]*navierrors.RetryPolicy{},
	})

	req := &Request{Messages: []Message{User("x")}}
	for i := 0; i < 2; i++ {
		_, err := r.Complete(context.Background(), req)
		require.Error(t, err)
	}
	assert.Equal(t, "open", r.State())

	_, err := r.Complete(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, navierrors.TierExternalDegrading, navierrors.GetTier(err))
	assert.Len(t, inner.Calls(), 2)
}

func TestResilient_PermanentErrorsDoNotTrip(t *testing.T) {
	inner := Failing(navierrors.ErrMalformedOutput)
	r := NewResilient(inner, ResilientConfig{
		Breaker: BreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 0.5, MinRequests: 1},
	})

	for i := 0; i < 3; i++ {
		_, err := r.Complete(context.Background(), &Request{Messages: []Message{User("x")}})
		require.Error(t, err)
	}
	assert.Equal(t, "closed", r.State())
}

func TestRegistry_DefaultAndEmbedder(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Default()
	require.Error(t, err)

	require.NoError(t, reg.Register(ProviderTypeGroq, NewScripted()))
	p, err := reg.Default()
	require.NoError(t, err)
	assert.Equal(t, "scripted", p.Name())

	_, ok := reg.Embedder()
	assert.False(t, ok)

	require.Error(t, reg.SetDefault(ProviderTypeAnthropic))
	assert.True(t, reg.Has(ProviderTypeGroq))
}

func TestParseProviderType(t *testing.T) {
	pt, err := ParseProviderType("groq")
	require.NoError(t, err)
	assert.Equal(t, ProviderTypeGroq, pt)

	_, err = ParseProviderType("pinecone")
	assert.Error(t, err)
}

func TestHashEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	e := NewHashEmbedder(0)
	vecs, err := e.Embed(context.Background(), []string{
		"should I use YNAB or Mint for budgeting",
		"is Mint better than YNAB for my budget",
		"how do I clean my kitchen faster",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Len(t, vecs[0], DefaultHashDimensions)

	related := vek32.CosineSimilarity(vecs[0], vecs[1])
	unrelated := vek32.CosineSimilarity(vecs[0], vecs[2])
	assert.Greater(t, related, unrelated)
}

func TestOpenAIProvider_CompleteJSONMode(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		format, _ := body["response_format"].(map[string]any)
		assert.Equal(t, "json_object", format["type"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "llama-3.3-70b-versatile",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"ok\":true}"}}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
		}`))
	}))
	defer srv.Close()

	cfg := DefaultGroqConfig()
	cfg.APIKey = "test"
	cfg.BaseURL = srv.URL + "/openai/v1"
	p, err := NewGroqProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, "groq", p.Name())

	resp, err := p.Complete(context.Background(), &Request{
		Messages: []Message{System("sys"), User("hi")},
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Content)
	assert.Equal(t, StopReasonEndTurn, resp.StopReason)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
	assert.Equal(t, int32(1), hits.Load())
}

func TestOpenAIProvider_ClassifiesStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit","code":"rate_limit","param":""}}`))
	}))
	defer srv.Close()

	cfg := DefaultOpenAIConfig()
	cfg.APIKey = "test"
	cfg.BaseURL = srv.URL + "/v1"
	p, err := NewOpenAIProvider(cfg)
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), &Request{Messages: []Message{User("hi")}})
	require.Error(t, err)
	assert.Equal(t, navierrors.TierExternalRateLimit, navierrors.GetTier(err))
}

func TestNewProviders_RequireAPIKey(t *testing.T) {
	_, err := NewGroqProvider(OpenAIConfig{})
	assert.Error(t, err)
	_, err = NewAnthropicProvider(AnthropicConfig{})
	assert.Error(t, err)
	_, err = NewGoogleProvider(context.Background(), GoogleConfig{})
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		OK bool `json:"ok"`
	}

	require.NoError(t, DecodeJSON("```json\n{\"ok\": true}\n```", &v))
	assert.True(t, v.OK)

	v.OK = false
	require.NoError(t, DecodeJSON(`Sure! Here it is: {"ok": true} Hope that helps.`, &v))
	assert.True(t, v.OK)

	err := DecodeJSON("no json here", &v)
	assert.ErrorIs(t, err, navierrors.ErrMalformedOutput)

	err = DecodeJSON(`{"ok": tru`, &v)
	assert.ErrorIs(t, err, navierrors.ErrMalformedOutput)

	assert.Equal(t, `[1,2]`, ExtractJSON("list: [1,2]"))
}
