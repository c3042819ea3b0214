package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	navierrors "github.com/SankrityaT/Navia-sub000/core/errors"
)

const (
	DefaultTavilyURL     = "https://api.tavily.com"
	tavilyDefaultTimeout = 8 * time.Second
	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 512
)

type TavilyConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// SearchDepth is "basic" or "advanced".
	SearchDepth string
}

type tavilyRequest struct {
	Query          string   `json:"query"`
	MaxResults     int      `json:"max_results"`
	SearchDepth    string   `json:"search_depth,omitempty"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	IncludeAnswer  bool     `json:"include_answer"`
}

type tavilyResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Tavily calls the Tavily search API. Allowlisted hosts are sent as
// include_domains and enforced again on the response.
type Tavily struct {
	config TavilyConfig
	client *http.Client
}

func NewTavily(cfg TavilyConfig) (*Tavily, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTavilyURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = tavilyDefaultTimeout
	}
	if cfg.SearchDepth == "" {
		cfg.SearchDepth = "basic"
	}
	return &Tavily{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (t *Tavily) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	allow, err := NewAllowlist(opts.DomainAllowlist)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(tavilyRequest{
		Query:          query,
		MaxResults:     opts.maxResults(),
		SearchDepth:    t.config.SearchDepth,
		IncludeDomains: allow.Hosts(),
	})
	if err != nil {
		return nil, fmt.Errorf("tavily: marshal request: %w", err)
	}

	endpoint := strings.TrimRight(t.config.BaseURL, "/") + "/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tavily: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, navierrors.WrapWithTier(navierrors.Classify(err), "tavily: request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tavily: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(respBody))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, navierrors.FromStatus(resp.StatusCode, "tavily: "+msg, nil).
			WithRetryAfter(navierrors.ParseRetryAfter(resp.Header))
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("tavily: unmarshal response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Content: r.Content, Score: r.Score})
	}
	results = allow.Filter(results)
	if len(results) > opts.maxResults() {
		results = results[:opts.maxResults()]
	}
	return results, nil
}
