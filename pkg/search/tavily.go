package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	tavilyEndpoint   = "https://api.tavily.com/search"
	tavilyMaxRetries = 4
)

// ErrRateLimited is returned once a provider keeps answering 429 after every
// retry.
var ErrRateLimited = errors.New("rate limited")

// Tavily calls the Tavily search API.
type Tavily struct {
	APIKey   string
	Endpoint string
	// MaxRetries bounds the retries after a 429. RetryDelay is the first
	// backoff, doubled per retry up to 30s.
	MaxRetries int
	RetryDelay time.Duration
	client     *http.Client
}

func NewTavily(apiKey string) *Tavily {
	return NewTavilyWithClient(apiKey, &http.Client{Timeout: 30 * time.Second})
}

// NewTavilyWithClient uses the supplied HTTP client, e.g. to change timeouts.
func NewTavilyWithClient(apiKey string, client *http.Client) *Tavily {
	return &Tavily{
		APIKey:     apiKey,
		Endpoint:   tavilyEndpoint,
		MaxRetries: tavilyMaxRetries,
		RetryDelay: time.Second,
		client:     client,
	}
}

func (t *Tavily) Search(ctx context.Context, query string, params map[string]any) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &SearchError{Provider: "tavily", Err: ErrEmptyQuery}
	}
	if strings.TrimSpace(t.APIKey) == "" {
		return nil, &SearchError{Provider: "tavily", Query: query, Err: errors.New("API key is missing")}
	}

	maxResults := 10
	if n, ok := intParam(params["max_results"]); ok && n > 0 {
		maxResults = n
	}

	body := map[string]any{
		"api_key":             t.APIKey,
		"query":               query,
		"search_depth":        "advanced",
		"include_domains":     stringsParam(params["include_domains"]),
		"exclude_domains":     stringsParam(params["exclude_domains"]),
		"max_results":         maxResults,
		"include_answer":      true,
		"include_raw_content": false,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &SearchError{Provider: "tavily", Query: query, Err: err}
	}

	var resp *http.Response
	delay := t.RetryDelay
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, &SearchError{Provider: "tavily", Query: query, Err: err}
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err = t.client.Do(req)
		if err != nil {
			return nil, &SearchError{Provider: "tavily", Query: query, Err: err}
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()
		if attempt >= t.MaxRetries {
			return nil, &SearchError{Provider: "tavily", Query: query, Err: fmt.Errorf("%w after %d attempts", ErrRateLimited, attempt+1)}
		}

		// Back off on 429, doubling up to 30s.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &SearchError{Provider: "tavily", Query: query, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	var response struct {
		Results []struct {
			Title         string  `json:"title"`
			URL           string  `json:"url"`
			Content       string  `json:"content"`
			Snippet       string  `json:"snippet"`
			Score         float64 `json:"score"`
			PublishedDate string  `json:"published_date"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, &SearchError{Provider: "tavily", Query: query, Err: fmt.Errorf("decode response: %w", err)}
	}

	if len(response.Results) == 0 {
		return nil, &SearchError{Provider: "tavily", Query: query, Err: errors.New("no results found")}
	}

	raw := make([]map[string]any, 0, len(response.Results))
	for _, r := range response.Results {
		raw = append(raw, map[string]any{
			"title":   r.Title,
			"url":     r.URL,
			"content": r.Content,
			"snippet": r.Snippet,
			"metadata": map[string]any{
				"score":          r.Score,
				"published_date": r.PublishedDate,
				"source":         "tavily",
			},
		})
	}
	return Normalize(raw), nil
}

func intParam(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func stringsParam(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return []string{}
}
