package search

import (
	"context"
	"fmt"
	"strings"
)

// Mock returns three fixed results derived from the query. It needs no
// network and is used for local runs and tests.
type Mock struct{}

func (Mock) Search(_ context.Context, query string, _ map[string]any) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &SearchError{Provider: "mock", Err: ErrEmptyQuery}
	}

	raw := []map[string]any{
		{
			"title":   fmt.Sprintf("%s - Encyclopedia overview", query),
			"url":     "https://en.wikipedia.org/wiki/Example",
			"content": fmt.Sprintf("%s plays an important role in modern society. Its main applications include healthcare, education and business, and studies show that combining %s with machine learning improves outcomes.", query, query),
			"metadata": map[string]any{
				"score":          0.95,
				"year":           2024,
				"published_date": "2024-03-01",
				"source":         "mock",
			},
		},
		{
			"title":   fmt.Sprintf("Recent developments in %s - Tech blog", query),
			"url":     "https://example.com/tech-blog",
			"content": fmt.Sprintf("Progress in %s has been rapid, especially in:\n1. Natural language processing\n2. Computer vision\n3. Predictive analytics\n4. Automation systems", query),
			"metadata": map[string]any{
				"score":          0.88,
				"year":           2024,
				"published_date": "2024-02-15",
				"source":         "mock",
			},
		},
		{
			"title":   fmt.Sprintf("%s and the future of society - Research paper", query),
			"url":     "https://example.org/research-paper",
			"content": fmt.Sprintf("This study analyses how %s may affect labour markets, education systems and healthcare. Adoption of %s is expected to create new occupations while automating some traditional work.", query, query),
			"metadata": map[string]any{
				"score":          0.82,
				"year":           2023,
				"published_date": "2023-11-30",
				"source":         "mock",
			},
		},
	}
	return Normalize(raw), nil
}
