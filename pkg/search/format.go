package search

import (
	"fmt"
	"strings"
)

// UntitledResult is the title given to results that arrive without one.
const UntitledResult = "Untitled"

// NoResultsText replaces the formatted block when there is nothing to show.
const NoResultsText = "No search results found."

// Normalize converts raw provider records into SearchResults. Titles fall
// back to UntitledResult, content falls back through content, snippet and
// text.
func Normalize(raw []map[string]any) []SearchResult {
	out := make([]SearchResult, 0, len(raw))
	for _, r := range raw {
		title := str(r["title"])
		if title == "" {
			title = UntitledResult
		}

		content := ""
		for _, key := range []string{"content", "snippet", "text"} {
			if s := str(r[key]); s != "" {
				content = s
				break
			}
		}

		meta, _ := r["metadata"].(map[string]any)
		if meta == nil {
			meta = map[string]any{}
		}

		out = append(out, SearchResult{
			Title:    title,
			URL:      str(r["url"]),
			Content:  content,
			Metadata: meta,
		})
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// Format renders results as a prompt-ready text block.
func Format(results []SearchResult) string {
	if len(results) == 0 {
		return NoResultsText
	}

	blocks := make([]string, 0, len(results))
	for i, r := range results {
		blocks = append(blocks, fmt.Sprintf("Search result %d\nTitle: %s\nURL: %s\nContent:\n%s\n---------------------",
			i+1, r.Title, r.URL, r.Content))
	}
	return strings.Join(blocks, "\n\n")
}
