package research

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mikeboe/deep-research/pkg/progress"
	"github.com/mikeboe/deep-research/pkg/search"
)

// runQueries searches each query in order. Unless merge is set, each query's
// results replace the previous ones, so only the last query's results
// survive.
func runQueries(ctx context.Context, searcher Searcher, provider string, queries []string, opts search.Options, merge bool) ([]search.SearchResult, error) {
	var results []search.SearchResult
	for _, q := range queries {
		r, err := searcher.Search(ctx, provider, q, opts)
		if err != nil {
			var se *search.SearchError
			if !errors.As(err, &se) {
				err = &search.SearchError{Provider: provider, Query: q, Err: err}
			}
			return nil, err
		}
		if merge {
			results = append(results, r...)
		} else {
			results = r
		}
	}
	return results, nil
}

func nonBlank(queries []SearchQuery) []string {
	var out []string
	for _, q := range queries {
		if strings.TrimSpace(q.SearchQuery) != "" {
			out = append(out, q.SearchQuery)
		}
	}
	return out
}

// searchWeb runs the section's queries and stores the formatted results as
// source text.
func (p *SectionPipeline) searchWeb(ctx context.Context, s *SectionState, sink progress.Sink) error {
	if p.Config.MaxSearchDepth > 0 && s.SearchIterations >= p.Config.MaxSearchDepth {
		p.logger().Info("Search depth reached, writing from existing sources", "section", s.Section.Name, "iterations", s.SearchIterations)
		return nil
	}

	queries := nonBlank(s.SearchQueries)
	if len(queries) == 0 {
		return &search.SearchError{Provider: p.Config.SearchAPI, Err: search.ErrNoQueries}
	}

	sink.Notify(progress.At(fmt.Sprintf("Searching for section %s: %s", s.Section.Name, strings.Join(queries, ", ")), 40))

	results, err := runQueries(ctx, p.Search, p.Config.SearchAPI, queries, p.Config.Options(), p.Config.MergeQueryResults)
	if err != nil {
		return err
	}

	s.Results = results
	s.SourceStr = search.Format(results)
	s.SearchIterations++

	if p.Sources != nil && len(results) > 0 {
		if err := p.Sources.Record(ctx, p.RunID, s.Topic, s.Section, results); err != nil {
			p.logger().Warn("Failed to archive sources", "section", s.Section.Name, "error", err)
		}
	}

	sink.Notify(progress.At(fmt.Sprintf("Found %d search results for section: %s", len(results), s.Section.Name), 60))
	return nil
}
