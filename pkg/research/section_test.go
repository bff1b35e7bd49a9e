package research

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/jsonparse"
	"github.com/mikeboe/deep-research/pkg/progress"
	"github.com/mikeboe/deep-research/pkg/search"
)

type recordedSources struct {
	runID   string
	section string
	count   int
}

func (r *recordedSources) Record(_ context.Context, runID, _ string, section Section, results []search.SearchResult) error {
	r.runID = runID
	r.section = section.Name
	r.count += len(results)
	return nil
}

func sectionInput() SectionState {
	return SectionState{
		Topic:   "Solar power",
		Section: Section{Name: "History", Description: "How it started", Research: true},
	}
}

func TestSectionPipelineRun(t *testing.T) {
	gen := reportScript()
	searcher := &fakeSearch{}
	sources := &recordedSources{}
	rec := &progress.Recorder{}

	p := &SectionPipeline{Config: testConfig(), Generator: gen, Search: searcher, Sources: sources, RunID: "run-1"}
	in := sectionInput()
	out, err := p.Run(context.Background(), in, rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"History basics", "History details"}, searcher.asked())
	assert.Equal(t, 1, out.SearchIterations)
	assert.Equal(t, "Body of History.", out.Section.Content)
	require.Len(t, out.CompletedSections, 1)
	assert.Equal(t, "Body of History.", out.CompletedSections[0].Content)

	// Only the last query's results survive.
	assert.Equal(t, search.Format(resultsFor("History details")), out.SourceStr)
	assert.NotContains(t, out.SourceStr, "History basics")

	assert.Equal(t, []int{10, 25, 40, 60, 75, 100}, rec.Percents())
	assert.Equal(t, "run-1", sources.runID)
	assert.Equal(t, "History", sources.section)
	assert.Equal(t, 1, sources.count)

	assert.Empty(t, in.CompletedSections, "input state must not change")

	writes := gen.callsFor(markSectionWriter)
	require.Len(t, writes, 1)
	assert.Contains(t, writes[0].User, "Findings on History details")
	assert.Equal(t, "claude-3-5-sonnet-latest", writes[0].Model)

	queries := gen.callsFor(markSectionQueries)
	require.Len(t, queries, 1)
	assert.Equal(t, "claude-3-5-sonnet-latest", queries[0].Model)
}

func TestSectionPipelineMergesQueryResults(t *testing.T) {
	cfg := testConfig()
	cfg.MergeQueryResults = true

	p := &SectionPipeline{Config: cfg, Generator: reportScript(), Search: &fakeSearch{}}
	out, err := p.Run(context.Background(), sectionInput(), nil)
	require.NoError(t, err)

	require.Len(t, out.Results, 2)
	assert.Contains(t, out.SourceStr, "Search result 2")
	assert.Contains(t, out.SourceStr, "Findings on History basics")
}

func TestSectionPipelineWriterFailureUsesPlaceholder(t *testing.T) {
	gen := reportScript().on(markSectionWriter, fail(errors.New("model overloaded")))

	p := &SectionPipeline{Config: testConfig(), Generator: gen, Search: &fakeSearch{}}
	out, err := p.Run(context.Background(), sectionInput(), nil)
	require.NoError(t, err)

	assert.Equal(t, "No information could be found for History.", out.Section.Content)
	require.Len(t, out.CompletedSections, 1)
	assert.Equal(t, out.Section.Content, out.CompletedSections[0].Content)
}

func TestSectionPipelineSearchFailure(t *testing.T) {
	boom := errors.New("rate limited")
	searcher := &fakeSearch{fn: func(string) ([]search.SearchResult, error) { return nil, boom }}

	p := &SectionPipeline{Config: testConfig(), Generator: reportScript(), Search: searcher}
	_, err := p.Run(context.Background(), sectionInput(), nil)

	var se *search.SearchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "History basics", se.Query)
	assert.ErrorIs(t, err, boom)
}

func TestSectionPipelineKeepsQueriesWhenNoneGenerated(t *testing.T) {
	gen := reportScript().on(markSectionQueries, text(`{"queries": []}`))
	searcher := &fakeSearch{}

	in := sectionInput()
	in.SearchQueries = []SearchQuery{{SearchQuery: "existing query"}}

	p := &SectionPipeline{Config: testConfig(), Generator: gen, Search: searcher}
	out, err := p.Run(context.Background(), in, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"existing query"}, searcher.asked())
	assert.Equal(t, in.SearchQueries, out.SearchQueries)
}

func TestSectionPipelineNoQueries(t *testing.T) {
	gen := reportScript().on(markSectionQueries, text(`{"queries": []}`))

	p := &SectionPipeline{Config: testConfig(), Generator: gen, Search: &fakeSearch{}}
	_, err := p.Run(context.Background(), sectionInput(), nil)
	assert.ErrorIs(t, err, search.ErrNoQueries)
}

func TestSectionPipelineUnparseableQueries(t *testing.T) {
	gen := reportScript().on(markSectionQueries, text("I cannot help with that."))

	p := &SectionPipeline{Config: testConfig(), Generator: gen, Search: &fakeSearch{}}
	_, err := p.Run(context.Background(), sectionInput(), nil)
	assert.ErrorIs(t, err, jsonparse.ErrParse)
}

func TestSectionPipelineDepthGuard(t *testing.T) {
	gen := reportScript()
	searcher := &fakeSearch{}

	in := sectionInput()
	in.SearchIterations = testConfig().MaxSearchDepth

	p := &SectionPipeline{Config: testConfig(), Generator: gen, Search: searcher}
	out, err := p.Run(context.Background(), in, nil)
	require.NoError(t, err)

	assert.Empty(t, searcher.asked())
	assert.Equal(t, in.SearchIterations, out.SearchIterations)
	writes := gen.callsFor(markSectionWriter)
	require.Len(t, writes, 1)
	assert.Contains(t, writes[0].User, noSourcesText)
}

func TestSectionPipelineCancelledWriter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := reportScript().on(markSectionWriter, func(call) (string, error) {
		cancel()
		return "", context.Canceled
	})

	p := &SectionPipeline{Config: testConfig(), Generator: gen, Search: &fakeSearch{}}
	_, err := p.Run(ctx, sectionInput(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
