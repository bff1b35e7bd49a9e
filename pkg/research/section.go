package research

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/progress"
	"github.com/mikeboe/deep-research/pkg/search"
	"github.com/mikeboe/deep-research/pkg/workflow"
)

// Searcher runs one query on a named provider.
type Searcher interface {
	Search(ctx context.Context, provider, query string, opts search.Options) ([]search.SearchResult, error)
}

// SourceRecorder keeps the search results a section was written from.
type SourceRecorder interface {
	Record(ctx context.Context, runID, topic string, section Section, results []search.SearchResult) error
}

// Section sub-pipeline states.
const (
	StateGenerateQueries workflow.State = "generate_queries"
	StateSearchWeb       workflow.State = "search_web"
	StateWriteSection    workflow.State = "write_section"
)

// SectionPipeline researches and writes one research section:
// generate_queries -> search_web -> write_section.
type SectionPipeline struct {
	Config    config.Report
	Generator clients.Generator
	Search    Searcher
	Sources   SourceRecorder
	Logger    *slog.Logger
	RunID     string
}

// Run executes the sub-pipeline on a fresh copy of in and returns the final
// section state. Progress percentages sent to sink are local to the section
// (0-100).
func (p *SectionPipeline) Run(ctx context.Context, in SectionState, sink progress.Sink) (SectionState, error) {
	sink = progress.OrDiscard(sink)
	logger := p.logger()

	ctx, span := otel.Tracer("deep-research/research").Start(ctx, "section")
	span.SetAttributes(attribute.String("section.name", in.Section.Name))
	defer span.End()

	s := in
	s.CompletedSections = cloneSections(in.CompletedSections)
	s.SearchQueries = append([]SearchQuery(nil), in.SearchQueries...)

	m := workflow.New[SectionState]("section", StateGenerateQueries)
	m.Logger = logger
	m.Add(StateGenerateQueries, func(ctx context.Context, s *SectionState) (workflow.State, error) {
		if err := p.generateQueries(ctx, s, sink); err != nil {
			return "", err
		}
		return StateSearchWeb, nil
	})
	m.Add(StateSearchWeb, func(ctx context.Context, s *SectionState) (workflow.State, error) {
		if err := p.searchWeb(ctx, s, sink); err != nil {
			return "", err
		}
		return StateWriteSection, nil
	})
	m.Add(StateWriteSection, func(ctx context.Context, s *SectionState) (workflow.State, error) {
		if err := p.writeSection(ctx, s, sink); err != nil {
			return "", err
		}
		return workflow.End, nil
	})

	if err := m.Run(ctx, &s); err != nil {
		span.RecordError(err)
		return s, err
	}
	return s, nil
}

func (p *SectionPipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}
