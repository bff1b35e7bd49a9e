package research

import (
	"context"
	"fmt"

	"github.com/mikeboe/deep-research/pkg/jsonparse"
	"github.com/mikeboe/deep-research/pkg/progress"
)

// generateQueries asks the writer model for search queries about the
// current section. An empty result leaves s.SearchQueries untouched.
func (p *SectionPipeline) generateQueries(ctx context.Context, s *SectionState, sink progress.Sink) error {
	sink.Notify(progress.At(fmt.Sprintf("Generating search queries for section: %s", s.Section.Name), 10))

	system := fmt.Sprintf(queryWriterInstructions, s.Topic, s.Section.Name, s.Section.Description, p.Config.NumberOfQueries)
	sources := s.SourceStr
	if sources == "" {
		sources = "None yet."
	}

	reply, err := p.Generator.Invoke(ctx, p.Config.WriterModel, p.Config.WriterProvider, system, fmt.Sprintf(sectionQueriesRequest, sources))
	if err != nil {
		return fmt.Errorf("generate queries for %q: %w", s.Section.Name, err)
	}

	v, err := jsonparse.Parse(reply)
	if err != nil {
		return fmt.Errorf("parse queries for %q: %w", s.Section.Name, err)
	}

	queries := extractQueries(v)
	if len(queries) == 0 {
		p.logger().Warn("No queries extracted", "section", s.Section.Name)
		return nil
	}

	s.SearchQueries = queries
	sink.Notify(progress.At(fmt.Sprintf("Generated %d search queries for section: %s", len(queries), s.Section.Name), 25))
	return nil
}
