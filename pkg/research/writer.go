package research

import (
	"context"
	"fmt"

	"github.com/mikeboe/deep-research/pkg/metrics"
	"github.com/mikeboe/deep-research/pkg/progress"
)

// notFoundContent is written when a section's generation call fails.
func notFoundContent(name string) string {
	return fmt.Sprintf("No information could be found for %s.", name)
}

// failedContent is written when a section's research fails outright.
func failedContent(name string) string {
	return fmt.Sprintf("An error occurred while gathering information for %s.", name)
}

// writeSection turns the gathered sources into section prose. A failed
// generation call does not fail the step: the section gets placeholder
// content instead.
func (p *SectionPipeline) writeSection(ctx context.Context, s *SectionState, sink progress.Sink) error {
	sink.Notify(progress.At(fmt.Sprintf("Writing section: %s", s.Section.Name), 75))

	system := fmt.Sprintf(sectionWriterInstructions, s.Topic, s.Section.Name, s.Section.Description)
	sources := s.SourceStr
	if sources == "" {
		sources = noSourcesText
	}

	section := s.Section
	reply, err := p.Generator.Invoke(ctx, p.Config.WriterModel, p.Config.WriterProvider, system, fmt.Sprintf(sectionWriterRequest, s.Section.Name, sources))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger().Error("Section generation failed, using placeholder", "section", s.Section.Name, "error", err)
		metrics.SectionsProcessed.WithLabelValues("research", "placeholder").Inc()
		section.Content = notFoundContent(s.Section.Name)
	} else {
		section.Content = extractContent(reply)
		metrics.SectionsProcessed.WithLabelValues("research", "written").Inc()
	}

	s.Section = section
	s.CompletedSections = MergeSection(s.CompletedSections, section)

	sink.Notify(progress.At(fmt.Sprintf("Finished section: %s", s.Section.Name), 100))
	return nil
}
