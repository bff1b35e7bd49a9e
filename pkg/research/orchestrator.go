package research

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mikeboe/deep-research/pkg/metrics"
	"github.com/mikeboe/deep-research/pkg/progress"
)

// Orchestrator runs the section sub-pipeline over every research section,
// one at a time, in plan order.
type Orchestrator struct {
	Pipeline *SectionPipeline
	Logger   *slog.Logger
}

// ProcessSections fills state.CompletedSections for research sections.
// Progress moves through window, split evenly between the research sections.
// A section whose sub-pipeline fails gets placeholder content; only
// cancellation stops the loop.
func (o *Orchestrator) ProcessSections(ctx context.Context, state *ReportState, window progress.Window, sink progress.Sink) error {
	sink = progress.OrDiscard(sink)
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	todo := researchSections(state.Sections)
	if len(todo) == 0 {
		sink.Notify(progress.At("No sections require research", window.End))
		return nil
	}

	windows := window.Split(len(todo))
	for i, section := range todo {
		if err := ctx.Err(); err != nil {
			return err
		}
		w := windows[i]

		if done, ok := FindSection(state.CompletedSections, section.Name); ok && done.HasContent() {
			logger.Info("Section already completed, skipping", "section", section.Name)
			metrics.SectionsProcessed.WithLabelValues("research", "skipped").Inc()
			sink.Notify(progress.At(fmt.Sprintf("Section %d/%d already completed: %s", i+1, len(todo), section.Name), w.End))
			continue
		}

		sink.Notify(progress.At(fmt.Sprintf("Processing section %d/%d: %s", i+1, len(todo), section.Name), w.Start))

		in := SectionState{
			Topic:                      state.Topic,
			Section:                    section,
			ReportSectionsFromResearch: state.ReportSectionsFromResearch,
			CompletedSections:          cloneSections(state.CompletedSections),
		}

		out, err := o.Pipeline.Run(ctx, in, progress.Scoped(sink, w))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("Section failed, using placeholder", "section", section.Name, "error", err)
			metrics.SectionsProcessed.WithLabelValues("research", "failed").Inc()

			placeholder := section
			placeholder.Content = failedContent(section.Name)
			state.CompletedSections = MergeSection(state.CompletedSections, placeholder)
			sink.Notify(progress.At(fmt.Sprintf("Could not research section: %s", section.Name), w.End))
			continue
		}

		state.SearchIterations += out.SearchIterations
		if out.Section.HasContent() {
			state.CompletedSections = MergeSection(state.CompletedSections, out.Section)
		}
		state.CompletedSections = MergeSections(state.CompletedSections, out.CompletedSections...)
		sink.Notify(progress.At(fmt.Sprintf("Completed section %d/%d: %s", i+1, len(todo), section.Name), w.End))
	}
	return nil
}
