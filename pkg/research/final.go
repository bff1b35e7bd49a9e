package research

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/metrics"
)

// FinalSectionTask is one independent write of a non-research section.
// Completed is a private snapshot; tasks never share it.
type FinalSectionTask struct {
	Topic           string
	Section         Section
	ResearchContext string
	Completed       []Section
}

// FinalSectionTasks builds a task for every non-research section that has
// no completed entry yet, in plan order.
func FinalSectionTasks(s ReportState) []FinalSectionTask {
	var tasks []FinalSectionTask
	for _, section := range s.Sections {
		if section.Research {
			continue
		}
		if _, done := FindSection(s.CompletedSections, section.Name); done {
			continue
		}
		tasks = append(tasks, FinalSectionTask{
			Topic:           s.Topic,
			Section:         section,
			ResearchContext: s.ReportSectionsFromResearch,
			Completed:       cloneSections(s.CompletedSections),
		})
	}
	return tasks
}

// FinalWriter writes sections that need no research from the completed
// research sections.
type FinalWriter struct {
	Config    config.Report
	Generator clients.Generator
	Logger    *slog.Logger
}

// Write produces the section for one task. A failed generation call yields
// placeholder content; only cancellation is returned as an error.
func (w *FinalWriter) Write(ctx context.Context, task FinalSectionTask) (Section, error) {
	researchContext := task.ResearchContext
	if researchContext == "" {
		researchContext = noResearchText
	}
	system := fmt.Sprintf(finalSectionWriterInstructions, task.Topic, task.Section.Name, task.Section.Description, researchContext)

	section := task.Section
	reply, err := w.Generator.Invoke(ctx, w.Config.WriterModel, w.Config.WriterProvider, system, finalSectionRequest)
	if err != nil {
		if ctx.Err() != nil {
			return Section{}, ctx.Err()
		}
		logger := w.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("Final section generation failed, using placeholder", "section", task.Section.Name, "error", err)
		metrics.SectionsProcessed.WithLabelValues("final", "placeholder").Inc()
		section.Content = notFoundContent(task.Section.Name)
		return section, nil
	}

	section.Content = extractContent(reply)
	metrics.SectionsProcessed.WithLabelValues("final", "written").Inc()
	return section, nil
}
