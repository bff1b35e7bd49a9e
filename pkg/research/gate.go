package research

import (
	"context"
	"strings"
)

// Decision is the feedback gate's routing outcome.
type Decision int

const (
	// ProcessSections runs the section orchestrator.
	ProcessSections Decision = iota
	// Replan sends the feedback back to the planner.
	Replan
	// SkipToCompile compiles immediately; the plan has no research sections.
	SkipToCompile
)

func (d Decision) String() string {
	switch d {
	case Replan:
		return "replan"
	case SkipToCompile:
		return "skip_to_compile"
	default:
		return "process_sections"
	}
}

// Decide routes the run after planning. It does no I/O.
func Decide(s ReportState) Decision {
	if strings.TrimSpace(s.FeedbackOnReportPlan) != "" {
		return Replan
	}
	for _, sec := range s.Sections {
		if sec.Research {
			return ProcessSections
		}
	}
	return SkipToCompile
}

// PlanReviewer returns feedback on a plan. Empty feedback approves it.
type PlanReviewer interface {
	Review(ctx context.Context, topic string, sections []Section) (string, error)
}

// PlanReviewerFunc adapts a function to PlanReviewer.
type PlanReviewerFunc func(ctx context.Context, topic string, sections []Section) (string, error)

func (f PlanReviewerFunc) Review(ctx context.Context, topic string, sections []Section) (string, error) {
	return f(ctx, topic, sections)
}
