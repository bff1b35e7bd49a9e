package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/metrics"
	"github.com/mikeboe/deep-research/pkg/progress"
	"github.com/mikeboe/deep-research/pkg/workflow"
)

// Report graph states.
const (
	StateGeneratePlan    workflow.State = "generate_report_plan"
	StateHumanFeedback   workflow.State = "human_feedback"
	StateProcessSections workflow.State = "process_sections"
	StateGatherCompleted workflow.State = "gather_completed_sections"
	StateWriteFinal      workflow.State = "write_final_sections"
	StateCompileReport   workflow.State = "compile_final_report"
)

const (
	sectionsWindowStart   = 30
	sectionsWindowEnd     = 80
	defaultMaxPlanRetries = 3
)

// Engine runs the report graph: plan, review, research sections, write the
// remaining sections in parallel, compile.
type Engine struct {
	Config    config.Report
	Generator clients.Generator
	Search    Searcher
	Reviewer  PlanReviewer
	Sources   SourceRecorder
	Logger    *slog.Logger
	// FinalConcurrency caps parallel final-section writes. 0 means no cap.
	FinalConcurrency int
	// OnStateUpdate receives a snapshot of the run before each state and
	// once more after a successful compile.
	OnStateUpdate func(state workflow.State, snapshot ReportState)
}

func NewEngine(cfg config.Report, gen clients.Generator, searcher Searcher) *Engine {
	return &Engine{
		Config:    cfg,
		Generator: gen,
		Search:    searcher,
		Logger:    slog.Default(),
	}
}

// Run generates a report for topic. Initial feedback, if any, is applied to
// the first plan.
func (e *Engine) Run(ctx context.Context, topic, feedback string) (string, error) {
	state := &ReportState{
		RunID:                uuid.NewString(),
		Topic:                topic,
		FeedbackOnReportPlan: feedback,
	}
	return e.Execute(ctx, state)
}

// Execute runs the graph over state. A state that already carries a plan
// resumes at the feedback gate, and completed sections are not redone.
func (e *Engine) Execute(ctx context.Context, state *ReportState) (string, error) {
	logger := e.logger()
	if state.RunID == "" {
		state.RunID = uuid.NewString()
	}
	logger = logger.With("run_id", state.RunID)

	ctx, span := otel.Tracer("deep-research/research").Start(ctx, "report")
	span.SetAttributes(attribute.String("report.topic", state.Topic), attribute.String("report.run_id", state.RunID))
	defer span.End()

	started := time.Now()
	metrics.ReportsStarted.Inc()

	sink := progress.NewMonotonic(e.Config.Progress)
	sink.Notify(progress.At(fmt.Sprintf("Starting research on: %s", state.Topic), 5))
	logger.Info("Starting report", "topic", state.Topic)

	m := e.graph(sink, logger, state.RunID)
	if len(state.Sections) > 0 {
		m.Start = StateHumanFeedback
	}
	m.OnEnter = func(_ context.Context, st workflow.State) {
		span.AddEvent(string(st), trace.WithAttributes(
			attribute.Int("report.sections", len(state.Sections)),
			attribute.Int("report.completed", len(state.CompletedSections)),
		))
		if e.OnStateUpdate != nil {
			e.OnStateUpdate(st, state.Clone())
		}
	}

	if err := m.Run(ctx, state); err != nil {
		state.FinalReport = ""
		metrics.ReportsCompleted.WithLabelValues("failed").Inc()
		metrics.ReportDuration.WithLabelValues("failed").Observe(time.Since(started).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Report failed", "error", err)
		return "", err
	}

	metrics.ReportsCompleted.WithLabelValues("ok").Inc()
	metrics.ReportDuration.WithLabelValues("ok").Observe(time.Since(started).Seconds())
	metrics.PlanIterations.Observe(float64(state.PlanIterations))
	if e.OnStateUpdate != nil {
		e.OnStateUpdate(workflow.End, state.Clone())
	}

	sink.Notify(progress.At("Report complete", 100))
	logger.Info("Final report generated", "length", len(state.FinalReport))
	return state.FinalReport, nil
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Engine) maxPlanIterations() int {
	if e.Config.MaxPlanIterations > 0 {
		return e.Config.MaxPlanIterations
	}
	return defaultMaxPlanRetries
}

func (e *Engine) graph(sink progress.Sink, logger *slog.Logger, runID string) *workflow.Machine[ReportState] {
	planner := &Planner{Config: e.Config, Generator: e.Generator, Search: e.Search, Logger: logger}
	orchestrator := &Orchestrator{
		Pipeline: &SectionPipeline{
			Config:    e.Config,
			Generator: e.Generator,
			Search:    e.Search,
			Sources:   e.Sources,
			Logger:    logger,
			RunID:     runID,
		},
		Logger: logger,
	}
	writer := &FinalWriter{Config: e.Config, Generator: e.Generator, Logger: logger}

	m := workflow.New[ReportState]("report", StateGeneratePlan)
	m.Logger = logger

	m.Add(StateGeneratePlan, func(ctx context.Context, s *ReportState) (workflow.State, error) {
		sections, err := planner.Plan(ctx, s.Topic, s.FeedbackOnReportPlan, sink)
		if err != nil {
			return "", err
		}
		s.Sections = sections
		s.FeedbackOnReportPlan = ""
		s.PlanIterations++
		return StateHumanFeedback, nil
	})

	m.Add(StateHumanFeedback, func(ctx context.Context, s *ReportState) (workflow.State, error) {
		limit := e.maxPlanIterations()
		if e.Reviewer != nil && strings.TrimSpace(s.FeedbackOnReportPlan) == "" && s.PlanIterations < limit {
			feedback, err := e.Reviewer.Review(ctx, s.Topic, cloneSections(s.Sections))
			if err != nil {
				return "", fmt.Errorf("plan review: %w", err)
			}
			s.FeedbackOnReportPlan = strings.TrimSpace(feedback)
		}

		decision := Decide(*s)
		if decision == Replan && s.PlanIterations >= limit {
			logger.Warn("Plan iteration limit reached, keeping current plan", "iterations", s.PlanIterations)
			s.FeedbackOnReportPlan = ""
			decision = Decide(*s)
		}
		logger.Info("Plan decision", "decision", decision.String())

		switch decision {
		case Replan:
			sink.Notify(progress.Note("Revising the report plan with feedback"))
			return StateGeneratePlan, nil
		case SkipToCompile:
			return StateCompileReport, nil
		default:
			return StateProcessSections, nil
		}
	})

	m.Add(StateProcessSections, func(ctx context.Context, s *ReportState) (workflow.State, error) {
		window := progress.Window{Start: sectionsWindowStart, End: sectionsWindowEnd}
		if err := orchestrator.ProcessSections(ctx, s, window, sink); err != nil {
			return "", err
		}
		return StateGatherCompleted, nil
	})

	m.Add(StateGatherCompleted, func(_ context.Context, s *ReportState) (workflow.State, error) {
		s.ReportSectionsFromResearch = FormatSections(s.CompletedSections)
		sink.Notify(progress.At(fmt.Sprintf("Gathered %d completed sections", len(s.CompletedSections)), 82))
		if len(FinalSectionTasks(*s)) == 0 {
			return StateCompileReport, nil
		}
		return StateWriteFinal, nil
	})

	m.Add(StateWriteFinal, func(ctx context.Context, s *ReportState) (workflow.State, error) {
		tasks := FinalSectionTasks(*s)
		sink.Notify(progress.At(fmt.Sprintf("Writing %d final sections", len(tasks)), 85))

		written, err := workflow.FanOut(ctx, tasks, e.FinalConcurrency, writer.Write)
		if err != nil {
			return "", err
		}
		s.CompletedSections = MergeSections(s.CompletedSections, written...)
		sink.Notify(progress.At("Final sections written", 90))
		return StateCompileReport, nil
	})

	m.Add(StateCompileReport, func(_ context.Context, s *ReportState) (workflow.State, error) {
		sink.Notify(progress.At("Compiling final report", 95))
		report, err := Compile(s.Sections, s.CompletedSections)
		if err != nil {
			return "", err
		}
		s.FinalReport = report
		return workflow.End, nil
	})

	return m
}
