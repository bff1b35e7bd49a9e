package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/jsonparse"
	"github.com/mikeboe/deep-research/pkg/progress"
	"github.com/mikeboe/deep-research/pkg/search"
)

var (
	errNoQueries  = errors.New("no search queries extracted")
	errNoSections = errors.New("no sections extracted")
)

// Planner produces the ordered section plan for a topic.
type Planner struct {
	Config    config.Report
	Generator clients.Generator
	Search    Searcher
	Logger    *slog.Logger
}

// Plan runs the planning queries through search and asks the planner model
// for the report sections. Every failure is a PlanningError.
func (p *Planner) Plan(ctx context.Context, topic, feedback string, sink progress.Sink) ([]Section, error) {
	sink = progress.OrDiscard(sink)
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// 1. Query-writer prompt
	sink.Notify(progress.At("Generating search queries for the report plan", 15))
	system := fmt.Sprintf(reportPlannerQueryWriterInstructions, topic, p.Config.ReportStructure, p.Config.NumberOfQueries)

	// 2. Generate queries
	reply, err := p.Generator.Invoke(ctx, p.Config.PlannerModel, p.Config.PlannerProvider, system, planQueriesRequest)
	if err != nil {
		return nil, &PlanningError{Stage: "generate queries", Err: err}
	}

	// 3. Parse queries
	v, err := jsonparse.Parse(reply)
	if err != nil {
		return nil, &PlanningError{Stage: "parse queries", Err: err}
	}
	queries := nonBlank(extractQueries(v))
	if len(queries) == 0 {
		return nil, &PlanningError{Stage: "parse queries", Err: errNoQueries}
	}
	logger.Info("Generated planning queries", "queries", queries)
	sink.Notify(progress.At(fmt.Sprintf("Generated %d search queries", len(queries)), 20))

	// 4. Search
	sink.Notify(progress.At(fmt.Sprintf("Searching the web: %s", strings.Join(queries, ", ")), 25))
	results, err := runQueries(ctx, p.Search, p.Config.SearchAPI, queries, p.Config.Options(), p.Config.MergeQueryResults)
	if err != nil {
		return nil, &PlanningError{Stage: "search", Err: err}
	}
	searchContext := search.Format(results)

	// 5. Planning prompt
	sink.Notify(progress.At("Assembling the report plan", 30))
	if strings.TrimSpace(feedback) == "" {
		feedback = defaultFeedback
	}
	system = fmt.Sprintf(reportPlannerInstructions, topic, p.Config.ReportStructure, searchContext, feedback)

	// 6. Generate sections
	reply, err = p.Generator.Invoke(ctx, p.Config.PlannerModel, p.Config.PlannerProvider, system, planSectionsRequest)
	if err != nil {
		return nil, &PlanningError{Stage: "generate sections", Err: err}
	}

	// 7. Parse sections
	v, err = jsonparse.Parse(reply)
	if err != nil {
		return nil, &PlanningError{Stage: "parse sections", Err: err}
	}
	sections := extractSections(v)
	if len(sections) == 0 {
		return nil, &PlanningError{Stage: "parse sections", Err: errNoSections}
	}

	logger.Info("Report plan ready", "sections", len(sections), "research", len(researchSections(sections)))
	return sections, nil
}
