package config

import (
	"strconv"
	"strings"

	"github.com/mikeboe/deep-research/pkg/progress"
)

// DefaultReportStructure is the section template handed to the planner.
const DefaultReportStructure = `Use this structure to create a report on the user-provided topic:

1. Introduction (no research needed)
   - Brief overview of the topic area

2. Main Body Sections:
   - Each section should focus on a sub-topic of the user-provided topic

3. Conclusion
   - Aim for 1 structural element (either a list or table) that distills the main body sections
   - Provide a concise summary of the report`

// Search provider identifiers accepted from the environment.
var SearchAPIs = []string{"tavily", "duckduckgo", "arxiv", "mock"}

// Report is the resolved configuration of one report run. It is passed by
// value; Resolve hands out copies of its maps.
type Report struct {
	ReportStructure   string         `mapstructure:"report_structure" json:"report_structure"`
	NumberOfQueries   int            `mapstructure:"number_of_queries" json:"number_of_queries"`
	MaxSearchDepth    int            `mapstructure:"max_search_depth" json:"max_search_depth"`
	PlannerProvider   string         `mapstructure:"planner_provider" json:"planner_provider"`
	PlannerModel      string         `mapstructure:"planner_model" json:"planner_model"`
	WriterProvider    string         `mapstructure:"writer_provider" json:"writer_provider"`
	WriterModel       string         `mapstructure:"writer_model" json:"writer_model"`
	SearchAPI         string         `mapstructure:"search_api" json:"search_api"`
	SearchOptions     map[string]any `mapstructure:"search_options" json:"search_options,omitempty"`
	MergeQueryResults bool           `mapstructure:"merge_query_results" json:"merge_query_results"`
	MaxPlanIterations int            `mapstructure:"max_plan_iterations" json:"max_plan_iterations"`

	Progress progress.Sink `mapstructure:"-" json:"-"`
}

func DefaultReport() Report {
	return Report{
		ReportStructure:   DefaultReportStructure,
		NumberOfQueries:   2,
		MaxSearchDepth:    2,
		PlannerProvider:   "anthropic",
		PlannerModel:      "claude-3-7-sonnet-latest",
		WriterProvider:    "anthropic",
		WriterModel:       "claude-3-5-sonnet-latest",
		SearchAPI:         "tavily",
		MergeQueryResults: false,
		MaxPlanIterations: 3,
	}
}

// Overrides are caller-supplied values. Nil fields are unset.
type Overrides struct {
	ReportStructure   *string        `json:"report_structure,omitempty"`
	NumberOfQueries   *int           `json:"number_of_queries,omitempty"`
	MaxSearchDepth    *int           `json:"max_search_depth,omitempty"`
	PlannerProvider   *string        `json:"planner_provider,omitempty"`
	PlannerModel      *string        `json:"planner_model,omitempty"`
	WriterProvider    *string        `json:"writer_provider,omitempty"`
	WriterModel       *string        `json:"writer_model,omitempty"`
	SearchAPI         *string        `json:"search_api,omitempty"`
	SearchOptions     map[string]any `json:"search_options,omitempty"`
	MergeQueryResults *bool          `json:"merge_query_results,omitempty"`
	MaxPlanIterations *int           `json:"max_plan_iterations,omitempty"`

	Progress progress.Sink `json:"-"`
}

// EnvSnapshot turns os.Environ-style entries into a map.
func EnvSnapshot(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// Resolve builds a run configuration. Each field takes the override if set,
// else a usable environment value, else the default.
func Resolve(defaults Report, env map[string]string, o Overrides) Report {
	r := defaults
	r.SearchOptions = copyMap(defaults.SearchOptions)

	// 1. Environment
	if v := strings.TrimSpace(env["REPORT_STRUCTURE"]); v != "" {
		r.ReportStructure = v
	}
	if n, ok := envInt(env, "NUMBER_OF_QUERIES"); ok && n > 0 {
		r.NumberOfQueries = n
	}
	if n, ok := envInt(env, "MAX_SEARCH_DEPTH"); ok && n > 0 {
		r.MaxSearchDepth = n
	}
	if n, ok := envInt(env, "MAX_PLAN_ITERATIONS"); ok && n > 0 {
		r.MaxPlanIterations = n
	}
	envString(env, "PLANNER_PROVIDER", &r.PlannerProvider)
	envString(env, "PLANNER_MODEL", &r.PlannerModel)
	envString(env, "WRITER_PROVIDER", &r.WriterProvider)
	envString(env, "WRITER_MODEL", &r.WriterModel)
	if v := strings.ToLower(strings.TrimSpace(env["SEARCH_API"])); validSearchAPI(v) {
		r.SearchAPI = v
	}
	if b, err := strconv.ParseBool(strings.TrimSpace(env["MERGE_QUERY_RESULTS"])); err == nil {
		r.MergeQueryResults = b
	}

	// 2. Explicit overrides
	setString(&r.ReportStructure, o.ReportStructure)
	setInt(&r.NumberOfQueries, o.NumberOfQueries)
	setInt(&r.MaxSearchDepth, o.MaxSearchDepth)
	setInt(&r.MaxPlanIterations, o.MaxPlanIterations)
	setString(&r.PlannerProvider, o.PlannerProvider)
	setString(&r.PlannerModel, o.PlannerModel)
	setString(&r.WriterProvider, o.WriterProvider)
	setString(&r.WriterModel, o.WriterModel)
	setString(&r.SearchAPI, o.SearchAPI)
	if o.SearchOptions != nil {
		r.SearchOptions = copyMap(o.SearchOptions)
	}
	if o.MergeQueryResults != nil {
		r.MergeQueryResults = *o.MergeQueryResults
	}
	if o.Progress != nil {
		r.Progress = o.Progress
	}

	return r
}

// Options returns a copy of the search options.
func (r Report) Options() map[string]any {
	return copyMap(r.SearchOptions)
}

func validSearchAPI(v string) bool {
	for _, api := range SearchAPIs {
		if v == api {
			return true
		}
	}
	return false
}

func envString(env map[string]string, key string, dst *string) {
	if v := strings.TrimSpace(env[key]); v != "" {
		*dst = v
	}
}

func envInt(env map[string]string, key string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(env[key]))
	return n, err == nil
}

func setString(dst *string, v *string) {
	if v != nil && strings.TrimSpace(*v) != "" {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil && *v > 0 {
		*dst = *v
	}
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
