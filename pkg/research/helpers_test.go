package research

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/search"
)

// System prompt markers used to route scripted replies.
const (
	markPlanQueries    = "helping to plan a report"
	markPlanSections   = "I want a plan for a report"
	markSectionQueries = "crafting targeted web search queries"
	markSectionWriter  = "Write one section of a research report"
	markFinalWriter    = "synthesizes information"
)

type call struct {
	Model    string
	Provider string
	System   string
	User     string
}

type reply func(c call) (string, error)

func text(s string) reply {
	return func(call) (string, error) { return s, nil }
}

func fail(err error) reply {
	return func(call) (string, error) { return "", err }
}

// scripted answers Invoke by matching the system prompt against markers.
type scripted struct {
	mu     sync.Mutex
	rules  map[string]reply
	calls  []call
	counts map[string]int
}

func newScripted() *scripted {
	return &scripted{rules: map[string]reply{}, counts: map[string]int{}}
}

func (s *scripted) on(marker string, r reply) *scripted {
	s.rules[marker] = r
	return s
}

func (s *scripted) Invoke(_ context.Context, model, provider, systemPrompt, userPrompt string) (string, error) {
	c := call{Model: model, Provider: provider, System: systemPrompt, User: userPrompt}

	s.mu.Lock()
	s.calls = append(s.calls, c)
	var r reply
	for marker, rule := range s.rules {
		if strings.Contains(systemPrompt, marker) {
			r = rule
			s.counts[marker]++
			break
		}
	}
	s.mu.Unlock()

	if r == nil {
		return "", fmt.Errorf("no scripted reply for prompt %.40q", systemPrompt)
	}
	return r(c)
}

func (s *scripted) count(marker string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[marker]
}

func (s *scripted) callsFor(marker string) []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []call
	for _, c := range s.calls {
		if strings.Contains(c.System, marker) {
			out = append(out, c)
		}
	}
	return out
}

// fakeSearch answers from a per-query table and records the queries asked.
type fakeSearch struct {
	mu      sync.Mutex
	queries []string
	fn      func(query string) ([]search.SearchResult, error)
}

func (f *fakeSearch) Search(_ context.Context, provider, query string, _ search.Options) ([]search.SearchResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.fn == nil {
		return resultsFor(query), nil
	}
	return f.fn(query)
}

func (f *fakeSearch) asked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func resultsFor(query string) []search.SearchResult {
	return []search.SearchResult{{
		Title:   "About " + query,
		URL:     "https://example.com/" + strings.ReplaceAll(query, " ", "-"),
		Content: "Findings on " + query,
	}}
}

func testConfig() config.Report {
	cfg := config.DefaultReport()
	cfg.SearchAPI = "mock"
	cfg.PlannerProvider = "fake"
	cfg.WriterProvider = "fake"
	return cfg
}

const planReply = `Here is the plan:
{"sections": [
  {"name": "Introduction", "description": "Overview", "research": false, "content": ""},
  {"name": "History", "description": "How it started", "research": true, "content": ""},
  {"name": "Outlook", "description": "What comes next", "research": true, "content": ""},
  {"name": "Conclusion", "description": "Summary", "research": false, "content": ""}
]}`

// reportScript wires a generator that completes a full report run.
func reportScript() *scripted {
	return newScripted().
		on(markPlanQueries, text(`{"queries": [{"search_query": "plan one"}, {"search_query": "plan two"}]}`)).
		on(markPlanSections, text(planReply)).
		on(markSectionQueries, func(c call) (string, error) {
			name := between(c.System, "<Section name>\n", "\n</Section name>")
			return fmt.Sprintf(`[{"search_query": "%s basics"}, {"search_query": "%s details"}]`, name, name), nil
		}).
		on(markSectionWriter, func(c call) (string, error) {
			name := between(c.System, "<Section name>\n", "\n</Section name>")
			return fmt.Sprintf(`{"content": "Body of %s."}`, name), nil
		}).
		on(markFinalWriter, func(c call) (string, error) {
			name := between(c.System, "<Section name>\n", "\n</Section name>")
			return fmt.Sprintf(`{"content": "Summary for %s."}`, name), nil
		})
}

func between(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	s = s[i+len(start):]
	j := strings.Index(s, end)
	if j < 0 {
		return ""
	}
	return s[:j]
}
