package research

import (
	"encoding/json"
	"strings"

	"github.com/mikeboe/deep-research/pkg/search"
)

// Section is one named unit of the report.
type Section struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Plan        string `json:"plan,omitempty"`
	Research    bool   `json:"research"`
	Content     string `json:"content"`
}

// HasContent reports whether the section carries non-blank content.
func (s Section) HasContent() bool {
	return strings.TrimSpace(s.Content) != ""
}

// SearchQuery is one query produced for a section.
type SearchQuery struct {
	SearchQuery string `json:"search_query"`
}

// ReportState is the working set of one report run.
type ReportState struct {
	RunID                string `json:"run_id,omitempty"`
	Topic                string `json:"topic"`
	FeedbackOnReportPlan string `json:"feedback_on_report_plan,omitempty"`
	// Sections is the plan and the authoritative report order.
	Sections []Section `json:"sections"`
	// CompletedSections holds at most one entry per case-folded name.
	CompletedSections          []Section `json:"completed_sections"`
	ReportSectionsFromResearch string    `json:"report_sections_from_research,omitempty"`
	FinalReport                string    `json:"final_report,omitempty"`
	PlanIterations             int       `json:"plan_iterations"`
	// SearchIterations counts searches run by every section so far.
	SearchIterations int `json:"search_iterations"`
}

// Clone returns a copy that shares no slices with s.
func (s ReportState) Clone() ReportState {
	s.Sections = cloneSections(s.Sections)
	s.CompletedSections = cloneSections(s.CompletedSections)
	return s
}

// SectionState is the working set of one section sub-pipeline run.
type SectionState struct {
	Topic                      string
	Section                    Section
	SearchIterations           int
	SearchQueries              []SearchQuery
	SourceStr                  string
	Results                    []search.SearchResult
	ReportSectionsFromResearch string
	CompletedSections          []Section
}

func sectionKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MergeSection returns a new list with s replacing the entry of the same
// case-insensitive name, or appended when there is none. list is not
// modified.
func MergeSection(list []Section, s Section) []Section {
	out := cloneSections(list)
	key := sectionKey(s.Name)
	for i := range out {
		if sectionKey(out[i].Name) == key {
			out[i] = s
			return out
		}
	}
	return append(out, s)
}

// MergeSections merges each of add into list in order.
func MergeSections(list []Section, add ...Section) []Section {
	out := cloneSections(list)
	for _, s := range add {
		out = MergeSection(out, s)
	}
	return out
}

// FindSection looks up a section by case-insensitive name.
func FindSection(list []Section, name string) (Section, bool) {
	key := sectionKey(name)
	for _, s := range list {
		if sectionKey(s.Name) == key {
			return s, true
		}
	}
	return Section{}, false
}

// FormatSections renders sections as indented JSON for prompt context.
func FormatSections(sections []Section) string {
	if sections == nil {
		sections = []Section{}
	}
	b, err := json.MarshalIndent(sections, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

func cloneSections(list []Section) []Section {
	if list == nil {
		return nil
	}
	return append(make([]Section, 0, len(list)), list...)
}

func researchSections(sections []Section) []Section {
	var out []Section
	for _, s := range sections {
		if s.Research {
			out = append(out, s)
		}
	}
	return out
}
