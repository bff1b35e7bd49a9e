package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	research := []Section{{Name: "Intro"}, {Name: "Body", Research: true}}
	writeOnly := []Section{{Name: "Intro"}, {Name: "Conclusion"}}

	tests := []struct {
		name  string
		state ReportState
		want  Decision
	}{
		{"research sections", ReportState{Sections: research}, ProcessSections},
		{"feedback wins", ReportState{Sections: research, FeedbackOnReportPlan: "add pricing"}, Replan},
		{"blank feedback ignored", ReportState{Sections: research, FeedbackOnReportPlan: "  "}, ProcessSections},
		{"nothing to research", ReportState{Sections: writeOnly}, SkipToCompile},
		{"empty plan", ReportState{}, SkipToCompile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.state))
		})
	}
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "process_sections", ProcessSections.String())
	assert.Equal(t, "replan", Replan.String())
	assert.Equal(t, "skip_to_compile", SkipToCompile.String())
}
