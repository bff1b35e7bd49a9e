package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeSectionReplacesByFoldedName(t *testing.T) {
	list := []Section{{Name: "Intro", Content: "old"}, {Name: "Body", Content: "b"}}

	merged := MergeSection(list, Section{Name: " intro ", Content: "new"})

	require.Len(t, merged, 2)
	assert.Equal(t, "new", merged[0].Content)
	assert.Equal(t, "Body", merged[1].Name)
	assert.Equal(t, "old", list[0].Content, "input slice must not change")
}

func TestMergeSectionAppends(t *testing.T) {
	list := []Section{{Name: "Intro"}}
	merged := MergeSection(list, Section{Name: "Body"})

	require.Len(t, merged, 2)
	assert.Equal(t, "Body", merged[1].Name)
	assert.Len(t, list, 1)
}

func TestMergeSectionsKeepsOneEntryPerName(t *testing.T) {
	merged := MergeSections(nil,
		Section{Name: "A", Content: "1"},
		Section{Name: "a", Content: "2"},
		Section{Name: "B", Content: "3"},
	)

	require.Len(t, merged, 2)
	assert.Equal(t, "2", merged[0].Content)
	assert.Equal(t, "3", merged[1].Content)
}

func TestFindSection(t *testing.T) {
	list := []Section{{Name: "Key Findings", Content: "x"}}

	s, ok := FindSection(list, "key findings")
	require.True(t, ok)
	assert.Equal(t, "x", s.Content)

	_, ok = FindSection(list, "missing")
	assert.False(t, ok)
}

func TestReportStateClone(t *testing.T) {
	s := ReportState{
		Topic:             "t",
		Sections:          []Section{{Name: "A"}},
		CompletedSections: []Section{{Name: "A", Content: "x"}},
	}

	c := s.Clone()
	c.Sections[0].Name = "changed"
	c.CompletedSections[0].Content = "changed"

	assert.Equal(t, "A", s.Sections[0].Name)
	assert.Equal(t, "x", s.CompletedSections[0].Content)
}

func TestFormatSections(t *testing.T) {
	assert.Equal(t, "[]", FormatSections(nil))
	assert.Contains(t, FormatSections([]Section{{Name: "A", Content: "x"}}), `"name": "A"`)
}

func TestHasContent(t *testing.T) {
	assert.False(t, Section{Content: "  \n"}.HasContent())
	assert.True(t, Section{Content: "x"}.HasContent())
}
