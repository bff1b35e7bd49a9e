package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/jsonparse"
)

func parsed(t *testing.T, reply string) any {
	t.Helper()
	v, err := jsonparse.Parse(reply)
	require.NoError(t, err)
	return v
}

func TestExtractQueriesShapes(t *testing.T) {
	want := []SearchQuery{{SearchQuery: "a"}, {SearchQuery: "b"}}

	cases := map[string]string{
		"bare array":      `[{"search_query": "a"}, {"search_query": "b"}]`,
		"wrapped":         `{"queries": [{"search_query": "a"}, {"search_query": "b"}]}`,
		"strings":         `["a", "b"]`,
		"camel case":      `{"queries": [{"searchQuery": "a"}, {"query": "b"}]}`,
		"other field":     `{"items": [{"text": "a"}, {"q": "b"}]}`,
		"prose around it": "Sure!\n```json\n{\"queries\": [\"a\", \"b\"]}\n```",
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, extractQueries(parsed(t, reply)))
		})
	}
}

func TestExtractQueriesSingleValue(t *testing.T) {
	assert.Equal(t, []SearchQuery{{SearchQuery: "solo"}}, extractQueries(parsed(t, `{"search_query": "solo"}`)))
	assert.Equal(t, []SearchQuery{{SearchQuery: "solo"}}, extractQueries("solo"))
}

func TestExtractQueriesNothingUsable(t *testing.T) {
	assert.Empty(t, extractQueries(parsed(t, `{"queries": []}`)))
	assert.Empty(t, extractQueries(parsed(t, `[" ", ""]`)))
	assert.Empty(t, extractQueries(nil))
}

func TestExtractSectionsDefaults(t *testing.T) {
	sections := extractSections(parsed(t, `{"sections": [{"title": "Background"}, {"name": "Wrap up", "research": "false", "description": "End"}]}`))

	require.Len(t, sections, 2)
	assert.Equal(t, Section{
		Name:        "Background",
		Description: "Information about Background",
		Plan:        "Collect information about Background",
		Research:    true,
	}, sections[0])
	assert.Equal(t, "End", sections[1].Description)
	assert.False(t, sections[1].Research)
}

func TestExtractSectionsShapes(t *testing.T) {
	bare := extractSections(parsed(t, `[{"name": "A", "research": true}, {"name": "B", "research": false}]`))
	wrapped := extractSections(parsed(t, `{"sections": [{"name": "A", "research": true}, {"name": "B", "research": false}]}`))
	other := extractSections(parsed(t, `{"notes": [1, 2], "report": [{"name": "A", "research": true}, {"name": "B", "research": false}]}`))

	require.Len(t, bare, 2)
	assert.Equal(t, bare, wrapped)
	assert.Equal(t, bare, other)
	assert.Equal(t, []Section{{Name: "Solo", Description: "Information about Solo", Plan: "Collect information about Solo", Research: true}},
		extractSections(parsed(t, `{"name": "Solo"}`)))
	assert.Empty(t, extractSections(parsed(t, `{"answer": 42}`)))

	named := extractSections(parsed(t, `{"sections": ["Introduction", "Body"]}`))
	require.Len(t, named, 2)
	assert.Equal(t, "Introduction", named[0].Name)
	assert.Equal(t, "Body", named[1].Name)
	assert.Equal(t, named, extractSections(parsed(t, `["Introduction", "Body"]`)))

	headed := extractSections(parsed(t, `{"sections": [{"heading": "Intro", "research": false}]}`))
	require.Len(t, headed, 1)
	assert.Equal(t, untitledSection, headed[0].Name)
	assert.False(t, headed[0].Research)

	mixed := extractSections(parsed(t, `{"sections": [{"name": "A"}, 7, null, "  "]}`))
	require.Len(t, mixed, 4)
	assert.Equal(t, "A", mixed[0].Name)
	for _, s := range mixed[1:] {
		assert.Equal(t, untitledSection, s.Name)
		assert.True(t, s.Research)
	}
}

func TestTruthy(t *testing.T) {
	for _, v := range []any{true, 1.0, "yes", "true", "anything"} {
		assert.True(t, truthy(v), "%v", v)
	}
	for _, v := range []any{nil, false, 0.0, "", "false", "No", "0"} {
		assert.False(t, truthy(v), "%v", v)
	}
}

func TestExtractContent(t *testing.T) {
	assert.Equal(t, "Body text", extractContent(`{"content": "Body text"}`))
	assert.Equal(t, "From array", extractContent(`[{"content": "From array"}]`))
	assert.Equal(t, "Plain markdown with no JSON.", extractContent("Plain markdown with no JSON."))
	assert.Equal(t, "[\n  1,\n  2\n]", extractContent(`[1, 2]`))

	raw := `{"other": "field"}`
	assert.Equal(t, raw, extractContent(raw))
}
