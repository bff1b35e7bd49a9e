package jsonparse

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"object with prose", "Here you go:\n{\"a\": {\"b\": 2}}\nHope that helps!", `{"a": {"b": 2}}`},
		{"array first", `text [1, {"x": 2}] {"y": 3}`, `[1, {"x": 2}]`},
		{"object first", `{"q": [1,2]} [3]`, `{"q": [1,2]}`},
		{"code fence", "```json\n[\"a\", \"b\"]\n```", `["a", "b"]`},
		{"other bracket ignored", `{"a": "]]]"}`, `{"a": "]]]"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractFailures(t *testing.T) {
	for _, input := range []string{"", "no json here", "{a: [1,2}", "[[1]"} {
		_, err := Extract(input)
		require.Error(t, err, input)
		assert.True(t, errors.Is(err, ErrParse), input)

		var pe *ParseError
		assert.True(t, errors.As(err, &pe), input)
	}
}

func TestParseIgnoresSurroundingText(t *testing.T) {
	candidates := []string{
		`{"queries": [{"search_query": "go generics"}, {"search_query": "go iterators"}]}`,
		`["alpha", "beta", "gamma"]`,
		`{"nested": {"deep": [1, 2, {"x": null}]}, "flag": true}`,
	}
	wrappers := [][2]string{
		{"", ""},
		{"Sure! Here is the JSON:\n", "\nLet me know if you need more."},
		{"```json\n", "\n```"},
		{"prefix text ", " suffix text"},
	}

	for _, candidate := range candidates {
		var want any
		require.NoError(t, json.Unmarshal([]byte(candidate), &want))

		for _, w := range wrappers {
			got, err := Parse(w[0] + candidate + w[1])
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}
}

func TestParseLenient(t *testing.T) {
	got, err := Parse(`{"sections": [{"name": "Intro",},],}`)
	require.NoError(t, err)

	obj, ok := got.(map[string]any)
	require.True(t, ok)
	sections, ok := obj["sections"].([]any)
	require.True(t, ok)
	assert.Len(t, sections, 1)
}

func TestParseUnbalanced(t *testing.T) {
	_, err := Parse("{a: [1,2}")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
}

func TestParseInvalidCandidate(t *testing.T) {
	_, err := Parse("{this is : not json at all }")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
}
