package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidTableName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"Valid standard", "report_sources", true},
		{"Valid with numbers", "sources2", true},
		{"Valid short", "a", true},
		{"Valid max length", "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_", true},
		{"Invalid start with number", "1sources", false},
		{"Invalid special chars", "report-sources", false},
		{"Invalid space", "report sources", false},
		{"Invalid SQL injection", "x; DROP TABLE report_jobs", false},
		{"Invalid empty", "", false},
		{"Invalid too long", "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789__", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isValidTableName(tt.input))
		})
	}
}

func TestNewPGVectorStoreRejectsBadName(t *testing.T) {
	_, err := NewPGVectorStore(nil, "bad-name")
	assert.Error(t, err)
}

func TestBuildMetadataQuery(t *testing.T) {
	tests := []struct {
		name      string
		filter    Filter
		wantQuery string
		wantArgs  []string
		wantErr   bool
	}{
		{
			name:      "Empty filter",
			filter:    Filter{},
			wantQuery: "TRUE",
		},
		{
			name:      "Single key",
			filter:    Filter{"run_id": "r1"},
			wantQuery: "metadata @> $1",
			wantArgs:  []string{`{"run_id":"r1"}`},
		},
		{
			name:      "Implicit AND in key order",
			filter:    Filter{"section": "History", "run_id": "r1"},
			wantQuery: "metadata @> $1 AND metadata @> $2",
			wantArgs:  []string{`{"run_id":"r1"}`, `{"section":"History"}`},
		},
		{
			name: "$or operator",
			filter: Filter{"$or": []any{
				map[string]any{"section": "A"},
				map[string]any{"section": "B"},
			}},
			wantQuery: "((metadata @> $1) OR (metadata @> $2))",
			wantArgs:  []string{`{"section":"A"}`, `{"section":"B"}`},
		},
		{
			name:      "$not operator",
			filter:    Filter{"$not": map[string]any{"topic": "x"}},
			wantQuery: "NOT (metadata @> $1)",
			wantArgs:  []string{`{"topic":"x"}`},
		},
		{
			name: "Nested operators",
			filter: Filter{"$or": []any{
				map[string]any{"a": 1},
				map[string]any{"$and": []any{
					map[string]any{"b": 2},
					map[string]any{"c": 3},
				}},
			}},
			wantQuery: "((metadata @> $1) OR (((metadata @> $2) AND (metadata @> $3))))",
			wantArgs:  []string{`{"a":1}`, `{"b":2}`, `{"c":3}`},
		},
		{
			name:      "Empty list ignored",
			filter:    Filter{"$or": []any{}},
			wantQuery: "TRUE",
		},
		{
			name:      "Operator with empty object",
			filter:    Filter{"$and": []any{map[string]any{}}},
			wantQuery: "((TRUE))",
		},
		{name: "Error: $or not a list", filter: Filter{"$or": "invalid"}, wantErr: true},
		{name: "Error: $and item not an object", filter: Filter{"$and": []any{"invalid"}}, wantErr: true},
		{name: "Error: $not not an object", filter: Filter{"$not": []any{"invalid"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var args []any
			got, err := buildMetadataQuery(tt.filter, &args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuery, got)

			require.Len(t, args, len(tt.wantArgs))
			for i, want := range tt.wantArgs {
				assert.JSONEq(t, want, string(args[i].([]byte)))
			}
		})
	}
}

func TestBuildMetadataQueryContinuesNumbering(t *testing.T) {
	args := []any{"embedding"}
	got, err := buildMetadataQuery(Filter{"run_id": "r1"}, &args)
	require.NoError(t, err)
	assert.Equal(t, "metadata @> $2", got)
	assert.Len(t, args, 2)
}
