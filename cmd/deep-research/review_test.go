package main

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/research"
)

func TestConsoleReviewer(t *testing.T) {
	sections := []research.Section{
		{Name: "Introduction", Description: "Overview"},
		{Name: "History", Description: "How it started", Research: true},
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "approve", input: "\n", want: ""},
		{name: "feedback", input: "  add a section on costs  \n", want: "add a section on costs"},
		{name: "eof approves", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			r := &consoleReviewer{in: bufio.NewReader(strings.NewReader(tt.input)), out: &out}

			got, err := r.Review(context.Background(), "Solar power", sections)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), " 1.  Introduction: Overview")
			assert.Contains(t, out.String(), " 2.* History: How it started")
		})
	}
}

func TestConsoleReviewerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &consoleReviewer{in: bufio.NewReader(strings.NewReader("x\n")), out: &bytes.Buffer{}}
	_, err := r.Review(ctx, "Solar power", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
