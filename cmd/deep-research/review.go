package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mikeboe/deep-research/pkg/research"
)

// consoleReviewer shows the plan and reads one line of feedback. An empty
// line approves the plan.
type consoleReviewer struct {
	in  *bufio.Reader
	out io.Writer
}

func (r *consoleReviewer) Review(ctx context.Context, topic string, sections []research.Section) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprintf(r.out, "\nProposed plan for %q:\n", topic)
	for i, s := range sections {
		marker := " "
		if s.Research {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%2d.%s %s: %s\n", i+1, marker, s.Name, s.Description)
	}
	fmt.Fprint(r.out, "(* = researched) Press enter to approve or type feedback: ")

	line, err := r.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
