// Package jsonparse pulls JSON values out of loosely formatted model output.
package jsonparse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// ErrParse is matched by every ParseError.
var ErrParse = errors.New("json parse failed")

// ParseError reports text that holds no usable JSON candidate.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrParse, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrParse, e.Reason)
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrParse, e.Err}
	}
	return []error{ErrParse}
}

// Extract returns the first bracketed JSON candidate in text.
//
// The candidate starts at whichever of '{' or '[' appears first (an object wins
// a tie) and ends where the nesting depth of that bracket type returns to zero.
// The other bracket type and string quoting are not tracked.
func Extract(text string) (string, error) {
	objStart := strings.IndexByte(text, '{')
	arrStart := strings.IndexByte(text, '[')

	if objStart == -1 && arrStart == -1 {
		return "", &ParseError{Reason: "no opening bracket"}
	}

	open, close, start := byte('{'), byte('}'), objStart
	if arrStart != -1 && (objStart == -1 || arrStart < objStart) {
		open, close, start = '[', ']', arrStart
	}

	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	return "", &ParseError{Reason: fmt.Sprintf("unbalanced %q", open)}
}

// Parse extracts the first JSON candidate from text and decodes it leniently
// (JSON5: trailing commas, unquoted keys, single quotes, comments).
func Parse(text string) (any, error) {
	candidate, err := Extract(text)
	if err != nil {
		return nil, err
	}

	var v any
	if err := json5.Unmarshal([]byte(candidate), &v); err != nil {
		return nil, &ParseError{Reason: "invalid candidate", Err: err}
	}
	return v, nil
}
