package progress

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Encoder writes events as newline-delimited JSON, flushing after each line
// when the writer supports it.
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) Encode(ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	b = append(b, '\n')
	if _, err := e.w.Write(b); err != nil {
		return err
	}
	if f, ok := e.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// Decoder reads a newline-delimited event stream. Partial lines are
// buffered until their newline arrives, blank lines are skipped, and events
// of unknown type are ignored.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next recognised event, or io.EOF at the end of the stream.
func (d *Decoder) Next() (Event, error) {
	for {
		line, err := d.r.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			var ev Event
			if jerr := json.Unmarshal(bytes.TrimSpace(line), &ev); jerr != nil {
				if err == nil {
					return Event{}, fmt.Errorf("decode event: %w", jerr)
				}
				// A torn final line is treated as the end of the stream.
				if errors.Is(err, io.EOF) {
					return Event{}, io.ErrUnexpectedEOF
				}
				return Event{}, err
			}
			if ev.Known() {
				return ev, nil
			}
		}
		if err != nil {
			return Event{}, err
		}
	}
}

// ErrIncomplete is returned by Collect when the stream ends without a
// terminal event.
var ErrIncomplete = errors.New("progress stream ended without a terminal event")

// Collect reads events until a terminal one, calling onProgress for each
// progress event. A complete event with a blank report is a failure.
func Collect(d *Decoder, onProgress func(Event)) (string, error) {
	for {
		ev, err := d.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", ErrIncomplete
			}
			return "", err
		}

		switch ev.Type {
		case TypeProgress:
			if onProgress != nil {
				onProgress(ev)
			}
		case TypeComplete:
			if len(bytes.TrimSpace([]byte(ev.Report))) == 0 {
				return "", errors.New("report stream completed with an empty report")
			}
			return ev.Report, nil
		case TypeError:
			return "", fmt.Errorf("report failed: %s", ev.Error)
		}
	}
}
