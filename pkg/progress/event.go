// Package progress carries pipeline progress notifications to the boundary.
package progress

// Event types on the wire.
const (
	TypeProgress = "progress"
	TypeComplete = "complete"
	TypeError    = "error"
)

// Event is one unit of the progress stream. Complete and error events are
// terminal.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Percent *int   `json:"percent,omitempty"`
	Report  string `json:"report,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Terminal reports whether no further events follow e.
func (e Event) Terminal() bool {
	return e.Type == TypeComplete || e.Type == TypeError
}

// Known reports whether e has a recognised type.
func (e Event) Known() bool {
	switch e.Type {
	case TypeProgress, TypeComplete, TypeError:
		return true
	}
	return false
}

// ProgressEvent converts an update to its wire form.
func ProgressEvent(u Update) Event {
	return Event{Type: TypeProgress, Message: u.Message, Percent: u.Percent}
}

// CompleteEvent is the terminal success event.
func CompleteEvent(report string) Event {
	return Event{Type: TypeComplete, Report: report}
}

// ErrorEvent is the terminal failure event.
func ErrorEvent(err error) Event {
	return Event{Type: TypeError, Error: err.Error()}
}
