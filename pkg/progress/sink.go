package progress

import "sync"

// Update is a single progress notification. Percent is optional.
type Update struct {
	Message string
	Percent *int
}

// Pct returns a pointer to p for use in Update.Percent.
func Pct(p int) *int {
	return &p
}

// At builds an update carrying a percentage.
func At(message string, percent int) Update {
	return Update{Message: message, Percent: Pct(percent)}
}

// Note builds an update without a percentage.
func Note(message string) Update {
	return Update{Message: message}
}

// Sink receives progress updates. Implementations must not block the caller
// for long and must be safe for concurrent use.
type Sink interface {
	Notify(u Update)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Update)

func (f SinkFunc) Notify(u Update) { f(u) }

// Discard drops every update.
var Discard Sink = SinkFunc(func(Update) {})

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

// Window is a [Start, End) percent range allocated to one phase.
type Window struct {
	Start int
	End   int
}

// Scale maps a phase-local percentage (0-100) into the window.
func (w Window) Scale(p int) int {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return w.Start + p*(w.End-w.Start)/100
}

// Split divides the window evenly into n consecutive sub-windows. The last
// sub-window absorbs any rounding remainder.
func (w Window) Split(n int) []Window {
	if n <= 0 {
		return nil
	}
	out := make([]Window, n)
	span := w.End - w.Start
	for i := 0; i < n; i++ {
		out[i] = Window{Start: w.Start + i*span/n, End: w.Start + (i+1)*span/n}
	}
	out[n-1].End = w.End
	return out
}

// Scoped returns a sink that maps phase-local percentages into w before
// forwarding to parent. Updates without a percentage pass through unchanged.
func Scoped(parent Sink, w Window) Sink {
	parent = OrDiscard(parent)
	return SinkFunc(func(u Update) {
		if u.Percent != nil {
			u.Percent = Pct(w.Scale(*u.Percent))
		}
		parent.Notify(u)
	})
}

// Monotonic wraps a sink so forwarded percentages never decrease.
type Monotonic struct {
	mu   sync.Mutex
	last int
	next Sink
}

func NewMonotonic(next Sink) *Monotonic {
	return &Monotonic{next: OrDiscard(next)}
}

func (m *Monotonic) Notify(u Update) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u.Percent != nil {
		p := *u.Percent
		if p < m.last {
			p = m.last
		}
		if p > 100 {
			p = 100
		}
		m.last = p
		u.Percent = Pct(p)
	}
	m.next.Notify(u)
}

// Last returns the highest percentage forwarded so far.
func (m *Monotonic) Last() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Recorder keeps every update it receives.
type Recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *Recorder) Notify(u Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

// Updates returns a copy of the recorded updates.
func (r *Recorder) Updates() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates...)
}

// Percents returns the recorded percentages in order.
func (r *Recorder) Percents() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, u := range r.updates {
		if u.Percent != nil {
			out = append(out, *u.Percent)
		}
	}
	return out
}
