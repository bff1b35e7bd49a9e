// Package workflow runs named-state machines over a caller-owned state value.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// State names one step of a machine.
type State string

// End is the terminal state.
const End State = "__end__"

// ErrTooManySteps is returned when a machine exceeds its step limit.
var ErrTooManySteps = errors.New("workflow exceeded step limit")

// Step does the work of one state and returns the state to run next, or End.
type Step[S any] func(ctx context.Context, s *S) (State, error)

// Machine is a set of named steps with a start state.
type Machine[S any] struct {
	Name     string
	Start    State
	MaxSteps int
	Logger   *slog.Logger

	// OnEnter, when set, runs before each state.
	OnEnter func(ctx context.Context, state State)

	steps map[State]Step[S]
}

func New[S any](name string, start State) *Machine[S] {
	return &Machine[S]{
		Name:     name,
		Start:    start,
		MaxSteps: 50,
		Logger:   slog.Default(),
		steps:    make(map[State]Step[S]),
	}
}

// Add registers the step for a state.
func (m *Machine[S]) Add(state State, step Step[S]) *Machine[S] {
	m.steps[state] = step
	return m
}

// States lists registered states in no particular order.
func (m *Machine[S]) States() []State {
	out := make([]State, 0, len(m.steps))
	for st := range m.steps {
		out = append(out, st)
	}
	return out
}

// Run executes steps from Start until one returns End. The context is checked
// before every step.
func (m *Machine[S]) Run(ctx context.Context, s *S) error {
	current := m.Start
	for n := 0; current != End; n++ {
		if m.MaxSteps > 0 && n >= m.MaxSteps {
			return fmt.Errorf("%s: %w (%d)", m.Name, ErrTooManySteps, m.MaxSteps)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		step, ok := m.steps[current]
		if !ok {
			return fmt.Errorf("%s: unknown state %q", m.Name, current)
		}

		if m.OnEnter != nil {
			m.OnEnter(ctx, current)
		}
		if m.Logger != nil {
			m.Logger.Debug("Entering state", "machine", m.Name, "state", current)
		}

		next, err := step(ctx, s)
		if err != nil {
			return fmt.Errorf("%s: state %s: %w", m.Name, current, err)
		}
		current = next
	}
	return nil
}
