package research

import (
	"errors"
	"fmt"
)

var (
	// ErrPlanning is matched by every PlanningError.
	ErrPlanning = errors.New("report planning failed")
	// ErrEmptyReport means compilation produced no text.
	ErrEmptyReport = errors.New("compiled report is empty")
)

// PlanningError reports a planner stage that yielded nothing usable.
type PlanningError struct {
	Stage string
	Err   error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrPlanning, e.Stage, e.Err)
}

func (e *PlanningError) Unwrap() []error {
	return []error{ErrPlanning, e.Err}
}
