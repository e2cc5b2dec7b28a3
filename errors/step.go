package errors

import "fmt"

// StepError identifies the goal and artifact step that failed.
// The underlying tool diagnostics have already been passed through to the
// terminal, so the message only names where the failure happened.
type StepError struct {
	Goal     string // e.g. "build", empty when Produce was called directly
	Artifact string // e.g. "release/imix.bin"
	Err      error
}

func (e *StepError) Error() string {
	if e.Goal == "" {
		return fmt.Sprintf("%s: %v", e.Artifact, e.Err)
	}
	return fmt.Sprintf("goal %s: %s: %v", e.Goal, e.Artifact, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// WithGoal attaches a goal name to every StepError in err's chain.
// Errors that are not StepErrors are wrapped with the goal name.
func WithGoal(err error, goal string) error {
	if err == nil {
		return nil
	}
	var step *StepError
	if As(err, &step) {
		step.Goal = goal
		return err
	}
	return Wrapf(err, "goal %s", goal)
}
