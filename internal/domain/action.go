package domain

// ActionState is the terminal (or in-flight) state of one proposed action.
// An action never re-enters evaluation once a decision is made.
type ActionState string

const (
	StateProposed     ActionState = "proposed"
	StateFilteredOut  ActionState = "filtered_out"
	StateEvaluating   ActionState = "evaluating"
	StateDenied       ActionState = "denied"
	StateExecuting    ActionState = "executing"
	StateCompleted    ActionState = "completed"
	StateTimedOut     ActionState = "timed_out"
	StateCancelled    ActionState = "cancelled"
	StateProcessError ActionState = "process_error"
)

// Terminal reports whether the state ends the action's lifecycle.
func (s ActionState) Terminal() bool {
	switch s {
	case StateFilteredOut, StateDenied, StateCompleted, StateTimedOut, StateCancelled, StateProcessError:
		return true
	}
	return false
}

// Action is one proposed tool invocation from a backend.
type Action struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// ActionResult is the structured outcome returned to the backend adapter.
type ActionResult struct {
	State    ActionState `json:"state"`
	Decision *Decision   `json:"decision,omitempty"`
	Output   string      `json:"output,omitempty"`
	Detail   string      `json:"detail,omitempty"` // error text for non-completed states
}
