package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy for the gateway. Policy errors are terminal for the
// proposed action and never retried; execution errors carry partial output
// alongside them in the gateway result.
var (
	ErrPolicyDenied       = errors.New("command denied by security policy")
	ErrPathEscape         = errors.New("path escapes project root")
	ErrMalformedCommand   = errors.New("command could not be tokenized")
	ErrExecutionTimedOut  = errors.New("execution timed out")
	ErrExecutionCancelled = errors.New("execution cancelled")
	ErrProcessError       = errors.New("process failed to start or crashed")
	ErrToolNotExposed     = errors.New("tool not exposed to this backend")
)

// DeniedError carries the full Decision alongside the ErrPolicyDenied
// sentinel so callers can report the reason to the backend.
type DeniedError struct {
	Decision Decision
}

func (e *DeniedError) Error() string {
	if e.Decision.Detail != "" {
		return fmt.Sprintf("denied: %s (%s): %s", e.Decision.Canonical, e.Decision.Reason, e.Decision.Detail)
	}
	return fmt.Sprintf("denied: %s (%s)", e.Decision.Canonical, e.Decision.Reason)
}

func (e *DeniedError) Unwrap() error { return ErrPolicyDenied }
