package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agentgate/internal/domain"
)

// ToolRegistry is the view of the tool registry a session needs.
type ToolRegistry interface {
	Get(name string) (domain.Tool, bool)
	Definitions() []domain.ToolDefinition
}

// Session mediates every action one backend proposes. Each action walks a
// fixed lifecycle: capability filter, then the tool's own policy and
// boundary checks, then execution. Dispatch always returns a structured
// result; a misbehaving tool never takes the session down.
type Session struct {
	ID string

	caps        *CapabilitySet
	registry    ToolRegistry
	auditLogger domain.AuditLogger
	auditLog    bool
	logger      *slog.Logger
}

// Tools returns the definitions exposed to this session's backend.
func (s *Session) Tools() []domain.ToolDefinition {
	return s.caps.Exposed(s.registry.Definitions())
}

// Dispatch runs one proposed action to a terminal state.
func (s *Session) Dispatch(ctx context.Context, action domain.Action) (result domain.ActionResult) {
	ctx = domain.WithSessionID(ctx, s.ID)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tool panicked", "session", s.ID, "tool", action.Tool, "panic", r)
			result = domain.ActionResult{
				State:  domain.StateProcessError,
				Detail: fmt.Sprintf("tool %s panicked: %v", action.Tool, r),
			}
		}
	}()

	if !s.caps.IsExposed(action.Tool) {
		s.logFiltered(ctx, action.Tool)
		return domain.ActionResult{
			State:  domain.StateFilteredOut,
			Detail: fmt.Sprintf("tool %s is not exposed to this backend", action.Tool),
		}
	}

	tool, ok := s.registry.Get(action.Tool)
	if !ok {
		s.logFiltered(ctx, action.Tool)
		return domain.ActionResult{
			State:  domain.StateFilteredOut,
			Detail: fmt.Sprintf("unknown tool: %s", action.Tool),
		}
	}

	output, err := tool.Execute(ctx, action.Args)
	if err != nil {
		return s.resultFromError(action.Tool, output, err)
	}
	return domain.ActionResult{State: domain.StateCompleted, Output: output}
}

// resultFromError maps a tool error onto the action lifecycle. Policy and
// boundary violations are denials; timeout and cancellation keep their
// distinct states; anything else is a process error with the cause in
// Detail.
func (s *Session) resultFromError(toolName, output string, err error) domain.ActionResult {
	res := domain.ActionResult{Output: output, Detail: err.Error()}

	var denied *domain.DeniedError
	switch {
	case errors.As(err, &denied):
		res.State = domain.StateDenied
		res.Decision = &denied.Decision
	case errors.Is(err, domain.ErrPolicyDenied),
		errors.Is(err, domain.ErrPathEscape),
		errors.Is(err, domain.ErrMalformedCommand),
		errors.Is(err, domain.ErrToolNotExposed):
		res.State = domain.StateDenied
	case errors.Is(err, domain.ErrExecutionTimedOut):
		res.State = domain.StateTimedOut
	case errors.Is(err, domain.ErrExecutionCancelled):
		res.State = domain.StateCancelled
	default:
		res.State = domain.StateProcessError
	}

	s.logger.Warn("action did not complete",
		"session", s.ID,
		"tool", toolName,
		"state", res.State,
		"err", err,
	)
	return res
}

func (s *Session) logFiltered(ctx context.Context, toolName string) {
	if !s.auditLog || s.auditLogger == nil {
		return
	}
	err := s.auditLogger.LogAudit(ctx, domain.AuditEntry{
		SessionID: s.ID,
		Action:    "filtered",
		ToolName:  toolName,
		Verdict:   string(domain.StateFilteredOut),
	})
	if err != nil {
		s.logger.Error("cannot write audit entry", "err", err)
	}
}
