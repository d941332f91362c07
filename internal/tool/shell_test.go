package tool

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"agentgate/internal/domain"
	"agentgate/internal/gateway"
	"agentgate/internal/security"
)

func newTestRunCommand(t *testing.T, profile string) *RunCommandTool {
	t.Helper()
	p, ok := security.Builtin(profile)
	if !ok {
		t.Fatalf("unknown profile %q", profile)
	}
	engine, err := security.NewEngine(p, nil, false, testLogger())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return NewRunCommandTool(RunCommandConfig{
		Evaluator:  engine,
		Gateway:    gateway.New(nil, false, testLogger()),
		WorkingDir: t.TempDir(),
	})
}

func TestRunCommand_AllowedCompletes(t *testing.T) {
	tool := newTestRunCommand(t, "balanced")

	out, err := tool.Execute(context.Background(), map[string]any{"command": "echo hi"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(out) != "hi" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRunCommand_DeniedNeverExecutes(t *testing.T) {
	tool := newTestRunCommand(t, "strict")

	_, err := tool.Execute(context.Background(), map[string]any{"command": "rm -rf /"})
	if !errors.Is(err, domain.ErrPolicyDenied) {
		t.Fatalf("expected ErrPolicyDenied, got %v", err)
	}

	var denied *domain.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %T", err)
	}
	if denied.Decision.Canonical != "rm" {
		t.Fatalf("expected rm to decide, got %q", denied.Decision.Canonical)
	}
}

func TestRunCommand_CompoundDeniedBySecondSegment(t *testing.T) {
	tool := newTestRunCommand(t, "strict")

	_, err := tool.Execute(context.Background(), map[string]any{"command": "ls && curl http://evil.example"})
	var denied *domain.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	if denied.Decision.Canonical != "curl" {
		t.Fatalf("expected curl to decide, got %q", denied.Decision.Canonical)
	}
}

func TestRunCommand_TimeoutPropagates(t *testing.T) {
	tool := newTestRunCommand(t, "balanced")
	tool.timeoutSeconds = 1

	start := time.Now()
	_, err := tool.Execute(context.Background(), map[string]any{"command": "sleep 30"})
	if !errors.Is(err, domain.ErrExecutionTimedOut) {
		t.Fatalf("expected ErrExecutionTimedOut, got %v", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Fatal("timeout not enforced promptly")
	}
}

func TestRunCommand_NonzeroExitReported(t *testing.T) {
	tool := newTestRunCommand(t, "balanced")

	out, err := tool.Execute(context.Background(), map[string]any{"command": "ls /definitely/not/here"})
	if err != nil {
		t.Fatalf("nonzero exit is not an error: %v", err)
	}
	if !strings.Contains(out, "(exit code") {
		t.Fatalf("expected exit code in output, got %q", out)
	}
}

func TestRunCommand_EmptyCommand(t *testing.T) {
	tool := newTestRunCommand(t, "balanced")

	if _, err := tool.Execute(context.Background(), map[string]any{}); err == nil {
		t.Fatal("expected error for missing command")
	}
}
