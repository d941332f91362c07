package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"agentgate/internal/domain"
)

const (
	defaultTimeout        = 300 * time.Second
	defaultMaxOutputBytes = 65536
)

// Spec describes one command execution request. The command has already
// passed policy evaluation by the time it reaches the gateway.
type Spec struct {
	Command        string
	Dir            string
	Timeout        time.Duration
	MaxOutputBytes int
}

// Result is the structured outcome of one execution. Output carries
// whatever the process wrote before completing, timing out or being
// cancelled, truncated to the configured cap.
type Result struct {
	State     domain.ActionState
	ExitCode  int
	Output    string
	Truncated bool
	Duration  time.Duration
}

// Gateway runs approved commands in their own process group so that a
// timeout or cancellation kills the whole child tree, not just the shell.
type Gateway struct {
	auditLogger domain.AuditLogger
	auditLog    bool
	logger      *slog.Logger
}

func New(auditLogger domain.AuditLogger, auditLog bool, logger *slog.Logger) *Gateway {
	return &Gateway{
		auditLogger: auditLogger,
		auditLog:    auditLog,
		logger:      logger,
	}
}

// Run executes the command via sh -c and waits for it to finish, time out,
// or be cancelled. Timeout and caller cancellation are reported as distinct
// states: a timeout is the gateway enforcing its own deadline, a
// cancellation is the caller withdrawing the request.
func (g *Gateway) Run(ctx context.Context, spec Spec) (Result, error) {
	command := strings.TrimSpace(spec.Command)
	if command == "" {
		return Result{State: domain.StateProcessError}, fmt.Errorf("empty command: %w", domain.ErrMalformedCommand)
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxOutput := spec.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = defaultMaxOutputBytes
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// sh -c for reliable handling of pipes, redirects and quoting; a fresh
	// process group so the entire child tree dies together.
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = spec.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	out := &limitedBuffer{max: maxOutput}
	cmd.Stdout = out
	cmd.Stderr = out

	start := time.Now()
	if err := cmd.Start(); err != nil {
		res := Result{State: domain.StateProcessError, Duration: time.Since(start)}
		g.logExec(ctx, command, res.State)
		return res, fmt.Errorf("start: %v: %w", err, domain.ErrProcessError)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-runCtx.Done():
		if err := killProcessGroup(cmd); err != nil {
			g.logger.Warn("cannot kill process group", "pid", cmd.Process.Pid, "err", err)
		}
		waitErr = <-done
	}

	res := Result{
		Output:    out.String(),
		Truncated: out.truncated,
		Duration:  time.Since(start),
	}

	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		res.State = domain.StateCancelled
		g.logExec(ctx, command, res.State)
		return res, domain.ErrExecutionCancelled
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.State = domain.StateTimedOut
		g.logExec(ctx, command, res.State)
		return res, fmt.Errorf("after %s: %w", timeout, domain.ErrExecutionTimedOut)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			res.State = domain.StateProcessError
			g.logExec(ctx, command, res.State)
			return res, fmt.Errorf("wait: %v: %w", waitErr, domain.ErrProcessError)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	res.State = domain.StateCompleted
	g.logExec(ctx, command, res.State)
	return res, nil
}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil || cmd.Process.Pid <= 0 {
		return nil
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("kill process group %d: %w", cmd.Process.Pid, err)
	}
	return nil
}

func (g *Gateway) logExec(ctx context.Context, command string, state domain.ActionState) {
	if !g.auditLog || g.auditLogger == nil {
		return
	}
	err := g.auditLogger.LogAudit(ctx, domain.AuditEntry{
		SessionID: domain.SessionID(ctx),
		Action:    "execute",
		ToolName:  "run_command",
		Command:   command,
		Verdict:   string(state),
	})
	if err != nil {
		g.logger.Error("cannot write audit entry", "err", err)
	}
}

// limitedBuffer caps captured output at max bytes. Writes past the cap are
// accepted and discarded so the child never blocks on a full pipe.
type limitedBuffer struct {
	max       int
	buf       bytes.Buffer
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.buf.Len() >= b.max {
		b.truncated = true
		return len(p), nil
	}
	if room := b.max - b.buf.Len(); len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) String() string { return b.buf.String() }
