package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"agentgate/internal/domain"
)

func newTestGateway() *Gateway {
	return New(nil, false, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRun_Completes(t *testing.T) {
	g := newTestGateway()

	res, err := g.Run(context.Background(), Spec{Command: "echo hello", Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.State != domain.StateCompleted {
		t.Fatalf("expected completed, got %s", res.State)
	}
	if strings.TrimSpace(res.Output) != "hello" {
		t.Fatalf("unexpected output %q", res.Output)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d", res.ExitCode)
	}
}

func TestRun_NonzeroExitIsCompleted(t *testing.T) {
	g := newTestGateway()

	res, err := g.Run(context.Background(), Spec{Command: "exit 3", Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("nonzero exit is a normal completion: %v", err)
	}
	if res.State != domain.StateCompleted || res.ExitCode != 3 {
		t.Fatalf("expected completed with exit 3, got %s exit %d", res.State, res.ExitCode)
	}
}

func TestRun_TimeoutKillsProcessGroup(t *testing.T) {
	g := newTestGateway()

	start := time.Now()
	res, err := g.Run(context.Background(), Spec{
		Command: "sleep 30 & sleep 30",
		Dir:     t.TempDir(),
		Timeout: 200 * time.Millisecond,
	})
	if !errors.Is(err, domain.ErrExecutionTimedOut) {
		t.Fatalf("expected ErrExecutionTimedOut, got %v", err)
	}
	if res.State != domain.StateTimedOut {
		t.Fatalf("expected timed_out, got %s", res.State)
	}
	// The whole group must die promptly; waiting out the sleeps would mean
	// only the shell was killed.
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("process group not killed, run took %s", elapsed)
	}
}

func TestRun_CancelDistinctFromTimeout(t *testing.T) {
	g := newTestGateway()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	res, err := g.Run(ctx, Spec{Command: "sleep 30", Dir: t.TempDir(), Timeout: time.Minute})
	if !errors.Is(err, domain.ErrExecutionCancelled) {
		t.Fatalf("expected ErrExecutionCancelled, got %v", err)
	}
	if res.State != domain.StateCancelled {
		t.Fatalf("expected cancelled, got %s", res.State)
	}
}

func TestRun_PartialOutputOnTimeout(t *testing.T) {
	g := newTestGateway()

	res, _ := g.Run(context.Background(), Spec{
		Command: "echo before; sleep 30",
		Dir:     t.TempDir(),
		Timeout: 300 * time.Millisecond,
	})
	if !strings.Contains(res.Output, "before") {
		t.Fatalf("expected partial output to survive timeout, got %q", res.Output)
	}
}

func TestRun_OutputTruncated(t *testing.T) {
	g := newTestGateway()

	res, err := g.Run(context.Background(), Spec{
		Command:        "yes x | head -c 100000",
		Dir:            t.TempDir(),
		MaxOutputBytes: 1024,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Truncated {
		t.Fatal("expected truncated output")
	}
	if len(res.Output) != 1024 {
		t.Fatalf("expected output capped at 1024 bytes, got %d", len(res.Output))
	}
}

func TestRun_StartFailureIsProcessError(t *testing.T) {
	g := newTestGateway()

	res, err := g.Run(context.Background(), Spec{
		Command: "echo x",
		Dir:     filepath.Join(t.TempDir(), "missing"),
	})
	if !errors.Is(err, domain.ErrProcessError) {
		t.Fatalf("expected ErrProcessError, got %v", err)
	}
	if res.State != domain.StateProcessError {
		t.Fatalf("expected process_error, got %s", res.State)
	}
}

func TestRun_EmptyCommand(t *testing.T) {
	g := newTestGateway()

	if _, err := g.Run(context.Background(), Spec{Command: "  "}); !errors.Is(err, domain.ErrMalformedCommand) {
		t.Fatalf("expected ErrMalformedCommand, got %v", err)
	}
}
