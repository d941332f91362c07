package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agentgate/internal/domain"
	"agentgate/internal/gateway"
)

const (
	defaultShellTimeout   = 300
	defaultMaxOutputBytes = 65536
)

// RunCommandTool runs a shell command through the policy engine and the
// execution gateway. Every command is evaluated first; only allowed
// commands reach a process.
type RunCommandTool struct {
	evaluator      domain.PolicyEvaluator
	gateway        *gateway.Gateway
	workingDir     string
	timeoutSeconds int
	maxOutputBytes int
}

type RunCommandConfig struct {
	Evaluator      domain.PolicyEvaluator
	Gateway        *gateway.Gateway
	WorkingDir     string
	TimeoutSeconds int
	MaxOutputBytes int
}

func NewRunCommandTool(cfg RunCommandConfig) *RunCommandTool {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = defaultShellTimeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = defaultMaxOutputBytes
	}
	return &RunCommandTool{
		evaluator:      cfg.Evaluator,
		gateway:        cfg.Gateway,
		workingDir:     cfg.WorkingDir,
		timeoutSeconds: cfg.TimeoutSeconds,
		maxOutputBytes: cfg.MaxOutputBytes,
	}
}

func (t *RunCommandTool) Name() string { return "run_command" }

func (t *RunCommandTool) Description() string {
	return "Execute a shell command inside the project root. Returns combined stdout and stderr. Commands are checked against the active security profile before running."
}

func (t *RunCommandTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"command": {Type: "string", Description: "The shell command to execute (e.g. 'ls -la', 'git status')"},
			"timeout": {Type: "integer", Description: "Optional timeout in seconds; capped by the configured maximum"},
		},
		[]string{"command"},
	)
}

type runCommandArgs struct {
	Command string `json:"command"`
	Timeout int    `json:"timeout"`
}

func (t *RunCommandTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	var req runCommandArgs
	if err := DecodeArgs(args, &req); err != nil {
		return "", err
	}
	req.Command = strings.TrimSpace(req.Command)
	if req.Command == "" {
		return "", fmt.Errorf("missing argument: command")
	}

	decision := t.evaluator.Evaluate(ctx, req.Command)
	if !decision.Allowed() {
		return "", &domain.DeniedError{Decision: decision}
	}

	timeout := t.timeoutSeconds
	if req.Timeout > 0 && req.Timeout < timeout {
		timeout = req.Timeout
	}

	res, err := t.gateway.Run(ctx, gateway.Spec{
		Command:        req.Command,
		Dir:            t.workingDir,
		Timeout:        time.Duration(timeout) * time.Second,
		MaxOutputBytes: t.maxOutputBytes,
	})
	if err != nil {
		// Partial output rides along with timeout/cancel errors.
		return res.Output, err
	}

	output := res.Output
	if res.Truncated {
		output += "\n... (output truncated)"
	}
	if res.ExitCode != 0 {
		output += fmt.Sprintf("\n(exit code %d)", res.ExitCode)
	}
	return output, nil
}

var _ domain.Tool = (*RunCommandTool)(nil)
