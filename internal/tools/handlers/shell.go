// Package handlers contains built-in tool handler implementations.
//
// Corresponds to: codex-rs/core/src/tools/handlers/
package handlers

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"github.com/loomwork/durableagent/internal/command_safety"
	execpkg "github.com/loomwork/durableagent/internal/exec"
	"github.com/loomwork/durableagent/internal/tools"
)

// ShellTool executes shell commands directly via os/exec. Tool sandboxing
// is explicitly out of scope for this harness — the worker process's own
// OS-level privileges are the only containment boundary.
//
// Maps to: codex-rs/core/src/tools/handlers/shell.rs
type ShellTool struct{}

// NewShellTool creates a new shell tool handler.
func NewShellTool() *ShellTool {
	return &ShellTool{}
}

// Name returns the tool's name.
func (t *ShellTool) Name() string {
	return "shell"
}

// Kind returns ToolKindFunction.
func (t *ShellTool) Kind() tools.ToolKind {
	return tools.ToolKindFunction
}

// IsMutating returns true if the command might modify the environment.
// Uses command safety classification to identify read-only commands.
//
// Maps to: codex-rs/core/src/tools/handlers/shell.rs is_mutating
func (t *ShellTool) IsMutating(invocation *tools.ToolInvocation) bool {
	commandArg, ok := invocation.Arguments["command"]
	if !ok {
		return true // Can't determine safety without a command
	}
	command, ok := commandArg.(string)
	if !ok || command == "" {
		return true
	}
	cmdVec := []string{"bash", "-c", command}
	return !command_safety.IsKnownSafeCommand(cmdVec)
}

// Handle executes a shell command. Timeout is managed by Temporal's
// StartToCloseTimeout on the activity options — the context is cancelled
// when the timeout fires, and Temporal retries per the RetryPolicy.
//
// Maps to: codex-rs/core/src/tools/handlers/shell.rs handle
func (t *ShellTool) Handle(ctx context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	commandArg, ok := invocation.Arguments["command"]
	if !ok {
		return nil, tools.NewValidationError("missing required argument: command")
	}

	command, ok := commandArg.(string)
	if !ok {
		return nil, tools.NewValidationError("command must be a string")
	}

	if command == "" {
		return nil, tools.NewValidationError("command cannot be empty")
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	if invocation.Cwd != "" {
		cmd.Dir = invocation.Cwd
	}

	// Capture stdout and stderr separately for smart aggregation with output limiting.
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()

	if runErr != nil && ctx.Err() != nil {
		// Context cancelled or deadline exceeded — let Temporal handle retry.
		return nil, ctx.Err()
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = 1
		}
	}

	// Aggregate (and cap) output for the model-facing Content, and also keep
	// stdout/stderr separately for ToolCallEnd's structured fields.
	output := execpkg.AggregateOutput(stdoutBuf.Bytes(), stderrBuf.Bytes())
	stdoutLimited, stdoutTruncated := execpkg.LimitOutput(stdoutBuf.Bytes())
	stderrLimited, stderrTruncated := execpkg.LimitOutput(stderrBuf.Bytes())

	success := exitCode == 0
	return &tools.ToolOutput{
		Content:   string(output),
		Success:   &success,
		ExitCode:  exitCode,
		Stdout:    string(stdoutLimited),
		Stderr:    string(stderrLimited),
		Truncated: stdoutTruncated || stderrTruncated,
	}, nil
}
