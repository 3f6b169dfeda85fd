package activities

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/loomwork/durableagent/internal/models"
	"github.com/loomwork/durableagent/internal/tools"
)

// ToolActivityInput is the input for tool execution.
//
// Maps to: codex-rs/core/src/tools/context.rs ToolInvocation fields
type ToolActivityInput struct {
	CallID    string                 `json:"call_id"`
	ToolName  string                 `json:"tool_name"`
	Arguments map[string]interface{} `json:"arguments"`
	Cwd       string                 `json:"cwd,omitempty"`
}

// ToolActivityOutput is the output from tool execution.
// Only returned on successful activity completion. Infrastructure errors
// are returned as temporal.ApplicationError (retryable or non-retryable).
//
// Maps to: codex-rs/core/src/tools/router.rs ToolOutput + call_id
type ToolActivityOutput struct {
	CallID     string `json:"call_id"`
	Content    string `json:"content,omitempty"`
	Success    *bool  `json:"success,omitempty"`
	ExitCode   int    `json:"exit_code,omitempty"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// ToolActivities contains tool-related activities.
type ToolActivities struct {
	registry *tools.ToolRegistry
}

// NewToolActivities creates a new ToolActivities instance.
func NewToolActivities(registry *tools.ToolRegistry) *ToolActivities {
	return &ToolActivities{registry: registry}
}

// ExecuteTool executes a single tool call.
//
// Error handling:
//   - Tool not found → non-retryable ApplicationError (ToolNotFound)
//   - Handler validation error → non-retryable ApplicationError (ToolValidation)
//   - Handler timeout → non-retryable ApplicationError (ToolTimeout)
//   - Handler error wrapped with tools.NewTransientError → retryable ApplicationError (Transient)
//   - Tool runs but fails (e.g., command exits non-zero) → successful return with Success=false
//   - Tool runs successfully → successful return with Success=true
//
// Maps to: codex-rs/core/src/tools/router.rs ToolRouter.dispatch()
func (a *ToolActivities) ExecuteTool(ctx context.Context, input ToolActivityInput) (ToolActivityOutput, error) {
	handler, err := a.registry.GetHandler(input.ToolName)
	if err != nil {
		return ToolActivityOutput{}, models.NewToolNotFoundError(input.ToolName)
	}

	invocation := &tools.ToolInvocation{
		CallID:    input.CallID,
		ToolName:  input.ToolName,
		Arguments: input.Arguments,
		Cwd:       input.Cwd,
	}

	start := time.Now()
	output, err := handler.Handle(ctx, invocation)
	durationMs := time.Since(start).Milliseconds()
	if err != nil {
		return ToolActivityOutput{}, classifyHandlerError(input.ToolName, err)
	}

	return ToolActivityOutput{
		CallID:     input.CallID,
		Content:    output.Content,
		Success:    output.Success,
		ExitCode:   output.ExitCode,
		Stdout:     output.Stdout,
		Stderr:     output.Stderr,
		Truncated:  output.Truncated,
		DurationMs: durationMs,
	}, nil
}

// classifyHandlerError converts a handler error into the appropriate
// temporal.ApplicationError based on the error context.
//
// Handler errors are non-retryable because they represent validation
// failures (missing args, bad types) or execution issues (timeouts) that
// won't resolve on retry. The exception is an error wrapped with
// tools.NewTransientError, which is classified as retryable.
func classifyHandlerError(toolName string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewToolTimeoutError(toolName, err)
	}

	if tools.IsTransientError(err) {
		return temporal.NewApplicationErrorWithOptions(
			"tool "+toolName+": "+err.Error(), models.ErrorTypeTransient.String(),
			temporal.ApplicationErrorOptions{
				Details: []interface{}{models.ToolErrorDetails{Reason: err.Error()}},
			})
	}

	// Default: treat handler errors as validation/execution errors (non-retryable).
	// The same invalid input will produce the same error on retry.
	return models.NewToolValidationError(toolName, err)
}
