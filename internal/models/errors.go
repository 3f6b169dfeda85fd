package models

import (
	"fmt"

	"go.temporal.io/sdk/temporal"
)

// ErrorType categorizes errors for appropriate handling
//
// Maps to: codex-rs/core/src/function_tool.rs error categorization
type ErrorType int

const (
	ErrorTypeTransient        ErrorType = iota // Network, timeout → Temporal retries
	ErrorTypeContextOverflow                   // Context window exceeded → ContinueAsNew
	ErrorTypeAPILimit                          // Rate limit → surface to user
	ErrorTypeToolFailure                       // Individual tool failed → continue workflow
	ErrorTypeFatal                             // Unrecoverable → stop workflow
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrorTypeTransient:
		return "Transient"
	case ErrorTypeContextOverflow:
		return "ContextOverflow"
	case ErrorTypeAPILimit:
		return "APILimit"
	case ErrorTypeToolFailure:
		return "ToolFailure"
	case ErrorTypeFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// ActivityError represents an error from a Temporal activity with categorization
//
// Maps to: codex-rs/core/src/function_tool.rs error handling
type ActivityError struct {
	Type      ErrorType              `json:"type"`
	Retryable bool                   `json:"retryable"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *ActivityError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// NewTransientError creates a retryable transient error
func NewTransientError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeTransient,
		Retryable: true,
		Message:   message,
	}
}

// NewContextOverflowError creates a context overflow error
func NewContextOverflowError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeContextOverflow,
		Retryable: false,
		Message:   message,
	}
}

// NewAPILimitError creates an API rate limit error
func NewAPILimitError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeAPILimit,
		Retryable: true,
		Message:   message,
	}
}

// NewToolFailureError creates a tool failure error
func NewToolFailureError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeToolFailure,
		Retryable: false,
		Message:   message,
	}
}

// NewFatalError creates a fatal error
func NewFatalError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeFatal,
		Retryable: false,
		Message:   message,
	}
}

// NewToolNotFoundError builds a non-retryable ApplicationError for a call to
// an unregistered tool name — retrying would hit the same missing handler.
func NewToolNotFoundError(toolName string) error {
	return temporal.NewApplicationErrorWithOptions(
		fmt.Sprintf("tool not found: %s", toolName), ErrorTypeToolFailure.String(),
		temporal.ApplicationErrorOptions{NonRetryable: true})
}

// NewToolValidationError builds a non-retryable ApplicationError for bad
// tool-call arguments, carrying the reason in Details for toolActivityErrorToOutput.
func NewToolValidationError(toolName string, cause error) error {
	return temporal.NewApplicationErrorWithOptions(
		fmt.Sprintf("tool %s: invalid arguments: %v", toolName, cause), ErrorTypeToolFailure.String(),
		temporal.ApplicationErrorOptions{
			NonRetryable: true,
			Details:      []interface{}{ToolErrorDetails{Reason: cause.Error()}},
		})
}

// NewToolTimeoutError builds a non-retryable ApplicationError for a tool
// handler that exceeded its StartToCloseTimeout.
func NewToolTimeoutError(toolName string, cause error) error {
	return temporal.NewApplicationErrorWithOptions(
		fmt.Sprintf("tool %s: timed out: %v", toolName, cause), ErrorTypeToolFailure.String(),
		temporal.ApplicationErrorOptions{
			NonRetryable: true,
			Details:      []interface{}{ToolErrorDetails{Reason: "tool execution timed out"}},
		})
}

// WrapActivityError converts an ActivityError into a Temporal
// ApplicationError so the workflow can classify it via ApplicationError.Type()
// instead of inspecting message strings, and so Temporal's RetryPolicy
// honors Retryable correctly.
func WrapActivityError(e *ActivityError) error {
	return temporal.NewApplicationErrorWithOptions(e.Message, e.Type.String(), temporal.ApplicationErrorOptions{
		NonRetryable: !e.Retryable,
		Details:      []interface{}{e.Details},
	})
}
