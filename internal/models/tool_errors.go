package models

// ToolErrorDetails carries structured context about a failed tool activity
// through temporal.ApplicationError.Details, so the workflow can report the
// failure reason without parsing error message strings.
//
// Maps to: codex-rs/core/src/function_tool.rs error categorization
type ToolErrorDetails struct {
	Reason string `json:"reason"`
}
