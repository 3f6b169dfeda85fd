package cli

import "github.com/loomwork/durableagent/internal/workflow"

// WorkflowStartedMsg is sent when a session workflow has been started or
// reattached to for resume.
type WorkflowStartedMsg struct {
	WorkflowID string
	IsResume   bool
}

// WorkflowStartErrorMsg is sent when starting/resuming a workflow fails.
type WorkflowStartErrorMsg struct {
	Err error
}

// EventMsg wraps one event pulled from the session adapter's event stream.
type EventMsg struct {
	Event workflow.Event
}

// EventErrorMsg is sent when the adapter's NextEvent call fails.
type EventErrorMsg struct {
	Err error
}

// UserInputSentMsg is sent after a user turn has been successfully submitted.
type UserInputSentMsg struct{}

// UserInputErrorMsg is sent when submitting a user turn fails.
type UserInputErrorMsg struct {
	Err error
}

// InterruptSentMsg is sent after a cancel signal has been successfully sent.
type InterruptSentMsg struct{}

// InterruptErrorMsg is sent when sending a cancel signal fails.
type InterruptErrorMsg struct {
	Err error
}

// ShutdownSentMsg is sent after a shutdown signal has been successfully sent.
type ShutdownSentMsg struct{}

// ShutdownErrorMsg is sent when sending a shutdown signal fails.
type ShutdownErrorMsg struct {
	Err error
}

// ApprovalSentMsg is sent after every pending approval decision has been submitted.
type ApprovalSentMsg struct{}

// ApprovalErrorMsg is sent when submitting an approval decision fails.
type ApprovalErrorMsg struct {
	Err error
}

// SessionCompletedMsg is sent when the workflow run completes.
type SessionCompletedMsg struct {
	Result *workflow.WorkflowResult // nil if unavailable
}

// SessionErrorMsg is sent when the workflow encounters an unrecoverable error.
type SessionErrorMsg struct {
	Err error
}
