// Package workflow contains Temporal workflow definitions.
//
// sink.go implements the session's event sink: an append-only, gap-free,
// monotonically-indexed log of client-observable facts. Because the sink is
// plain workflow state, replaying the workflow reproduces exactly the same
// events at exactly the same indices — there is no separate log to keep
// consistent with workflow history.
package workflow

import "github.com/loomwork/durableagent/internal/models"

// EventKind discriminates the kind of fact recorded in the event sink.
type EventKind string

const (
	EventSessionConfigured   EventKind = "session_configured"
	EventTurnStarted         EventKind = "turn_started"
	EventAgentMessage        EventKind = "agent_message"
	EventExecApprovalRequest EventKind = "exec_approval_request"
	EventToolCallBegin       EventKind = "tool_call_begin"
	EventToolCallEnd         EventKind = "tool_call_end"
	EventTurnComplete        EventKind = "turn_complete"
	EventTurnAborted         EventKind = "turn_aborted"
	EventError               EventKind = "error"
	EventShutdown            EventKind = "shutdown"
)

// Event is a single entry in the event sink. Index is assigned by the sink
// at emission time, in emission order, and is never reused or reassigned.
type Event struct {
	Index  int64     `json:"index"`
	Kind   EventKind `json:"kind"`
	TurnID string    `json:"turn_id,omitempty"`

	// SessionConfigured
	Model          string `json:"model,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`

	// AgentMessage / Error
	Text        string `json:"text,omitempty"`
	Recoverable bool   `json:"recoverable,omitempty"`

	// ExecApprovalRequest / ToolCallBegin / ToolCallEnd
	CallID  string `json:"call_id,omitempty"`
	Name    string `json:"name,omitempty"`
	Command string `json:"command,omitempty"`
	Cwd     string `json:"cwd,omitempty"`

	ExitCode      int    `json:"exit_code,omitempty"`
	OutputExcerpt string `json:"output_excerpt,omitempty"`
	Stdout        string `json:"stdout,omitempty"`
	Stderr        string `json:"stderr,omitempty"`
	Truncated     bool   `json:"truncated,omitempty"`
	DurationMs    int64  `json:"duration_ms,omitempty"`

	// TurnComplete
	LastMessage string `json:"last_message,omitempty"`
}

// EventSlice is the result of a get_events_since query: the events at or
// after the requested index, plus enough bookkeeping for the client to
// detect a retention gap and resynchronize.
type EventSlice struct {
	Events              []Event `json:"events"`
	FirstAvailableIndex int64   `json:"first_available_index"`
	NextIndex           int64   `json:"next_index"`
}

// EventSink is the workflow-owned, append-only event buffer. It is plain
// serializable state (no pointers to workflow.Context), so it survives
// ContinueAsNew and replay without special handling.
type EventSink struct {
	Events    []Event `json:"events"`
	NextIdx   int64   `json:"next_index"`
}

// NewEventSink creates an empty sink starting at index 0.
func NewEventSink() *EventSink {
	return &EventSink{}
}

// Emit appends a new event, assigning it the next sequential index. The
// mutate callback fills in event-specific fields; Index and Kind are set
// by the sink itself and should not be overwritten.
func (s *EventSink) Emit(kind EventKind, mutate func(*Event)) Event {
	e := Event{Index: s.NextIdx, Kind: kind}
	if mutate != nil {
		mutate(&e)
	}
	e.Index = s.NextIdx
	e.Kind = kind
	s.Events = append(s.Events, e)
	s.NextIdx++
	return e
}

// EventsSince returns every event with Index >= from, in index order. The
// base design retains the full history for a session's lifetime, so
// FirstAvailableIndex is always 0; a future bounded-retention sink would
// advance it and callers must already tolerate that per the query contract.
func (s *EventSink) EventsSince(from int64) EventSlice {
	if from < 0 {
		from = 0
	}
	if from >= s.NextIdx {
		return EventSlice{FirstAvailableIndex: 0, NextIndex: s.NextIdx}
	}
	out := make([]Event, len(s.Events)-int(from))
	copy(out, s.Events[from:])
	return EventSlice{Events: out, FirstAvailableIndex: 0, NextIndex: s.NextIdx}
}

// excerpt truncates tool output for the ToolCallEnd event, keeping the
// event log bounded even when a tool produces megabytes of output. The
// full output still reaches the model via the conversation history.
func excerpt(content string, limit int) string {
	if len(content) <= limit {
		return content
	}
	return content[:limit] + "...(truncated)"
}

const outputExcerptLimit = 2000

// emitToolCallEnd emits the ToolCallEnd event matching a prior
// ToolCallBegin. Exit code / stdout / stderr / truncated / duration come
// from the tool's own output when the handler wraps a subprocess (shell);
// a handler with no real exit code falls back to deriving 0/1 from Success
// so non-process tools (read_file, write_file, ...) still report failure.
func (s *SessionState) emitToolCallEnd(callID string, output *models.FunctionCallOutputPayload) {
	exitCode := 0
	content := ""
	var stdout, stderr string
	var truncated bool
	var durationMs int64
	if output != nil {
		content = output.Content
		stdout = output.Stdout
		stderr = output.Stderr
		truncated = output.Truncated
		durationMs = output.DurationMs
		exitCode = output.ExitCode
		if exitCode == 0 && output.Success != nil && !*output.Success {
			exitCode = 1
		}
	}
	s.Sink.Emit(EventToolCallEnd, func(e *Event) {
		e.CallID = callID
		e.ExitCode = exitCode
		e.OutputExcerpt = excerpt(content, outputExcerptLimit)
		e.Stdout = excerpt(stdout, outputExcerptLimit)
		e.Stderr = excerpt(stderr, outputExcerptLimit)
		e.Truncated = truncated
		e.DurationMs = durationMs
	})
}
