// Package workflow contains Temporal workflow definitions.
//
// state.go manages workflow state, separated from workflow logic.
package workflow

import (
	"github.com/loomwork/durableagent/internal/history"
	"github.com/loomwork/durableagent/internal/models"
	"github.com/loomwork/durableagent/internal/storage"
	"github.com/loomwork/durableagent/internal/tools"
)

// Signal and query handler names registered on the workflow.
const (
	// SignalReceiveUserTurn delivers a new user turn into the session.
	SignalReceiveUserTurn = "receive_user_turn"

	// SignalReceiveApproval delivers the user's decision on a pending
	// exec-approval request.
	SignalReceiveApproval = "receive_approval"

	// SignalRequestShutdown asks the session to end after the current turn.
	SignalRequestShutdown = "request_shutdown"

	// SignalCancelTurn aborts the turn currently Running at its next
	// suspension point. Not enumerated alongside the other signals in the
	// external-interfaces description, but required by the documented
	// Cancel-during-Running behavior; see DESIGN.md.
	SignalCancelTurn = "cancel_turn"

	// QueryGetEventsSince returns sink events at or after a watermark.
	QueryGetEventsSince = "get_events_since"

	// QueryGetState returns a snapshot of the session's current state.
	QueryGetState = "get_state"
)

// UserTurnPayload is the payload of the receive_user_turn signal: the next
// turn's input items plus any per-turn overrides.
type UserTurnPayload struct {
	Items           []string               `json:"items"`
	Cwd             string                 `json:"cwd,omitempty"`
	ConfigOverrides map[string]interface{} `json:"config_overrides,omitempty"`
}

// ApprovalPayload is the payload of the receive_approval signal.
type ApprovalPayload struct {
	CallID   string           `json:"call_id"`
	Decision ApprovalDecision `json:"decision"`
}

// SessionStateSnapshot is the result of the get_state query.
type SessionStateSnapshot struct {
	ActiveTurn        string   `json:"active_turn,omitempty"`
	PendingApprovals  []string `json:"pending_approvals"`
	QueuedTurns       int      `json:"queued_turns"`
	ShutdownRequested bool     `json:"shutdown_requested"`
	TotalTokens       int      `json:"total_tokens"`
	NextEventIndex    int64    `json:"next_event_index"`
}

// WorkflowInput is the initial input to start a session workflow, matching
// spec.md §6's SessionConfig.
type WorkflowInput struct {
	ConversationID string                      `json:"conversation_id"`
	FirstPrompt    string                      `json:"first_prompt,omitempty"`
	Config         models.SessionConfiguration `json:"config"`
}

// WorkflowResult is the final result of the workflow, returned when the
// session ends via shutdown or an unrecoverable workflow-level error.
type WorkflowResult struct {
	ConversationID    string   `json:"conversation_id"`
	TotalIterations   int      `json:"total_iterations"`
	TotalTokens       int      `json:"total_tokens"`
	ToolCallsExecuted []string `json:"tool_calls_executed"`
	EndReason         string   `json:"end_reason,omitempty"` // "shutdown", "error"
	FinalMessage      string   `json:"final_message,omitempty"`
}

// SessionState is the workflow's complete state, threaded through
// ContinueAsNew. It exclusively owns conversation history, the event sink,
// the pending-approval table, and the approval cache, per spec.md §3's
// ownership rules.
type SessionState struct {
	ConversationID string                      `json:"conversation_id"`
	History        history.ContextManager      `json:"-"`
	HistoryItems   []models.ConversationItem   `json:"history_items"`
	ToolSpecs      []tools.ToolSpec            `json:"tool_specs"`
	Config         models.SessionConfiguration `json:"config"`

	// Sink is the append-only, monotonically-indexed event buffer clients
	// poll via get_events_since.
	Sink *EventSink `json:"sink"`

	// ApprovalCache maps ApprovalCacheKey(name, arguments) to a prior
	// decision, so an identical future call is not re-prompted.
	ApprovalCache map[string]ApprovalDecision `json:"approval_cache"`

	// Store is the out-of-band key-value capability (cached compaction
	// summaries, uploaded-file blobs) — never part of conversation history,
	// accessed only through the storage.Store interface so a fake can
	// substitute in tests. StorageItems is its serializable snapshot.
	Store        storage.Store     `json:"-"`
	StorageItems map[string][]byte `json:"storage_items"`

	// Control holds the pending-approval table and the FIFO turn queue; it
	// is rebuilt fresh on every workflow run (including after
	// ContinueAsNew) rather than serialized, since its content is always
	// re-derivable from in-flight signals and CurrentTurnID.
	Control *LoopControl `json:"-"`

	// CurrentTurnID is non-empty while a turn is Running.
	CurrentTurnID string `json:"current_turn_id,omitempty"`

	ShutdownRequested bool `json:"shutdown_requested"`

	// TotalIterationsForCAN counts model_call invocations across all turns
	// since the last ContinueAsNew, to bound history growth.
	TotalIterationsForCAN int `json:"total_iterations_for_can"`

	// LastResponseID supports LLM providers with incremental/chained
	// requests (e.g. the OpenAI Responses API).
	LastResponseID string `json:"last_response_id,omitempty"`

	// lastSentHistoryLen tracks how many history items were included in the
	// last model_call, enabling incremental sends. Reset whenever history
	// is modified out of band (compaction, drop-oldest).
	lastSentHistoryLen int `json:"-"`

	CompactionCount   int  `json:"compaction_count"`
	compactedThisTurn bool `json:"-"`

	// lastToolKey/repeatCount detect the model repeating an identical tool
	// call batch turn after turn (see maxRepeatToolCalls).
	lastToolKey string `json:"-"`
	repeatCount int    `json:"-"`

	TotalTokens       int      `json:"total_tokens"`
	TotalCachedTokens int      `json:"total_cached_tokens"`
	ToolCallsExecuted []string `json:"tool_calls_executed"`
}

// initHistory initializes the History field from HistoryItems. Called after
// deserialization (ContinueAsNew) to restore the interface value, and at
// fresh workflow start to set up an empty history.
func (s *SessionState) initHistory() {
	h := history.NewInMemoryHistory()
	for _, item := range s.HistoryItems {
		_ = h.AddItem(item)
	}
	s.History = h
}

// syncHistoryItems copies history to HistoryItems for serialization. Called
// before ContinueAsNew to persist state.
func (s *SessionState) syncHistoryItems() {
	items, _ := s.History.GetRawItems()
	s.HistoryItems = items
}

// initStorage initializes the Store field from StorageItems. Called after
// deserialization (ContinueAsNew) to restore the interface value, and at
// fresh workflow start to create an empty store.
func (s *SessionState) initStorage() {
	s.Store = storage.NewMemoryStoreFrom(s.StorageItems)
}

// syncStorageItems copies the store's contents to StorageItems for
// serialization. Called before ContinueAsNew to persist state.
func (s *SessionState) syncStorageItems() {
	if m, ok := s.Store.(*storage.MemoryStore); ok {
		s.StorageItems = m.Snapshot()
	}
}

// snapshot builds the get_state query result.
func (s *SessionState) snapshot() SessionStateSnapshot {
	return SessionStateSnapshot{
		ActiveTurn:        s.CurrentTurnID,
		PendingApprovals:  s.Control.PendingCallIDs(),
		QueuedTurns:       s.Control.QueuedTurnCount(),
		ShutdownRequested: s.ShutdownRequested,
		TotalTokens:       s.TotalTokens,
		NextEventIndex:    s.Sink.NextIdx,
	}
}
