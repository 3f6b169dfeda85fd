// Package models contains shared types for the durableagent project.
//
// Corresponds to: codex-rs/core/src/protocol/models.rs
package models

// ConversationItemType discriminates the kind of entry in a conversation's
// append-only history.
type ConversationItemType string

const (
	ItemTypeTurnStarted        ConversationItemType = "turn_started"
	ItemTypeUserMessage        ConversationItemType = "user_message"
	ItemTypeAssistantMessage   ConversationItemType = "assistant_message"
	ItemTypeFunctionCall       ConversationItemType = "function_call"
	ItemTypeFunctionCallOutput ConversationItemType = "function_call_output"
	ItemTypeTurnComplete       ConversationItemType = "turn_complete"
)

// FunctionCallOutputPayload carries a tool's result back into history as the
// input to the next model call. Content is what reaches the model; the
// exit_code/stdout/stderr/truncated/duration_ms fields carry the structured
// result a client's ToolCallEnd rendering needs without re-parsing Content.
type FunctionCallOutputPayload struct {
	Content    string `json:"content"`
	Success    *bool  `json:"success,omitempty"`
	ExitCode   int    `json:"exit_code,omitempty"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// ConversationItem is a single entry in a session's history. The same shape
// is used for the history sent to the model and for events published
// through the event sink — TurnID and CallID let a client correlate a
// function_call with its eventual function_call_output without re-parsing
// message text.
//
// Maps to: codex-rs/core/src/protocol/models.rs ConversationItem
type ConversationItem struct {
	Type   ConversationItemType `json:"type"`
	TurnID string               `json:"turn_id,omitempty"`

	// User / assistant message content.
	Content string `json:"content,omitempty"`

	// Function call fields (Type == ItemTypeFunctionCall).
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"` // raw JSON object, as produced by the model

	// Function call result (Type == ItemTypeFunctionCallOutput).
	Output *FunctionCallOutputPayload `json:"output,omitempty"`
}

// FinishReason indicates why the LLM stopped generating.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"           // Natural completion
	FinishReasonToolCalls     FinishReason = "tool_calls"      // LLM wants to call tools
	FinishReasonLength        FinishReason = "length"          // Hit token limit
	FinishReasonContentFilter FinishReason = "content_filter"  // Content filtered
)

// TokenUsage tracks token consumption for a single model call.
type TokenUsage struct {
	PromptTokens        int `json:"prompt_tokens"`
	CompletionTokens    int `json:"completion_tokens"`
	TotalTokens         int `json:"total_tokens"`
	CachedTokens        int `json:"cached_tokens,omitempty"`
	CacheCreationTokens int `json:"cache_creation_tokens,omitempty"`
}

// Add accumulates usage from a subsequent call into a running session total.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.CachedTokens += other.CachedTokens
	u.CacheCreationTokens += other.CacheCreationTokens
}
