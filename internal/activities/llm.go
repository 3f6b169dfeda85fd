// Package activities contains Temporal activity implementations — the only
// place in the module allowed to perform non-deterministic I/O (model calls,
// tool execution, file reads) on behalf of a workflow.
//
// Corresponds to: codex-rs/core/src/codex.rs try_run_sampling_request
package activities

import (
	"context"
	"errors"

	"github.com/loomwork/durableagent/internal/llm"
	"github.com/loomwork/durableagent/internal/models"
	"github.com/loomwork/durableagent/internal/tools"
)

// LLMActivityInput is the input for the model_call activity.
//
// Maps to: codex-rs/core/src/codex.rs try_run_sampling_request input
type LLMActivityInput struct {
	History     []models.ConversationItem `json:"history"`
	ModelConfig models.ModelConfig        `json:"model_config"`
	ToolSpecs   []tools.ToolSpec          `json:"tool_specs"`

	// Instructions hierarchy (maps to Codex's 3-tier system).
	BaseInstructions      string `json:"base_instructions,omitempty"`
	DeveloperInstructions string `json:"developer_instructions,omitempty"`
	UserInstructions      string `json:"user_instructions,omitempty"`

	// OpenAI Responses API: chain to a previous response for incremental sends.
	PreviousResponseID string `json:"previous_response_id,omitempty"`
}

// LLMActivityOutput is the output from the model_call activity. Items
// contains every response item (assistant messages plus function calls).
//
// Maps to: codex-rs/core/src/codex.rs SamplingRequestResult
type LLMActivityOutput struct {
	Items        []models.ConversationItem `json:"items"`
	FinishReason models.FinishReason       `json:"finish_reason"`
	TokenUsage   models.TokenUsage         `json:"token_usage"`

	// OpenAI Responses API: response ID for chaining via PreviousResponseID.
	ResponseID string `json:"response_id,omitempty"`
}

// LLMActivities groups the activities that call out to a model provider.
type LLMActivities struct {
	client llm.LLMClient
}

// NewLLMActivities creates a new LLMActivities instance.
func NewLLMActivities(client llm.LLMClient) *LLMActivities {
	return &LLMActivities{client: client}
}

// ExecuteLLMCall performs a single model_call: send the full (or
// incrementally-chained) history plus tool specs, get back assistant output
// and/or function calls.
//
// Maps to: codex-rs/core/src/codex.rs try_run_sampling_request
func (a *LLMActivities) ExecuteLLMCall(ctx context.Context, input LLMActivityInput) (LLMActivityOutput, error) {
	request := llm.LLMRequest{
		History:               input.History,
		ModelConfig:           input.ModelConfig,
		ToolSpecs:             input.ToolSpecs,
		BaseInstructions:      input.BaseInstructions,
		DeveloperInstructions: input.DeveloperInstructions,
		UserInstructions:      input.UserInstructions,
		PreviousResponseID:    input.PreviousResponseID,
	}

	response, err := a.client.Call(ctx, request)
	if err != nil {
		var activityErr *models.ActivityError
		if errors.As(err, &activityErr) {
			return LLMActivityOutput{}, models.WrapActivityError(activityErr)
		}
		return LLMActivityOutput{}, err
	}

	return LLMActivityOutput{
		Items:        response.Items,
		FinishReason: response.FinishReason,
		TokenUsage:   response.TokenUsage,
		ResponseID:   response.ResponseID,
	}, nil
}

// CompactActivityInput is the input for the compact activity.
//
// Maps to: codex-rs/core/src/compact.rs compact operation input
type CompactActivityInput struct {
	Provider     string                    `json:"provider,omitempty"`
	Model        string                    `json:"model"`
	Input        []models.ConversationItem `json:"input"`
	Instructions string                    `json:"instructions,omitempty"`
}

// CompactActivityOutput is the output from the compact activity.
//
// Maps to: codex-rs/core/src/compact.rs compact operation output
type CompactActivityOutput struct {
	Items      []models.ConversationItem `json:"items"`
	TokenUsage models.TokenUsage         `json:"token_usage"`
}

// ExecuteCompact asks the model provider to summarize history into a shorter
// form that fits back within the context window.
//
// Maps to: codex-rs/core/src/compact.rs compact operation
func (a *LLMActivities) ExecuteCompact(ctx context.Context, input CompactActivityInput) (CompactActivityOutput, error) {
	resp, err := a.client.Compact(ctx, llm.CompactRequest{
		Provider:     input.Provider,
		Model:        input.Model,
		Input:        input.Input,
		Instructions: input.Instructions,
	})
	if err != nil {
		var activityErr *models.ActivityError
		if errors.As(err, &activityErr) {
			return CompactActivityOutput{}, models.WrapActivityError(activityErr)
		}
		return CompactActivityOutput{}, err
	}

	return CompactActivityOutput{
		Items:      resp.Items,
		TokenUsage: resp.TokenUsage,
	}, nil
}

// EstimateContextUsage gives a cheap char-count-based estimate of how full
// the context window is, used to decide whether to compact proactively
// before the next model_call rather than waiting for a hard overflow error.
func (a *LLMActivities) EstimateContextUsage(ctx context.Context, history []models.ConversationItem, contextWindow int) (float64, error) {
	if contextWindow <= 0 {
		return 0, nil
	}

	totalChars := 0
	for _, item := range history {
		totalChars += len(item.Content)
		totalChars += len(item.Arguments)
		totalChars += len(item.Name)
		if item.Output != nil {
			totalChars += len(item.Output.Content)
		}
	}

	const charsPerToken = 4
	estimatedTokens := totalChars / charsPerToken
	return float64(estimatedTokens) / float64(contextWindow), nil
}
