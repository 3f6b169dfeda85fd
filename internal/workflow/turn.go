// Package workflow contains Temporal workflow definitions.
//
// turn.go implements the single-turn agentic loop: repeated model_call
// invocations, each followed by approval-gated tool execution, until the
// model returns a message with no unresolved tool calls.
package workflow

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/loomwork/durableagent/internal/activities"
	"github.com/loomwork/durableagent/internal/models"
)

// maxIterationsPerTurn bounds how many model_call round-trips a single turn
// may take before it is aborted as stuck.
const maxIterationsPerTurn = 50

// turnOutcome is what the caller (the workflow's main loop) needs to decide
// what to do next.
type turnOutcome struct {
	aborted   bool // Cancel/Shutdown interrupted the turn before completion
	lastMsg   string
}

// runAgenticTurn drives one turn to completion: LLM calls, approval gating,
// and tool execution, emitting sink events along the way. It returns once
// the model stops requesting tools (TurnComplete) or the turn is aborted by
// cancellation/shutdown.
func (s *SessionState) runAgenticTurn(ctx workflow.Context) (turnOutcome, error) {
	logger := workflow.GetLogger(ctx)
	s.compactedThisTurn = false
	gate := NewApprovalGate(s.Config.ApprovalMode, s.Config.ExecPolicyRules)
	executor := NewToolExecutor(s.ToolSpecs, s.Config.Cwd, s.Config.SessionTaskQueue)

	var lastAssistantMsg string

	for iteration := 0; iteration < maxIterationsPerTurn; iteration++ {
		if s.Control.TakeCancelRequested() || s.ShutdownRequested {
			logger.Info("Turn aborted before LLM call")
			return turnOutcome{aborted: true, lastMsg: lastAssistantMsg}, nil
		}

		s.maybeCompactBeforeLLM(ctx)

		llmResult, err := s.callLLM(ctx)
		if err != nil {
			retry, handleErr := s.handleLLMError(ctx, err)
			if handleErr != nil {
				return turnOutcome{}, handleErr
			}
			if retry {
				continue
			}
			return turnOutcome{lastMsg: lastAssistantMsg}, nil
		}

		if msg := s.recordLLMResponse(ctx, llmResult); msg != "" {
			lastAssistantMsg = msg
		}

		if s.Control.TakeCancelRequested() || s.ShutdownRequested {
			logger.Info("Turn aborted after LLM call")
			return turnOutcome{aborted: true, lastMsg: lastAssistantMsg}, nil
		}

		calls := extractFunctionCalls(llmResult.Items)

		if len(calls) == 0 {
			logger.Info("Turn completed", "iterations", iteration, "turn_id", s.CurrentTurnID)
			return turnOutcome{lastMsg: lastAssistantMsg}, nil
		}

		if s.detectRepeatedToolCalls(calls) {
			logger.Warn("Detected repeated identical tool calls", "repeat_count", s.repeatCount)
			msg := "[Turn ended: detected repeated identical tool calls. Please try a different approach.]"
			_ = s.History.AddItem(models.ConversationItem{
				Type:    models.ItemTypeAssistantMessage,
				Content: msg,
				TurnID:  s.CurrentTurnID,
			})
			return turnOutcome{lastMsg: msg}, nil
		}

		aborted, err := s.approveAndExecuteTools(ctx, gate, executor, calls)
		if err != nil {
			return turnOutcome{}, err
		}
		if aborted {
			return turnOutcome{aborted: true, lastMsg: lastAssistantMsg}, nil
		}
	}

	logger.Warn("Max iterations per turn reached", "iterations", maxIterationsPerTurn)
	msg := fmt.Sprintf("[Turn ended: reached maximum of %d iterations without completing. The task may need to be broken into smaller steps.]", maxIterationsPerTurn)
	_ = s.History.AddItem(models.ConversationItem{
		Type:    models.ItemTypeAssistantMessage,
		Content: msg,
		TurnID:  s.CurrentTurnID,
	})
	return turnOutcome{lastMsg: msg}, nil
}

// effectiveAutoCompactLimit returns the auto-compact token limit, clamped to
// 90% of the context window so a configured limit never exceeds the model's
// actual context capacity.
func (s *SessionState) effectiveAutoCompactLimit() int {
	configured := s.Config.AutoCompactTokenLimit
	if configured <= 0 {
		return 0
	}
	contextLimit := s.Config.Model.ContextWindow * 9 / 10
	if contextLimit > 0 && contextLimit < configured {
		return contextLimit
	}
	return configured
}

// maybeCompactBeforeLLM performs proactive compaction if history exceeds the
// effective token limit.
func (s *SessionState) maybeCompactBeforeLLM(ctx workflow.Context) {
	if s.compactedThisTurn {
		return
	}

	limit := s.effectiveAutoCompactLimit()
	if limit <= 0 {
		return
	}

	logger := workflow.GetLogger(ctx)
	estimated, _ := s.History.EstimateTokenCount()
	if estimated >= limit {
		logger.Info("Proactive compaction triggered", "estimated_tokens", estimated, "limit", limit)
		if err := s.performCompaction(ctx); err != nil {
			logger.Warn("Proactive compaction failed, continuing without", "error", err)
		}
	}
}

// callLLM prepares incremental history and executes the model_call activity.
func (s *SessionState) callLLM(ctx workflow.Context) (*activities.LLMActivityOutput, error) {
	historyItems, err := s.History.GetForPrompt()
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	var inputItems []models.ConversationItem
	var previousResponseID string
	if s.LastResponseID != "" && s.lastSentHistoryLen > 0 && s.lastSentHistoryLen <= len(historyItems) {
		inputItems = historyItems[s.lastSentHistoryLen:]
		previousResponseID = s.LastResponseID
	} else {
		inputItems = historyItems
	}

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	if s.Config.SessionTaskQueue != "" {
		actOpts.TaskQueue = s.Config.SessionTaskQueue
	}
	llmCtx := workflow.WithActivityOptions(ctx, actOpts)

	llmInput := activities.LLMActivityInput{
		History:               inputItems,
		ModelConfig:           s.Config.Model,
		ToolSpecs:             s.ToolSpecs,
		BaseInstructions:      s.Config.BaseInstructions,
		DeveloperInstructions: s.Config.DeveloperInstructions,
		UserInstructions:      s.Config.UserInstructions,
		PreviousResponseID:    previousResponseID,
	}

	var llmResult activities.LLMActivityOutput
	if err := workflow.ExecuteActivity(llmCtx, "ExecuteLLMCall", llmInput).Get(ctx, &llmResult); err != nil {
		return nil, err
	}
	s.TotalIterationsForCAN++
	return &llmResult, nil
}

// handleLLMError classifies an LLM activity error: context overflow ->
// compact+retry, rate limit -> sleep+retry, fatal -> end turn with an Error
// event. Returns (continueLoop, error).
func (s *SessionState) handleLLMError(ctx workflow.Context, err error) (bool, error) {
	logger := workflow.GetLogger(ctx)

	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		switch appErr.Type() {
		case models.ErrorTypeContextOverflow.String():
			logger.Warn("Context overflow, attempting compaction")
			if compactErr := s.performCompaction(ctx); compactErr != nil {
				logger.Warn("Compaction failed, falling back to destructive drop", "error", compactErr)
				turnCount, _ := s.History.GetTurnCount()
				keepTurns := turnCount / 2
				if keepTurns < 2 {
					keepTurns = 2
				}
				_, _ = s.History.DropOldestUserTurns(keepTurns)
			}
			s.LastResponseID = ""
			s.lastSentHistoryLen = 0
			return true, nil

		case models.ErrorTypeAPILimit.String():
			logger.Warn("API rate limit, sleeping for 1 minute")
			workflow.Sleep(ctx, time.Minute)
			return true, nil

		case models.ErrorTypeFatal.String():
			logger.Error("Fatal LLM error, ending turn", "error", err)
			s.recordTurnError(appErr.Message(), true)
			return false, nil
		}
	}

	logger.Error("LLM activity failed, ending turn", "error", err)
	s.recordTurnError(fmt.Sprintf("LLM call failed: %v", err), true)
	return false, nil
}

// recordTurnError appends an Error event plus a matching history note so the
// model (and the client) both see what happened.
func (s *SessionState) recordTurnError(message string, recoverable bool) {
	s.Sink.Emit(EventError, func(e *Event) {
		e.TurnID = s.CurrentTurnID
		e.Text = message
		e.Recoverable = recoverable
	})
	_ = s.History.AddItem(models.ConversationItem{
		Type:    models.ItemTypeAssistantMessage,
		Content: fmt.Sprintf("[Error: %s]", message),
		TurnID:  s.CurrentTurnID,
	})
}

// recordLLMResponse adds response items to history, tracks tokens, emits
// AgentMessage events for assistant text, and updates response chaining
// state. Returns the last assistant message text seen, if any.
func (s *SessionState) recordLLMResponse(ctx workflow.Context, result *activities.LLMActivityOutput) string {
	logger := workflow.GetLogger(ctx)

	s.TotalTokens += result.TokenUsage.TotalTokens
	s.TotalCachedTokens += result.TokenUsage.CachedTokens
	logger.Info("LLM call completed",
		"tokens", result.TokenUsage.TotalTokens,
		"cached_tokens", result.TokenUsage.CachedTokens,
		"finish_reason", result.FinishReason,
		"items", len(result.Items))

	var lastMsg string
	for _, item := range result.Items {
		_ = s.History.AddItem(item)
		if item.Type == models.ItemTypeAssistantMessage && item.Content != "" {
			lastMsg = item.Content
			s.Sink.Emit(EventAgentMessage, func(e *Event) {
				e.TurnID = s.CurrentTurnID
				e.Text = item.Content
			})
		}
	}

	if result.ResponseID != "" {
		s.LastResponseID = result.ResponseID
		allItems, _ := s.History.GetForPrompt()
		s.lastSentHistoryLen = len(allItems)
	}
	return lastMsg
}

// approveAndExecuteTools runs the approval-gated tool pipeline: classify,
// record forbidden calls, suspend for approval on the rest, execute the
// approved calls, and record their outputs. Returns true if the turn was
// aborted (cancel/shutdown) while awaiting approval.
func (s *SessionState) approveAndExecuteTools(
	ctx workflow.Context,
	gate *ApprovalGate,
	executor *ToolExecutor,
	functionCalls []models.ConversationItem,
) (bool, error) {
	logger := workflow.GetLogger(ctx)

	result := gate.Classify(functionCalls, s.ApprovalCache)

	for _, fr := range result.Forbidden {
		_ = s.History.AddItem(fr)
	}

	toExecute := result.ToExecute

	if len(result.NeedsApproval) > 0 {
		approved, aborted, err := s.waitForApprovalAndFilter(ctx, result.NeedsApproval, gate)
		if err != nil {
			return false, err
		}
		if aborted {
			return true, nil
		}
		toExecute = append(toExecute, approved...)
	}

	if len(toExecute) == 0 {
		return false, nil
	}

	logger.Info("Executing tools", "count", len(toExecute))
	for _, fc := range toExecute {
		s.Sink.Emit(EventToolCallBegin, func(e *Event) {
			e.TurnID = s.CurrentTurnID
			e.CallID = fc.CallID
			e.Name = fc.Name
		})
	}

	toolResults, err := executor.ExecuteParallel(ctx, toExecute)
	if err != nil {
		s.recordTurnError(fmt.Sprintf("tool execution failed: %v", err), true)
		return false, nil
	}

	s.recordToolResults(toExecute, toolResults)
	return false, nil
}

// waitForApprovalAndFilter registers the pending approvals, emits one
// ExecApprovalRequest event per call, and suspends the turn until every
// call_id is resolved (by receive_approval signals) or the turn is
// cancelled/the session is shut down.
func (s *SessionState) waitForApprovalAndFilter(
	ctx workflow.Context,
	needsApproval []PendingApproval,
	gate *ApprovalGate,
) (approved []models.ConversationItem, aborted bool, err error) {
	logger := workflow.GetLogger(ctx)

	ids := make([]string, len(needsApproval))
	calls := make([]models.ConversationItem, len(needsApproval))
	for i, pa := range needsApproval {
		ids[i] = pa.CallID
		calls[i] = models.ConversationItem{
			Type:      models.ItemTypeFunctionCall,
			CallID:    pa.CallID,
			Name:      pa.ToolName,
			Arguments: pa.Arguments,
		}
		s.Sink.Emit(EventExecApprovalRequest, func(e *Event) {
			e.TurnID = s.CurrentTurnID
			e.CallID = pa.CallID
			e.Command = pa.Command
			e.Cwd = s.Config.Cwd
		})
	}
	s.Control.BeginApprovals(ids)

	logger.Info("Waiting for tool approval", "count", len(ids))

	waitErr := workflow.Await(ctx, func() bool {
		return s.Control.AllResolved(ids) || s.Control.CancelRequested() || s.ShutdownRequested
	})
	if waitErr != nil {
		return nil, false, fmt.Errorf("approval await failed: %w", waitErr)
	}

	if !s.Control.AllResolved(ids) {
		s.Control.TakeCancelRequested()
		logger.Info("Approval wait aborted by cancel/shutdown")
		s.Control.TakeDecisions(ids) // drop bookkeeping for the calls we're about to deny
		for _, id := range ids {
			_ = s.History.AddItem(deniedOutput(id, "turn aborted before approval was resolved"))
		}
		return nil, true, nil
	}

	responses := s.Control.TakeDecisions(ids)
	approvedCalls, deniedResults := gate.ApplyDecision(calls, responses, s.ApprovalCache)

	for _, dr := range deniedResults {
		_ = s.History.AddItem(dr)
	}

	return approvedCalls, false, nil
}

// recordToolResults tracks executed tool names and appends each tool's
// FunctionCallOutput to history, emitting a matching ToolCallEnd event.
func (s *SessionState) recordToolResults(calls []models.ConversationItem, results []activities.ToolActivityOutput) {
	for _, fc := range calls {
		s.ToolCallsExecuted = append(s.ToolCallsExecuted, fc.Name)
	}

	for _, result := range results {
		output := &models.FunctionCallOutputPayload{
			Content:    result.Content,
			Success:    result.Success,
			ExitCode:   result.ExitCode,
			Stdout:     result.Stdout,
			Stderr:     result.Stderr,
			Truncated:  result.Truncated,
			DurationMs: result.DurationMs,
		}
		_ = s.History.AddItem(models.ConversationItem{
			Type:   models.ItemTypeFunctionCallOutput,
			CallID: result.CallID,
			Output: output,
		})
		s.emitToolCallEnd(result.CallID, output)
	}
}

// detectRepeatedToolCalls checks whether the current batch of tool calls is
// identical to the previous batch. Returns true once the same batch has
// repeated maxRepeatToolCalls times consecutively.
func (s *SessionState) detectRepeatedToolCalls(calls []models.ConversationItem) bool {
	key := toolCallsKey(calls)
	if key == s.lastToolKey {
		s.repeatCount++
	} else {
		s.lastToolKey = key
		s.repeatCount = 1
	}
	return s.repeatCount >= maxRepeatToolCalls
}
