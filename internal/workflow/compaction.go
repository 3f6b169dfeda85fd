// Package workflow contains Temporal workflow definitions.
//
// compaction.go implements context compaction logic for managing conversation
// history when it grows too large for the LLM's context window.
//
// Maps to: codex-rs/core/src/compact.rs
package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/loomwork/durableagent/internal/activities"
	"github.com/loomwork/durableagent/internal/models"
)

// performCompaction executes context compaction by calling the ExecuteCompact
// activity. On success, replaces the conversation history with compacted
// items, increments CompactionCount, and resets response chaining state.
func (s *SessionState) performCompaction(ctx workflow.Context) error {
	logger := workflow.GetLogger(ctx)

	historyItems, err := s.History.GetForPrompt()
	if err != nil {
		return err
	}

	compactInput := activities.CompactActivityInput{
		Provider:     s.Config.Model.Provider,
		Model:        s.Config.Model.Model,
		Input:        historyItems,
		Instructions: s.Config.BaseInstructions,
	}

	// Configure activity options
	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 3 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    2,
		},
	}
	compactCtx := workflow.WithActivityOptions(ctx, actOpts)

	// Execute compaction activity
	var compactResult activities.CompactActivityOutput
	err = workflow.ExecuteActivity(compactCtx, "ExecuteCompact", compactInput).Get(ctx, &compactResult)
	if err != nil {
		logger.Warn("Compaction activity failed", "error", err)
		return err
	}

	// Cache the pre-compaction transcript under a storage key derived from
	// the compaction count, so a client can retrieve what was summarized
	// away. Best-effort: a storage failure doesn't block the turn.
	s.cachePreCompactionSnapshot(ctx, historyItems)

	// Replace history with compacted items
	if err := s.History.ReplaceAll(compactResult.Items); err != nil {
		logger.Error("Failed to replace history after compaction", "error", err)
		return err
	}

	// Update compaction tracking state
	s.CompactionCount++
	s.LastResponseID = ""
	s.lastSentHistoryLen = 0
	s.compactedThisTurn = true

	// Track token usage from compaction
	s.TotalTokens += compactResult.TokenUsage.TotalTokens
	s.TotalCachedTokens += compactResult.TokenUsage.CachedTokens

	logger.Info("Context compaction completed",
		"compaction_count", s.CompactionCount,
		"new_history_items", len(compactResult.Items),
		"compaction_tokens", compactResult.TokenUsage.TotalTokens)

	return nil
}

// cachePreCompactionSnapshot stores the transcript compaction is about to
// discard, keyed by conversation and compaction count, so a client that
// still wants the detail behind a summary can fetch it from Store.
func (s *SessionState) cachePreCompactionSnapshot(ctx workflow.Context, items []models.ConversationItem) {
	if s.Store == nil {
		return
	}
	logger := workflow.GetLogger(ctx)

	encoded, err := json.Marshal(items)
	if err != nil {
		logger.Warn("Failed to encode pre-compaction snapshot, skipping cache", "error", err)
		return
	}

	key := fmt.Sprintf("compaction/%s/%d", s.ConversationID, s.CompactionCount)
	if err := s.Store.Put(key, encoded); err != nil {
		logger.Warn("Failed to cache pre-compaction snapshot", "key", key, "error", err)
	}
}
