// Package workflow contains Temporal workflow definitions.
//
// util.go holds small helpers shared across the turn loop that don't belong
// to any one concern: idle-timeout waiting, turn ID generation, and repeated
// tool-call detection.
package workflow

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"time"

	"github.com/loomwork/durableagent/internal/models"
	"go.temporal.io/sdk/workflow"
)

// IdleTimeout bounds how long the workflow waits for a signal before it is
// eligible to continue-as-new purely for idleness.
const IdleTimeout = 24 * time.Hour

// maxIterationsBeforeCAN caps the number of LLM round-trips accumulated
// across turns before the workflow continues-as-new to keep history bounded.
const maxIterationsBeforeCAN = 100

// maxRepeatToolCalls aborts a turn after the same tool call (name + args)
// repeats this many times in a row, a sign the model is stuck in a loop.
const maxRepeatToolCalls = 3

// awaitWithIdleTimeout blocks until condition is true or IdleTimeout elapses.
// The returned bool is true when the wait timed out (caller should consider
// continue-as-new), false when condition became true first.
func awaitWithIdleTimeout(ctx workflow.Context, condition func() bool) (bool, error) {
	ok, err := workflow.AwaitWithTimeout(ctx, IdleTimeout, condition)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// generateTurnID derives a unique turn ID from workflow time via SideEffect,
// so it replays identically regardless of wall-clock skew.
func generateTurnID(ctx workflow.Context) string {
	var nanos int64
	encoded := workflow.SideEffect(ctx, func(ctx workflow.Context) interface{} {
		return workflow.Now(ctx).UnixNano()
	})
	_ = encoded.Get(&nanos)
	return fmt.Sprintf("turn-%d", nanos)
}

// extractFunctionCalls filters conversation items down to pending function
// calls, the subset a turn must classify for approval and execution.
func extractFunctionCalls(items []models.ConversationItem) []models.ConversationItem {
	var calls []models.ConversationItem
	for _, item := range items {
		if item.Type == models.ItemTypeFunctionCall {
			calls = append(calls, item)
		}
	}
	return calls
}

// toolCallsKey derives a stable key for a batch of function calls, used to
// detect the model repeating the same call shape turn after turn.
func toolCallsKey(calls []models.ConversationItem) string {
	parts := make([]string, len(calls))
	for i, c := range calls {
		parts[i] = c.Name + ":" + c.Arguments
	}
	sort.Strings(parts)
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// toInt64 coerces the numeric JSON types a tool call argument might decode
// to (float64 from encoding/json, occasionally int/int64) into an int64.
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}
