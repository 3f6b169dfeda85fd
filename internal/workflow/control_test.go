package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopControl_ApprovalLifecycle(t *testing.T) {
	c := NewLoopControl()
	ids := []string{"call-1", "call-2"}

	c.BeginApprovals(ids)
	assert.ElementsMatch(t, ids, c.PendingCallIDs())
	assert.False(t, c.AllResolved(ids))

	require.True(t, c.RecordApproval("call-1", DecisionApproved))
	assert.False(t, c.AllResolved(ids))

	require.True(t, c.RecordApproval("call-2", DecisionDenied))
	assert.True(t, c.AllResolved(ids))

	responses := c.TakeDecisions(ids)
	assert.Len(t, responses, 2)
	assert.Empty(t, c.PendingCallIDs())
}

func TestLoopControl_RecordApproval_UnknownCallIDIgnored(t *testing.T) {
	c := NewLoopControl()
	c.BeginApprovals([]string{"call-1"})

	ok := c.RecordApproval("call-unknown", DecisionApproved)
	assert.False(t, ok, "an approval for an untracked call_id must be ignored, not recorded")
	assert.False(t, c.AllResolved([]string{"call-1"}))
}

func TestLoopControl_TakeDecisions_MissingTreatedAsDenied(t *testing.T) {
	c := NewLoopControl()
	c.BeginApprovals([]string{"call-1", "call-2"})
	c.RecordApproval("call-1", DecisionApproved)

	responses := c.TakeDecisions([]string{"call-1", "call-2"})
	byID := map[string]ApprovalDecision{}
	for _, r := range responses {
		byID[r.CallID] = r.Decision
	}
	assert.Equal(t, DecisionApproved, byID["call-1"])
	assert.Equal(t, DecisionDenied, byID["call-2"])
}

func TestLoopControl_TurnQueueFIFO(t *testing.T) {
	c := NewLoopControl()
	assert.False(t, c.HasQueuedTurn())

	c.QueueUserTurn(UserTurnPayload{Items: []string{"first"}})
	c.QueueUserTurn(UserTurnPayload{Items: []string{"second"}})
	assert.Equal(t, 2, c.QueuedTurnCount())

	first, ok := c.PopTurn()
	require.True(t, ok)
	assert.Equal(t, []string{"first"}, first.Items)

	second, ok := c.PopTurn()
	require.True(t, ok)
	assert.Equal(t, []string{"second"}, second.Items)

	_, ok = c.PopTurn()
	assert.False(t, ok)
}

func TestLoopControl_CancelFlag(t *testing.T) {
	c := NewLoopControl()
	assert.False(t, c.CancelRequested())

	c.RequestCancel()
	assert.True(t, c.CancelRequested(), "CancelRequested must not consume the flag")
	assert.True(t, c.CancelRequested())

	assert.True(t, c.TakeCancelRequested())
	assert.False(t, c.CancelRequested(), "TakeCancelRequested must clear the flag")
}

func TestResponseSlot_DeliverAndTake(t *testing.T) {
	var slot ResponseSlot[string]
	assert.False(t, slot.Ready())

	slot.Deliver("hello")
	assert.True(t, slot.Ready())
	assert.Equal(t, "hello", slot.Take())
	assert.False(t, slot.Ready())
}
