// Package workflow contains Temporal workflow definitions.
//
// handlers.go registers the session workflow's queries and signals. Signals
// are drained in their own workflow.Go goroutines so delivery never blocks
// the main turn loop — each goroutine loops on Channel.Receive for the
// workflow's full lifetime, exiting only when the channel is closed at
// workflow completion. The request_shutdown goroutine is the exception: it
// receives one signal and returns.
package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/loomwork/durableagent/internal/models"
)

// registerHandlers wires up get_events_since/get_state queries and the
// receive_user_turn/receive_approval/request_shutdown/cancel_turn signals.
func (s *SessionState) registerHandlers(ctx workflow.Context) error {
	logger := workflow.GetLogger(ctx)

	if err := workflow.SetQueryHandler(ctx, QueryGetEventsSince, func(from int64) (EventSlice, error) {
		return s.Sink.EventsSince(from), nil
	}); err != nil {
		return err
	}

	if err := workflow.SetQueryHandler(ctx, QueryGetState, func() (SessionStateSnapshot, error) {
		return s.snapshot(), nil
	}); err != nil {
		return err
	}

	// receive_user_turn — queues a new turn's input if one is already
	// Running, otherwise the main loop picks it straight off the queue at
	// its next Idle check.
	userTurnCh := workflow.GetSignalChannel(ctx, SignalReceiveUserTurn)
	workflow.Go(ctx, func(gCtx workflow.Context) {
		for {
			var payload UserTurnPayload
			if !userTurnCh.Receive(gCtx, &payload) {
				return // channel closed at workflow completion
			}
			s.Control.QueueUserTurn(payload)
			logger.Info("Queued user turn", "queued", s.Control.QueuedTurnCount())
		}
	})

	// receive_approval — resolves a pending exec-approval request. A call_id
	// with no matching pending entry is logged and ignored, never an error.
	approvalCh := workflow.GetSignalChannel(ctx, SignalReceiveApproval)
	workflow.Go(ctx, func(gCtx workflow.Context) {
		for {
			var payload ApprovalPayload
			if !approvalCh.Receive(gCtx, &payload) {
				return
			}
			if !s.Control.RecordApproval(payload.CallID, payload.Decision) {
				logger.Warn("Approval signal for unknown or already-resolved call_id, ignoring",
					"call_id", payload.CallID)
			}
		}
	})

	// request_shutdown — ends the session after the current turn (if any)
	// finishes or is aborted.
	shutdownCh := workflow.GetSignalChannel(ctx, SignalRequestShutdown)
	workflow.Go(ctx, func(gCtx workflow.Context) {
		var ignored interface{}
		if !shutdownCh.Receive(gCtx, &ignored) {
			return
		}
		s.ShutdownRequested = true
		logger.Info("Shutdown requested")
	})

	// cancel_turn — aborts the turn currently Running at its next
	// suspension point. Not named in the signal enumeration, but required
	// by the documented Cancel-during-Running behavior; see DESIGN.md.
	cancelCh := workflow.GetSignalChannel(ctx, SignalCancelTurn)
	workflow.Go(ctx, func(gCtx workflow.Context) {
		for {
			var ignored interface{}
			if !cancelCh.Receive(gCtx, &ignored) {
				return
			}
			s.Control.RequestCancel()
			logger.Info("Cancel requested for current turn", "turn_id", s.CurrentTurnID)
		}
	})

	return nil
}

// firstTurnPayload builds the synthetic queued turn for the workflow's
// initial prompt, if one was supplied at start.
func firstTurnPayload(input WorkflowInput) (UserTurnPayload, bool) {
	if input.FirstPrompt == "" {
		return UserTurnPayload{}, false
	}
	return UserTurnPayload{
		Items: []string{input.FirstPrompt},
		Cwd:   input.Config.Cwd,
	}, true
}

// pushTurnInput appends a queued turn's items to conversation history as
// user_message entries under a freshly generated turn ID, returning it.
func (s *SessionState) pushTurnInput(ctx workflow.Context, payload UserTurnPayload) string {
	turnID := generateTurnID(ctx)

	if payload.Cwd != "" {
		s.Config.Cwd = payload.Cwd
	}

	_ = s.History.AddItem(models.ConversationItem{
		Type:   models.ItemTypeTurnStarted,
		TurnID: turnID,
	})
	for _, text := range payload.Items {
		_ = s.History.AddItem(models.ConversationItem{
			Type:    models.ItemTypeUserMessage,
			Content: text,
			TurnID:  turnID,
		})
	}
	return turnID
}
