// Package workflow contains Temporal workflow definitions.
//
// session.go is the session workflow's top-level entrypoint: the
// Idle/Running/ShuttingDown state machine that drives one turn at a time to
// completion via runAgenticTurn, drains queued turns between them, and
// continues-as-new to keep workflow history bounded.
package workflow

import (
	"go.temporal.io/sdk/workflow"
)

// SessionWorkflow runs a single multi-turn agent conversation for its
// entire lifetime, suspending between turns and continuing-as-new once
// enough iterations or idle time have accumulated.
func SessionWorkflow(ctx workflow.Context, input WorkflowInput) (WorkflowResult, error) {
	s := &SessionState{
		ConversationID: input.ConversationID,
		Config:         input.Config,
		Sink:           NewEventSink(),
		ApprovalCache:  make(map[string]ApprovalDecision),
	}
	s.initHistory()
	s.initStorage()
	s.Control = NewLoopControl()

	logger := workflow.GetLogger(ctx)
	logger.Info("Session workflow started", "conversation_id", s.ConversationID)

	if s.Config.BaseInstructions == "" {
		s.resolveInstructions(ctx)
	}
	s.loadExecPolicy(ctx)
	s.ToolSpecs = buildToolSpecs(s.Config.Tools)

	if err := s.registerHandlers(ctx); err != nil {
		return WorkflowResult{}, err
	}

	s.Sink.Emit(EventSessionConfigured, func(e *Event) {
		e.ConversationID = s.ConversationID
		e.Model = s.Config.Model.Model
	})

	if payload, ok := firstTurnPayload(input); ok {
		s.Control.QueueUserTurn(payload)
	}

	return s.runSessionLoop(ctx)
}

// SessionWorkflowContinued resumes a session after ContinueAsNew. State was
// serialized by continueAsNew below; only the non-serializable fields
// (History, Store, Control, ToolSpecs' runtime parts) are rebuilt.
func SessionWorkflowContinued(ctx workflow.Context, state SessionState) (WorkflowResult, error) {
	s := &state
	s.initHistory()
	s.initStorage()
	s.Control = NewLoopControl()
	s.ToolSpecs = buildToolSpecs(s.Config.Tools)
	s.TotalIterationsForCAN = 0

	logger := workflow.GetLogger(ctx)
	logger.Info("Session workflow continued", "conversation_id", s.ConversationID)

	if err := s.registerHandlers(ctx); err != nil {
		return WorkflowResult{}, err
	}

	return s.runSessionLoop(ctx)
}

// runSessionLoop is the Idle/Running/ShuttingDown state machine shared by a
// fresh start and a continued run.
func (s *SessionState) runSessionLoop(ctx workflow.Context) (WorkflowResult, error) {
	logger := workflow.GetLogger(ctx)

	for {
		if s.ShutdownRequested {
			return s.finish(ctx, "shutdown")
		}

		if !s.Control.HasQueuedTurn() {
			timedOut, err := awaitWithIdleTimeout(ctx, func() bool {
				return s.Control.HasQueuedTurn() || s.ShutdownRequested
			})
			if err != nil {
				return WorkflowResult{}, err
			}
			if timedOut {
				logger.Info("Idle timeout reached, continuing as new")
				return s.continueAsNew(ctx)
			}
			continue
		}

		payload, _ := s.Control.PopTurn()
		s.CurrentTurnID = s.pushTurnInput(ctx, payload)

		s.Sink.Emit(EventTurnStarted, func(e *Event) {
			e.TurnID = s.CurrentTurnID
		})

		outcome, err := s.runAgenticTurn(ctx)
		if err != nil {
			return WorkflowResult{}, err
		}

		if outcome.aborted {
			logger.Info("Turn aborted", "turn_id", s.CurrentTurnID)
			s.Sink.Emit(EventTurnAborted, func(e *Event) {
				e.TurnID = s.CurrentTurnID
				e.LastMessage = outcome.lastMsg
			})
		} else {
			s.Sink.Emit(EventTurnComplete, func(e *Event) {
				e.TurnID = s.CurrentTurnID
				e.LastMessage = outcome.lastMsg
			})
		}
		s.CurrentTurnID = ""

		if workflow.GetInfo(ctx).GetContinueAsNewSuggested() || s.TotalIterationsForCAN >= maxIterationsBeforeCAN {
			logger.Info("Continue-as-new threshold reached")
			return s.continueAsNew(ctx)
		}
	}
}

// finish emits the session-ending shutdown event and returns the final
// result.
func (s *SessionState) finish(ctx workflow.Context, reason string) (WorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Session workflow ending", "reason", reason)

	s.Sink.Emit(EventShutdown, func(e *Event) {
		e.TurnID = s.CurrentTurnID
	})

	return WorkflowResult{
		ConversationID:    s.ConversationID,
		TotalIterations:   s.TotalIterationsForCAN,
		TotalTokens:       s.TotalTokens,
		ToolCallsExecuted: s.ToolCallsExecuted,
		EndReason:         reason,
	}, nil
}

// continueAsNew waits for in-flight signal-drain goroutines to settle,
// persists history into the serializable field, and starts a fresh run.
func (s *SessionState) continueAsNew(ctx workflow.Context) (WorkflowResult, error) {
	_ = workflow.Await(ctx, func() bool { return workflow.AllHandlersFinished(ctx) })
	s.syncHistoryItems()
	s.syncStorageItems()
	return WorkflowResult{}, workflow.NewContinueAsNewError(ctx, SessionWorkflowContinued, *s)
}
