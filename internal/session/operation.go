package session

import (
	"fmt"

	"github.com/loomwork/durableagent/internal/workflow"
)

// Operation is a client-to-workflow op Submit accepts: UserInput, Approval,
// Cancel, or Shutdown. Exactly one of the constructor functions below
// produces a valid Operation; the zero value is invalid.
type Operation struct {
	kind     opKind
	userTurn workflow.UserTurnPayload
	approval workflow.ApprovalPayload
}

type opKind int

const (
	opInvalid opKind = iota
	opUserInput
	opApproval
	opCancel
	opShutdown
)

// UserInput submits the next turn's input items, with an optional working
// directory override.
func UserInput(items []string, cwd string) Operation {
	return Operation{kind: opUserInput, userTurn: workflow.UserTurnPayload{Items: items, Cwd: cwd}}
}

// Approval submits a decision on a pending exec-approval request.
func Approval(callID string, decision workflow.ApprovalDecision) Operation {
	return Operation{kind: opApproval, approval: workflow.ApprovalPayload{CallID: callID, Decision: decision}}
}

// Cancel aborts the turn currently running.
func Cancel() Operation {
	return Operation{kind: opCancel}
}

// Shutdown ends the session after the current turn (if any) finishes.
func Shutdown() Operation {
	return Operation{kind: opShutdown}
}

// toSignal maps an Operation to the signal name and payload Submit sends.
func (op Operation) toSignal() (string, interface{}, error) {
	switch op.kind {
	case opUserInput:
		return workflow.SignalReceiveUserTurn, op.userTurn, nil
	case opApproval:
		return workflow.SignalReceiveApproval, op.approval, nil
	case opCancel:
		return workflow.SignalCancelTurn, nil, nil
	case opShutdown:
		return workflow.SignalRequestShutdown, nil, nil
	default:
		return "", nil, fmt.Errorf("session: invalid operation")
	}
}
