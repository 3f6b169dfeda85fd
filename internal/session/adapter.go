// Package session implements the client-side session adapter: it presents
// a single-process-looking submit/next_event interface to a caller (the CLI,
// a future HTTP handler) while actually driving a remote session workflow
// over signals and the get_events_since query.
//
// Maps to: codex-rs/core/src/codex.rs Codex/CodexConversation (the
// in-process facade the TUI talks to, here backed by a Temporal workflow
// instead of an in-process event loop)
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/converter"

	"github.com/loomwork/durableagent/internal/workflow"
)

// WorkflowClient is the subset of go.temporal.io/sdk/client.Client the
// adapter needs. Narrowing to an interface lets tests substitute a fake
// without standing up a Temporal test server.
type WorkflowClient interface {
	SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error
	QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

// submitMaxAttempts and submitBackoffMultiple bound how hard Submit retries
// a transport failure before giving up and surfacing a synthetic Error
// event instead.
const (
	submitMaxAttempts     = 3
	submitBackoffMultiple = 2
)

// Adapter is one client's view of one session workflow.
type Adapter struct {
	client     WorkflowClient
	workflowID string
	runID      string

	watermark int64
	buffered  []workflow.Event
	pending   []workflow.Event // synthetic events (e.g. Submit failures) queued ahead of polled ones

	pollInterval    time.Duration
	pollIntervalMin time.Duration
	pollIntervalMax time.Duration

	submitBackoffInitial time.Duration
}

// New creates an adapter for the workflow identified by workflowID/runID
// (runID may be empty to target the current run).
func New(client WorkflowClient, workflowID, runID string) *Adapter {
	return &Adapter{
		client:               client,
		workflowID:           workflowID,
		runID:                runID,
		pollInterval:         pollIntervalMin,
		pollIntervalMin:      pollIntervalMin,
		pollIntervalMax:      pollIntervalMax,
		submitBackoffInitial: submitBackoffDefault,
	}
}

// retryBackoffOverride shortens Submit's retry backoff; tests use this to
// avoid waiting out the production schedule.
func (a *Adapter) retryBackoffOverride(d time.Duration) {
	a.submitBackoffInitial = d
}

const (
	pollIntervalMin      = 50 * time.Millisecond
	pollIntervalMax      = 1 * time.Second
	submitBackoffDefault = 200 * time.Millisecond
)

// Submit sends one client-to-workflow operation as a signal, retrying
// transport failures with bounded backoff. If every attempt fails, Submit
// both returns the error and queues a synthetic Error event so a caller
// draining NextEvent still learns about the failure.
func (a *Adapter) Submit(ctx context.Context, op Operation) error {
	signalName, payload, err := op.toSignal()
	if err != nil {
		return err
	}

	err = a.retrySignal(ctx, signalName, payload)
	if err != nil {
		a.pending = append(a.pending, workflow.Event{
			Kind:        workflow.EventError,
			Text:        fmt.Sprintf("failed to submit %s: %v", signalName, err),
			Recoverable: false,
		})
	}
	return err
}

func (a *Adapter) retrySignal(ctx context.Context, signalName string, payload interface{}) error {
	backoff := a.submitBackoffInitial
	var lastErr error
	for attempt := 0; attempt < submitMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= submitBackoffMultiple
		}

		lastErr = a.client.SignalWorkflow(ctx, a.workflowID, a.runID, signalName, payload)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("submit %s after %d attempts: %w", signalName, submitMaxAttempts, lastErr)
}

// errNoEventReady is an internal sentinel for "nothing to return yet, keep
// polling" — never returned from NextEvent.
var errNoEventReady = errors.New("session: no event ready")

// NextEvent blocks until an event is available, polling events_since with
// an exponential backoff schedule (pollIntervalMin..pollIntervalMax,
// doubling on every empty poll, resetting on any non-empty one). It
// returns without consuming an event if ctx is cancelled first.
func (a *Adapter) NextEvent(ctx context.Context) (workflow.Event, error) {
	if len(a.pending) > 0 {
		e := a.pending[0]
		a.pending = a.pending[1:]
		return e, nil
	}
	if len(a.buffered) > 0 {
		e := a.buffered[0]
		a.buffered = a.buffered[1:]
		return e, nil
	}

	for {
		e, err := a.pollOnce(ctx)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, errNoEventReady) {
			return workflow.Event{}, err
		}

		select {
		case <-ctx.Done():
			return workflow.Event{}, ctx.Err()
		case <-time.After(a.pollInterval):
		}
		a.pollInterval *= pollBackoffMultiple
		if a.pollInterval > a.pollIntervalMax {
			a.pollInterval = a.pollIntervalMax
		}
	}
}

const pollBackoffMultiple = 2

// pollOnce issues a single events_since query and either returns the first
// newly-available event (buffering the rest) or errNoEventReady.
func (a *Adapter) pollOnce(ctx context.Context) (workflow.Event, error) {
	resp, err := a.client.QueryWorkflow(ctx, a.workflowID, a.runID, workflow.QueryGetEventsSince, a.watermark)
	if err != nil {
		return workflow.Event{}, err
	}

	var slice workflow.EventSlice
	if err := resp.Get(&slice); err != nil {
		return workflow.Event{}, err
	}

	if len(slice.Events) == 0 {
		a.watermark = slice.NextIndex
		return workflow.Event{}, errNoEventReady
	}

	a.watermark = slice.NextIndex
	a.pollInterval = a.pollIntervalMin

	a.buffered = slice.Events[1:]
	return slice.Events[0], nil
}
