package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/converter"

	"github.com/loomwork/durableagent/internal/workflow"
)

// fakeEncodedValue satisfies converter.EncodedValue by holding one
// pre-built EventSlice value for a single QueryWorkflow response.
type fakeEncodedValue struct {
	slice workflow.EventSlice
}

func (f fakeEncodedValue) Get(valuePtr interface{}) error {
	ptr, ok := valuePtr.(*workflow.EventSlice)
	if !ok {
		return fmt.Errorf("unsupported target type %T", valuePtr)
	}
	*ptr = f.slice
	return nil
}

func (f fakeEncodedValue) HasValue() bool { return true }

type signalCall struct {
	name    string
	payload interface{}
}

// fakeClient is a WorkflowClient test double. querySlices is consumed in
// order, one per QueryWorkflow call; signalErrs is consumed the same way
// per SignalWorkflow call (nil once exhausted).
type fakeClient struct {
	mu sync.Mutex

	querySlices []workflow.EventSlice
	queryCalls  int

	signalErrs  []error
	signalCalls []signalCall
}

func (f *fakeClient) SignalWorkflow(_ context.Context, _, _, signalName string, arg interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signalCalls = append(f.signalCalls, signalCall{name: signalName, payload: arg})
	idx := len(f.signalCalls) - 1
	if idx < len(f.signalErrs) {
		return f.signalErrs[idx]
	}
	return nil
}

func (f *fakeClient) QueryWorkflow(_ context.Context, _, _, _ string, _ ...interface{}) (converter.EncodedValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryCalls >= len(f.querySlices) {
		return fakeEncodedValue{}, errors.New("fakeClient: no more query responses queued")
	}
	slice := f.querySlices[f.queryCalls]
	f.queryCalls++
	return fakeEncodedValue{slice: slice}, nil
}

func newAdapter(c *fakeClient) *Adapter {
	return New(c, "wf-1", "")
}

func TestAdapter_NextEvent_ReturnsImmediatelyWhenEventsPresent(t *testing.T) {
	c := &fakeClient{querySlices: []workflow.EventSlice{
		{Events: []workflow.Event{{Index: 0, Kind: workflow.EventSessionConfigured}}, NextIndex: 1},
	}}
	a := newAdapter(c)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	e, err := a.NextEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, workflow.EventSessionConfigured, e.Kind)
	assert.Equal(t, int64(1), a.watermark)
}

func TestAdapter_NextEvent_PollsUntilEventAppears(t *testing.T) {
	c := &fakeClient{querySlices: []workflow.EventSlice{
		{NextIndex: 0},
		{NextIndex: 0},
		{Events: []workflow.Event{{Index: 0, Kind: workflow.EventTurnStarted}}, NextIndex: 1},
	}}
	a := newAdapter(c)
	a.pollIntervalMin = time.Millisecond
	a.pollIntervalMax = 5 * time.Millisecond
	a.pollInterval = a.pollIntervalMin

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	e, err := a.NextEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, workflow.EventTurnStarted, e.Kind)
	assert.Equal(t, 3, c.queryCalls)
}

func TestAdapter_NextEvent_BuffersMultipleEventsFromOnePoll(t *testing.T) {
	c := &fakeClient{querySlices: []workflow.EventSlice{
		{Events: []workflow.Event{
			{Index: 0, Kind: workflow.EventSessionConfigured},
			{Index: 1, Kind: workflow.EventTurnStarted},
			{Index: 2, Kind: workflow.EventAgentMessage},
		}, NextIndex: 3},
	}}
	a := newAdapter(c)
	ctx := context.Background()

	first, err := a.NextEvent(ctx)
	require.NoError(t, err)
	second, err := a.NextEvent(ctx)
	require.NoError(t, err)
	third, err := a.NextEvent(ctx)
	require.NoError(t, err)

	assert.Equal(t, workflow.EventSessionConfigured, first.Kind)
	assert.Equal(t, workflow.EventTurnStarted, second.Kind)
	assert.Equal(t, workflow.EventAgentMessage, third.Kind)
	assert.Equal(t, 1, c.queryCalls, "three buffered events must come from a single poll")
}

func TestAdapter_NextEvent_CancellableWithoutConsumingEvent(t *testing.T) {
	c := &fakeClient{querySlices: []workflow.EventSlice{
		{NextIndex: 0}, {NextIndex: 0}, {NextIndex: 0}, {NextIndex: 0}, {NextIndex: 0},
	}}
	a := newAdapter(c)
	a.pollIntervalMin = 50 * time.Millisecond
	a.pollIntervalMax = 200 * time.Millisecond
	a.pollInterval = a.pollIntervalMin

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.NextEvent(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdapter_Submit_SendsUserInputSignal(t *testing.T) {
	c := &fakeClient{}
	a := newAdapter(c)

	err := a.Submit(context.Background(), UserInput([]string{"hello"}, "/tmp"))
	require.NoError(t, err)
	require.Len(t, c.signalCalls, 1)
	assert.Equal(t, workflow.SignalReceiveUserTurn, c.signalCalls[0].name)
	payload := c.signalCalls[0].payload.(workflow.UserTurnPayload)
	assert.Equal(t, []string{"hello"}, payload.Items)
	assert.Equal(t, "/tmp", payload.Cwd)
}

func TestAdapter_Submit_SendsApprovalSignal(t *testing.T) {
	c := &fakeClient{}
	a := newAdapter(c)

	err := a.Submit(context.Background(), Approval("call-1", workflow.DecisionApproved))
	require.NoError(t, err)
	assert.Equal(t, workflow.SignalReceiveApproval, c.signalCalls[0].name)
	payload := c.signalCalls[0].payload.(workflow.ApprovalPayload)
	assert.Equal(t, "call-1", payload.CallID)
	assert.Equal(t, workflow.DecisionApproved, payload.Decision)
}

func TestAdapter_Submit_SendsCancelAndShutdownSignals(t *testing.T) {
	c := &fakeClient{}
	a := newAdapter(c)

	require.NoError(t, a.Submit(context.Background(), Cancel()))
	require.NoError(t, a.Submit(context.Background(), Shutdown()))

	require.Len(t, c.signalCalls, 2)
	assert.Equal(t, workflow.SignalCancelTurn, c.signalCalls[0].name)
	assert.Equal(t, workflow.SignalRequestShutdown, c.signalCalls[1].name)
}

func TestAdapter_Submit_RetriesTransientFailureThenSucceeds(t *testing.T) {
	c := &fakeClient{signalErrs: []error{errors.New("transport blip"), errors.New("transport blip")}}
	a := newAdapter(c)
	a.retryBackoffOverride(time.Millisecond)

	err := a.Submit(context.Background(), Cancel())
	require.NoError(t, err)
	assert.Equal(t, 3, len(c.signalCalls))
}

func TestAdapter_Submit_ExhaustsRetriesAndQueuesSyntheticErrorEvent(t *testing.T) {
	alwaysFail := errors.New("permanently down")
	c := &fakeClient{signalErrs: []error{alwaysFail, alwaysFail, alwaysFail}}
	a := newAdapter(c)
	a.retryBackoffOverride(time.Millisecond)

	err := a.Submit(context.Background(), Shutdown())
	require.Error(t, err)
	require.Len(t, a.pending, 1)
	assert.Equal(t, workflow.EventError, a.pending[0].Kind)

	e, nextErr := a.NextEvent(context.Background())
	require.NoError(t, nextErr)
	assert.Equal(t, workflow.EventError, e.Kind)
}
