package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomwork/durableagent/internal/models"
)

func TestEventSink_EmitAssignsSequentialIndices(t *testing.T) {
	sink := NewEventSink()

	e0 := sink.Emit(EventSessionConfigured, func(e *Event) { e.ConversationID = "c1" })
	e1 := sink.Emit(EventTurnStarted, func(e *Event) { e.TurnID = "turn-1" })
	e2 := sink.Emit(EventTurnComplete, func(e *Event) { e.TurnID = "turn-1" })

	assert.Equal(t, int64(0), e0.Index)
	assert.Equal(t, int64(1), e1.Index)
	assert.Equal(t, int64(2), e2.Index)
	assert.Equal(t, int64(3), sink.NextIdx)
}

func TestEventSink_EventsSince_ReturnsFromWatermark(t *testing.T) {
	sink := NewEventSink()
	for i := 0; i < 5; i++ {
		sink.Emit(EventAgentMessage, func(e *Event) {})
	}

	slice := sink.EventsSince(2)
	require.Len(t, slice.Events, 3)
	assert.Equal(t, int64(2), slice.Events[0].Index)
	assert.Equal(t, int64(4), slice.Events[len(slice.Events)-1].Index)
	assert.Equal(t, int64(5), slice.NextIndex)

	for i, e := range slice.Events {
		if i > 0 {
			assert.Greater(t, e.Index, slice.Events[i-1].Index, "events_since results must be strictly increasing")
		}
	}
}

func TestEventSink_EventsSince_BeyondNextIndexIsEmpty(t *testing.T) {
	sink := NewEventSink()
	sink.Emit(EventAgentMessage, func(e *Event) {})

	slice := sink.EventsSince(10)
	assert.Empty(t, slice.Events)
	assert.Equal(t, int64(1), slice.NextIndex)
}

func TestEventSink_EventsSince_NegativeFromClampsToZero(t *testing.T) {
	sink := NewEventSink()
	sink.Emit(EventAgentMessage, func(e *Event) {})
	sink.Emit(EventAgentMessage, func(e *Event) {})

	slice := sink.EventsSince(-5)
	assert.Len(t, slice.Events, 2)
}

func TestExcerpt_TruncatesLongContent(t *testing.T) {
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'a'
	}
	out := excerpt(string(long), 10)
	assert.Len(t, out, 10+len("...(truncated)"))

	short := "short"
	assert.Equal(t, short, excerpt(short, 10))
}

func TestEmitToolCallEnd_DerivesExitCodeFromSuccess(t *testing.T) {
	s := &SessionState{Sink: NewEventSink()}
	failure := false
	s.emitToolCallEnd("call-1", &models.FunctionCallOutputPayload{Content: "boom", Success: &failure})

	slice := s.Sink.EventsSince(0)
	require.Len(t, slice.Events, 1)
	assert.Equal(t, EventToolCallEnd, slice.Events[0].Kind)
	assert.Equal(t, 1, slice.Events[0].ExitCode)
	assert.Equal(t, "boom", slice.Events[0].OutputExcerpt)
}
