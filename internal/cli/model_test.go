package cli

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/loomwork/durableagent/internal/workflow"
)

func newTestModel() Model {
	config := Config{
		Model:      "gpt-4o-mini",
		NoColor:    true,
		NoMarkdown: true,
	}
	m := NewModel(config, nil)
	m.state = StateInput
	m.ready = true
	m.width = 80
	m.height = 24
	m.renderer = NewItemRenderer(80, true, true, NoColorStyles())

	m.textarea.SetWidth(80)
	m.textarea.SetHeight(1)

	return m
}

func TestModel_InitialState_NoMessage(t *testing.T) {
	config := Config{Model: "gpt-4o-mini", NoColor: true, NoMarkdown: true}
	m := NewModel(config, nil)
	assert.Equal(t, StateInput, m.state, "no message/session → start in input")
	assert.Equal(t, int64(-1), m.lastRenderedSeq)
}

func TestModel_InitialState_WithMessage(t *testing.T) {
	config := Config{Model: "gpt-4o-mini", NoColor: true, NoMarkdown: true, Message: "hello"}
	m := NewModel(config, nil)
	assert.Equal(t, StateStartup, m.state, "with message → startup until workflow starts")
}

func TestModel_InitialState_WithSession(t *testing.T) {
	config := Config{Model: "gpt-4o-mini", NoColor: true, NoMarkdown: true, Session: "agent-abc"}
	m := NewModel(config, nil)
	assert.Equal(t, StateStartup, m.state, "with session → startup until resume completes")
}

func TestModel_WorkflowStartedNewSession(t *testing.T) {
	m := newTestModel()
	m.state = StateStartup
	m.config.Message = "hello"

	msg := WorkflowStartedMsg{WorkflowID: "agent-abc123", IsResume: false}

	result, _ := m.handleWorkflowStarted(msg)
	rm := result.(*Model)
	assert.Equal(t, StateWatching, rm.state)
	assert.Equal(t, "agent-abc123", rm.workflowID)
	assert.Contains(t, rm.viewportContent, "Started session agent-abc123")
}

func TestModel_WorkflowStartedResume(t *testing.T) {
	m := newTestModel()
	m.state = StateStartup

	msg := WorkflowStartedMsg{WorkflowID: "agent-abc123", IsResume: true}

	result, _ := m.handleWorkflowStarted(msg)
	rm := result.(*Model)
	assert.Equal(t, StateWatching, rm.state)
	assert.Contains(t, rm.viewportContent, "Resumed session agent-abc123")
}

func TestModel_WorkflowStartErrorQuitsModel(t *testing.T) {
	m := newTestModel()
	m.state = StateStartup

	updated, cmd := m.Update(WorkflowStartErrorMsg{Err: assert.AnError})
	um := updated.(*Model)
	assert.True(t, um.quitting)
	assert.NotNil(t, um.err)
	assert.NotNil(t, cmd)
}

func TestModel_HandleEvent_SessionConfigured(t *testing.T) {
	m := newTestModel()
	m.state = StateWatching

	cmd := m.handleEvent(workflow.Event{Kind: workflow.EventSessionConfigured, Model: "gpt-4o"})
	assert.Equal(t, "gpt-4o", m.modelName)
	assert.NotNil(t, cmd)
}

func TestModel_HandleEvent_TurnStartedIncrementsCount(t *testing.T) {
	m := newTestModel()
	m.state = StateWatching

	m.handleEvent(workflow.Event{Kind: workflow.EventTurnStarted, TurnID: "t1"})
	assert.Equal(t, 1, m.turnCount)
}

func TestModel_HandleEvent_TurnCompleteReturnsToInput(t *testing.T) {
	m := newTestModel()
	m.state = StateWatching

	m.handleEvent(workflow.Event{Kind: workflow.EventTurnComplete})
	assert.Equal(t, StateInput, m.state)
}

func TestModel_HandleEvent_ApprovalRequestEntersApprovalState(t *testing.T) {
	m := newTestModel()
	m.state = StateWatching

	m.handleEvent(workflow.Event{
		Kind:     workflow.EventExecApprovalRequest,
		CallID:   "c1",
		Name:     "shell",
		Command:  "rm -rf /",
	})

	assert.Equal(t, StateApproval, m.state)
	assert.Len(t, m.pendingApprovals, 1)
	assert.Equal(t, "c1", m.pendingApprovals[0].CallID)
}

func TestModel_HandleEvent_ToolCallBeginRemovesPendingApproval(t *testing.T) {
	m := newTestModel()
	m.state = StateWatching
	m.pendingApprovals = []workflow.PendingApproval{{CallID: "c1", ToolName: "shell"}}

	m.handleEvent(workflow.Event{Kind: workflow.EventToolCallBegin, CallID: "c1", Name: "shell"})
	assert.Empty(t, m.pendingApprovals)
}

func TestModel_HandleEvent_AutoApproveSendsChoices(t *testing.T) {
	m := newTestModel()
	m.state = StateWatching
	m.autoApprove = true

	cmd := m.handleEvent(workflow.Event{
		Kind:   workflow.EventExecApprovalRequest,
		CallID: "c1",
		Name:   "shell",
	})

	assert.Equal(t, StateWatching, m.state, "auto-approve should not surface the approval UI")
	assert.NotNil(t, cmd)
}

func TestModel_HandleEvent_ErrorNonRecoverable(t *testing.T) {
	m := newTestModel()
	m.state = StateWatching

	m.handleEvent(workflow.Event{Kind: workflow.EventError, Text: "boom", Recoverable: false})
	assert.Error(t, m.err)
}

func TestModel_HandleEvent_ErrorRecoverableDoesNotSetErr(t *testing.T) {
	m := newTestModel()
	m.state = StateWatching

	m.handleEvent(workflow.Event{Kind: workflow.EventError, Text: "retrying", Recoverable: true})
	assert.NoError(t, m.err)
}

func TestModel_HandleEvent_ShutdownWaitsForCompletion(t *testing.T) {
	m := newTestModel()
	m.state = StateWatching
	m.workflowID = "test-wf"

	cmd := m.handleEvent(workflow.Event{Kind: workflow.EventShutdown})
	assert.NotNil(t, cmd)
}

func TestModel_HandleEventError_Completed(t *testing.T) {
	m := newTestModel()
	m.state = StateWatching
	m.workflowID = "test-wf"

	result, cmd := m.handleEventError(assertErrorf("workflow execution already completed"))
	rm := result.(*Model)
	assert.NotNil(t, cmd)
	assert.Equal(t, StateWatching, rm.state)
}

func TestModel_HandleEventError_UnknownRetriesUpToLimit(t *testing.T) {
	m := newTestModel()
	m.state = StateWatching
	m.workflowID = "test-wf"
	m.adapter = nil

	var rm *Model
	for i := 0; i < 5; i++ {
		result, _ := m.handleEventError(assertErrorf("weird transport error"))
		rm = result.(*Model)
		m = *rm
	}
	assert.True(t, rm.quitting, "should give up after repeated unknown failures")
}

func TestModel_SessionCompletedQuitsModel(t *testing.T) {
	m := newTestModel()
	m.state = StateWatching

	updated, _ := m.Update(SessionCompletedMsg{Result: &workflow.WorkflowResult{
		TotalTokens:       1500,
		ToolCallsExecuted: []string{"shell", "write_file"},
	}})
	um := updated.(*Model)
	assert.True(t, um.quitting)
	assert.Contains(t, um.viewportContent, "Session ended")
}

func TestModel_UserInputSentTransitionsToWatching(t *testing.T) {
	m := newTestModel()
	m.state = StateInput

	updated, _ := m.Update(UserInputSentMsg{})
	um := updated.(*Model)
	assert.Equal(t, StateWatching, um.state)
	assert.Equal(t, "Thinking...", um.spinnerMsg)
}

func TestModel_ApprovalSentReturnsToWatching(t *testing.T) {
	m := newTestModel()
	m.state = StateApproval
	m.pendingApprovals = []workflow.PendingApproval{{CallID: "c1"}}

	updated, _ := m.Update(ApprovalSentMsg{})
	um := updated.(*Model)
	assert.Equal(t, StateWatching, um.state)
	assert.Nil(t, um.pendingApprovals)
}

func TestModel_HandleInputKey_ExitCommand(t *testing.T) {
	m := newTestModel()
	m.state = StateInput
	m.textarea.SetValue("/exit")

	result, _ := m.handleInputKey(tea.KeyMsg{Type: tea.KeyEnter})
	rm := result.(*Model)
	assert.True(t, rm.quitting)
}

func TestModel_HandleInputKey_QuitCommand(t *testing.T) {
	m := newTestModel()
	m.state = StateInput
	m.textarea.SetValue("/quit")

	result, _ := m.handleInputKey(tea.KeyMsg{Type: tea.KeyEnter})
	rm := result.(*Model)
	assert.True(t, rm.quitting)
}

func TestModel_HandleInputKey_EndCommand(t *testing.T) {
	m := newTestModel()
	m.state = StateInput
	m.workflowID = "test-wf"
	m.textarea.SetValue("/end")

	result, _ := m.handleInputKey(tea.KeyMsg{Type: tea.KeyEnter})
	rm := result.(*Model)
	assert.Equal(t, StateWatching, rm.state)
	assert.Equal(t, "Ending session...", rm.spinnerMsg)
}

func TestModel_HandleInputKey_EmptyLine(t *testing.T) {
	m := newTestModel()
	m.state = StateInput
	m.textarea.SetValue("")

	result, _ := m.handleInputKey(tea.KeyMsg{Type: tea.KeyEnter})
	rm := result.(*Model)
	assert.Equal(t, StateInput, rm.state)
}

func TestModel_AppendToViewport(t *testing.T) {
	m := newTestModel()
	m.appendToViewport("first line\n")
	m.appendToViewport("second line\n")

	assert.Contains(t, m.viewportContent, "first line")
	assert.Contains(t, m.viewportContent, "second line")
}

func TestModel_ViewNotReady(t *testing.T) {
	m := newTestModel()
	m.ready = false
	view := m.View()
	assert.Contains(t, view, "Starting")
}

func TestModel_IsScrollKey(t *testing.T) {
	m := newTestModel()

	assert.True(t, m.isScrollKey(tea.KeyMsg{Type: tea.KeyUp}))
	assert.True(t, m.isScrollKey(tea.KeyMsg{Type: tea.KeyDown}))
	assert.True(t, m.isScrollKey(tea.KeyMsg{Type: tea.KeyPgUp}))
	assert.True(t, m.isScrollKey(tea.KeyMsg{Type: tea.KeyPgDown}))
	assert.True(t, m.isScrollKey(tea.KeyMsg{Type: tea.KeyHome}))
	assert.True(t, m.isScrollKey(tea.KeyMsg{Type: tea.KeyEnd}))

	assert.False(t, m.isScrollKey(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.False(t, m.isScrollKey(tea.KeyMsg{Type: tea.KeyTab}))
	assert.False(t, m.isScrollKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}}))
}

func TestModel_CtrlCDuringInputDisconnects(t *testing.T) {
	m := newTestModel()
	m.state = StateInput

	result, _ := m.handleCtrlC()
	rm := result.(*Model)
	assert.True(t, rm.quitting)
}

func TestModel_CtrlCDuringWatchingInterrupts(t *testing.T) {
	m := newTestModel()
	m.state = StateWatching
	m.workflowID = "test-wf"

	result, _ := m.handleCtrlC()
	rm := result.(*Model)
	assert.False(t, rm.quitting)
	assert.Equal(t, StateWatching, rm.state)
	assert.Contains(t, rm.viewportContent, "Interrupting")
}

func TestModel_DoubleCtrlCDuringWatchingDisconnects(t *testing.T) {
	m := newTestModel()
	m.state = StateWatching
	m.workflowID = "test-wf"
	m.lastInterruptTime = time.Now()

	result, _ := m.handleCtrlC()
	rm := result.(*Model)
	assert.True(t, rm.quitting)
}

func TestModel_CtrlCDuringApprovalInterrupts(t *testing.T) {
	m := newTestModel()
	m.state = StateApproval
	m.workflowID = "test-wf"
	m.pendingApprovals = []workflow.PendingApproval{{CallID: "c1"}}

	result, _ := m.handleCtrlC()
	rm := result.(*Model)
	assert.Equal(t, StateWatching, rm.state)
	assert.Nil(t, rm.pendingApprovals)
}

func TestModel_ScrollKeysDuringInput(t *testing.T) {
	m := newTestModel()
	m.state = StateInput
	m.viewportContent = strings.Repeat("line\n", 100)
	m.viewport.SetContent(m.viewportContent)

	result, _ := m.handleInputKey(tea.KeyMsg{Type: tea.KeyUp})
	rm := result.(*Model)
	assert.Equal(t, StateInput, rm.state, "state should remain StateInput")
}

func TestModel_ScrollKeysDuringApproval(t *testing.T) {
	m := newTestModel()
	m.state = StateApproval
	m.pendingApprovals = []workflow.PendingApproval{{CallID: "c1"}}
	m.viewportContent = strings.Repeat("line\n", 100)
	m.viewport.SetContent(m.viewportContent)

	result, _ := m.handleApprovalKey(tea.KeyMsg{Type: tea.KeyPgDown})
	rm := result.(*Model)
	assert.Equal(t, StateApproval, rm.state, "state should remain StateApproval")
}

func TestModel_CalculateTextareaHeight(t *testing.T) {
	m := newTestModel()

	m.textarea.SetValue("")
	assert.Equal(t, 1, m.calculateTextareaHeight())

	m.textarea.SetValue("single line")
	assert.Equal(t, 1, m.calculateTextareaHeight())

	m.textarea.SetValue("line 1\nline 2\nline 3\nline 4")
	assert.Equal(t, 4, m.calculateTextareaHeight())

	longText := strings.Repeat("line\n", 15)
	m.textarea.SetValue(longText)
	assert.Equal(t, MaxTextareaHeight, m.calculateTextareaHeight())
}

func TestModel_MultiLineInput(t *testing.T) {
	m := newTestModel()
	m.state = StateInput
	m.workflowID = "test-wf"

	multiLineText := "This is line 1\nThis is line 2\nThis is line 3"
	m.textarea.SetValue(multiLineText)

	assert.Contains(t, m.textarea.Value(), "line 1")
	assert.Contains(t, m.textarea.Value(), "line 2")
	assert.Contains(t, m.textarea.Value(), "line 3")

	result, _ := m.handleInputKey(tea.KeyMsg{Type: tea.KeyEnter})
	rm := result.(*Model)
	assert.Equal(t, StateWatching, rm.state)
	assert.Empty(t, rm.textarea.Value(), "textarea should be cleared after submit")
	assert.Contains(t, rm.viewportContent, "line 1")
}

func TestModel_ExpandPastedContent(t *testing.T) {
	m := newTestModel()
	m.pastedContent = "line one\nline two\nline three"
	m.pasteLabel = "[3 lines pasted]"

	expanded := m.expandPastedContent("prefix " + m.pasteLabel + " suffix")
	assert.Contains(t, expanded, "line one")
	assert.Contains(t, expanded, "line three")
	assert.NotContains(t, expanded, "[3 lines pasted]")
}

// assertErrorf builds a plain error without importing fmt twice across files.
func assertErrorf(msg string) error {
	return errorString(msg)
}

type errorString string

func (e errorString) Error() string { return string(e) }
