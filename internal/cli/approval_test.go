package cli

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"

	"github.com/loomwork/durableagent/internal/workflow"
)

// --- Event-stream error classification tests ---

func TestClassifyStreamError_NotFound(t *testing.T) {
	err := serviceerror.NewNotFound("workflow not found")
	assert.Equal(t, streamErrorCompleted, classifyStreamError(err))
}

func TestClassifyStreamError_WorkflowNotReady(t *testing.T) {
	err := &serviceerror.WorkflowNotReady{Message: "workflow not ready"}
	assert.Equal(t, streamErrorTransient, classifyStreamError(err))
}

func TestClassifyStreamError_QueryFailed(t *testing.T) {
	err := &serviceerror.QueryFailed{Message: "query rejected"}
	assert.Equal(t, streamErrorTransient, classifyStreamError(err))
}

func TestClassifyStreamError_AlreadyCompleted(t *testing.T) {
	err := fmt.Errorf("workflow execution already completed")
	assert.Equal(t, streamErrorCompleted, classifyStreamError(err))
}

func TestClassifyStreamError_UnknownError(t *testing.T) {
	err := fmt.Errorf("some unexpected error")
	assert.Equal(t, streamErrorFatal, classifyStreamError(err))
}

func TestClassifyStreamError_WrappedNotFound(t *testing.T) {
	inner := serviceerror.NewNotFound("workflow not found")
	err := fmt.Errorf("query failed: %w", inner)
	assert.Equal(t, streamErrorCompleted, classifyStreamError(err))
}

// --- Approval input handling tests ---

func TestHandleApprovalInput_Yes(t *testing.T) {
	pending := []workflow.PendingApproval{
		{CallID: "c1", ToolName: "shell"},
		{CallID: "c2", ToolName: "write_file"},
	}
	choices, autoApprove, ok := HandleApprovalInput("y", pending)
	require.True(t, ok)
	require.Len(t, choices, 2)
	assert.Equal(t, ApprovalChoice{CallID: "c1", Decision: workflow.DecisionApproved}, choices[0])
	assert.Equal(t, ApprovalChoice{CallID: "c2", Decision: workflow.DecisionApproved}, choices[1])
	assert.False(t, autoApprove)
}

func TestHandleApprovalInput_YesFull(t *testing.T) {
	pending := []workflow.PendingApproval{{CallID: "c1", ToolName: "shell"}}
	choices, _, ok := HandleApprovalInput("yes", pending)
	require.True(t, ok)
	assert.Equal(t, workflow.DecisionApproved, choices[0].Decision)
}

func TestHandleApprovalInput_No(t *testing.T) {
	pending := []workflow.PendingApproval{{CallID: "c1", ToolName: "shell"}}
	choices, _, ok := HandleApprovalInput("n", pending)
	require.True(t, ok)
	assert.Equal(t, workflow.DecisionDenied, choices[0].Decision)
}

func TestHandleApprovalInput_NoFull(t *testing.T) {
	pending := []workflow.PendingApproval{{CallID: "c1", ToolName: "shell"}}
	choices, _, ok := HandleApprovalInput("no", pending)
	require.True(t, ok)
	assert.Equal(t, workflow.DecisionDenied, choices[0].Decision)
}

func TestHandleApprovalInput_Always(t *testing.T) {
	pending := []workflow.PendingApproval{{CallID: "c1", ToolName: "shell"}}
	choices, autoApprove, ok := HandleApprovalInput("a", pending)
	require.True(t, ok)
	assert.Equal(t, workflow.DecisionApproved, choices[0].Decision)
	assert.True(t, autoApprove, "autoApprove should be set after 'always'")
}

func TestHandleApprovalInput_AlwaysFull(t *testing.T) {
	pending := []workflow.PendingApproval{{CallID: "c1", ToolName: "shell"}}
	choices, autoApprove, ok := HandleApprovalInput("always", pending)
	require.True(t, ok)
	assert.Equal(t, workflow.DecisionApproved, choices[0].Decision)
	assert.True(t, autoApprove)
}

func TestHandleApprovalInput_Invalid(t *testing.T) {
	pending := []workflow.PendingApproval{{CallID: "c1", ToolName: "shell"}}
	_, _, ok := HandleApprovalInput("maybe", pending)
	assert.False(t, ok)
}

func TestHandleApprovalInput_CaseInsensitive(t *testing.T) {
	pending := []workflow.PendingApproval{{CallID: "c1", ToolName: "shell"}}
	choices, _, ok := HandleApprovalInput("YES", pending)
	require.True(t, ok)
	assert.Equal(t, workflow.DecisionApproved, choices[0].Decision)
}

func TestHandleApprovalInput_WithWhitespace(t *testing.T) {
	pending := []workflow.PendingApproval{{CallID: "c1", ToolName: "shell"}}
	choices, _, ok := HandleApprovalInput("  y  ", pending)
	require.True(t, ok)
	assert.Equal(t, workflow.DecisionApproved, choices[0].Decision)
}

func TestFormatApprovalDetail_ShellUsesCommand(t *testing.T) {
	detail := formatApprovalDetail(workflow.PendingApproval{ToolName: "shell", Command: "rm -rf /tmp"})
	assert.Equal(t, "Command: rm -rf /tmp", detail)
}

func TestFormatApprovalDetail_WriteFilePath(t *testing.T) {
	detail := formatApprovalDetail(workflow.PendingApproval{
		ToolName:  "write_file",
		Arguments: `{"path": "/home/user/test.txt", "content": "hello"}`,
	})
	assert.Equal(t, "Path: /home/user/test.txt", detail)
}

func TestFormatApprovalDetail_UnknownToolFallsBackToArgs(t *testing.T) {
	detail := formatApprovalDetail(workflow.PendingApproval{ToolName: "custom_tool", Arguments: `{"foo":"bar"}`})
	assert.Contains(t, detail, "Args:")
}

func TestFormatApprovalDetail_Empty(t *testing.T) {
	assert.Equal(t, "", formatApprovalDetail(workflow.PendingApproval{ToolName: "shell"}))
}

// --- Index-based approval tests ---

func TestHandleApprovalInput_IndexSingle(t *testing.T) {
	pending := []workflow.PendingApproval{
		{CallID: "c1", ToolName: "shell"},
		{CallID: "c2", ToolName: "write_file"},
		{CallID: "c3", ToolName: "apply_patch"},
	}
	choices, _, ok := HandleApprovalInput("2", pending)
	require.True(t, ok)
	assert.Equal(t, workflow.DecisionDenied, choices[0].Decision)
	assert.Equal(t, workflow.DecisionApproved, choices[1].Decision)
	assert.Equal(t, workflow.DecisionDenied, choices[2].Decision)
}

func TestHandleApprovalInput_IndexMultiple(t *testing.T) {
	pending := []workflow.PendingApproval{
		{CallID: "c1", ToolName: "shell"},
		{CallID: "c2", ToolName: "write_file"},
		{CallID: "c3", ToolName: "apply_patch"},
	}
	choices, _, ok := HandleApprovalInput("1,3", pending)
	require.True(t, ok)
	assert.Equal(t, workflow.DecisionApproved, choices[0].Decision)
	assert.Equal(t, workflow.DecisionDenied, choices[1].Decision)
	assert.Equal(t, workflow.DecisionApproved, choices[2].Decision)
}

func TestHandleApprovalInput_IndexWithSpaces(t *testing.T) {
	pending := []workflow.PendingApproval{
		{CallID: "c1", ToolName: "shell"},
		{CallID: "c2", ToolName: "write_file"},
	}
	choices, _, ok := HandleApprovalInput("1, 2", pending)
	require.True(t, ok)
	assert.Equal(t, workflow.DecisionApproved, choices[0].Decision)
	assert.Equal(t, workflow.DecisionApproved, choices[1].Decision)
}

func TestHandleApprovalInput_IndexOutOfRange(t *testing.T) {
	pending := []workflow.PendingApproval{{CallID: "c1", ToolName: "shell"}}
	_, _, ok := HandleApprovalInput("5", pending)
	assert.False(t, ok)
}

func TestHandleApprovalInput_IndexZero(t *testing.T) {
	pending := []workflow.PendingApproval{{CallID: "c1", ToolName: "shell"}}
	_, _, ok := HandleApprovalInput("0", pending)
	assert.False(t, ok)
}

func TestParseApprovalIndices_Valid(t *testing.T) {
	assert.Equal(t, []int{1, 3}, parseApprovalIndices("1,3", 3))
	assert.Equal(t, []int{2}, parseApprovalIndices("2", 3))
	assert.Equal(t, []int{1, 2, 3}, parseApprovalIndices("1,2,3", 3))
}

func TestParseApprovalIndices_WithSpaces(t *testing.T) {
	assert.Equal(t, []int{1, 2}, parseApprovalIndices("1, 2", 3))
}

func TestParseApprovalIndices_Dedup(t *testing.T) {
	indices := parseApprovalIndices("1,1,2", 3)
	assert.Equal(t, []int{1, 2}, indices)
}

func TestParseApprovalIndices_Invalid(t *testing.T) {
	assert.Nil(t, parseApprovalIndices("abc", 3))
	assert.Nil(t, parseApprovalIndices("0", 3))
	assert.Nil(t, parseApprovalIndices("4", 3))
	assert.Nil(t, parseApprovalIndices("", 3))
	assert.Nil(t, parseApprovalIndices("-1", 3))
}

// --- Selector-based approval tests ---

func TestApprovalSelectionToResponse_ApproveAll(t *testing.T) {
	pending := []workflow.PendingApproval{{CallID: "c1"}, {CallID: "c2"}}
	choices, autoApprove, ok := ApprovalSelectionToResponse(0, pending)
	require.True(t, ok)
	assert.False(t, autoApprove)
	for _, c := range choices {
		assert.Equal(t, workflow.DecisionApproved, c.Decision)
	}
}

func TestApprovalSelectionToResponse_DenyAll(t *testing.T) {
	pending := []workflow.PendingApproval{{CallID: "c1"}}
	choices, _, ok := ApprovalSelectionToResponse(1, pending)
	require.True(t, ok)
	assert.Equal(t, workflow.DecisionDenied, choices[0].Decision)
}

func TestApprovalSelectionToResponse_Always(t *testing.T) {
	pending := []workflow.PendingApproval{{CallID: "c1"}}
	choices, autoApprove, ok := ApprovalSelectionToResponse(2, pending)
	require.True(t, ok)
	assert.True(t, autoApprove)
	assert.Equal(t, workflow.DecisionApproved, choices[0].Decision)
}

func TestApprovalSelectionToResponse_SelectIndividually(t *testing.T) {
	pending := []workflow.PendingApproval{{CallID: "c1"}, {CallID: "c2"}}
	_, _, ok := ApprovalSelectionToResponse(3, pending)
	assert.False(t, ok)
}
