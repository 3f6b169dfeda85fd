package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"

	"github.com/loomwork/durableagent/internal/activities"
	"github.com/loomwork/durableagent/internal/models"
)

// Stub activity functions for the test environment. Never called directly —
// OnActivity mocks override them — but must be registered so the test
// environment recognizes the activity names.
func ExecuteLLMCall(_ context.Context, _ activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
	panic("stub: should be mocked")
}

func ExecuteTool(_ context.Context, _ activities.ToolActivityInput) (activities.ToolActivityOutput, error) {
	panic("stub: should be mocked")
}

func LoadWorkerInstructions(_ context.Context, _ activities.LoadWorkerInstructionsInput) (activities.LoadWorkerInstructionsOutput, error) {
	panic("stub: should be mocked")
}

func LoadExecPolicy(_ context.Context, _ activities.LoadExecPolicyInput) (activities.LoadExecPolicyOutput, error) {
	panic("stub: should be mocked")
}

type SessionWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func TestSessionWorkflowSuite(t *testing.T) {
	suite.Run(t, new(SessionWorkflowTestSuite))
}

func (s *SessionWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.env.RegisterActivity(ExecuteLLMCall)
	s.env.RegisterActivity(ExecuteTool)
	s.env.RegisterActivity(LoadWorkerInstructions)
	s.env.RegisterActivity(LoadExecPolicy)

	s.env.OnActivity("LoadWorkerInstructions", mock.Anything, mock.Anything).
		Return(activities.LoadWorkerInstructionsOutput{}, nil).Maybe()
	s.env.OnActivity("LoadExecPolicy", mock.Anything, mock.Anything).
		Return(activities.LoadExecPolicyOutput{}, nil).Maybe()
}

func (s *SessionWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func mockStopResponse(content string, tokens int) activities.LLMActivityOutput {
	return activities.LLMActivityOutput{
		Items:        []models.ConversationItem{{Type: models.ItemTypeAssistantMessage, Content: content}},
		FinishReason: models.FinishReasonStop,
		TokenUsage:   models.TokenUsage{TotalTokens: tokens},
	}
}

func testInput(prompt string) WorkflowInput {
	return WorkflowInput{
		ConversationID: "test-conv-1",
		FirstPrompt:    prompt,
		Config: models.SessionConfiguration{
			Model: models.ModelConfig{
				Provider:      "anthropic",
				Model:         "claude-sonnet-4-5",
				MaxTokens:     100,
				ContextWindow: 128000,
			},
			ApprovalMode: models.ApprovalNever,
		},
	}
}

// TestSingleTurn_CompletesAndShutsDownOnSignal verifies a turn with no tool
// calls completes, and the session ends once request_shutdown arrives.
func (s *SessionWorkflowTestSuite) TestSingleTurn_CompletesAndShutsDownOnSignal() {
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(mockStopResponse("Hello!", 50), nil).Once()

	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(SignalRequestShutdown, nil)
	}, time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("Hello"))

	require.True(s.T(), s.env.IsWorkflowCompleted())
	var result WorkflowResult
	require.NoError(s.T(), s.env.GetWorkflowResult(&result))
	require.Equal(s.T(), "test-conv-1", result.ConversationID)
	require.Equal(s.T(), "shutdown", result.EndReason)
	require.Equal(s.T(), 50, result.TotalTokens)
}

// TestGetEventsSince_ReturnsSessionAndTurnEvents verifies get_events_since
// surfaces the sink's events to a polling client mid-run.
func (s *SessionWorkflowTestSuite) TestGetEventsSince_ReturnsSessionAndTurnEvents() {
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(mockStopResponse("I'm here.", 30), nil).Once()

	s.env.RegisterDelayedCallback(func() {
		value, err := s.env.QueryWorkflow(QueryGetEventsSince, int64(0))
		require.NoError(s.T(), err)
		var slice EventSlice
		require.NoError(s.T(), value.Get(&slice))
		require.NotEmpty(s.T(), slice.Events)
		require.Equal(s.T(), EventSessionConfigured, slice.Events[0].Kind)
	}, time.Millisecond*500)

	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(SignalRequestShutdown, nil)
	}, time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("hi"))
	require.True(s.T(), s.env.IsWorkflowCompleted())
}

// TestToolApproval_ApprovedCallExecutes verifies an exec-approval-gated
// tool call runs once receive_approval signals approval.
func (s *SessionWorkflowTestSuite) TestToolApproval_ApprovedCallExecutes() {
	input := testInput("run ls")
	input.Config.ApprovalMode = models.ApprovalAlways
	input.Config.Tools = models.ToolsConfig{EnableShell: true}

	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(activities.LLMActivityOutput{
			Items: []models.ConversationItem{
				{Type: models.ItemTypeFunctionCall, CallID: "call-1", Name: "shell", Arguments: `{"command":"ls"}`},
			},
			FinishReason: models.FinishReasonToolCalls,
		}, nil).Once()
	s.env.OnActivity("ExecuteTool", mock.Anything, mock.Anything).
		Return(activities.ToolActivityOutput{CallID: "call-1", Content: "file.txt", Success: boolPtr(true)}, nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(mockStopResponse("Done.", 10), nil).Once()

	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(SignalReceiveApproval, ApprovalPayload{CallID: "call-1", Decision: DecisionApproved})
	}, time.Millisecond*500)
	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(SignalRequestShutdown, nil)
	}, time.Second*2)

	s.env.ExecuteWorkflow(SessionWorkflow, input)
	require.True(s.T(), s.env.IsWorkflowCompleted())
	var result WorkflowResult
	require.NoError(s.T(), s.env.GetWorkflowResult(&result))
	require.Contains(s.T(), result.ToolCallsExecuted, "shell")
}

// TestToolApproval_DeniedCallNeverExecutes verifies a denied call never
// reaches ExecuteTool and is instead recorded as a denied function_call_output.
func (s *SessionWorkflowTestSuite) TestToolApproval_DeniedCallNeverExecutes() {
	input := testInput("run rm")
	input.Config.ApprovalMode = models.ApprovalAlways
	input.Config.Tools = models.ToolsConfig{EnableShell: true}

	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(activities.LLMActivityOutput{
			Items: []models.ConversationItem{
				{Type: models.ItemTypeFunctionCall, CallID: "call-1", Name: "shell", Arguments: `{"command":"rm -rf /"}`},
			},
			FinishReason: models.FinishReasonToolCalls,
		}, nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(mockStopResponse("Understood, not running that.", 10), nil).Once()

	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(SignalReceiveApproval, ApprovalPayload{CallID: "call-1", Decision: DecisionDenied})
	}, time.Millisecond*500)
	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(SignalRequestShutdown, nil)
	}, time.Second*2)

	s.env.ExecuteWorkflow(SessionWorkflow, input)
	require.True(s.T(), s.env.IsWorkflowCompleted())
	var result WorkflowResult
	require.NoError(s.T(), s.env.GetWorkflowResult(&result))
	require.NotContains(s.T(), result.ToolCallsExecuted, "shell")
}

// TestMultiTurn_QueuedTurnRunsAfterFirstCompletes verifies a receive_user_turn
// signal arriving while idle starts a second turn, FIFO.
func (s *SessionWorkflowTestSuite) TestMultiTurn_QueuedTurnRunsAfterFirstCompletes() {
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(mockStopResponse("First done.", 10), nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(mockStopResponse("Second done.", 10), nil).Once()

	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(SignalReceiveUserTurn, UserTurnPayload{Items: []string{"second turn"}})
	}, time.Second)
	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(SignalRequestShutdown, nil)
	}, time.Second*2)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("first turn"))
	require.True(s.T(), s.env.IsWorkflowCompleted())
	var result WorkflowResult
	require.NoError(s.T(), s.env.GetWorkflowResult(&result))
	require.Equal(s.T(), "shutdown", result.EndReason)
	require.Equal(s.T(), 20, result.TotalTokens)
}

// TestCancelTurn_AbortsBeforeNextLLMCall verifies cancel_turn stops the loop
// between LLM calls rather than erroring the workflow.
func (s *SessionWorkflowTestSuite) TestCancelTurn_AbortsBeforeNextLLMCall() {
	input := testInput("loop forever")
	input.Config.Tools = models.ToolsConfig{EnableShell: true}
	input.Config.ApprovalMode = models.ApprovalNever

	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(activities.LLMActivityOutput{
			Items: []models.ConversationItem{
				{Type: models.ItemTypeFunctionCall, CallID: "call-1", Name: "shell", Arguments: `{"command":"sleep 1"}`},
			},
			FinishReason: models.FinishReasonToolCalls,
		}, nil).Once()
	s.env.OnActivity("ExecuteTool", mock.Anything, mock.Anything).
		Return(activities.ToolActivityOutput{CallID: "call-1", Content: "ok", Success: boolPtr(true)}, nil).Once()

	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(SignalCancelTurn, nil)
	}, time.Millisecond*500)
	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(SignalRequestShutdown, nil)
	}, time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, input)
	require.True(s.T(), s.env.IsWorkflowCompleted())
	var result WorkflowResult
	require.NoError(s.T(), s.env.GetWorkflowResult(&result))
	require.Equal(s.T(), "shutdown", result.EndReason)
}

func boolPtr(b bool) *bool { return &b }
