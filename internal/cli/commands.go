package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"github.com/loomwork/durableagent/internal/models"
	"github.com/loomwork/durableagent/internal/session"
	"github.com/loomwork/durableagent/internal/workflow"
)

// startWorkflowCmd starts a new session workflow with config.Message as the
// first prompt and returns its generated workflow ID.
func startWorkflowCmd(c client.Client, config Config) tea.Cmd {
	return func() tea.Msg {
		cwd := config.Cwd
		if cwd == "" {
			cwd, _ = os.Getwd()
		}

		workflowID := fmt.Sprintf("agent-session-%s", uuid.New().String()[:8])

		input := workflow.WorkflowInput{
			ConversationID: workflowID,
			FirstPrompt:    config.Message,
			Config: models.SessionConfiguration{
				Model: models.ModelConfig{
					Model: config.Model,
				},
				Tools: models.ToolsConfig{
					EnableShell:    true,
					EnableReadFile: true,
				},
				Cwd:           cwd,
				SessionSource: "cli",
				ApprovalMode:  config.ApprovalMode,
			},
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		_, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:        workflowID,
			TaskQueue: TaskQueue,
		}, workflow.SessionWorkflow, input)
		if err != nil {
			return WorkflowStartErrorMsg{Err: fmt.Errorf("failed to start session workflow: %w", err)}
		}

		return WorkflowStartedMsg{WorkflowID: workflowID}
	}
}

// resumeWorkflowCmd reattaches to an existing session workflow. The actual
// history is fetched by the first nextEventCmd call (from watermark 0), so
// this just confirms the workflow ID and hands control to the event loop.
func resumeWorkflowCmd(workflowID string) tea.Cmd {
	return func() tea.Msg {
		return WorkflowStartedMsg{WorkflowID: workflowID, IsResume: true}
	}
}

// nextEventCmd blocks on the adapter's event stream and returns the next
// event (or the error that stopped it).
func nextEventCmd(adapter *session.Adapter) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		e, err := adapter.NextEvent(ctx)
		if err != nil {
			return EventErrorMsg{Err: err}
		}
		return EventMsg{Event: e}
	}
}

// sendUserInputCmd submits a user turn via the session adapter.
func sendUserInputCmd(adapter *session.Adapter, cwd, content string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := adapter.Submit(ctx, session.UserInput([]string{content}, cwd)); err != nil {
			return UserInputErrorMsg{Err: err}
		}
		return UserInputSentMsg{}
	}
}

// sendInterruptCmd cancels the turn currently running.
func sendInterruptCmd(adapter *session.Adapter) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := adapter.Submit(ctx, session.Cancel()); err != nil {
			return InterruptErrorMsg{Err: err}
		}
		return InterruptSentMsg{}
	}
}

// sendShutdownCmd requests shutdown after the current turn completes.
func sendShutdownCmd(adapter *session.Adapter) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := adapter.Submit(ctx, session.Shutdown()); err != nil {
			return ShutdownErrorMsg{Err: err}
		}
		return ShutdownSentMsg{}
	}
}

// sendApprovalChoicesCmd resolves every choice in turn, one
// receive_approval signal per call_id.
func sendApprovalChoicesCmd(adapter *session.Adapter, choices []ApprovalChoice) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		for _, choice := range choices {
			if err := adapter.Submit(ctx, session.Approval(choice.CallID, choice.Decision)); err != nil {
				return ApprovalErrorMsg{Err: err}
			}
		}
		return ApprovalSentMsg{}
	}
}

// waitForCompletionCmd waits for a workflow run to finish and returns its result.
func waitForCompletionCmd(c client.Client, workflowID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		run := c.GetWorkflow(ctx, workflowID, "")
		var result workflow.WorkflowResult
		if err := run.Get(ctx, &result); err != nil {
			return SessionErrorMsg{Err: err}
		}
		return SessionCompletedMsg{Result: &result}
	}
}
