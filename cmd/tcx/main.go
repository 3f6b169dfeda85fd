// tcx is the interactive TUI client for durable agent sessions.
//
// It connects to a Temporal workflow, streams session events into a
// scrollback viewport, and lets you type follow-up turns or resolve
// tool approval prompts.
//
// Usage:
//
//	tcx -m "hello"                    Start new session with initial message
//	tcx                               Start new session, enter input immediately
//	tcx --session <id>                Resume existing session
//	tcx -m "hello" --model gpt-4o     Use a specific model
package main

import (
	"flag"
	"fmt"
	"os"

	"go.temporal.io/sdk/client"

	"github.com/loomwork/durableagent/internal/cli"
	"github.com/loomwork/durableagent/internal/models"
)

func main() {
	message := flag.String("m", "", "Initial message (starts new workflow)")
	message2 := flag.String("message", "", "Initial message (alias for -m)")
	session := flag.String("session", "", "Resume existing session")
	workflowID := flag.String("workflow-id", "", "Resume existing session (alias for --session)")
	model := flag.String("model", "gpt-4o-mini", "LLM model to use")
	temporalHost := flag.String("temporal-host", client.DefaultHostPort, "Temporal server address")
	noMarkdown := flag.Bool("no-markdown", false, "Disable markdown rendering")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	inline := flag.Bool("inline", false, "Disable alt-screen mode")
	fullAuto := flag.Bool("full-auto", false, "Auto-approve all tool calls without prompting")
	approvalMode := flag.String("approval-mode", "", "Approval mode: on_request, never, always")
	flag.Parse()

	msg := *message
	if msg == "" {
		msg = *message2
	}

	sess := *session
	if sess == "" {
		sess = *workflowID
	}

	var resolvedApproval models.ApprovalMode
	switch {
	case *approvalMode != "":
		resolvedApproval = models.ApprovalMode(*approvalMode)
	case *fullAuto:
		resolvedApproval = models.ApprovalNever
	default:
		resolvedApproval = models.ApprovalOnRequest
	}

	config := cli.Config{
		TemporalHost: *temporalHost,
		Session:      sess,
		Message:      msg,
		Model:        *model,
		NoMarkdown:   *noMarkdown,
		NoColor:      *noColor,
		ApprovalMode: resolvedApproval,
		Inline:       *inline,
	}

	if err := cli.Run(config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
