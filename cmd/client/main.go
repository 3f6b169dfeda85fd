// CLI client for the durable agent session workflow.
//
// Sub-commands:
//
//	start      --message "..."                 Start a new session, print its workflow ID
//	send       --workflow-id <id> --message "..."  Submit a user turn
//	events     --workflow-id <id> [--since N]  Drain and print sink events as JSON
//	approve    --workflow-id <id> --call-id <id> [--deny]  Resolve a pending exec approval
//	interrupt  --workflow-id <id>              Cancel the turn currently running
//	end        --workflow-id <id>              Request shutdown
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"github.com/loomwork/durableagent/internal/models"
	"github.com/loomwork/durableagent/internal/session"
	"github.com/loomwork/durableagent/internal/workflow"
)

const TaskQueue = "durable-agent"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]
	switch subcommand {
	case "start":
		cmdStart(os.Args[2:])
	case "send":
		cmdSend(os.Args[2:])
	case "events":
		cmdEvents(os.Args[2:])
	case "approve":
		cmdApprove(os.Args[2:])
	case "interrupt":
		cmdInterrupt(os.Args[2:])
	case "end":
		cmdEnd(os.Args[2:])
	default:
		log.Printf("Unknown sub-command: %s\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: client <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  start      Start a new session")
	fmt.Fprintln(os.Stderr, "  send       Submit a user turn to a running session")
	fmt.Fprintln(os.Stderr, "  events     Drain and print sink events")
	fmt.Fprintln(os.Stderr, "  approve    Resolve a pending exec approval")
	fmt.Fprintln(os.Stderr, "  interrupt  Cancel the turn currently running")
	fmt.Fprintln(os.Stderr, "  end        Request shutdown")
}

func dialTemporal() client.Client {
	c, err := client.Dial(client.Options{
		HostPort: client.DefaultHostPort,
	})
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	return c
}

// cmdStart starts a new session workflow.
func cmdStart(args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	message := fs.String("message", "", "First user message (required)")
	model := fs.String("model", "gpt-4o-mini", "LLM model to use")
	enableShell := fs.Bool("enable-shell", true, "Enable shell tool")
	enableReadFile := fs.Bool("enable-read-file", true, "Enable read_file tool")
	fs.Parse(args)

	if *message == "" {
		log.Fatal("Error: --message is required\n\nUsage: client start --message \"Your message here\"")
	}

	c := dialTemporal()
	defer c.Close()

	workflowID := fmt.Sprintf("agent-session-%s", uuid.New().String()[:8])

	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}

	input := workflow.WorkflowInput{
		ConversationID: workflowID,
		FirstPrompt:    *message,
		Config: models.SessionConfiguration{
			Model: models.ModelConfig{
				Model:         *model,
				Temperature:   0.7,
				MaxTokens:     4096,
				ContextWindow: 128000,
			},
			Tools: models.ToolsConfig{
				EnableShell:    *enableShell,
				EnableReadFile: *enableReadFile,
			},
			Cwd:           cwd,
			SessionSource: "cli",
		},
	}

	log.Printf("Starting session: %s", workflowID)
	log.Printf("Message: %s", *message)

	ctx := context.Background()
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: TaskQueue,
	}, workflow.SessionWorkflow, input)
	if err != nil {
		log.Fatalf("Failed to start workflow: %v", err)
	}

	log.Printf("Session started")
	log.Printf("Workflow ID: %s", workflowID)
	log.Printf("Run ID: %s", run.GetRunID())
	log.Printf("Temporal UI: http://localhost:8233/namespaces/default/workflows/%s", workflowID)

	// Print workflow ID on stdout for scripting
	fmt.Println(workflowID)
}

// cmdSend submits a user turn via the session adapter.
func cmdSend(args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	workflowID := fs.String("workflow-id", "", "Workflow ID (required)")
	message := fs.String("message", "", "User message (required)")
	fs.Parse(args)

	if *workflowID == "" || *message == "" {
		log.Fatal("Error: --workflow-id and --message are required")
	}

	c := dialTemporal()
	defer c.Close()

	adapter := session.New(c, *workflowID, "")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}

	if err := adapter.Submit(ctx, session.UserInput([]string{*message}, cwd)); err != nil {
		log.Fatalf("Failed to submit user turn: %v", err)
	}

	log.Printf("Turn submitted")
}

// cmdEvents drains events at or after --since and prints them as JSON,
// one event per line.
func cmdEvents(args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	workflowID := fs.String("workflow-id", "", "Workflow ID (required)")
	since := fs.Int64("since", 0, "First event index to fetch")
	timeout := fs.Duration("timeout", 30*time.Second, "How long to wait for the next event")
	fs.Parse(args)

	if *workflowID == "" {
		log.Fatal("Error: --workflow-id is required")
	}

	c := dialTemporal()
	defer c.Close()

	resp, err := c.QueryWorkflow(context.Background(), *workflowID, "", workflow.QueryGetEventsSince, *since)
	if err != nil {
		log.Fatalf("Failed to query events: %v", err)
	}

	var slice workflow.EventSlice
	if err := resp.Get(&slice); err != nil {
		log.Fatalf("Failed to decode events: %v", err)
	}

	if len(slice.Events) == 0 {
		adapter := session.New(c, *workflowID, "")
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		e, err := adapter.NextEvent(ctx)
		if err != nil {
			log.Fatalf("No events available: %v", err)
		}
		slice.Events = []workflow.Event{e}
	}

	for _, e := range slice.Events {
		data, err := json.Marshal(e)
		if err != nil {
			log.Fatalf("Failed to marshal event: %v", err)
		}
		fmt.Println(string(data))
	}
}

// cmdApprove resolves a pending exec-approval request.
func cmdApprove(args []string) {
	fs := flag.NewFlagSet("approve", flag.ExitOnError)
	workflowID := fs.String("workflow-id", "", "Workflow ID (required)")
	callID := fs.String("call-id", "", "Pending call ID (required)")
	deny := fs.Bool("deny", false, "Deny instead of approve")
	fs.Parse(args)

	if *workflowID == "" || *callID == "" {
		log.Fatal("Error: --workflow-id and --call-id are required")
	}

	c := dialTemporal()
	defer c.Close()

	decision := workflow.DecisionApproved
	if *deny {
		decision = workflow.DecisionDenied
	}

	adapter := session.New(c, *workflowID, "")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := adapter.Submit(ctx, session.Approval(*callID, decision)); err != nil {
		log.Fatalf("Failed to submit approval: %v", err)
	}

	log.Printf("Decision %s submitted for call %s", decision, *callID)
}

// cmdInterrupt cancels the turn currently running.
func cmdInterrupt(args []string) {
	fs := flag.NewFlagSet("interrupt", flag.ExitOnError)
	workflowID := fs.String("workflow-id", "", "Workflow ID (required)")
	fs.Parse(args)

	if *workflowID == "" {
		log.Fatal("Error: --workflow-id is required")
	}

	c := dialTemporal()
	defer c.Close()

	adapter := session.New(c, *workflowID, "")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := adapter.Submit(ctx, session.Cancel()); err != nil {
		log.Fatalf("Failed to submit cancel: %v", err)
	}

	log.Printf("Cancel requested")
}

// cmdEnd requests shutdown after the current turn completes.
func cmdEnd(args []string) {
	fs := flag.NewFlagSet("end", flag.ExitOnError)
	workflowID := fs.String("workflow-id", "", "Workflow ID (required)")
	fs.Parse(args)

	if *workflowID == "" {
		log.Fatal("Error: --workflow-id is required")
	}

	c := dialTemporal()
	defer c.Close()

	adapter := session.New(c, *workflowID, "")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := adapter.Submit(ctx, session.Shutdown()); err != nil {
		log.Fatalf("Failed to submit shutdown: %v", err)
	}

	log.Printf("Shutdown requested")
}
