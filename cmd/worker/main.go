// Worker executable for the durable agent session harness.
//
// This starts a Temporal worker that executes the session workflow and its
// supporting activities (model calls, tool execution, instruction/exec-policy
// loading, context compaction).
package main

import (
	"log"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/loomwork/durableagent/internal/activities"
	"github.com/loomwork/durableagent/internal/llm"
	"github.com/loomwork/durableagent/internal/tools"
	"github.com/loomwork/durableagent/internal/tools/handlers"
	"github.com/loomwork/durableagent/internal/workflow"
)

const (
	TaskQueue = "durable-agent"
)

func main() {
	if os.Getenv("ANTHROPIC_API_KEY") == "" && os.Getenv("OPENAI_API_KEY") == "" {
		log.Fatal("at least one of ANTHROPIC_API_KEY or OPENAI_API_KEY is required")
	}

	c, err := client.Dial(client.Options{
		HostPort: client.DefaultHostPort, // localhost:7233
	})
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, TaskQueue, worker.Options{})

	w.RegisterWorkflow(workflow.SessionWorkflow)
	w.RegisterWorkflow(workflow.SessionWorkflowContinued)

	// Maps to: codex-rs/core/src/tools/registry.rs ToolRegistry setup
	toolRegistry := tools.NewToolRegistry()
	toolRegistry.Register(handlers.NewShellTool())
	toolRegistry.Register(handlers.NewReadFileTool())
	toolRegistry.Register(handlers.NewListDirTool())
	toolRegistry.Register(handlers.NewGrepFilesTool())
	toolRegistry.Register(handlers.NewApplyPatchTool())
	toolRegistry.Register(handlers.NewWriteFileTool())

	log.Printf("Registered %d tools", toolRegistry.ToolCount())

	// MultiProviderClient dispatches to Anthropic or OpenAI per call based
	// on ModelConfig.Provider, so a single worker serves either.
	llmClient := llm.NewMultiProviderClient()

	llmActivities := activities.NewLLMActivities(llmClient)
	w.RegisterActivity(llmActivities.ExecuteLLMCall)
	w.RegisterActivity(llmActivities.ExecuteCompact)

	toolActivities := activities.NewToolActivities(toolRegistry)
	w.RegisterActivity(toolActivities.ExecuteTool)

	instructionActivities := activities.NewInstructionActivities()
	w.RegisterActivity(instructionActivities.LoadWorkerInstructions)
	w.RegisterActivity(instructionActivities.LoadExecPolicy)

	log.Printf("Starting worker on task queue: %s", TaskQueue)
	log.Printf("Temporal server: %s", client.DefaultHostPort)

	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	log.Println("Worker stopped")
}
