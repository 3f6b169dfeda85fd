// Package workflow contains Temporal workflow definitions.
//
// init.go handles one-time session initialization: loading AGENTS.md project
// docs and exec-policy rules from the worker filesystem when the caller did
// not pre-assemble them into the session configuration.
package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/loomwork/durableagent/internal/activities"
	"github.com/loomwork/durableagent/internal/instructions"
)

// resolveInstructions loads worker-side AGENTS.md files and merges all
// instruction sources into the session configuration. Called once before
// the first turn when BaseInstructions is empty. Non-fatal: falls back to
// defaults on activity failure.
func (s *SessionState) resolveInstructions(ctx workflow.Context) {
	logger := workflow.GetLogger(ctx)

	var workerDocs string
	loadInput := activities.LoadWorkerInstructionsInput{Cwd: s.Config.Cwd}

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 2,
		},
	}
	if s.Config.SessionTaskQueue != "" {
		actOpts.TaskQueue = s.Config.SessionTaskQueue
	}
	loadCtx := workflow.WithActivityOptions(ctx, actOpts)

	var loadResult activities.LoadWorkerInstructionsOutput
	err := workflow.ExecuteActivity(loadCtx, "LoadWorkerInstructions", loadInput).Get(ctx, &loadResult)
	if err != nil {
		logger.Warn("Failed to load worker instructions, using defaults", "error", err)
	} else {
		workerDocs = loadResult.ProjectDocs
	}

	merged := instructions.MergeInstructions(instructions.MergeInput{
		WorkerProjectDocs: workerDocs,
		ApprovalMode:      string(s.Config.ApprovalMode),
		Cwd:               s.Config.Cwd,
	})

	s.Config.BaseInstructions = merged.Base
	s.Config.DeveloperInstructions = merged.Developer
	s.Config.UserInstructions = merged.User

	logger.Info("Instructions resolved",
		"base_len", len(merged.Base),
		"developer_len", len(merged.Developer),
		"user_len", len(merged.User))
}

// loadExecPolicy loads exec policy rules from the worker filesystem. Called
// when ExecPolicyRules is empty and a rules directory was configured.
// Non-fatal: falls back to the default (heuristic-only) policy on failure.
func (s *SessionState) loadExecPolicy(ctx workflow.Context) {
	logger := workflow.GetLogger(ctx)

	if s.Config.ExecPolicyRules != "" || s.Config.ExecPolicyRulesDir == "" {
		return
	}

	loadInput := activities.LoadExecPolicyInput{CodexHome: s.Config.ExecPolicyRulesDir}

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 2,
		},
	}
	if s.Config.SessionTaskQueue != "" {
		actOpts.TaskQueue = s.Config.SessionTaskQueue
	}
	loadCtx := workflow.WithActivityOptions(ctx, actOpts)

	var loadResult activities.LoadExecPolicyOutput
	err := workflow.ExecuteActivity(loadCtx, "LoadExecPolicy", loadInput).Get(ctx, &loadResult)
	if err != nil {
		logger.Warn("Failed to load exec policy, using defaults", "error", err)
		return
	}

	s.Config.ExecPolicyRules = loadResult.RulesSource
	logger.Info("Exec policy loaded", "rules_len", len(loadResult.RulesSource))
}
