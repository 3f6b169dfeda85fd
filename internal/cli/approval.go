package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.temporal.io/api/serviceerror"

	"github.com/loomwork/durableagent/internal/workflow"
)

// ApprovalChoice pairs one pending call with the decision the user made
// about it. The workflow resolves approvals one call_id at a time (one
// receive_approval signal each), so a batch "yes"/"always" answer expands
// into one choice per pending call.
type ApprovalChoice struct {
	CallID   string
	Decision workflow.ApprovalDecision
}

func allApproved(pending []workflow.PendingApproval) []ApprovalChoice {
	choices := make([]ApprovalChoice, len(pending))
	for i, ap := range pending {
		choices[i] = ApprovalChoice{CallID: ap.CallID, Decision: workflow.DecisionApproved}
	}
	return choices
}

func allDenied(pending []workflow.PendingApproval) []ApprovalChoice {
	choices := make([]ApprovalChoice, len(pending))
	for i, ap := range pending {
		choices[i] = ApprovalChoice{CallID: ap.CallID, Decision: workflow.DecisionDenied}
	}
	return choices
}

// HandleApprovalInput parses the user's typed response to an approval
// prompt. Returns (choices, setAutoApprove, ok). ok is false if the input
// isn't recognized.
//
// Supports:
//   - "y"/"yes" — approve all
//   - "n"/"no" — deny all
//   - "a"/"always" — approve all + set auto-approve flag
//   - "1,3" — approve indices 1 and 3, deny the rest
func HandleApprovalInput(line string, pending []workflow.PendingApproval) (choices []ApprovalChoice, autoApprove, ok bool) {
	line = strings.ToLower(strings.TrimSpace(line))

	switch line {
	case "y", "yes":
		return allApproved(pending), false, true
	case "n", "no":
		return allDenied(pending), false, true
	case "a", "always":
		return allApproved(pending), true, true
	}

	indices := parseApprovalIndices(line, len(pending))
	if indices == nil {
		return nil, false, false
	}

	approvedSet := make(map[int]bool, len(indices))
	for _, idx := range indices {
		approvedSet[idx] = true
	}

	choices = make([]ApprovalChoice, len(pending))
	for i, ap := range pending {
		decision := workflow.DecisionDenied
		if approvedSet[i+1] {
			decision = workflow.DecisionApproved
		}
		choices[i] = ApprovalChoice{CallID: ap.CallID, Decision: decision}
	}
	return choices, false, true
}

// parseApprovalIndices parses a comma-separated list of 1-based indices.
// Returns nil if the input is not valid.
func parseApprovalIndices(input string, maxIndex int) []int {
	parts := strings.Split(input, ",")
	var indices []int
	seen := make(map[int]bool)

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var idx int
		n, err := fmt.Sscanf(part, "%d", &idx)
		if err != nil || n != 1 || idx < 1 || idx > maxIndex {
			return nil
		}
		if !seen[idx] {
			seen[idx] = true
			indices = append(indices, idx)
		}
	}

	if len(indices) == 0 {
		return nil
	}
	return indices
}

// ApprovalSelectionToResponse maps a selector index to approval choices.
// Options: 0=approve all, 1=deny all, 2=always approve, 3=select
// individually (caller falls back to the textarea, ok=false).
func ApprovalSelectionToResponse(selected int, pending []workflow.PendingApproval) (choices []ApprovalChoice, autoApprove, ok bool) {
	switch selected {
	case 0:
		return allApproved(pending), false, true
	case 1:
		return allDenied(pending), false, true
	case 2:
		return allApproved(pending), true, true
	default:
		return nil, false, false
	}
}

// formatApprovalDetail extracts a human-readable detail string for a
// pending approval. The Command field (when the server already resolved
// one, e.g. for shell calls) takes priority over parsing raw Arguments.
func formatApprovalDetail(ap workflow.PendingApproval) string {
	if ap.Command != "" {
		return "Command: " + ap.Command
	}
	if ap.Arguments == "" {
		return ""
	}

	var args map[string]interface{}
	if json.Unmarshal([]byte(ap.Arguments), &args) == nil {
		switch ap.ToolName {
		case "write_file", "apply_patch", "read_file":
			if path, ok := args["path"].(string); ok {
				return "Path: " + path
			}
		case "list_dir":
			if path, ok := args["dir_path"].(string); ok {
				return "Path: " + path
			}
			if path, ok := args["path"].(string); ok {
				return "Path: " + path
			}
		case "grep_files":
			if pat, ok := args["pattern"].(string); ok {
				detail := "Pattern: " + pat
				if dir, ok := args["path"].(string); ok {
					detail += " in " + dir
				}
				return detail
			}
		}
	}
	display := ap.Arguments
	if len(display) > 300 {
		display = display[:300] + "..."
	}
	return "Args: " + display
}

// streamErrorKind classifies errors surfaced by the session adapter's
// NextEvent call.
type streamErrorKind int

const (
	streamErrorTransient streamErrorKind = iota
	streamErrorCompleted
	streamErrorFatal
)

// classifyStreamError categorizes an event-stream error using Temporal SDK
// typed errors.
func classifyStreamError(err error) streamErrorKind {
	var notFoundErr *serviceerror.NotFound
	if errors.As(err, &notFoundErr) {
		return streamErrorCompleted
	}

	var notReadyErr *serviceerror.WorkflowNotReady
	if errors.As(err, &notReadyErr) {
		return streamErrorTransient
	}

	var queryFailedErr *serviceerror.QueryFailed
	if errors.As(err, &queryFailedErr) {
		return streamErrorTransient
	}

	if strings.Contains(err.Error(), "workflow execution already completed") {
		return streamErrorCompleted
	}

	return streamErrorFatal
}
