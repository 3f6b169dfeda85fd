// Package workflow contains Temporal workflow definitions.
//
// approval.go implements the exec approval gate: classifying which tool
// calls require user sign-off, applying the user's decision, and caching
// decisions by a canonical command key so the same call shape is not
// re-prompted within a session.
package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/loomwork/durableagent/internal/execpolicy"
	"github.com/loomwork/durableagent/internal/models"
	"github.com/loomwork/durableagent/internal/tools"
)

// readOnlyTools never require approval, regardless of approval mode — they
// cannot mutate session state.
var readOnlyTools = map[string]bool{
	"read_file":  true,
	"list_dir":   true,
	"grep_files": true,
}

// PendingApproval describes a tool call awaiting a user decision.
type PendingApproval struct {
	CallID    string `json:"call_id"`
	ToolName  string `json:"tool_name"`
	Arguments string `json:"arguments"`
	Command   string `json:"command,omitempty"`
	Cwd       string `json:"cwd,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// ApprovalDecision is the user's verdict on one pending call.
type ApprovalDecision string

const (
	DecisionApproved ApprovalDecision = "approved"
	DecisionDenied   ApprovalDecision = "denied"
)

// ApprovalResponse carries the user's decision for one call_id, delivered
// via the receive_approval signal.
type ApprovalResponse struct {
	CallID   string           `json:"call_id"`
	Decision ApprovalDecision `json:"decision"`
}

// ClassifyResult partitions a batch of function calls by how they must be
// handled before execution.
type ClassifyResult struct {
	ToExecute     []models.ConversationItem
	NeedsApproval []PendingApproval
	Forbidden     []models.ConversationItem // function_call_output denial items, ready to record
}

// ApprovalGate classifies tool calls against the session's approval policy
// and exec-policy rules.
//
// Maps to: the tool call handler's three-mode approval policy (never,
// on_request, always) described by the specification.
type ApprovalGate struct {
	mode   models.ApprovalMode
	policy *execpolicy.ExecPolicyManager
}

// NewApprovalGate builds a gate from the session's approval mode and the
// serialized exec-policy rules threaded through ContinueAsNew.
func NewApprovalGate(mode models.ApprovalMode, rulesSource string) *ApprovalGate {
	policy, err := execpolicy.LoadExecPolicyFromSource(rulesSource)
	if err != nil {
		policy, _ = execpolicy.LoadExecPolicyFromSource("")
	}
	return &ApprovalGate{mode: mode, policy: policy}
}

// Classify partitions function calls into ones to run immediately, ones
// needing a user decision, and ones forbidden outright by policy. A prior
// cached decision (keyed by ApprovalCacheKey) short-circuits reclassification
// for calls with the same tool name and arguments.
func (g *ApprovalGate) Classify(calls []models.ConversationItem, cache map[string]ApprovalDecision) ClassifyResult {
	var result ClassifyResult

	for _, fc := range calls {
		if g.mode == models.ApprovalNever {
			result.ToExecute = append(result.ToExecute, fc)
			continue
		}

		key := ApprovalCacheKey(fc.Name, fc.Arguments)
		if decision, ok := cache[key]; ok {
			if decision == DecisionApproved {
				result.ToExecute = append(result.ToExecute, fc)
			} else {
				result.Forbidden = append(result.Forbidden, deniedOutput(fc.CallID, "denied by cached prior decision"))
			}
			continue
		}

		requirement, command := g.classifyOne(fc)
		switch requirement {
		case tools.ApprovalForbidden:
			result.Forbidden = append(result.Forbidden, deniedOutput(fc.CallID, "forbidden by exec policy"))
		case tools.ApprovalSkip:
			result.ToExecute = append(result.ToExecute, fc)
		default: // tools.ApprovalNeeded
			result.NeedsApproval = append(result.NeedsApproval, PendingApproval{
				CallID:    fc.CallID,
				ToolName:  fc.Name,
				Arguments: fc.Arguments,
				Command:   command,
			})
		}
	}

	return result
}

// classifyOne determines the approval requirement for a single call.
// Shell commands are run through the Starlark exec policy; read-only tools
// never need approval; everything else follows the session's mode.
func (g *ApprovalGate) classifyOne(fc models.ConversationItem) (tools.ExecApprovalRequirement, string) {
	if readOnlyTools[fc.Name] {
		return tools.ApprovalSkip, ""
	}

	if fc.Name == "shell" {
		cmd, ok := shellCommandArg(fc.Arguments)
		if ok {
			return g.policy.EvaluateShellCommand(cmd, g.mode), cmd
		}
	}

	if g.mode == models.ApprovalAlways {
		return tools.ApprovalNeeded, ""
	}
	// on_request, non-shell mutating tool (write_file, apply_patch): no
	// policy engine covers these, so always prompt.
	return tools.ApprovalNeeded, ""
}

// shellCommandArg extracts the "command" string argument from a shell tool
// call's raw JSON arguments.
func shellCommandArg(argumentsJSON string) (string, bool) {
	var args struct {
		Command string `json:"command"`
	}
	if argumentsJSON == "" {
		return "", false
	}
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return "", false
	}
	return args.Command, args.Command != ""
}

// ApplyDecision resolves each call against the responses delivered by the
// receive_approval signal, recording the decision in the cache for reuse on
// an identical future call. A call with no matching response (client never
// answered, e.g. the turn was interrupted) is treated as denied.
func (g *ApprovalGate) ApplyDecision(
	calls []models.ConversationItem,
	responses []ApprovalResponse,
	cache map[string]ApprovalDecision,
) (approved []models.ConversationItem, denied []models.ConversationItem) {
	byCallID := make(map[string]ApprovalDecision, len(responses))
	for _, r := range responses {
		byCallID[r.CallID] = r.Decision
	}

	for _, fc := range calls {
		decision, ok := byCallID[fc.CallID]
		if !ok {
			decision = DecisionDenied
		}
		cache[ApprovalCacheKey(fc.Name, fc.Arguments)] = decision

		if decision == DecisionApproved {
			approved = append(approved, fc)
		} else {
			denied = append(denied, deniedOutput(fc.CallID, "denied by user"))
		}
	}
	return approved, denied
}

func deniedOutput(callID, reason string) models.ConversationItem {
	success := false
	return models.ConversationItem{
		Type:   models.ItemTypeFunctionCallOutput,
		CallID: callID,
		Output: &models.FunctionCallOutputPayload{
			Content: reason,
			Success: &success,
		},
	}
}

// ApprovalCacheKey derives a stable key from a tool name and its raw JSON
// arguments. Arguments are round-tripped through encoding/json — which
// marshals map keys in sorted order — so two semantically identical calls
// with differently-ordered JSON keys hash to the same key. This is the
// canonical serialization the approval cache relies on to survive replay:
// it is a pure function of the call's own content, never of map iteration
// order or wall-clock state.
func ApprovalCacheKey(name, argumentsJSON string) string {
	canonical := canonicalizeArguments(argumentsJSON)
	h := sha256.Sum256([]byte(name + "\x00" + canonical))
	return hex.EncodeToString(h[:])
}

func canonicalizeArguments(raw string) string {
	if raw == "" {
		return "{}"
	}
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	b, err := json.Marshal(v)
	if err != nil {
		return raw
	}
	return string(b)
}
