// Package cli implements the interactive TUI for the durable agent session client.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/loomwork/durableagent/internal/workflow"
	"golang.org/x/term"
)

// ItemRenderer renders sink events as styled strings for the viewport.
type ItemRenderer struct {
	width      int
	noColor    bool
	noMarkdown bool
	styles     Styles
	mdRenderer *glamour.TermRenderer
}

// NewItemRenderer creates a renderer for session events.
func NewItemRenderer(width int, noColor, noMarkdown bool, styles Styles) *ItemRenderer {
	r := &ItemRenderer{
		width:      width,
		noColor:    noColor,
		noMarkdown: noMarkdown,
		styles:     styles,
	}
	if !noMarkdown {
		w := width
		if w <= 0 {
			w = 80
			if tw, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && tw > 0 {
				w = tw
			}
		}
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(w),
		)
		if err == nil {
			r.mdRenderer = md
		}
	}
	return r
}

// RenderEvent renders a single sink event as a string. Returns empty string
// if the event produces no visible output.
func (r *ItemRenderer) RenderEvent(e workflow.Event) string {
	switch e.Kind {
	case workflow.EventSessionConfigured:
		return r.RenderSystemMessage(fmt.Sprintf("Session configured: model %s", e.Model))
	case workflow.EventTurnStarted:
		return r.RenderTurnStarted(e)
	case workflow.EventAgentMessage:
		return r.RenderAgentMessage(e)
	case workflow.EventExecApprovalRequest:
		return "" // rendered separately, via RenderApprovalContext, once a batch is known
	case workflow.EventToolCallBegin:
		return r.RenderToolCallBegin(e)
	case workflow.EventToolCallEnd:
		return r.RenderToolCallEnd(e)
	case workflow.EventTurnComplete:
		return ""
	case workflow.EventError:
		return r.RenderErrorEvent(e)
	case workflow.EventShutdown:
		return r.RenderSystemMessage("Session shutting down.")
	default:
		return ""
	}
}

// RenderTurnStarted renders a turn separator.
func (r *ItemRenderer) RenderTurnStarted(e workflow.Event) string {
	line := fmt.Sprintf("── Turn %s ──", e.TurnID)
	return r.styles.TurnSeparator.Render(line) + "\n"
}

// RenderUserMessage renders a user message echoed back into the viewport.
func (r *ItemRenderer) RenderUserMessage(content string) string {
	return r.styles.UserMessage.Render("> "+content) + "\n"
}

// RenderAgentMessage renders an assistant message with optional markdown.
func (r *ItemRenderer) RenderAgentMessage(e workflow.Event) string {
	content := e.Text
	if content == "" {
		return ""
	}
	if r.mdRenderer != nil {
		rendered, err := r.mdRenderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return "\n" + content + "\n\n"
}

// RenderToolCallBegin renders a function call invocation.
// Example: "• Ran echo hello"
func (r *ItemRenderer) RenderToolCallBegin(e workflow.Event) string {
	verb, detail := formatToolCall(e.Name, e.Command)
	bullet := r.styles.ToolBullet.Render("•")
	styledVerb := r.styles.ToolVerb.Render(verb)
	if detail != "" {
		return bullet + " " + styledVerb + " " + detail + "\n"
	}
	return bullet + " " + styledVerb + "\n"
}

// RenderToolCallEnd renders function call output. Uses a 5-line limit with
// middle truncation and tree-style prefixes.
func (r *ItemRenderer) RenderToolCallEnd(e workflow.Event) string {
	isFailure := e.ExitCode != 0
	content := strings.TrimRight(e.OutputExcerpt, "\n")

	if content == "" {
		line := r.styles.OutputPrefix.Render("  └ ") + r.styles.OutputDim.Render("(no output)")
		return line + "\n"
	}

	lines := strings.Split(content, "\n")
	displayed, _ := truncateMiddle(lines, 5)

	var b strings.Builder
	for i, line := range displayed {
		var prefix string
		if i == 0 {
			prefix = r.styles.OutputPrefix.Render("  └ ")
		} else {
			prefix = r.styles.OutputPrefix.Render("    ")
		}
		if isFailure {
			b.WriteString(prefix + r.styles.OutputFailure.Render(line) + "\n")
		} else {
			b.WriteString(prefix + r.styles.OutputDim.Render(line) + "\n")
		}
	}

	return b.String()
}

// RenderErrorEvent renders an error event.
func (r *ItemRenderer) RenderErrorEvent(e workflow.Event) string {
	prefix := "Error:"
	if e.Recoverable {
		prefix = "Warning:"
	}
	return r.styles.OutputFailure.Render(prefix+" "+e.Text) + "\n"
}

// RenderSystemMessage renders a one-line system notice.
func (r *ItemRenderer) RenderSystemMessage(text string) string {
	return r.styles.StatusLine.Render(text) + "\n"
}

// RenderApprovalContext renders pending-approval details for the viewport,
// without a prompt line (the selector handles the options).
func (r *ItemRenderer) RenderApprovalContext(approvals []workflow.PendingApproval) string {
	var b strings.Builder
	b.WriteString("\n")
	for i, ap := range approvals {
		idx := r.styles.ApprovalIndex.Render(fmt.Sprintf("[%d]", i+1))
		tool := r.styles.ApprovalTool.Render("Tool:") + " " + ap.ToolName
		b.WriteString(fmt.Sprintf("  %s %s\n", idx, tool))
		if detail := formatApprovalDetail(ap); detail != "" {
			b.WriteString(fmt.Sprintf("      %s\n", detail))
		}
		if ap.Reason != "" {
			reason := r.styles.ApprovalReason.Render("Reason:") + " " + ap.Reason
			b.WriteString(fmt.Sprintf("      %s\n", reason))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderStatusLine renders a summary status after a turn completes.
func (r *ItemRenderer) RenderStatusLine(model string, totalTokens, turnCount int) string {
	line := fmt.Sprintf("[%s · %s tokens · turn %d]",
		model, formatTokens(totalTokens), turnCount)
	return r.styles.StatusLine.Render(line) + "\n"
}

// SpinnerMessage returns a human-friendly status message for the most
// recently observed event kind.
func SpinnerMessage(kind workflow.EventKind, toolName string) string {
	switch kind {
	case workflow.EventTurnStarted, workflow.EventSessionConfigured:
		return "Thinking..."
	case workflow.EventToolCallBegin:
		if toolName != "" {
			return fmt.Sprintf("Running %s...", toolName)
		}
		return "Running tool..."
	case workflow.EventToolCallEnd:
		return "Thinking..."
	case workflow.EventExecApprovalRequest:
		return "Waiting for approval..."
	default:
		return "Working..."
	}
}

// formatToolCall derives a human-readable verb and detail string for a tool
// call, matching the output style used in RenderToolCallBegin.
//
//	shell        → ("Ran", "echo hello")
//	read_file    → ("Read", "/tmp/foo.txt")
//	write_file   → ("Wrote", "/tmp/bar.txt")
//	apply_patch  → ("Patched", "")
//	list_dir     → ("Listed", "/tmp")
//	grep_files   → ("Searched", `"TODO" in src/`)
//	unknown      → ("Ran", "unknown_tool(…)")
func formatToolCall(name, argsJSON string) (verb, detail string) {
	var args map[string]interface{}
	_ = json.Unmarshal([]byte(argsJSON), &args)

	switch name {
	case "shell":
		if cmd, ok := args["command"].(string); ok {
			return "Ran", truncateString(cmd, 120)
		}
		return "Ran", truncateString(argsJSON, 120)
	case "read_file":
		if fp, ok := args["path"].(string); ok {
			return "Read", fp
		}
		return "Read", argsJSON
	case "write_file":
		if fp, ok := args["path"].(string); ok {
			return "Wrote", fp
		}
		return "Wrote", ""
	case "apply_patch":
		return "Patched", ""
	case "list_dir":
		if dp, ok := args["dir_path"].(string); ok {
			return "Listed", dp
		}
		if dp, ok := args["path"].(string); ok {
			return "Listed", dp
		}
		return "Listed", ""
	case "grep_files":
		var parts []string
		if pat, ok := args["pattern"].(string); ok {
			parts = append(parts, fmt.Sprintf("%q", pat))
		}
		if dir, ok := args["path"].(string); ok {
			parts = append(parts, "in "+dir)
		}
		if len(parts) > 0 {
			return "Searched", strings.Join(parts, " ")
		}
		return "Searched", ""
	default:
		detail := name + "(" + truncateString(argsJSON, 80) + ")"
		return "Ran", detail
	}
}

// truncateMiddle returns at most limit lines. When the input exceeds the limit,
// it keeps the first 2 and last 2 lines with a "… +N lines" placeholder in between.
// The returned omitted count reflects lines replaced by the placeholder.
func truncateMiddle(lines []string, limit int) (result []string, omitted int) {
	if len(lines) <= limit {
		return lines, 0
	}
	head := 2
	tail := 2
	omitted = len(lines) - head - tail
	result = make([]string, 0, head+1+tail)
	result = append(result, lines[:head]...)
	result = append(result, fmt.Sprintf("… +%d lines", omitted))
	result = append(result, lines[len(lines)-tail:]...)
	return result, omitted
}

// truncateString truncates s to maxLen characters, appending "…" if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "…"
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= 1 {
		return s
	}
	for i := 1; i < len(lines); i++ {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}

func formatTokens(n int) string {
	if n >= 1000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d", n)
}
