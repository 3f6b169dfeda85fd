package handlers

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/loomwork/durableagent/internal/tools"
)

// ReadFileTool reads file contents with optional offset/limit, or expands
// an indentation-delimited block around an anchor line.
//
// Maps to: codex-rs/core/src/tools/handlers/read_file.rs
type ReadFileTool struct{}

// NewReadFileTool creates a new read file tool handler.
func NewReadFileTool() *ReadFileTool {
	return &ReadFileTool{}
}

// Name returns the tool's name.
func (t *ReadFileTool) Name() string {
	return "read_file"
}

// Kind returns ToolKindFunction.
func (t *ReadFileTool) Kind() tools.ToolKind {
	return tools.ToolKindFunction
}

// IsMutating returns false - reading files doesn't modify the environment.
func (t *ReadFileTool) IsMutating(invocation *tools.ToolInvocation) bool {
	return false
}

// Handle reads a file and returns its contents with line numbers. In
// "indentation" mode it expands the smallest enclosing block(s) around an
// anchor line instead of a flat line range.
//
// Maps to: codex-rs/core/src/tools/handlers/read_file.rs handle
func (t *ReadFileTool) Handle(_ context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	path, err := readFilePathArg(invocation.Arguments)
	if err != nil {
		return nil, err
	}

	offset := 0
	if offsetArg, ok := invocation.Arguments["offset"]; ok {
		v, ok := toIntArg(offsetArg)
		if !ok {
			return nil, tools.NewValidationError("offset must be an integer")
		}
		offset = v
	}

	mode, _ := invocation.Arguments["mode"].(string)
	if mode == "indentation" {
		var opts indentationOptions
		if raw, ok := invocation.Arguments["indentation"].(map[string]interface{}); ok {
			opts = parseIndentationOptions(raw)
		}
		return readIndentationBlock(path, offset, opts)
	}

	return readSlice(path, offset, invocation.Arguments)
}

// readFilePathArg extracts the file path argument. "path" is the
// canonical key (matches NewReadFileToolSpec); "file_path" is accepted
// as an alias for callers that use the older key name.
func readFilePathArg(args map[string]interface{}) (string, error) {
	pathArg, ok := args["path"]
	if !ok {
		pathArg, ok = args["file_path"]
	}
	if !ok {
		return "", tools.NewValidationError("missing required argument: path")
	}
	path, ok := pathArg.(string)
	if !ok || path == "" {
		return "", tools.NewValidationError("path cannot be empty")
	}
	return path, nil
}

func toIntArg(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// readSlice implements the original flat offset/limit line range read.
func readSlice(path string, offset int, args map[string]interface{}) (*tools.ToolOutput, error) {
	limit := -1
	if limitArg, ok := args["limit"]; ok {
		v, ok := toIntArg(limitArg)
		if !ok {
			return nil, tools.NewValidationError("limit must be an integer")
		}
		limit = v
	}

	file, err := os.Open(path)
	if err != nil {
		success := false
		return &tools.ToolOutput{
			Content: fmt.Sprintf("Failed to open file: %v", err),
			Success: &success,
		}, nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var result strings.Builder
	lineNum := 0
	linesRead := 0

	for lineNum < offset && scanner.Scan() {
		lineNum++
	}

	for scanner.Scan() {
		if limit > 0 && linesRead >= limit {
			break
		}

		line := scanner.Text()
		if len(line) > 2000 {
			line = line[:2000] + "... (truncated)"
		}

		result.WriteString(fmt.Sprintf("%6d\t%s\n", lineNum+1, line))
		lineNum++
		linesRead++
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	content := result.String()
	if content == "" {
		if offset > 0 {
			content = fmt.Sprintf("(file has fewer than %d lines)", offset)
		} else {
			content = "(empty file)"
		}
	}

	// Add file path header so the LLM knows which file this content belongs to.
	// This prevents smaller models from losing track during multi-tool turns.
	content = fmt.Sprintf("File: %s\n%s", path, content)

	success := true
	return &tools.ToolOutput{
		Content: content,
		Success: &success,
	}, nil
}

// --- Indentation mode ---

// lineRecord is one physical line of a file, 1-indexed.
type lineRecord struct {
	raw     string
	indent  int
	lineNum int
}

// indentationOptions configures indentation-mode expansion around an
// anchor line.
type indentationOptions struct {
	anchorLine      int
	maxLevels       int // 0 = unlimited, walk to the root
	includeSiblings bool
	includeHeader   bool
	maxLines        int // 0 = no cap
}

func parseIndentationOptions(m map[string]interface{}) indentationOptions {
	var opts indentationOptions
	if v, ok := m["anchor_line"]; ok {
		opts.anchorLine, _ = toIntArg(v)
	}
	if v, ok := m["max_levels"]; ok {
		opts.maxLevels, _ = toIntArg(v)
	}
	if v, ok := m["include_siblings"].(bool); ok {
		opts.includeSiblings = v
	}
	if v, ok := m["include_header"].(bool); ok {
		opts.includeHeader = v
	}
	if v, ok := m["max_lines"]; ok {
		opts.maxLines, _ = toIntArg(v)
	}
	return opts
}

// measureIndent counts leading whitespace width: each space is 1, each tab is 4.
func measureIndent(line string) int {
	count := 0
	for _, r := range line {
		switch r {
		case ' ':
			count++
		case '\t':
			count += 4
		default:
			return count
		}
	}
	return count
}

// isComment reports whether a trimmed line looks like a comment in any of
// the common C-style/shell/SQL conventions.
func isComment(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "--")
}

// computeEffectiveIndents assigns each blank line the indent of the
// nearest preceding non-blank line, so a blank line inside a block isn't
// mistaken for a dedent back to the top level.
func computeEffectiveIndents(records []lineRecord) []int {
	eff := make([]int, len(records))
	last := 0
	for i, r := range records {
		if strings.TrimSpace(r.raw) == "" {
			eff[i] = last
		} else {
			eff[i] = r.indent
			last = r.indent
		}
	}
	return eff
}

// trimBlankLines drops leading and trailing all-whitespace records.
func trimBlankLines(records []lineRecord) []lineRecord {
	start := 0
	for start < len(records) && strings.TrimSpace(records[start].raw) == "" {
		start++
	}
	end := len(records)
	for end > start && strings.TrimSpace(records[end-1].raw) == "" {
		end--
	}
	return records[start:end]
}

// walkLevels scans outward from startIdx in direction dir (-1 up, +1 down),
// stepping to the next strictly-lower effective indent each "level", up to
// maxLevels times (0 = unlimited, walk until indent 0 or a file edge).
// Returns the index of the last boundary line reached and its indent.
func walkLevels(eff []int, startIdx, dir, maxLevels int) (boundaryIdx, minIndent int) {
	boundaryIdx = startIdx
	threshold := eff[startIdx]
	levels := 0
	i := startIdx

	for {
		if maxLevels > 0 && levels >= maxLevels {
			break
		}
		if threshold == 0 {
			break
		}
		j := i + dir
		for j >= 0 && j < len(eff) && eff[j] >= threshold {
			j += dir
		}
		if j < 0 {
			boundaryIdx = 0
			break
		}
		if j >= len(eff) {
			boundaryIdx = len(eff) - 1
			break
		}
		boundaryIdx = j
		threshold = eff[j]
		levels++
		i = j
	}

	return boundaryIdx, threshold
}

// readIndentationBlock expands the block enclosing opts.anchorLine (or
// offset, as a fallback anchor) by opts.maxLevels levels of nesting.
func readIndentationBlock(path string, offset int, opts indentationOptions) (*tools.ToolOutput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		success := false
		return &tools.ToolOutput{
			Content: fmt.Sprintf("Failed to open file: %v", err),
			Success: &success,
		}, nil
	}

	if len(data) == 0 {
		success := true
		return &tools.ToolOutput{
			Content: fmt.Sprintf("File: %s\n(empty file)", path),
			Success: &success,
		}, nil
	}

	rawLines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	records := make([]lineRecord, len(rawLines))
	for i, l := range rawLines {
		records[i] = lineRecord{raw: l, indent: measureIndent(l), lineNum: i + 1}
	}
	eff := computeEffectiveIndents(records)

	anchorLine := opts.anchorLine
	if anchorLine <= 0 {
		anchorLine = offset
	}
	if anchorLine < 1 {
		anchorLine = 1
	}
	if anchorLine > len(records) {
		anchorLine = len(records)
	}
	anchorIdx := anchorLine - 1

	upIdx, upThreshold := walkLevels(eff, anchorIdx, -1, opts.maxLevels)
	downIdx, downThreshold := walkLevels(eff, anchorIdx, 1, opts.maxLevels)
	minIndent := upThreshold
	if downThreshold < minIndent {
		minIndent = downThreshold
	}

	startIdx, endIdx := upIdx, downIdx

	if opts.includeSiblings {
		for startIdx > 0 && eff[startIdx-1] >= minIndent {
			startIdx--
		}
		for endIdx < len(records)-1 && eff[endIdx+1] >= minIndent {
			endIdx++
		}
	}

	if opts.includeHeader {
		i := startIdx - 1
		for i >= 0 && isComment(records[i].raw) && records[i].indent == records[startIdx].indent {
			i--
		}
		startIdx = i + 1
	}

	if opts.maxLines > 0 && endIdx-startIdx+1 > opts.maxLines {
		half := opts.maxLines / 2
		newStart := anchorIdx - half
		newEnd := newStart + opts.maxLines - 1
		if newStart < startIdx {
			newStart = startIdx
			newEnd = newStart + opts.maxLines - 1
		}
		if newEnd > endIdx {
			newEnd = endIdx
			newStart = newEnd - opts.maxLines + 1
		}
		startIdx, endIdx = newStart, newEnd
	}

	selected := trimBlankLines(records[startIdx : endIdx+1])

	var b strings.Builder
	for _, r := range selected {
		fmt.Fprintf(&b, "%6d\t%s\n", r.lineNum, r.raw)
	}

	success := true
	return &tools.ToolOutput{
		Content: fmt.Sprintf("File: %s\n%s", path, b.String()),
		Success: &success,
	}, nil
}
