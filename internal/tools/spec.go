// Package tools provides tool registry, routing, and handler specifications.
//
// Corresponds to: codex-rs/core/src/tools/
// - registry.rs (tool handler registry)
// - router.rs (tool dispatch and routing)
// - spec.rs (tool specifications)
// - context.rs (tool invocation context)
package tools

// Default timeouts in milliseconds.
// Maps to: codex-rs/core/src/exec.rs DEFAULT_EXEC_COMMAND_TIMEOUT_MS
const (
	DefaultShellTimeoutMs      = 10_000  // 10s — matches Codex default
	DefaultReadFileTimeoutMs   = 30_000  // 30s
	DefaultApplyPatchTimeoutMs = 30_000  // 30s
	DefaultWriteFileTimeoutMs  = 30_000  // 30s
	DefaultListDirTimeoutMs    = 30_000  // 30s
	DefaultGrepFilesTimeoutMs  = 30_000  // 30s — matches Codex COMMAND_TIMEOUT
	DefaultToolTimeoutMs       = 120_000 // 2min — fallback for tools without a default
)

// ToolSpec defines the specification for a tool (sent to the model in the prompt).
//
// Maps to: codex-rs/core/src/tools/spec.rs ToolSpec::Function
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`

	// DefaultTimeoutMs is the default StartToCloseTimeout for this tool's
	// activity when the model does not provide a timeout_ms argument.
	DefaultTimeoutMs int64 `json:"-"` // not sent to the model
}

// ToolParameter defines a parameter for a tool.
type ToolParameter struct {
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Required    bool                   `json:"required"`
	Items       map[string]interface{} `json:"items,omitempty"` // For array types: JSON schema of array items
}

// NewShellToolSpec creates the specification for the shell tool.
//
// Maps to: codex-rs/core/src/tools/spec.rs create_shell_command_tool
func NewShellToolSpec() ToolSpec {
	return ToolSpec{
		Name: "shell",
		Description: `Runs a shell command and returns its aggregated stdout/stderr.
Always set the workdir via the session's working directory unless a different directory is required.`,
		Parameters: []ToolParameter{
			{
				Name:        "command",
				Type:        "string",
				Description: "The shell script to execute via `bash -c`",
				Required:    true,
			},
			{
				Name:        "timeout_ms",
				Type:        "number",
				Description: "The timeout for the command in milliseconds",
				Required:    false,
			},
		},
		DefaultTimeoutMs: DefaultShellTimeoutMs,
	}
}

// NewReadFileToolSpec creates the specification for the read_file tool.
//
// Maps to: codex-rs/core/src/tools/spec.rs create_read_file_tool
func NewReadFileToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "read_file",
		Description: "Reads a local file with 1-indexed line numbers, with optional offset and limit.",
		Parameters: []ToolParameter{
			{
				Name:        "path",
				Type:        "string",
				Description: "Absolute path to the file",
				Required:    true,
			},
			{
				Name:        "offset",
				Type:        "number",
				Description: "The line number to start reading from (0-indexed).",
				Required:    false,
			},
			{
				Name:        "limit",
				Type:        "number",
				Description: "The maximum number of lines to return.",
				Required:    false,
			},
		},
		DefaultTimeoutMs: DefaultReadFileTimeoutMs,
	}
}

// NewApplyPatchToolSpec creates the specification for the apply_patch tool.
//
// Maps to: codex-rs/core/src/tools/handlers/apply_patch.rs create_apply_patch_json_tool
func NewApplyPatchToolSpec() ToolSpec {
	return ToolSpec{
		Name: "apply_patch",
		Description: `Use the apply_patch tool to edit files.
Your patch language is a stripped-down, file-oriented diff format:

*** Begin Patch
[ one or more file sections ]
*** End Patch

Each file section starts with one of three headers:
*** Add File: <path> - create a new file. Every following line is a + line.
*** Delete File: <path> - remove an existing file.
*** Update File: <path> - patch an existing file in place (optionally with *** Move to: <new path>).

Hunks within an Update section are introduced by @@ and contain context, "-" removal, and "+" addition lines.`,
		Parameters: []ToolParameter{
			{
				Name:        "input",
				Type:        "string",
				Description: "The entire contents of the apply_patch command",
				Required:    true,
			},
		},
		DefaultTimeoutMs: DefaultApplyPatchTimeoutMs,
	}
}

// NewWriteFileToolSpec creates the specification for the write_file tool.
func NewWriteFileToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "write_file",
		Description: "Create or overwrite a file with the given content. Parent directories are created automatically if they don't exist.",
		Parameters: []ToolParameter{
			{
				Name:        "path",
				Type:        "string",
				Description: "The path to the file to write",
				Required:    true,
			},
			{
				Name:        "content",
				Type:        "string",
				Description: "The content to write to the file",
				Required:    true,
			},
		},
		DefaultTimeoutMs: DefaultWriteFileTimeoutMs,
	}
}

// NewListDirToolSpec creates the specification for the list_dir tool.
//
// Maps to: codex-rs/core/src/tools/spec.rs create_list_dir_tool
func NewListDirToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "list_dir",
		Description: "Lists entries in a local directory with 1-indexed entry numbers and simple type labels.",
		Parameters: []ToolParameter{
			{
				Name:        "dir_path",
				Type:        "string",
				Description: "Absolute path to the directory to list.",
				Required:    true,
			},
			{
				Name:        "offset",
				Type:        "number",
				Description: "The entry number to start listing from. Must be 1 or greater.",
				Required:    false,
			},
			{
				Name:        "limit",
				Type:        "number",
				Description: "The maximum number of entries to return.",
				Required:    false,
			},
			{
				Name:        "depth",
				Type:        "number",
				Description: "The maximum directory depth to traverse. Must be 1 or greater.",
				Required:    false,
			},
		},
		DefaultTimeoutMs: DefaultListDirTimeoutMs,
	}
}

// NewGrepFilesToolSpec creates the specification for the grep_files tool.
//
// Maps to: codex-rs/core/src/tools/spec.rs create_grep_files_tool
func NewGrepFilesToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "grep_files",
		Description: "Finds files whose contents match the pattern and lists them by modification time.",
		Parameters: []ToolParameter{
			{
				Name:        "pattern",
				Type:        "string",
				Description: "Regular expression pattern to search for.",
				Required:    true,
			},
			{
				Name:        "include",
				Type:        "string",
				Description: "Optional glob that limits which files are searched (e.g. \"*.go\" or \"*.{ts,tsx}\").",
				Required:    false,
			},
			{
				Name:        "path",
				Type:        "string",
				Description: "Directory or file path to search in. Defaults to the current working directory.",
				Required:    false,
			},
			{
				Name:        "limit",
				Type:        "number",
				Description: "Maximum number of file paths to return (defaults to 100).",
				Required:    false,
			},
		},
		DefaultTimeoutMs: DefaultGrepFilesTimeoutMs,
	}
}
