package models

// ModelConfig configures the LLM model parameters.
//
// Maps to: codex-rs/core/src/codex.rs SessionConfiguration (model config part)
type ModelConfig struct {
	Provider      string  `json:"provider"`       // "openai" or "anthropic"
	Model         string  `json:"model"`          // e.g., "gpt-4o-mini", "claude-sonnet-4-5"
	Temperature   float64 `json:"temperature"`    // 0.0 to 2.0
	MaxTokens     int     `json:"max_tokens"`     // Max tokens to generate
	ContextWindow int     `json:"context_window"` // Max context window size, used for auto-compaction

	// BaseURL is carried with the session configuration. The LLM clients do
	// not read it; they always use the provider SDK's default endpoint.
	BaseURL string `json:"base_url,omitempty"`

	// APIKeyEnvVar is carried with the session configuration. The LLM
	// clients do not read it; they take the credential from
	// OPENAI_API_KEY or ANTHROPIC_API_KEY.
	APIKeyEnvVar string `json:"api_key_env_var,omitempty"`
}

// DefaultModelConfig returns a sensible default configuration.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Provider:      "anthropic",
		Model:         "claude-sonnet-4-5",
		Temperature:   1.0,
		MaxTokens:     8192,
		ContextWindow: 200000,
	}
}

// ToolsConfig configures which built-in tools are enabled for a session.
//
// Maps to: codex-rs/core/src/codex.rs SessionConfiguration (tools config part)
type ToolsConfig struct {
	EnableShell      bool `json:"enable_shell"`
	EnableReadFile   bool `json:"enable_read_file"`
	EnableWriteFile  bool `json:"enable_write_file,omitempty"`
	EnableListDir    bool `json:"enable_list_dir,omitempty"`
	EnableGrepFiles  bool `json:"enable_grep_files,omitempty"`
	EnableApplyPatch bool `json:"enable_apply_patch,omitempty"`
}

// DefaultToolsConfig returns default tools configuration.
func DefaultToolsConfig() ToolsConfig {
	return ToolsConfig{
		EnableShell:      true,
		EnableReadFile:   true,
		EnableWriteFile:  true,
		EnableListDir:    true,
		EnableGrepFiles:  true,
		EnableApplyPatch: true,
	}
}

// ApprovalMode selects the tool-call approval policy a session runs under.
//
// Maps to: the three-mode approval policy described by the tool call
// handler specification.
type ApprovalMode string

const (
	// ApprovalNever auto-approves every tool call.
	ApprovalNever ApprovalMode = "never"
	// ApprovalOnRequest auto-approves commands the exec policy classifies as
	// safe, and prompts for everything else.
	ApprovalOnRequest ApprovalMode = "on_request"
	// ApprovalAlways prompts for every tool call, regardless of classification.
	ApprovalAlways ApprovalMode = "always"
)

// SessionConfiguration configures a complete agentic session.
//
// Maps to: codex-rs/core/src/codex.rs SessionConfiguration
type SessionConfiguration struct {
	// Instructions hierarchy (maps to Codex's 3-tier system).
	BaseInstructions      string `json:"base_instructions,omitempty"`      // Core system prompt for the model
	DeveloperInstructions string `json:"developer_instructions,omitempty"` // Developer overrides (sent as a developer message)
	UserInstructions      string `json:"user_instructions,omitempty"`      // Project docs (AGENTS.md content)

	// Model configuration.
	Model ModelConfig `json:"model"`

	// Tool configuration.
	Tools        ToolsConfig  `json:"tools"`
	ApprovalMode ApprovalMode `json:"approval_mode"`

	// ExecPolicyRules holds the raw text of Starlark exec-policy rule files,
	// concatenated. Loaded once by an activity at session start and threaded
	// through ContinueAsNew so replay never re-reads the filesystem.
	ExecPolicyRules string `json:"exec_policy_rules,omitempty"`

	// ExecPolicyRulesDir, if set, is a worker-filesystem directory containing
	// "*.rules" files to load into ExecPolicyRules when it arrives empty.
	// Ignored once ExecPolicyRules is non-empty.
	ExecPolicyRulesDir string `json:"exec_policy_rules_dir,omitempty"`

	// AutoCompactTokenLimit caps proactive compaction below the model's raw
	// context window; 0 means derive it from Model.ContextWindow.
	AutoCompactTokenLimit int `json:"auto_compact_token_limit,omitempty"`

	// Execution context.
	Cwd string `json:"cwd,omitempty"` // Working directory for tool execution

	// SessionTaskQueue, if set, routes this session's activities to a
	// dedicated Temporal task queue instead of the worker-wide default.
	SessionTaskQueue string `json:"session_task_queue,omitempty"`

	// SessionSource records where the session originated, for logging.
	SessionSource string `json:"session_source,omitempty"` // "cli", "api", "exec"
}

// DefaultSessionConfiguration returns sensible defaults.
func DefaultSessionConfiguration() SessionConfiguration {
	return SessionConfiguration{
		Model:        DefaultModelConfig(),
		Tools:        DefaultToolsConfig(),
		ApprovalMode: ApprovalOnRequest,
	}
}
