package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.temporal.io/sdk/client"

	"github.com/loomwork/durableagent/internal/models"
	"github.com/loomwork/durableagent/internal/session"
	"github.com/loomwork/durableagent/internal/temporalclient"
	"github.com/loomwork/durableagent/internal/version"
	"github.com/loomwork/durableagent/internal/workflow"
)

const (
	TaskQueue         = "durable-agent"
	MaxTextareaHeight = 10 // Maximum height for multi-line input
)

// State represents the CLI state machine state.
type State int

const (
	StateStartup State = iota
	StateInput
	StateWatching
	StateApproval
	StateShutdown
)

// Config holds CLI configuration.
type Config struct {
	TemporalHost string
	Session      string // Resume existing session (workflow ID)
	Message      string // Initial message for new workflow
	Model        string
	NoMarkdown   bool
	NoColor      bool
	Cwd          string
	ApprovalMode models.ApprovalMode

	// TUI settings
	Provider string // LLM provider (openai, anthropic, google)
	Inline   bool   // Disable alt-screen mode
}

// Model is the bubbletea model for the interactive CLI.
type Model struct {
	// Configuration
	config Config
	client client.Client
	keys   KeyMap
	styles Styles

	// State machine
	state            State
	workflowID       string
	adapter          *session.Adapter
	lastRenderedSeq  int64
	consecutiveFails int

	// Sub-models
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	// Layout
	width  int
	height int
	ready  bool

	// Viewport content
	viewportContent string

	// Renderer
	renderer *ItemRenderer

	// Status
	modelName   string
	totalTokens int
	turnCount   int
	spinnerMsg  string

	// Approval state
	pendingApprovals []workflow.PendingApproval
	autoApprove      bool

	// Selector (replaces textarea during approval prompts)
	selector *SelectorModel

	// Paste buffering: multi-line pastes show "[N lines pasted]" placeholder
	pastedContent string
	pasteLabel    string

	// Ctrl+C tracking
	lastInterruptTime time.Time

	// Error/exit state
	err      error
	quitting bool

	// Inline mode (no alt-screen)
	inline bool

	// Provider
	provider string
}

// NewModel creates a new bubbletea model.
func NewModel(config Config, c client.Client) Model {
	styles := DefaultStyles()
	if config.NoColor {
		styles = NoColorStyles()
	}

	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.Prompt = "❯ "
	ta.CharLimit = 0
	ta.SetHeight(1) // Single line until Shift+Enter adds a newline
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(true) // Enable multi-line input
	// Shift+Enter sends ctrl+j (LF) in most terminals, distinct from Enter (CR)
	ta.KeyMap.InsertNewline.SetKeys("ctrl+j")

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	initialState := StateStartup
	if config.Session == "" && config.Message == "" {
		initialState = StateInput
	}

	return Model{
		config:          config,
		client:          c,
		keys:            DefaultKeyMap(),
		styles:          styles,
		state:           initialState,
		lastRenderedSeq: -1,
		textarea:        ta,
		spinner:         sp,
		modelName:       config.Model,
		provider:        config.Provider,
		inline:          config.Inline,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
	}

	if m.config.Session != "" {
		cmds = append(cmds, resumeWorkflowCmd(m.config.Session))
	} else if m.config.Message != "" {
		cmds = append(cmds, startWorkflowCmd(m.client, m.config))
	}
	// else: no message, no session — already StateInput from NewModel

	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg)

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case spinner.TickMsg:
		if m.state == StateWatching || m.state == StateStartup {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case WorkflowStartedMsg:
		return m.handleWorkflowStarted(msg)

	case WorkflowStartErrorMsg:
		m.err = msg.Err
		m.quitting = true
		return &m, tea.Quit

	case EventMsg:
		cmd := m.handleEvent(msg.Event)
		return &m, cmd

	case EventErrorMsg:
		return m.handleEventError(msg.Err)

	case UserInputSentMsg:
		m.state = StateWatching
		m.spinnerMsg = "Thinking..."
		cmds = append(cmds, nextEventCmd(m.adapter))

	case UserInputErrorMsg:
		m.appendToViewport(fmt.Sprintf("Error: %v\n", msg.Err))
		m.state = StateInput
		cmds = append(cmds, m.focusTextarea())

	case InterruptSentMsg:
		m.spinnerMsg = "Interrupting..."

	case InterruptErrorMsg:
		m.appendToViewport(fmt.Sprintf("Error sending interrupt: %v\n", msg.Err))

	case ShutdownSentMsg:
		m.spinnerMsg = "Ending session..."

	case ShutdownErrorMsg:
		m.appendToViewport(fmt.Sprintf("Error sending shutdown: %v\n", msg.Err))

	case ApprovalSentMsg:
		m.pendingApprovals = nil
		m.selector = nil
		m.state = StateWatching
		m.spinnerMsg = "Running tools..."
		cmds = append(cmds, nextEventCmd(m.adapter))

	case ApprovalErrorMsg:
		m.appendToViewport(fmt.Sprintf("Error sending approval: %v\n", msg.Err))

	case SessionCompletedMsg:
		if msg.Result != nil {
			m.appendToViewport(fmt.Sprintf("Session ended. Tokens: %d, Tools: %d\n",
				msg.Result.TotalTokens, len(msg.Result.ToolCallsExecuted)))
		} else {
			m.appendToViewport("Session ended.\n")
		}
		m.quitting = true
		return &m, tea.Quit

	case SessionErrorMsg:
		m.appendToViewport("Session closed.\n")
		m.quitting = true
		return &m, tea.Quit
	}

	return &m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if !m.ready {
		return m.styles.SpinnerMessage.Render(m.spinner.View() + " Starting...")
	}

	vpView := m.viewport.View()
	sep := m.styles.Separator.Render(strings.Repeat("─", m.width))
	statusBar := m.renderStatusBar()

	var inputView string
	switch m.state {
	case StateInput:
		inputView = m.textarea.View()
	case StateApproval:
		if m.selector != nil {
			inputView = m.selector.View()
		} else {
			inputView = m.textarea.View()
		}
	default:
		// Watching/Startup: show spinner
		inputView = m.spinner.View() + " " + m.styles.SpinnerMessage.Render(m.spinnerMsg)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		vpView,
		sep,
		inputView,
		sep,
		statusBar,
	)
}

func (m Model) renderStatusBar() string {
	model := m.modelName
	if m.provider != "" && m.provider != "openai" {
		model = fmt.Sprintf("%s (%s)", m.modelName, m.provider)
	}

	tokens := formatTokens(m.totalTokens)
	turn := fmt.Sprintf("turn %d", m.turnCount)

	var stateLabel string
	switch m.state {
	case StateInput:
		stateLabel = "ready"
	case StateWatching:
		stateLabel = "working"
	case StateApproval:
		stateLabel = "approval"
	case StateStartup:
		stateLabel = "connecting"
	default:
		stateLabel = ""
	}

	left := fmt.Sprintf(" %s · %s tokens · %s · %s", model, tokens, turn, stateLabel)
	right := fmt.Sprintf("cli:%s ", version.GitCommit)
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	bar := left + strings.Repeat(" ", gap) + right
	return m.styles.StatusBar.Render(bar)
}

func (m *Model) handleWindowSize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	taHeight := m.inputAreaHeight()
	vpHeight := m.height - taHeight - 3 // top separator + bottom separator + status
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(m.width, vpHeight)
		m.viewport.SetContent(m.viewportContent)

		m.renderer = NewItemRenderer(m.width, m.config.NoColor, m.config.NoMarkdown, m.styles)

		m.textarea.SetWidth(m.width)
		m.ready = true

		if m.state == StateInput {
			return m, m.focusTextarea()
		}
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = vpHeight
		m.textarea.SetWidth(m.width)

		if m.renderer != nil {
			m.renderer.width = m.width
		}
	}

	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m.handleCtrlC()
	case tea.KeyCtrlD:
		if m.state == StateInput {
			m.quitting = true
			return m, tea.Quit
		}
	}

	switch m.state {
	case StateInput:
		return m.handleInputKey(msg)
	case StateWatching:
		return m.handleWatchingKey(msg)
	case StateApproval:
		return m.handleApprovalKey(msg)
	}

	return m, nil
}

func (m *Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Paste && msg.Type == tea.KeyRunes && strings.ContainsRune(string(msg.Runes), '\n') {
		content := string(msg.Runes)
		lines := strings.Count(content, "\n") + 1
		m.pastedContent = content
		m.pasteLabel = fmt.Sprintf("[%d lines pasted]", lines)
		synthetic := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(m.pasteLabel)}
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(synthetic)
		return m, cmd
	}

	if msg.Paste && msg.Type == tea.KeyEnter {
		return m, nil
	}

	if msg.Type == tea.KeyEnter {
		line := strings.TrimSpace(m.expandPastedContent(m.textarea.Value()))
		m.textarea.Reset()
		m.pastedContent = ""
		m.pasteLabel = ""
		m.textarea.SetHeight(1)

		vpHeight := m.height - 1 - 2
		if vpHeight < 1 {
			vpHeight = 1
		}
		m.viewport.Height = vpHeight

		if line == "" {
			return m, nil
		}

		if line == "/exit" || line == "/quit" {
			m.quitting = true
			return m, tea.Quit
		}
		if line == "/end" {
			m.spinnerMsg = "Ending session..."
			m.state = StateWatching
			m.textarea.Blur()
			return m, sendShutdownCmd(m.adapter)
		}

		m.appendToViewport(m.renderer.RenderUserMessage(line))

		m.state = StateWatching
		m.spinnerMsg = "Thinking..."
		m.textarea.Blur()

		if m.workflowID == "" {
			m.config.Message = line
			return m, startWorkflowCmd(m.client, m.config)
		}

		cwd := m.config.Cwd
		if cwd == "" {
			cwd, _ = os.Getwd()
		}
		return m, sendUserInputCmd(m.adapter, cwd, line)
	}

	if msg.Type == tea.KeyCtrlJ {
		newHeight := m.calculateTextareaHeight() + 1
		if newHeight > MaxTextareaHeight {
			newHeight = MaxTextareaHeight
		}
		if newHeight != m.textarea.Height() {
			m.textarea.SetHeight(newHeight)
			vpHeight := m.height - newHeight - 2
			if vpHeight < 1 {
				vpHeight = 1
			}
			m.viewport.Height = vpHeight
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)

	newHeight := m.calculateTextareaHeight()
	if newHeight != m.textarea.Height() {
		m.textarea.SetHeight(newHeight)
		vpHeight := m.height - newHeight - 2
		if vpHeight < 1 {
			vpHeight = 1
		}
		m.viewport.Height = vpHeight
	}

	if m.isScrollKey(msg) {
		var vpCmd tea.Cmd
		m.viewport, vpCmd = m.viewport.Update(msg)
		return m, vpCmd
	}

	return m, cmd
}

func (m *Model) handleWatchingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) handleApprovalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.selector != nil {
		if m.isViewportScrollKey(msg) {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		done := m.selector.Update(msg)
		if done {
			if m.selector.Confirmed() {
				selected := m.selector.Selected()
				if len(m.pendingApprovals) > 1 && selected == 3 {
					m.selector = nil
					m.textarea.SetValue("")
					return m, m.focusTextarea()
				}
				choices, autoApprove, ok := ApprovalSelectionToResponse(selected, m.pendingApprovals)
				if ok {
					if autoApprove {
						m.autoApprove = true
					}
					m.selector = nil
					return m, sendApprovalChoicesCmd(m.adapter, choices)
				}
			}
			if m.selector.Cancelled() {
				m.selector = nil
				return m, sendApprovalChoicesCmd(m.adapter, allDenied(m.pendingApprovals))
			}
		}
		vpHeight := m.height - m.inputAreaHeight() - 2
		if vpHeight < 1 {
			vpHeight = 1
		}
		m.viewport.Height = vpHeight
		return m, nil
	}

	// Textarea fallback (for "Select individually..." mode)
	if msg.Type == tea.KeyEnter {
		line := strings.TrimSpace(m.textarea.Value())
		m.textarea.Reset()

		choices, autoApprove, ok := HandleApprovalInput(line, m.pendingApprovals)
		if ok {
			if autoApprove {
				m.autoApprove = true
			}
			m.textarea.Blur()
			return m, sendApprovalChoicesCmd(m.adapter, choices)
		}
		m.appendToViewport("Please enter y(es), n(o), a(lways), or indices (e.g. 1,3):\n")
		return m, nil
	}

	if m.isScrollKey(msg) {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// isScrollKey returns true if the key should be routed to the viewport
// for scrolling rather than to the textarea.
func (m *Model) isScrollKey(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown, tea.KeyHome, tea.KeyEnd:
		return true
	}
	switch msg.String() {
	case "k", "j":
		return true
	}
	return false
}

func (m *Model) handleCtrlC() (tea.Model, tea.Cmd) {
	now := time.Now()

	switch m.state {
	case StateWatching:
		if now.Sub(m.lastInterruptTime) < 2*time.Second {
			m.quitting = true
			return m, tea.Quit
		}
		m.lastInterruptTime = now
		m.appendToViewport("\nInterrupting... (Ctrl+C again to disconnect)\n")
		return m, sendInterruptCmd(m.adapter)

	case StateApproval:
		m.lastInterruptTime = now
		m.appendToViewport("\nInterrupting...\n")
		m.pendingApprovals = nil
		m.selector = nil
		m.state = StateWatching
		m.spinnerMsg = "Interrupting..."
		m.textarea.Blur()
		cmds := []tea.Cmd{
			sendInterruptCmd(m.adapter),
			nextEventCmd(m.adapter),
		}
		return m, tea.Batch(cmds...)

	case StateInput:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) handleWorkflowStarted(msg WorkflowStartedMsg) (tea.Model, tea.Cmd) {
	m.workflowID = msg.WorkflowID
	m.adapter = session.New(m.client, m.workflowID, "")

	if msg.IsResume {
		m.appendToViewport(m.renderer.RenderSystemMessage(fmt.Sprintf("Resumed session %s", m.workflowID)))
	} else {
		m.appendToViewport(m.renderer.RenderSystemMessage(fmt.Sprintf("Started session %s", m.workflowID)))
	}

	m.state = StateWatching
	m.spinnerMsg = "Thinking..."
	return m, nextEventCmd(m.adapter)
}

// handleEvent folds one sink event into the model: it renders the event,
// updates status/approval tracking, and decides whether to keep tailing
// the event stream or hand control back to the user.
func (m *Model) handleEvent(e workflow.Event) tea.Cmd {
	m.consecutiveFails = 0

	if rendered := m.renderer.RenderEvent(e); rendered != "" {
		m.appendToViewport(rendered)
	}
	m.lastRenderedSeq = e.Index

	switch e.Kind {
	case workflow.EventSessionConfigured:
		if e.Model != "" {
			m.modelName = e.Model
		}
	case workflow.EventTurnStarted:
		m.turnCount++
	case workflow.EventExecApprovalRequest:
		m.pendingApprovals = append(m.pendingApprovals, workflow.PendingApproval{
			CallID:   e.CallID,
			ToolName: e.Name,
			Command:  e.Command,
			Cwd:      e.Cwd,
		})
	case workflow.EventToolCallBegin:
		m.removePendingApproval(e.CallID)
	case workflow.EventTurnComplete:
		m.state = StateInput
		return m.focusTextarea()
	case workflow.EventError:
		if !e.Recoverable {
			m.err = errors.New(e.Text)
		}
	case workflow.EventShutdown:
		return waitForCompletionCmd(m.client, m.workflowID)
	}

	if len(m.pendingApprovals) > 0 && m.state != StateApproval {
		if m.autoApprove {
			return sendApprovalChoicesCmd(m.adapter, allApproved(m.pendingApprovals))
		}
		m.state = StateApproval
		m.appendToViewport(m.renderer.RenderApprovalContext(m.pendingApprovals))
		m.selector = m.buildApprovalSelector(m.pendingApprovals)
		return nil
	}

	if m.state == StateInput {
		return nil
	}

	m.spinnerMsg = SpinnerMessage(e.Kind, e.Name)
	return nextEventCmd(m.adapter)
}

// handleEventError classifies a NextEvent failure and either retries,
// treats it as session completion, or gives up after repeated failures.
func (m Model) handleEventError(err error) (tea.Model, tea.Cmd) {
	switch classifyStreamError(err) {
	case streamErrorCompleted:
		return &m, waitForCompletionCmd(m.client, m.workflowID)
	case streamErrorTransient:
		return &m, nextEventCmd(m.adapter)
	default:
		m.consecutiveFails++
		if m.consecutiveFails >= 5 {
			m.appendToViewport(fmt.Sprintf("Error: %v\n", err))
			m.err = err
			m.quitting = true
			return &m, tea.Quit
		}
		return &m, nextEventCmd(m.adapter)
	}
}

func (m *Model) removePendingApproval(callID string) {
	for i, ap := range m.pendingApprovals {
		if ap.CallID == callID {
			m.pendingApprovals = append(m.pendingApprovals[:i], m.pendingApprovals[i+1:]...)
			return
		}
	}
}

func (m *Model) appendToViewport(content string) {
	wasAtBottom := m.viewport.AtBottom()

	if m.viewportContent != "" {
		m.viewportContent += content
	} else {
		m.viewportContent = content
	}
	m.viewport.SetContent(m.viewportContent)

	if wasAtBottom || !m.ready {
		m.viewport.GotoBottom()
	}
}

// focusTextarea safely focuses the textarea and returns a blink command.
// In test environments where the cursor context isn't available, this recovers
// from panics gracefully.
func (m *Model) focusTextarea() tea.Cmd {
	defer func() { recover() }()
	m.textarea.Focus()
	return textarea.Blink
}

// calculateTextareaHeight returns the appropriate height for the textarea
// based on the number of lines in the current content.
func (m *Model) calculateTextareaHeight() int {
	value := m.textarea.Value()
	lines := strings.Count(value, "\n") + 1

	if lines < 1 {
		lines = 1
	}
	if lines > MaxTextareaHeight {
		lines = MaxTextareaHeight
	}

	return lines
}

// expandPastedContent replaces the "[N lines pasted]" placeholder in the
// textarea value with the actual buffered paste content before submission.
func (m *Model) expandPastedContent(value string) string {
	if m.pastedContent != "" && m.pasteLabel != "" {
		return strings.Replace(value, m.pasteLabel, m.pastedContent, 1)
	}
	return value
}

// buildApprovalSelector creates a selector for approval prompts.
func (m *Model) buildApprovalSelector(approvals []workflow.PendingApproval) *SelectorModel {
	options := []SelectorOption{
		{Label: "Yes, allow", Shortcut: "y", ShortcutKey: 'y'},
		{Label: "No, deny", Shortcut: "n", ShortcutKey: 'n'},
		{Label: "Always allow for this session", Shortcut: "a", ShortcutKey: 'a'},
	}
	if len(approvals) > 1 {
		options = append(options, SelectorOption{
			Label:       "Select individually...",
			Shortcut:    "s",
			ShortcutKey: 's',
		})
	}
	sel := NewSelectorModel(options, m.styles)
	sel.SetWidth(m.width)
	return sel
}

// isViewportScrollKey returns true for keys that should scroll the viewport
// even when the selector is active. Only page/home/end keys, not up/down/j/k.
func (m *Model) isViewportScrollKey(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyHome, tea.KeyEnd:
		return true
	}
	return false
}

// inputAreaHeight returns the height of the current input area (selector or textarea).
func (m *Model) inputAreaHeight() int {
	if m.selector != nil {
		return m.selector.Height()
	}
	return m.calculateTextareaHeight()
}

// Run is the main entry point for the CLI.
func Run(config Config) error {
	clientOpts, err := temporalclient.LoadClientOptions(config.TemporalHost, "")
	if err != nil {
		return fmt.Errorf("failed to load Temporal client config: %w", err)
	}
	c, err := client.Dial(clientOpts)
	if err != nil {
		return fmt.Errorf("failed to connect to Temporal: %w", err)
	}
	defer c.Close()

	model := NewModel(config, c)

	var opts []tea.ProgramOption
	if !config.Inline {
		opts = append(opts, tea.WithAltScreen())
	}
	p := tea.NewProgram(model, opts...)

	// Enable CSI 1007 alternate scroll mode: the terminal translates mouse
	// wheel events into arrow key sequences. This gives us wheel scrolling
	// without capturing the mouse, so normal text selection keeps working.
	fmt.Fprint(os.Stderr, "\x1b[?1007h")
	defer fmt.Fprint(os.Stderr, "\x1b[?1007l")

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	fm := finalModel.(*Model)
	if fm.workflowID != "" && (!fm.quitting || fm.err == nil) {
		fmt.Fprintf(os.Stderr, "\nSession suspended. Resume with:\n  tcx --session %s\n", fm.workflowID)
	}

	if fm.err != nil {
		return fm.err
	}
	return nil
}
