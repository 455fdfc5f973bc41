// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/polychat/internal/client"
	"github.com/jeranaias/polychat/internal/model"
	"github.com/jeranaias/polychat/internal/session"
	"github.com/jeranaias/polychat/internal/ui/styles"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// requestTimeout bounds one API call made from the view.
	requestTimeout = 2 * time.Minute

	// maxNotes bounds the command output kept below the transcript.
	maxNotes = 20

	// chromeHeight is the header, status bar and input line.
	chromeHeight = 4
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// CommandFunc runs a slash command and returns its printable output. quit
// ends the program.
type CommandFunc func(ctx context.Context, line string) (output string, quit bool)

// Options configures the chat view.
type Options struct {
	Session *client.Session
	Theme   *styles.Theme
	Manager *session.Manager
	// Command handles slash commands. Nil disables them.
	Command CommandFunc
	// Markdown renders assistant replies. Nil prints them raw.
	Markdown func(string) string
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	sess     *client.Session
	theme    *styles.Theme
	mgr      *session.Manager
	command  CommandFunc
	markdown func(string) string
	keys     KeyMap

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	width   int
	height  int
	ready   bool
	sending bool
	notes   []string
	quit    bool
}

// New creates the chat view.
func New(opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a mentor, or /help"
	ti.CharLimit = 8000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}

	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}
	mgr := opts.Manager
	if mgr == nil {
		mgr = session.NewManager(session.DefaultConfig())
	}
	md := opts.Markdown
	if md == nil {
		md = func(s string) string { return s }
	}
	ti.PromptStyle = theme.InputPrompt

	return Model{
		sess:     opts.Session,
		theme:    theme,
		mgr:      mgr,
		command:  opts.Command,
		markdown: md,
		keys:     DefaultKeyMap(),
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
	}
}

// Init starts the session ticker and loads the model catalog.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		session.TickCmd(),
		m.loadModelsCmd(),
	)
}

// Quitting reports whether the view asked to exit.
func (m Model) Quitting() bool {
	return m.quit
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m Model) sendCmd(text string) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		res, err := sess.SendMessage(ctx, text, nil)
		return SendResultMsg{Result: res, Err: err}
	}
}

func (m Model) healthCmd() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return HealthMsg{Online: sess.CheckHealth(ctx)}
	}
}

func (m Model) loadModelsCmd() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, err := sess.LoadChatModels(ctx)
		return ModelsLoadedMsg{Err: err}
	}
}

func (m Model) runCommand(line string) tea.Cmd {
	run := m.command
	if run == nil {
		return func() tea.Msg {
			return CommandResultMsg{Output: styles.RenderWarning("Commands are not available.")}
		}
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		out, quit := run(ctx, line)
		return CommandResultMsg{Output: strings.TrimRight(out, "\n"), Quit: quit}
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case session.TickMsg:
		return m, m.mgr.HandleTick()

	case session.HealthDueMsg:
		return m, m.healthCmd()

	case HealthMsg:
		m.mgr.MarkHealthChecked()
		m.refresh()
		return m, nil

	case ModelsLoadedMsg:
		if msg.Err != nil {
			m.addNote(styles.RenderWarning(client.MsgModelsNotReady))
		}
		m.refresh()
		return m, nil

	case SendResultMsg:
		m.sending = false
		if msg.Err != nil {
			m.addNote(styles.RenderError(sendFailure(msg.Err, m.sess.Snapshot())))
		}
		m.refresh()
		return m, nil

	case CommandResultMsg:
		if msg.Output != "" {
			m.addNote(msg.Output)
		}
		if msg.Quit {
			m.quit = true
			return m, tea.Quit
		}
		m.refresh()
		return m, nil

	case refreshMsg:
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.sending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quit = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil
	case key.Matches(msg, m.keys.Clear):
		m.notes = nil
		m.refresh()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	m.mgr.RecordActivity()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.mgr.RecordActivity()
	m.input.Reset()

	if strings.HasPrefix(text, "/") {
		return m, m.runCommand(text)
	}
	if m.sending {
		m.addNote(styles.RenderWarning("A message is already being sent."))
		m.refresh()
		return m, nil
	}
	m.sending = true
	m.notes = nil
	cmd := m.sendCmd(text)
	// The optimistic user message is appended synchronously by the session,
	// so a refresh on the next frame shows it while the request runs.
	return m, tea.Batch(cmd, m.spinner.Tick, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
		return refreshMsg{}
	}))
}

// refreshMsg redraws the transcript.
type refreshMsg struct{}

func (m *Model) addNote(note string) {
	m.notes = append(m.notes, note)
	if len(m.notes) > maxNotes {
		m.notes = m.notes[len(m.notes)-maxNotes:]
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.theme.SetSize(width, height)
	m.input.Width = max(width-4, 10)
	m.viewport.Width = width
	m.viewport.Height = max(height-chromeHeight, 3)
	m.ready = true
	m.refresh()
}

// refresh re-renders the transcript and keeps it scrolled to the end.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// sendFailure picks the message shown for a failed send.
func sendFailure(err error, v client.View) string {
	switch {
	case errors.Is(err, client.ErrSendInFlight):
		return "A message is already being sent."
	case model.KindOf(err) == model.KindValidation, model.KindOf(err) == model.KindRateLimited:
		return model.PublicMessage(err)
	case v.LastError != "":
		return v.LastError
	default:
		return client.MsgSendFailed
	}
}
