package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/srouault/personal-ai-assistant/client"
	"github.com/srouault/personal-ai-assistant/markdown"
	"github.com/srouault/personal-ai-assistant/model"
	"github.com/srouault/personal-ai-assistant/msg"
	"github.com/srouault/personal-ai-assistant/style"
)

// ProgramReady hands the running program to the model so stream commands
// can push deltas into it.
type ProgramReady struct{ Program *tea.Program }

// Streamer starts an assistant reply for history. Deltas go through s; the
// returned command yields msg.StreamDone or msg.StreamError. Every event
// carries id.
type Streamer interface {
	StreamCmd(ctx context.Context, s client.Sender, id string, history []msg.Message) tea.Cmd
}

// healthChecker is implemented by streamers backed by a server.
type healthChecker interface {
	Health(ctx context.Context) (*client.HealthResponse, error)
}

// Options configures New.
type Options struct {
	Streamer     Streamer
	Backend      string // status line label, e.g. the backend URL
	CodeStyle    string // chroma style
	WrapWidth    int
	SmoothScroll bool
	ExportDir    string
}

// Model is the root model. It owns the conversation history and the
// loading flags, and pushes them into the chat view and the composer after
// every change.
type Model struct {
	chat      model.ChatModel
	composer  model.Composer
	status    model.StatusModel
	toasts    model.ToastsModel
	help      help.Model
	state     State
	streamer  Streamer
	sender    client.Sender
	formatter *markdown.Formatter
	opts      Options
	keys      KeyMap

	history []msg.Message
	loading bool
	waiting bool
	cancel  context.CancelFunc

	width       int
	height      int
	confirmQuit bool
}

func New(opts Options) Model {
	if opts.Streamer == nil {
		opts.Streamer = client.NewEcho()
	}
	f := buildFormatter(opts.CodeStyle, opts.WrapWidth)
	m := Model{
		chat:      model.NewChat(f, 80, 20, opts.SmoothScroll),
		composer:  model.NewComposer(),
		status:    model.NewStatus(opts.Backend),
		toasts:    model.NewToasts(),
		help:      help.New(),
		state:     StateIdle,
		streamer:  opts.Streamer,
		formatter: f,
		opts:      opts,
		keys:      DefaultKeyMap(),
		width:     80,
		height:    24,
	}
	m.composer.SetWidth(m.width)
	return m
}

// buildFormatter creates the formatter for the active theme. glamour only
// rejects unknown style names, and the themes use built-in ones; the
// fallback keeps the view usable regardless.
func buildFormatter(codeStyle string, wrap int) *markdown.Formatter {
	if codeStyle == "" {
		codeStyle = "monokai"
	}
	opts := []markdown.Option{
		markdown.WithGlamourStyle(style.Current().Glamour),
		markdown.WithHighlighter(markdown.NewChromaHighlighter(codeStyle, lipgloss.ColorProfile())),
	}
	if wrap > 0 {
		opts = append(opts, markdown.WithWordWrap(wrap))
	}
	f, err := markdown.New(opts...)
	if err != nil {
		slog.Warn("formatter setup failed, using defaults", "err", err)
		f, _ = markdown.New(markdown.WithGlamourStyle("notty"))
	}
	return f
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.composer.Init(), m.checkHealth(), tea.WindowSize())
}

func (m Model) Update(rawMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := rawMsg.(type) {
	case tea.WindowSizeMsg:
		m.width = v.Width
		m.height = v.Height
		m.composer.SetWidth(v.Width)
		m.help.Width = v.Width
		cmd := m.layout()
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(v)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(v)
		return m, cmd

	case ProgramReady:
		m.sender = v.Program
		return m, nil

	case msg.SubmitMessage:
		return m.handleSubmit()

	case msg.DraftChanged:
		m.confirmQuit = false
		cmd := m.layout()
		return m, cmd

	case msg.StreamStarted:
		if m.isCurrent(v.ID) {
			slog.Debug("stream started", "id", v.ID)
		}
		return m, nil

	case msg.StreamDelta:
		return m.handleDelta(v)

	case msg.StreamDone:
		if !m.isCurrent(v.ID) {
			return m, nil
		}
		slog.Debug("stream done", "id", v.ID)
		cmd := m.finish()
		return m, cmd

	case msg.StreamError:
		return m.handleStreamError(v)

	case msg.HealthResult:
		if v.Err != nil {
			m.status.SetUnreachable()
			cmd := m.toasts.Add("Backend unreachable: "+v.Err.Error(), model.ToastWarning)
			return m, cmd
		}
		m.status.SetProviderInfo(v.Provider, v.Model)
		return m, nil

	case notice:
		cmd := m.toasts.Add(v.text, v.level)
		return m, cmd

	case msg.ConfigReloaded:
		return m.handleConfigReloaded(v)

	case msg.ExportResult:
		if v.Err != nil {
			cmd := m.toasts.Add("Export failed: "+v.Err.Error(), model.ToastError)
			return m, cmd
		}
		cmd := m.toasts.Add("Exported to "+v.Path, model.ToastInfo)
		return m, cmd
	}

	// Frames, indicator ticks, toast ticks, cursor blink.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.chat, cmd = m.chat.Update(rawMsg)
	cmds = append(cmds, cmd)
	before := m.toasts.Len()
	m.toasts, cmd = m.toasts.Update(rawMsg)
	cmds = append(cmds, cmd)
	if m.toasts.Len() != before {
		cmds = append(cmds, m.layout())
	}
	m.composer, cmd = m.composer.Update(rawMsg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	sections := []string{m.chat.View()}
	if m.toasts.Len() > 0 {
		sections = append(sections, m.toasts.View(m.width))
	}
	sections = append(sections, m.composer.View(), m.footer())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) footer() string {
	hints := m.help.ShortHelpView([]key.Binding{
		model.DefaultComposerKeyMap().Submit,
		model.DefaultComposerKeyMap().Newline,
		m.keys.Cancel,
		m.keys.Export,
		m.keys.Quit,
	})
	status := m.status.View()
	gap := m.width - lipgloss.Width(status) - lipgloss.Width(hints)
	if gap < 1 {
		return status
	}
	return status + strings.Repeat(" ", gap) + hints
}

func (m Model) handleKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !key.Matches(k, m.keys.Quit) {
		m.confirmQuit = false
	}
	switch {
	case key.Matches(k, m.keys.Quit):
		if m.loading {
			return m.cancelStream()
		}
		if m.composer.Value() != "" {
			m.composer.SetValue("")
			cmd := m.layout()
			return m, cmd
		}
		if m.confirmQuit {
			return m, tea.Quit
		}
		m.confirmQuit = true
		cmd := m.toasts.Add("Press ctrl+c again to quit", model.ToastWarning)
		return m, cmd

	case key.Matches(k, m.keys.QuitEOF):
		if m.composer.Value() == "" && !m.loading {
			return m, tea.Quit
		}

	case key.Matches(k, m.keys.Cancel):
		if m.loading {
			return m.cancelStream()
		}
		return m, nil

	case key.Matches(k, m.keys.PageUp), key.Matches(k, m.keys.PageDown):
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(k)
		return m, cmd

	case key.Matches(k, m.keys.Export):
		cmd := m.exportCmd()
		return m, cmd
	}

	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(k)
	return m, cmd
}

// handleSubmit appends the user message and an empty assistant message,
// resets the draft, and starts the stream.
func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	draft := m.composer.Value()
	if m.loading {
		return m, nil
	}
	if strings.TrimSpace(draft) == "" {
		// The draft was cleared between Enter and delivery; the composer
		// already disabled itself and must come back.
		cmd := m.composer.SetLoading(false)
		return m, cmd
	}

	m.history = append(m.history, msg.Message{ID: uuid.NewString(), Role: msg.RoleUser, Content: draft})
	request := slices.Clone(m.history)
	pending := msg.Message{ID: uuid.NewString(), Role: msg.RoleAssistant}
	m.history = append(m.history, pending)

	m.composer.SetValue("")
	m.loading, m.waiting = true, true
	m.composer.SetLoading(true)
	m.composer.SetWaiting(true)
	m.state = StateProcessing
	m.status.SetActive(true)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	sender := m.sender
	if sender == nil {
		slog.Warn("no program attached, stream deltas will be dropped")
		sender = discard{}
	}
	slog.Debug("submit", "id", pending.ID, "messages", len(request))

	cmd := tea.Batch(m.sync(), m.layout(), m.streamer.StreamCmd(ctx, sender, pending.ID, request))
	return m, cmd
}

func (m Model) handleDelta(d msg.StreamDelta) (tea.Model, tea.Cmd) {
	if !m.isCurrent(d.ID) {
		return m, nil
	}
	m.replaceLast(func(last *msg.Message) { last.Content += d.Text })
	if m.waiting {
		m.waiting = false
		m.composer.SetWaiting(false)
	}
	cmd := m.sync()
	return m, cmd
}

func (m Model) handleStreamError(e msg.StreamError) (tea.Model, tea.Cmd) {
	if !m.isCurrent(e.ID) {
		return m, nil
	}
	slog.Warn("stream failed", "id", e.ID, "err", e.Err)
	if errors.Is(e.Err, context.Canceled) {
		return m.cancelStream()
	}
	m.replaceLast(func(last *msg.Message) {
		note := "**Error:** " + e.Err.Error()
		if last.Content == "" {
			last.Content = note
		} else {
			last.Content += "\n\n" + note
		}
	})
	cmd := m.finish()
	return m, cmd
}

// cancelStream stops the request. A reply that produced no text is removed.
func (m Model) cancelStream() (tea.Model, tea.Cmd) {
	if n := len(m.history); n > 0 && m.history[n-1].Role == msg.RoleAssistant && m.history[n-1].Content == "" {
		m.history = slices.Clone(m.history[:n-1])
	}
	cmd := tea.Batch(m.finish(), m.toasts.Add("Request cancelled", model.ToastWarning))
	return m, cmd
}

// finish leaves the loading state and re-enables the composer.
func (m *Model) finish() tea.Cmd {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.loading, m.waiting = false, false
	m.state = StateIdle
	m.status.SetActive(false)
	focus := m.composer.SetLoading(false)
	return tea.Batch(focus, m.sync(), m.layout())
}

// isCurrent reports whether a stream event belongs to the reply in flight.
func (m Model) isCurrent(id string) bool {
	n := len(m.history)
	return m.loading && n > 0 && m.history[n-1].ID == id
}

// replaceLast swaps the last message for an edited copy. Slices already
// handed to the chat view are never written to.
func (m *Model) replaceLast(edit func(*msg.Message)) {
	next := slices.Clone(m.history)
	edit(&next[len(next)-1])
	m.history = next
}

// sync pushes history and composer state into the chat view.
func (m *Model) sync() tea.Cmd {
	m.status.SetMessageCount(len(m.history))
	return tea.Batch(
		m.chat.SetMessages(m.history),
		m.chat.SetComposer(m.composer.State()),
	)
}

// layout sizes the chat view to what the composer, toasts and footer leave.
func (m *Model) layout() tea.Cmd {
	return m.chat.SetSize(m.width, m.chatHeight())
}

func (m Model) chatHeight() int {
	h := m.height - m.composer.Height() - 1 // footer
	h -= m.toasts.Len()
	return max(h, 1)
}

func (m Model) handleConfigReloaded(c msg.ConfigReloaded) (tea.Model, tea.Cmd) {
	themeOK := c.Theme == "" || style.SetTheme(c.Theme)
	m.opts.CodeStyle = c.CodeStyle
	m.opts.SmoothScroll = c.SmoothScroll
	if c.WrapWidth > 0 {
		m.opts.WrapWidth = c.WrapWidth
	}
	m.formatter = buildFormatter(c.CodeStyle, m.opts.WrapWidth)
	scroll := m.chat.SetRenderer(m.formatter)
	m.chat.SetSmoothScroll(c.SmoothScroll)
	var toast tea.Cmd
	if themeOK {
		toast = m.toasts.Add("Settings reloaded", model.ToastInfo)
	} else {
		toast = m.toasts.Add(fmt.Sprintf("Unknown theme %q", c.Theme), model.ToastWarning)
	}
	cmd := tea.Batch(scroll, toast, m.layout())
	return m, cmd
}

func (m Model) checkHealth() tea.Cmd {
	hc, ok := m.streamer.(healthChecker)
	if !ok {
		return nil
	}
	return func() tea.Msg {
		h, err := hc.Health(context.Background())
		if err != nil {
			return msg.HealthResult{Err: err}
		}
		return msg.HealthResult{Provider: h.Provider, Model: h.Model, Version: h.Version}
	}
}

func (m Model) exportCmd() tea.Cmd {
	if len(m.history) == 0 {
		return noticeCmd("Nothing to export", model.ToastWarning)
	}
	dir := m.opts.ExportDir
	if dir == "" {
		dir = "."
	}
	f := m.formatter
	history := slices.Clone(m.history)
	return func() tea.Msg {
		path, err := exportTranscript(dir, f, history, time.Now())
		return msg.ExportResult{Path: path, Err: err}
	}
}

// notice asks Update to show a toast; used where the model cannot be
// mutated.
type notice struct {
	text  string
	level model.ToastLevel
}

func noticeCmd(text string, level model.ToastLevel) tea.Cmd {
	return func() tea.Msg { return notice{text: text, level: level} }
}

// History returns the conversation so far.
func (m Model) History() []msg.Message {
	return m.history
}

// State returns the current application state.
func (m Model) State() State {
	return m.state
}

type discard struct{}

func (discard) Send(tea.Msg) {}
