package model

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/srouault/personal-ai-assistant/msg"
	"github.com/srouault/personal-ai-assistant/style"
)

// ComposerMode is the submit state of the composer.
type ComposerMode int

const (
	ComposerIdle     ComposerMode = iota // editable, submit allowed
	ComposerDisabled                     // a request is in flight
)

func (m ComposerMode) String() string {
	switch m {
	case ComposerIdle:
		return "idle"
	case ComposerDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// ComposerState is the read-only snapshot the message list renders from.
type ComposerState struct {
	DraftText              string
	IsSubmitDisabled       bool
	IsWaitingForFirstToken bool
}

// ComposerKeyMap holds the composer bindings.
//
// Terminals report Shift+Enter as a plain Enter, so the newline binding also
// accepts Alt+Enter and Ctrl+J, which every terminal can send.
type ComposerKeyMap struct {
	Submit      key.Binding
	Newline     key.Binding
	HistoryPrev key.Binding
	HistoryNext key.Binding
}

// DefaultComposerKeyMap returns the standard bindings.
func DefaultComposerKeyMap() ComposerKeyMap {
	return ComposerKeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("shift+enter", "alt+enter", "ctrl+j"),
			key.WithHelp("alt+enter", "newline"),
		),
		HistoryPrev: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "previous message"),
		),
		HistoryNext: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "next message"),
		),
	}
}

const (
	composerCharLimit = 8000
	composerMaxRows   = 6
)

// Composer is the multi-line input at the bottom of the chat. It owns the
// draft buffer and the Idle/Disabled state; the caller owns the history and
// decides when a submission finishes.
//
// History navigation:
//   - Up on a single-line draft: walk backwards through submitted drafts
//   - Down: walk forwards, ending on an empty draft
type Composer struct {
	ta         textarea.Model
	keys       ComposerKeyMap
	mode       ComposerMode
	waiting    bool
	history    []string
	historyIdx int // one past the last entry when not navigating
	width      int
}

// NewComposer returns a focused, idle composer.
func NewComposer() Composer {
	ta := textarea.New()
	ta.Placeholder = "Type a message…"
	ta.Prompt = ""
	ta.ShowLineNumbers = false
	ta.CharLimit = composerCharLimit
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()

	keys := DefaultComposerKeyMap()
	ta.KeyMap.InsertNewline = keys.Newline
	ta.SetHeight(1)
	ta.Focus()

	return Composer{ta: ta, keys: keys}
}

// Init starts the cursor blink.
func (c Composer) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles key input. While disabled every key is ignored so the draft
// cannot change and no second submission can start.
func (c Composer) Update(m tea.Msg) (Composer, tea.Cmd) {
	k, ok := m.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		c.ta, cmd = c.ta.Update(m)
		return c, cmd
	}
	if c.mode == ComposerDisabled {
		return c, nil
	}

	before := c.ta.Value()
	switch {
	case key.Matches(k, c.keys.Submit):
		cmd := c.Submit()
		return c, cmd

	case key.Matches(k, c.keys.HistoryPrev) && c.canNavigate():
		c.navigateHistory(-1)

	case key.Matches(k, c.keys.HistoryNext) && c.canNavigate():
		c.navigateHistory(+1)

	default:
		var cmd tea.Cmd
		c.ta, cmd = c.ta.Update(k)
		c.resize()
		return c, tea.Batch(cmd, c.draftChanged(before))
	}
	return c, c.draftChanged(before)
}

// Submit sends the draft: a blank draft or a disabled composer does nothing,
// otherwise the composer disables itself and the returned command yields a
// single msg.SubmitMessage. The draft is left in place for the caller to read.
func (c *Composer) Submit() tea.Cmd {
	if c.mode == ComposerDisabled {
		return nil
	}
	text := c.ta.Value()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	c.history = append(c.history, text)
	c.historyIdx = len(c.history)
	c.mode = ComposerDisabled
	c.ta.Blur()
	return func() tea.Msg { return msg.SubmitMessage{} }
}

// SetLoading mirrors the caller's loading flag. Leaving the loading state
// re-enables the composer and returns the focus command.
func (c *Composer) SetLoading(loading bool) tea.Cmd {
	if loading {
		c.mode = ComposerDisabled
		c.ta.Blur()
		return nil
	}
	c.mode = ComposerIdle
	c.waiting = false
	return c.ta.Focus()
}

// SetWaiting mirrors whether the reply has produced no text yet.
func (c *Composer) SetWaiting(waiting bool) {
	c.waiting = waiting
}

// SetValue replaces the draft, e.g. to clear it after a submission.
func (c *Composer) SetValue(s string) {
	c.ta.SetValue(s)
	c.historyIdx = len(c.history)
	c.resize()
}

// SetWidth sets the outer width including the frame.
func (c *Composer) SetWidth(w int) {
	c.width = w
	// border (2) + prompt (2)
	c.ta.SetWidth(max(1, w-4))
}

// Value returns the draft.
func (c Composer) Value() string { return c.ta.Value() }

// Mode returns Idle or Disabled.
func (c Composer) Mode() ComposerMode { return c.mode }

// IsSubmitDisabled reports whether a submission is blocked by an in-flight
// request.
func (c Composer) IsSubmitDisabled() bool { return c.mode == ComposerDisabled }

// IsWaitingForFirstToken is only ever true while disabled.
func (c Composer) IsWaitingForFirstToken() bool {
	return c.mode == ComposerDisabled && c.waiting
}

// State snapshots the composer for rendering.
func (c Composer) State() ComposerState {
	return ComposerState{
		DraftText:              c.ta.Value(),
		IsSubmitDisabled:       c.IsSubmitDisabled(),
		IsWaitingForFirstToken: c.IsWaitingForFirstToken(),
	}
}

// Height is the rendered height including the frame.
func (c Composer) Height() int {
	return c.ta.Height() + 2
}

// View renders the prompt character and the text area inside a frame.
func (c Composer) View() string {
	frame := style.Composer
	prompt := style.PromptChar.Render("❯ ")
	if c.mode == ComposerDisabled {
		frame = style.ComposerDisabled
		prompt = style.Faint.Render("❯ ")
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, prompt, c.ta.View())
	if c.width > 0 {
		frame = frame.Width(c.width - 2)
	}
	return frame.Render(body)
}

func (c Composer) draftChanged(before string) tea.Cmd {
	after := c.ta.Value()
	if after == before {
		return nil
	}
	return func() tea.Msg { return msg.DraftChanged{Text: after} }
}

// canNavigate keeps Up/Down as cursor keys inside a multi-line draft.
func (c Composer) canNavigate() bool {
	return len(c.history) > 0 && !strings.Contains(c.ta.Value(), "\n")
}

// navigateHistory moves the history cursor by delta (-1 = older, +1 = newer).
func (c *Composer) navigateHistory(delta int) {
	next := min(max(c.historyIdx+delta, 0), len(c.history))
	c.historyIdx = next
	if next == len(c.history) {
		c.ta.SetValue("")
	} else {
		c.ta.SetValue(c.history[next])
		c.ta.CursorEnd()
	}
	c.resize()
}

// resize grows the text area with its content up to composerMaxRows.
func (c *Composer) resize() {
	c.ta.SetHeight(min(max(c.ta.LineCount(), 1), composerMaxRows))
}
