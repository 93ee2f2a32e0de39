package model

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/srouault/personal-ai-assistant/msg"
	"github.com/srouault/personal-ai-assistant/style"
)

// Renderer turns one message into terminal text wrapped at width.
// *markdown.Formatter satisfies it.
type Renderer interface {
	Terminal(m msg.Message, width int) string
}

const emptyPlaceholder = "  No messages yet. Type below to get started."

// RenderMessages lays out the conversation: assistant messages on the left,
// user messages on the right. The waiting indicator is attached to the last
// message only when that message is from the assistant and no reply text has
// arrived yet.
func RenderMessages(r Renderer, messages []msg.Message, st ComposerState, indicator string, width int) string {
	if len(messages) == 0 {
		return style.Faint.Render(emptyPlaceholder)
	}

	last := len(messages) - 1
	blocks := make([]string, 0, len(messages))
	for i, m := range messages {
		var ind string
		if i == last && m.Role == msg.RoleAssistant && st.IsWaitingForFirstToken {
			ind = indicator
		}
		blocks = append(blocks, renderMessage(r, m, ind, width))
	}
	return strings.Join(blocks, "\n\n")
}

func renderMessage(r Renderer, m msg.Message, indicator string, width int) string {
	switch m.Role {
	case msg.RoleUser:
		maxW := max(width*3/4, 10)
		body := style.UserBubble.Render(r.Terminal(m, fitWidth(m.Content, maxW)))
		label := style.UserLabel.Render("You ❯")
		return lipgloss.PlaceHorizontal(width, lipgloss.Right,
			lipgloss.JoinVertical(lipgloss.Right, label, body))

	default:
		// border (1) + padding (1)
		text := r.Terminal(m, max(width-2, 10))
		if indicator != "" {
			if text == "" {
				text = indicator
			} else {
				text += "\n" + indicator
			}
		}
		label := style.AgentLabel.Render("◈ Assistant")
		return label + "\n" + style.AssistantBubble.Render(text)
	}
}

// fitWidth is the wrap width for literal text: its widest line, capped.
func fitWidth(s string, limit int) int {
	w := 1
	for _, line := range strings.Split(s, "\n") {
		w = max(w, runewidth.StringWidth(line))
	}
	return min(w, limit)
}

type cacheKey struct {
	role    msg.Role
	content string
	width   int
}

// renderCache memoizes rendered messages between passes. Entries not used in
// a pass are dropped at the next swap, so a streaming message does not leave
// one entry per delta behind.
type renderCache struct {
	r          Renderer
	prev, next map[cacheKey]string
}

func newRenderCache(r Renderer) *renderCache {
	return &renderCache{r: r, prev: map[cacheKey]string{}, next: map[cacheKey]string{}}
}

func (c *renderCache) Terminal(m msg.Message, width int) string {
	k := cacheKey{m.Role, m.Content, width}
	if s, ok := c.next[k]; ok {
		return s
	}
	s, ok := c.prev[k]
	if !ok {
		s = c.r.Terminal(m, width)
	}
	c.next[k] = s
	return s
}

func (c *renderCache) swap() {
	c.prev, c.next = c.next, make(map[cacheKey]string, len(c.next))
}

// ChatModel is a scrollable viewport that displays conversation history. It
// re-renders on every change and asks its Scroller to pin the bottom.
type ChatModel struct {
	vp       *viewport.Model
	scroll   Scroller
	cache    *renderCache
	dots     spinner.Model
	messages []msg.Message
	composer ComposerState
	width    int
	height   int
	sized    bool
}

// NewChat constructs a ChatModel sized to width x height.
func NewChat(r Renderer, width, height int, smooth bool) ChatModel {
	vp := viewport.New(width, height)
	vp.SetContent("")
	return ChatModel{
		vp:     &vp,
		scroll: NewScroller(smooth),
		cache:  newRenderCache(r),
		dots: spinner.New(
			spinner.WithSpinner(spinner.Points),
			spinner.WithStyle(style.Indicator),
		),
		width:  width,
		height: height,
	}
}

// SetMessages replaces the history and schedules a scroll to the bottom.
func (m *ChatModel) SetMessages(messages []msg.Message) tea.Cmd {
	m.messages = messages
	m.refresh()
	return m.scroll.OnMessagesChanged()
}

// SetComposer updates the composer snapshot. Entering the waiting state
// starts the indicator animation.
func (m *ChatModel) SetComposer(st ComposerState) tea.Cmd {
	wasWaiting := m.composer.IsWaitingForFirstToken
	m.composer = st
	m.refresh()
	cmds := []tea.Cmd{m.scroll.OnMessagesChanged()}
	if st.IsWaitingForFirstToken && !wasWaiting {
		cmds = append(cmds, m.dots.Tick)
	}
	return tea.Batch(cmds...)
}

// SetSize resizes the viewport. The first call is the first render and
// pins the view to the bottom.
func (m *ChatModel) SetSize(width, height int) tea.Cmd {
	m.width = width
	m.height = height
	if m.vp != nil {
		m.vp.Width = width
		m.vp.Height = height
	}
	m.refresh()
	if !m.sized {
		m.sized = true
		return m.scroll.OnFirstRender()
	}
	return m.scroll.OnMessagesChanged()
}

// SetSmoothScroll toggles eased scrolling.
func (m *ChatModel) SetSmoothScroll(v bool) {
	m.scroll.SetSmooth(v)
}

// SetRenderer swaps the message renderer, e.g. after a theme change, and
// schedules a scroll since the content height may have changed.
func (m *ChatModel) SetRenderer(r Renderer) tea.Cmd {
	m.cache = newRenderCache(r)
	m.refresh()
	return m.scroll.OnMessagesChanged()
}

// Teardown releases the viewport. Scroll frames still in flight become
// no-ops.
func (m *ChatModel) Teardown() {
	m.vp = nil
}

// Settled reports that no scroll is pending.
func (m ChatModel) Settled() bool {
	return m.scroll.Settled()
}

// AtBottom reports whether the newest content is visible.
func (m ChatModel) AtBottom() bool {
	return m.vp != nil && m.vp.AtBottom()
}

// Init satisfies tea.Model. The first scroll is requested by SetSize.
func (m ChatModel) Init() tea.Cmd {
	return nil
}

// Update handles scroll frames and indicator ticks, and forwards keyboard
// and mouse events to the viewport.
func (m ChatModel) Update(teaMsg tea.Msg) (ChatModel, tea.Cmd) {
	switch v := teaMsg.(type) {
	case scrollFrameMsg:
		return m, m.scroll.Update(v, m.vp)

	case spinner.TickMsg:
		if !m.composer.IsWaitingForFirstToken {
			return m, nil
		}
		var cmd tea.Cmd
		m.dots, cmd = m.dots.Update(v)
		m.refresh()
		return m, cmd
	}

	if m.vp == nil {
		return m, nil
	}
	var cmd tea.Cmd
	*m.vp, cmd = m.vp.Update(teaMsg)
	return m, cmd
}

// View returns the rendered viewport content.
func (m ChatModel) View() string {
	if m.vp == nil {
		return ""
	}
	return m.vp.View()
}

// Content renders the full history without the viewport window.
func (m ChatModel) Content() string {
	return RenderMessages(m.cache, m.messages, m.composer, m.dots.View(), m.width)
}

// refresh re-renders all messages into the viewport. Scrolling is left to
// the Scroller so the offset is computed after layout.
func (m *ChatModel) refresh() {
	if m.vp == nil {
		return
	}
	m.vp.SetContent(m.Content())
	m.cache.swap()
}
