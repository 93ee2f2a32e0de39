package model

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/srouault/personal-ai-assistant/style"
)

// ToastLevel classifies toast severity.
type ToastLevel int

const (
	ToastInfo ToastLevel = iota
	ToastWarning
	ToastError
)

const (
	maxToasts = 3
	toastTTL  = 4 * time.Second
)

type toast struct {
	message string
	level   ToastLevel
	expiry  time.Time
}

type toastTickMsg struct{}

// ToastsModel manages a queue of auto-dismissing notifications (export
// results, settings reloads, quit confirmation).
type ToastsModel struct {
	queue   []toast
	ticking bool
	now     func() time.Time
}

// NewToasts creates an empty ToastsModel.
func NewToasts() ToastsModel {
	return ToastsModel{now: time.Now}
}

// Add enqueues a toast. Oldest toasts are dropped past maxToasts. The
// returned command drives expiry and is nil when a tick is already running.
func (m *ToastsModel) Add(message string, level ToastLevel) tea.Cmd {
	m.queue = append(m.queue, toast{
		message: message,
		level:   level,
		expiry:  m.now().Add(toastTTL),
	})
	if len(m.queue) > maxToasts {
		m.queue = m.queue[len(m.queue)-maxToasts:]
	}
	if m.ticking {
		return nil
	}
	m.ticking = true
	return toastTick()
}

func toastTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return toastTickMsg{} })
}

// Update prunes expired toasts on each tick and stops ticking once empty.
func (m ToastsModel) Update(teaMsg tea.Msg) (ToastsModel, tea.Cmd) {
	if _, ok := teaMsg.(toastTickMsg); !ok {
		return m, nil
	}
	now := m.now()
	alive := m.queue[:0]
	for _, t := range m.queue {
		if now.Before(t.expiry) {
			alive = append(alive, t)
		}
	}
	m.queue = alive
	if len(m.queue) == 0 {
		m.ticking = false
		return m, nil
	}
	return m, toastTick()
}

// Len reports how many toasts are visible.
func (m ToastsModel) Len() int {
	return len(m.queue)
}

// View renders visible toasts as right-aligned colored lines.
func (m ToastsModel) View(termWidth int) string {
	if len(m.queue) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.queue))
	for _, t := range m.queue {
		icon, color := toastIconColor(t.level)
		rendered := lipgloss.NewStyle().
			Foreground(color).
			Render(fmt.Sprintf(" %s %s ", icon, t.message))
		lines = append(lines, lipgloss.PlaceHorizontal(termWidth, lipgloss.Right, rendered))
	}
	return strings.Join(lines, "\n")
}

func toastIconColor(level ToastLevel) (string, lipgloss.TerminalColor) {
	switch level {
	case ToastWarning:
		return "\u26A0", style.Warning // ⚠
	case ToastError:
		return "\u2718", style.Error // ✘
	default:
		return "\u2713", style.Success // ✓
	}
}
