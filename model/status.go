package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/srouault/personal-ai-assistant/style"
)

// StatusModel renders the bottom status line. It has two visual states:
//
//   - active (processing): streaming marker · elapsed · message count
//   - idle: backend (provider / model) · message count · last reply time
type StatusModel struct {
	backend     string
	provider    string
	modelName   string
	unreachable bool
	active      bool
	started     time.Time
	lastReply   time.Duration
	messages    int
	now         func() time.Time
}

// NewStatus returns a StatusModel labelled with the backend name.
func NewStatus(backend string) StatusModel {
	return StatusModel{backend: backend, now: time.Now}
}

// SetProviderInfo stores the provider and model name reported by the backend.
func (m *StatusModel) SetProviderInfo(provider, modelName string) {
	m.provider = provider
	m.modelName = modelName
	m.unreachable = false
}

// SetUnreachable marks the backend as failing its health check.
func (m *StatusModel) SetUnreachable() {
	m.unreachable = true
}

// SetMessageCount updates the number of messages in the conversation.
func (m *StatusModel) SetMessageCount(n int) {
	m.messages = n
}

// SetActive marks the model as processing (true) or idle (false). Leaving
// the active state records how long the reply took.
func (m *StatusModel) SetActive(active bool) {
	switch {
	case active && !m.active:
		m.started = m.now()
	case !active && m.active:
		m.lastReply = m.now().Sub(m.started)
	}
	m.active = active
}

// View renders the status line.
func (m StatusModel) View() string {
	var parts []string
	if m.active {
		elapsed := m.now().Sub(m.started)
		parts = append(parts, style.Indicator.Render("●")+" streaming "+formatElapsed(elapsed))
	} else {
		parts = append(parts, m.backendLabel())
	}
	if m.messages > 0 {
		parts = append(parts, fmt.Sprintf("%d messages", m.messages))
	}
	if !m.active && m.lastReply > 0 {
		parts = append(parts, "last reply "+formatElapsed(m.lastReply))
	}
	return style.StatusBar.Render(strings.Join(parts, " · "))
}

// backendLabel renders provider/model when known.
//
//	ollama / llama3.2
func (m StatusModel) backendLabel() string {
	if m.unreachable {
		return style.ErrorText.Render(m.backend + " unreachable")
	}
	info := m.provider
	if m.modelName != "" {
		if info != "" {
			info += " / " + m.modelName
		} else {
			info = m.modelName
		}
	}
	if info == "" {
		return m.backend
	}
	return info
}

func formatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
