package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srouault/personal-ai-assistant/client"
	"github.com/srouault/personal-ai-assistant/model"
	"github.com/srouault/personal-ai-assistant/msg"
)

type streamCall struct {
	ctx     context.Context
	id      string
	history []msg.Message
}

// fakeStreamer records requests; tests feed stream events by hand.
type fakeStreamer struct {
	calls []streamCall
}

func (f *fakeStreamer) StreamCmd(ctx context.Context, _ client.Sender, id string, history []msg.Message) tea.Cmd {
	f.calls = append(f.calls, streamCall{ctx: ctx, id: id, history: history})
	return nil
}

const idleDots = "∙∙∙"

func newTestModel(t *testing.T) (Model, *fakeStreamer) {
	t.Helper()
	fs := &fakeStreamer{}
	m := New(Options{Streamer: fs, Backend: "test"})
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	return m, fs
}

func update(t *testing.T, m Model, in tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(in)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func updateCmd(t *testing.T, m Model, in tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(in)
	return next.(Model), cmd
}

func typeInto(t *testing.T, m Model, s string) Model {
	t.Helper()
	return update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// submit presses Enter and delivers the resulting SubmitMessage.
func submit(t *testing.T, m Model) Model {
	t.Helper()
	m, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd, "enter produced no command")
	out := cmd()
	require.IsType(t, msg.SubmitMessage{}, out)
	return update(t, m, out)
}

func TestSubmitStreamDone(t *testing.T) {
	m, fs := newTestModel(t)

	m = typeInto(t, m, "hello")
	m = submit(t, m)

	// Submission: user message, empty assistant message, draft reset.
	require.Len(t, m.History(), 2)
	assert.Equal(t, msg.RoleUser, m.History()[0].Role)
	assert.Equal(t, "hello", m.History()[0].Content)
	assert.Equal(t, msg.RoleAssistant, m.History()[1].Role)
	assert.Empty(t, m.History()[1].Content)
	assert.Equal(t, "", m.composer.Value())
	assert.Equal(t, StateProcessing, m.State())
	assert.True(t, m.composer.IsSubmitDisabled())
	assert.True(t, m.composer.IsWaitingForFirstToken())
	assert.Contains(t, m.chat.Content(), idleDots)

	// The request carries the conversation without the pending reply.
	require.Len(t, fs.calls, 1)
	assert.Equal(t, m.History()[1].ID, fs.calls[0].id)
	require.Len(t, fs.calls[0].history, 1)
	assert.Equal(t, "hello", fs.calls[0].history[0].Content)

	// Disabled composer rejects edits and a second submit.
	m = typeInto(t, m, "more")
	assert.Equal(t, "", m.composer.Value())
	m, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Len(t, fs.calls, 1)

	// First token: indicator goes away, still loading.
	id := fs.calls[0].id
	m = update(t, m, msg.StreamDelta{ID: id, Text: "Hi"})
	assert.Equal(t, "Hi", m.History()[1].Content)
	assert.False(t, m.composer.IsWaitingForFirstToken())
	assert.True(t, m.composer.IsSubmitDisabled())
	assert.NotContains(t, m.chat.Content(), idleDots)

	m = update(t, m, msg.StreamDelta{ID: id, Text: " there"})
	assert.Equal(t, "Hi there", m.History()[1].Content)

	m = update(t, m, msg.StreamDone{ID: id})
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, model.ComposerIdle, m.composer.Mode())
	assert.ErrorIs(t, fs.calls[0].ctx.Err(), context.Canceled, "request context is released")

	// Late events from a finished stream are ignored.
	m = update(t, m, msg.StreamDelta{ID: id, Text: "!!"})
	assert.Equal(t, "Hi there", m.History()[1].Content)
}

func TestBlankDraftIsNotSubmitted(t *testing.T) {
	m, fs := newTestModel(t)
	m = typeInto(t, m, "   ")

	m, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Empty(t, m.History())
	assert.Empty(t, fs.calls)
}

func TestShiftEnterFallbackInsertsNewline(t *testing.T) {
	m, fs := newTestModel(t)
	m = typeInto(t, m, "line one")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter, Alt: true})
	m = typeInto(t, m, "line two")

	assert.Equal(t, "line one\nline two", m.composer.Value())
	assert.Empty(t, fs.calls)

	m = submit(t, m)
	assert.Equal(t, "line one\nline two", m.History()[0].Content)
}

func TestStreamErrorShowsInPendingBubble(t *testing.T) {
	m, fs := newTestModel(t)
	m = typeInto(t, m, "q")
	m = submit(t, m)

	m = update(t, m, msg.StreamError{ID: fs.calls[0].id, Err: errors.New("model overloaded")})

	require.Len(t, m.History(), 2)
	assert.Contains(t, m.History()[1].Content, "model overloaded")
	assert.Equal(t, StateIdle, m.State())
	assert.False(t, m.composer.IsSubmitDisabled())
}

func TestEscCancelsInFlightRequest(t *testing.T) {
	m, fs := newTestModel(t)
	m = typeInto(t, m, "q")
	m = submit(t, m)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	assert.ErrorIs(t, fs.calls[0].ctx.Err(), context.Canceled)
	require.Len(t, m.History(), 1, "empty reply is dropped")
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, model.ComposerIdle, m.composer.Mode())

	// The cancelled stream's own error arrives afterwards and is ignored.
	m = update(t, m, msg.StreamError{ID: fs.calls[0].id, Err: context.Canceled})
	assert.Len(t, m.History(), 1)
}

func TestCancelKeepsPartialReply(t *testing.T) {
	m, fs := newTestModel(t)
	m = typeInto(t, m, "q")
	m = submit(t, m)
	m = update(t, m, msg.StreamDelta{ID: fs.calls[0].id, Text: "partial"})

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})

	require.Len(t, m.History(), 2)
	assert.Equal(t, "partial", m.History()[1].Content)
	assert.Equal(t, StateIdle, m.State())
}

func TestCtrlCTwiceQuits(t *testing.T) {
	m, _ := newTestModel(t)

	m, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, m.confirmQuit)

	_, cmd = updateCmd(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestCtrlCClearsDraftFirst(t *testing.T) {
	m, _ := newTestModel(t)
	m = typeInto(t, m, "draft")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Equal(t, "", m.composer.Value())
	assert.False(t, m.confirmQuit)
}

func TestHealthResultUpdatesStatus(t *testing.T) {
	m, _ := newTestModel(t)

	m = update(t, m, msg.HealthResult{Provider: "ollama", Model: "llama3.2"})
	assert.Contains(t, m.status.View(), "ollama / llama3.2")

	m, cmd := updateCmd(t, m, msg.HealthResult{Err: errors.New("connection refused")})
	assert.NotNil(t, cmd)
	assert.Contains(t, m.status.View(), "unreachable")
}

func TestConfigReloadedUnknownTheme(t *testing.T) {
	m, _ := newTestModel(t)
	m, cmd := updateCmd(t, m, msg.ConfigReloaded{Theme: "no-such-theme", CodeStyle: "dracula", WrapWidth: 60, SmoothScroll: true})
	assert.NotNil(t, cmd)
	assert.Equal(t, 1, m.toasts.Len())

	// The rest of the file still applies.
	assert.Equal(t, "dracula", m.opts.CodeStyle)
	assert.Equal(t, 60, m.opts.WrapWidth)
	assert.True(t, m.opts.SmoothScroll)
}

func TestDraftClearedBeforeSubmitArrives(t *testing.T) {
	m, fs := newTestModel(t)
	m = typeInto(t, m, "hi")

	m, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	submitted := cmd()
	require.IsType(t, msg.SubmitMessage{}, submitted)

	// ctrl+c clears the draft while the submission is still queued.
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	m = update(t, m, submitted)

	assert.Empty(t, fs.calls)
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, model.ComposerIdle, m.composer.Mode())

	m = typeInto(t, m, "again")
	assert.Equal(t, "again", m.composer.Value())
	m = submit(t, m)
	assert.Len(t, fs.calls, 1)
}

func TestViewContainsComposerAndHints(t *testing.T) {
	m, _ := newTestModel(t)
	m = update(t, m, tea.WindowSizeMsg{Width: 160, Height: 30})
	v := m.View()
	assert.Contains(t, v, "No messages yet")
	assert.Contains(t, v, "❯")
	assert.True(t, strings.Contains(v, "send"), "footer hints are shown")
}
