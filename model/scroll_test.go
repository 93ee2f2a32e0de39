package model

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViewport(lines int) *viewport.Model {
	vp := viewport.New(40, 10)
	vp.SetContent(numbered(lines))
	return &vp
}

func numbered(n int) string {
	rows := make([]string, n)
	for i := range rows {
		rows[i] = strings.Repeat("x", i%30+1)
	}
	return strings.Join(rows, "\n")
}

// runFrames delivers frames until the scroller stops asking for more.
func runFrames(t *testing.T, s *Scroller, vp *viewport.Model, onFrame func(i int)) int {
	t.Helper()
	for i := 1; i <= 1000; i++ {
		if onFrame != nil {
			onFrame(i)
		}
		if s.Update(scrollFrameMsg{id: s.id}, vp) == nil {
			return i
		}
	}
	t.Fatal("scroll never settled")
	return 0
}

func TestScroller_CoalescesRequests(t *testing.T) {
	s := NewScroller(false)
	vp := newTestViewport(100)

	require.NotNil(t, s.OnMessagesChanged())
	for i := 0; i < 5; i++ {
		assert.Nil(t, s.OnMessagesChanged(), "request %d should coalesce", i)
	}
	assert.Nil(t, s.OnFirstRender())
	assert.True(t, s.Pending())

	frames := runFrames(t, &s, vp, nil)

	assert.Equal(t, 1, frames)
	assert.Equal(t, 90, vp.YOffset)
	assert.True(t, vp.AtBottom())
	assert.True(t, s.Settled())
}

func TestScroller_TargetIsReadAtFrameTime(t *testing.T) {
	s := NewScroller(false)
	vp := newTestViewport(20)

	require.NotNil(t, s.OnMessagesChanged())
	vp.SetContent(numbered(50))
	assert.Nil(t, s.OnMessagesChanged())

	runFrames(t, &s, vp, nil)
	assert.Equal(t, 40, vp.YOffset)
}

func TestScroller_SmoothReachesBottomAfterGrowth(t *testing.T) {
	s := NewScroller(true)
	vp := newTestViewport(200)

	require.NotNil(t, s.OnMessagesChanged())
	frames := runFrames(t, &s, vp, func(i int) {
		if i == 5 {
			vp.SetContent(numbered(300))
			assert.Nil(t, s.OnMessagesChanged(), "frame in flight")
		}
	})

	assert.Greater(t, frames, 1)
	assert.Equal(t, 290, vp.YOffset)
	assert.True(t, s.Settled())
}

func TestScroller_SmoothMovesMonotonically(t *testing.T) {
	s := NewScroller(true)
	vp := newTestViewport(100)
	require.NotNil(t, s.OnFirstRender())

	last := 0
	runFrames(t, &s, vp, func(int) {
		assert.GreaterOrEqual(t, vp.YOffset, last)
		last = vp.YOffset
	})
	assert.Equal(t, 90, vp.YOffset)
}

func TestScroller_MissingViewportIsNoOp(t *testing.T) {
	s := NewScroller(true)
	require.NotNil(t, s.OnMessagesChanged())

	assert.NotPanics(t, func() {
		assert.Nil(t, s.Update(scrollFrameMsg{id: s.id}, nil))
	})
	assert.True(t, s.Settled())
}

func TestScroller_IgnoresForeignFrames(t *testing.T) {
	s := NewScroller(false)
	other := NewScroller(false)
	vp := newTestViewport(100)
	require.NotNil(t, s.OnMessagesChanged())

	assert.Nil(t, s.Update(scrollFrameMsg{id: other.id}, vp))
	assert.Nil(t, s.Update("not a frame", vp))
	assert.Equal(t, 0, vp.YOffset)
	assert.True(t, s.Pending())
}

func TestScroller_ShortContentStaysAtTop(t *testing.T) {
	s := NewScroller(true)
	vp := newTestViewport(3)
	require.NotNil(t, s.OnMessagesChanged())

	runFrames(t, &s, vp, nil)
	assert.Equal(t, 0, vp.YOffset)
}

func TestScroller_SchedulesAgainAfterSettling(t *testing.T) {
	s := NewScroller(false)
	vp := newTestViewport(100)

	require.NotNil(t, s.OnMessagesChanged())
	runFrames(t, &s, vp, nil)
	assert.NotNil(t, s.OnMessagesChanged())
}
