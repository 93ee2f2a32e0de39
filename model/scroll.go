package model

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
)

const scrollFPS = 60

// Internal ID management. Used to make sure frame messages only reach the
// scroller that scheduled them.
var lastScrollerID atomic.Int64

func nextScrollerID() int64 {
	return lastScrollerID.Add(1)
}

// scrollFrameMsg is delivered once per frame while a scroll is in flight.
type scrollFrameMsg struct {
	id int64
}

// Scroller keeps the message viewport pinned to the newest content. Requests
// are coalesced: while a frame is already scheduled, further requests only
// mark the intent, and the scheduled frame reads the latest layout when it
// runs. The target is always the maximum offset at frame time, never a value
// captured when the request was made.
type Scroller struct {
	id        int64
	smooth    bool
	spring    harmonica.Spring
	pos, vel  float64
	pending   bool // a request has not been satisfied yet
	scheduled bool // a frame is in flight
}

// NewScroller returns a Scroller. With smooth set, the offset eases towards
// the bottom on a critically damped spring instead of jumping.
func NewScroller(smooth bool) Scroller {
	return Scroller{
		id:     nextScrollerID(),
		smooth: smooth,
		spring: harmonica.NewSpring(harmonica.FPS(scrollFPS), 12.0, 1.0),
	}
}

// SetSmooth toggles eased scrolling. A scroll in flight finishes with the new
// setting on its next frame.
func (s *Scroller) SetSmooth(v bool) {
	s.smooth = v
}

// OnMessagesChanged requests a scroll to the bottom after the message list
// changed. It returns nil when a frame is already scheduled.
func (s *Scroller) OnMessagesChanged() tea.Cmd {
	return s.request()
}

// OnFirstRender requests the initial scroll once the view has a size.
func (s *Scroller) OnFirstRender() tea.Cmd {
	return s.request()
}

// Pending reports whether a scroll request has not been satisfied yet.
func (s Scroller) Pending() bool {
	return s.pending
}

// Settled reports that no scroll is requested or in flight.
func (s Scroller) Settled() bool {
	return !s.pending && !s.scheduled
}

func (s *Scroller) request() tea.Cmd {
	s.pending = true
	if s.scheduled {
		return nil
	}
	s.scheduled = true
	return s.frame()
}

func (s Scroller) frame() tea.Cmd {
	id := s.id
	return tea.Tick(time.Second/scrollFPS, func(time.Time) tea.Msg {
		return scrollFrameMsg{id: id}
	})
}

// Update advances a scroll on its frame message. A nil viewport means the
// view is gone; the request is dropped without touching anything.
func (s *Scroller) Update(m tea.Msg, vp *viewport.Model) tea.Cmd {
	f, ok := m.(scrollFrameMsg)
	if !ok || f.id != s.id {
		return nil
	}
	s.scheduled = false
	if vp == nil {
		s.pending = false
		return nil
	}

	target := float64(maxOffset(vp))
	if !s.smooth {
		s.finish(vp, target)
		return nil
	}

	// The offset moved under us (user scroll, content shrink): restart the
	// spring from where the viewport actually is.
	if int(math.Round(s.pos)) != vp.YOffset {
		s.pos, s.vel = float64(vp.YOffset), 0
	}
	s.pos, s.vel = s.spring.Update(s.pos, s.vel, target)
	if math.Abs(target-s.pos) < 0.5 && math.Abs(s.vel) < 1 {
		s.finish(vp, target)
		return nil
	}
	vp.SetYOffset(int(math.Round(s.pos)))
	s.scheduled = true
	return s.frame()
}

func (s *Scroller) finish(vp *viewport.Model, target float64) {
	vp.GotoBottom()
	s.pos, s.vel = target, 0
	s.pending = false
}

// maxOffset is the largest offset the viewport accepts: content height minus
// visible height, never negative.
func maxOffset(vp *viewport.Model) int {
	return max(0, vp.TotalLineCount()-vp.Height)
}
