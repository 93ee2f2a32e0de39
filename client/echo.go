package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/srouault/personal-ai-assistant/msg"
)

// Echo is an offline stand-in for the backend. It replies with a short
// markdown message quoting the last user message, one word at a time.
type Echo struct {
	FirstToken time.Duration // delay before the first chunk
	Interval   time.Duration // delay between chunks
}

// NewEcho returns an Echo with delays that make the waiting state visible.
func NewEcho() Echo {
	return Echo{FirstToken: 800 * time.Millisecond, Interval: 30 * time.Millisecond}
}

// StreamCmd follows the same event contract as (*Client).StreamCmd.
func (e Echo) StreamCmd(ctx context.Context, s Sender, id string, history []msg.Message) tea.Cmd {
	return func() tea.Msg {
		s.Send(msg.StreamStarted{ID: id})
		delay := e.FirstToken
		for _, chunk := range strings.SplitAfter(echoReply(history), " ") {
			select {
			case <-ctx.Done():
				return msg.StreamError{ID: id, Err: ctx.Err()}
			case <-time.After(delay):
			}
			s.Send(msg.StreamDelta{ID: id, Text: chunk})
			delay = e.Interval
		}
		return msg.StreamDone{ID: id}
	}
}

func echoReply(history []msg.Message) string {
	var last string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == msg.RoleUser {
			last = history[i].Content
			break
		}
	}
	quoted := "> " + strings.ReplaceAll(last, "\n", "\n> ")
	return fmt.Sprintf("You said:\n\n%s\n\nThere is no backend in offline mode, so here is **some markdown** instead:\n\n```go\nfmt.Println(%q)\n```\n", quoted, "hello")
}
