package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/srouault/personal-ai-assistant/msg"
)

// Sender delivers messages into the running program. *tea.Program
// satisfies it.
type Sender interface {
	Send(tea.Msg)
}

// ErrAuth is returned when the backend rejects the token.
var ErrAuth = errors.New("authentication failed")

// StreamCmd posts the history and streams the reply. Text chunks are pushed
// through s as msg.StreamDelta while the command runs; the command itself
// returns msg.StreamDone or msg.StreamError. Every event carries id, the ID
// of the assistant message being filled. Cancelling ctx aborts the request.
func (c *Client) StreamCmd(ctx context.Context, s Sender, id string, history []msg.Message) tea.Cmd {
	return func() tea.Msg {
		resp, err := c.postJSON(ctx, "/api/v1/chat/stream", ChatRequest{MessageID: id, Messages: history})
		if err != nil {
			if ctx.Err() != nil {
				return msg.StreamError{ID: id, Err: ctx.Err()}
			}
			return msg.StreamError{ID: id, Err: fmt.Errorf("chat stream: %w", err)}
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
		case http.StatusUnauthorized, http.StatusForbidden:
			return msg.StreamError{ID: id, Err: ErrAuth}
		default:
			return msg.StreamError{ID: id, Err: c.parseError(resp)}
		}

		s.Send(msg.StreamStarted{ID: id})
		return readStream(ctx, resp.Body, s, id)
	}
}

// readStream consumes an SSE body. Comment lines are keepalives; unknown
// event types are skipped.
func readStream(ctx context.Context, r io.Reader, s Sender, id string) tea.Msg {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) // 1 MB

	var eventType string
	for scanner.Scan() {
		if ctx.Err() != nil {
			return msg.StreamError{ID: id, Err: ctx.Err()}
		}
		line := scanner.Text()

		switch {
		case line == "":
			eventType = ""

		case strings.HasPrefix(line, ":"):

		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))

		case strings.HasPrefix(line, "data:"):
			data := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
			if done := handleEvent(eventType, []byte(data), s, id); done != nil {
				return done
			}
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return msg.StreamError{ID: id, Err: ctx.Err()}
		}
		return msg.StreamError{ID: id, Err: fmt.Errorf("read stream: %w", err)}
	}
	// Server closed without a done event; what arrived is the reply.
	return msg.StreamDone{ID: id}
}

// handleEvent sends deltas and returns the terminal message for done/error.
func handleEvent(eventType string, data []byte, s Sender, id string) tea.Msg {
	switch eventType {
	case "delta", "":
		var ev DeltaEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Warn("sse parse failed", "event", eventType, "err", err)
			return nil
		}
		if ev.Text != "" {
			s.Send(msg.StreamDelta{ID: id, Text: ev.Text})
		}

	case "done":
		return msg.StreamDone{ID: id}

	case "error":
		var ev ErrorEvent
		if err := json.Unmarshal(data, &ev); err != nil || ev.Error == "" {
			return msg.StreamError{ID: id, Err: errors.New("backend error")}
		}
		return msg.StreamError{ID: id, Err: errors.New(ev.Error)}

	default:
		slog.Debug("sse unknown event type", "event", eventType)
	}
	return nil
}
