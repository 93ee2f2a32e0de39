package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srouault/personal-ai-assistant/msg"
)

type recorder struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recorder) Send(m tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *recorder) deltas() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sb strings.Builder
	for _, m := range r.msgs {
		if d, ok := m.(msg.StreamDelta); ok {
			sb.WriteString(d.Text)
		}
	}
	return sb.String()
}

func sseServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chat/stream", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamCmd_DeliversDeltasThenDone(t *testing.T) {
	srv := sseServer(t, ": keepalive\n\n"+
		"event: delta\ndata: {\"text\":\"Hel\"}\n\n"+
		"event: delta\ndata: {\"text\":\"lo\"}\n\n"+
		"event: mystery\ndata: {}\n\n"+
		"event: done\ndata: {}\n\n")
	rec := &recorder{}

	out := New(srv.URL).StreamCmd(context.Background(), rec, "m1", []msg.Message{msg.User("hi")})()

	assert.Equal(t, msg.StreamDone{ID: "m1"}, out)
	assert.Equal(t, "Hello", rec.deltas())
	require.NotEmpty(t, rec.msgs)
	assert.Equal(t, msg.StreamStarted{ID: "m1"}, rec.msgs[0])
}

func TestStreamCmd_ErrorEvent(t *testing.T) {
	srv := sseServer(t, "event: delta\ndata: {\"text\":\"partial\"}\n\nevent: error\ndata: {\"error\":\"model overloaded\"}\n\n")
	rec := &recorder{}

	out := New(srv.URL).StreamCmd(context.Background(), rec, "m1", nil)()

	se, ok := out.(msg.StreamError)
	require.True(t, ok, "got %T", out)
	assert.EqualError(t, se.Err, "model overloaded")
	assert.Equal(t, "partial", rec.deltas())
}

func TestStreamCmd_EOFWithoutDoneIsDone(t *testing.T) {
	srv := sseServer(t, "data: {\"text\":\"x\"}\n\n")
	out := New(srv.URL).StreamCmd(context.Background(), &recorder{}, "m1", nil)()
	assert.Equal(t, msg.StreamDone{ID: "m1"}, out)
}

func TestStreamCmd_SendsHistoryAndToken(t *testing.T) {
	var got ChatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, "event: done\ndata: {}\n\n")
	}))
	defer srv.Close()

	history := []msg.Message{msg.User("q"), msg.Assistant("a"), msg.User("q2")}
	New(srv.URL, WithToken("secret")).StreamCmd(context.Background(), &recorder{}, "m9", history)()

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "m9", got.MessageID)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "q2", got.Messages[2].Content)
}

func TestStreamCmd_HTTPErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"json error", http.StatusInternalServerError, `{"error":"boom","details":"db down"}`, "API 500: boom: db down"},
		{"text error", http.StatusBadGateway, "upstream", "API 502: upstream"},
		{"auth", http.StatusUnauthorized, "", ErrAuth.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			out := New(srv.URL).StreamCmd(context.Background(), &recorder{}, "m1", nil)()
			se, ok := out.(msg.StreamError)
			require.True(t, ok)
			assert.EqualError(t, se.Err, tt.want)
		})
	}
}

func TestStreamCmd_Cancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: delta\ndata: {\"text\":\"a\"}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	done := make(chan tea.Msg, 1)
	go func() { done <- New(srv.URL).StreamCmd(ctx, rec, "m1", nil)() }()

	require.Eventually(t, func() bool { return rec.deltas() == "a" }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case out := <-done:
		se, ok := out.(msg.StreamError)
		require.True(t, ok, "got %T", out)
		assert.ErrorIs(t, se.Err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		fmt.Fprint(w, `{"status":"ok","provider":"ollama","model":"llama3.2"}`)
	}))
	defer srv.Close()

	h, err := New(srv.URL).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ollama", h.Provider)
	assert.Equal(t, "llama3.2", h.Model)
}

func TestEcho_StreamsQuotedReply(t *testing.T) {
	rec := &recorder{}
	e := Echo{}

	out := e.StreamCmd(context.Background(), rec, "m1", []msg.Message{msg.User("ping\npong")})()

	assert.Equal(t, msg.StreamDone{ID: "m1"}, out)
	assert.Contains(t, rec.deltas(), "> ping\n> pong")
	assert.Contains(t, rec.deltas(), "```go")
}

func TestEcho_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := Echo{FirstToken: time.Hour}.StreamCmd(ctx, &recorder{}, "m1", nil)()
	se, ok := out.(msg.StreamError)
	require.True(t, ok)
	assert.ErrorIs(t, se.Err, context.Canceled)
}
