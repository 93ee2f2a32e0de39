package client

import "github.com/srouault/personal-ai-assistant/msg"

// HealthResponse from GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
}

// ChatRequest for POST /api/v1/chat/stream.
type ChatRequest struct {
	MessageID string        `json:"message_id,omitempty"`
	Messages  []msg.Message `json:"messages"`
}

// DeltaEvent is the payload of a "delta" SSE event.
type DeltaEvent struct {
	Text string `json:"text"`
}

// ErrorEvent is the payload of an "error" SSE event.
type ErrorEvent struct {
	Error string `json:"error"`
}

// ErrorResponse is the JSON body of a non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
