// Package msg defines the conversation data model and all tea.Msg types
// dispatched within the chat view.
// It has no upstream imports (client, model, app) to avoid import cycles.
package msg

import "fmt"

// -- Conversation --

// Role identifies who authored a message. The set is closed.
type Role int

const (
	RoleUser Role = iota
	RoleAssistant
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return "unknown"
	}
}

// MarshalText encodes the role for JSON request bodies.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText accepts "user" and "assistant".
func (r *Role) UnmarshalText(b []byte) error {
	switch string(b) {
	case "user":
		*r = RoleUser
	case "assistant":
		*r = RoleAssistant
	default:
		return fmt.Errorf("unknown role %q", b)
	}
	return nil
}

// Message is a single entry of the conversation history. Values are treated
// as immutable; a streaming update replaces the last element.
type Message struct {
	ID      string `json:"id,omitempty"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// User builds a user-role message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant builds an assistant-role message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// -- Composer events (outward) --

// SubmitMessage is emitted when the user submits the draft. It carries no
// payload; the collaborator reads the draft from the composer.
type SubmitMessage struct{}

// DraftChanged is emitted on every edit of the draft.
type DraftChanged struct {
	Text string
}

// -- Stream events (from the transport) --
//
// ID is the ID of the assistant message the stream fills, so events from a
// cancelled stream can be told apart from the current one.

// StreamStarted when the backend accepted the request.
type StreamStarted struct {
	ID string
}

// StreamDelta carries a chunk of assistant text.
type StreamDelta struct {
	ID   string
	Text string
}

// StreamDone when the assistant response is complete.
type StreamDone struct {
	ID string
}

// StreamError when the stream failed or was cancelled.
type StreamError struct {
	ID  string
	Err error
}

// HealthResult from the backend health probe.
type HealthResult struct {
	Provider string
	Model    string
	Version  string
	Err      error
}

// -- UI events --

// ConfigReloaded after the settings file changed on disk.
type ConfigReloaded struct {
	Theme        string
	CodeStyle    string
	WrapWidth    int
	SmoothScroll bool
}

// ExportResult from the HTML transcript export.
type ExportResult struct {
	Path string
	Err  error
}
