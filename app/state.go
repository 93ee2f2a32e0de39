package app

// State represents the current application state.
type State int

const (
	StateIdle       State = iota // Ready for user input
	StateProcessing              // Waiting for or streaming the assistant reply
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}
