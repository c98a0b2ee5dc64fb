// internal/channel/state.go
package channel

// State is the lifecycle state of a Manager's connection.
type State int

const (
	// StateIdle means no connection has been attempted yet.
	StateIdle State = iota

	// StateConnecting means a transport is being dialed.
	StateConnecting

	// StateOpen means the transport is established and Send is accepted.
	StateOpen

	// StateClosing means the transport reported closure and OnClose is being
	// dispatched; the reconnect decision has not been made yet.
	StateClosing

	// StateClosed means there is no live transport. A reconnect may be pending.
	StateClosed
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
