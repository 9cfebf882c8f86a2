package relay

import "errors"

// State is the lifecycle state of a single connection.
type State int

const (
	// StateUnidentified is the initial state: connected, no identity bound.
	StateUnidentified State = iota
	// StateIdentified means the connection joined and may relay.
	StateIdentified
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnidentified:
		return "unidentified"
	case StateIdentified:
		return "identified"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var (
	ErrEmptyIdentity     = errors.New("identity must not be empty")
	ErrAlreadyIdentified = errors.New("connection already identified")
	ErrClientClosed      = errors.New("connection closed")
	ErrSendQueueFull     = errors.New("send queue full")
)
