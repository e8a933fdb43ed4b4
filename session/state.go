package session

import "sync/atomic"

// State is a point in the Session lifecycle state machine (spec §4.1):
//
//	New --connect--> Connected
//	Connected --tls?--> Handshaking --ok--> Handshaked
//	Connected|Handshaked --close--> Disconnecting --> Disconnected
//
// Disconnected is sticky: once reached, no further transition is possible.
type State int32

const (
	StateNew State = iota
	StateConnecting
	StateConnected
	StateHandshaking
	StateHandshaked
	StateDisconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateHandshaking:
		return "handshaking"
	case StateHandshaked:
		return "handshaked"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// IsConnected reports whether the session can currently accept sends —
// either plain-connected, or TLS-handshaked.
func (s State) IsConnected() bool {
	return s == StateConnected || s == StateHandshaked
}

// IsTerminal reports whether the state is the sticky terminal state.
func (s State) IsTerminal() bool {
	return s == StateDisconnected
}

// stateBox is an atomically-updated State with guarded transitions.
type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) load() State {
	return State(b.v.Load())
}

func (b *stateBox) store(s State) {
	b.v.Store(int32(s))
}

// transition performs the transition only if the current state is one
// of the listed "from" states, returning whether it succeeded.
func (b *stateBox) transition(to State, from ...State) bool {
	for _, f := range from {
		if b.v.CompareAndSwap(int32(f), int32(to)) {
			return true
		}
	}
	return false
}
