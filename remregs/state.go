package remregs

import "sync/atomic"

// LinkState is the synchronization state of a link.
type LinkState uint32

const (
	// Unsynced means no frame boundary is established with the peer.
	// A link starts in this state.
	Unsynced LinkState = iota
	// Synced means the handshake succeeded and frames can be exchanged.
	Synced
)

// IsSynced returns if the state is Synced.
func (s LinkState) IsSynced() bool { return s == Synced }

// String returns string representation of the state.
func (s LinkState) String() string {
	switch s {
	case Unsynced:
		return "unsynced"
	case Synced:
		return "synced"
	default:
		return "unknown"
	}
}

// LinkStateChangeHandler is invoked synchronously from the foreground
// context whenever the state of a link changes.
type LinkStateChangeHandler func(l *Link, prevState LinkState, newState LinkState)

// atomicLinkState lets observers read the state while the foreground
// context owns all writes.
type atomicLinkState struct {
	state atomic.Uint32
}

func (st *atomicLinkState) Get() LinkState {
	return LinkState(st.state.Load())
}

// Swap stores state and returns the previous one.
func (st *atomicLinkState) Swap(state LinkState) LinkState {
	return LinkState(st.state.Swap(uint32(state)))
}
