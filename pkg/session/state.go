// Package session drives a CITP peer: multicast discovery and liveness,
// the TCP negotiation with a discovered peer, and the per-frame stream of
// laser points.
//
// Session is the streaming role. It joins the discovery group, waits for a
// peer that announces a TCP port, connects and identifies itself, answers
// the peer's requests and then streams frames until it is stopped. Host is
// the listening role, as played by a visualiser.
package session

// State is the position of a Session in its life cycle.
//
//	Init ──join──▶ Discover ──PLoc with port──▶ Request ──FixtureListRequest──▶ Stream
type State int32

const (
	// StateInit joins the multicast group, retrying every frame tick.
	StateInit State = iota
	// StateDiscover waits for a peer announcing a TCP port.
	StateDiscover
	// StateRequest answers the peer's requests over TCP.
	StateRequest
	// StateStream sends laser frames every frame tick. There is no
	// terminal state; the session streams until stopped.
	StateStream
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateDiscover:
		return "Discover"
	case StateRequest:
		return "Request"
	case StateStream:
		return "Stream"
	default:
		return "Unknown"
	}
}
