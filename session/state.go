package session

import "lanrtc/common"

// State is the negotiation progress of a session. It only moves forward.
type State int

const (
	Idle State = iota
	LocalDescribing
	AwaitingRemote
	AnsweringRemote
	Negotiated
	Failed
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case LocalDescribing:
		return "local-describing"
	case AwaitingRemote:
		return "awaiting-remote"
	case AnsweringRemote:
		return "answering-remote"
	case Negotiated:
		return "negotiated"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session is over.
func (s State) Terminal() bool {
	return s == Failed || s == Closed
}

// Transition describes one state change, as reported to an Observer.
type Transition struct {
	SessionID string
	Peer      common.Peer
	From      State
	To        State
	// Reason is set when the session ends with an error.
	Reason string
}

// Observer is notified of every transition. It runs on the coordinating
// goroutine and must not block.
type Observer func(Transition)
