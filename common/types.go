package common

import (
	"bytes"
	"fmt"
	"time"
)

// Role is the negotiation role a peer takes for the lifetime of a session.
// The side that accepts the rendezvous connection is the Initiator; the side
// that opens it is the Responder.
type Role int

const (
	Initiator Role = iota
	Responder
)

func (r Role) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	default:
		return "unknown"
	}
}

// PeerAddress is the host address (IP literal) of the other device.
type PeerAddress string

func (a PeerAddress) String() string { return string(a) }

// Peer is the outcome of a successful rendezvous.
type Peer struct {
	Address PeerAddress
	Role    Role
}

// Token is the identity value both sides broadcast and expect. It is only
// ever compared, never interpreted.
type Token []byte

// Equal reports whether payload is exactly the token.
func (t Token) Equal(payload []byte) bool {
	return len(t) > 0 && bytes.Equal(t, payload)
}

const DefaultToken = "org.lanrtc.call"

// Ports holds the three fixed ports used by a peer. They must be distinct.
type Ports struct {
	Discovery  int
	Rendezvous int
	Signaling  int
}

var DefaultPorts = Ports{
	Discovery:  50100,
	Rendezvous: 50101,
	Signaling:  50102,
}

func (p Ports) Validate() error {
	for _, port := range []struct {
		name  string
		value int
	}{
		{"discovery", p.Discovery},
		{"rendezvous", p.Rendezvous},
		{"signaling", p.Signaling},
	} {
		if port.value <= 0 || port.value > 65535 {
			return fmt.Errorf("%s port out of range: %d", port.name, port.value)
		}
	}
	if p.Discovery == p.Rendezvous || p.Discovery == p.Signaling || p.Rendezvous == p.Signaling {
		return fmt.Errorf("ports must be distinct: %d/%d/%d", p.Discovery, p.Rendezvous, p.Signaling)
	}
	return nil
}

// Timeouts bounds every blocking socket wait. Cancellation is checked once
// per interval, so these values are also the cancellation latency.
type Timeouts struct {
	AdvertiseInterval time.Duration
	DiscoveryReceive  time.Duration
	RendezvousAccept  time.Duration
	RendezvousConnect time.Duration
	SignalingAccept   time.Duration
	SignalingConnect  time.Duration
	SignalingRead     time.Duration
	SendRetryInterval time.Duration
	Probe             time.Duration
}

var DefaultTimeouts = Timeouts{
	AdvertiseInterval: 2 * time.Second,
	DiscoveryReceive:  5 * time.Second,
	RendezvousAccept:  5 * time.Second,
	RendezvousConnect: 5 * time.Second,
	SignalingAccept:   3 * time.Second,
	SignalingConnect:  10 * time.Second,
	SignalingRead:     10 * time.Second,
	SendRetryInterval: 250 * time.Millisecond,
	Probe:             10 * time.Second,
}
