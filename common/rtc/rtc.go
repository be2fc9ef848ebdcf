// Package rtc is the boundary between the negotiation coordinator and the
// media engine that captures, encodes and transports audio and video.
//
// The coordinator only sees the Engine interface. PionEngine implements it
// on top of pion/webrtc; tests substitute a scripted fake.
package rtc

import (
	"github.com/pion/webrtc/v4"
)

// Candidate is a connectivity candidate as it travels on the signaling wire.
type Candidate struct {
	SDP           string `json:"sdp"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
}

// CandidateFromInit converts a pion candidate into its wire form.
func CandidateFromInit(init webrtc.ICECandidateInit) Candidate {
	c := Candidate{SDP: init.Candidate}
	if init.SDPMid != nil {
		c.SDPMid = *init.SDPMid
	}
	if init.SDPMLineIndex != nil {
		c.SDPMLineIndex = int(*init.SDPMLineIndex)
	}
	return c
}

// Init converts the wire form back into a pion candidate.
func (c Candidate) Init() webrtc.ICECandidateInit {
	mid := c.SDPMid
	index := uint16(c.SDPMLineIndex)
	return webrtc.ICECandidateInit{
		Candidate:     c.SDP,
		SDPMid:        &mid,
		SDPMLineIndex: &index,
	}
}

type EventKind int

const (
	CandidateGenerated EventKind = iota
	ConnectionStateChanged
)

// Event is raised by the engine back into the coordinator.
type Event struct {
	Kind      EventKind
	Candidate Candidate
	State     webrtc.PeerConnectionState
}

// Terminal reports whether a connection-state event ends the session.
// Disconnected counts as terminal: the peer is gone and there is no
// renegotiation.
func (e Event) Terminal() bool {
	if e.Kind != ConnectionStateChanged {
		return false
	}
	switch e.State {
	case webrtc.PeerConnectionStateFailed,
		webrtc.PeerConnectionStateDisconnected,
		webrtc.PeerConnectionStateClosed:
		return true
	}
	return false
}

// Engine is the media engine as consumed by the coordinator. All methods
// are called from a single goroutine; events are delivered on Events.
type Engine interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(c Candidate) error
	Events() <-chan Event
	Close() error
}

// Factory creates the engine lazily, on first need.
type Factory func() (Engine, error)
