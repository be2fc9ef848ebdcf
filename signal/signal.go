// Package signal carries session-negotiation messages between the two peers.
//
// Each message travels on its own TCP connection: the sender connects to the
// peer's signaling port, writes one JSON object and closes. The body is a flat
// object whose "action" selects the variant:
//
//	{"action":"setSessionDescription","value":"v=0\r\n..."}
//	{"action":"addIceCandidate","value":{"sdp":"candidate:...","sdpMid":"0","sdpMLineIndex":0}}
//
// Whether a description is an offer or an answer is not on the wire; the
// receiver infers it from its role.
package signal

import (
	"encoding/json"
	"fmt"
	"math"

	"lanrtc/common"
	"lanrtc/common/rtc"
)

type Action string

const (
	ActionSetSessionDescription Action = "setSessionDescription"
	ActionAddIceCandidate       Action = "addIceCandidate"
)

// Message is the tagged variant exchanged over the signaling channel. Only
// the field matching Action is meaningful.
type Message struct {
	Action      Action
	Description string
	Candidate   rtc.Candidate
}

func SessionDescription(text string) Message {
	return Message{Action: ActionSetSessionDescription, Description: text}
}

func IceCandidate(c rtc.Candidate) Message {
	return Message{Action: ActionAddIceCandidate, Candidate: c}
}

type envelope struct {
	Action Action      `json:"action"`
	Value  interface{} `json:"value"`
}

// candidateValue mirrors rtc.Candidate with pointers so missing keys can be told apart from zero values.
type candidateValue struct {
	SDP           *string `json:"sdp"`
	SDPMid        *string `json:"sdpMid"`
	SDPMLineIndex *int    `json:"sdpMLineIndex"`
}

// Encode serializes m into its wire form.
func Encode(m Message) ([]byte, error) {
	switch m.Action {
	case ActionSetSessionDescription:
		return json.Marshal(envelope{Action: m.Action, Value: m.Description})
	case ActionAddIceCandidate:
		return json.Marshal(envelope{Action: m.Action, Value: m.Candidate})
	default:
		return nil, fmt.Errorf("unknown signaling action: %q", m.Action)
	}
}

// Decode parses a wire body. Any malformed body is common.ErrSignalingDecode.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", common.ErrSignalingDecode, err)
	}

	switch env.Action {
	case ActionSetSessionDescription:
		text, ok := env.Value.(string)
		if !ok {
			return Message{}, fmt.Errorf("%w: %s value must be a string", common.ErrSignalingDecode, env.Action)
		}
		return SessionDescription(text), nil

	case ActionAddIceCandidate:
		if _, ok := env.Value.(map[string]interface{}); !ok {
			return Message{}, fmt.Errorf("%w: %s value must be an object", common.ErrSignalingDecode, env.Action)
		}
		v, err := common.Remarshal[candidateValue](env.Value)
		if err != nil {
			return Message{}, fmt.Errorf("%w: %v", common.ErrSignalingDecode, err)
		}
		if v.SDP == nil || v.SDPMid == nil || v.SDPMLineIndex == nil {
			return Message{}, fmt.Errorf("%w: candidate needs sdp, sdpMid and sdpMLineIndex", common.ErrSignalingDecode)
		}
		if *v.SDPMLineIndex < 0 || *v.SDPMLineIndex > math.MaxUint16 {
			return Message{}, fmt.Errorf("%w: sdpMLineIndex out of range: %d", common.ErrSignalingDecode, *v.SDPMLineIndex)
		}
		return IceCandidate(rtc.Candidate{SDP: *v.SDP, SDPMid: *v.SDPMid, SDPMLineIndex: *v.SDPMLineIndex}), nil

	default:
		return Message{}, fmt.Errorf("%w: unknown action %q", common.ErrSignalingDecode, env.Action)
	}
}
