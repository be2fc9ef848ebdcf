// Package offerer lists the steps the Initiator runs against the media engine.
// The functions are prefixed with letters (A, B, C) to indicate the required order of execution.
package offerer

import (
	"lanrtc/common/rtc"

	"github.com/pion/webrtc/v4"
)

// A_CreateOffer asks the engine for an SDP offer.
func A_CreateOffer(e rtc.Engine) (webrtc.SessionDescription, error) {
	return e.CreateOffer()
}

// B_SetOfferAsLocalDescription sets the generated offer as the local description.
// After this step the offer text may be sent to the Responder.
func B_SetOfferAsLocalDescription(e rtc.Engine, offer webrtc.SessionDescription) error {
	return e.SetLocalDescription(offer)
}

// C_SetAnswerAsRemoteDescription applies the Responder's reply. The wire
// carries only the text; its type is implied by the Initiator role.
func C_SetAnswerAsRemoteDescription(e rtc.Engine, sdp string) error {
	return e.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}
