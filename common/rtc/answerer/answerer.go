// Package answerer lists the steps the Responder runs against the media engine.
package answerer

import (
	"lanrtc/common/rtc"

	"github.com/pion/webrtc/v4"
)

// A_SetOfferAsRemoteDescription applies the Initiator's description, which
// the Responder role implies is an offer.
func A_SetOfferAsRemoteDescription(e rtc.Engine, sdp string) error {
	return e.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp})
}

func B_CreateAnswer(e rtc.Engine) (webrtc.SessionDescription, error) {
	return e.CreateAnswer()
}

func C_SetAnswerAsLocalDescription(e rtc.Engine, answer webrtc.SessionDescription) error {
	return e.SetLocalDescription(answer)
}
