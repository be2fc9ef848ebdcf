package session

import (
	"context"
	"fmt"
	"log/slog"

	"lanrtc/common"
	"lanrtc/common/rtc"
	"lanrtc/common/rtc/answerer"
	"lanrtc/common/rtc/offerer"
	"lanrtc/signal"
)

// offer runs the Initiator's opening move: create the offer, apply it
// locally, then send it.
func (s *Session) offer(ctx context.Context) error {
	s.transition(LocalDescribing, "")

	engine, err := s.ensureEngine()
	if err != nil {
		return err
	}

	offer, err := offerer.A_CreateOffer(engine)
	if err != nil {
		return fmt.Errorf("%w: create offer: %v", common.ErrNegotiation, err)
	}
	if err := offerer.B_SetOfferAsLocalDescription(engine, offer); err != nil {
		return fmt.Errorf("%w: set local offer: %v", common.ErrNegotiation, err)
	}
	s.localSet = true

	s.send(ctx, signal.SessionDescription(offer.SDP))
	s.transition(AwaitingRemote, "")
	return nil
}

func (s *Session) handleMessage(ctx context.Context, msg signal.Message) error {
	switch msg.Action {
	case signal.ActionSetSessionDescription:
		return s.onDescription(ctx, msg.Description)
	case signal.ActionAddIceCandidate:
		return s.onRemoteCandidate(msg.Candidate)
	}
	slog.Warn("ignoring signaling message", "session", s.ID, "action", msg.Action)
	return nil
}

func (s *Session) onDescription(ctx context.Context, sdp string) error {
	switch {
	case s.state == Negotiated:
		slog.Debug("duplicate session description ignored", "session", s.ID)
		return nil

	case s.Peer.Role == common.Initiator && s.state == AwaitingRemote:
		if err := offerer.C_SetAnswerAsRemoteDescription(s.engine, sdp); err != nil {
			return fmt.Errorf("%w: set remote answer: %v", common.ErrNegotiation, err)
		}
		s.remoteSet = true
		s.transition(Negotiated, "")
		return nil

	case s.Peer.Role == common.Responder && s.state == Idle:
		return s.answer(ctx, sdp)
	}

	slog.Warn("unexpected session description", "session", s.ID, "state", s.state.String(), "role", s.Peer.Role.String())
	return nil
}

// answer runs the Responder's only move: apply the offer, create the
// answer, apply it locally, then send it back.
func (s *Session) answer(ctx context.Context, sdp string) error {
	s.transition(AnsweringRemote, "")

	engine, err := s.ensureEngine()
	if err != nil {
		return err
	}

	if err := answerer.A_SetOfferAsRemoteDescription(engine, sdp); err != nil {
		return fmt.Errorf("%w: set remote offer: %v", common.ErrNegotiation, err)
	}
	s.remoteSet = true

	answer, err := answerer.B_CreateAnswer(engine)
	if err != nil {
		return fmt.Errorf("%w: create answer: %v", common.ErrNegotiation, err)
	}
	if err := answerer.C_SetAnswerAsLocalDescription(engine, answer); err != nil {
		return fmt.Errorf("%w: set local answer: %v", common.ErrNegotiation, err)
	}
	s.localSet = true

	s.send(ctx, signal.SessionDescription(answer.SDP))
	s.transition(Negotiated, "")
	return nil
}

func (s *Session) onRemoteCandidate(c rtc.Candidate) error {
	if !s.localSet && !s.remoteSet {
		slog.Info("dropping candidate received before any description", "session", s.ID, "sdpMid", c.SDPMid)
		return nil
	}
	if err := s.engine.AddICECandidate(c); err != nil {
		return fmt.Errorf("%w: add candidate: %v", common.ErrNegotiation, err)
	}
	return nil
}

func (s *Session) handleEvent(ctx context.Context, ev rtc.Event) error {
	switch ev.Kind {
	case rtc.CandidateGenerated:
		if !s.localSet {
			slog.Debug("local candidate before local description", "session", s.ID)
			return nil
		}
		s.send(ctx, signal.IceCandidate(ev.Candidate))

	case rtc.ConnectionStateChanged:
		if ev.Terminal() {
			return fmt.Errorf("%w: %s", ErrConnectionLost, ev.State.String())
		}
	}
	return nil
}
