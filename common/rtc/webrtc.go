package rtc

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/ice/v4"
	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/webrtc/v4"
)

// DefaultPLIInterval is how often a keyframe is requested from the remote video sender.
const DefaultPLIInterval = 3 * time.Second

// StreamID labels the local audio and video tracks.
const StreamID = "lanrtc"

// Config configures the pion backed engine.
type Config struct {
	// ICEServers are STUN/TURN URLs. Empty is fine on a LAN: host
	// candidates are enough.
	ICEServers []string
	// MulticastDNS gathers .local host candidates instead of raw IPs.
	MulticastDNS bool
	PLIInterval  time.Duration
}

// NewAPI builds a pion API with default codecs, default interceptors plus a
// periodic PLI generator, and the ICE settings from cfg.
func NewAPI(cfg Config) (*webrtc.API, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, err
	}

	pliInterval := cfg.PLIInterval
	if pliInterval <= 0 {
		pliInterval = DefaultPLIInterval
	}
	pli, err := intervalpli.NewReceiverInterceptor(intervalpli.GeneratorInterval(pliInterval))
	if err != nil {
		return nil, err
	}
	registry.Add(pli)

	settingEngine := webrtc.SettingEngine{}
	if cfg.MulticastDNS {
		settingEngine.SetICEMulticastDNSMode(ice.MulticastDNSModeQueryAndGather)
	} else {
		settingEngine.SetICEMulticastDNSMode(ice.MulticastDNSModeDisabled)
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(settingEngine),
	), nil
}

// PionEngine is an Engine backed by a single pion PeerConnection carrying
// one video and one audio track.
type PionEngine struct {
	pc     *webrtc.PeerConnection
	Video  *webrtc.TrackLocalStaticSample
	Audio  *webrtc.TrackLocalStaticSample
	events chan Event
	done   chan struct{}

	mu        sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit

	closeOnce sync.Once
	closeErr  error
}

var _ Engine = (*PionEngine)(nil)

// NewFactory returns a Factory that builds a PionEngine from api.
func NewFactory(api *webrtc.API, cfg Config) Factory {
	return func() (Engine, error) {
		return NewPionEngine(api, cfg)
	}
}

// NewPionEngine creates the peer connection and attaches the local tracks.
func NewPionEngine(api *webrtc.API, cfg Config) (*PionEngine, error) {
	pcCfg := webrtc.Configuration{SDPSemantics: webrtc.SDPSemanticsUnifiedPlan}
	if len(cfg.ICEServers) > 0 {
		pcCfg.ICEServers = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}
	pc, err := api.NewPeerConnection(pcCfg)
	if err != nil {
		return nil, err
	}

	e := &PionEngine{
		pc:     pc,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}

	e.Video, err = webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", StreamID)
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	e.Audio, err = webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", StreamID)
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	for _, track := range []webrtc.TrackLocal{e.Video, e.Audio} {
		sender, err := pc.AddTrack(track)
		if err != nil {
			_ = pc.Close()
			return nil, err
		}
		go drainRTCP(sender)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			slog.Debug("ice gathering complete")
			return
		}
		e.emit(Event{Kind: CandidateGenerated, Candidate: CandidateFromInit(c.ToJSON())})
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		slog.Info("peer connection state changed", "state", state.String())
		e.emit(Event{Kind: ConnectionStateChanged, State: state})
	})
	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		slog.Info("remote track", "id", remote.ID(), "kind", remote.Kind().String(), "codec", remote.Codec().MimeType)
	})

	return e, nil
}

// drainRTCP keeps interceptors such as NACK running for a sender.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				slog.Debug("rtcp read error", "err", err)
			}
			return
		}
	}
}

func (e *PionEngine) emit(ev Event) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

func (e *PionEngine) CreateOffer() (webrtc.SessionDescription, error) {
	return e.pc.CreateOffer(nil)
}

func (e *PionEngine) CreateAnswer() (webrtc.SessionDescription, error) {
	return e.pc.CreateAnswer(nil)
}

func (e *PionEngine) SetLocalDescription(desc webrtc.SessionDescription) error {
	return e.pc.SetLocalDescription(desc)
}

// SetRemoteDescription applies desc and then flushes any remote candidates
// that arrived before it.
func (e *PionEngine) SetRemoteDescription(desc webrtc.SessionDescription) error {
	if err := e.pc.SetRemoteDescription(desc); err != nil {
		return err
	}

	e.mu.Lock()
	e.remoteSet = true
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()

	for _, c := range pending {
		if err := e.pc.AddICECandidate(c); err != nil {
			slog.Warn("cannot add pending ice candidate", "err", err)
		}
	}
	return nil
}

// AddICECandidate forwards c to the peer connection, or holds it until the
// remote description is set.
func (e *PionEngine) AddICECandidate(c Candidate) error {
	e.mu.Lock()
	if !e.remoteSet {
		e.pending = append(e.pending, c.Init())
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()
	return e.pc.AddICECandidate(c.Init())
}

func (e *PionEngine) Events() <-chan Event { return e.events }

// Close releases the peer connection and its tracks. Safe to call more than once.
func (e *PionEngine) Close() error {
	e.closeOnce.Do(func() {
		close(e.done)
		e.closeErr = e.pc.Close()
	})
	return e.closeErr
}
