package e2e

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"lanrtc/client"
	"lanrtc/common"
	"lanrtc/common/rtc"
	"lanrtc/host"
	"lanrtc/session"
	"lanrtc/signal"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

// getFreePort asks the kernel for a free open port that is ready to use.
func getFreePort(t *testing.T) int {
	t.Helper()
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	l, err := net.ListenTCP("tcp", addr)
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func getFreeUDPPort(t *testing.T) int {
	t.Helper()
	c, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer c.Close()
	return c.LocalAddr().(*net.UDPAddr).Port
}

func fastTimeouts() common.Timeouts {
	t := common.DefaultTimeouts
	t.AdvertiseInterval = 200 * time.Millisecond
	t.DiscoveryReceive = 500 * time.Millisecond
	t.RendezvousAccept = 200 * time.Millisecond
	t.RendezvousConnect = time.Second
	t.SignalingAccept = 100 * time.Millisecond
	t.SignalingConnect = time.Second
	t.SendRetryInterval = 20 * time.Millisecond
	return t
}

func TestDiscoveryAndRendezvous(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	token := common.Token("org.lanrtc.e2e")
	ports := common.Ports{
		Discovery:  getFreeUDPPort(t),
		Rendezvous: getFreePort(t),
		Signaling:  getFreePort(t),
	}
	timeouts := fastTimeouts()

	var (
		wg                 sync.WaitGroup
		initiator, answer  common.Peer
		hostErr, clientErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		initiator, hostErr = host.Run(ctx, host.Config{
			Token:      token,
			Ports:      ports,
			Timeouts:   timeouts,
			ListenHost: "127.0.0.1",
			Target:     net.IPv4(127, 0, 0, 1),
		})
	}()
	go func() {
		defer wg.Done()
		answer, clientErr = client.Run(ctx, client.Config{
			Token:    token,
			Ports:    ports,
			Timeouts: timeouts,
			BindHost: "127.0.0.1",
		})
	}()

	start := time.Now()
	wg.Wait()
	require.NoError(t, hostErr)
	require.NoError(t, clientErr)
	require.Less(t, time.Since(start), 2*timeouts.AdvertiseInterval+timeouts.DiscoveryReceive)

	require.Equal(t, common.Initiator, initiator.Role)
	require.Equal(t, common.Responder, answer.Role)
	require.Equal(t, common.PeerAddress("127.0.0.1"), initiator.Address)
	require.Equal(t, common.PeerAddress("127.0.0.1"), answer.Address)
}

// scriptedEngine produces fixed descriptions and one local candidate as soon
// as its local description is set.
type scriptedEngine struct {
	name   string
	events chan rtc.Event

	mu     sync.Mutex
	remote []string
	cands  []rtc.Candidate
	closed bool
}

func newScriptedEngine(name string) *scriptedEngine {
	return &scriptedEngine{name: name, events: make(chan rtc.Event, 8)}
}

func (e *scriptedEngine) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: e.name + "-offer"}, nil
}

func (e *scriptedEngine) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: e.name + "-answer"}, nil
}

func (e *scriptedEngine) SetLocalDescription(webrtc.SessionDescription) error {
	e.events <- rtc.Event{Kind: rtc.CandidateGenerated, Candidate: rtc.Candidate{SDP: "candidate:" + e.name, SDPMid: "0"}}
	return nil
}

func (e *scriptedEngine) SetRemoteDescription(desc webrtc.SessionDescription) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.remote = append(e.remote, desc.Type.String()+":"+desc.SDP)
	return nil
}

func (e *scriptedEngine) AddICECandidate(c rtc.Candidate) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cands = append(e.cands, c)
	return nil
}

func (e *scriptedEngine) Events() <-chan rtc.Event { return e.events }

func (e *scriptedEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *scriptedEngine) snapshot() (remote []string, cands []rtc.Candidate, closed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.remote...), append([]rtc.Candidate(nil), e.cands...), e.closed
}

type peerSide struct {
	session *session.Session
	done    chan error
}

func startSide(t *testing.T, ctx context.Context, role common.Role, listenPort, peerPort int, newEngine rtc.Factory) *peerSide {
	t.Helper()
	ch := signal.NewChannel(net.JoinHostPort("127.0.0.1", strconv.Itoa(listenPort)), "127.0.0.1", peerPort, fastTimeouts())
	require.NoError(t, ch.Listen())

	s := session.New(common.Peer{Address: "127.0.0.1", Role: role}, ch, newEngine)
	side := &peerSide{session: s, done: make(chan error, 1)}
	go func() { side.done <- s.Run(ctx) }()
	return side
}

func (p *peerSide) end(t *testing.T) {
	t.Helper()
	p.session.End()
	select {
	case err := <-p.done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("session did not end")
	}
}

func TestNegotiationOverSignaling(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	portA, portB := getFreePort(t), getFreePort(t)
	engineA, engineB := newScriptedEngine("a"), newScriptedEngine("b")

	// The Responder starts late so the first sends meet a refused port.
	initiator := startSide(t, ctx, common.Initiator, portA, portB, func() (rtc.Engine, error) { return engineA, nil })
	time.Sleep(100 * time.Millisecond)
	responder := startSide(t, ctx, common.Responder, portB, portA, func() (rtc.Engine, error) { return engineB, nil })

	require.Eventually(t, func() bool {
		return initiator.session.State() == session.Negotiated && responder.session.State() == session.Negotiated
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_, ca, _ := engineA.snapshot()
		return len(ca) == 1
	}, 5*time.Second, 10*time.Millisecond)

	remoteA, candsA, _ := engineA.snapshot()
	remoteB, candsB, _ := engineB.snapshot()
	require.Equal(t, []string{"answer:b-answer"}, remoteA)
	require.Equal(t, []string{"offer:a-offer"}, remoteB)
	require.Equal(t, "candidate:b", candsA[0].SDP)
	// The Initiator's candidate races its offer on a separate connection and
	// is dropped if it wins.
	require.LessOrEqual(t, len(candsB), 1)
	if len(candsB) == 1 {
		require.Equal(t, "candidate:a", candsB[0].SDP)
	}

	initiator.end(t)
	responder.end(t)

	_, _, closedA := engineA.snapshot()
	_, _, closedB := engineB.snapshot()
	require.True(t, closedA)
	require.True(t, closedB)

	// Both signaling ports are free again for the next call.
	for _, port := range []int{portA, portB} {
		ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		require.NoError(t, err)
		ln.Close()
	}
}

func TestPionNegotiation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping media engine test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cfg := rtc.Config{}
	api, err := rtc.NewAPI(cfg)
	require.NoError(t, err)
	factory := rtc.NewFactory(api, cfg)

	portA, portB := getFreePort(t), getFreePort(t)
	responder := startSide(t, ctx, common.Responder, portB, portA, factory)
	initiator := startSide(t, ctx, common.Initiator, portA, portB, factory)

	require.Eventually(t, func() bool {
		return initiator.session.State() == session.Negotiated && responder.session.State() == session.Negotiated
	}, 10*time.Second, 20*time.Millisecond)

	initiator.end(t)
	responder.end(t)
}
