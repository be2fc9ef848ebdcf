// Package session owns everything that exists between a successful rendezvous
// and the return to discovery: the signaling channel, the media engine and
// the negotiation state machine that sequences the offer/answer/candidate
// exchange.
//
// All negotiation state and every media-engine call live on the goroutine
// running Session.Run. The signaling accept loop, outbound sends and the
// media engine deliver their results to that goroutine over channels and
// never touch session state themselves.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"lanrtc/common"
	"lanrtc/common/rtc"
	"lanrtc/signal"

	"github.com/google/uuid"
)

// ErrConnectionLost is returned by Run when the media engine reports a
// terminal connectivity state.
var ErrConnectionLost = errors.New("peer connection lost")

// Signaler is the signaling transport a session drives. *signal.Channel
// implements it.
type Signaler interface {
	Serve(ctx context.Context, inbox chan<- signal.Message) error
	Send(ctx context.Context, m signal.Message) error
}

var _ Signaler = (*signal.Channel)(nil)

// Session is created after rendezvous succeeds and is torn down exactly once,
// when Run returns.
type Session struct {
	ID   string
	Peer common.Peer
	// Observer, when set before Run, receives every state transition.
	Observer Observer

	signaler  Signaler
	newEngine rtc.Factory
	engine    rtc.Engine

	state     State
	snapshot  *common.RWLock[State]
	localSet  bool
	remoteSet bool

	inbox   chan signal.Message
	errs    chan error
	end     chan struct{}
	endOnce sync.Once
	workers sync.WaitGroup
}

func New(peer common.Peer, signaler Signaler, newEngine rtc.Factory) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Peer:      peer,
		signaler:  signaler,
		newEngine: newEngine,
		state:     Idle,
		snapshot:  common.NewRWLock(Idle),
		inbox:     make(chan signal.Message, 16),
		errs:      make(chan error, 1),
		end:       make(chan struct{}),
	}
}

// State returns the current negotiation state. Safe from any goroutine.
func (s *Session) State() State {
	return s.snapshot.Load()
}

// End requests an explicit end of call. Safe from any goroutine and more than once.
func (s *Session) End() {
	s.endOnce.Do(func() { close(s.end) })
}

// Run drives the negotiation until the call ends, the connection is lost or
// an error occurs, then tears the whole session down: background workers are
// stopped and waited for, and the media engine is closed. An explicit End
// returns nil.
func (s *Session) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer s.teardown(cancel)

	log := slog.With("session", s.ID, "peer", s.Peer.Address.String(), "role", s.Peer.Role.String())
	log.Info("session started")

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		if err := s.signaler.Serve(ctx, s.inbox); err != nil {
			s.report(ctx, err)
		}
	}()

	defer func() {
		if err != nil && !s.state.Terminal() {
			log.Error("session failed", "err", err)
			s.transition(Failed, err.Error())
		}
	}()

	if s.Peer.Role == common.Initiator {
		if err := s.offer(ctx); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.transition(Closed, "")
			return ctx.Err()

		case <-s.end:
			log.Info("call ended")
			s.transition(Closed, "")
			return nil

		case msg := <-s.inbox:
			if err := s.handleMessage(ctx, msg); err != nil {
				return err
			}

		case ev := <-s.events():
			if err := s.handleEvent(ctx, ev); err != nil {
				return err
			}

		case err := <-s.errs:
			return err
		}
	}
}

// events returns the engine's event channel, or nil (blocks forever) while
// no engine exists yet.
func (s *Session) events() <-chan rtc.Event {
	if s.engine == nil {
		return nil
	}
	return s.engine.Events()
}

// ensureEngine creates the media engine on first need; there is never more than one.
func (s *Session) ensureEngine() (rtc.Engine, error) {
	if s.engine != nil {
		return s.engine, nil
	}
	engine, err := s.newEngine()
	if err != nil {
		return nil, fmt.Errorf("%w: create media engine: %v", common.ErrNegotiation, err)
	}
	s.engine = engine
	return engine, nil
}

// send dispatches m on its own short-lived worker. Completion order across
// sends is not defined; a failure comes back to the coordinator as an error.
func (s *Session) send(ctx context.Context, m signal.Message) {
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		if err := s.signaler.Send(ctx, m); err != nil {
			s.report(ctx, err)
		}
	}()
}

func (s *Session) report(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	select {
	case s.errs <- err:
	default:
		// An earlier error is already pending and will end the session.
	}
}

func (s *Session) transition(to State, reason string) {
	from := s.state
	if from == to || from.Terminal() {
		return
	}
	s.state = to
	s.snapshot.Write(func(v *State) { *v = to })

	slog.Info("negotiation state", "session", s.ID, "from", from.String(), "to", to.String())
	if s.Observer != nil {
		s.Observer(Transition{SessionID: s.ID, Peer: s.Peer, From: from, To: to, Reason: reason})
	}
}

func (s *Session) teardown(cancel context.CancelFunc) {
	cancel()
	s.workers.Wait()
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			slog.Warn("closing media engine", "session", s.ID, "err", err)
		}
	}
	slog.Info("session torn down", "session", s.ID)
}
