// Package rendezvous confirms direct TCP reachability between two discovered
// peers and assigns their roles. The connection carries no payload: its
// establishment is the whole signal.
package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"lanrtc/common"
)

// Acceptor is the listening half, run by the side that advertises.
type Acceptor struct {
	ln      *net.TCPListener
	timeout time.Duration
}

// Listen binds the rendezvous port. Binding before advertising guarantees the
// peer never connects to a port that is not yet open.
func Listen(addr string, timeout time.Duration) (*Acceptor, error) {
	if timeout <= 0 {
		timeout = common.DefaultTimeouts.RendezvousAccept
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: bind rendezvous listener: %v", common.ErrTransport, err)
	}
	return &Acceptor{ln: ln.(*net.TCPListener), timeout: timeout}, nil
}

func (a *Acceptor) Addr() net.Addr { return a.ln.Addr() }

func (a *Acceptor) Close() error { return a.ln.Close() }

// Accept waits for the first inbound connection and returns its address with
// the Initiator role. The listener is closed when Accept returns. Cancelling
// ctx takes effect within one accept timeout.
func (a *Acceptor) Accept(ctx context.Context) (common.Peer, error) {
	defer a.ln.Close()
	slog.Info("waiting for rendezvous", "addr", a.ln.Addr().String())

	for {
		if err := ctx.Err(); err != nil {
			return common.Peer{}, err
		}
		if err := a.ln.SetDeadline(time.Now().Add(a.timeout)); err != nil {
			return common.Peer{}, fmt.Errorf("%w: %v", common.ErrTransport, err)
		}

		conn, err := a.ln.AcceptTCP()
		if err != nil {
			if common.IsTimeout(err) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return common.Peer{}, fmt.Errorf("%w: rendezvous listener closed", common.ErrTransport)
			}
			slog.Warn("rendezvous accept error", "err", err)
			continue
		}

		remote := conn.RemoteAddr().(*net.TCPAddr).IP.String()
		conn.Close()
		slog.Info("rendezvous accepted", "peer", remote, "role", common.Initiator.String())
		return common.Peer{Address: common.PeerAddress(remote), Role: common.Initiator}, nil
	}
}

// Connect opens the rendezvous connection to a discovered peer and returns
// it with the Responder role. Refusal or timeout is common.ErrRendezvousFailed;
// there is no retry at this layer.
func Connect(ctx context.Context, peer common.PeerAddress, port int, timeout time.Duration) (common.Peer, error) {
	if timeout <= 0 {
		timeout = common.DefaultTimeouts.RendezvousConnect
	}
	addr := net.JoinHostPort(peer.String(), strconv.Itoa(port))

	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return common.Peer{}, fmt.Errorf("%w: %s: %v", common.ErrRendezvousFailed, addr, err)
	}
	conn.Close()

	slog.Info("rendezvous connected", "peer", peer.String(), "role", common.Responder.String())
	return common.Peer{Address: peer, Role: common.Responder}, nil
}
