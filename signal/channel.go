package signal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"lanrtc/common"
)

// maxMessageSize bounds a single signaling body; SDP with candidates stays well below it.
const maxMessageSize = 1 << 20

// Channel is the TCP signaling transport of one session: an inbound accept
// loop on ListenAddr and a per-message sender to Peer:PeerPort.
type Channel struct {
	ListenAddr string
	Peer       common.PeerAddress
	PeerPort   int

	AcceptTimeout  time.Duration
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	RetryInterval  time.Duration

	ln *net.TCPListener
	// dial replaces net.Dialer.DialContext when set.
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

func NewChannel(listenAddr string, peer common.PeerAddress, peerPort int, t common.Timeouts) *Channel {
	return &Channel{
		ListenAddr:     listenAddr,
		Peer:           peer,
		PeerPort:       peerPort,
		AcceptTimeout:  t.SignalingAccept,
		ConnectTimeout: t.SignalingConnect,
		ReadTimeout:    t.SignalingRead,
		RetryInterval:  t.SendRetryInterval,
	}
}

// Listen binds the inbound signaling port.
func (c *Channel) Listen() error {
	ln, err := net.Listen("tcp", c.ListenAddr)
	if err != nil {
		return fmt.Errorf("%w: bind signaling listener: %v", common.ErrTransport, err)
	}
	c.ln = ln.(*net.TCPListener)
	return nil
}

func (c *Channel) Addr() net.Addr {
	if c.ln == nil {
		return nil
	}
	return c.ln.Addr()
}

// Serve accepts one message per connection and hands it to inbox until ctx
// is cancelled. Each connection is read on its own goroutine, so a sender
// that never finishes does not hold up the others. Cancellation takes effect
// within one AcceptTimeout. A body that fails to decode is logged and
// skipped. The listener is closed on return.
func (c *Channel) Serve(ctx context.Context, inbox chan<- Message) error {
	if c.ln == nil {
		if err := c.Listen(); err != nil {
			return err
		}
	}

	var readers sync.WaitGroup
	defer func() {
		c.ln.Close()
		readers.Wait()
	}()

	timeout := c.AcceptTimeout
	if timeout <= 0 {
		timeout = common.DefaultTimeouts.SignalingAccept
	}
	slog.Info("signaling listening", "addr", c.ln.Addr().String())

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.ln.SetDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("%w: %v", common.ErrTransport, err)
		}

		conn, err := c.ln.AcceptTCP()
		if err != nil {
			if common.IsTimeout(err) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Warn("signaling accept error", "err", err)
			continue
		}

		readers.Add(1)
		go func() {
			defer readers.Done()
			c.deliver(ctx, conn, inbox)
		}()
	}
}

func (c *Channel) deliver(ctx context.Context, conn net.Conn, inbox chan<- Message) {
	from := conn.RemoteAddr().String()
	msg, err := c.read(ctx, conn)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("dropping signaling message", "from", from, "err", err)
		}
		return
	}
	slog.Debug("signaling message received", "action", msg.Action, "from", from)

	select {
	case inbox <- msg:
	case <-ctx.Done():
	}
}

// read consumes the whole connection until the peer closes its write side,
// the read deadline passes or ctx is done.
func (c *Channel) read(ctx context.Context, conn net.Conn) (Message, error) {
	defer conn.Close()

	readTimeout := c.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = common.DefaultTimeouts.SignalingRead
	}
	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return Message{}, fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	body, err := io.ReadAll(io.LimitReader(conn, maxMessageSize))
	if err != nil {
		return Message{}, fmt.Errorf("%w: read: %v", common.ErrTransport, err)
	}
	return Decode(body)
}

// Send delivers m on a dedicated connection. While the peer refuses the
// connection (not listening yet) Send keeps retrying until ctx is done; any
// other failure is returned immediately as common.ErrTransport.
func (c *Channel) Send(ctx context.Context, m Message) error {
	payload, err := Encode(m)
	if err != nil {
		return err
	}

	retry := c.RetryInterval
	if retry <= 0 {
		retry = common.DefaultTimeouts.SendRetryInterval
	}
	addr := net.JoinHostPort(c.Peer.String(), strconv.Itoa(c.PeerPort))

	for attempt := 1; ; attempt++ {
		err := c.sendOnce(ctx, addr, payload)
		if err == nil {
			slog.Debug("signaling message sent", "action", m.Action, "to", addr, "attempts", attempt)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !common.IsConnRefused(err) {
			return fmt.Errorf("%w: send %s to %s: %v", common.ErrTransport, m.Action, addr, err)
		}
		if attempt == 1 {
			slog.Debug("peer not listening yet, retrying", "to", addr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
}

func (c *Channel) sendOnce(ctx context.Context, addr string, payload []byte) error {
	connectTimeout := c.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = common.DefaultTimeouts.SignalingConnect
	}

	dial := c.dial
	if dial == nil {
		d := net.Dialer{Timeout: connectTimeout}
		dial = d.DialContext
	}
	conn, err := dial(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(connectTimeout)); err != nil {
		return err
	}
	if _, err := conn.Write(payload); err != nil {
		return err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		return tcp.CloseWrite()
	}
	return nil
}
