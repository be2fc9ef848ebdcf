package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"lanrtc/common"
)

const maxDatagram = 1500

// Listener waits for a single datagram carrying Token and reports who sent it.
type Listener struct {
	Token          common.Token
	Port           int
	ReceiveTimeout time.Duration
	// BindAddr is the host to bind; empty binds all interfaces.
	BindAddr string
}

// Listen returns the sender address of the first datagram whose payload is
// exactly Token. Datagrams with any other payload are ignored. Cancelling
// ctx ends the wait within one ReceiveTimeout and returns ctx.Err().
func (l *Listener) Listen(ctx context.Context) (common.PeerAddress, error) {
	timeout := l.ReceiveTimeout
	if timeout <= 0 {
		timeout = common.DefaultTimeouts.DiscoveryReceive
	}

	lc := net.ListenConfig{Control: control(true, false)}
	conn, err := lc.ListenPacket(ctx, "udp4", net.JoinHostPort(l.BindAddr, strconv.Itoa(l.Port)))
	if err != nil {
		return "", fmt.Errorf("%w: bind discovery listener: %v", common.ErrTransport, err)
	}
	defer conn.Close()
	slog.Info("listening for peers", "addr", conn.LocalAddr().String())

	buf := make([]byte, maxDatagram)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return "", fmt.Errorf("%w: %v", common.ErrTransport, err)
		}

		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if common.IsTimeout(err) {
				continue
			}
			return "", fmt.Errorf("%w: receive: %v", common.ErrTransport, err)
		}

		if !l.Token.Equal(buf[:n]) {
			slog.Debug("ignoring datagram", "from", from.String(), "bytes", n)
			continue
		}

		udpAddr, ok := from.(*net.UDPAddr)
		if !ok {
			continue
		}
		slog.Info("peer discovered", "addr", udpAddr.IP.String())
		return common.PeerAddress(udpAddr.IP.String()), nil
	}
}
