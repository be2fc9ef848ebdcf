// Package discovery finds the other peer on the local network: one side
// broadcasts a token over UDP, the other listens for it.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"lanrtc/common"
)

// Advertiser broadcasts Token to Port every Interval until its context is
// cancelled. There is no backoff and no jitter.
type Advertiser struct {
	Token    common.Token
	Port     int
	Interval time.Duration
	// Target overrides the broadcast address of the first broadcast-capable
	// interface, e.g. for a directed broadcast or a unicast peer.
	Target net.IP
}

// Run blocks until ctx is cancelled, which returns nil, or until the first
// bind or send error, which is returned once and not retried.
func (a *Advertiser) Run(ctx context.Context) error {
	target := a.Target
	if target == nil {
		bcast, err := BroadcastAddress()
		if err != nil {
			return err
		}
		target = bcast
	}
	interval := a.Interval
	if interval <= 0 {
		interval = common.DefaultTimeouts.AdvertiseInterval
	}

	lc := net.ListenConfig{Control: control(false, true)}
	conn, err := lc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		return fmt.Errorf("%w: bind advertiser: %v", common.ErrTransport, err)
	}
	defer conn.Close()

	dst := &net.UDPAddr{IP: target, Port: a.Port}
	slog.Info("advertising", "to", dst.String(), "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := conn.WriteTo(a.Token, dst); err != nil {
			return fmt.Errorf("%w: advertise to %s: %v", common.ErrTransport, dst, err)
		}
		slog.Debug("advertised token", "to", dst.String())

		select {
		case <-ctx.Done():
			slog.Info("advertiser stopped")
			return nil
		case <-ticker.C:
		}
	}
}
