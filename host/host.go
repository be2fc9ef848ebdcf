// Package host runs the advertising side of discovery: it broadcasts the
// token and waits for the peer to open the rendezvous connection. The side
// that runs it becomes the Initiator.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"lanrtc/common"
	"lanrtc/discovery"
	"lanrtc/rendezvous"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	Token    common.Token
	Ports    common.Ports
	Timeouts common.Timeouts
	// ListenHost is the host the rendezvous listener binds; empty binds all.
	ListenHost string
	// Target overrides the broadcast address the token is sent to.
	Target net.IP
}

func (c Config) Validate() error {
	if len(c.Token) == 0 {
		return errors.New("discovery token is required")
	}
	return c.Ports.Validate()
}

// Run advertises until a peer connects to the rendezvous port, then stops
// advertising and returns that peer with the Initiator role. The rendezvous
// port is bound before the first datagram goes out.
func Run(ctx context.Context, cfg Config) (common.Peer, error) {
	if err := cfg.Validate(); err != nil {
		return common.Peer{}, fmt.Errorf("invalid host configuration: %w", err)
	}

	acceptor, err := rendezvous.Listen(net.JoinHostPort(cfg.ListenHost, strconv.Itoa(cfg.Ports.Rendezvous)), cfg.Timeouts.RendezvousAccept)
	if err != nil {
		return common.Peer{}, err
	}

	adv := &discovery.Advertiser{
		Token:    cfg.Token,
		Port:     cfg.Ports.Discovery,
		Interval: cfg.Timeouts.AdvertiseInterval,
		Target:   cfg.Target,
	}

	g, gctx := errgroup.WithContext(ctx)
	advCtx, stopAdvertising := context.WithCancel(gctx)
	defer stopAdvertising()

	var peer common.Peer
	g.Go(func() error {
		defer stopAdvertising()
		p, err := acceptor.Accept(gctx)
		if err != nil {
			return err
		}
		peer = p
		return nil
	})
	g.Go(func() error {
		return adv.Run(advCtx)
	})

	slog.Info("host waiting for peer", "rendezvous", acceptor.Addr().String())
	if err := g.Wait(); err != nil {
		return common.Peer{}, err
	}
	return peer, nil
}
