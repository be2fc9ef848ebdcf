package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"lanrtc/common"
	"lanrtc/common/rtc"
	"lanrtc/probe"
	"lanrtc/server"
	"lanrtc/session"
	"lanrtc/signal"

	"github.com/golang/glog"
)

// peerFinder runs one side of discovery and rendezvous.
type peerFinder func(ctx context.Context) (common.Peer, error)

// caller runs calls back to back: probe, find the peer, negotiate, tear
// down, and start over.
type caller struct {
	cfg      Config
	hub      *server.Hub
	probe    *probe.Probe
	engines  rtc.Factory
	findPeer peerFinder
	// waiting is the phase published while findPeer runs.
	waiting string
}

func newCaller(cfg Config, findPeer peerFinder, waiting string) (*caller, error) {
	rtcCfg := rtc.Config{ICEServers: cfg.ICEServers, MulticastDNS: cfg.MulticastDNS}
	api, err := rtc.NewAPI(rtcCfg)
	if err != nil {
		return nil, fmt.Errorf("create media api: %w", err)
	}
	return &caller{
		cfg:      cfg,
		hub:      server.NewHub(),
		probe:    probe.New(cfg.ProbeURL, cfg.Timeouts.Probe),
		engines:  rtc.NewFactory(api, rtcCfg),
		findPeer: findPeer,
		waiting:  waiting,
	}, nil
}

// Run loops until ctx is cancelled, or after the first call when Once is
// set. Every error ends the current call only; it is logged, published, and
// discovery starts again.
func (c *caller) Run(ctx context.Context) error {
	if c.cfg.StatusAddr != "" {
		ec := server.Run(ctx, c.cfg.StatusAddr, c.hub, c.hub.Handler(c.cfg.StatusOrigins, 0))
		go func() {
			if err, ok := <-ec; ok {
				glog.Errorf("Status server stopped: %v", err)
			}
		}()
	}

	for {
		err := c.call(ctx)
		if ctx.Err() != nil {
			slog.Info("call loop stopped")
			return nil
		}

		if err != nil {
			slog.Error("call failed", "err", err)
			c.hub.Error(err)
		} else {
			c.hub.Phase(server.PhaseEnded)
		}
		if c.cfg.Once {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.RetryPause):
		}
	}
}

func (c *caller) call(ctx context.Context) error {
	if !c.cfg.SkipProbe {
		c.hub.Phase(server.PhaseProbing)
		if err := c.probe.Check(ctx); err != nil {
			return err
		}
	}

	c.hub.Phase(c.waiting)
	peer, err := c.findPeer(ctx)
	if err != nil {
		return err
	}
	c.hub.Phase(server.PhaseConnected)

	ch := signal.NewChannel(
		net.JoinHostPort(c.cfg.BindHost, strconv.Itoa(c.cfg.Ports.Signaling)),
		peer.Address,
		c.cfg.Ports.Signaling,
		c.cfg.Timeouts,
	)
	if err := ch.Listen(); err != nil {
		return err
	}

	s := session.New(peer, ch, c.engines)
	s.Observer = c.hub.Observe
	c.hub.SetHangup(s.End)
	defer c.hub.SetHangup(nil)

	err = s.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
