// Package client runs the listening side of discovery: it waits for the
// token, then opens the rendezvous connection to whoever sent it. The side
// that runs it becomes the Responder.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"lanrtc/common"
	"lanrtc/discovery"
	"lanrtc/rendezvous"
)

type Config struct {
	Token    common.Token
	Ports    common.Ports
	Timeouts common.Timeouts
	// BindHost is the host the discovery listener binds; empty binds all.
	BindHost string
}

func (c Config) Validate() error {
	if len(c.Token) == 0 {
		return errors.New("discovery token is required")
	}
	return c.Ports.Validate()
}

// Run blocks until a peer advertising the token is found and accepts the
// rendezvous connection. A failed rendezvous is returned as is; the caller
// restarts discovery to try again.
func Run(ctx context.Context, cfg Config) (common.Peer, error) {
	if err := cfg.Validate(); err != nil {
		return common.Peer{}, fmt.Errorf("invalid client configuration: %w", err)
	}

	l := &discovery.Listener{
		Token:          cfg.Token,
		Port:           cfg.Ports.Discovery,
		ReceiveTimeout: cfg.Timeouts.DiscoveryReceive,
		BindAddr:       cfg.BindHost,
	}
	addr, err := l.Listen(ctx)
	if err != nil {
		return common.Peer{}, err
	}
	slog.Info("opening rendezvous", "peer", addr.String(), "port", cfg.Ports.Rendezvous)

	return rendezvous.Connect(ctx, addr, cfg.Ports.Rendezvous, cfg.Timeouts.RendezvousConnect)
}
