package cmd

import (
	"context"

	"lanrtc/common"
	"lanrtc/host"
	"lanrtc/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// advertiseCmd broadcasts the token and waits for the peer to connect. This
// side makes the offer.
var advertiseCmd = &cobra.Command{
	Use:   "advertise",
	Short: "Advertise on the LAN and wait for a peer (makes the offer)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(viper.GetViper())
		if err := cfg.Validate(); err != nil {
			return err
		}

		hostCfg := host.Config{
			Token:      common.Token(cfg.Token),
			Ports:      cfg.Ports,
			Timeouts:   cfg.Timeouts,
			ListenHost: cfg.BindHost,
			Target:     cfg.targetIP(),
		}
		c, err := newCaller(cfg, func(ctx context.Context) (common.Peer, error) {
			return host.Run(ctx, hostCfg)
		}, server.PhaseWaiting)
		if err != nil {
			return err
		}

		ctx, stop := interruptContext(cmd.Context())
		defer stop()
		return c.Run(ctx)
	},
}
