package cmd

import (
	"context"

	"lanrtc/client"
	"lanrtc/common"
	"lanrtc/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// discoverCmd listens for the token and connects to whoever sent it. This
// side answers.
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Listen for an advertising peer and connect to it (answers)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(viper.GetViper())
		if err := cfg.Validate(); err != nil {
			return err
		}

		clientCfg := client.Config{
			Token:    common.Token(cfg.Token),
			Ports:    cfg.Ports,
			Timeouts: cfg.Timeouts,
			BindHost: cfg.BindHost,
		}
		c, err := newCaller(cfg, func(ctx context.Context) (common.Peer, error) {
			return client.Run(ctx, clientCfg)
		}, server.PhaseDiscovering)
		if err != nil {
			return err
		}

		ctx, stop := interruptContext(cmd.Context())
		defer stop()
		return c.Run(ctx)
	},
}
