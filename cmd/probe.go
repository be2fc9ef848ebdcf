package cmd

import (
	"fmt"

	"lanrtc/probe"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that the network is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(viper.GetViper())

		ctx, stop := interruptContext(cmd.Context())
		defer stop()
		if err := probe.New(cfg.ProbeURL, cfg.Timeouts.Probe).Check(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "reachable")
		return nil
	},
}
