package cmd

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"lanrtc/common"
	"lanrtc/probe"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultICEServers are the public STUN servers used when none are configured.
var DefaultICEServers = []string{
	"stun:91.220.207.146:3478",
	"stun:stun2.l.google.com:19302",
	"stun:stun.schlund.de",
	"stun:74.125.140.127:19302",
	"stun:[2A00:1450:400C:C08::7F]:19302",
}

const defaultRetryPause = 2 * time.Second

// Config is everything a call loop needs, collected from flags, the config
// file and LANRTC_* environment variables.
type Config struct {
	Token         string
	Ports         common.Ports
	Timeouts      common.Timeouts
	BindHost      string
	Target        string
	ICEServers    []string
	MulticastDNS  bool
	ProbeURL      string
	SkipProbe     bool
	StatusAddr    string
	StatusOrigins []string
	Once          bool
	RetryPause    time.Duration
}

func bindFlags(fs *pflag.FlagSet) {
	fs.String("token", common.DefaultToken, "discovery token shared by both peers")
	fs.Int("discovery-port", common.DefaultPorts.Discovery, "UDP discovery port")
	fs.Int("rendezvous-port", common.DefaultPorts.Rendezvous, "TCP rendezvous port")
	fs.Int("signaling-port", common.DefaultPorts.Signaling, "TCP signaling port")
	fs.String("bind", "", "host to bind listeners on (default all interfaces)")
	fs.String("target", "", "advertise to this address instead of the interface broadcast address")
	fs.StringSlice("ice-server", DefaultICEServers, "STUN/TURN server URLs")
	fs.Bool("mdns", false, "gather mDNS host candidates")
	fs.String("probe-url", probe.DefaultURL, "reachability probe URL")
	fs.Bool("skip-probe", false, "skip the reachability probe")
	fs.String("status-addr", "", "serve the status feed on this address (e.g. 127.0.0.1:8080)")
	fs.StringSlice("status-origin", nil, "allowed origins for the status feed")
	fs.Bool("once", false, "exit after the first call")
	fs.Duration("retry-pause", defaultRetryPause, "pause before returning to discovery after a call")
}

func loadConfig(v *viper.Viper) Config {
	return Config{
		Token: v.GetString("token"),
		Ports: common.Ports{
			Discovery:  v.GetInt("discovery-port"),
			Rendezvous: v.GetInt("rendezvous-port"),
			Signaling:  v.GetInt("signaling-port"),
		},
		Timeouts:      common.DefaultTimeouts,
		BindHost:      v.GetString("bind"),
		Target:        v.GetString("target"),
		ICEServers:    normalizeList(v.GetStringSlice("ice-server")),
		MulticastDNS:  v.GetBool("mdns"),
		ProbeURL:      v.GetString("probe-url"),
		SkipProbe:     v.GetBool("skip-probe"),
		StatusAddr:    v.GetString("status-addr"),
		StatusOrigins: normalizeList(v.GetStringSlice("status-origin")),
		Once:          v.GetBool("once"),
		RetryPause:    v.GetDuration("retry-pause"),
	}
}

func (c Config) Validate() error {
	if c.Token == "" {
		return errors.New("token is required")
	}
	if err := c.Ports.Validate(); err != nil {
		return err
	}
	if c.Target != "" && c.targetIP() == nil {
		return fmt.Errorf("target must be an IPv4 address, got: %s", c.Target)
	}
	if !c.SkipProbe && c.ProbeURL == "" {
		return errors.New("probe URL is required unless the probe is skipped")
	}
	if c.RetryPause < 0 {
		return fmt.Errorf("retry pause must not be negative, got: %s", c.RetryPause)
	}
	return nil
}

func (c Config) targetIP() net.IP {
	if c.Target == "" {
		return nil
	}
	return net.ParseIP(c.Target).To4()
}

// normalizeList splits comma separated entries and drops blanks, so a list
// reads the same from repeated flags, YAML or a single environment variable.
func normalizeList(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, part := range strings.Split(entry, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
