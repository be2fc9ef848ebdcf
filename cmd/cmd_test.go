package cmd

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"lanrtc/common"
	"lanrtc/server"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestNormalizeList(t *testing.T) {
	testCases := []struct {
		name     string
		in       []string
		expected []string
	}{
		{
			name:     "single entry",
			in:       []string{"stun:a"},
			expected: []string{"stun:a"},
		},
		{
			name:     "comma separated in one string",
			in:       []string{"stun:a,stun:b,stun:c"},
			expected: []string{"stun:a", "stun:b", "stun:c"},
		},
		{
			name:     "mixed format",
			in:       []string{"stun:a,stun:b", "stun:c"},
			expected: []string{"stun:a", "stun:b", "stun:c"},
		},
		{
			name:     "with spaces",
			in:       []string{" stun:a , stun:b ", "stun:c"},
			expected: []string{"stun:a", "stun:b", "stun:c"},
		},
		{
			name:     "empty parts",
			in:       []string{"stun:a,,stun:b", " , "},
			expected: []string{"stun:a", "stun:b"},
		},
		{
			name:     "ipv6 literal",
			in:       []string{"stun:[2A00:1450:400C:C08::7F]:19302"},
			expected: []string{"stun:[2A00:1450:400C:C08::7F]:19302"},
		},
		{
			name:     "empty input",
			in:       []string{},
			expected: nil,
		},
		{
			name:     "input with empty string",
			in:       []string{""},
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := normalizeList(tc.in)
			if !reflect.DeepEqual(out, tc.expected) {
				t.Errorf("expected %v, got %v", tc.expected, out)
			}
		})
	}
}

func validConfig() Config {
	return Config{
		Token:      common.DefaultToken,
		Ports:      common.DefaultPorts,
		Timeouts:   common.DefaultTimeouts,
		ProbeURL:   "https://example.com",
		RetryPause: time.Second,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:        "empty token",
			mutate:      func(c *Config) { c.Token = "" },
			expectError: true,
			errorMsg:    "token is required",
		},
		{
			name:        "shared ports",
			mutate:      func(c *Config) { c.Ports.Signaling = c.Ports.Rendezvous },
			expectError: true,
			errorMsg:    "ports must be distinct: 50100/50101/50101",
		},
		{
			name:   "ipv4 target",
			mutate: func(c *Config) { c.Target = "192.168.1.255" },
		},
		{
			name:        "hostname target",
			mutate:      func(c *Config) { c.Target = "peer.local" },
			expectError: true,
			errorMsg:    "target must be an IPv4 address, got: peer.local",
		},
		{
			name:        "missing probe url",
			mutate:      func(c *Config) { c.ProbeURL = "" },
			expectError: true,
			errorMsg:    "probe URL is required unless the probe is skipped",
		},
		{
			name:   "missing probe url when skipped",
			mutate: func(c *Config) { c.ProbeURL = ""; c.SkipProbe = true },
		},
		{
			name:        "negative retry pause",
			mutate:      func(c *Config) { c.RetryPause = -time.Second },
			expectError: true,
			errorMsg:    "retry pause must not be negative, got: -1s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got nil")
				} else if err.Error() != tt.errorMsg {
					t.Errorf("Expected error '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func newTestViper(t *testing.T, args ...string) *viper.Viper {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	bindFlags(fs)
	require.NoError(t, fs.Parse(args))

	v := viper.New()
	require.NoError(t, v.BindPFlags(fs))
	v.SetEnvPrefix("LANRTC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := loadConfig(newTestViper(t))

	require.Equal(t, common.DefaultToken, cfg.Token)
	require.Equal(t, common.DefaultPorts, cfg.Ports)
	require.Equal(t, common.DefaultTimeouts, cfg.Timeouts)
	require.Equal(t, DefaultICEServers, cfg.ICEServers)
	require.Equal(t, defaultRetryPause, cfg.RetryPause)
	require.Empty(t, cfg.StatusAddr)
	require.False(t, cfg.Once)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFlagsAndEnv(t *testing.T) {
	t.Setenv("LANRTC_SIGNALING_PORT", "6002")
	t.Setenv("LANRTC_STATUS_ORIGIN", "http://a.local, http://b.local")

	cfg := loadConfig(newTestViper(t,
		"--token", "office",
		"--discovery-port", "6000",
		"--ice-server", "stun:one,stun:two",
		"--once",
		"--skip-probe",
	))

	require.Equal(t, "office", cfg.Token)
	require.Equal(t, 6000, cfg.Ports.Discovery)
	require.Equal(t, common.DefaultPorts.Rendezvous, cfg.Ports.Rendezvous)
	require.Equal(t, 6002, cfg.Ports.Signaling)
	require.Equal(t, []string{"stun:one", "stun:two"}, cfg.ICEServers)
	require.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.StatusOrigins)
	require.True(t, cfg.Once)
	require.True(t, cfg.SkipProbe)
}

func TestCommandStructure(t *testing.T) {
	names := map[string]bool{}
	for _, c := range Root().Commands() {
		names[c.Name()] = true
		if c.RunE == nil {
			t.Errorf("Expected %s command to have an action", c.Name())
		}
	}
	for _, want := range []string{"advertise", "discover", "probe"} {
		if !names[want] {
			t.Errorf("Expected %s command to be registered", want)
		}
	}

	for _, flag := range []string{"config", "verbose", "token", "signaling-port", "status-addr", "once"} {
		if Root().PersistentFlags().Lookup(flag) == nil {
			t.Errorf("Expected persistent flag --%s", flag)
		}
	}
}

func TestCallerOnceReturnsFirstError(t *testing.T) {
	cfg := validConfig()
	cfg.SkipProbe = true
	cfg.Once = true

	attempts := 0
	c := &caller{
		cfg: cfg,
		hub: server.NewHub(),
		findPeer: func(ctx context.Context) (common.Peer, error) {
			attempts++
			return common.Peer{}, common.ErrRendezvousFailed
		},
		waiting: server.PhaseDiscovering,
	}

	err := c.Run(context.Background())
	require.ErrorIs(t, err, common.ErrRendezvousFailed)
	require.Equal(t, 1, attempts)
}

func TestCallerRetriesUntilCancelled(t *testing.T) {
	cfg := validConfig()
	cfg.SkipProbe = true
	cfg.RetryPause = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attempts := 0
	c := &caller{
		cfg: cfg,
		hub: server.NewHub(),
		findPeer: func(ctx context.Context) (common.Peer, error) {
			attempts++
			if attempts == 3 {
				cancel()
				<-ctx.Done()
				return common.Peer{}, ctx.Err()
			}
			return common.Peer{}, errors.New("no peer")
		},
		waiting: server.PhaseWaiting,
	}

	require.NoError(t, c.Run(ctx))
	require.Equal(t, 3, attempts)
}
