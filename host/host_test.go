package host

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"lanrtc/common"
	"lanrtc/discovery"
	"lanrtc/rendezvous"

	"github.com/stretchr/testify/require"
)

func TestHostConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			config: Config{Token: common.Token("token"), Ports: common.DefaultPorts},
		},
		{
			name:        "empty token",
			config:      Config{Ports: common.DefaultPorts},
			expectError: true,
			errorMsg:    "discovery token is required",
		},
		{
			name:        "missing ports",
			config:      Config{Token: common.Token("token")},
			expectError: true,
			errorMsg:    "discovery port out of range: 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
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

func TestRunWithInvalidConfig(t *testing.T) {
	_, err := Run(context.Background(), Config{Ports: common.DefaultPorts})
	if err == nil {
		t.Fatal("Expected Run to return error with invalid config, got nil")
	}

	expectedMsg := "invalid host configuration: discovery token is required"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error '%s', got '%s'", expectedMsg, err.Error())
	}
}

func getFreePorts(t *testing.T) common.Ports {
	t.Helper()

	tcp := func() int {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()
		return ln.Addr().(*net.TCPAddr).Port
	}
	udp, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer udp.Close()

	ports := common.Ports{
		Discovery:  udp.LocalAddr().(*net.UDPAddr).Port,
		Rendezvous: tcp(),
		Signaling:  tcp(),
	}
	require.NoError(t, ports.Validate())
	return ports
}

func testTimeouts() common.Timeouts {
	t := common.DefaultTimeouts
	t.AdvertiseInterval = 50 * time.Millisecond
	t.DiscoveryReceive = 200 * time.Millisecond
	t.RendezvousAccept = 100 * time.Millisecond
	t.RendezvousConnect = time.Second
	return t
}

func TestRunReturnsInitiator(t *testing.T) {
	ports := getFreePorts(t)
	cfg := Config{
		Token:      common.Token("lanrtc-test"),
		Ports:      ports,
		Timeouts:   testTimeouts(),
		ListenHost: "127.0.0.1",
		Target:     net.IPv4(127, 0, 0, 1),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		peer common.Peer
		err  error
	}
	done := make(chan result, 1)
	go func() {
		p, err := Run(ctx, cfg)
		done <- result{p, err}
	}()

	l := &discovery.Listener{Token: cfg.Token, Port: ports.Discovery, ReceiveTimeout: 200 * time.Millisecond, BindAddr: "127.0.0.1"}
	addr, err := l.Listen(ctx)
	require.NoError(t, err)
	require.Equal(t, common.PeerAddress("127.0.0.1"), addr)

	responder, err := rendezvous.Connect(ctx, addr, ports.Rendezvous, time.Second)
	require.NoError(t, err)
	require.Equal(t, common.Responder, responder.Role)

	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, common.Initiator, res.peer.Role)
	require.Equal(t, common.PeerAddress("127.0.0.1"), res.peer.Address)

	// Advertising has stopped and the rendezvous port is free again.
	quiet := &discovery.Listener{Token: cfg.Token, Port: ports.Discovery, ReceiveTimeout: 100 * time.Millisecond, BindAddr: "127.0.0.1"}
	qctx, qcancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer qcancel()
	_, err = quiet.Listen(qctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded), "unexpected result: %v", err)

	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(ports.Rendezvous)))
	require.NoError(t, err)
	ln.Close()
}

func TestRunCancelled(t *testing.T) {
	cfg := Config{
		Token:      common.Token("lanrtc-test"),
		Ports:      getFreePorts(t),
		Timeouts:   testTimeouts(),
		ListenHost: "127.0.0.1",
		Target:     net.IPv4(127, 0, 0, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Run(ctx, cfg)
		done <- err
	}()

	time.Sleep(150 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("host did not stop after cancellation")
	}
}

func TestRunRendezvousPortBusy(t *testing.T) {
	ports := getFreePorts(t)
	busy, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(ports.Rendezvous)))
	require.NoError(t, err)
	defer busy.Close()

	_, err = Run(context.Background(), Config{
		Token:      common.Token("lanrtc-test"),
		Ports:      ports,
		Timeouts:   testTimeouts(),
		ListenHost: "127.0.0.1",
		Target:     net.IPv4(127, 0, 0, 1),
	})
	require.ErrorIs(t, err, common.ErrTransport)
}
