package common

import (
	"errors"
	"net"
	"syscall"
)

var (
	// ErrNetworkUnavailable means no broadcast-capable interface exists or
	// the reachability probe failed.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrTransport is a bind, send or receive failure other than a timeout.
	ErrTransport = errors.New("transport error")
	// ErrRendezvousFailed means the rendezvous connect was refused or timed out.
	ErrRendezvousFailed = errors.New("rendezvous failed")
	// ErrSignalingDecode means a signaling message body was malformed.
	ErrSignalingDecode = errors.New("signaling decode error")
	// ErrNegotiation means the media engine rejected a description or candidate.
	ErrNegotiation = errors.New("negotiation error")
)

// IsTimeout reports whether err is a network timeout.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsConnRefused reports whether err means nobody is listening on the remote port.
func IsConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
