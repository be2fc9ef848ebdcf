//go:build !unix

package discovery

import "syscall"

// Go already enables broadcast on UDP sockets here; address reuse is not available.
func control(reuseAddr, broadcast bool) func(network, address string, c syscall.RawConn) error {
	return nil
}
