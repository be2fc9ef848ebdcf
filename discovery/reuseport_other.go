//go:build unix && !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package discovery

func setReusePort(fd int) error {
	return nil
}
