//go:build !windows

package session

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Control returns a net.ListenConfig/net.Dialer Control callback that
// applies SO_REUSEADDR, SO_REUSEPORT, and (for IPv6 listeners) clears
// IPV6_V6ONLY when DualStack is set. It is the platform-specific half of
// spec §6's socket options that cannot be set after the fact on a plain
// net.Conn — they must be in place before bind()/listen()/connect().
func (o Options) Control(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if o.ReuseAddress {
			if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); e != nil {
				sockErr = e
				return
			}
		}
		if o.ReusePort {
			if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); e != nil {
				sockErr = e
				return
			}
		}
		if o.DualStack && (network == "tcp6" || network == "udp6") {
			if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0); e != nil {
				sockErr = e
				return
			}
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}
