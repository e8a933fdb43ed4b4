//go:build windows

package session

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// Control is the Windows counterpart of sockopts_unix.go's Control. Windows
// has no SO_REUSEPORT; SO_REUSEADDR there already permits the multiple-bind
// semantics SO_REUSEPORT provides on Linux/BSD, so ReusePort is folded into
// the same SO_REUSEADDR call.
func (o Options) Control(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if o.ReuseAddress || o.ReusePort {
			if e := windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1); e != nil {
				sockErr = e
				return
			}
		}
		if o.DualStack && (network == "tcp6" || network == "udp6") {
			if e := windows.SetsockoptInt(windows.Handle(fd), windows.IPPROTO_IPV6, windows.IPV6_V6ONLY, 0); e != nil {
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
