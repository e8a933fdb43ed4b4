package session

import "net"

// Options holds the socket tuning knobs from spec §6. All fields are
// optional; DefaultOptions returns the documented defaults. The zero value
// leaves the buffer sizes and backlog at 0, in which case the receive slice
// falls back to 8 KiB and no kernel buffer-size hint is set.
type Options struct {
	// Keepalive enables TCP keepalive probing. Default off.
	Keepalive bool

	// NoDelay disables Nagle's algorithm. Default off.
	NoDelay bool

	// ReuseAddress sets SO_REUSEADDR at bind/listen time.
	ReuseAddress bool

	// ReusePort sets SO_REUSEPORT (where supported) at bind/listen time,
	// required for UDP multicast group membership sharing across
	// processes/sockets on the same port.
	ReusePort bool

	// DualStack allows an IPv6 listener to also accept IPv4-mapped
	// connections (clears IPV6_V6ONLY).
	DualStack bool

	// ReceiveBufferSize sizes both the engine's own receive slice and the
	// kernel SO_RCVBUF hint. Default 8 KiB.
	ReceiveBufferSize int

	// SendBufferSize hints the kernel SO_SNDBUF. Default 8 KiB.
	SendBufferSize int

	// AcceptorBacklog records the desired listen() backlog. Default 1024.
	// server.Server does not read it: its listener is created through
	// net.ListenConfig, which uses the system backlog.
	AcceptorBacklog int
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		ReceiveBufferSize: 8192,
		SendBufferSize:    8192,
		AcceptorBacklog:   1024,
	}
}

func (o Options) receiveBufferSize() int {
	return o.ReceiveBufferSizeOrDefault()
}

// ReceiveBufferSizeOrDefault returns ReceiveBufferSize, or the 8 KiB
// default if unset. Exported so other packages (datagram) sizing their own
// read buffers share the same default without duplicating it.
func (o Options) ReceiveBufferSizeOrDefault() int {
	if o.ReceiveBufferSize > 0 {
		return o.ReceiveBufferSize
	}
	return 8192
}

// Apply configures keepalive/no-delay/buffer-size options on conn where the
// underlying transport supports them. ReuseAddress/ReusePort/DualStack are
// applied earlier, at Listen/Dial time, via the platform Control callbacks
// in sockopts_unix.go / sockopts_windows.go — a plain net.Conn has no
// socket left to configure them on by the time Apply runs.
func (o Options) Apply(conn net.Conn) error {
	type keepAliver interface {
		SetKeepAlive(bool) error
	}
	type noDelayer interface {
		SetNoDelay(bool) error
	}
	type bufSizer interface {
		SetReadBuffer(int) error
		SetWriteBuffer(int) error
	}

	if ka, ok := conn.(keepAliver); ok && o.Keepalive {
		if err := ka.SetKeepAlive(true); err != nil {
			return err
		}
	}
	if nd, ok := conn.(noDelayer); ok && o.NoDelay {
		if err := nd.SetNoDelay(true); err != nil {
			return err
		}
	}
	if bs, ok := conn.(bufSizer); ok {
		if o.ReceiveBufferSize > 0 {
			if err := bs.SetReadBuffer(o.ReceiveBufferSize); err != nil {
				return err
			}
		}
		if o.SendBufferSize > 0 {
			if err := bs.SetWriteBuffer(o.SendBufferSize); err != nil {
				return err
			}
		}
	}
	return nil
}
