package session

import (
	"crypto/tls"
	"net"
)

// WrapServerTLS returns a *tls.Conn that will act as the TLS server side of
// conn using cfg. Pass the result to Connect; the handshake runs inside
// Connect itself, satisfying spec §4.2's "handshake MUST complete before
// send succeeds".
func WrapServerTLS(conn net.Conn, cfg *tls.Config) net.Conn {
	return tls.Server(conn, cfg)
}

// WrapClientTLS is the client-side counterpart of WrapServerTLS.
func WrapClientTLS(conn net.Conn, cfg *tls.Config) net.Conn {
	return tls.Client(conn, cfg)
}
