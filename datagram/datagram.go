// Package datagram implements the connectionless transport from spec
// §4.3: bind, optional connect, multicast group membership, and
// receive-from/send-to with no cross-datagram ordering guarantee.
package datagram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/nvremote/netflux/neterr"
	"github.com/nvremote/netflux/session"
	"github.com/nvremote/netflux/sockid"
)

// Handler is the callback surface for a datagram Engine.
type Handler interface {
	OnReceived(e *Engine, peer net.Addr, data []byte)
	OnSent(e *Engine, peer net.Addr, sent int)
	OnError(e *Engine, kind neterr.Kind, err error)
}

// BaseHandler no-ops every callback; embed and override selectively.
type BaseHandler struct{}

func (BaseHandler) OnReceived(*Engine, net.Addr, []byte) {}
func (BaseHandler) OnSent(*Engine, net.Addr, int)        {}
func (BaseHandler) OnError(*Engine, neterr.Kind, error)  {}

var _ Handler = BaseHandler{}

// Engine is the UDP analogue of session.Session: one engine owns one
// net.PacketConn and drives a single always-on receive loop.
type Engine struct {
	id      sockid.ID
	handler Handler
	opts    session.Options

	conn       net.PacketConn
	connected  net.Addr // non-nil if Connect was used to fix a peer
	multicast  *multicastGroup

	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64

	closeOnce sync.Once
	doneCh    chan struct{}
}

// New constructs an unbound Engine. Call Start or StartMulticast to bind.
func New(handler Handler, opts session.Options) *Engine {
	return &Engine{
		id:      sockid.New(),
		handler: handler,
		opts:    opts,
		doneCh:  make(chan struct{}),
	}
}

// ID returns the engine's identity.
func (e *Engine) ID() sockid.ID { return e.id }

// BytesSent/BytesReceived mirror the Session counters for a datagram
// engine, with no send/pending distinction since UDP sends are fire-and-forget.
func (e *Engine) BytesSent() uint64     { return e.bytesSent.Load() }
func (e *Engine) BytesReceived() uint64 { return e.bytesReceived.Load() }

// LocalAddr returns the bound local address, or nil if not yet started.
func (e *Engine) LocalAddr() net.Addr {
	if e.conn == nil {
		return nil
	}
	return e.conn.LocalAddr()
}

// Start binds to localAddr (host:port, "" host means all interfaces) and
// arms the receive loop.
func (e *Engine) Start(ctx context.Context, localAddr string) error {
	lc := net.ListenConfig{Control: e.opts.Control}
	conn, err := lc.ListenPacket(ctx, "udp", localAddr)
	if err != nil {
		return fmt.Errorf("datagram: listen %s: %w", localAddr, err)
	}
	return e.start(conn)
}

// StartMulticast binds to 0.0.0.0:port (spec §4.3) with SO_REUSEADDR and
// joins group. group may be an IPv4 ASM address (224.0.0.0/4) or an IPv6
// multicast address; the right underlying join implementation (x/net/ipv4
// or x/net/ipv6) is selected by address family.
func (e *Engine) StartMulticast(ctx context.Context, group string, port int) error {
	opts := e.opts
	opts.ReuseAddress = true
	e.opts = opts

	lc := net.ListenConfig{Control: e.opts.Control}
	conn, err := lc.ListenPacket(ctx, "udp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("datagram: listen multicast port %d: %w", port, err)
	}
	if err := e.start(conn); err != nil {
		return err
	}
	return e.JoinMulticast(group)
}

func (e *Engine) start(conn net.PacketConn) error {
	e.conn = conn
	go e.receiveLoop()
	return nil
}

// Connect fixes the peer address for subsequent SendAsync calls that omit
// an explicit peer, mirroring the source's optional-connect UDP socket.
func (e *Engine) Connect(peer string) error {
	addr, err := net.ResolveUDPAddr("udp", peer)
	if err != nil {
		return fmt.Errorf("datagram: resolving peer %s: %w", peer, err)
	}
	e.connected = addr
	return nil
}

// receiveLoop is the engine's single always-on reader: exactly one
// recvfrom outstanding at a time, per spec §4.3.
func (e *Engine) receiveLoop() {
	buf := make([]byte, e.opts.ReceiveBufferSizeOrDefault())
	for {
		n, peer, err := e.conn.ReadFrom(buf)
		if n > 0 {
			e.bytesReceived.Add(uint64(n))
			e.handler.OnReceived(e, peer, buf[:n])
		}
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			kind, retry := neterr.Classify(err)
			if retry {
				continue
			}
			e.handler.OnError(e, kind, err)
			return
		}
	}
}

// SendAsync sends data to peer (or, if peer is nil, to the address fixed by
// Connect) and reports the outcome via OnSent/OnError. UDP gives no
// cross-datagram ordering guarantee, so unlike session.Session there is no
// queue: each call issues its own sendto independently.
func (e *Engine) SendAsync(peer net.Addr, data []byte) error {
	if peer == nil {
		peer = e.connected
	}
	if peer == nil {
		return fmt.Errorf("datagram: SendAsync with no peer and no Connect'd address")
	}

	n, err := e.conn.WriteTo(data, peer)
	if err != nil {
		kind, _ := neterr.Classify(err)
		e.handler.OnError(e, kind, err)
		return err
	}
	e.bytesSent.Add(uint64(n))
	e.handler.OnSent(e, peer, n)
	return nil
}

// Close stops the receive loop and releases the socket and any multicast
// membership.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		if e.multicast != nil {
			_ = e.multicast.leaveAll()
		}
		if e.conn != nil {
			err = e.conn.Close()
		}
		close(e.doneCh)
	})
	return err
}

// Done returns a channel closed once Close has run.
func (e *Engine) Done() <-chan struct{} { return e.doneCh }
