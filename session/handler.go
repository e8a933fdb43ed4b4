package session

import "github.com/nvremote/netflux/neterr"

// Handler is the capability set a consumer implements to receive session
// lifecycle and I/O callbacks. Per spec §9's re-architecture of the
// source's virtual-method callbacks, this is a plain interface dispatched
// statically from one concrete Handler value stored on the Session — no
// dynamic registration, no per-call type switches on the hot path.
//
// Callbacks for a single Session are not serialized with respect to one
// another: each runs on the goroutine that produced its event. OnReceived,
// and the OnError/OnDisconnected that follow a read failure, run on the
// receive goroutine; OnSent, OnEmpty, and the OnError/OnDisconnected that
// follow a write failure, run on the send goroutine; OnConnected,
// OnHandshaked and the first OnEmpty run on the goroutine calling Connect.
// Callbacks from different goroutines can therefore run concurrently.
// Handlers MAY call Send/SendAsync reentrantly from within a callback (e.g.
// echoing from OnReceived); the send pipeline tolerates this by design
// (spec §9).
type Handler interface {
	// OnConnected fires once the socket is usable, before any receive has
	// been delivered.
	OnConnected(s *Session)

	// OnHandshaked fires once for TLS sessions, after the handshake
	// completes and before any OnReceived call.
	OnHandshaked(s *Session)

	// OnDisconnected fires exactly once, regardless of why the session
	// closed. It is suppressed on any later, redundant Disconnect call.
	OnDisconnected(s *Session)

	// OnReceived delivers one contiguous slice of bytes in socket order.
	// The callee owns data only for the duration of the call; data is
	// reused by the engine's receive buffer immediately after return.
	OnReceived(s *Session, data []byte)

	// OnSending is the back-pressure veto hook. size is the prospective
	// total pending-plus-this-write byte count. Returning false drops the
	// write without enqueueing it.
	OnSending(s *Session, size int) bool

	// OnSent fires each time the kernel accepts a chunk of the flush
	// buffer. sent is this chunk's size, pending is the bytes still queued
	// afterward.
	OnSent(s *Session, sent, pending int)

	// OnEmpty fires whenever both send buffers drain to zero, including
	// once right after Connect if nothing was queued yet.
	OnEmpty(s *Session)

	// OnError fires exactly once per terminal error, before or together
	// with the resulting OnDisconnected. Orderly peer close is reported
	// only via OnDisconnected, never here.
	OnError(s *Session, kind neterr.Kind, err error)
}

// BaseHandler is an embeddable no-op implementation of Handler. Concrete
// handlers embed it and override only the callbacks they care about.
// OnSending defaults to always-allow.
type BaseHandler struct{}

func (BaseHandler) OnConnected(*Session)                 {}
func (BaseHandler) OnHandshaked(*Session)                {}
func (BaseHandler) OnDisconnected(*Session)              {}
func (BaseHandler) OnReceived(*Session, []byte)          {}
func (BaseHandler) OnSending(*Session, int) bool         { return true }
func (BaseHandler) OnSent(*Session, int, int)            {}
func (BaseHandler) OnEmpty(*Session)                     {}
func (BaseHandler) OnError(*Session, neterr.Kind, error) {}

var _ Handler = BaseHandler{}
