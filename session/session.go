// Package session implements the asynchronous session engine: the hard
// core of the library per spec §4.1. A Session owns a socket, drives a
// single always-on receive goroutine and a single on-demand send goroutine,
// enforces append-order delivery under arbitrary producer concurrency via a
// two-buffer swap pipeline, and integrates TLS handshake/record I/O as a
// transparent layer (tls.go) by accepting a *tls.Conn as the underlying
// net.Conn.
package session

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/nvremote/netflux/buffer"
	"github.com/nvremote/netflux/neterr"
	"github.com/nvremote/netflux/sockid"
)

// ErrNotConnected is returned by Send/SendAsync on a session that hasn't
// connected yet or has already gone terminal.
var ErrNotConnected = neterr.New(neterr.NotConnected, errors.New("session is not connected"))

// ErrNotHandshaked is returned by Send/SendAsync on a TLS session whose
// handshake has not yet completed. Per spec §4.2's open choice, this
// implementation picked "fail fast" over "buffer pre-handshake writes".
var ErrNotHandshaked = neterr.New(neterr.NotHandshaked, errors.New("tls handshake not complete"))

// errSendVetoed is returned when a Handler's OnSending hook rejects a write.
var errSendVetoed = errors.New("session: write rejected by OnSending back-pressure hook")

// Owner is implemented by a registry (server.Server) that a Session
// unregisters itself from once it reaches the terminal state. Kept as a
// narrow interface here so this package never imports server.
type Owner interface {
	Unregister(id sockid.ID)
}

// Session is a single connected endpoint: the data-model entity from spec
// §3 plus the send/receive pipelines from spec §4.1 that drive it.
type Session struct {
	id      sockid.ID
	conn    net.Conn
	handler Handler
	owner   Owner
	opts    Options

	state stateBox

	bytesPending  atomicCounter
	bytesSending  atomicCounter
	bytesSent     atomicCounter
	bytesReceived atomicCounter

	sendMu        sync.Mutex
	sendCond      *sync.Cond
	main          *buffer.Buffer
	flush         *buffer.Buffer
	sendInFlight  bool
	appendedTotal uint64
	flushedTotal  uint64
	sendErr       error

	doneOnce sync.Once
	doneCh   chan struct{}
}

// New constructs a Session in the New state. Call Connect to activate it.
func New(handler Handler, owner Owner, opts Options) *Session {
	s := &Session{
		id:      sockid.New(),
		handler: handler,
		owner:   owner,
		opts:    opts,
		main:    buffer.New(opts.receiveBufferSize()),
		flush:   buffer.New(opts.receiveBufferSize()),
		doneCh:  make(chan struct{}),
	}
	s.sendCond = sync.NewCond(&s.sendMu)
	return s
}

// ID returns the session's globally-unique identity.
func (s *Session) ID() sockid.ID { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state.load() }

// BytesPending is the number of bytes queued by the user but not yet
// handed to the kernel.
func (s *Session) BytesPending() uint64 { return s.bytesPending.load() }

// BytesSending is the number of bytes currently in the flush buffer,
// handed to the kernel but not yet confirmed written.
func (s *Session) BytesSending() uint64 { return s.bytesSending.load() }

// BytesSent is the cumulative count of bytes the kernel has accepted.
func (s *Session) BytesSent() uint64 { return s.bytesSent.load() }

// BytesReceived is the cumulative count of bytes delivered via OnReceived.
func (s *Session) BytesReceived() uint64 { return s.bytesReceived.load() }

// RemoteAddr returns the peer address, or nil if not yet connected.
func (s *Session) RemoteAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.RemoteAddr()
}

// LocalAddr returns the local address, or nil if not yet connected.
func (s *Session) LocalAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// IsTLS reports whether the underlying conn is a TLS record layer.
func (s *Session) IsTLS() bool {
	_, ok := s.conn.(*tls.Conn)
	return ok
}

// Connect activates the session over conn: transitions New -> Connected
// (or, for a *tls.Conn, New -> Connected -> Handshaking -> Handshaked once
// the handshake finishes), arms the receive loop, and invokes OnConnected
// then, if nothing is queued, OnEmpty.
//
// Socket options (keepalive, no-delay, buffer sizes) are expected to have
// already been applied to the raw net.Conn before TLS wrapping by the
// caller (server.Server / client.Client do this); Connect does not call
// Options.Apply itself so it can be handed either a raw conn or a *tls.Conn
// without special-casing.
func (s *Session) Connect(conn net.Conn) error {
	if !s.state.transition(StateConnecting, StateNew) {
		return fmt.Errorf("session: Connect called from state %s", s.State())
	}
	s.conn = conn

	if !s.state.transition(StateConnected, StateConnecting) {
		// Disconnect raced in while we were still Connecting.
		return fmt.Errorf("session: disconnected before Connect completed")
	}
	s.handler.OnConnected(s)

	if tlsConn, ok := conn.(*tls.Conn); ok {
		if !s.state.transition(StateHandshaking, StateConnected) {
			return fmt.Errorf("session: disconnected before handshake started")
		}
		if err := tlsConn.Handshake(); err != nil {
			kind := neterr.TlsHandshakeFailed
			s.handler.OnError(s, kind, err)
			s.finish(neterr.New(kind, err))
			return fmt.Errorf("session: tls handshake: %w", err)
		}
		if !s.state.transition(StateHandshaked, StateHandshaking) {
			return fmt.Errorf("session: disconnected during handshake")
		}
		s.handler.OnHandshaked(s)
	}

	go s.receiveLoop()

	s.sendMu.Lock()
	empty := s.main.Empty() && s.flush.Empty()
	s.sendMu.Unlock()
	if empty {
		s.handler.OnEmpty(s)
	}
	return nil
}

// Disconnect transitions the session to Disconnected, closing the socket
// and discarding any bytes still queued in the main buffer (spec §5:
// "pending sends queued in main at disconnect time are discarded"). It
// reports whether this call actually performed the transition — false if
// the session was already disconnecting/disconnected.
func (s *Session) Disconnect() bool {
	return s.finish(nil)
}

// finish performs the one true transition into Disconnecting->Disconnected,
// idempotently. cause, if non-nil, is an already-classified neterr.Error
// surfaced as the sticky Send() error and (if not already reported) via
// OnError before OnDisconnected.
func (s *Session) finish(cause error) bool {
	if !s.state.transition(StateDisconnecting, StateConnecting, StateConnected, StateHandshaking, StateHandshaked) {
		return false
	}

	if s.conn != nil {
		_ = s.conn.Close()
	}

	s.sendMu.Lock()
	s.main.Reset()
	s.flush.Reset()
	s.bytesPending.store(0)
	s.bytesSending.store(0)
	if cause != nil && s.sendErr == nil {
		s.sendErr = cause
	} else if s.sendErr == nil {
		s.sendErr = ErrNotConnected
	}
	s.sendCond.Broadcast()
	s.sendMu.Unlock()

	s.doneOnce.Do(func() { close(s.doneCh) })

	s.state.store(StateDisconnected)
	s.handler.OnDisconnected(s)

	if s.owner != nil {
		s.owner.Unregister(s.id)
	}
	return true
}

// receiveLoop is the session's single always-on reader. Exactly one
// goroutine ever calls conn.Read for a given Session, which is the Go
// realization of spec §3's "at most one receive operation outstanding"
// invariant.
func (s *Session) receiveLoop() {
	buf := make([]byte, s.opts.receiveBufferSize())
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.bytesReceived.add(uint64(n))
			s.handler.OnReceived(s, buf[:n])
		}
		if err != nil {
			// A read error once the session has left Connected/Handshaked is
			// the socket closed by a local Disconnect: not reported.
			if errors.Is(err, io.EOF) || !s.State().IsConnected() {
				s.finish(nil)
			} else {
				kind, retry := neterr.Classify(err)
				if retry {
					continue
				}
				s.handler.OnError(s, kind, err)
				s.finish(neterr.New(kind, err))
			}
			return
		}
	}
}

// Send enqueues data and blocks until the kernel has accepted every byte of
// it (following every byte enqueued ahead of it by other producers) or an
// error terminates the session, whichever happens first.
func (s *Session) Send(data []byte) error {
	target, err := s.enqueue(data)
	if err != nil {
		return err
	}

	s.sendMu.Lock()
	for s.flushedTotal < target && s.sendErr == nil {
		s.sendCond.Wait()
	}
	err = s.sendErr
	s.sendMu.Unlock()
	return err
}

// SendAsync enqueues data and returns immediately; OnSent reports progress
// as the kernel drains the queue, OnEmpty when it fully drains.
func (s *Session) SendAsync(data []byte) error {
	_, err := s.enqueue(data)
	return err
}

// enqueue appends data to the main buffer under the send lock, honoring the
// OnSending back-pressure veto, and arms the send loop if nothing is
// currently in flight. It returns the cumulative append offset this write's
// bytes end at, used by Send to know when its bytes specifically have
// drained.
func (s *Session) enqueue(data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, nil
	}

	st := s.State()
	if !st.IsConnected() {
		return 0, ErrNotConnected
	}
	if s.requiresHandshake() && st != StateHandshaked {
		return 0, ErrNotHandshaked
	}

	s.sendMu.Lock()

	pendingAfter := s.main.Len() + len(data)
	if !s.handler.OnSending(s, pendingAfter) {
		s.sendMu.Unlock()
		return 0, errSendVetoed
	}

	s.main.Append(data)
	s.appendedTotal += uint64(len(data))
	target := s.appendedTotal
	s.bytesPending.store(uint64(s.main.Len()))

	if !s.sendInFlight {
		s.sendInFlight = true
		go s.sendLoop()
	}
	s.sendMu.Unlock()

	return target, nil
}

func (s *Session) requiresHandshake() bool {
	_, ok := s.conn.(*tls.Conn)
	return ok
}

// sendLoop is the session's single on-demand writer: armed by enqueue when
// transitioning from idle to non-empty, it swaps main into flush and writes
// flush to the kernel, repeating until both buffers drain. Exactly one
// sendLoop goroutine is ever live per Session, satisfying spec §3's "at
// most one send operation outstanding" invariant.
func (s *Session) sendLoop() {
	for {
		s.sendMu.Lock()
		if s.main.Empty() {
			s.sendInFlight = false
			s.sendMu.Unlock()
			s.handler.OnEmpty(s)
			return
		}
		buffer.Swap(s.main, s.flush)
		s.main.Compact()
		chunk := s.flush.Unread()
		s.bytesSending.store(uint64(len(chunk)))
		s.sendMu.Unlock()

		n, err := s.writeAll(chunk)

		s.sendMu.Lock()
		if !s.State().IsConnected() {
			// finish has already reset both buffers (or is about to); the
			// write outcome after a Disconnect is not reported.
			s.bytesSent.add(uint64(n))
			s.sendInFlight = false
			s.sendCond.Broadcast()
			s.sendMu.Unlock()
			return
		}
		s.flush.Advance(n)
		s.flush.Compact()
		s.bytesSending.store(0)
		s.bytesSent.add(uint64(n))
		s.flushedTotal += uint64(n)
		s.bytesPending.store(uint64(s.main.Len()))
		pending := s.main.Len()
		s.sendCond.Broadcast()
		s.sendMu.Unlock()

		if err != nil {
			kind, retry := neterr.Classify(err)
			if retry {
				continue
			}
			s.sendMu.Lock()
			if s.sendErr == nil {
				s.sendErr = neterr.New(kind, err)
			}
			s.sendInFlight = false
			s.sendCond.Broadcast()
			s.sendMu.Unlock()

			s.handler.OnError(s, kind, err)
			s.finish(neterr.New(kind, err))
			return
		}

		s.handler.OnSent(s, n, pending)
	}
}

// writeAll writes chunk to the connection, looping over short writes — Go's
// net.Conn.Write contract already guarantees either n == len(chunk) or a
// non-nil error, but looping defensively costs nothing and matches the
// "partial completion advances offset, another send is armed" language of
// spec §4.1 for transports where that contract is weaker (e.g. a
// hand-rolled io.Writer in tests).
func (s *Session) writeAll(chunk []byte) (int, error) {
	total := 0
	for total < len(chunk) {
		n, err := s.conn.Write(chunk[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// Done returns a channel closed once the session reaches Disconnected.
func (s *Session) Done() <-chan struct{} {
	return s.doneCh
}
