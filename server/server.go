// Package server implements the listen/accept side of the library: one
// Server owns a net.Listener (TCP, TLS, or Unix domain) and a registry of
// the session.Session instances it has accepted, and fans outbound writes
// out to the whole registry (Multicast); there is no call that targets a
// subset of it.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nvremote/netflux/dnsresolve"
	"github.com/nvremote/netflux/neterr"
	"github.com/nvremote/netflux/session"
	"github.com/nvremote/netflux/sockid"
)

// HandlerFactory builds a per-connection Handler. A Server calls it once per
// accepted connection so each Session can carry its own state if the caller
// wants that, while still sharing one Server-level registry.
type HandlerFactory func(peer net.Addr) session.Handler

// Server accepts connections on a single listener and keeps a registry of
// the sessions it spawns, satisfying session.Owner so sessions unregister
// themselves on disconnect without the server polling for liveness.
type Server struct {
	network string // "tcp", "tcp4", "tcp6", or "unix"
	addr    string
	tlsCfg  *tls.Config
	opts    session.Options
	newH    HandlerFactory
	logger  *slog.Logger

	admin *adminServer

	mu       sync.RWMutex
	listener net.Listener
	sessions map[sockid.ID]*session.Session
	running  bool

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithTLS terminates TLS on accepted connections using cfg before the
// session's receive loop is armed — the TLS handshake runs synchronously
// inside session.Session.Connect, matching spec §4.2.
func WithTLS(cfg *tls.Config) Option {
	return func(s *Server) { s.tlsCfg = cfg }
}

// WithOptions sets the socket tuning Options applied to every accepted
// connection.
func WithOptions(opts session.Options) Option {
	return func(s *Server) { s.opts = opts }
}

// WithLogger overrides the default slog.Default() logger; nil keeps the
// default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAdmin starts a small gorilla/mux JSON status endpoint on addr
// alongside the main listener, per SPEC_FULL.md's admin surface addition.
// It is entirely optional and separate from the data-plane listener.
func WithAdmin(addr string) Option {
	return func(s *Server) { s.admin = newAdminServer(addr) }
}

// New constructs a Server that will listen on network/addr once Start is
// called. network is one of "tcp", "tcp4", "tcp6", "unix". newHandler is
// invoked once per accepted connection to build that session's Handler.
func New(network, addr string, newHandler HandlerFactory, opts ...Option) *Server {
	s := &Server{
		network:  network,
		addr:     addr,
		opts:     session.DefaultOptions(),
		newH:     newHandler,
		logger:   slog.Default(),
		sessions: make(map[sockid.ID]*session.Session),
		stopCh:   make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start binds the listener and begins accepting in a background goroutine.
// It returns once the listener is bound, not once it stops accepting.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server: already running")
	}

	var lc net.ListenConfig
	if s.network != "unix" {
		lc.Control = s.opts.Control
	}

	addr, err := s.resolveBindAddr(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	ln, err := lc.Listen(ctx, s.network, addr)
	if err != nil {
		s.mu.Unlock()
		kind, _ := neterr.Classify(err)
		return neterr.New(kind, fmt.Errorf("server: listen %s %s: %w", s.network, addr, err))
	}
	s.listener = ln
	s.running = true
	s.mu.Unlock()

	s.logger.Info("server listening", "network", s.network, "addr", ln.Addr().String())

	if s.admin != nil {
		if err := s.admin.start(s); err != nil {
			return fmt.Errorf("server: admin endpoint: %w", err)
		}
	}

	go s.acceptLoop()
	return nil
}

// resolveBindAddr runs the DnsFacade lookup for s.addr at Start, for
// symmetry with Client's dial-side resolution: any non-empty host, named or
// literal, is resolved through dnsresolve before the ListenConfig sees it (a
// literal address resolves to itself). An empty host meaning "all
// interfaces", "unix" listeners, and addresses that don't split into
// host/port are passed through unchanged.
func (s *Server) resolveBindAddr(ctx context.Context) (string, error) {
	if s.network == "unix" {
		return s.addr, nil
	}

	host, port, err := net.SplitHostPort(s.addr)
	if err != nil || host == "" {
		return s.addr, nil
	}

	ip, err := dnsresolve.ResolveOne(ctx, host)
	if err != nil {
		return "", fmt.Errorf("server: %w", err)
	}
	return net.JoinHostPort(ip.String(), port), nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}
		go s.onAccepted(conn)
	}
}

func (s *Server) onAccepted(conn net.Conn) {
	if err := s.opts.Apply(conn); err != nil {
		s.logger.Warn("applying socket options failed", "error", err)
	}

	handler := s.newH(conn.RemoteAddr())
	sess := session.New(handler, s, s.opts)

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()

	netConn := conn
	if s.tlsCfg != nil {
		netConn = session.WrapServerTLS(conn, s.tlsCfg)
	}

	if err := sess.Connect(netConn); err != nil {
		kind, _ := neterr.Classify(err)
		s.logger.Warn("session connect failed", "remote", conn.RemoteAddr(), "kind", kind, "error", err)
		s.Unregister(sess.ID())
		return
	}

	s.logger.Debug("session accepted", "id", sess.ID().String(), "remote", sess.RemoteAddr())
}

// Unregister implements session.Owner: it removes a disconnected session
// from the registry. Sessions call this themselves on reaching the
// terminal state, so Server never has to poll for liveness.
func (s *Server) Unregister(id sockid.ID) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Sessions returns a point-in-time snapshot of the currently connected
// sessions.
func (s *Server) Sessions() []*session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Count returns the number of currently registered sessions.
func (s *Server) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Multicast fans data out to every currently registered session via
// SendAsync, returning the first error encountered (if any) after
// attempting all of them.
func (s *Server) Multicast(data []byte) error {
	var firstErr error
	for _, sess := range s.Sessions() {
		if err := sess.SendAsync(data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stop closes the listener, disconnects every registered session
// concurrently via errgroup, and waits for all of them to finish.
func (s *Server) Stop() error {
	var stopErr error
	s.stopOnce.Do(func() {
		close(s.stopCh)

		s.mu.Lock()
		s.running = false
		ln := s.listener
		s.mu.Unlock()

		if ln != nil {
			stopErr = ln.Close()
		}
		if s.admin != nil {
			_ = s.admin.stop()
		}

		var g errgroup.Group
		for _, sess := range s.Sessions() {
			sess := sess
			g.Go(func() error {
				sess.Disconnect()
				<-sess.Done()
				return nil
			})
		}
		_ = g.Wait()

		s.logger.Info("server stopped", "network", s.network, "addr", s.addr)
	})
	return stopErr
}

// Addr returns the bound listener address, or nil if Start hasn't run.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
