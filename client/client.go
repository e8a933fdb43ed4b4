// Package client implements the connector side of the library: dialing a
// TCP, TLS, or Unix-domain endpoint and handing the resulting net.Conn to a
// session.Session, with optional automatic reconnect.
package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/nvremote/netflux/dnsresolve"
	"github.com/nvremote/netflux/neterr"
	"github.com/nvremote/netflux/session"
	"github.com/nvremote/netflux/timer"
)

// reconnectDelay is the fixed one-shot backoff before a reconnect attempt,
// per spec §4.5.
const reconnectDelay = time.Second

// Client is a single reconnecting (or one-shot) outbound connection. It
// owns at most one live session.Session at a time.
type Client struct {
	network string
	addr    string
	tlsCfg  *tls.Config
	opts    session.Options
	newH    func() session.Handler
	logger  *slog.Logger

	autoReconnect bool
	dialTimeout   time.Duration

	mu      sync.Mutex
	current *session.Session
	stopped bool
	timer   *timer.Timer
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithTLS dials through TLS using cfg, which should set ServerName unless
// InsecureSkipVerify is intended.
func WithTLS(cfg *tls.Config) Option {
	return func(c *Client) { c.tlsCfg = cfg }
}

// WithOptions sets the socket tuning Options applied after dialing.
func WithOptions(opts session.Options) Option {
	return func(c *Client) { c.opts = opts }
}

// WithAutoReconnect enables spec §4.5's reconnect behavior: on any
// disconnect other than an explicit Stop, redial after a fixed one-second
// delay.
func WithAutoReconnect() Option {
	return func(c *Client) { c.autoReconnect = true }
}

// WithDialTimeout bounds each connection attempt. Default 10s.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

// WithLogger overrides the default slog.Default() logger; nil keeps the
// default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New constructs a Client targeting network/addr ("tcp", "tcp4", "tcp6", or
// "unix"). newHandler is called once per connection attempt so a fresh
// Handler value can be produced if the caller wants per-attempt state.
func New(network, addr string, newHandler func() session.Handler, opts ...Option) *Client {
	c := &Client{
		network:     network,
		addr:        addr,
		opts:        session.DefaultOptions(),
		newH:        newHandler,
		logger:      slog.Default(),
		dialTimeout: 10 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect dials the target and activates a session.Session over the
// resulting connection. If WithAutoReconnect is set, a background redial
// loop takes over once this initial session disconnects.
func (c *Client) Connect(ctx context.Context) error {
	sess, err := c.dialAndConnect(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.current = sess
	c.mu.Unlock()

	if c.autoReconnect {
		go c.watch(sess)
	}
	return nil
}

func (c *Client) dialAndConnect(ctx context.Context) (*session.Session, error) {
	dialer := &net.Dialer{Timeout: c.dialTimeout, Control: c.opts.Control}

	addr, err := c.resolveAddr(ctx)
	if err != nil {
		return nil, err
	}

	conn, err := dialer.DialContext(ctx, c.network, addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s %s: %w", c.network, addr, err)
	}

	if err := c.opts.Apply(conn); err != nil {
		c.logger.Warn("applying socket options failed", "error", err)
	}

	netConn := net.Conn(conn)
	if c.tlsCfg != nil {
		netConn = session.WrapClientTLS(conn, c.tlsCfg)
	}

	sess := session.New(c.newH(), nil, c.opts)
	if err := sess.Connect(netConn); err != nil {
		kind, _ := neterr.Classify(err)
		c.logger.Warn("session connect failed", "addr", c.addr, "kind", kind, "error", err)
		return nil, err
	}
	return sess, nil
}

// resolveAddr runs the DnsFacade lookup for c.addr on every dial attempt,
// including each auto-reconnect: a bare "unix" path is used as-is, and a
// "host:port" address has its host resolved through dnsresolve before the
// Dialer ever sees a name. An address that doesn't split into host/port is
// passed through unchanged and left for the Dialer to reject.
func (c *Client) resolveAddr(ctx context.Context) (string, error) {
	switch c.network {
	case "unix", "unixpacket", "unixgram":
		return c.addr, nil
	}

	host, port, err := net.SplitHostPort(c.addr)
	if err != nil {
		return c.addr, nil
	}

	ip, err := dnsresolve.ResolveOne(ctx, host)
	if err != nil {
		return "", fmt.Errorf("client: %w", err)
	}
	return net.JoinHostPort(ip.String(), port), nil
}

// watch waits for sess to go terminal, then redials after reconnectDelay,
// repeating the delay-then-dial cycle until Stop is called or a dial
// succeeds, at which point watch re-arms itself on the new session.
func (c *Client) watch(sess *session.Session) {
	<-sess.Done()
	c.scheduleReconnect()
}

func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.timer = timer.After(reconnectDelay, c.attemptReconnect)
	c.mu.Unlock()
}

func (c *Client) attemptReconnect() {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return
	}

	newSess, err := c.dialAndConnect(context.Background())
	if err != nil {
		c.logger.Warn("reconnect attempt failed", "addr", c.addr, "error", err)
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	c.current = newSess
	c.mu.Unlock()

	go c.watch(newSess)
}

// Session returns the currently active session, or nil if not connected.
func (c *Client) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Send is a convenience wrapper around Session().Send.
func (c *Client) Send(data []byte) error {
	sess := c.Session()
	if sess == nil {
		return session.ErrNotConnected
	}
	return sess.Send(data)
}

// Stop disables auto-reconnect and disconnects the current session, if any.
func (c *Client) Stop() {
	c.mu.Lock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
	}
	sess := c.current
	c.mu.Unlock()

	if sess != nil {
		sess.Disconnect()
	}
}
