package wscodec

import (
	"bytes"
	"encoding/binary"
	"log/slog"

	"github.com/nvremote/netflux/httpcodec"
	"github.com/nvremote/netflux/neterr"
	"github.com/nvremote/netflux/session"
)

// Role distinguishes which side of the handshake a Codec performs.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

// Handler is the WebSocket-level callback surface a Codec dispatches to,
// analogous to session.Handler but speaking assembled messages instead of
// raw bytes.
type Handler interface {
	OnOpen(c *Codec)
	OnMessage(c *Codec, opcode Opcode, data []byte)
	OnClose(c *Codec, code int, reason string)
	OnError(c *Codec, err error)
}

// BaseHandler no-ops every callback; embed and override selectively.
type BaseHandler struct{}

func (BaseHandler) OnOpen(*Codec)                   {}
func (BaseHandler) OnMessage(*Codec, Opcode, []byte) {}
func (BaseHandler) OnClose(*Codec, int, string)      {}
func (BaseHandler) OnError(*Codec, error)            {}

var _ Handler = BaseHandler{}

// Codec is a session.Handler that performs the HTTP upgrade handshake once,
// then switches to framing every subsequent byte as WebSocket frames,
// coalescing continuation frames into whole messages before calling the
// wrapped Handler.
type Codec struct {
	role    Role
	handler Handler
	logger  *slog.Logger

	urlPath string
	host    string

	sess *session.Session

	handshakeDone bool
	httpParser    *httpcodec.Parser
	frames        frameDecoder
	clientKey     string

	fragOpcode  Opcode
	fragmenting bool
	fragBuf     bytes.Buffer

	closeSent bool
}

// NewServerCodec builds a Codec that waits for an incoming upgrade request.
func NewServerCodec(handler Handler) *Codec {
	c := &Codec{role: RoleServer, handler: handler, logger: slog.Default()}
	c.httpParser = httpcodec.NewParser(httpcodec.ModeRequest)
	c.wireParser()
	c.frames.OnFrame = c.handleFrame
	c.frames.OnError = c.handleFrameError
	return c
}

// NewClientCodec builds a Codec that sends the upgrade request on connect
// and expects a 101 response to urlPath on host.
func NewClientCodec(handler Handler, urlPath, host string) *Codec {
	c := &Codec{role: RoleClient, handler: handler, logger: slog.Default(), urlPath: urlPath, host: host}
	c.httpParser = httpcodec.NewParser(httpcodec.ModeResponse)
	c.wireParser()
	c.frames.OnFrame = c.handleFrame
	c.frames.OnError = c.handleFrameError
	return c
}

func (c *Codec) wireParser() {
	c.httpParser.OnRequest = c.onHandshakeRequest
	c.httpParser.OnResponse = c.onHandshakeResponse
	c.httpParser.OnError = func(kind neterr.Kind, err error) {
		c.handler.OnError(c, err)
	}
}

var _ session.Handler = (*Codec)(nil)

func (c *Codec) OnConnected(s *session.Session) {
	c.sess = s
	if c.role == RoleClient {
		req, key, err := ClientHandshakeRequest(c.urlPath, c.host)
		if err != nil {
			c.handler.OnError(c, err)
			s.Disconnect()
			return
		}
		c.clientKey = key
		_ = s.SendAsync(httpcodec.EncodeRequest(req))
	}
}

func (c *Codec) OnHandshaked(*session.Session) {}

func (c *Codec) OnDisconnected(s *session.Session) {
	c.handler.OnClose(c, 1006, "")
}

func (c *Codec) OnReceived(s *session.Session, data []byte) {
	if !c.handshakeDone {
		c.httpParser.Feed(data)
		return
	}
	c.frames.Feed(data)
}

func (c *Codec) OnSending(*session.Session, int) bool { return true }
func (c *Codec) OnSent(*session.Session, int, int)    {}
func (c *Codec) OnEmpty(*session.Session)             {}

func (c *Codec) OnError(s *session.Session, kind neterr.Kind, err error) {
	c.handler.OnError(c, err)
}

func (c *Codec) onHandshakeRequest(req *httpcodec.Request) {
	resp, err := ServerHandshake(req)
	if err != nil {
		c.handler.OnError(c, err)
		badResp := httpcodec.MakeErrorResponse(400, err.Error())
		_ = c.sess.SendAsync(httpcodec.EncodeResponse(badResp))
		c.sess.Disconnect()
		return
	}
	if err := c.sess.SendAsync(httpcodec.EncodeResponse(resp)); err != nil {
		c.handler.OnError(c, err)
		return
	}
	c.completeHandshake()
}

func (c *Codec) onHandshakeResponse(resp *httpcodec.Response) {
	if err := VerifyClientHandshakeResponse(resp, c.clientKey); err != nil {
		c.handler.OnError(c, err)
		c.sess.Disconnect()
		return
	}
	c.completeHandshake()
}

func (c *Codec) completeHandshake() {
	c.handshakeDone = true
	leftover := c.httpParser.TakeBuffered()
	c.handler.OnOpen(c)
	if len(leftover) > 0 {
		c.frames.Feed(leftover)
	}
}

// handleFrame dispatches a decoded frame: control frames are handled
// immediately and bypass coalescing; data frames accumulate in fragBuf
// until a Fin frame completes the message.
func (c *Codec) handleFrame(f Frame) {
	if f.Opcode.IsControl() {
		c.handleControlFrame(f)
		return
	}

	if f.Opcode != OpContinuation {
		c.fragOpcode = f.Opcode
		c.fragBuf.Reset()
		c.fragmenting = true
	}
	c.fragBuf.Write(f.Payload)

	if f.Fin {
		data := append([]byte(nil), c.fragBuf.Bytes()...)
		c.fragBuf.Reset()
		c.fragmenting = false
		c.handler.OnMessage(c, c.fragOpcode, data)
	}
}

func (c *Codec) handleControlFrame(f Frame) {
	switch f.Opcode {
	case OpPing:
		_ = c.sendFrame(Frame{Fin: true, Opcode: OpPong, Payload: f.Payload})
	case OpPong:
		// no-op: nothing to reconcile against for an unsolicited pong
	case OpClose:
		code, reason := decodeClosePayload(f.Payload)
		if !c.closeSent {
			_ = c.sendFrame(Frame{Fin: true, Opcode: OpClose, Payload: f.Payload})
			c.closeSent = true
		}
		c.handler.OnClose(c, code, reason)
		c.sess.Disconnect()
	}
}

func (c *Codec) handleFrameError(err error) {
	c.handler.OnError(c, err)
	c.sess.Disconnect()
}

func (c *Codec) sendFrame(f Frame) error {
	if c.role == RoleClient {
		f.Masked = true
	}
	wire, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	return c.sess.SendAsync(wire)
}

// SendText sends a single-frame text message.
func (c *Codec) SendText(data []byte) error {
	return c.sendFrame(Frame{Fin: true, Opcode: OpText, Payload: data})
}

// SendBinary sends a single-frame binary message.
func (c *Codec) SendBinary(data []byte) error {
	return c.sendFrame(Frame{Fin: true, Opcode: OpBinary, Payload: data})
}

// Close sends a close frame with code/reason and marks the local side as
// having initiated closure; the session disconnects once the peer's close
// echo arrives (or the read side errors out).
func (c *Codec) Close(code int, reason string) error {
	c.closeSent = true
	return c.sendFrame(Frame{Fin: true, Opcode: OpClose, Payload: encodeClosePayload(code, reason)})
}

func encodeClosePayload(code int, reason string) []byte {
	buf := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(buf[:2], uint16(code))
	copy(buf[2:], reason)
	return buf
}

func decodeClosePayload(payload []byte) (int, string) {
	if len(payload) < 2 {
		return 1005, ""
	}
	code := int(binary.BigEndian.Uint16(payload[:2]))
	return code, string(payload[2:])
}

// Session returns the underlying session.Session, or nil before OnConnected.
func (c *Codec) Session() *session.Session { return c.sess }
