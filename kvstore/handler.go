package kvstore

import (
	"log/slog"

	"github.com/nvremote/netflux/httpcodec"
	"github.com/nvremote/netflux/neterr"
	"github.com/nvremote/netflux/session"
)

// Handler is a session.Handler that speaks plain HTTP/1.1 over a raw
// session.Session, dispatching each parsed request to a Store. Missing keys
// are reported as 404, consistently, per the GET-on-absent-key convention.
type Handler struct {
	store  *Store
	logger *slog.Logger
	parser *httpcodec.Parser
	sess   *session.Session
}

// NewHandler builds a Handler backed by store. A nil logger falls back to
// slog.Default().
func NewHandler(store *Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{store: store, logger: logger}
	h.parser = httpcodec.NewParser(httpcodec.ModeRequest)
	h.parser.OnRequest = h.onRequest
	h.parser.OnError = h.onParseError
	return h
}

var _ session.Handler = (*Handler)(nil)

func (h *Handler) OnConnected(s *session.Session)  { h.sess = s }
func (h *Handler) OnHandshaked(*session.Session)   {}
func (h *Handler) OnDisconnected(*session.Session) {}

func (h *Handler) OnReceived(s *session.Session, data []byte) {
	h.parser.Feed(data)
}

func (h *Handler) OnSending(*session.Session, int) bool { return true }
func (h *Handler) OnSent(*session.Session, int, int)    {}
func (h *Handler) OnEmpty(*session.Session)             {}

func (h *Handler) OnError(s *session.Session, kind neterr.Kind, err error) {
	h.logger.Warn("kvstore session error", "kind", kind, "error", err)
}

func (h *Handler) onParseError(kind neterr.Kind, err error) {
	h.logger.Warn("kvstore malformed request", "kind", kind, "error", err)
	resp := httpcodec.MakeErrorResponse(400, "malformed request")
	_ = h.sess.SendAsync(httpcodec.EncodeResponse(resp))
}

func (h *Handler) onRequest(req *httpcodec.Request) {
	resp := h.dispatch(req)
	if err := h.sess.SendAsync(httpcodec.EncodeResponse(resp)); err != nil {
		h.logger.Warn("kvstore failed to send response", "error", err)
	}
}

func (h *Handler) dispatch(req *httpcodec.Request) *httpcodec.Response {
	switch req.Method {
	case "GET":
		v, ok := h.store.Get(req.URL)
		if !ok {
			return httpcodec.MakeErrorResponse(404, "not found")
		}
		return httpcodec.MakeGetResponse(v)
	case "HEAD":
		v, ok := h.store.Get(req.URL)
		if !ok {
			return httpcodec.MakeErrorResponse(404, "not found")
		}
		return httpcodec.MakeHeadResponse(v)
	case "POST", "PUT":
		h.store.Put(req.URL, req.Body)
		return httpcodec.MakeOkResponse()
	case "DELETE":
		if !h.store.Delete(req.URL) {
			return httpcodec.MakeErrorResponse(404, "not found")
		}
		return httpcodec.MakeOkResponse()
	case "OPTIONS":
		return httpcodec.MakeOptionsResponse()
	case "TRACE":
		return httpcodec.MakeTraceResponse(req.Raw)
	default:
		return httpcodec.MakeErrorResponse(405, "method not allowed")
	}
}
