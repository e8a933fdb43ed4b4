package main

import (
	"log/slog"
	"net"

	"github.com/nvremote/netflux/neterr"
	"github.com/nvremote/netflux/session"
)

// echoHandler re-sends every received slice back to its own session
// unchanged, the worked example from the end-to-end echo scenario.
type echoHandler struct {
	session.BaseHandler
	logger *slog.Logger
	peer   net.Addr
}

func newEchoHandler(peer net.Addr, logger *slog.Logger) *echoHandler {
	return &echoHandler{logger: logger, peer: peer}
}

func (h *echoHandler) OnConnected(s *session.Session) {
	h.logger.Info("client connected", "id", s.ID(), "remote", h.peer)
}

func (h *echoHandler) OnDisconnected(s *session.Session) {
	h.logger.Info("client disconnected", "id", s.ID())
}

func (h *echoHandler) OnReceived(s *session.Session, data []byte) {
	if err := s.SendAsync(data); err != nil {
		h.logger.Warn("echo send failed", "id", s.ID(), "error", err)
	}
}

func (h *echoHandler) OnError(s *session.Session, kind neterr.Kind, err error) {
	h.logger.Warn("session error", "id", s.ID(), "kind", kind, "error", err)
}
