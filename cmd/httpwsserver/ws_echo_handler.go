package main

import (
	"log/slog"

	"github.com/nvremote/netflux/wscodec"
)

// wsEchoHandler implements the WebSocket handshake-and-echo scenario: every
// text or binary message it receives comes back as a binary frame of the
// same payload.
type wsEchoHandler struct {
	wscodec.BaseHandler
	logger *slog.Logger
}

func newWSEchoHandler(logger *slog.Logger) *wsEchoHandler {
	return &wsEchoHandler{logger: logger}
}

func (h *wsEchoHandler) OnOpen(c *wscodec.Codec) {
	h.logger.Info("websocket session opened")
}

func (h *wsEchoHandler) OnMessage(c *wscodec.Codec, opcode wscodec.Opcode, data []byte) {
	if err := c.SendBinary(data); err != nil {
		h.logger.Warn("websocket echo send failed", "error", err)
	}
}

func (h *wsEchoHandler) OnClose(c *wscodec.Codec, code int, reason string) {
	h.logger.Info("websocket session closed", "code", code, "reason", reason)
}

func (h *wsEchoHandler) OnError(c *wscodec.Codec, err error) {
	h.logger.Warn("websocket session error", "error", err)
}
