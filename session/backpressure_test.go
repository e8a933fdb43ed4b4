package session

import (
	"net"
	"testing"

	"golang.org/x/time/rate"
)

func TestPendingLimiterRejectsOverCap(t *testing.T) {
	lim := NewPendingLimiter(100, rate.Inf, 0)
	if !lim.Allow(50) {
		t.Fatal("Allow(50) = false under cap 100")
	}
	if lim.Allow(150) {
		t.Fatal("Allow(150) = true over cap 100")
	}
}

func TestPendingLimiterNoCapAlwaysAllows(t *testing.T) {
	lim := NewPendingLimiter(0, rate.Inf, 0)
	if !lim.Allow(1 << 30) {
		t.Fatal("Allow huge size = false with MaxPending disabled")
	}
}

type gatedHandler struct {
	BaseHandler
	gate *PendingLimiter
}

func (h *gatedHandler) OnSending(s *Session, size int) bool {
	return h.gate.Allow(size)
}

func TestOnSendingVetoRejectsWrite(t *testing.T) {
	clientConnHandler := &gatedHandler{gate: NewPendingLimiter(1, rate.Inf, 0)}
	serverH := &recordingHandler{}

	cSess := New(clientConnHandler, nil, DefaultOptions())
	sSess := New(serverH, nil, DefaultOptions())

	c, s := net.Pipe()
	if err := sSess.Connect(s); err != nil {
		t.Fatalf("server connect: %v", err)
	}
	if err := cSess.Connect(c); err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer cSess.Disconnect()
	defer sSess.Disconnect()

	if err := cSess.Send([]byte("hi")); err == nil {
		t.Fatal("expected veto for a write exceeding the pending cap")
	}
}
