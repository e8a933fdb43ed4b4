package client

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nvremote/netflux/session"
)

type recordingHandler struct {
	session.BaseHandler

	mu       sync.Mutex
	received []byte
	connects atomic.Int32
}

func (h *recordingHandler) OnConnected(*session.Session) {
	h.connects.Add(1)
}

func (h *recordingHandler) OnReceived(s *session.Session, data []byte) {
	h.mu.Lock()
	h.received = append(h.received, data...)
	h.mu.Unlock()
}

func (h *recordingHandler) snapshot() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return string(h.received)
}

func startEchoListener(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				buf := make([]byte, 4096)
				for {
					n, err := c.Read(buf)
					if n > 0 {
						if _, werr := c.Write(buf[:n]); werr != nil {
							return
						}
					}
					if err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return ln
}

func TestResolveAddrLiteralIP(t *testing.T) {
	c := New("tcp", "127.0.0.1:9999", func() session.Handler { return session.BaseHandler{} })
	addr, err := c.resolveAddr(context.Background())
	if err != nil {
		t.Fatalf("resolveAddr: %v", err)
	}
	if addr != "127.0.0.1:9999" {
		t.Fatalf("addr = %q, want %q", addr, "127.0.0.1:9999")
	}
}

func TestResolveAddrUnixPassthrough(t *testing.T) {
	c := New("unix", "/tmp/netflux.sock", func() session.Handler { return session.BaseHandler{} })
	addr, err := c.resolveAddr(context.Background())
	if err != nil {
		t.Fatalf("resolveAddr: %v", err)
	}
	if addr != "/tmp/netflux.sock" {
		t.Fatalf("addr = %q, want the unix path unchanged", addr)
	}
}

func TestClientConnectSendReceive(t *testing.T) {
	ln := startEchoListener(t)
	defer ln.Close()

	h := &recordingHandler{}
	c := New("tcp", ln.Addr().String(), func() session.Handler { return h })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Stop()

	if err := c.Send([]byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for h.snapshot() != "ping" && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := h.snapshot(); got != "ping" {
		t.Fatalf("received %q, want %q", got, "ping")
	}
}

func TestClientAutoReconnect(t *testing.T) {
	ln := startEchoListener(t)
	defer ln.Close()

	h := &recordingHandler{}
	c := New("tcp", ln.Addr().String(), func() session.Handler { return h }, WithAutoReconnect())

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Stop()

	first := c.Session()
	if first == nil {
		t.Fatal("no session after Connect")
	}
	first.Disconnect()

	deadline := time.Now().Add(3 * time.Second)
	for h.connects.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if h.connects.Load() < 2 {
		t.Fatalf("OnConnected fired %d times, want at least 2 after auto-reconnect", h.connects.Load())
	}
}

func TestClientStopPreventsReconnect(t *testing.T) {
	ln := startEchoListener(t)

	h := &recordingHandler{}
	c := New("tcp", ln.Addr().String(), func() session.Handler { return h }, WithAutoReconnect())

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	c.Stop()
	ln.Close()

	time.Sleep(50 * time.Millisecond)
	connectsAfterStop := h.connects.Load()

	time.Sleep(1500 * time.Millisecond)
	if h.connects.Load() != connectsAfterStop {
		t.Fatal("client reconnected after Stop")
	}
}
