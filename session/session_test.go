package session

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nvremote/netflux/neterr"
)

type recordingHandler struct {
	BaseHandler

	mu        sync.Mutex
	connected bool
	received  []byte
	errs      []neterr.Kind
	disc      atomic.Bool
	emptyN    atomic.Int32
}

func (h *recordingHandler) OnConnected(s *Session) {
	h.mu.Lock()
	h.connected = true
	h.mu.Unlock()
}

func (h *recordingHandler) OnReceived(s *Session, data []byte) {
	h.mu.Lock()
	h.received = append(h.received, data...)
	h.mu.Unlock()
}

func (h *recordingHandler) OnError(s *Session, kind neterr.Kind, err error) {
	h.mu.Lock()
	h.errs = append(h.errs, kind)
	h.mu.Unlock()
}

func (h *recordingHandler) OnDisconnected(s *Session) {
	h.disc.Store(true)
}

func (h *recordingHandler) OnEmpty(s *Session) {
	h.emptyN.Add(1)
}

func (h *recordingHandler) snapshotReceived() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]byte, len(h.received))
	copy(out, h.received)
	return out
}

func newPipeSessions(t *testing.T) (clientSess, serverSess *Session, clientH, serverH *recordingHandler) {
	t.Helper()
	clientConn, serverConn := net.Pipe()

	clientH = &recordingHandler{}
	serverH = &recordingHandler{}

	clientSess = New(clientH, nil, DefaultOptions())
	serverSess = New(serverH, nil, DefaultOptions())

	if err := serverSess.Connect(serverConn); err != nil {
		t.Fatalf("server Connect: %v", err)
	}
	if err := clientSess.Connect(clientConn); err != nil {
		t.Fatalf("client Connect: %v", err)
	}
	return
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestConnectInvokesOnConnectedAndOnEmpty(t *testing.T) {
	clientSess, serverSess, clientH, _ := newPipeSessions(t)
	defer clientSess.Disconnect()
	defer serverSess.Disconnect()

	clientH.mu.Lock()
	connected := clientH.connected
	clientH.mu.Unlock()
	if !connected {
		t.Fatal("OnConnected was not invoked")
	}
	if clientH.emptyN.Load() == 0 {
		t.Fatal("OnEmpty was not invoked after Connect with nothing queued")
	}
}

func TestSendReceiveEcho(t *testing.T) {
	clientSess, serverSess, _, serverH := newPipeSessions(t)
	defer clientSess.Disconnect()
	defer serverSess.Disconnect()

	if err := clientSess.Send([]byte("test")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		return serverSess.BytesReceived() == 4
	})

	if got := string(serverH.snapshotReceived()); got != "test" {
		t.Fatalf("received %q, want %q", got, "test")
	}
	if clientSess.BytesSent() != 4 {
		t.Fatalf("BytesSent() = %d, want 4", clientSess.BytesSent())
	}
}

func TestOrderedConcurrentSends(t *testing.T) {
	clientSess, serverSess, _, serverH := newPipeSessions(t)
	defer clientSess.Disconnect()
	defer serverSess.Disconnect()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := fmt.Sprintf("[%03d]", i)
			if err := clientSess.Send([]byte(msg)); err != nil {
				t.Errorf("Send(%d): %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	waitFor(t, 2*time.Second, func() bool {
		return serverSess.BytesReceived() == uint64(n*5)
	})

	got := serverH.snapshotReceived()
	seen := make(map[string]bool, n)
	for i := 0; i+5 <= len(got); i += 5 {
		seen[string(got[i:i+5])] = true
	}
	for i := 0; i < n; i++ {
		if msg := fmt.Sprintf("[%03d]", i); !seen[msg] {
			t.Fatalf("message %q not received as one contiguous chunk", msg)
		}
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	clientSess, serverSess, _, clientH := newPipeSessions(t)
	defer serverSess.Disconnect()

	if !clientSess.Disconnect() {
		t.Fatal("first Disconnect() = false, want true")
	}
	if clientSess.Disconnect() {
		t.Fatal("second Disconnect() = true, want false")
	}
	if !clientH.disc.Load() {
		t.Fatal("OnDisconnected not invoked")
	}
}

func TestSendAfterDisconnectFails(t *testing.T) {
	clientSess, serverSess, _, _ := newPipeSessions(t)
	defer serverSess.Disconnect()

	clientSess.Disconnect()
	if err := clientSess.Send([]byte("x")); err == nil {
		t.Fatal("Send after Disconnect returned nil error")
	}
}

func TestPeerCloseReportsDisconnectNotError(t *testing.T) {
	clientSess, serverSess, _, serverH := newPipeSessions(t)
	defer serverSess.Disconnect()

	clientSess.Disconnect()

	waitFor(t, time.Second, func() bool { return serverH.disc.Load() })

	serverH.mu.Lock()
	errs := append([]neterr.Kind(nil), serverH.errs...)
	serverH.mu.Unlock()
	if len(errs) != 0 {
		t.Fatalf("orderly close reported OnError kinds %v, want none", errs)
	}
}

func TestCountersMonotonic(t *testing.T) {
	clientSess, serverSess, _, _ := newPipeSessions(t)
	defer clientSess.Disconnect()
	defer serverSess.Disconnect()

	var lastSent, lastRecv uint64
	for i := 0; i < 20; i++ {
		if err := clientSess.Send([]byte("abcd")); err != nil {
			t.Fatalf("Send: %v", err)
		}
		if s := clientSess.BytesSent(); s < lastSent {
			t.Fatalf("BytesSent decreased: %d -> %d", lastSent, s)
		} else {
			lastSent = s
		}
		waitFor(t, time.Second, func() bool { return serverSess.BytesReceived() >= lastRecv })
		lastRecv = serverSess.BytesReceived()
	}
}
