package wscodec

import (
	"testing"

	"github.com/nvremote/netflux/httpcodec"
)

func TestServerHandshakeAcceptsValidUpgrade(t *testing.T) {
	req := &httpcodec.Request{
		Method:  "GET",
		URL:     "/ws",
		Version: "HTTP/1.1",
		Headers: []httpcodec.Header{
			{Name: "Upgrade", Value: "websocket"},
			{Name: "Connection", Value: "Upgrade"},
			{Name: "Sec-WebSocket-Version", Value: "13"},
			{Name: "Sec-WebSocket-Key", Value: "dGhlIHNhbXBsZSBub25jZQ=="},
		},
	}

	resp, err := ServerHandshake(req)
	if err != nil {
		t.Fatalf("ServerHandshake: %v", err)
	}
	if resp.StatusCode != 101 {
		t.Fatalf("status = %d, want 101", resp.StatusCode)
	}
	accept, ok := resp.Header("Sec-WebSocket-Accept")
	if !ok {
		t.Fatal("missing Sec-WebSocket-Accept")
	}
	const want = "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" // RFC 6455 §1.3 worked example
	if accept != want {
		t.Fatalf("Sec-WebSocket-Accept = %q, want %q", accept, want)
	}
}

func TestServerHandshakeRejectsMissingUpgrade(t *testing.T) {
	req := &httpcodec.Request{
		Method:  "GET",
		URL:     "/ws",
		Version: "HTTP/1.1",
		Headers: []httpcodec.Header{
			{Name: "Connection", Value: "Upgrade"},
			{Name: "Sec-WebSocket-Version", Value: "13"},
			{Name: "Sec-WebSocket-Key", Value: "dGhlIHNhbXBsZSBub25jZQ=="},
		},
	}
	if _, err := ServerHandshake(req); err == nil {
		t.Fatal("expected error for missing Upgrade header")
	}
}

func TestClientServerHandshakeRoundTrip(t *testing.T) {
	req, key, err := ClientHandshakeRequest("/ws", "example.com")
	if err != nil {
		t.Fatalf("ClientHandshakeRequest: %v", err)
	}

	resp, err := ServerHandshake(req)
	if err != nil {
		t.Fatalf("ServerHandshake: %v", err)
	}

	if err := VerifyClientHandshakeResponse(resp, key); err != nil {
		t.Fatalf("VerifyClientHandshakeResponse: %v", err)
	}
}

func TestVerifyClientHandshakeResponseRejectsWrongAccept(t *testing.T) {
	resp := &httpcodec.Response{
		StatusCode: 101,
		Headers:    []httpcodec.Header{{Name: "Sec-WebSocket-Accept", Value: "bogus"}},
	}
	if err := VerifyClientHandshakeResponse(resp, "somekey"); err == nil {
		t.Fatal("expected error for mismatched accept value")
	}
}
