package kvstore_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/nvremote/netflux/kvstore"
	"github.com/nvremote/netflux/server"
	"github.com/nvremote/netflux/session"
)

// doRequest drives one HTTP/1.1 request against the running kvstore server
// using net/http as an independent, trusted client — the server side is
// entirely our own session/httpcodec stack.
func doRequest(t *testing.T, client *http.Client, method, url, body string) (status int, respBody string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp.StatusCode, string(b)
}

// TestHTTPCrudScenario drives the exact sequence from the HTTP CRUD
// end-to-end scenario: absent-key GET, POST, GET, PUT, GET, DELETE, GET.
func TestHTTPCrudScenario(t *testing.T) {
	store := kvstore.New()
	srv := server.New("tcp", "127.0.0.1:0", func(net.Addr) session.Handler {
		return kvstore.NewHandler(store, nil)
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("server Start: %v", err)
	}
	defer srv.Stop()

	base := "http://" + srv.Addr().String()
	// Our server replies to each request and nothing multiplexes requests,
	// so force a single connection per request to sidestep HTTP keep-alive
	// pipelining the test doesn't need to exercise here.
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}

	if status, _ := doRequest(t, client, http.MethodGet, base+"/test", ""); status != http.StatusNotFound {
		t.Fatalf("GET before POST: status = %d, want 404", status)
	}

	if status, _ := doRequest(t, client, http.MethodPost, base+"/test", "old_value"); status != http.StatusOK {
		t.Fatalf("POST: status = %d, want 200", status)
	}

	if status, body := doRequest(t, client, http.MethodGet, base+"/test", ""); status != http.StatusOK || body != "old_value" {
		t.Fatalf("GET after POST: status=%d body=%q, want 200 %q", status, body, "old_value")
	}

	if status, _ := doRequest(t, client, http.MethodPut, base+"/test", "new_value"); status != http.StatusOK {
		t.Fatalf("PUT: status = %d, want 200", status)
	}

	if status, body := doRequest(t, client, http.MethodGet, base+"/test", ""); status != http.StatusOK || body != "new_value" {
		t.Fatalf("GET after PUT: status=%d body=%q, want 200 %q", status, body, "new_value")
	}

	if status, _ := doRequest(t, client, http.MethodDelete, base+"/test", ""); status != http.StatusOK {
		t.Fatalf("DELETE: status = %d, want 200", status)
	}

	if status, _ := doRequest(t, client, http.MethodGet, base+"/test", ""); status != http.StatusNotFound {
		t.Fatalf("GET after DELETE: status = %d, want 404", status)
	}
}

// TestHTTPTraceEchoesRawRequest drives a TRACE request and checks the
// response body is the message/http echo of the exact bytes sent, per
// MakeTraceResponse's RFC 7231 §4.3.8 contract.
func TestHTTPTraceEchoesRawRequest(t *testing.T) {
	store := kvstore.New()
	srv := server.New("tcp", "127.0.0.1:0", func(net.Addr) session.Handler {
		return kvstore.NewHandler(store, nil)
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("server Start: %v", err)
	}
	defer srv.Stop()

	base := "http://" + srv.Addr().String()
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}

	status, body := doRequest(t, client, http.MethodTrace, base+"/trace-echo", "")
	if status != http.StatusOK {
		t.Fatalf("TRACE: status = %d, want 200", status)
	}
	if !strings.HasPrefix(body, "TRACE /trace-echo HTTP/1.1\r\n") {
		t.Fatalf("TRACE body does not echo the request line: %q", body)
	}
	if !strings.Contains(body, "\r\n\r\n") {
		t.Fatalf("TRACE body missing header terminator: %q", body)
	}
}

func TestStoreDirectOperations(t *testing.T) {
	s := kvstore.New()
	if _, ok := s.Get("/k"); ok {
		t.Fatal("expected miss on empty store")
	}
	s.Put("/k", []byte("v1"))
	v, ok := s.Get("/k")
	if !ok || string(v) != "v1" {
		t.Fatalf("Get = %q, %v, want v1 true", v, ok)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	if !s.Delete("/k") {
		t.Fatal("Delete on present key should report true")
	}
	if s.Delete("/k") {
		t.Fatal("Delete on absent key should report false")
	}
}
