package httpcodec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nvremote/netflux/neterr"
)

func TestParseSimpleGetRequest(t *testing.T) {
	p := NewParser(ModeRequest)
	var got *Request
	p.OnRequest = func(r *Request) { got = r }

	wire := "GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n"
	p.Feed([]byte(wire))

	if got == nil {
		t.Fatal("no request assembled")
	}
	want := &Request{
		Method:  "GET",
		URL:     "/index.html",
		Version: "HTTP/1.1",
		Headers: []Header{{Name: "Host", Value: "example.com"}},
		Raw:     []byte(wire),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

// TestParseRawIncludesBody verifies Raw captures the exact bytes a message
// was parsed from, header block and body both, which MakeTraceResponse
// depends on to echo the original request.
func TestParseRawIncludesBody(t *testing.T) {
	p := NewParser(ModeRequest)
	var got *Request
	p.OnRequest = func(r *Request) { got = r }

	wire := "POST /submit HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"
	p.Feed([]byte(wire))

	if got == nil {
		t.Fatal("no request assembled")
	}
	if string(got.Raw) != wire {
		t.Fatalf("Raw = %q, want %q", got.Raw, wire)
	}
}

// TestParseRawChunkedBody checks that Raw for a chunked message reproduces
// the exact bytes fed to the parser, chunk framing included.
func TestParseRawChunkedBody(t *testing.T) {
	p := NewParser(ModeRequest)
	var got *Request
	p.OnRequest = func(r *Request) { got = r }

	msg := "POST /x HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	p.Feed([]byte(msg))

	if got == nil {
		t.Fatal("no request assembled")
	}
	if string(got.Raw) != msg {
		t.Fatalf("Raw = %q, want %q", got.Raw, msg)
	}
}

func TestParseAcceptsBareLF(t *testing.T) {
	p := NewParser(ModeRequest)
	var got *Request
	p.OnRequest = func(r *Request) { got = r }

	p.Feed([]byte("GET / HTTP/1.1\nHost: example.com\n\n"))

	if got == nil {
		t.Fatal("no request assembled from bare-LF input")
	}
	if got.Method != "GET" || got.URL != "/" {
		t.Fatalf("got %+v", got)
	}
}

func TestParseContentLengthBody(t *testing.T) {
	p := NewParser(ModeRequest)
	var got *Request
	p.OnRequest = func(r *Request) { got = r }

	msg := "POST /submit HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"
	p.Feed([]byte(msg))

	if got == nil {
		t.Fatal("no request assembled")
	}
	if string(got.Body) != "hello" {
		t.Fatalf("body = %q, want %q", got.Body, "hello")
	}
}

func TestParseAcrossMultipleFeeds(t *testing.T) {
	p := NewParser(ModeRequest)
	var got *Request
	p.OnRequest = func(r *Request) { got = r }

	full := "POST /x HTTP/1.1\r\nContent-Length: 11\r\n\r\nhello world"
	for i := 0; i < len(full); i++ {
		p.Feed([]byte{full[i]})
	}

	if got == nil {
		t.Fatal("no request assembled from byte-at-a-time feed")
	}
	if string(got.Body) != "hello world" {
		t.Fatalf("body = %q", got.Body)
	}
}

func TestParseChunkedBody(t *testing.T) {
	p := NewParser(ModeRequest)
	var got *Request
	p.OnRequest = func(r *Request) { got = r }

	msg := "POST /x HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	p.Feed([]byte(msg))

	if got == nil {
		t.Fatal("no request assembled from chunked body")
	}
	if string(got.Body) != "hello world" {
		t.Fatalf("body = %q, want %q", got.Body, "hello world")
	}
}

func TestParseTwoMessagesBackToBack(t *testing.T) {
	p := NewParser(ModeRequest)
	var got []*Request
	p.OnRequest = func(r *Request) { got = append(got, r) }

	msg := "GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n"
	p.Feed([]byte(msg))

	if len(got) != 2 {
		t.Fatalf("got %d requests, want 2", len(got))
	}
	if got[0].URL != "/a" || got[1].URL != "/b" {
		t.Fatalf("got URLs %q, %q", got[0].URL, got[1].URL)
	}
}

func TestParseMalformedRequestLineReportsError(t *testing.T) {
	p := NewParser(ModeRequest)
	var gotKind neterr.Kind
	p.OnError = func(kind neterr.Kind, err error) { gotKind = kind }

	p.Feed([]byte("garbage\r\n\r\n"))

	if gotKind != neterr.HttpMalformed {
		t.Fatalf("OnError kind = %q, want %q", gotKind, neterr.HttpMalformed)
	}
}

func TestParseResponseCloseTerminated(t *testing.T) {
	p := NewParser(ModeResponse)
	var got *Response
	p.OnResponse = func(r *Response) { got = r }

	p.Feed([]byte("HTTP/1.1 200 OK\r\n\r\nhello"))
	if got != nil {
		t.Fatal("response emitted before EndOfStream on close-terminated body")
	}

	p.EndOfStream()
	if got == nil {
		t.Fatal("response not emitted after EndOfStream")
	}
	if string(got.Body) != "hello" {
		t.Fatalf("body = %q", got.Body)
	}
}

func TestEncodeRequestRoundTrip(t *testing.T) {
	req := &Request{
		Method:  "GET",
		URL:     "/a",
		Version: "HTTP/1.1",
		Headers: []Header{{Name: "Host", Value: "x"}},
	}
	wire := EncodeRequest(req)

	p := NewParser(ModeRequest)
	var got *Request
	p.OnRequest = func(r *Request) { got = r }
	p.Feed(wire)

	if got == nil {
		t.Fatal("encoded request did not round-trip through the parser")
	}
	if got.Method != req.Method || got.URL != req.URL {
		t.Fatalf("got %+v", got)
	}
}
