// Package httpcodec implements the incremental HTTP/1.1 parser/serializer
// from spec §4.6: a receive-side state machine that consumes bytes across
// multiple deliveries and emits one assembled Request or Response per
// message, plus a set of response builder helpers.
package httpcodec

import (
	"fmt"
	"strings"
)

// Header is one name/value pair, kept in wire order rather than a map so a
// round-tripped message preserves duplicate headers and original casing.
type Header struct {
	Name  string
	Value string
}

// headerGet returns the first header value matching name, case-insensitively, and
// whether it was found.
func headerGet(headers []Header, name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Request is a fully-parsed HTTP/1.1 request.
type Request struct {
	Method  string
	URL     string
	Version string
	Headers []Header
	Body    []byte
	Raw     []byte
}

// Header returns the first matching header value.
func (r *Request) Header(name string) (string, bool) { return headerGet(r.Headers, name) }

func (r *Request) String() string {
	return fmt.Sprintf("%s %s %s (%d header(s), %d body byte(s))", r.Method, r.URL, r.Version, len(r.Headers), len(r.Body))
}

// Response is a fully-parsed HTTP/1.1 response.
type Response struct {
	Version    string
	StatusCode int
	Reason     string
	Headers    []Header
	Body       []byte
	Raw        []byte
}

// Header returns the first matching header value.
func (r *Response) Header(name string) (string, bool) { return headerGet(r.Headers, name) }

func (r *Response) String() string {
	return fmt.Sprintf("%s %d %s (%d header(s), %d body byte(s))", r.Version, r.StatusCode, r.Reason, len(r.Headers), len(r.Body))
}
