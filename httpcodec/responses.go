package httpcodec

import (
	"net/http"
	"strconv"
)

const defaultContentType = "text/plain; charset=UTF-8"

func reasonPhrase(status int) string {
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Unknown"
}

func newResponse(status int, body []byte, contentType string) *Response {
	return &Response{
		Version:    "HTTP/1.1",
		StatusCode: status,
		Reason:     reasonPhrase(status),
		Headers: []Header{
			{Name: "Content-Type", Value: contentType},
			{Name: "Content-Length", Value: strconv.Itoa(len(body))},
		},
		Body: body,
	}
}

// MakeOkResponse builds a bare 200 OK with an empty body.
func MakeOkResponse() *Response {
	return newResponse(http.StatusOK, nil, defaultContentType)
}

// MakeGetResponse builds a 200 OK carrying body. An optional contentType
// argument overrides the default text/plain.
func MakeGetResponse(body []byte, contentType ...string) *Response {
	ct := defaultContentType
	if len(contentType) > 0 && contentType[0] != "" {
		ct = contentType[0]
	}
	return newResponse(http.StatusOK, body, ct)
}

// MakeHeadResponse builds the response to a HEAD request: identical headers
// to the GET response for the same resource, with no body.
func MakeHeadResponse(body []byte, contentType ...string) *Response {
	resp := MakeGetResponse(body, contentType...)
	resp.Body = nil
	return resp
}

// MakeErrorResponse builds an error response. Called with just a message it
// defaults to 500; called with (status, message) it uses status.
func MakeErrorResponse(args ...interface{}) *Response {
	status := http.StatusInternalServerError
	message := ""
	switch len(args) {
	case 1:
		if m, ok := args[0].(string); ok {
			message = m
		}
	case 2:
		if s, ok := args[0].(int); ok {
			status = s
		}
		if m, ok := args[1].(string); ok {
			message = m
		}
	}
	return newResponse(status, []byte(message), defaultContentType)
}

// MakeOptionsResponse builds a bare 204 with an Allow header advertising the
// methods this codec's builders support.
func MakeOptionsResponse() *Response {
	resp := newResponse(http.StatusNoContent, nil, defaultContentType)
	resp.Headers = append(resp.Headers, Header{Name: "Allow", Value: "GET, HEAD, OPTIONS, TRACE"})
	return resp
}

// MakeTraceResponse echoes raw back as the body of a 200 response with
// Content-Type message/http, per RFC 7231 §4.3.8.
func MakeTraceResponse(raw []byte) *Response {
	return newResponse(http.StatusOK, raw, "message/http")
}
