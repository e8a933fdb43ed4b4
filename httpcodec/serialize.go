package httpcodec

import (
	"bytes"
	"fmt"
)

// EncodeRequest serializes req with strict CRLF line endings, per spec
// §4.6's "emit CRLF only on send" rule.
func EncodeRequest(req *Request) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s %s\r\n", req.Method, req.URL, req.Version)
	writeHeaders(&buf, req.Headers)
	buf.WriteString("\r\n")
	buf.Write(req.Body)
	return buf.Bytes()
}

// EncodeResponse serializes resp with strict CRLF line endings.
func EncodeResponse(resp *Response) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %d %s\r\n", resp.Version, resp.StatusCode, resp.Reason)
	writeHeaders(&buf, resp.Headers)
	buf.WriteString("\r\n")
	buf.Write(resp.Body)
	return buf.Bytes()
}

func writeHeaders(buf *bytes.Buffer, headers []Header) {
	for _, h := range headers {
		fmt.Fprintf(buf, "%s: %s\r\n", h.Name, h.Value)
	}
}
