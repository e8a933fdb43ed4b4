package httpcodec

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/nvremote/netflux/neterr"
)

// parseState is the incremental parser's position within one message.
type parseState int

const (
	stateReadHeader parseState = iota
	stateReadBody
	stateDone
)

// Mode selects whether a Parser assembles Requests or Responses.
type Mode int

const (
	// ModeRequest parses HTTP requests, as a server does.
	ModeRequest Mode = iota
	// ModeResponse parses HTTP responses, as a client does.
	ModeResponse
)

const maxHeaderBytes = 64 * 1024
const maxBodyBytes = 16 * 1024 * 1024

// Parser is a receive-side incremental HTTP/1.1 message assembler. Feed is
// called once per on_received delivery; it consumes as many bytes as form
// complete messages and keeps the remainder buffered for the next call.
type Parser struct {
	mode Mode

	OnRequest  func(*Request)
	OnResponse func(*Response)
	OnError    func(kind neterr.Kind, err error)

	state parseState
	buf   bytes.Buffer

	method      string
	url         string
	version     string
	statusCode  int
	reason      string
	headers     []Header
	bodyWant    int
	chunked     bool
	chunkState  chunkState
	closeEnds   bool
	body        bytes.Buffer
	raw         bytes.Buffer
}

// consume removes and returns the first n bytes of p.buf, also appending
// them to p.raw so emit can hand back the exact bytes the message was
// parsed from.
func (p *Parser) consume(n int) []byte {
	b := append([]byte(nil), p.buf.Bytes()[:n]...)
	p.buf.Next(n)
	p.raw.Write(b)
	return b
}

type chunkState int

const (
	chunkSize chunkState = iota
	chunkData
	chunkTrailer
)

// NewParser constructs a Parser in the given mode.
func NewParser(mode Mode) *Parser {
	return &Parser{mode: mode}
}

// Feed appends data to the parser's accumulation buffer and drives the state
// machine forward, invoking OnRequest/OnResponse for each completed message
// and resetting for the next one. It accepts CRLF or bare LF line endings on
// receive, per spec §4.6's liberal-receive rule.
func (p *Parser) Feed(data []byte) {
	p.buf.Write(data)

	for {
		switch p.state {
		case stateReadHeader:
			if !p.tryParseHeader() {
				return
			}
		case stateReadBody:
			if !p.tryParseBody() {
				return
			}
		case stateDone:
			p.emit()
			p.reset()
		}
	}
}

// TakeBuffered returns and clears any bytes currently held in the parser's
// accumulation buffer beyond the last completed message — used by callers
// (wscodec's handshake) that hand the parser a stream which switches
// protocols immediately after one HTTP message, so trailing bytes already
// read off the wire aren't silently absorbed into a second HTTP parse.
func (p *Parser) TakeBuffered() []byte {
	b := append([]byte(nil), p.buf.Bytes()...)
	p.buf.Reset()
	return b
}

// EndOfStream tells a response parser using close-terminated framing that no
// more bytes are coming, so the buffered body should be delivered as-is.
func (p *Parser) EndOfStream() {
	if p.mode == ModeResponse && p.state == stateReadBody && p.closeEnds {
		p.emit()
		p.reset()
	}
}

func (p *Parser) reset() {
	p.state = stateReadHeader
	p.method = ""
	p.url = ""
	p.version = ""
	p.statusCode = 0
	p.reason = ""
	p.headers = nil
	p.bodyWant = 0
	p.chunked = false
	p.chunkState = chunkSize
	p.closeEnds = false
	p.body.Reset()
	p.raw.Reset()
}

// tryParseHeader looks for a blank-line terminator in the buffered bytes
// and, if found, parses the start line and headers.
func (p *Parser) tryParseHeader() bool {
	raw := p.buf.Bytes()
	if len(raw) > maxHeaderBytes {
		p.fail(neterr.HttpTooLarge, "header block exceeds limit")
		return false
	}

	idx, sepLen := findHeaderEnd(raw)
	if idx < 0 {
		return false
	}

	block := raw[:idx]
	lines := splitLines(block)
	if len(lines) == 0 {
		p.fail(neterr.HttpMalformed, "empty header block")
		return false
	}

	if err := p.parseStartLine(lines[0]); err != nil {
		p.fail(neterr.HttpMalformed, err.Error())
		return false
	}

	headers, err := parseHeaderLines(lines[1:])
	if err != nil {
		p.fail(neterr.HttpMalformed, err.Error())
		return false
	}
	p.headers = headers

	p.consume(idx + sepLen)

	if err := p.resolveFraming(); err != nil {
		p.fail(neterr.HttpMalformed, err.Error())
		return false
	}

	if p.bodyWant == 0 && !p.chunked && !p.closeEnds {
		p.state = stateDone
		return true
	}
	p.state = stateReadBody
	return true
}

// resolveFraming applies spec §4.6's body-framing precedence: chunked,
// then Content-Length, then (responses only, except 1xx/204/304, which have
// no body) connection-close.
func (p *Parser) resolveFraming() error {
	if te, ok := headerGet(p.headers, "Transfer-Encoding"); ok && strings.Contains(strings.ToLower(te), "chunked") {
		p.chunked = true
		return nil
	}
	if cl, ok := headerGet(p.headers, "Content-Length"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(cl))
		if err != nil || n < 0 {
			return errMalformed("invalid Content-Length")
		}
		if n > maxBodyBytes {
			return errMalformed("Content-Length exceeds limit")
		}
		p.bodyWant = n
		return nil
	}
	if p.mode == ModeResponse {
		// 1xx, 204 and 304 responses never carry a body.
		if p.statusCode/100 == 1 || p.statusCode == 204 || p.statusCode == 304 {
			return nil
		}
		p.closeEnds = true
	}
	return nil
}

func (p *Parser) tryParseBody() bool {
	if p.chunked {
		return p.tryParseChunked()
	}
	if p.closeEnds {
		// Buffered until EndOfStream tells us the connection closed.
		data := p.consume(p.buf.Len())
		p.body.Write(data)
		return false
	}

	avail := p.buf.Bytes()
	if len(avail) < p.bodyWant {
		return false
	}
	p.body.Write(p.consume(p.bodyWant))
	p.state = stateDone
	return true
}

func (p *Parser) tryParseChunked() bool {
	for {
		raw := p.buf.Bytes()
		switch p.chunkState {
		case chunkSize:
			idx, sepLen := findLineEnd(raw)
			if idx < 0 {
				return false
			}
			line := strings.TrimSpace(string(raw[:idx]))
			if semi := strings.IndexByte(line, ';'); semi >= 0 {
				line = line[:semi]
			}
			size, err := strconv.ParseInt(line, 16, 64)
			if err != nil || size < 0 {
				p.fail(neterr.HttpMalformed, "invalid chunk size")
				return false
			}
			p.consume(idx + sepLen)
			if size == 0 {
				p.chunkState = chunkTrailer
				continue
			}
			p.bodyWant = int(size)
			p.chunkState = chunkData
		case chunkData:
			avail := p.buf.Bytes()
			if len(avail) < p.bodyWant+1 {
				return false
			}
			sepLen := 1 // bare LF after chunk data
			if avail[p.bodyWant] == '\r' {
				if len(avail) < p.bodyWant+2 {
					return false
				}
				sepLen = 2
			}
			p.body.Write(p.consume(p.bodyWant + sepLen)[:p.bodyWant]) // line terminator after chunk data is raw-only
			p.chunkState = chunkSize
		case chunkTrailer:
			// Trailer section is zero or more header lines, each CRLF- (or
			// LF-) terminated, ended by a blank line — the doubled
			// terminator findHeaderEnd looks for was already half-consumed
			// by the "0" chunk-size line's own CRLF, so trailers end on a
			// single empty line here, not a doubled one.
			idx, sepLen := findLineEnd(raw)
			if idx < 0 {
				return false
			}
			line := raw[:idx]
			p.consume(idx + sepLen)
			if len(line) == 0 {
				p.state = stateDone
				return true
			}
			// A trailer header line: discard and keep scanning for the
			// terminating blank line.
		}
	}
}

func (p *Parser) fail(kind neterr.Kind, msg string) {
	if p.OnError != nil {
		p.OnError(kind, errMalformed(msg))
	}
	p.reset()
	p.buf.Reset()
}

func (p *Parser) emit() {
	body := append([]byte(nil), p.body.Bytes()...)
	raw := append([]byte(nil), p.raw.Bytes()...)
	switch p.mode {
	case ModeRequest:
		req := &Request{
			Method:  p.method,
			URL:     p.url,
			Version: p.version,
			Headers: append([]Header(nil), p.headers...),
			Body:    body,
			Raw:     raw,
		}
		if p.OnRequest != nil {
			p.OnRequest(req)
		}
	case ModeResponse:
		resp := &Response{
			Version:    p.version,
			StatusCode: p.statusCode,
			Reason:     p.reason,
			Headers:    append([]Header(nil), p.headers...),
			Body:       body,
			Raw:        raw,
		}
		if p.OnResponse != nil {
			p.OnResponse(resp)
		}
	}
}

func (p *Parser) parseStartLine(line []byte) error {
	fields := strings.Fields(string(line))
	switch p.mode {
	case ModeRequest:
		if len(fields) != 3 {
			return errMalformed("malformed request line")
		}
		p.method, p.url, p.version = fields[0], fields[1], fields[2]
	case ModeResponse:
		if len(fields) < 2 {
			return errMalformed("malformed status line")
		}
		p.version = fields[0]
		code, err := strconv.Atoi(fields[1])
		if err != nil {
			return errMalformed("malformed status code")
		}
		p.statusCode = code
		if len(fields) > 2 {
			p.reason = strings.Join(fields[2:], " ")
		}
	}
	return nil
}

func parseHeaderLines(lines [][]byte) ([]Header, error) {
	headers := make([]Header, 0, len(lines))
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return nil, errMalformed("malformed header line")
		}
		name := strings.TrimSpace(string(line[:colon]))
		value := strings.TrimSpace(string(line[colon+1:]))
		if name == "" {
			return nil, errMalformed("empty header name")
		}
		headers = append(headers, Header{Name: name, Value: value})
	}
	return headers, nil
}

// splitLines splits a header block on CRLF or bare LF, liberal per spec.
func splitLines(block []byte) [][]byte {
	normalized := bytes.ReplaceAll(block, []byte("\r\n"), []byte("\n"))
	return bytes.Split(normalized, []byte("\n"))
}

// findHeaderEnd finds the first blank-line terminator (\r\n\r\n or \n\n) and
// returns its offset and length.
func findHeaderEnd(raw []byte) (idx, sepLen int) {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return i, 4
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return i, 2
	}
	return -1, 0
}

// findLineEnd finds the first line terminator (CRLF or LF) and returns its
// offset and length.
func findLineEnd(raw []byte) (idx, sepLen int) {
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		if i > 0 && raw[i-1] == '\r' {
			return i - 1, 2
		}
		return i, 1
	}
	return -1, 0
}

func errMalformed(msg string) error { return &malformedError{msg} }

type malformedError struct{ msg string }

func (e *malformedError) Error() string { return "httpcodec: " + e.msg }
