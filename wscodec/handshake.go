package wscodec

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/nvremote/netflux/httpcodec"
)

// wsGUID is RFC 6455's fixed accept-key salt.
const wsGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

func computeAccept(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(wsGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func headerContainsToken(value, token string) bool {
	for _, part := range strings.Split(value, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}

// ServerHandshake validates an incoming upgrade request per spec §4.7 and
// builds the 101 Switching Protocols response. Returns an error describing
// the first validation failure if req isn't a valid WebSocket upgrade.
func ServerHandshake(req *httpcodec.Request) (*httpcodec.Response, error) {
	if req.Method != "GET" {
		return nil, errors.New("wscodec: handshake requires GET")
	}
	upgrade, _ := req.Header("Upgrade")
	if !headerContainsToken(upgrade, "websocket") {
		return nil, errors.New("wscodec: missing Upgrade: websocket")
	}
	connection, _ := req.Header("Connection")
	if !headerContainsToken(connection, "upgrade") {
		return nil, errors.New("wscodec: missing Connection: Upgrade")
	}
	version, _ := req.Header("Sec-WebSocket-Version")
	if strings.TrimSpace(version) != "13" {
		return nil, errors.New("wscodec: unsupported Sec-WebSocket-Version")
	}
	key, ok := req.Header("Sec-WebSocket-Key")
	if !ok || key == "" {
		return nil, errors.New("wscodec: missing Sec-WebSocket-Key")
	}

	resp := &httpcodec.Response{
		Version:    "HTTP/1.1",
		StatusCode: 101,
		Reason:     "Switching Protocols",
		Headers: []httpcodec.Header{
			{Name: "Upgrade", Value: "websocket"},
			{Name: "Connection", Value: "Upgrade"},
			{Name: "Sec-WebSocket-Accept", Value: computeAccept(key)},
		},
	}
	return resp, nil
}

// ClientHandshakeRequest builds the opening GET request and returns the key
// it embedded, which the caller must pass to VerifyClientHandshakeResponse.
func ClientHandshakeRequest(urlPath, host string) (*httpcodec.Request, string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, "", err
	}
	key := base64.StdEncoding.EncodeToString(nonce)

	req := &httpcodec.Request{
		Method:  "GET",
		URL:     urlPath,
		Version: "HTTP/1.1",
		Headers: []httpcodec.Header{
			{Name: "Host", Value: host},
			{Name: "Upgrade", Value: "websocket"},
			{Name: "Connection", Value: "Upgrade"},
			{Name: "Sec-WebSocket-Key", Value: key},
			{Name: "Sec-WebSocket-Version", Value: "13"},
		},
	}
	return req, key, nil
}

// VerifyClientHandshakeResponse checks the server's 101 response against
// the key generated by ClientHandshakeRequest.
func VerifyClientHandshakeResponse(resp *httpcodec.Response, key string) error {
	if resp.StatusCode != 101 {
		return errors.New("wscodec: server did not return 101 Switching Protocols")
	}
	accept, ok := resp.Header("Sec-WebSocket-Accept")
	if !ok {
		return errors.New("wscodec: missing Sec-WebSocket-Accept")
	}
	if accept != computeAccept(key) {
		return errors.New("wscodec: Sec-WebSocket-Accept mismatch")
	}
	return nil
}
