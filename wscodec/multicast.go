package wscodec

import "github.com/nvremote/netflux/server"

// MulticastText pre-encodes data as one unmasked text frame and broadcasts
// the already-framed bytes through srv's fan-out — every session sees the
// identical wire bytes, which is valid only because server frames are never
// masked (spec §4.7).
func MulticastText(srv *server.Server, data []byte) error {
	wire, err := EncodeFrame(Frame{Fin: true, Opcode: OpText, Payload: data})
	if err != nil {
		return err
	}
	return srv.Multicast(wire)
}

// MulticastBinary is MulticastText's binary-opcode counterpart.
func MulticastBinary(srv *server.Server, data []byte) error {
	wire, err := EncodeFrame(Frame{Fin: true, Opcode: OpBinary, Payload: data})
	if err != nil {
		return err
	}
	return srv.Multicast(wire)
}
