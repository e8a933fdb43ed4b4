// Package sockid generates the 128-bit session identities referenced
// throughout the engine. Ids are derived from a process-local random seed
// folded with a monotonic counter through blake2b, so two ids generated in
// the same process are guaranteed distinct even if the system entropy
// source repeats (which crypto/rand never does in practice, but the
// counter makes the guarantee independent of that assumption).
package sockid

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"golang.org/x/crypto/blake2b"
)

// ID is a 128-bit session identifier, unique per process.
type ID [16]byte

// Zero is the nil identity, never assigned to a real session.
var Zero ID

var (
	processSeed [32]byte
	counter     atomic.Uint64
)

func init() {
	if _, err := rand.Read(processSeed[:]); err != nil {
		// crypto/rand failing means the platform's CSPRNG is broken; there is
		// no safe fallback for session identity, so fail loudly at startup.
		panic(fmt.Sprintf("sockid: reading process seed: %v", err))
	}
}

// New returns a fresh, process-unique ID.
func New() ID {
	n := counter.Add(1)

	var msg [40]byte
	copy(msg[:32], processSeed[:])
	binary.BigEndian.PutUint64(msg[32:], n)

	sum := blake2b.Sum256(msg[:])

	var id ID
	copy(id[:], sum[:16])
	return id
}

// Equal reports whether two ids are the same value.
func (id ID) Equal(other ID) bool {
	return id == other
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id == Zero
}

// String renders the canonical 8-4-4-4-12 lowercase hex representation.
func (id ID) String() string {
	var buf [36]byte
	hex.Encode(buf[0:8], id[0:4])
	buf[8] = '-'
	hex.Encode(buf[9:13], id[4:6])
	buf[13] = '-'
	hex.Encode(buf[14:18], id[6:8])
	buf[18] = '-'
	hex.Encode(buf[19:23], id[8:10])
	buf[23] = '-'
	hex.Encode(buf[24:36], id[10:16])
	return string(buf[:])
}
