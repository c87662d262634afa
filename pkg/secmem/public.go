package secmem

import (
	"bytes"
	"encoding/hex"
)

// Public is a fixed-size buffer for non-secret protocol values such as peer
// identifiers and public keys. Unlike Secret it lives on the ordinary heap
// and carries no locking or zeroization requirement; it exists so function
// signatures distinguish secret from non-secret material.
type Public struct {
	b []byte
}

// NewPublic creates a Public holding a copy of b.
func NewPublic(b []byte) Public {
	return Public{b: bytes.Clone(b)}
}

// Bytes returns the underlying bytes. Callers may read but must not assume
// exclusive ownership; use Clone for a private copy.
func (p Public) Bytes() []byte {
	return p.b
}

// Len returns the buffer length.
func (p Public) Len() int {
	return len(p.b)
}

// Clone returns an independent copy.
func (p Public) Clone() Public {
	return NewPublic(p.b)
}

// Equal compares two Public values. Not constant time; public values carry
// no secrecy requirement.
func (p Public) Equal(q Public) bool {
	return bytes.Equal(p.b, q.b)
}

// String renders the value as hex for logging.
func (p Public) String() string {
	return hex.EncodeToString(p.b)
}
