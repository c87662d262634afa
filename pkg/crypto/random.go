// Package crypto provides the symmetric primitives for the pqwire handshake:
// the SHAKE-256 key-derivation chain, the SHA3-256 transcript hash,
// XChaCha20-Poly1305 sealing, and CSPRNG helpers.
//
// Security Note: all random number generation uses crypto/rand, which sources
// entropy from the operating system's CSPRNG.
package crypto

import (
	"crypto/rand"
	"io"

	pqerrors "github.com/pqwire/pqwire/internal/errors"
)

// Reader is an io.Reader yielding cryptographically secure random bytes.
var Reader = rand.Reader

// SecureRandom fills b with cryptographically secure random bytes.
//
// An error from this function means the system CSPRNG has failed and should
// be treated as a critical system failure.
func SecureRandom(b []byte) error {
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return pqerrors.NewCryptoError("SecureRandom", pqerrors.ErrEntropyFailure)
	}
	return nil
}

// SecureRandomBytes returns n cryptographically secure random bytes.
func SecureRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if err := SecureRandom(b); err != nil {
		return nil, err
	}
	return b, nil
}

// VerifyEntropy proves the CSPRNG is functional at process start. The engine
// refuses to run without working entropy, so callers treat an error here as
// fatal rather than retrying per message.
func VerifyEntropy() error {
	a := make([]byte, 32)
	b := make([]byte, 32)
	if err := SecureRandom(a); err != nil {
		return err
	}
	if err := SecureRandom(b); err != nil {
		return err
	}
	if ConstantTimeCompare(a, b) {
		return pqerrors.NewCryptoError("VerifyEntropy", pqerrors.ErrEntropyFailure)
	}
	return nil
}

// ConstantTimeCompare compares two byte slices in constant time. Returns true
// if the slices are equal. This prevents timing attacks when comparing
// authentication tags and derived secrets.
func ConstantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var result byte
	for i := range a {
		result |= a[i] ^ b[i]
	}
	return result == 0
}

// Zeroize erases sensitive data by overwriting with zeros. Call on key
// material as soon as it is no longer needed. Long-lived secrets belong in
// pkg/secmem instead, which adds page locking on top.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ZeroizeMultiple erases multiple byte slices.
func ZeroizeMultiple(slices ...[]byte) {
	for _, s := range slices {
		Zeroize(s)
	}
}
