// Package secmem provides the locked-memory substrate for all key material.
//
// A Secret is a fixed-length buffer pinned into resident memory and excluded
// from core dumps. Access goes through a scoped callback so the raw bytes
// never need to be stored outside the buffer, and Destroy zeroizes before the
// pages are released. Allocation fails closed: if the platform cannot
// guarantee the memory stays out of swap, no Secret is created.
package secmem

import (
	"crypto/rand"
	"crypto/subtle"
	"sync"
	"unsafe"

	pqerrors "github.com/pqwire/pqwire/internal/errors"
)

// Secret is a protected buffer for symmetric keys, private keys, and other
// material whose exposure would compromise sessions.
type Secret struct {
	mu        sync.Mutex
	buf       []byte
	destroyed bool
}

// Alloc creates a zero-initialized Secret of the given length. The backing
// pages are locked into memory and excluded from core dumps. Returns
// ErrAllocationFailed if the protections cannot be established.
func Alloc(length int) (*Secret, error) {
	if length <= 0 {
		return nil, pqerrors.NewCryptoError("secmem alloc", pqerrors.ErrInvalidKeySize)
	}

	buf, err := allocProtected(length)
	if err != nil {
		return nil, err
	}

	return &Secret{buf: buf}, nil
}

// Random creates a Secret of the given length filled from the system CSPRNG.
func Random(length int) (*Secret, error) {
	s, err := Alloc(length)
	if err != nil {
		return nil, err
	}
	if _, err := rand.Read(s.buf); err != nil {
		s.Destroy()
		return nil, pqerrors.NewCryptoError("secmem random", pqerrors.ErrEntropyFailure)
	}
	return s, nil
}

// FromBytes creates a Secret holding a copy of b, then zeroizes b. The caller
// relinquishes the unprotected copy.
func FromBytes(b []byte) (*Secret, error) {
	s, err := Alloc(len(b))
	if err != nil {
		return nil, err
	}
	copy(s.buf, b)
	for i := range b {
		b[i] = 0
	}
	return s, nil
}

// Len returns the length of the secret buffer, or 0 after destruction.
func (s *Secret) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return 0
	}
	return len(s.buf)
}

// With invokes f with the secret bytes. The slice aliases the locked buffer
// and must not be retained or returned past the call. Returns
// ErrSecretDestroyed if Destroy has already run.
func (s *Secret) With(f func(b []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return pqerrors.ErrSecretDestroyed
	}
	return f(s.buf)
}

// Clone returns an independent Secret holding a copy of the bytes.
func (s *Secret) Clone() (*Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, pqerrors.ErrSecretDestroyed
	}
	c, err := Alloc(len(s.buf))
	if err != nil {
		return nil, err
	}
	copy(c.buf, s.buf)
	return c, nil
}

// Equal compares two Secrets in constant time. Destroyed Secrets compare
// unequal to everything, including other destroyed Secrets.
func Equal(a, b *Secret) bool {
	if a == nil || b == nil {
		return false
	}
	if a == b {
		a.mu.Lock()
		defer a.mu.Unlock()
		return !a.destroyed
	}

	// Lock in address order; Equal(a, b) and Equal(b, a) may run
	// concurrently.
	first, second := a, b
	if uintptr(unsafe.Pointer(second)) < uintptr(unsafe.Pointer(first)) {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if a.destroyed || b.destroyed {
		return false
	}
	if len(a.buf) != len(b.buf) {
		return false
	}
	return subtle.ConstantTimeCompare(a.buf, b.buf) == 1
}

// Destroy zeroizes the buffer, unlocks the pages, and releases the Secret.
// Safe to call multiple times.
func (s *Secret) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	for i := range s.buf {
		s.buf[i] = 0
	}
	releaseProtected(s.buf)
	s.buf = nil
	s.destroyed = true
}
