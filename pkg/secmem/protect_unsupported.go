//go:build !linux && !darwin && !freebsd && !openbsd && !netbsd

package secmem

import (
	pqerrors "github.com/pqwire/pqwire/internal/errors"
)

// allocProtected fails closed on platforms without memory locking. Handing
// out swappable pages for key material would silently void the substrate's
// guarantees.
func allocProtected(length int) ([]byte, error) {
	return nil, pqerrors.NewCryptoError("alloc", pqerrors.ErrAllocationFailed)
}

func releaseProtected(buf []byte) {}
