//go:build darwin || freebsd || openbsd || netbsd

package secmem

import (
	pqerrors "github.com/pqwire/pqwire/internal/errors"
	"golang.org/x/sys/unix"
)

// allocProtected returns a zeroed buffer pinned into resident memory. These
// platforms lack MADV_DONTDUMP; locking alone keeps the pages out of swap,
// which is the invariant the rest of the engine relies on.
func allocProtected(length int) ([]byte, error) {
	buf, err := unix.Mmap(-1, 0, length,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, pqerrors.NewCryptoError("mmap", pqerrors.ErrAllocationFailed)
	}
	if err := unix.Mlock(buf); err != nil {
		_ = unix.Munmap(buf)
		return nil, pqerrors.NewCryptoError("mlock", pqerrors.ErrAllocationFailed)
	}
	return buf, nil
}

func releaseProtected(buf []byte) {
	_ = unix.Munlock(buf)
	_ = unix.Munmap(buf)
}
