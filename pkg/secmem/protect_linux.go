//go:build linux

package secmem

import (
	pqerrors "github.com/pqwire/pqwire/internal/errors"
	"golang.org/x/sys/unix"
)

// allocProtected returns a zeroed, page-aligned buffer of the given length,
// pinned into resident memory and excluded from core dumps. madvise requires
// page alignment, so the buffer comes from an anonymous mapping rather than
// the Go heap.
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
	if err := unix.Madvise(buf, unix.MADV_DONTDUMP); err != nil {
		_ = unix.Munlock(buf)
		_ = unix.Munmap(buf)
		return nil, pqerrors.NewCryptoError("madvise", pqerrors.ErrAllocationFailed)
	}
	return buf, nil
}

// releaseProtected unlocks and unmaps a buffer from allocProtected. Called
// only after the buffer has been zeroized, so failures cannot expose key
// material and are ignored.
func releaseProtected(buf []byte) {
	_ = unix.Munlock(buf)
	_ = unix.Munmap(buf)
}
