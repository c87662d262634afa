// aead.go implements authenticated encryption for tokens and transcripts.
//
// The handshake seals exactly two kinds of value: resumption tokens and
// nothing else that persists. Both use XChaCha20-Poly1305, chosen over the
// 96-bit-nonce variant because the sealer draws nonces at random and the
// 192-bit nonce space makes collisions negligible without counter state.
//
// CRITICAL: nonce reuse under one key breaks confidentiality and
// authenticity. SealRandom draws a fresh random nonce per call and prefixes
// it to the box; the token key additionally rotates on a fixed epoch, so no
// key ever seals enough boxes for a collision to matter.
package crypto

import (
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/pqwire/pqwire/internal/constants"
	pqerrors "github.com/pqwire/pqwire/internal/errors"
)

// Seal encrypts and authenticates plaintext under key with an explicit
// 24-byte nonce. Returns ciphertext || tag; the nonce is not included.
func Seal(key, nonce, additionalData, plaintext []byte) ([]byte, error) {
	if len(key) != constants.SymKeySize {
		return nil, pqerrors.ErrInvalidKeySize
	}
	if len(nonce) != constants.AEADNonceSize {
		return nil, pqerrors.ErrInvalidNonce
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, pqerrors.NewCryptoError("Seal", err)
	}
	return aead.Seal(nil, nonce, plaintext, additionalData), nil
}

// Open verifies and decrypts a box produced by Seal.
func Open(key, nonce, additionalData, ciphertext []byte) ([]byte, error) {
	if len(key) != constants.SymKeySize {
		return nil, pqerrors.ErrInvalidKeySize
	}
	if len(nonce) != constants.AEADNonceSize {
		return nil, pqerrors.ErrInvalidNonce
	}
	if len(ciphertext) < constants.AEADTagSize {
		return nil, pqerrors.ErrCiphertextTooShort
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, pqerrors.NewCryptoError("Open", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, pqerrors.ErrAuthenticationFailed
	}
	return plaintext, nil
}

// SealRandom seals plaintext under a fresh random nonce and returns
// nonce || ciphertext || tag as one self-contained box.
func SealRandom(key, additionalData, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, constants.AEADNonceSize)
	if err := SecureRandom(nonce); err != nil {
		return nil, err
	}

	box, err := Seal(key, nonce, additionalData, plaintext)
	if err != nil {
		return nil, err
	}
	return append(nonce, box...), nil
}

// OpenRandom opens a box produced by SealRandom.
func OpenRandom(key, additionalData, box []byte) ([]byte, error) {
	if len(box) < constants.AEADNonceSize+constants.AEADTagSize {
		return nil, pqerrors.ErrCiphertextTooShort
	}
	nonce := box[:constants.AEADNonceSize]
	return Open(key, nonce, additionalData, box[constants.AEADNonceSize:])
}
