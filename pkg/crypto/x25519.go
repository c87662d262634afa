// x25519.go implements the classical half of the hybrid KEM.
//
// X25519 (RFC 7748) is elliptic-curve Diffie-Hellman over Curve25519, a
// Montgomery curve over F_p with p = 2^255 - 19. The x-coordinate-only
// Montgomery ladder gives constant-time execution.
//
// X25519 is NOT quantum-resistant. In the hybrid scheme it provides
// defense-in-depth: the session stays secure against classical adversaries
// even if ML-KEM turns out to be broken.
package crypto

import (
	"crypto/ecdh"

	"github.com/pqwire/pqwire/internal/constants"
	pqerrors "github.com/pqwire/pqwire/internal/errors"
)

// X25519KeyPair holds an X25519 key pair.
type X25519KeyPair struct {
	PublicKey  *ecdh.PublicKey
	PrivateKey *ecdh.PrivateKey
}

// GenerateX25519KeyPair generates a fresh X25519 key pair from the CSPRNG.
func GenerateX25519KeyPair() (*X25519KeyPair, error) {
	privateKey, err := ecdh.X25519().GenerateKey(Reader)
	if err != nil {
		return nil, pqerrors.NewCryptoError("X25519KeyPair.Generate", err)
	}
	return &X25519KeyPair{
		PublicKey:  privateKey.PublicKey(),
		PrivateKey: privateKey,
	}, nil
}

// NewX25519KeyPairFromBytes reconstructs a key pair from a 32-byte private
// key. Deterministic: the same bytes always yield the same pair.
func NewX25519KeyPairFromBytes(privateKeyBytes []byte) (*X25519KeyPair, error) {
	if len(privateKeyBytes) != constants.X25519PrivateKeySize {
		return nil, pqerrors.ErrInvalidKeySize
	}
	privateKey, err := ecdh.X25519().NewPrivateKey(privateKeyBytes)
	if err != nil {
		return nil, pqerrors.NewCryptoError("X25519KeyPair.FromBytes", err)
	}
	return &X25519KeyPair{
		PublicKey:  privateKey.PublicKey(),
		PrivateKey: privateKey,
	}, nil
}

// X25519 computes the Diffie-Hellman shared secret. The result must always
// pass through the KDF before use as a key.
func X25519(privateKey *ecdh.PrivateKey, peerPublic *ecdh.PublicKey) ([]byte, error) {
	if privateKey == nil {
		return nil, pqerrors.ErrInvalidPrivateKey
	}
	if peerPublic == nil {
		return nil, pqerrors.ErrInvalidPublicKey
	}
	sharedSecret, err := privateKey.ECDH(peerPublic)
	if err != nil {
		return nil, pqerrors.NewCryptoError("X25519", err)
	}
	return sharedSecret, nil
}

// ParseX25519PublicKey parses a 32-byte encoded public key.
func ParseX25519PublicKey(data []byte) (*ecdh.PublicKey, error) {
	if len(data) != constants.X25519PublicKeySize {
		return nil, pqerrors.ErrInvalidPublicKey
	}
	publicKey, err := ecdh.X25519().NewPublicKey(data)
	if err != nil {
		return nil, pqerrors.NewCryptoError("ParseX25519PublicKey", err)
	}
	return publicKey, nil
}

// PublicKeyBytes returns the encoded public key.
func (kp *X25519KeyPair) PublicKeyBytes() []byte {
	return kp.PublicKey.Bytes()
}

// PrivateKeyBytes returns the encoded private key. Handle with care.
func (kp *X25519KeyPair) PrivateKeyBytes() []byte {
	return kp.PrivateKey.Bytes()
}

// Zeroize drops the key references. ecdh.PrivateKey does not expose its
// buffer for overwriting; callers holding the encoded form keep it in
// secmem and destroy it there.
func (kp *X25519KeyPair) Zeroize() {
	kp.PrivateKey = nil
	kp.PublicKey = nil
}
