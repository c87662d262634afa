// mlkem.go implements the post-quantum half of the hybrid KEM.
//
// ML-KEM (NIST FIPS 203) is a lattice-based key-encapsulation mechanism
// whose security rests on the Module Learning With Errors problem over the
// ring R_q = Z_q[X]/(X^256 + 1) with q = 3329. The 1024 parameter set
// (k = 4) targets NIST security category 5.
//
// Decapsulation uses the Fujisaki-Okamoto transform with implicit rejection,
// so a forged ciphertext yields a uniformly random-looking secret rather
// than an error, denying the attacker a decryption oracle.
package crypto

import (
	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"

	"github.com/pqwire/pqwire/internal/constants"
	pqerrors "github.com/pqwire/pqwire/internal/errors"
)

// MLKEMKeyPair holds an ML-KEM-1024 key pair.
type MLKEMKeyPair struct {
	EncapsulationKey *mlkem1024.PublicKey
	DecapsulationKey *mlkem1024.PrivateKey
}

// GenerateMLKEMKeyPair generates a fresh ML-KEM-1024 key pair.
func GenerateMLKEMKeyPair() (*MLKEMKeyPair, error) {
	pk, sk, err := mlkem1024.GenerateKeyPair(Reader)
	if err != nil {
		return nil, pqerrors.NewCryptoError("MLKEMKeyPair.Generate", err)
	}
	return &MLKEMKeyPair{EncapsulationKey: pk, DecapsulationKey: sk}, nil
}

// MLKEMEncapsulate encapsulates a fresh shared secret to the given
// encapsulation key. Returns the 1568-byte ciphertext and 32-byte secret.
func MLKEMEncapsulate(ek *mlkem1024.PublicKey) (ciphertext, sharedSecret []byte, err error) {
	if ek == nil {
		return nil, nil, pqerrors.ErrInvalidPublicKey
	}

	seed := make([]byte, mlkem1024.EncapsulationSeedSize)
	if err := SecureRandom(seed); err != nil {
		return nil, nil, err
	}

	ct := make([]byte, mlkem1024.CiphertextSize)
	ss := make([]byte, mlkem1024.SharedKeySize)
	ek.EncapsulateTo(ct, ss, seed)
	Zeroize(seed)

	return ct, ss, nil
}

// MLKEMDecapsulate recovers the shared secret from a ciphertext. A malformed
// but correctly sized ciphertext yields an implicit-rejection secret, not an
// error; the handshake's authentication tags catch the mismatch.
func MLKEMDecapsulate(dk *mlkem1024.PrivateKey, ciphertext []byte) ([]byte, error) {
	if dk == nil {
		return nil, pqerrors.ErrInvalidPrivateKey
	}
	if len(ciphertext) != constants.MLKEMCiphertextSize {
		return nil, pqerrors.ErrInvalidCiphertext
	}

	ss := make([]byte, mlkem1024.SharedKeySize)
	dk.DecapsulateTo(ss, ciphertext)
	return ss, nil
}

// MLKEMPublicKeyBytes returns the packed encapsulation key.
func MLKEMPublicKeyBytes(ek *mlkem1024.PublicKey) []byte {
	buf := make([]byte, mlkem1024.PublicKeySize)
	ek.Pack(buf)
	return buf
}

// MLKEMPrivateKeyBytes returns the packed decapsulation key. Handle with care.
func MLKEMPrivateKeyBytes(dk *mlkem1024.PrivateKey) []byte {
	buf := make([]byte, mlkem1024.PrivateKeySize)
	dk.Pack(buf)
	return buf
}

// ParseMLKEMPublicKey unpacks a 1568-byte encapsulation key.
func ParseMLKEMPublicKey(data []byte) (*mlkem1024.PublicKey, error) {
	if len(data) != constants.MLKEMPublicKeySize {
		return nil, pqerrors.ErrInvalidPublicKey
	}
	pk := new(mlkem1024.PublicKey)
	if err := pk.Unpack(data); err != nil {
		return nil, pqerrors.NewCryptoError("ParseMLKEMPublicKey", pqerrors.ErrInvalidPublicKey)
	}
	return pk, nil
}

// ParseMLKEMPrivateKey unpacks a 3168-byte decapsulation key.
func ParseMLKEMPrivateKey(data []byte) (*mlkem1024.PrivateKey, error) {
	if len(data) != constants.MLKEMPrivateKeySize {
		return nil, pqerrors.ErrInvalidPrivateKey
	}
	sk := new(mlkem1024.PrivateKey)
	if err := sk.Unpack(data); err != nil {
		return nil, pqerrors.NewCryptoError("ParseMLKEMPrivateKey", pqerrors.ErrInvalidPrivateKey)
	}
	return sk, nil
}
