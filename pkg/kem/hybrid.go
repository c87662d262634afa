// hybrid.go implements the default cascaded hybrid scheme.
//
// The hybrid composes X25519 (RFC 7748) with ML-KEM-1024 (NIST FIPS 203) and
// combines the two shared secrets through SHA3-256 with the full ciphertext
// and public key bound in:
//
//	Key generation:
//	  (sk_x, pk_x) <- X25519.KeyGen()
//	  (sk_m, pk_m) <- ML-KEM-1024.KeyGen()
//	  pk = pk_x || pk_m,  sk = sk_x || sk_m
//
//	Encapsulation:
//	  (sk_e, pk_e) <- X25519.KeyGen()
//	  K_x <- X25519.DH(sk_e, pk_x)
//	  (ct_m, K_m) <- ML-KEM-1024.Encaps(pk_m)
//	  ct = pk_e || ct_m
//	  K = SHA3-256(label, K_x, K_m, ct, pk)
//
//	Decapsulation mirrors encapsulation with sk_x and sk_m.
//
// The output is indistinguishable from random if EITHER component scheme is
// secure. Binding ct and pk into the combiner closes re-encapsulation
// malleability in the same way X-Wing does for ML-KEM-768.
package kem

import (
	"github.com/pqwire/pqwire/internal/constants"
	pqerrors "github.com/pqwire/pqwire/internal/errors"
	"github.com/pqwire/pqwire/pkg/crypto"
)

const hybridLabel = "pqwire hybrid x25519 mlkem1024"

// Hybrid is the X25519 + ML-KEM-1024 scheme. The zero value is ready to use.
type Hybrid struct{}

// Default returns the scheme the engine uses unless configured otherwise.
func Default() Scheme {
	return Hybrid{}
}

func (Hybrid) Name() string          { return "x25519-mlkem1024" }
func (Hybrid) PublicKeySize() int    { return constants.KEMPublicKeySize }
func (Hybrid) PrivateKeySize() int   { return constants.KEMPrivateKeySize }
func (Hybrid) CiphertextSize() int   { return constants.KEMCiphertextSize }
func (Hybrid) SharedSecretSize() int { return constants.KEMSharedSecretSize }

// GenerateKeyPair generates both component key pairs and concatenates their
// encodings, X25519 component first.
func (Hybrid) GenerateKeyPair() ([]byte, []byte, error) {
	xkp, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		return nil, nil, err
	}
	mkp, err := crypto.GenerateMLKEMKeyPair()
	if err != nil {
		return nil, nil, err
	}

	publicKey := make([]byte, 0, constants.KEMPublicKeySize)
	publicKey = append(publicKey, xkp.PublicKeyBytes()...)
	publicKey = append(publicKey, crypto.MLKEMPublicKeyBytes(mkp.EncapsulationKey)...)

	privateKey := make([]byte, 0, constants.KEMPrivateKeySize)
	privateKey = append(privateKey, xkp.PrivateKeyBytes()...)
	privateKey = append(privateKey, crypto.MLKEMPrivateKeyBytes(mkp.DecapsulationKey)...)

	return publicKey, privateKey, nil
}

// Encapsulate runs an ephemeral X25519 exchange and an ML-KEM encapsulation
// against the two halves of publicKey and combines the secrets.
func (h Hybrid) Encapsulate(publicKey []byte) ([]byte, []byte, error) {
	if len(publicKey) != constants.KEMPublicKeySize {
		return nil, nil, pqerrors.ErrInvalidPublicKey
	}

	xpk, err := crypto.ParseX25519PublicKey(publicKey[:constants.X25519PublicKeySize])
	if err != nil {
		return nil, nil, err
	}
	mpk, err := crypto.ParseMLKEMPublicKey(publicKey[constants.X25519PublicKeySize:])
	if err != nil {
		return nil, nil, err
	}

	eph, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		return nil, nil, err
	}
	kx, err := crypto.X25519(eph.PrivateKey, xpk)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.Zeroize(kx)

	ctm, km, err := crypto.MLKEMEncapsulate(mpk)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.Zeroize(km)

	ciphertext := make([]byte, 0, constants.KEMCiphertextSize)
	ciphertext = append(ciphertext, eph.PublicKeyBytes()...)
	ciphertext = append(ciphertext, ctm...)

	return ciphertext, combine(kx, km, ciphertext, publicKey), nil
}

// Decapsulate recovers the combined secret from the two ciphertext halves.
func (h Hybrid) Decapsulate(privateKey, ciphertext []byte) ([]byte, error) {
	if len(privateKey) != constants.KEMPrivateKeySize {
		return nil, pqerrors.ErrInvalidPrivateKey
	}
	if len(ciphertext) != constants.KEMCiphertextSize {
		return nil, pqerrors.ErrInvalidCiphertext
	}

	xkp, err := crypto.NewX25519KeyPairFromBytes(privateKey[:constants.X25519PrivateKeySize])
	if err != nil {
		return nil, err
	}
	msk, err := crypto.ParseMLKEMPrivateKey(privateKey[constants.X25519PrivateKeySize:])
	if err != nil {
		return nil, err
	}

	ephPub, err := crypto.ParseX25519PublicKey(ciphertext[:constants.X25519PublicKeySize])
	if err != nil {
		return nil, err
	}
	kx, err := crypto.X25519(xkp.PrivateKey, ephPub)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(kx)

	km, err := crypto.MLKEMDecapsulate(msk, ciphertext[constants.X25519PublicKeySize:])
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(km)

	// The combiner needs the full public key; reconstruct it from the
	// private halves.
	publicKey := make([]byte, 0, constants.KEMPublicKeySize)
	publicKey = append(publicKey, xkp.PublicKeyBytes()...)

	mpkBytes, err := mlkemPublicFromPrivate(privateKey[constants.X25519PrivateKeySize:])
	if err != nil {
		return nil, err
	}
	publicKey = append(publicKey, mpkBytes...)

	return combine(kx, km, ciphertext, publicKey), nil
}

// combine derives the final shared secret from both component secrets with
// the ciphertext and public key bound in.
func combine(kx, km, ciphertext, publicKey []byte) []byte {
	return crypto.Hash([]byte(hybridLabel), kx, km, ciphertext, publicKey)
}

// mlkemPublicFromPrivate extracts the packed encapsulation key embedded in a
// packed ML-KEM-1024 decapsulation key. FIPS 203 lays the key out as
// s || pk || H(pk) || z, so the public key sits right after the 1536-byte
// secret vector.
func mlkemPublicFromPrivate(sk []byte) ([]byte, error) {
	const secretVectorSize = constants.MLKEMPrivateKeySize - constants.MLKEMPublicKeySize - 2*constants.HashSize
	if len(sk) != constants.MLKEMPrivateKeySize {
		return nil, pqerrors.ErrInvalidPrivateKey
	}
	return sk[secretVectorSize : secretVectorSize+constants.MLKEMPublicKeySize], nil
}
