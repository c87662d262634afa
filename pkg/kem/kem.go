// Package kem defines the key-encapsulation capability the handshake runs
// on, and provides the default hybrid X25519 + ML-KEM-1024 scheme.
//
// The handshake never touches a KEM implementation directly: it sees only
// the Scheme interface, with fixed sizes and byte-slice keys. Swapping the
// algorithm (a pure ML-KEM deployment, a test double, a future standard)
// changes configuration, not protocol code.
package kem

// Scheme is a key-encapsulation mechanism with fixed-width keys and
// ciphertexts. All sizes are constants of the scheme; the wire layer relies
// on this to parse messages without any variable-length fields.
//
// Implementations must be IND-CCA2 secure: Decapsulate on a forged
// ciphertext must not behave as a decryption oracle.
type Scheme interface {
	// Name identifies the scheme for logging and configuration.
	Name() string

	PublicKeySize() int
	PrivateKeySize() int
	CiphertextSize() int
	SharedSecretSize() int

	// GenerateKeyPair generates a fresh key pair from the system CSPRNG.
	GenerateKeyPair() (publicKey, privateKey []byte, err error)

	// Encapsulate generates a fresh shared secret and a ciphertext
	// conveying it to the holder of the private key.
	Encapsulate(publicKey []byte) (ciphertext, sharedSecret []byte, err error)

	// Decapsulate recovers the shared secret from a ciphertext.
	Decapsulate(privateKey, ciphertext []byte) (sharedSecret []byte, err error)
}
