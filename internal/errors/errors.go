// Package errors defines the error taxonomy for the pqwire key-exchange
// engine. Errors carry enough context for debugging without leaking key
// material or giving a remote peer a distinguishing oracle: protocol-level
// failures are handled by silently dropping the offending message, never by
// answering with an error.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for cryptographic operations.
var (
	// ErrInvalidKeySize indicates a key has an incorrect size.
	ErrInvalidKeySize = errors.New("crypto: invalid key size")

	// ErrInvalidPublicKey indicates a public key failed to parse.
	ErrInvalidPublicKey = errors.New("kem: invalid public key")

	// ErrInvalidPrivateKey indicates a private key failed to parse.
	ErrInvalidPrivateKey = errors.New("kem: invalid private key")

	// ErrInvalidCiphertext indicates a KEM ciphertext is malformed.
	ErrInvalidCiphertext = errors.New("kem: invalid ciphertext")

	// ErrAuthenticationFailed indicates AEAD or tag verification failed.
	ErrAuthenticationFailed = errors.New("crypto: authentication failed")

	// ErrInvalidNonce indicates a nonce of the wrong size.
	ErrInvalidNonce = errors.New("crypto: invalid nonce")

	// ErrCiphertextTooShort indicates a sealed box shorter than its framing.
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")

	// ErrEntropyFailure indicates the system CSPRNG failed. Fatal at
	// process start: the engine cannot proceed safely without entropy.
	ErrEntropyFailure = errors.New("crypto: entropy source failure")
)

// Sentinel errors for secret memory.
var (
	// ErrAllocationFailed indicates locked secret memory could not be
	// established. The substrate fails closed rather than holding secrets
	// in swappable pages.
	ErrAllocationFailed = errors.New("secmem: locked allocation failed")

	// ErrSecretDestroyed indicates access to a secret after destruction.
	ErrSecretDestroyed = errors.New("secmem: secret already destroyed")
)

// Sentinel errors for protocol handling. All of these result in the
// offending message being dropped with no reply and no state change.
var (
	// ErrInvalidMessage indicates a malformed or wrongly sized message.
	ErrInvalidMessage = errors.New("protocol: invalid message")

	// ErrMessageTooLarge indicates a datagram over the protocol maximum.
	ErrMessageTooLarge = errors.New("protocol: message too large")

	// ErrInvalidMAC indicates a message that failed the outer keyed-hash
	// filter.
	ErrInvalidMAC = errors.New("protocol: invalid message mac")

	// ErrUnexpectedMessage indicates a message that does not match the
	// current handshake state.
	ErrUnexpectedMessage = errors.New("protocol: unexpected message for state")

	// ErrUnknownPeer indicates an identity commitment matching no
	// configured peer.
	ErrUnknownPeer = errors.New("protocol: unknown peer")

	// ErrInvalidToken indicates a resumption token that failed to open.
	ErrInvalidToken = errors.New("protocol: invalid resumption token")

	// ErrExpiredToken indicates a resumption token past its validity window.
	ErrExpiredToken = errors.New("protocol: expired resumption token")

	// ErrConsumedToken indicates a resumption token that was already used
	// to complete a handshake.
	ErrConsumedToken = errors.New("protocol: resumption token already consumed")

	// ErrHandshakeAbandoned indicates the retransmission budget was
	// exhausted without a response.
	ErrHandshakeAbandoned = errors.New("protocol: handshake abandoned after retries")
)

// Sentinel errors for the broker IPC channel.
var (
	// ErrStaleEpoch indicates an install request whose epoch does not
	// exceed the last installed epoch for the peer.
	ErrStaleEpoch = errors.New("broker: stale epoch")

	// ErrBrokerTimeout indicates the privileged side did not acknowledge
	// within the delivery timeout.
	ErrBrokerTimeout = errors.New("broker: delivery timed out")

	// ErrFrameTooLarge indicates an IPC frame exceeding the size bound.
	ErrFrameTooLarge = errors.New("broker: frame too large")

	// ErrInstallFailed indicates the kernel tunnel driver rejected the key.
	ErrInstallFailed = errors.New("broker: driver installation failed")
)

// CryptoError wraps a primitive failure with the operation that failed.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// NewCryptoError creates a new CryptoError.
func NewCryptoError(op string, err error) *CryptoError {
	return &CryptoError{Op: op, Err: err}
}

// ProtocolError wraps a protocol failure with the handshake phase it
// occurred in.
type ProtocolError struct {
	Phase string
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol %s: %v", e.Phase, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError creates a new ProtocolError.
func NewProtocolError(phase string, err error) *ProtocolError {
	return &ProtocolError{Phase: phase, Err: err}
}

// BrokerError wraps an IPC failure with the peer it concerned. Broker
// failures are a different fault domain from handshake failures (privilege
// and driver rather than network and peer) and are reported distinctly.
type BrokerError struct {
	Op   string
	Peer string
	Err  error
}

func (e *BrokerError) Error() string {
	if e.Peer == "" {
		return fmt.Sprintf("broker %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("broker %s (peer %s): %v", e.Op, e.Peer, e.Err)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// NewBrokerError creates a new BrokerError.
func NewBrokerError(op, peer string, err error) *BrokerError {
	return &BrokerError{Op: op, Peer: peer, Err: err}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
