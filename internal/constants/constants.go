// Package constants defines protocol sizes, derivation labels, and timing
// parameters for the pqwire key-exchange engine.
//
// Security level: NIST Category 5 for the post-quantum component
// (ML-KEM-1024), 128-bit classical security for the X25519 component.
package constants

import "time"

// Protocol identification. The label is mixed into the initial chaining key
// so that two incompatible protocol revisions can never derive equal keys.
const (
	// ProtocolVersion is the current wire protocol version.
	ProtocolVersion uint8 = 0x01

	// ProtocolLabel seeds the KDF chain and the transcript hash.
	ProtocolLabel = "pqwire v1 x25519 mlkem1024 shake256 xchacha20poly1305"
)

// ML-KEM-1024 parameters (NIST FIPS 203).
const (
	// MLKEMPublicKeySize is the size of an ML-KEM-1024 encapsulation key.
	MLKEMPublicKeySize = 1568

	// MLKEMPrivateKeySize is the size of an ML-KEM-1024 decapsulation key.
	MLKEMPrivateKeySize = 3168

	// MLKEMCiphertextSize is the size of an ML-KEM-1024 ciphertext.
	MLKEMCiphertextSize = 1568

	// MLKEMSharedSecretSize is the size of the ML-KEM shared secret.
	MLKEMSharedSecretSize = 32
)

// X25519 parameters (RFC 7748).
const (
	X25519PublicKeySize    = 32
	X25519PrivateKeySize   = 32
	X25519SharedSecretSize = 32
)

// Hybrid KEM sizes (X25519 component first, ML-KEM component second).
const (
	// KEMPublicKeySize is the combined X25519 + ML-KEM-1024 public key size.
	KEMPublicKeySize = X25519PublicKeySize + MLKEMPublicKeySize

	// KEMPrivateKeySize is the combined X25519 + ML-KEM-1024 private key size.
	KEMPrivateKeySize = X25519PrivateKeySize + MLKEMPrivateKeySize

	// KEMCiphertextSize is the combined X25519 ephemeral + ML-KEM ciphertext size.
	KEMCiphertextSize = X25519PublicKeySize + MLKEMCiphertextSize

	// KEMSharedSecretSize is the size of the derived hybrid shared secret.
	KEMSharedSecretSize = 32
)

// Symmetric primitive parameters.
const (
	// SymKeySize is the size of every symmetric key in the protocol:
	// chaining keys, token keys, and the output session key.
	SymKeySize = 32

	// AEADNonceSize is the XChaCha20-Poly1305 nonce size.
	AEADNonceSize = 24

	// AEADTagSize is the Poly1305 authentication tag size.
	AEADTagSize = 16

	// HashSize is the SHA3-256 / truncated SHAKE-256 output size.
	HashSize = 32
)

// Handshake wire sizes. Every field is fixed-width; a message is valid only
// at exactly its expected length.
const (
	// SessionIDSize is the size of the random per-attempt session identifier.
	SessionIDSize = 8

	// PeerIDSize is the size of a peer identity commitment
	// (keyed hash of the peer's static public key).
	PeerIDSize = 32

	// MACSize is the size of the outer anti-DoS message MAC.
	MACSize = 16

	// AuthSize is the size of the transcript authentication tag.
	AuthSize = 32

	// TokenPlaintextSize is the fixed serialized size of a resumption
	// token before sealing: peer id + chain key + transcript hash +
	// counter + issue time.
	TokenPlaintextSize = PeerIDSize + SymKeySize + HashSize + 8 + 8

	// TokenSize is the sealed token size: nonce + plaintext + tag.
	TokenSize = AEADNonceSize + TokenPlaintextSize + AEADTagSize
)

// Full message sizes, derived from the layouts in pkg/protocol.
const (
	InitHelloSize = 1 + SessionIDSize + PeerIDSize + KEMPublicKeySize + KEMCiphertextSize + MACSize
	RespHelloSize = 1 + 2*SessionIDSize + 2*KEMCiphertextSize + TokenSize + AuthSize + MACSize
	InitConfSize  = 1 + 2*SessionIDSize + TokenSize + AuthSize + MACSize

	// MaxMessageSize bounds every datagram the engine will accept.
	MaxMessageSize = RespHelloSize
)

// KDF labels. Each derivation in the key schedule uses a distinct label so
// no two outputs can collide across purposes.
const (
	LabelPeerID     = "peer id"
	LabelMAC        = "mac"
	LabelToken      = "token"
	LabelRespAuth   = "response auth"
	LabelConfirm    = "confirm"
	LabelSessionKey = "session key"
	LabelMix        = "mix"
)

// Handshake timing. The retransmission curve follows the WireGuard paper's
// discipline: rekey every two minutes, reject after three, retransmit with
// exponential backoff and jitter. These are policy defaults, overridable
// through configuration, not protocol surface.
var (
	// RekeyAfterTime is how long a session key is used before a fresh
	// handshake is proactively started.
	RekeyAfterTime = 2 * time.Minute

	// RejectAfterTime bounds both the lifetime of an unconfirmed handshake
	// attempt and the validity window of a resumption token.
	RejectAfterTime = 3 * time.Minute

	// RetransmitDelayBegin is the initial retransmission delay.
	RetransmitDelayBegin = 500 * time.Millisecond

	// RetransmitDelayGrowth multiplies the delay after every retransmission.
	RetransmitDelayGrowth = 2.0

	// RetransmitDelayEnd caps the retransmission delay.
	RetransmitDelayEnd = 10 * time.Second

	// RetransmitDelayJitter is the uniform jitter added to each delay.
	RetransmitDelayJitter = 500 * time.Millisecond

	// TokenKeyEpoch is how often the responder rotates its token-sealing
	// key. Tokens sealed under the previous key remain acceptable for one
	// further epoch.
	TokenKeyEpoch = 5 * time.Minute
)

// Broker timing.
var (
	// BrokerDeliverTimeout bounds one install round trip over the IPC channel.
	BrokerDeliverTimeout = 2 * time.Second

	// BrokerRetryBegin is the initial delay before retrying a failed install.
	BrokerRetryBegin = 1 * time.Second

	// BrokerRetryGrowth multiplies the retry delay after every failure.
	BrokerRetryGrowth = 2.0

	// BrokerRetryEnd caps the retry delay.
	BrokerRetryEnd = 30 * time.Second

	// BrokerMaxRetries is how many times an install is retried before the
	// failure is surfaced to the operator.
	BrokerMaxRetries = 5
)

// Broker wire limits.
const (
	// BrokerMaxFrameSize bounds a single IPC frame.
	BrokerMaxFrameSize = 4096

	// BrokerMaxIfaceLen bounds the tunnel interface name in set-parameters.
	BrokerMaxIfaceLen = 64
)
