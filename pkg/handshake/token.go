// token.go implements the sealed resumption token that lets the responder
// stay stateless between RespHello and InitConf.
//
// The token is an XChaCha20-Poly1305 box over a fixed 112-byte struct: the
// peer identity commitment, the chain key and transcript hash at the moment
// the responder replied, a per-sealer monotonic counter, and the issue time.
// The responder hands it out with RespHello and forgets everything; when the
// token comes back inside InitConf, opening it restores exactly the state
// needed to finish the handshake.
//
// Sealing keys rotate on a fixed period with a current/previous pair, so a
// token stays openable across one rotation boundary and a stolen sealing key
// ages out of usefulness. Consumption is tracked per peer as the highest
// counter seen: a counter at or below the high-water mark was already used
// (or superseded), which makes one token good for at most one session while
// retransmitted InitConf copies stay harmless.
package handshake

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/pqwire/pqwire/internal/constants"
	pqerrors "github.com/pqwire/pqwire/internal/errors"
	"github.com/pqwire/pqwire/pkg/crypto"
)

// Token is the decoded contents of a resumption token.
type Token struct {
	// PeerID identifies which configured peer the handshake belongs to.
	PeerID [constants.PeerIDSize]byte

	// ChainKey is the KDF chain state after the responder's reply.
	ChainKey []byte

	// TranscriptHash is the transcript up to (not including) the token
	// bytes themselves.
	TranscriptHash []byte

	// Counter orders tokens issued to the same peer.
	Counter uint64

	// IssuedAt stamps the token for expiry checking.
	IssuedAt time.Time
}

// Zeroize erases the chain key.
func (t *Token) Zeroize() {
	crypto.Zeroize(t.ChainKey)
}

// Sealer issues and opens resumption tokens.
type Sealer struct {
	mu          sync.Mutex
	currentKey  []byte
	previousKey []byte
	rotatedAt   time.Time
	rotateEvery time.Duration
	lifetime    time.Duration
	counter     uint64
	consumed    map[[constants.PeerIDSize]byte]uint64
}

// NewSealer creates a Sealer with a random initial key. lifetime bounds how
// long an issued token stays valid; rotateEvery is the key-rotation period.
func NewSealer(lifetime, rotateEvery time.Duration) (*Sealer, error) {
	key, err := crypto.SecureRandomBytes(constants.SymKeySize)
	if err != nil {
		return nil, err
	}
	if lifetime <= 0 {
		lifetime = constants.RejectAfterTime
	}
	if rotateEvery <= 0 {
		rotateEvery = constants.TokenKeyEpoch
	}
	return &Sealer{
		currentKey:  key,
		rotatedAt:   time.Now(),
		rotateEvery: rotateEvery,
		lifetime:    lifetime,
		consumed:    make(map[[constants.PeerIDSize]byte]uint64),
	}, nil
}

// Seal encodes and encrypts a token for the given peer, assigning it the
// next counter value. Returns the fixed 152-byte sealed capsule.
func (s *Sealer) Seal(peerID [constants.PeerIDSize]byte, chainKey, transcriptHash []byte, now time.Time) ([]byte, error) {
	if len(chainKey) != constants.SymKeySize || len(transcriptHash) != constants.HashSize {
		return nil, pqerrors.NewCryptoError("Sealer.Seal", pqerrors.ErrInvalidKeySize)
	}

	s.mu.Lock()
	s.maybeRotate(now)
	s.counter++
	counter := s.counter
	key := s.currentKey
	s.mu.Unlock()

	plaintext := make([]byte, constants.TokenPlaintextSize)
	offset := copy(plaintext, peerID[:])
	offset += copy(plaintext[offset:], chainKey)
	offset += copy(plaintext[offset:], transcriptHash)
	binary.BigEndian.PutUint64(plaintext[offset:], counter)
	offset += 8
	binary.BigEndian.PutUint64(plaintext[offset:], uint64(now.Unix()))
	defer crypto.Zeroize(plaintext)

	return crypto.SealRandom(key, []byte(constants.LabelToken), plaintext)
}

// Open authenticates and decodes a sealed token. Tries the current key, then
// the previous one, then rejects. Expired tokens are rejected regardless of
// which key seals them.
func (s *Sealer) Open(sealed []byte, now time.Time) (*Token, error) {
	if len(sealed) != constants.TokenSize {
		return nil, pqerrors.ErrInvalidToken
	}

	s.mu.Lock()
	s.maybeRotate(now)
	current := s.currentKey
	previous := s.previousKey
	lifetime := s.lifetime
	s.mu.Unlock()

	plaintext, err := crypto.OpenRandom(current, []byte(constants.LabelToken), sealed)
	if err != nil && previous != nil {
		plaintext, err = crypto.OpenRandom(previous, []byte(constants.LabelToken), sealed)
	}
	if err != nil {
		return nil, pqerrors.ErrInvalidToken
	}
	defer crypto.Zeroize(plaintext)

	tok := &Token{
		ChainKey:       make([]byte, constants.SymKeySize),
		TranscriptHash: make([]byte, constants.HashSize),
	}
	offset := copy(tok.PeerID[:], plaintext)
	offset += copy(tok.ChainKey, plaintext[offset:offset+constants.SymKeySize])
	offset += copy(tok.TranscriptHash, plaintext[offset:offset+constants.HashSize])
	tok.Counter = binary.BigEndian.Uint64(plaintext[offset:])
	offset += 8
	tok.IssuedAt = time.Unix(int64(binary.BigEndian.Uint64(plaintext[offset:])), 0)

	if now.Sub(tok.IssuedAt) > lifetime {
		tok.Zeroize()
		return nil, pqerrors.ErrExpiredToken
	}

	return tok, nil
}

// Consume marks a token as used. A counter at or below the peer's high-water
// mark was already consumed or superseded and is rejected; retransmitted
// confirmations therefore cannot complete a second session from one token.
func (s *Sealer) Consume(peerID [constants.PeerIDSize]byte, counter uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if counter <= s.consumed[peerID] {
		return pqerrors.ErrConsumedToken
	}
	s.consumed[peerID] = counter
	return nil
}

// maybeRotate demotes the current key once the rotation period has elapsed.
// Callers hold s.mu.
func (s *Sealer) maybeRotate(now time.Time) {
	if now.Sub(s.rotatedAt) < s.rotateEvery {
		return
	}
	key, err := crypto.SecureRandomBytes(constants.SymKeySize)
	if err != nil {
		// Keep sealing under the old key rather than halting the
		// responder; entropy failure surfaces on the next handshake.
		return
	}
	if s.previousKey != nil {
		crypto.Zeroize(s.previousKey)
	}
	s.previousKey = s.currentKey
	s.currentKey = key
	s.rotatedAt = now
}
