package handshake

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/pqwire/pqwire/internal/constants"
	pqerrors "github.com/pqwire/pqwire/internal/errors"
	"github.com/pqwire/pqwire/pkg/crypto"
)

func testSealer(t *testing.T) *Sealer {
	t.Helper()
	s, err := NewSealer(3*time.Minute, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}
	return s
}

func testTokenInputs() (pid [constants.PeerIDSize]byte, ck, th []byte) {
	copy(pid[:], bytes.Repeat([]byte{0xaa}, constants.PeerIDSize))
	ck = crypto.Hash([]byte("chain"))
	th = crypto.Hash([]byte("transcript"))
	return pid, ck, th
}

func TestSealOpenRoundTrip(t *testing.T) {
	s := testSealer(t)
	pid, ck, th := testTokenInputs()
	now := time.Now()

	sealed, err := s.Seal(pid, ck, th, now)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if len(sealed) != constants.TokenSize {
		t.Fatalf("sealed size = %d, want %d", len(sealed), constants.TokenSize)
	}

	tok, err := s.Open(sealed, now)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer tok.Zeroize()

	if tok.PeerID != pid {
		t.Error("peer id did not round trip")
	}
	if !bytes.Equal(tok.ChainKey, ck) || !bytes.Equal(tok.TranscriptHash, th) {
		t.Error("chain state did not round trip")
	}
	if tok.Counter != 1 {
		t.Errorf("counter = %d, want 1", tok.Counter)
	}
}

func TestOpenRejectsForgery(t *testing.T) {
	s := testSealer(t)
	pid, ck, th := testTokenInputs()
	now := time.Now()

	sealed, err := s.Seal(pid, ck, th, now)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	for _, offset := range []int{0, constants.AEADNonceSize + 1, len(sealed) - 1} {
		tampered := bytes.Clone(sealed)
		tampered[offset] ^= 0x01
		if _, err := s.Open(tampered, now); !errors.Is(err, pqerrors.ErrInvalidToken) {
			t.Errorf("offset %d: Open = %v, want ErrInvalidToken", offset, err)
		}
	}

	if _, err := s.Open(sealed[:50], now); !errors.Is(err, pqerrors.ErrInvalidToken) {
		t.Errorf("short token = %v, want ErrInvalidToken", err)
	}

	// A token from a different sealer must not open.
	other := testSealer(t)
	if _, err := other.Open(sealed, now); !errors.Is(err, pqerrors.ErrInvalidToken) {
		t.Errorf("foreign token = %v, want ErrInvalidToken", err)
	}
}

func TestOpenRejectsExpired(t *testing.T) {
	s := testSealer(t)
	pid, ck, th := testTokenInputs()
	now := time.Now()

	sealed, err := s.Seal(pid, ck, th, now)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if _, err := s.Open(sealed, now.Add(3*time.Minute-time.Second)); err != nil {
		t.Errorf("token rejected inside its lifetime: %v", err)
	}
	if _, err := s.Open(sealed, now.Add(3*time.Minute+time.Second)); !errors.Is(err, pqerrors.ErrExpiredToken) {
		t.Errorf("expired token = %v, want ErrExpiredToken", err)
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	s := testSealer(t)
	var pid [constants.PeerIDSize]byte
	pid[0] = 1

	if err := s.Consume(pid, 1); err != nil {
		t.Fatalf("first consume failed: %v", err)
	}
	if err := s.Consume(pid, 1); !errors.Is(err, pqerrors.ErrConsumedToken) {
		t.Errorf("replayed consume = %v, want ErrConsumedToken", err)
	}
	if err := s.Consume(pid, 0); !errors.Is(err, pqerrors.ErrConsumedToken) {
		t.Errorf("stale consume = %v, want ErrConsumedToken", err)
	}
	if err := s.Consume(pid, 2); err != nil {
		t.Errorf("newer counter rejected: %v", err)
	}

	// Counters are tracked per peer.
	var other [constants.PeerIDSize]byte
	other[0] = 2
	if err := s.Consume(other, 1); err != nil {
		t.Errorf("other peer's counter affected: %v", err)
	}
}

func TestKeyRotationKeepsPreviousWindow(t *testing.T) {
	// Lifetime longer than the rotation period, so expiry does not mask
	// the key-rotation behavior under test.
	s, err := NewSealer(20*time.Minute, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}
	pid, ck, th := testTokenInputs()
	now := time.Now()

	sealed, err := s.Seal(pid, ck, th, now)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	// One rotation later the token still opens under the previous key.
	later := now.Add(5*time.Minute + time.Second)
	if _, err := s.Open(sealed, later); err != nil {
		t.Errorf("token rejected after one rotation: %v", err)
	}

	// A second rotation ages the sealing key out entirely.
	muchLater := later.Add(5*time.Minute + time.Second)
	if _, err := s.Open(sealed, muchLater); !errors.Is(err, pqerrors.ErrInvalidToken) {
		t.Errorf("token after two rotations = %v, want ErrInvalidToken", err)
	}
}

func TestSealCountersIncrease(t *testing.T) {
	s := testSealer(t)
	pid, ck, th := testTokenInputs()
	now := time.Now()

	var last uint64
	for i := 0; i < 5; i++ {
		sealed, err := s.Seal(pid, ck, th, now)
		if err != nil {
			t.Fatalf("Seal failed: %v", err)
		}
		tok, err := s.Open(sealed, now)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if tok.Counter <= last {
			t.Fatalf("counter %d did not increase past %d", tok.Counter, last)
		}
		last = tok.Counter
	}
}
