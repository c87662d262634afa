// attempt.go holds the transient state of one in-flight exchange on the
// initiator side. The responder side deliberately has no counterpart: its
// intermediate state travels inside the sealed resumption token.
package handshake

import (
	"math/rand"
	"time"

	"github.com/pqwire/pqwire/internal/constants"
	"github.com/pqwire/pqwire/pkg/crypto"
	"github.com/pqwire/pqwire/pkg/secmem"
)

// attemptPhase tracks which message the attempt is retransmitting.
type attemptPhase uint8

const (
	// phaseAwaitResponse: InitHello sent, waiting for RespHello.
	phaseAwaitResponse attemptPhase = iota

	// phaseConfirming: InitConf sent, session installed locally; the
	// message is retransmitted until the attempt deadline in case the
	// first copy was lost. The responder discards duplicates through
	// token consumption, so retransmission is harmless.
	phaseConfirming
)

// attempt is one in-flight handshake, destroyed on completion, abandonment,
// or supersession by a newer attempt for the same peer.
type attempt struct {
	sid [constants.SessionIDSize]byte

	phase attemptPhase

	// ephemeralSK is this attempt's hybrid decapsulation key.
	ephemeralSK *secmem.Secret

	// chainKey and transcript carry the key schedule between InitHello
	// and RespHello.
	chainKey   []byte
	transcript []byte

	// lastMsg is the most recent datagram sent, resent verbatim on the
	// retransmission schedule.
	lastMsg []byte

	retransmitAt time.Time
	delay        time.Duration

	// deadline bounds the whole attempt; past it the attempt is
	// abandoned and any previous session key stays in effect.
	deadline time.Time
}

// nextRetransmit advances the backoff schedule after a resend.
func (a *attempt) nextRetransmit(now time.Time, t Timing) {
	a.delay = time.Duration(float64(a.delay) * t.RetransmitGrowth)
	if a.delay > t.RetransmitEnd {
		a.delay = t.RetransmitEnd
	}
	jitter := time.Duration(rand.Int63n(int64(t.RetransmitJitter) + 1))
	a.retransmitAt = now.Add(a.delay + jitter)
}

// destroy erases all secret state the attempt holds.
func (a *attempt) destroy() {
	if a.ephemeralSK != nil {
		a.ephemeralSK.Destroy()
		a.ephemeralSK = nil
	}
	crypto.ZeroizeMultiple(a.chainKey, a.transcript)
	a.chainKey = nil
	a.transcript = nil
	a.lastMsg = nil
}
