// peer.go holds the per-peer session state the machine keeps for the
// process lifetime: one PeerSession per configured peer.
package handshake

import (
	"time"

	"github.com/pqwire/pqwire/internal/constants"
	"github.com/pqwire/pqwire/pkg/secmem"
)

// State names the handshake position of a PeerSession. Idle is both the
// initial state and the steady state after completion: a finished session
// returns to Idle for the next handshake while its key stays live.
type State uint8

const (
	StateIdle State = iota
	StateInitiatorWaitResponse
	StateResponderWaitConfirm
	StateInitiatorComplete
	StateResponderComplete
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateInitiatorWaitResponse:
		return "InitiatorWaitResponse"
	case StateResponderWaitConfirm:
		return "ResponderWaitConfirm"
	case StateInitiatorComplete:
		return "InitiatorComplete"
	case StateResponderComplete:
		return "ResponderComplete"
	default:
		return "Unknown"
	}
}

// PeerSession is the long-lived state for one configured peer. The machine
// owns it exclusively; the session key is replaced, never mutated, on each
// completed handshake.
type PeerSession struct {
	// id is the inbound identity commitment: the value an InitHello from
	// this peer carries, and the canonical peer identifier the engine
	// and broker use.
	id [constants.PeerIDSize]byte

	// outboundID is the commitment our own InitHello carries when we
	// initiate toward this peer.
	outboundID [constants.PeerIDSize]byte

	// staticPK is the peer's long-term hybrid public key.
	staticPK []byte

	// macKey keys the outer MAC on messages we send to this peer,
	// derived from the peer's static public key.
	macKey []byte

	state State

	// epoch counts completed handshakes with this peer; it tags every
	// key installation so the broker can reject stale requests.
	epoch uint64

	// sessionKey is the currently negotiated key, nil before the first
	// completed handshake.
	sessionKey *secmem.Secret

	// rekeyAt schedules the next proactive handshake.
	rekeyAt time.Time

	// respondedAt stamps the last RespHello sent to this peer, so the
	// ResponderWaitConfirm state can expire with the token it issued.
	respondedAt time.Time

	// attempt is the in-flight initiator-side exchange, nil when none.
	attempt *attempt
}

// ID returns the canonical peer identifier.
func (p *PeerSession) ID() [constants.PeerIDSize]byte {
	return p.id
}

// Epoch returns the number of completed handshakes with this peer.
func (p *PeerSession) Epoch() uint64 {
	return p.epoch
}

// State returns the current handshake state.
func (p *PeerSession) State() State {
	return p.state
}

// installKey replaces the session key. The old key is destroyed only after
// the new one is in place, so there is never a moment without a live key
// once the first handshake has completed.
func (p *PeerSession) installKey(key *secmem.Secret, now time.Time, rekeyAfter time.Duration) {
	old := p.sessionKey
	p.sessionKey = key
	p.epoch++
	p.rekeyAt = now.Add(rekeyAfter)
	if old != nil {
		old.Destroy()
	}
}

// destroy releases all secret state held for the peer.
func (p *PeerSession) destroy() {
	if p.attempt != nil {
		p.attempt.destroy()
		p.attempt = nil
	}
	if p.sessionKey != nil {
		p.sessionKey.Destroy()
		p.sessionKey = nil
	}
}
