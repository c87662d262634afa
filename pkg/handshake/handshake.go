// Package handshake implements the three-message post-quantum key-exchange
// state machine.
//
// One Machine serves one local identity. It holds a PeerSession per
// configured peer, runs exchanges in either role, and reports each completed
// session as a Result carrying the derived key and its epoch. The caller (a
// single-threaded engine loop) feeds it datagrams and clock ticks; the
// machine never touches the network itself.
//
// # Key schedule
//
// Both sides advance a SHAKE-256 chain key ck and a SHA3-256 transcript hash
// th. With initiator static key spkI, responder static key spkR, initiator
// ephemeral epk:
//
//	ck = H(label || "chain key"),  th = H(label || "transcript")
//	ck = mix(ck, spkR); ck = mix(ck, spkI)
//	InitHello:  (sct, ssS) = Encap(spkR);  ck = mix(ck, ssS)
//	            th = H(th, InitHello bytes)
//	RespHello:  (ect, ssE) = Encap(epk);  (sct2, ssI) = Encap(spkI)
//	            ck = mix(ck, ssE); ck = mix(ck, ssI)
//	            th' = H(th, fields before token);  ck = mix(ck, th')
//	            token seals {peer id, ck, th'};  th = H(th', token)
//	            auth = kdf(ck, "response auth", th)
//	InitConf:   th = H(th, fields before auth)
//	            auth = kdf(ck, "confirm", th)
//	            session key = kdf(ck, "session key", th)
//
// Decapsulating sct authenticates the responder; decapsulating sct2
// authenticates the initiator; ect supplies forward secrecy. Every derived
// secret binds the full transcript, so any altered byte anywhere fails the
// confirmation step.
//
// Silence discipline: every malformed, unexpected, replayed, or unverifiable
// message is dropped without a reply and without a state change. The machine
// answers only a valid InitHello and a valid RespHello.
package handshake

import (
	"sync"
	"time"

	"github.com/pqwire/pqwire/internal/constants"
	pqerrors "github.com/pqwire/pqwire/internal/errors"
	"github.com/pqwire/pqwire/pkg/crypto"
	"github.com/pqwire/pqwire/pkg/kem"
	"github.com/pqwire/pqwire/pkg/protocol"
	"github.com/pqwire/pqwire/pkg/secmem"
)

// Byte offsets within RespHello and InitConf for the incremental transcript.
const (
	respHelloPreLen  = 1 + 2*constants.SessionIDSize + 2*constants.KEMCiphertextSize
	respHelloAuthOff = respHelloPreLen + constants.TokenSize
	initConfPreLen   = 1 + 2*constants.SessionIDSize + constants.TokenSize
)

// Timing collects the policy knobs of the retransmission and rekey
// schedule. These are configuration surface, not protocol surface; the zero
// value is replaced by the package defaults.
type Timing struct {
	RekeyAfter       time.Duration
	RejectAfter      time.Duration
	RetransmitBegin  time.Duration
	RetransmitGrowth float64
	RetransmitEnd    time.Duration
	RetransmitJitter time.Duration
	TokenLifetime    time.Duration
	TokenKeyEpoch    time.Duration
}

// DefaultTiming returns the standard schedule.
func DefaultTiming() Timing {
	return Timing{
		RekeyAfter:       constants.RekeyAfterTime,
		RejectAfter:      constants.RejectAfterTime,
		RetransmitBegin:  constants.RetransmitDelayBegin,
		RetransmitGrowth: constants.RetransmitDelayGrowth,
		RetransmitEnd:    constants.RetransmitDelayEnd,
		RetransmitJitter: constants.RetransmitDelayJitter,
		TokenLifetime:    constants.RejectAfterTime,
		TokenKeyEpoch:    constants.TokenKeyEpoch,
	}
}

func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.RekeyAfter <= 0 {
		t.RekeyAfter = d.RekeyAfter
	}
	if t.RejectAfter <= 0 {
		t.RejectAfter = d.RejectAfter
	}
	if t.RetransmitBegin <= 0 {
		t.RetransmitBegin = d.RetransmitBegin
	}
	if t.RetransmitGrowth < 1 {
		t.RetransmitGrowth = d.RetransmitGrowth
	}
	if t.RetransmitEnd <= 0 {
		t.RetransmitEnd = d.RetransmitEnd
	}
	if t.RetransmitJitter <= 0 {
		t.RetransmitJitter = d.RetransmitJitter
	}
	if t.TokenLifetime <= 0 {
		t.TokenLifetime = d.TokenLifetime
	}
	if t.TokenKeyEpoch <= 0 {
		t.TokenKeyEpoch = d.TokenKeyEpoch
	}
	return t
}

// Result reports one completed handshake.
type Result struct {
	// PeerID is the canonical identifier of the peer.
	PeerID [constants.PeerIDSize]byte

	// Epoch is the completed handshake count for the peer; the broker
	// rejects installs whose epoch does not exceed the last installed.
	Epoch uint64

	// Key is the derived session key. Ownership transfers to the caller,
	// who destroys it after delivery.
	Key *secmem.Secret

	// Initiator reports which role this side played.
	Initiator bool
}

// Outgoing is a datagram the machine wants sent to a peer.
type Outgoing struct {
	PeerID [constants.PeerIDSize]byte
	Data   []byte

	// Rekey marks a fresh proactive InitHello, as opposed to a
	// retransmission of the current attempt's last message.
	Rekey bool
}

// Machine is the handshake state machine for one local identity.
type Machine struct {
	mu sync.Mutex

	scheme   kem.Scheme
	staticPK []byte
	staticSK *secmem.Secret

	// selfMACKey verifies the outer MAC on inbound messages; peers
	// derive it from our public key.
	selfMACKey []byte

	sealer *Sealer
	timing Timing

	// peers is keyed by the inbound identity commitment.
	peers map[[constants.PeerIDSize]byte]*PeerSession

	// bySession finds the initiator-side attempt a RespHello answers.
	bySession map[[constants.SessionIDSize]byte]*PeerSession

	now func() time.Time
}

// NewMachine creates a machine for the given static identity. The private
// key Secret is owned by the machine from this point on.
func NewMachine(scheme kem.Scheme, staticPK []byte, staticSK *secmem.Secret, timing Timing) (*Machine, error) {
	if scheme == nil {
		scheme = kem.Default()
	}
	if len(staticPK) != scheme.PublicKeySize() {
		return nil, pqerrors.ErrInvalidPublicKey
	}
	if staticSK == nil || staticSK.Len() != scheme.PrivateKeySize() {
		return nil, pqerrors.ErrInvalidPrivateKey
	}

	timing = timing.withDefaults()
	sealer, err := NewSealer(timing.TokenLifetime, timing.TokenKeyEpoch)
	if err != nil {
		return nil, err
	}

	return &Machine{
		scheme:     scheme,
		staticPK:   staticPK,
		staticSK:   staticSK,
		selfMACKey: crypto.Hash([]byte(constants.LabelMAC), staticPK),
		sealer:     sealer,
		timing:     timing,
		peers:      make(map[[constants.PeerIDSize]byte]*PeerSession),
		bySession:  make(map[[constants.SessionIDSize]byte]*PeerSession),
		now:        time.Now,
	}, nil
}

// StaticPublicKey returns the machine's own static public key.
func (m *Machine) StaticPublicKey() []byte {
	return append([]byte(nil), m.staticPK...)
}

// AddPeer registers a peer by its static public key and returns the
// canonical peer identifier.
func (m *Machine) AddPeer(peerStaticPK []byte) ([constants.PeerIDSize]byte, error) {
	var id [constants.PeerIDSize]byte
	if len(peerStaticPK) != m.scheme.PublicKeySize() {
		return id, pqerrors.ErrInvalidPublicKey
	}

	// Inbound: the peer initiates, we respond.
	copy(id[:], crypto.Hash([]byte(constants.LabelPeerID), m.staticPK, peerStaticPK))

	var outbound [constants.PeerIDSize]byte
	copy(outbound[:], crypto.Hash([]byte(constants.LabelPeerID), peerStaticPK, m.staticPK))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.peers[id] = &PeerSession{
		id:         id,
		outboundID: outbound,
		staticPK:   append([]byte(nil), peerStaticPK...),
		macKey:     crypto.Hash([]byte(constants.LabelMAC), peerStaticPK),
	}
	return id, nil
}

// Peer returns the session for a registered peer, or nil.
func (m *Machine) Peer(id [constants.PeerIDSize]byte) *PeerSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peers[id]
}

// Initiate starts a fresh exchange with a peer and returns the InitHello to
// send. Any older in-flight attempt for the peer is superseded.
func (m *Machine) Initiate(peerID [constants.PeerIDSize]byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	peer, ok := m.peers[peerID]
	if !ok {
		return nil, pqerrors.ErrUnknownPeer
	}
	return m.initiateLocked(peer, m.now())
}

func (m *Machine) initiateLocked(peer *PeerSession, now time.Time) ([]byte, error) {
	if peer.attempt != nil {
		delete(m.bySession, peer.attempt.sid)
		peer.attempt.destroy()
		peer.attempt = nil
	}

	var sid [constants.SessionIDSize]byte
	if err := crypto.SecureRandom(sid[:]); err != nil {
		return nil, err
	}

	epk, esk, err := m.scheme.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	eskSecret, err := secmem.FromBytes(esk)
	if err != nil {
		return nil, err
	}

	ck, th := initialChain()
	if ck, err = mixInto(ck, peer.staticPK); err != nil {
		eskSecret.Destroy()
		return nil, err
	}
	if ck, err = mixInto(ck, m.staticPK); err != nil {
		eskSecret.Destroy()
		return nil, err
	}

	sct, ssS, err := m.scheme.Encapsulate(peer.staticPK)
	if err != nil {
		eskSecret.Destroy()
		return nil, err
	}
	ck, err = mixInto(ck, ssS)
	crypto.Zeroize(ssS)
	if err != nil {
		eskSecret.Destroy()
		return nil, err
	}

	msg := &protocol.InitHello{
		SessionID:   sid,
		PeerID:      peer.outboundID,
		EphemeralPK: epk,
		StaticCT:    sct,
	}
	data, err := protocol.EncodeInitHello(msg)
	if err != nil {
		eskSecret.Destroy()
		return nil, err
	}
	m.applyMAC(data, peer.macKey)

	th = crypto.Hash(th, protocol.MACBody(data))

	a := &attempt{
		sid:         sid,
		phase:       phaseAwaitResponse,
		ephemeralSK: eskSecret,
		chainKey:    ck,
		transcript:  th,
		lastMsg:     data,
		delay:       m.timing.RetransmitBegin,
		deadline:    now.Add(m.timing.RejectAfter),
	}
	a.retransmitAt = now.Add(a.delay)

	peer.attempt = a
	peer.state = StateInitiatorWaitResponse
	m.bySession[sid] = peer

	return data, nil
}

// Handle processes one inbound datagram. On success it may return a reply
// datagram to send back and a Result when a handshake completed. A nil
// reply with a non-nil error means the message was dropped; the error exists
// for local logging only and must never travel back to the sender.
func (m *Machine) Handle(data []byte) ([]byte, *Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(data) > constants.MaxMessageSize {
		return nil, nil, pqerrors.ErrMessageTooLarge
	}

	t, err := protocol.PeekType(data)
	if err != nil {
		return nil, nil, err
	}
	if len(data) != protocol.ExpectedSize(t) {
		return nil, nil, pqerrors.ErrInvalidMessage
	}

	// Outer anti-DoS filter: one keyed hash before any KEM work.
	expect := crypto.MAC(m.selfMACKey, constants.LabelMAC, protocol.MACBody(data))
	if !crypto.ConstantTimeCompare(expect, protocol.MACField(data)) {
		return nil, nil, pqerrors.ErrInvalidMAC
	}

	now := m.now()
	switch t {
	case protocol.MessageTypeInitHello:
		return m.handleInitHello(data, now)
	case protocol.MessageTypeRespHello:
		return m.handleRespHello(data, now)
	case protocol.MessageTypeInitConf:
		return m.handleInitConf(data, now)
	}
	return nil, nil, pqerrors.ErrInvalidMessage
}

// handleInitHello runs the responder side of message one. It commits no
// per-attempt state: everything the responder will need later leaves inside
// the sealed token.
func (m *Machine) handleInitHello(data []byte, now time.Time) ([]byte, *Result, error) {
	msg, err := protocol.DecodeInitHello(data)
	if err != nil {
		return nil, nil, err
	}

	peer, ok := m.peers[msg.PeerID]
	if !ok {
		return nil, nil, pqerrors.ErrUnknownPeer
	}

	ck, th := initialChain()
	defer func() { crypto.Zeroize(ck) }()
	if ck, err = mixInto(ck, m.staticPK); err != nil {
		return nil, nil, err
	}
	if ck, err = mixInto(ck, peer.staticPK); err != nil {
		return nil, nil, err
	}

	var ssS []byte
	err = m.staticSK.With(func(sk []byte) error {
		var derr error
		ssS, derr = m.scheme.Decapsulate(sk, msg.StaticCT)
		return derr
	})
	if err != nil {
		return nil, nil, err
	}
	ck, err = mixInto(ck, ssS)
	crypto.Zeroize(ssS)
	if err != nil {
		return nil, nil, err
	}

	th = crypto.Hash(th, protocol.MACBody(data))

	var sidR [constants.SessionIDSize]byte
	if err := crypto.SecureRandom(sidR[:]); err != nil {
		return nil, nil, err
	}

	ect, ssE, err := m.scheme.Encapsulate(msg.EphemeralPK)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.Zeroize(ssE)

	sct, ssI, err := m.scheme.Encapsulate(peer.staticPK)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.Zeroize(ssI)

	if ck, err = mixInto(ck, ssE); err != nil {
		return nil, nil, err
	}
	if ck, err = mixInto(ck, ssI); err != nil {
		return nil, nil, err
	}

	reply := &protocol.RespHello{
		SessionID:          sidR,
		InitiatorSessionID: msg.SessionID,
		EphemeralCT:        ect,
		StaticCT:           sct,
		Token:              make([]byte, constants.TokenSize),
	}
	out, err := protocol.EncodeRespHello(reply)
	if err != nil {
		return nil, nil, err
	}

	// Transcript over the fields before the token, then fold it into the
	// chain so the token seals a digest of the entire exchange so far.
	thPre := crypto.Hash(th, out[:respHelloPreLen])
	if ck, err = mixInto(ck, thPre); err != nil {
		return nil, nil, err
	}

	token, err := m.sealer.Seal(msg.PeerID, ck, thPre, now)
	if err != nil {
		return nil, nil, err
	}
	copy(out[respHelloPreLen:], token)

	thFull := crypto.Hash(thPre, token)
	_, auth, err := crypto.KDF(ck, constants.LabelRespAuth, thFull)
	if err != nil {
		return nil, nil, err
	}
	copy(out[respHelloAuthOff:], auth)

	m.applyMAC(out, peer.macKey)

	peer.state = StateResponderWaitConfirm
	peer.respondedAt = now
	return out, nil, nil
}

// handleRespHello runs the initiator side of message two and, on success,
// returns the InitConf to send plus the completed Result: the initiator
// treats its own confirmation as the implicit acknowledgment.
func (m *Machine) handleRespHello(data []byte, now time.Time) ([]byte, *Result, error) {
	msg, err := protocol.DecodeRespHello(data)
	if err != nil {
		return nil, nil, err
	}

	peer, ok := m.bySession[msg.InitiatorSessionID]
	if !ok || peer.attempt == nil || peer.attempt.phase != phaseAwaitResponse {
		return nil, nil, pqerrors.ErrUnexpectedMessage
	}
	a := peer.attempt

	var ssE []byte
	err = a.ephemeralSK.With(func(sk []byte) error {
		var derr error
		ssE, derr = m.scheme.Decapsulate(sk, msg.EphemeralCT)
		return derr
	})
	if err != nil {
		return nil, nil, err
	}
	defer crypto.Zeroize(ssE)

	var ssI []byte
	err = m.staticSK.With(func(sk []byte) error {
		var derr error
		ssI, derr = m.scheme.Decapsulate(sk, msg.StaticCT)
		return derr
	})
	if err != nil {
		return nil, nil, err
	}
	defer crypto.Zeroize(ssI)

	ck := append([]byte(nil), a.chainKey...)
	defer func() { crypto.Zeroize(ck) }()
	if ck, err = mixInto(ck, ssE); err != nil {
		return nil, nil, err
	}
	if ck, err = mixInto(ck, ssI); err != nil {
		return nil, nil, err
	}

	thPre := crypto.Hash(a.transcript, data[:respHelloPreLen])
	if ck, err = mixInto(ck, thPre); err != nil {
		return nil, nil, err
	}
	thFull := crypto.Hash(thPre, msg.Token)

	_, expect, err := crypto.KDF(ck, constants.LabelRespAuth, thFull)
	if err != nil {
		return nil, nil, err
	}
	if !crypto.ConstantTimeCompare(expect, msg.Auth[:]) {
		return nil, nil, pqerrors.ErrAuthenticationFailed
	}

	conf := &protocol.InitConf{
		SessionID:          msg.InitiatorSessionID,
		ResponderSessionID: msg.SessionID,
		Token:              msg.Token,
	}
	out, err := protocol.EncodeInitConf(conf)
	if err != nil {
		return nil, nil, err
	}

	thConf := crypto.Hash(thFull, out[:initConfPreLen])
	_, auth, err := crypto.KDF(ck, constants.LabelConfirm, thConf)
	if err != nil {
		return nil, nil, err
	}
	copy(out[initConfPreLen:], auth)
	m.applyMAC(out, peer.macKey)

	key, err := m.deriveSessionKey(ck, thConf)
	if err != nil {
		return nil, nil, err
	}
	result, err := m.complete(peer, key, true, now)
	if err != nil {
		return nil, nil, err
	}

	// Keep the attempt alive to retransmit InitConf; duplicates die at
	// the responder's token-consumption check.
	a.phase = phaseConfirming
	a.lastMsg = out
	a.delay = m.timing.RetransmitBegin
	a.retransmitAt = now.Add(a.delay)
	a.ephemeralSK.Destroy()
	crypto.ZeroizeMultiple(a.chainKey, a.transcript)

	peer.state = StateInitiatorComplete
	return out, result, nil
}

// handleInitConf runs the responder side of message three. All state comes
// out of the token; the only lookup is the configured-peer table.
func (m *Machine) handleInitConf(data []byte, now time.Time) ([]byte, *Result, error) {
	msg, err := protocol.DecodeInitConf(data)
	if err != nil {
		return nil, nil, err
	}

	tok, err := m.sealer.Open(msg.Token, now)
	if err != nil {
		return nil, nil, err
	}
	defer tok.Zeroize()

	peer, ok := m.peers[tok.PeerID]
	if !ok {
		return nil, nil, pqerrors.ErrUnknownPeer
	}

	thFull := crypto.Hash(tok.TranscriptHash, msg.Token)
	thConf := crypto.Hash(thFull, data[:initConfPreLen])

	_, expect, err := crypto.KDF(tok.ChainKey, constants.LabelConfirm, thConf)
	if err != nil {
		return nil, nil, err
	}
	if !crypto.ConstantTimeCompare(expect, msg.Auth[:]) {
		return nil, nil, pqerrors.ErrAuthenticationFailed
	}

	// Consume only after the tag verifies, so a forged message cannot
	// burn a live token. A consumed counter means this is a retransmit
	// of a confirmation we already accepted: drop it, keep the session.
	if err := m.sealer.Consume(tok.PeerID, tok.Counter); err != nil {
		return nil, nil, err
	}

	key, err := m.deriveSessionKey(tok.ChainKey, thConf)
	if err != nil {
		return nil, nil, err
	}
	result, err := m.complete(peer, key, false, now)
	if err != nil {
		return nil, nil, err
	}

	peer.state = StateResponderComplete
	return nil, result, nil
}

// deriveSessionKey produces the output key in locked memory.
func (m *Machine) deriveSessionKey(ck []byte, th []byte) (*secmem.Secret, error) {
	_, osk, err := crypto.KDF(ck, constants.LabelSessionKey, th)
	if err != nil {
		return nil, err
	}
	return secmem.FromBytes(osk)
}

// complete installs the new session key and builds the Result handed to the
// caller. The Result carries an independent copy so the broker path can
// destroy it without touching the live session key.
func (m *Machine) complete(peer *PeerSession, key *secmem.Secret, initiator bool, now time.Time) (*Result, error) {
	delivery, err := key.Clone()
	if err != nil {
		key.Destroy()
		return nil, err
	}

	peer.installKey(key, now, m.timing.RekeyAfter)

	return &Result{
		PeerID:    peer.id,
		Epoch:     peer.epoch,
		Key:       delivery,
		Initiator: initiator,
	}, nil
}

// Advance drives the timer-based transitions: retransmissions, attempt
// abandonment, and proactive rekeying. Returns the datagrams to send and the
// identifiers of peers whose attempts hit their deadline, so the caller can
// surface the failure.
func (m *Machine) Advance() (out []Outgoing, abandoned [][constants.PeerIDSize]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	for _, peer := range m.peers {
		if a := peer.attempt; a != nil {
			if !now.Before(a.deadline) {
				m.abandonLocked(peer)
				abandoned = append(abandoned, peer.id)
			} else if !now.Before(a.retransmitAt) {
				out = append(out, Outgoing{PeerID: peer.id, Data: a.lastMsg})
				a.nextRetransmit(now, m.timing)
			}
		}

		// A confirmation that never arrived cannot arrive anymore once
		// its token has expired; return the peer to its steady state.
		if peer.state == StateResponderWaitConfirm && !now.Before(peer.respondedAt.Add(m.timing.TokenLifetime)) {
			if peer.sessionKey != nil {
				peer.state = StateResponderComplete
			} else {
				peer.state = StateIdle
			}
		}

		// A confirming attempt does not block rekeying: the session is
		// already installed and a fresh exchange supersedes it.
		canRekey := peer.attempt == nil || peer.attempt.phase == phaseConfirming
		if canRekey && peer.sessionKey != nil && !now.Before(peer.rekeyAt) {
			if data, err := m.initiateLocked(peer, now); err == nil {
				out = append(out, Outgoing{PeerID: peer.id, Data: data, Rekey: true})
			}
		}
	}
	return out, abandoned
}

// NextDeadline returns the earliest pending timer, or the zero time when no
// timer is armed. The engine uses it to size its wait.
func (m *Machine) NextDeadline() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	var min time.Time
	earlier := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if min.IsZero() || t.Before(min) {
			min = t
		}
	}

	for _, peer := range m.peers {
		a := peer.attempt
		if a != nil {
			earlier(a.retransmitAt)
			earlier(a.deadline)
		}
		if (a == nil || a.phase == phaseConfirming) && peer.sessionKey != nil {
			earlier(peer.rekeyAt)
		}
	}
	return min
}

// abandonLocked drops an attempt past its deadline. Any previous session key
// stays untouched.
func (m *Machine) abandonLocked(peer *PeerSession) {
	delete(m.bySession, peer.attempt.sid)
	peer.attempt.destroy()
	peer.attempt = nil
	if peer.state == StateInitiatorWaitResponse {
		peer.state = StateIdle
	}
}

// Shutdown destroys every secret the machine holds.
func (m *Machine) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, peer := range m.peers {
		peer.destroy()
	}
	m.staticSK.Destroy()
}

// applyMAC writes the outer tag over everything before the MAC field.
func (m *Machine) applyMAC(data, macKey []byte) {
	tag := crypto.MAC(macKey, constants.LabelMAC, protocol.MACBody(data))
	copy(protocol.MACField(data), tag)
}

// mixInto advances the chain and erases the superseded chain key, so no
// intermediate chain state survives in memory.
func mixInto(ck, input []byte) ([]byte, error) {
	next, err := crypto.Mix(ck, input)
	crypto.Zeroize(ck)
	return next, err
}

// initialChain returns the label-derived starting points of the chain key
// and transcript hash.
func initialChain() (ck, th []byte) {
	ck = crypto.Hash([]byte(constants.ProtocolLabel), []byte("chain key"))
	th = crypto.Hash([]byte(constants.ProtocolLabel), []byte("transcript"))
	return ck, th
}
