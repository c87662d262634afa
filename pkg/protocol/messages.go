// Package protocol defines the three handshake wire messages and their
// fixed-layout codec.
//
// Every message is a single datagram with a 1-byte type, fixed-width fields,
// and a trailing 16-byte MAC keyed from the receiver's static public key.
// There are no length fields and no variable-width data anywhere: a datagram
// is valid only at exactly the size its type dictates, which keeps the
// parser trivial and removes a whole class of framing bugs from the
// pre-authentication attack surface.
package protocol

import (
	"github.com/pqwire/pqwire/internal/constants"
	pqerrors "github.com/pqwire/pqwire/internal/errors"
)

// MessageType identifies a handshake message.
type MessageType uint8

const (
	// MessageTypeInitHello opens a handshake: initiator to responder.
	MessageTypeInitHello MessageType = 0x01

	// MessageTypeRespHello answers with the responder's encapsulation and
	// the sealed resumption token.
	MessageTypeRespHello MessageType = 0x02

	// MessageTypeInitConf returns the token and confirms the session.
	MessageTypeInitConf MessageType = 0x03
)

// String returns the message type name for logging.
func (t MessageType) String() string {
	switch t {
	case MessageTypeInitHello:
		return "InitHello"
	case MessageTypeRespHello:
		return "RespHello"
	case MessageTypeInitConf:
		return "InitConf"
	default:
		return "Unknown"
	}
}

// InitHello is the first handshake message.
//
// Layout (3257 bytes):
//
//	+------+-----------+--------+-------------+-----------+-----+
//	| Type | SessionID | PeerID | EphemeralPK | StaticCT  | MAC |
//	| 1B   | 8B        | 32B    | 1600B       | 1600B     | 16B |
//	+------+-----------+--------+-------------+-----------+-----+
type InitHello struct {
	// SessionID is the initiator's random per-attempt identifier.
	SessionID [constants.SessionIDSize]byte

	// PeerID commits to the initiator's identity: a keyed hash of the
	// initiator's static public key, recognizable only by a responder
	// that already knows that key.
	PeerID [constants.PeerIDSize]byte

	// EphemeralPK is the initiator's fresh hybrid encapsulation key.
	EphemeralPK []byte

	// StaticCT encapsulates a secret to the responder's static key,
	// authenticating the responder as soon as it can decapsulate.
	StaticCT []byte

	// MAC is the outer anti-DoS tag over all preceding bytes.
	MAC [constants.MACSize]byte
}

// RespHello is the second handshake message.
//
// Layout (3417 bytes):
//
//	+------+------+------+-------------+----------+-------+------+-----+
//	| Type | SidR | SidI | EphemeralCT | StaticCT | Token | Auth | MAC |
//	| 1B   | 8B   | 8B   | 1600B       | 1600B    | 152B  | 32B  | 16B |
//	+------+------+------+-------------+----------+-------+------+-----+
type RespHello struct {
	// SessionID is the responder's identifier for the nascent session.
	SessionID [constants.SessionIDSize]byte

	// InitiatorSessionID echoes the InitHello session ID so the
	// initiator can match the response to its attempt.
	InitiatorSessionID [constants.SessionIDSize]byte

	// EphemeralCT encapsulates to the initiator's ephemeral key,
	// carrying the forward-secrecy share.
	EphemeralCT []byte

	// StaticCT encapsulates to the initiator's static key. Only the
	// genuine initiator can decapsulate it, so the confirmation tag
	// derived from it authenticates the initiator to the responder.
	StaticCT []byte

	// Token is the sealed resumption token carrying the responder's
	// handshake state; the responder itself retains nothing.
	Token []byte

	// Auth authenticates the transcript up to this message under the
	// derived chain key.
	Auth [constants.AuthSize]byte

	// MAC is the outer anti-DoS tag over all preceding bytes.
	MAC [constants.MACSize]byte
}

// InitConf is the third and final handshake message.
//
// Layout (217 bytes):
//
//	+------+--------+--------+-------+------+-----+
//	| Type | SidI   | SidR   | Token | Auth | MAC |
//	| 1B   | 8B     | 8B     | 152B  | 32B  | 16B |
//	+------+--------+--------+-------+------+-----+
type InitConf struct {
	// SessionID is the initiator's session identifier.
	SessionID [constants.SessionIDSize]byte

	// ResponderSessionID echoes the RespHello session ID.
	ResponderSessionID [constants.SessionIDSize]byte

	// Token returns the resumption token so the responder can recover
	// the handshake state it sealed into it.
	Token []byte

	// Auth proves the initiator derived the same chain key.
	Auth [constants.AuthSize]byte

	// MAC is the outer anti-DoS tag over all preceding bytes.
	MAC [constants.MACSize]byte
}

// Validate checks field sizes before encoding.
func (m *InitHello) Validate() error {
	if len(m.EphemeralPK) != constants.KEMPublicKeySize {
		return pqerrors.NewProtocolError("InitHello", pqerrors.ErrInvalidMessage)
	}
	if len(m.StaticCT) != constants.KEMCiphertextSize {
		return pqerrors.NewProtocolError("InitHello", pqerrors.ErrInvalidMessage)
	}
	return nil
}

// Validate checks field sizes before encoding.
func (m *RespHello) Validate() error {
	if len(m.EphemeralCT) != constants.KEMCiphertextSize {
		return pqerrors.NewProtocolError("RespHello", pqerrors.ErrInvalidMessage)
	}
	if len(m.StaticCT) != constants.KEMCiphertextSize {
		return pqerrors.NewProtocolError("RespHello", pqerrors.ErrInvalidMessage)
	}
	if len(m.Token) != constants.TokenSize {
		return pqerrors.NewProtocolError("RespHello", pqerrors.ErrInvalidMessage)
	}
	return nil
}

// Validate checks field sizes before encoding.
func (m *InitConf) Validate() error {
	if len(m.Token) != constants.TokenSize {
		return pqerrors.NewProtocolError("InitConf", pqerrors.ErrInvalidMessage)
	}
	return nil
}
