// codec.go serializes and parses the fixed-layout handshake messages.
//
// Encoding writes fields at fixed offsets; decoding accepts a datagram only
// at exactly the size its type byte dictates. The MAC field is written and
// verified by the handshake layer, which owns the MAC key; the codec treats
// it as opaque bytes.
package protocol

import (
	"github.com/pqwire/pqwire/internal/constants"
	pqerrors "github.com/pqwire/pqwire/internal/errors"
)

// PeekType returns the message type of a raw datagram without parsing it.
func PeekType(data []byte) (MessageType, error) {
	if len(data) == 0 {
		return 0, pqerrors.ErrInvalidMessage
	}
	t := MessageType(data[0])
	switch t {
	case MessageTypeInitHello, MessageTypeRespHello, MessageTypeInitConf:
		return t, nil
	default:
		return 0, pqerrors.ErrInvalidMessage
	}
}

// MACBody returns the bytes covered by the outer MAC: everything except the
// trailing MAC field itself. Valid only for a correctly sized datagram.
func MACBody(data []byte) []byte {
	return data[:len(data)-constants.MACSize]
}

// MACField returns the trailing MAC bytes of a raw datagram.
func MACField(data []byte) []byte {
	return data[len(data)-constants.MACSize:]
}

// ExpectedSize returns the exact datagram size for a message type.
func ExpectedSize(t MessageType) int {
	switch t {
	case MessageTypeInitHello:
		return constants.InitHelloSize
	case MessageTypeRespHello:
		return constants.RespHelloSize
	case MessageTypeInitConf:
		return constants.InitConfSize
	default:
		return 0
	}
}

// EncodeInitHello serializes an InitHello.
func EncodeInitHello(m *InitHello) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, constants.InitHelloSize)
	offset := 0

	buf[offset] = byte(MessageTypeInitHello)
	offset++
	offset += copy(buf[offset:], m.SessionID[:])
	offset += copy(buf[offset:], m.PeerID[:])
	offset += copy(buf[offset:], m.EphemeralPK)
	offset += copy(buf[offset:], m.StaticCT)
	copy(buf[offset:], m.MAC[:])

	return buf, nil
}

// DecodeInitHello parses an InitHello from a raw datagram.
func DecodeInitHello(data []byte) (*InitHello, error) {
	if len(data) != constants.InitHelloSize || MessageType(data[0]) != MessageTypeInitHello {
		return nil, pqerrors.NewProtocolError("InitHello", pqerrors.ErrInvalidMessage)
	}

	m := &InitHello{
		EphemeralPK: make([]byte, constants.KEMPublicKeySize),
		StaticCT:    make([]byte, constants.KEMCiphertextSize),
	}
	offset := 1
	offset += copy(m.SessionID[:], data[offset:])
	offset += copy(m.PeerID[:], data[offset:])
	offset += copy(m.EphemeralPK, data[offset:offset+constants.KEMPublicKeySize])
	offset += copy(m.StaticCT, data[offset:offset+constants.KEMCiphertextSize])
	copy(m.MAC[:], data[offset:])

	return m, nil
}

// EncodeRespHello serializes a RespHello.
func EncodeRespHello(m *RespHello) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, constants.RespHelloSize)
	offset := 0

	buf[offset] = byte(MessageTypeRespHello)
	offset++
	offset += copy(buf[offset:], m.SessionID[:])
	offset += copy(buf[offset:], m.InitiatorSessionID[:])
	offset += copy(buf[offset:], m.EphemeralCT)
	offset += copy(buf[offset:], m.StaticCT)
	offset += copy(buf[offset:], m.Token)
	offset += copy(buf[offset:], m.Auth[:])
	copy(buf[offset:], m.MAC[:])

	return buf, nil
}

// DecodeRespHello parses a RespHello from a raw datagram.
func DecodeRespHello(data []byte) (*RespHello, error) {
	if len(data) != constants.RespHelloSize || MessageType(data[0]) != MessageTypeRespHello {
		return nil, pqerrors.NewProtocolError("RespHello", pqerrors.ErrInvalidMessage)
	}

	m := &RespHello{
		EphemeralCT: make([]byte, constants.KEMCiphertextSize),
		StaticCT:    make([]byte, constants.KEMCiphertextSize),
		Token:       make([]byte, constants.TokenSize),
	}
	offset := 1
	offset += copy(m.SessionID[:], data[offset:])
	offset += copy(m.InitiatorSessionID[:], data[offset:])
	offset += copy(m.EphemeralCT, data[offset:offset+constants.KEMCiphertextSize])
	offset += copy(m.StaticCT, data[offset:offset+constants.KEMCiphertextSize])
	offset += copy(m.Token, data[offset:offset+constants.TokenSize])
	offset += copy(m.Auth[:], data[offset:])
	copy(m.MAC[:], data[offset:])

	return m, nil
}

// EncodeInitConf serializes an InitConf.
func EncodeInitConf(m *InitConf) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, constants.InitConfSize)
	offset := 0

	buf[offset] = byte(MessageTypeInitConf)
	offset++
	offset += copy(buf[offset:], m.SessionID[:])
	offset += copy(buf[offset:], m.ResponderSessionID[:])
	offset += copy(buf[offset:], m.Token)
	offset += copy(buf[offset:], m.Auth[:])
	copy(buf[offset:], m.MAC[:])

	return buf, nil
}

// DecodeInitConf parses an InitConf from a raw datagram.
func DecodeInitConf(data []byte) (*InitConf, error) {
	if len(data) != constants.InitConfSize || MessageType(data[0]) != MessageTypeInitConf {
		return nil, pqerrors.NewProtocolError("InitConf", pqerrors.ErrInvalidMessage)
	}

	m := &InitConf{
		Token: make([]byte, constants.TokenSize),
	}
	offset := 1
	offset += copy(m.SessionID[:], data[offset:])
	offset += copy(m.ResponderSessionID[:], data[offset:])
	offset += copy(m.Token, data[offset:offset+constants.TokenSize])
	offset += copy(m.Auth[:], data[offset:])
	copy(m.MAC[:], data[offset:])

	return m, nil
}
