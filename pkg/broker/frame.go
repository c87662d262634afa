// Package broker carries derived session keys from the unprivileged engine
// to a privileged process that programs the tunnel driver. The two sides
// speak length-prefixed frames over a local stream socket; the key never
// touches the filesystem or the network.
package broker

import (
	"encoding/binary"
	"io"

	"github.com/pqwire/pqwire/internal/constants"
	pqerrors "github.com/pqwire/pqwire/internal/errors"
)

// Kind identifies a frame type.
type Kind uint8

const (
	// KindInstallKey requests installation of a session key; the payload
	// is the key itself.
	KindInstallKey Kind = 0x01

	// KindSetParams configures the tunnel interface name; the payload is
	// the name.
	KindSetParams Kind = 0x02

	// KindAck acknowledges the previous request.
	KindAck Kind = 0x03

	// KindError rejects the previous request; the payload starts with a
	// status byte.
	KindError Kind = 0x04
)

// Status codes carried in the first payload byte of a KindError frame.
const (
	StatusStaleEpoch    uint8 = 0x01
	StatusInstallFailed uint8 = 0x02
	StatusBadRequest    uint8 = 0x03
)

// Frame is one IPC message.
//
// Wire layout, after a big-endian uint32 total length:
//
//	kind      1 byte
//	peer id  32 bytes
//	epoch     8 bytes, big endian
//	payload   remainder
type Frame struct {
	Kind    Kind
	PeerID  [constants.PeerIDSize]byte
	Epoch   uint64
	Payload []byte
}

const frameHeaderSize = 1 + constants.PeerIDSize + 8

// WriteFrame serializes one frame to w.
func WriteFrame(w io.Writer, f *Frame) error {
	total := frameHeaderSize + len(f.Payload)
	if 4+total > constants.BrokerMaxFrameSize {
		return pqerrors.ErrFrameTooLarge
	}

	buf := make([]byte, 4+total)
	binary.BigEndian.PutUint32(buf, uint32(total))
	buf[4] = byte(f.Kind)
	copy(buf[5:], f.PeerID[:])
	binary.BigEndian.PutUint64(buf[5+constants.PeerIDSize:], f.Epoch)
	copy(buf[4+frameHeaderSize:], f.Payload)

	_, err := w.Write(buf)
	zeroize(buf[4+frameHeaderSize:])
	return err
}

// ReadFrame reads one frame from r, enforcing the frame size bound before
// allocating.
func ReadFrame(r io.Reader) (*Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	total := binary.BigEndian.Uint32(lenBuf[:])
	if total < frameHeaderSize || 4+total > constants.BrokerMaxFrameSize {
		return nil, pqerrors.ErrFrameTooLarge
	}

	buf := make([]byte, total)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	f := &Frame{Kind: Kind(buf[0])}
	copy(f.PeerID[:], buf[1:])
	f.Epoch = binary.BigEndian.Uint64(buf[1+constants.PeerIDSize:])
	f.Payload = buf[frameHeaderSize:]
	return f, nil
}

// Zeroize erases the frame payload. Install frames carry key material, so
// both sides erase after use.
func (f *Frame) Zeroize() {
	zeroize(f.Payload)
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
