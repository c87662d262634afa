package protocol

import (
	"bytes"
	"testing"

	"github.com/pqwire/pqwire/internal/constants"
)

func testInitHello() *InitHello {
	m := &InitHello{
		EphemeralPK: bytes.Repeat([]byte{0xaa}, constants.KEMPublicKeySize),
		StaticCT:    bytes.Repeat([]byte{0xbb}, constants.KEMCiphertextSize),
	}
	copy(m.SessionID[:], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	copy(m.PeerID[:], bytes.Repeat([]byte{0xcc}, constants.PeerIDSize))
	copy(m.MAC[:], bytes.Repeat([]byte{0xdd}, constants.MACSize))
	return m
}

func TestInitHelloRoundTrip(t *testing.T) {
	m := testInitHello()

	data, err := EncodeInitHello(m)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(data) != constants.InitHelloSize {
		t.Fatalf("encoded size = %d, want %d", len(data), constants.InitHelloSize)
	}

	got, err := DecodeInitHello(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.SessionID != m.SessionID || got.PeerID != m.PeerID || got.MAC != m.MAC {
		t.Error("fixed fields did not round trip")
	}
	if !bytes.Equal(got.EphemeralPK, m.EphemeralPK) || !bytes.Equal(got.StaticCT, m.StaticCT) {
		t.Error("key fields did not round trip")
	}
}

func TestRespHelloRoundTrip(t *testing.T) {
	m := &RespHello{
		EphemeralCT: bytes.Repeat([]byte{0x11}, constants.KEMCiphertextSize),
		StaticCT:    bytes.Repeat([]byte{0x77}, constants.KEMCiphertextSize),
		Token:       bytes.Repeat([]byte{0x22}, constants.TokenSize),
	}
	copy(m.SessionID[:], []byte{9, 9, 9, 9, 9, 9, 9, 9})
	copy(m.InitiatorSessionID[:], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	copy(m.Auth[:], bytes.Repeat([]byte{0x33}, constants.AuthSize))
	copy(m.MAC[:], bytes.Repeat([]byte{0x44}, constants.MACSize))

	data, err := EncodeRespHello(m)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(data) != constants.RespHelloSize {
		t.Fatalf("encoded size = %d, want %d", len(data), constants.RespHelloSize)
	}

	got, err := DecodeRespHello(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.SessionID != m.SessionID || got.InitiatorSessionID != m.InitiatorSessionID {
		t.Error("session IDs did not round trip")
	}
	if !bytes.Equal(got.EphemeralCT, m.EphemeralCT) || !bytes.Equal(got.StaticCT, m.StaticCT) || !bytes.Equal(got.Token, m.Token) {
		t.Error("payload fields did not round trip")
	}
	if got.Auth != m.Auth || got.MAC != m.MAC {
		t.Error("tags did not round trip")
	}
}

func TestInitConfRoundTrip(t *testing.T) {
	m := &InitConf{
		Token: bytes.Repeat([]byte{0x55}, constants.TokenSize),
	}
	copy(m.SessionID[:], []byte{1, 1, 1, 1, 1, 1, 1, 1})
	copy(m.ResponderSessionID[:], []byte{2, 2, 2, 2, 2, 2, 2, 2})
	copy(m.Auth[:], bytes.Repeat([]byte{0x66}, constants.AuthSize))

	data, err := EncodeInitConf(m)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(data) != constants.InitConfSize {
		t.Fatalf("encoded size = %d, want %d", len(data), constants.InitConfSize)
	}

	got, err := DecodeInitConf(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.SessionID != m.SessionID || got.ResponderSessionID != m.ResponderSessionID {
		t.Error("session IDs did not round trip")
	}
	if !bytes.Equal(got.Token, m.Token) || got.Auth != m.Auth {
		t.Error("payload did not round trip")
	}
}

func TestDecodeRejectsWrongSize(t *testing.T) {
	data, err := EncodeInitHello(testInitHello())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated", data[:len(data)-1]},
		{"extended", append(bytes.Clone(data), 0x00)},
		{"empty", nil},
		{"wrong type for size", append([]byte{byte(MessageTypeRespHello)}, data[1:]...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeInitHello(tt.data); err == nil {
				t.Error("decode accepted malformed datagram")
			}
		})
	}
}

func TestEncodeValidatesFieldSizes(t *testing.T) {
	bad := testInitHello()
	bad.EphemeralPK = bad.EphemeralPK[:10]
	if _, err := EncodeInitHello(bad); err == nil {
		t.Error("encode accepted a short ephemeral key")
	}

	badResp := &RespHello{
		EphemeralCT: make([]byte, constants.KEMCiphertextSize),
		Token:       make([]byte, 10),
	}
	if _, err := EncodeRespHello(badResp); err == nil {
		t.Error("encode accepted a short token")
	}

	badConf := &InitConf{Token: make([]byte, 10)}
	if _, err := EncodeInitConf(badConf); err == nil {
		t.Error("encode accepted a short token")
	}
}

func TestPeekType(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    MessageType
		wantErr bool
	}{
		{"init hello", []byte{0x01}, MessageTypeInitHello, false},
		{"resp hello", []byte{0x02}, MessageTypeRespHello, false},
		{"init conf", []byte{0x03}, MessageTypeInitConf, false},
		{"unknown", []byte{0x7f}, 0, true},
		{"empty", nil, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PeekType(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PeekType error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("PeekType = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMACHelpers(t *testing.T) {
	data, err := EncodeInitConf(&InitConf{Token: make([]byte, constants.TokenSize)})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	body := MACBody(data)
	field := MACField(data)
	if len(body)+len(field) != len(data) {
		t.Error("MAC split does not cover the datagram")
	}
	if len(field) != constants.MACSize {
		t.Errorf("MAC field size = %d, want %d", len(field), constants.MACSize)
	}
}

func TestExpectedSize(t *testing.T) {
	if ExpectedSize(MessageTypeInitHello) != constants.InitHelloSize {
		t.Error("wrong InitHello size")
	}
	if ExpectedSize(MessageTypeRespHello) != constants.RespHelloSize {
		t.Error("wrong RespHello size")
	}
	if ExpectedSize(MessageTypeInitConf) != constants.InitConfSize {
		t.Error("wrong InitConf size")
	}
	if ExpectedSize(MessageType(0x7f)) != 0 {
		t.Error("unknown type has a size")
	}
}

func TestMessageTypeString(t *testing.T) {
	if MessageTypeInitHello.String() != "InitHello" || MessageType(0x7f).String() != "Unknown" {
		t.Error("unexpected String output")
	}
}
