// Package fuzz provides fuzz tests for the pre-authentication parsing
// surface: the fixed-layout message decoders, the inbound datagram handler,
// the resumption token opener, and the broker frame reader.
//
// Run fuzz tests with:
//
//	go test -fuzz=FuzzDecodeInitHello -fuzztime=30s ./test/fuzz/
//	go test -fuzz=FuzzDecodeRespHello -fuzztime=30s ./test/fuzz/
//	go test -fuzz=FuzzDecodeInitConf -fuzztime=30s ./test/fuzz/
//	go test -fuzz=FuzzMachineHandle -fuzztime=30s ./test/fuzz/
//	go test -fuzz=FuzzSealerOpen -fuzztime=30s ./test/fuzz/
//	go test -fuzz=FuzzReadFrame -fuzztime=30s ./test/fuzz/
package fuzz

import (
	"bytes"
	"testing"
	"time"

	"github.com/pqwire/pqwire/internal/constants"
	"github.com/pqwire/pqwire/pkg/broker"
	"github.com/pqwire/pqwire/pkg/handshake"
	"github.com/pqwire/pqwire/pkg/kem"
	"github.com/pqwire/pqwire/pkg/protocol"
	"github.com/pqwire/pqwire/pkg/secmem"
)

// FuzzDecodeInitHello fuzzes the InitHello decoder.
// This is security-critical as it processes untrusted input from the network.
func FuzzDecodeInitHello(f *testing.F) {
	// Valid message as seed
	valid := &protocol.InitHello{
		EphemeralPK: make([]byte, constants.KEMPublicKeySize),
		StaticCT:    make([]byte, constants.KEMCiphertextSize),
	}
	encoded, err := protocol.EncodeInitHello(valid)
	if err != nil {
		f.Fatalf("encode seed: %v", err)
	}
	f.Add(encoded)

	// Edge cases
	f.Add([]byte{})
	f.Add([]byte{byte(protocol.MessageTypeInitHello)})
	f.Add(make([]byte, constants.InitHelloSize-1))
	f.Add(make([]byte, constants.InitHelloSize))
	f.Add(make([]byte, constants.InitHelloSize+1))

	f.Fuzz(func(t *testing.T, data []byte) {
		// Should not panic regardless of input
		m, err := protocol.DecodeInitHello(data)
		if err != nil {
			return
		}
		if err := m.Validate(); err != nil {
			t.Errorf("decoded message failed validation: %v", err)
		}
	})
}

// FuzzDecodeRespHello fuzzes the RespHello decoder.
func FuzzDecodeRespHello(f *testing.F) {
	valid := &protocol.RespHello{
		EphemeralCT: make([]byte, constants.KEMCiphertextSize),
		StaticCT:    make([]byte, constants.KEMCiphertextSize),
		Token:       make([]byte, constants.TokenSize),
	}
	encoded, err := protocol.EncodeRespHello(valid)
	if err != nil {
		f.Fatalf("encode seed: %v", err)
	}
	f.Add(encoded)

	f.Add([]byte{})
	f.Add([]byte{byte(protocol.MessageTypeRespHello)})
	f.Add(make([]byte, constants.RespHelloSize-1))
	f.Add(make([]byte, constants.RespHelloSize))

	f.Fuzz(func(t *testing.T, data []byte) {
		m, err := protocol.DecodeRespHello(data)
		if err != nil {
			return
		}
		if err := m.Validate(); err != nil {
			t.Errorf("decoded message failed validation: %v", err)
		}
	})
}

// FuzzDecodeInitConf fuzzes the InitConf decoder.
func FuzzDecodeInitConf(f *testing.F) {
	valid := &protocol.InitConf{
		Token: make([]byte, constants.TokenSize),
	}
	encoded, err := protocol.EncodeInitConf(valid)
	if err != nil {
		f.Fatalf("encode seed: %v", err)
	}
	f.Add(encoded)

	f.Add([]byte{})
	f.Add([]byte{byte(protocol.MessageTypeInitConf)})
	f.Add(make([]byte, constants.InitConfSize-1))
	f.Add(make([]byte, constants.InitConfSize))

	f.Fuzz(func(t *testing.T, data []byte) {
		m, err := protocol.DecodeInitConf(data)
		if err != nil {
			return
		}
		if err := m.Validate(); err != nil {
			t.Errorf("decoded message failed validation: %v", err)
		}
	})
}

// FuzzMachineHandle drives the full inbound path with arbitrary datagrams
// against a responder that has one configured peer. The machine must drop
// anything it cannot authenticate without panicking or mutating state.
func FuzzMachineHandle(f *testing.F) {
	initiator, responder := fuzzMachinePair(f)

	peerID := fuzzAddPeers(f, initiator, responder)

	// Seed with each genuine handshake message so the fuzzer starts from
	// inputs that reach deep into the handler.
	ih, err := initiator.Initiate(peerID)
	if err != nil {
		f.Fatalf("initiate seed: %v", err)
	}
	rh, _, err := responder.Handle(ih)
	if err != nil {
		f.Fatalf("respond seed: %v", err)
	}
	ic, res, err := initiator.Handle(rh)
	if err != nil {
		f.Fatalf("confirm seed: %v", err)
	}
	res.Key.Destroy()

	f.Add(ih)
	f.Add(rh)
	f.Add(ic)
	f.Add([]byte{})
	f.Add(make([]byte, constants.InitHelloSize))
	f.Add(make([]byte, constants.RespHelloSize))
	f.Add(make([]byte, constants.InitConfSize))
	f.Add(make([]byte, constants.MaxMessageSize+1))

	f.Fuzz(func(t *testing.T, data []byte) {
		// Should not panic regardless of input
		_, result, err := responder.Handle(data)
		if err != nil {
			return
		}
		if result != nil {
			result.Key.Destroy()
		}
	})
}

// FuzzSealerOpen fuzzes the resumption token opener with arbitrary capsules.
func FuzzSealerOpen(f *testing.F) {
	sealer, err := handshake.NewSealer(time.Minute, time.Minute)
	if err != nil {
		f.Fatalf("NewSealer failed: %v", err)
	}

	var peerID [constants.PeerIDSize]byte
	ck := make([]byte, constants.SymKeySize)
	th := make([]byte, constants.HashSize)
	sealed, err := sealer.Seal(peerID, ck, th, time.Now())
	if err != nil {
		f.Fatalf("seal seed: %v", err)
	}
	f.Add(sealed)

	f.Add([]byte{})
	f.Add(make([]byte, constants.TokenSize-1))
	f.Add(make([]byte, constants.TokenSize))
	f.Add(make([]byte, constants.TokenSize+1))

	f.Fuzz(func(t *testing.T, data []byte) {
		tok, err := sealer.Open(data, time.Now())
		if err != nil {
			return
		}
		tok.Zeroize()
	})
}

// FuzzReadFrame fuzzes the broker frame reader, which parses length-prefixed
// input from the IPC socket before any request validation.
func FuzzReadFrame(f *testing.F) {
	var buf bytes.Buffer
	valid := &broker.Frame{
		Kind:    broker.KindInstallKey,
		Epoch:   1,
		Payload: make([]byte, constants.SymKeySize),
	}
	if err := broker.WriteFrame(&buf, valid); err != nil {
		f.Fatalf("write seed: %v", err)
	}
	f.Add(buf.Bytes())

	f.Add([]byte{})
	f.Add([]byte{0, 0, 0, 0})
	f.Add([]byte{0xff, 0xff, 0xff, 0xff})
	f.Add([]byte{0, 0, 0, 1, 0x01})

	f.Fuzz(func(t *testing.T, data []byte) {
		fr, err := broker.ReadFrame(bytes.NewReader(data))
		if err != nil {
			return
		}
		fr.Zeroize()
	})
}

func fuzzMachinePair(f *testing.F) (initiator, responder *handshake.Machine) {
	f.Helper()
	return fuzzMachine(f), fuzzMachine(f)
}

func fuzzMachine(f *testing.F) *handshake.Machine {
	f.Helper()
	scheme := kem.Default()
	pk, sk, err := scheme.GenerateKeyPair()
	if err != nil {
		f.Fatalf("GenerateKeyPair failed: %v", err)
	}
	skSecret, err := secmem.FromBytes(sk)
	if err != nil {
		f.Fatalf("FromBytes failed: %v", err)
	}
	m, err := handshake.NewMachine(scheme, pk, skSecret, handshake.Timing{})
	if err != nil {
		f.Fatalf("NewMachine failed: %v", err)
	}
	return m
}

func fuzzAddPeers(f *testing.F, initiator, responder *handshake.Machine) [constants.PeerIDSize]byte {
	f.Helper()
	peerID, err := initiator.AddPeer(responder.StaticPublicKey())
	if err != nil {
		f.Fatalf("AddPeer failed: %v", err)
	}
	if _, err := responder.AddPeer(initiator.StaticPublicKey()); err != nil {
		f.Fatalf("AddPeer failed: %v", err)
	}
	return peerID
}
