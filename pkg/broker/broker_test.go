package broker

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/pqwire/pqwire/internal/constants"
	pqerrors "github.com/pqwire/pqwire/internal/errors"
	"github.com/pqwire/pqwire/pkg/metrics"
	"github.com/pqwire/pqwire/pkg/secmem"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := &Frame{Kind: KindInstallKey, Epoch: 7, Payload: []byte("payload")}
	in.PeerID[0] = 0xab

	if err := WriteFrame(&buf, in); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	out, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	if out.Kind != KindInstallKey || out.Epoch != 7 || out.PeerID != in.PeerID {
		t.Errorf("header did not round trip: %+v", out)
	}
	if !bytes.Equal(out.Payload, []byte("payload")) {
		t.Errorf("payload = %q", out.Payload)
	}
}

func TestFrameSizeBounds(t *testing.T) {
	big := &Frame{Kind: KindInstallKey, Payload: make([]byte, constants.BrokerMaxFrameSize)}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, big); !errors.Is(err, pqerrors.ErrFrameTooLarge) {
		t.Errorf("oversized WriteFrame = %v, want ErrFrameTooLarge", err)
	}

	// A length prefix over the bound is rejected before allocation.
	buf.Reset()
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})
	if _, err := ReadFrame(&buf); !errors.Is(err, pqerrors.ErrFrameTooLarge) {
		t.Errorf("oversized ReadFrame = %v, want ErrFrameTooLarge", err)
	}

	// A length prefix under the header size is also invalid.
	buf.Reset()
	buf.Write([]byte{0, 0, 0, 1})
	if _, err := ReadFrame(&buf); !errors.Is(err, pqerrors.ErrFrameTooLarge) {
		t.Errorf("undersized ReadFrame = %v, want ErrFrameTooLarge", err)
	}
}

func testKey(t *testing.T, fill byte) *secmem.Secret {
	t.Helper()
	raw := bytes.Repeat([]byte{fill}, constants.SymKeySize)
	key, err := secmem.FromBytes(raw)
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}
	t.Cleanup(key.Destroy)
	return key
}

func testPair(t *testing.T, installer Installer, iface string) *Client {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	srv := NewServer(installer, iface, metrics.NullLogger())
	go func() {
		_ = srv.Serve(serverConn)
	}()
	t.Cleanup(func() {
		clientConn.Close()
		serverConn.Close()
	})
	return NewClient(clientConn, time.Second)
}

func TestDeliverInstallsKey(t *testing.T) {
	installer := NewMemoryInstaller()
	c := testPair(t, installer, "wg0")

	var pid [constants.PeerIDSize]byte
	pid[0] = 1
	key := testKey(t, 0x42)

	if err := c.Deliver(pid, 1, key); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	installs := installer.Installs()
	if len(installs) != 1 {
		t.Fatalf("installs = %d, want 1", len(installs))
	}
	got := installs[0]
	if got.Iface != "wg0" || got.PeerID != pid {
		t.Errorf("install = %+v", got)
	}
	if !bytes.Equal(got.Key, bytes.Repeat([]byte{0x42}, constants.SymKeySize)) {
		t.Error("key did not arrive intact")
	}

	// The Secret survives delivery; the caller owns its destruction.
	if err := key.With(func([]byte) error { return nil }); err != nil {
		t.Errorf("key destroyed by Deliver: %v", err)
	}
}

func TestDeliverRejectsStaleEpoch(t *testing.T) {
	installer := NewMemoryInstaller()
	c := testPair(t, installer, "wg0")

	var pid [constants.PeerIDSize]byte
	key := testKey(t, 0x01)

	if err := c.Deliver(pid, 5, key); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	for _, epoch := range []uint64{5, 4} {
		if err := c.Deliver(pid, epoch, key); !errors.Is(err, pqerrors.ErrStaleEpoch) {
			t.Errorf("epoch %d: Deliver = %v, want ErrStaleEpoch", epoch, err)
		}
	}

	// A later epoch still goes through.
	if err := c.Deliver(pid, 6, key); err != nil {
		t.Errorf("epoch 6: Deliver = %v", err)
	}
	if n := len(installer.Installs()); n != 2 {
		t.Errorf("installs = %d, want 2", n)
	}
}

func TestEpochsTrackedPerPeer(t *testing.T) {
	installer := NewMemoryInstaller()
	c := testPair(t, installer, "wg0")
	key := testKey(t, 0x01)

	var a, b [constants.PeerIDSize]byte
	a[0], b[0] = 1, 2

	if err := c.Deliver(a, 3, key); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if err := c.Deliver(b, 1, key); err != nil {
		t.Errorf("other peer's epoch blocked: %v", err)
	}
}

func TestDeliverReportsInstallFailure(t *testing.T) {
	installer := NewMemoryInstaller()
	installer.FailWith(errors.New("driver said no"))
	c := testPair(t, installer, "wg0")

	var pid [constants.PeerIDSize]byte
	key := testKey(t, 0x01)

	if err := c.Deliver(pid, 1, key); !errors.Is(err, pqerrors.ErrInstallFailed) {
		t.Fatalf("Deliver = %v, want ErrInstallFailed", err)
	}

	// A failed install must not advance the epoch.
	installer.FailWith(nil)
	if err := c.Deliver(pid, 1, key); err != nil {
		t.Errorf("retry at same epoch failed: %v", err)
	}
}

func TestSetParameters(t *testing.T) {
	installer := NewMemoryInstaller()
	c := testPair(t, installer, "")

	var pid [constants.PeerIDSize]byte
	key := testKey(t, 0x01)

	// No interface configured yet.
	if err := c.Deliver(pid, 1, key); err == nil {
		t.Fatal("install succeeded without an interface")
	}

	if err := c.SetParameters("wg1"); err != nil {
		t.Fatalf("SetParameters failed: %v", err)
	}
	if err := c.Deliver(pid, 2, key); err != nil {
		t.Fatalf("Deliver after SetParameters failed: %v", err)
	}
	if installs := installer.Installs(); len(installs) != 1 || installs[0].Iface != "wg1" {
		t.Errorf("installs = %+v", installs)
	}

	if err := c.SetParameters(""); err == nil {
		t.Error("empty interface name accepted")
	}
}

func TestDeliverTimesOut(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	// No server reads: the write itself blocks on net.Pipe.
	c := NewClient(clientConn, 50*time.Millisecond)

	var pid [constants.PeerIDSize]byte
	key := testKey(t, 0x01)

	err := c.Deliver(pid, 1, key)
	if err == nil {
		t.Fatal("Deliver succeeded with no server")
	}
	var be *pqerrors.BrokerError
	if !errors.As(err, &be) {
		t.Errorf("Deliver = %T, want BrokerError", err)
	}
}

func TestBadKeySizeRejected(t *testing.T) {
	installer := NewMemoryInstaller()
	c := testPair(t, installer, "wg0")

	var pid [constants.PeerIDSize]byte
	short, err := secmem.FromBytes([]byte("too short"))
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}
	defer short.Destroy()

	if err := c.Deliver(pid, 1, short); err == nil {
		t.Fatal("undersized key accepted")
	}
	if n := len(installer.Installs()); n != 0 {
		t.Errorf("installs = %d, want 0", n)
	}
}
