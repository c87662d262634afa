package config

import (
	"bytes"
	"encoding/base64"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pqwire/pqwire/internal/constants"
)

func testPeerKey(fill byte) string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{fill}, constants.KEMPublicKeySize))
}

func validConfig() string {
	return `
listen_addr = "0.0.0.0:51821"
key_file = "/etc/pqwire/self.key"
broker_socket = "/run/pqwire/broker.sock"
interface = "wg0"
log_level = "debug"

[timing]
rekey_after = "90s"
retransmit_begin = "250ms"

[broker]
deliver_timeout = "5s"
max_retries = 3

[[peers]]
name = "hub"
public_key = "` + testPeerKey(0x01) + `"
endpoint = "hub.example.net:51821"
wg_public_key = "aGVsbG8="

[[peers]]
name = "passive"
public_key = "` + testPeerKey(0x02) + `"
`
}

func TestParseValidConfig(t *testing.T) {
	cfg, err := Parse(validConfig())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.ListenAddr != "0.0.0.0:51821" || cfg.Interface != "wg0" {
		t.Errorf("top level = %+v", cfg)
	}
	if cfg.Timing.RekeyAfter.Std() != 90*time.Second {
		t.Errorf("rekey_after = %v", cfg.Timing.RekeyAfter.Std())
	}
	if cfg.Timing.RetransmitBegin.Std() != 250*time.Millisecond {
		t.Errorf("retransmit_begin = %v", cfg.Timing.RetransmitBegin.Std())
	}
	if cfg.Timing.RejectAfter != 0 {
		t.Error("unset duration should be zero")
	}
	if cfg.Broker.DeliverTimeout.Std() != 5*time.Second || cfg.Broker.MaxRetries != 3 {
		t.Errorf("broker = %+v", cfg.Broker)
	}

	if len(cfg.Peers) != 2 {
		t.Fatalf("peers = %d, want 2", len(cfg.Peers))
	}
	if cfg.Peers[0].Name != "hub" || cfg.Peers[0].Endpoint == "" {
		t.Errorf("peer 0 = %+v", cfg.Peers[0])
	}
	if cfg.Peers[1].Endpoint != "" {
		t.Error("passive peer gained an endpoint")
	}

	pk, err := cfg.Peers[0].PeerPublicKey()
	if err != nil {
		t.Fatalf("PeerPublicKey failed: %v", err)
	}
	if len(pk) != constants.KEMPublicKeySize {
		t.Errorf("decoded key = %d bytes", len(pk))
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		errPart string
	}{
		{
			"missing listen addr",
			func(s string) string { return strings.Replace(s, `listen_addr = "0.0.0.0:51821"`, "", 1) },
			"listen_addr",
		},
		{
			"missing key file",
			func(s string) string { return strings.Replace(s, `key_file = "/etc/pqwire/self.key"`, "", 1) },
			"key_file",
		},
		{
			"no peers",
			func(s string) string { return s[:strings.Index(s, "[[peers]]")] },
			"peer",
		},
		{
			"bad public key",
			func(s string) string { return strings.Replace(s, testPeerKey(0x01), "bm90IGEga2V5", 1) },
			"public_key",
		},
		{
			"duplicate peers",
			func(s string) string { return strings.Replace(s, testPeerKey(0x02), testPeerKey(0x01), 1) },
			"duplicate",
		},
		{
			"bad duration",
			func(s string) string { return strings.Replace(s, `"90s"`, `"ninety"`, 1) },
			"duration",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.mutate(validConfig()))
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("error %q does not mention %q", err, tt.errPart)
			}
		})
	}
}

func TestKeypairFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "self.key")

	pub := bytes.Repeat([]byte{0xaa}, constants.KEMPublicKeySize)
	priv := bytes.Repeat([]byte{0xbb}, constants.KEMPrivateKeySize)

	if err := SaveKeypair(path, pub, priv); err != nil {
		t.Fatalf("SaveKeypair failed: %v", err)
	}

	gotPub, gotPriv, err := LoadKeypair(path)
	if err != nil {
		t.Fatalf("LoadKeypair failed: %v", err)
	}
	if !bytes.Equal(gotPub, pub) || !bytes.Equal(gotPriv, priv) {
		t.Error("keypair did not round trip")
	}
}

func TestLoadKeypairRejectsWrongSizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "self.key")

	if err := SaveKeypair(path, []byte("short"), bytes.Repeat([]byte{1}, constants.KEMPrivateKeySize)); err != nil {
		t.Fatalf("SaveKeypair failed: %v", err)
	}
	if _, _, err := LoadKeypair(path); err == nil {
		t.Error("undersized public key accepted")
	}

	if _, _, err := LoadKeypair(filepath.Join(t.TempDir(), "missing.key")); err == nil {
		t.Error("missing file accepted")
	}
}
