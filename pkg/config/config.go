// Package config loads the daemon configuration from TOML and the static
// keypair from its key file.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/pqwire/pqwire/internal/constants"
)

// Duration is a time.Duration that unmarshals from TOML strings like "90s".
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the daemon configuration.
type Config struct {
	// ListenAddr is the UDP address the engine binds.
	ListenAddr string `toml:"listen_addr"`

	// KeyFile holds the static keypair (see LoadKeypair).
	KeyFile string `toml:"key_file"`

	// BrokerSocket is the unix socket of the privileged broker.
	BrokerSocket string `toml:"broker_socket"`

	// Interface is the WireGuard interface whose peers receive keys.
	Interface string `toml:"interface"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	Timing TimingConfig `toml:"timing"`
	Broker BrokerConfig `toml:"broker"`
	Peers  []PeerConfig `toml:"peers"`
}

// TimingConfig overrides the handshake schedule. Zero values keep the
// defaults.
type TimingConfig struct {
	RekeyAfter       Duration `toml:"rekey_after"`
	RejectAfter      Duration `toml:"reject_after"`
	RetransmitBegin  Duration `toml:"retransmit_begin"`
	RetransmitEnd    Duration `toml:"retransmit_end"`
	RetransmitJitter Duration `toml:"retransmit_jitter"`
	TokenKeyEpoch    Duration `toml:"token_key_epoch"`
}

// BrokerConfig overrides the install delivery schedule.
type BrokerConfig struct {
	DeliverTimeout Duration `toml:"deliver_timeout"`
	RetryBegin     Duration `toml:"retry_begin"`
	RetryEnd       Duration `toml:"retry_end"`
	MaxRetries     int      `toml:"max_retries"`
}

// PeerConfig describes one configured peer.
type PeerConfig struct {
	// Name is a human label used in logs.
	Name string `toml:"name"`

	// PublicKey is the peer's static hybrid public key, base64.
	PublicKey string `toml:"public_key"`

	// Endpoint is the peer's UDP address; empty for passive peers we
	// only respond to.
	Endpoint string `toml:"endpoint"`

	// WGPublicKey is the peer's WireGuard public key (base64), used by
	// the broker to address the preshared-key slot.
	WGPublicKey string `toml:"wg_public_key"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Parse decodes a configuration from TOML text.
func Parse(text string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(text, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.KeyFile == "" {
		return fmt.Errorf("key_file is required")
	}
	if len(c.Interface) > constants.BrokerMaxIfaceLen {
		return fmt.Errorf("interface name %q too long", c.Interface)
	}
	if len(c.Peers) == 0 {
		return fmt.Errorf("at least one peer is required")
	}

	seen := make(map[string]bool, len(c.Peers))
	for i := range c.Peers {
		p := &c.Peers[i]
		if p.PublicKey == "" {
			return fmt.Errorf("peer %d (%s): public_key is required", i, p.Name)
		}
		raw, err := base64.StdEncoding.DecodeString(p.PublicKey)
		if err != nil {
			return fmt.Errorf("peer %d (%s): public_key is not base64: %w", i, p.Name, err)
		}
		if len(raw) != constants.KEMPublicKeySize {
			return fmt.Errorf("peer %d (%s): public_key is %d bytes, want %d",
				i, p.Name, len(raw), constants.KEMPublicKeySize)
		}
		if seen[p.PublicKey] {
			return fmt.Errorf("peer %d (%s): duplicate public_key", i, p.Name)
		}
		seen[p.PublicKey] = true
	}
	return nil
}

// PeerPublicKey returns the decoded static public key of a peer.
func (p *PeerConfig) PeerPublicKey() ([]byte, error) {
	return base64.StdEncoding.DecodeString(p.PublicKey)
}

// keypairFile is the on-disk keypair format.
type keypairFile struct {
	PublicKey  string `toml:"public_key"`
	PrivateKey string `toml:"private_key"`
}

// SaveKeypair writes a keypair file readable only by its owner.
func SaveKeypair(path string, publicKey, privateKey []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(keypairFile{
		PublicKey:  base64.StdEncoding.EncodeToString(publicKey),
		PrivateKey: base64.StdEncoding.EncodeToString(privateKey),
	})
}

// LoadKeypair reads a keypair file and checks the component sizes.
func LoadKeypair(path string) (publicKey, privateKey []byte, err error) {
	var kf keypairFile
	if _, err := toml.DecodeFile(path, &kf); err != nil {
		return nil, nil, fmt.Errorf("keypair %s: %w", path, err)
	}

	publicKey, err = base64.StdEncoding.DecodeString(kf.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("keypair %s: public key: %w", path, err)
	}
	privateKey, err = base64.StdEncoding.DecodeString(kf.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("keypair %s: private key: %w", path, err)
	}

	if len(publicKey) != constants.KEMPublicKeySize {
		return nil, nil, fmt.Errorf("keypair %s: public key is %d bytes, want %d",
			path, len(publicKey), constants.KEMPublicKeySize)
	}
	if len(privateKey) != constants.KEMPrivateKeySize {
		return nil, nil, fmt.Errorf("keypair %s: private key is %d bytes, want %d",
			path, len(privateKey), constants.KEMPrivateKeySize)
	}
	return publicKey, privateKey, nil
}
