package broker

import (
	"sync"

	"github.com/pqwire/pqwire/internal/constants"
)

// Installer programs a session key into the tunnel driver. Implementations
// must not retain the key after returning.
type Installer interface {
	InstallPSK(iface string, peerID [constants.PeerIDSize]byte, key []byte) error
}

// MemoryInstaller records installs in memory. Test double for the server
// and a dry-run backend for the daemon.
type MemoryInstaller struct {
	mu       sync.Mutex
	installs []MemoryInstall
	failWith error
}

// MemoryInstall is one recorded install. The key is copied so later
// zeroization by the server does not erase the record.
type MemoryInstall struct {
	Iface  string
	PeerID [constants.PeerIDSize]byte
	Key    []byte
}

// NewMemoryInstaller creates an empty recorder.
func NewMemoryInstaller() *MemoryInstaller {
	return &MemoryInstaller{}
}

// FailWith makes every subsequent install return err. Pass nil to restore
// normal operation.
func (m *MemoryInstaller) FailWith(err error) {
	m.mu.Lock()
	m.failWith = err
	m.mu.Unlock()
}

// InstallPSK records the install.
func (m *MemoryInstaller) InstallPSK(iface string, peerID [constants.PeerIDSize]byte, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.installs = append(m.installs, MemoryInstall{
		Iface:  iface,
		PeerID: peerID,
		Key:    append([]byte(nil), key...),
	})
	return nil
}

// Installs returns a copy of the recorded installs.
func (m *MemoryInstaller) Installs() []MemoryInstall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MemoryInstall, len(m.installs))
	copy(out, m.installs)
	return out
}
