package broker

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os/exec"
	"sync"

	"github.com/vishvananda/netlink"

	"github.com/pqwire/pqwire/internal/constants"
	pqerrors "github.com/pqwire/pqwire/internal/errors"
)

// WGInstaller programs preshared keys into a WireGuard interface through the
// wg(8) tool. The mapping from engine peer identifiers to WireGuard peer
// public keys comes from configuration; the installer refuses peers it has
// no mapping for.
type WGInstaller struct {
	mu      sync.Mutex
	wgPeers map[[constants.PeerIDSize]byte]string
}

// NewWGInstaller creates an installer with no peer mappings.
func NewWGInstaller() *WGInstaller {
	return &WGInstaller{wgPeers: make(map[[constants.PeerIDSize]byte]string)}
}

// MapPeer associates an engine peer identifier with the peer's WireGuard
// public key (base64, as wg(8) expects).
func (w *WGInstaller) MapPeer(peerID [constants.PeerIDSize]byte, wgPublicKey string) {
	w.mu.Lock()
	w.wgPeers[peerID] = wgPublicKey
	w.mu.Unlock()
}

// InstallPSK writes the key into the peer's preshared-key slot. The key
// travels to wg over stdin, never through argv or the filesystem.
func (w *WGInstaller) InstallPSK(iface string, peerID [constants.PeerIDSize]byte, key []byte) error {
	w.mu.Lock()
	wgKey, ok := w.wgPeers[peerID]
	w.mu.Unlock()
	if !ok {
		return pqerrors.NewBrokerError("install", "", pqerrors.ErrUnknownPeer)
	}

	if _, err := netlink.LinkByName(iface); err != nil {
		return pqerrors.NewBrokerError("install", wgKey,
			fmt.Errorf("%w: interface %s: %v", pqerrors.ErrInstallFailed, iface, err))
	}

	psk := base64.StdEncoding.EncodeToString(key)
	cmd := exec.Command("wg", "set", iface, "peer", wgKey, "preshared-key", "/dev/stdin")
	cmd.Stdin = bytes.NewReader([]byte(psk + "\n"))
	if out, err := cmd.CombinedOutput(); err != nil {
		return pqerrors.NewBrokerError("install", wgKey,
			fmt.Errorf("%w: wg set: %v: %s", pqerrors.ErrInstallFailed, err, out))
	}
	return nil
}
