//go:build !linux

package broker

import (
	"github.com/pqwire/pqwire/internal/constants"
	pqerrors "github.com/pqwire/pqwire/internal/errors"
)

// WGInstaller requires a Linux WireGuard interface; on other platforms every
// install fails.
type WGInstaller struct{}

// NewWGInstaller creates the unsupported-platform installer.
func NewWGInstaller() *WGInstaller {
	return &WGInstaller{}
}

// MapPeer is a no-op on unsupported platforms.
func (w *WGInstaller) MapPeer(peerID [constants.PeerIDSize]byte, wgPublicKey string) {}

// InstallPSK always fails on unsupported platforms.
func (w *WGInstaller) InstallPSK(iface string, peerID [constants.PeerIDSize]byte, key []byte) error {
	return pqerrors.NewBrokerError("install", "", pqerrors.ErrInstallFailed)
}
