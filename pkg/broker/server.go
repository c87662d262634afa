package broker

import (
	"encoding/hex"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/pqwire/pqwire/internal/constants"
	"github.com/pqwire/pqwire/pkg/metrics"
)

// Server is the privileged side of the IPC channel. It enforces the epoch
// monotonicity rule and is otherwise a thin shim in front of the installer.
type Server struct {
	installer Installer
	logger    *metrics.Logger

	mu     sync.Mutex
	iface  string
	epochs map[[constants.PeerIDSize]byte]uint64
}

// NewServer creates a server programming keys through the given installer.
// iface may be empty if the client will send set-parameters first.
func NewServer(installer Installer, iface string, logger *metrics.Logger) *Server {
	if logger == nil {
		logger = metrics.NullLogger()
	}
	return &Server{
		installer: installer,
		logger:    logger.Named("broker"),
		iface:     iface,
		epochs:    make(map[[constants.PeerIDSize]byte]uint64),
	}
}

// Serve handles one connection until it closes. Epoch state persists across
// connections, so an engine restart cannot roll a peer's key back.
func (s *Server) Serve(conn net.Conn) error {
	for {
		req, err := ReadFrame(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		resp := s.handle(req)
		req.Zeroize()
		if err := WriteFrame(conn, resp); err != nil {
			return err
		}
	}
}

// ServeListener accepts and serves connections until the listener closes.
func (s *Server) ServeListener(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go func() {
			if err := s.Serve(conn); err != nil {
				s.logger.Warn("connection failed", metrics.Fields{"err": err.Error()})
			}
			_ = conn.Close()
		}()
	}
}

func (s *Server) handle(req *Frame) *Frame {
	switch req.Kind {
	case KindInstallKey:
		return s.handleInstall(req)
	case KindSetParams:
		return s.handleSetParams(req)
	default:
		return errorFrame(req, StatusBadRequest)
	}
}

func (s *Server) handleInstall(req *Frame) *Frame {
	peer := hex.EncodeToString(req.PeerID[:4])

	if len(req.Payload) != constants.SymKeySize {
		s.logger.Warn("install rejected", metrics.Fields{"peer": peer, "reason": "bad key size"})
		return errorFrame(req, StatusBadRequest)
	}

	s.mu.Lock()
	iface := s.iface
	last := s.epochs[req.PeerID]
	s.mu.Unlock()

	if iface == "" {
		s.logger.Warn("install rejected", metrics.Fields{"peer": peer, "reason": "no interface configured"})
		return errorFrame(req, StatusBadRequest)
	}
	if req.Epoch <= last {
		s.logger.Warn("install rejected", metrics.Fields{
			"peer": peer, "epoch": req.Epoch, "installed": last, "reason": "stale epoch",
		})
		return errorFrame(req, StatusStaleEpoch)
	}

	if err := s.installer.InstallPSK(iface, req.PeerID, req.Payload); err != nil {
		s.logger.Error("install failed", metrics.Fields{"peer": peer, "epoch": req.Epoch, "err": err.Error()})
		return errorFrame(req, StatusInstallFailed)
	}

	s.mu.Lock()
	// Re-check under the lock; a concurrent connection may have advanced
	// the epoch while the driver call ran.
	if req.Epoch > s.epochs[req.PeerID] {
		s.epochs[req.PeerID] = req.Epoch
	}
	s.mu.Unlock()

	s.logger.Info("key installed", metrics.Fields{"peer": peer, "epoch": req.Epoch, "iface": iface})
	return &Frame{Kind: KindAck, PeerID: req.PeerID, Epoch: req.Epoch}
}

func (s *Server) handleSetParams(req *Frame) *Frame {
	name := string(req.Payload)
	if len(name) == 0 || len(name) > constants.BrokerMaxIfaceLen {
		return errorFrame(req, StatusBadRequest)
	}

	s.mu.Lock()
	s.iface = name
	s.mu.Unlock()

	s.logger.Info("parameters set", metrics.Fields{"iface": name})
	return &Frame{Kind: KindAck}
}

// InstalledEpoch returns the last installed epoch for a peer, zero if none.
func (s *Server) InstalledEpoch(peerID [constants.PeerIDSize]byte) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epochs[peerID]
}

func errorFrame(req *Frame, status uint8) *Frame {
	return &Frame{Kind: KindError, PeerID: req.PeerID, Epoch: req.Epoch, Payload: []byte{status}}
}
