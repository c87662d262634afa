package broker

import (
	"encoding/hex"
	"net"
	"sync"
	"time"

	"github.com/pqwire/pqwire/internal/constants"
	pqerrors "github.com/pqwire/pqwire/internal/errors"
	"github.com/pqwire/pqwire/pkg/secmem"
)

// Client is the unprivileged side of the IPC channel. One request is in
// flight at a time; the channel is strictly request-response.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration
}

// NewClient wraps an established connection to the privileged side. A zero
// timeout uses the package default.
func NewClient(conn net.Conn, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = constants.BrokerDeliverTimeout
	}
	return &Client{conn: conn, timeout: timeout}
}

// Dial connects to the privileged side over a unix socket.
func Dial(socketPath string, timeout time.Duration) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, err
	}
	return NewClient(conn, timeout), nil
}

// Deliver sends a session key for installation and blocks for the
// acknowledgment. The Secret is read, not consumed; the caller destroys it.
func (c *Client) Deliver(peerID [constants.PeerIDSize]byte, epoch uint64, key *secmem.Secret) error {
	req := &Frame{Kind: KindInstallKey, PeerID: peerID, Epoch: epoch}
	err := key.With(func(k []byte) error {
		req.Payload = append([]byte(nil), k...)
		return nil
	})
	if err != nil {
		return err
	}
	defer req.Zeroize()

	return c.roundTrip(req)
}

// SetParameters tells the privileged side which tunnel interface to program.
func (c *Client) SetParameters(iface string) error {
	if len(iface) == 0 || len(iface) > constants.BrokerMaxIfaceLen {
		return pqerrors.NewBrokerError("set parameters", "", pqerrors.ErrInvalidMessage)
	}
	return c.roundTrip(&Frame{Kind: KindSetParams, Payload: []byte(iface)})
}

func (c *Client) roundTrip(req *Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	peer := hex.EncodeToString(req.PeerID[:4])

	deadline := time.Now().Add(c.timeout)
	_ = c.conn.SetWriteDeadline(deadline)
	if err := WriteFrame(c.conn, req); err != nil {
		return pqerrors.NewBrokerError("write", peer, err)
	}

	_ = c.conn.SetReadDeadline(deadline)
	resp, err := ReadFrame(c.conn)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return pqerrors.NewBrokerError("deliver", peer, pqerrors.ErrBrokerTimeout)
		}
		return pqerrors.NewBrokerError("read", peer, err)
	}

	switch resp.Kind {
	case KindAck:
		return nil
	case KindError:
		return pqerrors.NewBrokerError("deliver", peer, statusError(resp.Payload))
	default:
		return pqerrors.NewBrokerError("deliver", peer, pqerrors.ErrInvalidMessage)
	}
}

func statusError(payload []byte) error {
	if len(payload) == 0 {
		return pqerrors.ErrInstallFailed
	}
	switch payload[0] {
	case StatusStaleEpoch:
		return pqerrors.ErrStaleEpoch
	case StatusInstallFailed:
		return pqerrors.ErrInstallFailed
	default:
		return pqerrors.ErrInvalidMessage
	}
}

// Close closes the channel.
func (c *Client) Close() error {
	return c.conn.Close()
}
