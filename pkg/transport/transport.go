// Package transport moves handshake datagrams. The engine treats the
// network as lossy and unordered; reliability lives in the handshake
// retransmission schedule, not here.
package transport

import (
	"net"
	"time"

	"github.com/pqwire/pqwire/internal/constants"
	pqerrors "github.com/pqwire/pqwire/internal/errors"
)

// Conn is a datagram connection. Implementations must be safe for one
// reader and concurrent writers.
type Conn interface {
	// Send transmits one datagram to addr. Oversized datagrams are
	// rejected locally, never truncated.
	Send(addr net.Addr, data []byte) error

	// Receive blocks for the next datagram, or until the read deadline.
	Receive(buf []byte) (int, net.Addr, error)

	// SetReadDeadline bounds the next Receive. The zero time blocks
	// forever.
	SetReadDeadline(t time.Time) error

	LocalAddr() net.Addr
	Close() error
}

// UDPConn is the production transport.
type UDPConn struct {
	conn *net.UDPConn
}

// ListenUDP binds a UDP socket on the given address ("host:port"; an empty
// host binds all interfaces).
func ListenUDP(addr string) (*UDPConn, error) {
	ua, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", ua)
	if err != nil {
		return nil, err
	}
	return &UDPConn{conn: conn}, nil
}

// Send transmits one datagram.
func (c *UDPConn) Send(addr net.Addr, data []byte) error {
	if len(data) > constants.MaxMessageSize {
		return pqerrors.ErrMessageTooLarge
	}
	_, err := c.conn.WriteTo(data, addr)
	return err
}

// Receive reads one datagram into buf.
func (c *UDPConn) Receive(buf []byte) (int, net.Addr, error) {
	return c.conn.ReadFrom(buf)
}

// SetReadDeadline bounds the next Receive.
func (c *UDPConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// LocalAddr returns the bound address.
func (c *UDPConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Close closes the socket.
func (c *UDPConn) Close() error {
	return c.conn.Close()
}

// IsTimeout reports whether err is a read-deadline expiry.
func IsTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
