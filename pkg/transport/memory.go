package transport

import (
	"net"
	"sync"
	"time"

	"github.com/pqwire/pqwire/internal/constants"
	pqerrors "github.com/pqwire/pqwire/internal/errors"
)

// MemNetwork is an in-process datagram fabric for tests: lossless and
// ordered, but with the same Conn surface as UDP.
type MemNetwork struct {
	mu    sync.Mutex
	conns map[string]*MemConn
}

// NewMemNetwork creates an empty fabric.
func NewMemNetwork() *MemNetwork {
	return &MemNetwork{conns: make(map[string]*MemConn)}
}

// Conn attaches a new endpoint with the given name.
func (n *MemNetwork) Conn(name string) *MemConn {
	c := &MemConn{
		network: n,
		addr:    MemAddr(name),
		in:      make(chan memPacket, 64),
		closed:  make(chan struct{}),
	}
	n.mu.Lock()
	n.conns[name] = c
	n.mu.Unlock()
	return c
}

// MemAddr is the address of an in-memory endpoint.
type MemAddr string

// Network returns the fabric name.
func (MemAddr) Network() string { return "mem" }

// String returns the endpoint name.
func (a MemAddr) String() string { return string(a) }

type memPacket struct {
	from net.Addr
	data []byte
}

// MemConn is one endpoint of a MemNetwork.
type MemConn struct {
	network *MemNetwork
	addr    MemAddr
	in      chan memPacket

	mu       sync.Mutex
	deadline time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

// Send delivers a copy of data to the named endpoint. Unknown destinations
// are dropped silently, matching datagram semantics.
func (c *MemConn) Send(addr net.Addr, data []byte) error {
	if len(data) > constants.MaxMessageSize {
		return pqerrors.ErrMessageTooLarge
	}

	c.network.mu.Lock()
	dst := c.network.conns[addr.String()]
	c.network.mu.Unlock()
	if dst == nil {
		return nil
	}

	pkt := memPacket{from: c.addr, data: append([]byte(nil), data...)}
	select {
	case dst.in <- pkt:
	default:
		// Full queue drops the datagram, like a saturated socket buffer.
	}
	return nil
}

// Receive blocks for the next datagram or the read deadline.
func (c *MemConn) Receive(buf []byte) (int, net.Addr, error) {
	c.mu.Lock()
	deadline := c.deadline
	c.mu.Unlock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		t := time.NewTimer(time.Until(deadline))
		defer t.Stop()
		timeout = t.C
	}

	select {
	case pkt := <-c.in:
		n := copy(buf, pkt.data)
		return n, pkt.from, nil
	case <-timeout:
		return 0, nil, timeoutError{}
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

// SetReadDeadline bounds the next Receive.
func (c *MemConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	return nil
}

// LocalAddr returns the endpoint address.
func (c *MemConn) LocalAddr() net.Addr {
	return c.addr
}

// Close detaches the endpoint.
func (c *MemConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.network.mu.Lock()
		delete(c.network.conns, string(c.addr))
		c.network.mu.Unlock()
	})
	return nil
}

// timeoutError satisfies net.Error for deadline expiry.
type timeoutError struct{}

func (timeoutError) Error() string   { return "receive deadline exceeded" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
