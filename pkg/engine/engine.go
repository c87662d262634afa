// Package engine runs the key-exchange daemon's event loop: one goroutine
// multiplexing inbound datagrams, handshake timers, and key delivery to the
// privileged broker.
package engine

import (
	"context"
	"encoding/hex"
	"net"
	"sync"
	"time"

	"github.com/pqwire/pqwire/internal/constants"
	pqerrors "github.com/pqwire/pqwire/internal/errors"
	"github.com/pqwire/pqwire/pkg/handshake"
	"github.com/pqwire/pqwire/pkg/metrics"
	"github.com/pqwire/pqwire/pkg/secmem"
	"github.com/pqwire/pqwire/pkg/transport"
)

// Deliverer hands a completed session key to the privileged side.
type Deliverer interface {
	Deliver(peerID [constants.PeerIDSize]byte, epoch uint64, key *secmem.Secret) error
}

// RetryPolicy bounds install retries after broker failures.
type RetryPolicy struct {
	Begin      time.Duration
	Growth     float64
	End        time.Duration
	MaxRetries int
}

// DefaultRetryPolicy returns the standard install retry schedule.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Begin:      constants.BrokerRetryBegin,
		Growth:     constants.BrokerRetryGrowth,
		End:        constants.BrokerRetryEnd,
		MaxRetries: constants.BrokerMaxRetries,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.Begin <= 0 {
		p.Begin = d.Begin
	}
	if p.Growth < 1 {
		p.Growth = d.Growth
	}
	if p.End <= 0 {
		p.End = d.End
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = d.MaxRetries
	}
	return p
}

// Options configures an Engine.
type Options struct {
	Machine   *handshake.Machine
	Conn      transport.Conn
	Deliverer Deliverer
	Logger    *metrics.Logger
	Collector *metrics.Collector
	Tracer    metrics.Tracer
	Retry     RetryPolicy
}

// Engine owns the event loop for one local identity.
type Engine struct {
	machine   *handshake.Machine
	conn      transport.Conn
	deliverer Deliverer
	logger    *metrics.Logger
	collector *metrics.Collector
	tracer    metrics.Tracer
	retry     RetryPolicy

	mu        sync.Mutex
	endpoints map[[constants.PeerIDSize]byte]net.Addr
	started   map[[constants.PeerIDSize]byte]time.Time

	installs []*pendingInstall
}

// pendingInstall is a key awaiting broker acknowledgment.
type pendingInstall struct {
	peerID   [constants.PeerIDSize]byte
	epoch    uint64
	key      *secmem.Secret
	attempts int
	delay    time.Duration
	due      time.Time
}

// New creates an engine. Machine, Conn, and Deliverer are required.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = metrics.NullLogger()
	}
	if opts.Collector == nil {
		opts.Collector = metrics.NewCollector(nil)
	}
	if opts.Tracer == nil {
		opts.Tracer = metrics.NoOpTracer{}
	}
	return &Engine{
		machine:   opts.Machine,
		conn:      opts.Conn,
		deliverer: opts.Deliverer,
		logger:    opts.Logger.Named("engine"),
		collector: opts.Collector,
		tracer:    opts.Tracer,
		retry:     opts.Retry.withDefaults(),
		endpoints: make(map[[constants.PeerIDSize]byte]net.Addr),
		started:   make(map[[constants.PeerIDSize]byte]time.Time),
	}
}

// SetEndpoint records where a peer can be reached. Peers without an
// endpoint are passive: the engine responds to them but never initiates.
func (e *Engine) SetEndpoint(peerID [constants.PeerIDSize]byte, addr net.Addr) {
	e.mu.Lock()
	e.endpoints[peerID] = addr
	e.mu.Unlock()
}

// Run drives the loop until ctx is canceled. On return every held secret is
// destroyed.
func (e *Engine) Run(ctx context.Context) error {
	defer e.shutdown()

	// Open with a handshake toward every peer that has an endpoint.
	e.mu.Lock()
	active := make([][constants.PeerIDSize]byte, 0, len(e.endpoints))
	for pid := range e.endpoints {
		active = append(active, pid)
	}
	e.mu.Unlock()
	for _, pid := range active {
		e.initiate(pid)
	}

	buf := make([]byte, constants.MaxMessageSize+1)
	for {
		if ctx.Err() != nil {
			return nil
		}

		e.conn.SetReadDeadline(e.nextWake(time.Now()))
		n, from, err := e.conn.Receive(buf)
		switch {
		case err == nil:
			e.handleDatagram(buf[:n], from)
		case transport.IsTimeout(err):
			// Timers fire below.
		default:
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		out, abandoned := e.machine.Advance()
		for _, pid := range abandoned {
			e.collector.HandshakeAbandoned()
			e.mu.Lock()
			delete(e.started, pid)
			e.mu.Unlock()
			e.logger.Warn("handshake abandoned", metrics.Fields{"peer": peerLabel(pid)})
		}
		for _, o := range out {
			if o.Rekey {
				e.collector.RekeyInitiated()
				e.mu.Lock()
				e.started[o.PeerID] = time.Now()
				e.mu.Unlock()
			} else {
				e.collector.Retransmission()
			}
			e.send(o.PeerID, o.Data)
		}
		e.processInstalls(time.Now())
	}
}

// nextWake bounds the blocking read by the earliest pending timer, capped so
// cancellation is noticed promptly.
func (e *Engine) nextWake(now time.Time) time.Time {
	wake := now.Add(200 * time.Millisecond)

	if d := e.machine.NextDeadline(); !d.IsZero() && d.Before(wake) {
		wake = d
	}
	e.mu.Lock()
	for _, p := range e.installs {
		if p.due.Before(wake) {
			wake = p.due
		}
	}
	e.mu.Unlock()

	if wake.Before(now) {
		return now
	}
	return wake
}

func (e *Engine) initiate(peerID [constants.PeerIDSize]byte) {
	data, err := e.machine.Initiate(peerID)
	if err != nil {
		e.logger.Error("initiate failed", metrics.Fields{"peer": peerLabel(peerID), "err": err.Error()})
		return
	}
	e.collector.HandshakeInitiated()
	e.mu.Lock()
	e.started[peerID] = time.Now()
	e.mu.Unlock()
	e.send(peerID, data)
}

func (e *Engine) handleDatagram(data []byte, from net.Addr) {
	reply, result, err := e.machine.Handle(data)
	if err != nil {
		e.countDrop(err)
		e.logger.Debug("datagram dropped", metrics.Fields{"from": from.String(), "err": err.Error()})
		return
	}

	if reply != nil {
		if result == nil {
			e.collector.HandshakeResponded()
		}
		if err := e.conn.Send(from, reply); err != nil {
			e.logger.Warn("send failed", metrics.Fields{"to": from.String(), "err": err.Error()})
		}
	}

	if result != nil {
		e.completeHandshake(result, from)
	}
}

func (e *Engine) completeHandshake(result *handshake.Result, from net.Addr) {
	pid := result.PeerID

	e.mu.Lock()
	e.endpoints[pid] = from
	started, ok := e.started[pid]
	delete(e.started, pid)
	e.mu.Unlock()

	if ok {
		e.collector.HandshakeCompleted(time.Since(started))
	} else {
		e.collector.HandshakeCompleted(0)
	}

	e.logger.Info("handshake complete", metrics.Fields{
		"peer":      peerLabel(pid),
		"epoch":     result.Epoch,
		"initiator": result.Initiator,
	})

	e.enqueueInstall(pid, result.Epoch, result.Key)
	e.processInstalls(time.Now())
}

// enqueueInstall schedules a key for delivery, dropping any older queued
// epoch for the same peer.
func (e *Engine) enqueueInstall(peerID [constants.PeerIDSize]byte, epoch uint64, key *secmem.Secret) {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.installs[:0]
	for _, p := range e.installs {
		if p.peerID == peerID && p.epoch < epoch {
			p.key.Destroy()
			continue
		}
		kept = append(kept, p)
	}
	e.installs = append(kept, &pendingInstall{
		peerID: peerID,
		epoch:  epoch,
		key:    key,
		delay:  e.retry.Begin,
		due:    time.Now(),
	})
}

func (e *Engine) processInstalls(now time.Time) {
	e.mu.Lock()
	due := make([]*pendingInstall, 0, len(e.installs))
	for _, p := range e.installs {
		if !now.Before(p.due) {
			due = append(due, p)
		}
	}
	e.mu.Unlock()

	for _, p := range due {
		e.tryInstall(p, now)
	}
}

func (e *Engine) tryInstall(p *pendingInstall, now time.Time) {
	_, end := e.tracer.StartSpan(context.Background(), metrics.SpanKeyInstall, map[string]interface{}{
		"peer":  peerLabel(p.peerID),
		"epoch": p.epoch,
	})

	start := time.Now()
	err := e.deliverer.Deliver(p.peerID, p.epoch, p.key)
	end(err)

	switch {
	case err == nil:
		e.collector.InstallCompleted(time.Since(start))
		e.logger.Info("key delivered", metrics.Fields{"peer": peerLabel(p.peerID), "epoch": p.epoch})
		e.dropInstall(p)

	case pqerrors.Is(err, pqerrors.ErrStaleEpoch):
		// A newer epoch was installed first; this key is obsolete.
		e.collector.InstallStale()
		e.logger.Debug("install superseded", metrics.Fields{"peer": peerLabel(p.peerID), "epoch": p.epoch})
		e.dropInstall(p)

	default:
		p.attempts++
		if p.attempts > e.retry.MaxRetries {
			e.collector.InstallFailed()
			e.logger.Error("install abandoned", metrics.Fields{
				"peer": peerLabel(p.peerID), "epoch": p.epoch, "attempts": p.attempts, "err": err.Error(),
			})
			e.dropInstall(p)
			return
		}
		e.collector.InstallRetried()
		p.due = now.Add(p.delay)
		p.delay = time.Duration(float64(p.delay) * e.retry.Growth)
		if p.delay > e.retry.End {
			p.delay = e.retry.End
		}
		e.logger.Warn("install retry scheduled", metrics.Fields{
			"peer": peerLabel(p.peerID), "epoch": p.epoch, "attempt": p.attempts, "err": err.Error(),
		})
	}
}

func (e *Engine) dropInstall(p *pendingInstall) {
	p.key.Destroy()
	e.mu.Lock()
	kept := e.installs[:0]
	for _, q := range e.installs {
		if q != p {
			kept = append(kept, q)
		}
	}
	e.installs = kept
	e.mu.Unlock()
}

func (e *Engine) send(peerID [constants.PeerIDSize]byte, data []byte) {
	e.mu.Lock()
	addr := e.endpoints[peerID]
	e.mu.Unlock()
	if addr == nil {
		e.logger.Debug("no endpoint for peer", metrics.Fields{"peer": peerLabel(peerID)})
		return
	}
	if err := e.conn.Send(addr, data); err != nil {
		e.logger.Warn("send failed", metrics.Fields{"to": addr.String(), "err": err.Error()})
	}
}

func (e *Engine) countDrop(err error) {
	switch {
	case pqerrors.Is(err, pqerrors.ErrInvalidMAC):
		e.collector.MACRejected()
	case pqerrors.Is(err, pqerrors.ErrUnknownPeer):
		e.collector.UnknownPeer()
	case pqerrors.Is(err, pqerrors.ErrConsumedToken):
		e.collector.ReplayDropped()
	case pqerrors.Is(err, pqerrors.ErrExpiredToken):
		e.collector.TokenExpired()
	case pqerrors.Is(err, pqerrors.ErrAuthenticationFailed), pqerrors.Is(err, pqerrors.ErrInvalidToken):
		e.collector.AuthFailure()
	default:
		e.collector.MalformedDropped()
	}
}

func (e *Engine) shutdown() {
	e.mu.Lock()
	installs := e.installs
	e.installs = nil
	e.mu.Unlock()
	for _, p := range installs {
		p.key.Destroy()
	}
	e.machine.Shutdown()
}

func peerLabel(pid [constants.PeerIDSize]byte) string {
	return hex.EncodeToString(pid[:4])
}
