// Package metrics provides observability for the key-exchange engine:
// counters and histograms, OpenTelemetry tracing, and leveled structured
// logging. Nothing in this package ever records key material.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates counters from the handshake machine, the transport,
// and the broker client.
type Collector struct {
	// Handshake metrics
	handshakesInitiated atomic.Uint64
	handshakesResponded atomic.Uint64
	handshakesCompleted atomic.Uint64
	handshakesAbandoned atomic.Uint64
	rekeysInitiated     atomic.Uint64
	retransmissions     atomic.Uint64
	handshakeLatency    *Histogram

	// Drop metrics; every rejected datagram lands in exactly one of these.
	macRejected      atomic.Uint64
	unknownPeer      atomic.Uint64
	authFailures     atomic.Uint64
	tokensExpired    atomic.Uint64
	replaysDropped   atomic.Uint64
	malformedDropped atomic.Uint64

	// Broker metrics
	installsCompleted atomic.Uint64
	installsStale     atomic.Uint64
	installsFailed    atomic.Uint64
	installRetries    atomic.Uint64
	installLatency    *Histogram

	createdAt time.Time
	labels    Labels
}

// Labels represents key-value pairs identifying a collector instance.
type Labels map[string]string

// Default bucket bounds, in milliseconds.
var (
	HandshakeLatencyBuckets = []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000}
	InstallLatencyBuckets   = []float64{1, 5, 10, 25, 50, 100, 250, 500, 2000}
)

// NewCollector creates a new metrics collector.
func NewCollector(labels Labels) *Collector {
	if labels == nil {
		labels = make(Labels)
	}
	return &Collector{
		handshakeLatency: NewHistogram(HandshakeLatencyBuckets),
		installLatency:   NewHistogram(InstallLatencyBuckets),
		createdAt:        time.Now(),
		labels:           labels,
	}
}

// --- Handshake Metrics ---

// HandshakeInitiated records a locally started exchange.
func (c *Collector) HandshakeInitiated() { c.handshakesInitiated.Add(1) }

// HandshakeResponded records a RespHello sent for a valid InitHello.
func (c *Collector) HandshakeResponded() { c.handshakesResponded.Add(1) }

// HandshakeCompleted records a completed exchange and its duration.
func (c *Collector) HandshakeCompleted(d time.Duration) {
	c.handshakesCompleted.Add(1)
	c.handshakeLatency.Observe(float64(d.Milliseconds()))
}

// HandshakeAbandoned records an attempt that exhausted its deadline.
func (c *Collector) HandshakeAbandoned() { c.handshakesAbandoned.Add(1) }

// RekeyInitiated records a proactive rekey.
func (c *Collector) RekeyInitiated() { c.rekeysInitiated.Add(1) }

// Retransmission records one resent datagram.
func (c *Collector) Retransmission() { c.retransmissions.Add(1) }

// --- Drop Metrics ---

// MACRejected records a datagram dropped at the outer MAC filter.
func (c *Collector) MACRejected() { c.macRejected.Add(1) }

// UnknownPeer records a datagram naming no configured peer.
func (c *Collector) UnknownPeer() { c.unknownPeer.Add(1) }

// AuthFailure records a transcript authentication failure.
func (c *Collector) AuthFailure() { c.authFailures.Add(1) }

// TokenExpired records a resumption token past its validity window.
func (c *Collector) TokenExpired() { c.tokensExpired.Add(1) }

// ReplayDropped records a replayed confirmation.
func (c *Collector) ReplayDropped() { c.replaysDropped.Add(1) }

// MalformedDropped records a structurally invalid datagram.
func (c *Collector) MalformedDropped() { c.malformedDropped.Add(1) }

// --- Broker Metrics ---

// InstallCompleted records a key install acknowledged by the broker.
func (c *Collector) InstallCompleted(d time.Duration) {
	c.installsCompleted.Add(1)
	c.installLatency.Observe(float64(d.Milliseconds()))
}

// InstallStale records an install rejected for a non-advancing epoch.
func (c *Collector) InstallStale() { c.installsStale.Add(1) }

// InstallFailed records an install that failed after all retries.
func (c *Collector) InstallFailed() { c.installsFailed.Add(1) }

// InstallRetried records one retry of a failed install.
func (c *Collector) InstallRetried() { c.installRetries.Add(1) }

// --- Snapshot ---

// Snapshot is a point-in-time view of all counters.
type Snapshot struct {
	Timestamp time.Time
	Uptime    time.Duration

	HandshakesInitiated uint64
	HandshakesResponded uint64
	HandshakesCompleted uint64
	HandshakesAbandoned uint64
	RekeysInitiated     uint64
	Retransmissions     uint64

	MACRejected      uint64
	UnknownPeer      uint64
	AuthFailures     uint64
	TokensExpired    uint64
	ReplaysDropped   uint64
	MalformedDropped uint64

	InstallsCompleted uint64
	InstallsStale     uint64
	InstallsFailed    uint64
	InstallRetries    uint64

	HandshakeLatency HistogramSummary
	InstallLatency   HistogramSummary

	Labels Labels
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:           time.Now(),
		Uptime:              time.Since(c.createdAt),
		HandshakesInitiated: c.handshakesInitiated.Load(),
		HandshakesResponded: c.handshakesResponded.Load(),
		HandshakesCompleted: c.handshakesCompleted.Load(),
		HandshakesAbandoned: c.handshakesAbandoned.Load(),
		RekeysInitiated:     c.rekeysInitiated.Load(),
		Retransmissions:     c.retransmissions.Load(),
		MACRejected:         c.macRejected.Load(),
		UnknownPeer:         c.unknownPeer.Load(),
		AuthFailures:        c.authFailures.Load(),
		TokensExpired:       c.tokensExpired.Load(),
		ReplaysDropped:      c.replaysDropped.Load(),
		MalformedDropped:    c.malformedDropped.Load(),
		InstallsCompleted:   c.installsCompleted.Load(),
		InstallsStale:       c.installsStale.Load(),
		InstallsFailed:      c.installsFailed.Load(),
		InstallRetries:      c.installRetries.Load(),
		HandshakeLatency:    c.handshakeLatency.Summary(),
		InstallLatency:      c.installLatency.Summary(),
		Labels:              c.labels,
	}
}

// Reset clears all metrics.
func (c *Collector) Reset() {
	c.handshakesInitiated.Store(0)
	c.handshakesResponded.Store(0)
	c.handshakesCompleted.Store(0)
	c.handshakesAbandoned.Store(0)
	c.rekeysInitiated.Store(0)
	c.retransmissions.Store(0)
	c.macRejected.Store(0)
	c.unknownPeer.Store(0)
	c.authFailures.Store(0)
	c.tokensExpired.Store(0)
	c.replaysDropped.Store(0)
	c.malformedDropped.Store(0)
	c.installsCompleted.Store(0)
	c.installsStale.Store(0)
	c.installsFailed.Store(0)
	c.installRetries.Store(0)
	c.handshakeLatency.Reset()
	c.installLatency.Reset()
	c.createdAt = time.Now()
}

// --- Global Collector ---

var (
	globalCollector     *Collector
	globalCollectorOnce sync.Once
)

// Global returns the global metrics collector, creating it on first use.
func Global() *Collector {
	globalCollectorOnce.Do(func() {
		globalCollector = NewCollector(Labels{"instance": "default"})
	})
	return globalCollector
}

// SetGlobal sets the global metrics collector. Call during initialization,
// before any metrics are recorded.
func SetGlobal(c *Collector) {
	globalCollector = c
}
