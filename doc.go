// Package pqwire provides a post-quantum secure key-exchange engine that
// negotiates fresh symmetric keys between network peers and delivers them
// into a kernel-level encrypted tunnel through a privilege-separated broker.
//
// pqwire runs alongside an existing link-layer VPN (such as WireGuard) as an
// add-on key source: the session keys it negotiates are mixed into the
// tunnel's pre-shared-key slot, giving the link forward secrecy against a
// future quantum adversary. Key encapsulation uses a hybrid of ML-KEM-1024
// (NIST FIPS 203) and X25519 (RFC 7748), so the exchange stays secure if
// EITHER algorithm holds.
//
// # Architecture
//
// Two cooperating processes:
//
//	pqwired        unprivileged; runs the handshake state machine over UDP
//	pqwire-broker  privileged; programs the kernel tunnel driver with keys
//	               received over a local Unix-socket IPC channel
//
// The handshake process never holds the privileges needed to configure the
// tunnel; the broker never sees network traffic. A derived key crosses the
// boundary exactly once, framed, epoch-tagged, and wrapped in locked memory.
//
// # Package Structure
//
//   - pkg/secmem: locked, zeroized secret memory for all key material
//   - pkg/crypto: KDF chain, transcript hash, AEAD, CSPRNG primitives
//   - pkg/kem: pluggable key-encapsulation schemes (hybrid X25519+ML-KEM)
//   - pkg/protocol: fixed-layout handshake wire messages
//   - pkg/handshake: the per-peer handshake state machine and key schedule
//   - pkg/broker: privilege-separated key-installation IPC
//   - pkg/transport: bounded datagram transport abstraction
//   - pkg/engine: single-threaded event loop tying the above together
//   - pkg/config: TOML configuration and keypair files
//   - pkg/metrics: structured logging, counters, and tracing
//   - internal/constants: protocol sizes, labels, and timing parameters
//   - internal/errors: error taxonomy shared by all packages
//
// # Security Properties
//
//   - Post-quantum forward secrecy: ephemeral hybrid KEM per handshake
//   - Stateless responder: intermediate handshake state travels inside an
//     encrypted, authenticated resumption token, bounding the memory an
//     attacker can force the responder to retain
//   - Transcript binding: every derived secret is bound to a running hash
//     of all message bytes exchanged
//   - Secret hygiene: keys live in mlock'd, core-dump-excluded buffers and
//     are zeroized on every exit path
package pqwire
