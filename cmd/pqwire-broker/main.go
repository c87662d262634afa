// Command pqwire-broker is the privileged half of the key-exchange daemon.
// It listens on a unix socket, accepts session keys from pqwired, and
// programs them into a WireGuard interface's preshared-key slots. It holds
// no network-facing code and no handshake state.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/ogier/pflag"

	"github.com/pqwire/pqwire/pkg/broker"
	"github.com/pqwire/pqwire/pkg/config"
	"github.com/pqwire/pqwire/pkg/crypto"
	"github.com/pqwire/pqwire/pkg/metrics"
	"github.com/pqwire/pqwire/pkg/version"

	"github.com/pqwire/pqwire/internal/constants"
)

func main() {
	fs := flag.NewFlagSet("pqwire-broker", flag.ExitOnError)
	configPath := fs.String("config", "/etc/pqwire/pqwired.toml", "Path to the shared configuration file")
	socketPath := fs.String("socket", "", "Unix socket to listen on (overrides broker_socket)")
	dryRun := fs.Bool("dry-run", false, "Record installs in memory instead of programming the driver")
	logLevel := fs.String("log-level", "", "Override the configured log level")
	showVersion := fs.Bool("version", false, "Print version information and exit")
	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("%v", err)
	}

	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	logOpts := []metrics.LoggerOption{metrics.WithLevel(metrics.ParseLevel(level))}
	if cfg.LogFormat == "json" {
		logOpts = append(logOpts, metrics.WithFormat(metrics.FormatJSON))
	}
	logger := metrics.NewLogger(logOpts...)

	socket := cfg.BrokerSocket
	if *socketPath != "" {
		socket = *socketPath
	}
	if socket == "" {
		fatal("no broker socket configured")
	}

	installer, err := buildInstaller(cfg, *dryRun)
	if err != nil {
		fatal("%v", err)
	}
	srv := broker.NewServer(installer, cfg.Interface, logger)

	// Replace any stale socket from a previous run.
	_ = os.Remove(socket)
	listener, err := net.Listen("unix", socket)
	if err != nil {
		fatal("listen %s: %v", socket, err)
	}
	if err := os.Chmod(socket, 0o600); err != nil {
		fatal("chmod %s: %v", socket, err)
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		listener.Close()
	}()

	logger.Info("pqwire-broker starting", metrics.Fields{
		"version": version.String(),
		"socket":  socket,
		"iface":   cfg.Interface,
		"dry_run": *dryRun,
	})
	if err := srv.ServeListener(listener); err != nil {
		fatal("serve: %v", err)
	}
	_ = os.Remove(socket)
	logger.Info("pqwire-broker stopped")
}

// buildInstaller maps each configured peer's engine identifier to its
// WireGuard public key. The identifier is the keyed hash the engine derives
// for inbound exchanges, so both processes agree on it without talking.
func buildInstaller(cfg *config.Config, dryRun bool) (broker.Installer, error) {
	if dryRun {
		return broker.NewMemoryInstaller(), nil
	}

	selfPK, selfSK, err := config.LoadKeypair(cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	// Only the public half is needed here.
	crypto.Zeroize(selfSK)

	installer := broker.NewWGInstaller()
	for i := range cfg.Peers {
		p := &cfg.Peers[i]
		if p.WGPublicKey == "" {
			continue
		}
		peerPK, err := p.PeerPublicKey()
		if err != nil {
			return nil, fmt.Errorf("peer %s: %w", p.Name, err)
		}

		var pid [constants.PeerIDSize]byte
		copy(pid[:], crypto.Hash([]byte(constants.LabelPeerID), selfPK, peerPK))
		installer.MapPeer(pid, p.WGPublicKey)
	}
	return installer, nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "pqwire-broker: "+format+"\n", args...)
	os.Exit(1)
}
