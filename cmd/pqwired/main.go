// Command pqwired is the unprivileged key-exchange daemon. It runs the
// handshake engine over UDP and hands each derived session key to the
// privileged broker for installation.
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/ogier/pflag"

	"github.com/pqwire/pqwire/internal/constants"
	"github.com/pqwire/pqwire/pkg/broker"
	"github.com/pqwire/pqwire/pkg/config"
	"github.com/pqwire/pqwire/pkg/engine"
	"github.com/pqwire/pqwire/pkg/handshake"
	"github.com/pqwire/pqwire/pkg/kem"
	"github.com/pqwire/pqwire/pkg/metrics"
	"github.com/pqwire/pqwire/pkg/secmem"
	"github.com/pqwire/pqwire/pkg/transport"
	"github.com/pqwire/pqwire/pkg/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runCommand()
	case "genkey":
		genkeyCommand()
	case "version":
		fmt.Println(version.Full())
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`pqwired - post-quantum key-exchange daemon

USAGE:
    pqwired <command> [options]

COMMANDS:
    run       Run the daemon
    genkey    Generate a static keypair
    version   Print version information
    help      Show this help message

EXAMPLES:
    # Provision an identity
    pqwired genkey --out /etc/pqwire/self.key

    # Run against a config
    pqwired run --config /etc/pqwire/pqwired.toml`)
}

func genkeyCommand() {
	fs := flag.NewFlagSet("genkey", flag.ExitOnError)
	out := fs.String("out", "", "Path to write the keypair file")
	_ = fs.Parse(os.Args[2:])

	if *out == "" {
		fmt.Fprintln(os.Stderr, "genkey: --out is required")
		os.Exit(1)
	}

	pk, sk, err := kem.Default().GenerateKeyPair()
	if err != nil {
		fatal("generate keypair: %v", err)
	}
	if err := config.SaveKeypair(*out, pk, sk); err != nil {
		fatal("write %s: %v", *out, err)
	}
	for i := range sk {
		sk[i] = 0
	}

	fmt.Printf("public_key = %q\n", base64.StdEncoding.EncodeToString(pk))
}

func runCommand() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "/etc/pqwire/pqwired.toml", "Path to the configuration file")
	logLevel := fs.String("log-level", "", "Override the configured log level")
	_ = fs.Parse(os.Args[2:])

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
	metrics.SetLogger(logger)

	pk, sk, err := config.LoadKeypair(cfg.KeyFile)
	if err != nil {
		fatal("%v", err)
	}
	skSecret, err := secmem.FromBytes(sk)
	if err != nil {
		fatal("protect private key: %v", err)
	}

	machine, err := handshake.NewMachine(kem.Default(), pk, skSecret, timingFromConfig(cfg))
	if err != nil {
		fatal("handshake machine: %v", err)
	}

	conn, err := transport.ListenUDP(cfg.ListenAddr)
	if err != nil {
		fatal("listen %s: %v", cfg.ListenAddr, err)
	}
	defer conn.Close()

	deliverer, err := buildDeliverer(cfg, logger)
	if err != nil {
		fatal("%v", err)
	}

	eng := engine.New(engine.Options{
		Machine:   machine,
		Conn:      conn,
		Deliverer: deliverer,
		Logger:    logger,
		Collector: metrics.Global(),
		Tracer:    metrics.NewOTelTracer("pqwired"),
		Retry:     retryFromConfig(cfg),
	})

	for i := range cfg.Peers {
		p := &cfg.Peers[i]
		peerPK, err := p.PeerPublicKey()
		if err != nil {
			fatal("peer %s: %v", p.Name, err)
		}
		pid, err := machine.AddPeer(peerPK)
		if err != nil {
			fatal("peer %s: %v", p.Name, err)
		}
		if p.Endpoint != "" {
			addr, err := net.ResolveUDPAddr("udp", p.Endpoint)
			if err != nil {
				fatal("peer %s: endpoint %s: %v", p.Name, p.Endpoint, err)
			}
			eng.SetEndpoint(pid, addr)
		}
		logger.Info("peer configured", metrics.Fields{"name": p.Name, "active": p.Endpoint != ""})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("pqwired starting", metrics.Fields{
		"version": version.String(),
		"listen":  cfg.ListenAddr,
		"peers":   len(cfg.Peers),
	})
	if err := eng.Run(ctx); err != nil {
		fatal("engine: %v", err)
	}
	logger.Info("pqwired stopped")
}

// buildDeliverer connects to the broker socket, or logs installs when no
// socket is configured (useful for interoperability testing).
func buildDeliverer(cfg *config.Config, logger *metrics.Logger) (engine.Deliverer, error) {
	if cfg.BrokerSocket == "" {
		logger.Warn("no broker socket configured, keys will not be installed")
		return &dropDeliverer{logger: logger.Named("deliver")}, nil
	}

	client, err := broker.Dial(cfg.BrokerSocket, cfg.Broker.DeliverTimeout.Std())
	if err != nil {
		return nil, fmt.Errorf("broker %s: %w", cfg.BrokerSocket, err)
	}
	if cfg.Interface != "" {
		if err := client.SetParameters(cfg.Interface); err != nil {
			return nil, err
		}
	}
	return client, nil
}

// dropDeliverer acknowledges every key without installing it.
type dropDeliverer struct {
	logger *metrics.Logger
}

func (d *dropDeliverer) Deliver(peerID [constants.PeerIDSize]byte, epoch uint64, key *secmem.Secret) error {
	d.logger.Info("key derived", metrics.Fields{"epoch": epoch})
	return nil
}

func timingFromConfig(cfg *config.Config) handshake.Timing {
	return handshake.Timing{
		RekeyAfter:       cfg.Timing.RekeyAfter.Std(),
		RejectAfter:      cfg.Timing.RejectAfter.Std(),
		RetransmitBegin:  cfg.Timing.RetransmitBegin.Std(),
		RetransmitEnd:    cfg.Timing.RetransmitEnd.Std(),
		RetransmitJitter: cfg.Timing.RetransmitJitter.Std(),
		TokenKeyEpoch:    cfg.Timing.TokenKeyEpoch.Std(),
	}
}

func retryFromConfig(cfg *config.Config) engine.RetryPolicy {
	return engine.RetryPolicy{
		Begin:      cfg.Broker.RetryBegin.Std(),
		End:        cfg.Broker.RetryEnd.Std(),
		MaxRetries: cfg.Broker.MaxRetries,
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "pqwired: "+format+"\n", args...)
	os.Exit(1)
}
