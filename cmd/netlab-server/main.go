// Command netlab-server runs the echo server over plain TCP or TLS.
//
// Every byte a client sends is written back unchanged. Each connection is
// served by its own goroutine; a misbehaving client never affects others.
//
// Usage:
//
//	netlab-server [flags]
//
// Examples:
//
//	# Plain TCP on 0.0.0.0:9000
//	netlab-server
//
//	# TLS on 0.0.0.0:9443 with certificates from netlab-certs
//	netlab-server -tls -cert certs/server.crt -key certs/server.key
//
//	# Capture protocol events and TLS record headers for netlab-log
//	netlab-server -tls -capture server.nlog -wire
//
//	# Watch the traffic
//	sudo tcpdump -i lo -nn port 9000
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mubashir1osmani/netlab/internal/cli"
	"github.com/mubashir1osmani/netlab/pkg/config"
	"github.com/mubashir1osmani/netlab/pkg/discovery"
	"github.com/mubashir1osmani/netlab/pkg/transport"
	"github.com/mubashir1osmani/netlab/pkg/trust"
)

func main() {
	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if cli.IsHelp(err) {
		os.Exit(cli.ExitOK)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitFailure)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, cfg, os.Stderr, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitFailure)
	}
}

// parseFlags loads the optional config file and overlays the flags that
// were set explicitly.
func parseFlags(args []string, stderr io.Writer) (*config.Config, error) {
	fs := flag.NewFlagSet("netlab-server", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configFile  = fs.String("config", "", "YAML configuration file")
		addr        = fs.String("addr", "", "Listen address (default 0.0.0.0:9000, or :9443 with -tls)")
		useTLS      = fs.Bool("tls", false, "Serve TLS")
		certFile    = fs.String("cert", "", "Server certificate PEM (default certs/server.crt)")
		keyFile     = fs.String("key", "", "Server private key PEM (default certs/server.key)")
		minTLS      = fs.String("min-tls", "", "Minimum TLS version: 1.2 or 1.3 (default 1.2)")
		backlog     = fs.Int("backlog", 0, "Listen backlog (default 5)")
		readTimeout = fs.Duration("read-timeout", 0, "Per-read idle timeout, 0 for none")
		capture     = fs.String("capture", "", "Write protocol events to this capture file")
		wire        = fs.Bool("wire", false, "Record TLS record headers seen on the socket")
		advertise   = fs.Bool("advertise", false, "Advertise the server over mDNS")
		instance    = fs.String("instance", "", "mDNS instance name")
		logLevel    = fs.String("log-level", "", "Log level: debug, info, warn, error (default info)")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := cli.LoadConfig(*configFile)
	if err != nil {
		return nil, err
	}

	cli.Apply(fs, func(name string) {
		switch name {
		case "addr":
			cfg.Server.Address = *addr
		case "tls":
			cfg.TLS.Enabled = *useTLS
		case "cert":
			cfg.TLS.CertFile = *certFile
		case "key":
			cfg.TLS.KeyFile = *keyFile
		case "min-tls":
			cfg.TLS.MinVersion = *minTLS
		case "backlog":
			cfg.Server.Backlog = *backlog
		case "read-timeout":
			cfg.Server.ReadTimeout = *readTimeout
		case "capture":
			cfg.Logging.Capture = *capture
		case "wire":
			cfg.Logging.Wire = *wire
		case "advertise":
			cfg.Discovery.Advertise = *advertise
		case "instance":
			cfg.Discovery.Instance = *instance
		case "log-level":
			cfg.Logging.Level = *logLevel
		}
	})

	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run serves until ctx is cancelled. ready, if set, is called with the
// bound address once the server accepts connections.
func run(ctx context.Context, cfg *config.Config, stderr io.Writer, ready func(net.Addr)) error {
	logging, err := cli.SetupLogging(cfg, stderr)
	if err != nil {
		return err
	}
	defer logging.Close()
	sl := logging.Slog

	var (
		upgrader transport.Upgrader
		served   *trust.ServerContext
	)
	if cfg.TLS.Enabled {
		tcfg, err := cfg.TrustServer()
		if err != nil {
			return err
		}
		served, err = trust.LoadServer(tcfg)
		if err != nil {
			return err
		}
		upgrader = served
		sl.Info("loaded certificate", "cert", tcfg.CertFile, "key", tcfg.KeyFile)
	}

	srv := transport.NewServer(transport.ServerConfig{
		Listen:           cfg.ListenConfig(),
		Upgrader:         upgrader,
		HandshakeTimeout: cfg.Server.HandshakeTimeout,
		ReadTimeout:      cfg.Server.ReadTimeout,
		BufferSize:       cfg.Server.BufferSize,
		CaptureWire:      cfg.Logging.Wire,
		Logger:           logging.Protocol,
		Slog:             sl,
		OnConnect: func(conn *transport.Conn) {
			attrs := []any{"from", conn.RemoteAddr().String(), "conn_id", conn.ID()}
			if state, ok := conn.TLSState(); ok {
				attrs = append(attrs,
					"protocol", tls.VersionName(state.Version),
					"cipher", tls.CipherSuiteName(state.CipherSuite))
			}
			sl.Info("connection", attrs...)
		},
		OnDisconnect: func(conn *transport.Conn, reason transport.CloseReason) {
			sl.Info("disconnected", "peer", conn.RemoteAddr().String(), "reason", string(reason))
		},
		OnError: func(conn *transport.Conn, err error) {
			if conn == nil {
				sl.Error("accept failed", "err", err)
				return
			}
			sl.Warn("connection error", "peer", conn.RemoteAddr().String(), "kind", transport.Kind(err), "err", err)
		},
	})

	if err := srv.Start(ctx); err != nil {
		return err
	}
	addr := srv.Addr()
	mode := "TCP"
	if cfg.TLS.Enabled {
		mode = "TLS"
	}
	sl.Info(mode+" echo server listening", "addr", addr.String())

	if cfg.Discovery.Advertise {
		info := echoInfo(cfg, addr, served)
		adv := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{})
		if err := adv.Advertise(ctx, info); err != nil {
			sl.Warn("mDNS advertise failed", "err", err)
		} else {
			defer adv.Stop()
			sl.Info("advertising over mDNS", "type", info.ServiceType(), "port", info.Port)
		}
	}

	if ready != nil {
		ready(addr)
	}

	<-ctx.Done()
	sl.Info("shutting down", "active", srv.ConnectionCount())

	stopped := make(chan error, 1)
	go func() { stopped <- srv.Stop() }()
	select {
	case err := <-stopped:
		if err != nil {
			return fmt.Errorf("stop: %w", err)
		}
	case <-time.After(10 * time.Second):
		return fmt.Errorf("stop: timed out waiting for sessions")
	}
	sl.Info("server stopped", "total_connections", srv.TotalConnections())
	return nil
}

// echoInfo describes the running server for mDNS.
func echoInfo(cfg *config.Config, addr net.Addr, served *trust.ServerContext) *discovery.EchoInfo {
	info := &discovery.EchoInfo{
		Instance: cfg.Discovery.Instance,
		TLS:      cfg.TLS.Enabled,
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		info.Port = uint16(tcp.Port)
	}
	if served != nil {
		if leaf := served.Certificate().Leaf; leaf != nil {
			info.Fingerprint = discovery.Fingerprint(leaf)
			if len(leaf.DNSNames) > 0 {
				info.ServerName = leaf.DNSNames[0]
			}
		}
	}
	return info
}
