// Command netlab-client is an interactive echo client for netlab-server.
//
// Each line typed is sent to the server and the echoed bytes are printed.
// In TLS mode the server certificate must chain to the CA given with -ca
// and carry the dialled host name; otherwise the connection is refused
// before any message is sent.
//
// Usage:
//
//	netlab-client [flags]
//
// Exit codes:
//
//	0  session ended normally
//	1  startup or other failure
//	2  connection refused
//	3  server certificate verification failed
//	4  TLS handshake failed
//
// Examples:
//
//	netlab-client
//	netlab-client -tls -ca certs/ca.crt
//	netlab-client -tls -discover
//	echo hello | netlab-client -addr 10.0.0.5:9000
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/chzyer/readline"

	"github.com/mubashir1osmani/netlab/internal/cli"
	"github.com/mubashir1osmani/netlab/pkg/cert"
	"github.com/mubashir1osmani/netlab/pkg/client"
	"github.com/mubashir1osmani/netlab/pkg/config"
	"github.com/mubashir1osmani/netlab/pkg/discovery"
	"github.com/mubashir1osmani/netlab/pkg/transport"
	"github.com/mubashir1osmani/netlab/pkg/trust"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

type options struct {
	cfg      *config.Config
	discover bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("netlab-client", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configFile = fs.String("config", "", "YAML configuration file")
		addr       = fs.String("addr", "", "Server host or host:port (default localhost:9000, or :9443 with -tls)")
		useTLS     = fs.Bool("tls", false, "Connect with TLS")
		caFile     = fs.String("ca", "", "CA certificate PEM to trust (default certs/ca.crt)")
		serverName = fs.String("server-name", "", "Host name to verify (default: host part of -addr)")
		minTLS     = fs.String("min-tls", "", "Minimum TLS version: 1.2 or 1.3 (default 1.2)")
		attempts   = fs.Uint("attempts", 0, "Connect attempts while the server refuses (default 1)")
		timeout    = fs.Duration("connect-timeout", 0, "Timeout per connect attempt (default 10s)")
		discover   = fs.Bool("discover", false, "Find the server over mDNS instead of -addr")
		capture    = fs.String("capture", "", "Write protocol events to this capture file")
		wire       = fs.Bool("wire", false, "Record TLS record headers seen on the socket")
		logLevel   = fs.String("log-level", "", "Log level: debug, info, warn, error (default info)")
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
			cfg.Client.Address = *addr
		case "tls":
			cfg.TLS.Enabled = *useTLS
		case "ca":
			cfg.TLS.CAFile = *caFile
		case "server-name":
			cfg.Client.ServerName = *serverName
		case "min-tls":
			cfg.TLS.MinVersion = *minTLS
		case "attempts":
			cfg.Client.Attempts = *attempts
		case "connect-timeout":
			cfg.Client.ConnectTimeout = *timeout
		case "capture":
			cfg.Logging.Capture = *capture
		case "wire":
			cfg.Logging.Wire = *wire
		case "log-level":
			cfg.Logging.Level = *logLevel
		}
	})

	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}
	return &options{cfg: cfg, discover: *discover}, nil
}

// run executes one client session and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if cli.IsHelp(err) {
		return cli.ExitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return cli.ExitFailure
	}
	cfg := opts.cfg

	logging, err := cli.SetupLogging(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return cli.ExitFailure
	}
	defer logging.Close()

	dialer := &transport.Dialer{
		ConnectTimeout: cfg.Client.ConnectTimeout,
		ServerName:     cfg.Client.ServerName,
		Attempts:       cfg.Client.Attempts,
		CaptureWire:    cfg.Logging.Wire,
		Logger:         logging.Protocol,
		Slog:           logging.Slog,
	}
	if cfg.TLS.Enabled {
		tcfg, err := cfg.TrustClient()
		if err == nil {
			var cc *trust.ClientContext
			if cc, err = trust.LoadClient(tcfg); err == nil {
				dialer.Upgrader = cc
			}
		}
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return cli.ExitFailure
		}
	}

	addr := cfg.ClientAddress()
	if opts.discover {
		svc, err := discovery.NewMDNSBrowser(discovery.BrowserConfig{
			Timeout: cfg.Discovery.BrowseTimeout,
		}).FindFirst(ctx, cfg.TLS.Enabled)
		if err != nil {
			fmt.Fprintf(stdout, "[!] No echo server found over mDNS: %v\n", err)
			return cli.ExitFailure
		}
		addr = svc.Address()
		if dialer.ServerName == "" && svc.ServerName != "" {
			dialer.ServerName = svc.ServerName
		}
		fmt.Fprintf(stdout, "[*] Discovered %q at %s\n", svc.Instance, addr)
	}

	fmt.Fprintf(stdout, "[*] Connecting to %s...\n", addr)
	conn, err := dialer.Dial(ctx, addr)
	if err != nil {
		reportDialError(stdout, addr, err)
		return exitCode(err)
	}

	printConnected(stdout, conn)

	input, out := newInput(stdin, stdout)
	fmt.Fprintln(out, "Type messages to send (Ctrl+C to quit):")

	d := &client.Driver{
		Conn:   conn,
		Input:  input,
		Output: out,
		Secure: conn.IsTLS(),
	}
	if err := d.Run(ctx); err != nil {
		fmt.Fprintf(stdout, "[!] %v\n", err)
		return exitCode(err)
	}
	sent, received := d.Totals()
	logging.Slog.Debug("session ended", "sent", sent, "received", received)
	return cli.ExitOK
}

// newInput uses line editing on a terminal and plain line reading
// otherwise.
func newInput(stdin io.Reader, stdout io.Writer) (client.LineReader, io.Writer) {
	if f, ok := stdin.(*os.File); ok && readline.IsTerminal(int(f.Fd())) {
		rl, err := client.NewReadlineInput("> ")
		if err == nil {
			return rl, rl.Stdout()
		}
	}
	return client.NewScannerInput(stdin), stdout
}

func reportDialError(w io.Writer, addr string, err error) {
	switch {
	case errors.Is(err, transport.ErrConnectionRefused):
		fmt.Fprintf(w, "[!] Connection refused - is the server running on %s?\n", addr)
	case errors.Is(err, trust.ErrVerificationFailure):
		fmt.Fprintf(w, "[!] Certificate verification FAILED: %v\n", err)
	case errors.Is(err, trust.ErrHandshakeFailure):
		fmt.Fprintf(w, "[!] TLS handshake failed: %v\n", err)
	default:
		fmt.Fprintf(w, "[!] Connection failed: %v\n", err)
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return cli.ExitOK
	case errors.Is(err, transport.ErrConnectionRefused):
		return cli.ExitRefused
	case errors.Is(err, trust.ErrVerificationFailure):
		return cli.ExitVerification
	case errors.Is(err, trust.ErrHandshakeFailure):
		return cli.ExitHandshake
	default:
		return cli.ExitFailure
	}
}

func printConnected(w io.Writer, conn *transport.Conn) {
	fmt.Fprintf(w, "[+] Connected! Local address %s\n", conn.LocalAddr())
	fmt.Fprintf(w, "    4-tuple: %s\n", conn.Tuple())

	state, ok := conn.TLSState()
	if !ok {
		return
	}
	fmt.Fprintln(w, "[+] TLS connection established!")
	fmt.Fprintf(w, "    Protocol: %s\n", tls.VersionName(state.Version))
	fmt.Fprintf(w, "    Cipher:   %s\n", tls.CipherSuiteName(state.CipherSuite))
	if len(state.PeerCertificates) > 0 {
		fmt.Fprintln(w, "[*] Server certificate:")
		fmt.Fprint(w, cert.GetCertificateInfo(state.PeerCertificates[0]))
	}
}
