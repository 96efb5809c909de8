// Command netlab-certs generates the lab PKI: a private CA and a server
// certificate signed by it.
//
// Usage:
//
//	netlab-certs [-dir certs] [-hosts localhost,127.0.0.1,::1] [-days 365]
//
// Files written to -dir:
//
//	ca.crt      CA certificate (give this to clients with -ca)
//	ca.key      CA private key
//	server.crt  server certificate
//	server.key  server private key
package main

import (
	"crypto/ecdsa"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mubashir1osmani/netlab/pkg/cert"
)

type options struct {
	dir    string
	hosts  []string
	cn     string
	days   int
	caDays int
	force  bool
}

func main() {
	var (
		dir    = flag.String("dir", "certs", "Output directory")
		hosts  = flag.String("hosts", strings.Join(cert.DefaultHosts, ","), "Comma-separated SANs for the server certificate")
		cn     = flag.String("cn", "netlab lab CA", "CA common name")
		days   = flag.Int("days", 365, "Server certificate validity in days")
		caDays = flag.Int("ca-days", 3650, "CA validity in days")
		force  = flag.Bool("force", false, "Overwrite existing files")
	)
	flag.Parse()

	opts := options{
		dir:    *dir,
		hosts:  splitHosts(*hosts),
		cn:     *cn,
		days:   *days,
		caDays: *caDays,
		force:  *force,
	}
	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func splitHosts(s string) []string {
	var out []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}

func run(opts options, out io.Writer) error {
	if len(opts.hosts) == 0 {
		return cert.ErrNoHosts
	}
	if opts.days <= 0 || opts.caDays <= 0 {
		return errors.New("validity must be positive")
	}

	paths := map[string]string{
		"ca.crt":     filepath.Join(opts.dir, "ca.crt"),
		"ca.key":     filepath.Join(opts.dir, "ca.key"),
		"server.crt": filepath.Join(opts.dir, "server.crt"),
		"server.key": filepath.Join(opts.dir, "server.key"),
	}
	if !opts.force {
		for _, p := range paths {
			if _, err := os.Stat(p); err == nil {
				return fmt.Errorf("%s exists (use -force to overwrite)", p)
			}
		}
	}
	if err := os.MkdirAll(opts.dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", opts.dir, err)
	}

	ca, err := cert.GenerateCA(opts.cn, time.Duration(opts.caDays)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("generate CA: %w", err)
	}
	leaf, err := ca.IssueLeaf(cert.LeafOptions{
		Hosts:    opts.hosts,
		Validity: time.Duration(opts.days) * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("issue server certificate: %w", err)
	}
	leafKey, ok := leaf.PrivateKey.(*ecdsa.PrivateKey)
	if !ok {
		return fmt.Errorf("unexpected server key type %T", leaf.PrivateKey)
	}

	if err := cert.WriteCertFile(paths["ca.crt"], ca.Certificate); err != nil {
		return err
	}
	if err := cert.WriteKeyFile(paths["ca.key"], ca.PrivateKey); err != nil {
		return err
	}
	if err := cert.WriteCertFile(paths["server.crt"], leaf.Certificate); err != nil {
		return err
	}
	if err := cert.WriteKeyFile(paths["server.key"], leafKey); err != nil {
		return err
	}

	fmt.Fprintf(out, "[+] CA written to %s\n", paths["ca.crt"])
	fmt.Fprint(out, cert.GetCertificateInfo(ca.Certificate))
	fmt.Fprintf(out, "[+] Server certificate written to %s\n", paths["server.crt"])
	fmt.Fprint(out, cert.GetCertificateInfo(leaf.Certificate))
	return nil
}
