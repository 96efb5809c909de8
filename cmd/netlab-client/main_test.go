package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mubashir1osmani/netlab/internal/cli"
	"github.com/mubashir1osmani/netlab/pkg/cert"
	"github.com/mubashir1osmani/netlab/pkg/log"
	"github.com/mubashir1osmani/netlab/pkg/transport"
	"github.com/mubashir1osmani/netlab/pkg/trust"
)

func startEcho(t *testing.T, up transport.Upgrader) string {
	t.Helper()
	srv := transport.NewServer(transport.ServerConfig{
		Listen:   transport.ListenConfig{Address: "127.0.0.1:0"},
		Upgrader: up,
	})
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Stop() })
	return srv.Addr().String()
}

// labPKI writes ca.crt and returns a server context for hosts.
func labPKI(t *testing.T, hosts ...string) (caFile string, srv *trust.ServerContext) {
	t.Helper()
	ca, err := cert.GenerateCA("test CA", 0)
	require.NoError(t, err)
	leaf, err := ca.IssueLeaf(cert.LeafOptions{Hosts: hosts})
	require.NoError(t, err)

	caFile = filepath.Join(t.TempDir(), "ca.crt")
	require.NoError(t, cert.WriteCertFile(caFile, ca.Certificate))
	return caFile, trust.NewServerContext(leaf.TLSCertificate(), 0, nil)
}

func runClient(t *testing.T, stdin string, args ...string) (int, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String()
}

func TestClientEchoSession(t *testing.T) {
	addr := startEcho(t, nil)

	code, out := runClient(t, "hello\n\nworld\n", "-addr", addr)
	assert.Equal(t, cli.ExitOK, code)
	assert.Contains(t, out, fmt.Sprintf("[*] Connecting to %s...", addr))
	assert.Contains(t, out, "[+] Connected! Local address 127.0.0.1:")
	assert.Contains(t, out, "Type messages to send (Ctrl+C to quit):")
	assert.Contains(t, out, "[<] Received: hello")
	assert.Contains(t, out, "[<] Received: world")
	assert.Equal(t, 2, strings.Count(out, "[>] Sent 5 bytes"))
	assert.NotContains(t, out, "TLS connection established")
}

func TestClientTLSSession(t *testing.T) {
	caFile, srv := labPKI(t, "localhost", "127.0.0.1")
	addr := startEcho(t, srv)
	_, port, _ := net.SplitHostPort(addr)

	capture := filepath.Join(t.TempDir(), "client.nlog")
	code, out := runClient(t, "secret\n",
		"-tls", "-ca", caFile, "-addr", "localhost:"+port, "-capture", capture, "-wire")
	require.Equal(t, cli.ExitOK, code, out)
	assert.Contains(t, out, "[+] TLS connection established!")
	assert.Contains(t, out, "Protocol: TLS 1.3")
	assert.Contains(t, out, "SANs:     localhost, 127.0.0.1")
	assert.Contains(t, out, "[>] Sent 6 bytes (encrypted on the wire)")
	assert.Contains(t, out, "[<] Received (decrypted): secret")

	r, err := log.NewReader(capture)
	require.NoError(t, err)
	defer r.Close()
	events, err := r.ReadAll()
	require.NoError(t, err)

	var records, handshakes int
	for _, e := range events {
		if e.Record != nil {
			records++
		}
		if e.Handshake != nil && e.Handshake.Success {
			handshakes++
		}
	}
	assert.Positive(t, records)
	assert.Equal(t, 1, handshakes)
}

func TestClientRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	code, out := runClient(t, "", "-addr", addr)
	assert.Equal(t, cli.ExitRefused, code)
	assert.Contains(t, out, "Connection refused - is the server running on "+addr)
}

func TestClientVerificationFailure(t *testing.T) {
	caFile, srv := labPKI(t, "echo.lab")
	addr := startEcho(t, srv)

	code, out := runClient(t, "never sent\n", "-tls", "-ca", caFile, "-addr", addr)
	assert.Equal(t, cli.ExitVerification, code)
	assert.Contains(t, out, "[!] Certificate verification FAILED")
	assert.NotContains(t, out, "[>] Sent")
}

func TestClientUntrustedCA(t *testing.T) {
	_, srv := labPKI(t, "localhost")
	otherCA, _ := labPKI(t, "localhost")
	addr := startEcho(t, srv)
	_, port, _ := net.SplitHostPort(addr)

	code, _ := runClient(t, "", "-tls", "-ca", otherCA, "-addr", "localhost:"+port)
	assert.Equal(t, cli.ExitVerification, code)
}

func TestClientStartupErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing ca", []string{"-tls", "-ca", filepath.Join(t.TempDir(), "nope.crt")}},
		{"bad level", []string{"-log-level", "loud"}},
		{"unknown flag", []string{"-bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := runClient(t, "", tt.args...)
			assert.Equal(t, cli.ExitFailure, code)
		})
	}
}

func TestParseFlagsDefaults(t *testing.T) {
	opts, err := parseFlags(nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", opts.cfg.ClientAddress())
	assert.False(t, opts.discover)

	opts, err = parseFlags([]string{"-tls", "-addr", "10.0.0.5", "-attempts", "3"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:9443", opts.cfg.ClientAddress())
	assert.Equal(t, uint(3), opts.cfg.Client.Attempts)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, cli.ExitOK},
		{"refused", fmt.Errorf("dial: %w", transport.ErrConnectionRefused), cli.ExitRefused},
		{"verification", &trust.VerificationError{Reason: trust.ReasonHostnameMismatch}, cli.ExitVerification},
		{"handshake", &trust.HandshakeError{Role: "client", Err: errors.New("alert")}, cli.ExitHandshake},
		{"other", errors.New("boom"), cli.ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
