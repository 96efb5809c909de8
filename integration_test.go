package netlab_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mubashir1osmani/netlab/pkg/cert"
	"github.com/mubashir1osmani/netlab/pkg/client"
	"github.com/mubashir1osmani/netlab/pkg/connection"
	"github.com/mubashir1osmani/netlab/pkg/discovery"
	"github.com/mubashir1osmani/netlab/pkg/log"
	"github.com/mubashir1osmani/netlab/pkg/transport"
	"github.com/mubashir1osmani/netlab/pkg/trust"
)

// writePKI writes ca.crt, server.crt and server.key for hosts into a
// temporary directory, the way netlab-certs lays them out.
func writePKI(t *testing.T, hosts ...string) string {
	t.Helper()
	dir := t.TempDir()

	ca, err := cert.GenerateCA("e2e CA", 0)
	if err != nil {
		t.Fatalf("GenerateCA: %v", err)
	}
	leaf, err := ca.IssueLeaf(cert.LeafOptions{Hosts: hosts})
	if err != nil {
		t.Fatalf("IssueLeaf: %v", err)
	}
	if err := cert.WriteCertFile(filepath.Join(dir, "ca.crt"), ca.Certificate); err != nil {
		t.Fatal(err)
	}
	if err := cert.WriteCertFile(filepath.Join(dir, "server.crt"), leaf.Certificate); err != nil {
		t.Fatal(err)
	}
	if err := cert.WriteKeyFile(filepath.Join(dir, "server.key"), leaf.PrivateKey.(*ecdsa.PrivateKey)); err != nil {
		t.Fatal(err)
	}
	return dir
}

// eventSink collects protocol events from both roles.
type eventSink struct {
	mu     sync.Mutex
	events []log.Event
}

func (s *eventSink) Log(e log.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *eventSink) count(match func(log.Event) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if match(e) {
			n++
		}
	}
	return n
}

// TestE2E_TLSEcho runs the full stack: PEM files on disk, a TLS server,
// a verifying client and the interactive driver fed from a pipe.
func TestE2E_TLSEcho(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dir := writePKI(t, "localhost", "127.0.0.1")
	serverCtx, err := trust.LoadServer(trust.ServerConfig{
		CertFile: filepath.Join(dir, "server.crt"),
		KeyFile:  filepath.Join(dir, "server.key"),
	})
	if err != nil {
		t.Fatalf("LoadServer: %v", err)
	}
	clientCtx, err := trust.LoadClient(trust.ClientConfig{CAFile: filepath.Join(dir, "ca.crt")})
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}

	sink := &eventSink{}
	disconnected := make(chan transport.CloseReason, 1)
	srv := transport.NewServer(transport.ServerConfig{
		Listen:      transport.ListenConfig{Address: "127.0.0.1:0"},
		Upgrader:    serverCtx,
		CaptureWire: true,
		Logger:      sink,
		OnDisconnect: func(_ *transport.Conn, reason transport.CloseReason) {
			disconnected <- reason
		},
	})
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	dialer := &transport.Dialer{Upgrader: clientCtx, CaptureWire: true, Logger: sink}
	conn, err := dialer.Dial(ctx, srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	var out bytes.Buffer
	d := &client.Driver{
		Conn:   conn,
		Input:  client.NewScannerInput(strings.NewReader("first message\nsecond\n")),
		Output: &out,
		Secure: true,
	}
	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, want := range []string{
		"[<] Received (decrypted): first message",
		"[<] Received (decrypted): second",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("transcript missing %q:\n%s", want, out.String())
		}
	}

	select {
	case reason := <-disconnected:
		if reason != transport.ReasonEOF {
			t.Errorf("close reason = %s, want %s", reason, transport.ReasonEOF)
		}
	case <-ctx.Done():
		t.Fatal("server never saw the disconnect")
	}

	appData := sink.count(func(e log.Event) bool {
		return e.Record != nil && e.Record.ContentType == 23
	})
	if appData == 0 {
		t.Error("expected application_data records on the wire")
	}
	leaked := sink.count(func(e log.Event) bool {
		return e.Layer == log.LayerWire && e.Data != nil && bytes.Contains(e.Data.Data, []byte("first message"))
	})
	if leaked != 0 {
		t.Error("plaintext seen below TLS")
	}
}

// TestE2E_UntrustedServer checks that no application byte leaves the
// client when the server presents a certificate from another CA.
func TestE2E_UntrustedServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	served := writePKI(t, "localhost")
	trusted := writePKI(t, "localhost")

	serverCtx, err := trust.LoadServer(trust.ServerConfig{
		CertFile: filepath.Join(served, "server.crt"),
		KeyFile:  filepath.Join(served, "server.key"),
	})
	if err != nil {
		t.Fatal(err)
	}
	clientCtx, err := trust.LoadClient(trust.ClientConfig{CAFile: filepath.Join(trusted, "ca.crt")})
	if err != nil {
		t.Fatal(err)
	}

	srv := transport.NewServer(transport.ServerConfig{
		Listen:   transport.ListenConfig{Address: "127.0.0.1:0"},
		Upgrader: serverCtx,
	})
	if err := srv.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer srv.Stop()

	_, err = (&transport.Dialer{Upgrader: clientCtx}).Dial(ctx, srv.Addr().String())
	if !errors.Is(err, trust.ErrVerificationFailure) {
		t.Fatalf("Dial error = %v, want ErrVerificationFailure", err)
	}
	var verr *trust.VerificationError
	if !errors.As(err, &verr) || verr.Reason != trust.ReasonUntrustedChain {
		t.Errorf("reason = %v, want untrusted chain", err)
	}
}

// TestE2E_Reconnection starts the client before the server; refused dials
// are retried until the listener appears.
func TestE2E_Reconnection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	srv := transport.NewServer(transport.ServerConfig{
		Listen: transport.ListenConfig{Address: addr, ReuseAddr: true},
	})
	go func() {
		time.Sleep(150 * time.Millisecond)
		if err := srv.Start(ctx); err != nil {
			t.Errorf("Start: %v", err)
		}
	}()
	defer srv.Stop()

	backoff := connection.NewBackoffWithConfig(connection.BackoffConfig{
		Initial:    20 * time.Millisecond,
		Max:        100 * time.Millisecond,
		Multiplier: 2,
	})
	conn, err := (&transport.Dialer{Attempts: 50, Backoff: backoff}).Dial(ctx, addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("late")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 4)
	if _, err := conn.Read(buf); err != nil || string(buf) != "late" {
		t.Fatalf("echo = %q, %v", buf, err)
	}
}

// TestE2E_Discovery advertises an echo server over mDNS and finds it.
func TestE2E_Discovery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := transport.NewServer(transport.ServerConfig{
		Listen: transport.ListenConfig{Address: "127.0.0.1:0"},
	})
	if err := srv.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer srv.Stop()
	_, portStr, _ := net.SplitHostPort(srv.Addr().String())
	port, _ := strconv.Atoi(portStr)

	advertiser := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{})
	info := &discovery.EchoInfo{Instance: "netlab-e2e-" + portStr, Port: uint16(port)}
	if err := advertiser.Advertise(ctx, info); err != nil {
		t.Skipf("mDNS unavailable: %v", err)
	}
	defer advertiser.Stop()

	time.Sleep(500 * time.Millisecond)

	found, err := discovery.NewMDNSBrowser(discovery.BrowserConfig{Timeout: 5 * time.Second}).FindFirst(ctx, false)
	if err != nil {
		t.Fatalf("FindFirst: %v", err)
	}
	if found.Port != info.Port {
		t.Errorf("Port = %d, want %d", found.Port, info.Port)
	}
	if found.TLS {
		t.Error("plain echo server reported as TLS")
	}
}
