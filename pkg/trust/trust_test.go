package trust

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mubashir1osmani/netlab/pkg/cert"
	"github.com/mubashir1osmani/netlab/pkg/wiretap"
)

type material struct {
	ca   *cert.Authority
	leaf *cert.Leaf
}

func newMaterial(t *testing.T, hosts ...string) material {
	t.Helper()
	ca, err := cert.GenerateCA("netlab test CA", time.Hour)
	require.NoError(t, err)
	leaf, err := ca.IssueLeaf(cert.LeafOptions{Hosts: hosts})
	require.NoError(t, err)
	return material{ca: ca, leaf: leaf}
}

// tcpPair returns both ends of a loopback TCP connection.
func tcpPair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server = <-accepted
	require.NotNil(t, server)
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

type handshakeResult struct {
	conn *tls.Conn
	err  error
}

// handshake runs both roles concurrently and returns their outcomes.
func handshake(t *testing.T, srv *ServerContext, cli *ClientContext, host string) (server, client handshakeResult) {
	t.Helper()
	clientRaw, serverRaw := tcpPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan handshakeResult, 1)
	go func() {
		tc, err := srv.Secure(ctx, serverRaw)
		done <- handshakeResult{tc, err}
	}()
	tc, err := cli.Secure(ctx, clientRaw, host)
	client = handshakeResult{tc, err}
	if err != nil {
		// Unblock a server still waiting for the client's Finished.
		clientRaw.Close()
	}
	server = <-done
	return server, client
}

func TestSecureSuccess(t *testing.T) {
	m := newMaterial(t, "localhost", "127.0.0.1")
	srv := NewServerContext(m.leaf.TLSCertificate(), 0, nil)
	cli := NewClientContext(m.ca.Pool(), 0)

	server, client := handshake(t, srv, cli, "localhost")
	require.NoError(t, server.err)
	require.NoError(t, client.err)

	state := client.conn.ConnectionState()
	assert.GreaterOrEqual(t, state.Version, uint16(tls.VersionTLS12))
	assert.Equal(t, "localhost", server.conn.ConnectionState().ServerName)
	require.NotEmpty(t, state.PeerCertificates)
	assert.Equal(t, m.leaf.Certificate.SerialNumber, state.PeerCertificates[0].SerialNumber)

	go func() {
		buf := make([]byte, 4)
		if _, err := io.ReadFull(server.conn, buf); err == nil {
			server.conn.Write(buf)
		}
	}()
	_, err := client.conn.Write([]byte("ping"))
	require.NoError(t, err)
	got := make([]byte, 4)
	_, err = io.ReadFull(client.conn, got)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(got))
}

func TestSecureIPAddressSAN(t *testing.T) {
	m := newMaterial(t, "127.0.0.1")
	srv := NewServerContext(m.leaf.TLSCertificate(), 0, nil)
	cli := NewClientContext(m.ca.Pool(), 0)

	_, client := handshake(t, srv, cli, "127.0.0.1")
	require.NoError(t, client.err)
}

func TestSecureHostnameMismatch(t *testing.T) {
	m := newMaterial(t, "echo.internal")
	srv := NewServerContext(m.leaf.TLSCertificate(), 0, nil)
	cli := NewClientContext(m.ca.Pool(), 0)

	server, client := handshake(t, srv, cli, "localhost")
	require.Error(t, client.err)
	assert.Nil(t, client.conn)
	assert.ErrorIs(t, client.err, ErrVerificationFailure)
	assert.ErrorIs(t, client.err, cert.ErrHostnameMismatch)
	assert.NotErrorIs(t, client.err, ErrHandshakeFailure)

	var verr *VerificationError
	require.True(t, errors.As(client.err, &verr))
	assert.Equal(t, ReasonHostnameMismatch, verr.Reason)
	assert.Equal(t, "localhost", verr.Host)
	assert.Equal(t, "verification_failure", verr.Kind())

	// The server may or may not have finished before the alert arrived, but
	// no application data can flow on its side either way.
	if server.err == nil {
		server.conn.SetReadDeadline(time.Now().Add(time.Second))
		_, err := server.conn.Read(make([]byte, 1))
		assert.Error(t, err)
	} else {
		assert.ErrorIs(t, server.err, ErrHandshakeFailure)
	}
}

func TestSecureUntrustedCANoPlaintext(t *testing.T) {
	served := newMaterial(t, "localhost")
	other := newMaterial(t, "localhost")

	srv := NewServerContext(served.leaf.TLSCertificate(), 0, nil)
	cli := NewClientContext(other.ca.Pool(), 0)

	clientRaw, serverRaw := tcpPair(t)
	tap := wiretap.New(serverRaw, wiretap.Options{ParseRecords: true})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := srv.Secure(ctx, tap)
		done <- err
	}()
	_, err := cli.Secure(ctx, clientRaw, "localhost")
	require.Error(t, err)
	<-done

	var verr *VerificationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, ReasonUntrustedChain, verr.Reason)
	assert.ErrorIs(t, err, cert.ErrInvalidChain)

	in, _ := tap.Records()
	for _, r := range in {
		assert.NotEqual(t, uint8(23), r.ContentType, "application data reached the server")
	}
	assert.False(t, bytes.Contains(tap.Received(), []byte("ping")))
}

func TestSecureVersionFloor(t *testing.T) {
	m := newMaterial(t, "localhost")
	srv := NewServerContext(m.leaf.TLSCertificate(), tls.VersionTLS13, nil)
	cli := NewClientContext(m.ca.Pool(), tls.VersionTLS12).WithMaxVersion(tls.VersionTLS12)

	server, client := handshake(t, srv, cli, "localhost")
	require.Error(t, server.err)
	require.Error(t, client.err)

	assert.ErrorIs(t, server.err, ErrHandshakeFailure)
	assert.ErrorIs(t, client.err, ErrHandshakeFailure)
	assert.NotErrorIs(t, client.err, ErrVerificationFailure)

	var herr *HandshakeError
	require.True(t, errors.As(server.err, &herr))
	assert.Equal(t, "server", herr.Role)
	assert.Equal(t, "handshake_failure", herr.Kind())
}

func TestSecureClosesRawOnFailure(t *testing.T) {
	m := newMaterial(t, "echo.internal")
	srv := NewServerContext(m.leaf.TLSCertificate(), 0, nil)
	cli := NewClientContext(m.ca.Pool(), 0)

	clientRaw, serverRaw := tcpPair(t)
	go srv.Secure(context.Background(), serverRaw)

	_, err := cli.Secure(context.Background(), clientRaw, "localhost")
	require.Error(t, err)

	_, werr := clientRaw.Write([]byte("x"))
	assert.ErrorIs(t, werr, net.ErrClosed)
}

func TestLoadServer(t *testing.T) {
	dir := t.TempDir()
	m := newMaterial(t, "localhost")
	other := newMaterial(t, "localhost")

	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	otherKey := filepath.Join(dir, "other.key")
	require.NoError(t, cert.WriteCertFile(certFile, m.leaf.Certificate))
	require.NoError(t, cert.WriteKeyFile(keyFile, m.leaf.PrivateKey.(*ecdsa.PrivateKey)))
	require.NoError(t, cert.WriteKeyFile(otherKey, other.leaf.PrivateKey.(*ecdsa.PrivateKey)))

	t.Run("Valid", func(t *testing.T) {
		srv, err := LoadServer(ServerConfig{CertFile: certFile, KeyFile: keyFile})
		require.NoError(t, err)
		assert.Equal(t, m.leaf.Certificate.Raw, srv.Certificate().Certificate[0])
		assert.Equal(t, uint16(DefaultMinVersion), srv.Config().MinVersion)
	})

	t.Run("KeyMismatch", func(t *testing.T) {
		_, err := LoadServer(ServerConfig{CertFile: certFile, KeyFile: otherKey})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTrustMaterial)
		assert.ErrorIs(t, err, cert.ErrKeyMismatch)

		var merr *MaterialError
		require.True(t, errors.As(err, &merr))
		assert.Equal(t, "trust_material", merr.Kind())
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadServer(ServerConfig{CertFile: filepath.Join(dir, "nope.crt"), KeyFile: keyFile})
		assert.ErrorIs(t, err, ErrTrustMaterial)
		assert.ErrorIs(t, err, cert.ErrReadFile)
	})

	t.Run("Unset", func(t *testing.T) {
		_, err := LoadServer(ServerConfig{})
		assert.ErrorIs(t, err, ErrTrustMaterial)
	})
}

func TestLoadClient(t *testing.T) {
	dir := t.TempDir()
	m := newMaterial(t, "localhost")

	caFile := filepath.Join(dir, "ca.crt")
	require.NoError(t, cert.WriteCertFile(caFile, m.ca.Certificate))

	cli, err := LoadClient(ClientConfig{CAFile: caFile})
	require.NoError(t, err)

	srv := NewServerContext(m.leaf.TLSCertificate(), 0, nil)
	_, client := handshake(t, srv, cli, "localhost")
	require.NoError(t, client.err)

	_, err = LoadClient(ClientConfig{CAFile: filepath.Join(dir, "missing.crt")})
	assert.ErrorIs(t, err, ErrTrustMaterial)

	garbage := filepath.Join(dir, "garbage.crt")
	require.NoError(t, os.WriteFile(garbage, []byte("not a certificate"), 0o644))
	_, err = LoadClient(ClientConfig{CAFile: garbage})
	assert.ErrorIs(t, err, ErrTrustMaterial)
	assert.ErrorIs(t, err, cert.ErrInvalidPEM)
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{"", DefaultMinVersion, false},
		{"1.2", tls.VersionTLS12, false},
		{"1.3", tls.VersionTLS13, false},
		{"TLS1.3", tls.VersionTLS13, false},
		{"tls 1.2", tls.VersionTLS12, false},
		{"13", tls.VersionTLS13, false},
		{"1.4", 0, true},
		{"ssl3", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCipherSuites(t *testing.T) {
	got, err := ParseCipherSuites(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultCipherSuites(), got)

	got, err = ParseCipherSuites([]string{"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256"})
	require.NoError(t, err)
	assert.Equal(t, []uint16{tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256}, got)

	_, err = ParseCipherSuites([]string{"TLS_RSA_WITH_RC4_128_SHA"})
	assert.Error(t, err)
}
