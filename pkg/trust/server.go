package trust

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/mubashir1osmani/netlab/pkg/cert"
)

// ServerConfig names the server's trust material.
type ServerConfig struct {
	CertFile string
	KeyFile  string

	// MinVersion defaults to TLS 1.2.
	MinVersion uint16

	// CipherSuites are the TLS 1.2 suites. Empty uses DefaultCipherSuites.
	CipherSuites []uint16
}

// ServerContext secures accepted connections in the responding role.
// It is immutable after construction and shared by all sessions.
type ServerContext struct {
	config *tls.Config
	leaf   tls.Certificate
}

// LoadServer reads the certificate and key, checks that they match and
// builds a ServerContext. Any problem is a *MaterialError.
func LoadServer(cfg ServerConfig) (*ServerContext, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, &MaterialError{What: "server", Err: fmt.Errorf("certificate and key files are required")}
	}
	pair, err := cert.LoadKeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, &MaterialError{What: cfg.CertFile, Err: err}
	}
	return NewServerContext(pair, cfg.MinVersion, cfg.CipherSuites), nil
}

// NewServerContext builds a ServerContext from an in-memory certificate.
func NewServerContext(pair tls.Certificate, minVersion uint16, suites []uint16) *ServerContext {
	return &ServerContext{
		config: NewServerTLSConfig(pair, minVersion, suites),
		leaf:   pair,
	}
}

// Certificate returns the served certificate.
func (s *ServerContext) Certificate() tls.Certificate {
	return s.leaf
}

// Config returns a copy of the tls.Config.
func (s *ServerContext) Config() *tls.Config {
	return s.config.Clone()
}

// Secure runs the server handshake on raw. On failure raw is closed and a
// *HandshakeError is returned.
func (s *ServerContext) Secure(ctx context.Context, raw net.Conn) (*tls.Conn, error) {
	tc := tls.Server(raw, s.config)
	if err := tc.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, &HandshakeError{Role: "server", Remote: remoteString(raw), Err: err}
	}
	return tc, nil
}

func remoteString(c net.Conn) string {
	if a := c.RemoteAddr(); a != nil {
		return a.String()
	}
	return "unknown"
}
