package trust

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/mubashir1osmani/netlab/pkg/cert"
)

// ClientConfig names the client's trust anchors.
type ClientConfig struct {
	CAFile string

	// MinVersion defaults to TLS 1.2.
	MinVersion uint16

	// MaxVersion caps the offered version. Zero leaves it to crypto/tls.
	MaxVersion uint16
}

// ClientContext secures outgoing connections in the initiating role and
// verifies the server against a private root.
type ClientContext struct {
	roots      *x509.CertPool
	minVersion uint16
	maxVersion uint16

	// now is replaced in tests.
	now func() time.Time
}

// LoadClient reads the CA file into a verification pool. Any problem is a
// *MaterialError.
func LoadClient(cfg ClientConfig) (*ClientContext, error) {
	if cfg.CAFile == "" {
		return nil, &MaterialError{What: "client", Err: fmt.Errorf("CA file is required")}
	}
	pool, err := cert.LoadCAPool(cfg.CAFile)
	if err != nil {
		return nil, &MaterialError{What: cfg.CAFile, Err: err}
	}
	c := NewClientContext(pool, cfg.MinVersion)
	c.maxVersion = cfg.MaxVersion
	return c, nil
}

// NewClientContext builds a ClientContext that trusts roots.
func NewClientContext(roots *x509.CertPool, minVersion uint16) *ClientContext {
	return &ClientContext{roots: roots, minVersion: minVersion, now: time.Now}
}

// WithMaxVersion caps the offered protocol version.
func (c *ClientContext) WithMaxVersion(v uint16) *ClientContext {
	c.maxVersion = v
	return c
}

// Secure runs the client handshake on raw, sending serverName as SNI, and
// verifies that the server certificate chains to the trusted root and lists
// serverName among its SANs.
//
// A rejected certificate returns a *VerificationError; any other handshake
// problem returns a *HandshakeError. In both cases raw is closed.
func (c *ClientContext) Secure(ctx context.Context, raw net.Conn, serverName string) (*tls.Conn, error) {
	cfg := NewClientTLSConfig(c.roots, serverName, c.minVersion, c.verifier(serverName))
	if c.maxVersion != 0 {
		cfg.MaxVersion = c.maxVersion
	}

	tc := tls.Client(raw, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		raw.Close()
		var verr *VerificationError
		if errors.As(err, &verr) {
			return nil, verr
		}
		return nil, &HandshakeError{Role: "client", Remote: remoteString(raw), Err: err}
	}
	return tc, nil
}

func (c *ClientContext) verifier(host string) func(tls.ConnectionState) error {
	return func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return &VerificationError{Reason: ReasonNoCertificate, Host: host}
		}
		leaf := cs.PeerCertificates[0]
		subject := leaf.Subject.String()

		if err := cert.VerifyChain(leaf, cs.PeerCertificates[1:], c.roots, c.now()); err != nil {
			return &VerificationError{Reason: ReasonUntrustedChain, Host: host, Subject: subject, Err: err}
		}
		if err := cert.VerifyHostname(leaf, host); err != nil {
			return &VerificationError{Reason: ReasonHostnameMismatch, Host: host, Subject: subject, Err: err}
		}
		return nil
	}
}
