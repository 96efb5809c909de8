package cert

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/tls"
	"crypto/x509"
	"time"
)

// Certificate validity periods for the lab PKI.
const (
	// CAValidity is the validity period for generated CA certificates.
	CAValidity = 10 * 365 * 24 * time.Hour // 10 years

	// LeafValidity is the default validity period for server certificates.
	LeafValidity = 365 * 24 * time.Hour // 1 year

	// clockSkew backdates NotBefore so freshly issued certificates are valid
	// on peers whose clocks run slightly behind.
	clockSkew = 5 * time.Minute
)

// DefaultHosts are the SANs a server certificate carries when no hosts are given.
var DefaultHosts = []string{"localhost", "127.0.0.1", "::1"}

// KeyPair holds an ECDSA P-256 key pair.
type KeyPair struct {
	PrivateKey *ecdsa.PrivateKey
	PublicKey  *ecdsa.PublicKey
}

// Authority is a certificate authority able to issue leaf certificates.
type Authority struct {
	// Certificate is the self-signed CA certificate.
	Certificate *x509.Certificate

	// PrivateKey signs issued certificates.
	PrivateKey *ecdsa.PrivateKey
}

// Pool returns an x509.CertPool holding only the CA certificate, suitable
// for use as tls.Config.RootCAs.
func (a *Authority) Pool() *x509.CertPool {
	if a == nil || a.Certificate == nil {
		return nil
	}
	pool := x509.NewCertPool()
	pool.AddCert(a.Certificate)
	return pool
}

// LeafOptions controls IssueLeaf.
type LeafOptions struct {
	// CommonName is the subject CN. Defaults to the first host.
	CommonName string

	// Hosts become DNS or IP SANs depending on whether they parse as an IP.
	Hosts []string

	// Validity defaults to LeafValidity.
	Validity time.Duration

	// NotBefore overrides the start of the validity window. Zero means now.
	NotBefore time.Time
}

// Leaf is an issued end-entity certificate with its key.
type Leaf struct {
	Certificate *x509.Certificate
	PrivateKey  crypto.Signer

	// CACert is the issuing CA, kept for chain building.
	CACert *x509.Certificate
}

// TLSCertificate converts the leaf to a tls.Certificate for use in
// tls.Config.Certificates.
func (l *Leaf) TLSCertificate() tls.Certificate {
	if l == nil || l.Certificate == nil || l.PrivateKey == nil {
		return tls.Certificate{}
	}
	return tls.Certificate{
		Certificate: [][]byte{l.Certificate.Raw},
		PrivateKey:  l.PrivateKey,
		Leaf:        l.Certificate,
	}
}

// ExpiresAt returns when the leaf expires.
func (l *Leaf) ExpiresAt() time.Time {
	if l == nil || l.Certificate == nil {
		return time.Time{}
	}
	return l.Certificate.NotAfter
}
