package cert

import (
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Verification errors.
var (
	ErrCertExpired      = errors.New("certificate has expired")
	ErrCertNotYetValid  = errors.New("certificate is not yet valid")
	ErrInvalidChain     = errors.New("invalid certificate chain")
	ErrHostnameMismatch = errors.New("hostname does not match certificate")
)

// VerifyChain checks that leaf chains to one of roots, optionally through
// intermediates, and is valid at now. A zero now means time.Now().
func VerifyChain(leaf *x509.Certificate, intermediates []*x509.Certificate, roots *x509.CertPool, now time.Time) error {
	if leaf == nil {
		return ErrInvalidCert
	}
	if roots == nil {
		return fmt.Errorf("%w: no trusted roots", ErrInvalidChain)
	}
	if now.IsZero() {
		now = time.Now()
	}

	if now.Before(leaf.NotBefore) {
		return ErrCertNotYetValid
	}
	if now.After(leaf.NotAfter) {
		return ErrCertExpired
	}

	opts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: x509.NewCertPool(),
		CurrentTime:   now,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, c := range intermediates {
		opts.Intermediates.AddCert(c)
	}

	if _, err := leaf.Verify(opts); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChain, err)
	}
	return nil
}

// VerifyHostname checks host against the certificate's DNS and IP SANs.
// The subject CommonName is not consulted.
func VerifyHostname(c *x509.Certificate, host string) error {
	if c == nil {
		return ErrInvalidCert
	}
	if host == "" {
		return fmt.Errorf("%w: empty hostname", ErrHostnameMismatch)
	}
	// Bracketed IPv6 literals come straight from host:port splitting.
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if err := c.VerifyHostname(host); err != nil {
		return fmt.Errorf("%w: %q not in %s", ErrHostnameMismatch, host, strings.Join(SANs(c), ", "))
	}
	return nil
}

// SANs lists the DNS and IP subject alternative names of c.
func SANs(c *x509.Certificate) []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.DNSNames)+len(c.IPAddresses))
	out = append(out, c.DNSNames...)
	for _, ip := range c.IPAddresses {
		out = append(out, ip.String())
	}
	return out
}

// CertificateInfo extracts human-readable information from a certificate.
type CertificateInfo struct {
	CommonName string
	Subject    string
	Issuer     string
	NotBefore  time.Time
	NotAfter   time.Time
	IsCA       bool
	DNSNames   []string
	IPs        []net.IP
	Serial     string
	SKI        []byte
	AKI        []byte
}

// GetCertificateInfo extracts information from a certificate.
func GetCertificateInfo(c *x509.Certificate) *CertificateInfo {
	if c == nil {
		return nil
	}

	info := &CertificateInfo{
		CommonName: c.Subject.CommonName,
		Subject:    c.Subject.String(),
		Issuer:     c.Issuer.String(),
		NotBefore:  c.NotBefore,
		NotAfter:   c.NotAfter,
		IsCA:       c.IsCA,
		DNSNames:   c.DNSNames,
		IPs:        c.IPAddresses,
		SKI:        c.SubjectKeyId,
		AKI:        c.AuthorityKeyId,
	}
	if c.SerialNumber != nil {
		info.Serial = c.SerialNumber.Text(16)
	}
	return info
}

// SANs returns the DNS and IP names as strings.
func (i *CertificateInfo) SANs() []string {
	out := make([]string, 0, len(i.DNSNames)+len(i.IPs))
	out = append(out, i.DNSNames...)
	for _, ip := range i.IPs {
		out = append(out, ip.String())
	}
	return out
}

// String renders the info as indented lines for console output.
func (i *CertificateInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "  Subject:  %s\n", i.Subject)
	fmt.Fprintf(&b, "  Issuer:   %s\n", i.Issuer)
	fmt.Fprintf(&b, "  Valid:    %s to %s\n", i.NotBefore.UTC().Format(time.RFC3339), i.NotAfter.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "  SANs:     %s\n", strings.Join(i.SANs(), ", "))
	if len(i.SKI) > 0 {
		fmt.Fprintf(&b, "  SKI:      %s\n", hex.EncodeToString(i.SKI))
	}
	return b.String()
}
