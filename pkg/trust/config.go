package trust

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"strings"
)

// DefaultMinVersion is the lowest protocol version either role accepts.
const DefaultMinVersion = tls.VersionTLS12

// DefaultCipherSuites returns the TLS 1.2 suites offered and accepted:
// ECDHE key exchange with AEAD ciphers only. TLS 1.3 suites are fixed by
// crypto/tls.
func DefaultCipherSuites() []uint16 {
	return []uint16{
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
	}
}

// DefaultCurves returns the key exchange preference order.
func DefaultCurves() []tls.CurveID {
	return []tls.CurveID{
		tls.X25519,    // Recommended
		tls.CurveP256, // Mandatory
	}
}

// ParseVersion maps "1.0", "1.1", "1.2" or "1.3" (optionally prefixed with
// "TLS") to a crypto/tls version constant. Empty means DefaultMinVersion.
func ParseVersion(s string) (uint16, error) {
	v := strings.TrimSpace(strings.ToUpper(s))
	v = strings.TrimPrefix(strings.TrimPrefix(v, "TLS"), " ")
	switch v {
	case "":
		return DefaultMinVersion, nil
	case "1.0", "10":
		return tls.VersionTLS10, nil
	case "1.1", "11":
		return tls.VersionTLS11, nil
	case "1.2", "12":
		return tls.VersionTLS12, nil
	case "1.3", "13":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unknown TLS version %q", s)
	}
}

// ParseCipherSuites maps IANA suite names to IDs. Insecure suites are
// rejected. An empty list means DefaultCipherSuites.
func ParseCipherSuites(names []string) ([]uint16, error) {
	if len(names) == 0 {
		return DefaultCipherSuites(), nil
	}
	known := make(map[string]uint16)
	for _, cs := range tls.CipherSuites() {
		known[cs.Name] = cs.ID
	}
	out := make([]uint16, 0, len(names))
	for _, n := range names {
		id, ok := known[strings.TrimSpace(n)]
		if !ok {
			return nil, fmt.Errorf("unknown or insecure cipher suite %q", n)
		}
		out = append(out, id)
	}
	return out, nil
}

// NewServerTLSConfig builds the server-role tls.Config. Client certificates
// are not requested.
func NewServerTLSConfig(cert tls.Certificate, minVersion uint16, suites []uint16) *tls.Config {
	if minVersion == 0 {
		minVersion = DefaultMinVersion
	}
	if len(suites) == 0 {
		suites = DefaultCipherSuites()
	}
	return &tls.Config{
		Certificates:     []tls.Certificate{cert},
		MinVersion:       minVersion,
		CipherSuites:     suites,
		CurvePreferences: DefaultCurves(),
		ClientAuth:       tls.NoClientCert,
	}
}

// NewClientTLSConfig builds the client-role tls.Config. Go's built-in
// verification is switched off and verify runs instead from
// VerifyConnection, so chain and hostname failures come back as typed
// errors.
func NewClientTLSConfig(roots *x509.CertPool, serverName string, minVersion uint16,
	verify func(tls.ConnectionState) error) *tls.Config {
	if minVersion == 0 {
		minVersion = DefaultMinVersion
	}
	return &tls.Config{
		RootCAs:            roots,
		ServerName:         serverName,
		MinVersion:         minVersion,
		CipherSuites:       DefaultCipherSuites(),
		CurvePreferences:   DefaultCurves(),
		InsecureSkipVerify: true, // verify handles chain and hostname
		VerifyConnection:   verify,
	}
}
