package cert

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// ErrKeyMismatch is returned when a private key does not belong to the
// certificate it is paired with.
var ErrKeyMismatch = errors.New("private key does not match certificate")

// LoadKeyPair reads a PEM certificate chain and private key and checks that
// the key matches the leaf's public key.
func LoadKeyPair(certFile, keyFile string) (tls.Certificate, error) {
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %s: %v", ErrReadFile, certFile, err)
	}
	chain, err := DecodeCertsPEM(certPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%s: %w", certFile, err)
	}
	key, err := ReadKeyFile(keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%s: %w", keyFile, err)
	}
	if err := MatchKey(chain[0], key); err != nil {
		return tls.Certificate{}, err
	}

	out := tls.Certificate{PrivateKey: key, Leaf: chain[0]}
	for _, c := range chain {
		out.Certificate = append(out.Certificate, c.Raw)
	}
	return out, nil
}

// MatchKey reports ErrKeyMismatch unless key is the private half of the
// certificate's public key.
func MatchKey(c *x509.Certificate, key crypto.Signer) error {
	if c == nil || key == nil {
		return ErrInvalidCert
	}
	pub, ok := c.PublicKey.(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(key.Public()) {
		return ErrKeyMismatch
	}
	return nil
}

// LoadCAPool reads every certificate in a PEM file into a new pool.
func LoadCAPool(caFile string) (*x509.CertPool, error) {
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReadFile, caFile, err)
	}
	certs, err := DecodeCertsPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", caFile, err)
	}
	pool := x509.NewCertPool()
	for _, c := range certs {
		pool.AddCert(c)
	}
	return pool, nil
}
