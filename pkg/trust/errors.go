package trust

import (
	"errors"
	"fmt"
)

// Trust errors.
var (
	ErrHandshakeFailure    = errors.New("tls handshake failed")
	ErrVerificationFailure = errors.New("server verification failed")
	ErrTrustMaterial       = errors.New("invalid trust material")
)

// Reason says which verification step rejected the server.
type Reason int

const (
	// ReasonUntrustedChain means the leaf does not chain to the trusted
	// root, or is outside its validity window.
	ReasonUntrustedChain Reason = iota + 1

	// ReasonHostnameMismatch means the requested host is not among the
	// certificate's DNS or IP SANs.
	ReasonHostnameMismatch

	// ReasonNoCertificate means the server presented nothing.
	ReasonNoCertificate
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonUntrustedChain:
		return "untrusted_chain"
	case ReasonHostnameMismatch:
		return "hostname_mismatch"
	case ReasonNoCertificate:
		return "no_certificate"
	default:
		return "unknown"
	}
}

// VerificationError is returned by the client role when the server's
// certificate is rejected. It matches ErrVerificationFailure.
type VerificationError struct {
	Reason  Reason
	Host    string
	Subject string
	Err     error
}

func (e *VerificationError) Error() string {
	msg := fmt.Sprintf("%v: %s for %q", ErrVerificationFailure, e.Reason, e.Host)
	if e.Subject != "" {
		msg += fmt.Sprintf(" (certificate %s)", e.Subject)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *VerificationError) Unwrap() error { return e.Err }

// Is matches ErrVerificationFailure.
func (e *VerificationError) Is(target error) bool { return target == ErrVerificationFailure }

// Kind labels the error for logs.
func (e *VerificationError) Kind() string { return "verification_failure" }

// HandshakeError is returned when the TLS handshake itself fails, in either
// role. It matches ErrHandshakeFailure.
type HandshakeError struct {
	// Role is "server" or "client".
	Role   string
	Remote string
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("%s %v with %s: %v", e.Role, ErrHandshakeFailure, e.Remote, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// Is matches ErrHandshakeFailure.
func (e *HandshakeError) Is(target error) bool { return target == ErrHandshakeFailure }

// Kind labels the error for logs.
func (e *HandshakeError) Kind() string { return "handshake_failure" }

// MaterialError reports unusable certificates or keys. It matches
// ErrTrustMaterial.
type MaterialError struct {
	What string
	Err  error
}

func (e *MaterialError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrTrustMaterial, e.What, e.Err)
}

func (e *MaterialError) Unwrap() error { return e.Err }

// Is matches ErrTrustMaterial.
func (e *MaterialError) Is(target error) bool { return target == ErrTrustMaterial }

// Kind labels the error for logs.
func (e *MaterialError) Kind() string { return "trust_material" }
