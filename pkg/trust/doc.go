// Package trust upgrades raw connections to TLS.
//
// A ServerContext holds the server's leaf certificate and private key and
// runs the responding side of the handshake. A ClientContext holds a private
// CA root and runs the initiating side; after the handshake it checks that
// the presented leaf chains to that root and that the expected hostname is
// one of its subject alternative names.
//
// Failures come back as typed errors so callers can tell them apart:
//
//	*MaterialError      certificate or key files unusable (ErrTrustMaterial)
//	*HandshakeError     protocol or cipher negotiation failed (ErrHandshakeFailure)
//	*VerificationError  server certificate rejected (ErrVerificationFailure)
//
// On any handshake failure the raw connection is closed before Secure
// returns.
package trust
