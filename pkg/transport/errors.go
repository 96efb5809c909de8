package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

// Transport errors.
var (
	ErrAddressInUse      = errors.New("address already in use")
	ErrConnectionRefused = errors.New("connection refused")
	ErrConnectionReset   = errors.New("connection reset by peer")
	ErrServerRunning     = errors.New("server already running")
	ErrServerClosed      = errors.New("server closed")
)

// Error kind labels reported by Kind.
const (
	KindNone                = ""
	KindAddressInUse        = "address_in_use"
	KindConnectionRefused   = "connection_refused"
	KindConnectionReset     = "connection_reset"
	KindHandshakeFailure    = "handshake_failure"
	KindVerificationFailure = "verification_failure"
	KindTrustMaterial       = "trust_material"
	KindTimeout             = "timeout"
	KindClosed              = "closed"
	KindEOF                 = "eof"
	KindCanceled            = "canceled"
	KindOther               = "error"
)

// kinded is implemented by typed errors that know their own label, such as
// the trust package's handshake and verification errors.
type kinded interface {
	Kind() string
}

// Kind maps err to a short label suitable for logs and metrics.
func Kind(err error) string {
	if err == nil {
		return KindNone
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	switch {
	case isAddrInUse(err):
		return KindAddressInUse
	case isRefused(err):
		return KindConnectionRefused
	case isReset(err):
		return KindConnectionReset
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case isTimeout(err):
		return KindTimeout
	case errors.Is(err, net.ErrClosed):
		return KindClosed
	case errors.Is(err, io.EOF):
		return KindEOF
	default:
		return KindOther
	}
}

// IsReset reports whether err is an abrupt peer disconnect.
func IsReset(err error) bool {
	return isReset(err)
}

func isReset(err error) bool {
	return errors.Is(err, ErrConnectionReset) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE)
}

func isRefused(err error) bool {
	return errors.Is(err, ErrConnectionRefused) || errors.Is(err, syscall.ECONNREFUSED)
}

func isAddrInUse(err error) bool {
	return errors.Is(err, ErrAddressInUse) || errors.Is(err, syscall.EADDRINUSE)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
