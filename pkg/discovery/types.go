package discovery

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"
)

// Service types.
const (
	ServiceTypeEcho    = "_netlab-echo._tcp"
	ServiceTypeEchoTLS = "_netlab-echos._tcp"

	// Domain is the mDNS domain.
	Domain = "local"
)

// Limits and defaults.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// BrowseTimeout bounds FindFirst when the caller sets no deadline.
	BrowseTimeout = 3 * time.Second

	// TXTVersion is the record format written by this package.
	TXTVersion = 1
)

// TXT record keys.
const (
	TXTKeyVersion     = "txtvers"
	TXTKeyTLS         = "tls"
	TXTKeyServerName  = "sni"
	TXTKeyFingerprint = "fp"
)

// Errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotFound            = errors.New("service not found")
)

// EchoInfo describes an advertised echo server.
type EchoInfo struct {
	// Instance is the DNS-SD instance name.
	Instance string

	Port uint16
	TLS  bool

	// ServerName is the hostname clients should verify (TLS only).
	ServerName string

	// Fingerprint identifies the served certificate (TLS only).
	Fingerprint string
}

// ServiceType returns the DNS-SD type for the layer.
func (i *EchoInfo) ServiceType() string {
	return serviceType(i.TLS)
}

func serviceType(tls bool) string {
	if tls {
		return ServiceTypeEchoTLS
	}
	return ServiceTypeEcho
}

// Service is a discovered echo server.
type Service struct {
	EchoInfo

	// Host is the advertised target host name.
	Host string

	// Addresses holds every IP seen for the instance, IPv4 first.
	Addresses []string
}

// Address returns host:port for the first known IP, or for Host when no
// address record was seen.
func (s *Service) Address() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	return net.JoinHostPort(host, strconv.Itoa(int(s.Port)))
}

// Advertiser publishes an echo server.
type Advertiser interface {
	Advertise(ctx context.Context, info *EchoInfo) error
	Stop()
}

// Browser finds echo servers.
type Browser interface {
	Browse(ctx context.Context, tls bool) (<-chan *Service, error)
	FindFirst(ctx context.Context, tls bool) (*Service, error)
}
