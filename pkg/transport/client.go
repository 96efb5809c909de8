package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/avast/retry-go"

	"github.com/mubashir1osmani/netlab/pkg/connection"
	"github.com/mubashir1osmani/netlab/pkg/log"
	"github.com/mubashir1osmani/netlab/pkg/wiretap"
)

// DefaultConnectTimeout bounds a single TCP connect attempt.
const DefaultConnectTimeout = 10 * time.Second

// Dialer establishes client connections, optionally secured.
type Dialer struct {
	// ConnectTimeout bounds each TCP connect attempt (default: 10s).
	ConnectTimeout time.Duration

	// HandshakeTimeout bounds the TLS handshake (default: 10s).
	HandshakeTimeout time.Duration

	// Upgrader secures the connection. Nil dials plain TCP.
	Upgrader ClientUpgrader

	// ServerName is the hostname to verify. Empty uses the host part of
	// the dialled address.
	ServerName string

	// Attempts is the number of connects tried while the server refuses.
	// Values below 1 mean a single attempt.
	Attempts uint

	// Backoff spaces refused attempts. Nil uses connection.NewBackoff().
	Backoff *connection.Backoff

	// CaptureWire attaches a wiretap below TLS.
	CaptureWire bool

	// Logger receives client-role protocol events (optional).
	Logger log.Logger

	// Slog for operational logging (optional, defaults to slog.Default()).
	Slog *slog.Logger
}

// Dial connects to addr. A refused connect is retried up to Attempts times
// and then reported as ErrConnectionRefused. With an Upgrader the
// handshake and server verification complete before Dial returns; their
// errors are returned unchanged so callers can tell them apart.
func (d *Dialer) Dial(ctx context.Context, addr string) (*Conn, error) {
	sl := d.Slog
	if sl == nil {
		sl = slog.Default()
	}
	logger := log.OrNoop(d.Logger)

	raw, err := d.connect(ctx, addr, sl)
	if err != nil {
		return nil, err
	}

	conn := NewConn(raw)
	if d.CaptureWire {
		conn.attachTap(wiretap.Options{
			ParseRecords: d.Upgrader != nil,
			Logger:       logger,
			Role:         log.RoleClient,
		})
	}
	sl.Debug("connected", "conn_id", conn.ID(), "tuple", conn.Tuple().String())

	if d.Upgrader == nil {
		return conn, nil
	}
	if err := d.secure(ctx, conn, addr, logger, sl); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (d *Dialer) connect(ctx context.Context, addr string, sl *slog.Logger) (net.Conn, error) {
	timeout := d.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	attempts := d.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := d.Backoff
	if backoff == nil {
		backoff = connection.NewBackoff()
	}

	nd := &net.Dialer{Timeout: timeout}
	var raw net.Conn
	err := retry.Do(func() error {
		c, err := nd.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		raw = c
		return nil
	},
		retry.Attempts(attempts),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRefused),
		retry.DelayType(func(n uint, err error, cfg *retry.Config) time.Duration {
			return backoff.Next()
		}),
		retry.OnRetry(func(n uint, err error) {
			sl.Debug("connect refused, retrying", "addr", addr, "attempt", n+1, "err", err)
		}),
	)
	if err != nil {
		if isRefused(err) {
			return nil, fmt.Errorf("dial %s: %w: %w", addr, ErrConnectionRefused, err)
		}
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return raw, nil
}

func (d *Dialer) secure(ctx context.Context, conn *Conn, addr string, logger log.Logger, sl *slog.Logger) error {
	serverName := d.ServerName
	if serverName == "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("server name from %q: %w", addr, err)
		}
		serverName = host
	}

	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	tc, err := d.Upgrader.Secure(hctx, conn.Raw(), serverName)
	hs := &log.HandshakeEvent{Success: err == nil, ServerName: serverName, Duration: time.Since(start)}
	if err != nil {
		logHandshake(logger, conn, log.RoleClient, hs)
		logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: conn.ID(),
			Layer:        log.LayerTLS,
			Category:     log.CategoryError,
			LocalRole:    log.RoleClient,
			RemoteAddr:   conn.RemoteAddr().String(),
			Error: &log.ErrorEventData{
				Layer:   log.LayerTLS,
				Message: err.Error(),
				Kind:    Kind(err),
				Context: "handshake",
			},
		})
		return err
	}

	conn.secure(tc)
	state := tc.ConnectionState()
	hs.Version = state.Version
	hs.CipherSuite = state.CipherSuite
	if len(state.PeerCertificates) > 0 {
		hs.PeerSubject = state.PeerCertificates[0].Subject.String()
	}
	logHandshake(logger, conn, log.RoleClient, hs)
	sl.Debug("tls established",
		"conn_id", conn.ID(),
		"version", tls.VersionName(state.Version),
		"cipher", tls.CipherSuiteName(state.CipherSuite))
	return nil
}

func logHandshake(logger log.Logger, conn *Conn, role log.Role, hs *log.HandshakeEvent) {
	logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: conn.ID(),
		Layer:        log.LayerTLS,
		Category:     log.CategoryHandshake,
		LocalRole:    role,
		RemoteAddr:   conn.RemoteAddr().String(),
		LocalAddr:    conn.LocalAddr().String(),
		Handshake:    hs,
	})
}
