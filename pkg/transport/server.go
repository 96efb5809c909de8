package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/mubashir1osmani/netlab/pkg/connection"
	"github.com/mubashir1osmani/netlab/pkg/log"
	"github.com/mubashir1osmani/netlab/pkg/wiretap"
)

// DefaultHandshakeTimeout bounds a TLS handshake.
const DefaultHandshakeTimeout = 10 * time.Second

// ServerConfig configures an echo server.
type ServerConfig struct {
	// Listen is the bind configuration.
	Listen ListenConfig

	// Upgrader secures each accepted connection. Nil serves plain TCP.
	Upgrader Upgrader

	// HandshakeTimeout bounds Upgrader.Secure (default: 10s).
	HandshakeTimeout time.Duration

	// ReadTimeout is the per-read idle deadline (0 = none).
	ReadTimeout time.Duration

	// BufferSize is the session read size (default: 4096).
	BufferSize int

	// CaptureWire attaches a wiretap to each connection and logs TLS
	// record headers as WIRE events.
	CaptureWire bool

	// Logger for protocol logging (optional).
	Logger log.Logger

	// Slog for operational logging (optional, defaults to slog.Default()).
	Slog *slog.Logger

	// OnConnect is called once a connection is accepted and secured.
	OnConnect func(conn *Conn)

	// OnDisconnect is called exactly once per connected Conn.
	OnDisconnect func(conn *Conn, reason CloseReason)

	// OnError is called for accept errors (conn is nil), handshake
	// failures and unexpected session errors.
	OnError func(conn *Conn, err error)
}

// Server accepts connections and runs one echo Session per connection.
type Server struct {
	config   ServerConfig
	logger   log.Logger
	slog     *slog.Logger
	listener *Listener

	// Live connections, kept only so Stop can close them.
	conns   map[*Conn]struct{}
	connsMu sync.Mutex

	active atomic.Int64
	total  atomic.Int64

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      conc.WaitGroup

	// lifecycleMu serialises Start and Stop.
	lifecycleMu sync.Mutex
}

// NewServer creates a server. Call Start to bind.
func NewServer(config ServerConfig) *Server {
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBufferSize
	}
	if config.Listen.Address == "" {
		port := DefaultTCPPort
		if config.Upgrader != nil {
			port = DefaultTLSPort
		}
		config.Listen.Address = fmt.Sprintf("0.0.0.0:%d", port)
	}
	sl := config.Slog
	if sl == nil {
		sl = slog.Default()
	}
	return &Server{
		config: config,
		logger: log.OrNoop(config.Logger),
		slog:   sl,
		conns:  make(map[*Conn]struct{}),
	}
}

// Start binds the listener and begins accepting in the background.
func (s *Server) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.running.CompareAndSwap(false, true) {
		return ErrServerRunning
	}

	listener, err := Listen(ctx, s.config.Listen)
	if err != nil {
		s.running.Store(false)
		return err
	}
	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(ctx)
	// A cancelled parent stops accepting; Stop still does the drain.
	context.AfterFunc(s.ctx, func() { listener.Close() })

	s.slog.Info("listening",
		"addr", listener.Addr().String(),
		"tls", s.config.Upgrader != nil,
		"backlog", listener.Config().Backlog,
		"reuse_addr", listener.Config().ReuseAddr)

	s.wg.Go(s.acceptLoop)
	return nil
}

// Stop closes the listener, closes every live connection and waits for all
// session goroutines. A recovered session panic is returned as an error.
func (s *Server) Stop() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()
	s.listener.Close()

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	if r := s.wg.WaitAndRecover(); r != nil {
		s.slog.Error("session panicked", "panic", r.String())
		return fmt.Errorf("server stop: %w", r.AsError())
	}
	s.slog.Info("stopped", "served", s.total.Load())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of live sessions.
func (s *Server) ConnectionCount() int {
	return int(s.active.Load())
}

// TotalConnections returns the number of connections that reached a session.
func (s *Server) TotalConnections() int64 {
	return s.total.Load()
}

// IsRunning reports whether the server is accepting.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

func (s *Server) acceptLoop() {
	backoff := connection.NewAcceptBackoff()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.reportError(nil, fmt.Errorf("accept: %w", err))
			if !backoff.Wait(s.ctx.Done()) {
				return
			}
			continue
		}
		backoff.Reset()

		s.wg.Go(func() { s.handleConnection(conn) })
	}
}

func (s *Server) handleConnection(conn *Conn) {
	remote := conn.RemoteAddr().String()
	s.slog.Debug("accepted", "conn_id", conn.ID(), "remote", remote)

	if s.config.CaptureWire {
		conn.attachTap(wiretap.Options{
			ParseRecords: s.config.Upgrader != nil,
			Logger:       s.logger,
			Role:         log.RoleServer,
		})
	}

	if s.config.Upgrader != nil {
		if err := s.secure(conn); err != nil {
			conn.Close()
			s.reportError(conn, err)
			return
		}
	}

	if !s.register(conn) {
		conn.Close()
		return
	}
	defer s.unregister(conn)

	s.logState(conn, "", "CONNECTED", "")
	s.slog.Debug("connection", "conn_id", conn.ID(), "remote", remote)
	if s.config.OnConnect != nil {
		s.config.OnConnect(conn)
	}

	session := NewSession(conn, SessionOptions{
		BufferSize:  s.config.BufferSize,
		ReadTimeout: s.config.ReadTimeout,
		Logger:      s.logger,
		Role:        log.RoleServer,
	})
	err := session.Serve(s.ctx)
	reason := session.CloseReason()

	if err != nil {
		s.reportError(conn, err)
	}
	s.slog.Debug("disconnected", "conn_id", conn.ID(), "remote", remote, "reason", string(reason),
		"rx", session.BytesReceived(), "tx", session.BytesEchoed())

	s.logState(conn, "CONNECTED", "DISCONNECTED", string(reason))
	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(conn, reason)
	}
}

// secure runs the server-role handshake on conn and logs its outcome.
func (s *Server) secure(conn *Conn) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.HandshakeTimeout)
	defer cancel()

	start := time.Now()
	tc, err := s.config.Upgrader.Secure(ctx, conn.Raw())
	hs := &log.HandshakeEvent{Success: err == nil, Duration: time.Since(start)}
	if err != nil {
		logHandshake(s.logger, conn, log.RoleServer, hs)
		return err
	}

	conn.secure(tc)
	state := tc.ConnectionState()
	hs.Version = state.Version
	hs.CipherSuite = state.CipherSuite
	hs.ServerName = state.ServerName
	logHandshake(s.logger, conn, log.RoleServer, hs)

	s.slog.Debug("tls established",
		"conn_id", conn.ID(),
		"remote", conn.RemoteAddr().String(),
		"version", tls.VersionName(state.Version),
		"cipher", tls.CipherSuiteName(state.CipherSuite),
		"sni", state.ServerName)
	return nil
}

func (s *Server) register(conn *Conn) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if !s.running.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	s.active.Add(1)
	s.total.Add(1)
	return true
}

func (s *Server) unregister(conn *Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
	s.active.Add(-1)
}

func (s *Server) reportError(conn *Conn, err error) {
	kind := Kind(err)
	attrs := []any{"kind", kind, "err", err}
	ev := log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerTransport,
		Category:  log.CategoryError,
		LocalRole: log.RoleServer,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: err.Error(),
			Kind:    kind,
		},
	}
	if conn != nil {
		attrs = append(attrs, "conn_id", conn.ID(), "remote", conn.RemoteAddr().String())
		ev.ConnectionID = conn.ID()
		ev.RemoteAddr = conn.RemoteAddr().String()
		if kind == KindHandshakeFailure || kind == KindVerificationFailure {
			ev.Layer = log.LayerTLS
			ev.Error.Layer = log.LayerTLS
			ev.Error.Context = "handshake"
		}
	} else {
		ev.Error.Context = "accept"
	}
	s.slog.Warn("error", attrs...)
	s.logger.Log(ev)

	if s.config.OnError != nil {
		s.config.OnError(conn, err)
	}
}

func (s *Server) logState(conn *Conn, oldState, newState, reason string) {
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: conn.ID(),
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		LocalRole:    log.RoleServer,
		RemoteAddr:   conn.RemoteAddr().String(),
		LocalAddr:    conn.LocalAddr().String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
