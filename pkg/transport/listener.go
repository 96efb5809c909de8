package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"syscall"
)

// Listener defaults.
const (
	// DefaultBacklog is the accept queue length.
	DefaultBacklog = 5

	// DefaultTCPPort is the plain echo port.
	DefaultTCPPort = 9000

	// DefaultTLSPort is the TLS echo port.
	DefaultTLSPort = 9443
)

// ListenConfig configures a Listener.
type ListenConfig struct {
	// Address is host:port. An empty host binds all interfaces.
	Address string

	// Backlog is the number of fully established connections the kernel
	// queues before Accept. Zero uses DefaultBacklog.
	Backlog int

	// ReuseAddr sets SO_REUSEADDR so a restarted server can rebind while
	// old connections sit in TIME_WAIT.
	ReuseAddr bool
}

// Listener is a bound, passive TCP endpoint.
type Listener struct {
	ln      net.Listener
	cfg     ListenConfig
	once    sync.Once
	closeEr error
}

// Listen binds and listens according to cfg. An occupied address fails
// with an error matching ErrAddressInUse.
func Listen(ctx context.Context, cfg ListenConfig) (*Listener, error) {
	if cfg.Backlog <= 0 {
		cfg.Backlog = DefaultBacklog
	}
	ln, err := listen(ctx, cfg)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen %s: %w: %w", cfg.Address, ErrAddressInUse, err)
		}
		return nil, fmt.Errorf("listen %s: %w", cfg.Address, err)
	}
	return &Listener{ln: ln, cfg: cfg}, nil
}

// Accept blocks until a connection has completed the TCP handshake.
func (l *Listener) Accept() (*Conn, error) {
	c, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return NewConn(c), nil
}

// Addr returns the bound address, with the real port when ":0" was used.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Port returns the bound TCP port.
func (l *Listener) Port() int {
	if tcp, ok := l.ln.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	_, p, _ := net.SplitHostPort(l.ln.Addr().String())
	n, _ := strconv.Atoi(p)
	return n
}

// Config returns the effective configuration.
func (l *Listener) Config() ListenConfig {
	return l.cfg
}

// Close stops listening. It is idempotent.
func (l *Listener) Close() error {
	l.once.Do(func() {
		l.closeEr = l.ln.Close()
	})
	return l.closeEr
}

// splitListenAddr resolves an address for manual socket setup.
func splitListenAddr(address string) (*net.TCPAddr, error) {
	if address == "" {
		address = ":0"
	}
	return net.ResolveTCPAddr("tcp", address)
}
