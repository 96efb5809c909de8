package transport

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mubashir1osmani/netlab/pkg/wiretap"
)

// Tuple is the 4-tuple that identifies a TCP connection.
type Tuple struct {
	Local  netip.AddrPort
	Remote netip.AddrPort
}

// String renders the tuple as (local ip, local port, remote ip, remote port).
func (t Tuple) String() string {
	return fmt.Sprintf("(%s, %d, %s, %d)",
		t.Local.Addr().Unmap(), t.Local.Port(), t.Remote.Addr().Unmap(), t.Remote.Port())
}

func addrPort(a net.Addr) netip.AddrPort {
	if tcp, ok := a.(*net.TCPAddr); ok {
		return tcp.AddrPort()
	}
	if a == nil {
		return netip.AddrPort{}
	}
	ap, _ := netip.ParseAddrPort(a.String())
	return ap
}

// Conn is an accepted or dialed connection. It may be upgraded to TLS once,
// before it is handed to a Session. Close runs the underlying close exactly
// once; later calls return nil.
type Conn struct {
	id     string
	raw    net.Conn
	conn   net.Conn
	tls    *tls.Conn
	tap    *wiretap.Tap
	local  net.Addr
	remote net.Addr

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewConn wraps c with a fresh connection ID.
func NewConn(c net.Conn) *Conn {
	return &Conn{
		id:     uuid.New().String(),
		raw:    c,
		conn:   c,
		local:  c.LocalAddr(),
		remote: c.RemoteAddr(),
	}
}

// ID returns the connection's UUID.
func (c *Conn) ID() string { return c.id }

// Tuple returns the connection 4-tuple.
func (c *Conn) Tuple() Tuple {
	return Tuple{Local: addrPort(c.local), Remote: addrPort(c.remote)}
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr { return c.local }

// RemoteAddr returns the peer network address.
func (c *Conn) RemoteAddr() net.Addr { return c.remote }

// Read reads from the connection, decrypting when secured.
func (c *Conn) Read(p []byte) (int, error) { return c.conn.Read(p) }

// Write writes to the connection, encrypting when secured.
func (c *Conn) Write(p []byte) (int, error) { return c.conn.Write(p) }

// SetDeadline sets the read and write deadlines.
func (c *Conn) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

// SetReadDeadline sets the read deadline.
func (c *Conn) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }

// SetWriteDeadline sets the write deadline.
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

// Close closes the connection. Only the first call reaches the socket;
// a socket that was already closed underneath is not an error.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.conn.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	})
	return err
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool { return c.closed.Load() }

// Raw returns the connection below any TLS layer. When a wiretap is
// attached this is the tap.
func (c *Conn) Raw() net.Conn { return c.raw }

// Tap returns the attached wiretap, if any.
func (c *Conn) Tap() *wiretap.Tap { return c.tap }

// IsTLS reports whether the connection has been secured.
func (c *Conn) IsTLS() bool { return c.tls != nil }

// TLSState returns the TLS connection state. ok is false for plain TCP.
func (c *Conn) TLSState() (state tls.ConnectionState, ok bool) {
	if c.tls == nil {
		return tls.ConnectionState{}, false
	}
	return c.tls.ConnectionState(), true
}

// attachTap interposes a wiretap below everything else. Must be called
// before secure.
func (c *Conn) attachTap(opts wiretap.Options) {
	opts.ConnectionID = c.id
	c.tap = wiretap.New(c.raw, opts)
	c.raw = c.tap
	c.conn = c.tap
}

// secure switches reads and writes to the TLS layer. Must be called before
// the Conn is shared.
func (c *Conn) secure(tc *tls.Conn) {
	c.tls = tc
	c.conn = tc
}

var _ net.Conn = (*Conn)(nil)
