// Package wiretap observes the raw bytes of a connection below any TLS
// layer. It lets the echo tools show that what crosses the network is
// ciphertext, and it reports the TLS record headers it sees as protocol
// events.
package wiretap

import (
	"net"
	"sync"
	"time"

	"github.com/mubashir1osmani/netlab/pkg/log"
)

// DefaultLimit bounds the bytes kept per direction.
const DefaultLimit = 64 * 1024

// Options configures a Tap.
type Options struct {
	// Limit is the number of bytes retained per direction.
	// Zero uses DefaultLimit; negative disables retention.
	Limit int

	// ParseRecords enables TLS record header extraction.
	ParseRecords bool

	// Logger receives a WIRE/RECORD event per TLS record header.
	Logger log.Logger

	// ConnectionID and Role are stamped on emitted events.
	ConnectionID string
	Role         log.Role
}

type direction struct {
	buf     []byte
	total   int64
	scanner RecordScanner
	records []Record
}

// Tap is a net.Conn that records everything read from and written to the
// wrapped connection. Wrap the raw TCP conn and hand the Tap to tls.Server
// or tls.Client to observe ciphertext.
type Tap struct {
	net.Conn

	opts Options

	mu  sync.Mutex
	in  direction
	out direction
}

// New wraps c.
func New(c net.Conn, opts Options) *Tap {
	if opts.Limit == 0 {
		opts.Limit = DefaultLimit
	}
	opts.Logger = log.OrNoop(opts.Logger)
	return &Tap{Conn: c, opts: opts}
}

// Read reads from the wrapped conn and records the bytes.
func (t *Tap) Read(p []byte) (int, error) {
	n, err := t.Conn.Read(p)
	if n > 0 {
		t.observe(&t.in, log.DirectionIn, p[:n])
	}
	return n, err
}

// Write writes to the wrapped conn and records the bytes actually sent.
func (t *Tap) Write(p []byte) (int, error) {
	n, err := t.Conn.Write(p)
	if n > 0 {
		t.observe(&t.out, log.DirectionOut, p[:n])
	}
	return n, err
}

func (t *Tap) observe(d *direction, dir log.Direction, b []byte) {
	t.mu.Lock()
	d.total += int64(len(b))
	if room := t.opts.Limit - len(d.buf); room > 0 {
		d.buf = append(d.buf, b[:min(room, len(b))]...)
	}
	var recs []Record
	if t.opts.ParseRecords {
		recs = d.scanner.Feed(b)
		d.records = append(d.records, recs...)
	}
	t.mu.Unlock()

	for _, r := range recs {
		t.opts.Logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: t.opts.ConnectionID,
			Direction:    dir,
			Layer:        log.LayerWire,
			Category:     log.CategoryRecord,
			LocalRole:    t.opts.Role,
			RemoteAddr:   addrString(t.Conn.RemoteAddr()),
			Record:       &log.RecordEvent{ContentType: r.ContentType, Version: r.Version, Length: r.Length},
		})
	}
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

// Received returns a copy of the retained inbound bytes.
func (t *Tap) Received() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.in.buf...)
}

// Sent returns a copy of the retained outbound bytes.
func (t *Tap) Sent() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.out.buf...)
}

// Totals returns the byte counts in each direction, including bytes past
// the retention limit.
func (t *Tap) Totals() (in, out int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.in.total, t.out.total
}

// Records returns the TLS record headers seen so far in each direction.
func (t *Tap) Records() (in, out []Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Record(nil), t.in.records...), append([]Record(nil), t.out.records...)
}
