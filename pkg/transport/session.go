package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/mubashir1osmani/netlab/pkg/log"
)

// DefaultBufferSize is the per-read buffer of a session.
const DefaultBufferSize = 4096

// ErrSessionStarted is returned when Serve is called twice.
var ErrSessionStarted = errors.New("session already started")

// SessionState is the lifecycle state of a Session.
type SessionState int32

const (
	// StateActive means the session is reading and echoing.
	StateActive SessionState = iota

	// StateClosed is terminal.
	StateClosed
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// CloseReason says why a session ended.
type CloseReason string

const (
	ReasonNone    CloseReason = ""
	ReasonEOF     CloseReason = "eof"     // peer closed its write side
	ReasonReset   CloseReason = "reset"   // peer aborted
	ReasonClosed  CloseReason = "closed"  // closed locally, e.g. server stop
	ReasonTimeout CloseReason = "timeout" // idle read deadline expired
	ReasonError   CloseReason = "error"
)

// SessionOptions configures a Session.
type SessionOptions struct {
	// BufferSize is the maximum bytes per read. Zero uses DefaultBufferSize.
	BufferSize int

	// ReadTimeout closes the session after this long without data.
	// Zero disables the deadline.
	ReadTimeout time.Duration

	// Logger receives DATA, STATE and ERROR events.
	Logger log.Logger

	// Role is stamped on events.
	Role log.Role
}

// Session echoes everything read from its Conn back to the peer until the
// peer goes away. It owns the Conn and closes it exactly once.
type Session struct {
	conn   *Conn
	opts   SessionOptions
	logger log.Logger

	state    atomic.Int32
	started  atomic.Bool
	reason   atomic.Value // CloseReason
	received atomic.Int64
	echoed   atomic.Int64
}

// NewSession creates a session for conn.
func NewSession(conn *Conn, opts SessionOptions) *Session {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	s := &Session{
		conn:   conn,
		opts:   opts,
		logger: log.OrNoop(opts.Logger),
	}
	s.reason.Store(ReasonNone)
	return s
}

// Conn returns the session's connection.
func (s *Session) Conn() *Conn { return s.conn }

// State returns the current state.
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// CloseReason returns why the session ended, or ReasonNone while active.
func (s *Session) CloseReason() CloseReason { return s.reason.Load().(CloseReason) }

// BytesReceived returns the number of bytes read from the peer.
func (s *Session) BytesReceived() int64 { return s.received.Load() }

// BytesEchoed returns the number of bytes written back.
func (s *Session) BytesEchoed() int64 { return s.echoed.Load() }

// Serve runs the echo loop until the peer closes, the connection fails or
// ctx is cancelled. Orderly close, reset and local close all return nil;
// only unexpected errors are returned. The Conn is closed on every path.
func (s *Session) Serve(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrSessionStarted
	}
	defer s.conn.Close()

	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	buf := make([]byte, s.opts.BufferSize)
	for {
		if s.opts.ReadTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		}

		n, err := s.conn.Read(buf)
		if n > 0 && !isReset(err) {
			s.received.Add(int64(n))
			s.logData(log.DirectionIn, buf[:n])

			if werr := s.echo(buf[:n]); werr != nil {
				err = werr
			}
		}
		if err != nil {
			return s.finish(err)
		}
	}
}

func (s *Session) echo(p []byte) error {
	n, err := s.conn.Write(p)
	if n > 0 {
		s.echoed.Add(int64(n))
		s.logData(log.DirectionOut, p[:n])
	}
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	return err
}

// finish classifies the terminal error, records it and closes the Conn.
func (s *Session) finish(err error) error {
	reason, ret := s.classify(err)
	s.reason.Store(reason)
	s.state.Store(int32(StateClosed))
	s.conn.Close()

	if reason == ReasonReset || reason == ReasonError || reason == ReasonTimeout {
		logged := err
		if reason == ReasonReset {
			logged = fmt.Errorf("%w: %w", ErrConnectionReset, err)
		}
		s.logError(logged)
	}
	s.logState(reason)
	return ret
}

func (s *Session) classify(err error) (CloseReason, error) {
	switch {
	case errors.Is(err, io.EOF):
		return ReasonEOF, nil
	case isReset(err):
		return ReasonReset, nil
	case s.conn.Closed() || errors.Is(err, net.ErrClosed):
		return ReasonClosed, nil
	case isTimeout(err):
		return ReasonTimeout, nil
	default:
		return ReasonError, fmt.Errorf("session %s: %w", s.conn.ID(), err)
	}
}

func (s *Session) event(dir log.Direction, cat log.Category) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.conn.ID(),
		Direction:    dir,
		Layer:        log.LayerSession,
		Category:     cat,
		LocalRole:    s.opts.Role,
		RemoteAddr:   s.conn.RemoteAddr().String(),
		LocalAddr:    s.conn.LocalAddr().String(),
	}
}

func (s *Session) logData(dir log.Direction, p []byte) {
	ev := s.event(dir, log.CategoryData)
	ev.Data = log.NewDataEvent(p)
	s.logger.Log(ev)
}

func (s *Session) logState(reason CloseReason) {
	ev := s.event(log.DirectionIn, log.CategoryState)
	ev.StateChange = &log.StateChangeEvent{
		Entity:   log.StateEntitySession,
		OldState: StateActive.String(),
		NewState: StateClosed.String(),
		Reason:   string(reason),
	}
	s.logger.Log(ev)
}

func (s *Session) logError(err error) {
	ev := s.event(log.DirectionIn, log.CategoryError)
	ev.Error = &log.ErrorEventData{
		Layer:   log.LayerSession,
		Message: err.Error(),
		Kind:    Kind(err),
		Context: "echo",
	}
	s.logger.Log(ev)
}
