package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// DefaultBufferSize is the largest response read per message.
const DefaultBufferSize = 4096

// Driver runs the send/receive loop over one connection.
type Driver struct {
	// Conn is the established connection. Run closes it.
	Conn io.ReadWriteCloser

	// Input supplies the messages. Run closes it.
	Input LineReader

	// Output receives the transcript.
	Output io.Writer

	// BufferSize bounds a single response read (default: 4096).
	BufferSize int

	// Secure only changes the wording of the transcript.
	Secure bool

	sent     int64
	received int64
}

// Run loops until input ends, the user interrupts, the server closes or
// ctx is cancelled; all of these return nil. Send and receive failures
// are returned. The connection is closed before Run returns.
func (d *Driver) Run(ctx context.Context) error {
	size := d.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	out := d.Output
	if out == nil {
		out = io.Discard
	}

	var closeOnce sync.Once
	closeAll := func() {
		closeOnce.Do(func() {
			d.Conn.Close()
			d.Input.Close()
		})
	}
	defer closeAll()
	stop := context.AfterFunc(ctx, closeAll)
	defer stop()

	buf := make([]byte, size)
	for {
		line, err := d.readLine(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil, errors.Is(err, io.EOF):
				return nil
			case errors.Is(err, ErrInterrupt):
				fmt.Fprintln(out, "\n[*] Closing connection")
				return nil
			default:
				return fmt.Errorf("read input: %w", err)
			}
		}
		if line == "" {
			continue
		}

		msg := []byte(line)
		if err := writeAll(d.Conn, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("send: %w", err)
		}
		d.sent += int64(len(msg))
		if d.Secure {
			fmt.Fprintf(out, "[>] Sent %d bytes (encrypted on the wire)\n", len(msg))
		} else {
			fmt.Fprintf(out, "[>] Sent %d bytes\n", len(msg))
		}

		n, err := d.Conn.Read(buf)
		if n > 0 {
			d.received += int64(n)
			if d.Secure {
				fmt.Fprintf(out, "[<] Received (decrypted): %s\n", buf[:n])
			} else {
				fmt.Fprintf(out, "[<] Received: %s\n", buf[:n])
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				fmt.Fprintln(out, "[!] Server closed the connection")
				return nil
			case ctx.Err() != nil || errors.Is(err, net.ErrClosed):
				return nil
			default:
				return fmt.Errorf("receive: %w", err)
			}
		}
		if n == 0 {
			fmt.Fprintln(out, "[!] Server closed the connection")
			return nil
		}
	}
}

type lineResult struct {
	line string
	err  error
}

// readLine waits for the next line or for ctx. Closing a blocking fd such
// as a pipe does not wake a pending read, so the read runs in its own
// goroutine and is abandoned on cancellation.
func (d *Driver) readLine(ctx context.Context) (string, error) {
	ch := make(chan lineResult, 1)
	go func() {
		line, err := d.Input.ReadLine()
		ch <- lineResult{line, err}
	}()
	select {
	case r := <-ch:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Totals returns the bytes sent and received so far.
func (d *Driver) Totals() (sent, received int64) {
	return d.sent, d.received
}

// writeAll writes p in full, continuing after short writes.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}
