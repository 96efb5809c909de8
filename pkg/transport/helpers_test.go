package transport

import (
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mubashir1osmani/netlab/pkg/log"
)

// recorder collects protocol events.
type recorder struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recorder) Log(e log.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) filter(cat log.Category) []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []log.Event
	for _, e := range r.events {
		if e.Category == cat {
			out = append(out, e)
		}
	}
	return out
}

// tcpPair returns a dialled client and the accepted server side of a
// loopback TCP connection.
func tcpPair(t *testing.T) (client net.Conn, server *Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	raw := <-accepted
	require.NotNil(t, raw)

	server = NewConn(raw)
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}
