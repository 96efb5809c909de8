package transport

import (
	"context"
	"crypto/tls"
	"net"
)

// Upgrader secures an accepted connection in the server role. On failure
// it must close raw and return an error; no session starts.
// Implemented by trust.ServerContext.
type Upgrader interface {
	Secure(ctx context.Context, raw net.Conn) (*tls.Conn, error)
}

// ClientUpgrader secures a dialed connection in the client role, sending
// serverName as SNI and verifying the server against it. On failure it
// must close raw. Implemented by trust.ClientContext.
type ClientUpgrader interface {
	Secure(ctx context.Context, raw net.Conn, serverName string) (*tls.Conn, error)
}

// EchoServer is the lifecycle surface the binaries drive.
// Implemented by Server.
type EchoServer interface {
	Start(ctx context.Context) error
	Stop() error
	Addr() net.Addr
	ConnectionCount() int
}

var _ EchoServer = (*Server)(nil)
