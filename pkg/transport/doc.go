// Package transport implements the echo service's connection handling.
//
// A Listener binds an address with an explicit backlog and optional
// SO_REUSEADDR. A Server runs a single accept loop over it and hands each
// accepted Conn, after an optional TLS upgrade, to its own Session
// goroutine. A Session reads fixed-size chunks and writes each chunk back
// unchanged until the peer closes, the connection resets or the server
// stops. It owns its Conn and closes it exactly once.
//
// A Dialer is the initiating side. It retries refused connects with
// backoff and, given a ClientUpgrader, verifies the server before
// returning.
//
// # Layers
//
//	┌────────────────────────────────┐
//	│   Session (raw byte echo)      │
//	├────────────────────────────────┤
//	│   TLS (optional, Upgrader)     │
//	├────────────────────────────────┤
//	│   wiretap (optional capture)   │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// There is no message framing: a single write may arrive split across
// several reads and several writes may coalesce into one read. Only the
// byte content and its order are preserved.
//
// # Errors
//
// Kind maps any error from this package, or from the trust package, to a
// short label used in logs: address_in_use, connection_refused,
// connection_reset, handshake_failure, verification_failure and so on.
package transport
