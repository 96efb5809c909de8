// Package log provides structured protocol event logging for netlab.
//
// It is separate from operational logging (slog). Operational logs say what
// the process is doing; protocol events are a machine-readable trace of every
// connection: state changes, echoed bytes, TLS handshake outcomes and the
// TLS record headers seen on the raw socket.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.Logger = log.NewSlogAdapter(slog.Default())
//
//	// For captures: write to a CBOR file
//	fl, _ := log.NewFileLogger("session.nlog")
//
//	// Both: use MultiLogger
//	cfg.Logger = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # File Format
//
// Capture files are a sequence of CBOR-encoded Event values with integer
// map keys. The netlab-log tool views, summarises and exports them.
package log
