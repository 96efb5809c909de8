package log

import (
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"time"
	"unicode/utf8"
)

// MaxDataCapture is the number of payload bytes kept in a DataEvent.
const MaxDataCapture = 4096

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates data flow relative to the local endpoint.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether this is the server or the client.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// LocalAddr is the local address (IP:port).
	LocalAddr string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Data        *DataEvent        `cbor:"10,keyasint,omitempty"` // Echo payload bytes
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"` // Connection/session state
	Handshake   *HandshakeEvent   `cbor:"12,keyasint,omitempty"` // TLS handshake result
	Record      *RecordEvent      `cbor:"13,keyasint,omitempty"` // TLS record header on the wire
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of data flow.
type Direction uint8

const (
	// DirectionIn indicates received data.
	DirectionIn Direction = 0
	// DirectionOut indicates sent data.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the TCP connection layer.
	LayerTransport Layer = 0
	// LayerTLS is the trust establishment layer.
	LayerTLS Layer = 1
	// LayerSession is the echo session layer.
	LayerSession Layer = 2
	// LayerWire is raw bytes as seen on the socket.
	LayerWire Layer = 3
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerTLS:
		return "TLS"
	case LayerSession:
		return "SESSION"
	case LayerWire:
		return "WIRE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryData indicates payload bytes moved through a session.
	CategoryData Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryHandshake indicates a completed or failed TLS handshake.
	CategoryHandshake Category = 2
	// CategoryRecord indicates a TLS record header observed on the wire.
	CategoryRecord Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryData:
		return "DATA"
	case CategoryState:
		return "STATE"
	case CategoryHandshake:
		return "HANDSHAKE"
	case CategoryRecord:
		return "RECORD"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates whether the local endpoint is the server or the client.
type Role uint8

const (
	// RoleServer indicates the accepting side.
	RoleServer Role = 0
	// RoleClient indicates the dialing side.
	RoleClient Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleServer:
		return "SERVER"
	case RoleClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// DataEvent captures payload bytes.
type DataEvent struct {
	// Size is the full payload size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the payload (truncated to MaxDataCapture).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// NewDataEvent copies b into a DataEvent, truncating to MaxDataCapture.
func NewDataEvent(b []byte) *DataEvent {
	ev := &DataEvent{Size: len(b)}
	n := len(b)
	if n > MaxDataCapture {
		n = MaxDataCapture
		ev.Truncated = true
	}
	ev.Data = append([]byte(nil), b[:n]...)
	return ev
}

// HexPreview returns the first max bytes of the payload as hex.
func (d *DataEvent) HexPreview(max int) string {
	b := d.Data
	suffix := ""
	if len(b) > max {
		b = b[:max]
		suffix = "..."
	}
	return hex.EncodeToString(b) + suffix
}

// StringPreview returns the payload as a quoted string, or a placeholder
// when it is not valid UTF-8.
func (d *DataEvent) StringPreview(max int) string {
	b := d.Data
	suffix := ""
	if len(b) > max {
		b = b[:max]
		suffix = "..."
	}
	if !utf8.Valid(b) {
		return fmt.Sprintf("<%d bytes binary>", d.Size)
	}
	return fmt.Sprintf("%q", b) + suffix
}

// StateChangeEvent captures connection and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySession indicates a session state change.
	StateEntitySession StateEntity = 1
	// StateEntityListener indicates a listener state change.
	StateEntityListener StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	case StateEntityListener:
		return "LISTENER"
	default:
		return "UNKNOWN"
	}
}

// HandshakeEvent captures the outcome of a TLS handshake.
type HandshakeEvent struct {
	// Success is false when the handshake or peer verification failed.
	Success bool `cbor:"1,keyasint"`

	// Version is the negotiated protocol version (tls.VersionTLS12, ...).
	Version uint16 `cbor:"2,keyasint,omitempty"`

	// CipherSuite is the negotiated cipher suite ID.
	CipherSuite uint16 `cbor:"3,keyasint,omitempty"`

	// ServerName is the SNI value.
	ServerName string `cbor:"4,keyasint,omitempty"`

	// PeerSubject is the subject of the peer leaf certificate, if any.
	PeerSubject string `cbor:"5,keyasint,omitempty"`

	// Duration is the handshake wall time.
	Duration time.Duration `cbor:"6,keyasint,omitempty"`
}

// VersionName returns the protocol name, e.g. "TLS 1.3".
func (h *HandshakeEvent) VersionName() string {
	if h.Version == 0 {
		return ""
	}
	return tls.VersionName(h.Version)
}

// CipherName returns the IANA cipher suite name.
func (h *HandshakeEvent) CipherName() string {
	if h.CipherSuite == 0 {
		return ""
	}
	return tls.CipherSuiteName(h.CipherSuite)
}

// RecordEvent captures a TLS record header observed on the raw socket.
type RecordEvent struct {
	// ContentType is the record content type (20-24).
	ContentType uint8 `cbor:"1,keyasint"`

	// Version is the legacy record version field.
	Version uint16 `cbor:"2,keyasint"`

	// Length is the record body length.
	Length int `cbor:"3,keyasint"`
}

// ContentTypeName returns the record content type name.
func (r *RecordEvent) ContentTypeName() string {
	switch r.ContentType {
	case 20:
		return "change_cipher_spec"
	case 21:
		return "alert"
	case 22:
		return "handshake"
	case 23:
		return "application_data"
	case 24:
		return "heartbeat"
	default:
		return fmt.Sprintf("unknown(%d)", r.ContentType)
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Kind is a short error classification, e.g. "connection_reset".
	Kind string `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
