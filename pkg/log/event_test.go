package log

import (
	"bytes"
	"crypto/tls"
	"strings"
	"testing"
	"time"
)

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerTransport.String(), "TRANSPORT"},
		{LayerTLS.String(), "TLS"},
		{LayerSession.String(), "SESSION"},
		{LayerWire.String(), "WIRE"},
		{Layer(9).String(), "UNKNOWN"},
		{CategoryData.String(), "DATA"},
		{CategoryState.String(), "STATE"},
		{CategoryHandshake.String(), "HANDSHAKE"},
		{CategoryRecord.String(), "RECORD"},
		{CategoryError.String(), "ERROR"},
		{Category(9).String(), "UNKNOWN"},
		{RoleServer.String(), "SERVER"},
		{RoleClient.String(), "CLIENT"},
		{StateEntityConnection.String(), "CONNECTION"},
		{StateEntitySession.String(), "SESSION"},
		{StateEntityListener.String(), "LISTENER"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestNewDataEventTruncates(t *testing.T) {
	small := NewDataEvent([]byte("hello"))
	if small.Size != 5 || small.Truncated || string(small.Data) != "hello" {
		t.Errorf("small event = %+v", small)
	}

	big := bytes.Repeat([]byte{0xAB}, MaxDataCapture+100)
	ev := NewDataEvent(big)
	if ev.Size != len(big) {
		t.Errorf("Size = %d, want %d", ev.Size, len(big))
	}
	if !ev.Truncated {
		t.Error("Truncated should be true")
	}
	if len(ev.Data) != MaxDataCapture {
		t.Errorf("len(Data) = %d, want %d", len(ev.Data), MaxDataCapture)
	}

	// The event must not alias the caller's buffer.
	buf := []byte("abc")
	ev = NewDataEvent(buf)
	buf[0] = 'z'
	if string(ev.Data) != "abc" {
		t.Error("DataEvent aliases the source buffer")
	}
}

func TestDataEventPreviews(t *testing.T) {
	ev := NewDataEvent([]byte("hello\n"))
	if got := ev.HexPreview(64); got != "68656c6c6f0a" {
		t.Errorf("HexPreview = %q", got)
	}
	if got := ev.StringPreview(64); got != `"hello\n"` {
		t.Errorf("StringPreview = %q", got)
	}
	if got := ev.HexPreview(2); got != "6865..." {
		t.Errorf("HexPreview(2) = %q", got)
	}

	bin := NewDataEvent([]byte{0xff, 0xfe, 0x00})
	if got := bin.StringPreview(64); !strings.Contains(got, "binary") {
		t.Errorf("StringPreview(binary) = %q", got)
	}
}

func TestHandshakeEventNames(t *testing.T) {
	h := &HandshakeEvent{Version: tls.VersionTLS13, CipherSuite: tls.TLS_AES_128_GCM_SHA256}
	if h.VersionName() != "TLS 1.3" {
		t.Errorf("VersionName = %q", h.VersionName())
	}
	if h.CipherName() != "TLS_AES_128_GCM_SHA256" {
		t.Errorf("CipherName = %q", h.CipherName())
	}
	if (&HandshakeEvent{}).VersionName() != "" {
		t.Error("zero version should have empty name")
	}
}

func TestRecordEventContentTypeName(t *testing.T) {
	tests := map[uint8]string{
		20: "change_cipher_spec",
		21: "alert",
		22: "handshake",
		23: "application_data",
		99: "unknown(99)",
	}
	for ct, want := range tests {
		r := &RecordEvent{ContentType: ct}
		if got := r.ContentTypeName(); got != want {
			t.Errorf("ContentTypeName(%d) = %q, want %q", ct, got, want)
		}
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.UTC)
	ev := Event{
		Timestamp:    ts,
		ConnectionID: "c-1",
		Direction:    DirectionOut,
		Layer:        LayerTLS,
		Category:     CategoryHandshake,
		LocalRole:    RoleClient,
		RemoteAddr:   "127.0.0.1:9443",
		Handshake: &HandshakeEvent{
			Success:     true,
			Version:     tls.VersionTLS12,
			CipherSuite: tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			ServerName:  "localhost",
			Duration:    3 * time.Millisecond,
		},
	}

	data, err := EncodeEvent(ev)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}

	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v (nanosecond precision)", got.Timestamp, ts)
	}
	if got.LocalRole != RoleClient || got.RemoteAddr != ev.RemoteAddr {
		t.Errorf("header fields mismatch: %+v", got)
	}
	if got.Handshake == nil || *got.Handshake != *ev.Handshake {
		t.Errorf("Handshake = %+v, want %+v", got.Handshake, ev.Handshake)
	}
	if got.Data != nil || got.StateChange != nil || got.Record != nil || got.Error != nil {
		t.Error("unset payloads should decode as nil")
	}

	if _, err := DecodeEvent([]byte{0xff, 0x00}); err == nil {
		t.Error("DecodeEvent(garbage) should fail")
	}
}
