package log

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func logOne(t *testing.T, ev Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(ev)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestSlogAdapterDataEvent(t *testing.T) {
	entry := logOne(t, Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerSession,
		Category:     CategoryData,
		RemoteAddr:   "127.0.0.1:1234",
		Data:         NewDataEvent([]byte("hello")),
	})

	want := map[string]any{
		"msg":       "protocol",
		"level":     "DEBUG",
		"conn_id":   "conn-123",
		"direction": "IN",
		"layer":     "SESSION",
		"category":  "DATA",
		"role":      "SERVER",
		"remote":    "127.0.0.1:1234",
		"size":      float64(5),
		"hex":       "68656c6c6f",
		"text":      `"hello"`,
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s: got %v, want %v", k, entry[k], v)
		}
	}
	if _, ok := entry["truncated"]; ok {
		t.Error("truncated should be omitted for short payloads")
	}
}

func TestSlogAdapterHandshakeEvent(t *testing.T) {
	entry := logOne(t, Event{
		Layer:     LayerTLS,
		Category:  CategoryHandshake,
		LocalRole: RoleClient,
		Handshake: &HandshakeEvent{
			Success:     true,
			Version:     tls.VersionTLS13,
			CipherSuite: tls.TLS_AES_256_GCM_SHA384,
			ServerName:  "localhost",
		},
	})

	if entry["version"] != "TLS 1.3" {
		t.Errorf("version = %v", entry["version"])
	}
	if entry["cipher"] != "TLS_AES_256_GCM_SHA384" {
		t.Errorf("cipher = %v", entry["cipher"])
	}
	if entry["sni"] != "localhost" {
		t.Errorf("sni = %v", entry["sni"])
	}
	if entry["role"] != "CLIENT" {
		t.Errorf("role = %v", entry["role"])
	}
}

func TestSlogAdapterStateAndError(t *testing.T) {
	entry := logOne(t, Event{
		Category: CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityConnection,
			OldState: "CONNECTED",
			NewState: "DISCONNECTED",
			Reason:   "eof",
		},
	})
	if entry["new_state"] != "DISCONNECTED" || entry["reason"] != "eof" {
		t.Errorf("state entry = %v", entry)
	}

	entry = logOne(t, Event{
		Category: CategoryError,
		Error:    &ErrorEventData{Layer: LayerSession, Message: "boom", Kind: "connection_reset"},
	})
	if entry["error_kind"] != "connection_reset" || entry["error_layer"] != "SESSION" {
		t.Errorf("error entry = %v", entry)
	}
}

func TestSlogAdapterRecordEvent(t *testing.T) {
	entry := logOne(t, Event{
		Layer:    LayerWire,
		Category: CategoryRecord,
		Record:   &RecordEvent{ContentType: 23, Version: tls.VersionTLS12, Length: 37},
	})
	if entry["content_type"] != "application_data" || entry["record_len"] != float64(37) {
		t.Errorf("record entry = %v", entry)
	}
}

func TestSlogAdapterSuppressedAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	NewSlogAdapter(slog.New(handler)).Log(Event{ConnectionID: "x"})
	if buf.Len() != 0 {
		t.Errorf("expected no output at info level, got %q", buf.String())
	}
}
