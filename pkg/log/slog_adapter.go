package log

import (
	"context"
	"log/slog"
)

// previewLen bounds the hex and string previews attached to data events.
const previewLen = 64

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
		slog.String("role", event.LocalRole.String()),
	}

	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}

	switch {
	case event.Data != nil:
		attrs = append(attrs,
			slog.Int("size", event.Data.Size),
			slog.String("hex", event.Data.HexPreview(previewLen)),
			slog.String("text", event.Data.StringPreview(previewLen)),
		)
		if event.Data.Truncated {
			attrs = append(attrs, slog.Bool("truncated", true))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Handshake != nil:
		attrs = append(attrs, slog.Bool("success", event.Handshake.Success))
		if v := event.Handshake.VersionName(); v != "" {
			attrs = append(attrs, slog.String("version", v))
		}
		if c := event.Handshake.CipherName(); c != "" {
			attrs = append(attrs, slog.String("cipher", c))
		}
		if event.Handshake.ServerName != "" {
			attrs = append(attrs, slog.String("sni", event.Handshake.ServerName))
		}
		if event.Handshake.PeerSubject != "" {
			attrs = append(attrs, slog.String("peer", event.Handshake.PeerSubject))
		}
		attrs = append(attrs, slog.Duration("duration", event.Handshake.Duration))
	case event.Record != nil:
		attrs = append(attrs,
			slog.String("content_type", event.Record.ContentTypeName()),
			slog.Int("record_len", event.Record.Length),
		)
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Kind != "" {
			attrs = append(attrs, slog.String("error_kind", event.Error.Kind))
		}
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
