package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes capture events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates an adapter. A nil logger uses slog.Default().
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	ctx := context.Background()
	if !a.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	attrs := []slog.Attr{
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.ConnectionID != "" {
		attrs = append(attrs, slog.String("conn_id", event.ConnectionID))
	}
	if event.ChannelName != "" {
		attrs = append(attrs, slog.String("channel", event.ChannelName))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}
	if s := event.Socket.String(); s != "" {
		attrs = append(attrs, slog.String("socket", s))
	}

	switch {
	case event.Datagram != nil:
		d := event.Datagram
		attrs = append(attrs, slog.Int("size", d.Size))
		if d.Split != nil {
			attrs = append(attrs,
				slog.Int("split_seq", int(d.Split.Sequence)),
				slog.Int("split_index", d.Split.Index),
				slog.Int("split_count", d.Split.Count),
			)
		}
		if d.Codec != "" {
			attrs = append(attrs, slog.String("codec", d.Codec), slog.Int("payload_size", d.PayloadSize))
		}
		if d.Connectionless {
			attrs = append(attrs, slog.Bool("connectionless", true))
		}
	case event.Packet != nil:
		p := event.Packet
		attrs = append(attrs,
			slog.Int("seq", int(p.Sequence)),
			slog.Int("ack", int(p.Ack)),
			slog.Int("flags", int(p.Flags)),
			slog.Int("rel_state", int(p.ReliableState)),
			slog.Int("bytes", p.Bytes),
		)
		if p.SubChannel >= 0 {
			attrs = append(attrs, slog.Int("subchannel", int(p.SubChannel)))
		}
		if p.Choked > 0 {
			attrs = append(attrs, slog.Int("choked", int(p.Choked)))
		}
		if p.Dropped > 0 {
			attrs = append(attrs, slog.Int("dropped", p.Dropped))
		}
	case event.Message != nil:
		m := event.Message
		attrs = append(attrs,
			slog.Int("tag", int(m.Tag)),
			slog.String("msg", m.Name),
			slog.Int("bits", m.Bits),
		)
		if m.Reliable {
			attrs = append(attrs, slog.Bool("reliable", true))
		}
		if m.Summary != "" {
			attrs = append(attrs, slog.String("summary", m.Summary))
		}
	case event.StateChange != nil:
		s := event.StateChange
		attrs = append(attrs,
			slog.String("entity", s.Entity.String()),
			slog.String("old_state", s.OldState),
			slog.String("new_state", s.NewState),
		)
		if s.Reason != "" {
			attrs = append(attrs, slog.String("reason", s.Reason))
		}
	case event.ControlMsg != nil:
		c := event.ControlMsg
		attrs = append(attrs, slog.String("ctrl_type", c.Type.String()))
		if c.Reason != "" {
			attrs = append(attrs, slog.String("reason", c.Reason))
		}
		if c.Filename != "" {
			attrs = append(attrs, slog.String("file", c.Filename), slog.Uint64("transfer_id", uint64(c.TransferID)))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.Bool("fatal", event.Error.Fatal),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(ctx, slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
