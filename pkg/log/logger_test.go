package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct{ events []Event }

func (r *recordingLogger) Log(e Event) { r.events = append(r.events, e) }

func TestNoopLogger(t *testing.T) {
	var l NoopLogger
	l.Log(Event{Datagram: &DatagramEvent{Size: 1}})
	assert.Equal(t, NoopLogger{}, OrNoop(nil))

	rec := &recordingLogger{}
	assert.Same(t, rec, OrNoop(rec))
}

func TestMultiLogger(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	m := NewMultiLogger(a, nil, b)
	assert.Equal(t, 2, m.Len())

	m.Log(Event{Layer: LayerChannel})
	m.Log(Event{Layer: LayerMessage})
	assert.Len(t, a.events, 2)
	assert.Len(t, b.events, 2)
	assert.Equal(t, LayerMessage, b.events[1].Layer)
}

func slogEntry(t *testing.T, e Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	NewSlogAdapter(logger).Log(e)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestSlogAdapter(t *testing.T) {
	t.Run("datagram", func(t *testing.T) {
		entry := slogEntry(t, Event{
			Direction: DirectionIn, Layer: LayerTransport, Category: CategoryPacket,
			Socket:   SocketServer,
			Datagram: &DatagramEvent{Size: 1260, Split: &SplitInfo{Sequence: 3, Index: 1, Count: 4}},
		})
		assert.Equal(t, "IN", entry["direction"])
		assert.Equal(t, "SERVER", entry["socket"])
		assert.Equal(t, float64(1260), entry["size"])
		assert.Equal(t, float64(4), entry["split_count"])
	})

	t.Run("packet", func(t *testing.T) {
		entry := slogEntry(t, Event{
			ConnectionID: "c1", Layer: LayerChannel,
			Packet: &PacketEvent{Sequence: 10, Ack: 9, SubChannel: -1, Dropped: 2},
		})
		assert.Equal(t, "c1", entry["conn_id"])
		assert.Equal(t, float64(10), entry["seq"])
		assert.Equal(t, float64(2), entry["dropped"])
		_, hasSub := entry["subchannel"]
		assert.False(t, hasSub)
	})

	t.Run("message", func(t *testing.T) {
		entry := slogEntry(t, Event{Layer: LayerMessage, Message: &MessageEvent{Tag: 4, Name: "net_StringCmd", Bits: 40}})
		assert.Equal(t, "net_StringCmd", entry["msg"])
		assert.Equal(t, "MESSAGE", entry["layer"])
	})

	t.Run("state", func(t *testing.T) {
		entry := slogEntry(t, Event{Category: CategoryState, StateChange: &StateChangeEvent{
			Entity: StateEntitySignOn, OldState: "NEW", NewState: "PRESPAWN",
		}})
		assert.Equal(t, "SIGNON", entry["entity"])
		assert.Equal(t, "PRESPAWN", entry["new_state"])
	})

	t.Run("error", func(t *testing.T) {
		entry := slogEntry(t, Event{Category: CategoryError, Error: &ErrorEventData{Layer: LayerChannel, Message: "bad", Fatal: true}})
		assert.Equal(t, true, entry["fatal"])
		assert.Equal(t, "CHANNEL", entry["error_layer"])
	})
}

func TestSlogAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	NewSlogAdapter(logger).Log(Event{Layer: LayerTransport})
	assert.Zero(t, buf.Len())
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "OUT", DirectionOut.String())
	assert.Equal(t, "CHANNEL", LayerChannel.String())
	assert.Equal(t, "ERROR", CategoryError.String())
	assert.Equal(t, "HLTV", SocketHLTV.String())
	assert.Equal(t, "", SocketUnset.String())
	assert.Equal(t, "TRANSFER", StateEntityTransfer.String())
	assert.Equal(t, "REJECT", ControlMsgReject.String())
	assert.Equal(t, "UNKNOWN", Layer(99).String())
}
