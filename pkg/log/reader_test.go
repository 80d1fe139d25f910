package log

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterMatches(t *testing.T) {
	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	event := Event{
		Timestamp:    ts,
		ConnectionID: "c1",
		Direction:    DirectionOut,
		Layer:        LayerChannel,
		Category:     CategoryPacket,
		Socket:       SocketServer,
		RemoteAddr:   "10.0.0.3:27005",
		ChannelName:  "bob",
		Packet:       &PacketEvent{Sequence: 9},
	}

	server, client := SocketServer, SocketClient
	channel, message := LayerChannel, LayerMessage
	packet, state := CategoryPacket, CategoryState
	out, in := DirectionOut, DirectionIn

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty", Filter{}, true},
		{"socket", Filter{Socket: &server}, true},
		{"other socket", Filter{Socket: &client}, false},
		{"remote", Filter{RemoteAddr: "10.0.0.3:27005"}, true},
		{"other remote", Filter{RemoteAddr: "10.0.0.4:27005"}, false},
		{"channel name", Filter{ChannelName: "bob"}, true},
		{"layer", Filter{Layer: &channel}, true},
		{"other layer", Filter{Layer: &message}, false},
		{"category", Filter{Category: &packet}, true},
		{"other category", Filter{Category: &state}, false},
		{"direction", Filter{Direction: &out}, true},
		{"other direction", Filter{Direction: &in}, false},
		{"message name on packet event", Filter{MessageName: "net_Tick"}, false},
		{"start is inclusive", Filter{TimeStart: &ts}, true},
		{"end is exclusive", Filter{TimeEnd: &ts}, false},
		{"combined", Filter{ConnectionID: "c1", Socket: &server, Layer: &channel, Direction: &out}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(event))
		})
	}
}

func TestReaderHandlesEmptyFile(t *testing.T) {
	path := writeCapture(t, nil)

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReaderHandlesTruncatedFile(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), ConnectionID: "a", Datagram: &DatagramEvent{Size: 10}},
		{Timestamp: time.Now(), ConnectionID: "b", Datagram: &DatagramEvent{Size: 20, Data: make([]byte, 20)}},
	}
	path := writeCapture(t, events)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-5))

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.ReadAll()
	assert.Error(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ConnectionID)
}
