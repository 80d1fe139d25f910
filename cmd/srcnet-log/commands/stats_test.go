package commands

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/log"
)

func TestCollect(t *testing.T) {
	events := append(sampleEvents(), log.Event{
		Timestamp:    baseTime.Add(time.Second),
		ConnectionID: "abc12345-6789",
		Layer:        log.LayerChannel,
		Category:     log.CategoryError,
		Error:        &log.ErrorEventData{Layer: log.LayerChannel, Message: "bad checksum"},
	})
	path := writeCapture(t, events)

	stats, err := Collect(path)
	require.NoError(t, err)

	assert.Equal(t, 7, stats.TotalEvents)
	assert.Equal(t, 1, stats.EventsByLayer[log.LayerTransport])
	assert.Equal(t, 3, stats.EventsByLayer[log.LayerChannel])
	assert.Equal(t, 3, stats.EventsByLayer[log.LayerMessage])
	assert.Equal(t, 2, stats.EventsByCategory[log.CategoryPacket])
	assert.Equal(t, 2, stats.EventsByCategory[log.CategoryControl])
	assert.Equal(t, 1, stats.Messages["net_StringCmd"])
	assert.Equal(t, 1, stats.Errors)
	assert.True(t, stats.TimeRange.Start.Equal(baseTime))
	assert.True(t, stats.TimeRange.End.Equal(baseTime.Add(2*time.Second)))

	// the connectionless challenge has no connection id
	require.Len(t, stats.Connections, 1)
	conn := stats.Connections["abc12345-6789"]
	require.NotNil(t, conn)
	assert.Equal(t, 6, conn.Events)
	assert.Equal(t, "server", conn.Channel)
	assert.Equal(t, "10.0.0.2:27015", conn.Remote)
	assert.Equal(t, 1, conn.PacketsIn)
	assert.Equal(t, 1, conn.PacketsOut)
	assert.Equal(t, 32, conn.BytesIn)
	assert.Equal(t, 64, conn.BytesOut)
	assert.Equal(t, 2, conn.Dropped)
	assert.Equal(t, "NEW", conn.LastSignOn)
	assert.Equal(t, 1, conn.Disconnects)
}

func TestRunStats(t *testing.T) {
	path := writeCapture(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, &buf))
	output := buf.String()

	for _, want := range []string{
		"Total Events: 6",
		"TRANSPORT:",
		"PACKET:",
		"net_StringCmd:",
		"Connections: 1",
		"[abc12345] server 5 events",
		"Remote: 10.0.0.2:27015",
		"Packets: 1 in (32 bytes), 1 out (64 bytes)",
		"Sign-on: NEW",
		"Disconnects: 1",
	} {
		assert.Contains(t, output, want)
	}
	assert.NotContains(t, output, "Errors:")
}

func TestRunStatsEmpty(t *testing.T) {
	path := writeCapture(t, nil)

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, &buf))
	assert.Contains(t, buf.String(), "Total Events: 0")
	assert.NotContains(t, buf.String(), "Time Range")
}
