package commands

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/log"
)

func TestBuildFilter(t *testing.T) {
	filter, err := BuildFilter(FilterOptions{
		ConnID:    "abc",
		Channel:   "server",
		Remote:    "10.0.0.2:27015",
		Message:   "net_Tick",
		TimeStart: "2026-01-28T10:00:00Z",
		TimeEnd:   "2026-01-28T11:00:00Z",
		Layer:     "message",
		Direction: "in",
		Category:  "state",
	})
	require.NoError(t, err)

	assert.Equal(t, "abc", filter.ConnectionID)
	assert.Equal(t, "server", filter.ChannelName)
	assert.Equal(t, "10.0.0.2:27015", filter.RemoteAddr)
	assert.Equal(t, "net_Tick", filter.MessageName)
	require.NotNil(t, filter.TimeStart)
	require.NotNil(t, filter.TimeEnd)
	assert.Equal(t, 10, filter.TimeStart.Hour())
	assert.Equal(t, log.LayerMessage, *filter.Layer)
	assert.Equal(t, log.DirectionIn, *filter.Direction)
	assert.Equal(t, log.CategoryState, *filter.Category)
}

func TestBuildFilterErrors(t *testing.T) {
	for name, opts := range map[string]FilterOptions{
		"time-start": {TimeStart: "yesterday"},
		"time-end":   {TimeEnd: "10:00"},
		"layer":      {Layer: "wire"},
		"direction":  {Direction: "up"},
		"category":   {Category: "frame"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := BuildFilter(opts)
			assert.Error(t, err)
		})
	}
}

func TestRunFilter(t *testing.T) {
	path := writeCapture(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "filtered.cbor")

	n, err := RunFilter(path, FilterOptions{Output: out, ConnID: "abc12345-6789", Direction: "in"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	reader, err := log.NewReader(out)
	require.NoError(t, err)
	defer reader.Close()
	events, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, log.DirectionIn, e.Direction)
		assert.Equal(t, "abc12345-6789", e.ConnectionID)
	}
	assert.Equal(t, log.ControlMsgDisconnect, events[2].ControlMsg.Type)
}

func TestRunFilterByRemote(t *testing.T) {
	path := writeCapture(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "filtered.cbor")

	n, err := RunFilter(path, FilterOptions{Output: out, Remote: "10.0.0.2:27015"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunFilterBadOptions(t *testing.T) {
	path := writeCapture(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "filtered.cbor")

	_, err := RunFilter(path, FilterOptions{Output: out, Layer: "bogus"})
	assert.Error(t, err)
	assert.NoFileExists(t, out)
}
