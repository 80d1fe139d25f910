package log

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCapture(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.slog")

	logger, err := NewFileLogger(path)
	require.NoError(t, err)
	for _, e := range events {
		logger.Log(e)
	}
	require.NoError(t, logger.Close())
	return path
}

func TestFileLoggerAndReader(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	in := DirectionIn

	events := []Event{
		{Timestamp: base, ConnectionID: "a", Direction: DirectionIn, Layer: LayerTransport, Category: CategoryPacket},
		{Timestamp: base.Add(time.Second), ConnectionID: "b", Direction: DirectionOut, Layer: LayerChannel, Category: CategoryPacket},
		{Timestamp: base.Add(2 * time.Second), ConnectionID: "a", Direction: DirectionIn, Layer: LayerMessage, Category: CategoryMessage,
			Message: &MessageEvent{Tag: 3, Name: "net_Tick", Bits: 70}},
	}
	path := writeCapture(t, events)

	t.Run("all", func(t *testing.T) {
		r, err := NewReader(path)
		require.NoError(t, err)
		defer r.Close()
		got, err := r.ReadAll()
		require.NoError(t, err)
		assert.Len(t, got, 3)
		assert.Equal(t, "b", got[1].ConnectionID)
	})

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"by connection", Filter{ConnectionID: "a"}, 2},
		{"by direction", Filter{Direction: &in}, 2},
		{"by message name", Filter{MessageName: "net_Tick"}, 1},
		{"by time window", Filter{TimeStart: ptr(base.Add(time.Second)), TimeEnd: ptr(base.Add(2 * time.Second))}, 1},
		{"no match", Filter{ChannelName: "nobody"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			require.NoError(t, err)
			defer r.Close()
			got, err := r.ReadAll()
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestFileLoggerAppends(t *testing.T) {
	path := writeCapture(t, []Event{{Layer: LayerTransport}})

	logger, err := NewFileLogger(path)
	require.NoError(t, err)
	logger.Log(Event{Layer: LayerMessage})
	require.NoError(t, logger.Close())

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()
	got, err := r.ReadAll()
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFileLoggerFlushAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flush.slog")
	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	logger.Log(Event{Layer: LayerChannel})
	require.NoError(t, logger.Flush())
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
	assert.Equal(t, uint64(1), logger.Count())

	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
	logger.Log(Event{}) // ignored after close
	assert.Equal(t, uint64(1), logger.Count())
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.slog")
	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				logger.Log(Event{Layer: LayerTransport, Datagram: &DatagramEvent{Size: i}})
			}
		}()
	}
	wg.Wait()
	require.NoError(t, logger.Close())

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()
	n := 0
	for {
		_, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 200, n)
}

func TestReaderMissingFile(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
