package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/bufpool"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

// failingReader fails every read with err and counts the calls.
type failingReader struct {
	err   error
	calls atomic.Int32
}

func (r *failingReader) ReadFromUDPAddrPort([]byte) (int, netip.AddrPort, error) {
	r.calls.Add(1)
	return 0, netip.AddrPort{}, r.err
}

func newReaderSocket() *socket {
	return &socket{
		role:   protocol.SocketServer,
		queue:  make(chan datagram, 4),
		pool:   bufpool.New(),
		logger: slog.New(slog.DiscardHandler),
		done:   make(chan struct{}),
	}
}

func TestReadBackoff(t *testing.T) {
	assert.Equal(t, time.Duration(0), readBackoff(0))
	assert.Equal(t, readErrorBaseDelay, readBackoff(1))
	assert.Equal(t, 2*readErrorBaseDelay, readBackoff(2))
	assert.Equal(t, 8*readErrorBaseDelay, readBackoff(4))
	assert.Equal(t, readErrorMaxDelay, readBackoff(30))
	assert.Equal(t, readErrorMaxDelay, readBackoff(1000))
}

func TestReadLoopBacksOffOnPersistentErrors(t *testing.T) {
	s := newReaderSocket()
	r := &failingReader{err: errors.New("connection refused")}
	s.wg.Add(1)
	go s.readLoop(r)

	time.Sleep(100 * time.Millisecond)
	close(s.done)
	s.wg.Wait()

	// pauses of 5, 10, 20 and 40ms fit in the window
	calls := r.calls.Load()
	assert.GreaterOrEqual(t, calls, int32(2))
	assert.LessOrEqual(t, calls, int32(8))
	assert.Zero(t, s.received.Load())
}

func TestReadLoopStopsWhenClosed(t *testing.T) {
	s := newReaderSocket()
	r := &failingReader{err: fmt.Errorf("read udp: %w", net.ErrClosed)}
	s.wg.Add(1)
	go s.readLoop(r)
	s.wg.Wait()

	assert.Equal(t, int32(1), r.calls.Load())
}
