package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/bufpool"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

// maxDatagram is the largest UDP payload the reader accepts.
const maxDatagram = 65535

// Consecutive read errors pause the reader for readErrorBaseDelay, doubling
// up to readErrorMaxDelay.
const (
	readErrorBaseDelay = 5 * time.Millisecond
	readErrorMaxDelay  = time.Second
)

// udpReader is the receive half of *net.UDPConn.
type udpReader interface {
	ReadFromUDPAddrPort(b []byte) (int, netip.AddrPort, error)
}

// datagram is a raw received payload in a pooled buffer.
type datagram struct {
	from netadr.Address
	buf  []byte
	n    int
}

// SocketStats counts per-socket traffic.
type SocketStats struct {
	Received uint64
	Sent     uint64
	Dropped  uint64
	BytesIn  uint64
	BytesOut uint64
}

// socket is one bound UDP socket with its reader goroutine.
type socket struct {
	role   protocol.SocketRole
	conn   *net.UDPConn
	queue  chan datagram
	pool   *bufpool.Pool
	logger *slog.Logger

	done      chan struct{}
	closeOnce sync.Once

	received atomic.Uint64
	sent     atomic.Uint64
	dropped  atomic.Uint64
	bytesIn  atomic.Uint64
	bytesOut atomic.Uint64

	wg sync.WaitGroup
}

// openSocket binds role to ip:port, trying successive ports up to retries
// times. Port 0 binds an ephemeral port once.
func openSocket(role protocol.SocketRole, ip string, port, retries, queue int, pool *bufpool.Pool, logger *slog.Logger) (*socket, error) {
	bindIP := netip.IPv4Unspecified()
	if ip != "" {
		parsed, err := netip.ParseAddr(ip)
		if err != nil {
			return nil, fmt.Errorf("%w: bind ip %q", ErrBindFailed, ip)
		}
		bindIP = parsed.Unmap()
	}

	attempts := retries + 1
	if port == 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		p := port + i
		if p > 0xFFFF {
			break
		}
		conn, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(netip.AddrPortFrom(bindIP, uint16(p))))
		if err != nil {
			lastErr = err
			logger.Debug("bind failed, trying next port", "role", role.String(), "port", p, "error", err)
			continue
		}

		s := &socket{
			role:   role,
			conn:   conn,
			queue:  make(chan datagram, queue),
			pool:   pool,
			logger: logger,
			done:   make(chan struct{}),
		}
		s.wg.Add(1)
		go s.readLoop(conn)
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s port %d: %v", ErrBindFailed, role, port, lastErr)
}

// readLoop copies datagrams into the queue until the socket is closed.
// Persistent read errors back off instead of spinning.
func (s *socket) readLoop(conn udpReader) {
	defer s.wg.Done()

	scratch := make([]byte, maxDatagram)
	failures := 0
	for {
		n, ap, err := conn.ReadFromUDPAddrPort(scratch)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			failures++
			delay := readBackoff(failures)
			s.logger.Debug("udp read error", "role", s.role.String(), "error", err, "failures", failures, "retry_in", delay)
			select {
			case <-s.done:
				return
			case <-time.After(delay):
			}
			continue
		}
		failures = 0
		if n == 0 {
			continue
		}

		buf := s.pool.Rent(n)
		copy(buf, scratch[:n])
		select {
		case s.queue <- datagram{from: netadr.FromAddrPort(ap), buf: buf, n: n}:
			s.received.Add(1)
			s.bytesIn.Add(uint64(n))
		default:
			_ = s.pool.Return(buf)
			s.dropped.Add(1)
		}
	}
}

// poll returns a queued datagram without blocking.
func (s *socket) poll() (datagram, bool) {
	select {
	case d := <-s.queue:
		return d, true
	default:
		return datagram{}, false
	}
}

func (s *socket) write(to *net.UDPAddr, data []byte) (int, error) {
	n, err := s.conn.WriteToUDP(data, to)
	if err != nil {
		return n, err
	}
	s.sent.Add(1)
	s.bytesOut.Add(uint64(n))
	return n, nil
}

func (s *socket) localAddr() netadr.Address {
	ua, _ := s.conn.LocalAddr().(*net.UDPAddr)
	return netadr.FromUDPAddr(ua)
}

func (s *socket) stats() SocketStats {
	return SocketStats{
		Received: s.received.Load(),
		Sent:     s.sent.Load(),
		Dropped:  s.dropped.Load(),
		BytesIn:  s.bytesIn.Load(),
		BytesOut: s.bytesOut.Load(),
	}
}

// readBackoff returns the pause after the given number of consecutive
// read errors.
func readBackoff(failures int) time.Duration {
	if failures < 1 {
		return 0
	}
	d := readErrorBaseDelay << min(failures-1, 16)
	return min(d, readErrorMaxDelay)
}

// close stops the reader and returns queued buffers to the pool.
func (s *socket) close() error {
	s.closeOnce.Do(func() { close(s.done) })
	err := s.conn.Close()
	s.wg.Wait()
	for {
		d, ok := s.poll()
		if !ok {
			break
		}
		_ = s.pool.Return(d.buf)
	}
	return err
}
