package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/bufpool"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/compress"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/log"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

// Transport errors.
var (
	ErrBindFailed      = errors.New("failed to bind socket")
	ErrClosed          = errors.New("transport closed")
	ErrSocketNotOpen   = errors.New("socket not open")
	ErrInvalidAddress  = errors.New("invalid destination address")
	ErrNoLoopback      = errors.New("role has no loopback peer")
	ErrLoopbackFull    = errors.New("loopback queue full")
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Defaults.
const (
	DefaultPortRetries     = 10
	DefaultQueueSize       = 512
	DefaultLoopbackSize    = 128
	DefaultCompressMinSize = 1024
)

// Config configures a Transport.
type Config struct {
	// BindIP is the local IPv4 address (empty for all interfaces).
	BindIP string

	// Ports per role. 0 binds an ephemeral port.
	ServerPort int
	ClientPort int
	HLTVPort   int

	// Roles lists the sockets OpenSockets binds.
	Roles []protocol.SocketRole

	// PortRetries is how many successive ports to try on bind failure.
	PortRetries int

	// QueueSize is the per-socket receive queue length.
	QueueSize int

	// Compression is the outbound codec; CodecNone disables it.
	Compression compress.Codec

	// CompressMinSize is the smallest payload considered for compression.
	CompressMinSize int

	// MaxDecompressedSize bounds the declared size of inbound payloads.
	MaxDecompressedSize int

	// Pool supplies packet buffers (default: a private pool).
	Pool *bufpool.Pool

	// Logger for operational logging (default: slog.Default()).
	Logger *slog.Logger

	// Protocol receives capture events (optional).
	Protocol log.Logger

	// Now overrides the clock (tests).
	Now func() time.Time
}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() Config {
	return Config{
		ServerPort:          protocol.DefaultServerPort,
		ClientPort:          protocol.DefaultClientPort,
		HLTVPort:            protocol.DefaultHLTVPort,
		Roles:               []protocol.SocketRole{protocol.SocketClient, protocol.SocketServer},
		PortRetries:         DefaultPortRetries,
		QueueSize:           DefaultQueueSize,
		CompressMinSize:     DefaultCompressMinSize,
		MaxDecompressedSize: protocol.MaxMessage,
	}
}

func (c Config) port(role protocol.SocketRole) int {
	switch role {
	case protocol.SocketServer:
		return c.ServerPort
	case protocol.SocketClient:
		return c.ClientPort
	case protocol.SocketHLTV:
		return c.HLTVPort
	default:
		return 0
	}
}

// Transport owns the sockets, loopback queues and split reassembly table.
// Receive and SendPacket must be called from one goroutine (the tick).
type Transport struct {
	config Config
	logger *slog.Logger
	plog   log.Logger
	pool   *bufpool.Pool
	now    func() time.Time

	sockets  [protocol.MaxSockets]*socket
	loopback [protocol.MaxSockets]chan datagram
	splits   *SplitTable

	// splitSeq numbers split sends that have no owning channel
	splitSeq int32

	multiplayer atomic.Bool
	closed      atomic.Bool
}

// New creates a Transport. Loopback works immediately; call OpenSockets to
// enable networking.
func New(config Config) *Transport {
	def := DefaultConfig()
	if config.Roles == nil {
		config.Roles = def.Roles
	}
	if config.PortRetries < 0 {
		config.PortRetries = 0
	}
	if config.QueueSize <= 0 {
		config.QueueSize = def.QueueSize
	}
	if config.CompressMinSize <= 0 {
		config.CompressMinSize = def.CompressMinSize
	}
	if config.MaxDecompressedSize <= 0 {
		config.MaxDecompressedSize = def.MaxDecompressedSize
	}
	if config.Pool == nil {
		config.Pool = bufpool.New()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	t := &Transport{
		config: config,
		logger: config.Logger,
		plog:   log.OrNoop(config.Protocol),
		pool:   config.Pool,
		now:    config.Now,
		splits: NewSplitTable(config.Pool, config.Logger),
	}
	t.loopback[protocol.SocketClient] = make(chan datagram, DefaultLoopbackSize)
	t.loopback[protocol.SocketServer] = make(chan datagram, DefaultLoopbackSize)
	return t
}

// OpenSockets binds every configured role. On failure all sockets are
// closed, multiplayer stays disabled and ErrBindFailed is returned; the
// loopback path keeps working.
func (t *Transport) OpenSockets() error {
	if t.closed.Load() {
		return ErrClosed
	}
	for _, role := range t.config.Roles {
		if role < 0 || role >= protocol.MaxSockets || t.sockets[role] != nil {
			continue
		}
		s, err := openSocket(role, t.config.BindIP, t.config.port(role), t.config.PortRetries, t.config.QueueSize, t.pool, t.logger)
		if err != nil {
			t.closeSockets()
			t.logger.Warn("unable to open sockets, multiplayer disabled", "role", role.String(), "error", err)
			return err
		}
		t.sockets[role] = s
		t.logger.Info("socket opened", "role", role.String(), "addr", s.localAddr().String())
	}
	t.multiplayer.Store(true)
	return nil
}

// IsMultiplayer reports whether UDP sockets are open.
func (t *Transport) IsMultiplayer() bool { return t.multiplayer.Load() }

// LocalAddr returns the bound address of a role.
func (t *Transport) LocalAddr(role protocol.SocketRole) (netadr.Address, bool) {
	if role < 0 || role >= protocol.MaxSockets || t.sockets[role] == nil {
		return netadr.Address{}, false
	}
	return t.sockets[role].localAddr(), true
}

// SocketStats returns the counters of a role.
func (t *Transport) SocketStats(role protocol.SocketRole) SocketStats {
	if role < 0 || role >= protocol.MaxSockets || t.sockets[role] == nil {
		return SocketStats{}
	}
	return t.sockets[role].stats()
}

// Splits exposes the reassembly table.
func (t *Transport) Splits() *SplitTable { return t.splits }

// Pool returns the buffer pool.
func (t *Transport) Pool() *bufpool.Pool { return t.pool }

// PurgeSplits drops stale split reassembly entries.
func (t *Transport) PurgeSplits() int {
	return t.splits.Purge(t.now())
}

// Close closes every socket and releases queued and partial buffers.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := t.closeSockets()
	for _, q := range t.loopback {
		if q == nil {
			continue
		}
	drain:
		for {
			select {
			case d := <-q:
				_ = t.pool.Return(d.buf)
			default:
				break drain
			}
		}
	}
	t.splits.Clear()
	return err
}

func (t *Transport) closeSockets() error {
	var firstErr error
	for i, s := range t.sockets {
		if s == nil {
			continue
		}
		if err := s.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		t.sockets[i] = nil
	}
	t.multiplayer.Store(false)
	return firstErr
}

// next polls the loopback queue first, then the socket.
func (t *Transport) next(role protocol.SocketRole) (datagram, bool) {
	if q := t.loopback[role]; q != nil {
		select {
		case d := <-q:
			return d, true
		default:
		}
	}
	if s := t.sockets[role]; s != nil {
		return s.poll()
	}
	return datagram{}, false
}

// Receive returns the next complete packet for role, or false when nothing
// is pending. Split fragments are absorbed until their packet completes and
// compressed packets are expanded. It never blocks.
func (t *Transport) Receive(role protocol.SocketRole) (*Packet, bool) {
	if role < 0 || role >= protocol.MaxSockets || t.closed.Load() {
		return nil, false
	}

	for {
		d, ok := t.next(role)
		if !ok {
			return nil, false
		}
		now := t.now()

		p := newPacket(t.pool, d.buf, d.n)
		p.From = d.from
		p.Role = role
		p.ReceivedAt = now

		if p.Size() < 4 {
			p.Release()
			continue
		}

		header := getInt32(p.Data)
		if header == protocol.SplitPacketHeader {
			if d.from.IsLoopback() {
				p.Release()
				continue
			}
			t.captureSplit(role, p)
			buf, n, done := t.splits.Process(role, p.From, p.Data, now)
			p.Release()
			if !done {
				continue
			}
			p = newPacket(t.pool, buf, n)
			p.From = d.from
			p.Role = role
			p.ReceivedAt = now
			if n < 4 {
				p.Release()
				continue
			}
			header = getInt32(p.Data)
		}

		codec := ""
		if header == protocol.CompressedHeader {
			c, ok := t.decompress(p)
			if !ok {
				p.Release()
				continue
			}
			codec = c.String()
		}

		t.capture(log.DirectionIn, role, p.From, &log.DatagramEvent{
			Size:           p.WireSize,
			PayloadSize:    p.Size(),
			Codec:          codec,
			Connectionless: p.Size() >= 4 && getInt32(p.Data) == protocol.ConnectionlessHeader,
		})
		return p, true
	}
}

// decompress expands a -3 packet in place, validating the declared size
// before allocating.
func (t *Transport) decompress(p *Packet) (compress.Codec, bool) {
	src := p.Data[4:]
	codec := compress.Detect(src)
	size, err := compress.ActualSize(src)
	if err != nil || size <= 0 || size > t.config.MaxDecompressedSize {
		t.logger.Warn("dropping compressed packet", "from", p.From.String(), "size", size, "error", err)
		return codec, false
	}
	buf := t.pool.Rent(size)
	n, err := compress.DecompressTo(buf, src)
	if err != nil {
		_ = t.pool.Return(buf)
		t.logger.Warn("dropping compressed packet", "from", p.From.String(), "error", err)
		return codec, false
	}
	p.replace(buf, n)
	return codec, true
}

// SendPacket sends data to a peer. Payloads above the routable limit of src
// (or protocol.MaxRoutable without a channel) are split. Loopback
// destinations bypass compression and splitting. Returns the bytes put on
// the wire.
func (t *Transport) SendPacket(src SplitSource, role protocol.SocketRole, to netadr.Address, data []byte) (int, error) {
	if t.closed.Load() {
		return 0, ErrClosed
	}
	if role < 0 || role >= protocol.MaxSockets {
		return 0, fmt.Errorf("%w: role %d", ErrSocketNotOpen, role)
	}
	if len(data) > protocol.MaxMessage {
		return 0, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(data))
	}
	if to.IsLoopback() {
		return t.sendLoopback(role, data)
	}

	s := t.sockets[role]
	if s == nil {
		return 0, fmt.Errorf("%w: %s", ErrSocketNotOpen, role)
	}
	addr := to.UDPAddr()
	if addr == nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAddress, to)
	}

	payload := data
	codec := ""
	if t.config.Compression != compress.CodecNone && len(data) >= t.config.CompressMinSize {
		if enc, ok := compress.Compress(t.config.Compression, data); ok {
			payload = make([]byte, 4+len(enc))
			putInt32(payload, protocol.CompressedHeader)
			copy(payload[4:], enc)
			codec = t.config.Compression.String()
		}
	}

	maxRoutable := protocol.MaxRoutable
	if src != nil {
		maxRoutable = clampRoutable(src.MaxRoutablePayload())
	}

	if len(payload) <= maxRoutable {
		n, err := s.write(addr, payload)
		if err != nil {
			return n, err
		}
		t.capture(log.DirectionOut, role, to, &log.DatagramEvent{Size: n, PayloadSize: len(data), Codec: codec})
		return n, nil
	}

	var seq int32
	if src != nil {
		seq = src.NextSplitSequence()
	} else {
		t.splitSeq++
		seq = t.splitSeq
	}

	frags, err := SplitDatagram(seq, maxRoutable-protocol.SplitHeaderBytes, payload)
	if err != nil {
		return 0, err
	}
	total := 0
	for i, frag := range frags {
		n, err := s.write(addr, frag)
		total += n
		if err != nil {
			return total, err
		}
		t.capture(log.DirectionOut, role, to, &log.DatagramEvent{
			Size:  n,
			Codec: codec,
			Split: &log.SplitInfo{Sequence: seq, Index: i, Count: len(frags), Size: maxRoutable - protocol.SplitHeaderBytes},
		})
	}
	return total, nil
}

func clampRoutable(n int) int {
	if n < protocol.MinSplitSize+protocol.SplitHeaderBytes {
		return protocol.MinSplitSize + protocol.SplitHeaderBytes
	}
	if n > protocol.MaxRoutable {
		return protocol.MaxRoutable
	}
	return n
}

// sendLoopback queues data for the opposite role of this process.
func (t *Transport) sendLoopback(role protocol.SocketRole, data []byte) (int, error) {
	var peer protocol.SocketRole
	switch role {
	case protocol.SocketClient:
		peer = protocol.SocketServer
	case protocol.SocketServer:
		peer = protocol.SocketClient
	default:
		return 0, fmt.Errorf("%w: %s", ErrNoLoopback, role)
	}

	buf := t.pool.Rent(len(data))
	copy(buf, data)
	select {
	case t.loopback[peer] <- datagram{from: netadr.Loopback, buf: buf, n: len(data)}:
		return len(data), nil
	default:
		_ = t.pool.Return(buf)
		return 0, ErrLoopbackFull
	}
}

func (t *Transport) captureSplit(role protocol.SocketRole, p *Packet) {
	h, ok := ParseSplitHeader(p.Data)
	if !ok {
		return
	}
	t.capture(log.DirectionIn, role, p.From, &log.DatagramEvent{
		Size:  p.WireSize,
		Split: &log.SplitInfo{Sequence: h.Sequence, Index: h.Index, Count: h.Count, Size: h.SplitSize},
	})
}

func (t *Transport) capture(dir log.Direction, role protocol.SocketRole, addr netadr.Address, ev *log.DatagramEvent) {
	if _, noop := t.plog.(log.NoopLogger); noop {
		return
	}
	t.plog.Log(log.Event{
		Timestamp:  t.now(),
		Direction:  dir,
		Layer:      log.LayerTransport,
		Category:   log.CategoryPacket,
		Socket:     SocketToLog(role),
		RemoteAddr: addr.String(),
		Datagram:   ev,
	})
}

// SocketToLog maps a socket role to its capture representation.
func SocketToLog(role protocol.SocketRole) log.Socket {
	switch role {
	case protocol.SocketClient:
		return log.SocketClient
	case protocol.SocketServer:
		return log.SocketServer
	case protocol.SocketHLTV:
		return log.SocketHLTV
	default:
		return log.SocketUnset
	}
}
