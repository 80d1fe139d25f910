package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/bufpool"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

// Split errors.
var (
	ErrSplitSize         = errors.New("split size out of range")
	ErrTooManyFragments  = errors.New("too many split fragments")
	ErrSplitPayloadEmpty = errors.New("empty split payload")
)

// SplitHeader is the header carried by every split fragment.
type SplitHeader struct {
	Sequence  int32
	Index     int
	Count     int
	SplitSize int
}

// ParseSplitHeader decodes the 12-byte split header. ok is false if data is
// too short or the id is not the split id.
func ParseSplitHeader(data []byte) (h SplitHeader, ok bool) {
	if len(data) < protocol.SplitHeaderBytes {
		return h, false
	}
	if getInt32(data) != protocol.SplitPacketHeader {
		return h, false
	}
	h.Sequence = getInt32(data[4:])
	packetID := binary.LittleEndian.Uint16(data[8:])
	h.Index = int(packetID >> 8)
	h.Count = int(packetID & 0xFF)
	h.SplitSize = int(binary.LittleEndian.Uint16(data[10:]))
	return h, true
}

// SplitDatagram cuts data into split fragments of at most splitSize payload
// bytes, each prefixed with a split header.
func SplitDatagram(sequence int32, splitSize int, data []byte) ([][]byte, error) {
	if splitSize < protocol.MinSplitSize || splitSize > protocol.MaxSplitSize {
		return nil, fmt.Errorf("%w: %d", ErrSplitSize, splitSize)
	}
	if len(data) == 0 {
		return nil, ErrSplitPayloadEmpty
	}
	count := (len(data) + splitSize - 1) / splitSize
	if count > protocol.MaxSplitCount {
		return nil, fmt.Errorf("%w: %d", ErrTooManyFragments, count)
	}

	frags := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		chunk := data[i*splitSize:]
		if len(chunk) > splitSize {
			chunk = chunk[:splitSize]
		}
		frag := make([]byte, protocol.SplitHeaderBytes+len(chunk))
		putInt32(frag, protocol.SplitPacketHeader)
		putInt32(frag[4:], sequence)
		binary.LittleEndian.PutUint16(frag[8:], uint16(i<<8|count))
		binary.LittleEndian.PutUint16(frag[10:], uint16(splitSize))
		copy(frag[protocol.SplitHeaderBytes:], chunk)
		frags = append(frags, frag)
	}
	return frags, nil
}

func putInt32(b []byte, v int32) {
	binary.LittleEndian.PutUint32(b, uint32(v))
}

func getInt32(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}

type splitKey struct {
	role protocol.SocketRole
	addr netadr.Address
}

// SplitEntry is the reassembly state for one (socket, peer) pair.
type SplitEntry struct {
	From         netadr.Address
	Sequence     int32
	ExpectedSize int
	TotalSize    int
	Count        int
	Remaining    int

	received []bool
	buf      []byte
	lastSeen time.Time
}

// SplitStats counts reassembly outcomes.
type SplitStats struct {
	Completed uint64
	Rejected  uint64
	Duplicate uint64
	Evicted   uint64
	Purged    uint64
}

// SplitTable reassembles inbound split packets. It is owned by the tick
// thread and is not safe for concurrent use.
type SplitTable struct {
	pool    *bufpool.Pool
	logger  *slog.Logger
	entries map[splitKey]*SplitEntry

	// order holds keys in creation order for FIFO eviction
	order []splitKey

	maxEntries int
	timeout    time.Duration
	stats      SplitStats
}

// NewSplitTable creates a table bounded to protocol.MaxSplitEntries.
func NewSplitTable(pool *bufpool.Pool, logger *slog.Logger) *SplitTable {
	if pool == nil {
		pool = bufpool.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SplitTable{
		pool:       pool,
		logger:     logger,
		entries:    make(map[splitKey]*SplitEntry),
		maxEntries: protocol.MaxSplitEntries,
		timeout:    protocol.SplitEntryTimeout,
	}
}

// Len returns the number of tracked entries.
func (t *SplitTable) Len() int { return len(t.entries) }

// Stats returns the reassembly counters.
func (t *SplitTable) Stats() SplitStats { return t.stats }

// Entry returns the entry for a peer, for diagnostics.
func (t *SplitTable) Entry(role protocol.SocketRole, from netadr.Address) (SplitEntry, bool) {
	e, ok := t.entries[splitKey{role, from.Key()}]
	if !ok {
		return SplitEntry{}, false
	}
	return *e, true
}

func (t *SplitTable) reject(from netadr.Address, reason string, args ...any) {
	t.stats.Rejected++
	t.logger.Warn("dropping split fragment", append([]any{"from", from.String(), "reason", reason}, args...)...)
}

// Process consumes one split datagram. When it completes a packet, the
// reassembled payload is returned in a pooled buffer owned by the caller.
func (t *SplitTable) Process(role protocol.SocketRole, from netadr.Address, data []byte, now time.Time) (buf []byte, n int, done bool) {
	h, ok := ParseSplitHeader(data)
	if !ok {
		t.reject(from, "short header")
		return nil, 0, false
	}
	if h.SplitSize < protocol.MinSplitSize || h.SplitSize > protocol.MaxSplitSize {
		t.reject(from, "split size out of range", "size", h.SplitSize)
		return nil, 0, false
	}
	if h.Count == 0 || h.Index >= h.Count || h.Count > protocol.MaxSplitFragments {
		t.reject(from, "bad index", "index", h.Index, "count", h.Count)
		return nil, 0, false
	}
	if (h.Count-1)*h.SplitSize >= protocol.MaxMessage {
		t.reject(from, "declared size too large", "count", h.Count, "size", h.SplitSize)
		return nil, 0, false
	}

	payload := data[protocol.SplitHeaderBytes:]
	last := h.Index == h.Count-1
	if (!last && len(payload) != h.SplitSize) || (last && (len(payload) == 0 || len(payload) > h.SplitSize)) {
		t.reject(from, "fragment length mismatch", "len", len(payload), "size", h.SplitSize)
		return nil, 0, false
	}

	key := splitKey{role, from.Key()}
	e, ok := t.entries[key]
	if !ok {
		if len(t.entries) >= t.maxEntries {
			t.evictOldest()
		}
		e = &SplitEntry{From: from, Sequence: -1}
		t.entries[key] = e
		t.order = append(t.order, key)
	}

	if e.Sequence != h.Sequence || e.buf == nil {
		t.resetEntry(e, h)
	} else if e.Count != h.Count || e.ExpectedSize != h.SplitSize {
		t.reject(from, "inconsistent fragment", "seq", h.Sequence)
		return nil, 0, false
	}
	e.lastSeen = now

	if e.received[h.Index] {
		t.stats.Duplicate++
		t.logger.Debug("duplicate split fragment", "from", from.String(), "seq", h.Sequence, "index", h.Index)
		return nil, 0, false
	}

	offset := h.Index * h.SplitSize
	copy(e.buf[offset:offset+len(payload)], payload)
	e.received[h.Index] = true
	e.Remaining--
	if last {
		e.TotalSize = offset + len(payload)
	}

	if e.Remaining > 0 {
		return nil, 0, false
	}

	buf, n = e.buf, e.TotalSize
	e.buf = nil
	t.remove(key)
	t.stats.Completed++
	return buf, n, true
}

func (t *SplitTable) resetEntry(e *SplitEntry, h SplitHeader) {
	if e.buf != nil {
		_ = t.pool.Return(e.buf)
	}
	e.Sequence = h.Sequence
	e.Count = h.Count
	e.Remaining = h.Count
	e.ExpectedSize = h.SplitSize
	e.TotalSize = 0
	e.received = make([]bool, h.Count)
	e.buf = t.pool.Rent(h.Count * h.SplitSize)
}

func (t *SplitTable) remove(key splitKey) {
	e, ok := t.entries[key]
	if !ok {
		return
	}
	if e.buf != nil {
		_ = t.pool.Return(e.buf)
		e.buf = nil
	}
	delete(t.entries, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *SplitTable) evictOldest() {
	if len(t.order) == 0 {
		return
	}
	t.stats.Evicted++
	t.remove(t.order[0])
}

// Purge drops entries idle for longer than the staleness timeout and
// returns how many were removed.
func (t *SplitTable) Purge(now time.Time) int {
	var stale []splitKey
	for _, k := range t.order {
		if now.Sub(t.entries[k].lastSeen) > t.timeout {
			stale = append(stale, k)
		}
	}
	for _, k := range stale {
		t.remove(k)
	}
	t.stats.Purged += uint64(len(stale))
	return len(stale)
}

// Clear releases every entry.
func (t *SplitTable) Clear() {
	for len(t.order) > 0 {
		t.remove(t.order[0])
	}
}
