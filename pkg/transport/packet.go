package transport

import (
	"time"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/bitbuf"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/bufpool"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

// Packet is one received datagram after reassembly and decompression.
// Data is backed by a pooled buffer; call Release once done with it.
type Packet struct {
	From       netadr.Address
	Role       protocol.SocketRole
	Data       []byte
	WireSize   int
	ReceivedAt time.Time

	// Reader is positioned at the start of Data.
	Reader *bitbuf.Reader

	pool *bufpool.Pool
	buf  []byte
}

func newPacket(pool *bufpool.Pool, buf []byte, n int) *Packet {
	p := &Packet{
		Data:     buf[:n],
		WireSize: n,
		pool:     pool,
		buf:      buf,
	}
	p.Reader = bitbuf.NewReader(p.Data)
	return p
}

// Size returns the payload size.
func (p *Packet) Size() int { return len(p.Data) }

// replace swaps the backing buffer, returning the old one to the pool.
func (p *Packet) replace(buf []byte, n int) {
	if p.buf != nil && p.pool != nil {
		_ = p.pool.Return(p.buf)
	}
	p.buf = buf
	p.Data = buf[:n]
	p.Reader = bitbuf.NewReader(p.Data)
}

// Release returns the backing buffer to the pool. Data and Reader must not
// be used afterwards. Calling Release more than once is a no-op.
func (p *Packet) Release() {
	if p.buf == nil {
		return
	}
	if p.pool != nil {
		_ = p.pool.Return(p.buf)
	}
	p.buf = nil
	p.Data = nil
	p.Reader = bitbuf.NewReader(nil)
}

// NewPacket wraps data in an unpooled Packet. Used by tests and by the
// loopback path of callers that feed packets directly to a channel.
func NewPacket(from netadr.Address, data []byte, at time.Time) *Packet {
	return &Packet{
		From:       from,
		Data:       data,
		WireSize:   len(data),
		ReceivedAt: at,
		Reader:     bitbuf.NewReader(data),
	}
}
