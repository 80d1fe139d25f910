package transport

import (
	"bytes"
	"math/rand"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/bufpool"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

var peerA = netadr.FromAddrPort(netip.MustParseAddrPort("10.0.0.1:27005"))

func payload(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(b)
	return b
}

func TestSplitDatagram(t *testing.T) {
	data := payload(4000)
	frags, err := SplitDatagram(5, protocol.MaxSplitSize, data)
	require.NoError(t, err)
	require.Len(t, frags, 4)

	var joined []byte
	for i, f := range frags {
		h, ok := ParseSplitHeader(f)
		require.True(t, ok)
		assert.Equal(t, int32(5), h.Sequence)
		assert.Equal(t, i, h.Index)
		assert.Equal(t, 4, h.Count)
		assert.Equal(t, protocol.MaxSplitSize, h.SplitSize)
		assert.LessOrEqual(t, len(f), protocol.MaxRoutable)
		joined = append(joined, f[protocol.SplitHeaderBytes:]...)
	}
	assert.Equal(t, data, joined)
}

func TestSplitDatagramErrors(t *testing.T) {
	_, err := SplitDatagram(1, protocol.MinSplitSize-1, payload(10))
	assert.ErrorIs(t, err, ErrSplitSize)

	_, err = SplitDatagram(1, protocol.MaxSplitSize, nil)
	assert.ErrorIs(t, err, ErrSplitPayloadEmpty)

	_, err = SplitDatagram(1, protocol.MinSplitSize, payload(protocol.MinSplitSize*256))
	assert.ErrorIs(t, err, ErrTooManyFragments)
}

func TestSplitTableReassemblesOutOfOrder(t *testing.T) {
	pool := bufpool.New()
	table := NewSplitTable(pool, nil)
	now := time.Unix(100, 0)

	data := payload(5000)
	frags, err := SplitDatagram(9, 1000, data)
	require.NoError(t, err)

	order := []int{3, 0, 4, 1, 2}
	for i, idx := range order {
		buf, n, done := table.Process(protocol.SocketServer, peerA, frags[idx], now)
		if i < len(order)-1 {
			require.False(t, done, "completed early at fragment %d", idx)
			continue
		}
		require.True(t, done)
		assert.Equal(t, data, buf[:n])
		require.NoError(t, pool.Return(buf))
	}
	assert.Zero(t, table.Len())
	assert.Zero(t, pool.Outstanding())
	assert.Equal(t, uint64(1), table.Stats().Completed)
}

func TestSplitTableDuplicateFragment(t *testing.T) {
	table := NewSplitTable(nil, nil)
	frags, err := SplitDatagram(1, 600, payload(1500))
	require.NoError(t, err)

	now := time.Unix(0, 0)
	_, _, done := table.Process(protocol.SocketClient, peerA, frags[0], now)
	require.False(t, done)
	_, _, done = table.Process(protocol.SocketClient, peerA, frags[0], now)
	require.False(t, done)
	assert.Equal(t, uint64(1), table.Stats().Duplicate)

	e, ok := table.Entry(protocol.SocketClient, peerA)
	require.True(t, ok)
	assert.Equal(t, 2, e.Remaining)
}

func TestSplitTableNewSequenceResets(t *testing.T) {
	pool := bufpool.New()
	table := NewSplitTable(pool, nil)
	now := time.Unix(0, 0)

	old, _ := SplitDatagram(1, 600, payload(1500))
	fresh, _ := SplitDatagram(2, 600, payload(1300))

	table.Process(protocol.SocketServer, peerA, old[0], now)
	table.Process(protocol.SocketServer, peerA, old[1], now)
	table.Process(protocol.SocketServer, peerA, fresh[0], now)
	table.Process(protocol.SocketServer, peerA, fresh[1], now)
	buf, n, done := table.Process(protocol.SocketServer, peerA, fresh[2], now)
	require.True(t, done)
	assert.Equal(t, payload(1300), buf[:n])
	require.NoError(t, pool.Return(buf))
	assert.Zero(t, pool.Outstanding())
}

func TestSplitTableRejectsMalformed(t *testing.T) {
	good, err := SplitDatagram(3, 600, payload(1500))
	require.NoError(t, err)

	mutate := func(f func(b []byte) []byte) []byte {
		c := append([]byte(nil), good[0]...)
		return f(c)
	}

	tests := []struct {
		name string
		frag []byte
	}{
		{"short", good[0][:8]},
		{"split size too small", mutate(func(b []byte) []byte {
			b[10], b[11] = 0x10, 0x00
			return b
		})},
		{"split size too large", mutate(func(b []byte) []byte {
			b[10], b[11] = 0xFF, 0x0F
			return b
		})},
		{"index beyond count", mutate(func(b []byte) []byte {
			b[8], b[9] = 3, 5 // count 3, index 5
			return b
		})},
		{"zero count", mutate(func(b []byte) []byte {
			b[8], b[9] = 0, 0
			return b
		})},
		{"truncated middle fragment", good[1][:len(good[1])-1]},
		{"oversized last fragment", append(append([]byte(nil), good[2]...), make([]byte, 600)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := bufpool.New()
			table := NewSplitTable(pool, nil)
			_, _, done := table.Process(protocol.SocketServer, peerA, tt.frag, time.Unix(0, 0))
			assert.False(t, done)
			assert.Equal(t, uint64(1), table.Stats().Rejected)
			assert.Zero(t, pool.Outstanding())
		})
	}
}

func TestSplitTableRandomizedHeaders(t *testing.T) {
	pool := bufpool.New()
	table := NewSplitTable(pool, nil)
	rng := rand.New(rand.NewSource(42))
	now := time.Unix(0, 0)

	for i := 0; i < 2000; i++ {
		frag := make([]byte, protocol.SplitHeaderBytes+rng.Intn(protocol.MaxSplitSize+20))
		rng.Read(frag)
		putInt32(frag, protocol.SplitPacketHeader)
		from := netadr.FromAddrPort(netip.AddrPortFrom(netip.AddrFrom4([4]byte{10, 0, 0, byte(rng.Intn(4))}), 1))
		buf, _, done := table.Process(protocol.SocketServer, from, frag, now)
		if done {
			require.NoError(t, pool.Return(buf))
		}
	}
	table.Clear()
	assert.Zero(t, pool.Outstanding())
}

func TestSplitTableFIFOEviction(t *testing.T) {
	pool := bufpool.New()
	table := NewSplitTable(pool, nil)
	now := time.Unix(0, 0)

	peer := func(i int) netadr.Address {
		return netadr.FromAddrPort(netip.AddrPortFrom(netip.AddrFrom4([4]byte{10, 1, byte(i >> 8), byte(i)}), 27005))
	}

	frags, err := SplitDatagram(1, 600, payload(1500))
	require.NoError(t, err)

	for i := 0; i < protocol.MaxSplitEntries; i++ {
		table.Process(protocol.SocketServer, peer(i), frags[0], now)
	}
	require.Equal(t, protocol.MaxSplitEntries, table.Len())

	// touching the oldest entry does not save it under FIFO
	table.Process(protocol.SocketServer, peer(0), frags[1], now)
	table.Process(protocol.SocketServer, peer(protocol.MaxSplitEntries), frags[0], now)

	assert.Equal(t, protocol.MaxSplitEntries, table.Len())
	_, ok := table.Entry(protocol.SocketServer, peer(0))
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = table.Entry(protocol.SocketServer, peer(1))
	assert.True(t, ok)
	assert.Equal(t, uint64(1), table.Stats().Evicted)

	table.Clear()
	assert.Zero(t, pool.Outstanding())
}

func TestSplitTablePurge(t *testing.T) {
	pool := bufpool.New()
	table := NewSplitTable(pool, nil)
	start := time.Unix(1000, 0)

	frags, _ := SplitDatagram(1, 600, payload(1500))
	peerB := peerA.WithPort(1)
	table.Process(protocol.SocketServer, peerA, frags[0], start)
	table.Process(protocol.SocketServer, peerB, frags[0], start.Add(time.Second))

	assert.Zero(t, table.Purge(start.Add(protocol.SplitEntryTimeout)))
	assert.Equal(t, 1, table.Purge(start.Add(protocol.SplitEntryTimeout+time.Millisecond)))
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, 1, table.Purge(start.Add(time.Hour)))
	assert.Zero(t, pool.Outstanding())
}

func TestParseSplitHeaderWrongID(t *testing.T) {
	b := bytes.Repeat([]byte{0xFF}, protocol.SplitHeaderBytes)
	_, ok := ParseSplitHeader(b)
	assert.False(t, ok)
}
