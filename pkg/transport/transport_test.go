package transport

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/compress"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/log"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BindIP = "127.0.0.1"
	cfg.ServerPort = 0
	cfg.ClientPort = 0
	return cfg
}

func openPair(t *testing.T, cfg Config) (*Transport, netadr.Address) {
	t.Helper()
	tr := New(cfg)
	require.NoError(t, tr.OpenSockets())
	t.Cleanup(func() { tr.Close() })

	server, ok := tr.LocalAddr(protocol.SocketServer)
	require.True(t, ok)
	return tr, server
}

// waitPacket polls Receive until a packet arrives or the deadline passes.
func waitPacket(t *testing.T, tr *Transport, role protocol.SocketRole) *Packet {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p, ok := tr.Receive(role); ok {
			return p
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for packet")
	return nil
}

type fixedSource struct {
	seq      int32
	routable int
}

func (f *fixedSource) NextSplitSequence() int32 { f.seq++; return f.seq }
func (f *fixedSource) MaxRoutablePayload() int  { return f.routable }

func TestLoopback(t *testing.T) {
	tr := New(DefaultConfig())
	defer tr.Close()

	n, err := tr.SendPacket(nil, protocol.SocketClient, netadr.Loopback, []byte("hello server"))
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	p, ok := tr.Receive(protocol.SocketServer)
	require.True(t, ok)
	assert.Equal(t, []byte("hello server"), p.Data)
	assert.True(t, p.From.IsLoopback())
	assert.Equal(t, protocol.SocketServer, p.Role)
	p.Release()
	p.Release()

	_, ok = tr.Receive(protocol.SocketClient)
	assert.False(t, ok, "client queue must be empty")

	_, err = tr.SendPacket(nil, protocol.SocketHLTV, netadr.Loopback, []byte("x"))
	assert.ErrorIs(t, err, ErrNoLoopback)
	assert.Zero(t, tr.Pool().Outstanding())
}

func TestLoopbackFull(t *testing.T) {
	tr := New(DefaultConfig())
	defer tr.Close()

	for i := 0; i < DefaultLoopbackSize; i++ {
		_, err := tr.SendPacket(nil, protocol.SocketServer, netadr.Loopback, []byte{1, 2, 3, 4})
		require.NoError(t, err)
	}
	_, err := tr.SendPacket(nil, protocol.SocketServer, netadr.Loopback, []byte{1, 2, 3, 4})
	assert.ErrorIs(t, err, ErrLoopbackFull)

	require.NoError(t, tr.Close())
	assert.Zero(t, tr.Pool().Outstanding(), "Close must release queued buffers")
}

func TestUDPSmallPacket(t *testing.T) {
	tr, server := openPair(t, testConfig())

	data := []byte{0x01, 0x00, 0x00, 0x00, 0xAA, 0xBB}
	n, err := tr.SendPacket(nil, protocol.SocketClient, server, data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	p := waitPacket(t, tr, protocol.SocketServer)
	defer p.Release()
	assert.Equal(t, data, p.Data)
	assert.Equal(t, len(data), p.WireSize)

	client, _ := tr.LocalAddr(protocol.SocketClient)
	assert.True(t, p.From.Equal(client))
}

func TestUDPSplitPacket(t *testing.T) {
	tr, server := openPair(t, testConfig())

	data := make([]byte, 4000)
	for i := range data {
		data[i] = byte(i * 7)
	}
	// keep the first int32 away from the special header ids
	binary.LittleEndian.PutUint32(data, 1)

	src := &fixedSource{routable: protocol.MaxRoutable}
	_, err := tr.SendPacket(src, protocol.SocketClient, server, data)
	require.NoError(t, err)

	want := (4000 + protocol.MaxSplitSize - 1) / protocol.MaxSplitSize
	assert.Equal(t, 4, want)
	assert.Equal(t, uint64(want), tr.SocketStats(protocol.SocketClient).Sent)
	assert.Equal(t, int32(1), src.seq)

	p := waitPacket(t, tr, protocol.SocketServer)
	defer p.Release()
	assert.Equal(t, data, p.Data)
	assert.Zero(t, tr.Splits().Len())
}

func TestUDPSplitSmallerRoutable(t *testing.T) {
	tr, server := openPair(t, testConfig())

	data := bytes.Repeat([]byte{1, 2, 3, 4, 5}, 600)
	src := &fixedSource{routable: 700}
	_, err := tr.SendPacket(src, protocol.SocketClient, server, data)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), tr.SocketStats(protocol.SocketClient).Sent) // ceil(3000 / 688)

	p := waitPacket(t, tr, protocol.SocketServer)
	defer p.Release()
	assert.Equal(t, data, p.Data)
}

func TestUDPCompression(t *testing.T) {
	for _, codec := range []compress.Codec{compress.CodecLZSS, compress.CodecSnappy} {
		t.Run(codec.String(), func(t *testing.T) {
			cfg := testConfig()
			cfg.Compression = codec
			rec := &recorder{}
			cfg.Protocol = rec
			tr, server := openPair(t, cfg)

			data := bytes.Repeat([]byte("snapshot entity delta "), 400)
			binary.LittleEndian.PutUint32(data, 7)
			n, err := tr.SendPacket(nil, protocol.SocketClient, server, data)
			require.NoError(t, err)
			assert.Less(t, n, len(data))

			p := waitPacket(t, tr, protocol.SocketServer)
			defer p.Release()
			assert.Equal(t, data, p.Data)

			var sawIn bool
			for _, e := range rec.events {
				if e.Direction == log.DirectionIn && e.Datagram != nil && e.Datagram.Codec == codec.String() {
					sawIn = true
					assert.Equal(t, len(data), e.Datagram.PayloadSize)
				}
			}
			assert.True(t, sawIn, "expected inbound capture with codec")
		})
	}
}

type recorder struct{ events []log.Event }

func (r *recorder) Log(e log.Event) { r.events = append(r.events, e) }

func rawSend(t *testing.T, to netadr.Address, data []byte) {
	t.Helper()
	conn, err := net.DialUDP("udp4", nil, to.UDPAddr())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(data)
	require.NoError(t, err)
}

func TestDecompressionBombDropped(t *testing.T) {
	tr, server := openPair(t, testConfig())

	bomb := make([]byte, 4+8+4)
	putInt32(bomb, protocol.CompressedHeader)
	binary.LittleEndian.PutUint32(bomb[4:], compress.LZSSID)
	binary.LittleEndian.PutUint32(bomb[8:], 1<<30)
	rawSend(t, server, bomb)

	// follow with a valid packet so the test knows the bomb was consumed
	rawSend(t, server, []byte{9, 0, 0, 0, 1})
	p := waitPacket(t, tr, protocol.SocketServer)
	defer p.Release()
	assert.Equal(t, []byte{9, 0, 0, 0, 1}, p.Data)
}

func TestShortDatagramDropped(t *testing.T) {
	tr, server := openPair(t, testConfig())
	rawSend(t, server, []byte{1, 2})
	rawSend(t, server, []byte{5, 0, 0, 0})
	p := waitPacket(t, tr, protocol.SocketServer)
	defer p.Release()
	assert.Equal(t, []byte{5, 0, 0, 0}, p.Data)
}

func TestBindFailureDisablesMultiplayer(t *testing.T) {
	taken, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer taken.Close()

	cfg := testConfig()
	cfg.ServerPort = taken.LocalAddr().(*net.UDPAddr).Port
	cfg.PortRetries = 0

	tr := New(cfg)
	defer tr.Close()
	err = tr.OpenSockets()
	assert.ErrorIs(t, err, ErrBindFailed)
	assert.False(t, tr.IsMultiplayer())

	_, ok := tr.LocalAddr(protocol.SocketClient)
	assert.False(t, ok, "partially opened sockets must be closed")

	// loopback still works
	_, err = tr.SendPacket(nil, protocol.SocketServer, netadr.Loopback, []byte{1, 2, 3, 4})
	assert.NoError(t, err)
}

func TestBindRetryNextPort(t *testing.T) {
	taken, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer taken.Close()
	port := taken.LocalAddr().(*net.UDPAddr).Port
	if port >= 0xFFFF-DefaultPortRetries {
		t.Skip("ephemeral port too close to the top of the range")
	}

	cfg := testConfig()
	cfg.Roles = []protocol.SocketRole{protocol.SocketServer}
	cfg.ServerPort = port

	tr := New(cfg)
	defer tr.Close()
	if err := tr.OpenSockets(); err != nil {
		t.Skipf("no free port near %d: %v", port, err)
	}
	addr, ok := tr.LocalAddr(protocol.SocketServer)
	require.True(t, ok)
	assert.Greater(t, int(addr.Port()), port)
}

func TestSendErrors(t *testing.T) {
	tr := New(DefaultConfig())

	_, err := tr.SendPacket(nil, protocol.SocketServer, netadr.FromUDPAddr(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}), []byte{1})
	assert.ErrorIs(t, err, ErrSocketNotOpen)

	_, err = tr.SendPacket(nil, protocol.SocketClient, netadr.Loopback, make([]byte, protocol.MaxMessage+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	require.NoError(t, tr.Close())
	_, err = tr.SendPacket(nil, protocol.SocketClient, netadr.Loopback, []byte{1})
	assert.ErrorIs(t, err, ErrClosed)
	_, ok := tr.Receive(protocol.SocketServer)
	assert.False(t, ok)
}

func TestPurgeSplitsUsesClock(t *testing.T) {
	now := time.Unix(5000, 0)
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return now }
	tr := New(cfg)
	defer tr.Close()

	frags, err := SplitDatagram(1, 600, make([]byte, 1500))
	require.NoError(t, err)
	tr.Splits().Process(protocol.SocketServer, peerA, frags[0], now)
	assert.Zero(t, tr.PurgeSplits())

	now = now.Add(3 * time.Second)
	assert.Equal(t, 1, tr.PurgeSplits())
}
