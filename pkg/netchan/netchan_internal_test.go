package netchan

import (
	"hash/crc32"
	"log/slog"
	"math/rand/v2"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/bitbuf"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/transport"
)

type discardSender struct{}

func (discardSender) SendPacket(_ transport.SplitSource, _ protocol.SocketRole, _ netadr.Address, data []byte) (int, error) {
	return len(data), nil
}

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	ch, err := New(Config{
		Remote: netadr.FromAddrPort(netip.MustParseAddrPort("10.0.0.2:27015")),
		Sender: discardSender{},
		Logger: slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	return ch
}

func TestChecksumFolding(t *testing.T) {
	data := []byte("reliable payload")
	crc := crc32.ChecksumIEEE(data)
	assert.Equal(t, uint16(crc)^uint16(crc>>16), Checksum(data))
	assert.Equal(t, uint16(0), Checksum(nil))

	flipped := append([]byte(nil), data...)
	flipped[3] ^= 0x10
	assert.NotEqual(t, Checksum(data), Checksum(flipped))
}

func TestLastFragmentRest(t *testing.T) {
	tests := []struct {
		bytes int
		want  int
	}{
		{1, 255},
		{40, 216},
		{256, 0},
		{257, 255},
		{512, 0},
		{10000, 240},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, lastFragmentRest(tt.bytes), "bytes=%d", tt.bytes)
	}
}

func TestValidTransferName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"maps/de_dust.bsp", true},
		{"maps/graphs/de_dust.ain", true},
		{"Maps/De_Dust.NAV", true},
		{"materials/logo.vtf", true},
		{"sound/ui/click.wav", true},
		{"download/user_custom/ab/cd.dat", true},
		{"", false},
		{"/etc/passwd.txt", false},
		{"\\server\\share.txt", false},
		{"c:/windows/x.txt", false},
		{"a/../b.txt", false},
		{"..\\b.txt", false},
		{"cfg/autoexec.cfg", false},
		{"lua/init.txt", false},
		{"addons/x.vpk", false},
		{"maps/readme.txt", false},
		{"download/evil.exe", false},
		{"scripts/x.txt", false},
		{"plugin.dll", false},
		{"noextension", false},
		{"file.toolong", false},
		{"file.a", false},
		{"dir/", false},
		{"tab\tname.txt", false},
		{"bad\x01name.txt", false},
		{strings.Repeat("a/", maxPathDepth) + "x.txt", false},
		{strings.Repeat("a", protocol.MaxOSPath) + ".txt", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidTransferName(tt.name))
		})
	}
}

func TestWindowFragments(t *testing.T) {
	ch := newTestChannel(t)
	assert.Equal(t, protocol.DefaultReliableWindow/protocol.FragmentSize, ch.windowFragments())

	ch.SetMaxReliablePayload(2048)
	assert.Equal(t, 8, ch.windowFragments())

	ch.SetMaxReliablePayload(1)
	assert.Equal(t, 1, ch.windowFragments())

	ch.SetMaxReliablePayload(protocol.MaxPayload)
	assert.Equal(t, (protocol.MaxPayload-sendHeadroom)/protocol.FragmentSize, ch.windowFragments())
}

// fragmentChunk encodes one multi-fragment window as a sender would,
// followed by num fragments of payload.
func fragmentChunk(start, num, declared int) *bitbuf.Reader {
	w := bitbuf.NewWriter(16 + num*protocol.FragmentSize)
	w.WriteOneBit(true)
	w.WriteUBits(uint32(start), protocol.FragmentStartBits)
	w.WriteUBits(uint32(num), protocol.FragmentCountBits)
	if start == 0 {
		w.WriteOneBit(false) // not a file
		w.WriteOneBit(false) // not compressed
		w.WriteUBits(uint32(declared), protocol.MaxFileSizeBits)
	}
	w.WriteBytes(make([]byte, num*protocol.FragmentSize))
	return bitbuf.NewReaderBits(w.Bytes(), w.BitsWritten())
}

func TestReadSubChannelDataBounds(t *testing.T) {
	ch := newTestChannel(t)
	rng := rand.New(rand.NewPCG(5, 8))
	stream := int(protocol.StreamNormal)

	for i := range 500 {
		declared := 1 + rng.IntN(40*protocol.FragmentSize)
		total := protocol.BytesToFragments(declared)
		require.True(t, ch.readSubChannelData(fragmentChunk(0, 1, declared), stream), "case %d: header", i)

		start := 1 + rng.IntN(total+8)
		num := rng.IntN(24)
		want := num > 0 && start+num <= total
		crashes := ch.crashes

		got := ch.readSubChannelData(fragmentChunk(start, num, 0), stream)
		require.Equal(t, want, got, "case %d: %d+%d of %d fragments, %d bytes", i, start, num, total, declared)
		if want {
			assert.Equal(t, crashes, ch.crashes)
			assert.NotNil(t, ch.receive[stream].buf)
		} else {
			assert.Equal(t, crashes+1, ch.crashes)
			assert.Nil(t, ch.receive[stream].buf)
		}
	}

	for _, declared := range []int{0, protocol.MaxPayload + 1, protocol.MaxFileSize} {
		assert.False(t, ch.readSubChannelData(fragmentChunk(0, 1, declared), stream), "declared %d", declared)
		assert.Nil(t, ch.receive[stream].buf)
	}

	// a window past the header without one is ignored rather than fatal
	crashes := ch.crashes
	assert.False(t, ch.readSubChannelData(fragmentChunk(2, 1, 0), stream))
	assert.Equal(t, crashes, ch.crashes)
}

func TestFlowLatency(t *testing.T) {
	ch := newTestChannel(t)
	t0 := time.Unix(1000, 0)

	ch.flowNewPacket(FlowOutgoing, 1, 0, 0, 0, 100, t0)
	ch.flowNewPacket(FlowIncoming, 1, 1, 0, 0, 100, t0.Add(50*time.Millisecond))
	ch.flowUpdate(FlowOutgoing, 0, t0.Add(50*time.Millisecond))

	assert.Equal(t, 50*time.Millisecond, ch.Latency(FlowOutgoing))
	assert.Equal(t, int64(1), ch.TotalPackets(FlowOutgoing))
	assert.Equal(t, int64(1), ch.TotalPackets(FlowIncoming))

	// a second ack for the same frame keeps the first measurement
	ch.flowNewPacket(FlowIncoming, 2, 1, 0, 0, 100, t0.Add(time.Second))
	ch.flowUpdate(FlowOutgoing, 0, t0.Add(2*time.Second))
	assert.Equal(t, 50*time.Millisecond, ch.Latency(FlowOutgoing))
}

func TestFlowLossAndChoke(t *testing.T) {
	t0 := time.Unix(1000, 0)

	t.Run("dropped", func(t *testing.T) {
		ch := newTestChannel(t)
		ch.flowNewPacket(FlowIncoming, 1, 0, 0, 0, 100, t0)
		ch.flowNewPacket(FlowIncoming, 5, 0, 0, 3, 100, t0)
		ch.flowUpdate(FlowIncoming, 0, t0)

		assert.InDelta(t, 0.25*3.0/5.0, ch.AvgLoss(FlowIncoming), 1e-9)
		assert.InDelta(t, 0, ch.AvgChoke(FlowIncoming), 1e-9)
	})

	t.Run("choked", func(t *testing.T) {
		ch := newTestChannel(t)
		ch.flowNewPacket(FlowIncoming, 1, 0, 0, 0, 100, t0)
		ch.flowNewPacket(FlowIncoming, 4, 0, 2, 0, 100, t0)
		ch.flowUpdate(FlowIncoming, 0, t0)

		assert.InDelta(t, 0, ch.AvgLoss(FlowIncoming), 1e-9)
		assert.InDelta(t, 0.25*2.0/4.0, ch.AvgChoke(FlowIncoming), 1e-9)
	})

	t.Run("rate limited recompute", func(t *testing.T) {
		ch := newTestChannel(t)
		ch.flowNewPacket(FlowIncoming, 1, 0, 0, 0, 100, t0)
		ch.flowUpdate(FlowIncoming, 100, t0)
		ch.flowNewPacket(FlowIncoming, 5, 0, 0, 3, 100, t0)
		ch.flowUpdate(FlowIncoming, 100, t0.Add(protocol.FlowInterval/2))

		assert.InDelta(t, 0, ch.AvgLoss(FlowIncoming), 1e-9)
		assert.Equal(t, int64(200), ch.TotalData(FlowIncoming))
	})
}

func TestFlowInvalidSelector(t *testing.T) {
	ch := newTestChannel(t)
	assert.Zero(t, ch.Latency(Flow(7)))
	assert.Zero(t, ch.AvgData(Flow(-1)))
	assert.Zero(t, ch.TotalPackets(Flow(2)))
	assert.Equal(t, "unknown", Flow(2).String())
}

func TestSubChannelStateString(t *testing.T) {
	assert.Equal(t, "FREE", SubChannelFree.String())
	assert.Equal(t, "TO_SEND", SubChannelToSend.String())
	assert.Equal(t, "WAITING", SubChannelWaiting.String())
	assert.Equal(t, "DIRTY", SubChannelDirty.String())
	assert.Equal(t, "UNKNOWN", SubChannelState(9).String())
}
