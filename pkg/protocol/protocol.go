package protocol

import "time"

// Protocol versioning.
const (
	// Version is the network protocol version exchanged on connect.
	Version = 24

	// DefaultServerPort is the default server UDP port.
	DefaultServerPort = 27015

	// DefaultClientPort is the default client UDP port.
	DefaultClientPort = 27005

	// DefaultHLTVPort is the default relay proxy port.
	DefaultHLTVPort = 27020
)

// Reliable stream fragmentation.
const (
	FragmentBits = 8
	FragmentSize = 1 << FragmentBits

	// MaxFileSizeBits bounds the declared size of any reliable transfer.
	MaxFileSizeBits = 26
	MaxFileSize     = (1 << MaxFileSizeBits) - 1

	// MaxStreams is the number of logical reliable streams.
	MaxStreams = 2

	// MaxSubChannels is the number of concurrent reliable windows.
	MaxSubChannels = 8
	SubChannelBits = 3

	// FragmentCountBits is the width of a window's fragment count.
	FragmentCountBits = 11

	// FragmentStartBits is the width of a window's start fragment index.
	FragmentStartBits = MaxFileSizeBits - FragmentBits

	// MaxOSPath bounds transferred file names.
	MaxOSPath = 260
)

// Stream identifies a logical reliable stream.
type Stream int

const (
	// StreamNormal carries reliable messages.
	StreamNormal Stream = 0

	// StreamFile carries file transfers.
	StreamFile Stream = 1
)

// String returns the stream name.
func (s Stream) String() string {
	switch s {
	case StreamNormal:
		return "normal"
	case StreamFile:
		return "file"
	default:
		return "unknown"
	}
}

// BytesToFragments returns the number of fragments needed for n bytes.
func BytesToFragments(n int) int {
	return (n + FragmentSize - 1) / FragmentSize
}

// Payload limits.
const (
	// MaxPayload is the largest reliable payload per datagram.
	MaxPayload = 288000

	// MaxRoutable is the largest datagram sent without splitting.
	MaxRoutable = 1260

	// MinRoutable is the smallest datagram sent; shorter payloads are padded.
	MinRoutable = 16

	// HeaderBytes is the fixed datagram header size.
	HeaderBytes = 9

	// MaxMessage is the largest datagram including header, padded to 16.
	MaxMessage = (MaxPayload + HeaderBytes + 15) / 16 * 16

	// MaxUnreliablePayload is the unreliable buffer capacity.
	MaxUnreliablePayload = MaxPayload

	// MaxReliablePayload is the reliable write buffer capacity.
	MaxReliablePayload = MaxPayload

	// DefaultReliableWindow is the default number of fragment bytes a
	// stream puts in flight per packet. Larger windows outgrow what the
	// split queue can push before the resend timer fires.
	DefaultReliableWindow = 64 * FragmentSize

	// MaxDatagramPayload is the datagram buffer capacity.
	MaxDatagramPayload = 4000

	// VoiceBufferSize is the voice buffer capacity.
	VoiceBufferSize = 4096
)

// Split packet layout.
const (
	// SplitHeaderBytes is the size of the split fragment header.
	SplitHeaderBytes = 12

	MinSplitSize = 576 - SplitHeaderBytes
	MaxSplitSize = MaxRoutable - SplitHeaderBytes

	// MaxSplitFragments bounds fragment indices accepted on receive.
	MaxSplitFragments = MaxMessage / MinSplitSize

	// MaxSplitCount is the largest fragment count the split header can carry.
	MaxSplitCount = 0xFF

	// MaxSplitEntries bounds the split reassembly table.
	MaxSplitEntries = 256

	// SplitEntryTimeout is the idle time before a reassembly entry is purged.
	SplitEntryTimeout = 2 * time.Second
)

// Header ids occupying the first int32 of special datagrams.
const (
	ConnectionlessHeader int32 = -1
	SplitPacketHeader    int32 = -2
	CompressedHeader     int32 = -3
)

// Connectionless opcodes.
const (
	C2SGetChallenge byte = 'q'
	S2CChallenge    byte = 'A'
	C2SConnect      byte = 'k'
	S2CConnection   byte = 'B'
	S2CConnReject   byte = '9'
	A2APing         byte = 'i'
	A2AAck          byte = 'j'
)

// Packet flags.
const (
	FlagReliable   byte = 1 << 0
	FlagCompressed byte = 1 << 1
	FlagEncrypted  byte = 1 << 2
	FlagSplit      byte = 1 << 3
	FlagChoked     byte = 1 << 4
	FlagChallenge  byte = 1 << 5

	// MaxPadBits is the largest tail pad count the flags byte can carry.
	// Senders append NOPs until the pad fits.
	MaxPadBits = 3

	padBitsShift = 6
	padBitsMask  = 0x3
)

// EncodePadBits stores a 0-3 tail pad count in bits 6-7, above every flag.
func EncodePadBits(n int) byte {
	return byte(n&padBitsMask) << padBitsShift
}

// DecodePadBits extracts the tail pad count from a flags byte.
func DecodePadBits(flags byte) int {
	return int(flags>>padBitsShift) & padBitsMask
}

// Message tags.
const (
	// MessageTypeBits is the wire width of a message tag.
	MessageTypeBits = 6

	NetNOP        = 0
	NetDisconnect = 1
	NetFile       = 2

	// LastControlMessage is the highest tag handled inline by the channel.
	LastControlMessage = NetFile

	NetTick        = 3
	NetStringCmd   = 4
	NetSetConVar   = 5
	NetSignonState = 6

	SvcPrint = 7

	MaxMessageType = 1<<MessageTypeBits - 1
)

// Timing.
const (
	// ConnectionProblemTime is the silence after which a channel is timing out.
	ConnectionProblemTime = 4 * time.Second

	// DefaultTimeout is the silence after which a channel is timed out.
	DefaultTimeout = 30 * time.Second

	// DefaultRate is the default pacing rate in bytes per second.
	DefaultRate = 80000
	MinRate     = 1000
	MaxRate     = 1048576

	// MaxClearTime bounds how far the pacing gate may run ahead.
	MaxClearTime = time.Second

	// FlowInterval is the flow statistics averaging period.
	FlowInterval = 250 * time.Millisecond

	// FlowAvg is the smoothing factor for loss and choke averages.
	FlowAvg = 3.0 / 4.0
)

// SocketRole names a logical socket.
type SocketRole int

const (
	SocketClient SocketRole = iota
	SocketServer
	SocketHLTV
	MaxSockets
)

// String returns the role name.
func (r SocketRole) String() string {
	switch r {
	case SocketClient:
		return "client"
	case SocketServer:
		return "server"
	case SocketHLTV:
		return "hltv"
	default:
		return "unknown"
	}
}
