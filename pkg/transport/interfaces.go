package transport

import (
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

// SplitSource supplies per-connection parameters for outbound packets.
// Implemented by netchan.Channel.
type SplitSource interface {
	// NextSplitSequence returns a fresh split sequence number.
	NextSplitSequence() int32

	// MaxRoutablePayload returns the largest datagram to send unsplit.
	MaxRoutablePayload() int
}

// PacketSender sends datagrams. Implemented by Transport.
type PacketSender interface {
	SendPacket(src SplitSource, role protocol.SocketRole, to netadr.Address, data []byte) (int, error)
}

// PacketReceiver polls datagrams. Implemented by Transport.
type PacketReceiver interface {
	Receive(role protocol.SocketRole) (*Packet, bool)
}

// Compile-time interface satisfaction checks.
var (
	_ PacketSender   = (*Transport)(nil)
	_ PacketReceiver = (*Transport)(nil)
)
