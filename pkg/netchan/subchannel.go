package netchan

import (
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

// SubChannelState is the lifecycle state of a subchannel.
type SubChannelState uint8

const (
	// SubChannelFree carries nothing.
	SubChannelFree SubChannelState = iota

	// SubChannelToSend holds a window to be written into the next packet.
	SubChannelToSend

	// SubChannelWaiting has been sent and awaits the peer's ack.
	SubChannelWaiting

	// SubChannelDirty was in flight when its data was discarded; it is
	// freed once the peer's state for it is known.
	SubChannelDirty
)

// String returns a human-readable state name.
func (s SubChannelState) String() string {
	switch s {
	case SubChannelFree:
		return "FREE"
	case SubChannelToSend:
		return "TO_SEND"
	case SubChannelWaiting:
		return "WAITING"
	case SubChannelDirty:
		return "DIRTY"
	default:
		return "UNKNOWN"
	}
}

// subChannel is one reliable transmission slot.
type subChannel struct {
	index   int
	state   SubChannelState
	sendSeq int32

	startFragment [protocol.MaxStreams]int
	numFragments  [protocol.MaxStreams]int
}

func (s *subChannel) free() {
	s.state = SubChannelFree
	s.sendSeq = -1
	s.startFragment = [protocol.MaxStreams]int{}
	s.numFragments = [protocol.MaxStreams]int{}
}

// fragments is a reliable payload split into protocol.FragmentSize pieces.
// Outgoing payloads sit in a stream's waiting list; each stream has one
// incoming payload under reassembly.
type fragments struct {
	// buf is pooled and holds bytes bytes.
	buf   []byte
	bytes int

	numFragments int
	acked        int
	pending      int

	filename   string
	transferID uint32

	compressed       bool
	uncompressedSize int
}

// lastFragmentRest returns how many bytes of the final fragment are unused.
func lastFragmentRest(bytes int) int {
	rest := protocol.FragmentSize - bytes%protocol.FragmentSize
	if rest == protocol.FragmentSize {
		return 0
	}
	return rest
}
