package host

import (
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netmsg"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/signon"
)

// EventType is the kind of a host event.
type EventType uint8

const (
	// EventConnected - a channel to a peer was established.
	EventConnected EventType = iota

	// EventDisconnected - a channel was torn down. Reason says why.
	EventDisconnected

	// EventConnectFailed - the client handshake was rejected or gave up.
	EventConnectFailed

	// EventSignOn - a peer's sign-on state changed.
	EventSignOn

	// EventCommand - a string command arrived from a client.
	EventCommand

	// EventPrint - a print arrived from the server.
	EventPrint

	// EventFileReceived - a file transfer completed.
	EventFileReceived

	// EventFileDenied - the peer refused a file request.
	EventFileDenied

	// EventTimingOut - a peer has been silent long enough to look lost.
	EventTimingOut
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventConnected:
		return "CONNECTED"
	case EventDisconnected:
		return "DISCONNECTED"
	case EventConnectFailed:
		return "CONNECT_FAILED"
	case EventSignOn:
		return "SIGNON"
	case EventCommand:
		return "COMMAND"
	case EventPrint:
		return "PRINT"
	case EventFileReceived:
		return "FILE_RECEIVED"
	case EventFileDenied:
		return "FILE_DENIED"
	case EventTimingOut:
		return "TIMING_OUT"
	default:
		return "UNKNOWN"
	}
}

// Event is emitted by the host from the frame goroutine.
type Event struct {
	Type EventType

	// Peer is the channel handle the event concerns (NoChannel for
	// handshake failures).
	Peer   netmsg.ChannelID
	Remote netadr.Address

	// Reason is set for disconnects and failures.
	Reason string

	// Text carries commands and prints.
	Text string

	// State is the new sign-on state for EventSignOn.
	State signon.State

	// Filename, TransferID and Data describe file events. Data is only
	// valid during the callback.
	Filename   string
	TransferID uint32
	Data       []byte
}

// EventHandler receives host events.
type EventHandler func(Event)
