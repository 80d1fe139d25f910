package log

import "time"

// Event represents a protocol event captured at one of the network layers.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the channel (UUID). Empty for connectionless
	// and transport events that precede a channel.
	ConnectionID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates data flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Socket is the local socket role.
	Socket Socket `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// ChannelName is the channel's diagnostic name.
	ChannelName string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Datagram    *DatagramEvent    `cbor:"10,keyasint,omitempty"` // Transport layer
	Packet      *PacketEvent      `cbor:"11,keyasint,omitempty"` // Channel layer
	Message     *MessageEvent     `cbor:"12,keyasint,omitempty"` // Message layer
	StateChange *StateChangeEvent `cbor:"13,keyasint,omitempty"`
	ControlMsg  *ControlMsgEvent  `cbor:"14,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"15,keyasint,omitempty"`
}

// Direction indicates the direction of data flow.
type Direction uint8

const (
	// DirectionIn indicates received data.
	DirectionIn Direction = 0
	// DirectionOut indicates sent data.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the datagram layer (sockets, split, compression).
	LayerTransport Layer = 0
	// LayerChannel is the reliability layer (headers, subchannels, fragments).
	LayerChannel Layer = 1
	// LayerMessage is the decoded message layer.
	LayerMessage Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerChannel:
		return "CHANNEL"
	case LayerMessage:
		return "MESSAGE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryPacket indicates a datagram or packet header.
	CategoryPacket Category = 0
	// CategoryMessage indicates a decoded message.
	CategoryMessage Category = 1
	// CategoryControl indicates an inline control message.
	CategoryControl Category = 2
	// CategoryState indicates a state change.
	CategoryState Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryPacket:
		return "PACKET"
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Socket mirrors the transport socket roles. The zero value is unset.
type Socket uint8

const (
	SocketUnset  Socket = 0
	SocketClient Socket = 1
	SocketServer Socket = 2
	SocketHLTV   Socket = 3
)

// String returns the socket name.
func (s Socket) String() string {
	switch s {
	case SocketClient:
		return "CLIENT"
	case SocketServer:
		return "SERVER"
	case SocketHLTV:
		return "HLTV"
	default:
		return ""
	}
}

// DatagramEvent captures a raw datagram at the transport layer.
type DatagramEvent struct {
	// Size is the datagram size on the wire.
	Size int `cbor:"1,keyasint"`

	// Data is the raw bytes (may be truncated).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`

	// Split describes a split fragment.
	Split *SplitInfo `cbor:"4,keyasint,omitempty"`

	// Codec names the compression codec, if any.
	Codec string `cbor:"5,keyasint,omitempty"`

	// PayloadSize is the size after decompression or reassembly.
	PayloadSize int `cbor:"6,keyasint,omitempty"`

	// Connectionless marks out-of-band datagrams.
	Connectionless bool `cbor:"7,keyasint,omitempty"`
}

// SplitInfo describes one split fragment.
type SplitInfo struct {
	Sequence int32 `cbor:"1,keyasint"`
	Index    int   `cbor:"2,keyasint"`
	Count    int   `cbor:"3,keyasint"`
	Size     int   `cbor:"4,keyasint"`
}

// PacketEvent captures a channel packet header.
type PacketEvent struct {
	Sequence      int32 `cbor:"1,keyasint"`
	Ack           int32 `cbor:"2,keyasint"`
	Flags         uint8 `cbor:"3,keyasint"`
	ReliableState uint8 `cbor:"4,keyasint"`
	Choked        uint8 `cbor:"5,keyasint,omitempty"`

	// SubChannel is the subchannel index carried, or -1.
	SubChannel int8 `cbor:"6,keyasint"`

	// Bytes is the packet payload size.
	Bytes int `cbor:"7,keyasint"`

	// Dropped is the number of sequences skipped (incoming only).
	Dropped int `cbor:"8,keyasint,omitempty"`
}

// MessageEvent captures a decoded net message.
type MessageEvent struct {
	// Tag is the 6-bit message type.
	Tag uint8 `cbor:"1,keyasint"`

	// Name is the message name.
	Name string `cbor:"2,keyasint"`

	// Reliable indicates the message travelled on the reliable stream.
	Reliable bool `cbor:"3,keyasint,omitempty"`

	// Group is the traffic accounting group name.
	Group string `cbor:"4,keyasint,omitempty"`

	// Bits is the encoded size including the tag.
	Bits int `cbor:"5,keyasint"`

	// Summary is a short human-readable rendering of the payload.
	Summary string `cbor:"6,keyasint,omitempty"`
}

// StateChangeEvent captures lifecycle transitions.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`

	// Index identifies a subchannel or stream when relevant.
	Index int `cbor:"5,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityChannel indicates a channel lifecycle change.
	StateEntityChannel StateEntity = 0
	// StateEntitySignOn indicates a sign-on state change.
	StateEntitySignOn StateEntity = 1
	// StateEntitySubChannel indicates a subchannel transition.
	StateEntitySubChannel StateEntity = 2
	// StateEntityTransfer indicates a fragment transfer completed.
	StateEntityTransfer StateEntity = 3
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityChannel:
		return "CHANNEL"
	case StateEntitySignOn:
		return "SIGNON"
	case StateEntitySubChannel:
		return "SUBCHANNEL"
	case StateEntityTransfer:
		return "TRANSFER"
	default:
		return "UNKNOWN"
	}
}

// ControlMsgEvent captures inline control messages.
type ControlMsgEvent struct {
	// Type of control message.
	Type ControlMsgType `cbor:"1,keyasint"`

	// Reason is the disconnect reason.
	Reason string `cbor:"2,keyasint,omitempty"`

	// Filename and TransferID describe file requests.
	Filename   string `cbor:"3,keyasint,omitempty"`
	TransferID uint32 `cbor:"4,keyasint,omitempty"`
}

// ControlMsgType indicates the type of control message.
type ControlMsgType uint8

const (
	ControlMsgNOP         ControlMsgType = 0
	ControlMsgDisconnect  ControlMsgType = 1
	ControlMsgFileRequest ControlMsgType = 2
	ControlMsgFileDeny    ControlMsgType = 3
	ControlMsgChallenge   ControlMsgType = 4
	ControlMsgConnect     ControlMsgType = 5
	ControlMsgAccept      ControlMsgType = 6
	ControlMsgReject      ControlMsgType = 7
)

// String returns the control message type name.
func (c ControlMsgType) String() string {
	switch c {
	case ControlMsgNOP:
		return "NOP"
	case ControlMsgDisconnect:
		return "DISCONNECT"
	case ControlMsgFileRequest:
		return "FILE_REQUEST"
	case ControlMsgFileDeny:
		return "FILE_DENY"
	case ControlMsgChallenge:
		return "CHALLENGE"
	case ControlMsgConnect:
		return "CONNECT"
	case ControlMsgAccept:
		return "ACCEPT"
	case ControlMsgReject:
		return "REJECT"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Fatal marks connection-fatal conditions.
	Fatal bool `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}

// MaxCapturedBytes bounds DatagramEvent.Data.
const MaxCapturedBytes = 256

// Capture copies up to MaxCapturedBytes of data for a DatagramEvent.
func Capture(data []byte) (captured []byte, truncated bool) {
	n := len(data)
	if n > MaxCapturedBytes {
		n = MaxCapturedBytes
		truncated = true
	}
	captured = make([]byte, n)
	copy(captured, data)
	return captured, truncated
}
