package netmsg

import (
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/bitbuf"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

// ChannelID is a handle to a channel in a netchan.Registry. Messages hold
// the handle instead of a pointer to their channel.
type ChannelID uint32

// NoChannel is the zero handle.
const NoChannel ChannelID = 0

// Group is a traffic accounting group.
type Group uint8

const (
	GroupGeneric Group = iota
	GroupLocalPlayer
	GroupOtherPlayers
	GroupEntities
	GroupSounds
	GroupEvents
	GroupUserMessages
	GroupEntMessages
	GroupVoice
	GroupStringTable
	GroupMove
	GroupStringCmd
	GroupSignon
	GroupTotal
)

var groupNames = [...]string{
	GroupGeneric:      "generic",
	GroupLocalPlayer:  "localplayer",
	GroupOtherPlayers: "otherplayers",
	GroupEntities:     "entities",
	GroupSounds:       "sounds",
	GroupEvents:       "events",
	GroupUserMessages: "usermessages",
	GroupEntMessages:  "entmessages",
	GroupVoice:        "voice",
	GroupStringTable:  "stringtable",
	GroupMove:         "move",
	GroupStringCmd:    "stringcmd",
	GroupSignon:       "signon",
	GroupTotal:        "total",
}

// String returns the group name.
func (g Group) String() string {
	if int(g) < len(groupNames) {
		return groupNames[g]
	}
	return "unknown"
}

// Message is a typed payload that reads and writes itself against a bit
// cursor.
type Message interface {
	// Type returns the 6-bit wire tag.
	Type() int

	// Name returns the diagnostic name.
	Name() string

	// Group returns the accounting group.
	Group() Group

	// Reliable reports whether the message is routed to the reliable stream.
	Reliable() bool
	SetReliable(bool)

	// Channel returns the handle of the owning channel.
	Channel() ChannelID
	SetChannel(ChannelID)

	// ReadFrom decodes the body (without the tag). It returns false on a
	// malformed body; the reader's overflow flag may also be set.
	ReadFrom(r *bitbuf.Reader) bool

	// WriteTo encodes the body (without the tag).
	WriteTo(w *bitbuf.Writer) bool

	// String returns a short rendering for diagnostics.
	String() string
}

// Base carries the routing fields shared by every message.
type Base struct {
	reliable bool
	channel  ChannelID
}

// Reliable reports whether the message is reliable.
func (b *Base) Reliable() bool { return b.reliable }

// SetReliable sets the reliable flag.
func (b *Base) SetReliable(v bool) { b.reliable = v }

// Channel returns the owning channel handle.
func (b *Base) Channel() ChannelID { return b.channel }

// SetChannel sets the owning channel handle.
func (b *Base) SetChannel(id ChannelID) { b.channel = id }

// Write encodes tag and body. It returns false if the writer overflowed.
func Write(w *bitbuf.Writer, m Message) bool {
	w.WriteUBits(uint32(m.Type()), protocol.MessageTypeBits)
	if !m.WriteTo(w) {
		return false
	}
	return !w.Overflowed()
}

// Encode returns the tag and body of m in a fresh buffer.
func Encode(m Message) ([]byte, int, bool) {
	w := bitbuf.NewWriter(protocol.MaxPayload)
	if !Write(w, m) {
		return nil, 0, false
	}
	out := make([]byte, w.BytesWritten())
	copy(out, w.Bytes())
	return out, w.BitsWritten(), true
}
