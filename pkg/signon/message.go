package signon

import (
	"fmt"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/bitbuf"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netmsg"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

// StateMessage is net_SignonState: the sender's new sign-on state and the
// server's spawn count.
type StateMessage struct {
	netmsg.Base
	State      State
	SpawnCount int32
}

// NewStateMessage returns a reliable sign-on message.
func NewStateMessage(s State, spawnCount int32) *StateMessage {
	m := &StateMessage{State: s, SpawnCount: spawnCount}
	m.SetReliable(true)
	return m
}

func (*StateMessage) Type() int           { return protocol.NetSignonState }
func (*StateMessage) Name() string        { return "net_SignonState" }
func (*StateMessage) Group() netmsg.Group { return netmsg.GroupSignon }

func (m *StateMessage) ReadFrom(r *bitbuf.Reader) bool {
	m.State = State(r.ReadUint8())
	m.SpawnCount = r.ReadInt32()
	return !r.Overflowed() && m.State.Valid()
}

func (m *StateMessage) WriteTo(w *bitbuf.Writer) bool {
	if !m.State.Valid() {
		return false
	}
	w.WriteUint8(uint8(m.State))
	w.WriteInt32(m.SpawnCount)
	return !w.Overflowed()
}

func (m *StateMessage) String() string {
	return fmt.Sprintf("net_SignonState: state %s, count %d", m.State, m.SpawnCount)
}

// RegisterMessage registers net_SignonState on r.
func RegisterMessage(r *netmsg.Registry, handler func(*StateMessage) bool) error {
	return netmsg.Register(r, handler)
}

var _ netmsg.Message = (*StateMessage)(nil)
