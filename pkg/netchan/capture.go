package netchan

import (
	"fmt"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/log"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netmsg"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/transport"
)

func (c *Channel) capturing() bool {
	_, noop := c.plog.(log.NoopLogger)
	return !noop
}

func (c *Channel) event(dir log.Direction, layer log.Layer, category log.Category) log.Event {
	return log.Event{
		Timestamp:    c.now(),
		ConnectionID: c.connID,
		Direction:    dir,
		Layer:        layer,
		Category:     category,
		Socket:       transport.SocketToLog(c.role),
		RemoteAddr:   c.remote.String(),
		ChannelName:  c.name,
	}
}

func (c *Channel) capturePacket(dir log.Direction, seq, ack int32, flags, relState byte, choked, sub, bytes, dropped int) {
	if !c.capturing() {
		return
	}
	ev := c.event(dir, log.LayerChannel, log.CategoryPacket)
	ev.Packet = &log.PacketEvent{
		Sequence:      seq,
		Ack:           ack,
		Flags:         flags,
		ReliableState: relState,
		Choked:        uint8(min(choked, 0xFF)),
		SubChannel:    int8(sub),
		Bytes:         bytes,
		Dropped:       dropped,
	}
	c.plog.Log(ev)
}

func (c *Channel) captureMessage(dir log.Direction, msg netmsg.Message, reliable bool, bits int) {
	if !c.capturing() {
		return
	}
	ev := c.event(dir, log.LayerMessage, log.CategoryMessage)
	ev.Message = &log.MessageEvent{
		Tag:      uint8(msg.Type()),
		Name:     msg.Name(),
		Reliable: reliable,
		Group:    msg.Group().String(),
		Bits:     bits,
	}
	if s, ok := msg.(fmt.Stringer); ok {
		ev.Message.Summary = s.String()
	}
	c.plog.Log(ev)
}

func (c *Channel) captureState(entity log.StateEntity, old, next, reason string, index int) {
	if !c.capturing() {
		return
	}
	ev := c.event(log.DirectionOut, log.LayerChannel, log.CategoryState)
	ev.StateChange = &log.StateChangeEvent{
		Entity:   entity,
		OldState: old,
		NewState: next,
		Reason:   reason,
		Index:    index,
	}
	c.plog.Log(ev)
}

func (c *Channel) captureControl(dir log.Direction, typ log.ControlMsgType, reason, filename string, transferID uint32) {
	if !c.capturing() {
		return
	}
	ev := c.event(dir, log.LayerMessage, log.CategoryControl)
	ev.ControlMsg = &log.ControlMsgEvent{
		Type:       typ,
		Reason:     reason,
		Filename:   filename,
		TransferID: transferID,
	}
	c.plog.Log(ev)
}

func (c *Channel) captureError(msg string, fatal bool) {
	if !c.capturing() {
		return
	}
	ev := c.event(log.DirectionIn, log.LayerChannel, log.CategoryError)
	ev.Error = &log.ErrorEventData{
		Layer:   log.LayerChannel,
		Message: msg,
		Fatal:   fatal,
	}
	c.plog.Log(ev)
}
