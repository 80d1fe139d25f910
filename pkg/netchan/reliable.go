package netchan

import (
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/bitbuf"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/log"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

func (c *Channel) freeSubChannel() *subChannel {
	for i := range c.subChannels {
		if c.subChannels[i].state == SubChannelFree {
			return &c.subChannels[i]
		}
	}
	return nil
}

// updateSubChannels assigns the next window of each stream head to a free
// subchannel. A head with fragments in flight gets no new window.
func (c *Channel) updateSubChannels() {
	sub := c.freeSubChannel()
	if sub == nil {
		return
	}

	budget := c.windowFragments()
	assigned := false
	for stream := range c.waiting {
		if len(c.waiting[stream]) == 0 {
			continue
		}
		data := c.waiting[stream][0]
		if data.pending > 0 {
			continue
		}
		sent := data.acked + data.pending
		if sent >= data.numFragments {
			continue
		}
		n := min(budget, data.numFragments-sent)
		sub.startFragment[stream] = sent
		sub.numFragments[stream] = n
		data.pending += n
		assigned = true

		budget -= n
		if budget <= 0 {
			break
		}
	}

	if assigned {
		c.outReliableState ^= 1 << sub.index
		c.setSubChannelState(sub, SubChannelToSend)
		sub.sendSeq = 0
	}
}

// sendSubChannelData writes the first ToSend subchannel into w and returns
// its index, or -1 when there is nothing to send.
func (c *Channel) sendSubChannelData(w *bitbuf.Writer) int {
	c.updateSubChannels()

	var sub *subChannel
	for i := range c.subChannels {
		if c.subChannels[i].state == SubChannelToSend {
			sub = &c.subChannels[i]
			break
		}
	}
	if sub == nil {
		return -1
	}

	w.WriteUBits(uint32(sub.index), protocol.SubChannelBits)
	for stream := range c.waiting {
		num := sub.numFragments[stream]
		if num == 0 || len(c.waiting[stream]) == 0 {
			w.WriteOneBit(false)
			continue
		}
		data := c.waiting[stream][0]
		start := sub.startFragment[stream]
		w.WriteOneBit(true)

		offset := start * protocol.FragmentSize
		length := num * protocol.FragmentSize
		if start+num == data.numFragments {
			length -= lastFragmentRest(data.bytes)
		}

		single := num == data.numFragments && data.filename == ""
		if single {
			w.WriteOneBit(false)
			writeCompression(w, data)
			w.WriteVarUint32(uint32(data.bytes))
		} else {
			w.WriteOneBit(true)
			w.WriteUBits(uint32(start), protocol.FragmentStartBits)
			w.WriteUBits(uint32(num), protocol.FragmentCountBits)
			if offset == 0 {
				if data.filename != "" {
					w.WriteOneBit(true)
					w.WriteUint32(data.transferID)
					w.WriteString(data.filename)
				} else {
					w.WriteOneBit(false)
				}
				writeCompression(w, data)
				w.WriteUBits(uint32(data.bytes), protocol.MaxFileSizeBits)
			}
		}
		w.WriteBytes(data.buf[offset : offset+length])
	}

	sub.sendSeq = c.outSeq
	c.setSubChannelState(sub, SubChannelWaiting)
	return sub.index
}

func writeCompression(w *bitbuf.Writer, data *fragments) {
	if !data.compressed {
		w.WriteOneBit(false)
		return
	}
	w.WriteOneBit(true)
	w.WriteUBits(uint32(data.uncompressedSize), protocol.MaxFileSizeBits)
}

// ackSubChannels applies the peer's reliable state to every subchannel.
// It returns false if the peer's state contradicts what was sent.
func (c *Channel) ackSubChannels(relState byte, ack int32) bool {
	for i := range c.subChannels {
		sub := &c.subChannels[i]
		bit := byte(1) << sub.index

		if c.outReliableState&bit == relState&bit {
			switch {
			case sub.state == SubChannelDirty:
				// the peer has the data, the waiting list is already gone
				c.setSubChannelState(sub, SubChannelFree)
			case sub.state == SubChannelFree:
			case sub.sendSeq > ack:
				c.logger.Warn("reliable state invalid", "subchannel", sub.index, "send_seq", sub.sendSeq, "ack", ack)
				return false
			case sub.state == SubChannelWaiting:
				for stream := range c.waiting {
					num := sub.numFragments[stream]
					if num == 0 || len(c.waiting[stream]) == 0 {
						continue
					}
					data := c.waiting[stream][0]
					data.acked += num
					data.pending -= num
				}
				c.setSubChannelState(sub, SubChannelFree)
			}
			continue
		}

		if sub.sendSeq > ack || sub.sendSeq < 0 {
			continue
		}
		switch sub.state {
		case SubChannelWaiting:
			// lost, send the same window again
			c.setSubChannelState(sub, SubChannelToSend)
		case SubChannelDirty:
			// the peer never saw it, restore its bit
			c.outReliableState ^= bit
			c.setSubChannelState(sub, SubChannelFree)
		}
	}
	return true
}

// checkWaitingList pops the head of stream once all of it is acked.
func (c *Channel) checkWaitingList(stream int) {
	if len(c.waiting[stream]) == 0 || c.outSeqAck <= 0 {
		return
	}
	data := c.waiting[stream][0]
	switch {
	case data.acked == data.numFragments:
		c.captureState(log.StateEntityTransfer, "SENDING", "ACKED", data.filename, stream)
		c.releaseFragments(data)
		c.waiting[stream][0] = nil
		c.waiting[stream] = c.waiting[stream][1:]
	case data.acked > data.numFragments:
		c.logger.Warn("invalid acknowledged fragments", "stream", stream, "acked", data.acked, "total", data.numFragments)
	}
}
