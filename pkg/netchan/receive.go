package netchan

import (
	"fmt"
	"time"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/bitbuf"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/compress"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/log"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netmsg"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/transport"
)

// ProcessPacket handles one packet from the peer. It returns true if the
// packet was accepted and fully processed. Packets from other addresses,
// stale or duplicate sequences and checksum failures are dropped quietly;
// malformed content is reported through Handler.ConnectionCrashed.
func (c *Channel) ProcessPacket(p *transport.Packet) bool {
	if c.closed || !p.From.Equal(c.remote) {
		return false
	}
	now := p.ReceivedAt
	if now.IsZero() {
		now = c.now()
	}
	c.flowUpdate(flowIncoming, p.WireSize+udpHeaderSize, now)

	r, flags, ok := c.processPacketHeader(p, now)
	if !ok {
		return false
	}
	c.lastReceived = now
	c.handler.PacketStart(c.inSeq, c.outSeqAck)
	if c.closed {
		return false
	}

	if flags&protocol.FlagReliable != 0 {
		bit := byte(1) << r.ReadUBits(protocol.SubChannelBits)
		for stream := 0; stream < protocol.MaxStreams; stream++ {
			if !r.ReadOneBit() {
				continue
			}
			if !c.readSubChannelData(r, stream) {
				return false
			}
		}
		c.inReliableState ^= bit
		for stream := 0; stream < protocol.MaxStreams; stream++ {
			if !c.checkReceivingList(stream) {
				return false
			}
		}
	}

	if r.BitsLeft() > 0 {
		if !c.processMessages(r, false) {
			return false
		}
	}

	c.handler.PacketEnd()
	return true
}

// processPacketHeader validates the header and applies the peer's acks.
// The returned reader is positioned after the header and ends before the
// tail pad bits.
func (c *Channel) processPacketHeader(p *transport.Packet, now time.Time) (*bitbuf.Reader, byte, bool) {
	minSize := protocol.HeaderBytes + 1
	if c.checksum {
		minSize += 2
	}
	if len(p.Data) < minSize {
		c.logger.Debug("short packet", "size", len(p.Data))
		return nil, 0, false
	}

	flags := p.Data[8]
	r := bitbuf.NewReaderBits(p.Data, len(p.Data)*8-protocol.DecodePadBits(flags))
	seq := r.ReadInt32()
	ack := r.ReadInt32()
	r.ReadUint8()

	if c.checksum {
		sum := r.ReadUint16()
		offset := r.BitsRead() >> 3
		if got := Checksum(p.Data[offset:]); got != sum {
			c.logger.Warn("invalid checksum", "seq", seq, "want", sum, "got", got)
			c.captureError("invalid checksum", false)
			return nil, 0, false
		}
	}

	relState := r.ReadUint8()
	choked := 0
	if flags&protocol.FlagChoked != 0 {
		choked = int(r.ReadUint8())
	}
	if flags&protocol.FlagChallenge != 0 {
		challenge := r.ReadUint32()
		if challenge != c.challenge {
			c.logger.Debug("challenge mismatch", "seq", seq)
			return nil, 0, false
		}
		c.streamHasChallenge = true
	} else if c.streamHasChallenge {
		c.logger.Debug("missing challenge", "seq", seq)
		return nil, 0, false
	}
	if r.Overflowed() {
		return nil, 0, false
	}

	if seq <= c.inSeq {
		if seq == c.inSeq {
			c.logger.Debug("duplicate packet", "seq", seq)
		} else {
			c.logger.Debug("out of order packet", "seq", seq, "in_seq", c.inSeq)
		}
		return nil, 0, false
	}
	if ack >= c.outSeq {
		c.logger.Debug("ack for unsent sequence", "ack", ack, "out_seq", c.outSeq)
		return nil, 0, false
	}

	c.packetDrop = int(seq - (c.inSeq + int32(choked) + 1))
	if c.packetDrop > 0 {
		c.logger.Debug("dropped packets", "count", c.packetDrop, "seq", seq)
	}

	if !c.ackSubChannels(relState, ack) {
		return nil, 0, false
	}

	c.inSeq = seq
	c.outSeqAck = ack
	for stream := range c.waiting {
		c.checkWaitingList(stream)
	}

	c.flowNewPacket(flowIncoming, c.inSeq, c.outSeqAck, choked, c.packetDrop, p.WireSize+udpHeaderSize, now)
	sub := -1
	if flags&protocol.FlagReliable != 0 {
		peek := *r
		sub = int(peek.ReadUBits(protocol.SubChannelBits))
	}
	c.capturePacket(log.DirectionIn, seq, ack, flags, relState, choked, sub, len(p.Data), c.packetDrop)
	return r, flags, true
}

func (c *Channel) receiveLimit(stream int) int {
	if stream == int(protocol.StreamFile) {
		return protocol.MaxFileSize
	}
	return protocol.MaxPayload
}

// readSubChannelData reads one stream's fragments into its receive buffer.
func (c *Channel) readSubChannelData(r *bitbuf.Reader, stream int) bool {
	data := &c.receive[stream]

	single := !r.ReadOneBit()
	start, num := 0, 0
	offset, length := 0, 0
	if !single {
		start = int(r.ReadUBits(protocol.FragmentStartBits))
		num = int(r.ReadUBits(protocol.FragmentCountBits))
		offset = start * protocol.FragmentSize
		length = num * protocol.FragmentSize
	}

	if offset == 0 {
		var (
			filename     string
			transferID   uint32
			compressed   bool
			uncompressed int
			bytes        int
		)
		if single {
			if r.ReadOneBit() {
				compressed = true
				uncompressed = int(r.ReadUBits(protocol.MaxFileSizeBits))
			}
			bytes = int(r.ReadVarUint32())
		} else {
			if r.ReadOneBit() {
				transferID = r.ReadUint32()
				name, ok := r.ReadString(protocol.MaxOSPath)
				if !ok {
					c.crash("invalid fragment file name")
					return false
				}
				filename = name
			}
			if r.ReadOneBit() {
				compressed = true
				uncompressed = int(r.ReadUBits(protocol.MaxFileSizeBits))
			}
			bytes = int(r.ReadUBits(protocol.MaxFileSizeBits))
		}
		if r.Overflowed() {
			c.crash("buffer overflow in fragment header")
			return false
		}
		if filename != "" && stream != int(protocol.StreamFile) {
			c.crash("file header on message stream")
			return false
		}

		if data.buf != nil {
			c.logger.Debug("fragment transmission aborted", "stream", stream, "acked", data.acked, "total", data.numFragments)
			c.releaseReceive(stream)
		}

		limit := c.receiveLimit(stream)
		if bytes <= 0 || bytes > limit {
			c.crash(fmt.Sprintf("declared fragment size %d out of range", bytes))
			return false
		}
		if compressed && (uncompressed <= 0 || uncompressed > limit) {
			c.crash(fmt.Sprintf("declared uncompressed size %d out of range", uncompressed))
			return false
		}

		*data = fragments{
			bytes:            bytes,
			numFragments:     protocol.BytesToFragments(bytes),
			filename:         filename,
			transferID:       transferID,
			compressed:       compressed,
			uncompressedSize: uncompressed,
		}
		if single {
			num = data.numFragments
			length = num * protocol.FragmentSize
		}
		data.buf = c.pool.Rent(bytes)
	} else if data.buf == nil {
		// the header fragment was lost, wait for its retransmission
		c.logger.Debug("fragment without header", "stream", stream, "start", start)
		return false
	}

	switch {
	case start+num == data.numFragments:
		length -= lastFragmentRest(data.bytes)
	case start+num > data.numFragments:
		c.crash(fmt.Sprintf("fragment chunk out of bounds: %d+%d>%d", start, num, data.numFragments))
		c.releaseReceive(stream)
		return false
	}
	if length <= 0 || offset+length > data.bytes {
		c.crash(fmt.Sprintf("fragment length %d at %d exceeds %d", length, offset, data.bytes))
		c.releaseReceive(stream)
		return false
	}

	if !r.ReadBytes(data.buf[offset : offset+length]) {
		c.crash("buffer overflow reading fragments")
		c.releaseReceive(stream)
		return false
	}
	data.acked += num
	return true
}

// checkReceivingList delivers a completed stream payload.
func (c *Channel) checkReceivingList(stream int) bool {
	data := &c.receive[stream]
	if data.buf == nil || data.acked < data.numFragments {
		return true
	}
	if data.acked > data.numFragments {
		c.crash(fmt.Sprintf("too many fragments %d/%d", data.acked, data.numFragments))
		c.releaseReceive(stream)
		return false
	}

	payload := data.buf[:data.bytes]
	if data.compressed {
		out, err := compress.Decompress(payload, data.uncompressedSize)
		if err != nil || len(out) != data.uncompressedSize {
			c.crash(fmt.Sprintf("failed to decompress fragments: %v", err))
			c.releaseReceive(stream)
			return false
		}
		payload = out
	}
	c.captureState(log.StateEntityTransfer, "RECEIVING", "COMPLETE", data.filename, stream)

	if data.filename == "" {
		ok := c.processMessages(bitbuf.NewReader(payload), true)
		c.releaseReceive(stream)
		return ok
	}

	name, id := data.filename, data.transferID
	if ValidTransferName(name) {
		c.handler.FileReceived(name, id, payload)
	} else {
		c.logger.Warn("ignoring received file with invalid name", "file", name)
	}
	c.releaseReceive(stream)
	return !c.closed
}

// processMessages reads tag/body pairs until fewer than a tag's bits are
// left. Any failure aborts the rest of the buffer.
func (c *Channel) processMessages(r *bitbuf.Reader, reliable bool) bool {
	for {
		if r.Overflowed() {
			c.crash("buffer overflow in net message")
			return false
		}
		if r.BitsLeft() < protocol.MessageTypeBits {
			return true
		}

		start := r.BitsRead()
		tag := int(r.ReadUBits(protocol.MessageTypeBits))
		if tag <= protocol.LastControlMessage {
			if !c.processControlMessage(tag, r) {
				return false
			}
			continue
		}

		var (
			factory netmsg.Factory
			handler netmsg.Handler
			ok      bool
		)
		if c.messages != nil {
			factory, handler, ok = c.messages.Lookup(tag)
		}
		if !ok {
			c.crash(fmt.Sprintf("unknown net message %d", tag))
			return false
		}

		msg := factory()
		msg.SetReliable(reliable)
		msg.SetChannel(c.id)
		if !msg.ReadFrom(r) || r.Overflowed() {
			c.crash(fmt.Sprintf("failed reading message %s", msg.Name()))
			return false
		}
		bits := r.BitsRead() - start
		c.msgStats.add(flowIncoming, msg.Group(), bits)
		c.captureMessage(log.DirectionIn, msg, reliable, bits)

		if handler != nil && !handler(msg) {
			c.crash(fmt.Sprintf("failed processing message %s", msg.Name()))
			return false
		}
		if c.closed {
			return false
		}
	}
}

func (c *Channel) processControlMessage(tag int, r *bitbuf.Reader) bool {
	switch tag {
	case protocol.NetNOP:
		return true

	case protocol.NetDisconnect:
		reason, _ := netmsg.ReadDisconnect(r)
		c.captureControl(log.DirectionIn, log.ControlMsgDisconnect, reason, "", 0)
		c.handler.ConnectionClosing(reason)
		return false

	case protocol.NetFile:
		m, ok := netmsg.ReadFile(r)
		if !ok {
			c.crash("malformed file message")
			return false
		}
		if m.Requested && ValidTransferName(m.Filename) {
			c.captureControl(log.DirectionIn, log.ControlMsgFileRequest, "", m.Filename, m.TransferID)
			c.handler.FileRequested(m.Filename, m.TransferID)
		} else {
			c.captureControl(log.DirectionIn, log.ControlMsgFileDeny, "", m.Filename, m.TransferID)
			c.handler.FileDenied(m.Filename, m.TransferID)
		}
		return !c.closed
	}

	c.crash(fmt.Sprintf("bad control message %d", tag))
	return false
}
