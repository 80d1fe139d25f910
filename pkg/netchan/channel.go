package netchan

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/bitbuf"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/bufpool"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/compress"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/log"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netmsg"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/transport"
)

const (
	// sendHeadroom is reserved in each datagram for the packet header and
	// the first-fragment header of a file window.
	sendHeadroom = 2 * protocol.FragmentSize

	maxFragmentCount = 1<<protocol.FragmentCountBits - 1
)

// Channel is one peer connection.
type Channel struct {
	id     netmsg.ChannelID
	connID string
	name   string
	role   protocol.SocketRole
	remote netadr.Address

	sender   transport.PacketSender
	handler  Handler
	messages *netmsg.Registry
	pool     *bufpool.Pool
	logger   *slog.Logger
	plog     log.Logger
	now      func() time.Time

	checksum    bool
	compression compress.Codec
	compressMin int

	outSeq    int32
	outSeqAck int32
	inSeq     int32

	outReliableState byte
	inReliableState  byte

	choked     int
	packetDrop int

	challenge          uint32
	streamHasChallenge bool

	splitSeq    int32
	maxRoutable int
	maxReliable int

	rate         int
	clearTime    time.Time
	maxClearTime time.Duration
	timeout      time.Duration
	connectTime  time.Time
	lastReceived time.Time

	reliable   *bitbuf.Writer
	unreliable *bitbuf.Writer
	voice      *bitbuf.Writer
	streamBufs [][]byte

	subChannels [protocol.MaxSubChannels]subChannel
	waiting     [protocol.MaxStreams][]*fragments
	receive     [protocol.MaxStreams]fragments

	fileRequestCounter uint32

	flows    [maxFlows]netFlow
	msgStats MessageStats
	crashes  int

	closed bool
}

// New creates a channel to config.Remote and calls Handler.ConnectionStart.
func New(config Config) (*Channel, error) {
	if config.Sender == nil {
		return nil, ErrNoSender
	}
	if config.Remote.IsNull() {
		return nil, ErrInvalidRemote
	}
	config.applyDefaults()

	now := config.Now()
	c := &Channel{
		connID:       uuid.NewString(),
		name:         config.Name,
		role:         config.Role,
		remote:       config.Remote,
		sender:       config.Sender,
		handler:      config.Handler,
		messages:     config.Messages,
		pool:         config.Pool,
		plog:         log.OrNoop(config.Protocol),
		now:          config.Now,
		checksum:     !config.DisableChecksum && !config.Remote.IsLoopback(),
		compression:  config.Compression,
		compressMin:  config.CompressMinSize,
		outSeq:       1,
		challenge:    config.Challenge,
		maxClearTime: config.MaxClearTime,
		timeout:      config.Timeout,
		connectTime:  now,
		lastReceived: now,
	}
	c.logger = config.Logger.With("channel", config.Name, "remote", config.Remote.String())
	c.SetRate(config.Rate)
	c.SetMaxRoutablePayload(config.MaxRoutable)
	c.SetMaxReliablePayload(config.MaxReliablePayload)

	c.reliable = c.rentStream(protocol.MaxReliablePayload)
	c.unreliable = c.rentStream(protocol.MaxUnreliablePayload)
	c.voice = c.rentStream(protocol.VoiceBufferSize)

	for i := range c.subChannels {
		c.subChannels[i].index = i
		c.subChannels[i].free()
	}
	for i := range c.flows {
		c.flows[i].reset()
	}

	c.captureState(log.StateEntityChannel, "", "OPEN", "", 0)
	c.handler.ConnectionStart(c)
	return c, nil
}

func (c *Channel) rentStream(size int) *bitbuf.Writer {
	buf := c.pool.Rent(size)
	c.streamBufs = append(c.streamBufs, buf)
	return bitbuf.NewWriterBuffer(buf)
}

// ID returns the registry handle (netmsg.NoChannel until registered).
func (c *Channel) ID() netmsg.ChannelID { return c.id }

// ConnectionID returns the unique id used in capture events.
func (c *Channel) ConnectionID() string { return c.connID }

// Name returns the diagnostic name.
func (c *Channel) Name() string { return c.name }

// Role returns the socket role the channel sends from.
func (c *Channel) Role() protocol.SocketRole { return c.role }

// Remote returns the peer address.
func (c *Channel) Remote() netadr.Address { return c.remote }

// IsLoopback reports whether the peer is in-process.
func (c *Channel) IsLoopback() bool { return c.remote.IsLoopback() }

// IsClosed reports whether Shutdown was called.
func (c *Channel) IsClosed() bool { return c.closed }

// InSequence returns the last accepted incoming sequence.
func (c *Channel) InSequence() int32 { return c.inSeq }

// OutSequence returns the sequence the next packet will carry.
func (c *Channel) OutSequence() int32 { return c.outSeq }

// OutSequenceAck returns the last of our sequences the peer acknowledged.
func (c *Channel) OutSequenceAck() int32 { return c.outSeqAck }

// OutReliableState returns the outgoing subchannel bits.
func (c *Channel) OutReliableState() byte { return c.outReliableState }

// InReliableState returns the incoming subchannel bits.
func (c *Channel) InReliableState() byte { return c.inReliableState }

// PacketDrop returns the sequences lost before the last accepted packet.
func (c *Channel) PacketDrop() int { return c.packetDrop }

// Crashes returns how many connection-fatal errors were reported.
func (c *Channel) Crashes() int { return c.crashes }

// SubChannelState returns the state of subchannel i.
func (c *Channel) SubChannelState(i int) SubChannelState {
	if i < 0 || i >= len(c.subChannels) {
		return SubChannelFree
	}
	return c.subChannels[i].state
}

// WaitingCount returns the number of payloads queued on stream.
func (c *Channel) WaitingCount(stream protocol.Stream) int {
	if stream < 0 || int(stream) >= protocol.MaxStreams {
		return 0
	}
	return len(c.waiting[stream])
}

// HasPendingReliableData reports whether reliable data awaits delivery.
func (c *Channel) HasPendingReliableData() bool {
	return c.reliable.BitsWritten() > 0 ||
		len(c.waiting[protocol.StreamNormal]) > 0 ||
		len(c.waiting[protocol.StreamFile]) > 0
}

// Rate returns the pacing rate in bytes per second.
func (c *Channel) Rate() int { return c.rate }

// SetRate sets the pacing rate, clamped to the protocol limits.
func (c *Channel) SetRate(rate int) {
	c.rate = min(max(rate, protocol.MinRate), protocol.MaxRate)
}

// SetMaxRoutablePayload sets the unsplit datagram limit.
func (c *Channel) SetMaxRoutablePayload(n int) {
	c.maxRoutable = min(max(n, protocol.MinSplitSize+protocol.SplitHeaderBytes), protocol.MaxRoutable)
}

// SetMaxReliablePayload sets the reliable window size in bytes.
func (c *Channel) SetMaxReliablePayload(n int) {
	c.maxReliable = min(max(n, protocol.FragmentSize), protocol.MaxPayload)
}

// SetChallenge sets the challenge carried in every packet.
func (c *Channel) SetChallenge(challenge uint32) { c.challenge = challenge }

// SetTimeout sets the idle timeout; negative disables it.
func (c *Channel) SetTimeout(d time.Duration) { c.timeout = d }

// NextSplitSequence implements transport.SplitSource.
func (c *Channel) NextSplitSequence() int32 {
	c.splitSeq++
	return c.splitSeq
}

// MaxRoutablePayload implements transport.SplitSource.
func (c *Channel) MaxRoutablePayload() int { return c.maxRoutable }

func (c *Channel) windowFragments() int {
	n := c.maxReliable / protocol.FragmentSize
	if limit := (protocol.MaxPayload - sendHeadroom) / protocol.FragmentSize; n > limit {
		n = limit
	}
	return min(max(n, 1), maxFragmentCount)
}

// SendNetMsg queues msg on the reliable stream if it is reliable (or
// forceReliable is set), on the voice stream if voice is set, and on the
// unreliable stream otherwise. Returns false if the message did not fit.
func (c *Channel) SendNetMsg(msg netmsg.Message, forceReliable, voice bool) bool {
	if c.closed {
		return false
	}
	reliable := msg.Reliable() || forceReliable
	stream := c.unreliable
	switch {
	case voice:
		stream = c.voice
		reliable = false
	case reliable:
		stream = c.reliable
	}

	start := stream.BitsWritten()
	if !netmsg.Write(stream, msg) {
		if !stream.Overflowed() {
			stream.SeekToBit(start)
		}
		c.logger.Debug("message did not fit", "msg", msg.Name(), "reliable", reliable)
		return false
	}
	bits := stream.BitsWritten() - start
	c.msgStats.add(flowOutgoing, msg.Group(), bits)
	c.captureMessage(log.DirectionOut, msg, reliable, bits)
	return true
}

// SendData appends raw message bits to the reliable or unreliable stream.
func (c *Channel) SendData(w *bitbuf.Writer, reliable bool) bool {
	if c.closed {
		return false
	}
	stream := c.unreliable
	if reliable {
		stream = c.reliable
	}
	// overflow is sticky: the reliable stream crashes the connection on
	// the next send, the unreliable stream is dropped
	stream.WriteWriter(w)
	return !stream.Overflowed()
}

// CanPacket reports whether pacing allows a packet now. Loopback channels
// are never paced. The clear time must lie strictly before now, so a
// packet is refused at the exact instant the previous one clears.
func (c *Channel) CanPacket() bool {
	if c.remote.IsLoopback() {
		return true
	}
	return c.clearTime.Before(c.now())
}

// SetChoked records a packet withheld by pacing. The skipped sequence
// number tells the peer the gap was intentional.
func (c *Channel) SetChoked() {
	c.outSeq++
	c.choked++
}

// Transmit sends one packet. With onlyReliable, queued unreliable data is
// discarded first.
func (c *Channel) Transmit(onlyReliable bool) (int32, error) {
	if onlyReliable {
		c.unreliable.Reset()
	}
	return c.SendDatagram(nil)
}

// SendDatagram builds and sends the next packet, appending datagram (if
// any) as unreliable data. Returns the sequence used. Send errors are
// returned after the packet has been accounted as sent.
func (c *Channel) SendDatagram(datagram *bitbuf.Writer) (int32, error) {
	if c.closed {
		return 0, ErrShutdown
	}
	now := c.now()

	if c.reliable.Overflowed() {
		c.crash("reliable stream overflow")
		return 0, ErrReliableOverflow
	}
	if c.reliable.BitsWritten() > 0 {
		c.queueReliable()
	}

	buf := c.pool.Rent(protocol.MaxMessage)
	defer func() { _ = c.pool.Return(buf) }()
	w := bitbuf.NewWriterBuffer(buf)

	w.WriteInt32(c.outSeq)
	w.WriteInt32(c.inSeq)
	flagsPos := w.BitsWritten()
	w.WriteUint8(0)
	checksumPos := -1
	if c.checksum {
		checksumPos = w.BitsWritten()
		w.WriteUint16(0)
	}
	checksumStart := w.BytesWritten()

	w.WriteUint8(c.inReliableState)

	var flags byte
	if c.choked > 0 {
		flags |= protocol.FlagChoked
		// the peer counts anything past 255 as dropped
		w.WriteUint8(uint8(min(c.choked, 0xFF)))
	}
	if c.challenge != 0 {
		flags |= protocol.FlagChallenge
		w.WriteUint32(c.challenge)
	}

	sub := c.sendSubChannelData(w)
	if sub >= 0 {
		flags |= protocol.FlagReliable
	}

	if datagram != nil {
		if datagram.BitsWritten() < w.BitsLeft() {
			w.WriteWriter(datagram)
		} else {
			c.logger.Warn("datagram too large, dropped", "bits", datagram.BitsWritten())
		}
	}
	c.appendStream(w, c.unreliable, "unreliable")
	c.appendStream(w, c.voice, "voice")

	for w.BytesWritten() < protocol.MinRoutable {
		netmsg.WriteNOP(w)
	}
	// at most two NOPs bring the tail pad down to what the flags can carry
	for rem := w.BitsWritten() % 8; rem > 0 && 8-rem > protocol.MaxPadBits; rem = w.BitsWritten() % 8 {
		netmsg.WriteNOP(w)
	}
	if rem := w.BitsWritten() % 8; rem > 0 {
		pad := 8 - rem
		flags |= protocol.EncodePadBits(pad)
		w.WriteUBits(0, pad)
	}

	end := w.BitsWritten()
	w.SeekToBit(flagsPos)
	w.WriteUint8(flags)
	w.SeekToBit(end)

	data := w.Bytes()
	if checksumPos >= 0 {
		sum := Checksum(data[checksumStart:])
		w.SeekToBit(checksumPos)
		w.WriteUint16(sum)
		w.SeekToBit(end)
	}

	_, err := c.sender.SendPacket(c, c.role, c.remote, data)
	if err != nil {
		c.logger.Debug("send failed", "seq", c.outSeq, "error", err)
	}

	total := len(data) + udpHeaderSize
	c.flowNewPacket(flowOutgoing, c.outSeq, c.inSeq, c.choked, 0, total, now)
	c.flowUpdate(flowOutgoing, total, now)

	if c.clearTime.Before(now) {
		c.clearTime = now
	}
	c.clearTime = c.clearTime.Add(time.Duration(float64(total) / float64(c.rate) * float64(time.Second)))
	if c.maxClearTime > 0 {
		if latest := now.Add(c.maxClearTime); c.clearTime.After(latest) {
			c.clearTime = latest
		}
	}

	c.capturePacket(log.DirectionOut, c.outSeq, c.inSeq, flags, c.inReliableState, c.choked, sub, len(data), 0)

	c.choked = 0
	seq := c.outSeq
	c.outSeq++
	return seq, err
}

func (c *Channel) appendStream(w, stream *bitbuf.Writer, name string) {
	switch {
	case stream.Overflowed():
		c.logger.Warn("stream overflow, data dropped", "stream", name)
	case stream.BitsWritten() == 0:
	case stream.BitsWritten() < w.BitsLeft():
		w.WriteWriter(stream)
	default:
		c.logger.Warn("stream data dropped, packet full", "stream", name, "bits", stream.BitsWritten())
	}
	stream.Reset()
}

// queueReliable moves the reliable stream into the normal waiting list.
func (c *Channel) queueReliable() {
	// zero tail bits decode as NOP on the peer
	if rem := c.reliable.BitsWritten() % 8; rem != 0 {
		c.reliable.WriteUBits(0, 8-rem)
	}
	c.createFragments(protocol.StreamNormal, c.reliable.Bytes(), "", 0)
	c.reliable.Reset()
}

// createFragments copies src into a pooled buffer, compressing it when
// worthwhile, and appends it to the stream's waiting list.
func (c *Channel) createFragments(stream protocol.Stream, src []byte, filename string, transferID uint32) {
	f := &fragments{filename: filename, transferID: transferID}
	payload := src
	if c.compression != compress.CodecNone && len(src) >= c.compressMin {
		if enc, ok := compress.Compress(c.compression, src); ok {
			payload = enc
			f.compressed = true
			f.uncompressedSize = len(src)
		}
	}
	f.buf = c.pool.Rent(len(payload))
	copy(f.buf, payload)
	f.bytes = len(payload)
	f.numFragments = protocol.BytesToFragments(f.bytes)
	c.waiting[stream] = append(c.waiting[stream], f)
}

// SendFile queues data on the file stream. The peer validates name and
// delivers the data through Handler.FileReceived.
func (c *Channel) SendFile(name string, transferID uint32, data []byte) error {
	if c.closed {
		return ErrShutdown
	}
	if !ValidTransferName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	if len(data) == 0 {
		return ErrEmptyPayload
	}
	if len(data) > protocol.MaxFileSize {
		return fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(data))
	}
	c.createFragments(protocol.StreamFile, data, name, transferID)
	return nil
}

// RequestFile asks the peer for a file and returns the transfer id.
func (c *Channel) RequestFile(name string) uint32 {
	id := c.fileRequestCounter
	c.fileRequestCounter++
	netmsg.WriteFile(c.reliable, netmsg.FileMessage{TransferID: id, Filename: name, Requested: true})
	c.captureControl(log.DirectionOut, log.ControlMsgFileRequest, "", name, id)
	return id
}

// DenyFile refuses a file request from the peer.
func (c *Channel) DenyFile(name string, transferID uint32) {
	netmsg.WriteFile(c.reliable, netmsg.FileMessage{TransferID: transferID, Filename: name})
	c.captureControl(log.DirectionOut, log.ControlMsgFileDeny, "", name, transferID)
}

// Clear discards all queued reliable and unreliable data. Subchannels not
// yet sent are freed; those in flight are marked dirty.
func (c *Channel) Clear() {
	for i := range c.subChannels {
		sub := &c.subChannels[i]
		switch sub.state {
		case SubChannelToSend:
			c.outReliableState ^= 1 << sub.index
			c.setSubChannelState(sub, SubChannelFree)
		case SubChannelWaiting:
			c.setSubChannelState(sub, SubChannelDirty)
		}
	}
	for stream := range c.waiting {
		for _, f := range c.waiting[stream] {
			c.releaseFragments(f)
		}
		c.waiting[stream] = nil
	}
	for stream := range c.receive {
		c.releaseReceive(stream)
	}
	c.reliable.Reset()
	c.unreliable.Reset()
	c.voice.Reset()
}

// Shutdown clears the channel, sends a disconnect carrying reason (unless
// empty), releases every buffer and calls Handler.ConnectionStop.
// Subsequent calls do nothing.
func (c *Channel) Shutdown(reason string) {
	if c.closed {
		return
	}
	c.Clear()
	if reason != "" {
		netmsg.WriteDisconnect(c.unreliable, reason)
		c.captureControl(log.DirectionOut, log.ControlMsgDisconnect, reason, "", 0)
		if _, err := c.Transmit(false); err != nil {
			c.logger.Debug("disconnect not sent", "error", err)
		}
	}
	c.closed = true
	for _, buf := range c.streamBufs {
		if err := c.pool.Return(buf); err != nil {
			c.logger.Error("stream buffer return failed", "error", err)
		}
	}
	c.streamBufs = nil
	c.captureState(log.StateEntityChannel, "OPEN", "CLOSED", reason, 0)
	c.handler.ConnectionStop()
}

// IsTimedOut reports whether nothing was received for the timeout.
func (c *Channel) IsTimedOut() bool {
	if c.timeout < 0 {
		return false
	}
	return c.now().Sub(c.lastReceived) > c.timeout
}

// IsTimingOut reports whether the connection looks interrupted.
func (c *Channel) IsTimingOut() bool {
	if c.timeout < 0 {
		return false
	}
	return c.now().Sub(c.lastReceived) > protocol.ConnectionProblemTime
}

// TimeConnected returns the time since the channel was created.
func (c *Channel) TimeConnected() time.Duration { return c.now().Sub(c.connectTime) }

// TimeSinceLastReceived returns the time since the last valid packet.
func (c *Channel) TimeSinceLastReceived() time.Duration { return c.now().Sub(c.lastReceived) }

func (c *Channel) setSubChannelState(sub *subChannel, state SubChannelState) {
	old := sub.state
	if state == SubChannelFree {
		sub.free()
	} else {
		sub.state = state
	}
	if old != state {
		c.captureState(log.StateEntitySubChannel, old.String(), state.String(), "", sub.index)
	}
}

func (c *Channel) releaseFragments(f *fragments) {
	if f.buf == nil {
		return
	}
	if err := c.pool.Return(f.buf); err != nil {
		c.logger.Error("fragment buffer return failed", "error", err)
	}
	f.buf = nil
}

func (c *Channel) releaseReceive(stream int) {
	c.releaseFragments(&c.receive[stream])
	c.receive[stream] = fragments{}
}

// crash reports a connection-fatal condition to the handler.
func (c *Channel) crash(reason string) {
	c.crashes++
	c.logger.Warn("connection crashed", "reason", reason)
	c.captureError(reason, true)
	c.handler.ConnectionCrashed(reason)
}
