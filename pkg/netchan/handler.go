package netchan

// Handler receives channel notifications. All methods are called from the
// goroutine driving the channel.
type Handler interface {
	// ConnectionStart is called once when the channel is created.
	ConnectionStart(ch *Channel)

	// ConnectionClosing is called when the peer sent a disconnect.
	ConnectionClosing(reason string)

	// ConnectionCrashed is called on a connection-fatal protocol error. The
	// channel stays usable; the owner decides whether to tear it down.
	ConnectionCrashed(reason string)

	// ConnectionStop is called once from Shutdown.
	ConnectionStop()

	// PacketStart and PacketEnd bracket the processing of each valid packet.
	PacketStart(inSequence, outSequenceAck int32)
	PacketEnd()

	// FileRequested is called when the peer asks for a file.
	FileRequested(name string, transferID uint32)

	// FileReceived delivers a completed file transfer. data is only valid
	// during the call.
	FileReceived(name string, transferID uint32, data []byte)

	// FileDenied is called when the peer refused a file request.
	FileDenied(name string, transferID uint32)
}

// NoopHandler ignores every notification. Embed it to implement a subset.
type NoopHandler struct{}

func (NoopHandler) ConnectionStart(*Channel)            {}
func (NoopHandler) ConnectionClosing(string)            {}
func (NoopHandler) ConnectionCrashed(string)            {}
func (NoopHandler) ConnectionStop()                     {}
func (NoopHandler) PacketStart(int32, int32)            {}
func (NoopHandler) PacketEnd()                          {}
func (NoopHandler) FileRequested(string, uint32)        {}
func (NoopHandler) FileReceived(string, uint32, []byte) {}
func (NoopHandler) FileDenied(string, uint32)           {}

var _ Handler = NoopHandler{}
