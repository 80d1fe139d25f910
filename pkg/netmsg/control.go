package netmsg

import (
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/bitbuf"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

// Limits for control message strings.
const (
	MaxReasonLength = 1024
)

// WriteNOP writes a no-op tag.
func WriteNOP(w *bitbuf.Writer) {
	w.WriteUBits(protocol.NetNOP, protocol.MessageTypeBits)
}

// WriteDisconnect writes a disconnect message with a reason.
func WriteDisconnect(w *bitbuf.Writer, reason string) {
	if len(reason) > MaxReasonLength {
		reason = reason[:MaxReasonLength]
	}
	w.WriteUBits(protocol.NetDisconnect, protocol.MessageTypeBits)
	w.WriteString(reason)
}

// ReadDisconnect reads the body of a disconnect message.
func ReadDisconnect(r *bitbuf.Reader) (string, bool) {
	return r.ReadString(MaxReasonLength)
}

// FileMessage is the body of a net_File control message.
type FileMessage struct {
	TransferID uint32
	Filename   string

	// Requested is true for a request, false for a denial.
	Requested bool
}

// WriteFile writes a file request or denial.
func WriteFile(w *bitbuf.Writer, m FileMessage) {
	w.WriteUBits(protocol.NetFile, protocol.MessageTypeBits)
	w.WriteUint32(m.TransferID)
	w.WriteString(m.Filename)
	w.WriteOneBit(m.Requested)
}

// ReadFile reads the body of a net_File message.
func ReadFile(r *bitbuf.Reader) (FileMessage, bool) {
	var m FileMessage
	m.TransferID = r.ReadUint32()
	name, ok := r.ReadString(protocol.MaxOSPath)
	if !ok {
		return m, false
	}
	m.Filename = name
	m.Requested = r.ReadOneBit()
	return m, !r.Overflowed()
}
