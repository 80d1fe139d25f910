// Package commands implements the srcnet-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
	Message   string
}

func (f ViewFilter) logFilter() log.Filter {
	return log.Filter{
		Layer:       f.Layer,
		Direction:   f.Direction,
		Category:    f.Category,
		MessageName: f.Message,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// timestamp [conn:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(event.ConnectionID)

	layerStr := event.Layer.String()
	if event.Category == log.CategoryControl {
		layerStr = "CTRL"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s", ts, connID, event.Direction.String(), layerStr, typeLabel(event))
	if event.ChannelName != "" {
		fmt.Fprintf(w, " (%s)", event.ChannelName)
	} else if event.RemoteAddr != "" {
		fmt.Fprintf(w, " (%s)", event.RemoteAddr)
	}
	fmt.Fprintln(w)

	switch {
	case event.Datagram != nil:
		formatDatagramDetails(w, event.Datagram)
	case event.Packet != nil:
		formatPacketDetails(w, event.Packet)
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.ControlMsg != nil:
		formatControlDetails(w, event.ControlMsg)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

func typeLabel(event log.Event) string {
	switch {
	case event.Datagram != nil:
		switch {
		case event.Datagram.Connectionless:
			return "Connectionless"
		case event.Datagram.Split != nil:
			return "Split"
		}
		return "Datagram"
	case event.Packet != nil:
		return "Packet"
	case event.Message != nil:
		return event.Message.Name
	case event.StateChange != nil:
		return "State"
	case event.ControlMsg != nil:
		return event.ControlMsg.Type.String()
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatDatagramDetails(w io.Writer, d *log.DatagramEvent) {
	fmt.Fprintf(w, "  Size: %d bytes", d.Size)
	if d.PayloadSize > 0 && d.PayloadSize != d.Size {
		fmt.Fprintf(w, " (payload %d)", d.PayloadSize)
	}
	if d.Codec != "" {
		fmt.Fprintf(w, " codec %s", d.Codec)
	}
	fmt.Fprintln(w)
	if d.Split != nil {
		fmt.Fprintf(w, "  Split: seq %d part %d/%d size %d\n",
			d.Split.Sequence, d.Split.Index+1, d.Split.Count, d.Split.Size)
	}
	if len(d.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(d.Data))
		if d.Truncated {
			fmt.Fprint(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatPacketDetails(w io.Writer, p *log.PacketEvent) {
	fmt.Fprintf(w, "  Seq: %d  Ack: %d  Flags: 0x%02x  Reliable: %08b\n",
		p.Sequence, p.Ack, p.Flags, p.ReliableState)
	fmt.Fprintf(w, "  Bytes: %d", p.Bytes)
	if p.SubChannel >= 0 {
		fmt.Fprintf(w, "  SubChannel: %d", p.SubChannel)
	}
	if p.Choked > 0 {
		fmt.Fprintf(w, "  Choked: %d", p.Choked)
	}
	if p.Dropped > 0 {
		fmt.Fprintf(w, "  Dropped: %d", p.Dropped)
	}
	fmt.Fprintln(w)
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	stream := "unreliable"
	if msg.Reliable {
		stream = "reliable"
	}
	fmt.Fprintf(w, "  Tag: %d  Bits: %d  Stream: %s", msg.Tag, msg.Bits, stream)
	if msg.Group != "" {
		fmt.Fprintf(w, "  Group: %s", msg.Group)
	}
	fmt.Fprintln(w)
	if msg.Summary != "" {
		fmt.Fprintf(w, "  %s\n", msg.Summary)
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s", sc.Entity.String())
	if sc.Entity == log.StateEntitySubChannel {
		fmt.Fprintf(w, " %d", sc.Index)
	}
	fmt.Fprintln(w)
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatControlDetails(w io.Writer, c *log.ControlMsgEvent) {
	if c.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", c.Reason)
	}
	if c.Filename != "" {
		fmt.Fprintf(w, "  File: %s (transfer %d)\n", c.Filename, c.TransferID)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Fatal {
		fmt.Fprintln(w, "  Fatal: yes")
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// ParseLayerFlag parses a layer string from command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "channel":
		return log.LayerChannel, nil
	case "message":
		return log.LayerMessage, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, channel, or message)", s)
	}
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "packet":
		return log.CategoryPacket, nil
	case "message":
		return log.CategoryMessage, nil
	case "control":
		return log.CategoryControl, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be packet, message, control, state, or error)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.logFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
