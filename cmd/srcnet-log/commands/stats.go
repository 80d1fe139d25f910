package commands

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/log"
)

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Messages          map[string]int
	Connections       map[string]*ConnectionStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single channel.
type ConnectionStats struct {
	FirstSeen   time.Time
	LastSeen    time.Time
	Events      int
	Channel     string
	Remote      string
	PacketsIn   int
	PacketsOut  int
	BytesIn     int
	BytesOut    int
	Dropped     int
	Choked      int
	LastSignOn  string
	Disconnects int
}

// Collect reads every event of the capture file into Stats.
func Collect(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Messages:          make(map[string]int),
		Connections:       make(map[string]*ConnectionStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}
	if event.Message != nil {
		s.Messages[event.Message.Name]++
	}
	if event.Error != nil {
		s.Errors++
	}

	// transport events before a channel exists carry no connection id
	if event.ConnectionID == "" {
		return
	}
	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
		}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}
	if conn.Channel == "" {
		conn.Channel = event.ChannelName
	}
	if conn.Remote == "" {
		conn.Remote = event.RemoteAddr
	}

	switch {
	case event.Packet != nil:
		if event.Direction == log.DirectionIn {
			conn.PacketsIn++
			conn.BytesIn += event.Packet.Bytes
			conn.Dropped += event.Packet.Dropped
		} else {
			conn.PacketsOut++
			conn.BytesOut += event.Packet.Bytes
			conn.Choked += int(event.Packet.Choked)
		}
	case event.StateChange != nil && event.StateChange.Entity == log.StateEntitySignOn:
		conn.LastSignOn = event.StateChange.NewState
	case event.ControlMsg != nil && event.ControlMsg.Type == log.ControlMsgDisconnect:
		conn.Disconnects++
	}
}

// RunStats analyzes the capture file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := Collect(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== srcnet Capture Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerChannel, log.LayerMessage} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryPacket, log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Messages) > 0 {
		fmt.Fprintln(w, "Messages:")
		names := make([]string, 0, len(stats.Messages))
		for name := range stats.Messages {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-20s %d\n", name+":", stats.Messages[name])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		slices.SortFunc(conns, func(a, b connInfo) int {
			return cmp.Or(a.stats.FirstSeen.Compare(b.stats.FirstSeen), cmp.Compare(a.id, b.id))
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %s %d events, duration %s\n",
				shortenConnID(c.id), c.stats.Channel, c.stats.Events, duration)
			if c.stats.Remote != "" {
				fmt.Fprintf(w, "           Remote: %s\n", c.stats.Remote)
			}
			fmt.Fprintf(w, "           Packets: %d in (%d bytes), %d out (%d bytes)\n",
				c.stats.PacketsIn, c.stats.BytesIn, c.stats.PacketsOut, c.stats.BytesOut)
			if c.stats.Dropped > 0 || c.stats.Choked > 0 {
				fmt.Fprintf(w, "           Dropped: %d  Choked: %d\n", c.stats.Dropped, c.stats.Choked)
			}
			if c.stats.LastSignOn != "" {
				fmt.Fprintf(w, "           Sign-on: %s\n", c.stats.LastSignOn)
			}
			if c.stats.Disconnects > 0 {
				fmt.Fprintf(w, "           Disconnects: %d\n", c.stats.Disconnects)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
