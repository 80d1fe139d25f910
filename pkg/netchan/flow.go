package netchan

import (
	"time"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netmsg"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

// Flow selects a traffic direction for statistics.
type Flow int

const (
	FlowOutgoing Flow = iota
	FlowIncoming
)

const (
	flowOutgoing = FlowOutgoing
	flowIncoming = FlowIncoming
	maxFlows     = 2

	// udpHeaderSize is added to every packet for bandwidth accounting.
	udpHeaderSize = 28

	netFramesBackup = 64
	netFramesMask   = netFramesBackup - 1

	// notAcked marks a frame whose latency is unknown.
	notAcked = time.Duration(-1)
)

// String returns the flow name.
func (f Flow) String() string {
	switch f {
	case FlowOutgoing:
		return "out"
	case FlowIncoming:
		return "in"
	default:
		return "unknown"
	}
}

type netFrame struct {
	time    time.Time
	size    int
	latency time.Duration
	choked  int
	dropped int
	valid   bool
}

type netFlow struct {
	nextCompute time.Time

	avgBytesPerSec   float64
	avgPacketsPerSec float64
	avgLoss          float64
	avgChoke         float64
	latency          time.Duration

	totalPackets int64
	totalBytes   int64

	currentIndex int32
	frames       [netFramesBackup]netFrame
}

func (f *netFlow) reset() {
	*f = netFlow{}
	for i := range f.frames {
		f.frames[i].latency = notAcked
	}
}

// flowNewPacket records packet seq in flow. Skipped sequences become
// invalid frames, counted as choked or dropped. The ack completes the
// latency of the matching frame in the opposite flow.
func (c *Channel) flowNewPacket(flow Flow, seq, ack int32, choked, dropped, size int, now time.Time) {
	f := &c.flows[flow]
	if seq > f.currentIndex {
		// at most one ring's worth of frames needs resetting
		first := max(f.currentIndex+1, seq-netFramesBackup+1)
		var frame *netFrame
		for i := first; i <= seq; i++ {
			back := int(seq - i)
			frame = &f.frames[i&netFramesMask]
			*frame = netFrame{time: now, latency: notAcked}
			if back < choked+dropped {
				if back < choked {
					frame.choked = 1
				} else {
					frame.dropped = 1
				}
			}
		}
		frame.dropped = dropped
		frame.choked = choked
		frame.size = size
		frame.valid = true
	}
	f.totalPackets++
	f.currentIndex = seq

	other := &c.flows[1-flow]
	if ack <= other.currentIndex-netFramesBackup {
		return
	}
	af := &other.frames[ack&netFramesMask]
	if af.valid && af.latency == notAcked {
		af.latency = max(now.Sub(af.time), 0)
	}
}

// flowUpdate adds bytes to the totals and recomputes the averages at most
// once per protocol.FlowInterval.
func (c *Channel) flowUpdate(flow Flow, bytes int, now time.Time) {
	f := &c.flows[flow]
	f.totalBytes += int64(bytes)
	if f.nextCompute.After(now) {
		return
	}
	f.nextCompute = now.Add(protocol.FlowInterval)

	var (
		valid, invalid, choked, total int
		latency                       time.Duration
		latencyCount                  int
		start, end                    time.Time
	)
	for i := int32(0); i < netFramesBackup; i++ {
		seq := f.currentIndex - i
		if seq <= 0 {
			break
		}
		fr := &f.frames[seq&netFramesMask]
		if !fr.valid {
			invalid++
			continue
		}
		if start.IsZero() || fr.time.Before(start) {
			start = fr.time
		}
		if fr.time.After(end) {
			end = fr.time
		}
		valid++
		choked += fr.choked
		total += fr.size
		if fr.latency > notAcked {
			latency += fr.latency
			latencyCount++
		}
	}

	if span := end.Sub(start).Seconds(); span > 0 {
		f.avgBytesPerSec = f.avgBytesPerSec*protocol.FlowAvg + (1-protocol.FlowAvg)*float64(total)/span
		f.avgPacketsPerSec = f.avgPacketsPerSec*protocol.FlowAvg + (1-protocol.FlowAvg)*float64(valid)/span
	}
	if packets := valid + invalid; packets > 0 {
		f.avgLoss = max(f.avgLoss*protocol.FlowAvg+(1-protocol.FlowAvg)*float64(invalid-choked)/float64(packets), 0)
		f.avgChoke = f.avgChoke*protocol.FlowAvg + (1-protocol.FlowAvg)*float64(choked)/float64(packets)
	} else {
		f.avgLoss = 0
	}
	if latencyCount > 0 {
		f.latency = latency / time.Duration(latencyCount)
	}
}

func validFlow(flow Flow) bool { return flow == FlowOutgoing || flow == FlowIncoming }

// Latency returns the average round trip of acknowledged packets in flow.
func (c *Channel) Latency(flow Flow) time.Duration {
	if !validFlow(flow) {
		return 0
	}
	return c.flows[flow].latency
}

// AvgLoss returns the smoothed fraction of lost packets.
func (c *Channel) AvgLoss(flow Flow) float64 {
	if !validFlow(flow) {
		return 0
	}
	return c.flows[flow].avgLoss
}

// AvgChoke returns the smoothed fraction of choked packets.
func (c *Channel) AvgChoke(flow Flow) float64 {
	if !validFlow(flow) {
		return 0
	}
	return c.flows[flow].avgChoke
}

// AvgData returns the smoothed bytes per second.
func (c *Channel) AvgData(flow Flow) float64 {
	if !validFlow(flow) {
		return 0
	}
	return c.flows[flow].avgBytesPerSec
}

// AvgPackets returns the smoothed packets per second.
func (c *Channel) AvgPackets(flow Flow) float64 {
	if !validFlow(flow) {
		return 0
	}
	return c.flows[flow].avgPacketsPerSec
}

// TotalData returns the bytes counted in flow, including UDP headers.
func (c *Channel) TotalData(flow Flow) int64 {
	if !validFlow(flow) {
		return 0
	}
	return c.flows[flow].totalBytes
}

// TotalPackets returns the packets counted in flow.
func (c *Channel) TotalPackets(flow Flow) int64 {
	if !validFlow(flow) {
		return 0
	}
	return c.flows[flow].totalPackets
}

// MessageStats holds encoded message bits per traffic group.
type MessageStats struct {
	In  [netmsg.GroupTotal]int64
	Out [netmsg.GroupTotal]int64
}

func (s *MessageStats) add(flow Flow, g netmsg.Group, bits int) {
	if g >= netmsg.GroupTotal {
		return
	}
	if flow == FlowIncoming {
		s.In[g] += int64(bits)
	} else {
		s.Out[g] += int64(bits)
	}
}

// MessageStats returns the per-group message bit counters.
func (c *Channel) MessageStats() MessageStats { return c.msgStats }
