package netchan

import (
	"sort"
	"sync"
	"time"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netmsg"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

// Info is a point-in-time view of a channel for diagnostics.
type Info struct {
	ID           netmsg.ChannelID
	ConnectionID string
	Name         string
	Role         protocol.SocketRole
	Remote       string
	InSequence   int32
	OutSequence  int32
	OutAck       int32
	Rate         int
	Latency      time.Duration
	Loss         float64
	Choke        float64
	BytesIn      int64
	BytesOut     int64
	Waiting      [protocol.MaxStreams]int
	Connected    time.Duration
	Idle         time.Duration
}

// Info returns a diagnostic view of the channel.
func (c *Channel) Info() Info {
	info := Info{
		ID:           c.id,
		ConnectionID: c.connID,
		Name:         c.name,
		Role:         c.role,
		Remote:       c.remote.String(),
		InSequence:   c.inSeq,
		OutSequence:  c.outSeq,
		OutAck:       c.outSeqAck,
		Rate:         c.rate,
		Latency:      c.Latency(FlowOutgoing),
		Loss:         c.AvgLoss(FlowIncoming),
		Choke:        c.AvgChoke(FlowOutgoing),
		BytesIn:      c.TotalData(FlowIncoming),
		BytesOut:     c.TotalData(FlowOutgoing),
		Connected:    c.TimeConnected(),
		Idle:         c.TimeSinceLastReceived(),
	}
	for s := range info.Waiting {
		info.Waiting[s] = len(c.waiting[s])
	}
	return info
}

type routeKey struct {
	role protocol.SocketRole
	addr netadr.Address
}

// Registry tracks the active channels of a host. Messages refer to their
// channel by the handle Add assigns.
//
// Channels themselves are owned by the tick goroutine. The registry lock
// only guards the lookup tables and the published diagnostics, so Snapshot
// may be called from any goroutine.
type Registry struct {
	mu     sync.RWMutex
	nextID netmsg.ChannelID
	byID   map[netmsg.ChannelID]*Channel
	byAddr map[routeKey]*Channel
	infos  map[netmsg.ChannelID]Info
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[netmsg.ChannelID]*Channel),
		byAddr: make(map[routeKey]*Channel),
		infos:  make(map[netmsg.ChannelID]Info),
	}
}

// Add registers ch and assigns its handle. A channel already registered for
// the same role and address is replaced.
func (r *Registry) Add(ch *Channel) netmsg.ChannelID {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := routeKey{ch.role, ch.remote.Key()}
	if old, ok := r.byAddr[key]; ok {
		delete(r.byID, old.id)
		delete(r.infos, old.id)
	}
	r.nextID++
	ch.id = r.nextID
	r.byID[ch.id] = ch
	r.byAddr[key] = ch
	r.infos[ch.id] = ch.Info()
	return ch.id
}

// Remove unregisters the channel with handle id.
func (r *Registry) Remove(id netmsg.ChannelID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)
	delete(r.infos, id)
	key := routeKey{ch.role, ch.remote.Key()}
	if r.byAddr[key] == ch {
		delete(r.byAddr, key)
	}
	return true
}

// Get returns the channel with handle id.
func (r *Registry) Get(id netmsg.ChannelID) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.byID[id]
	return ch, ok
}

// Find returns the channel talking to addr from the socket role.
func (r *Registry) Find(role protocol.SocketRole, addr netadr.Address) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.byAddr[routeKey{role, addr.Key()}]
	return ch, ok
}

// Len returns the number of registered channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Channels returns the registered channels ordered by handle.
func (r *Registry) Channels() []*Channel {
	r.mu.RLock()
	out := make([]*Channel, 0, len(r.byID))
	for _, ch := range r.byID {
		out = append(out, ch)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Publish refreshes the diagnostics of every channel. Call it from the
// goroutine that owns the channels.
func (r *Registry) Publish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ch := range r.byID {
		r.infos[id] = ch.Info()
	}
}

// Snapshot returns the diagnostics from the last Publish, ordered by handle.
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.infos))
	for _, info := range r.infos {
		out = append(out, info)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
