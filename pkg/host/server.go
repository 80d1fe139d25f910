package host

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netmsg"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/signon"
)

// Print sends text to one client.
func (h *Host) Print(id netmsg.ChannelID, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, err := h.serverPeer(id)
	if err != nil {
		return err
	}
	if !p.ch.SendNetMsg(&netmsg.Print{Text: text}, true, false) {
		return ErrSendFailed
	}
	return nil
}

// Broadcast sends text to every client and returns how many accepted it.
func (h *Host) Broadcast(text string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, p := range h.peers {
		if p.isServerSide() && p.ch.SendNetMsg(&netmsg.Print{Text: text}, true, false) {
			n++
		}
	}
	return n
}

// Kick disconnects a client with reason.
func (h *Host) Kick(id netmsg.ChannelID, reason string) error {
	if reason == "" {
		reason = ReasonKicked
	}
	h.mu.Lock()
	p, err := h.serverPeer(id)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	h.teardown(p, reason, true)
	events := h.takeEvents()
	h.mu.Unlock()
	h.dispatch(events)
	return nil
}

// ChangeLevel switches the map. Every client past Connected is sent back
// through sign-on with a new spawn count.
func (h *Host) ChangeLevel(mapName string) error {
	if !h.config.Server {
		return ErrNotServer
	}
	h.mu.Lock()
	h.mapName = mapName
	h.spawnCount++
	h.advertDirty = true
	for _, p := range h.peers {
		if !p.isServerSide() || p.signon.State() <= signon.StateConnected {
			continue
		}
		if err := p.signon.Transition(signon.StateChangeLevel, h.spawnCount); err != nil {
			h.logger.Warn("change level", "peer", p.ch.Name(), "error", err)
			continue
		}
		p.ch.SendNetMsg(signon.NewStateMessage(signon.StateChangeLevel, h.spawnCount), false, false)
	}
	events := h.takeEvents()
	h.mu.Unlock()
	h.dispatch(events)
	return nil
}

// Map returns the current map.
func (h *Host) Map() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mapName
}

// SpawnCount returns the server's spawn count.
func (h *Host) SpawnCount() int32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.spawnCount
}

// Peers returns a snapshot of every channel, ordered by handle.
func (h *Host) Peers() []PeerInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	infos := make([]PeerInfo, 0, len(h.peers))
	for _, p := range h.peers {
		infos = append(infos, p.info())
	}
	slices.SortFunc(infos, func(a, b PeerInfo) int { return cmp.Compare(a.ID, b.ID) })
	return infos
}

// Peer returns a snapshot of one channel.
func (h *Host) Peer(id netmsg.ChannelID) (PeerInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := h.peers[id]
	if p == nil {
		return PeerInfo{}, false
	}
	return p.info(), true
}

func (h *Host) serverPeer(id netmsg.ChannelID) (*Peer, error) {
	if !h.config.Server {
		return nil, ErrNotServer
	}
	p := h.peers[id]
	if p == nil || !p.isServerSide() {
		return nil, fmt.Errorf("%w: peer %d", ErrNotConnected, id)
	}
	return p, nil
}
