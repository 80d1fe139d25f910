package host

import (
	"bytes"
	"io/fs"
	"strconv"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netchan"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netmsg"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/signon"
)

// Peer is one channel owned by the host together with its sign-on state.
type Peer struct {
	id     netmsg.ChannelID
	name   string
	role   protocol.SocketRole
	ch     *netchan.Channel
	signon *signon.Machine

	// teardown requested from inside packet processing
	dropReason string
	dropNotify bool
	dropping   bool

	timingOut bool
}

// PeerInfo is a snapshot of a peer.
type PeerInfo struct {
	netchan.Info
	Player string
	SignOn signon.State
}

func (p *Peer) info() PeerInfo {
	return PeerInfo{Info: p.ch.Info(), Player: p.name, SignOn: p.signon.State()}
}

// isServerSide reports whether the host accepted this peer.
func (p *Peer) isServerSide() bool { return p.role == protocol.SocketServer }

// peerHandler forwards channel notifications to the host.
type peerHandler struct {
	netchan.NoopHandler
	h *Host
	p *Peer
}

func (ph *peerHandler) ConnectionClosing(reason string) {
	ph.h.dropLater(ph.p, reason, false)
}

func (ph *peerHandler) ConnectionCrashed(reason string) {
	ph.h.dropLater(ph.p, reason, true)
}

func (ph *peerHandler) FileRequested(name string, transferID uint32) {
	ph.h.serveFile(ph.p, name, transferID)
}

func (ph *peerHandler) FileReceived(name string, transferID uint32, data []byte) {
	ph.h.emit(Event{
		Type:       EventFileReceived,
		Peer:       ph.p.id,
		Remote:     ph.p.ch.Remote(),
		Filename:   name,
		TransferID: transferID,
		Data:       bytes.Clone(data),
	})
}

func (ph *peerHandler) FileDenied(name string, transferID uint32) {
	ph.h.emit(Event{
		Type:       EventFileDenied,
		Peer:       ph.p.id,
		Remote:     ph.p.ch.Remote(),
		Filename:   name,
		TransferID: transferID,
	})
}

var _ netchan.Handler = (*peerHandler)(nil)

// dropLater marks p for teardown once the current packet is processed.
func (h *Host) dropLater(p *Peer, reason string, notify bool) {
	if p.dropping {
		return
	}
	p.dropping = true
	p.dropReason = reason
	p.dropNotify = notify
}

// serveFile answers a file request from Config.Files.
func (h *Host) serveFile(p *Peer, name string, transferID uint32) {
	if h.config.Files == nil || !netchan.ValidTransferName(name) {
		p.ch.DenyFile(name, transferID)
		return
	}
	data, err := fs.ReadFile(h.config.Files, name)
	if err != nil {
		h.logger.Debug("file request denied", "peer", p.ch.Name(), "file", name, "error", err)
		p.ch.DenyFile(name, transferID)
		return
	}
	if err := p.ch.SendFile(name, transferID, data); err != nil {
		h.logger.Debug("file request denied", "peer", p.ch.Name(), "file", name, "error", err)
		p.ch.DenyFile(name, transferID)
	}
}

// handleSignonState drives both sides of the sign-on exchange. The server
// advances one state for every echo of its current state; the client
// follows the server and echoes each state back.
func (h *Host) handleSignonState(m *signon.StateMessage) bool {
	p := h.peers[m.Channel()]
	if p == nil {
		return false
	}

	if p.isServerSide() {
		cur := p.signon.State()
		if m.State != cur {
			h.logger.Debug("ignoring stale sign-on echo", "peer", p.ch.Name(), "echo", m.State.String(), "state", cur.String())
			return true
		}
		if cur == signon.StateFull {
			return true
		}
		next, err := p.signon.Advance()
		if err != nil {
			h.logger.Warn("sign-on advance failed", "peer", p.ch.Name(), "error", err)
			return false
		}
		return p.ch.SendNetMsg(signon.NewStateMessage(next, h.spawnCount), false, false)
	}

	if err := p.signon.Transition(m.State, m.SpawnCount); err != nil {
		h.logger.Warn("server sent invalid sign-on state", "error", err)
		return false
	}
	return p.ch.SendNetMsg(signon.NewStateMessage(m.State, m.SpawnCount), false, false)
}

func (h *Host) handleStringCmd(m *netmsg.StringCmd) bool {
	p := h.peers[m.Channel()]
	if p == nil || !p.isServerSide() {
		return false
	}
	if !p.signon.Allows(m.Group()) {
		h.logger.Debug("string command before sign-on", "peer", p.ch.Name())
		return true
	}
	h.emit(Event{Type: EventCommand, Peer: p.id, Remote: p.ch.Remote(), Text: m.Command})
	return true
}

// handleSetConVar applies the convars the transport cares about. Others are
// ignored.
func (h *Host) handleSetConVar(m *netmsg.SetConVar) bool {
	p := h.peers[m.Channel()]
	if p == nil {
		return false
	}
	for _, cv := range m.ConVars {
		switch cv.Name {
		case "rate":
			if rate, err := strconv.Atoi(cv.Value); err == nil {
				p.ch.SetRate(rate)
			}
		case "name":
			if p.isServerSide() && cv.Value != "" && len(cv.Value) <= MaxPlayerNameLength {
				p.name = cv.Value
			}
		}
	}
	return true
}

func (h *Host) handlePrint(m *netmsg.Print) bool {
	p := h.peers[m.Channel()]
	if p == nil {
		return false
	}
	h.emit(Event{Type: EventPrint, Peer: p.id, Remote: p.ch.Remote(), Text: m.Text})
	return true
}
