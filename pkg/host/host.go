package host

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/connection"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/discovery"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/log"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netchan"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netmsg"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/signon"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/transport"
)

// Disconnect reasons.
const (
	ReasonTimedOut     = "timed out"
	ReasonServerFull   = "server is full"
	ReasonBadChallenge = "bad challenge"
	ReasonBadVersion   = "protocol version mismatch"
	ReasonShutdown     = "server shutting down"
	ReasonUser         = "disconnect by user"
	ReasonKicked       = "kicked"
)

type issuedChallenge struct {
	value uint32
	at    time.Time
}

// Host owns a transport and every channel on it. All network work happens
// in RunFrame; the exported methods may be called from other goroutines.
// Events are delivered after the frame's lock is released, so handlers may
// call back into the host.
type Host struct {
	mu sync.Mutex

	config    Config
	transport Transport
	logger    *slog.Logger
	plog      log.Logger
	now       func() time.Time

	messages *netmsg.Registry
	channels *netchan.Registry
	peers    map[netmsg.ChannelID]*Peer

	// server side
	challenges  map[netadr.Address]issuedChallenge
	spawnCount  int32
	mapName     string
	advertised  bool
	advertDirty bool

	// client side
	server    netadr.Address
	schedule  *connection.Schedule
	challenge uint32
	client    *Peer

	pending []Event
	started bool
	stopped bool
}

// New creates a host.
func New(config Config) (*Host, error) {
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	h := &Host{
		config:     config,
		transport:  config.Transport,
		logger:     config.Logger,
		plog:       log.OrNoop(config.Protocol),
		now:        config.Now,
		messages:   netmsg.NewRegistry(),
		channels:   netchan.NewRegistry(),
		peers:      make(map[netmsg.ChannelID]*Peer),
		challenges: make(map[netadr.Address]issuedChallenge),
		spawnCount: 1,
		mapName:    config.Map,
	}

	if err := netmsg.RegisterNetMessages(h.messages); err != nil {
		return nil, err
	}
	if err := signon.RegisterMessage(h.messages, h.handleSignonState); err != nil {
		return nil, err
	}
	h.messages.SetHandler(protocol.NetStringCmd, typed(h.handleStringCmd))
	h.messages.SetHandler(protocol.NetSetConVar, typed(h.handleSetConVar))
	h.messages.SetHandler(protocol.SvcPrint, typed(h.handlePrint))
	return h, nil
}

func typed[T netmsg.Message](fn func(T) bool) netmsg.Handler {
	return func(m netmsg.Message) bool {
		v, ok := m.(T)
		return ok && fn(v)
	}
}

// Messages returns the registry shared by the host's channels. Callers may
// register additional message types before Start.
func (h *Host) Messages() *netmsg.Registry { return h.messages }

// Channels returns the channel registry.
func (h *Host) Channels() *netchan.Registry { return h.channels }

// Start begins LAN advertisement when configured.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return ErrStopped
	}
	if h.started {
		return ErrAlreadyStarted
	}
	h.started = true

	if h.config.Server && h.config.Advertiser != nil {
		info, ok := h.serverInfo()
		if !ok {
			h.logger.Info("no server socket, not advertising")
			return nil
		}
		if err := h.config.Advertiser.Advertise(ctx, info); err != nil {
			return fmt.Errorf("advertise server: %w", err)
		}
		h.advertised = true
	}
	return nil
}

// Run starts the host and executes frames at the tick rate until ctx is
// cancelled, then stops the host.
func (h *Host) Run(ctx context.Context) error {
	if err := h.Start(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(time.Second / time.Duration(h.config.TickRate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.Stop()
			return ctx.Err()
		case <-ticker.C:
			h.RunFrame()
		}
	}
}

// Stop tears down every channel with a disconnect and withdraws the
// advertisement. Further frames do nothing.
func (h *Host) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	for _, ch := range h.channels.Channels() {
		p := h.peers[ch.ID()]
		reason := ReasonShutdown
		if !p.isServerSide() {
			reason = ReasonUser
		}
		h.teardown(p, reason, true)
	}
	if h.schedule != nil {
		h.schedule.Stop()
		h.schedule = nil
	}
	if h.advertised {
		if err := h.config.Advertiser.Stop(); err != nil {
			h.logger.Warn("stop advertising", "error", err)
		}
		h.advertised = false
	}
	h.stopped = true
	events := h.takeEvents()
	h.mu.Unlock()
	h.dispatch(events)
}

// RunFrame executes one network frame: it reads every pending datagram,
// dispatches connectionless packets, feeds channel packets to their
// channels, drives the client handshake, tears down timed-out channels and
// transmits or chokes every channel.
func (h *Host) RunFrame() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	now := h.now()

	if h.config.Server {
		h.readPackets(protocol.SocketServer, now)
	}
	if h.schedule != nil || h.client != nil {
		h.readPackets(protocol.SocketClient, now)
	}

	h.expireChallenges(now)
	h.transport.PurgeSplits()
	h.runConnect(now)
	h.checkTimeouts()
	h.sendPackets()
	h.updateAdvertisement()
	h.channels.Publish()

	events := h.takeEvents()
	h.mu.Unlock()
	h.dispatch(events)
}

func (h *Host) readPackets(role protocol.SocketRole, now time.Time) {
	for {
		p, ok := h.transport.Receive(role)
		if !ok {
			return
		}
		h.handlePacket(role, p, now)
		p.Release()
	}
}

func (h *Host) handlePacket(role protocol.SocketRole, p *transport.Packet, now time.Time) {
	if isConnectionless(p.Data) {
		h.handleConnectionless(role, p, now)
		return
	}
	ch, ok := h.channels.Find(role, p.From)
	if !ok {
		h.logger.Debug("packet from unknown address", "role", role.String(), "from", p.From.String(), "size", p.Size())
		return
	}
	ch.ProcessPacket(p)
	if peer := h.peers[ch.ID()]; peer != nil && peer.dropping {
		h.teardown(peer, peer.dropReason, peer.dropNotify)
	}
}

func (h *Host) handleConnectionless(role protocol.SocketRole, p *transport.Packet, now time.Time) {
	op, r, ok := readConnectionless(p.Data)
	if !ok {
		return
	}

	if op == protocol.A2APing {
		h.sendConnectionless(role, p.From, writeConnectionless(protocol.A2AAck, nil))
		return
	}

	if role == protocol.SocketServer {
		switch op {
		case protocol.C2SGetChallenge:
			version := r.ReadInt32()
			if r.Overflowed() {
				return
			}
			if version != protocol.Version {
				h.sendConnectionless(role, p.From, rejectPacket(ReasonBadVersion))
				return
			}
			c := h.issueChallenge(p.From, now)
			h.sendConnectionless(role, p.From, challengePacket(c))
		case protocol.C2SConnect:
			req, ok := readConnectRequest(r)
			if !ok {
				return
			}
			h.acceptConnect(p.From, req, now)
		default:
			h.logger.Debug("unexpected connectionless packet", "op", string(op), "from", p.From.String())
		}
		return
	}

	// client role: only the server we are connecting to may answer
	if h.schedule == nil || !p.From.Equal(h.server) {
		return
	}
	switch op {
	case protocol.S2CChallenge:
		c := r.ReadUint32()
		if r.Overflowed() || c == 0 || h.schedule.State() != connection.StateChallenging {
			return
		}
		h.challenge = c
		_ = h.schedule.ChallengeReceived(now)
	case protocol.S2CConnection:
		c := r.ReadUint32()
		if r.Overflowed() || c != h.challenge || h.schedule.State() != connection.StateConnecting {
			return
		}
		h.clientConnected()
	case protocol.S2CConnReject:
		reason, _ := r.ReadString(maxRejectLength)
		if st := h.schedule.State(); st != connection.StateChallenging && st != connection.StateConnecting {
			return
		}
		h.schedule.Reject(reason)
	}
}

func (h *Host) sendConnectionless(role protocol.SocketRole, to netadr.Address, data []byte) {
	if data == nil {
		return
	}
	if _, err := h.transport.SendPacket(nil, role, to, data); err != nil {
		h.logger.Debug("connectionless send failed", "to", to.String(), "error", err)
	}
}

// issueChallenge returns the live challenge of addr or a fresh one.
func (h *Host) issueChallenge(addr netadr.Address, now time.Time) uint32 {
	key := addr.Key()
	if c, ok := h.challenges[key]; ok && now.Sub(c.at) < h.config.ChallengeTTL {
		return c.value
	}
	if len(h.challenges) >= MaxChallenges {
		h.evictOldestChallenge()
	}
	var v uint32
	for v == 0 {
		v = rand.Uint32()
	}
	h.challenges[key] = issuedChallenge{value: v, at: now}
	return v
}

func (h *Host) evictOldestChallenge() {
	var oldest netadr.Address
	var at time.Time
	first := true
	for addr, c := range h.challenges {
		if first || c.at.Before(at) {
			oldest, at, first = addr, c.at, false
		}
	}
	delete(h.challenges, oldest)
}

func (h *Host) expireChallenges(now time.Time) {
	for addr, c := range h.challenges {
		if now.Sub(c.at) >= h.config.ChallengeTTL {
			delete(h.challenges, addr)
		}
	}
}

func (h *Host) acceptConnect(from netadr.Address, req connectRequest, now time.Time) {
	if req.Version != protocol.Version {
		h.sendConnectionless(protocol.SocketServer, from, rejectPacket(ReasonBadVersion))
		return
	}
	c, ok := h.challenges[from.Key()]
	if !ok || c.value != req.Challenge || now.Sub(c.at) >= h.config.ChallengeTTL {
		h.sendConnectionless(protocol.SocketServer, from, rejectPacket(ReasonBadChallenge))
		return
	}

	if ch, ok := h.channels.Find(protocol.SocketServer, from); ok {
		// nothing received yet: the client lost our accept
		if ch.InSequence() == 0 {
			h.sendConnectionless(protocol.SocketServer, from, acceptPacket(req.Challenge))
			return
		}
		h.teardown(h.peers[ch.ID()], "reconnecting", false)
	}
	if h.serverPeerCount() >= h.config.MaxClients {
		h.sendConnectionless(protocol.SocketServer, from, rejectPacket(ReasonServerFull))
		return
	}

	name := req.Name
	if name == "" {
		name = "unnamed"
	}
	p, err := h.newPeer(protocol.SocketServer, from, req.Challenge, name)
	if err != nil {
		h.logger.Warn("accept failed", "from", from.String(), "error", err)
		h.sendConnectionless(protocol.SocketServer, from, rejectPacket("server error"))
		return
	}
	h.sendConnectionless(protocol.SocketServer, from, acceptPacket(req.Challenge))

	_ = p.signon.Transition(signon.StateChallenge, h.spawnCount)
	_ = p.signon.Transition(signon.StateConnected, h.spawnCount)
	p.ch.SendNetMsg(signon.NewStateMessage(signon.StateConnected, h.spawnCount), false, false)

	h.logger.Info("client connected", "peer", p.ch.Name(), "player", name)
	h.emit(Event{Type: EventConnected, Peer: p.id, Remote: from, Text: name})
	h.advertDirty = true
}

func (h *Host) newPeer(role protocol.SocketRole, remote netadr.Address, challenge uint32, name string) (*Peer, error) {
	cfg := h.config.Channel
	cfg.Role = role
	cfg.Remote = remote
	cfg.Sender = h.transport
	cfg.Messages = h.messages
	cfg.Challenge = challenge
	cfg.Now = h.now
	if role == protocol.SocketServer {
		cfg.Name = "server:" + remote.String()
	} else {
		cfg.Name = "client"
	}
	if cfg.Logger == nil {
		cfg.Logger = h.logger
	}
	if cfg.Protocol == nil {
		cfg.Protocol = h.config.Protocol
	}

	p := &Peer{name: name, role: role}
	cfg.Handler = &peerHandler{h: h, p: p}
	ch, err := netchan.New(cfg)
	if err != nil {
		return nil, err
	}
	p.ch = ch
	p.id = h.channels.Add(ch)
	p.signon = signon.NewMachine(ch.ConnectionID(), h.plog)
	p.signon.OnChange(func(_, next signon.State) {
		h.emit(Event{Type: EventSignOn, Peer: p.id, Remote: remote, State: next})
	})
	h.peers[p.id] = p
	return p, nil
}

func (h *Host) serverPeerCount() int {
	n := 0
	for _, p := range h.peers {
		if p.isServerSide() {
			n++
		}
	}
	return n
}

// teardown shuts the peer's channel down and forgets it. notify sends the
// reason to the peer.
func (h *Host) teardown(p *Peer, reason string, notify bool) {
	sent := ""
	if notify {
		sent = reason
	}
	p.ch.Shutdown(sent)
	h.channels.Remove(p.id)
	delete(h.peers, p.id)
	p.signon.Reset()

	if p == h.client {
		h.client = nil
		if h.schedule != nil {
			h.schedule.Stop()
			h.schedule = nil
		}
	}
	if p.isServerSide() {
		h.advertDirty = true
	}
	h.logger.Info("channel closed", "peer", p.ch.Name(), "reason", reason)
	h.emit(Event{Type: EventDisconnected, Peer: p.id, Remote: p.ch.Remote(), Reason: reason})
}

func (h *Host) checkTimeouts() {
	for _, ch := range h.channels.Channels() {
		p := h.peers[ch.ID()]
		switch {
		case ch.IsTimedOut():
			h.teardown(p, ReasonTimedOut, true)
		case ch.IsTimingOut():
			if !p.timingOut {
				p.timingOut = true
				h.emit(Event{Type: EventTimingOut, Peer: p.id, Remote: ch.Remote()})
			}
		default:
			p.timingOut = false
		}
	}
}

func (h *Host) sendPackets() {
	for _, ch := range h.channels.Channels() {
		if !ch.CanPacket() {
			ch.SetChoked()
			continue
		}
		if _, err := ch.Transmit(false); err != nil {
			h.logger.Debug("transmit failed", "peer", ch.Name(), "error", err)
		}
	}
}

func (h *Host) serverInfo() (*discovery.ServerInfo, bool) {
	addr, ok := h.transport.LocalAddr(protocol.SocketServer)
	if !ok || addr.Port() == 0 {
		return nil, false
	}
	return &discovery.ServerInfo{
		Name:       h.config.ServerName,
		Port:       addr.Port(),
		Map:        h.mapName,
		MaxPlayers: h.config.MaxClients,
		Players:    h.serverPeerCount(),
		Version:    protocol.Version,
	}, true
}

func (h *Host) updateAdvertisement() {
	if !h.advertDirty {
		return
	}
	h.advertDirty = false
	if !h.advertised {
		return
	}
	info, ok := h.serverInfo()
	if !ok {
		return
	}
	if err := h.config.Advertiser.Update(info); err != nil {
		h.logger.Warn("update advertisement", "error", err)
	}
}

func (h *Host) emit(e Event) {
	if h.config.OnEvent != nil {
		h.pending = append(h.pending, e)
	}
}

func (h *Host) takeEvents() []Event {
	events := h.pending
	h.pending = nil
	return events
}

func (h *Host) dispatch(events []Event) {
	for _, e := range events {
		h.config.OnEvent(e)
	}
}
