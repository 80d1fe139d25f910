package host

import (
	"fmt"
	"time"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/connection"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netmsg"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/signon"
)

// Connect starts the client handshake with server. Any existing client
// connection is dropped first. The handshake runs from RunFrame; progress
// is reported through events.
func (h *Host) Connect(server netadr.Address) error {
	if server.IsNull() {
		return fmt.Errorf("%w: null server address", ErrInvalidConfig)
	}
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ErrStopped
	}
	if h.client != nil {
		h.teardown(h.client, ReasonUser, true)
	}
	h.server = server
	h.challenge = 0
	h.schedule = connection.NewSchedule(h.config.Connect)
	h.schedule.Start(h.now())
	events := h.takeEvents()
	h.mu.Unlock()
	h.dispatch(events)
	return nil
}

// runConnect sends the handshake datagram that is due, if any.
func (h *Host) runConnect(now time.Time) {
	s := h.schedule
	if s == nil || h.client != nil {
		return
	}
	if s.Due(now) {
		switch s.State() {
		case connection.StateChallenging:
			h.sendConnectionless(protocol.SocketClient, h.server, getChallengePacket(protocol.Version))
		case connection.StateConnecting:
			h.sendConnectionless(protocol.SocketClient, h.server, connectPacket(connectRequest{
				Version:   protocol.Version,
				Challenge: h.challenge,
				Name:      h.config.PlayerName,
			}))
		}
	}
	if s.State() == connection.StateFailed {
		reason := "connect failed"
		if err := s.Err(); err != nil {
			reason = err.Error()
		}
		h.logger.Warn("connect failed", "server", h.server.String(), "reason", reason)
		h.emit(Event{Type: EventConnectFailed, Remote: h.server, Reason: reason})
		h.schedule = nil
	}
}

// clientConnected creates the client channel after the server accepted.
func (h *Host) clientConnected() {
	p, err := h.newPeer(protocol.SocketClient, h.server, h.challenge, h.config.PlayerName)
	if err != nil {
		h.logger.Warn("client channel failed", "error", err)
		h.schedule.Reject(err.Error())
		return
	}
	h.client = p
	h.schedule.Connected()
	_ = p.signon.Transition(signon.StateChallenge, 0)

	h.logger.Info("connected", "server", h.server.String())
	h.emit(Event{Type: EventConnected, Peer: p.id, Remote: h.server})
}

// Disconnect drops the client connection or cancels a pending handshake.
func (h *Host) Disconnect(reason string) {
	if reason == "" {
		reason = ReasonUser
	}
	h.mu.Lock()
	if h.client != nil {
		h.teardown(h.client, reason, true)
	}
	if h.schedule != nil {
		h.schedule.Stop()
		h.schedule = nil
	}
	events := h.takeEvents()
	h.mu.Unlock()
	h.dispatch(events)
}

// ConnectState returns the client handshake state.
func (h *Host) ConnectState() connection.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.client != nil:
		return connection.StateConnected
	case h.schedule != nil:
		return h.schedule.State()
	default:
		return connection.StateIdle
	}
}

// ClientSignOn returns the client's sign-on state.
func (h *Host) ClientSignOn() signon.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return signon.StateNone
	}
	return h.client.signon.State()
}

// SendCommand queues a reliable string command to the server.
func (h *Host) SendCommand(cmd string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return ErrNotConnected
	}
	if !h.client.ch.SendNetMsg(&netmsg.StringCmd{Command: cmd}, true, false) {
		return ErrSendFailed
	}
	return nil
}

// SetConVars replicates console variables to the server.
func (h *Host) SetConVars(vars ...netmsg.ConVar) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return ErrNotConnected
	}
	if !h.client.ch.SendNetMsg(&netmsg.SetConVar{ConVars: vars}, true, false) {
		return ErrSendFailed
	}
	return nil
}

// RequestFile asks the server for a file and returns the transfer id.
func (h *Host) RequestFile(name string) (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return 0, ErrNotConnected
	}
	return h.client.ch.RequestFile(name), nil
}
