package interactive

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/host"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netmsg"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/signon"
)

type mockHost struct {
	mock.Mock
}

func (m *mockHost) Connect(server netadr.Address) error {
	return m.Called(server).Error(0)
}

func (m *mockHost) Disconnect(reason string) { m.Called(reason) }

func (m *mockHost) SendCommand(cmd string) error {
	return m.Called(cmd).Error(0)
}

func (m *mockHost) SetConVars(vars ...netmsg.ConVar) error {
	return m.Called(vars).Error(0)
}

func (m *mockHost) RequestFile(name string) (uint32, error) {
	args := m.Called(name)
	return args.Get(0).(uint32), args.Error(1)
}

func (m *mockHost) Print(id netmsg.ChannelID, text string) error {
	return m.Called(id, text).Error(0)
}

func (m *mockHost) Broadcast(text string) int {
	return m.Called(text).Int(0)
}

func (m *mockHost) Kick(id netmsg.ChannelID, reason string) error {
	return m.Called(id, reason).Error(0)
}

func (m *mockHost) ChangeLevel(mapName string) error {
	return m.Called(mapName).Error(0)
}

func (m *mockHost) Map() string { return m.Called().String(0) }

func (m *mockHost) Peers() []host.PeerInfo {
	return m.Called().Get(0).([]host.PeerInfo)
}

func newTestConsole() (*Console, *mockHost, *bytes.Buffer) {
	h := &mockHost{}
	var out bytes.Buffer
	return &Console{h: h, out: &out}, h, &out
}

func TestExecuteClientCommands(t *testing.T) {
	c, h, out := newTestConsole()

	h.On("Connect", netadr.Loopback).Return(nil).Once()
	h.On("SendCommand", "say hello there").Return(nil).Once()
	h.On("SetConVars", []netmsg.ConVar{{Name: "name", Value: "big gus"}}).Return(nil).Once()
	h.On("RequestFile", "maps/arena.bsp").Return(uint32(3), nil).Once()
	h.On("Disconnect", "brb").Once()

	assert.False(t, c.Execute("connect loopback"))
	assert.False(t, c.Execute("cmd say hello there"))
	assert.False(t, c.Execute("set name big gus"))
	assert.False(t, c.Execute("get maps/arena.bsp"))
	assert.False(t, c.Execute("disconnect brb"))

	h.AssertExpectations(t)
	assert.Contains(t, out.String(), "transfer 3")
}

func TestExecuteServerCommands(t *testing.T) {
	c, h, out := newTestConsole()

	h.On("Broadcast", "round over").Return(2).Once()
	h.On("Print", netmsg.ChannelID(4), "hi there").Return(nil).Once()
	h.On("Kick", netmsg.ChannelID(4), "").Return(errors.New("not connected")).Once()
	h.On("ChangeLevel", "de_nuke").Return(nil).Once()
	h.On("Map").Return("de_nuke")
	h.On("Peers").Return([]host.PeerInfo{{Player: "alice", SignOn: signon.StateFull}})

	c.Execute("say round over")
	c.Execute("tell 4 hi there")
	c.Execute("kick 4")
	c.Execute("map de_nuke")
	c.Execute("status")

	h.AssertExpectations(t)
	s := out.String()
	assert.Contains(t, s, "Sent to 2 clients")
	assert.Contains(t, s, "Error: not connected")
	assert.Contains(t, s, "map: de_nuke  channels: 1")
	assert.Contains(t, s, "alice")
	assert.Contains(t, s, "FULL")
}

func TestExecuteUsageAndErrors(t *testing.T) {
	c, h, out := newTestConsole()

	c.Execute("")
	c.Execute("connect")
	c.Execute("kick abc")
	c.Execute("teleport")
	assert.True(t, c.Execute("quit"))

	h.AssertNotCalled(t, "Connect", mock.Anything)
	h.AssertNotCalled(t, "Kick", mock.Anything, mock.Anything)
	s := out.String()
	assert.Contains(t, s, "Usage: connect <addr>")
	assert.Contains(t, s, "Invalid id: abc")
	assert.Contains(t, s, "Unknown command: teleport")
}

func TestHandleEvent(t *testing.T) {
	c, _, out := newTestConsole()

	c.HandleEvent(host.Event{Type: host.EventConnected, Peer: 1, Remote: netadr.Loopback, Text: "alice"})
	c.HandleEvent(host.Event{Type: host.EventPrint, Text: "welcome"})
	c.HandleEvent(host.Event{Type: host.EventDisconnected, Peer: 1, Reason: "kicked"})
	c.HandleEvent(host.Event{Type: host.EventFileReceived, Filename: "maps/a.bsp", Data: make([]byte, 10)})

	s := out.String()
	assert.Contains(t, s, "[1] alice connected from loopback")
	assert.Contains(t, s, "welcome\n")
	assert.Contains(t, s, "[1] disconnected: kicked")
	assert.Contains(t, s, "Received maps/a.bsp (10 bytes)")
}
